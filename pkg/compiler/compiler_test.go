package compiler

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noderig/noderig/pkg/graph"
	"github.com/noderig/noderig/pkg/schema"
)

func link(id int) *int { return &id }

func TestCompile_EmptyGraph(t *testing.T) {
	job, err := Compile(&graph.Graph{}, nil)
	require.NoError(t, err)
	assert.Nil(t, job)

	job, err = Compile(nil, nil)
	require.NoError(t, err)
	assert.Nil(t, job)
}

// Three-node pipeline with a Reroute between loader and sampler: the
// Reroute is excluded and the sampler references the loader directly.
func TestCompile_RerouteChased(t *testing.T) {
	g := &graph.Graph{
		Nodes: []graph.Node{
			{ID: 1, Type: "LoadImage", Widgets: []any{"cat.png", "image"}},
			{ID: 2, Type: "Reroute", Inputs: []graph.InputSlot{{Name: "", Link: link(10)}}},
			{ID: 3, Type: "SaveImage", Widgets: []any{"out"},
				Inputs: []graph.InputSlot{{Name: "images", Link: link(11)}}},
		},
		Links: []graph.Link{
			{ID: 10, SourceID: 1, SourceSlot: 0, TargetID: 2, TargetSlot: 0},
			{ID: 11, SourceID: 2, SourceSlot: 0, TargetID: 3, TargetSlot: 0},
		},
	}

	job, err := Compile(g, nil)
	require.NoError(t, err)
	require.Len(t, job, 2)
	require.NotContains(t, job, "2")

	save := job["3"]
	assert.Equal(t, "SaveImage", save.ClassType)
	assert.Equal(t, Ref{Node: "1", Slot: 0}, save.Inputs["images"])
	assert.Equal(t, "out", save.Inputs["filename_prefix"])
}

func TestCompile_RerouteCycle(t *testing.T) {
	g := &graph.Graph{
		Nodes: []graph.Node{
			{ID: 1, Type: "Reroute", Inputs: []graph.InputSlot{{Link: link(10)}}},
			{ID: 2, Type: "Reroute", Inputs: []graph.InputSlot{{Link: link(11)}}},
			{ID: 3, Type: "SaveImage", Inputs: []graph.InputSlot{{Name: "images", Link: link(12)}}},
		},
		Links: []graph.Link{
			{ID: 10, SourceID: 2, SourceSlot: 0, TargetID: 1, TargetSlot: 0},
			{ID: 11, SourceID: 1, SourceSlot: 0, TargetID: 2, TargetSlot: 0},
			{ID: 12, SourceID: 1, SourceSlot: 0, TargetID: 3, TargetSlot: 0},
		},
	}

	_, err := Compile(g, nil)
	var cerr *CompileError
	require.True(t, errors.As(err, &cerr), "expected CompileError, got %v", err)
}

func TestCompile_PrimitiveInlined(t *testing.T) {
	g := &graph.Graph{
		Nodes: []graph.Node{
			{ID: 1, Type: "PrimitiveNode", Widgets: []any{float64(42)}},
			{ID: 2, Type: "KSampler", Inputs: []graph.InputSlot{{Name: "seed", Link: link(10)}}},
		},
		Links: []graph.Link{
			{ID: 10, SourceID: 1, SourceSlot: 0, TargetID: 2, TargetSlot: 0},
		},
	}

	job, err := Compile(g, nil)
	require.NoError(t, err)
	require.Len(t, job, 1)
	assert.Equal(t, float64(42), job["2"].Inputs["seed"])
}

func TestCompile_DanglingLinkDropped(t *testing.T) {
	g := &graph.Graph{
		Nodes: []graph.Node{
			{ID: 1, Type: "SaveImage", Inputs: []graph.InputSlot{{Name: "images", Link: link(99)}}},
		},
	}

	job, err := Compile(g, nil)
	require.NoError(t, err)
	assert.NotContains(t, job["1"].Inputs, "images")
}

func TestCompile_LinkToMissingNodeDropped(t *testing.T) {
	g := &graph.Graph{
		Nodes: []graph.Node{
			{ID: 1, Type: "SaveImage", Inputs: []graph.InputSlot{{Name: "images", Link: link(10)}}},
		},
		Links: []graph.Link{
			{ID: 10, SourceID: 77, SourceSlot: 0, TargetID: 1, TargetSlot: 0},
		},
	}

	job, err := Compile(g, nil)
	require.NoError(t, err)
	assert.NotContains(t, job["1"].Inputs, "images")
}

func TestCompile_AnnotationsExcluded(t *testing.T) {
	g := &graph.Graph{
		Nodes: []graph.Node{
			{ID: 1, Type: "Note", Widgets: []any{"remember to fix the seed"}},
			{ID: 2, Type: "MarkdownNote", Widgets: []any{"# docs"}},
			{ID: 3, Type: "VAEDecode"},
		},
	}

	job, err := Compile(g, nil)
	require.NoError(t, err)
	require.Len(t, job, 1)
	assert.Contains(t, job, "3")
}

func TestCompile_SchemaDrivenWidgets(t *testing.T) {
	info := `{
	  "CheckpointLoaderSimple": {
	    "input": {"required": {"ckpt_name": [["models/x.safetensors"]]}}
	  }
	}`
	s, err := schema.ParseObjectInfo([]byte(info))
	require.NoError(t, err)

	g := &graph.Graph{
		Nodes: []graph.Node{
			{ID: 1, Type: "CheckpointLoaderSimple", Widgets: []any{"x.safetensors"}},
		},
	}

	job, err := Compile(g, s)
	require.NoError(t, err)
	// Basename match stores the canonical allowed value.
	assert.Equal(t, "models/x.safetensors", job["1"].Inputs["ckpt_name"])
}

func TestCompile_UnknownTypeUsesSlotWidgetNames(t *testing.T) {
	g := &graph.Graph{
		Nodes: []graph.Node{
			{ID: 1, Type: "SomeCustomThing", Widgets: []any{"v1", float64(2)},
				Inputs: []graph.InputSlot{
					{Name: "alpha", Widget: &graph.WidgetRef{Name: "alpha"}},
					{Name: "beta", Widget: &graph.WidgetRef{Name: "beta"}},
				}},
		},
	}

	job, err := Compile(g, nil)
	require.NoError(t, err)
	assert.Equal(t, "v1", job["1"].Inputs["alpha"])
	assert.Equal(t, float64(2), job["1"].Inputs["beta"])
}

func TestCompile_ConnectionWinsOverWidget(t *testing.T) {
	g := &graph.Graph{
		Nodes: []graph.Node{
			{ID: 1, Type: "LoadImage", Widgets: []any{"cat.png", "image"}},
			{ID: 2, Type: "LoadImage", Widgets: []any{"dog.png", "image"},
				Inputs: []graph.InputSlot{{Name: "image", Link: link(10)}}},
		},
		Links: []graph.Link{
			{ID: 10, SourceID: 1, SourceSlot: 0, TargetID: 2, TargetSlot: 0},
		},
	}

	job, err := Compile(g, nil)
	require.NoError(t, err)
	assert.Equal(t, Ref{Node: "1", Slot: 0}, job["2"].Inputs["image"])
}

func TestCompile_Deterministic(t *testing.T) {
	g := &graph.Graph{
		Nodes: []graph.Node{
			{ID: 1, Type: "CheckpointLoaderSimple", Widgets: []any{"model.safetensors"}},
			{ID: 2, Type: "EmptyLatentImage", Widgets: []any{float64(512), float64(512), float64(1)}},
			{ID: 3, Type: "KSampler", Widgets: []any{float64(1), "fixed", float64(20), 7.5, "euler", "normal", 1.0}},
		},
	}

	first, err := Compile(g, nil)
	require.NoError(t, err)
	second, err := Compile(g, nil)
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(a, b), "repeated compilation must be byte-identical")
}

func TestCompile_EveryRefResolves(t *testing.T) {
	g := &graph.Graph{
		Nodes: []graph.Node{
			{ID: 1, Type: "LoadImage", Widgets: []any{"a.png", "image"}},
			{ID: 2, Type: "SetNode", Inputs: []graph.InputSlot{{Link: link(10)}}},
			{ID: 3, Type: "GetNode"},
			{ID: 4, Type: "SaveImage",
				Inputs: []graph.InputSlot{{Name: "images", Link: link(11)}}},
			{ID: 5, Type: "SaveImage",
				Inputs: []graph.InputSlot{{Name: "images", Link: link(12)}}},
		},
		Links: []graph.Link{
			{ID: 10, SourceID: 1, SourceSlot: 0, TargetID: 2, TargetSlot: 0},
			{ID: 11, SourceID: 2, SourceSlot: 0, TargetID: 4, TargetSlot: 0},
			// GetNode has no upstream; this input must be dropped, not
			// emitted as a dangling reference.
			{ID: 12, SourceID: 3, SourceSlot: 0, TargetID: 5, TargetSlot: 0},
		},
	}

	job, err := Compile(g, nil)
	require.NoError(t, err)

	for id, spec := range job {
		for name, v := range spec.Inputs {
			ref, ok := v.(Ref)
			if !ok {
				continue
			}
			_, present := job[ref.Node]
			assert.True(t, present, "node %s input %s references missing node %s", id, name, ref.Node)
		}
	}
}

func TestParseJob_RoundTrip(t *testing.T) {
	doc := `{
	  "1": {"class_type": "LoadImage", "inputs": {"image": "cat.png"}},
	  "2": {"class_type": "SaveImage", "inputs": {"images": ["1", 0]}}
	}`
	job, err := ParseJob([]byte(doc))
	require.NoError(t, err)
	require.Len(t, job, 2)
	assert.Equal(t, Ref{Node: "1", Slot: 0}, job["2"].Inputs["images"])
	assert.Equal(t, "cat.png", job["1"].Inputs["image"])
}

func TestParseJob_MissingClassType(t *testing.T) {
	_, err := ParseJob([]byte(`{"1": {"inputs": {}}}`))
	require.Error(t, err)
}
