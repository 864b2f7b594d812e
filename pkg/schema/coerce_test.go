package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func samplerEntry() *Entry {
	return &Entry{
		Type: "KSampler",
		Inputs: []Input{
			{Name: "seed", Kind: KindInt},
			{Name: "control_after_generate", Kind: KindEnum, Allowed: []string{"fixed", "increment", "randomize"}},
			{Name: "steps", Kind: KindInt},
			{Name: "cfg", Kind: KindFloat},
			{Name: "sampler_name", Kind: KindEnum, Allowed: []string{"euler", "ddim"}},
			{Name: "scheduler", Kind: KindEnum, Allowed: []string{"normal", "karras"}},
			{Name: "denoise", Kind: KindFloat},
		},
	}
}

func TestCoerceWidgets_FullAlignment(t *testing.T) {
	widgets := []any{float64(42), "fixed", float64(20), 8.0, "euler", "normal", 1.0}
	got := CoerceWidgets(samplerEntry(), widgets, nil)

	assert.Equal(t, map[string]any{
		"seed":                   42,
		"control_after_generate": "fixed",
		"steps":                  20,
		"cfg":                    8.0,
		"sampler_name":           "euler",
		"scheduler":              "normal",
		"denoise":                1.0,
	}, got)
}

func TestCoerceWidgets_SkipsStaleValues(t *testing.T) {
	// An extra string left over from an older save cannot coerce to
	// the INT slot; the walk skips the value without consuming the
	// slot, so alignment recovers.
	widgets := []any{"leftover", float64(42), "fixed"}
	got := CoerceWidgets(samplerEntry(), widgets, nil)

	assert.Equal(t, 42, got["seed"])
	assert.Equal(t, "fixed", got["control_after_generate"])
	assert.NotContains(t, got, "steps")
}

func TestCoerceWidgets_BooleanStrict(t *testing.T) {
	entry := &Entry{Type: "T", Inputs: []Input{
		{Name: "enabled", Kind: KindBoolean},
		{Name: "count", Kind: KindInt},
	}}

	// A numeric value is not accepted for a boolean slot, and a
	// boolean never satisfies a numeric slot.
	got := CoerceWidgets(entry, []any{float64(1), true, float64(3)}, nil)
	assert.Equal(t, map[string]any{"enabled": true, "count": 3}, got)
}

func TestCoerceWidgets_ConnectedSkipped(t *testing.T) {
	widgets := []any{float64(42), "fixed"}
	got := CoerceWidgets(samplerEntry(), widgets, map[string]bool{"seed": true})

	assert.NotContains(t, got, "seed")
	// The aligned value was consumed by the connected slot, so the
	// second value lands on the second slot.
	assert.Equal(t, "fixed", got["control_after_generate"])
}

func TestCoerceEnum_BasenameMatch(t *testing.T) {
	entry := &Entry{Type: "Loader", Inputs: []Input{
		{Name: "ckpt_name", Kind: KindEnum, Allowed: []string{"models/x.safetensors"}},
	}}

	got := CoerceWidgets(entry, []any{"x.safetensors"}, nil)
	// The canonical allowed value is stored, not the candidate.
	assert.Equal(t, "models/x.safetensors", got["ckpt_name"])
}

func TestCoerceEnum_BackslashPaths(t *testing.T) {
	entry := &Entry{Type: "Loader", Inputs: []Input{
		{Name: "model", Kind: KindEnum, Allowed: []string{"model.safetensors"}},
	}}

	got := CoerceWidgets(entry, []any{`hy3dgen\model.safetensors`}, nil)
	assert.Equal(t, "model.safetensors", got["model"])
}

func TestCoerceEnum_DottedFallback(t *testing.T) {
	entry := &Entry{Type: "Loader", Inputs: []Input{
		{Name: "model", Kind: KindEnum, Allowed: []string{"a.bin"}},
	}}

	// Not in the list, but looks like a filename: accepted raw for
	// the server to validate.
	got := CoerceWidgets(entry, []any{"other.bin"}, nil)
	assert.Equal(t, "other.bin", got["model"])
}

func TestCoerceEnum_RejectsNonFilename(t *testing.T) {
	entry := &Entry{Type: "Loader", Inputs: []Input{
		{Name: "mode", Kind: KindEnum, Allowed: []string{"fast", "slow"}},
		{Name: "label", Kind: KindString},
	}}

	// "dotless" matches nothing and has no extension; the value is
	// discarded without consuming the slot.
	got := CoerceWidgets(entry, []any{"dotless"}, nil)
	assert.NotContains(t, got, "mode")
	assert.NotContains(t, got, "label")
}

func TestCoerceEnum_EmptyAllowed(t *testing.T) {
	entry := &Entry{Type: "Loader", Inputs: []Input{
		{Name: "model", Kind: KindEnum, Allowed: nil},
	}}

	// Without a catalog even a filename-shaped value is discarded;
	// there is nothing to resolve it against.
	got := CoerceWidgets(entry, []any{"model.safetensors"}, nil)
	assert.NotContains(t, got, "model")
}

func TestCoerceWidgets_NilAndEmpty(t *testing.T) {
	assert.Empty(t, CoerceWidgets(nil, []any{1}, nil))
	assert.Empty(t, CoerceWidgets(samplerEntry(), nil, nil))
}

func TestCoerceWidgets_StringFromNil(t *testing.T) {
	entry := &Entry{Type: "T", Inputs: []Input{{Name: "text", Kind: KindString}}}
	got := CoerceWidgets(entry, []any{nil}, nil)
	assert.Equal(t, "", got["text"])
}
