package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplerInfo = `{
  "KSampler": {
    "input": {
      "required": {
        "model": ["MODEL"],
        "seed": ["INT", {"default": 0}],
        "steps": ["INT", {"default": 20}],
        "cfg": ["FLOAT", {"default": 8.0}],
        "sampler_name": [["euler", "euler_ancestral", "ddim"]],
        "scheduler": [["normal", "karras"]],
        "positive": ["CONDITIONING"],
        "negative": ["CONDITIONING"],
        "latent_image": ["LATENT"],
        "denoise": ["FLOAT", {"default": 1.0}]
      },
      "optional": {
        "add_noise": ["BOOLEAN", {"default": true}]
      }
    }
  }
}`

func TestParseObjectInfo_PreservesOrder(t *testing.T) {
	s, err := ParseObjectInfo([]byte(samplerInfo))
	require.NoError(t, err)
	require.Equal(t, 1, s.Types())

	entry := s.Entry("KSampler")
	require.NotNil(t, entry)

	var names []string
	for _, in := range entry.Inputs {
		names = append(names, in.Name)
	}
	assert.Equal(t, []string{
		"model", "seed", "steps", "cfg", "sampler_name", "scheduler",
		"positive", "negative", "latent_image", "denoise", "add_noise",
	}, names)

	widgets := entry.WidgetInputs()
	var widgetNames []string
	for _, in := range widgets {
		widgetNames = append(widgetNames, in.Name)
	}
	assert.Equal(t, []string{"seed", "steps", "cfg", "sampler_name", "scheduler", "denoise", "add_noise"}, widgetNames)
}

func TestParseObjectInfo_Kinds(t *testing.T) {
	s, err := ParseObjectInfo([]byte(samplerInfo))
	require.NoError(t, err)
	entry := s.Entry("KSampler")

	byName := map[string]Input{}
	for _, in := range entry.Inputs {
		byName[in.Name] = in
	}

	assert.Equal(t, KindConnection, byName["model"].Kind)
	assert.Equal(t, KindInt, byName["seed"].Kind)
	assert.Equal(t, KindFloat, byName["cfg"].Kind)
	assert.Equal(t, KindBoolean, byName["add_noise"].Kind)
	assert.Equal(t, KindEnum, byName["sampler_name"].Kind)
	assert.Equal(t, []string{"euler", "euler_ancestral", "ddim"}, byName["sampler_name"].Allowed)
}

func TestEntry_UnknownType(t *testing.T) {
	s, err := ParseObjectInfo([]byte(samplerInfo))
	require.NoError(t, err)
	assert.Nil(t, s.Entry("Nope"))

	var nilSchema *Schema
	assert.Nil(t, nilSchema.Entry("KSampler"))
	assert.Equal(t, 0, nilSchema.Types())
}
