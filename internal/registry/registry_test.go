package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_LoadsEmbeddedCatalogue(t *testing.T) {
	reg := Default()

	for _, id := range []string{"file", "ff_crop", "ff_scale", "ff_concat", "ff_segment"} {
		_, ok := reg.Get(id)
		assert.True(t, ok, "step %s missing from catalogue", id)
	}

	_, ok := reg.Get("ff_nope")
	assert.False(t, ok)
}

func TestListByCategory(t *testing.T) {
	reg := Default()

	inputs := reg.ListByCategory("input")
	require.Len(t, inputs, 1)
	assert.Equal(t, "file", inputs[0].ID)

	assert.Empty(t, reg.ListByCategory("nonexistent"))
	assert.Equal(t, []string{"input", "transform", "overlay", "audio", "compose"}, reg.Categories())
}

func TestLoad_RejectsDuplicateIDs(t *testing.T) {
	_, err := Load([]byte(`
steps:
  - id: a
    parameters: [{name: input, kind: file}]
  - id: a
`))
	require.ErrorIs(t, err, ErrInvalidCatalogue)
}

func TestLoad_RejectsDuplicateParameters(t *testing.T) {
	_, err := Load([]byte(`
steps:
  - id: a
    parameters:
      - {name: input, kind: file}
      - {name: input, kind: string}
`))
	require.ErrorIs(t, err, ErrInvalidCatalogue)
}

func TestLoad_RejectsUnknownKind(t *testing.T) {
	_, err := Load([]byte(`
steps:
  - id: a
    parameters: [{name: input, kind: colour}]
`))
	require.ErrorIs(t, err, ErrInvalidCatalogue)
}

func TestLoad_DefaultsNaming(t *testing.T) {
	reg, err := Load([]byte(`
steps:
  - id: a
`))
	require.NoError(t, err)
	def, _ := reg.Get("a")
	assert.Equal(t, NamingDefaultOutput, def.Naming.Kind)
	assert.True(t, def.Executable())
}

func TestDynamicSlot(t *testing.T) {
	def, _ := Default().Get("ff_concat")

	tests := []struct {
		name string
		slot int
		ok   bool
	}{
		{"input3", 3, true},
		{"input10", 10, true},
		{"input11", 0, false},
		{"input1", 0, false}, // static parameter
		{"input", 0, false},
		{"input0", 0, false},
		{"inputx", 0, false},
		{"output", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, n, ok := def.DynamicSlot(tt.name)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.slot, n)
		})
	}

	assert.True(t, def.AcceptsInput("input1"))
	assert.True(t, def.AcceptsInput("input4"))
	assert.False(t, def.AcceptsInput("audio"))
}

func TestOutputName(t *testing.T) {
	reg := Default()
	file, _ := reg.Get("file")
	scale, _ := reg.Get("ff_scale")
	segment, _ := reg.Get("ff_segment")

	tests := []struct {
		name   string
		def    *StepDefinition
		params map[string]any
		want   string
	}{
		{"pass through", file, map[string]any{"filepath": "a.mp4"}, "a.mp4"},
		{"pass through unset", file, map[string]any{}, ""},
		{"explicit output", scale, map[string]any{"output": "small.mp4"}, "small.mp4"},
		{"default output", scale, map[string]any{}, "ff_scale.mp4"},
		{"empty output", scale, map[string]any{"output": ""}, "ff_scale.mp4"},
		{"indexed default", segment, map[string]any{}, "1_ff_segment.mp4"},
		{"indexed explicit", segment, map[string]any{"index": float64(3), "output": "part.mp4"}, "3_part.mp4"},
		{"indexed keeps dir", segment, map[string]any{"output": "out/part.mp4"}, "out/1_part.mp4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, OutputName(tt.def, tt.params))
		})
	}
}

func TestKindValidate(t *testing.T) {
	def, _ := Default().Get("ff_watermark")
	position, _ := def.Parameter("position")
	scale, _ := def.Parameter("scale")

	assert.NoError(t, KindSelect.Validate(position, "top-left"))
	assert.Error(t, KindSelect.Validate(position, "middle"))
	assert.NoError(t, KindNumber.Validate(scale, 0.5))
	assert.NoError(t, KindNumber.Validate(scale, "0.5"))
	assert.NoError(t, KindNumber.Validate(scale, "{{CALC:1/2}}"))
	assert.Error(t, KindNumber.Validate(scale, "half"))
	assert.Error(t, KindNumber.Validate(scale, true))
	assert.NoError(t, KindBoolean.Validate(&ParameterSpec{}, "true"))
	assert.Error(t, KindBoolean.Validate(&ParameterSpec{}, "yes please"))
	assert.NoError(t, KindString.Validate(&ParameterSpec{}, nil))
	assert.Error(t, KindFile.Validate(&ParameterSpec{}, []any{"a"}))
}

func TestKindDefault(t *testing.T) {
	def, _ := Default().Get("ff_watermark")
	position, _ := def.Parameter("position")

	assert.Equal(t, "bottom-right", KindSelect.Default(position))
	assert.Equal(t, false, KindBoolean.Default(&ParameterSpec{}))
	assert.Equal(t, "a", KindSelect.Default(&ParameterSpec{Options: []string{"a", "b"}}))
	assert.Nil(t, KindString.Default(&ParameterSpec{}))
}
