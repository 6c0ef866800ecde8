package keyword

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heimdex/heimdex-flow/internal/pipeline"
)

func newTestEngine(t *testing.T, dir string, env map[string]string) *Engine {
	t.Helper()
	e := NewEngine(NewSeededRunContext(dir, 42), nil)
	e.Now = func() time.Time { return time.Date(2024, time.March, 5, 14, 7, 9, 0, time.UTC) }
	e.LookupEnv = func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
	return e
}

func TestSubstitute_Env(t *testing.T) {
	e := newTestEngine(t, t.TempDir(), map[string]string{"SHOW_NAME": "Late_Night_Show"})

	assert.Equal(t, "title: Late Night Show", e.Substitute("title: {{ENV_SHOW_NAME}}"))
	assert.Equal(t, "title: ", e.Substitute("title: {{ENV_MISSING}}"))
}

func TestSubstitute_Date(t *testing.T) {
	e := newTestEngine(t, t.TempDir(), nil)

	tests := map[string]string{
		"{{DATE:%d/%m/%y}}":    "05/03/24",
		"{{DATE:%Y-%m-%d}}":    "2024-03-05",
		"{{DATE:%A %B}}":       "Tuesday March",
		"{{DATE:%H:%M:%S}}":    "14:07:09",
		"{{DATE:100%% on %Y}}": "100% on 2024",
		"{{ DATE : %Y }}":      "2024",
		"{{DATE}}":             "2024-03-05",
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, e.Substitute(in))
		})
	}
}

func TestSubstitute_Folder(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "summer_trip_2024")
	require.NoError(t, os.Mkdir(dir, 0755))
	e := newTestEngine(t, dir, nil)

	assert.Equal(t, "summer_trip_2024", e.Substitute("{{FOLDER_NAME}}"))
	assert.Equal(t, "summer trip 2024", e.Substitute("{{FOLDER_TITLE}}"))
}

func TestSubstitute_RandomFile(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"intro_a.mp4", "intro_b.MOV", "main.mkv", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "intro_dir.mp4"), 0755))
	e := newTestEngine(t, dir, nil)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		seen[e.Substitute("{{RANDOM_FILE:intro}}")] = true
	}
	assert.Equal(t, map[string]bool{"intro_a.mp4": true, "intro_b.MOV": true}, seen)

	assert.Equal(t, "main.mkv", e.Substitute("{{RANDOM_FILE:MAIN}}"))
	assert.Equal(t, "", e.Substitute("{{RANDOM_FILE:outro}}"))

	picked := e.Substitute("{{RANDOM_FILE}}")
	assert.True(t, IsMediaFile(picked), picked)
}

func TestSubstitute_RandomColourPairsWithinCall(t *testing.T) {
	e := newTestEngine(t, t.TempDir(), nil)

	for i := 0; i < 20; i++ {
		out := e.Substitute("{{RANDOM_COLOUR}}|{{RANDOM_COLOUR_CONTRAST}}|{{RANDOM_COLOUR}}")
		parts := strings.Split(out, "|")
		require.Len(t, parts, 3)
		colour, contrast, again := parts[0], parts[1], parts[2]

		assert.Contains(t, Palette, colour)
		assert.Equal(t, colour, again)
		assert.Equal(t, Contrast(colour), contrast)
	}
}

func TestSubstitute_SessionColourIsStableForRun(t *testing.T) {
	rc := NewSeededRunContext(t.TempDir(), 7)
	a := NewEngine(rc, nil)
	b := NewEngine(rc, nil)

	first := a.Substitute("{{SESSION_COLOUR}}")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, a.Substitute("{{SESSION_COLOUR}}"))
		assert.Equal(t, first, b.Substitute("{{SESSION_COLOUR}}"))
	}
	assert.Equal(t, Contrast(first), a.Substitute("{{SESSION_COLOUR_CONTRAST}}"))
	assert.Contains(t, Palette, first)
}

func TestSubstitute_SessionColourDiffersAcrossRuns(t *testing.T) {
	seen := make(map[string]bool)
	for seed := uint64(1); seed <= 40; seed++ {
		seen[NewSeededRunContext("", seed).SessionColour()] = true
	}
	assert.Greater(t, len(seen), 1)
}

func TestSubstitute_Calc(t *testing.T) {
	e := newTestEngine(t, t.TempDir(), nil)

	tests := map[string]string{
		"{{CALC:1+2*3}}":      "7",
		"{{CALC:(1+2)*3}}":    "9",
		"{{CALC:100%-5}}":     "-4",
		"{{CALC:50% * 1920}}": "960",
		"{{CALC:(25%)*8}}":    "2",
		"{{CALC:10%3}}":       "1",
		"{{CALC:-7/2}}":       "-3.5",
		"{{CALC:width*2}}":    "{{CALC:width*2}}",
		"{{CALC:1/0}}":        "{{CALC:1/0}}",
		"{{CALC:(1+}}":        "{{CALC:(1+}}",
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, e.Substitute(in))
		})
	}
}

func TestSubstitute_LeavesUnknownPlaceholders(t *testing.T) {
	e := newTestEngine(t, t.TempDir(), nil)

	in := `{"text": "{{NOT_A_THING}} and {{lower}} and {single}"}`
	assert.Equal(t, in, e.Substitute(in))
}

func TestSubstitute_EscapesForJSON(t *testing.T) {
	e := newTestEngine(t, t.TempDir(), map[string]string{"QUOTE": `say "hi"\now`})

	assert.Equal(t, `{"text": "say \"hi\"\\now"}`, e.Substitute(`{"text": "{{ENV_QUOTE}}"}`))
}

func TestSubstituteStep(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "my_show")
	require.NoError(t, os.Mkdir(dir, 0755))
	e := newTestEngine(t, dir, map[string]string{"HOST": "Jane_Doe"})

	step := pipeline.Step{
		Key:         "ff_text2",
		Description: "title for {{FOLDER_TITLE}}",
		Params: []pipeline.Param{
			{Name: "input", Value: "a.mp4"},
			{Name: "text", Value: "{{ENV_HOST}} on {{DATE:%Y}}"},
			{Name: "colour", Value: "{{SESSION_COLOUR}}"},
			{Name: "size", Value: 48.0},
		},
	}

	got, err := e.SubstituteStep(step)
	require.NoError(t, err)

	assert.Equal(t, "ff_text2", got.Key)
	assert.Equal(t, "title for my show", got.Description)
	text, _ := got.Get("text")
	assert.Equal(t, "Jane Doe on 2024", text)
	colour, _ := got.Get("colour")
	assert.Equal(t, e.rc.SessionColour(), colour)
	size, _ := got.Get("size")
	assert.Equal(t, 48.0, size)

	orig, _ := step.Get("text")
	assert.Equal(t, "{{ENV_HOST}} on {{DATE:%Y}}", orig)
}

func TestSubstituteStep_ArgumentsKeepSpecialCharacters(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"tom&jerry.mp4", "other.mp4"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0644))
	}
	e := newTestEngine(t, dir, nil)

	step := pipeline.Step{
		Key: "ff_concat",
		Params: []pipeline.Param{
			{Name: "input", Value: "{{RANDOM_FILE:tom&jerry}}"},
			{Name: "text", Value: `{{DATE:<%Y> "%m"}}`},
			{Name: "path", Value: `{{DATE:a\%d}}`},
		},
	}

	got, err := e.SubstituteStep(step)
	require.NoError(t, err)

	input, _ := got.Get("input")
	assert.Equal(t, "tom&jerry.mp4", input)
	text, _ := got.Get("text")
	assert.Equal(t, `<2024> "03"`, text)
	path, _ := got.Get("path")
	assert.Equal(t, `a\05`, path)
}

func TestContrast(t *testing.T) {
	tests := map[string]string{
		"#FFFFFF": "#000000",
		"#000000": "#FFFFFF",
		"#FFB703": "#000000",
		"#1D3557": "#FFFFFF",
		"#808080": "#FFFFFF",
		"#818181": "#000000",
		"nope":    "#FFFFFF",
	}
	for in, want := range tests {
		assert.Equal(t, want, Contrast(in), in)
	}
}
