package keyword

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/heimdex/heimdex-flow/internal/pipeline"
)

// Placeholder names.
const (
	envPrefix       = "ENV_"
	phDate          = "DATE"
	phFolderName    = "FOLDER_NAME"
	phFolderTitle   = "FOLDER_TITLE"
	phRandomFile    = "RANDOM_FILE"
	phRandomColour  = "RANDOM_COLOUR"
	phRandomContr   = "RANDOM_COLOUR_CONTRAST"
	phSessionColour = "SESSION_COLOUR"
	phSessionContr  = "SESSION_COLOUR_CONTRAST"
	phCalc          = "CALC"
)

var placeholder = regexp.MustCompile(`\{\{\s*([A-Za-z][A-Za-z0-9_]*)\s*(?::([^}]*))?\}\}`)

// Engine expands placeholders. Values are JSON-string escaped because the
// text being expanded is a serialized configuration.
type Engine struct {
	rc     *RunContext
	logger *slog.Logger

	// Now and LookupEnv default to the wall clock and the process
	// environment.
	Now       func() time.Time
	LookupEnv func(string) (string, bool)
}

func NewEngine(rc *RunContext, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine{
		rc:        rc,
		logger:    logger,
		Now:       time.Now,
		LookupEnv: os.LookupEnv,
	}
}

// call holds the picks made during one Substitute call so paired
// placeholders agree with each other.
type call struct {
	colour string
	files  map[string]string
}

// Substitute expands every recognized placeholder in text. Unrecognized or
// unevaluable placeholders are left as they are.
func (e *Engine) Substitute(text string) string {
	c := &call{files: make(map[string]string)}
	return placeholder.ReplaceAllStringFunc(text, func(match string) string {
		m := placeholder.FindStringSubmatch(match)
		name, arg := m[1], strings.TrimSpace(unescapeArg(m[2]))

		value, ok := e.resolve(c, name, arg)
		if !ok {
			return match
		}
		return escapeJSON(value)
	})
}

func (e *Engine) resolve(c *call, name, arg string) (string, bool) {
	if strings.HasPrefix(name, envPrefix) {
		v, _ := e.LookupEnv(strings.TrimPrefix(name, envPrefix))
		return strings.ReplaceAll(v, "_", " "), true
	}

	switch name {
	case phDate:
		layout := arg
		if layout == "" {
			layout = "%Y-%m-%d"
		}
		return FormatDate(e.Now(), layout), true

	case phFolderName:
		return e.folderName(), true

	case phFolderTitle:
		return strings.ReplaceAll(e.folderName(), "_", " "), true

	case phRandomFile:
		if f, ok := c.files[arg]; ok {
			return f, true
		}
		f, err := e.randomFile(arg)
		if err != nil {
			e.logger.Warn("random file pick failed", "dir", e.rc.ConfigDir, "filter", arg, "error", err)
			return "", true
		}
		c.files[arg] = f
		return f, true

	case phRandomColour, phRandomContr:
		if c.colour == "" {
			c.colour = e.rc.pickColour()
		}
		if name == phRandomContr {
			return Contrast(c.colour), true
		}
		return c.colour, true

	case phSessionColour:
		return e.rc.SessionColour(), true

	case phSessionContr:
		return Contrast(e.rc.SessionColour()), true

	case phCalc:
		f, err := Calc(arg)
		if err != nil {
			e.logger.Warn("calc placeholder left unexpanded", "error", err)
			return "", false
		}
		return formatNumber(f), true
	}

	return "", false
}

func (e *Engine) folderName() string {
	dir := e.rc.ConfigDir
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	return filepath.Base(dir)
}

func (e *Engine) randomFile(filter string) (string, error) {
	files, err := mediaFiles(e.rc.ConfigDir, filter)
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		return "", fmt.Errorf("no media files match %q", filter)
	}
	return files[e.rc.intN(len(files))], nil
}

// SubstituteStep expands placeholders in the step's serialized form and
// decodes the result back into a step with the same key.
func (e *Engine) SubstituteStep(step pipeline.Step) (pipeline.Step, error) {
	raw, err := step.MarshalJSON()
	if err != nil {
		return pipeline.Step{}, fmt.Errorf("encode step %s: %w", step.Key, err)
	}

	out := pipeline.Step{Key: step.Key}
	if err := out.UnmarshalJSON([]byte(e.Substitute(string(raw)))); err != nil {
		return pipeline.Step{}, fmt.Errorf("decode step %s: %w", step.Key, err)
	}
	return out, nil
}

// unescapeArg reads an argument as the JSON string content it was
// serialized as. Text that is not valid string content is used as is.
func unescapeArg(arg string) string {
	if !strings.Contains(arg, `\`) {
		return arg
	}
	var out string
	if err := json.Unmarshal([]byte(`"`+arg+`"`), &out); err != nil {
		return arg
	}
	return out
}

func escapeJSON(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return s
	}
	b := bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
	return string(b[1 : len(b)-1])
}
