// Package keyword expands {{...}} placeholders inside serialized step
// configurations just before a step is executed.
package keyword

import (
	"fmt"
	"math/rand/v2"
	"os"
	"strconv"
	"sync"
	"time"
)

// Palette is the fixed set of colours random colour placeholders pick from.
var Palette = []string{
	"#E63946", "#F1FAEE", "#A8DADC", "#457B9D", "#1D3557",
	"#FFB703", "#FB8500", "#8ECAE6", "#219EBC", "#023047",
	"#2A9D8F", "#E9C46A", "#F4A261", "#264653", "#6A4C93",
}

// RunContext holds the state that must stay constant for one pipeline run.
// Create one per run and pass it to every Engine used by that run.
type RunContext struct {
	ConfigDir string
	Started   time.Time

	mu      sync.Mutex
	rng     *rand.Rand
	session string
}

// NewRunContext seeds the run's random source from the process id and the
// start time.
func NewRunContext(configDir string) *RunContext {
	now := time.Now()
	return newRunContext(configDir, now, uint64(os.Getpid()), uint64(now.UnixNano()))
}

// NewSeededRunContext returns a context with a fixed seed.
func NewSeededRunContext(configDir string, seed uint64) *RunContext {
	return newRunContext(configDir, time.Now(), seed, seed)
}

func newRunContext(configDir string, started time.Time, s1, s2 uint64) *RunContext {
	rc := &RunContext{
		ConfigDir: configDir,
		Started:   started,
		rng:       rand.New(rand.NewPCG(s1, s2)),
	}
	rc.session = Palette[rc.rng.IntN(len(Palette))]
	return rc
}

// SessionColour is the colour every step of the run shares.
func (rc *RunContext) SessionColour() string {
	return rc.session
}

func (rc *RunContext) intN(n int) int {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.rng.IntN(n)
}

func (rc *RunContext) pickColour() string {
	return Palette[rc.intN(len(Palette))]
}

// Contrast returns black or white, whichever reads better on top of the
// given "#RRGGBB" colour. Colours that cannot be parsed get white.
func Contrast(hex string) string {
	r, g, b, err := parseHex(hex)
	if err != nil {
		return "#FFFFFF"
	}
	luminance := 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
	if luminance > 128 {
		return "#000000"
	}
	return "#FFFFFF"
}

func parseHex(hex string) (r, g, b uint8, err error) {
	if len(hex) != 7 || hex[0] != '#' {
		return 0, 0, 0, fmt.Errorf("invalid colour %q", hex)
	}
	v, err := strconv.ParseUint(hex[1:], 16, 32)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid colour %q: %w", hex, err)
	}
	return uint8(v >> 16), uint8(v >> 8), uint8(v), nil
}
