// SPDX-License-Identifier: MIT
package config

import (
	"fmt"
	"strconv"
	"strings"

	"spectro/internal/gradient"
	"spectro/internal/log"
)

// Persisted gradient keys.
const (
	gradientKeyFormat = "spectrogram.color.gradient_%02d"
	NumColorsKey      = "spectrogram.color.num_colors"
)

var logger = log.For("config")

// DefaultStops is the built-in gradient, red through blue to black.
var DefaultStops = [gradient.MaxStops]gradient.Stop{
	{R: 65535, G: 0, B: 0},
	{R: 65535, G: 32896, B: 0},
	{R: 65535, G: 65535, B: 0},
	{R: 32896, G: 65535, B: 30840},
	{R: 0, G: 38036, B: 41120},
	{R: 0, G: 8224, B: 25700},
	{R: 0, G: 0, B: 0},
}

// GradientSettings are the persisted gradient stops. All seven stops are
// kept so that lowering and raising Count restores earlier colours.
type GradientSettings struct {
	Stops [gradient.MaxStops]gradient.Stop
	Count int
}

// DefaultGradient returns the built-in seven stop gradient.
func DefaultGradient() GradientSettings {
	return GradientSettings{Stops: DefaultStops, Count: gradient.MaxStops}
}

// Active returns the first Count stops, clamped to [1, 7].
func (g GradientSettings) Active() []gradient.Stop {
	n := min(max(g.Count, 1), gradient.MaxStops)
	return g.Stops[:n]
}

// GradientKey returns the store key of stop i.
func GradientKey(i int) string {
	return fmt.Sprintf(gradientKeyFormat, i)
}

// FormatStop encodes a stop as "R G B".
func FormatStop(s gradient.Stop) string {
	return fmt.Sprintf("%d %d %d", s.R, s.G, s.B)
}

// ParseStop decodes "R G B" with each channel in [0, 65535].
func ParseStop(s string) (gradient.Stop, error) {
	fields := strings.Fields(s)
	if len(fields) != 3 {
		return gradient.Stop{}, fmt.Errorf("colour %q: want 3 components, got %d", s, len(fields))
	}
	var ch [3]uint16
	for i, f := range fields {
		v, err := strconv.ParseUint(f, 10, 16)
		if err != nil {
			return gradient.Stop{}, fmt.Errorf("colour %q: %w", s, err)
		}
		ch[i] = uint16(v)
	}
	return gradient.Stop{R: ch[0], G: ch[1], B: ch[2]}, nil
}

// LoadGradient reads the gradient from store. Missing keys take the default;
// malformed values are logged and replaced by the default for that stop.
func LoadGradient(store Store) GradientSettings {
	g := DefaultGradient()

	for i := range g.Stops {
		key := GradientKey(i)
		raw, ok := store.Get(key)
		if !ok {
			continue
		}
		stop, err := ParseStop(raw)
		if err != nil {
			logger.Warnf("%s: %v, using default %q", key, err, FormatStop(DefaultStops[i]))
			continue
		}
		g.Stops[i] = stop
	}

	if raw, ok := store.Get(NumColorsKey); ok {
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		switch {
		case err != nil:
			logger.Warnf("%s: %v, using %d", NumColorsKey, err, gradient.MaxStops)
		case n < 1 || n > gradient.MaxStops:
			g.Count = min(max(n, 1), gradient.MaxStops)
			logger.Warnf("%s: %d out of range, using %d", NumColorsKey, n, g.Count)
		default:
			g.Count = n
		}
	}

	return g
}

// SaveGradient writes all seven stops and the active count to store.
func SaveGradient(store Store, g GradientSettings) {
	for i, s := range g.Stops {
		store.Set(GradientKey(i), FormatStop(s))
	}
	store.Set(NumColorsKey, strconv.Itoa(min(max(g.Count, 1), gradient.MaxStops)))
}
