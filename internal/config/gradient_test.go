// SPDX-License-Identifier: MIT
package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"spectro/internal/gradient"
	"spectro/internal/log"
)

func TestGradientKey(t *testing.T) {
	if got := GradientKey(0); got != "spectrogram.color.gradient_00" {
		t.Errorf("GradientKey(0) = %q", got)
	}
	if got := GradientKey(6); got != "spectrogram.color.gradient_06" {
		t.Errorf("GradientKey(6) = %q", got)
	}
}

func TestParseStop(t *testing.T) {
	tests := []struct {
		in      string
		want    gradient.Stop
		wantErr bool
	}{
		{"65535 32896 0", gradient.Stop{R: 65535, G: 32896}, false},
		{"  1   2 3 ", gradient.Stop{R: 1, G: 2, B: 3}, false},
		{"0 0 0", gradient.Stop{}, false},
		{"1 2", gradient.Stop{}, true},
		{"1 2 3 4", gradient.Stop{}, true},
		{"red green blue", gradient.Stop{}, true},
		{"65536 0 0", gradient.Stop{}, true},
		{"-1 0 0", gradient.Stop{}, true},
		{"", gradient.Stop{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStop(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseStop(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseStop(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestLoadGradient_EmptyStoreUsesDefaults(t *testing.T) {
	g := LoadGradient(&MapStore{})
	if g.Count != gradient.MaxStops {
		t.Errorf("Count = %d, want %d", g.Count, gradient.MaxStops)
	}
	if g.Stops != DefaultStops {
		t.Errorf("Stops = %v, want defaults", g.Stops)
	}
	if len(g.Active()) != gradient.MaxStops {
		t.Errorf("len(Active()) = %d", len(g.Active()))
	}
}

func TestLoadGradient_MalformedFallsBackPerStop(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	store := &MapStore{}
	store.Set(GradientKey(0), "1 2 3")
	store.Set(GradientKey(1), "not a colour")
	store.Set(GradientKey(2), "10 20")
	store.Set(NumColorsKey, "3")

	g := LoadGradient(store)
	if g.Stops[0] != (gradient.Stop{R: 1, G: 2, B: 3}) {
		t.Errorf("stop 0 = %+v", g.Stops[0])
	}
	if g.Stops[1] != DefaultStops[1] || g.Stops[2] != DefaultStops[2] {
		t.Errorf("malformed stops = %+v %+v, want defaults", g.Stops[1], g.Stops[2])
	}
	if g.Count != 3 {
		t.Errorf("Count = %d, want 3", g.Count)
	}
	if !strings.Contains(buf.String(), "gradient_01") || !strings.Contains(buf.String(), "[WARN]") {
		t.Errorf("expected a warning naming gradient_01, got %q", buf.String())
	}
}

func TestLoadGradient_CountOutOfRange(t *testing.T) {
	log.SetOutput(&bytes.Buffer{})
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	tests := []struct {
		raw  string
		want int
	}{
		{"0", 1},
		{"12", gradient.MaxStops},
		{"two", gradient.MaxStops},
		{" 4 ", 4},
	}
	for _, tt := range tests {
		store := &MapStore{}
		store.Set(NumColorsKey, tt.raw)
		if got := LoadGradient(store).Count; got != tt.want {
			t.Errorf("num_colors %q: Count = %d, want %d", tt.raw, got, tt.want)
		}
	}
}

func TestSaveGradientRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "gradient.yaml")
	store, err := OpenFileStore(path)
	if err != nil {
		t.Fatalf("OpenFileStore: %v", err)
	}

	g := DefaultGradient()
	g.Stops[3] = gradient.Stop{R: 100, G: 200, B: 300}
	g.Count = 4
	SaveGradient(store, g)
	if err := store.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reopened, err := OpenFileStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got := LoadGradient(reopened)
	if got != g {
		t.Errorf("round trip = %+v, want %+v", got, g)
	}
	if raw, _ := reopened.Get(GradientKey(0)); raw != "65535 0 0" {
		t.Errorf("gradient_00 = %q", raw)
	}
	if len(got.Active()) != 4 {
		t.Errorf("len(Active()) = %d, want 4", len(got.Active()))
	}
}

func TestFileStoreLoadPicksUpExternalEdits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gradient.yaml")
	store, err := OpenFileStore(path)
	if err != nil {
		t.Fatalf("OpenFileStore: %v", err)
	}
	if _, ok := store.Get(NumColorsKey); ok {
		t.Fatal("new store should be empty")
	}

	content := "spectrogram.color.num_colors: 2\nspectrogram.color.gradient_00: \"0 0 65535\"\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	if err := store.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	g := LoadGradient(store)
	if g.Count != 2 || g.Stops[0] != (gradient.Stop{B: 65535}) {
		t.Errorf("after reload = %+v", g)
	}
}

func TestFileStoreParseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gradient.yaml")
	if err := os.WriteFile(path, []byte("- just\n- a list\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenFileStore(path); err == nil || !strings.Contains(err.Error(), "failed to parse store") {
		t.Errorf("OpenFileStore error = %v", err)
	}
}

func TestOpenStore(t *testing.T) {
	s, err := OpenStore("")
	if err != nil {
		t.Fatalf("OpenStore(\"\"): %v", err)
	}
	if _, ok := s.(*MapStore); !ok {
		t.Errorf("OpenStore(\"\") = %T, want *MapStore", s)
	}

	s, err = OpenStore(filepath.Join(t.TempDir(), "g.yaml"))
	if err != nil {
		t.Fatalf("OpenStore(path): %v", err)
	}
	if _, ok := s.(*FileStore); !ok {
		t.Errorf("OpenStore(path) = %T, want *FileStore", s)
	}
}
