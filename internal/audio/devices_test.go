// SPDX-License-Identifier: MIT
package audio

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gordonklaus/portaudio"
)

// fakeHost is a device table served in place of PortAudio.
var fakeHost = []*portaudio.DeviceInfo{
	{Name: "Speakers", MaxOutputChannels: 2, DefaultSampleRate: 48000},
	{
		Name:                    "Built-in Microphone",
		MaxInputChannels:        1,
		DefaultSampleRate:       44100,
		DefaultLowInputLatency:  2500 * time.Microsecond,
		DefaultHighInputLatency: 10 * time.Millisecond,
	},
	{Name: "Interface", MaxInputChannels: 8, MaxOutputChannels: 8, DefaultSampleRate: 96000},
}

// withHost replaces the PortAudio device calls for the duration of a test.
func withHost(t *testing.T, devices []*portaudio.DeviceInfo, err error) {
	t.Helper()
	origDevices, origDefault := paLibDevicesFunc, paLibDefaultInputDeviceFunc
	t.Cleanup(func() {
		paLibDevicesFunc, paLibDefaultInputDeviceFunc = origDevices, origDefault
	})

	paLibDevicesFunc = func() ([]*portaudio.DeviceInfo, error) {
		return devices, err
	}
	paLibDefaultInputDeviceFunc = func() (*portaudio.DeviceInfo, error) {
		if err != nil {
			return nil, err
		}
		return devices[1], nil
	}
}

func TestHostDevices(t *testing.T) {
	withHost(t, fakeHost, nil)

	devices, err := HostDevices()
	if err != nil {
		t.Fatalf("HostDevices error: %v", err)
	}
	if len(devices) != len(fakeHost) {
		t.Fatalf("got %d devices, want %d", len(devices), len(fakeHost))
	}
	for i, d := range devices {
		if d.ID != i || d.Name != fakeHost[i].Name {
			t.Errorf("device %d = [%d] %q, want [%d] %q", i, d.ID, d.Name, i, fakeHost[i].Name)
		}
	}

	mic := devices[1]
	if mic.LowInputLatency != 2.5 || mic.HighInputLatency != 10 {
		t.Errorf("latency = %v/%v ms, want 2.5/10", mic.LowInputLatency, mic.HighInputLatency)
	}
	if mic.Kind() != "Input" || devices[2].Kind() != "Input/Output" {
		t.Errorf("kinds = %q, %q", mic.Kind(), devices[2].Kind())
	}
}

func TestHostDevicesEmptyOrFailing(t *testing.T) {
	tests := []struct {
		name    string
		devices []*portaudio.DeviceInfo
		err     error
		wantErr bool
	}{
		{"No devices", nil, nil, false},
		{"Not initialized", nil, errors.New("PortAudio not initialized"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withHost(t, tt.devices, tt.err)

			devices, err := HostDevices()
			if tt.wantErr {
				if err == nil || !strings.Contains(err.Error(), "not initialized") {
					t.Errorf("HostDevices error = %v, want not initialized", err)
				}
				if devices != nil {
					t.Errorf("devices = %v on error, want nil", devices)
				}
				return
			}
			if err != nil {
				t.Fatalf("HostDevices error: %v", err)
			}
			if devices == nil || len(devices) != 0 {
				t.Errorf("devices = %#v, want empty slice", devices)
			}
		})
	}
}

func TestInputDevice(t *testing.T) {
	withHost(t, fakeHost, nil)

	tests := []struct {
		name     string
		id       int
		wantName string
		wantErr  string
	}{
		{"Default", -1, "Built-in Microphone", ""},
		{"Input only", 1, "Built-in Microphone", ""},
		{"Duplex", 2, "Interface", ""},
		{"Output only", 0, "", "does not support input"},
		{"Negative ID", -2, "", "invalid device ID"},
		{"Too high ID", len(fakeHost), "", "invalid device ID"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev, err := InputDevice(tt.id)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("InputDevice(%d) error = %v, want %q", tt.id, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("InputDevice(%d) error: %v", tt.id, err)
			}
			if dev.Name != tt.wantName {
				t.Errorf("InputDevice(%d) = %q, want %q", tt.id, dev.Name, tt.wantName)
			}
		})
	}
}

func TestInputDeviceHostError(t *testing.T) {
	withHost(t, nil, errors.New("host API unavailable"))

	for _, id := range []int{-1, 0} {
		if _, err := InputDevice(id); err == nil || !strings.Contains(err.Error(), "host API unavailable") {
			t.Errorf("InputDevice(%d) error = %v", id, err)
		}
	}
}

func TestListDevices(t *testing.T) {
	withHost(t, fakeHost, nil)

	var buf bytes.Buffer
	if err := ListDevices(&buf); err != nil {
		t.Fatalf("ListDevices: %v", err)
	}
	for _, want := range []string{
		"[0] Speakers (Output)",
		"[1] Built-in Microphone (Input)",
		"Latency: Low=2.50ms, High=10.00ms",
		"[2] Interface (Input/Output)",
	} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("output missing %q:\n%s", want, buf.String())
		}
	}

	withHost(t, nil, errors.New("host API unavailable"))
	buf.Reset()
	if err := ListDevices(&buf); err == nil {
		t.Error("ListDevices succeeded without a host")
	}
	if buf.Len() != 0 {
		t.Errorf("ListDevices wrote %q on error", buf.String())
	}
}

func TestWriteDevices(t *testing.T) {
	devices := []Device{
		{ID: 0, Name: "Built-in Microphone", MaxInputChannels: 2, DefaultSampleRate: 48000, LowInputLatency: 2.5, HighInputLatency: 10},
		{ID: 1, Name: "Speakers", MaxOutputChannels: 2, DefaultSampleRate: 44100},
	}

	var buf bytes.Buffer
	WriteDevices(&buf, devices)
	out := buf.String()
	for _, want := range []string{
		"Available Audio Devices",
		"[0] Built-in Microphone (Input)",
		"Input channels: 2, Output channels: 0",
		"Default sample rate: 48000 Hz",
		"[1] Speakers (Output)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	WriteDevices(&buf, nil)
	if !strings.Contains(buf.String(), "(none)") {
		t.Errorf("empty list output = %q", buf.String())
	}
}

func TestDeviceKind(t *testing.T) {
	tests := []struct {
		device Device
		want   string
	}{
		{Device{MaxInputChannels: 2}, "Input"},
		{Device{MaxOutputChannels: 2}, "Output"},
		{Device{MaxInputChannels: 1, MaxOutputChannels: 1}, "Input/Output"},
		{Device{}, "Unknown"},
	}
	for _, tt := range tests {
		if got := tt.device.Kind(); got != tt.want {
			t.Errorf("Kind(%+v) = %q, want %q", tt.device, got, tt.want)
		}
	}
}

func TestInitializeTerminate(t *testing.T) {
	origInit, origTerm := paLibInitialize, paLibTerminate
	t.Cleanup(func() { paLibInitialize, paLibTerminate = origInit, origTerm })

	tests := []struct {
		name string
		err  error
	}{
		{"Success", nil},
		{"Failure", errors.New("no audio server")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			paLibInitialize = func() error { return tt.err }
			paLibTerminate = func() error { return tt.err }

			for op, err := range map[string]error{"Initialize": Initialize(), "Terminate": Terminate()} {
				if !errors.Is(err, tt.err) {
					t.Errorf("%s error = %v, want %v", op, err, tt.err)
				}
			}
		})
	}
}
