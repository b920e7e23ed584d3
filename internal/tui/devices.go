// SPDX-License-Identifier: MIT
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"spectro/internal/audio"
	"spectro/internal/config"
)

var highlightStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#25A065")).
	Bold(true)

// ScreenType defines which picker screen is active.
type ScreenType int

const (
	ListScreen ScreenType = iota
	RateScreen
)

// Sample rates offered after a device is chosen.
var pickerSampleRates = []float64{22050, 44100, 48000, 88200, 96000}

// Selection is the result of the device picker.
type Selection struct {
	DeviceID   int
	SampleRate float64
	Chosen     bool // False when the user quit without choosing.
}

// DeviceLoader returns the host devices. audio.HostDevices in production.
type DeviceLoader func() ([]audio.Device, error)

type devicesMsg struct {
	devices []audio.Device
}

type errMsg struct {
	err error
}

var pickerKeys = struct {
	Quit, Up, Down, Enter, Back key.Binding
}{
	Quit:  key.NewBinding(key.WithKeys("q", "ctrl+c")),
	Up:    key.NewBinding(key.WithKeys("up", "k")),
	Down:  key.NewBinding(key.WithKeys("down", "j")),
	Enter: key.NewBinding(key.WithKeys("enter")),
	Back:  key.NewBinding(key.WithKeys("esc")),
}

// DevicePickerModel lets the user choose an input device and sample rate
// before capture starts.
type DevicePickerModel struct {
	load          DeviceLoader
	devices       []audio.Device // Input capable only.
	selectedIndex int
	viewport      viewport.Model
	ready         bool
	err           error
	activeScreen  ScreenType

	rateIndex int
	selection Selection
}

// NewDevicePickerModel creates a picker that fetches devices with load.
func NewDevicePickerModel(load DeviceLoader) DevicePickerModel {
	return DevicePickerModel{load: load, activeScreen: ListScreen}
}

// Init fetches the device list.
func (m DevicePickerModel) Init() tea.Cmd {
	load := m.load
	return func() tea.Msg {
		devices, err := load()
		if err != nil {
			return errMsg{err}
		}
		return devicesMsg{devices}
	}
}

// Update handles navigation.
func (m DevicePickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-4)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 4
		}
		m.refresh()

	case devicesMsg:
		m.devices = m.devices[:0]
		for _, d := range msg.devices {
			if d.MaxInputChannels > 0 {
				m.devices = append(m.devices, d)
			}
		}
		m.refresh()

	case errMsg:
		m.err = msg.err

	case tea.KeyMsg:
		if key.Matches(msg, pickerKeys.Quit) {
			return m, tea.Quit
		}

		switch m.activeScreen {
		case ListScreen:
			switch {
			case key.Matches(msg, pickerKeys.Up):
				if m.selectedIndex > 0 {
					m.selectedIndex--
				}
			case key.Matches(msg, pickerKeys.Down):
				if m.selectedIndex < len(m.devices)-1 {
					m.selectedIndex++
				}
			case key.Matches(msg, pickerKeys.Enter):
				if len(m.devices) > 0 {
					m.activeScreen = RateScreen
					m.rateIndex = nearestRate(m.devices[m.selectedIndex].DefaultSampleRate)
				}
			}

		case RateScreen:
			switch {
			case key.Matches(msg, pickerKeys.Back):
				m.activeScreen = ListScreen
			case key.Matches(msg, pickerKeys.Up):
				if m.rateIndex > 0 {
					m.rateIndex--
				}
			case key.Matches(msg, pickerKeys.Down):
				if m.rateIndex < len(pickerSampleRates)-1 {
					m.rateIndex++
				}
			case key.Matches(msg, pickerKeys.Enter):
				m.selection = Selection{
					DeviceID:   m.devices[m.selectedIndex].ID,
					SampleRate: pickerSampleRates[m.rateIndex],
					Chosen:     true,
				}
				return m, tea.Quit
			}
		}
		m.refresh()
	}

	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *DevicePickerModel) refresh() {
	if !m.ready {
		return
	}
	if m.activeScreen == ListScreen {
		m.viewport.SetContent(m.renderDevices())
	} else {
		m.viewport.SetContent(m.renderRates())
	}
}

// nearestRate returns the index of the offered rate closest to rate.
func nearestRate(rate float64) int {
	best := 0
	for i, r := range pickerSampleRates {
		if abs(r-rate) < abs(pickerSampleRates[best]-rate) {
			best = i
		}
	}
	return best
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// Selection returns what the user chose.
func (m DevicePickerModel) Selection() Selection {
	return m.selection
}

// View renders the UI.
func (m DevicePickerModel) View() string {
	if m.err != nil {
		return fmt.Sprintf("Error: %v\n\nPress q to exit.", m.err)
	}
	if !m.ready {
		return "Initializing..."
	}

	var title, help string
	if m.activeScreen == ListScreen {
		title = titleStyle.Render("Input Devices")
		help = infoStyle.Render("↑/↓: Navigate • Enter: Choose • q: Quit")
	} else {
		title = titleStyle.Render("Sample Rate")
		help = infoStyle.Render("↑/↓: Change Value • Enter: Start • Esc: Back • q: Quit")
	}

	return fmt.Sprintf("%s\n\n%s\n\n%s", title, m.viewport.View(), help)
}

func (m DevicePickerModel) renderDevices() string {
	if len(m.devices) == 0 {
		return "No input devices found."
	}

	var sb strings.Builder
	for i, d := range m.devices {
		info := fmt.Sprintf("[%d] %s (%s)\n", d.ID, d.Name, d.Kind())
		info += fmt.Sprintf("    Input channels: %d, Latency: %.1f ms\n", d.MaxInputChannels, d.LowInputLatency)
		info += fmt.Sprintf("    Default sample rate: %.0f Hz\n", d.DefaultSampleRate)

		if i == m.selectedIndex {
			info = highlightStyle.Render(info)
		}
		sb.WriteString(info)
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m DevicePickerModel) renderRates() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Device: %s\n\n", m.devices[m.selectedIndex].Name)

	for i, rate := range pickerSampleRates {
		marker := " "
		if i == m.rateIndex {
			marker = "▶"
		}
		line := fmt.Sprintf("  %s %.0f Hz\n", marker, rate)
		if i == m.rateIndex {
			line = highlightStyle.Render(line)
		}
		sb.WriteString(line)
	}
	return sb.String()
}

// PickDevice runs the picker. When the user quits without choosing, the
// returned selection carries the configured defaults and Chosen is false.
func PickDevice(load DeviceLoader) (Selection, error) {
	p := tea.NewProgram(NewDevicePickerModel(load), tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return Selection{}, err
	}
	if sel := final.(DevicePickerModel).Selection(); sel.Chosen {
		return sel, nil
	}
	return Selection{DeviceID: config.DefaultDeviceID, SampleRate: config.DefaultSampleRate}, nil
}
