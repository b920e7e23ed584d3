// SPDX-License-Identifier: MIT
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	colorful "github.com/lucasb-eyer/go-colorful"

	"spectro/internal/config"
	"spectro/internal/gradient"
	"spectro/internal/render"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5F5F")).
			Bold(true)
)

// Each terminal cell shows two image rows: the upper half block takes the
// top pixel as foreground and the bottom pixel as background.
const halfBlock = "▀"

// chromeLines is the number of terminal lines used by the header and help.
const chromeLines = 2

// maxCachedCells bounds the styled cell cache; it is cleared when full.
const maxCachedCells = 1 << 14

// Spectrogram is the part of a spectrogram instance the viewer drives.
type Spectrogram interface {
	Resize(width, height int)
	Renderer() *render.Renderer
	TopFrequency() float64
	Gradient() config.GradientSettings
	UpdateGradient(g config.GradientSettings) error
	OnConfigChanged() error
}

type keyMap struct {
	Quit   key.Binding
	More   key.Binding
	Fewer  key.Binding
	Reload key.Binding
}

var defaultKeys = keyMap{
	Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	More:   key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "more colours")),
	Fewer:  key.NewBinding(key.WithKeys("-", "_"), key.WithHelp("-", "fewer colours")),
	Reload: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload gradient")),
}

func (k keyMap) help() string {
	parts := make([]string, 0, 4)
	for _, b := range []key.Binding{k.More, k.Fewer, k.Reload, k.Quit} {
		h := b.Help()
		parts = append(parts, h.Key+": "+h.Desc)
	}
	return strings.Join(parts, " • ")
}

type tickMsg time.Time

func tick(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// ViewerModel is the Bubble Tea model that paints the spectrogram into the
// terminal.
type ViewerModel struct {
	sg       Spectrogram
	level    func() float64 // Input peak in dBFS; nil hides the meter.
	interval time.Duration
	keys     keyMap
	cells    *cellCache

	width, height int // Terminal size.
	ready         bool
	status        string
	err           error
}

// NewViewerModel creates a viewer that refreshes every interval. level may
// be nil.
func NewViewerModel(sg Spectrogram, level func() float64, interval time.Duration) ViewerModel {
	if interval <= 0 {
		interval = config.DefaultInterval
	}
	return ViewerModel{
		sg:       sg,
		level:    level,
		interval: interval,
		keys:     defaultKeys,
		cells:    newCellCache(),
	}
}

// Init starts the refresh ticker.
func (m ViewerModel) Init() tea.Cmd {
	return tick(m.interval)
}

// Update handles input and window changes.
func (m ViewerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.ready = true
		w, h := m.imageSize()
		m.sg.Resize(w, h)

	case tickMsg:
		return m, tick(m.interval)

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.More):
			m.changeStops(1)
		case key.Matches(msg, m.keys.Fewer):
			m.changeStops(-1)
		case key.Matches(msg, m.keys.Reload):
			if err := m.sg.OnConfigChanged(); err != nil {
				m.err = err
			} else {
				m.err = nil
				m.status = "gradient reloaded"
			}
		}
	}
	return m, nil
}

func (m *ViewerModel) changeStops(delta int) {
	g := m.sg.Gradient()
	n := min(max(g.Count+delta, 1), gradient.MaxStops)
	if n == g.Count {
		return
	}
	g.Count = n
	if err := m.sg.UpdateGradient(g); err != nil {
		m.err = err
		return
	}
	m.err = nil
	m.status = fmt.Sprintf("%d colours", n)
}

// imageSize maps the terminal to image pixels, two rows per line.
func (m ViewerModel) imageSize() (width, height int) {
	rows := max(m.height-chromeLines, 0)
	return max(m.width, 0), rows * 2
}

// View renders the header, the image and the key help.
func (m ViewerModel) View() string {
	if !m.ready {
		return "Initializing..."
	}

	var sb strings.Builder
	sb.WriteString(m.header())
	sb.WriteByte('\n')
	sb.WriteString(m.cells.render(m.sg.Renderer()))
	sb.WriteString(infoStyle.Render(m.keys.help()))
	return sb.String()
}

func (m ViewerModel) header() string {
	title := titleStyle.Render("Spectrogram")
	info := fmt.Sprintf(" %d colours • %d columns • %.1f kHz",
		len(m.sg.Gradient().Active()), m.sg.Renderer().Drawn(), m.sg.TopFrequency()/1000)
	if m.level != nil {
		info += fmt.Sprintf(" • %.1f dBFS", m.level())
	}
	if m.status != "" {
		info += " • " + m.status
	}
	line := title + infoStyle.Render(info)
	if m.err != nil {
		line += " " + errorStyle.Render(m.err.Error())
	}
	return line
}

// cellCache draws the image with half blocks and keeps the styled cell for
// each colour pair, so a refresh only styles pairs it has not seen.
type cellCache struct {
	cells  map[uint64]string
	pixels []uint32
}

func newCellCache() *cellCache {
	return &cellCache{cells: make(map[uint64]string)}
}

// render returns the image as one line per pixel pair.
func (c *cellCache) render(r *render.Renderer) string {
	w, h := r.Size()
	c.pixels = r.Pixels(c.pixels)
	if w == 0 || len(c.pixels) != w*h {
		// Resized between the two calls; the next refresh catches up.
		return ""
	}

	var sb strings.Builder
	for y := 0; y+1 < h; y += 2 {
		top, bottom := c.pixels[y*w:(y+1)*w], c.pixels[(y+1)*w:(y+2)*w]
		for x := range w {
			sb.WriteString(c.cell(top[x], bottom[x]))
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

func (c *cellCache) cell(top, bottom uint32) string {
	k := uint64(top)<<32 | uint64(bottom)
	if s, ok := c.cells[k]; ok {
		return s
	}
	if len(c.cells) >= maxCachedCells {
		clear(c.cells)
	}
	s := lipgloss.NewStyle().
		Foreground(hexColor(top)).
		Background(hexColor(bottom)).
		Render(halfBlock)
	c.cells[k] = s
	return s
}

// hexColor converts a packed 0xFFRRGGBB pixel to a terminal colour.
func hexColor(p uint32) lipgloss.Color {
	c := colorful.Color{
		R: float64(uint8(p>>16)) / 255,
		G: float64(uint8(p>>8)) / 255,
		B: float64(uint8(p)) / 255,
	}
	return lipgloss.Color(c.Hex())
}

// Run shows the viewer until the user quits.
func Run(sg Spectrogram, level func() float64, interval time.Duration) error {
	p := tea.NewProgram(
		NewViewerModel(sg, level, interval),
		tea.WithAltScreen(),
	)
	_, err := p.Run()
	return err
}
