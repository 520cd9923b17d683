package main

import (
	"context"
	"fmt"
	"image"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	svgpng "github.com/wippyai/svgpng"
	"github.com/wippyai/svgpng/errors"
	"github.com/wippyai/svgpng/runtime"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type field int

const (
	fieldWidth field = iota
	fieldHeight
	fieldZoom
	fieldDPI
	fieldBackground
	fieldExportID
	fieldCount
)

var fieldNames = [fieldCount]string{"width", "height", "zoom", "dpi", "background", "export id"}

// chromeLines is the number of lines View uses around the preview.
const chromeLines = int(fieldCount) + 8

type interactiveModel struct {
	ctx      context.Context
	rt       *runtime.Runtime
	base     svgpng.Options
	err      error
	filename string
	doc      string
	preview  string
	summary  string
	inputs   []textinput.Model
	focusIdx int
	width    int
	height   int
	png      []byte
	size     image.Point
	busy     bool
}

type renderedMsg struct {
	err     error
	png     []byte
	elapsed time.Duration
}

func runInteractive(ctx context.Context, rt *runtime.Runtime, cfg *config) error {
	doc, err := os.ReadFile(cfg.in)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}
	m := newInteractiveModel(ctx, rt, cfg.in, string(doc), cfg.opts)
	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

func newInteractiveModel(ctx context.Context, rt *runtime.Runtime, filename, doc string, base svgpng.Options) *interactiveModel {
	m := &interactiveModel{
		ctx:      ctx,
		rt:       rt,
		base:     base,
		filename: filename,
		doc:      doc,
		inputs:   make([]textinput.Model, fieldCount),
	}
	initial := [fieldCount]string{
		optionalString(base.Width),
		optionalString(base.Height),
		optionalString(base.Zoom),
		"",
		base.Background,
		base.ExportID,
	}
	if base.DPI != 0 {
		initial[fieldDPI] = strconv.Itoa(base.DPI)
	}
	for i := range m.inputs {
		ti := textinput.New()
		ti.Prompt = labelStyle.Render(fmt.Sprintf("%-11s", fieldNames[i]+":"))
		ti.Placeholder = "unset"
		ti.Width = 24
		ti.SetValue(initial[i])
		if i == 0 {
			ti.Focus()
		}
		m.inputs[i] = ti
	}
	return m
}

func optionalString[T int | float32](v *T) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(*v)
}

func (m *interactiveModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.render())
}

// options builds render options from the form, on top of the command line.
func (m *interactiveModel) options() (*svgpng.Options, error) {
	opts := m.base
	val := func(f field) string { return strings.TrimSpace(m.inputs[f].Value()) }

	var err error
	if opts.Width, err = parseOptionalInt(val(fieldWidth)); err != nil {
		return nil, fmt.Errorf("width: %w", err)
	}
	if opts.Height, err = parseOptionalInt(val(fieldHeight)); err != nil {
		return nil, fmt.Errorf("height: %w", err)
	}
	opts.Zoom = nil
	if s := val(fieldZoom); s != "" {
		z, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return nil, fmt.Errorf("zoom: %w", err)
		}
		opts.Zoom = svgpng.Ptr(float32(z))
	}
	opts.DPI = 0
	if s := val(fieldDPI); s != "" {
		if opts.DPI, err = strconv.Atoi(s); err != nil {
			return nil, fmt.Errorf("dpi: %w", err)
		}
	}
	opts.Background = val(fieldBackground)
	opts.ExportID = val(fieldExportID)
	return &opts, nil
}

func parseOptionalInt(s string) (*int, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (m *interactiveModel) render() tea.Cmd {
	opts, err := m.options()
	if err != nil {
		return func() tea.Msg { return renderedMsg{err: err} }
	}
	m.busy = true
	rt, ctx, doc := m.rt, m.ctx, m.doc
	return func() tea.Msg {
		start := time.Now()
		png, err := rt.Render(ctx, doc, opts)
		return renderedMsg{png: png, err: err, elapsed: time.Since(start)}
	}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit

		case "enter":
			if !m.busy {
				return m, m.render()
			}
			return m, nil

		case "tab", "down":
			m.focus((m.focusIdx + 1) % len(m.inputs))
			return m, nil

		case "shift+tab", "up":
			m.focus((m.focusIdx + len(m.inputs) - 1) % len(m.inputs))
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.refreshPreview()
		return m, nil

	case renderedMsg:
		m.busy = false
		m.err = msg.err
		m.png = msg.png
		if msg.err == nil {
			m.summary = fmt.Sprintf("%d bytes in %s", len(msg.png), msg.elapsed.Round(time.Millisecond))
		}
		m.refreshPreview()
		return m, nil
	}

	var cmd tea.Cmd
	m.inputs[m.focusIdx], cmd = m.inputs[m.focusIdx].Update(msg)
	return m, cmd
}

func (m *interactiveModel) focus(i int) {
	m.inputs[m.focusIdx].Blur()
	m.focusIdx = i
	m.inputs[m.focusIdx].Focus()
}

func (m *interactiveModel) refreshPreview() {
	m.preview = ""
	if m.err != nil || len(m.png) == 0 {
		return
	}
	cols, rows := m.width, m.height-chromeLines
	if cols <= 0 || rows <= 0 {
		cols, rows = 60, 20
	}
	preview, size, err := renderPreview(m.png, cols, rows)
	if err != nil {
		m.err = err
		return
	}
	m.preview = preview
	m.size = size
}

func (m *interactiveModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("SVG Render"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	b.WriteString("\n\n")

	for _, input := range m.inputs {
		b.WriteString(input.View())
		b.WriteString("\n")
	}
	b.WriteString("\n")

	switch {
	case m.busy:
		b.WriteString("Rendering...")
	case m.err != nil:
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error (%s): %v", errors.ClassOf(m.err), m.err)))
	case m.summary != "":
		b.WriteString(resultStyle.Render(fmt.Sprintf("%dx%d, %s", m.size.X, m.size.Y, m.summary)))
	}
	b.WriteString("\n\n")

	if m.preview != "" {
		b.WriteString(m.preview)
		b.WriteString("\n\n")
	}

	b.WriteString(helpStyle.Render("tab/↑/↓ field • enter render • esc quit"))
	return b.String()
}
