package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/dagview/pkg/facade"
	"github.com/matzehuels/dagview/pkg/graph"
	"github.com/matzehuels/dagview/pkg/style"
)

// Editor styles
var (
	editorSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	editorDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
	editorAlertStyle    = lipgloss.NewStyle().Foreground(colorYellow)
)

// editorColors is the palette cycled by the color key.
var editorColors = []string{"#3498db", "#e74c3c", "#2ecc71", "#f39c12", "#9b59b6", "#1abc9c", "#95a5a6"}

const (
	opacityStep     = 0.1
	editorBorderW   = 3
	editorMaxAlerts = 3
)

// =============================================================================
// Messages
// =============================================================================

// eventMsg carries a controller event into the bubbletea loop.
type eventMsg facade.Event

// syncMsg refreshes state that may have changed before events were
// subscribed.
type syncMsg struct{}

type exportedMsg struct {
	path string
	err  error
}

// =============================================================================
// EditorModel - Interactive graph editor
// =============================================================================

// EditorModel is the bubbletea model for the terminal editor. It lists the
// document's nodes and drives a facade.Controller with key commands.
type EditorModel struct {
	ctx     context.Context
	ctrl    *facade.Controller
	layouts []string
	outDir  string

	nodes  []graph.Node
	Cursor int
	Offset int
	Height int

	colorIdx int
	shapeIdx int

	running bool
	status  string
	alerts  []string
}

// NewEditorModel creates an editor over a controller with a loaded document.
// Exports are written to outDir.
func NewEditorModel(ctx context.Context, ctrl *facade.Controller, outDir string) EditorModel {
	m := EditorModel{
		ctx:     ctx,
		ctrl:    ctrl,
		layouts: ctrl.Layouts(),
		outDir:  outDir,
		Height:  15,
		running: ctrl.LayoutRunning(),
	}
	if doc := ctrl.Document(); doc != nil {
		m.nodes = doc.Nodes
	}
	return m
}

func (m EditorModel) Init() tea.Cmd {
	return func() tea.Msg { return syncMsg{} }
}

func (m EditorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.Height = max(msg.Height-12, 5)
	case syncMsg:
		m.running = m.ctrl.LayoutRunning()
	case eventMsg:
		m.handleEvent(facade.Event(msg))
	case exportedMsg:
		if msg.err != nil {
			m.pushAlert(msg.err.Error())
		} else {
			m.status = "exported " + msg.path
		}
	}
	return m, nil
}

func (m EditorModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key := msg.String(); key {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "up", "k":
		if m.Cursor > 0 {
			m.Cursor--
			if m.Cursor < m.Offset {
				m.Offset = m.Cursor
			}
		}
	case "down", "j":
		if m.Cursor < len(m.nodes)-1 {
			m.Cursor++
			if m.Cursor >= m.Offset+m.Height {
				m.Offset = m.Cursor - m.Height + 1
			}
		}
	case " ", "enter":
		if id, ok := m.current(); ok {
			m.ctrl.Tap(id)
		}
	case "a":
		ids := make([]string, len(m.nodes))
		for i, n := range m.nodes {
			ids[i] = n.ID
		}
		m.ctrl.Select(ids)
	case "esc":
		m.ctrl.ClearSelection()
	case "l":
		m.applyLayout(m.nextLayout())
	case "1", "2", "3", "4", "5", "6", "7", "8", "9":
		i, _ := strconv.Atoi(key)
		if i <= len(m.layouts) {
			m.applyLayout(m.layouts[i-1])
		}
	case "v":
		m.ctrl.ResetView()
		m.status = "view reset"
	case "R":
		m.ctrl.ResetAllNodesToOriginal()
		m.status = "styles reset"
	case "c":
		color := editorColors[m.colorIdx%len(editorColors)]
		m.colorIdx++
		m.command("color "+color, m.ctrl.ChangeSelectedNodesColor(color))
	case "b":
		color := editorColors[m.colorIdx%len(editorColors)]
		m.command("border "+color, m.ctrl.ChangeSelectedNodesBorder(color, editorBorderW))
	case "+", "=":
		m.changeOpacity(opacityStep)
	case "-":
		m.changeOpacity(-opacityStep)
	case "s":
		shapes := style.Shapes()
		shape := shapes[m.shapeIdx%len(shapes)]
		m.shapeIdx++
		m.command("shape "+shape, m.ctrl.ChangeSelectedNodesShape(shape))
	case "e":
		return m, m.export()
	}
	return m, nil
}

func (m *EditorModel) handleEvent(ev facade.Event) {
	switch ev.Kind {
	case facade.EventLayout:
		m.running = ev.Message == "running"
		switch {
		case ev.Error != "":
			m.pushAlert("layout " + ev.Layout + ": " + ev.Error)
		case m.running:
			m.status = "laying out " + ev.Layout + "..."
		default:
			m.status = "layout " + ev.Layout + " done"
		}
	case facade.EventDocument:
		if doc := m.ctrl.Document(); doc != nil {
			m.nodes = doc.Nodes
			m.Cursor = min(m.Cursor, max(len(m.nodes)-1, 0))
		}
	case facade.EventAlert:
		m.pushAlert(ev.Message)
	}
}

func (m *EditorModel) pushAlert(msg string) {
	m.alerts = append(m.alerts, msg)
	if len(m.alerts) > editorMaxAlerts {
		m.alerts = m.alerts[len(m.alerts)-editorMaxAlerts:]
	}
}

func (m EditorModel) current() (string, bool) {
	if m.Cursor < 0 || m.Cursor >= len(m.nodes) {
		return "", false
	}
	return m.nodes[m.Cursor].ID, true
}

func (m EditorModel) nextLayout() string {
	i := slices.Index(m.layouts, m.ctrl.LayoutKey())
	return m.layouts[(i+1)%len(m.layouts)]
}

func (m *EditorModel) applyLayout(key string) {
	m.ctrl.ApplyLayout(key)
	m.status = "layout " + key
}

func (m *EditorModel) command(desc string, err error) {
	if err != nil {
		m.pushAlert(err.Error())
		return
	}
	m.status = desc
}

// changeOpacity steps the opacity of the selection, starting from the first
// selected node's current value.
func (m *EditorModel) changeOpacity(delta float64) {
	sel := m.ctrl.Selected()
	if len(sel) == 0 {
		m.pushAlert("select nodes first")
		return
	}
	cur := 1.0
	if s, ok := m.ctrl.NodeStyle(sel[0]); ok {
		cur = s.Opacity
	}
	v := min(max(cur+delta, 0), 1)
	m.command(fmt.Sprintf("opacity %.1f", v), m.ctrl.ChangeSelectedNodesOpacity(v))
}

func (m EditorModel) export() tea.Cmd {
	ctx, ctrl, dir := m.ctx, m.ctrl, m.outDir
	return func() tea.Msg {
		exp, err := ctrl.ExportImage(ctx, "png")
		if err != nil {
			return exportedMsg{err: err}
		}
		path := filepath.Join(dir, exp.FileName)
		if err := os.WriteFile(path, exp.Data, 0o644); err != nil {
			return exportedMsg{err: err}
		}
		return exportedMsg{path: path}
	}
}

func (m EditorModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("dagview"))
	b.WriteString("  ")
	layout := styleLayout.Render(m.ctrl.LayoutKey())
	if m.running {
		layout += editorDimStyle.Render(" (running)")
	}
	b.WriteString(layout)
	b.WriteString("\n")
	b.WriteString(editorDimStyle.Render("↑/↓ move  space select  a all  esc clear  l/1-9 layout  v view  c color  b border  +/- opacity  s shape  R reset  e export  q quit"))
	b.WriteString("\n\n")

	if len(m.nodes) == 0 {
		b.WriteString(editorDimStyle.Render("  no nodes"))
		b.WriteString("\n")
	} else {
		b.WriteString(m.nodeTable())
		b.WriteString("\n")
		b.WriteString(editorDimStyle.Render(fmt.Sprintf("  [%d/%d]  %d selected", m.Cursor+1, len(m.nodes), len(m.ctrl.Selected()))))
		b.WriteString("\n")
	}

	if m.status != "" {
		b.WriteString("\n")
		b.WriteString(StyleSuccess.Render(iconSuccess) + " " + m.status)
		b.WriteString("\n")
	}
	for _, a := range m.alerts {
		b.WriteString(editorAlertStyle.Render(iconWarning+" "+a))
		b.WriteString("\n")
	}

	return b.String()
}

func (m EditorModel) nodeTable() string {
	end := min(m.Offset+m.Height, len(m.nodes))
	selected := m.ctrl.Selected()

	rows := make([][]string, 0, end-m.Offset)
	for i := m.Offset; i < end; i++ {
		n := m.nodes[i]
		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		mark := ""
		if slices.Contains(selected, n.ID) {
			mark = "●"
		}
		s, _ := m.ctrl.NodeStyle(n.ID)
		rows = append(rows, []string{
			cursor, mark, n.ID, n.DisplayLabel(), s.EffectiveShape(), s.BackgroundColor,
			fmt.Sprintf("%.1f", s.Opacity), fmt.Sprintf("%.0f×%.0f", s.Width, s.Height),
		})
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "", "Node", "Label", "Shape", "Color", "Opacity", "Size").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styleHeader
			}
			idx := m.Offset + row
			switch {
			case idx == m.Cursor:
				return editorSelectedStyle
			case col >= 4:
				return editorDimStyle
			}
			return StyleValue
		}).
		Render()
}
