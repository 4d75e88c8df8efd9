package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/v2/list"
	"github.com/charmbracelet/bubbles/v2/viewport"
	tea "github.com/charmbracelet/bubbletea/v2"
	"github.com/charmbracelet/lipgloss/v2"
	"github.com/spf13/cobra"

	"metagen/internal/emit"
	"metagen/internal/layout"
	"metagen/internal/meta"
	"metagen/internal/metagen/styles"
	"metagen/internal/pipeline"
)

type viewMode int

const (
	viewRecords viewMode = iota
	viewDetail
)

// recordItem is one row of the record list.
type recordItem struct {
	kind    meta.ItemType
	addr    uint64
	name    string // demangled
	summary string
	detail  string // markdown
}

func (i recordItem) FilterValue() string {
	return fmt.Sprintf("%s %s %x", i.kind, i.name, i.addr)
}

type itemDelegate struct{}

func (d itemDelegate) Height() int                               { return 1 }
func (d itemDelegate) Spacing() int                              { return 0 }
func (d itemDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }

var kindColors = map[meta.ItemType]string{
	meta.ItemFunction: "81",
	meta.ItemData:     "214",
	meta.ItemStruct:   "170",
}

func (d itemDelegate) Render(w io.Writer, m list.Model, index int, listItem list.Item) {
	i, ok := listItem.(recordItem)
	if !ok {
		return
	}
	indicator := " "
	nameStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	if index == m.Index() {
		indicator = ">"
		nameStyle = nameStyle.Bold(true).Foreground(lipgloss.Color("231"))
	}
	kindStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(kindColors[i.kind])).Width(9)
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	fmt.Fprintf(w, " %s %s %s  %s", indicator, kindStyle.Render(i.kind.String()), nameStyle.Render(i.name), dim.Render(i.summary))
}

// browseItems builds the list rows in stream order.
func browseItems(res *pipeline.Result) []list.Item {
	items := make([]list.Item, 0, len(res.Records))
	for _, rec := range res.Records {
		switch r := rec.(type) {
		case *meta.FunctionRef:
			items = append(items, recordItem{
				kind:    meta.ItemFunction,
				addr:    r.Addr,
				name:    emit.DisplayName(r.Name),
				summary: fmt.Sprintf("0x%x  %s", r.Addr, emit.Signature(r)),
				detail:  functionDetail(r),
			})
		case *meta.DataRef:
			items = append(items, recordItem{
				kind:    meta.ItemData,
				addr:    r.Addr,
				name:    emit.DisplayName(r.Name),
				summary: fmt.Sprintf("0x%x  %s", r.Addr, r.Type),
				detail:  dataDetail(r),
			})
		case *meta.StructLayout:
			st, ok := res.Struct(r.Name)
			if !ok || res.Shadowed(r) {
				continue
			}
			items = append(items, recordItem{
				kind:    meta.ItemStruct,
				name:    st.Name,
				summary: structSummary(st),
				detail:  emit.StructMarkdown(st),
			})
		}
	}
	return items
}

func structSummary(st *layout.Struct) string {
	s := fmt.Sprintf("%d bytes, %d fields", st.Size, len(st.Fields))
	if pad := st.Padding(); pad > 0 {
		s += fmt.Sprintf(", %d padding", pad)
	}
	return s
}

func functionDetail(f *meta.FunctionRef) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", emit.DisplayName(f.Name))
	fmt.Fprintf(&b, "```c\n%s;\n```\n\n", emit.Signature(f))
	fmt.Fprintf(&b, "- Address: `0x%x`\n", f.Addr)
	fmt.Fprintf(&b, "- Symbol: `%s`\n", f.Name)
	fmt.Fprintf(&b, "- Convention: %s\n", emit.Convention(f))
	return b.String()
}

func dataDetail(d *meta.DataRef) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", emit.DisplayName(d.Name))
	fmt.Fprintf(&b, "- Address: `0x%x`\n", d.Addr)
	fmt.Fprintf(&b, "- Symbol: `%s`\n", d.Name)
	fmt.Fprintf(&b, "- Type: `%s`\n", d.Type)
	return b.String()
}

type model struct {
	records  list.Model
	viewport viewport.Model
	mode     viewMode
	width    int
	height   int
}

func newModel(title string, items []list.Item) model {
	vp := viewport.New()
	vp.SetWidth(80)
	vp.SetHeight(24)

	records := list.New(items, itemDelegate{}, 80, 24)
	records.SetShowStatusBar(true)
	records.SetFilteringEnabled(true)
	records.Title = title
	records.Styles.Title = lipgloss.NewStyle().
		Foreground(lipgloss.Color("99")).
		MarginLeft(2)

	return model{
		records:  records,
		viewport: vp,
		mode:     viewRecords,
		width:    80,
		height:   24,
	}
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.records.SetWidth(msg.Width)
		m.records.SetHeight(msg.Height - 2)
		m.viewport.SetWidth(msg.Width)
		m.viewport.SetHeight(msg.Height - 2)
		if m.mode == viewDetail {
			m.showSelected()
		}
		return m, nil

	case tea.KeyMsg:
		if m.mode == viewRecords && m.records.FilterState() == list.Filtering {
			if msg.String() == "ctrl+c" {
				return m, tea.Quit
			}
			break
		}
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "enter":
			if m.mode == viewRecords {
				m.showSelected()
				return m, nil
			}
		case "esc", "backspace":
			if m.mode == viewDetail {
				m.mode = viewRecords
				return m, nil
			}
		case "tab":
			if m.mode == viewDetail {
				m.mode = viewRecords
			} else {
				m.showSelected()
			}
			return m, nil
		}
	}

	if m.mode == viewDetail {
		m.viewport, cmd = m.viewport.Update(msg)
	} else {
		m.records, cmd = m.records.Update(msg)
	}
	return m, cmd
}

// showSelected renders the selected record into the detail view.
func (m *model) showSelected() {
	it, ok := m.records.SelectedItem().(recordItem)
	if !ok {
		return
	}
	out, err := styles.Render(it.detail, max(m.width-2, 20), true)
	if err != nil {
		slog.Debug("render detail", "error", err)
		out = it.detail
	}
	m.viewport.SetContent(strings.TrimSuffix(out, "\n"))
	m.viewport.GotoTop()
	m.mode = viewDetail
}

func (m model) View() string {
	content := m.records.View()
	menu := " Enter: layout • /: filter • Q: quit "
	if m.mode == viewDetail {
		content = m.viewport.View()
		menu = " Esc: back • ↑/↓: scroll • Q: quit "
	}

	menuStyle := lipgloss.NewStyle().
		Background(lipgloss.Color("235")).
		Foreground(lipgloss.Color("252")).
		Padding(0, 1).
		Width(m.width)

	return content + "\n" + menuStyle.Render(menu)
}

var browseCmd = &cobra.Command{
	Use:   "browse [image]",
	Short: "Browse records and struct layouts interactively",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		l, err := load(cmd, args[0])
		if err != nil {
			return err
		}
		title := fmt.Sprintf("%s (%d records)", args[0], len(l.res.Records))
		program := tea.NewProgram(
			newModel(title, browseItems(l.res)),
			tea.WithAltScreen(),
			tea.WithContext(cmd.Context()),
		)
		if _, err := program.Run(); err != nil {
			slog.Error("TUI run error", "error", err)
			return fmt.Errorf("TUI error: %v", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(browseCmd)
}
