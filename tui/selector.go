// Package tui implements the interactive selection session as a
// bubbletea program: a query line, a live-filtered multi-select list,
// and an optional preview pane for the item under the cursor.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mkrol/marginalia"
	"github.com/sahilm/fuzzy"
)

// Ensure Selector implements marginalia.Selector at compile time.
var _ marginalia.Selector = (*Selector)(nil)

// Selector runs selection sessions in the terminal. The session
// blocks until a terminating gesture; the terminal is restored before
// Select returns.
type Selector struct{}

// NewSelector creates a new Selector.
func NewSelector() *Selector {
	return &Selector{}
}

// Select runs one interactive session over the given items.
func (s *Selector) Select(ctx context.Context, items []marginalia.SelectItem, opts marginalia.SelectOptions) (*marginalia.SelectionResult, error) {
	p := tea.NewProgram(NewModel(items, opts), tea.WithContext(ctx), tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return nil, marginalia.Errorf(marginalia.ESEARCH, "interactive session failed: %v", err)
	}
	m, ok := final.(Model)
	if !ok {
		return nil, marginalia.Errorf(marginalia.ESEARCH, "interactive session returned unexpected model")
	}
	return m.Result(), nil
}

var (
	cursorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	matchStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Underline(true)
	headerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	previewStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	countStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// match pairs an item index with the byte positions its line matched.
type match struct {
	item    int
	indexes []int
}

// Model is the bubbletea model behind a selection session. It is
// exported so session behavior can be driven directly in tests.
type Model struct {
	items    []marginalia.SelectItem
	opts     marginalia.SelectOptions
	input    textinput.Model
	matches  []match
	cursor   int
	selected map[int]struct{}
	gesture  marginalia.Gesture
	width    int
	height   int
}

// NewModel creates the session model. The session starts unfiltered
// with nothing selected, and reports GestureAbort unless a
// terminating key says otherwise.
func NewModel(items []marginalia.SelectItem, opts marginalia.SelectOptions) Model {
	input := textinput.New()
	input.Prompt = opts.Prompt
	if input.Prompt == "" {
		input.Prompt = "> "
	}
	input.Focus()

	m := Model{
		items:    items,
		opts:     opts,
		input:    input,
		selected: make(map[int]struct{}),
		gesture:  marginalia.GestureAbort,
		height:   24,
	}
	m.refilter()
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.gesture = marginalia.GestureAbort
			return m, tea.Quit

		case "enter":
			m.gesture = marginalia.GestureAccept
			return m, tea.Quit

		case "ctrl+t":
			if m.opts.Actions {
				m.gesture = marginalia.GestureAddTag
				return m, tea.Quit
			}

		case "shift+left":
			if m.opts.Actions {
				m.gesture = marginalia.GestureRemoveTag
				return m, tea.Quit
			}

		case "shift+right":
			if m.opts.Actions {
				m.gesture = marginalia.GestureDelete
				return m, tea.Quit
			}

		case "shift+up":
			if m.opts.Actions {
				m.gesture = marginalia.GestureExport
				return m, tea.Quit
			}

		case "tab":
			m.toggleCursor()
			return m, nil

		case "ctrl+a":
			for _, mt := range m.matches {
				m.selected[mt.item] = struct{}{}
			}
			return m, nil

		case "up", "ctrl+p":
			if m.cursor > 0 {
				m.cursor--
			}
			return m, nil

		case "down", "ctrl+n":
			if m.cursor < len(m.matches)-1 {
				m.cursor++
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.refilter()
	return m, cmd
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	if m.opts.Header != "" {
		b.WriteString(headerStyle.Render(m.opts.Header))
		b.WriteString("\n")
	}

	if m.opts.Preview {
		if item, ok := m.itemUnderCursor(); ok && item.Preview != "" {
			b.WriteString(previewStyle.Width(max(20, m.width-4)).Render(item.Preview))
			b.WriteString("\n")
		}
	}

	b.WriteString(m.input.View())
	b.WriteString(countStyle.Render(fmt.Sprintf("  %d selected, %d/%d shown",
		len(m.selected), len(m.matches), len(m.items))))
	b.WriteString("\n")

	start, end := m.window()
	for i := start; i < end; i++ {
		mt := m.matches[i]
		marker := "  "
		if i == m.cursor {
			marker = cursorStyle.Render("> ")
		}
		check := "  "
		if _, ok := m.selected[mt.item]; ok {
			check = selectedStyle.Render("* ")
		}
		b.WriteString(marker)
		b.WriteString(check)
		b.WriteString(highlightLine(m.items[mt.item].Line, mt.indexes))
		b.WriteString("\n")
	}

	return b.String()
}

// Result builds the session outcome. An aborted session reports an
// empty selection regardless of what was toggled.
func (m Model) Result() *marginalia.SelectionResult {
	res := &marginalia.SelectionResult{
		Query:   m.input.Value(),
		Gesture: m.gesture,
	}
	if m.gesture == marginalia.GestureAbort {
		return res
	}
	for i := range m.items {
		if _, ok := m.selected[i]; ok {
			res.IDs = append(res.IDs, m.items[i].ID)
		}
	}
	return res
}

// VisibleIDs returns the IDs currently passing the filter, in display
// order.
func (m Model) VisibleIDs() []string {
	ids := make([]string, 0, len(m.matches))
	for _, mt := range m.matches {
		ids = append(ids, m.items[mt.item].ID)
	}
	return ids
}

func (m *Model) toggleCursor() {
	if len(m.matches) == 0 {
		return
	}
	item := m.matches[m.cursor].item
	if _, ok := m.selected[item]; ok {
		delete(m.selected, item)
	} else {
		m.selected[item] = struct{}{}
	}
	if m.cursor < len(m.matches)-1 {
		m.cursor++
	}
}

func (m Model) itemUnderCursor() (marginalia.SelectItem, bool) {
	if len(m.matches) == 0 || m.cursor >= len(m.matches) {
		return marginalia.SelectItem{}, false
	}
	return m.items[m.matches[m.cursor].item], true
}

// refilter recomputes the match list for the current query. Selection
// is tracked by item, not by row, so it survives refiltering.
func (m *Model) refilter() {
	query := m.input.Value()
	m.matches = m.matches[:0]

	switch {
	case query == "":
		for i := range m.items {
			m.matches = append(m.matches, match{item: i})
		}

	case m.opts.Fuzzy:
		for _, fm := range fuzzy.FindFrom(query, itemSource(m.items)) {
			m.matches = append(m.matches, match{item: fm.Index, indexes: fm.MatchedIndexes})
		}

	default:
		lower := strings.ToLower(query)
		for i := range m.items {
			pos := strings.Index(strings.ToLower(m.items[i].Line), lower)
			if pos < 0 {
				continue
			}
			indexes := make([]int, len(lower))
			for j := range indexes {
				indexes[j] = pos + j
			}
			m.matches = append(m.matches, match{item: i, indexes: indexes})
		}
	}

	if m.cursor >= len(m.matches) {
		m.cursor = 0
	}
}

// window returns the visible slice of the match list, keeping the
// cursor on screen.
func (m Model) window() (int, int) {
	rows := m.height - 4
	if m.opts.Preview {
		rows -= 8
	}
	if rows < 1 {
		rows = 1
	}
	if len(m.matches) <= rows {
		return 0, len(m.matches)
	}
	start := m.cursor - rows/2
	if start < 0 {
		start = 0
	}
	if start+rows > len(m.matches) {
		start = len(m.matches) - rows
	}
	return start, start + rows
}

// highlightLine marks matched byte positions. The marking is purely
// cosmetic feedback; it never affects what is selected.
func highlightLine(line string, indexes []int) string {
	if len(indexes) == 0 {
		return line
	}
	matched := make(map[int]bool, len(indexes))
	for _, i := range indexes {
		matched[i] = true
	}
	var b strings.Builder
	for i := 0; i < len(line); i++ {
		if matched[i] {
			b.WriteString(matchStyle.Render(string(line[i])))
		} else {
			b.WriteByte(line[i])
		}
	}
	return b.String()
}

// itemSource adapts items to the fuzzy matcher.
type itemSource []marginalia.SelectItem

func (s itemSource) String(i int) string { return s[i].Line }
func (s itemSource) Len() int            { return len(s) }
