package ui

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Entry is one selectable item in the picker: a stored command or
// workflow.
type Entry struct {
	Name   string
	Detail string   // command text or description
	Tags   []string // tags for filtering
}

// pickerItem implements list.Item for the Bubbles list component.
type pickerItem struct {
	entry Entry
}

func (i pickerItem) Title() string {
	return i.entry.Name
}

func (i pickerItem) Description() string {
	var parts []string
	if i.entry.Detail != "" {
		parts = append(parts, i.entry.Detail)
	}
	if len(i.entry.Tags) > 0 {
		parts = append(parts, "["+strings.Join(i.entry.Tags, ", ")+"]")
	}
	return strings.Join(parts, " | ")
}

func (i pickerItem) FilterValue() string {
	// Allow searching by name and tags
	values := []string{i.entry.Name}
	values = append(values, i.entry.Tags...)
	return strings.Join(values, " ")
}

// PickerModel is a Bubble Tea model for selecting a stored entry.
type PickerModel struct {
	list     list.Model
	selected *Entry
	quitting bool
	width    int
	height   int
}

// pickerKeyMap defines key bindings for the picker.
type pickerKeyMap struct {
	Enter key.Binding
	Quit  key.Binding
}

var pickerKeys = pickerKeyMap{
	Enter: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "select"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "esc", "ctrl+c"),
		key.WithHelp("q/esc", "cancel"),
	),
}

// NewPickerModel creates a picker over the given entries.
func NewPickerModel(title string, entries []Entry) PickerModel {
	items := make([]list.Item, len(entries))
	for i, e := range entries {
		items[i] = pickerItem{entry: e}
	}

	// Create list with custom delegate for styling
	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.
		Foreground(lipgloss.Color(string(ColorPrimary))).
		BorderForeground(lipgloss.Color(string(ColorSecondary)))
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.
		Foreground(lipgloss.Color(string(ColorMuted)))

	l := list.New(items, delegate, 0, 0)
	l.Title = title
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)
	l.Styles.Title = lipgloss.NewStyle().
		Foreground(lipgloss.Color(string(ColorPrimary))).
		Bold(true).
		Padding(0, 0, 1, 0)
	l.Styles.HelpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(string(ColorMuted)))

	return PickerModel{
		list:   l,
		width:  80,
		height: 15,
	}
}

// Init implements tea.Model.
func (m PickerModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m PickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, pickerKeys.Enter):
			if item, ok := m.list.SelectedItem().(pickerItem); ok {
				m.selected = &item.entry
			}
			m.quitting = true
			return m, tea.Quit

		case key.Matches(msg, pickerKeys.Quit):
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.list.SetSize(msg.Width, msg.Height-2)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m PickerModel) View() string {
	if m.quitting {
		return ""
	}
	return m.list.View()
}

// Selected returns the selected entry, or nil if cancelled.
func (m PickerModel) Selected() *Entry {
	return m.selected
}

// Pick displays an interactive picker and returns the selected entry.
// Returns nil if the user cancels (ESC/q/Ctrl+C). A single entry is
// returned directly without showing the picker.
func Pick(title string, entries []Entry) (*Entry, error) {
	return PickWithOutput(title, entries, os.Stdout, os.Stdin)
}

// PickWithOutput displays the picker using custom I/O.
func PickWithOutput(title string, entries []Entry, output io.Writer, input io.Reader) (*Entry, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	if len(entries) == 1 {
		return &entries[0], nil
	}

	model := NewPickerModel(title, entries)

	p := tea.NewProgram(
		model,
		tea.WithOutput(output),
		tea.WithInput(input),
	)

	finalModel, err := p.Run()
	if err != nil {
		return nil, err
	}

	if m, ok := finalModel.(PickerModel); ok {
		return m.Selected(), nil
	}
	return nil, nil
}

// IsTerminal returns true if the file descriptor is a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
