package preview

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/bitcrank/chill/pkg/queue"
	"github.com/bitcrank/chill/pkg/videocard"
)

// ViewMode represents the current view mode
type ViewMode int

// View modes for the preview TUI
const (
	CardListMode ViewMode = iota
	QueueListMode
	CardDetailMode
	QueueDetailMode
)

// Model represents the Bubble Tea model for the preview TUI
type Model struct {
	cards    []videocard.Card
	requests []*queue.Request
	cursor   int
	viewMode ViewMode
	width    int
	height   int
	selected int // index of the item currently shown in detail
}

// NewModel creates a new preview model
func NewModel(cards []videocard.Card, requests []*queue.Request) Model {
	return Model{
		cards:    cards,
		requests: requests,
		viewMode: CardListMode,
		selected: -1,
	}
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch m.viewMode {
		case CardListMode, QueueListMode:
			return m.updateListView(msg)
		case CardDetailMode, QueueDetailMode:
			return m.updateDetailView(msg)
		}
	}

	return m, nil
}

func (m Model) listLength() int {
	if m.viewMode == QueueListMode {
		return len(m.requests)
	}
	return len(m.cards)
}

// updateListView handles key presses in the list views
func (m Model) updateListView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}

	case "down", "j":
		if m.cursor < m.listLength()-1 {
			m.cursor++
		}

	case "tab":
		// Switch between the cards and queue tabs
		if m.viewMode == CardListMode {
			m.viewMode = QueueListMode
		} else {
			m.viewMode = CardListMode
		}
		m.cursor = 0

	case "enter":
		if m.listLength() == 0 {
			break
		}
		m.selected = m.cursor
		if m.viewMode == QueueListMode {
			m.viewMode = QueueDetailMode
		} else {
			m.viewMode = CardDetailMode
		}
	}

	return m, nil
}

// updateDetailView handles key presses in the detail views
func (m Model) updateDetailView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "esc":
		if m.viewMode == QueueDetailMode {
			m.viewMode = QueueListMode
		} else {
			m.viewMode = CardListMode
		}
	}

	return m, nil
}

// View implements tea.Model
func (m Model) View() string {
	switch m.viewMode {
	case CardListMode:
		return m.renderListView("Saved videos", len(m.cards), func(i int) string {
			return FormatCompactCard(i, m.cards[i])
		})
	case QueueListMode:
		return m.renderListView("Submission queue", len(m.requests), func(i int) string {
			return FormatCompactRequest(i, m.requests[i])
		})
	case CardDetailMode:
		if m.selected < 0 || m.selected >= len(m.cards) {
			return "No item selected"
		}
		return m.renderDetailView(FormatDetailedCard(m.cards[m.selected]))
	case QueueDetailMode:
		if m.selected < 0 || m.selected >= len(m.requests) {
			return "No item selected"
		}
		return m.renderDetailView(FormatDetailedRequest(m.requests[m.selected]))
	}
	return ""
}

func (m Model) renderListView(title string, count int, line func(int) string) string {
	var b strings.Builder

	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12"))

	header := fmt.Sprintf("Chill - %s (%d items)", title, count)
	b.WriteString(headerStyle.Render(header))
	b.WriteString("\n\n")

	if count == 0 {
		b.WriteString("  nothing here yet\n")
	}

	visibleStart := 0
	visibleEnd := count

	// Keep the cursor in the middle of the screen when the list overflows
	if m.height > 0 {
		maxVisible := m.height - 6 // header, footer, padding
		if maxVisible < count {
			visibleStart = m.cursor - maxVisible/2
			if visibleStart < 0 {
				visibleStart = 0
			}
			visibleEnd = visibleStart + maxVisible
			if visibleEnd > count {
				visibleEnd = count
				visibleStart = visibleEnd - maxVisible
				if visibleStart < 0 {
					visibleStart = 0
				}
			}
		}
	}

	for i := visibleStart; i < visibleEnd; i++ {
		if i == m.cursor {
			selectedStyle := lipgloss.NewStyle().
				Foreground(lipgloss.Color("0")).
				Background(lipgloss.Color("12")).
				Bold(true)
			b.WriteString(selectedStyle.Render("→ " + line(i)))
		} else {
			b.WriteString("  " + line(i))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	footerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("240"))

	footer := "↑/↓ or j/k: navigate • tab: cards/queue • enter: details • q: quit"
	b.WriteString(footerStyle.Render(footer))

	return b.String()
}

func (m Model) renderDetailView(content string) string {
	var b strings.Builder
	b.WriteString(content)
	b.WriteString("\n")

	footerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("240"))

	footer := "esc: back to list • q: quit"
	b.WriteString(footerStyle.Render(footer))

	return b.String()
}

// Run starts the Bubble Tea program
func Run(cards []videocard.Card, requests []*queue.Request) error {
	if len(cards) == 0 && len(requests) == 0 {
		fmt.Println("Nothing to preview")
		return nil
	}

	p := tea.NewProgram(NewModel(cards, requests), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
