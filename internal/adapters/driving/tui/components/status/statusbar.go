// Package status renders the one-line status bar under the chat input.
package status

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/sercha-context/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/sercha-context/internal/adapters/driving/tui/styles"
)

// State is what the chat view is doing.
type State string

const (
	StateReady     State = "ready"
	StateThinking  State = "thinking"
	StateAnswered  State = "answered"
	StateError     State = "error"
	StateHelp      State = "help"
	StateDocuments State = "documents"
)

// Answer summarises the last completed answer.
type Answer struct {
	Sources     int
	TokensUsed  int
	TokenBudget int
	Notes       []string // e.g. "expanded", "keyword only"
}

// Bar shows the current state on the left and key hints on the right.
type Bar struct {
	styles *styles.Styles
	keymap *keymap.KeyMap
	state  State
	answer Answer
	err    string
	width  int
}

// NewBar creates a bar in the ready state.
func NewBar(s *styles.Styles, km *keymap.KeyMap) *Bar {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}
	return &Bar{styles: s, keymap: km, state: StateReady, width: 80}
}

// Init implements the bubbletea component contract.
func (b *Bar) Init() tea.Cmd { return nil }

// Update is a no-op; the bar is driven through its setters.
func (b *Bar) Update(tea.Msg) (*Bar, tea.Cmd) { return b, nil }

// View renders the bar padded to its width.
func (b *Bar) View() string {
	left, right := b.left(), b.hints()
	gap := max(b.width-lipgloss.Width(left)-lipgloss.Width(right), 1)
	return b.styles.StatusBar.Width(b.width).Render(left + strings.Repeat(" ", gap) + right)
}

func (b *Bar) left() string {
	switch b.state {
	case StateThinking:
		return b.styles.Muted.Render("Thinking...")
	case StateError:
		if b.err == "" {
			return b.styles.Error.Render("Error")
		}
		return b.styles.Error.Render("Error: " + b.err)
	case StateHelp:
		return b.styles.Normal.Render("Help")
	case StateDocuments:
		return b.styles.Normal.Render("Documents")
	case StateAnswered:
		return b.styles.Normal.Render(b.answer.summary())
	default:
		return b.styles.Muted.Render("Ready")
	}
}

func (a Answer) summary() string {
	var parts []string
	switch a.Sources {
	case 0:
		parts = append(parts, "No sources")
	case 1:
		parts = append(parts, "1 source")
	default:
		parts = append(parts, fmt.Sprintf("%d sources", a.Sources))
	}
	if a.TokenBudget > 0 {
		parts = append(parts, fmt.Sprintf("%d/%d tokens", a.TokensUsed, a.TokenBudget))
	}
	parts = append(parts, a.Notes...)
	return strings.Join(parts, " · ")
}

func (b *Bar) hints() string {
	bindings := b.keymap.ShortHelp()
	if b.state == StateDocuments {
		bindings = b.keymap.DocumentsHelp()
	}

	hints := make([]string, 0, len(bindings))
	for _, binding := range bindings {
		h := binding.Help()
		hints = append(hints, h.Key+": "+h.Desc)
	}
	return b.styles.Muted.Render(strings.Join(hints, " | "))
}

// SetState switches state without touching the answer summary.
func (b *Bar) SetState(state State) { b.state = state }

// State returns the current state.
func (b *Bar) State() State { return b.state }

// SetAnswer records an answer summary and switches to StateAnswered.
func (b *Bar) SetAnswer(a Answer) {
	b.state = StateAnswered
	b.answer = a
	b.err = ""
}

// Answer returns the last answer summary.
func (b *Bar) Answer() Answer { return b.answer }

// SetError switches to StateError showing err. A nil err shows a bare "Error".
func (b *Bar) SetError(err error) {
	b.state = StateError
	b.err = ""
	if err != nil {
		b.err = err.Error()
	}
}

// SetWidth sets the rendered width.
func (b *Bar) SetWidth(width int) { b.width = width }

// Width returns the rendered width.
func (b *Bar) Width() int { return b.width }

// Clear returns to the ready state and forgets the last answer.
func (b *Bar) Clear() {
	b.state = StateReady
	b.answer = Answer{}
	b.err = ""
}
