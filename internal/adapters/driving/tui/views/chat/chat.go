// Package chat provides the conversation view for the TUI.
package chat

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/sercha-context/internal/adapters/driving/tui/components/input"
	"github.com/custodia-labs/sercha-context/internal/adapters/driving/tui/components/list"
	"github.com/custodia-labs/sercha-context/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/sercha-context/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/sercha-context/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/sercha-context/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/sercha-context/internal/core/domain"
	"github.com/custodia-labs/sercha-context/internal/core/ports/driving"
)

// NoEvidenceReply is shown when neither documents nor history support an answer.
const NoEvidenceReply = domain.NoEvidenceReply

const sourcesHeight = 5

// View is the chat view: a scrolling transcript, the sources of the last
// answer, a prompt and a status bar.
type View struct {
	styles     *styles.Styles
	keymap     *keymap.KeyMap
	input      *input.PromptInput
	transcript viewport.Model
	sources    *list.SourceList
	statusbar  *status.Bar

	retrieval driving.RetrievalService
	ctx       context.Context

	history  []domain.ConversationTurn
	pending  string
	thinking bool
	err      error

	width  int
	height int
}

// NewView creates a new chat view.
func NewView(s *styles.Styles, km *keymap.KeyMap, retrieval driving.RetrievalService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}

	v := &View{
		styles:     s,
		keymap:     km,
		input:      input.NewPromptInput(s),
		transcript: viewport.New(80, 16),
		sources:    list.NewSourceList(s),
		statusbar:  status.NewBar(s, km),
		retrieval:  retrieval,
		ctx:        context.Background(),
	}
	v.SetDimensions(80, 24)
	return v
}

// WithContext sets the context used for answer requests.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// Init initialises the view.
func (v *View) Init() tea.Cmd {
	return v.input.Init()
}

// Update handles messages for the chat view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case messages.AnswerCompleted:
		v.handleAnswer(msg)
		return v, nil

	case messages.ErrorOccurred:
		v.setError(msg.Err)
		return v, nil
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

// handleKeyMsg processes keyboard input.
func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	keyStr := msg.String()

	switch {
	case keymap.Matches(keyStr, v.keymap.ScrollUp), keymap.Matches(keyStr, v.keymap.ScrollDown):
		var cmd tea.Cmd
		v.transcript, cmd = v.transcript.Update(msg)
		return v, cmd

	case keymap.Matches(keyStr, v.keymap.NewChat):
		if v.thinking {
			return v, nil
		}
		v.Reset()
		return v, nil

	case keymap.Matches(keyStr, v.keymap.Send):
		if v.thinking {
			return v, nil
		}
		query := v.input.Submit()
		if query == "" {
			return v, nil
		}
		return v, v.ask(query)
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

// ask starts an answer request for query against the current history.
func (v *View) ask(query string) tea.Cmd {
	v.pending = query
	v.thinking = true
	v.err = nil
	v.statusbar.SetState(status.StateThinking)
	v.refreshTranscript()

	history := make([]domain.ConversationTurn, len(v.history))
	copy(history, v.history)
	retrieval := v.retrieval
	ctx := v.ctx

	return func() tea.Msg {
		res, err := retrieval.Answer(ctx, driving.RetrievalRequest{
			Query:   query,
			History: history,
		})
		return messages.AnswerCompleted{Query: query, Result: res, Err: err}
	}
}

// handleAnswer records a completed exchange.
func (v *View) handleAnswer(msg messages.AnswerCompleted) {
	v.thinking = false
	v.pending = ""

	if msg.Err != nil {
		v.setError(msg.Err)
		v.refreshTranscript()
		return
	}

	reply := NoEvidenceReply
	var runs []domain.DocumentRun
	var summary status.Answer
	if msg.Result != nil {
		if !msg.Result.NoEvidence {
			reply = msg.Result.Answer
		}
		if r := msg.Result.Retrieval; r != nil {
			if r.Window != nil {
				runs = r.Window.Runs
				summary.TokensUsed = r.Window.TokenCount
				summary.TokenBudget = r.Window.TokenBudget
			}
			if r.Expanded {
				summary.Notes = append(summary.Notes, "expanded")
			}
			if r.LexicalOnly {
				summary.Notes = append(summary.Notes, "keyword only")
			}
			if r.HistoryOnly {
				summary.Notes = append(summary.Notes, "from conversation")
			}
		}
	}
	summary.Sources = len(runs)

	now := time.Now()
	v.history = append(v.history,
		domain.ConversationTurn{Role: domain.ConversationRoleUser, Content: msg.Query, Timestamp: now},
		domain.ConversationTurn{Role: domain.ConversationRoleAssistant, Content: reply, Timestamp: now},
	)
	v.sources.SetRuns(runs)
	v.statusbar.SetAnswer(summary)
	v.refreshTranscript()
}

func (v *View) setError(err error) {
	if err == nil {
		return
	}
	v.err = err
	v.statusbar.SetError(err)
}

// refreshTranscript re-renders the conversation into the viewport.
func (v *View) refreshTranscript() {
	v.transcript.SetContent(v.renderTranscript())
	v.transcript.GotoBottom()
}

func (v *View) renderTranscript() string {
	if len(v.history) == 0 && v.pending == "" {
		return v.styles.Muted.Render("Ask a question about your documents.")
	}

	body := lipgloss.NewStyle().Width(max(v.width-2, 20))
	blocks := make([]string, 0, len(v.history)+1)
	for _, turn := range v.history {
		blocks = append(blocks, v.renderTurn(body, turn.Role, turn.Content))
	}
	if v.pending != "" {
		blocks = append(blocks,
			v.renderTurn(body, domain.ConversationRoleUser, v.pending),
			v.styles.Muted.Render("…"))
	}
	return strings.Join(blocks, "\n\n")
}

func (v *View) renderTurn(body lipgloss.Style, role domain.ConversationRole, content string) string {
	label := v.styles.User.Render("You")
	if role == domain.ConversationRoleAssistant {
		label = v.styles.Assistant.Render("Assistant")
	}
	return label + "\n" + body.Render(content)
}

// View renders the chat view.
func (v *View) View() string {
	parts := []string{
		v.styles.Title.Render("sercha-context"),
		v.transcript.View(),
	}
	if !v.sources.IsEmpty() {
		parts = append(parts, v.sources.View())
	}
	parts = append(parts, v.input.View(), v.statusbar.View())
	return strings.Join(parts, "\n")
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.input.SetWidth(width)
	v.statusbar.SetWidth(width)
	v.sources.SetDimensions(width, sourcesHeight)

	// title, prompt (3 lines with border), status bar, sources
	transcriptHeight := height - 5 - sourcesHeight
	if transcriptHeight < 3 {
		transcriptHeight = 3
	}
	v.transcript.Width = width
	v.transcript.Height = transcriptHeight
	v.refreshTranscript()
}

// Reset clears the conversation.
func (v *View) Reset() {
	v.history = nil
	v.pending = ""
	v.thinking = false
	v.err = nil
	v.input.Reset()
	v.sources.SetRuns(nil)
	v.statusbar.Clear()
	v.refreshTranscript()
}

// History returns the conversation so far, oldest first.
func (v *View) History() []domain.ConversationTurn {
	return v.history
}

// Thinking reports whether an answer is in flight.
func (v *View) Thinking() bool {
	return v.thinking
}

// Sources returns the documents cited by the last answer.
func (v *View) Sources() []domain.DocumentRun {
	return v.sources.Runs()
}

// Status returns the status bar state.
func (v *View) Status() status.State {
	return v.statusbar.State()
}

// Err returns the last error.
func (v *View) Err() error {
	return v.err
}
