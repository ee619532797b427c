package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/sercha-context/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/sercha-context/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/sercha-context/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/sercha-context/internal/adapters/driving/tui/views/chat"
	"github.com/custodia-labs/sercha-context/internal/adapters/driving/tui/views/documents"
)

// App switches between the chat, documents and help screens and routes
// messages to whichever is active.
type App struct {
	ports *Ports
	ctx   context.Context

	styles *styles.Styles
	keymap *keymap.KeyMap

	chatView      *chat.View
	documentsView *documents.View
	currentView   messages.ViewType

	// err is the last failure surfaced by a view or a background command.
	err error

	width, height int
	ready         bool // set by the first WindowSizeMsg
}

var _ tea.Model = (*App)(nil)

// NewApp builds the app, opening on the chat view. Ports must carry a RetrievalService.
func NewApp(ports *Ports) (*App, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("creating app: %w", err)
	}

	s := styles.DefaultStyles()
	km := keymap.DefaultKeyMap()

	return &App{
		ports:         ports,
		ctx:           context.Background(),
		styles:        s,
		keymap:        km,
		chatView:      chat.NewView(s, km, ports.Retrieval),
		documentsView: documents.NewView(s, km, ports.Ingest),
		currentView:   messages.ViewChat,
	}, nil
}

// WithContext propagates ctx to the views' service calls.
func (a *App) WithContext(ctx context.Context) *App {
	a.ctx = ctx
	a.chatView.WithContext(ctx)
	a.documentsView.WithContext(ctx)
	return a
}

func (a *App) Init() tea.Cmd {
	return tea.Batch(
		tea.EnterAltScreen,
		tea.SetWindowTitle("sercha-context"),
		a.chatView.Init(),
	)
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.SetDimensions(msg.Width, msg.Height)
		return a, nil

	case tea.KeyMsg:
		return a.handleKeyMsg(msg)

	case messages.ViewChanged:
		return a, a.switchView(msg.View)

	case messages.AnswerCompleted:
		if msg.Err != nil {
			a.err = msg.Err
		}
		a.chatView, cmd = a.chatView.Update(msg)
		return a, cmd

	case messages.DocumentsLoaded, messages.DocumentDeleted, messages.MetadataRepaired:
		a.documentsView, cmd = a.documentsView.Update(msg)
		return a, cmd

	case messages.ErrorOccurred:
		a.err = msg.Err

	case messages.Quit:
		return a, tea.Quit
	}

	switch a.currentView {
	case messages.ViewChat:
		a.chatView, cmd = a.chatView.Update(msg)
	case messages.ViewDocuments:
		a.documentsView, cmd = a.documentsView.Update(msg)
	case messages.ViewHelp:
		// Help view doesn't need to handle other messages
	}
	return a, cmd
}

// handleKeyMsg applies global bindings before forwarding to the active view.
func (a *App) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	keyStr := msg.String()
	var cmd tea.Cmd

	switch {
	case keymap.Matches(keyStr, a.keymap.Quit):
		return a, tea.Quit
	case keymap.Matches(keyStr, a.keymap.Help):
		if a.currentView == messages.ViewHelp {
			return a, a.switchView(messages.ViewChat)
		}
		return a, a.switchView(messages.ViewHelp)
	case keymap.Matches(keyStr, a.keymap.Documents) && a.currentView == messages.ViewChat:
		return a, a.switchView(messages.ViewDocuments)
	}

	switch a.currentView {
	case messages.ViewChat:
		a.chatView, cmd = a.chatView.Update(msg)
	case messages.ViewDocuments:
		a.documentsView, cmd = a.documentsView.Update(msg)
	case messages.ViewHelp:
		if keymap.Matches(keyStr, a.keymap.Back) {
			cmd = a.switchView(messages.ViewChat)
		}
	}
	return a, cmd
}

// switchView activates a view and returns its start-up command.
func (a *App) switchView(view messages.ViewType) tea.Cmd {
	if view == messages.ViewDocuments && a.ports.Ingest == nil {
		a.err = fmt.Errorf("document management is not available")
		return nil
	}

	a.currentView = view
	switch view {
	case messages.ViewDocuments:
		return a.documentsView.Init()
	case messages.ViewChat:
		return a.chatView.Init()
	case messages.ViewHelp:
	}
	return nil
}

func (a *App) View() string {
	if !a.ready {
		return "Initialising..."
	}

	switch a.currentView {
	case messages.ViewDocuments:
		return a.documentsView.View()
	case messages.ViewHelp:
		return a.viewHelp()
	case messages.ViewChat:
		return a.chatView.View()
	}
	return a.chatView.View()
}

// viewHelp renders the help view from the key map.
func (a *App) viewHelp() string {
	sections := []string{"Chat", "Documents", "General"}

	var b strings.Builder
	b.WriteString(a.styles.Title.Render("Help"))
	b.WriteString("\n")
	for i, group := range a.keymap.FullHelp() {
		b.WriteString("\n")
		b.WriteString(a.styles.Subtitle.Render(sections[i] + ":"))
		b.WriteString("\n")
		for _, binding := range group {
			h := binding.Help()
			fmt.Fprintf(&b, "  %-10s %s\n", h.Key, h.Desc)
		}
	}
	b.WriteString("\n")
	b.WriteString(a.styles.Help.Render("[esc] back to chat"))
	return b.String()
}

// Run blocks until the user quits or the context is cancelled.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen(), tea.WithContext(a.ctx))
	_, err := p.Run()
	return err
}

// Accessors used by tests.

func (a *App) CurrentView() messages.ViewType {
	return a.currentView
}

func (a *App) ChatView() *chat.View {
	return a.chatView
}

func (a *App) DocumentsView() *documents.View {
	return a.documentsView
}

func (a *App) Err() error {
	return a.err
}

func (a *App) Ready() bool {
	return a.ready
}

// SetDimensions resizes every view and marks the app ready.
func (a *App) SetDimensions(width, height int) {
	a.width = width
	a.height = height
	a.ready = true
	a.chatView.SetDimensions(width, height)
	a.documentsView.SetDimensions(width, height)
}
