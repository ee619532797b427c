package tui

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-context/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/sercha-context/internal/core/domain"
	"github.com/custodia-labs/sercha-context/internal/core/ports/driving"
)

// mockRetrievalService is a mock implementation of driving.RetrievalService.
type mockRetrievalService struct {
	answer *driving.AnswerResult
	err    error
}

func (m *mockRetrievalService) Retrieve(_ context.Context, _ driving.RetrievalRequest) (*driving.RetrievalResult, error) {
	return nil, m.err
}

func (m *mockRetrievalService) Answer(_ context.Context, _ driving.RetrievalRequest) (*driving.AnswerResult, error) {
	return m.answer, m.err
}

// mockIngestService is a mock implementation of driving.IngestService.
type mockIngestService struct {
	documents []domain.DocumentSummary
}

func (m *mockIngestService) Ingest(_ context.Context, _ *domain.Document) (int, error) {
	return 0, nil
}

func (m *mockIngestService) Delete(_ context.Context, _ string) (int, error) {
	return 0, nil
}

func (m *mockIngestService) List(_ context.Context) ([]domain.DocumentSummary, error) {
	return m.documents, nil
}

func (m *mockIngestService) RepairMetadata(_ context.Context, _ string) error {
	return nil
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	app, err := NewApp(NewPorts(
		&mockRetrievalService{answer: &driving.AnswerResult{Answer: "42"}},
		&mockIngestService{documents: []domain.DocumentSummary{{DocumentID: "doc-1", SegmentCount: 2}}},
	))
	require.NoError(t, err)
	app.SetDimensions(100, 30)
	return app
}

func update(app *App, msg tea.Msg) (*App, tea.Cmd) {
	model, cmd := app.Update(msg)
	return model.(*App), cmd
}

func TestPorts_Validate(t *testing.T) {
	assert.ErrorIs(t, (&Ports{}).Validate(), ErrMissingRetrievalService)
	assert.NoError(t, NewPorts(&mockRetrievalService{}, nil).Validate())
}

func TestNewApp(t *testing.T) {
	t.Run("invalid ports", func(t *testing.T) {
		_, err := NewApp(&Ports{})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMissingRetrievalService)
	})

	t.Run("starts on chat", func(t *testing.T) {
		app, err := NewApp(NewPorts(&mockRetrievalService{}, nil))
		require.NoError(t, err)
		assert.Equal(t, messages.ViewChat, app.CurrentView())
		assert.False(t, app.Ready())
		assert.Equal(t, "Initialising...", app.View())
		assert.NotNil(t, app.Init())
	})
}

func TestApp_WindowSize(t *testing.T) {
	app, err := NewApp(NewPorts(&mockRetrievalService{}, nil))
	require.NoError(t, err)

	app, cmd := update(app, tea.WindowSizeMsg{Width: 120, Height: 40})

	assert.Nil(t, cmd)
	assert.True(t, app.Ready())
	assert.Contains(t, app.View(), "sercha-context")
}

func TestApp_Quit(t *testing.T) {
	app := newTestApp(t)

	_, cmd := update(app, tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())

	_, cmd = update(app, messages.Quit{})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestApp_ChatRoundTrip(t *testing.T) {
	app := newTestApp(t)

	app, _ = update(app, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("meaning of life?")})
	app, cmd := update(app, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)

	app, _ = update(app, cmd())

	history := app.ChatView().History()
	require.Len(t, history, 2)
	assert.Equal(t, "42", history[1].Content)
	assert.Contains(t, app.View(), "42")
}

func TestApp_DocumentsNavigation(t *testing.T) {
	app := newTestApp(t)

	app, cmd := update(app, tea.KeyMsg{Type: tea.KeyCtrlO})
	require.NotNil(t, cmd)
	assert.Equal(t, messages.ViewDocuments, app.CurrentView())

	app, _ = update(app, cmd())
	assert.Len(t, app.DocumentsView().Documents(), 1)
	assert.Contains(t, app.View(), "doc-1")

	app, cmd = update(app, tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	app, _ = update(app, cmd())
	assert.Equal(t, messages.ViewChat, app.CurrentView())
}

func TestApp_DocumentsUnavailableWithoutIngest(t *testing.T) {
	app, err := NewApp(NewPorts(&mockRetrievalService{}, nil))
	require.NoError(t, err)
	app.SetDimensions(100, 30)

	app, cmd := update(app, tea.KeyMsg{Type: tea.KeyCtrlO})

	assert.Nil(t, cmd)
	assert.Equal(t, messages.ViewChat, app.CurrentView())
	require.Error(t, app.Err())
}

func TestApp_Help(t *testing.T) {
	app := newTestApp(t)

	app, _ = update(app, tea.KeyMsg{Type: tea.KeyF1})
	assert.Equal(t, messages.ViewHelp, app.CurrentView())

	view := app.View()
	assert.Contains(t, view, "Help")
	assert.Contains(t, view, "new chat")
	assert.Contains(t, view, "repair metadata")

	app, _ = update(app, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, messages.ViewChat, app.CurrentView())

	app, _ = update(app, tea.KeyMsg{Type: tea.KeyF1})
	app, _ = update(app, tea.KeyMsg{Type: tea.KeyF1})
	assert.Equal(t, messages.ViewChat, app.CurrentView())
}

func TestApp_ErrorOccurred(t *testing.T) {
	app := newTestApp(t)

	app, _ = update(app, messages.ErrorOccurred{Err: domain.ErrLLMUnavailable})

	assert.ErrorIs(t, app.Err(), domain.ErrLLMUnavailable)
	assert.ErrorIs(t, app.ChatView().Err(), domain.ErrLLMUnavailable)
}

func TestApp_WithContext(t *testing.T) {
	app := newTestApp(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	assert.Same(t, app, app.WithContext(ctx))
}
