// Package documents provides the documents list view component for the TUI.
package documents

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/sercha-context/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/sercha-context/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/sercha-context/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/sercha-context/internal/core/domain"
	"github.com/custodia-labs/sercha-context/internal/core/ports/driving"
)

// View is the documents list view.
type View struct {
	styles *styles.Styles
	keymap *keymap.KeyMap
	ingest driving.IngestService
	ctx    context.Context

	documents     []domain.DocumentSummary
	selected      int
	width         int
	height        int
	err           error
	notice        string
	loading       bool
	confirmDelete bool
	scrollOffset  int
}

// NewView creates a new documents view.
func NewView(s *styles.Styles, km *keymap.KeyMap, ingest driving.IngestService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}
	return &View{
		styles:    s,
		keymap:    km,
		ingest:    ingest,
		ctx:       context.Background(),
		documents: []domain.DocumentSummary{},
		width:     80,
		height:    24,
	}
}

// WithContext sets the context used for service calls.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// Init loads the document list.
func (v *View) Init() tea.Cmd {
	v.loading = true
	v.confirmDelete = false
	return v.loadDocuments()
}

// loadDocuments returns a command that lists ingested documents.
func (v *View) loadDocuments() tea.Cmd {
	ingest, ctx := v.ingest, v.ctx
	return func() tea.Msg {
		if ingest == nil {
			return messages.DocumentsLoaded{Err: fmt.Errorf("ingest service not available")}
		}
		docs, err := ingest.List(ctx)
		return messages.DocumentsLoaded{Documents: docs, Err: err}
	}
}

// deleteDocument returns a command that removes a document.
func (v *View) deleteDocument(docID string) tea.Cmd {
	ingest, ctx := v.ingest, v.ctx
	return func() tea.Msg {
		if ingest == nil {
			return messages.DocumentDeleted{DocumentID: docID, Err: fmt.Errorf("ingest service not available")}
		}
		removed, err := ingest.Delete(ctx, docID)
		return messages.DocumentDeleted{DocumentID: docID, Removed: removed, Err: err}
	}
}

// repairMetadata returns a command that repairs a document's metadata placement.
func (v *View) repairMetadata(docID string) tea.Cmd {
	ingest, ctx := v.ingest, v.ctx
	return func() tea.Msg {
		if ingest == nil {
			return messages.MetadataRepaired{DocumentID: docID, Err: fmt.Errorf("ingest service not available")}
		}
		return messages.MetadataRepaired{DocumentID: docID, Err: ingest.RepairMetadata(ctx, docID)}
	}
}

// Update handles messages for the documents view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		if v.confirmDelete {
			return v.handleConfirmKeyMsg(msg)
		}
		return v.handleKeyMsg(msg)

	case messages.DocumentsLoaded:
		v.loading = false
		if msg.Err != nil {
			v.err = msg.Err
			return v, nil
		}
		v.documents = msg.Documents
		v.err = nil
		if v.selected >= len(v.documents) {
			v.selected = max(len(v.documents)-1, 0)
		}
		v.adjustScroll()
		return v, nil

	case messages.DocumentDeleted:
		if msg.Err != nil {
			v.err = msg.Err
			return v, nil
		}
		v.notice = fmt.Sprintf("Deleted %s (%d segments)", msg.DocumentID, msg.Removed)
		return v, v.loadDocuments()

	case messages.MetadataRepaired:
		if msg.Err != nil {
			v.err = msg.Err
			return v, nil
		}
		v.notice = fmt.Sprintf("Repaired metadata for %s", msg.DocumentID)
		return v, v.loadDocuments()

	case messages.ErrorOccurred:
		v.err = msg.Err
		return v, nil
	}

	return v, nil
}

// handleKeyMsg handles key presses in list mode.
func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	keyStr := msg.String()

	switch {
	case keymap.Matches(keyStr, v.keymap.Up):
		if v.selected > 0 {
			v.selected--
			v.adjustScroll()
		}
	case keymap.Matches(keyStr, v.keymap.Down):
		if v.selected < len(v.documents)-1 {
			v.selected++
			v.adjustScroll()
		}
	case keymap.Matches(keyStr, v.keymap.Delete):
		if len(v.documents) > 0 {
			v.confirmDelete = true
		}
	case keymap.Matches(keyStr, v.keymap.Repair):
		if doc := v.SelectedDocument(); doc != nil {
			v.notice = ""
			return v, v.repairMetadata(doc.DocumentID)
		}
	case keymap.Matches(keyStr, v.keymap.Reload):
		v.loading = true
		v.notice = ""
		return v, v.loadDocuments()
	case keymap.Matches(keyStr, v.keymap.Back):
		return v, func() tea.Msg {
			return messages.ViewChanged{View: messages.ViewChat}
		}
	}

	return v, nil
}

// handleConfirmKeyMsg handles the delete confirmation prompt.
func (v *View) handleConfirmKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	v.confirmDelete = false
	if msg.String() != "y" {
		return v, nil
	}
	doc := v.SelectedDocument()
	if doc == nil {
		return v, nil
	}
	v.notice = ""
	return v, v.deleteDocument(doc.DocumentID)
}

// adjustScroll adjusts the scroll offset to keep the selected item visible.
func (v *View) adjustScroll() {
	visibleItems := v.visibleItemCount()
	if v.selected < v.scrollOffset {
		v.scrollOffset = v.selected
	} else if v.selected >= v.scrollOffset+visibleItems {
		v.scrollOffset = v.selected - visibleItems + 1
	}
}

// visibleItemCount returns the number of items that can be displayed.
func (v *View) visibleItemCount() int {
	// Reserve lines for title, notice, help, and padding
	available := v.height - 8
	if available < 1 {
		available = 1
	}
	return available
}

// View renders the documents view.
func (v *View) View() string {
	var b strings.Builder

	b.WriteString(v.styles.Title.Render(fmt.Sprintf("Documents (%d)", len(v.documents))))
	b.WriteString("\n\n")

	switch {
	case v.loading:
		b.WriteString(v.styles.Muted.Render("Loading documents..."))
	case v.err != nil:
		b.WriteString(v.styles.Error.Render(fmt.Sprintf("Error: %s", v.err.Error())))
	case len(v.documents) == 0:
		b.WriteString(v.styles.Muted.Render("No documents ingested. Run `sercha-context ingest <path>`."))
	default:
		visibleItems := v.visibleItemCount()
		end := min(v.scrollOffset+visibleItems, len(v.documents))
		for i := v.scrollOffset; i < end; i++ {
			b.WriteString(v.renderDocument(i, &v.documents[i]))
			b.WriteString("\n")
		}
		if len(v.documents) > visibleItems {
			b.WriteString(v.styles.Muted.Render(fmt.Sprintf("  [%d-%d of %d]",
				v.scrollOffset+1, end, len(v.documents))))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	if v.confirmDelete {
		if doc := v.SelectedDocument(); doc != nil {
			b.WriteString(v.styles.Warning.Render(fmt.Sprintf("Delete %s? [y/N]", label(doc))))
			b.WriteString("\n")
		}
	} else if v.notice != "" {
		b.WriteString(v.styles.Success.Render(v.notice))
		b.WriteString("\n")
	}

	b.WriteString(v.styles.Help.Render("[↑/↓] navigate  [d] delete  [m] repair metadata  [r] reload  [esc] back"))
	return b.String()
}

// renderDocument renders a single document line.
func (v *View) renderDocument(index int, doc *domain.DocumentSummary) string {
	indicator := "  "
	if index == v.selected {
		indicator = "> "
	}

	title := label(doc)
	maxTitleLen := v.width/2 - 4
	if maxTitleLen < 10 {
		maxTitleLen = 10
	}
	if len(title) > maxTitleLen {
		title = title[:maxTitleLen-3] + "..."
	}

	detail := fmt.Sprintf("%d segments", doc.SegmentCount)
	if doc.Metadata.ContentType != "" {
		detail += "  " + doc.Metadata.ContentType
	}

	if index == v.selected {
		return v.styles.Selected.Render(fmt.Sprintf("%s%-*s  %s", indicator, maxTitleLen, title, detail))
	}
	return v.styles.Normal.Render(fmt.Sprintf("%s%-*s  ", indicator, maxTitleLen, title)) +
		v.styles.Muted.Render(detail)
}

func label(doc *domain.DocumentSummary) string {
	if doc.Metadata.Title != "" {
		return doc.Metadata.Title
	}
	if doc.Metadata.Filename != "" {
		return doc.Metadata.Filename
	}
	return doc.DocumentID
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
}

// Documents returns the current list of documents.
func (v *View) Documents() []domain.DocumentSummary {
	return v.documents
}

// SelectedIndex returns the currently selected document index.
func (v *View) SelectedIndex() int {
	return v.selected
}

// SelectedDocument returns the currently selected document.
func (v *View) SelectedDocument() *domain.DocumentSummary {
	if v.selected < len(v.documents) {
		return &v.documents[v.selected]
	}
	return nil
}

// ConfirmingDelete reports whether the delete prompt is showing.
func (v *View) ConfirmingDelete() bool {
	return v.confirmDelete
}

// Loading reports whether a reload is in flight.
func (v *View) Loading() bool {
	return v.loading
}

// Err returns the last error.
func (v *View) Err() error {
	return v.err
}
