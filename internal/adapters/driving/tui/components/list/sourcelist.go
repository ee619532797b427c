// Package list provides list display components for the TUI.
package list

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/sercha-context/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/sercha-context/internal/core/domain"
)

// SourceList displays the documents an answer was grounded on.
type SourceList struct {
	runs     []domain.DocumentRun
	selected int
	styles   *styles.Styles
	width    int
	height   int
}

// NewSourceList creates a new source list component.
func NewSourceList(s *styles.Styles) *SourceList {
	if s == nil {
		s = styles.DefaultStyles()
	}

	return &SourceList{
		styles: s,
		width:  80,
		height: 6,
	}
}

// Init initialises the source list.
func (l *SourceList) Init() tea.Cmd {
	return nil
}

// Update handles list navigation messages.
func (l *SourceList) Update(msg tea.Msg) (*SourceList, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "up", "k":
			l.MoveUp()
		case "down", "j":
			l.MoveDown()
		}
	}
	return l, nil
}

// View renders the source list.
func (l *SourceList) View() string {
	if len(l.runs) == 0 {
		return ""
	}

	lines := make([]string, 0, len(l.runs)+1)
	lines = append(lines, l.styles.Subtitle.Render(fmt.Sprintf("Sources (%d)", len(l.runs))))

	visible := l.height - 1
	if visible < 1 {
		visible = 1
	}
	start := 0
	if l.selected >= visible {
		start = l.selected - visible + 1
	}
	end := min(start+visible, len(l.runs))

	for i := start; i < end; i++ {
		lines = append(lines, l.renderRun(i, &l.runs[i]))
	}
	return strings.Join(lines, "\n")
}

// renderRun formats one cited document.
func (l *SourceList) renderRun(index int, run *domain.DocumentRun) string {
	indicator := "  "
	if index == l.selected {
		indicator = "> "
	}

	label := run.Label()
	maxLabelLen := l.width - 30
	if maxLabelLen < 10 {
		maxLabelLen = 10
	}
	if len(label) > maxLabelLen {
		label = label[:maxLabelLen-3] + "..."
	}

	detail := fmt.Sprintf("%.2f  %s", run.BestScore, formatIndices(run.Indices()))
	if run.Degraded {
		detail += " (hits only)"
	}

	line := fmt.Sprintf("%s[%d] %-*s  ", indicator, index+1, maxLabelLen, label)
	if index == l.selected {
		return l.styles.Selected.Render(line + detail)
	}
	return l.styles.Source.Render(line) + l.styles.Muted.Render(detail)
}

// formatIndices renders segment indices as compact ranges, e.g. "#2-4, #9".
func formatIndices(indices []int) string {
	if len(indices) == 0 {
		return ""
	}

	var parts []string
	start, prev := indices[0], indices[0]
	flush := func() {
		if start == prev {
			parts = append(parts, fmt.Sprintf("#%d", start))
		} else {
			parts = append(parts, fmt.Sprintf("#%d-%d", start, prev))
		}
	}
	for _, idx := range indices[1:] {
		if idx == prev+1 {
			prev = idx
			continue
		}
		flush()
		start, prev = idx, idx
	}
	flush()
	return strings.Join(parts, ", ")
}

// SetRuns replaces the listed documents.
func (l *SourceList) SetRuns(runs []domain.DocumentRun) {
	l.runs = runs
	l.selected = 0
}

// Runs returns the listed documents.
func (l *SourceList) Runs() []domain.DocumentRun {
	return l.runs
}

// Selected returns the index of the selected run.
func (l *SourceList) Selected() int {
	return l.selected
}

// SelectedRun returns the currently selected run, or nil if none.
func (l *SourceList) SelectedRun() *domain.DocumentRun {
	if l.selected < 0 || l.selected >= len(l.runs) {
		return nil
	}
	return &l.runs[l.selected]
}

// MoveUp moves selection up.
func (l *SourceList) MoveUp() {
	if l.selected > 0 {
		l.selected--
	}
}

// MoveDown moves selection down.
func (l *SourceList) MoveDown() {
	if l.selected < len(l.runs)-1 {
		l.selected++
	}
}

// SetDimensions sets the component dimensions.
func (l *SourceList) SetDimensions(width, height int) {
	l.width = width
	l.height = height
}

// Height returns the current height.
func (l *SourceList) Height() int {
	return l.height
}

// Count returns the number of listed documents.
func (l *SourceList) Count() int {
	return len(l.runs)
}

// IsEmpty returns whether the list is empty.
func (l *SourceList) IsEmpty() bool {
	return len(l.runs) == 0
}
