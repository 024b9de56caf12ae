package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/currax/manudash/internal/download"
)

// downloadsModel renders one toast card per visible download session and
// forwards hide/abort key events to the manager. All session state lives
// in the manager; this model only holds the cursor.
type downloadsModel struct {
	dm            *download.Manager
	bar           progress.Model
	cursor        int
	disableKeymap bool
}

func initialDownloadsModel(dm *download.Manager) downloadsModel {
	bar := progress.New(
		progress.WithGradient(subduedHighlightColor.Dark, highlightColor.Dark),
		progress.WithoutPercentage(),
	)
	return downloadsModel{dm: dm, bar: bar}
}

func (m downloadsModel) Init() tea.Cmd {
	return tea.Batch(m.listenForUpdates(), m.listenForAlerts())
}

// listenForUpdates blocks on the manager's update channel and re-arms
// itself after every message, keeping the panel in sync with sessions
// mutated off the UI loop.
func (m downloadsModel) listenForUpdates() tea.Cmd {
	return func() tea.Msg {
		return downloadUpdateMsg(<-m.dm.Updates())
	}
}

func (m downloadsModel) listenForAlerts() tea.Cmd {
	return func() tea.Msg {
		return downloadAlertMsg(<-m.dm.Alerts())
	}
}

func (m downloadsModel) capturesKeyEvent(msg tea.KeyMsg) bool {
	if currentFocus != downloads || m.disableKeymap {
		return false
	}
	switch msg.String() {
	case "up", "down", "j", "k", "x", "c":
		return true
	}
	return false
}

func (m downloadsModel) Update(msg tea.Msg) (downloadsModel, tea.Cmd) {
	switch msg := msg.(type) {

	case downloadUpdateMsg:
		m.clampCursor()
		return m, m.listenForUpdates()

	case downloadAlertMsg:
		return m, m.listenForAlerts()

	case tea.KeyMsg:
		if !m.capturesKeyEvent(msg) {
			return m, nil
		}
		toasts := m.dm.Toasts()
		switch msg.String() {
		case "up", "k":
			m.cursor = max(0, m.cursor-1)
		case "down", "j":
			m.cursor = min(max(0, len(toasts)-1), m.cursor+1)
		case "x":
			// hides the toast only, an active session keeps downloading
			if t, ok := m.selected(toasts); ok {
				m.dm.HideToast(t.MSID)
				m.clampCursor()
			}
		case "c":
			if t, ok := m.selected(toasts); ok {
				m.dm.AbortDownload(t.MSID)
				m.clampCursor()
			}
		}
	}
	return m, nil
}

func (m downloadsModel) selected(toasts []download.SessionView) (download.SessionView, bool) {
	if m.cursor < 0 || m.cursor >= len(toasts) {
		return download.SessionView{}, false
	}
	return toasts[m.cursor], true
}

func (m *downloadsModel) clampCursor() {
	if n := len(m.dm.Toasts()); m.cursor >= n {
		m.cursor = max(0, n-1)
	}
}

func (m *downloadsModel) updateDimensions() {
	m.bar.Width = max(4, toastPanelW()-toastCardStyle.GetHorizontalFrameSize()-2)
}

func (m downloadsModel) View() string {
	toasts := m.dm.Toasts()
	title := titleStyle.Render(fmt.Sprintf("Downloads (%d)", len(toasts)))
	if len(toasts) == 0 {
		return title + "\n\n" + toastStatusStyle.Render("No downloads in progress")
	}

	cards := make([]string, 0, len(toasts)+1)
	cards = append(cards, title)
	// newest cards fade from the highlight down to the subdued border tone
	gradient := generateGradient(highlightColor, subduedHighlightColor, len(toasts))
	for i, t := range toasts {
		style := toastCardStyle
		if i == m.cursor && currentFocus == downloads {
			style = toastCardSelectedStyle
		}
		cards = append(cards, style.Render(m.renderCard(t, gradient[i])))
	}
	return strings.Join(cards, "\n")
}

func (m downloadsModel) renderCard(t download.SessionView, headerColor lipgloss.AdaptiveColor) string {
	w := max(4, toastPanelW()-toastCardStyle.GetHorizontalFrameSize()-2)
	var b strings.Builder
	header := runewidth.Truncate(t.MSID+" ("+string(t.Kind)+")", w, "…")
	b.WriteString(lipgloss.NewStyle().Foreground(headerColor).Render(header))
	b.WriteString("\n")
	b.WriteString(toastStatusStyle.Render(runewidth.Truncate(t.Title, w, "…")))
	b.WriteString("\n")

	p := t.Progress
	if p == nil {
		b.WriteString(toastStatusStyle.Render("Starting…"))
		return b.String()
	}

	b.WriteString(m.bar.ViewAs(float64(p.Progress) / 100))
	b.WriteString("\n")
	status := p.Status
	switch status {
	case download.StatusFailed:
		status = checkFailStyle.Render(status)
	case download.StatusCancelled, download.StatusConnError:
		status = checkWarnStyle.Render(status)
	}
	b.WriteString(runewidth.Truncate(status, w, "…"))
	if p.CurrentFile != "" {
		b.WriteString("\n")
		b.WriteString(toastStatusStyle.Render(runewidth.Truncate(p.CurrentFile, w, "…")))
	}
	if p.TotalFiles > 0 {
		b.WriteString("\n")
		detail := fmt.Sprintf("%d/%d files", p.DownloadedFiles, p.TotalFiles)
		if p.DownloadSpeed != "" {
			detail += " • " + p.DownloadSpeed
		}
		b.WriteString(toastStatusStyle.Render(runewidth.Truncate(detail, w, "…")))
	}
	return b.String()
}

func (m *downloadsModel) updateKeymap(disable bool) {
	m.disableKeymap = disable
}
