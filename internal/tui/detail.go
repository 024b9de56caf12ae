package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/muesli/reflow/wordwrap"

	"github.com/currax/manudash/internal/client"
	"github.com/currax/manudash/internal/domain"
)

type detailModel struct {
	client        *client.Client
	vp            viewport.Model
	ms            *domain.Manuscript
	loadingMSID   string
	disableKeymap bool
}

func initialDetailModel(c *client.Client) detailModel {
	return detailModel{client: c, vp: viewport.New(0, 0)}
}

func (m detailModel) showing() bool { return m.ms != nil || m.loadingMSID != "" }

func (m detailModel) capturesKeyEvent(msg tea.KeyMsg) bool {
	if currentFocus != detail || m.disableKeymap {
		return false
	}
	switch msg.String() {
	case "up", "down", "j", "k", "pgup", "pgdown", "d", "D", "esc":
		return true
	}
	return false
}

func (m detailModel) Update(msg tea.Msg) (detailModel, tea.Cmd) {
	switch msg := msg.(type) {

	case openDetailMsg:
		m.loadingMSID = msg.msid
		return m, m.fetchManuscript(msg.msid)

	case manuscriptLoadedMsg:
		ms := (*domain.Manuscript)(msg)
		if ms == nil || ms.MSID != m.loadingMSID {
			return m, nil // a later selection superseded this load
		}
		m.ms = ms
		m.loadingMSID = ""
		m.vp.SetContent(m.renderManuscript())
		m.vp.GotoTop()

	case tea.WindowSizeMsg:
		m.updateDimensions()

	case tea.KeyMsg:
		if !m.capturesKeyEvent(msg) {
			return m, nil
		}
		switch msg.String() {
		case "esc":
			m.ms = nil
			m.loadingMSID = ""
			currentFocus = queue
			return m, nil
		case "d":
			if m.ms != nil {
				return m, msgToCmd(startDownloadMsg{msid: m.ms.MSID, title: m.ms.Title, kind: domain.EssentialFiles})
			}
			return m, nil
		case "D":
			if m.ms != nil {
				return m, msgToCmd(startDownloadMsg{msid: m.ms.MSID, title: m.ms.Title, kind: domain.AllFiles})
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.vp, cmd = m.vp.Update(msg)
	return m, cmd
}

func (m detailModel) fetchManuscript(msid string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		ms, err := m.client.Manuscript(ctx, msid)
		if err != nil {
			return errMsg{err: err, errStr: fmt.Sprintf("Unable to load manuscript %s", msid)}
		}
		return manuscriptLoadedMsg(ms)
	}
}

func (m detailModel) renderManuscript() string {
	ms := m.ms
	w := max(10, contentW()-2)
	var b strings.Builder

	b.WriteString(wordwrap.String(ms.Title, w))
	b.WriteString("\n")
	b.WriteString(toastStatusStyle.Render(fmt.Sprintf("%s • %s • %s", ms.MSID, ms.Journal, ms.Status)))
	b.WriteString("\n")
	if len(ms.Authors) > 0 {
		b.WriteString(wordwrap.String(strings.Join(ms.Authors, ", "), w))
		b.WriteString("\n")
	}
	b.WriteString(toastStatusStyle.Render("received " + humanize.Time(ms.ReceivedAt)))
	b.WriteString("\n")

	if len(ms.Figures) > 0 {
		b.WriteString(detailSectionStyle.Render("Figures & QC"))
		b.WriteString("\n")
		for _, fig := range ms.Figures {
			b.WriteString(fig.Label + "\n")
			writeChecks(&b, fig.Checks, w, "  ")
			for _, p := range fig.Panels {
				b.WriteString("  Panel " + p.Label + "\n")
				writeChecks(&b, p.Checks, w, "    ")
			}
		}
	}

	if len(ms.Identifiers) > 0 {
		b.WriteString(detailSectionStyle.Render("Linked Identifiers"))
		b.WriteString("\n")
		for _, id := range ms.Identifiers {
			b.WriteString(fmt.Sprintf("%s: %s\n", id.Kind, identifierStyle.Render(id.Value)))
		}
	}

	if len(ms.Files) > 0 {
		b.WriteString(detailSectionStyle.Render("Files"))
		b.WriteString("\n")
		for _, f := range ms.Files {
			marker := " "
			if f.Essential {
				marker = "*"
			}
			b.WriteString(fmt.Sprintf("%s %s (%s)\n", marker, f.Name, humanize.Bytes(uint64(f.Size))))
		}
		b.WriteString(toastStatusStyle.Render("* essential, d: essential files, D: all files"))
		b.WriteString("\n")
	}

	return b.String()
}

func writeChecks(b *strings.Builder, checks []domain.QCCheck, w int, indent string) {
	for _, c := range checks {
		style := checkPassStyle
		switch c.Outcome {
		case "warn":
			style = checkWarnStyle
		case "fail":
			style = checkFailStyle
		}
		line := fmt.Sprintf("%s%s %s", indent, style.Render(c.Outcome), c.Type)
		if c.AIGenerated {
			line += " " + aiTagStyle.Render("[ai]")
		}
		b.WriteString(line + "\n")
		if c.Message != "" {
			msg := wordwrap.String(c.Message, max(10, w-len(indent)-2))
			for l := range strings.SplitSeq(msg, "\n") {
				b.WriteString(indent + "  " + toastStatusStyle.Render(l) + "\n")
			}
		}
	}
}

func (m *detailModel) updateDimensions() {
	m.vp.Width = contentW()
	m.vp.Height = max(0, workableH()-2)
	if m.ms != nil {
		m.vp.SetContent(m.renderManuscript())
	}
}

func (m detailModel) View() string {
	title := "Manuscript"
	if m.ms != nil {
		title = "Manuscript " + m.ms.MSID
	} else if m.loadingMSID != "" {
		title = "Loading " + m.loadingMSID + "…"
	}
	return titleStyle.Render(title) + "\n\n" + m.vp.View()
}

func (m *detailModel) updateKeymap(disable bool) {
	m.disableKeymap = disable
}
