package tui

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"
	"github.com/sahilm/fuzzy"

	"github.com/currax/manudash/internal/client"
	"github.com/currax/manudash/internal/domain"
)

type filterState int

const (
	unfiltered filterState = iota
	filtering
	filterApplied
)

// manuscriptSource adapts the listing for fuzzy matching over
// "MSID title" strings.
type manuscriptSource []domain.Manuscript

func (s manuscriptSource) String(i int) string { return s[i].MSID + " " + s[i].Title }
func (s manuscriptSource) Len() int            { return len(s) }

type queueModel struct {
	client        *client.Client
	msTable       table.Model
	filter        textinput.Model
	manuscripts   []domain.Manuscript
	shown         []domain.Manuscript
	filterState   filterState
	sortAsc       bool
	disableKeymap bool
}

func initialQueueModel(c *client.Client) queueModel {
	filter := textinput.New()
	filter.Placeholder = "filter by msid or title"
	filter.CharLimit = 80
	filter.Prompt = "/ "

	msTable := table.New(
		table.WithColumns(queueColumns()),
		table.WithFocused(true),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.Foreground(highlightColor).BorderForeground(subduedHighlightColor).BorderBottom(true)
	s.Selected = s.Selected.Background(subduedHighlightColor).Foreground(highlightColor).Italic(true)
	msTable.SetStyles(s)

	return queueModel{client: c, msTable: msTable, filter: filter}
}

func queueColumns() []table.Column {
	w := contentW()
	msidW := 14
	statusW := 20
	recvW := 14
	journalW := 24
	titleW := max(10, w-msidW-statusW-recvW-journalW-10)
	return []table.Column{
		{Title: "MSID", Width: msidW},
		{Title: "Title", Width: titleW},
		{Title: "Journal", Width: journalW},
		{Title: "Status", Width: statusW},
		{Title: "Received", Width: recvW},
	}
}

func (m queueModel) Init() tea.Cmd {
	return m.fetchManuscripts()
}

func (m queueModel) fetchManuscripts() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mss, err := m.client.Manuscripts(ctx)
		if err != nil {
			return errMsg{err: err, errStr: "Unable to load the validation queue, is the review API reachable?"}
		}
		return manuscriptsLoadedMsg(mss)
	}
}

func (m queueModel) filtering() bool { return m.filterState == filtering }

func (m queueModel) capturesKeyEvent(msg tea.KeyMsg) bool {
	if currentFocus != queue || m.disableKeymap {
		return false
	}
	if m.filterState == filtering {
		return true
	}
	switch msg.String() {
	case "up", "down", "j", "k", "enter", "/", "r", "s", "esc":
		return true
	}
	return false
}

func (m queueModel) Update(msg tea.Msg) (queueModel, tea.Cmd) {
	switch msg := msg.(type) {

	case manuscriptsLoadedMsg:
		m.manuscripts = msg
		m.applyFilter()

	case tea.WindowSizeMsg:
		m.updateDimensions()

	case tea.KeyMsg:
		if !m.capturesKeyEvent(msg) {
			return m, nil
		}
		if m.filterState == filtering {
			return m.updateFilter(msg)
		}
		switch msg.String() {
		case "/":
			m.filterState = filtering
			m.filter.Focus()
			return m, textinput.Blink
		case "esc":
			if m.filterState == filterApplied {
				m.filter.Reset()
				m.filterState = unfiltered
				m.applyFilter()
			}
			return m, nil
		case "r":
			return m, m.fetchManuscripts()
		case "s":
			m.sortAsc = !m.sortAsc
			m.applyFilter()
			return m, nil
		case "enter":
			if ms, ok := m.selected(); ok {
				return m, msgToCmd(openDetailMsg{msid: ms.MSID, focus: true})
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.msTable, cmd = m.msTable.Update(msg)
	return m, cmd
}

func (m queueModel) updateFilter(msg tea.KeyMsg) (queueModel, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.filter.Blur()
		if m.filter.Value() == "" {
			m.filterState = unfiltered
		} else {
			m.filterState = filterApplied
		}
		return m, nil
	case "esc":
		m.filter.Reset()
		m.filter.Blur()
		m.filterState = unfiltered
		m.applyFilter()
		return m, nil
	}
	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	m.applyFilter()
	return m, cmd
}

func (m *queueModel) applyFilter() {
	shown := slices.Clone(m.manuscripts)
	if q := m.filter.Value(); q != "" {
		matches := fuzzy.FindFrom(q, manuscriptSource(m.manuscripts))
		shown = shown[:0]
		for _, match := range matches {
			shown = append(shown, m.manuscripts[match.Index])
		}
	} else {
		slices.SortFunc(shown, func(a, b domain.Manuscript) int {
			if m.sortAsc {
				return a.ReceivedAt.Compare(b.ReceivedAt)
			}
			return b.ReceivedAt.Compare(a.ReceivedAt)
		})
	}
	m.shown = shown
	m.populateTable()
}

func (m *queueModel) populateTable() {
	cols := queueColumns()
	rows := make([]table.Row, len(m.shown))
	for i, ms := range m.shown {
		rows[i] = table.Row{
			ms.MSID,
			runewidth.Truncate(ms.Title, cols[1].Width, "…"),
			runewidth.Truncate(ms.Journal, cols[2].Width, "…"),
			ms.Status,
			humanize.Time(ms.ReceivedAt),
		}
	}
	m.msTable.SetColumns(cols)
	m.msTable.SetRows(rows)
}

func (m queueModel) selected() (domain.Manuscript, bool) {
	i := m.msTable.Cursor()
	if i < 0 || i >= len(m.shown) {
		return domain.Manuscript{}, false
	}
	return m.shown[i], true
}

func (m *queueModel) updateDimensions() {
	m.msTable.SetWidth(contentW())
	m.msTable.SetHeight(max(0, workableH()-3)) // title + filter rows
	m.filter.Width = max(10, contentW()-4)
	m.populateTable()
}

func (m queueModel) View() string {
	title := titleStyle.Render(fmt.Sprintf("Validation Queue (%d)", len(m.shown)))
	filter := ""
	if m.filterState != unfiltered {
		filter = queueFilterContainerStyle.Width(contentW()).Render(m.filter.View())
	}
	return title + "\n" + filter + "\n" + m.msTable.View()
}

func (m *queueModel) updateKeymap(disable bool) {
	m.disableKeymap = disable
}
