// Package tui renders the editorial dashboard: the validation queue, a
// manuscript detail space and the download toast panel, with an alert
// dialog overlaid for surfaced failures.
package tui

import (
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/currax/manudash/internal/client"
	"github.com/currax/manudash/internal/config"
	"github.com/currax/manudash/internal/download"
)

type focusSpace int

const (
	queue focusSpace = iota
	detail
	downloads
	alert
)

var (
	termW, termH int
	currentFocus focusSpace
)

type MainModel struct {
	queue     queueModel
	detail    detailModel
	downloads downloadsModel
	alert     alertDialogModel

	client *client.Client
	dm     *download.Manager
	cfg    config.Config
}

func InitialMainModel() MainModel {
	cfg, err := config.Get()
	if err != nil {
		if cfg, err = config.Load(); err != nil {
			slog.Error("loading config", "err", err)
		}
	}
	c := client.New(cfg.API.BaseURL)
	c.LimitConcurrentDownloads(min(cfg.Download.ConcurrentDownloads, config.MaxConcurrentDownloads))
	dm := download.New(c, cfg.Download.Folder)
	currentFocus = queue
	return MainModel{
		queue:     initialQueueModel(c),
		detail:    initialDetailModel(c),
		downloads: initialDownloadsModel(dm),
		alert:     initialAlertDialogModel(),
		client:    c,
		dm:        dm,
		cfg:       cfg,
	}
}

func (m MainModel) Init() tea.Cmd {
	return tea.Batch(
		m.queue.Init(),
		m.downloads.Init(),
	)
}

func (m MainModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		termW, termH = msg.Width, msg.Height
		m.updateDimensions()

	case tea.KeyMsg:
		if m.alert.capturesKeyEvent(msg) {
			cmd := m.handleChildModelUpdate(msg)
			m.updateKeymap()
			return m, cmd
		}
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "q":
			if currentFocus == queue && !m.queue.filtering() {
				return m, tea.Quit
			}
		case "tab", "shift+tab":
			m.switchFocus(msg.String() == "tab")
			return m, tea.Batch(msgToCmd(spaceFocusSwitchMsg{}), m.handleChildModelUpdate(msg))
		}

	case openDetailMsg:
		if msg.focus {
			currentFocus = detail
		}

	case startDownloadMsg:
		m.dm.StartDownload(msg.msid, msg.title, msg.kind, m.cfg.API.UseRemote)
		return m, m.handleChildModelUpdate(msg)

	case errMsg:
		if msg.fatal {
			slog.Error(msg.err.Error())
			os.Exit(1)
		}

	case downloadAlertMsg:
		// failures surface twice, on the toast and on this dialog,
		// which grabs the keymap while shown
	}

	cmd := m.handleChildModelUpdate(msg)
	m.updateKeymap()
	return m, cmd
}

func (m *MainModel) switchFocus(forward bool) {
	spaces := []focusSpace{queue, detail, downloads}
	for i, s := range spaces {
		if s != currentFocus {
			continue
		}
		if forward {
			currentFocus = spaces[(i+1)%len(spaces)]
		} else {
			currentFocus = spaces[(i-1+len(spaces))%len(spaces)]
		}
		return
	}
	currentFocus = queue
}

func (m *MainModel) updateKeymap() {
	disable := m.alert.active
	m.queue.updateKeymap(disable)
	m.detail.updateKeymap(disable)
	m.downloads.updateKeymap(disable)
}

func (m *MainModel) updateDimensions() {
	m.queue.updateDimensions()
	m.detail.updateDimensions()
	m.downloads.updateDimensions()
}

func (m *MainModel) handleChildModelUpdate(msg tea.Msg) tea.Cmd {
	var cmds [4]tea.Cmd
	m.queue, cmds[0] = m.queue.Update(msg)
	m.detail, cmds[1] = m.detail.Update(msg)
	m.downloads, cmds[2] = m.downloads.Update(msg)
	m.alert, cmds[3] = m.alert.Update(msg)
	return tea.Batch(cmds[:]...)
}

func (m MainModel) View() string {
	var content string
	if currentFocus == detail || m.detail.showing() {
		content = m.detail.View()
	} else {
		content = m.queue.View()
	}
	content = lipgloss.NewStyle().Width(contentW()).Height(workableH()).Render(content)
	panel := toastPanelStyle.Width(toastPanelW()).Height(workableH()).Render(m.downloads.View())

	body := lipgloss.JoinHorizontal(lipgloss.Top, content, panel)
	view := lipgloss.JoinVertical(lipgloss.Left, body, m.statusBar())
	view = mainContainerStyle.Width(workableW()).Render(view)

	if m.alert.active {
		return lipgloss.Place(termW, termH, lipgloss.Center, lipgloss.Center, m.alert.View())
	}
	return lipgloss.Place(termW, termH, lipgloss.Center, lipgloss.Center, view)
}

func (m MainModel) statusBar() string {
	help := "tab: switch • enter: open • d/D: download • x: hide • c: abort • q: quit"
	switch currentFocus {
	case detail:
		help = "tab: switch • d: essential files • D: all files • esc: back • ctrl+c: quit"
	case downloads:
		help = "tab: switch • ↑/↓: select • x: hide toast • c: abort download • ctrl+c: quit"
	}
	return statusBarStyle.Width(workableW()).Render(help)
}
