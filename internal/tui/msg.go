package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/currax/manudash/internal/domain"
	"github.com/currax/manudash/internal/download"
)

type errMsg struct {
	// err to log
	err error
	// errStr: user-friendly err
	errStr string
	// flag to signal log the err to stderr and exit
	fatal bool
}

// spaceFocusSwitchMsg manages space switching using tab & shift+tab
type spaceFocusSwitchMsg struct{}

type manuscriptsLoadedMsg []domain.Manuscript

type manuscriptLoadedMsg *domain.Manuscript

// openDetailMsg asks the detail space to load and show a manuscript
type openDetailMsg struct {
	msid string
	// marker to decide whether to focus the detail space
	focus bool
}

type startDownloadMsg struct {
	msid, title string
	kind        domain.FileKind
}

// downloadUpdateMsg carries the msid whose session changed; the panel
// re-reads its snapshot from the manager
type downloadUpdateMsg string

type downloadAlertMsg download.Alert

func msgToCmd[t tea.Msg](msg t) tea.Cmd {
	return func() tea.Msg {
		return msg
	}
}
