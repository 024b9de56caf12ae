package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
)

type alertDialogModel struct {
	header, body string
	// prevFocus remembers the previously focused space
	// and restores it on dismissal
	prevFocus focusSpace
	// active signals this model's view must be rendered
	active bool
}

func initialAlertDialogModel() alertDialogModel {
	return alertDialogModel{}
}

func (m alertDialogModel) capturesKeyEvent(msg tea.KeyMsg) bool {
	switch msg.String() {
	case "enter", "esc":
		return m.active
	default:
		return false
	}
}

func (m alertDialogModel) Update(msg tea.Msg) (alertDialogModel, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		if currentFocus != alert {
			return m, nil
		}
		switch msg.String() {
		case "enter", "esc":
			return m.hide(), nil
		}

	case downloadAlertMsg:
		body := msg.MSID + " • " + msg.Title + "\n\n" + msg.Message
		return m.show("Download Failed", body), nil

	case errMsg:
		if !msg.fatal {
			return m.show("Error", msg.errStr), nil
		}
	}
	return m, nil
}

func (m alertDialogModel) show(header, body string) alertDialogModel {
	m.header, m.body = header, body
	if currentFocus != alert { // in-case multiple alerts stack up
		m.prevFocus = currentFocus
	}
	currentFocus = alert
	m.active = true
	return m
}

func (m alertDialogModel) hide() alertDialogModel {
	m.active = false
	currentFocus = m.prevFocus
	return m
}

func (m alertDialogModel) View() string {
	w := min(60, max(20, termW-10))
	header := alertDialogHeaderStyle.Render(m.header)
	body := alertDialogBodyStyle.Render(wordwrap.String(m.body, w))
	btn := toastStatusStyle.Render("enter/esc to dismiss")
	content := lipgloss.JoinVertical(lipgloss.Left, header, body, btn)
	return alertDialogContainerStyle.Width(w + alertDialogContainerStyle.GetHorizontalFrameSize()).Render(content)
}
