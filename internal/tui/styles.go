package tui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/lucasb-eyer/go-colorful"
)

var (
	bgColor               = lipgloss.AdaptiveColor{Light: "#fbf1c7", Dark: "#282828"}
	fgColor               = lipgloss.AdaptiveColor{Light: "#282828", Dark: "#fbf1c7"}
	redColor              = lipgloss.AdaptiveColor{Light: "#9d0006", Dark: "#fb4934"}
	yellowColor           = lipgloss.AdaptiveColor{Light: "#b57614", Dark: "#fabd2f"}
	greenColor            = lipgloss.AdaptiveColor{Light: "#79740e", Dark: "#b8bb26"}
	highlightColor        = lipgloss.AdaptiveColor{Light: "#076678", Dark: "#83a598"}
	midHighlightColor     = lipgloss.AdaptiveColor{Light: "#427b58", Dark: "#8ec07c"}
	subduedHighlightColor = lipgloss.AdaptiveColor{Light: "#d5c4a1", Dark: "#504945"}
	grayColor             = lipgloss.AdaptiveColor{Light: "#999999", Dark: "#444444"}

	generateGradient = func(base, target lipgloss.AdaptiveColor, steps int) []lipgloss.AdaptiveColor {
		bLight, _ := colorful.Hex(base.Light)
		bDark, _ := colorful.Hex(base.Dark)
		tLight, _ := colorful.Hex(target.Light)
		tDark, _ := colorful.Hex(target.Dark)
		gradient := make([]lipgloss.AdaptiveColor, steps)
		for i := range steps {
			factor := float64(i) / float64(steps)
			gradient[i] = lipgloss.AdaptiveColor{
				Light: bLight.BlendLuv(tLight, factor).Hex(),
				Dark:  bDark.BlendLuv(tDark, factor).Hex(),
			}
		}
		return gradient
	}
)

var ( // container width calculations

	workableW = func() int {
		w := mainContainerStyle.GetHorizontalFrameSize()
		return max(0, termW-w)
	}

	workableH = func() int {
		h := mainContainerStyle.GetVerticalFrameSize()
		return max(0, termH-h-1) // 1 for the status bar
	}

	toastPanelW = func() int {
		w := (workableW() * 30) / 100
		return max(24, w)
	}

	contentW = func() int {
		return max(0, workableW()-toastPanelW()-toastPanelStyle.GetHorizontalFrameSize())
	}
)

var ( // common styles

	titleStyle = lipgloss.NewStyle().
			Background(subduedHighlightColor).
			Foreground(highlightColor).
			Italic(true).
			Height(1).
			Padding(0, 1)

	mainContainerStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder(), true).
				BorderForeground(highlightColor)

	statusBarStyle = lipgloss.NewStyle().
			Height(1).
			Italic(true).
			Faint(true).
			Foreground(highlightColor).
			Padding(0, 1)
)

var ( // queue styles

	queueFilterContainerStyle = lipgloss.NewStyle().
		Align(lipgloss.Center)
)

var ( // detail styles

	detailSectionStyle = lipgloss.NewStyle().
				Foreground(midHighlightColor).
				Bold(true).
				MarginTop(1)

	checkPassStyle = lipgloss.NewStyle().Foreground(greenColor)
	checkWarnStyle = lipgloss.NewStyle().Foreground(yellowColor)
	checkFailStyle = lipgloss.NewStyle().Foreground(redColor)

	aiTagStyle = lipgloss.NewStyle().
			Foreground(grayColor).
			Italic(true)

	identifierStyle = lipgloss.NewStyle().
			Foreground(highlightColor).
			Underline(true)
)

var ( // downloads panel styles

	toastPanelStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(subduedHighlightColor).
			Padding(0, 1)

	toastCardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(subduedHighlightColor).
			Padding(0, 1)

	toastCardSelectedStyle = toastCardStyle.
				BorderForeground(highlightColor)

	toastStatusStyle = lipgloss.NewStyle().
				Faint(true).
				Italic(true)
)

var ( // alertDialogModel styles

	alertDialogContainerStyle = lipgloss.NewStyle().
					BorderStyle(lipgloss.RoundedBorder()).
					BorderForeground(redColor).
					Padding(1, 2)

	alertDialogHeaderStyle = lipgloss.NewStyle().
				Background(redColor).
				Foreground(bgColor).
				Padding(0, 1)

	alertDialogBodyStyle = lipgloss.NewStyle().
				Italic(true).
				Padding(1, 0).
				Foreground(fgColor)
)
