package main

import (
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/lmittmann/tint"

	"github.com/currax/manudash/internal/config"
	"github.com/currax/manudash/internal/tui"
)

func main() {
	f, err := tea.LogToFile("manudash.log", "manudash")
	if err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
	defer f.Close()

	h := tint.NewHandler(f, &tint.Options{TimeFormat: time.Kitchen, NoColor: true})
	slog.SetDefault(slog.New(h))

	if _, err = config.Load(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}

	_, err = tea.NewProgram(
		tui.InitialMainModel(),
		tea.WithAltScreen(),
		tea.WithoutBracketedPaste(),
	).Run()
	if err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}
