package main

import (
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/lehungry-robotum/commander/pkg/config"
	"github.com/lehungry-robotum/commander/pkg/dispatch"
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	subHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	successStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warningStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func printHeader(title string) {
	fmt.Println()
	fmt.Println(subHeaderStyle.Render("━━━ " + title + " ━━━"))
	fmt.Println()
}

func printWarning(format string, args ...any) {
	fmt.Println(warningStyle.Render("[!] " + fmt.Sprintf(format, args...)))
}

func printError(err error) {
	fmt.Println(errorStyle.Render("Error: " + err.Error()))
}

// printOutcome reports a finished toolkit command.
func printOutcome(out dispatch.Outcome, label string) {
	msg := out.Report(label)
	fmt.Println()
	switch out.Status {
	case dispatch.Succeeded:
		fmt.Println(successStyle.Render(msg))
	case dispatch.Interrupted:
		fmt.Println(warningStyle.Render(msg))
	default:
		fmt.Println(errorStyle.Render(msg))
	}
}

func renderStatus(cfg config.Config) string {
	rows := [][]string{
		{"Leader Port", cfg.Describe(config.KeyLeaderPort)},
		{"Follower Port", cfg.Describe(config.KeyFollowerPort)},
		{"Cameras", cfg.Get(config.KeyRobotCameras, dispatch.NoCameras)},
	}

	labelStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Padding(0, 1)
	valueStyle := lipgloss.NewStyle().Padding(0, 1)
	unsetStyle := dimStyle.Padding(0, 1)

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case col == 0:
				return labelStyle
			case row >= 0 && row < len(rows) && rows[row][1] == config.NotSet:
				return unsetStyle
			default:
				return valueStyle
			}
		}).
		Render()
}

// waitForUser blocks until the user continues.
func waitForUser(title, description string) error {
	return huh.NewConfirm().
		Title(title).
		Description(description).
		Affirmative("Continue").
		Negative("").
		Value(new(bool)).
		Run()
}
