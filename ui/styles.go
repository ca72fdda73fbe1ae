package ui

import "github.com/charmbracelet/lipgloss"

var (
	mintGreen = lipgloss.AdaptiveColor{Light: "#89F0CB", Dark: "#89F0CB"}
	darkGreen = lipgloss.AdaptiveColor{Light: "#1C8760", Dark: "#1C8760"}
	red       = lipgloss.AdaptiveColor{Light: "#FF4672", Dark: "#ED567A"}
	yellow    = lipgloss.AdaptiveColor{Light: "#B58900", Dark: "#ECFD65"}
	blue      = lipgloss.AdaptiveColor{Light: "#0087D7", Dark: "#00AAFF"}
	gray      = lipgloss.AdaptiveColor{Light: "#909090", Dark: "#626262"}
	faint     = lipgloss.AdaptiveColor{Light: "#B2B2B2", Dark: "#4A4A4A"}

	statusBarNoteFg = lipgloss.AdaptiveColor{Light: "#656565", Dark: "#7D7D7D"}
	statusBarBg     = lipgloss.AdaptiveColor{Light: "#E6E6E6", Dark: "#242424"}

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(darkGreen).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().Foreground(gray)

	selectedStyle = lipgloss.NewStyle().Foreground(mintGreen).Bold(true)

	statusBarNoteStyle = lipgloss.NewStyle().
				Foreground(statusBarNoteFg).
				Background(statusBarBg)

	statusBarMessageStyle = lipgloss.NewStyle().
				Foreground(mintGreen).
				Background(darkGreen)

	errorStyle = lipgloss.NewStyle().Foreground(red)

	warnStyle = lipgloss.NewStyle().Foreground(yellow)

	helpStyle = lipgloss.NewStyle().Foreground(faint)
)
