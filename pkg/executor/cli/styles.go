package cli

import "github.com/charmbracelet/lipgloss"

// Color Palette
var (
	salmonPink  = lipgloss.Color("#FFB3BA") // primary accent, errors
	coralPink   = lipgloss.Color("#FFCCCB") // user prompt
	mintGreen   = lipgloss.Color("#A8E6CF") // tool and success states
	amber       = lipgloss.Color("#FFD59E") // stop and step limit
	mutedGray   = lipgloss.Color("#6B7280") // secondary text
	brightWhite = lipgloss.Color("#F9FAFB") // primary text
)

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(salmonPink).
			Bold(true)

	tipsStyle = lipgloss.NewStyle().
			Foreground(mutedGray)

	promptStyle = lipgloss.NewStyle().
			Foreground(coralPink).
			Bold(true)

	assistantStyle = lipgloss.NewStyle().
			Foreground(brightWhite)

	systemStyle = lipgloss.NewStyle().
			Foreground(mutedGray).
			Italic(true)

	toolStyle = lipgloss.NewStyle().
			Foreground(mintGreen)

	successStyle = lipgloss.NewStyle().
			Foreground(mintGreen).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(amber).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(salmonPink)
)
