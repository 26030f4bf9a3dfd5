package ui

import "github.com/charmbracelet/lipgloss"

// Colors used in the application.
var (
	colorPrimary   = lipgloss.Color("62")  // Purple
	colorSecondary = lipgloss.Color("241") // Gray
	colorMuted     = lipgloss.Color("240") // Darker gray
	colorHighlight = lipgloss.Color("212") // Pink
	colorSuccess   = lipgloss.Color("78")  // Green
	colorWarning   = lipgloss.Color("214") // Orange
	colorError     = lipgloss.Color("196") // Red
)

// Card is the frame around the current feed item.
var Card = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(colorPrimary).
	Padding(1, 2)

// CardTitle style for the item title.
var CardTitle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("255"))

// CardMeta style for author, date, advertiser or price.
var CardMeta = lipgloss.NewStyle().
	Foreground(colorSecondary)

// CardBody style for the description excerpt.
var CardBody = lipgloss.NewStyle().
	Foreground(lipgloss.Color("252"))

// CardReason style for the recommendation reason.
var CardReason = lipgloss.NewStyle().
	Foreground(colorMuted).
	Italic(true)

// CardTag style for a single tag.
var CardTag = lipgloss.NewStyle().
	Foreground(colorPrimary)

// Badge styles per item type.
var (
	BadgeContent = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255")).
			Background(colorPrimary).
			Padding(0, 1)

	BadgeAd = lipgloss.NewStyle().
		Foreground(lipgloss.Color("0")).
		Background(colorWarning).
		Padding(0, 1)

	BadgeProduct = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(colorSuccess).
			Padding(0, 1)
)

// FlagOn style for an active like/favorite marker.
var FlagOn = lipgloss.NewStyle().
	Foreground(colorHighlight).
	Bold(true)

// FlagOff style for an inactive marker.
var FlagOff = lipgloss.NewStyle().
	Foreground(colorMuted)

// ControlActive style for a usable pager arrow and the current dot.
var ControlActive = lipgloss.NewStyle().
	Foreground(colorHighlight).
	Bold(true)

// ControlDisabled style for an arrow that would do nothing.
var ControlDisabled = lipgloss.NewStyle().
	Foreground(lipgloss.Color("237"))

// ControlText style for the position counter and other dots.
var ControlText = lipgloss.NewStyle().
	Foreground(colorSecondary)

// StatusBar style for the bottom status bar.
var StatusBar = lipgloss.NewStyle().
	Foreground(lipgloss.Color("255")).
	Background(lipgloss.Color("236")).
	Padding(0, 1)

// StatusBarKey style for key hints in status bar.
var StatusBarKey = lipgloss.NewStyle().
	Foreground(colorHighlight).
	Bold(true)

// StatusBarText style for descriptive text in status bar.
var StatusBarText = lipgloss.NewStyle().
	Foreground(colorSecondary)

// ErrorStyle for displaying errors.
var ErrorStyle = lipgloss.NewStyle().
	Foreground(colorError).
	Bold(true).
	Padding(0, 1)

// HintStyle for the line under an error or empty state.
var HintStyle = lipgloss.NewStyle().
	Foreground(colorSecondary).
	Padding(0, 1)

// HelpStyle for help text.
var HelpStyle = lipgloss.NewStyle().
	Foreground(colorMuted).
	Padding(1, 2)

// SpinnerStyle for the loading spinner.
var SpinnerStyle = lipgloss.NewStyle().
	Foreground(colorHighlight)

// DetailHeader style for the detail view title bar.
var DetailHeader = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("255")).
	Background(colorPrimary).
	Padding(0, 1)

// DebugPanel style for the debug overlay.
var DebugPanel = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(colorHighlight).
	Padding(1, 2)

// DebugHeaderStyle for section headers in the debug overlay.
var DebugHeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(colorHighlight)
