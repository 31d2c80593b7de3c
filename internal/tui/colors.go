package tui

// Color constants for the tally TUI theme
const (
	ColorBorder = "#3A3F55" // Grey-blue

	// Text Colors
	ColorPrimaryText   = "#E6EAF2"
	ColorSecondaryText = "#B1B8C7"
	ColorDisabledText  = "#6D7383"
	ColorHelpText      = "240"

	// Accent Colors (teal theme)
	ColorAccentMain   = "#0F9D8A" // Clock digits, active borders
	ColorAccentBright = "#5EEAD4" // Highlights, current selection

	// State Colors
	ColorError   = "#EF4444"
	ColorSuccess = "#22C55E"
	ColorWarning = "#F59E0B" // Paused clock
)
