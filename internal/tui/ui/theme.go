package ui

import "github.com/gdamore/tcell/v2"

// Theme holds the color palette shared by every view.
type Theme struct {
	BgColor        tcell.Color
	FgColor        tcell.Color
	BorderColor    tcell.Color
	FocusColor     tcell.Color
	TableHeaderFg  tcell.Color
	TableCursorFg  tcell.Color
	TableCursorBg  tcell.Color
	TitleColor     tcell.Color
	AccentColor    tcell.Color
	MutedColor     tcell.Color
	FlashColor     tcell.Color
	OfflineColor   tcell.Color
	ReadTickColor  tcell.Color
	IncomingColor  tcell.Color
	OutgoingColor  tcell.Color
	StatusBarColor tcell.Color
}

// DefaultTheme returns the dark green-accented default palette.
func DefaultTheme() *Theme {
	return &Theme{
		BgColor:        tcell.ColorBlack,
		FgColor:        tcell.ColorLightGray,
		BorderColor:    tcell.ColorDarkSeaGreen,
		FocusColor:     tcell.ColorSpringGreen,
		TableHeaderFg:  tcell.ColorWhite,
		TableCursorFg:  tcell.ColorBlack,
		TableCursorBg:  tcell.ColorSpringGreen,
		TitleColor:     tcell.ColorSpringGreen,
		AccentColor:    tcell.ColorSpringGreen,
		MutedColor:     tcell.ColorGray,
		FlashColor:     tcell.ColorNavajoWhite,
		OfflineColor:   tcell.ColorOrangeRed,
		ReadTickColor:  tcell.ColorDeepSkyBlue,
		IncomingColor:  tcell.ColorLightCyan,
		OutgoingColor:  tcell.ColorPaleGreen,
		StatusBarColor: tcell.ColorDarkSlateGray,
	}
}
