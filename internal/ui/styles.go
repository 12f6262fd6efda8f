package ui

import (
	"fmt"

	"github.com/alfredjeanlab/confengine/internal/model"
)

// ANSI256 color codes matching the Ayu palette.
const (
	colorAccent = 74  // blue
	colorCmd    = 250 // light gray
	colorMuted  = 245 // medium gray
	colorOK     = 114 // green
	colorWarn   = 179 // amber
	colorError  = 203 // red
	colorNumber = 141 // purple
	colorDate   = 80  // teal
)

var noColor bool

func paint(code int, s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", code, s)
}

// RenderAccent returns s in the accent (blue) color.
func RenderAccent(s string) string { return paint(colorAccent, s) }

// RenderMuted returns s in the muted (gray) color.
func RenderMuted(s string) string { return paint(colorMuted, s) }

// RenderCommand returns s styled as a command name (light gray).
func RenderCommand(s string) string { return paint(colorCmd, s) }

// RenderOK returns s in green.
func RenderOK(s string) string { return paint(colorOK, s) }

// RenderWarn returns s in amber.
func RenderWarn(s string) string { return paint(colorWarn, s) }

// RenderError returns s in red.
func RenderError(s string) string { return paint(colorError, s) }

// RenderDataType colors a data type name, one color per type.
func RenderDataType(t model.DataType) string {
	switch t {
	case model.DataTypeNumber:
		return paint(colorNumber, string(t))
	case model.DataTypeDate:
		return paint(colorDate, string(t))
	case model.DataTypeList:
		return paint(colorWarn, string(t))
	}
	return paint(colorCmd, string(t))
}

// RenderActive renders the active flag as a short status word.
func RenderActive(active bool) string {
	if active {
		return RenderOK("active")
	}
	return RenderMuted("inactive")
}

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor = true
}

// ColorEnabled reports whether Render* functions emit ANSI sequences.
func ColorEnabled() bool {
	return !noColor
}
