package cli

import (
	"github.com/fatih/color"
)

var (
	colorHeader   = color.New(color.Bold)
	colorConflict = color.New(color.FgRed, color.Bold)
	colorFree     = color.New(color.FgGreen)
	colorMuted    = color.New(color.FgWhite, color.Faint)
)

func disableColor() {
	color.NoColor = true
}

const clock = "15:04"
