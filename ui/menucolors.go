package ui

import "github.com/gdamore/tcell/v2"

// MenuColors is the palette of the new game form.
var MenuColors = struct {
	Border     tcell.Color
	Hint       tcell.Color
	ButtonBG   tcell.Color
	ButtonText tcell.Color
}{
	Border:     tcell.PaletteColor(60),  // muted blue-gray
	Hint:       tcell.PaletteColor(245), // dim gray
	ButtonBG:   tcell.PaletteColor(60),
	ButtonText: tcell.PaletteColor(255),
}
