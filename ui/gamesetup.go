package ui

import (
	"github.com/gdamore/tcell/v2"
	"github.com/notnil/chess"
	"github.com/rivo/tview"

	"chess-diagram/game"
)

// GameSetup is what the new game form collects.
type GameSetup struct {
	EngineColor chess.Color
	Mode        game.Mode
}

// GameSetupUI provides a form for configuring a new game.
type GameSetupUI struct {
	form  *tview.Form
	flex  *tview.Flex
	setup GameSetup
}

// NewGameSetup creates a new game setup form, preselected from initial.
func NewGameSetup(initial GameSetup, onStart func(GameSetup), onCancel func()) *GameSetupUI {
	ui := &GameSetupUI{setup: initial}

	colors := []string{"Black (you play white)", "White (you play black)"}
	modes := []string{"Setup (move both sides)", "Play against the engine"}

	form := tview.NewForm()

	colorIndex := 0
	if initial.EngineColor == chess.White {
		colorIndex = 1
	}
	form.AddDropDown("Engine Plays", colors, colorIndex, func(option string, index int) {
		ui.setup.EngineColor = chess.Black
		if index == 1 {
			ui.setup.EngineColor = chess.White
		}
	})

	modeIndex := 0
	if initial.Mode == game.ModePlay {
		modeIndex = 1
	}
	form.AddDropDown("Mode", modes, modeIndex, func(option string, index int) {
		ui.setup.Mode = game.ModeSetup
		if index == 1 {
			ui.setup.Mode = game.ModePlay
		}
	})

	form.AddButton("Start Game", func() {
		onStart(ui.setup)
	})

	form.AddButton("Cancel", func() {
		onCancel()
	})

	form.SetBorder(true)
	form.SetTitle(" New Game ")
	form.SetTitleAlign(tview.AlignCenter)
	form.SetButtonBackgroundColor(MenuColors.ButtonBG)
	form.SetButtonTextColor(MenuColors.ButtonText)
	form.SetBorderColor(MenuColors.Border)

	// Create help text
	helpText := tview.NewTextView().
		SetText("Tab/Shift+Tab: navigate fields  |  Arrow keys: change dropdown  |  Enter: confirm").
		SetTextAlign(tview.AlignCenter)
	helpText.SetTextColor(MenuColors.Hint)

	// Create flex layout with form and help text
	flex := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(form, 0, 1, true).
		AddItem(helpText, 1, 0, false)

	ui.form = form
	ui.flex = flex
	return ui
}

// Form returns the flex container with form and help text.
func (s *GameSetupUI) Form() *tview.Flex {
	return s.flex
}

// Setup returns the current selection.
func (s *GameSetupUI) Setup() GameSetup {
	return s.setup
}

// SetInputCapture sets the input capture function for the form.
func (s *GameSetupUI) SetInputCapture(capture func(event *tcell.EventKey) *tcell.EventKey) {
	s.form.SetInputCapture(capture)
}
