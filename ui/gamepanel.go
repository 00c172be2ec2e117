package ui

import (
	"fmt"
	"strings"

	"github.com/notnil/chess"
	"github.com/rivo/tview"

	"chess-diagram/game"
)

// GameInfoPanel displays the session state and the move tree alongside
// the board.
type GameInfoPanel struct {
	box      *tview.TextView
	onSelect func(region string)
}

// NewGameInfoPanel creates a new game info panel. onSelect is called with
// the region id of a move the user clicked.
func NewGameInfoPanel(onSelect func(region string)) *GameInfoPanel {
	panel := &GameInfoPanel{
		box:      tview.NewTextView(),
		onSelect: onSelect,
	}

	panel.box.SetDynamicColors(true)
	panel.box.SetRegions(true)
	panel.box.SetWordWrap(true)
	panel.box.SetBorder(false)
	panel.box.SetTextAlign(tview.AlignLeft)
	panel.box.SetHighlightedFunc(func(added, removed, remaining []string) {
		if len(added) > 0 && panel.onSelect != nil {
			panel.onSelect(added[0])
		}
	})

	return panel
}

// Box returns the underlying tview component.
func (p *GameInfoPanel) Box() *tview.TextView {
	return p.box
}

// SetSnapshot redraws the panel from snap.
func (p *GameInfoPanel) SetSnapshot(snap game.Snapshot) {
	p.box.SetText(PanelText(snap))
}

// PanelText is the panel's content for snap.
func PanelText(snap game.Snapshot) string {
	var text string

	text += "[white::b]Game[-:-:-]\n"
	text += "[dimgray]──────────────────────[-:-:-]\n"
	text += fmt.Sprintf("[white]Mode:[-:-:-] %s\n", snap.Mode)
	engineSide := "Black"
	if snap.EngineColor == chess.White {
		engineSide = "White"
	}
	text += fmt.Sprintf("[white]Engine:[-:-:-] %s\n", engineSide)
	if !snap.Score.IsNone() {
		text += fmt.Sprintf("[white]Eval:[-:-:-] %s\n", snap.Score)
	}
	if snap.Fault != nil {
		text += fmt.Sprintf("[red]%s[-]\n", tview.Escape(snap.Fault.Error()))
	}

	if snap.Opening.Name != "" {
		text += "\n[white::b]Opening[-:-:-]\n"
		text += "[dimgray]──────────────────────[-:-:-]\n"
		text += fmt.Sprintf("[white]%s[-] %s\n", snap.Opening.Code, tview.Escape(snap.Opening.Name))
		if snap.BookLabel != "" && snap.BookLabel != snap.Opening.Name {
			text += fmt.Sprintf("[dimgray]book: %s[-]\n", tview.Escape(snap.BookLabel))
		}
	}
	if len(snap.BookMoves) > 0 {
		text += fmt.Sprintf("[white]Book moves:[-:-:-] %s\n", strings.Join(snap.BookMoves, " "))
	}

	text += "\n[white::b]Moves[-:-:-]\n"
	text += "[dimgray]──────────────────────[-:-:-]\n"
	if snap.Err != nil {
		text += fmt.Sprintf("[red]%s[-]\n", tview.Escape(snap.Err.Error()))
	} else if moves := MoveText(snap.Tree); moves == "" {
		text += "[dimgray]  (no moves)[-]\n"
	} else {
		text += moves + "\n"
	}

	return text
}

// CreateGameLayout creates the main game layout with board and side panel.
func CreateGameLayout(board *ChessBoardUI, panel *GameInfoPanel, input *tview.InputField, hint *tview.TextView) *tview.Flex {
	// Board column: board on top, move entry below
	boardCol := tview.NewFlex().SetDirection(tview.FlexRow)
	boardCol.AddItem(board.Box, board.Height(), 0, true)
	boardCol.AddItem(input, 1, 0, false)
	boardCol.AddItem(nil, 0, 1, false)

	// Horizontal flex: board | info panel
	boardRow := tview.NewFlex().SetDirection(tview.FlexColumn)
	boardRow.AddItem(boardCol, board.Width(), 0, true)
	boardRow.AddItem(panel.Box(), 0, 1, false)

	// Main vertical flex: board area on top, compact status bar at bottom
	mainFlex := tview.NewFlex().SetDirection(tview.FlexRow)
	mainFlex.AddItem(boardRow, 0, 1, true)
	mainFlex.AddItem(hint, 3, 0, false)

	return mainFlex
}

// CreateCenteredForm creates a centered form container for the setup screen.
func CreateCenteredForm(form *tview.Flex, maxWidth int) *tview.Flex {
	centered := tview.NewFlex().SetDirection(tview.FlexColumn)
	centered.AddItem(nil, 0, 1, false)        // Left spacer
	centered.AddItem(form, maxWidth, 0, true) // Form with max width
	centered.AddItem(nil, 0, 1, false)        // Right spacer

	return centered
}
