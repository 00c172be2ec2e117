// Package ui specifies custom controls for tview to show a chess game and
// its variations in the terminal.
package ui

import (
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/notnil/chess"
	"github.com/rivo/tview"

	"chess-diagram/config"
	"chess-diagram/game"
)

const squareWidth = 3

type ChessBoardUI struct {
	Box     *tview.Box
	snap    game.Snapshot
	cfg     *config.Config
	flipped bool
	styles  []tcell.Color
}

func NewChessBoard(c *config.Config) *ChessBoardUI {
	board := &ChessBoardUI{
		Box: tview.NewBox(),
	}
	board.SetConfig(c)
	board.Box.SetBorder(true)
	board.Box.SetTitleAlign(tview.AlignLeft)
	board.Box.SetDrawFunc(func(screen tcell.Screen, x int, y int, width int, height int) (int, int, int, int) {
		if board.snap.Position.IsZero() {
			return x, y, width, height
		}
		ix, iy := x+4, y+1
		last := lastMoveSquares(board.snap)
		check := board.checkedKing()

		for row := 0; row < 8; row++ {
			for col := 0; col < 8; col++ {
				sq := board.squareAt(col, row)
				bg := board.styles[0]
				if (int(sq.File())+int(sq.Rank()))%2 == 0 {
					bg = board.styles[1]
				}
				if last[sq] {
					bg = board.styles[4]
				}
				if sq == check {
					bg = board.styles[5]
				}
				piece := board.snap.Position.PieceAt(sq)
				fg := board.styles[2]
				if piece.Color() == chess.Black {
					fg = board.styles[3]
				}
				drawSquare(screen, tcell.StyleDefault.Background(bg).Foreground(fg), board.pieceRune(piece), ix+col*squareWidth, iy+row)
			}
		}
		if board.cfg.Theme.DrawCoordinates {
			board.drawCoordinates(screen, x, iy)
		}
		return x, y, width, height
	})
	return board
}

// SetSnapshot replaces what the board draws.
func (b *ChessBoardUI) SetSnapshot(snap game.Snapshot) {
	b.snap = snap
	title := Title(snap)
	if title != "" {
		title = " " + tview.Escape(title) + " "
	}
	b.Box.SetTitle(title)
}

// ToggleFlip turns the board around and returns whether black is at the
// bottom.
func (b *ChessBoardUI) ToggleFlip() bool {
	b.flipped = !b.flipped
	return b.flipped
}

// IsFlipped returns true if black is drawn at the bottom.
func (b *ChessBoardUI) IsFlipped() bool {
	return b.flipped
}

func (b *ChessBoardUI) SetConfig(c *config.Config) {
	b.styles = []tcell.Color{
		tcell.PaletteColor(c.Theme.Colors.LightSquare), // 0
		tcell.PaletteColor(c.Theme.Colors.DarkSquare),  // 1
		tcell.PaletteColor(c.Theme.Colors.WhitePiece),  // 2
		tcell.PaletteColor(c.Theme.Colors.BlackPiece),  // 3
		tcell.PaletteColor(c.Theme.Colors.LastMoveBG),  // 4
		tcell.PaletteColor(c.Theme.Colors.CheckBG),     // 5
		tcell.PaletteColor(c.Theme.Colors.Coordinates), // 6
	}
	b.cfg = c
}

// squareAt maps a screen cell (col, row from the top left) to a square.
func (b *ChessBoardUI) squareAt(col, row int) chess.Square {
	if b.flipped {
		return chess.NewSquare(chess.File(7-col), chess.Rank(row))
	}
	return chess.NewSquare(chess.File(col), chess.Rank(7-row))
}

func (b *ChessBoardUI) pieceRune(p chess.Piece) rune {
	if p == chess.NoPiece {
		return ' '
	}
	return PieceRune(p, b.cfg.Theme.UnicodePieces)
}

// checkedKing returns the square of the king in check, chess.NoSquare if
// none.
func (b *ChessBoardUI) checkedKing() chess.Square {
	if !givesCheck(b.snap) {
		return chess.NoSquare
	}
	turn := b.snap.Position.Turn()
	for sq := chess.A1; sq <= chess.H8; sq++ {
		p := b.snap.Position.PieceAt(sq)
		if p.Type() == chess.King && p.Color() == turn {
			return sq
		}
	}
	return chess.NoSquare
}

// PieceRune returns the glyph for p. Unicode mode uses the filled glyphs
// for both sides and leaves the color to the style.
func PieceRune(p chess.Piece, unicode bool) rune {
	const glyphs, letters = "♚♛♜♝♞♟", "KQRBNP"
	idx := -1
	switch p.Type() {
	case chess.King:
		idx = 0
	case chess.Queen:
		idx = 1
	case chess.Rook:
		idx = 2
	case chess.Bishop:
		idx = 3
	case chess.Knight:
		idx = 4
	case chess.Pawn:
		idx = 5
	}
	if idx < 0 {
		return ' '
	}
	if unicode {
		return []rune(glyphs)[idx]
	}
	r := rune(letters[idx])
	if p.Color() == chess.Black {
		r += 'a' - 'A'
	}
	return r
}

func lastMoveSquares(snap game.Snapshot) map[chess.Square]bool {
	if !snap.HasLastMove {
		return nil
	}
	return map[chess.Square]bool{snap.LastMove.From: true, snap.LastMove.To: true}
}

// givesCheck reports whether the last move left the side to move in check.
func givesCheck(snap game.Snapshot) bool {
	if !snap.HasLastMove {
		return false
	}
	san, err := searchPosition(snap).SAN(snap.LastMove)
	if err != nil {
		return false
	}
	return strings.HasSuffix(san, "+") || strings.HasSuffix(san, "#")
}

// drawSquare draws one square, squareWidth characters wide, piece centered.
func drawSquare(s tcell.Screen, c tcell.Style, r rune, x, y int) {
	s.SetContent(x, y, ' ', nil, c)
	s.SetContent(x+1, y, r, nil, c)
	s.SetContent(x+2, y, ' ', nil, c)
}

func (b *ChessBoardUI) drawCoordinates(s tcell.Screen, x, y int) {
	style := tcell.StyleDefault.Foreground(b.styles[6])
	for col := 0; col < 8; col++ {
		sq := b.squareAt(col, 0)
		s.SetContent(x+4+col*squareWidth+1, y+8, rune('a'+int(sq.File())), nil, style)
	}
	for row := 0; row < 8; row++ {
		sq := b.squareAt(0, row)
		s.SetContent(x+2, y+row, rune('1'+int(sq.Rank())), nil, style)
	}
}

// Width and Height are the board's size on screen, border included.
func (b *ChessBoardUI) Width() int {
	return 4 + 8*squareWidth + 2
}

func (b *ChessBoardUI) Height() int {
	return 8 + 4
}
