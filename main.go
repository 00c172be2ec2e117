// chess-diagram is a terminal chess board that explores variations with an
// opening book and a UCI engine.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"chess-diagram/config"
	"chess-diagram/engine"
	"chess-diagram/engine/uci"
	"chess-diagram/game"
	"chess-diagram/logx"
	"chess-diagram/opening"
	"chess-diagram/ui"
)

// Version is set at build time via ldflags
var Version = "dev"

var app *tview.Application
var rootPage *tview.Pages
var board *ui.ChessBoardUI
var panel *ui.GameInfoPanel
var moveInput *tview.InputField
var gameHint *tview.TextView
var session *game.Session
var cfg *config.Config
var log zerolog.Logger

func main() {
	var err error
	cfg, err = config.Load(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if cfg.ShowVersion {
		fmt.Printf("chess-diagram %s\n", Version)
		return
	}

	logFile, err := logx.OpenFile(cfg.Log.File)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logFile.Close()
	log = logx.NewLogger(logFile, cfg.LogLevel())
	log.Info().Str("version", Version).Str("config", cfg.File).Msg("starting")

	book, err := loadBook()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	engineColor, _ := cfg.EngineColor()
	app = tview.NewApplication()
	session = game.NewSession(book, game.Options{
		EngineColor: engineColor,
		WhiteTime:   cfg.Engine.WhiteTime,
		BlackTime:   cfg.Engine.BlackTime,
		Repaint: func() {
			// Spawn goroutine to avoid deadlock when called from main thread
			go app.QueueUpdateDraw(refresh)
		},
	}, log)
	log.Info().Str("session", session.ID()).Msg("session created")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	proxy := engine.Start(ctx, connectEngine, session, log)
	defer proxy.Close()
	session.AttachEngine(proxy)
	if err := session.NewGame(); err != nil {
		log.Warn().Err(err).Msg("engine unavailable")
	}

	buildUI()
	refresh()
	if err := app.SetRoot(rootPage, true).EnableMouse(true).Run(); err != nil {
		panic(err)
	}
}

// loadBook builds the opening matcher from the configured repertoire
// files, or from the built-in ECO book when none are set.
func loadBook() (*opening.Matcher, error) {
	lines := opening.BookLines()
	if len(cfg.Opening.Files) > 0 {
		var err error
		lines, err = opening.LoadFiles(cfg.Opening.Files, log)
		if err != nil {
			return nil, fmt.Errorf("loading repertoire: %w", err)
		}
	}
	return opening.Build(lines, cfg.OpeningFilter(), log), nil
}

func connectEngine() (engine.Engine, error) {
	e, err := uci.Start(cfg.EngineSettings(), log)
	if err != nil {
		return nil, err
	}
	log.Info().Str("engine", e.Name()).Msg("engine connected")
	return e, nil
}

func buildUI() {
	rootPage = tview.NewPages()
	rootPage.SetBorder(true).SetTitle(" ♞ chess-diagram ")

	gameHint = tview.NewTextView()
	gameHint.SetDynamicColors(true)
	gameHint.SetBorder(true)
	gameHint.SetBorderPadding(0, 0, 1, 1)
	gameHint.SetTitle(" Status ")
	gameHint.SetTitleAlign(tview.AlignLeft)

	board = ui.NewChessBoard(cfg)
	panel = ui.NewGameInfoPanel(func(region string) {
		if addr, ok := ui.ParseRegion(region); ok {
			session.SetCursor(addr)
			refresh()
		}
	})

	moveInput = tview.NewInputField().SetLabel("Move: ").SetFieldWidth(10)
	moveInput.SetDoneFunc(func(key tcell.Key) {
		defer app.SetFocus(board.Box)
		if key != tcell.KeyEnter {
			moveInput.SetText("")
			return
		}
		text := moveInput.GetText()
		moveInput.SetText("")
		if text == "" {
			return
		}
		if err := session.PushText(text); err != nil {
			showError(err)
			return
		}
		refresh()
	})

	gameFrame := ui.CreateGameLayout(board, panel, moveInput, gameHint)

	// Game board input handling
	board.Box.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyLeft:
			session.Back()
		case tcell.KeyRight:
			session.Forward()
		case tcell.KeyRune:
			switch event.Rune() {
			case 'q':
				app.Stop()
				return nil
			case 'n':
				rootPage.SwitchToPage("setup")
				return nil
			case 'p':
				if err := session.SetMode(game.ModePlay); err != nil {
					showError(err)
					return nil
				}
			case 's':
				if err := session.SetMode(game.ModeSetup); err != nil {
					showError(err)
					return nil
				}
			case 'x':
				if err := session.Stop(); err != nil {
					showError(err)
					return nil
				}
			case 'f':
				board.ToggleFlip()
			case '/':
				app.SetFocus(moveInput)
				return nil
			default:
				return event
			}
		default:
			return event
		}
		refresh()
		return nil
	})

	// New game screen
	setupUI := ui.NewGameSetup(
		ui.GameSetup{EngineColor: session.Snapshot().EngineColor, Mode: session.Mode()},
		func(setup ui.GameSetup) {
			startGame(setup)
			rootPage.SwitchToPage("gameview")
			app.SetFocus(board.Box)
		},
		func() {
			rootPage.SwitchToPage("gameview")
			app.SetFocus(board.Box)
		},
	)
	setupUI.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEsc {
			rootPage.SwitchToPage("gameview")
			app.SetFocus(board.Box)
			return nil
		}
		return event
	})

	rootPage.AddPage("gameview", gameFrame, true, true)
	rootPage.AddPage("setup", ui.CreateCenteredForm(setupUI.Form(), 60), true, false)
}

// startGame resets the session with the chosen engine side and mode.
func startGame(setup ui.GameSetup) {
	session.SetEngineColor(setup.EngineColor)
	if err := session.NewGameIn(setup.Mode); err != nil {
		showError(err)
		return
	}
	refresh()
}

// refresh redraws every widget from a fresh snapshot. It runs on the UI
// goroutine.
func refresh() {
	snap := session.Snapshot()
	board.SetSnapshot(snap)
	panel.SetSnapshot(snap)
	gameHint.SetText(hintText(snap, ""))
}

func showError(err error) {
	log.Debug().Err(err).Msg("user action rejected")
	gameHint.SetText(hintText(session.Snapshot(), err.Error()))
}

func hintText(snap game.Snapshot, message string) string {
	status := fmt.Sprintf("%s to move", snap.Position.Turn().Name())
	if outcome := snap.Position.Outcome(); outcome != "" {
		status = outcome
	}
	if message != "" {
		status = "[red]" + tview.Escape(message) + "[-]"
	} else if snap.Fault != nil {
		status += "  [red](engine offline)[-]"
	}
	return status + "\n[dimgray]←/→ navigate  / enter move  p play  s setup  x stop  n new  f flip  q quit[-]"
}
