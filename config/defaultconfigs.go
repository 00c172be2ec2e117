package config

import (
	"time"

	"chess-diagram/engine"
)

var DefaultConfig Config
var DefaultTheme Theme

func init() {
	DefaultTheme = Theme{
		UnicodePieces:   true,
		DrawCoordinates: true,
		Colors: ConfigColors{
			LightSquare: 180,
			DarkSquare:  137,
			WhitePiece:  255,
			BlackPiece:  232,
			LastMoveBG:  107,
			CheckBG:     167,
			Coordinates: 245,
		},
	}

	DefaultConfig = Config{
		Theme: DefaultTheme,
		Engine: EngineConfig{
			Path:      engine.DefaultConfig().Path,
			Color:     "black",
			WhiteTime: 5 * time.Minute,
			BlackTime: 5 * time.Minute,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
