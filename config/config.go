package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/notnil/chess"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"chess-diagram/engine"
	"chess-diagram/logx"
	"chess-diagram/opening"
)

var (
	cfgFile   = "chess-diagram/config.yaml"
	envPrefix = "CHESS_DIAGRAM"
)

type InvalidConfig struct {
	err string
}

func (e *InvalidConfig) Error() string {
	return fmt.Sprintf("Config error: %s", e.err)
}

type ConfigColors struct {
	LightSquare int `mapstructure:"light"`
	DarkSquare  int `mapstructure:"dark"`
	WhitePiece  int `mapstructure:"white"`
	BlackPiece  int `mapstructure:"black"`
	LastMoveBG  int `mapstructure:"last_move_bg"`
	CheckBG     int `mapstructure:"check_bg"`
	Coordinates int `mapstructure:"coordinates"`
}

type Theme struct {
	UnicodePieces   bool         `mapstructure:"unicode_pieces"`
	DrawCoordinates bool         `mapstructure:"draw_coordinates"`
	Colors          ConfigColors `mapstructure:"colors"`
}

// EngineConfig holds the UCI engine settings.
type EngineConfig struct {
	Path      string        `mapstructure:"path"`
	Args      string        `mapstructure:"args"`
	Options   []string      `mapstructure:"options"`
	Color     string        `mapstructure:"color"`
	WhiteTime time.Duration `mapstructure:"white_time"`
	BlackTime time.Duration `mapstructure:"black_time"`
}

// OpeningConfig selects the repertoire.
type OpeningConfig struct {
	Name  string   `mapstructure:"name"`
	ECO   []string `mapstructure:"eco"`
	Files []string `mapstructure:"files"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

type Config struct {
	Theme   Theme         `mapstructure:"theme"`
	Engine  EngineConfig  `mapstructure:"engine"`
	Opening OpeningConfig `mapstructure:"opening"`
	Log     LogConfig     `mapstructure:"log"`

	// File is the config file that was read, empty when none was found.
	File string `mapstructure:"-"`
	// ShowVersion is set by --version.
	ShowVersion bool `mapstructure:"-"`
}

// Load reads the config file, the environment and the command line, in
// increasing order of precedence.
func Load(args []string) (*Config, error) {
	fs := Flags()
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return load(fs)
}

// Flags returns the command line flag set understood by Load.
func Flags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("chess-diagram", pflag.ContinueOnError)
	fs.String("config", "", "config file (default: $XDG_CONFIG_HOME/"+cfgFile+")")
	fs.String("engine", DefaultConfig.Engine.Path, "UCI engine binary")
	fs.String("engine-args", "", "engine launch arguments, separated by ';'")
	fs.StringArray("engine-option", nil, "engine option ID[:VALUE], repeatable")
	fs.String("color", DefaultConfig.Engine.Color, "side the engine plays (white or black)")
	fs.Duration("white-time", DefaultConfig.Engine.WhiteTime, "white time budget sent to the engine")
	fs.Duration("black-time", DefaultConfig.Engine.BlackTime, "black time budget sent to the engine")
	fs.String("opening", "", "only use book lines whose name contains this text")
	fs.StringSlice("eco", nil, "only use book lines with these ECO code prefixes")
	fs.StringSlice("book", nil, "repertoire files (.tsv, .pgn, optionally .zst)")
	fs.String("log-level", DefaultConfig.Log.Level, "log level")
	fs.String("log-file", "", "log file (default: $XDG_STATE_HOME/"+logx.DefaultFile+")")
	fs.Bool("version", false, "print version and exit")
	return fs
}

var flagKeys = map[string]string{
	"engine":        "engine.path",
	"engine-args":   "engine.args",
	"engine-option": "engine.options",
	"color":         "engine.color",
	"white-time":    "engine.white_time",
	"black-time":    "engine.black_time",
	"opening":       "opening.name",
	"eco":           "opening.eco",
	"book":          "opening.files",
	"log-level":     "log.level",
	"log-file":      "log.file",
}

func load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for name, key := range flagKeys {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			return nil, err
		}
	}

	path, _ := fs.GetString("config")
	if path == "" {
		if found, err := xdg.SearchConfigFile(cfgFile); err == nil {
			path = found
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
	}

	config := DefaultConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, &InvalidConfig{err.Error()}
	}
	config.File = path
	config.ShowVersion, _ = fs.GetBool("version")
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig
	v.SetDefault("engine.path", d.Engine.Path)
	v.SetDefault("engine.args", d.Engine.Args)
	v.SetDefault("engine.options", d.Engine.Options)
	v.SetDefault("engine.color", d.Engine.Color)
	v.SetDefault("engine.white_time", d.Engine.WhiteTime)
	v.SetDefault("engine.black_time", d.Engine.BlackTime)
	v.SetDefault("opening.name", d.Opening.Name)
	v.SetDefault("opening.eco", d.Opening.ECO)
	v.SetDefault("opening.files", d.Opening.Files)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("theme.unicode_pieces", d.Theme.UnicodePieces)
	v.SetDefault("theme.draw_coordinates", d.Theme.DrawCoordinates)
	v.SetDefault("theme.colors.light", d.Theme.Colors.LightSquare)
	v.SetDefault("theme.colors.dark", d.Theme.Colors.DarkSquare)
	v.SetDefault("theme.colors.white", d.Theme.Colors.WhitePiece)
	v.SetDefault("theme.colors.black", d.Theme.Colors.BlackPiece)
	v.SetDefault("theme.colors.last_move_bg", d.Theme.Colors.LastMoveBG)
	v.SetDefault("theme.colors.check_bg", d.Theme.Colors.CheckBG)
	v.SetDefault("theme.colors.coordinates", d.Theme.Colors.Coordinates)
}

func (c *Config) Validate() error {
	if c.Engine.Path == "" {
		return &InvalidConfig{"engine.path must not be empty"}
	}
	if _, err := c.EngineColor(); err != nil {
		return err
	}
	if c.Engine.WhiteTime < 0 || c.Engine.BlackTime < 0 {
		return &InvalidConfig{"time budgets must not be negative"}
	}
	if c.Log.Level != "" {
		if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
			return &InvalidConfig{fmt.Sprintf("log.level: %v", err)}
		}
	}
	colors := c.Theme.Colors
	for _, col := range []int{colors.LightSquare, colors.DarkSquare, colors.WhitePiece, colors.BlackPiece, colors.LastMoveBG, colors.CheckBG, colors.Coordinates} {
		if col < 0 || col > 255 {
			return &InvalidConfig{"theme colors must be in the range 0-255"}
		}
	}
	return nil
}

// EngineColor returns the side the engine plays.
func (c *Config) EngineColor() (chess.Color, error) {
	switch strings.ToLower(c.Engine.Color) {
	case "white", "w":
		return chess.White, nil
	case "black", "b", "":
		return chess.Black, nil
	}
	return chess.NoColor, &InvalidConfig{fmt.Sprintf("engine.color must be white or black, not %q", c.Engine.Color)}
}

// EngineSettings converts the engine section for the UCI driver.
func (c *Config) EngineSettings() engine.Config {
	cfg := engine.Config{
		Path: c.Engine.Path,
		Args: engine.ParseArgs(c.Engine.Args),
	}
	for _, o := range c.Engine.Options {
		if o = strings.TrimSpace(o); o != "" {
			cfg.Options = append(cfg.Options, engine.ParseOption(o))
		}
	}
	return cfg
}

// OpeningFilter returns the repertoire filter.
func (c *Config) OpeningFilter() opening.Filter {
	return opening.Filter{Name: c.Opening.Name, Codes: c.Opening.ECO}
}

// LogLevel returns the configured level.
func (c *Config) LogLevel() zerolog.Level {
	return logx.ParseLevel(c.Log.Level)
}

// IsInvalid reports whether err is a validation failure.
func IsInvalid(err error) bool {
	var ic *InvalidConfig
	return errors.As(err, &ic)
}
