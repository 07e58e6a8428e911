// Package config handles the two configuration layers corkboard accepts.
//
// Layer one is the required launch arguments (positional, per the wire
// protocol's handshake fields): port, board dimensions, note dimensions,
// and the color palette. These have no defaults — a missing or malformed
// argument is a fatal startup error.
//
// Layer two is the optional ambient config file: observability and
// server-tuning knobs that all have sane defaults and are never required
// to bring the board up. A missing file is not an error. A malformed
// file is a fatal startup error — corkboard refuses to start rather than
// run with a config it couldn't fully validate.
package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Launch holds the required, positional startup parameters:
//
//	corkboard <port> <boardW> <boardH> <noteW> <noteH> <color1> [color2 ...]
type Launch struct {
	Port   int
	BoardW int
	BoardH int
	NoteW  int
	NoteH  int
	Colors []string
}

// ParseLaunch parses the positional launch arguments (os.Args[1:], not
// including any -config flag already consumed by the caller).
func ParseLaunch(args []string) (Launch, error) {
	if len(args) < 6 {
		return Launch{}, fmt.Errorf("config: usage: corkboard <port> <boardW> <boardH> <noteW> <noteH> <color1> [color2 ...]")
	}

	port, err := parsePositiveInt(args[0], "port")
	if err != nil {
		return Launch{}, err
	}
	boardW, err := parsePositiveInt(args[1], "boardW")
	if err != nil {
		return Launch{}, err
	}
	boardH, err := parsePositiveInt(args[2], "boardH")
	if err != nil {
		return Launch{}, err
	}
	noteW, err := parsePositiveInt(args[3], "noteW")
	if err != nil {
		return Launch{}, err
	}
	noteH, err := parsePositiveInt(args[4], "noteH")
	if err != nil {
		return Launch{}, err
	}
	if noteW > boardW || noteH > boardH {
		return Launch{}, fmt.Errorf("config: note size %dx%d cannot exceed board size %dx%d", noteW, noteH, boardW, boardH)
	}

	colors := args[5:]
	seen := make(map[string]struct{}, len(colors))
	for _, c := range colors {
		upper := strings.ToUpper(strings.TrimSpace(c))
		if upper == "" {
			return Launch{}, fmt.Errorf("config: color names must not be blank")
		}
		if _, dup := seen[upper]; dup {
			return Launch{}, fmt.Errorf("config: duplicate color %q", upper)
		}
		seen[upper] = struct{}{}
	}

	return Launch{
		Port:   port,
		BoardW: boardW,
		BoardH: boardH,
		NoteW:  noteW,
		NoteH:  noteH,
		Colors: colors,
	}, nil
}

func parsePositiveInt(s, field string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be an integer, got %q", field, s)
	}
	if n <= 0 {
		return 0, fmt.Errorf("config: %s must be positive, got %d", field, n)
	}
	return n, nil
}

// Ambient holds the optional operational tuning knobs. Every field has a
// default; Load returns Defaults() unmodified when no file is given.
type Ambient struct {
	LogLevel             string        `yaml:"log_level"`
	LogFormat            string        `yaml:"log_format"`
	MetricsAddr          string        `yaml:"metrics_addr"`
	MetricsEnabled       bool          `yaml:"metrics_enabled"`
	WorkerPoolSize       int           `yaml:"worker_pool_size"`
	ShutdownDrainTimeout time.Duration `yaml:"shutdown_drain_timeout"`

	// Validators names the contrib.NoteValidator plugins (by
	// NoteValidator.Name()) active on this board, in order. An empty
	// list (the default) runs with no extra message-content policy.
	Validators []string `yaml:"validators"`
}

// Defaults returns the ambient config with all fields at their default
// values.
func Defaults() Ambient {
	n := 2 * runtime.NumCPU()
	if n < 8 {
		n = 8
	}
	return Ambient{
		LogLevel:             "info",
		LogFormat:            "json",
		MetricsAddr:          "127.0.0.1:9090",
		MetricsEnabled:       true,
		WorkerPoolSize:       n,
		ShutdownDrainTimeout: 5 * time.Second,
		Validators:           nil,
	}
}

// Load reads the ambient config file at path. A path of "" returns
// Defaults() with no error — the ambient layer is entirely optional. A
// file that does not exist is likewise not an error. A file that exists
// but fails to parse or validate is a fatal error.
func Load(path string) (Ambient, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return Ambient{}, fmt.Errorf("config: read %q: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Ambient{}, fmt.Errorf("config: parse %q: %w", path, err)
	}

	if err := Validate(&cfg); err != nil {
		return Ambient{}, fmt.Errorf("config: validate %q: %w", path, err)
	}
	return cfg, nil
}

// Validate checks every ambient field, accumulating all violations
// before returning.
func Validate(cfg *Ambient) error {
	var errs []string

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("log_level must be one of debug|info|warn|error, got %q", cfg.LogLevel))
	}

	switch cfg.LogFormat {
	case "console", "json":
	default:
		errs = append(errs, fmt.Sprintf("log_format must be one of console|json, got %q", cfg.LogFormat))
	}

	if cfg.WorkerPoolSize < 1 {
		errs = append(errs, fmt.Sprintf("worker_pool_size must be >= 1, got %d", cfg.WorkerPoolSize))
	}

	if cfg.ShutdownDrainTimeout < 0 {
		errs = append(errs, fmt.Sprintf("shutdown_drain_timeout must be >= 0, got %s", cfg.ShutdownDrainTimeout))
	}

	if len(errs) > 0 {
		return fmt.Errorf("ambient config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
