// Package config loads dagview settings from a TOML file, a .env file and
// the environment.
//
// Precedence, lowest to highest: built-in defaults, the TOML file, DAGVIEW_*
// environment variables (optionally seeded from .env), command-line flags.
// Flags are applied by the CLI after Load returns.
//
// Example config.toml:
//
//	[server]
//	addr = ":8080"
//	session_capacity = 128
//	session_ttl = "2h"
//
//	[editor]
//	theme = "dark"
//	layout = "circular"
//
//	[cache]
//	ttl = "24h"
//
//	[layouts.wide]
//	algorithm = "dot"
//	rank_dir = "LR"
//	params = { nodesep = 1.0, ranksep = 1.5 }
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/matzehuels/dagview/pkg/engine"
	"github.com/matzehuels/dagview/pkg/facade"
	"github.com/matzehuels/dagview/pkg/overlay"
	"github.com/matzehuels/dagview/pkg/style"
)

// Environment variables.
const (
	EnvAddr            = "DAGVIEW_ADDR"
	EnvTheme           = "DAGVIEW_THEME"
	EnvLayout          = "DAGVIEW_LAYOUT"
	EnvSessionCapacity = "DAGVIEW_SESSION_CAPACITY"
	EnvConfig          = "DAGVIEW_CONFIG"
)

// Config is the full dagview configuration.
type Config struct {
	Server  ServerConfig                   `toml:"server"`
	Editor  EditorConfig                   `toml:"editor"`
	Resize  ResizeConfig                   `toml:"resize"`
	Cache   CacheConfig                    `toml:"cache"`
	Layouts map[string]engine.LayoutConfig `toml:"layouts"`

	// Path is the file the config was read from, empty when none was found.
	Path string `toml:"-"`
}

// ServerConfig configures "dagview serve".
type ServerConfig struct {
	Addr            string        `toml:"addr"`
	SessionCapacity int           `toml:"session_capacity"`
	SessionTTL      time.Duration `toml:"session_ttl"`
	MaxUploadBytes  int64         `toml:"max_upload_bytes"`
}

// EditorConfig configures every editor session.
type EditorConfig struct {
	Theme        string  `toml:"theme"`
	Layout       string  `toml:"layout"`
	FitPadding   float64 `toml:"fit_padding"`
	CanvasWidth  float64 `toml:"canvas_width"`
	CanvasHeight float64 `toml:"canvas_height"`
}

// ResizeConfig bounds handle resizing.
type ResizeConfig struct {
	Min         float64 `toml:"min"`
	Max         float64 `toml:"max"`
	Sensitivity float64 `toml:"sensitivity"`
}

// CacheConfig configures the render cache used by the CLI.
type CacheConfig struct {
	// Dir defaults to $XDG_CACHE_HOME/dagview.
	Dir      string        `toml:"dir"`
	TTL      time.Duration `toml:"ttl"`
	Disabled bool          `toml:"disabled"`
}

// Default returns the built-in configuration.
func Default() *Config {
	lim := overlay.DefaultLimits()
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			SessionCapacity: 64,
			SessionTTL:      time.Hour,
			MaxUploadBytes:  10 << 20,
		},
		Editor: EditorConfig{
			Theme:        style.ThemeLight,
			Layout:       facade.DefaultLayout,
			FitPadding:   facade.DefaultFitPadding,
			CanvasWidth:  1200,
			CanvasHeight: 800,
		},
		Resize: ResizeConfig{Min: lim.Min, Max: lim.Max, Sensitivity: lim.Sensitivity},
		Cache:  CacheConfig{TTL: 24 * time.Hour},
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/dagview/config.toml, falling back to
// the user config directory.
func DefaultPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		var err error
		if dir, err = os.UserConfigDir(); err != nil {
			return ""
		}
	}
	return filepath.Join(dir, "dagview", "config.toml")
}

// CacheDir returns the configured cache directory, falling back to
// $XDG_CACHE_HOME/dagview and then the user cache directory.
func (c *Config) CacheDir() (string, error) {
	if c.Cache.Dir != "" {
		return c.Cache.Dir, nil
	}
	dir := os.Getenv("XDG_CACHE_HOME")
	if dir == "" {
		var err error
		if dir, err = os.UserCacheDir(); err != nil {
			return "", err
		}
	}
	return filepath.Join(dir, "dagview"), nil
}

// Load reads configuration. An explicit path must exist; without one,
// $DAGVIEW_CONFIG and then DefaultPath are tried and a missing file is not an
// error. Environment overrides are applied and the result is validated.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	required := path != ""
	if path == "" {
		path = firstNonEmpty(os.Getenv(EnvConfig), DefaultPath())
	}

	if path != "" {
		md, err := toml.DecodeFile(path, cfg)
		switch {
		case err == nil:
			cfg.Path = path
			if undecoded := md.Undecoded(); len(undecoded) > 0 {
				keys := make([]string, len(undecoded))
				for i, k := range undecoded {
					keys[i] = k.String()
				}
				return nil, fmt.Errorf("config %s: unknown keys: %s", path, strings.Join(keys, ", "))
			}
		case os.IsNotExist(err) && !required:
		default:
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Server.Addr = firstNonEmpty(strings.TrimSpace(os.Getenv(EnvAddr)), c.Server.Addr)
	c.Editor.Theme = firstNonEmpty(strings.TrimSpace(os.Getenv(EnvTheme)), c.Editor.Theme)
	c.Editor.Layout = firstNonEmpty(strings.TrimSpace(os.Getenv(EnvLayout)), c.Editor.Layout)
	if raw := strings.TrimSpace(os.Getenv(EnvSessionCapacity)); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvSessionCapacity, err)
		}
		c.Server.SessionCapacity = n
	}
	return nil
}

// Validate checks that names resolve and limits are consistent.
func (c *Config) Validate() error {
	if _, err := style.LookupTheme(c.Editor.Theme); err != nil {
		return fmt.Errorf("editor.theme: %w", err)
	}
	layouts := c.AllLayouts()
	if _, ok := layouts[c.Editor.Layout]; !ok {
		return fmt.Errorf("editor.layout: unknown layout %q (available: %s)",
			c.Editor.Layout, strings.Join(facade.LayoutKeys(layouts), ", "))
	}
	for key, l := range c.Layouts {
		if l.Algorithm == "" {
			return fmt.Errorf("layouts.%s: algorithm is required", key)
		}
	}
	if c.Resize.Min <= 0 || c.Resize.Max < c.Resize.Min {
		return fmt.Errorf("resize: need 0 < min <= max, got min=%v max=%v", c.Resize.Min, c.Resize.Max)
	}
	if c.Resize.Sensitivity <= 0 {
		return fmt.Errorf("resize.sensitivity must be positive")
	}
	if c.Server.SessionCapacity <= 0 {
		return fmt.Errorf("server.session_capacity must be positive")
	}
	return nil
}

// AllLayouts returns the built-in layouts merged with the configured ones.
func (c *Config) AllLayouts() map[string]engine.LayoutConfig {
	return facade.MergeLayouts(facade.DefaultLayouts(), c.Layouts)
}

// Theme resolves the configured theme.
func (c *Config) Theme() style.Theme {
	t, err := style.LookupTheme(c.Editor.Theme)
	if err != nil {
		return style.DefaultTheme()
	}
	return t
}

// Limits returns the resize limits.
func (c *Config) Limits() overlay.Limits {
	return overlay.Limits{Min: c.Resize.Min, Max: c.Resize.Max, Sensitivity: c.Resize.Sensitivity}
}

// FacadeOptions builds controller options from the editor settings.
func (c *Config) FacadeOptions() facade.Options {
	return facade.Options{
		Theme:         c.Theme(),
		Layouts:       c.AllLayouts(),
		DefaultLayout: c.Editor.Layout,
		FitPadding:    c.Editor.FitPadding,
		Limits:        c.Limits(),
	}
}

// CustomLayouts returns the keys of layouts defined in the config file.
func (c *Config) CustomLayouts() []string {
	keys := make([]string, 0, len(c.Layouts))
	for k := range c.Layouts {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
