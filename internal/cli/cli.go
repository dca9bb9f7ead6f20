// Package cli implements the dagview command-line interface.
package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/dagview/pkg/buildinfo"
	"github.com/matzehuels/dagview/pkg/cache"
	"github.com/matzehuels/dagview/pkg/config"
	"github.com/matzehuels/dagview/pkg/engine"
	gvengine "github.com/matzehuels/dagview/pkg/engine/graphviz"
	"github.com/matzehuels/dagview/pkg/observability"
	"github.com/matzehuels/dagview/pkg/pipeline"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for display and completions.
	appName = "dagview"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// Config is loaded before any subcommand runs.
	Config *config.Config

	// NewEngine overrides the Graphviz engine, for tests.
	NewEngine pipeline.EngineFactory

	configPath string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		Config: config.Default(),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "dagview lays out, styles and exports directed graphs",
		Long: `dagview loads directed graphs from text, JSON, CSV and DOT files, lays them out
with Graphviz, lets you restyle and resize nodes, and exports images.

Use it headlessly (render, watch), in the terminal (edit), or from a browser
through the HTTP/WebSocket server (serve).`,
		Version:      buildinfo.Get().Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.loadConfig()
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default: $XDG_CONFIG_HOME/dagview/config.toml)")

	// Register all subcommands
	root.AddCommand(c.parseCommand())
	root.AddCommand(c.renderCommand())
	root.AddCommand(c.watchCommand())
	root.AddCommand(c.editCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.layoutsCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// loadConfig reads the configuration and routes observability hooks to the
// logger. Hook events log at debug level, so they show with --verbose.
func (c *CLI) loadConfig() error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	c.Config = cfg
	if cfg.Path != "" {
		c.Logger.Debug("config loaded", "path", cfg.Path)
	}

	hooks := observability.NewLogHooks(c.Logger)
	observability.SetPipelineHooks(hooks)
	observability.SetSessionHooks(hooks)
	observability.SetHTTPHooks(hooks)
	return nil
}

// =============================================================================
// Engine & Runner Factories
// =============================================================================

// engineFactory returns the engine constructor for editor sessions.
func (c *CLI) engineFactory() pipeline.EngineFactory {
	return c.engineFactoryFor(c.Logger)
}

func (c *CLI) engineFactoryFor(logger *log.Logger) pipeline.EngineFactory {
	if c.NewEngine != nil {
		return c.NewEngine
	}
	editor := c.Config.Editor
	return func() engine.Engine {
		return gvengine.New(gvengine.Options{
			Logger:       logger,
			CanvasWidth:  editor.CanvasWidth,
			CanvasHeight: editor.CanvasHeight,
		})
	}
}

// newRunner creates a pipeline runner for CLI use. A nil cache disables
// caching.
func (c *CLI) newRunner(rc cache.Cache) *pipeline.Runner {
	r := pipeline.NewRunner(c.engineFactory(), c.Logger)
	if rc != nil {
		editor := c.Config.Editor
		r.Cache = rc
		r.CacheTTL = c.Config.Cache.TTL
		r.CacheScope = fmt.Sprintf("canvas=%gx%g", editor.CanvasWidth, editor.CanvasHeight)
	}
	return r
}

// openCache returns the on-disk render cache, or nil when caching is off or
// the cache directory is unusable.
func (c *CLI) openCache(disabled bool) cache.Cache {
	if disabled || c.Config.Cache.Disabled {
		return nil
	}
	dir, err := c.Config.CacheDir()
	if err != nil {
		c.Logger.Warn("cache disabled", "err", err)
		return nil
	}
	fc, err := cache.NewFileCache(dir)
	if err != nil {
		c.Logger.Warn("cache disabled", "dir", dir, "err", err)
		return nil
	}
	return fc
}

// =============================================================================
// Options Helpers
// =============================================================================

// parseFormats parses a comma-separated format string into a slice.
func parseFormats(s string) []string {
	if s == "" {
		return []string{pipeline.FormatPNG}
	}
	formats := strings.Split(s, ",")
	for i, f := range formats {
		formats[i] = strings.TrimSpace(f)
	}
	return formats
}

// splitList parses a comma-separated list, dropping empty items.
func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// basePath derives the base output path from the output and input paths.
// Without an output the input's extension is stripped; a known format
// extension on the output is stripped too.
func basePath(output, input string) string {
	if output == "" {
		return strings.TrimSuffix(input, filepath.Ext(input))
	}
	ext := filepath.Ext(output)
	if pipeline.ValidFormats[strings.TrimPrefix(ext, ".")] || ext == ".json" {
		return strings.TrimSuffix(output, ext)
	}
	return output
}
