package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/matzehuels/dagview/pkg/cache"
	"github.com/matzehuels/dagview/pkg/pipeline"
)

const (
	defaultDebounce = 300 * time.Millisecond
	watchCacheSize  = 16
)

// watchCommand creates the watch command, which re-renders a graph file every
// time it changes.
func (c *CLI) watchCommand() *cobra.Command {
	var formatsStr string
	var debounce time.Duration
	opts := renderOpts{borderWidth: 2, opacity: 1}

	cmd := &cobra.Command{
		Use:   "watch <file>",
		Short: "Re-render a graph file whenever it changes",
		Long: `Re-render a graph file whenever it changes.

Takes the same flags as render. Changes are batched for --debounce before
rendering. When a change fails to parse or lay out, the previous outputs are
left in place. Saves that restore an earlier version are served from an
in-memory cache.

Examples:
  dagview watch deps.txt
  dagview watch deps.dot -f png,layout --debounce 1s`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.formats = parseFormats(formatsStr)
			opts.setOpacity = cmd.Flags().Changed("opacity")
			if err := pipeline.ValidateFormats(opts.formats); err != nil {
				return err
			}
			if !opts.noCache {
				opts.cache = cache.NewMemoryCache(watchCacheSize, 0)
			}
			return c.runWatch(cmd.Context(), args[0], &opts, debounce)
		},
	}

	addRenderFlags(cmd, &opts, &formatsStr)
	cmd.Flags().DurationVar(&debounce, "debounce", defaultDebounce, "quiet period before re-rendering")

	return cmd
}

func (c *CLI) runWatch(ctx context.Context, input string, opts *renderOpts, debounce time.Duration) error {
	render := func() {
		result, paths, err := c.renderOnce(ctx, input, opts)
		if err != nil {
			if ctx.Err() == nil {
				printWarning("%s: %v (keeping previous output)", filepath.Base(input), err)
			}
			return
		}
		printRendered(input, result, paths)
	}

	render()
	printInfo("Watching %s for changes (Ctrl+C to stop)", input)

	err := watchFile(ctx, input, debounce, func() {
		printNewline()
		printDetail("%s changed", filepath.Base(input))
		render()
	}, func(err error) {
		c.Logger.Warn("watch error", "error", err)
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// watchFile calls onChange after path has been written or recreated and then
// stayed quiet for debounce. The parent directory is watched so editors that
// replace files on save are still seen. Blocks until ctx is done.
func watchFile(ctx context.Context, path string, debounce time.Duration, onChange func(), onError func(error)) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}

	batchTimer := time.NewTimer(debounce)
	batchTimer.Stop()
	pending := false

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			pending = true
			batchTimer.Reset(debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			if onError != nil {
				onError(err)
			}

		case <-batchTimer.C:
			if pending {
				pending = false
				onChange()
			}
		}
	}
}
