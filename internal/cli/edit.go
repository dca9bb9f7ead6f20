package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/dagview/pkg/facade"
)

// editCommand creates the edit command, an interactive terminal editor over
// a single graph file.
func (c *CLI) editCommand() *cobra.Command {
	var layout, outDir, logFile string

	cmd := &cobra.Command{
		Use:   "edit <file>",
		Short: "Edit a graph interactively in the terminal",
		Long: `Edit a graph interactively in the terminal.

Select nodes from the list, switch layouts, and restyle the selection with
single-key commands. Press e to export the current view as PNG.

The screen is owned by the editor, so logs are discarded unless --log-file
is given.

Examples:
  dagview edit deps.txt
  dagview edit deps.dot -l radial --log-file edit.log`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if outDir == "" {
				outDir = filepath.Dir(args[0])
			}
			return c.runEdit(cmd.Context(), args[0], layout, outDir, logFile)
		},
	}

	cmd.Flags().StringVarP(&layout, "layout", "l", "", "initial layout (default from config)")
	cmd.Flags().StringVarP(&outDir, "output", "o", "", "directory for exported images (default: the file's directory)")
	cmd.Flags().StringVar(&logFile, "log-file", "", "write logs to this file")

	return cmd
}

func (c *CLI) runEdit(ctx context.Context, input, layout, outDir, logFile string) error {
	content, err := os.ReadFile(input)
	if err != nil {
		return fmt.Errorf("read %s: %w", input, err)
	}

	var logOut io.Writer = io.Discard
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		logOut = f
	}
	logger := newLogger(logOut, c.Logger.GetLevel())

	ctrl, err := c.newEditorController(ctx, input, content, layout, logger)
	if err != nil {
		return err
	}

	p := tea.NewProgram(NewEditorModel(ctx, ctrl, outDir), tea.WithAltScreen(), tea.WithContext(ctx))
	unsubscribe := ctrl.Subscribe(func(ev facade.Event) { p.Send(eventMsg(ev)) })
	defer unsubscribe()

	_, err = p.Run()
	return err
}

// newEditorController creates a controller, loads the file and starts the
// first layout. Alerts are delivered as events, so the notifier is silent.
func (c *CLI) newEditorController(ctx context.Context, input string, content []byte, layout string, logger *log.Logger) (*facade.Controller, error) {
	opts := c.Config.FacadeOptions()
	opts.Logger = logger
	opts.Notifier = facade.NotifierFunc(func(string) {})
	if layout != "" {
		if _, ok := opts.Layouts[layout]; !ok {
			return nil, fmt.Errorf("unknown layout %q (see 'dagview layouts')", layout)
		}
		opts.DefaultLayout = layout
	}

	ctrl := facade.New(c.engineFactoryFor(logger)(), opts)
	if _, err := ctrl.Upload(ctx, filepath.Base(input), content); err != nil {
		return nil, err
	}
	return ctrl, nil
}
