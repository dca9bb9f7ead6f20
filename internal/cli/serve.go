package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/dagview/pkg/facade"
	"github.com/matzehuels/dagview/pkg/server"
	"github.com/matzehuels/dagview/pkg/session"
)

// serveCommand creates the serve command, which exposes editor sessions over
// HTTP and WebSocket.
func (c *CLI) serveCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve editor sessions over HTTP and WebSocket",
		Long: `Serve editor sessions over HTTP and WebSocket.

Each browser creates a session with POST /api/sessions, uploads a file, and
drives layout, styling, selection and export through the session's routes.
Pointer gestures and live updates go over /api/sessions/{id}/ws.

Sessions are dropped after [server] session_ttl of inactivity, or when more
than session_capacity are open.

Examples:
  dagview serve
  dagview serve --addr 127.0.0.1:9000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = c.Config.Server.Addr
			}
			return c.runServe(cmd.Context(), addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :8080)")

	return cmd
}

func (c *CLI) newServer() (*server.Server, error) {
	cfg := c.Config.Server
	registry, err := session.NewRegistry(session.Options{
		Capacity:  cfg.SessionCapacity,
		TTL:       cfg.SessionTTL,
		NewEngine: c.engineFactory(),
		Facade:    c.Config.FacadeOptions(),
		Logger:    c.Logger,
	})
	if err != nil {
		return nil, err
	}
	return server.New(registry, server.Options{
		MaxUploadBytes: cfg.MaxUploadBytes,
		Logger:         c.Logger,
	}), nil
}

func (c *CLI) runServe(ctx context.Context, addr string) error {
	srv, err := c.newServer()
	if err != nil {
		return err
	}

	cfg := c.Config.Server
	fmt.Println(StyleTitle.Render(appName + " server"))
	printKeyValue("Address", StyleHighlight.Render(displayAddr(addr)))
	printKeyValue("Sessions", fmt.Sprintf("%d max, %s idle timeout", cfg.SessionCapacity, formatTTL(cfg.SessionTTL)))
	printKeyValue("Layouts", strings.Join(facade.LayoutKeys(c.Config.AllLayouts()), ", "))
	if c.Config.Path != "" {
		printKeyValue("Config", c.Config.Path)
	}
	printNewline()

	return srv.ListenAndServe(ctx, addr)
}

// displayAddr turns a bare port into a clickable URL.
func displayAddr(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "http://localhost" + addr
	}
	return "http://" + addr
}

func formatTTL(d time.Duration) string {
	if d < 0 {
		return "no"
	}
	return d.String()
}
