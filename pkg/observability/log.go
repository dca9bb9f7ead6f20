package observability

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
)

// LogHooks writes every event to a structured logger at debug level. Failures
// are logged at warn level.
type LogHooks struct {
	Logger *log.Logger
}

var (
	_ PipelineHooks = LogHooks{}
	_ SessionHooks  = LogHooks{}
	_ HTTPHooks     = LogHooks{}
)

// NewLogHooks returns hooks that log to logger.
func NewLogHooks(logger *log.Logger) LogHooks {
	return LogHooks{Logger: logger}
}

func (h LogHooks) done(msg string, err error, kv ...any) {
	if err != nil {
		h.Logger.Warn(msg, append(kv, "err", err)...)
		return
	}
	h.Logger.Debug(msg, kv...)
}

func (h LogHooks) OnParseStart(_ context.Context, fileType string) {
	h.Logger.Debug("parse started", "type", fileType)
}

func (h LogHooks) OnParseComplete(_ context.Context, fileType string, nodeCount int, d time.Duration, err error) {
	h.done("parse finished", err, "type", fileType, "nodes", nodeCount, "took", d.Round(time.Microsecond))
}

func (h LogHooks) OnLayoutStart(_ context.Context, layout string, nodeCount int) {
	h.Logger.Debug("layout started", "layout", layout, "nodes", nodeCount)
}

func (h LogHooks) OnLayoutComplete(_ context.Context, layout string, d time.Duration, err error) {
	h.done("layout finished", err, "layout", layout, "took", d.Round(time.Millisecond))
}

func (h LogHooks) OnExportStart(_ context.Context, format string) {
	h.Logger.Debug("export started", "format", format)
}

func (h LogHooks) OnExportComplete(_ context.Context, format string, size int, d time.Duration, err error) {
	h.done("export finished", err, "format", format, "bytes", size, "took", d.Round(time.Millisecond))
}

func (h LogHooks) OnSessionCreated(_ context.Context, id string) {
	h.Logger.Debug("session created", "id", id)
}

func (h LogHooks) OnSessionClosed(_ context.Context, id string, evicted bool) {
	h.Logger.Debug("session closed", "id", id, "evicted", evicted)
}

func (h LogHooks) OnRequest(_ context.Context, method, route string) {
	h.Logger.Debug("request", "method", method, "route", route)
}

func (h LogHooks) OnResponse(_ context.Context, method, route string, status int, d time.Duration) {
	h.Logger.Debug("response", "method", method, "route", route, "status", status, "took", d.Round(time.Microsecond))
}
