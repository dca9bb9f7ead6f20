// Package facade translates editor intent into rendering engine calls.
//
// [Facade] is the command surface any caller (CLI, HTTP handler, terminal
// editor) drives. [Controller] implements it and exclusively owns the mutable
// session state: the current document, the original-style snapshot, the
// selection and drag overlay, the current layout key and the layout-running
// flag.
//
// Every command is a logged no-op when no engine is attached. Style commands
// validate their input before touching any node and report rejections through
// the [Notifier]. An empty selection is logged for color, border and opacity
// changes; the shape command prompts the user instead.
package facade

import (
	"context"

	"github.com/matzehuels/dagview/pkg/overlay"
	"github.com/matzehuels/dagview/pkg/style"
)

// Facade is the editor command set.
type Facade interface {
	ApplyLayout(key string)
	ResetView()
	ExportImage(ctx context.Context, format string) (*Export, error)
	ChangeSelectedNodesColor(color string) error
	ChangeSelectedNodesBorder(color string, width float64) error
	ChangeSelectedNodesOpacity(value float64) error
	ChangeSelectedNodesShape(shape string) error
	ResetAllNodesToOriginal()
}

var _ Facade = (*Controller)(nil)

// Notifier surfaces messages that need the user's attention.
type Notifier interface {
	Alert(msg string)
}

// NotifierFunc adapts a function to [Notifier].
type NotifierFunc func(msg string)

// Alert calls f(msg).
func (f NotifierFunc) Alert(msg string) { f(msg) }

// Export is a rendered image ready to be saved or downloaded.
type Export struct {
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
	Data        []byte `json:"-"`
}

// =============================================================================
// Events
// =============================================================================

// EventKind classifies controller events.
type EventKind string

// Event kinds.
const (
	EventDocument EventKind = "document"
	EventLayout   EventKind = "layout"
	EventHandles  EventKind = "handles"
	EventStyle    EventKind = "style"
	EventAlert    EventKind = "alert"
)

// Event is delivered to subscribers after the command that produced it has
// released the controller.
type Event struct {
	Kind    EventKind        `json:"type"`
	NodeID  string           `json:"nodeId,omitempty"`
	Style   *style.NodeStyle `json:"style,omitempty"`
	Layout  string           `json:"layout,omitempty"`
	Handles []overlay.Handle `json:"handles,omitempty"`
	Message string           `json:"message,omitempty"`
	Error   string           `json:"error,omitempty"`
}
