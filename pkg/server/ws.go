package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/matzehuels/dagview/pkg/errors"
	"github.com/matzehuels/dagview/pkg/facade"
)

const (
	wsWriteWait = 10 * time.Second
	wsPongWait  = 60 * time.Second
	wsPingEvery = (wsPongWait * 9) / 10
	wsQueueSize = 64
)

const eventError facade.EventKind = "error"

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// wsInbound is a pointer or view message from the client.
type wsInbound struct {
	Type     string   `json:"type"`
	HandleID string   `json:"handleId,omitempty"`
	NodeID   string   `json:"nodeId,omitempty"`
	IDs      []string `json:"ids,omitempty"`
	X        float64  `json:"x"`
	Y        float64  `json:"y"`
	DX       float64  `json:"dx"`
	DY       float64  `json:"dy"`
	Level    float64  `json:"level"`
}

// wsOutbound is a controller event, or an error with a code.
type wsOutbound struct {
	facade.Event
	Code errors.Code `json:"code,omitempty"`
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	c := sess.Controller

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "session", sess.ID, "err", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := conn.SetReadDeadline(time.Now().Add(wsPongWait)); err != nil {
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	writeCh := make(chan wsOutbound, wsQueueSize)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		ticker := time.NewTicker(wsPingEvery)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case out := <-writeCh:
				if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
					return
				}
				if err := conn.WriteJSON(out); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
					return
				}
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	unsubscribe := c.Subscribe(func(ev facade.Event) {
		pushWS(writeCh, wsOutbound{Event: ev})
	})
	defer unsubscribe()

	s.logger.Debug("websocket connected", "session", sess.ID)
	pushWS(writeCh, wsOutbound{Event: facade.Event{Kind: facade.EventHandles, Handles: nonNil(c.Handles())}})

	for {
		var in wsInbound
		if err := conn.ReadJSON(&in); err != nil {
			cancel()
			<-writerDone
			s.logger.Debug("websocket closed", "session", sess.ID)
			return
		}
		if err := dispatchWS(c, in); err != nil {
			pushWS(writeCh, wsOutbound{
				Event: facade.Event{Kind: eventError, Message: errors.UserMessage(err)},
				Code:  errors.GetCode(err),
			})
		}
	}
}

// dispatchWS applies one inbound message. Results reach the client as
// controller events.
func dispatchWS(c *facade.Controller, in wsInbound) error {
	switch strings.ToLower(strings.TrimSpace(in.Type)) {
	case "pointerdown":
		c.PointerDown(in.HandleID, in.X, in.Y)
	case "pointermove":
		c.PointerMove(in.X, in.Y)
	case "pointerup":
		c.PointerUp(in.X, in.Y)
	case "select":
		c.Select(in.IDs)
	case "tap":
		c.Tap(in.NodeID)
	case "pan":
		c.Pan(in.DX, in.DY)
	case "zoom":
		c.Zoom(in.Level, in.X, in.Y)
	case "":
		return errors.New(errors.ErrCodeInvalidInput, "type is required")
	default:
		return errors.New(errors.ErrCodeInvalidInput, "unsupported type: %s", in.Type)
	}
	return nil
}

// pushWS queues out, dropping the oldest queued message when full.
func pushWS(writeCh chan wsOutbound, out wsOutbound) {
	select {
	case writeCh <- out:
		return
	default:
	}
	select {
	case <-writeCh:
	default:
	}
	select {
	case writeCh <- out:
	default:
	}
}
