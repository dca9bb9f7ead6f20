package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/matzehuels/dagview/pkg/buildinfo"
	"github.com/matzehuels/dagview/pkg/errors"
	"github.com/matzehuels/dagview/pkg/facade"
	"github.com/matzehuels/dagview/pkg/session"
)

// =============================================================================
// Responses
// =============================================================================

type errorResponse struct {
	Code    errors.Code `json:"code"`
	Message string      `json:"message"`
}

type sessionResponse struct {
	ID      string   `json:"id"`
	Layout  string   `json:"layout"`
	Layouts []string `json:"layouts"`
	Theme   string   `json:"theme"`
}

type layoutResponse struct {
	Layout  string `json:"layout"`
	Running bool   `json:"running"`
	Result  any    `json:"result,omitempty"`
}

type commandResponse struct {
	Selected []string `json:"selected"`
	Alerts   []string `json:"alerts,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := errors.GetCode(err)
	status := http.StatusInternalServerError
	switch {
	case code == errors.ErrCodeSessionNotFound, code == errors.ErrCodeNotFound:
		status = http.StatusNotFound
	case code == errors.ErrCodeEngineUnavailable:
		status = http.StatusServiceUnavailable
	case errors.IsUserError(err):
		status = http.StatusBadRequest
	}
	if code == "" {
		code = errors.ErrCodeInternal
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "err", err)
	}
	writeJSON(w, status, errorResponse{Code: code, Message: errors.UserMessage(err)})
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid request body: %v", err)
	}
	return nil
}

// =============================================================================
// Sessions
// =============================================================================

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := s.sessions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return nil, false
	}
	return sess, true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"version":  buildinfo.Get().Version,
		"sessions": s.sessions.Len(),
	})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Create(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	c := sess.Controller
	writeJSON(w, http.StatusCreated, sessionResponse{
		ID:      sess.ID,
		Layout:  c.LayoutKey(),
		Layouts: c.Layouts(),
		Theme:   c.Theme().Name,
	})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.sessions.Delete(r.Context(), id) {
		s.writeError(w, errors.New(errors.ErrCodeSessionNotFound, "session %q not found", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// Documents
// =============================================================================

// handleUpload accepts either a multipart form with a "file" field or a raw
// body named by the filename query parameter.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)

	name, content, err := readUpload(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	doc, err := sess.Controller.Upload(r.Context(), name, content)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func readUpload(r *http.Request) (string, []byte, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, header, err := r.FormFile("file")
		if err != nil {
			return "", nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "multipart upload needs a \"file\" field")
		}
		defer file.Close()
		content, err := io.ReadAll(file)
		if err != nil {
			return "", nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "read upload: %v", err)
		}
		return header.Filename, content, nil
	}

	name := r.URL.Query().Get("filename")
	if name == "" {
		return "", nil, errors.New(errors.ErrCodeInvalidInput, "filename query parameter is required")
	}
	content, err := io.ReadAll(r.Body)
	if err != nil {
		return "", nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "read upload: %v", err)
	}
	return name, content, nil
}

func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	doc := sess.Controller.Document()
	if doc == nil {
		s.writeError(w, errors.New(errors.ErrCodeNotFound, "no document uploaded"))
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// =============================================================================
// Layout & View
// =============================================================================

func (s *Server) handleGetLayout(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	c := sess.Controller
	resp := layoutResponse{Layout: c.LayoutKey(), Running: c.LayoutRunning()}
	if l, ok := c.LastLayout(); ok {
		resp.Result = l
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleApplyLayout(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req struct {
		Layout string `json:"layout"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	c := sess.Controller
	if !slices.Contains(c.Layouts(), req.Layout) {
		s.writeError(w, errors.New(errors.ErrCodeInvalidLayout, "unknown layout %q (available: %s)",
			req.Layout, strings.Join(c.Layouts(), ", ")))
		return
	}
	c.ApplyLayout(req.Layout)
	writeJSON(w, http.StatusAccepted, layoutResponse{Layout: c.LayoutKey(), Running: c.LayoutRunning()})
}

func (s *Server) handleResetView(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	sess.Controller.ResetView()
	writeJSON(w, http.StatusOK, sess.Controller.Viewport())
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "png"
	}
	exp, err := sess.Controller.ExportImage(r.Context(), format)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", exp.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exp.FileName))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(exp.Data)
}

// =============================================================================
// Style Commands
// =============================================================================

type styleRequest struct {
	Color   string   `json:"color"`
	Width   float64  `json:"width"`
	Opacity *float64 `json:"opacity"`
	Shape   string   `json:"shape"`
}

func (s *Server) handleStyle(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	command := chi.URLParam(r, "command")
	var req styleRequest
	if command != "reset" {
		if err := decodeBody(r, &req); err != nil {
			s.writeError(w, err)
			return
		}
	}

	c := sess.Controller
	alerts, err := collectAlerts(c, func() error {
		switch command {
		case "color":
			return c.ChangeSelectedNodesColor(req.Color)
		case "border":
			return c.ChangeSelectedNodesBorder(req.Color, req.Width)
		case "opacity":
			if req.Opacity == nil {
				return errors.New(errors.ErrCodeInvalidInput, "opacity is required")
			}
			return c.ChangeSelectedNodesOpacity(*req.Opacity)
		case "shape":
			return c.ChangeSelectedNodesShape(req.Shape)
		case "reset":
			c.ResetAllNodesToOriginal()
			return nil
		default:
			return errors.New(errors.ErrCodeNotFound, "unknown style command %q", command)
		}
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, commandResponse{Selected: nonNil(c.Selected()), Alerts: alerts})
}

// collectAlerts runs fn and returns the alerts the controller raised meanwhile.
func collectAlerts(c *facade.Controller, fn func() error) ([]string, error) {
	var alerts []string
	unsubscribe := c.Subscribe(func(ev facade.Event) {
		if ev.Kind == facade.EventAlert {
			alerts = append(alerts, ev.Message)
		}
	})
	err := fn()
	unsubscribe()
	return alerts, err
}

// =============================================================================
// Selection
// =============================================================================

func (s *Server) handleGetSelection(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, commandResponse{Selected: nonNil(sess.Controller.Selected())})
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req struct {
		IDs []string `json:"ids"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	sess.Controller.Select(req.IDs)
	writeJSON(w, http.StatusOK, commandResponse{Selected: nonNil(sess.Controller.Selected())})
}

func (s *Server) handleHandles(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, nonNil(sess.Controller.Handles()))
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
