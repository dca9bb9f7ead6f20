package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/dagview/pkg/engine"
	"github.com/matzehuels/dagview/pkg/engine/enginetest"
	"github.com/matzehuels/dagview/pkg/facade"
	"github.com/matzehuels/dagview/pkg/graph"
	"github.com/matzehuels/dagview/pkg/observability"
	"github.com/matzehuels/dagview/pkg/overlay"
	"github.com/matzehuels/dagview/pkg/session"
)

const chain = "Graph Nodes:\nA; B; C\nGraph Edges:\n1. A --> B\n2. B --> C\n"

type testServer struct {
	*httptest.Server
	t *testing.T
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	reg, err := session.NewRegistry(session.Options{
		Capacity: 4,
		NewEngine: func() engine.Engine {
			f := enginetest.New()
			f.AutoLayout = true
			return f
		},
	})
	require.NoError(t, err)
	ts := httptest.NewServer(New(reg, Options{MaxUploadBytes: 1024}).Handler())
	t.Cleanup(ts.Close)
	return &testServer{Server: ts, t: t}
}

func (ts *testServer) do(method, path, contentType string, body io.Reader) *http.Response {
	ts.t.Helper()
	req, err := http.NewRequest(method, ts.URL+path, body)
	require.NoError(ts.t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(ts.t, err)
	ts.t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (ts *testServer) postJSON(path string, v any) *http.Response {
	ts.t.Helper()
	data, err := json.Marshal(v)
	require.NoError(ts.t, err)
	return ts.do(http.MethodPost, path, "application/json", bytes.NewReader(data))
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (ts *testServer) createSession() string {
	ts.t.Helper()
	resp := ts.do(http.MethodPost, "/api/sessions", "", nil)
	require.Equal(ts.t, http.StatusCreated, resp.StatusCode)
	return decode[sessionResponse](ts.t, resp).ID
}

// uploadChain uploads a three node chain and waits for its layout.
func (ts *testServer) uploadChain(id string) {
	ts.t.Helper()
	resp := ts.do(http.MethodPost, "/api/sessions/"+id+"/upload?filename=chain.txt", "text/plain", strings.NewReader(chain))
	require.Equal(ts.t, http.StatusOK, resp.StatusCode)
	ts.waitLayout(id)
}

func (ts *testServer) waitLayout(id string) layoutResponse {
	ts.t.Helper()
	var last layoutResponse
	require.Eventually(ts.t, func() bool {
		resp := ts.do(http.MethodGet, "/api/sessions/"+id+"/layout", "", nil)
		last = decode[layoutResponse](ts.t, resp)
		return !last.Running && last.Result != nil
	}, 2*time.Second, 10*time.Millisecond)
	return last
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	ts.createSession()

	resp := ts.do(http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]any](t, resp)
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 1, body["sessions"])
}

func TestSessionLifecycle(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(http.MethodPost, "/api/sessions", "", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[sessionResponse](t, resp)
	assert.Equal(t, facade.DefaultLayout, created.Layout)
	assert.Contains(t, created.Layouts, facade.LayoutCircular)
	assert.Equal(t, "light", created.Theme)

	resp = ts.do(http.MethodDelete, "/api/sessions/"+created.ID, "", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = ts.do(http.MethodDelete, "/api/sessions/"+created.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = ts.do(http.MethodGet, "/api/sessions/"+created.ID+"/document", "", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "SESSION_NOT_FOUND", string(decode[errorResponse](t, resp).Code))
}

func TestUpload(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createSession()

	resp := ts.do(http.MethodGet, "/api/sessions/"+id+"/document", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "no document yet")

	resp = ts.do(http.MethodPost, "/api/sessions/"+id+"/upload?filename=chain.txt", "text/plain", strings.NewReader(chain))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	doc := decode[graph.Document](t, resp)
	assert.Equal(t, 3, doc.Metadata.NodeCount)
	assert.Equal(t, 2, doc.Metadata.EdgeCount)

	resp = ts.do(http.MethodGet, "/api/sessions/"+id+"/document", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[graph.Document](t, resp).Nodes, 3)

	layout := ts.waitLayout(id)
	assert.Equal(t, facade.DefaultLayout, layout.Layout)
}

func TestUploadMultipart(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createSession()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "deps.csv")
	require.NoError(t, err)
	_, _ = io.WriteString(fw, "source,target\napp,lib\n")
	require.NoError(t, mw.Close())

	resp := ts.do(http.MethodPost, "/api/sessions/"+id+"/upload", mw.FormDataContentType(), &buf)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	doc := decode[graph.Document](t, resp)
	assert.Equal(t, "deps.csv", doc.Metadata.FileName)
	assert.Len(t, doc.Nodes, 2)
}

func TestUploadErrors(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createSession()

	tests := []struct {
		name   string
		path   string
		body   string
		status int
		code   string
	}{
		{"missing filename", "/upload", "A B", http.StatusBadRequest, "INVALID_INPUT"},
		{"unsupported format", "/upload?filename=g.xml", "<g/>", http.StatusBadRequest, "UNSUPPORTED_FORMAT"},
		{"invalid json", "/upload?filename=g.json", "{", http.StatusBadRequest, "INVALID_JSON"},
		{"path traversal", "/upload?filename=../g.txt", "A B", http.StatusBadRequest, "INVALID_PATH"},
		{"too large", "/upload?filename=g.txt", strings.Repeat("A B\n", 512), http.StatusBadRequest, "INVALID_INPUT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.do(http.MethodPost, "/api/sessions/"+id+tt.path, "text/plain", strings.NewReader(tt.body))
			require.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.code, string(decode[errorResponse](t, resp).Code))
		})
	}
}

func TestApplyLayout(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createSession()
	ts.uploadChain(id)

	resp := ts.postJSON("/api/sessions/"+id+"/layout", map[string]string{"layout": facade.LayoutCircular})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, facade.LayoutCircular, decode[layoutResponse](t, resp).Layout)
	assert.Equal(t, facade.LayoutCircular, ts.waitLayout(id).Layout)

	resp = ts.postJSON("/api/sessions/"+id+"/layout", map[string]string{"layout": "spiral"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_LAYOUT", string(decode[errorResponse](t, resp).Code))

	resp = ts.do(http.MethodPost, "/api/sessions/"+id+"/layout", "application/json", strings.NewReader("{"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestResetView(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createSession()
	ts.uploadChain(id)

	resp := ts.do(http.MethodPost, "/api/sessions/"+id+"/view/reset", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1.0, decode[engine.Viewport](t, resp).Zoom)
}

func TestExport(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createSession()
	ts.uploadChain(id)

	resp := ts.do(http.MethodGet, "/api/sessions/"+id+"/export?format=jpeg", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/jpeg", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "graph-hierarchical.jpeg")
	data, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "jpg:#ffffff", string(data))

	resp = ts.do(http.MethodGet, "/api/sessions/"+id+"/export", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))

	resp = ts.do(http.MethodGet, "/api/sessions/"+id+"/export?format=svg", "", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_FORMAT", string(decode[errorResponse](t, resp).Code))
}

func TestStyleCommands(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createSession()
	ts.uploadChain(id)
	base := "/api/sessions/" + id

	// Shape with nothing selected prompts the user.
	resp := ts.postJSON(base+"/style/shape", map[string]string{"shape": "square"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"Please select at least one node to change its shape."},
		decode[commandResponse](t, resp).Alerts)

	resp = ts.postJSON(base+"/selection", map[string][]string{"ids": {"A", "missing"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"A"}, decode[commandResponse](t, resp).Selected)

	resp = ts.postJSON(base+"/style/color", map[string]string{"color": "red"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"A"}, decode[commandResponse](t, resp).Selected)

	resp = ts.postJSON(base+"/style/color", map[string]string{"color": "not-a-color"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_COLOR", string(decode[errorResponse](t, resp).Code))

	resp = ts.postJSON(base+"/style/border", map[string]any{"color": "#000", "width": 3})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.postJSON(base+"/style/opacity", map[string]any{"opacity": 1.5})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_INPUT", string(decode[errorResponse](t, resp).Code))

	resp = ts.postJSON(base+"/style/opacity", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "opacity is required")

	resp = ts.do(http.MethodPost, base+"/style/reset", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.postJSON(base+"/style/glow", map[string]any{})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandles(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createSession()
	ts.uploadChain(id)
	base := "/api/sessions/" + id

	resp := ts.do(http.MethodGet, base+"/handles", "", nil)
	assert.Empty(t, decode[[]overlay.Handle](t, resp))

	ts.postJSON(base+"/selection", map[string][]string{"ids": {"B"}})
	resp = ts.do(http.MethodGet, base+"/handles", "", nil)
	handles := decode[[]overlay.Handle](t, resp)
	require.Len(t, handles, len(overlay.Corners))
	for _, h := range handles {
		assert.Equal(t, "B", h.NodeID)
	}

	resp = ts.do(http.MethodGet, base+"/selection", "", nil)
	assert.Equal(t, []string{"B"}, decode[commandResponse](t, resp).Selected)
}

type routeRecorder struct {
	observability.NoopHTTPHooks
	mu     sync.Mutex
	routes []string
}

func (h *routeRecorder) OnResponse(_ context.Context, method, route string, status int, _ time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.routes = append(h.routes, method+" "+route)
}

func TestHTTPHooksSeeRoutePatterns(t *testing.T) {
	hooks := &routeRecorder{}
	observability.SetHTTPHooks(hooks)
	t.Cleanup(observability.Reset)

	ts := newTestServer(t)
	id := ts.createSession()
	ts.do(http.MethodGet, "/api/sessions/"+id+"/handles", "", nil)

	hooks.mu.Lock()
	defer hooks.mu.Unlock()
	assert.Contains(t, hooks.routes, "GET /api/sessions/{id}/handles")
}

func TestWebSocket(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createSession()
	ts.uploadChain(id)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/sessions/" + id + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() wsOutbound {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var out wsOutbound
		require.NoError(t, conn.ReadJSON(&out))
		return out
	}
	// readUntil skips events of other kinds.
	readUntil := func(kind facade.EventKind) wsOutbound {
		t.Helper()
		for {
			if out := read(); out.Kind == kind {
				return out
			}
		}
	}

	assert.Equal(t, facade.EventHandles, read().Kind, "initial handles")

	require.NoError(t, conn.WriteJSON(wsInbound{Type: "select", IDs: []string{"A"}}))
	handles := readUntil(facade.EventHandles)
	require.Len(t, handles.Handles, len(overlay.Corners))
	h := handles.Handles[3]
	require.Equal(t, overlay.BottomRight, h.Corner)

	require.NoError(t, conn.WriteJSON(wsInbound{Type: "pointerdown", HandleID: h.ID, X: h.X, Y: h.Y}))
	require.NoError(t, conn.WriteJSON(wsInbound{Type: "pointermove", X: h.X + 20, Y: h.Y + 20}))
	require.NoError(t, conn.WriteJSON(wsInbound{Type: "pointerup", X: h.X + 20, Y: h.Y + 20}))
	st := readUntil(facade.EventStyle)
	assert.Equal(t, "A", st.NodeID)
	require.NotNil(t, st.Style)
	assert.Greater(t, st.Style.Width, 60.0)

	require.NoError(t, conn.WriteJSON(wsInbound{Type: "launch"}))
	errEv := readUntil(eventError)
	assert.Equal(t, "INVALID_INPUT", string(errEv.Code))
	assert.Contains(t, errEv.Message, "launch")
}

func TestWebSocketUnknownSession(t *testing.T) {
	ts := newTestServer(t)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/sessions/nope/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
