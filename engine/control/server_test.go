package control

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-viewer/engine/config"
	"github.com/Carmen-Shannon/oxy-viewer/engine/loader"
	"github.com/Carmen-Shannon/oxy-viewer/engine/scene"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTimeout = 2 * time.Second

// stubScene records the calls the API makes. Unused interface methods panic through the nil embed.
type stubScene struct {
	scene.Scene

	mu       sync.Mutex
	params   *config.Parameters
	loads    []loader.Reference
	loadCtx  []context.Context
	navigate []int
	cameras  []int
	status   scene.Status
}

func newStubScene() *stubScene {
	return &stubScene{
		params: config.NewParameters(config.Default().Rendering),
		status: scene.Status{State: scene.StateRendering.String(), SceneCount: 2, CameraIndex: -1},
	}
}

func (s *stubScene) LoadAsync(ctx context.Context, ref loader.Reference) <-chan error {
	s.mu.Lock()
	s.loads = append(s.loads, ref)
	s.loadCtx = append(s.loadCtx, ctx)
	s.mu.Unlock()
	ch := make(chan error, 1)
	ch <- nil
	close(ch)
	return ch
}

func (s *stubScene) NavigateScene(delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.navigate = append(s.navigate, delta)
	s.status.Scene += delta
}

func (s *stubScene) SetCameraIndex(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cameras = append(s.cameras, index)
	s.status.CameraIndex = index
}

func (s *stubScene) Status() scene.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *stubScene) Parameters() *config.Parameters {
	return s.params
}

func newTestServer(t *testing.T, sc scene.Scene, opts ...ServerBuilderOption) (Server, *httptest.Server) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts = append([]ServerBuilderOption{WithScene(sc), WithLogger(logger)}, opts...)
	srv := NewServer(opts...)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.Close()
		ts.Close()
	})
	return srv, ts
}

func do(t *testing.T, method, url, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestModelsListingIsSorted(t *testing.T) {
	_, ts := newTestServer(t, newStubScene(), WithModels(map[string]string{
		"Duck":         "Duck/glTF/Duck.gltf",
		"Box":          "Box/glTF/Box.gltf",
		"Box (Binary)": "Box/glTF-Binary/Box.glb",
	}))

	resp, body := do(t, http.MethodGet, ts.URL+"/api/models", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got []ModelEntry
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, []ModelEntry{
		{Name: "Box", Path: "Box/glTF/Box.gltf"},
		{Name: "Box (Binary)", Path: "Box/glTF-Binary/Box.glb"},
		{Name: "Duck", Path: "Duck/glTF/Duck.gltf"},
	}, got)
}

func TestLoadByModelNameResolvesAgainstBasePath(t *testing.T) {
	sc := newStubScene()
	srv, ts := newTestServer(t, sc,
		WithModels(map[string]string{"Box": "Box/glTF/Box.gltf"}),
		WithBasePath("/models"))

	resp, body := do(t, http.MethodPost, ts.URL+"/api/load", `{"model":"Box"}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode, string(body))

	var st scene.Status
	require.NoError(t, json.Unmarshal(body, &st))
	assert.Equal(t, "/models/Box/glTF/Box.gltf", st.Model)

	sc.mu.Lock()
	require.Len(t, sc.loads, 1)
	assert.Equal(t, "/models/Box/glTF/Box.gltf", sc.loads[0].Path)
	loadCtx := sc.loadCtx[0]
	sc.mu.Unlock()

	// loads outlive the request and end with the server
	assert.NoError(t, loadCtx.Err())
	srv.Close()
	assert.Error(t, loadCtx.Err())
}

func TestLoadByPathAndBadRequests(t *testing.T) {
	sc := newStubScene()
	_, ts := newTestServer(t, sc)

	resp, _ := do(t, http.MethodPost, ts.URL+"/api/load", `{"path":"https://example.com/Box.glb"}`)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp, body := do(t, http.MethodPost, ts.URL+"/api/load", `{"model":"Nope"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, string(body), "unknown model")

	resp, _ = do(t, http.MethodPost, ts.URL+"/api/load", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, http.MethodPost, ts.URL+"/api/load", `{"bogus":1}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, http.MethodGet, ts.URL+"/api/load", "")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	sc.mu.Lock()
	defer sc.mu.Unlock()
	require.Len(t, sc.loads, 1)
	assert.Equal(t, "https://example.com/Box.glb", sc.loads[0].Path)
}

func TestSceneNavigation(t *testing.T) {
	sc := newStubScene()
	_, ts := newTestServer(t, sc)

	resp, _ := do(t, http.MethodPost, ts.URL+"/api/scene/next", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = do(t, http.MethodPost, ts.URL+"/api/scene/prev", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = do(t, http.MethodPost, ts.URL+"/api/scene/sideways", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	sc.mu.Lock()
	defer sc.mu.Unlock()
	assert.Equal(t, []int{1, -1}, sc.navigate)
}

func TestCameraSelection(t *testing.T) {
	sc := newStubScene()
	_, ts := newTestServer(t, sc)

	resp, body := do(t, http.MethodPut, ts.URL+"/api/camera/2", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var st scene.Status
	require.NoError(t, json.Unmarshal(body, &st))
	assert.Equal(t, 2, st.CameraIndex)

	resp, _ = do(t, http.MethodPut, ts.URL+"/api/camera/user", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = do(t, http.MethodPut, ts.URL+"/api/camera/abc", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	sc.mu.Lock()
	defer sc.mu.Unlock()
	assert.Equal(t, []int{2, -1}, sc.cameras)
}

func TestParamsGetAndPartialPut(t *testing.T) {
	sc := newStubScene()
	_, ts := newTestServer(t, sc)

	resp, body := do(t, http.MethodGet, ts.URL+"/api/params", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var p config.Params
	require.NoError(t, json.Unmarshal(body, &p))
	assert.Equal(t, config.DefaultEnvironment, p.Environment)

	resp, body = do(t, http.MethodPut, ts.URL+"/api/params", `{"useHdr":true}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &p))
	assert.True(t, p.UseHDR)
	assert.Equal(t, config.DefaultEnvironment, p.Environment)
	assert.True(t, sc.params.UseHDR())

	resp, _ = do(t, http.MethodPut, ts.URL+"/api/params", `{"environment":"  "}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, config.DefaultEnvironment, sc.params.Environment())

	resp, _ = do(t, http.MethodPut, ts.URL+"/api/params", `{"environment":"Studio","clearColor":[1,0,0,1]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Studio", sc.params.Environment())
	assert.Equal(t, [4]float32{1, 0, 0, 1}, sc.params.ClearColor())
}

func TestStatusIncludesFPS(t *testing.T) {
	_, ts := newTestServer(t, newStubScene(), WithFPS(func() float64 { return 59.5 }))

	resp, body := do(t, http.MethodGet, ts.URL+"/api/status", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got map[string]any
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "rendering", got["state"])
	assert.InDelta(t, 59.5, got["fps"], 1e-9)
	assert.InDelta(t, 2, got["sceneCount"], 1e-9)
}

func TestNoSceneIsUnavailable(t *testing.T) {
	_, ts := newTestServer(t, nil)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/status"},
		{http.MethodGet, "/api/params"},
		{http.MethodPost, "/api/scene/next"},
	} {
		resp, _ := do(t, tc.method, ts.URL+tc.path, "")
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode, tc.path)
	}
}

func TestAccessLogGoesThroughSlog(t *testing.T) {
	var buf bytes.Buffer
	var mu sync.Mutex
	logger := slog.New(slog.NewTextHandler(&lockedWriter{mu: &mu, w: &buf}, nil))
	srv := NewServer(WithScene(newStubScene()), WithLogger(logger))
	defer srv.Close()

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, buf.String(), "[control]")
	assert.Contains(t, buf.String(), "/api/status")
}

type lockedWriter struct {
	mu *sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func TestWebsocketReceivesLastStatusThenUpdates(t *testing.T) {
	srv, ts := newTestServer(t, newStubScene())
	hub := srv.Hub()
	hub.Publish(scene.Status{Event: scene.EventLoading, State: "loading", Model: "Box.gltf"})

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(testTimeout)))

	var st scene.Status
	require.NoError(t, conn.ReadJSON(&st))
	assert.Equal(t, scene.EventLoading, st.Event)
	assert.Equal(t, "Box.gltf", st.Model)

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, testTimeout, 10*time.Millisecond)
	hub.Publish(scene.Status{Event: scene.EventReady, State: "rendering", Model: "Box.gltf", SceneCount: 1})

	require.NoError(t, conn.ReadJSON(&st))
	assert.Equal(t, scene.EventReady, st.Event)
	assert.Equal(t, 1, st.SceneCount)

	hub.Close()
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
	assert.Zero(t, hub.Clients())
}
