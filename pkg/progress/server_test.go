package progress

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/matzehuels/framepen/pkg/buildinfo"
	"github.com/matzehuels/framepen/pkg/observability"
	"github.com/matzehuels/framepen/pkg/pipeline"
)

func TestHealthz(t *testing.T) {
	srv := New(nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthz = %d %q", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Server"); got != buildinfo.UserAgent() {
		t.Errorf("Server header = %q, want %q", got, buildinfo.UserAgent())
	}
}

func TestStatus(t *testing.T) {
	srv := New(nil)
	get := func() map[string]any {
		t.Helper()
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status code = %d", rec.Code)
		}
		var payload map[string]any
		if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		return payload
	}

	if payload := get(); payload["progress"] != nil {
		t.Errorf("status before any event = %v", payload)
	}

	srv.Publish(pipeline.Progress{RunID: "r", FramesProcessed: 5, TotalFrames: 20, PenCount: 3, Blocks: 2})
	payload := get()
	p, ok := payload["progress"].(map[string]any)
	if !ok {
		t.Fatalf("missing progress: %v", payload)
	}
	if p["frames_processed"].(float64) != 5 || p["pen_count"].(float64) != 3 {
		t.Errorf("unexpected progress: %v", p)
	}
	if payload["fraction"].(float64) != 0.25 {
		t.Errorf("fraction = %v, want 0.25", payload["fraction"])
	}
}

func TestUnknownRoute(t *testing.T) {
	rec := httptest.NewRecorder()
	New(nil).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("code = %d, want 404", rec.Code)
	}
}

type recordingHooks struct {
	observability.NoopHTTPHooks
	requests chan string
}

func (h *recordingHooks) OnRequest(_ context.Context, method, path string, status int, _ time.Duration) {
	h.requests <- method + " " + path
}

func TestRequestHooks(t *testing.T) {
	hooks := &recordingHooks{requests: make(chan string, 4)}
	observability.SetHTTPHooks(hooks)
	defer observability.Reset()

	rec := httptest.NewRecorder()
	New(nil).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	select {
	case got := <-hooks.requests:
		if got != "GET /healthz" {
			t.Errorf("hook saw %q", got)
		}
	default:
		t.Error("request hook not called")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("timed out")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func readProgress(t *testing.T, conn *websocket.Conn) pipeline.Progress {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var p pipeline.Progress
	if err := conn.ReadJSON(&p); err != nil {
		t.Fatalf("read: %v", err)
	}
	return p
}

func TestWebsocketStream(t *testing.T) {
	srv := New(nil)
	srv.Publish(pipeline.Progress{RunID: "r", FramesProcessed: 1})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	resp.Body.Close()
	waitFor(t, func() bool { return srv.Clients() == 1 })

	// The latest event is replayed on connect.
	if p := readProgress(t, conn); p.FramesProcessed != 1 {
		t.Errorf("replayed event = %+v", p)
	}

	srv.Publish(pipeline.Progress{RunID: "r", FramesProcessed: 10, Done: true})
	if p := readProgress(t, conn); p.FramesProcessed != 10 || !p.Done {
		t.Errorf("event = %+v", p)
	}

	conn.Close()
	waitFor(t, func() bool { return srv.Clients() == 0 })
}

func TestSlowSubscriberDropped(t *testing.T) {
	srv := New(nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	resp.Body.Close()
	waitFor(t, func() bool { return srv.Clients() == 1 })

	// Never read; the send buffer and socket buffers eventually fill and the
	// subscriber is dropped. Publish itself must not block.
	big := strings.Repeat("x", 64<<10)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10000 && srv.Clients() > 0; i++ {
			srv.Publish(pipeline.Progress{RunID: big, FramesProcessed: i})
		}
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Publish blocked")
	}
	if srv.Clients() != 0 {
		t.Error("slow subscriber was not dropped")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	srv := New(nil)
	errc := make(chan error, 1)
	go func() { errc <- srv.Run(ctx, "127.0.0.1:0") }()
	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("Run = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunBadAddress(t *testing.T) {
	err := New(nil).Run(context.Background(), "256.0.0.1:http-nope")
	if err == nil {
		t.Error("invalid address should fail")
	}
}
