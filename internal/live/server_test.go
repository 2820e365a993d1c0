package live

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"shotdetect/internal/media/envelope"
	"shotdetect/internal/progress"
	"shotdetect/internal/shot"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg map[string]any
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return msg
}

func waitForClients(t *testing.T, s *Server, want int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if s.Status().Clients == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("clients = %d, want %d", s.Status().Clients, want)
}

func TestServerBroadcastsRecords(t *testing.T) {
	s := New(nil)
	s.BeginRun("run-1", "clip.mkv")
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()
	defer s.Close()

	conn := dial(t, srv)
	hello := readMessage(t, conn)
	if hello["type"] != TypeHello || hello["run_id"] != "run-1" {
		t.Fatalf("unexpected hello: %v", hello)
	}
	waitForClients(t, s, 1)

	ctx := context.Background()
	if err := s.WriteScore(ctx, shot.ScoreRecord{Frame: 7, Normalized: 42}); err != nil {
		t.Fatal(err)
	}
	if err := s.WriteEnvelope(ctx, envelope.Sample{Window: 2, Min: -1, Max: 5}); err != nil {
		t.Fatal(err)
	}
	s.OnShot(shot.Shot{ID: 0, DurationFrames: 7})
	s.OnProgress(progress.Event{Frame: 7, Percent: 50})

	score := readMessage(t, conn)
	if score["type"] != TypeScore {
		t.Fatalf("expected score, got %v", score)
	}
	data := score["data"].(map[string]any)
	if data["frame"].(float64) != 7 || data["score"].(float64) != 42 {
		t.Fatalf("unexpected score payload: %v", data)
	}
	for _, want := range []string{TypeEnvelope, TypeShot, TypeProgress} {
		if msg := readMessage(t, conn); msg["type"] != want {
			t.Fatalf("expected %s, got %v", want, msg)
		}
	}

	st := s.Status()
	if st.Frames != 7 || st.Windows != 3 || st.Shots != 1 || st.Percent != 50 {
		t.Fatalf("unexpected status: %+v", st)
	}
}

func TestServerDropsSlowClients(t *testing.T) {
	s := New(nil, WithClientQueue(1))
	slow := &client{send: make(chan []byte, s.queue)}
	s.clients[slow] = struct{}{}

	// Nothing drains the queue, so the second record overflows it.
	_ = s.WriteScore(context.Background(), shot.ScoreRecord{Frame: 1})
	_ = s.WriteScore(context.Background(), shot.ScoreRecord{Frame: 2})

	st := s.Status()
	if st.Clients != 0 || st.Dropped != 1 || st.Published != 2 {
		t.Fatalf("unexpected status after overflow: %+v", st)
	}
	<-slow.send
	if _, ok := <-slow.send; ok {
		t.Fatalf("expected dropped client queue to be closed")
	}
}

func TestHealthAndStatusEndpoints(t *testing.T) {
	s := New(nil)
	s.BeginRun("abc", "in.mp4")
	_ = s.WriteScore(context.Background(), shot.ScoreRecord{Frame: 3})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthz: %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	var st Status
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if st.RunID != "abc" || st.Input != "in.mp4" || st.Frames != 3 {
		t.Fatalf("unexpected status: %+v", st)
	}
}

func TestStartServesOnEphemeralPort(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := New(nil)
	addr, err := s.Start(ctx, "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	resp, err := http.Get("http://" + addr.String() + "/healthz")
	if err != nil {
		t.Fatalf("get healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}
