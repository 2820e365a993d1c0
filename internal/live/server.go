package live

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"shotdetect/internal/logging"
	"shotdetect/internal/media/envelope"
	"shotdetect/internal/progress"
	"shotdetect/internal/shot"
)

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second
	pingEvery = (pongWait * 9) / 10

	defaultClientQueue = 256
)

// Message types sent to clients.
const (
	TypeHello    = "hello"
	TypeScore    = "score"
	TypeEnvelope = "envelope"
	TypeShot     = "shot"
	TypeProgress = "progress"
)

// Message is the JSON frame written to websocket clients.
type Message struct {
	Type  string `json:"type"`
	RunID string `json:"run_id,omitempty"`
	Data  any    `json:"data,omitempty"`
}

// Status is served on /status.
type Status struct {
	RunID     string  `json:"run_id"`
	Input     string  `json:"input,omitempty"`
	Frames    int     `json:"frames"`
	Windows   int     `json:"windows"`
	Shots     int     `json:"shots"`
	Percent   float64 `json:"percent"`
	Clients   int     `json:"clients"`
	Dropped   int64   `json:"dropped"`
	Published int64   `json:"published"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.send)
	})
}

// Option customizes a Server.
type Option func(*Server)

// WithClientQueue sets the per-client message backlog before the client is
// dropped.
func WithClientQueue(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.queue = n
		}
	}
}

// Server is the live visualization endpoint.
type Server struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger
	queue    int

	mu      sync.Mutex
	clients map[*client]struct{}
	status  Status

	dropped   atomic.Int64
	published atomic.Int64

	httpServer *http.Server
}

// New constructs a Server. Call Start to listen, or mount Handler directly.
func New(logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger:  logging.NewComponentLogger(logger, "live"),
		queue:   defaultClientQueue,
		clients: make(map[*client]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the HTTP routes served by Start.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)
	return mux
}

// Start listens on bind and serves until ctx is cancelled or Close is
// called. It returns the bound address, which differs from bind when bind
// requests an ephemeral port.
func (s *Server) Start(ctx context.Context, bind string) (net.Addr, error) {
	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return nil, err
	}
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		_ = s.Close()
	}()
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.WarnWithContext(s.logger, "live server stopped", "live_serve_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check live.bind"),
				logging.String(logging.FieldImpact, "live visualization unavailable"),
			)
		}
	}()
	s.logger.Info("live visualization listening", logging.String("address", listener.Addr().String()))
	return listener.Addr(), nil
}

// Close stops the HTTP server and disconnects all clients.
func (s *Server) Close() error {
	var err error
	if s.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = s.httpServer.Shutdown(shutdownCtx)
		cancel()
	}
	s.mu.Lock()
	for c := range s.clients {
		delete(s.clients, c)
		c.close()
	}
	s.mu.Unlock()
	return err
}

// BeginRun resets the status counters for a new run.
func (s *Server) BeginRun(runID, input string) {
	s.mu.Lock()
	s.status = Status{RunID: runID, Input: input, Percent: progress.UnknownPercent}
	s.mu.Unlock()
	s.publish(Message{Type: TypeHello, RunID: runID, Data: map[string]string{"input": input}})
}

// Status returns a snapshot of the current run and connection counters.
func (s *Server) Status() Status {
	s.mu.Lock()
	st := s.status
	st.Clients = len(s.clients)
	s.mu.Unlock()
	st.Dropped = s.dropped.Load()
	st.Published = s.published.Load()
	return st
}

func (s *Server) WriteScore(_ context.Context, rec shot.ScoreRecord) error {
	runID := s.update(func(st *Status) { st.Frames = rec.Frame })
	s.publish(Message{Type: TypeScore, RunID: runID, Data: rec})
	return nil
}

func (s *Server) WriteEnvelope(_ context.Context, sample envelope.Sample) error {
	runID := s.update(func(st *Status) { st.Windows = sample.Window + 1 })
	s.publish(Message{Type: TypeEnvelope, RunID: runID, Data: sample})
	return nil
}

func (s *Server) OnShot(sh shot.Shot) {
	runID := s.update(func(st *Status) { st.Shots = sh.ID + 1 })
	s.publish(Message{Type: TypeShot, RunID: runID, Data: sh})
}

func (s *Server) OnProgress(ev progress.Event) {
	runID := s.update(func(st *Status) { st.Percent = ev.Percent })
	s.publish(Message{Type: TypeProgress, RunID: runID, Data: ev})
}

func (s *Server) update(fn func(*Status)) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.status)
	return s.status.RunID
}

// publish queues msg for every client without blocking. Clients whose
// queue is full are disconnected.
func (s *Server) publish(msg Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		s.logger.Debug("live message encode failed", logging.Error(err))
		return
	}
	s.published.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		select {
		case c.send <- payload:
		default:
			s.dropped.Add(1)
			delete(s.clients, c)
			c.close()
		}
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	conn.SetReadLimit(1 << 16)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	c := &client{conn: conn, send: make(chan []byte, s.queue)}
	st := s.Status()
	hello, _ := json.Marshal(Message{Type: TypeHello, RunID: st.RunID, Data: st})
	c.send <- hello

	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()

	go s.writeLoop(c)
	go s.readLoop(c)
}

// readLoop drains client frames so pongs and close frames are processed.
func (s *Server) readLoop(c *client) {
	defer s.removeClient(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) writeLoop(c *client) {
	ticker := time.NewTicker(pingEvery)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				s.removeClient(c)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.removeClient(c)
				return
			}
		}
	}
}

func (s *Server) removeClient(c *client) {
	s.mu.Lock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		c.close()
	}
	s.mu.Unlock()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.Status())
}
