// Package progress serves conversion progress over HTTP.
//
// A [Server] keeps the latest [pipeline.Progress] event and fans every new
// one out to websocket subscribers:
//
//	GET /healthz  liveness probe
//	GET /status   latest event as JSON
//	GET /ws       stream of events, one JSON text message per event
//
// Delivery is best effort. A subscriber whose send buffer is full is
// disconnected rather than allowed to slow down the conversion.
//
// [pipeline.Progress]: github.com/matzehuels/framepen/pkg/pipeline.Progress
package progress

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/matzehuels/framepen/pkg/buildinfo"
	"github.com/matzehuels/framepen/pkg/observability"
	"github.com/matzehuels/framepen/pkg/pipeline"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingEvery  = (pongWait * 9) / 10
	sendBuffer = 16
)

// Server broadcasts progress events.
type Server struct {
	upgrader websocket.Upgrader
	logger   *log.Logger

	mu      sync.Mutex
	clients map[*websocket.Conn]chan []byte
	latest  *pipeline.Progress
}

// New creates a server with no subscribers. A nil logger discards output.
func New(logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Server{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger:  logger,
		clients: make(map[*websocket.Conn]chan []byte),
	}
}

// Publish records p as the latest event and queues it for every subscriber.
// It never blocks.
func (s *Server) Publish(p pipeline.Progress) {
	payload, err := json.Marshal(p)
	if err != nil {
		return
	}
	var slow []*websocket.Conn
	s.mu.Lock()
	s.latest = &p
	for conn, send := range s.clients {
		select {
		case send <- payload:
		default:
			slow = append(slow, conn)
		}
	}
	s.mu.Unlock()
	for _, conn := range slow {
		s.logger.Debug("dropping slow progress subscriber", "remote", conn.RemoteAddr())
		s.removeClient(conn)
	}
}

// Clients returns the number of connected subscribers.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(serverHeader)
	r.Use(instrument)
	r.Get("/healthz", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Get("/ws", s.handleWS)
	return r
}

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
		s.closeAll()
	}()

	s.logger.Info("serving progress", "addr", ln.Addr().String())
	if err := httpServer.Serve(ln); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	latest := s.latest
	clients := len(s.clients)
	s.mu.Unlock()

	payload := map[string]any{"ws_clients": clients}
	if latest != nil {
		payload["progress"] = latest
		payload["fraction"] = latest.Fraction()
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	conn.SetReadLimit(1 << 10)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	send := make(chan []byte, sendBuffer)
	s.mu.Lock()
	if s.latest != nil {
		if payload, err := json.Marshal(s.latest); err == nil {
			send <- payload
		}
	}
	s.clients[conn] = send
	s.mu.Unlock()
	observability.HTTP().OnClient(r.Context(), 1)

	go s.writeLoop(conn, send)
	go s.readLoop(conn)
}

// writeLoop owns every write to conn.
func (s *Server) writeLoop(conn *websocket.Conn, send <-chan []byte) {
	ticker := time.NewTicker(pingEvery)
	defer ticker.Stop()
	for {
		select {
		case payload, ok := <-send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				s.removeClient(conn)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.removeClient(conn)
				return
			}
		}
	}
}

// readLoop drains control frames until the peer goes away.
func (s *Server) readLoop(conn *websocket.Conn) {
	defer s.removeClient(conn)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) removeClient(conn *websocket.Conn) {
	s.mu.Lock()
	send, ok := s.clients[conn]
	if ok {
		delete(s.clients, conn)
		close(send)
	}
	s.mu.Unlock()
	if ok {
		observability.HTTP().OnClient(context.Background(), -1)
		// Give the writer a moment to send the close frame.
		time.AfterFunc(writeWait, func() { conn.Close() })
	}
}

func (s *Server) closeAll() {
	s.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.clients))
	for conn := range s.clients {
		conns = append(conns, conn)
	}
	s.mu.Unlock()
	for _, conn := range conns {
		s.removeClient(conn)
	}
}

func serverHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", buildinfo.UserAgent())
		next.ServeHTTP(w, r)
	})
}

func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		observability.HTTP().OnRequest(r.Context(), r.Method, r.URL.Path, status, time.Since(start))
	})
}
