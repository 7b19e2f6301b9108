package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"chat-relay/observability"
	"chat-relay/runtime"
)

// Server exposes the websocket endpoint plus health and metrics surfaces.
type Server struct {
	log         *slog.Logger
	coordinator *runtime.Coordinator
	dispatcher  *Dispatcher
	collector   *observability.Collector
	upgrader    websocket.Upgrader
	bufferSize  int
	httpServer  *http.Server
}

func NewServer(log *slog.Logger, addr string, coordinator *runtime.Coordinator,
	dispatcher *Dispatcher, collector *observability.Collector, bufferSize int) *Server {
	s := &Server{
		log:         log,
		coordinator: coordinator,
		dispatcher:  dispatcher,
		collector:   collector,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The relay sits behind clients on arbitrary origins; identity is
			// established by the identify event, not the HTTP handshake.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		bufferSize: bufferSize,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.HandleFunc("/metrics/text", s.handleMetricsText)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// ListenAndServe blocks until the server stops.
func (s *Server) ListenAndServe() error {
	s.log.Info("Relay listening", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown drains the HTTP server; open websockets are closed by their pumps
// once the parent context is cancelled.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("Websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	client := NewClient(s.log, conn, s.bufferSize)
	s.log.Info("Connection opened", "connection", client.ConnectionID(), "remote", r.RemoteAddr)

	go client.writePump()
	client.readPump(r.Context(), s.dispatcher)

	// The read pump returned: the socket is gone. Grace-window semantics run
	// in the coordinator; nothing is announced here.
	s.coordinator.Disconnect(client.ConnectionID())
	s.log.Info("Connection closed", "connection", client.ConnectionID())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	body := map[string]any{
		"status":             "ok",
		"pendingDisconnects": s.coordinator.PendingCount(),
	}
	if stats, err := observability.SelfStats(); err == nil {
		body["process"] = stats
	}
	writeJSON(w, body)
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.collector.Summaries())
}

func (s *Server) handleMetricsText(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_, _ = w.Write([]byte(s.collector.RenderText()))
}

func writeJSON(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}
