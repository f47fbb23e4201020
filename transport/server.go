package transport

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"chat-relay/contract"
	"chat-relay/errors"
	"chat-relay/observability"
	"chat-relay/runtime"
)

// Server wires the HTTP routes: the WebSocket upgrade, the GIF search
// proxy, health, and debug stats.
type Server struct {
	log        *slog.Logger
	hub        *runtime.Hub
	searcher   contract.GifSearcher
	monitor    *observability.Monitor
	bufferSize int
	upgrader   websocket.Upgrader
}

func NewServer(log *slog.Logger, hub *runtime.Hub, searcher contract.GifSearcher,
	monitor *observability.Monitor, bufferSize int) *Server {
	return &Server{
		log:        log,
		hub:        hub,
		searcher:   searcher,
		monitor:    monitor,
		bufferSize: bufferSize,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/ws", s.handleWS)
	r.Get("/api/gifs", s.handleGifSearch)
	r.Get("/healthz", s.handleHealth)
	r.Get("/debug/stats", s.handleStats)
	return r
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("WebSocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	session := NewSession(conn, s.hub, s.log, s.bufferSize)
	go session.Run()
}

// handleGifSearch proxies GET /api/gifs?q=texto&limit=20 upstream.
// Errors keep their taxonomy: missing credential and bad input are
// 400, an upstream failure is surfaced with its status.
func (s *Server) handleGifSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing query parameter q"})
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be an integer"})
			return
		}
		limit = parsed
	}

	results, err := s.searcher.Search(r.Context(), query, limit)
	if err != nil {
		s.log.Warn("GIF search failed", "query", query, "error", err)
		writeJSON(w, errors.MapToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.monitor.Snapshot())
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
