package health

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vietddude/pricewatch/internal/core/domain"
	"github.com/vietddude/pricewatch/internal/pricing/metrics"
)

// unavailableMessage is shown to users instead of the underlying failure.
const unavailableMessage = "data unavailable"

const streamWriteTimeout = 5 * time.Second

// Feed is the read-only view of a price feed the server exposes.
type Feed interface {
	ID() string
	State() domain.OracleState
	Health() Status
	Subscribe() (<-chan domain.OracleState, func())
}

// EndpointFeed is a Feed that also reports on its individual endpoints.
type EndpointFeed interface {
	Feed
	EndpointStats() []EndpointStats
}

// Server provides HTTP endpoints for health monitoring and feed state.
type Server struct {
	feeds    map[string]Feed
	order    []string
	router   chi.Router
	server   *http.Server
	upgrader websocket.Upgrader
	log      *slog.Logger
}

// NewServer creates a new health server.
func NewServer(feeds []Feed, port int, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	s := &Server{
		feeds:  make(map[string]Feed, len(feeds)),
		router: r,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log: log,
	}
	for _, f := range feeds {
		s.feeds[f.ID()] = f
		s.order = append(s.order, f.ID())
	}

	r.Get("/health", s.handleHealth)
	r.Get("/health/detailed", s.handleDetailed)
	r.Get("/feeds", s.handleFeeds)
	r.Route("/feeds/{id}", func(r chi.Router) {
		r.Get("/state", s.handleState)
		r.Get("/health", s.handleFeedHealth)
		r.Get("/stream", s.handleStream)
	})
	r.Handle("/metrics", promhttp.Handler())

	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// ErrorSummary is the public part of a feed's last error.
// Raw details stay on /feeds/{id}/health.
type ErrorSummary struct {
	Service             string              `json:"service"`
	Timestamp           time.Time           `json:"timestamp"`
	ErrorCode           string              `json:"errorCode"`
	Context             domain.ErrorContext `json:"context"`
	ConsecutiveFailures int                 `json:"consecutiveFailures"`
}

// StateResponse is the public view of a feed's state.
// Its LastError shadows the embedded report when encoded.
type StateResponse struct {
	Feed string `json:"feed"`
	domain.OracleState
	LastError *ErrorSummary `json:"lastError,omitempty"`
	Message   string        `json:"message,omitempty"`
}

func newStateResponse(feed string, st domain.OracleState) StateResponse {
	resp := StateResponse{Feed: feed, OracleState: st}
	if r := st.LastError; r != nil {
		resp.LastError = &ErrorSummary{
			Service:             r.Service,
			Timestamp:           r.Timestamp,
			ErrorCode:           r.ErrorCode,
			Context:             r.Context,
			ConsecutiveFailures: r.ConsecutiveFailures,
		}
	}
	if st.Status == domain.StatusError {
		resp.Message = unavailableMessage
	}
	return resp
}

// DetailedReport is the body of /health/detailed.
type DetailedReport struct {
	HealthReport
	Endpoints map[string][]EndpointStats `json:"endpoints,omitempty"`
}

func (s *Server) report() HealthReport {
	statuses := make([]Status, 0, len(s.order))
	for _, id := range s.order {
		statuses = append(statuses, s.feeds[id].Health())
	}
	return Aggregate(statuses)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.report()

	code := http.StatusOK
	if report.SystemStatus == StatusCritical {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]string{"status": string(report.SystemStatus)})
}

func (s *Server) handleDetailed(w http.ResponseWriter, r *http.Request) {
	out := DetailedReport{HealthReport: s.report()}
	for _, id := range s.order {
		ef, ok := s.feeds[id].(EndpointFeed)
		if !ok {
			continue
		}
		if out.Endpoints == nil {
			out.Endpoints = make(map[string][]EndpointStats, len(s.order))
		}
		out.Endpoints[id] = ef.EndpointStats()
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleFeeds(w http.ResponseWriter, r *http.Request) {
	out := make([]StateResponse, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, newStateResponse(id, s.feeds[id].State()))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) feed(w http.ResponseWriter, r *http.Request) (Feed, bool) {
	id := chi.URLParam(r, "id")
	f, ok := s.feeds[id]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": fmt.Sprintf("unknown feed %q", id)})
	}
	return f, ok
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	f, ok := s.feed(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newStateResponse(f.ID(), f.State()))
}

func (s *Server) handleFeedHealth(w http.ResponseWriter, r *http.Request) {
	f, ok := s.feed(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, f.Health())
}

// handleStream sends the current state, then every committed state until the client leaves.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	f, ok := s.feed(w, r)
	if !ok {
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("Websocket upgrade failed", "feed", f.ID(), "error", err)
		return
	}
	defer conn.Close()

	states, cancel := f.Subscribe()
	defer cancel()

	metrics.StreamSubscribers.Inc()
	defer metrics.StreamSubscribers.Dec()

	// Reader detects client close; incoming messages are ignored.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := s.send(conn, newStateResponse(f.ID(), f.State())); err != nil {
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-gone:
			return
		case st, ok := <-states:
			if !ok {
				return
			}
			if err := s.send(conn, newStateResponse(f.ID(), st)); err != nil {
				s.log.Debug("Websocket write failed", "feed", f.ID(), "error", err)
				return
			}
		}
	}
}

func (s *Server) send(conn *websocket.Conn, v any) error {
	if err := conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(v)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
