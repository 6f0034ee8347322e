package transport

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/evenodd-league/agents/internal/protocol"
	"github.com/evenodd-league/agents/internal/svcerr"
	"github.com/evenodd-league/agents/internal/telemetry"
	"github.com/evenodd-league/agents/internal/telemetry/metrics"
)

// Handler processes one decoded inbound message and returns the JSON
// payload to place in the JSON-RPC result (spec.md §7 "Transport").
type Handler func(ctx context.Context, msg protocol.Message) (interface{}, error)

// AdminHandlers wires the manager's operator-facing HTTP surface
// (spec.md §7 admin endpoints, consumed by cmd/leaguectl). They are left
// unset by the referee and player servers. Kept as plain closures rather
// than an interface so transport never has to import internal/manager,
// which already imports transport for its outbound Client.
type AdminHandlers struct {
	Standings   func(leagueID string) (interface{}, error)
	StartLeague func(ctx context.Context, leagueID string) error
}

// Server hosts an agent's single /mcp JSON-RPC endpoint plus the standard
// operational surface (/healthz, /metrics) shared by all three agent kinds
// (spec.md §7).
type Server struct {
	router  *mux.Router
	handler Handler
	logger  *telemetry.Logger
	metrics *metrics.Metrics
	limiter *rate.Limiter
	admin   AdminHandlers
}

// NewServer builds a Server that dispatches every decoded /mcp message to
// handler. requestsPerSecond/burst configure a token-bucket limiter shared
// across all callers (spec.md's configuration surface allows disabling
// this by passing requestsPerSecond<=0).
func NewServer(handler Handler, logger *telemetry.Logger, m *metrics.Metrics, requestsPerSecond, burst int) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		handler: handler,
		logger:  logger,
		metrics: m,
	}
	if requestsPerSecond > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	}
	s.routes()
	return s
}

// WithAdmin registers the manager's admin routes. No-op for referee and
// player servers, which never call it.
func (s *Server) WithAdmin(h AdminHandlers) *Server {
	s.admin = h
	s.router.HandleFunc("/admin/standings/{league_id}", s.handleAdminStandings).Methods(http.MethodGet)
	s.router.HandleFunc("/admin/leagues/{league_id}/start", s.handleAdminStart).Methods(http.MethodPost)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	s.router.HandleFunc("/mcp", s.handleRPC).Methods(http.MethodPost)
}

func (s *Server) handleAdminStandings(w http.ResponseWriter, r *http.Request) {
	if s.admin.Standings == nil {
		http.NotFound(w, r)
		return
	}
	leagueID := mux.Vars(r)["league_id"]
	view, err := s.admin.Standings(leagueID)
	if err != nil {
		s.writeError(w, "", err, statusFor(err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(view)
}

func (s *Server) handleAdminStart(w http.ResponseWriter, r *http.Request) {
	if s.admin.StartLeague == nil {
		http.NotFound(w, r)
		return
	}
	leagueID := mux.Vars(r)["league_id"]
	if err := s.admin.StartLeague(r.Context(), leagueID); err != nil {
		s.writeError(w, "", err, statusFor(err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_, _ = w.Write([]byte(`{"status":"starting"}`))
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if s.limiter != nil && !s.limiter.Allow() {
		s.writeError(w, "", svcerr.New(svcerr.CodeProtocolError, "rate limit exceeded"), http.StatusTooManyRequests)
		return
	}
	if s.metrics != nil {
		s.metrics.RequestsInFlight.Inc()
		defer s.metrics.RequestsInFlight.Dec()
	}

	var req rpcRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		s.writeError(w, "", svcerr.Protocol("malformed JSON-RPC request"), http.StatusBadRequest)
		return
	}

	msg, err := protocol.Decode(req.Params)
	if err != nil {
		s.writeError(w, req.ID, err, http.StatusBadRequest)
		s.observe(req.Method, start, false)
		return
	}

	result, err := s.handler(r.Context(), msg)
	if err != nil {
		s.writeError(w, req.ID, err, statusFor(err))
		s.observe(string(msg.Envelope.MessageType), start, false)
		return
	}

	s.writeResult(w, req.ID, result)
	s.observe(string(msg.Envelope.MessageType), start, true)
}

func (s *Server) observe(method string, start time.Time, success bool) {
	if s.metrics == nil {
		return
	}
	status := "ok"
	if !success {
		status = "error"
	}
	s.metrics.RequestsTotal.WithLabelValues(method, status).Inc()
	s.metrics.RequestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
}

func (s *Server) writeResult(w http.ResponseWriter, id string, result interface{}) {
	raw, err := json.Marshal(result)
	if err != nil {
		s.writeError(w, id, svcerr.Protocol("encode response"), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rpcResponse{JSONRPC: "2.0", Result: raw, ID: id})
}

func (s *Server) writeError(w http.ResponseWriter, id string, err error, status int) {
	rpcErr := &rpcError{Code: status, Message: err.Error()}
	if se, ok := svcerr.As(err); ok {
		rpcErr.Data = map[string]interface{}{"domain_code": string(se.Code)}
		if len(se.Details) > 0 {
			rpcErr.Data["details"] = se.Details
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(rpcResponse{
		JSONRPC: "2.0",
		Error:   rpcErr,
		ID:      id,
	})
}

func statusFor(err error) int {
	se, ok := svcerr.As(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch se.Code {
	case svcerr.CodeAuthTokenMissing, svcerr.CodeAuthTokenInvalid:
		return http.StatusUnauthorized
	case svcerr.CodePlayerNotFound, svcerr.CodeLeagueNotFound:
		return http.StatusNotFound
	case svcerr.CodeMissingField, svcerr.CodeInvalidChoice, svcerr.CodeProtocolError:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
