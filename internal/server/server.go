package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazz-dev/watchdog/internal/probe"
	"github.com/hazz-dev/watchdog/internal/status"
)

// outcomeNeverProbed marks a configured target with no stored history. It is
// deliberately distinct from the failure outcomes.
const outcomeNeverProbed = "never_probed"

// StatusService answers target status queries.
type StatusService interface {
	Status(ctx context.Context, name string) (*status.TargetStatus, error)
	All(ctx context.Context) ([]status.TargetStatus, error)
}

// HistoryStore defines the storage queries the server needs directly.
type HistoryStore interface {
	History(ctx context.Context, target string, since time.Time, limit int) ([]probe.Result, error)
}

// Server holds the chi router and its dependencies.
type Server struct {
	statuses StatusService
	store    HistoryStore
	router   chi.Router
	logger   *slog.Logger
}

// New creates a new Server and registers all routes.
func New(statuses StatusService, store HistoryStore, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		statuses: statuses,
		store:    store,
		router:   chi.NewRouter(),
		logger:   logger,
	}
	s.registerRoutes()
	return s
}

// Router returns the chi router (for mounting or testing).
func (s *Server) Router() chi.Router {
	return s.router
}

func (s *Server) registerRoutes() {
	r := s.router
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/api/health", s.handleHealth)
	r.Get("/api/targets", s.handleListTargets)
	r.Get("/api/targets/{name}", s.handleGetTarget)
	r.Get("/api/targets/{name}/history", s.handleGetTargetHistory)
}

// --- Response helpers ---

type envelope struct {
	Data  interface{} `json:"data"`
	Error string      `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Error: msg})
}

// --- Views ---

type targetStatusResponse struct {
	Target              string     `json:"target"`
	Outcome             string     `json:"outcome"`
	LatencyMs           *int64     `json:"latency_ms"`
	Detail              string     `json:"detail,omitempty"`
	LastProbed          *time.Time `json:"last_probed"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	SuccessRatio        float64    `json:"success_ratio"`
	Window              int        `json:"window"`
	Uptime24h           float64    `json:"uptime_24h"`
	Uptime7d            float64    `json:"uptime_7d"`
	P95Ms               *float64   `json:"p95_ms"`
	Samples24h          int        `json:"samples_24h"`
	Score               float64    `json:"score"`
	Grade               string     `json:"grade"`
}

func renderStatus(st status.TargetStatus) targetStatusResponse {
	resp := targetStatusResponse{
		Target:              st.Target,
		Outcome:             outcomeNeverProbed,
		ConsecutiveFailures: st.ConsecutiveFailures,
		SuccessRatio:        st.SuccessRatio,
		Window:              st.Window,
		Uptime24h:           st.Uptime24h,
		Uptime7d:            st.Uptime7d,
		Samples24h:          st.Samples24h,
		Score:               st.Score,
		Grade:               st.Grade,
	}
	if st.Latest != nil {
		resp.Outcome = string(st.Latest.Outcome)
		resp.Detail = st.Latest.Detail
		t := st.Latest.ProbedAt
		resp.LastProbed = &t
		if st.Latest.Outcome == probe.OutcomeSuccess || st.Latest.Outcome == probe.OutcomeFailure {
			ms := st.Latest.Latency.Milliseconds()
			resp.LatencyMs = &ms
		}
	}
	if st.P95Latency > 0 {
		ms := float64(st.P95Latency) / float64(time.Millisecond)
		resp.P95Ms = &ms
	}
	return resp
}

type resultResponse struct {
	ProbedAt  time.Time `json:"probed_at"`
	Outcome   string    `json:"outcome"`
	LatencyMs *int64    `json:"latency_ms"`
	Detail    string    `json:"detail,omitempty"`
}

func renderResults(results []probe.Result) []resultResponse {
	out := make([]resultResponse, 0, len(results))
	for _, r := range results {
		rr := resultResponse{
			ProbedAt: r.ProbedAt,
			Outcome:  string(r.Outcome),
			Detail:   r.Detail,
		}
		if r.Outcome == probe.OutcomeSuccess || r.Outcome == probe.OutcomeFailure {
			ms := r.Latency.Milliseconds()
			rr.LatencyMs = &ms
		}
		out = append(out, rr)
	}
	return out
}

// --- Handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleListTargets(w http.ResponseWriter, r *http.Request) {
	statuses, err := s.statuses.All(r.Context())
	if err != nil {
		s.logger.Error("listing target statuses", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	out := make([]targetStatusResponse, 0, len(statuses))
	for _, st := range statuses {
		out = append(out, renderStatus(st))
	}
	writeJSON(w, http.StatusOK, out)
}

type targetDetailResponse struct {
	targetStatusResponse
	RecentResults []resultResponse `json:"recent_results"`
}

func (s *Server) handleGetTarget(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	st, err := s.statuses.Status(r.Context(), name)
	if err != nil {
		s.logger.Error("computing target status", "target", name, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if st == nil {
		writeError(w, http.StatusNotFound, "target not found")
		return
	}

	recent, err := s.store.History(r.Context(), name, time.Time{}, 10)
	if err != nil {
		s.logger.Error("reading recent history", "target", name, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, targetDetailResponse{
		targetStatusResponse: renderStatus(*st),
		RecentResults:        renderResults(recent),
	})
}

type historyResponse struct {
	Results []resultResponse `json:"results"`
}

func (s *Server) handleGetTargetHistory(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	st, err := s.statuses.Status(r.Context(), name)
	if err != nil {
		s.logger.Error("computing target status", "target", name, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if st == nil {
		writeError(w, http.StatusNotFound, "target not found")
		return
	}

	const maxLimit = 1000

	limit := 50
	since := time.Time{}

	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit parameter")
			return
		}
		if n > maxLimit {
			n = maxLimit
		}
		limit = n
	}
	if v := r.URL.Query().Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid since parameter")
			return
		}
		since = t
	}

	results, err := s.store.History(r.Context(), name, since, limit)
	if err != nil {
		s.logger.Error("reading history", "target", name, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, historyResponse{Results: renderResults(results)})
}

// --- Middleware ---

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration", time.Since(start),
		)
	})
}
