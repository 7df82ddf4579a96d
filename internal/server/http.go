package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"CertLedger/internal/observability"
	"CertLedger/internal/projection"
	"CertLedger/internal/query"
)

// Server is the read-side HTTP surface: query endpoints over the
// projection tables, admin endpoints, health probes, and Prometheus
// metrics. Writes never enter here; commands only arrive through the
// message broker.
type Server struct {
	httpServer *http.Server
	log        zerolog.Logger
}

// Deps holds everything the handlers need.
type Deps struct {
	DB      *sql.DB
	Query   *query.Service
	Health  *observability.HealthChecker
	Metrics *observability.Metrics
	Log     zerolog.Logger
}

func New(addr string, deps *Deps) *Server {
	h := &handlers{deps: deps}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(h.instrument)

	r.Get("/healthz", deps.Health.LivenessHandler)
	r.Get("/readyz", deps.Health.ReadinessHandler)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/accounts/{owner}", h.getAccount)
		r.Get("/accounts/{owner}/certificates", h.listCertificates)
		r.Get("/certificates/{id}", h.getCertificate)
		r.Get("/products", h.listProducts)
		r.Get("/stats", h.getStats)

		r.Route("/admin", func(r chi.Router) {
			r.Get("/integrity", h.verifyIntegrity)
			r.Post("/projections/rebuild", h.rebuildProjections)
		})
	})

	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      r,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		log: deps.Log,
	}
}

// Start serves until the context is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.log.Info().Msg("http server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	s.log.Info().Str("addr", s.httpServer.Addr).Msg("http server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type handlers struct {
	deps *Deps
}

// instrument records request counts and latency per route pattern.
func (h *handlers) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		if h.deps.Metrics == nil {
			return
		}
		pattern := chi.RouteContext(r.Context()).RoutePattern()
		if pattern == "" {
			pattern = "unmatched"
		}
		h.deps.Metrics.QueryRequests.WithLabelValues(pattern, strconv.Itoa(ww.Status())).Inc()
		h.deps.Metrics.QueryDuration.WithLabelValues(pattern).Observe(time.Since(start).Seconds())
	})
}

func (h *handlers) getAccount(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")
	resp, err := h.deps.Query.GetAccount(r.Context(), owner)
	h.respond(w, r, resp, err)
}

func (h *handlers) listCertificates(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	after, _ := strconv.ParseInt(r.URL.Query().Get("after"), 10, 64)

	certs, err := h.deps.Query.ListCertificates(r.Context(), owner, limit, after)
	if certs == nil && err == nil {
		certs = []query.CertificateResponse{}
	}
	h.respond(w, r, certs, err)
}

func (h *handlers) getCertificate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid certificate id")
		return
	}
	resp, err := h.deps.Query.GetCertificate(r.Context(), id)
	h.respond(w, r, resp, err)
}

func (h *handlers) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.deps.Query.ListProductTypes(r.Context())
	if products == nil && err == nil {
		products = []query.ProductTypeResponse{}
	}
	h.respond(w, r, products, err)
}

func (h *handlers) getStats(w http.ResponseWriter, r *http.Request) {
	resp, err := h.deps.Query.GetStats(r.Context())
	h.respond(w, r, resp, err)
}

func (h *handlers) verifyIntegrity(w http.ResponseWriter, r *http.Request) {
	resp, err := h.deps.Query.VerifyIntegrity(r.Context())
	h.respond(w, r, resp, err)
}

func (h *handlers) rebuildProjections(w http.ResponseWriter, r *http.Request) {
	if err := projection.RebuildProjections(r.Context(), h.deps.DB, h.deps.Log); err != nil {
		h.deps.Log.Error().Err(err).Msg("projection rebuild failed")
		h.writeError(w, r, http.StatusInternalServerError, "rebuild failed")
		return
	}
	h.respond(w, r, map[string]bool{"rebuilt": true}, nil)
}

func (h *handlers) respond(w http.ResponseWriter, r *http.Request, v interface{}, err error) {
	if err != nil {
		if errors.Is(err, query.ErrNotFound) {
			h.writeError(w, r, http.StatusNotFound, "not found")
			return
		}
		h.deps.Log.Error().Err(err).Str("path", r.URL.Path).Msg("query failed")
		if h.deps.Metrics != nil {
			pattern := chi.RouteContext(r.Context()).RoutePattern()
			h.deps.Metrics.QueryErrors.WithLabelValues(pattern, "internal").Inc()
		}
		h.writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func (h *handlers) writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
