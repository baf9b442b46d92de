package server

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/coah80/yoinkgram/internal/config"
	"github.com/coah80/yoinkgram/internal/middleware"
	"github.com/coah80/yoinkgram/internal/services"
	"github.com/coah80/yoinkgram/internal/util"
)

type StatsSource interface {
	Stats() services.Stats
}

type PendingCounter interface {
	Len() int
}

type Deps struct {
	Registry StatsSource
	Sessions PendingCounter
	Limiter  *middleware.RateLimiter
}

type handlers struct {
	cfg     *config.Config
	log     *zap.Logger
	deps    Deps
	started time.Time
}

// NewRouter builds the operator HTTP surface.
func NewRouter(cfg *config.Config, log *zap.Logger, deps Deps) http.Handler {
	log = log.Named("http")
	if deps.Limiter == nil {
		deps.Limiter = middleware.NewRateLimiter(config.RateLimitWindow, config.RateLimitMax)
	}
	h := &handlers{cfg: cfg, log: log, deps: deps, started: time.Now()}

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.RequestID)
	r.Use(middleware.RequestLogger(log))
	r.Use(chimw.Recoverer)
	r.Use(securityHeaders)
	r.Use(middleware.CORS(cfg.CORSOrigins, log))

	r.Get("/health", h.health)
	r.Route("/api", func(r chi.Router) {
		r.Use(deps.Limiter.Handler)
		r.Use(h.requireSecret)
		r.Get("/stats", h.stats)
	})
	return r
}

func New(cfg *config.Config, log *zap.Logger, deps Deps) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           NewRouter(cfg, log, deps),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status":          "ok",
		"version":         config.Version,
		"uptime":          time.Since(h.started).Round(time.Second).String(),
		"pendingSessions": h.deps.Sessions.Len(),
	}
	if ds, err := util.GetDiskSpace(h.cfg.ScratchDir); err == nil {
		resp["disk"] = ds
		resp["diskFree"] = ds.String()
	} else {
		h.log.Debug("Disk space unavailable", zap.Error(err))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) stats(w http.ResponseWriter, r *http.Request) {
	s := h.deps.Registry.Stats()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"totalUsers":      s.TotalUsers,
		"newUsersToday":   s.NewUsersToday,
		"totalDownloads":  s.TotalDownloads,
		"lastResetDate":   s.LastResetDate,
		"pendingSessions": h.deps.Sessions.Len(),
	})
}

// requireSecret checks "Authorization: Bearer <STATS_SECRET>". Without a
// configured secret the API is closed.
func (h *handlers) requireSecret(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.cfg.StatsSecret == "" {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "Stats API is disabled"})
			return
		}
		token, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !found || subtle.ConstantTimeCompare([]byte(token), []byte(h.cfg.StatsSecret)) != 1 {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

func PrintBanner() {
	fmt.Printf(`
  ┌──────────────────────────────────┐
  │        yoinkgram %s          │
  │    telegram media relay bot      │
  └──────────────────────────────────┘
`, padVersion(config.Version))
}

func padVersion(v string) string {
	for len(v) < 10 {
		v += " "
	}
	return v
}
