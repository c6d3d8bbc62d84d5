package infra

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"signalhub/pkg/logger"
)

// Check reports whether a dependency is usable.
type Check func(ctx context.Context) error

// JobRunner triggers scheduled jobs on demand.
type JobRunner interface {
	RunNow(ctx context.Context, name string) error
}

// OpsServerConfig holds the ops listener dependencies
type OpsServerConfig struct {
	Addr    string
	Metrics http.Handler
	Checks  map[string]Check
	Jobs    JobRunner
	Logger  *logger.Logger
}

// NewOpsServer builds the internal listener serving metrics, health checks and
// manual job triggers. It is meant for a private port.
func NewOpsServer(cfg OpsServerConfig) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           NewOpsRouter(cfg),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// NewOpsRouter returns the ops routes
func NewOpsRouter(cfg OpsServerConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok"})
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		names := make([]string, 0, len(cfg.Checks))
		for name := range cfg.Checks {
			names = append(names, name)
		}
		sort.Strings(names)

		status := http.StatusOK
		results := make(map[string]string, len(names))
		for _, name := range names {
			results[name] = "ok"
			if err := cfg.Checks[name](ctx); err != nil {
				results[name] = err.Error()
				status = http.StatusServiceUnavailable
			}
		}
		writeJSON(w, status, map[string]interface{}{
			"status":    http.StatusText(status),
			"checks":    results,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	if cfg.Jobs != nil {
		r.Post("/jobs/{name}/run", func(w http.ResponseWriter, r *http.Request) {
			name := chi.URLParam(r, "name")
			cfg.Logger.Info("Manual job run triggered", logger.String("job", name))

			err := cfg.Jobs.RunNow(r.Context(), name)
			switch {
			case errors.Is(err, ErrJobRunning):
				writeJSON(w, http.StatusConflict, map[string]interface{}{"job": name, "error": err.Error()})
			case err != nil:
				writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"job": name, "error": err.Error()})
			default:
				writeJSON(w, http.StatusOK, map[string]interface{}{"job": name, "status": "completed"})
			}
		})
	}

	return r
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
