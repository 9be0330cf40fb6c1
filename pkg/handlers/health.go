package handlers

import (
	"context"
	"net/http"
	"os"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lookout-hq/lookout/pkg/config"
)

const dependencyCheckTimeout = 2 * time.Second

// Dependency is a backing service reported by GET /health. Only a failing
// Critical dependency makes the endpoint return 503.
type Dependency struct {
	Name     string
	Critical bool
	Check    func(ctx context.Context) error
}

// PingResponse describes the running build.
type PingResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Service     string `json:"service"`
	GoVersion   string `json:"go_version"`
	Hostname    string `json:"hostname"`
	Environment string `json:"environment"`
}

// HealthResponse maps each dependency to "ok" or "unreachable".
type HealthResponse struct {
	Status       string            `json:"status"`
	Dependencies map[string]string `json:"dependencies"`
}

type HealthHandler struct {
	cfg    *config.Config
	deps   []Dependency
	logger *zap.Logger
}

func NewHealthHandler(cfg *config.Config, logger *zap.Logger, deps ...Dependency) *HealthHandler {
	return &HealthHandler{cfg: cfg, deps: deps, logger: logger.Named("health")}
}

func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /ping", h.Ping)
}

// Health handles GET /health, checking every dependency concurrently.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), dependencyCheckTimeout)
	defer cancel()

	resp := HealthResponse{Status: "ok", Dependencies: make(map[string]string, len(h.deps))}
	status := http.StatusOK

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	for _, dep := range h.deps {
		g.Go(func() error {
			err := dep.Check(ctx)

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				resp.Dependencies[dep.Name] = "ok"
				return nil
			}
			h.logger.Warn("Dependency unreachable", zap.String("dependency", dep.Name), zap.Error(err))
			resp.Dependencies[dep.Name] = "unreachable"
			resp.Status = "degraded"
			if dep.Critical {
				status = http.StatusServiceUnavailable
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := WriteJSON(w, status, resp); err != nil {
		h.logger.Error("Failed to encode health response", zap.Error(err))
	}
}

// Ping handles GET /ping without touching any dependency.
func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	if err := WriteJSON(w, http.StatusOK, PingResponse{
		Status:      "ok",
		Version:     h.cfg.Version,
		Service:     "lookout",
		GoVersion:   runtime.Version(),
		Hostname:    hostname,
		Environment: h.cfg.Env,
	}); err != nil {
		h.logger.Error("Failed to encode ping response", zap.Error(err))
	}
}
