// AngelaMos | 2026
// handler.go

package admin

import (
	"context"
	"database/sql"
	"net/http"
	"runtime"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/carterperez-dev/insurance-backend/internal/core"
)

type StatusCountFunc func(ctx context.Context) (map[string]int, error)

// StatusCounts adapts a typed per-status counter to StatusCountFunc.
func StatusCounts[S ~string](
	fn func(ctx context.Context) (map[S]int, error),
) StatusCountFunc {
	return func(ctx context.Context) (map[string]int, error) {
		counts, err := fn(ctx)
		if err != nil {
			return nil, err
		}

		out := make(map[string]int, len(counts))
		for status, n := range counts {
			out[string(status)] = n
		}
		return out, nil
	}
}

type Handler struct {
	dbStats    func() sql.DBStats
	redisStats func() *redis.PoolStats
	redisPing  func(ctx context.Context) error
	dbPing     func(ctx context.Context) error
	userCount  func(ctx context.Context) (int, error)
	policies   StatusCountFunc
	claims     StatusCountFunc
}

type HandlerConfig struct {
	DBStats    func() sql.DBStats
	RedisStats func() *redis.PoolStats
	RedisPing  func(ctx context.Context) error
	DBPing     func(ctx context.Context) error
	UserCount  func(ctx context.Context) (int, error)
	Policies   StatusCountFunc
	Claims     StatusCountFunc
}

func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{
		dbStats:    cfg.DBStats,
		redisStats: cfg.RedisStats,
		redisPing:  cfg.RedisPing,
		dbPing:     cfg.DBPing,
		userCount:  cfg.UserCount,
		policies:   cfg.Policies,
		claims:     cfg.Claims,
	}
}

// RegisterRoutes mounts /admin behind authentication and the admin role
// check. extra registers feature routes inside the same guarded group.
func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
	extra ...func(r chi.Router),
) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Get("/stats", h.GetSystemStats)
		r.Get("/stats/lifecycle", h.GetLifecycleStats)
		r.Get("/stats/db", h.GetDatabaseStats)
		r.Get("/stats/redis", h.GetRedisStats)
		r.Get("/stats/runtime", h.GetRuntimeStats)

		for _, register := range extra {
			register(r)
		}
	})
}

func (h *Handler) GetSystemStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	lifecycle, err := h.lifecycleStats(ctx)
	if err != nil {
		core.HandleError(w, r, err)
		return
	}

	response := SystemStatsResponse{
		Lifecycle: lifecycle,
		Database: DatabaseStatus{
			Healthy: ping(ctx, h.dbPing),
			Stats:   h.getDBStats(),
		},
		Redis: RedisStatus{
			Configured: h.redisPing != nil,
			Healthy:    ping(ctx, h.redisPing),
			Stats:      h.getRedisStats(),
		},
		Runtime: runtimeStats(),
	}

	core.OK(w, response)
}

func (h *Handler) GetLifecycleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.lifecycleStats(r.Context())
	if err != nil {
		core.HandleError(w, r, err)
		return
	}

	core.OK(w, stats)
}

func (h *Handler) GetDatabaseStats(w http.ResponseWriter, _ *http.Request) {
	core.OK(w, h.getDBStats())
}

func (h *Handler) GetRedisStats(w http.ResponseWriter, _ *http.Request) {
	core.OK(w, h.getRedisStats())
}

func (h *Handler) GetRuntimeStats(w http.ResponseWriter, _ *http.Request) {
	core.OK(w, runtimeStats())
}

func (h *Handler) lifecycleStats(ctx context.Context) (LifecycleStats, error) {
	stats := LifecycleStats{
		Policies: map[string]int{},
		Claims:   map[string]int{},
	}

	g, gctx := errgroup.WithContext(ctx)

	if h.userCount != nil {
		g.Go(func() error {
			n, err := h.userCount(gctx)
			stats.Users = n
			return err
		})
	}
	if h.policies != nil {
		g.Go(func() error {
			counts, err := h.policies(gctx)
			if err == nil {
				stats.Policies = counts
			}
			return err
		})
	}
	if h.claims != nil {
		g.Go(func() error {
			counts, err := h.claims(gctx)
			if err == nil {
				stats.Claims = counts
			}
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return LifecycleStats{}, err
	}
	return stats, nil
}

func ping(ctx context.Context, fn func(ctx context.Context) error) bool {
	if fn == nil {
		return false
	}
	return fn(ctx) == nil
}

func runtimeStats() RuntimeStats {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return RuntimeStats{
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
		NumCPU:       runtime.NumCPU(),
		MemAlloc:     memStats.Alloc,
		MemSys:       memStats.Sys,
		NumGC:        memStats.NumGC,
	}
}

func (h *Handler) getDBStats() *DBPoolStats {
	if h.dbStats == nil {
		return nil
	}

	stats := h.dbStats()
	return &DBPoolStats{
		MaxOpenConnections: stats.MaxOpenConnections,
		OpenConnections:    stats.OpenConnections,
		InUse:              stats.InUse,
		Idle:               stats.Idle,
		WaitCount:          stats.WaitCount,
		WaitDuration:       stats.WaitDuration.String(),
	}
}

func (h *Handler) getRedisStats() *RedisPoolStats {
	if h.redisStats == nil {
		return nil
	}

	stats := h.redisStats()
	return &RedisPoolStats{
		Hits:       stats.Hits,
		Misses:     stats.Misses,
		Timeouts:   stats.Timeouts,
		TotalConns: stats.TotalConns,
		IdleConns:  stats.IdleConns,
		StaleConns: stats.StaleConns,
	}
}
