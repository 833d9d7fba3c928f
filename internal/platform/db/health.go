package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// PoolStats represents database connection pool statistics.
type PoolStats struct {
	TotalConns      int32  `json:"total_conns"`
	IdleConns       int32  `json:"idle_conns"`
	AcquiredConns   int32  `json:"acquired_conns"`
	MaxConns        int32  `json:"max_conns"`
	AcquireCount    int64  `json:"acquire_count"`
	AcquireDuration string `json:"acquire_duration"`
	Healthy         bool   `json:"healthy"`
}

// GetPoolStats returns connection pool statistics.
func GetPoolStats(pool *pgxpool.Pool) *PoolStats {
	stat := pool.Stat()
	return &PoolStats{
		TotalConns:      stat.TotalConns(),
		IdleConns:       stat.IdleConns(),
		AcquiredConns:   stat.AcquiredConns(),
		MaxConns:        stat.MaxConns(),
		AcquireCount:    stat.AcquireCount(),
		AcquireDuration: stat.AcquireDuration().String(),
		Healthy:         stat.TotalConns() > 0,
	}
}

// Dependency is an additional backend probed by the health endpoint,
// e.g. the Redis lock store or the MQTT broker.
type Dependency struct {
	Name string
	Ping func(ctx context.Context) error
}

// PoolDependency wraps the pool as the "database" dependency.
func PoolDependency(pool *pgxpool.Pool) Dependency {
	return Dependency{Name: "database", Ping: pool.Ping}
}

// checkDependencies pings every dependency and returns a status per name.
// The bool is false if any dependency failed.
func checkDependencies(ctx context.Context, deps []Dependency) (map[string]string, bool) {
	result := make(map[string]string, len(deps))
	healthy := true
	for _, d := range deps {
		if d.Ping == nil {
			continue
		}
		if err := d.Ping(ctx); err != nil {
			result[d.Name] = err.Error()
			healthy = false
			continue
		}
		result[d.Name] = "ok"
	}
	return result, healthy
}

// HealthHandler returns a handler for the health check endpoint. Pool
// stats are included when pool is non-nil.
func HealthHandler(pool *pgxpool.Pool, deps ...Dependency) echo.HandlerFunc {
	if pool != nil {
		deps = append([]Dependency{PoolDependency(pool)}, deps...)
	}
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		checks, healthy := checkDependencies(ctx, deps)
		body := map[string]interface{}{"checks": checks}
		if pool != nil {
			stats := GetPoolStats(pool)
			stats.Healthy = stats.Healthy && healthy
			body["pool"] = stats
		}

		if !healthy {
			body["status"] = "unhealthy"
			return c.JSON(http.StatusServiceUnavailable, body)
		}
		body["status"] = "healthy"
		return c.JSON(http.StatusOK, body)
	}
}
