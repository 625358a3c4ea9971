package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PoolStats represents database connection pool statistics.
type PoolStats struct {
	TotalConns      int32  `json:"total_conns"`
	IdleConns       int32  `json:"idle_conns"`
	AcquiredConns   int32  `json:"acquired_conns"`
	MaxConns        int32  `json:"max_conns"`
	AcquireCount    int64  `json:"acquire_count"`
	AcquireDuration string `json:"acquire_duration"`
}

// HealthReport is the body of the health endpoint. It shares the success and
// message fields of the API envelope.
type HealthReport struct {
	Success   bool       `json:"success"`
	Status    string     `json:"status"`
	Message   string     `json:"message"`
	Database  string     `json:"database"`
	Timestamp time.Time  `json:"timestamp"`
	Pool      *PoolStats `json:"pool,omitempty"`
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
	}
}

// HealthHandler reports whether the store is reachable. A failed ping yields
// a degraded report with 503; the server itself keeps running.
func HealthHandler(p Pinger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		report := HealthReport{Timestamp: time.Now().UTC()}
		if pool, ok := p.(*pgxpool.Pool); ok && pool != nil {
			report.Pool = GetPoolStats(pool)
		}

		if err := p.Ping(ctx); err != nil {
			report.Status = "degraded"
			report.Message = "Server is running but database connection failed"
			report.Database = "Disconnected"
			return c.JSON(http.StatusServiceUnavailable, report)
		}

		report.Success = true
		report.Status = "healthy"
		report.Message = "Server is healthy"
		report.Database = "Connected"
		return c.JSON(http.StatusOK, report)
	}
}
