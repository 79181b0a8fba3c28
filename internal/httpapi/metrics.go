package httpapi

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/3merillon/rmt-compose-poc-sub004/internal/config"
	"github.com/gin-gonic/gin"
)

var processStart = time.Now()

const (
	secondsPerMinute = 60
	secondsPerHour   = 3600
	bytesToMB        = 1024 * 1024
)

func formatUptime(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % secondsPerMinute
	seconds := d.Seconds() - float64(hours*secondsPerHour) - float64(minutes*secondsPerMinute)
	if hours > 0 {
		return fmt.Sprintf("%dh%dm%.2fs", hours, minutes, seconds)
	}
	if minutes > 0 {
		return fmt.Sprintf("%dm%.2fs", minutes, seconds)
	}
	return fmt.Sprintf("%.2fs", seconds)
}

// MetricsHandler returns process/runtime metrics for ops dashboards,
// adapted from the teacher's MetricsHandler but dropped the LLM/MCP
// section (no such surface exists in this domain).
func MetricsHandler(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		uptime := time.Since(processStart)

		c.JSON(http.StatusOK, gin.H{
			"status":      "healthy",
			"uptime":      formatUptime(uptime),
			"timestamp":   time.Now().UTC().Format(time.RFC3339),
			"environment": cfg.Environment,
			"auth_mode":   cfg.AuthMode,
			"system": gin.H{
				"go_version":    runtime.Version(),
				"num_goroutine": runtime.NumGoroutine(),
				"mem_alloc_mb":  m.Alloc / bytesToMB,
				"mem_total_mb":  m.TotalAlloc / bytesToMB,
				"num_gc":        m.NumGC,
			},
		})
	}
}
