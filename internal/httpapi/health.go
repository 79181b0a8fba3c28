package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthCheck reports process liveness only. Unlike the teacher's
// DB-backed health handler, it does not probe the composition store, so
// it reports healthy even while the database is unreachable.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}
