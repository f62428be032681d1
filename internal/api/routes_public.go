package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/energizer-project/gpgnet-mock/internal/telemetry"
	"github.com/energizer-project/gpgnet-mock/internal/util"
)

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "gpgnet-mock",
		"version": telemetry.Version,
	})
}

func (s *Server) handleGetVersion(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"version": telemetry.Version,
		"name":    "gpgnet-mock",
	})
}

// handleGetSystem reports the host the harness runs on.
func (s *Server) handleGetSystem(c *gin.Context) {
	resp := gin.H{"system": util.GetSystemInfo()}
	if mem, err := util.GetMemoryUsage(); err == nil {
		resp["memory"] = mem
	}
	c.JSON(http.StatusOK, resp)
}
