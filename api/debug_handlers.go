package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"archivesync/pkg/transfer"
)

// DebugRuntime handles GET /api/debug/runtime: process-level runtime stats
// for diagnosing stuck or leaking runs.
func (s *Server) DebugRuntime(c *gin.Context) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	c.JSON(http.StatusOK, gin.H{
		"go_version":     runtime.Version(),
		"goroutines":     runtime.NumGoroutine(),
		"heap_alloc_mb":  float64(mem.HeapAlloc) / 1024 / 1024,
		"heap_sys_mb":    float64(mem.HeapSys) / 1024 / 1024,
		"num_gc":         mem.NumGC,
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
		"live_runs":      s.runs.LiveCount(),
	})
}

// DebugTool handles GET /api/debug/tool: probe the bulk transfer tool with
// the process config so operators can confirm which path a run would take.
func (s *Server) DebugTool(c *gin.Context) {
	tool := transfer.NewTool(s.cfg.ToolPath, s.cfg.Concurrency, s.cfg.RetryCount, true, s.cfg.Source.Endpoint, s.logger)
	avail := tool.Probe(c.Request.Context())

	status := http.StatusOK
	if !avail.Available {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, avail)
}
