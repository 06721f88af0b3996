package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"archivesync/pkg/config"
	"archivesync/pkg/models"
	"archivesync/pkg/scheduler"
	"archivesync/pkg/state"
)

// Server carries the shared dependencies of every handler. The process
// config provides the defaults each collection request overrides.
type Server struct {
	cfg       *config.Config
	runs      *RunManager
	scheduler *scheduler.Scheduler
	store     state.RunStore
	service   CollectionService
	logger    *zap.Logger
	started   time.Time
}

// NewServer wires the API surface. The scheduler may be nil when scheduled
// runs are disabled.
func NewServer(cfg *config.Config, service CollectionService, store state.RunStore, sched *scheduler.Scheduler, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		cfg:       cfg,
		runs:      NewRunManager(service, store, logger),
		scheduler: sched,
		store:     store,
		service:   service,
		logger:    logger,
		started:   time.Now(),
	}
}

// Runs exposes the run manager for lifecycle wiring.
func (s *Server) Runs() *RunManager { return s.runs }

// AttachScheduler wires the scheduler after construction. The scheduler
// needs this server as its executor, so it cannot exist first.
func (s *Server) AttachScheduler(sched *scheduler.Scheduler) { s.scheduler = sched }

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
	})
}

// StartCollection handles POST /api/collections: merge the request over the
// process defaults and launch the run asynchronously.
func (s *Server) StartCollection(c *gin.Context) {
	var req models.CollectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	runID, err := s.runs.Start(s.requestConfig(req))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"run_id": runID, "status": "accepted"})
}

// ListCollections handles GET /api/collections.
func (s *Server) ListCollections(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	runs, err := s.runs.List(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if runs == nil {
		runs = []models.RunMetadata{}
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs, "count": len(runs), "live": s.runs.LiveCount()})
}

// GetCollection handles GET /api/collections/:id.
func (s *Server) GetCollection(c *gin.Context) {
	meta, err := s.runs.Get(c.Param("id"))
	if err == ErrRunNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, meta)
}

// CancelCollection handles DELETE /api/collections/:id: cancel a live run,
// or remove the stored record of a finished one.
func (s *Server) CancelCollection(c *gin.Context) {
	id := c.Param("id")
	cancelled, err := s.runs.Cancel(id)
	if err == ErrRunNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if cancelled {
		c.JSON(http.StatusAccepted, gin.H{"run_id": id, "status": "cancelling"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"run_id": id, "status": "removed"})
}

// StartSync handles POST /api/sync: whole-prefix replication through the
// bulk tool, running in the background.
func (s *Server) StartSync(c *gin.Context) {
	var req models.SyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.SourcePrefix == "" || req.DestPrefix == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "source_prefix and dest_prefix are required"})
		return
	}

	cfg := *s.cfg
	if req.TimeoutSeconds > 0 {
		cfg.Timeout = time.Duration(req.TimeoutSeconds) * time.Second
	}
	go func() {
		if err := s.service.SyncPrefix(context.Background(), &cfg, req.SourcePrefix, req.DestPrefix, req.DeleteRemoved); err != nil {
			s.logger.Warn("prefix sync failed",
				zap.String("source", req.SourcePrefix),
				zap.String("dest", req.DestPrefix),
				zap.Error(err))
		}
	}()
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

// Execute implements scheduler.RunExecutor: run the schedule's collection
// and report failure when the run does not complete cleanly.
func (s *Server) Execute(ctx context.Context, schedule scheduler.Schedule) error {
	runID, err := s.runs.Start(s.requestConfig(schedule.Request))
	if err != nil {
		return err
	}
	if err := s.runs.Wait(ctx, runID); err != nil {
		return err
	}

	meta, err := s.runs.Get(runID)
	if err != nil {
		return err
	}
	if meta.Status == models.RunStatusFailed {
		return fmt.Errorf("run %s failed", runID)
	}
	if meta.Failed > 0 {
		return fmt.Errorf("run %s finished with %d failed transfers", runID, meta.Failed)
	}
	return nil
}

// requestConfig copies the process config and applies request overrides.
func (s *Server) requestConfig(req models.CollectionRequest) *config.Config {
	cfg := *s.cfg
	if len(req.Markets) > 0 {
		cfg.Markets = req.Markets
	}
	if len(req.Symbols) > 0 {
		cfg.Symbols = req.Symbols
	}
	if len(req.DataTypes) > 0 {
		cfg.DataTypes = req.DataTypes
	}
	if req.StartDate != "" {
		cfg.StartDate = req.StartDate
	}
	if req.EndDate != "" {
		cfg.EndDate = req.EndDate
	}
	cfg.ForceUpdate = req.ForceUpdate
	if req.OperationMode != "" {
		cfg.OperationMode = req.OperationMode
	}
	if req.Concurrency > 0 {
		cfg.Concurrency = req.Concurrency
	}
	if req.BatchSize > 0 {
		cfg.BatchSize = req.BatchSize
	}
	if req.TimeoutSeconds > 0 {
		cfg.Timeout = time.Duration(req.TimeoutSeconds) * time.Second
	}
	return &cfg
}
