package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"archivesync/pkg/models"
	"archivesync/pkg/scheduler"
)

// scheduleRequest is the create/update payload for a schedule.
type scheduleRequest struct {
	Name     string                   `json:"name" binding:"required"`
	CronExpr string                   `json:"cron_expr" binding:"required"`
	Enabled  bool                     `json:"enabled"`
	Request  models.CollectionRequest `json:"request"`
}

func (s *Server) requireScheduler(c *gin.Context) bool {
	if s.scheduler == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "scheduler is disabled"})
		return false
	}
	return true
}

// CreateSchedule handles POST /api/schedules.
func (s *Server) CreateSchedule(c *gin.Context) {
	if !s.requireScheduler(c) {
		return
	}
	var req scheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	schedule := &scheduler.Schedule{
		Name:     req.Name,
		CronExpr: req.CronExpr,
		Enabled:  req.Enabled,
		Request:  req.Request,
	}
	if err := s.scheduler.Add(schedule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, schedule)
}

// ListSchedules handles GET /api/schedules.
func (s *Server) ListSchedules(c *gin.Context) {
	if !s.requireScheduler(c) {
		return
	}
	schedules := s.scheduler.List()
	c.JSON(http.StatusOK, gin.H{"schedules": schedules, "count": len(schedules)})
}

// GetSchedule handles GET /api/schedules/:id.
func (s *Server) GetSchedule(c *gin.Context) {
	if !s.requireScheduler(c) {
		return
	}
	schedule, err := s.scheduler.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, schedule)
}

// UpdateSchedule handles PUT /api/schedules/:id.
func (s *Server) UpdateSchedule(c *gin.Context) {
	if !s.requireScheduler(c) {
		return
	}
	var req scheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	schedule := &scheduler.Schedule{
		ID:       c.Param("id"),
		Name:     req.Name,
		CronExpr: req.CronExpr,
		Enabled:  req.Enabled,
		Request:  req.Request,
	}
	if err := s.scheduler.Update(schedule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, schedule)
}

// DeleteSchedule handles DELETE /api/schedules/:id.
func (s *Server) DeleteSchedule(c *gin.Context) {
	if !s.requireScheduler(c) {
		return
	}
	if err := s.scheduler.Remove(c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// EnableSchedule handles POST /api/schedules/:id/enable.
func (s *Server) EnableSchedule(c *gin.Context) {
	if !s.requireScheduler(c) {
		return
	}
	if err := s.scheduler.Enable(c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "enabled"})
}

// DisableSchedule handles POST /api/schedules/:id/disable.
func (s *Server) DisableSchedule(c *gin.Context) {
	if !s.requireScheduler(c) {
		return
	}
	if err := s.scheduler.Disable(c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "disabled"})
}

// RunScheduleNow handles POST /api/schedules/:id/run.
func (s *Server) RunScheduleNow(c *gin.Context) {
	if !s.requireScheduler(c) {
		return
	}
	if err := s.scheduler.RunNow(c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "triggered"})
}

// ScheduleStats handles GET /api/schedules/stats.
func (s *Server) ScheduleStats(c *gin.Context) {
	if !s.requireScheduler(c) {
		return
	}
	c.JSON(http.StatusOK, s.scheduler.Stats())
}
