package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"archivesync/pkg/models"
)

// Schedule is one recurring collection. The embedded request is handed to
// the executor verbatim on every firing; relative date ranges are resolved
// there, not here.
type Schedule struct {
	ID         string                   `json:"id"`
	Name       string                   `json:"name"`
	CronExpr   string                   `json:"cron_expr"`
	Enabled    bool                     `json:"enabled"`
	Request    models.CollectionRequest `json:"request"`
	LastRun    time.Time                `json:"last_run"`
	NextRun    time.Time                `json:"next_run"`
	LastStatus string                   `json:"last_status,omitempty"`
	RunCount   int                      `json:"run_count"`
	FailCount  int                      `json:"fail_count"`
	CreatedAt  time.Time                `json:"created_at"`
	UpdatedAt  time.Time                `json:"updated_at"`
}

// RunExecutor starts a collection run for a due schedule.
type RunExecutor interface {
	Execute(ctx context.Context, schedule Schedule) error
}

// Scheduler fires collection runs on cron expressions. Standard five-field
// expressions only.
type Scheduler struct {
	mu        sync.RWMutex
	cron      *cron.Cron
	schedules map[string]*Schedule
	entries   map[string]cron.EntryID
	executor  RunExecutor
	logger    *zap.Logger
	running   bool
}

// NewScheduler creates a stopped scheduler.
func NewScheduler(executor RunExecutor, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cron:      cron.New(),
		schedules: make(map[string]*Schedule),
		entries:   make(map[string]cron.EntryID),
		executor:  executor,
		logger:    logger,
	}
}

// Start begins firing enabled schedules.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}
	s.cron.Start()
	s.running = true
	return nil
}

// Stop halts firing and waits for in-flight executions to return.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return fmt.Errorf("scheduler not running")
	}
	<-s.cron.Stop().Done()
	s.running = false
	return nil
}

// Add registers a schedule. An empty ID gets a generated one.
func (s *Scheduler) Add(schedule *Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if schedule.ID == "" {
		schedule.ID = uuid.New().String()
	}
	if _, exists := s.schedules[schedule.ID]; exists {
		return fmt.Errorf("schedule %s already exists", schedule.ID)
	}

	parsed, err := cron.ParseStandard(schedule.CronExpr)
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", schedule.CronExpr, err)
	}

	now := time.Now()
	schedule.CreatedAt = now
	schedule.UpdatedAt = now
	schedule.NextRun = parsed.Next(now)

	if schedule.Enabled {
		if err := s.register(schedule.ID, schedule.CronExpr); err != nil {
			return err
		}
	}
	s.schedules[schedule.ID] = schedule
	return nil
}

// Update replaces a schedule's definition, keeping its run history.
func (s *Scheduler) Update(schedule *Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, exists := s.schedules[schedule.ID]
	if !exists {
		return fmt.Errorf("schedule %s not found", schedule.ID)
	}

	parsed, err := cron.ParseStandard(schedule.CronExpr)
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", schedule.CronExpr, err)
	}

	schedule.CreatedAt = old.CreatedAt
	schedule.LastRun = old.LastRun
	schedule.LastStatus = old.LastStatus
	schedule.RunCount = old.RunCount
	schedule.FailCount = old.FailCount
	schedule.UpdatedAt = time.Now()
	schedule.NextRun = parsed.Next(time.Now())

	s.unregister(schedule.ID)
	if schedule.Enabled {
		if err := s.register(schedule.ID, schedule.CronExpr); err != nil {
			return err
		}
	}
	s.schedules[schedule.ID] = schedule
	return nil
}

// Remove deletes a schedule and its cron entry.
func (s *Scheduler) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.schedules[id]; !exists {
		return fmt.Errorf("schedule %s not found", id)
	}
	s.unregister(id)
	delete(s.schedules, id)
	return nil
}

// Get returns a copy of one schedule.
func (s *Scheduler) Get(id string) (Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	schedule, exists := s.schedules[id]
	if !exists {
		return Schedule{}, fmt.Errorf("schedule %s not found", id)
	}
	return *schedule, nil
}

// List returns copies of every schedule.
func (s *Scheduler) List() []Schedule {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Schedule, 0, len(s.schedules))
	for _, schedule := range s.schedules {
		out = append(out, *schedule)
	}
	return out
}

// Enable resumes firing for a schedule.
func (s *Scheduler) Enable(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	schedule, exists := s.schedules[id]
	if !exists {
		return fmt.Errorf("schedule %s not found", id)
	}
	if schedule.Enabled {
		return nil
	}
	if err := s.register(id, schedule.CronExpr); err != nil {
		return err
	}
	schedule.Enabled = true
	schedule.UpdatedAt = time.Now()
	return nil
}

// Disable stops firing for a schedule without removing it.
func (s *Scheduler) Disable(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	schedule, exists := s.schedules[id]
	if !exists {
		return fmt.Errorf("schedule %s not found", id)
	}
	if !schedule.Enabled {
		return nil
	}
	s.unregister(id)
	schedule.Enabled = false
	schedule.UpdatedAt = time.Now()
	return nil
}

// RunNow fires a schedule immediately, independent of its cron expression
// and enabled flag.
func (s *Scheduler) RunNow(id string) error {
	s.mu.RLock()
	_, exists := s.schedules[id]
	s.mu.RUnlock()
	if !exists {
		return fmt.Errorf("schedule %s not found", id)
	}
	go s.fire(id)
	return nil
}

// Stats summarizes the schedule population.
type Stats struct {
	TotalSchedules    int       `json:"total_schedules"`
	ActiveSchedules   int       `json:"active_schedules"`
	DisabledSchedules int       `json:"disabled_schedules"`
	NextRun           time.Time `json:"next_run"`
}

func (s *Scheduler) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{TotalSchedules: len(s.schedules)}
	var next time.Time
	for _, schedule := range s.schedules {
		if !schedule.Enabled {
			stats.DisabledSchedules++
			continue
		}
		stats.ActiveSchedules++
		if next.IsZero() || schedule.NextRun.Before(next) {
			next = schedule.NextRun
		}
	}
	stats.NextRun = next
	return stats
}

// register must run with the write lock held.
func (s *Scheduler) register(id, expr string) error {
	entryID, err := s.cron.AddFunc(expr, func() { s.fire(id) })
	if err != nil {
		return fmt.Errorf("failed to add cron entry: %w", err)
	}
	s.entries[id] = entryID
	return nil
}

// unregister must run with the write lock held.
func (s *Scheduler) unregister(id string) {
	if entryID, exists := s.entries[id]; exists {
		s.cron.Remove(entryID)
		delete(s.entries, id)
	}
}

// fire executes one schedule and folds the result back into its record. The
// executor gets a snapshot so a concurrent Update cannot race it.
func (s *Scheduler) fire(id string) {
	s.mu.Lock()
	schedule, exists := s.schedules[id]
	if !exists {
		s.mu.Unlock()
		return
	}
	schedule.LastRun = time.Now()
	schedule.RunCount++
	snapshot := *schedule
	s.mu.Unlock()

	err := s.executor.Execute(context.Background(), snapshot)

	s.mu.Lock()
	defer s.mu.Unlock()
	schedule, exists = s.schedules[id]
	if !exists {
		return
	}
	if err != nil {
		schedule.FailCount++
		schedule.LastStatus = fmt.Sprintf("failed: %v", err)
		s.logger.Warn("scheduled collection failed",
			zap.String("schedule_id", id),
			zap.String("name", schedule.Name),
			zap.Error(err))
	} else {
		schedule.LastStatus = "completed"
	}
	if parsed, parseErr := cron.ParseStandard(schedule.CronExpr); parseErr == nil {
		schedule.NextRun = parsed.Next(time.Now())
	}
}
