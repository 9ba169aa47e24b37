package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	gferrors "github.com/vnykmshr/gotally/pkg/common/errors"
)

// Task is a unit of scheduled work.
type Task interface {
	Execute(ctx context.Context) error
}

// TaskFunc adapts a function to Task.
type TaskFunc func(ctx context.Context) error

// Execute calls f(ctx).
func (f TaskFunc) Execute(ctx context.Context) error {
	return f(ctx)
}

// TaskInfo describes a scheduled task.
type TaskInfo struct {
	ID       string
	RunAt    time.Time
	Interval time.Duration // Zero for one-time and cron tasks
	Cron     string
	Created  time.Time
}

// Scheduler runs tasks at fixed times, fixed intervals or on cron schedules.
// Tasks run one at a time on the scheduler goroutine, so a task never
// overlaps with itself or with another task of the same scheduler.
type Scheduler interface {
	Schedule(id string, task Task, runAt time.Time) error
	ScheduleAfter(id string, task Task, delay time.Duration) error
	ScheduleRepeating(id string, task Task, interval time.Duration) error

	// ScheduleCron schedules task on a cron expression with a leading seconds
	// field ("*/5 * * * * *") or a descriptor ("@every 10s", "@hourly").
	ScheduleCron(id string, cronExpr string, task Task) error

	Cancel(id string) bool
	CancelAll()
	List() []TaskInfo

	Start() error
	// Stop halts the scheduler. The returned channel closes once the task in
	// flight, if any, has returned.
	Stop() <-chan struct{}
}

// Config holds scheduler configuration.
type Config struct {
	Location     *time.Location // For cron scheduling
	TickInterval time.Duration  // How often to check for ready tasks (default: 50ms)
	MaxTasks     int            // Maximum number of scheduled tasks (default: 10000)
	TaskTimeout  time.Duration  // Per-execution context deadline (default: none)

	// OnError receives task errors and recovered task panics.
	OnError func(id string, err error)
	Logger  *zap.Logger
}

const maxIDLength = 255

type scheduledTask struct {
	id           string
	task         Task
	runAt        time.Time
	interval     time.Duration
	cronExpr     string
	cronSchedule cron.Schedule
	created      time.Time
}

type scheduler struct {
	location     *time.Location
	tickInterval time.Duration
	maxTasks     int
	taskTimeout  time.Duration
	onError      func(id string, err error)
	logger       *zap.Logger
	cronParser   cron.Parser

	mu      sync.RWMutex
	tasks   map[string]*scheduledTask
	ticker  *time.Ticker
	done    chan struct{}
	stopped chan struct{}
	running bool
}

// New creates a scheduler with default configuration.
func New() Scheduler {
	return NewWithConfig(Config{})
}

// NewWithConfig creates a scheduler with custom configuration.
func NewWithConfig(cfg Config) Scheduler {
	location := cfg.Location
	if location == nil {
		location = time.Local
	}

	tickInterval := cfg.TickInterval
	if tickInterval <= 0 {
		tickInterval = 50 * time.Millisecond
	}

	maxTasks := cfg.MaxTasks
	if maxTasks <= 0 {
		maxTasks = 10000
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &scheduler{
		location:     location,
		tickInterval: tickInterval,
		maxTasks:     maxTasks,
		taskTimeout:  cfg.TaskTimeout,
		onError:      cfg.OnError,
		logger:       logger,
		cronParser: cron.NewParser(
			cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
		),
		tasks: make(map[string]*scheduledTask),
	}
}

func validateTask(id string, task Task) error {
	if id == "" {
		return gferrors.NewValidationError("scheduler", "id", id, "cannot be empty")
	}
	if len(id) > maxIDLength {
		return gferrors.NewValidationError("scheduler", "id", id, "too long").
			WithHint(fmt.Sprintf("use at most %d characters", maxIDLength))
	}
	if task == nil {
		return gferrors.NewValidationError("scheduler", "task", nil, "cannot be nil")
	}
	return nil
}

// add registers t; the caller must not hold s.mu.
func (s *scheduler) add(t *scheduledTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[t.id]; exists {
		return fmt.Errorf("task with ID %q already exists, use a different ID or cancel the existing task first", t.id)
	}
	if len(s.tasks) >= s.maxTasks {
		return fmt.Errorf("cannot schedule task: maximum number of tasks (%d) reached", s.maxTasks)
	}
	s.tasks[t.id] = t
	return nil
}

func (s *scheduler) Schedule(id string, task Task, runAt time.Time) error {
	if err := validateTask(id, task); err != nil {
		return err
	}
	if runAt.IsZero() {
		return gferrors.NewValidationError("scheduler", "runAt", runAt, "cannot be zero")
	}

	return s.add(&scheduledTask{
		id:      id,
		task:    task,
		runAt:   runAt,
		created: time.Now(),
	})
}

func (s *scheduler) ScheduleAfter(id string, task Task, delay time.Duration) error {
	return s.Schedule(id, task, time.Now().Add(delay))
}

func (s *scheduler) ScheduleRepeating(id string, task Task, interval time.Duration) error {
	if err := validateTask(id, task); err != nil {
		return err
	}
	if interval <= 0 {
		return gferrors.NewValidationError("scheduler", "interval", interval, "must be positive")
	}

	now := time.Now()
	return s.add(&scheduledTask{
		id:       id,
		task:     task,
		runAt:    now.Add(interval),
		interval: interval,
		created:  now,
	})
}

func (s *scheduler) ScheduleCron(id string, cronExpr string, task Task) error {
	if err := validateTask(id, task); err != nil {
		return err
	}
	if cronExpr == "" {
		return gferrors.NewValidationError("scheduler", "cron", cronExpr, "cannot be empty")
	}

	schedule, err := s.cronParser.Parse(cronExpr)
	if err != nil {
		return gferrors.NewValidationError("scheduler", "cron", cronExpr, err.Error()).
			WithHint("expected six fields with seconds first, e.g. \"*/5 * * * * *\"")
	}

	now := time.Now()
	return s.add(&scheduledTask{
		id:           id,
		task:         task,
		runAt:        schedule.Next(now.In(s.location)),
		cronExpr:     cronExpr,
		cronSchedule: schedule,
		created:      now,
	})
}

func (s *scheduler) Cancel(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[id]; exists {
		delete(s.tasks, id)
		return true
	}
	return false
}

func (s *scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks = make(map[string]*scheduledTask)
}

func (s *scheduler) List() []TaskInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tasks := make([]TaskInfo, 0, len(s.tasks))
	for _, t := range s.tasks {
		tasks = append(tasks, TaskInfo{
			ID:       t.id,
			RunAt:    t.runAt,
			Interval: t.interval,
			Cron:     t.cronExpr,
			Created:  t.created,
		})
	}

	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].RunAt.Before(tasks[j].RunAt)
	})

	return tasks
}

func (s *scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running, call Stop() first")
	}

	s.running = true
	s.done = make(chan struct{})
	s.stopped = make(chan struct{})
	s.ticker = time.NewTicker(s.tickInterval)

	go s.run(s.ticker, s.done, s.stopped)
	return nil
}

func (s *scheduler) Stop() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		closed := make(chan struct{})
		close(closed)
		return closed
	}

	s.running = false
	close(s.done)
	s.ticker.Stop()
	return s.stopped
}

func (s *scheduler) run(ticker *time.Ticker, done <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			s.processReadyTasks(done)
		}
	}
}

func (s *scheduler) processReadyTasks(done <-chan struct{}) {
	now := time.Now()

	s.mu.Lock()
	if len(s.tasks) == 0 {
		s.mu.Unlock()
		return
	}

	ready := make([]*scheduledTask, 0, len(s.tasks))
	for id, task := range s.tasks {
		if now.Before(task.runAt) {
			continue
		}
		ready = append(ready, task)

		switch {
		case task.interval > 0:
			task.runAt = now.Add(task.interval)
		case task.cronSchedule != nil:
			task.runAt = task.cronSchedule.Next(now.In(s.location))
		default:
			delete(s.tasks, id)
		}
	}
	s.mu.Unlock()

	for _, task := range ready {
		select {
		case <-done:
			return
		default:
		}
		s.execute(task)
	}
}

// execute runs one task, converting a panic into an error for the handler.
func (s *scheduler) execute(task *scheduledTask) {
	ctx := context.Background()
	if s.taskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.taskTimeout)
		defer cancel()
	}

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("task %q panicked: %v", task.id, r)
			}
		}()
		return task.task.Execute(ctx)
	}()
	if err != nil {
		s.handleError(task.id, err)
	}
}

func (s *scheduler) handleError(id string, err error) {
	if s.onError == nil {
		s.logger.Warn("scheduled task failed", zap.String("task", id), zap.Error(err))
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduler error handler panicked",
				zap.String("task", id), zap.Any("panic", r), zap.NamedError("cause", err))
		}
	}()
	s.onError(id, err)
}
