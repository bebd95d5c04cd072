package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// ScheduleTime is a wall-clock time of day at which sync passes are triggered.
type ScheduleTime struct {
	Hour   int
	Minute int
}

// String returns the time in HH:MM format.
func (st ScheduleTime) String() string {
	return fmt.Sprintf("%02d:%02d", st.Hour, st.Minute)
}

// ParseScheduleTime parses a time string in HH:MM format.
func ParseScheduleTime(s string) (ScheduleTime, error) {
	var hour, minute int
	_, err := fmt.Sscanf(s, "%d:%d", &hour, &minute)
	if err != nil {
		return ScheduleTime{}, fmt.Errorf("invalid time format (expected HH:MM): %w", err)
	}

	if hour < 0 || hour > 23 {
		return ScheduleTime{}, fmt.Errorf("invalid hour: %d (must be 0-23)", hour)
	}
	if minute < 0 || minute > 59 {
		return ScheduleTime{}, fmt.Errorf("invalid minute: %d (must be 0-59)", minute)
	}

	return ScheduleTime{Hour: hour, Minute: minute}, nil
}

// SchedulerConfig holds configuration for the scheduler.
type SchedulerConfig struct {
	ScheduleTimes []string
	WorkerCount   int
	JobDelay      time.Duration
	QueueSize     int
	RunOnStartup  bool

	// JobProvider builds the batch of sync jobs for one trigger, typically
	// one job per connection that is ready to sync.
	JobProvider func(context.Context) ([]Job, error)
}

// Scheduler triggers sync passes at configured times of day and feeds the
// resulting jobs into a worker pool. Overlap between a scheduled pass and a
// manual trigger is resolved downstream by the per-connection guard, so the
// scheduler itself never tracks what is running.
type Scheduler struct {
	pool          *WorkerPool
	scheduleTimes []ScheduleTime
	runOnStartup  bool
	jobProvider   func(context.Context) ([]Job, error)

	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	lastTrigger string
	mu          sync.Mutex
}

// NewScheduler creates a scheduler from configuration. At least one schedule
// time is required.
func NewScheduler(config SchedulerConfig) (*Scheduler, error) {
	scheduleTimes := make([]ScheduleTime, 0, len(config.ScheduleTimes))
	for _, timeStr := range config.ScheduleTimes {
		st, err := ParseScheduleTime(timeStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse schedule time %q: %w", timeStr, err)
		}
		scheduleTimes = append(scheduleTimes, st)
	}

	if len(scheduleTimes) == 0 {
		return nil, fmt.Errorf("at least one schedule time is required")
	}

	ctx, cancel := context.WithCancel(context.Background())

	log.Printf("Scheduler: %d sync times configured: %v", len(scheduleTimes), config.ScheduleTimes)

	return &Scheduler{
		pool:          NewWorkerPool(config.WorkerCount, config.JobDelay, config.QueueSize),
		scheduleTimes: scheduleTimes,
		runOnStartup:  config.RunOnStartup,
		jobProvider:   config.JobProvider,
		ctx:           ctx,
		cancel:        cancel,
	}, nil
}

// Start launches the worker pool and the trigger loop.
func (s *Scheduler) Start() {
	s.pool.Start()

	if s.runOnStartup {
		log.Println("Scheduler: running initial sync batch on startup")
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.dispatch()
		}()
	}

	s.wg.Add(1)
	go s.loop()
}

// loop wakes every minute and dispatches when a schedule time is hit.
func (s *Scheduler) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return

		case now := <-ticker.C:
			if s.due(now) {
				log.Printf("Scheduler: triggered at %s", now.Format("15:04"))
				s.dispatch()
			}
		}
	}
}

// due reports whether a sync batch should fire for this tick. A given
// date+minute fires at most once even if ticks land twice inside it.
func (s *Scheduler) due(now time.Time) bool {
	key := now.Format("2006-01-02 15:04")

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastTrigger == key {
		return false
	}

	for _, st := range s.scheduleTimes {
		if now.Hour() == st.Hour && now.Minute() == st.Minute {
			s.lastTrigger = key
			return true
		}
	}

	return false
}

// dispatch asks the job provider for the current batch and submits it.
func (s *Scheduler) dispatch() {
	if s.jobProvider == nil {
		log.Println("Scheduler: no job provider configured")
		return
	}

	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Minute)
	defer cancel()

	jobs, err := s.jobProvider(ctx)
	if err != nil {
		log.Printf("Scheduler: failed to build sync jobs: %v", err)
		return
	}

	if len(jobs) == 0 {
		log.Println("Scheduler: no connections ready to sync")
		return
	}

	log.Printf("Scheduler: submitting %d sync job(s)", len(jobs))
	s.pool.SubmitBatch(jobs)
}

// Shutdown stops the trigger loop, then drains the worker pool.
func (s *Scheduler) Shutdown(timeout time.Duration) {
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		log.Println("Scheduler: timeout waiting for trigger loop to stop")
	}

	s.pool.ShutdownWithTimeout(timeout)
	log.Println("Scheduler: shutdown complete")
}
