package scheduler

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-co-op/gocron/v2"
)

// ErrJobNotFound is returned for unknown job IDs.
var ErrJobNotFound = errors.New("job not found")

// JobStatus represents the status of a job.
type JobStatus string

const (
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusScheduled JobStatus = "scheduled"
)

// JobInfo contains information about a scheduled job.
type JobInfo struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Description       string    `json:"description"`
	Status            JobStatus `json:"status"`
	LastRun           time.Time `json:"lastRun"`
	NextRun           time.Time `json:"nextRun"`
	Schedule          string    `json:"schedule"`
	Enabled           bool      `json:"enabled"`
	RunCount          int       `json:"runCount"`
	ErrorCount        int       `json:"errorCount"`
	LastError         string    `json:"lastError,omitempty"`
	Singleton         bool      `json:"singleton"`
	InstantAfterStart bool      `json:"instantAfterStart,omitempty"`

	gocronJob gocron.Job
}

// JobFunc represents a function that can be scheduled.
type JobFunc func(ctx context.Context) error

// Scheduler manages scheduled jobs.
type Scheduler struct {
	gocron gocron.Scheduler
	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.RWMutex
	jobs map[string]*JobInfo
}

// New creates a new scheduler.
func New() (*Scheduler, error) {
	gocronScheduler, err := gocron.NewScheduler(gocron.WithLogger(newLogger()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		gocron: gocronScheduler,
		jobs:   make(map[string]*JobInfo),
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Start starts the scheduler and runs the jobs marked for immediate execution.
func (s *Scheduler) Start() {
	log.Info("Starting job scheduler")
	s.gocron.Start()

	var instant []string
	s.mu.Lock()
	for id, jobInfo := range s.jobs {
		if nextRun, err := jobInfo.gocronJob.NextRun(); err == nil {
			jobInfo.NextRun = nextRun
			log.Debug("Next run time for job", "id", id, "nextRun", nextRun)
		} else {
			log.Warn("Failed to get next run time for job", "id", id, "error", err)
		}
		if jobInfo.InstantAfterStart {
			instant = append(instant, id)
		}
	}
	s.mu.Unlock()

	for _, id := range instant {
		log.Info("Running job immediately after start", "id", id)
		if err := s.RunJobNow(id); err != nil {
			log.Error("Failed to run job immediately after start", "id", id, "error", err)
		}
	}
}

// Stop cancels running jobs and stops the scheduler.
func (s *Scheduler) Stop() error {
	log.Info("Stopping job scheduler")
	s.cancel()
	return s.gocron.Shutdown()
}

// AddJob adds a job that may run concurrently with itself.
func (s *Scheduler) AddJob(id, name, description, schedule string, jobFunc JobFunc, instantAfterStart bool) error {
	return s.addJob(id, name, description, schedule, jobFunc, false, instantAfterStart)
}

// AddSingletonJob adds a job of which only one instance runs at a time.
// Triggers while it runs are dropped.
func (s *Scheduler) AddSingletonJob(id, name, description, schedule string, jobFunc JobFunc, instantAfterStart bool) error {
	return s.addJob(id, name, description, schedule, jobFunc, true, instantAfterStart)
}

func (s *Scheduler) addJob(id, name, description, schedule string, jobFunc JobFunc, singleton, instantAfterStart bool) error {
	jobInfo := &JobInfo{
		ID:                id,
		Name:              name,
		Description:       description,
		Status:            JobStatusScheduled,
		Schedule:          schedule,
		Enabled:           true,
		Singleton:         singleton,
		InstantAfterStart: instantAfterStart,
	}

	var jobOptions []gocron.JobOption
	if singleton {
		jobOptions = append(jobOptions, gocron.WithSingletonMode(gocron.LimitModeReschedule))
	}

	job, err := s.gocron.NewJob(
		gocron.CronJob(schedule, false),
		gocron.NewTask(s.wrapJobFunc(id, jobFunc)),
		jobOptions...,
	)
	if err != nil {
		return fmt.Errorf("failed to create job %s: %w", id, err)
	}
	jobInfo.gocronJob = job

	s.mu.Lock()
	s.jobs[id] = jobInfo
	s.mu.Unlock()

	log.Info("Added job to scheduler", "id", id, "name", name, "singleton", singleton)
	return nil
}

// RunJobNow manually triggers a job to run immediately.
func (s *Scheduler) RunJobNow(id string) error {
	s.mu.RLock()
	jobInfo, exists := s.jobs[id]
	s.mu.RUnlock()
	if !exists {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}

	log.Info("Manually triggering job", "id", id, "name", jobInfo.Name)
	if err := jobInfo.gocronJob.RunNow(); err != nil {
		return fmt.Errorf("failed to trigger job %s: %w", id, err)
	}
	return nil
}

// GetJobs returns a snapshot of all jobs ordered by ID.
func (s *Scheduler) GetJobs() []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]JobInfo, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, *j)
	}
	slices.SortFunc(out, func(a, b JobInfo) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// GetJob returns a snapshot of a job.
func (s *Scheduler) GetJob(id string) (JobInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, exists := s.jobs[id]
	if !exists {
		return JobInfo{}, false
	}
	return *job, true
}

// SetEnabled enables or disables a job. Disabled jobs skip their runs.
func (s *Scheduler) SetEnabled(id string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobInfo, exists := s.jobs[id]
	if !exists {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	jobInfo.Enabled = enabled
	log.Info("Changed job state", "id", id, "enabled", enabled)
	return nil
}

// wrapJobFunc wraps a job function to update job statistics.
func (s *Scheduler) wrapJobFunc(id string, jobFunc JobFunc) func() {
	return func() {
		s.mu.Lock()
		jobInfo := s.jobs[id]
		if jobInfo == nil {
			s.mu.Unlock()
			log.Error("Job info not found", "id", id)
			return
		}
		if !jobInfo.Enabled {
			s.mu.Unlock()
			log.Debug("Job is disabled, skipping", "id", id)
			return
		}
		jobInfo.Status = JobStatusRunning
		jobInfo.LastRun = time.Now()
		jobInfo.RunCount++
		name := jobInfo.Name
		s.mu.Unlock()

		log.Info("Starting job", "id", id, "name", name)
		err := jobFunc(s.ctx)

		s.mu.Lock()
		defer s.mu.Unlock()
		if nextRun, nerr := jobInfo.gocronJob.NextRun(); nerr == nil {
			jobInfo.NextRun = nextRun
		}
		if err != nil {
			log.Error("Job failed", "id", id, "name", name, "error", err)
			jobInfo.Status = JobStatusFailed
			jobInfo.ErrorCount++
			jobInfo.LastError = err.Error()
			return
		}
		log.Info("Job completed successfully", "id", id, "name", name)
		jobInfo.Status = JobStatusCompleted
		jobInfo.LastError = ""
	}
}
