package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Job is one run of a periodic task.
type Job func(ctx context.Context) error

type entry struct {
	name     string
	interval time.Duration
	job      Job
}

// Scheduler runs registered jobs on fixed intervals, each in its own goroutine.
// A job never overlaps with itself.
type Scheduler struct {
	mu      sync.Mutex
	entries []entry
	wg      sync.WaitGroup
	started bool
}

func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Every registers job to run every interval. Jobs registered after Start are ignored.
func (s *Scheduler) Every(name string, interval time.Duration, job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started || interval <= 0 || job == nil {
		logrus.WithField("job", name).Warn("Scheduler job not registered")
		return
	}
	s.entries = append(s.entries, entry{name: name, interval: interval, job: job})
}

// Start launches every job and returns immediately. Jobs stop when ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return
	}
	s.started = true

	for _, e := range s.entries {
		s.wg.Add(1)
		go s.run(ctx, e)
	}
}

// Wait blocks until every job goroutine has returned.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context, e entry) {
	defer s.wg.Done()

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	log := logrus.WithField("job", e.name)
	log.WithField("interval", e.interval.String()).Info("Scheduled job started")

	for {
		select {
		case <-ctx.Done():
			log.Info("Scheduled job stopped")
			return
		case <-ticker.C:
			start := time.Now()
			if err := e.job(ctx); err != nil {
				log.Errorf("Scheduled job failed: %v", err)
				continue
			}
			log.WithField("duration", time.Since(start).String()).Debug("Scheduled job finished")
		}
	}
}
