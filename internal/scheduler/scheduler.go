// Package scheduler drives periodic rolling-window refreshes of the
// cloud-fraction series for serve mode. The engine itself stays sequential;
// this is only a driver around it.
package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/cerro-obs/cloudfrac/internal/cloudfrac"
	"github.com/cerro-obs/cloudfrac/internal/store"
)

// Scheduler periodically recomputes the trailing window of the series.
type Scheduler struct {
	scheduler *gocron.Scheduler
	service   *cloudfrac.Service
	store     *store.MemoryStore
	interval  time.Duration
	lookback  time.Duration
	timeout   time.Duration
}

// New creates a Scheduler that every interval recomputes the [now-lookback,
// now] window and saves it to the store.
func New(service *cloudfrac.Service, st *store.MemoryStore, interval, lookback time.Duration) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		service:   service,
		store:     st,
		interval:  interval,
		lookback:  lookback,
		timeout:   30 * time.Minute,
	}
}

// Start schedules the refresh job and starts the underlying scheduler. The
// first refresh runs immediately.
func (s *Scheduler) Start() error {
	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = 10
	}

	job := func() {
		log.Println("INFO: scheduler: running cloud fraction refresh")

		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		now := time.Now().UTC()
		rows, err := s.service.Run(ctx, now.Add(-s.lookback), now)
		if err != nil {
			log.Printf("ERROR: scheduler: refresh failed: %v", err)
			return
		}

		runID := s.store.SaveRun(s.service.Site().Name, rows)
		log.Printf("INFO: scheduler: refresh complete: run=%s rows=%d", runID, len(rows))
	}

	if _, err := s.scheduler.Every(minutes).Minutes().StartImmediately().Do(job); err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
