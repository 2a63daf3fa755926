// Package jobs runs the background maintenance work: sweeping expired
// preview blobs and flushing learning metrics to persistent storage.
package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"acey/internal/blobstore"
	"acey/internal/services"

	"github.com/go-co-op/gocron/v2"
)

// Runner owns the gocron scheduler for the maintenance jobs
type Runner struct {
	scheduler gocron.Scheduler
}

// New creates a runner with the maintenance jobs registered
func New(blobs *blobstore.Store, learning *services.LearningService, sweepEvery, flushEvery time.Duration) (*Runner, error) {
	scheduler, err := gocron.NewScheduler(
		gocron.WithLocation(time.UTC),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(sweepEvery),
		gocron.NewTask(func() {
			blobs.Sweep()
		}),
		gocron.WithName("preview_blob_sweep"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register blob sweep job: %w", err)
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(flushEvery),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			learning.FlushMetrics(ctx)
		}),
		gocron.WithName("learning_metrics_flush"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics flush job: %w", err)
	}

	return &Runner{scheduler: scheduler}, nil
}

// Start begins running the registered jobs
func (r *Runner) Start() {
	r.scheduler.Start()
	log.Println("⏰ Background jobs started")
}

// Shutdown stops the scheduler and waits for running jobs
func (r *Runner) Shutdown() {
	if err := r.scheduler.Shutdown(); err != nil {
		log.Printf("⚠️ [JOBS] Scheduler shutdown error: %v", err)
	}
}
