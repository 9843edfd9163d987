/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package retention

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/tomoncle/quarry/database"
)

// Scheduler runs a Pruner on its cron schedule.
type Scheduler struct {
	pruner  *Pruner
	cron    *cron.Cron
	logger  database.Logger
	mu      sync.Mutex
	running bool
	done    chan struct{}
}

func NewScheduler(pruner *Pruner) *Scheduler {
	return &Scheduler{
		pruner: pruner,
		logger: pruner.logger,
	}
}

// Start schedules the pruner using Config.PruneSchedule, e.g. "0 3 * * *"
// for daily at 3 AM or "@every 6h". An empty schedule is a no-op. The
// scheduler stops when ctx is done. A stopped scheduler may be started again.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	schedule := s.pruner.config.PruneSchedule
	if schedule == "" {
		s.logger.Info("Prune schedule not configured, skipping scheduler")
		return nil
	}
	if s.running {
		return nil
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", schedule, err)
	}
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() { s.runPruning(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule pruning: %w", err)
	}

	c.Start()
	done := make(chan struct{})
	s.cron, s.done, s.running = c, done, true
	s.logger.Info("Retention scheduler started", "schedule", schedule, "window", s.pruner.config.Window())

	go func() {
		select {
		case <-ctx.Done():
			s.stop(done)
		case <-done:
		}
	}()
	return nil
}

func (s *Scheduler) runPruning(ctx context.Context) {
	run, err := s.pruner.Prune(ctx)
	if err != nil {
		s.logger.Error("Scheduled pruning failed", "error", err)
		return
	}
	if run.Total > 0 {
		s.logger.Info("Scheduled pruning completed", "run_id", run.ID, "purged", run.Total)
	} else {
		s.logger.Debug("Scheduled pruning completed, nothing purged", "run_id", run.ID)
	}
}

// Stop stops the scheduler and waits for a running prune to finish.
func (s *Scheduler) Stop() {
	s.stop(nil)
}

// stop ends the current run; with a non-nil done only the run it belongs to.
func (s *Scheduler) stop(done chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running || (done != nil && done != s.done) {
		return
	}
	<-s.cron.Stop().Done()
	close(s.done)
	s.running = false
	s.logger.Info("Retention scheduler stopped")
}

func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next scheduled prune, nil when nothing is scheduled.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
