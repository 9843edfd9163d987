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
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tomoncle/quarry/database"
	"github.com/tomoncle/quarry/query"
	"github.com/tomoncle/quarry/repository"
	"github.com/tomoncle/quarry/types"
	"github.com/uptrace/bun"
)

// Purger hard deletes records removed before a cutoff.
// repository.Repository satisfies it.
type Purger interface {
	PurgeRemoved(ctx context.Context, before time.Time) (int64, error)
}

// Target is a named Purger.
type Target struct {
	Name   string
	Purger Purger
}

// ForRepository names repo after its table.
func ForRepository[T any](repo repository.Repository[T]) Target {
	return Target{Name: repo.Meta().Table, Purger: repo}
}

// Run is the outcome of one prune pass.
type Run struct {
	bun.BaseModel `bun:"table:quarry_purge_runs,alias:qpr"`

	ID         string                       `bun:"id,pk"`
	StartedAt  time.Time                    `bun:"started_at,notnull"`
	Cutoff     time.Time                    `bun:"cutoff,notnull"`
	Purged     types.JSON[map[string]int64] `bun:"purged,type:text"`
	Total      int64                        `bun:"total,notnull"`
	DurationMS int64                        `bun:"duration_ms,notnull"`
	Error      string                       `bun:"error,nullzero"`
}

type PrunerOption func(*Pruner)

func WithLogger(l database.Logger) PrunerOption {
	return func(p *Pruner) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) PrunerOption {
	return func(p *Pruner) { p.now = now }
}

// Pruner purges removed records older than the retention window from every
// registered target.
type Pruner struct {
	config  *Config
	db      bun.IDB
	logger  database.Logger
	now     func() time.Time
	mu      sync.Mutex
	targets []Target
	ensured bool
}

// NewPruner returns a pruner for targets. db, when not nil, receives a Run
// row per pass if the config enables RecordRuns.
func NewPruner(cfg *Config, db bun.IDB, targets []Target, opts ...PrunerOption) *Pruner {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	p := &Pruner{
		config:  cfg,
		db:      db,
		logger:  database.GetLogger(),
		now:     time.Now,
		targets: append([]Target(nil), targets...),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pruner) Add(targets ...Target) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.targets = append(p.targets, targets...)
}

func (p *Pruner) Config() *Config { return p.config }

// Prune purges every target. Targets without soft delete support are
// skipped. A failing target does not stop the others; the failures are
// joined into the returned error.
func (p *Pruner) Prune(ctx context.Context) (*Run, error) {
	p.mu.Lock()
	targets := append([]Target(nil), p.targets...)
	p.mu.Unlock()

	started := p.now().UTC()
	run := &Run{
		ID:        uuid.NewString(),
		StartedAt: started,
		Cutoff:    started.Add(-p.config.Window()),
		Purged:    types.NewJSON(make(map[string]int64, len(targets))),
	}
	log := []interface{}{"run_id", run.ID, "cutoff", run.Cutoff}
	p.logger.Debug("Starting prune run", append(log, "targets", len(targets))...)

	var errs []error
	for _, t := range targets {
		n, err := t.Purger.PurgeRemoved(ctx, run.Cutoff)
		switch {
		case errors.Is(err, query.ErrSoftDeleteUnsupported):
			p.logger.Warn("Skipping target without soft delete", append(log, "target", t.Name)...)
			continue
		case err != nil:
			p.logger.Error("Prune target failed", append(log, "target", t.Name, "error", err)...)
			errs = append(errs, fmt.Errorf("%s: %w", t.Name, err))
			continue
		}
		run.Purged.Data[t.Name] = n
		run.Total += n
	}
	run.DurationMS = time.Since(started).Milliseconds()
	err := errors.Join(errs...)
	if err != nil {
		run.Error = err.Error()
	}

	if recErr := p.record(ctx, run); recErr != nil {
		p.logger.Error("Failed to record prune run", append(log, "error", recErr)...)
		err = errors.Join(err, recErr)
	}
	p.logger.Info("Prune run finished", append(log, "total", run.Total, "duration_ms", run.DurationMS)...)
	return run, err
}

func (p *Pruner) record(ctx context.Context, run *Run) error {
	if p.db == nil || !p.config.RecordRuns {
		return nil
	}
	if err := p.ensureTable(ctx); err != nil {
		return err
	}
	_, err := p.db.NewInsert().Model(run).Exec(ctx)
	return err
}

func (p *Pruner) ensureTable(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ensured {
		return nil
	}
	if err := EnsureSchema(ctx, p.db); err != nil {
		return err
	}
	p.ensured = true
	return nil
}

// EnsureSchema creates the quarry_purge_runs table when missing.
func EnsureSchema(ctx context.Context, db bun.IDB) error {
	if _, err := db.NewCreateTable().Model((*Run)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("failed to create prune run table: %w", err)
	}
	return nil
}

// Runs lists the recorded prune runs, newest first. limit <= 0 returns all.
func Runs(ctx context.Context, db bun.IDB, limit int) ([]Run, error) {
	var runs []Run
	q := db.NewSelect().Model(&runs).OrderExpr("? DESC", bun.Ident("started_at"))
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return runs, nil
}
