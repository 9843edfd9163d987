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

package database

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

// Migration is an applied migration record.
type Migration struct {
	bun.BaseModel `bun:"table:quarry_migrations"`

	Version     string    `bun:"version,pk"`
	Name        string    `bun:"name"`
	AppliedAt   time.Time `bun:"applied_at"`
	Description string    `bun:"description"`
}

// MigrationFunc is a migration step executed within a transaction.
type MigrationFunc func(ctx context.Context, db bun.IDB) error

// MigrationItem is one versioned step. Down is optional.
type MigrationItem struct {
	Version     string
	Name        string
	Description string
	Up          MigrationFunc
	Down        MigrationFunc
}

// MigrationManager creates the tables of registered models, adds their
// foreign keys and runs application migrations, each exactly once.
type MigrationManager struct {
	db       *bun.DB
	registry *ModelRegistry
	config   MigrateConfig
	logger   Logger
	extra    []MigrationItem
}

func NewMigrationManager(db *bun.DB, registry *ModelRegistry, config MigrateConfig, logger Logger) *MigrationManager {
	if registry == nil {
		registry = defaultRegistry
	}
	if logger == nil {
		logger = GetLogger()
	}
	return &MigrationManager{db: db, registry: registry, config: config, logger: logger}
}

// Add registers application migrations. Versions sort as strings after the
// built-in "000" steps.
func (mm *MigrationManager) Add(items ...MigrationItem) {
	mm.extra = append(mm.extra, items...)
}

func (mm *MigrationManager) RunMigrations(ctx context.Context) error {
	if mm.db == nil {
		return ErrNotInitialized
	}
	if _, ok := os.LookupEnv("BUNDEBUG_MIGRATION"); !ok {
		EnableBunSqlSilent(true)
		defer EnableBunSqlSilent(false)
	}

	if _, err := mm.db.NewCreateTable().Model((*Migration)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	// tables are always ensured so models registered later still get one
	if err := mm.createTables(ctx, mm.db); err != nil {
		return err
	}

	for _, m := range mm.migrations() {
		if err := mm.runMigration(ctx, m); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", m.Version, err)
		}
	}

	mm.logger.Info("Database migrations completed", "models", len(mm.registry.Models()))
	return nil
}

func (mm *MigrationManager) migrations() []MigrationItem {
	var items []MigrationItem
	if mm.config.ForeignKeys && mm.alterForeignKeys() {
		items = append(items, MigrationItem{
			Version:     "000_foreign_keys",
			Name:        "add_foreign_keys",
			Description: "Add foreign key constraints of registered models",
			Up:          mm.addForeignKeys,
		})
	}
	items = append(items, mm.extra...)
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Version < items[j].Version
	})
	return items
}

// alterForeignKeys is false for sqlite, which declares foreign keys only in
// CREATE TABLE.
func (mm *MigrationManager) alterForeignKeys() bool {
	return mm.db.Dialect().Name() != dialect.SQLite
}

func (mm *MigrationManager) createTables(ctx context.Context, db bun.IDB) error {
	for _, model := range mm.registry.Instances() {
		q := db.NewCreateTable().Model(model).IfNotExists()
		if mm.config.ForeignKeys && !mm.alterForeignKeys() {
			q = q.WithForeignKeys()
		}
		if _, err := q.Exec(ctx); err != nil {
			return fmt.Errorf("failed to create table %T: %w", model, err)
		}
	}
	return nil
}

func (mm *MigrationManager) addForeignKeys(ctx context.Context, db bun.IDB) error {
	fkm, err := NewForeignKeyManagerFromFile(mm.logger, mm.config.ForeignKeyFile, mm.db, mm.registry.Instances()...)
	if err != nil {
		return err
	}
	if err := fkm.Validate(); err != nil {
		return fmt.Errorf("foreign key validation failed: %w", err)
	}
	added := fkm.AddAll(ctx, db)
	mm.logger.Debug("Foreign key constraints applied", "added", added, "total", len(fkm.Constraints()))
	return nil
}

func (mm *MigrationManager) runMigration(ctx context.Context, m MigrationItem) error {
	exists, err := mm.db.NewSelect().
		Model((*Migration)(nil)).
		Where("version = ?", m.Version).
		Exists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	err = mm.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := m.Up(ctx, tx); err != nil {
			return err
		}
		_, err := tx.NewInsert().Model(&Migration{
			Version:     m.Version,
			Name:        m.Name,
			AppliedAt:   time.Now(),
			Description: m.Description,
		}).Exec(ctx)
		return err
	})
	if err != nil {
		return err
	}
	mm.logger.Info("Migration executed", "version", m.Version, "name", m.Name)
	return nil
}

// RollbackMigration runs the Down step of an applied migration and forgets it.
func (mm *MigrationManager) RollbackMigration(ctx context.Context, version string) error {
	var item *MigrationItem
	for _, m := range mm.migrations() {
		if m.Version == version {
			item = &m
			break
		}
	}
	if item == nil {
		return fmt.Errorf("unknown migration %s", version)
	}
	if item.Down == nil {
		return fmt.Errorf("migration %s cannot be rolled back", version)
	}
	return mm.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := item.Down(ctx, tx); err != nil {
			return err
		}
		_, err := tx.NewDelete().Model((*Migration)(nil)).Where("version = ?", version).Exec(ctx)
		return err
	})
}

// GetAppliedMigrations returns migration records ordered by version.
func (mm *MigrationManager) GetAppliedMigrations(ctx context.Context) ([]Migration, error) {
	var migrations []Migration
	err := mm.db.NewSelect().
		Model(&migrations).
		Order("version ASC").
		Scan(ctx)
	return migrations, err
}
