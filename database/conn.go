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
	"errors"
	"fmt"
	"sync"

	"github.com/uptrace/bun"
)

var (
	globalMu      sync.RWMutex
	globalFactory *BaseDatabaseFactory
)

func factory() *BaseDatabaseFactory {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalFactory
}

// GetDB returns the process database, nil before InitDB.
func GetDB() *bun.DB {
	if f := factory(); f != nil {
		return f.GetDB()
	}
	return nil
}

func GetDatabaseManager() AbstractDatabaseManager {
	if f := factory(); f != nil {
		return f.GetManager()
	}
	return nil
}

func GetDatabaseFactory() *BaseDatabaseFactory {
	return factory()
}

// InitDB connects the process database described by cfg, running the
// startup migrations and seeds it enables. A previous process database is
// closed first.
func InitDB(ctx context.Context, cfg *Config, opts ...ManagerOption) (*bun.DB, error) {
	if cfg == nil {
		return nil, errors.New("database configuration cannot be empty")
	}
	f := NewDatabaseFactory()
	if _, err := f.CreateFromConfig(cfg, opts...); err != nil {
		return nil, fmt.Errorf("failed to create database manager: %w", err)
	}
	if err := f.InitializeDatabase(ctx); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	db := f.GetDB()
	db.RegisterModel(RegisteredModelInstances()...)

	globalMu.Lock()
	prev := globalFactory
	globalFactory = f
	globalMu.Unlock()
	if prev != nil {
		_ = prev.Close()
	}
	return db, nil
}

// CloseDB closes and forgets the process database.
func CloseDB() error {
	globalMu.Lock()
	f := globalFactory
	globalFactory = nil
	globalMu.Unlock()
	if f == nil {
		return nil
	}
	return f.Close()
}

func GetHealthStatus(ctx context.Context) *HealthStatus {
	if f := factory(); f != nil {
		return f.GetHealthStatus(ctx)
	}
	return &HealthStatus{LastError: ErrNotInitialized.Error()}
}

func GetDatabaseStats() *DBStats {
	if f := factory(); f != nil {
		return f.GetStats()
	}
	return &DBStats{}
}

func RunMigrations(ctx context.Context) error {
	m := GetDatabaseManager()
	if m == nil {
		return ErrNotInitialized
	}
	return m.RunMigrations(ctx)
}

// InitData executes the SQL seed files of the configured environment.
func InitData(ctx context.Context) error {
	m := GetDatabaseManager()
	if m == nil {
		return ErrNotInitialized
	}
	return m.InitData(ctx)
}
