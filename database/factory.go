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
	"os"
	"time"

	"github.com/spf13/cast"
	"github.com/uptrace/bun"
)

var supportedTypes = []string{"mysql", "postgres", "sqlite"}

// envOverride applies one DB_* variable to the connection config.
type envOverride struct {
	name  string
	apply func(c *ConnectionConfig, v string)
}

// seconds reads plain integers as seconds and anything else as a
// time.Duration string such as "90s".
func seconds(v string) time.Duration {
	if n, err := cast.ToInt64E(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return cast.ToDuration(v)
}

var envOverrides = []envOverride{
	{"DB_TYPE", func(c *ConnectionConfig, v string) { c.Type = v }},
	{"DB_HOST", func(c *ConnectionConfig, v string) { c.Host = v }},
	{"DB_PORT", func(c *ConnectionConfig, v string) { c.Port = cast.ToInt(v) }},
	{"DB_USERNAME", func(c *ConnectionConfig, v string) { c.Username = v }},
	{"DB_PASSWORD", func(c *ConnectionConfig, v string) { c.Password = v }},
	{"DB_NAME", func(c *ConnectionConfig, v string) { c.DBName = v }},
	{"DB_PATH", func(c *ConnectionConfig, v string) { c.Path = v }},
	{"DB_SSLMODE", func(c *ConnectionConfig, v string) { c.SSLMode = v }},
	{"DB_MAX_IDLE_CONNS", func(c *ConnectionConfig, v string) { c.MaxIdleConns = cast.ToInt(v) }},
	{"DB_MAX_OPEN_CONNS", func(c *ConnectionConfig, v string) { c.MaxOpenConns = cast.ToInt(v) }},
	{"DB_CONN_MAX_LIFETIME", func(c *ConnectionConfig, v string) { c.ConnMaxLifetime = seconds(v) }},
	{"DB_ENABLE_RECONNECT", func(c *ConnectionConfig, v string) { c.EnableReconnect = cast.ToBool(v) }},
	{"DB_RECONNECT_INTERVAL", func(c *ConnectionConfig, v string) { c.ReconnectInterval = seconds(v) }},
	{"DB_ENABLE_QUERY_LOG", func(c *ConnectionConfig, v string) { c.EnableQueryLog = cast.ToBool(v) }},
	{"DB_SLOW_QUERY_TIME", func(c *ConnectionConfig, v string) { c.SlowQueryTime = seconds(v) }},
}

// BaseDatabaseFactory creates the manager of a Config and drives its
// startup sequence.
type BaseDatabaseFactory struct {
	manager AbstractDatabaseManager
	config  *Config
	logger  Logger
}

func NewDatabaseFactory() *BaseDatabaseFactory {
	return &BaseDatabaseFactory{logger: GetLogger()}
}

// CreateFromConfig applies the DB_* environment overrides to cfg and builds
// its manager.
func (f *BaseDatabaseFactory) CreateFromConfig(cfg *Config, opts ...ManagerOption) (AbstractDatabaseManager, error) {
	if cfg == nil {
		return nil, errors.New("database configuration cannot be empty")
	}

	overrideFromEnv(&cfg.Connection)
	cfg.Connection.Type = normalizeType(cfg.Connection.Type)
	if !isSupported(cfg.Connection.Type) {
		return nil, fmt.Errorf("unsupported database type: %q, supported types: %v", cfg.Connection.Type, supportedTypes)
	}

	opts = append([]ManagerOption{WithLogger(f.logger)}, opts...)
	f.manager = NewDatabaseManager(cfg, opts...)
	f.config = cfg
	return f.manager, nil
}

func overrideFromEnv(cfg *ConnectionConfig) {
	for _, o := range envOverrides {
		if v, ok := os.LookupEnv(o.name); ok && v != "" {
			o.apply(cfg, v)
		}
	}
}

func isSupported(t string) bool {
	for _, s := range supportedTypes {
		if s == t {
			return true
		}
	}
	return false
}

// InitializeDatabase connects and then runs the migrations and seed files
// enabled for startup.
func (f *BaseDatabaseFactory) InitializeDatabase(ctx context.Context) error {
	if f.manager == nil {
		return errors.New("database manager not created")
	}
	if err := f.manager.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if f.config.Migrate.OnStartup {
		if err := f.manager.RunMigrations(ctx); err != nil {
			return fmt.Errorf("failed to run database migrations: %w", err)
		}
	}
	if f.config.Init.OnStartup && !(f.config.Migrate.OnStartup && f.config.Init.AfterMigrate) {
		if err := f.manager.InitData(ctx); err != nil {
			return fmt.Errorf("failed to initialize data: %w", err)
		}
	}
	f.logger.Info("Database initialization completed")
	return nil
}

func (f *BaseDatabaseFactory) GetManager() AbstractDatabaseManager {
	return f.manager
}

func (f *BaseDatabaseFactory) GetConfig() *Config {
	return f.config
}

// GetDB returns the bun database, or nil before InitializeDatabase.
func (f *BaseDatabaseFactory) GetDB() *bun.DB {
	if f.manager == nil {
		return nil
	}
	return f.manager.GetDB()
}

func (f *BaseDatabaseFactory) SetLogger(logger Logger) {
	f.logger = logger
	if f.manager != nil {
		f.manager.SetLogger(logger)
	}
}

func (f *BaseDatabaseFactory) Close() error {
	if f.manager == nil {
		return nil
	}
	return f.manager.Disconnect()
}

func (f *BaseDatabaseFactory) GetHealthStatus(ctx context.Context) *HealthStatus {
	if f.manager == nil {
		return &HealthStatus{LastError: ErrNotInitialized.Error(), LastCheckTime: time.Now()}
	}
	return f.manager.HealthCheck(ctx)
}

func (f *BaseDatabaseFactory) GetStats() *DBStats {
	if f.manager == nil {
		return &DBStats{}
	}
	return f.manager.GetStats()
}
