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
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
)

const memoryPath = ":memory:"

type defaultDatabaseManager struct {
	config          *Config
	db              *bun.DB
	sqlDB           *sql.DB
	logger          Logger
	hooks           *Hooks
	registry        *ModelRegistry
	metricsReg      prometheus.Registerer
	mu              sync.RWMutex
	connected       bool
	lastError       error
	healthStatus    *HealthStatus
	reconnectTries  int
	stopHealthCheck chan struct{}
	healthCheckOnce sync.Once
}

type ManagerOption func(*defaultDatabaseManager)

// WithRegistry replaces the process model registry used by migrations.
func WithRegistry(r *ModelRegistry) ManagerOption {
	return func(dm *defaultDatabaseManager) { dm.registry = r }
}

// WithMetricsRegisterer sets where the metrics hook registers its collectors.
func WithMetricsRegisterer(reg prometheus.Registerer) ManagerOption {
	return func(dm *defaultDatabaseManager) { dm.metricsReg = reg }
}

func WithLogger(l Logger) ManagerOption {
	return func(dm *defaultDatabaseManager) { dm.logger = l }
}

// NewDatabaseManager returns an AbstractDatabaseManager backed by bun. A nil
// config uses DefaultConfig.
func NewDatabaseManager(config *Config, opts ...ManagerOption) AbstractDatabaseManager {
	if config == nil {
		config = DefaultConfig()
	}
	dm := &defaultDatabaseManager{
		config:          config,
		healthStatus:    &HealthStatus{},
		stopHealthCheck: make(chan struct{}, 1),
		registry:        defaultRegistry,
		logger:          GetLogger(),
	}
	for _, opt := range opts {
		opt(dm)
	}
	return dm
}

func (dm *defaultDatabaseManager) Connect(ctx context.Context) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if dm.connected && dm.db != nil {
		return nil
	}

	var err error
	dm.sqlDB, dm.db, err = dm.createConnection()
	if err != nil {
		dm.lastError = err
		return fmt.Errorf("failed to create database connection: %w", err)
	}

	dm.configureConnectionPool()

	ctxTimeout, cancel := context.WithTimeout(ctx, dm.config.Connection.ConnectTimeout)
	defer cancel()

	if err := dm.db.PingContext(ctxTimeout); err != nil {
		dm.lastError = err
		_ = dm.db.Close()
		dm.db, dm.sqlDB = nil, nil
		return fmt.Errorf("database connection test failed: %w", err)
	}

	dm.connected = true
	dm.lastError = nil
	dm.reconnectTries = 0

	if dm.config.Connection.HealthCheckInterval > 0 {
		dm.startHealthCheck()
	}

	dm.logger.Info("Database connected", "type", dm.config.Connection.Type, "target", dm.target())
	return nil
}

func (dm *defaultDatabaseManager) createConnection() (*sql.DB, *bun.DB, error) {
	c := &dm.config.Connection
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 30 * time.Second
	}

	var (
		sqlDB *sql.DB
		db    *bun.DB
		err   error
	)
	switch normalizeType(c.Type) {
	case "mysql":
		sqlDB, db, err = dm.createMySQLConnection()
	case "postgres":
		sqlDB, db, err = dm.createPostgreSQLConnection()
	case "sqlite":
		sqlDB, db, err = dm.createSQLiteConnection()
	default:
		return nil, nil, fmt.Errorf("unsupported database type: %s", c.Type)
	}
	if err != nil {
		return nil, nil, err
	}

	if err := dm.installHooks(db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return sqlDB, db, nil
}

func (dm *defaultDatabaseManager) installHooks(db *bun.DB) error {
	c := dm.config.Connection
	if dm.hooks == nil {
		dm.hooks = &Hooks{
			Query: NewQueryHook(WithEnabled(c.EnableQueryLog), WithVerbose(c.VerboseQueryLog)),
			Slow:  NewSlowQueryHook(c.SlowQueryTime, dm.logger),
		}
		if dm.config.Metrics.Enabled {
			m, err := NewMetricsHook(dm.config.Metrics, dm.metricsReg)
			if err != nil {
				return fmt.Errorf("register query metrics: %w", err)
			}
			dm.hooks.Metrics = m
		}
	}

	db.AddQueryHook(dm.hooks.Query)
	db.AddQueryHook(dm.hooks.Slow)
	if dm.hooks.Metrics != nil {
		db.AddQueryHook(dm.hooks.Metrics)
	}
	if c.VerboseQueryLog {
		db.AddQueryHook(bundebug.NewQueryHook(
			bundebug.WithVerbose(true),
			bundebug.FromEnv("BUNDEBUG"),
		))
	}
	return nil
}

func (dm *defaultDatabaseManager) createMySQLConnection() (*sql.DB, *bun.DB, error) {
	c := dm.config.Connection
	cfg := mysql.NewConfig()
	cfg.User = c.Username
	cfg.Passwd = c.Password
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", c.Host, c.Port)
	cfg.DBName = c.DBName
	cfg.ParseTime = true
	// RowsAffected counts matched rows, as on postgres and sqlite
	cfg.ClientFoundRows = true
	cfg.Loc = time.Local
	cfg.Timeout = c.ConnectTimeout
	cfg.ReadTimeout = c.ReadTimeout
	cfg.WriteTimeout = c.WriteTimeout
	charset := c.Charset
	if charset == "" {
		charset = "utf8mb4"
	}
	cfg.Params = map[string]string{"charset": charset}

	sqlDB, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, nil, err
	}
	return sqlDB, bun.NewDB(sqlDB, mysqldialect.New()), nil
}

func (dm *defaultDatabaseManager) createPostgreSQLConnection() (*sql.DB, *bun.DB, error) {
	sqlDB, err := sql.Open("postgres", postgresDSN(dm.config.Connection))
	if err != nil {
		return nil, nil, err
	}
	return sqlDB, bun.NewDB(sqlDB, pgdialect.New()), nil
}

func (dm *defaultDatabaseManager) createSQLiteConnection() (*sql.DB, *bun.DB, error) {
	dsn := sqliteDSN(dm.config.Connection)
	sqlDB, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, nil, err
	}
	if strings.Contains(dsn, "mode=memory") {
		// every connection would otherwise see its own empty database
		sqlDB.SetMaxOpenConns(1)
		dm.config.Connection.MaxOpenConns = 1
	}
	return sqlDB, bun.NewDB(sqlDB, sqlitedialect.New()), nil
}

func postgresDSN(c ConnectionConfig) string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s&connect_timeout=%d",
		c.Username, c.Password, c.Host, c.Port, c.DBName, sslMode, int(c.ConnectTimeout.Seconds()))
}

func sqliteDSN(c ConnectionConfig) string {
	switch {
	case c.Path == memoryPath:
		name := c.DBName
		if name == "" {
			name = "quarry"
		}
		return fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	case c.Path != "":
		return c.Path
	default:
		return c.DBName + ".db"
	}
}

func normalizeType(t string) string {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "postgres", "postgresql", "pg":
		return "postgres"
	case "sqlite", "sqlite3":
		return "sqlite"
	default:
		return strings.ToLower(strings.TrimSpace(t))
	}
}

func (dm *defaultDatabaseManager) target() string {
	c := dm.config.Connection
	if normalizeType(c.Type) == "sqlite" {
		return sqliteDSN(c)
	}
	return fmt.Sprintf("%s:%d/%s", c.Host, c.Port, c.DBName)
}

func (dm *defaultDatabaseManager) configureConnectionPool() {
	if dm.sqlDB == nil {
		return
	}
	c := dm.config.Connection
	dm.sqlDB.SetMaxIdleConns(c.MaxIdleConns)
	dm.sqlDB.SetMaxOpenConns(c.MaxOpenConns)
	dm.sqlDB.SetConnMaxLifetime(c.ConnMaxLifetime)
	dm.sqlDB.SetConnMaxIdleTime(c.ConnMaxIdleTime)
}

func (dm *defaultDatabaseManager) Disconnect() error {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	return dm.closeLocked(true)
}

func (dm *defaultDatabaseManager) closeLocked(stopHealth bool) error {
	if stopHealth {
		select {
		case dm.stopHealthCheck <- struct{}{}:
		default:
		}
	}
	if dm.db == nil {
		return nil
	}

	err := dm.db.Close()
	dm.db = nil
	dm.sqlDB = nil
	dm.connected = false
	if err != nil {
		dm.logger.Error("Failed to close database connection", "error", err)
	} else {
		dm.logger.Info("Database connection closed")
	}
	return err
}

// Reconnect replaces the pool. The health check loop keeps running.
func (dm *defaultDatabaseManager) Reconnect(ctx context.Context) error {
	dm.logger.Info("Attempting to reconnect to the database")

	dm.mu.Lock()
	if err := dm.closeLocked(false); err != nil {
		dm.logger.Warn("Error disconnecting existing connection", "error", err)
	}
	dm.mu.Unlock()

	return dm.Connect(ctx)
}

func (dm *defaultDatabaseManager) Ping(ctx context.Context) error {
	dm.mu.RLock()
	db := dm.db
	dm.mu.RUnlock()

	if db == nil {
		return ErrNotInitialized
	}
	return db.PingContext(ctx)
}

func (dm *defaultDatabaseManager) GetDB() *bun.DB {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	return dm.db
}

func (dm *defaultDatabaseManager) GetSQLDB() *sql.DB {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	return dm.sqlDB
}

func (dm *defaultDatabaseManager) Hooks() *Hooks {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	return dm.hooks
}

func (dm *defaultDatabaseManager) HealthCheck(ctx context.Context) *HealthStatus {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	start := time.Now()
	status := &HealthStatus{
		LastCheckTime: start,
		Connected:     dm.connected,
	}

	if dm.db == nil {
		status.LastError = ErrNotInitialized.Error()
		dm.healthStatus = status
		return status
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, time.Second*5)
	defer cancel()

	err := dm.db.PingContext(ctxTimeout)
	status.ResponseTime = time.Since(start)
	if err != nil {
		status.Connected = false
		status.LastError = err.Error()
		dm.lastError = err
	} else {
		status.Healthy = true
		status.Connected = true
		dm.lastError = nil
	}

	if dm.sqlDB != nil {
		stats := dm.sqlDB.Stats()
		status.ActiveConns = stats.InUse
		status.IdleConns = stats.Idle
		status.MaxOpenConns = stats.MaxOpenConnections
	}

	dm.healthStatus = status
	return status
}

func (dm *defaultDatabaseManager) startHealthCheck() {
	dm.healthCheckOnce.Do(func() {
		interval := dm.config.Connection.HealthCheckInterval
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			for {
				select {
				case <-ticker.C:
					ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
					status := dm.HealthCheck(ctx)
					cancel()
					if !status.Healthy && dm.config.Connection.EnableReconnect {
						dm.handleReconnect()
					}
				case <-dm.stopHealthCheck:
					return
				}
			}
		}()
	})
}

// handleReconnect runs on the health check goroutine only.
func (dm *defaultDatabaseManager) handleReconnect() {
	c := dm.config.Connection
	if dm.reconnectTries >= c.MaxReconnectTries {
		dm.logger.Error("Max reconnect attempts reached, stopping", "tries", dm.reconnectTries)
		return
	}

	dm.reconnectTries++
	dm.logger.Info("Starting database reconnect", "try", dm.reconnectTries)

	time.Sleep(c.ReconnectInterval)

	ctx, cancel := context.WithTimeout(context.Background(), c.ConnectTimeout)
	defer cancel()

	if err := dm.Reconnect(ctx); err != nil {
		dm.logger.Error("Reconnect failed", "error", err, "try", dm.reconnectTries)
		return
	}
	dm.logger.Info("Reconnect succeeded")
}

func (dm *defaultDatabaseManager) GetStats() *DBStats {
	dm.mu.RLock()
	sqlDB := dm.sqlDB
	dm.mu.RUnlock()

	if sqlDB == nil {
		return &DBStats{}
	}

	stats := sqlDB.Stats()
	return &DBStats{
		MaxOpenConns:      stats.MaxOpenConnections,
		OpenConns:         stats.OpenConnections,
		InUse:             stats.InUse,
		Idle:              stats.Idle,
		WaitCount:         stats.WaitCount,
		WaitDuration:      stats.WaitDuration,
		MaxIdleClosed:     stats.MaxIdleClosed,
		MaxIdleTimeClosed: stats.MaxIdleTimeClosed,
		MaxLifetimeClosed: stats.MaxLifetimeClosed,
	}
}

func (dm *defaultDatabaseManager) RunMigrations(ctx context.Context) error {
	db := dm.GetDB()
	if db == nil {
		return ErrNotInitialized
	}
	mm := NewMigrationManager(db, dm.registry, dm.config.Migrate, dm.logger)
	if err := mm.RunMigrations(ctx); err != nil {
		return err
	}
	if dm.config.Init.AfterMigrate {
		return dm.InitData(ctx)
	}
	return nil
}

func (dm *defaultDatabaseManager) InitData(ctx context.Context) error {
	db := dm.GetDB()
	if db == nil {
		return ErrNotInitialized
	}
	init := NewSQLInitManager(db, dm.config.Init.Environment)
	if dm.config.Init.Path != "" {
		init.SetSQLRootPath(dm.config.Init.Path)
	}
	init.SetLogger(dm.logger)
	_, err := init.ExecuteInitialization(ctx)
	return err
}

func (dm *defaultDatabaseManager) SetLogger(logger Logger) {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if logger == nil {
		return
	}
	dm.logger = logger
}
