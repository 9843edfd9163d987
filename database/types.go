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
	"time"

	"github.com/tomoncle/quarry/utils"
	"github.com/uptrace/bun"
)

// AbstractDatabaseManager owns one connection pool together with its
// migrations, seed data and health reporting.
type AbstractDatabaseManager interface {
	Connect(ctx context.Context) error
	Disconnect() error
	Reconnect(ctx context.Context) error
	Ping(ctx context.Context) error
	HealthCheck(ctx context.Context) *HealthStatus
	GetDB() *bun.DB
	GetSQLDB() *sql.DB
	RunMigrations(ctx context.Context) error
	InitData(ctx context.Context) error
	GetStats() *DBStats
	SetLogger(logger Logger)
	Hooks() *Hooks
}

// HealthStatus holds the result of a health check against the database.
type HealthStatus struct {
	Healthy       bool          `json:"healthy" yaml:"healthy"`
	Connected     bool          `json:"connected" yaml:"connected"`
	ResponseTime  time.Duration `json:"response_time" yaml:"response_time"`
	ActiveConns   int           `json:"active_conns" yaml:"active_conns"`
	IdleConns     int           `json:"idle_conns" yaml:"idle_conns"`
	MaxOpenConns  int           `json:"max_open_conns" yaml:"max_open_conns"`
	LastError     string        `json:"last_error,omitempty" yaml:"last_error,omitempty"`
	LastCheckTime time.Time     `json:"last_check_time" yaml:"last_check_time"`
}

// DBStats mirrors sql.DBStats.
type DBStats struct {
	MaxOpenConns      int           `json:"max_open_conns" yaml:"max_open_conns"`
	OpenConns         int           `json:"open_conns" yaml:"open_conns"`
	InUse             int           `json:"in_use" yaml:"in_use"`
	Idle              int           `json:"idle" yaml:"idle"`
	WaitCount         int64         `json:"wait_count" yaml:"wait_count"`
	WaitDuration      time.Duration `json:"wait_duration" yaml:"wait_duration"`
	MaxIdleClosed     int64         `json:"max_idle_closed" yaml:"max_idle_closed"`
	MaxIdleTimeClosed int64         `json:"max_idle_time_closed" yaml:"max_idle_time_closed"`
	MaxLifetimeClosed int64         `json:"max_lifetime_closed" yaml:"max_lifetime_closed"`
}

// ConnectionConfig describes how to reach the store and size its pool.
// For sqlite Path names the database file, ":memory:" opens a private
// in-memory database, and an empty Path falls back to DBName + ".db".
type ConnectionConfig struct {
	Type                string        `mapstructure:"type" yaml:"type"` // postgres, mysql, sqlite
	Host                string        `mapstructure:"host" yaml:"host"`
	Port                int           `mapstructure:"port" yaml:"port"`
	Username            string        `mapstructure:"username" yaml:"username"`
	Password            string        `mapstructure:"password" yaml:"password"`
	DBName              string        `mapstructure:"dbname" yaml:"dbname"`
	Path                string        `mapstructure:"path" yaml:"path"`
	SSLMode             string        `mapstructure:"sslmode" yaml:"sslmode"`
	Charset             string        `mapstructure:"charset" yaml:"charset"`
	MaxIdleConns        int           `mapstructure:"max_idle_conns" yaml:"max_idle_conns"`
	MaxOpenConns        int           `mapstructure:"max_open_conns" yaml:"max_open_conns"`
	ConnMaxLifetime     time.Duration `mapstructure:"conn_max_lifetime" yaml:"conn_max_lifetime"`
	ConnMaxIdleTime     time.Duration `mapstructure:"conn_max_idle_time" yaml:"conn_max_idle_time"`
	ConnectTimeout      time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout"`
	ReadTimeout         time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout        time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	EnableReconnect     bool          `mapstructure:"enable_reconnect" yaml:"enable_reconnect"`
	ReconnectInterval   time.Duration `mapstructure:"reconnect_interval" yaml:"reconnect_interval"`
	MaxReconnectTries   int           `mapstructure:"max_reconnect_tries" yaml:"max_reconnect_tries"`
	HealthCheckInterval time.Duration `mapstructure:"health_check_interval" yaml:"health_check_interval"`
	EnableQueryLog      bool          `mapstructure:"enable_query_log" yaml:"enable_query_log"`
	VerboseQueryLog     bool          `mapstructure:"verbose_query_log" yaml:"verbose_query_log"`
	SlowQueryTime       time.Duration `mapstructure:"slow_query_time" yaml:"slow_query_time"`
}

// MigrateConfig controls table creation for registered models.
type MigrateConfig struct {
	OnStartup      bool   `mapstructure:"on_startup" yaml:"on_startup"`
	ForeignKeys    bool   `mapstructure:"foreign_keys" yaml:"foreign_keys"`
	ForeignKeyFile string `mapstructure:"foreign_key_file" yaml:"foreign_key_file"`
}

// InitConfig controls SQL seed files. Files are read from
// <Path>/common and <Path>/environments/<Environment>.
type InitConfig struct {
	OnStartup    bool   `mapstructure:"on_startup" yaml:"on_startup"`
	AfterMigrate bool   `mapstructure:"after_migrate" yaml:"after_migrate"`
	Path         string `mapstructure:"path" yaml:"path"`
	Environment  string `mapstructure:"environment" yaml:"environment"`
}

// MetricsConfig enables the prometheus query hook.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
	Namespace string `mapstructure:"namespace" yaml:"namespace"`
	Subsystem string `mapstructure:"subsystem" yaml:"subsystem"`
}

// Config is the root of the quarry configuration file.
type Config struct {
	Connection ConnectionConfig `mapstructure:"connection" yaml:"connection"`
	Migrate    MigrateConfig    `mapstructure:"migrate" yaml:"migrate"`
	Init       InitConfig       `mapstructure:"init" yaml:"init"`
	Metrics    MetricsConfig    `mapstructure:"metrics" yaml:"metrics"`
	Log        utils.LogOptions `mapstructure:"log" yaml:"log"`
}

// DefaultConnectionConfig returns a connection config with sensible defaults.
func DefaultConnectionConfig() *ConnectionConfig {
	return &ConnectionConfig{
		Type:                "sqlite",
		DBName:              "quarry",
		MaxIdleConns:        10,
		MaxOpenConns:        100,
		ConnMaxLifetime:     time.Hour,
		ConnMaxIdleTime:     time.Minute * 30,
		ConnectTimeout:      time.Second * 10,
		ReadTimeout:         time.Second * 30,
		WriteTimeout:        time.Second * 30,
		EnableReconnect:     true,
		ReconnectInterval:   time.Second * 5,
		MaxReconnectTries:   3,
		HealthCheckInterval: time.Minute * 5,
		SlowQueryTime:       time.Second * 2,
	}
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		Connection: *DefaultConnectionConfig(),
		Migrate:    MigrateConfig{ForeignKeyFile: "configs/foreign_keys.yaml"},
		Init:       InitConfig{Path: "configs/sql", Environment: "development"},
		Metrics:    MetricsConfig{Namespace: "quarry", Subsystem: "db"},
		Log:        utils.LogOptions{Level: "info", Format: utils.FormatText},
	}
}
