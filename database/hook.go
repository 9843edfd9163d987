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
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
	"github.com/uptrace/bun"
)

// QueryLogEnv overrides the query log at runtime: "0" or empty disables it,
// "1" logs failed queries and "2" logs every query.
const QueryLogEnv = "QUARRY_QUERY_LOG"

var bunSqlSilentMode atomic.Bool

// EnableBunSqlSilent mutes the query and slow query hooks process wide.
func EnableBunSqlSilent(b bool) {
	bunSqlSilentMode.Store(b)
}

// Hooks are the query hooks a manager installs on its bun.DB. Metrics is
// nil unless enabled in MetricsConfig.
type Hooks struct {
	Query   *QueryHook
	Slow    *SlowQueryHook
	Metrics *MetricsHook
}

type QueryHookOption func(*QueryHook)

func WithEnabled(on bool) QueryHookOption {
	return func(h *QueryHook) { h.enabled.Store(on) }
}

func WithVerbose(on bool) QueryHookOption {
	return func(h *QueryHook) { h.verbose.Store(on) }
}

func WithWriter(w io.Writer) QueryHookOption {
	return func(h *QueryHook) { h.writer = w }
}

func WithNoColor(on bool) QueryHookOption {
	return func(h *QueryHook) { h.noColor = on }
}

// FromEnv sets the variable consulted on every query, QueryLogEnv by default.
func FromEnv(name string) QueryHookOption {
	return func(h *QueryHook) { h.envName = name }
}

// QueryHook prints queries with the statement colored by operation.
type QueryHook struct {
	envName string
	enabled atomic.Bool
	verbose atomic.Bool
	noColor bool
	writer  io.Writer
}

var _ bun.QueryHook = (*QueryHook)(nil)

func NewQueryHook(opts ...QueryHookOption) *QueryHook {
	h := &QueryHook{envName: QueryLogEnv, writer: os.Stdout}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// SetEnabled switches the hook without reinstalling it.
func (h *QueryHook) SetEnabled(enabled, verbose bool) {
	h.enabled.Store(enabled)
	h.verbose.Store(verbose)
}

func (h *QueryHook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h *QueryHook) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	if bunSqlSilentMode.Load() {
		return
	}
	enabled, verbose := h.enabled.Load(), h.verbose.Load()
	if h.envName != "" {
		if env, ok := os.LookupEnv(h.envName); ok {
			enabled = env != "" && env != "0"
			verbose = env == "2"
		}
	}
	if !enabled {
		return
	}
	if !verbose {
		switch {
		case event.Err == nil, errors.Is(event.Err, sql.ErrNoRows), errors.Is(event.Err, sql.ErrTxDone):
			return
		}
	}

	now := time.Now()
	args := []interface{}{
		now.Format("2006-01-02 15:04:05.000"),
		h.paint(color.New(color.FgCyan), fmt.Sprintf("%7s", "[BUN]")),
		fmt.Sprintf("%14s", now.Sub(event.StartTime).Round(time.Microsecond)),
		" ", h.paint(operationColor(event.Operation()), event.Query),
	}
	if event.Err != nil {
		typ := reflect.TypeOf(event.Err).String()
		args = append(args, "\t", h.paint(color.New(color.BgRed, color.FgHiWhite), " "+typ+": "+event.Err.Error()+" "))
	}
	_, _ = fmt.Fprintln(h.writer, args...)
}

func (h *QueryHook) paint(c *color.Color, s string) string {
	if h.noColor {
		c.DisableColor()
	} else {
		c.EnableColor()
	}
	return c.Sprint(s)
}

func operationColor(operation string) *color.Color {
	switch operation {
	case "SELECT":
		return color.New(color.FgGreen)
	case "INSERT":
		return color.New(color.FgBlue)
	case "UPDATE":
		return color.New(color.FgYellow)
	case "DELETE":
		return color.New(color.FgMagenta)
	default:
		return color.New(color.FgRed)
	}
}

// SlowQueryHook warns through the logger about successful queries slower
// than the threshold. A zero threshold disables it.
type SlowQueryHook struct {
	threshold atomic.Int64
	logger    Logger
}

var _ bun.QueryHook = (*SlowQueryHook)(nil)

func NewSlowQueryHook(threshold time.Duration, logger Logger) *SlowQueryHook {
	h := &SlowQueryHook{logger: logger}
	h.SetThreshold(threshold)
	return h
}

func (h *SlowQueryHook) SetThreshold(d time.Duration) {
	h.threshold.Store(int64(d))
}

func (h *SlowQueryHook) Threshold() time.Duration {
	return time.Duration(h.threshold.Load())
}

func (h *SlowQueryHook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h *SlowQueryHook) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	if bunSqlSilentMode.Load() || event.Err != nil || h.logger == nil {
		return
	}
	threshold := h.Threshold()
	if threshold <= 0 {
		return
	}
	if duration := time.Since(event.StartTime); duration > threshold {
		h.logger.Warn("Slow query detected",
			"duration", duration.Round(time.Microsecond),
			"threshold", threshold,
			"operation", event.Operation(),
			"query", event.Query,
		)
	}
}
