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
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
)

// MetricsHook counts queries and observes their latency per operation and
// table.
type MetricsHook struct {
	queries  *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

var _ bun.QueryHook = (*MetricsHook)(nil)

// NewMetricsHook registers the query collectors on reg, or on the default
// registerer when reg is nil. Registering twice with the same options reuses
// the collectors already present.
func NewMetricsHook(cfg MetricsConfig, reg prometheus.Registerer) (*MetricsHook, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	queries, err := register(reg, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "queries_total",
			Help:      "Total number of executed queries",
		},
		[]string{"operation", "table", "status"},
	))
	if err != nil {
		return nil, err
	}

	duration, err := register(reg, prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "query_duration_seconds",
			Help:      "Query latency in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
		},
		[]string{"operation", "table"},
	))
	if err != nil {
		return nil, err
	}

	return &MetricsHook{queries: queries, duration: duration}, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (h *MetricsHook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h *MetricsHook) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	operation, table := event.Operation(), eventTable(event)
	h.queries.WithLabelValues(operation, table, queryStatus(event.Err)).Inc()
	h.duration.WithLabelValues(operation, table).Observe(time.Since(event.StartTime).Seconds())
}

func eventTable(event *bun.QueryEvent) string {
	if m, ok := event.Model.(interface{ Table() *schema.Table }); ok {
		if t := m.Table(); t != nil {
			return t.Name
		}
	}
	return "unknown"
}

func queryStatus(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, sql.ErrNoRows):
		return "no_rows"
	default:
		return "error"
	}
}
