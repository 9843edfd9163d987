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

package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/tomoncle/quarry/database"
	"github.com/tomoncle/quarry/retention"
)

func (a *App) serveCmd() *cobra.Command {
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Keep the database maintained until interrupted",
		Long: `Connect with the startup migrations and seeds of the configuration,
reload log level, query log and slow query threshold when the config file
changes, purge removed records on retention.prune_schedule when
retention.enabled is set, and optionally expose prometheus metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			db, err := a.open(ctx, true)
			if err != nil {
				return err
			}
			defer database.CloseDB()
			logger := database.GetLogger()

			database.WatchConfig(a.v, database.GetDatabaseManager(), nil)

			if a.retention.Enabled {
				pruner, err := a.pruner(db)
				if err != nil {
					return err
				}
				scheduler := retention.NewScheduler(pruner)
				if err := scheduler.Start(ctx); err != nil {
					return err
				}
				defer scheduler.Stop()
			}

			if metricsAddr != "" {
				srv := &http.Server{
					Addr:              metricsAddr,
					Handler:           metricsHandler(),
					ReadHeaderTimeout: 5 * time.Second,
				}
				go func() {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						logger.Error("Metrics server failed", "addr", metricsAddr, "error", err)
					}
				}()
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = srv.Shutdown(shutdownCtx)
				}()
				logger.Info("Serving metrics", "addr", metricsAddr)
			}

			logger.Info("quarry serving, waiting for shutdown")
			<-ctx.Done()
			logger.Info("Shutting down")
			return nil
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "listen address of the /metrics endpoint, e.g. :9100")
	return cmd
}

func metricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	}))
	return mux
}
