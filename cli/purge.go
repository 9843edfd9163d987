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
	"time"

	"github.com/spf13/cobra"
	"github.com/tomoncle/quarry/database"
	"github.com/tomoncle/quarry/retention"
)

type runView struct {
	ID         string           `json:"id" yaml:"id"`
	StartedAt  time.Time        `json:"started_at" yaml:"started_at"`
	Cutoff     time.Time        `json:"cutoff" yaml:"cutoff"`
	Purged     map[string]int64 `json:"purged" yaml:"purged"`
	Total      int64            `json:"total" yaml:"total"`
	DurationMS int64            `json:"duration_ms" yaml:"duration_ms"`
	Error      string           `json:"error,omitempty" yaml:"error,omitempty"`
}

func newRunView(r *retention.Run) runView {
	return runView{
		ID:         r.ID,
		StartedAt:  r.StartedAt,
		Cutoff:     r.Cutoff,
		Purged:     r.Purged.Data,
		Total:      r.Total,
		DurationMS: r.DurationMS,
		Error:      r.Error,
	}
}

func (a *App) purgeCmd() *cobra.Command {
	var window time.Duration
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Hard delete records removed longer ago than the retention window",
		Long: `Run one purge pass over the registered purge targets. Records whose
removal timestamp is older than the retention window are deleted for good.
The window comes from retention.retention_days or retention.retention unless
--retention is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			db, err := a.open(ctx, false)
			if err != nil {
				return err
			}
			defer database.CloseDB()

			if window > 0 {
				rc := *a.retention
				rc.Retention = window
				a.retention = &rc
			}
			pruner, err := a.pruner(db)
			if err != nil {
				return err
			}
			run, runErr := pruner.Prune(ctx)
			if err := write(cmd.OutOrStdout(), a.output, newRunView(run)); err != nil {
				return err
			}
			return runErr
		},
	}
	cmd.Flags().DurationVar(&window, "retention", 0, "override the retention window, e.g. 72h")
	return cmd
}

func (a *App) runsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "purge-runs",
		Short: "List recorded purge runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			db, err := a.open(ctx, false)
			if err != nil {
				return err
			}
			defer database.CloseDB()

			if err := retention.EnsureSchema(ctx, db); err != nil {
				return err
			}
			runs, err := retention.Runs(ctx, db, limit)
			if err != nil {
				return err
			}
			views := make([]runView, 0, len(runs))
			for i := range runs {
				views = append(views, newRunView(&runs[i]))
			}
			return write(cmd.OutOrStdout(), a.output, views)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs, 0 for all")
	return cmd
}
