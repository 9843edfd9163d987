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
	"fmt"
	"runtime"
	"time"

	"github.com/spf13/cobra"
	"github.com/tomoncle/quarry/database"
)

type migrationView struct {
	Version     string    `json:"version" yaml:"version"`
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	AppliedAt   time.Time `json:"applied_at" yaml:"applied_at"`
}

type seedView struct {
	File         string `json:"file" yaml:"file"`
	RowsAffected int64  `json:"rows_affected" yaml:"rows_affected"`
	Duration     string `json:"duration" yaml:"duration"`
	Error        string `json:"error,omitempty" yaml:"error,omitempty"`
}

func (a *App) migrateCmd() *cobra.Command {
	var seed bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the tables of registered models and run pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			db, err := a.open(ctx, false)
			if err != nil {
				return err
			}
			defer database.CloseDB()

			mm := a.migrationManager(db)
			if err := mm.RunMigrations(ctx); err != nil {
				return err
			}
			if seed || a.cfg.Init.AfterMigrate {
				if err := database.InitData(ctx); err != nil {
					return err
				}
			}
			return a.printMigrations(cmd, mm)
		},
	}
	cmd.Flags().BoolVar(&seed, "seed", false, "execute the SQL seed files afterwards")
	return cmd
}

func (a *App) rollbackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rollback VERSION",
		Short: "Roll back one applied migration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := a.open(ctx, false)
			if err != nil {
				return err
			}
			defer database.CloseDB()

			mm := a.migrationManager(db)
			if err := mm.RollbackMigration(ctx, args[0]); err != nil {
				return err
			}
			return a.printMigrations(cmd, mm)
		},
	}
}

func (a *App) migrationsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrations",
		Short: "List applied migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := a.open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer database.CloseDB()
			return a.printMigrations(cmd, a.migrationManager(db))
		},
	}
}

func (a *App) printMigrations(cmd *cobra.Command, mm *database.MigrationManager) error {
	applied, err := mm.GetAppliedMigrations(cmd.Context())
	if err != nil {
		return err
	}
	views := make([]migrationView, 0, len(applied))
	for _, m := range applied {
		views = append(views, migrationView{m.Version, m.Name, m.Description, m.AppliedAt})
	}
	return write(cmd.OutOrStdout(), a.output, views)
}

func (a *App) seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Execute the SQL seed files of the configured environment",
		Long: `Execute <init.path>/common/*.sql and then
<init.path>/environments/<env>/*.sql, ordered by their numeric prefix. Each
file runs in its own transaction and the first failing file stops the run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			db, err := a.open(ctx, false)
			if err != nil {
				return err
			}
			defer database.CloseDB()

			seeder := database.NewSQLInitManager(db, a.cfg.Init.Environment)
			seeder.SetSQLRootPath(a.cfg.Init.Path)
			results, runErr := seeder.ExecuteInitialization(ctx)

			views := make([]seedView, 0, len(results))
			for _, r := range results {
				v := seedView{File: r.File, RowsAffected: r.RowsAffected, Duration: r.Duration.String()}
				if r.Error != nil {
					v.Error = r.Error.Error()
				}
				views = append(views, v)
			}
			if err := write(cmd.OutOrStdout(), a.output, views); err != nil {
				return err
			}
			return runErr
		},
	}
}

func (a *App) healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the database connection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if _, err := a.open(ctx, false); err != nil {
				return err
			}
			defer database.CloseDB()

			status := database.GetHealthStatus(ctx)
			if err := write(cmd.OutOrStdout(), a.output, status); err != nil {
				return err
			}
			if !status.Healthy {
				return fmt.Errorf("database unhealthy: %s", status.LastError)
			}
			return nil
		},
	}
}

func (a *App) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print connection pool statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := a.open(cmd.Context(), false); err != nil {
				return err
			}
			defer database.CloseDB()
			return write(cmd.OutOrStdout(), a.output, database.GetDatabaseStats())
		},
	}
}

func (a *App) fkExportCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "fk-export",
		Short: "Write the foreign keys derived from registered models to a YAML file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := a.open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer database.CloseDB()

			if out == "" {
				out = a.cfg.Migrate.ForeignKeyFile
			}
			fks := database.DeriveForeignKeys(db, database.RegisteredModelInstances()...)
			fkm := database.NewForeignKeyManager(nil, fks...)
			if err := fkm.Validate(); err != nil {
				return err
			}
			if err := fkm.Export(out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d foreign keys to %s\n", len(fks), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "target file (default migrate.foreign_key_file)")
	return cmd
}

func (a *App) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "quarry %s\n", Version)
			fmt.Fprintf(w, "Git Commit: %s\n", GitCommit)
			fmt.Fprintf(w, "Go Version: %s\n", runtime.Version())
			fmt.Fprintf(w, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}
