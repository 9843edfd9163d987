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
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tomoncle/quarry/database"
	"github.com/tomoncle/quarry/repository"
	"github.com/tomoncle/quarry/retention"
	"github.com/tomoncle/quarry/utils"
	"github.com/uptrace/bun"
)

var (
	// Version is the semantic version (set by build flags)
	Version = "0.1.0"
	// GitCommit is the git commit hash (set by build flags)
	GitCommit = "unknown"
)

// TargetFunc builds a purge target once the database is open.
type TargetFunc func(db bun.IDB) (retention.Target, error)

// PurgeTarget purges the removed records of T through its repository.
func PurgeTarget[T any]() TargetFunc {
	return func(db bun.IDB) (retention.Target, error) {
		repo, err := repository.NewRepository[T](db)
		if err != nil {
			return retention.Target{}, err
		}
		return retention.ForRepository(repo), nil
	}
}

type Option func(*App)

// WithPurgeTargets registers the entities purged by the purge and serve
// commands.
func WithPurgeTargets(fns ...TargetFunc) Option {
	return func(a *App) { a.targets = append(a.targets, fns...) }
}

// WithMigrations registers application migrations run by migrate after the
// tables of the registered models exist.
func WithMigrations(items ...database.MigrationItem) Option {
	return func(a *App) { a.migrations = append(a.migrations, items...) }
}

func WithManagerOptions(opts ...database.ManagerOption) Option {
	return func(a *App) { a.managerOpts = append(a.managerOpts, opts...) }
}

// App holds the state shared by the commands of one invocation. Models are
// taken from database.RegisterModel.
type App struct {
	cfgFile     string
	environment string
	output      string
	verbose     bool

	targets     []TargetFunc
	migrations  []database.MigrationItem
	managerOpts []database.ManagerOption

	v         *viper.Viper
	cfg       *database.Config
	retention *retention.Config
}

// NewRootCommand builds the quarry command tree.
func NewRootCommand(opts ...Option) *cobra.Command {
	a := &App{}
	for _, opt := range opts {
		opt(a)
	}

	root := &cobra.Command{
		Use:   "quarry",
		Short: "quarry - data access toolkit for bun models",
		Long: `quarry manages the database of an application built on the quarry
repositories: schema migrations, seed files, foreign keys, health reports and
the purge of soft deleted records.

Configuration is read from quarry.yaml in . or ./configs, or from --config.
Every key can be overridden with a QUARRY_ environment variable, for example
QUARRY_CONNECTION_HOST for connection.host.`,
		Version:           Version,
		SilenceUsage:      true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error { return a.load() },
	}
	root.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "", "config file path")
	root.PersistentFlags().StringVarP(&a.environment, "env", "e", "", "seed environment, overrides init.environment")
	root.PersistentFlags().StringVarP(&a.output, "output", "o", formatYAML, "output format (yaml, json)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		a.migrateCmd(),
		a.rollbackCmd(),
		a.migrationsCmd(),
		a.seedCmd(),
		a.healthCmd(),
		a.statsCmd(),
		a.fkExportCmd(),
		a.purgeCmd(),
		a.runsCmd(),
		a.serveCmd(),
		a.versionCmd(),
	)
	return root
}

// Execute runs the command tree until SIGINT or SIGTERM.
func Execute(opts ...Option) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := NewRootCommand(opts...).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func (a *App) load() error {
	v, err := database.NewViper(a.cfgFile)
	if err != nil {
		return err
	}
	cfg, err := database.DecodeConfig(v)
	if err != nil {
		return err
	}
	if a.environment != "" {
		cfg.Init.Environment = a.environment
	}
	if a.verbose {
		cfg.Log.Level = "debug"
	}
	if err := utils.ConfigureLogging(cfg.Log); err != nil {
		return err
	}

	rc := retention.DefaultConfig()
	if err := v.UnmarshalKey("retention", rc); err != nil {
		return fmt.Errorf("decode retention config: %w", err)
	}
	if err := rc.Validate(); err != nil {
		return err
	}

	a.v, a.cfg, a.retention = v, cfg, rc
	return nil
}

// open connects the process database. startup keeps the migrate and init
// startup switches of the config, otherwise they are turned off.
func (a *App) open(ctx context.Context, startup bool) (*bun.DB, error) {
	cfg := *a.cfg
	if !startup {
		cfg.Migrate.OnStartup = false
		cfg.Init.OnStartup = false
	}
	return database.InitDB(ctx, &cfg, a.managerOpts...)
}

func (a *App) migrationManager(db *bun.DB) *database.MigrationManager {
	mm := database.NewMigrationManager(db, nil, a.cfg.Migrate, nil)
	mm.Add(a.migrations...)
	return mm
}

func (a *App) pruner(db bun.IDB) (*retention.Pruner, error) {
	if len(a.targets) == 0 {
		return nil, fmt.Errorf("no purge targets registered")
	}
	targets := make([]retention.Target, 0, len(a.targets))
	for _, fn := range a.targets {
		t, err := fn(db)
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	return retention.NewPruner(a.retention, db, targets), nil
}
