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

package retention

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Config controls how long removed records are kept and when they are
// purged.
type Config struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// RetentionDays is the number of days a removed record is kept.
	RetentionDays int `mapstructure:"retention_days" yaml:"retention_days"`
	// Retention overrides RetentionDays when positive.
	Retention time.Duration `mapstructure:"retention" yaml:"retention"`
	// PruneSchedule is a standard 5-field cron expression or a descriptor
	// such as "@daily". Empty disables scheduling.
	PruneSchedule string `mapstructure:"prune_schedule" yaml:"prune_schedule"`
	// RecordRuns stores a row per prune run in the quarry_purge_runs table.
	RecordRuns bool `mapstructure:"record_runs" yaml:"record_runs"`
}

func DefaultConfig() *Config {
	return &Config{
		RetentionDays: 30,
		PruneSchedule: "0 3 * * *",
		RecordRuns:    true,
	}
}

// Window returns how long removed records are kept.
func (c *Config) Window() time.Duration {
	if c.Retention > 0 {
		return c.Retention
	}
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

func (c *Config) Validate() error {
	if c.Window() <= 0 {
		return errors.New("retention window must be positive")
	}
	if c.PruneSchedule != "" {
		if _, err := cron.ParseStandard(c.PruneSchedule); err != nil {
			return fmt.Errorf("invalid cron schedule %q: %w", c.PruneSchedule, err)
		}
	}
	return nil
}
