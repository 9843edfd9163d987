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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
connection:
  type: sqlite
  path: ":memory:"
  slow_query_time: 250ms
  max_open_conns: 4
migrate:
  on_startup: true
log:
  level: debug
`

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "quarry.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigMergesFileEnvAndDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, sampleConfig)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("QUARRY_CONNECTION_DBNAME=fromdotenv\n"), 0o644))
	t.Cleanup(func() { _ = os.Unsetenv("QUARRY_CONNECTION_DBNAME") })
	t.Setenv("QUARRY_CONNECTION_HOST", "db.internal")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	c := cfg.Connection
	assert.Equal(t, "sqlite", c.Type)
	assert.Equal(t, ":memory:", c.Path)
	assert.Equal(t, 250*time.Millisecond, c.SlowQueryTime)
	assert.Equal(t, 4, c.MaxOpenConns)
	assert.Equal(t, "db.internal", c.Host)
	assert.Equal(t, "fromdotenv", c.DBName)

	// untouched keys keep their defaults
	assert.Equal(t, 10, c.MaxIdleConns)
	assert.Equal(t, 5*time.Second, c.ReconnectInterval)
	assert.Equal(t, "quarry", cfg.Metrics.Namespace)
	assert.Equal(t, "development", cfg.Init.Environment)
	assert.True(t, cfg.Migrate.OnStartup)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadConfigExplicitPathMustExist(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadConfigSearchFallsBackToDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, *DefaultConfig(), *cfg)
}

func TestLoadConfigRejectsBrokenYAML(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "connection: [unclosed")
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestApplyRuntime(t *testing.T) {
	m := connect(t, testConfig())

	cfg := testConfig()
	cfg.Connection.SlowQueryTime = 3 * time.Second
	cfg.Connection.EnableQueryLog = true
	ApplyRuntime(m, cfg)

	assert.Equal(t, 3*time.Second, m.Hooks().Slow.Threshold())
	assert.True(t, m.Hooks().Query.enabled.Load())

	// no manager only touches the log level
	ApplyRuntime(nil, cfg)
}

func TestWatchConfigReappliesRuntimeSettings(t *testing.T) {
	m := connect(t, testConfig())
	path := writeConfig(t, t.TempDir(), sampleConfig)

	v, err := NewViper(path)
	require.NoError(t, err)
	changed := make(chan *Config, 4)
	WatchConfig(v, m, func(c *Config) {
		select {
		case changed <- c:
		default:
		}
	})

	writeConfig(t, filepath.Dir(path), `
connection:
  type: sqlite
  slow_query_time: 5s
  enable_query_log: true
`)

	require.Eventually(t, func() bool {
		return m.Hooks().Slow.Threshold() == 5*time.Second
	}, 5*time.Second, 20*time.Millisecond)
	select {
	case c := <-changed:
		assert.NotNil(t, c)
	case <-time.After(time.Second):
		t.Fatal("change callback not called")
	}
}
