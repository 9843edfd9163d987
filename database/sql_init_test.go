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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSQL(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestSplitSQLStatements(t *testing.T) {
	stmts := splitSQLStatements(`
-- teams
INSERT INTO teams (name)
  VALUES ('red');

INSERT INTO teams (name) VALUES ('blue');
SELECT 1`)
	assert.Equal(t, []string{
		"INSERT INTO teams (name) VALUES ('red');",
		"INSERT INTO teams (name) VALUES ('blue');",
		"SELECT 1",
	}, stmts)
	assert.Empty(t, splitSQLStatements("-- nothing\n\n"))
}

func TestParseFileOrder(t *testing.T) {
	assert.Equal(t, 1, parseFileOrder("001_teams.sql"))
	assert.Equal(t, 10, parseFileOrder("010_more.sql"))
	assert.Equal(t, 0, parseFileOrder("000_first.sql"))
	assert.Equal(t, 999, parseFileOrder("teams.sql"))
}

func TestGetSQLFilesOrdersCommonFirst(t *testing.T) {
	root := t.TempDir()
	writeSQL(t, root, "common/010_b.sql", "")
	writeSQL(t, root, "common/002_a.sql", "")
	writeSQL(t, root, "common/readme.txt", "")
	writeSQL(t, root, "environments/test/001_env.sql", "")
	writeSQL(t, root, "environments/prod/001_prod.sql", "")

	s := NewSQLInitManager(nil, "test")
	s.SetSQLRootPath(root)
	files, err := s.GetSQLFiles()
	require.NoError(t, err)

	var names []string
	for _, f := range files {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"002_a.sql", "010_b.sql", "001_env.sql"}, names)
}

func TestExecuteInitialization(t *testing.T) {
	m := connect(t, testConfig())
	ctx := context.Background()
	require.NoError(t, m.RunMigrations(ctx))

	root := t.TempDir()
	writeSQL(t, root, "common/001_teams.sql", "INSERT INTO teams (name) VALUES ('red');\nINSERT INTO teams (name) VALUES ('blue');\n")
	writeSQL(t, root, "environments/test/001_env.sql", "INSERT INTO teams (name) VALUES ('{{.ENVIRONMENT}}');")

	s := NewSQLInitManager(m.GetDB(), "test")
	s.SetSQLRootPath(root)
	s.SetLogger(&recordingLogger{})
	results, err := s.ExecuteInitialization(ctx)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, int64(2), results[0].RowsAffected)
	assert.True(t, results[1].Success())

	var names []string
	require.NoError(t, m.GetDB().NewSelect().Model((*team)(nil)).Column("name").Order("id").Scan(ctx, &names))
	assert.Equal(t, []string{"red", "blue", "test"}, names)
}

func TestExecuteInitializationStopsAtFailingFile(t *testing.T) {
	m := connect(t, testConfig())
	ctx := context.Background()
	require.NoError(t, m.RunMigrations(ctx))

	root := t.TempDir()
	writeSQL(t, root, "common/001_bad.sql", "INSERT INTO teams (name) VALUES ('half');\nINSERT INTO nowhere VALUES (1);")
	writeSQL(t, root, "common/002_never.sql", "INSERT INTO teams (name) VALUES ('never');")

	s := NewSQLInitManager(m.GetDB(), "test")
	s.SetSQLRootPath(root)
	s.SetLogger(&recordingLogger{})
	results, err := s.ExecuteInitialization(ctx)
	require.Error(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].Success())

	count, err := m.GetDB().NewSelect().Model((*team)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestManagerInitDataUsesConfig(t *testing.T) {
	root := t.TempDir()
	writeSQL(t, root, "environments/staging/001_seed.sql", "INSERT INTO teams (name) VALUES ('staging');")

	cfg := testConfig()
	cfg.Init = InitConfig{Path: root, Environment: "staging", AfterMigrate: true}
	m := connect(t, cfg)
	ctx := context.Background()

	require.NoError(t, m.RunMigrations(ctx))
	count, err := m.GetDB().NewSelect().Model((*team)(nil)).Where("name = ?", "staging").Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
