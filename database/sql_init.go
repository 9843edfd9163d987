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
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"text/template"
	"time"

	"github.com/spf13/cast"
	"github.com/uptrace/bun"
)

const commonEnvironment = "common"

var fileOrderPattern = regexp.MustCompile(`^(\d+)_`)

// SQLInitManager discovers and executes SQL seed files.
type SQLInitManager struct {
	db          bun.IDB
	environment string
	sqlRootPath string
	logger      Logger
}

// SQLFileInfo describes a SQL file to be executed during initialization.
type SQLFileInfo struct {
	Path        string
	Name        string
	Order       int
	Environment string
	ModTime     time.Time
}

// ExecutionResult contains the outcome of executing a single SQL file.
type ExecutionResult struct {
	File         string
	Error        error
	Duration     time.Duration
	RowsAffected int64
}

func (r ExecutionResult) Success() bool { return r.Error == nil }

func NewSQLInitManager(db bun.IDB, environment string) *SQLInitManager {
	return &SQLInitManager{
		db:          db,
		environment: environment,
		sqlRootPath: "configs/sql",
		logger:      GetLogger(),
	}
}

func (s *SQLInitManager) SetSQLRootPath(path string) {
	s.sqlRootPath = path
}

func (s *SQLInitManager) SetLogger(l Logger) {
	if l != nil {
		s.logger = l
	}
}

// ExecuteInitialization runs the discovered files in order, each in its own
// transaction, and stops at the first failure.
func (s *SQLInitManager) ExecuteInitialization(ctx context.Context) ([]ExecutionResult, error) {
	s.logger.Info("Starting SQL initialization", "environment", s.environment, "sql_path", s.sqlRootPath)

	files, err := s.GetSQLFiles()
	if err != nil {
		return nil, fmt.Errorf("failed to get SQL files: %w", err)
	}
	if len(files) == 0 {
		s.logger.Info("No SQL files found to execute")
		return nil, nil
	}

	results := make([]ExecutionResult, 0, len(files))
	for _, file := range files {
		result := s.executeFile(ctx, file)
		results = append(results, result)
		if !result.Success() {
			s.logger.Error("SQL file execution failed", "file", result.File, "error", result.Error)
			return results, fmt.Errorf("SQL file execution failed %s: %w", result.File, result.Error)
		}
		s.logger.Info("SQL file executed", "file", result.File, "duration", result.Duration, "rows_affected", result.RowsAffected)
	}

	s.logger.Info("SQL initialization completed", "total_files", len(results), "environment", s.environment)
	return results, nil
}

// GetSQLFiles lists <root>/common then <root>/environments/<env>, each
// ordered by the numeric file name prefix.
func (s *SQLInitManager) GetSQLFiles() ([]SQLFileInfo, error) {
	var files []SQLFileInfo

	commonPath := filepath.Join(s.sqlRootPath, commonEnvironment)
	if _, err := os.Stat(commonPath); err == nil {
		commonFiles, err := s.getFilesFromDir(commonPath, commonEnvironment)
		if err != nil {
			return nil, fmt.Errorf("failed to get common SQL files: %w", err)
		}
		files = append(files, commonFiles...)
	}

	envPath := filepath.Join(s.sqlRootPath, "environments", s.environment)
	if _, err := os.Stat(envPath); err == nil {
		envFiles, err := s.getFilesFromDir(envPath, s.environment)
		if err != nil {
			return nil, fmt.Errorf("failed to get environment SQL files: %w", err)
		}
		files = append(files, envFiles...)
	}

	sort.SliceStable(files, func(i, j int) bool {
		if files[i].Environment != files[j].Environment {
			return files[i].Environment == commonEnvironment
		}
		if files[i].Order != files[j].Order {
			return files[i].Order < files[j].Order
		}
		return files[i].Name < files[j].Name
	})
	return files, nil
}

func (s *SQLInitManager) getFilesFromDir(dir, environment string) ([]SQLFileInfo, error) {
	var files []SQLFileInfo
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), ".sql") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		files = append(files, SQLFileInfo{
			Path:        path,
			Name:        d.Name(),
			Order:       parseFileOrder(d.Name()),
			Environment: environment,
			ModTime:     info.ModTime(),
		})
		return nil
	})
	return files, err
}

// parseFileOrder reads the NNN_ prefix; files without one run last.
func parseFileOrder(filename string) int {
	if m := fileOrderPattern.FindStringSubmatch(filename); len(m) > 1 {
		return cast.ToInt(strings.TrimLeft(m[1], "0"))
	}
	return 999
}

func (s *SQLInitManager) executeFile(ctx context.Context, file SQLFileInfo) (result ExecutionResult) {
	start := time.Now()
	result.File = file.Path
	defer func() { result.Duration = time.Since(start) }()

	content, err := os.ReadFile(file.Path)
	if err != nil {
		result.Error = fmt.Errorf("failed to read file: %w", err)
		return result
	}
	text := string(content)
	if strings.Contains(text, "{{") {
		if text, err = s.renderTemplate(text); err != nil {
			result.Error = err
			return result
		}
	}

	statements := splitSQLStatements(text)
	if len(statements) == 0 {
		return result
	}

	result.Error = s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var total int64
		for _, stmt := range statements {
			res, err := tx.ExecContext(ctx, stmt)
			if err != nil {
				return fmt.Errorf("failed to execute SQL statement: %s, error: %w", stmt, err)
			}
			n, _ := res.RowsAffected()
			total += n
		}
		result.RowsAffected = total
		return nil
	})
	return result
}

// renderTemplate exposes the environment variables plus ENVIRONMENT and
// TIMESTAMP to text/template.
func (s *SQLInitManager) renderTemplate(content string) (string, error) {
	tmpl, err := template.New("sql").Option("missingkey=zero").Parse(content)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	vars := make(map[string]string)
	for _, env := range os.Environ() {
		if k, v, ok := strings.Cut(env, "="); ok {
			vars[k] = v
		}
	}
	vars["ENVIRONMENT"] = s.environment
	vars["TIMESTAMP"] = time.Now().Format("2006-01-02 15:04:05")

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.String(), nil
}

// splitSQLStatements splits on trailing semicolons and drops full line
// comments. Semicolons inside string literals spanning lines are not handled.
func splitSQLStatements(content string) []string {
	var statements []string
	var current strings.Builder

	flush := func() {
		if stmt := strings.TrimSpace(current.String()); stmt != "" {
			statements = append(statements, stmt)
		}
		current.Reset()
	}

	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		current.WriteString(line)
		current.WriteString(" ")
		if strings.HasSuffix(line, ";") {
			flush()
		}
	}
	flush()
	return statements
}
