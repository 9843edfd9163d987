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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
	"gopkg.in/yaml.v3"
)

var fkActions = []string{"CASCADE", "RESTRICT", "SET NULL", "SET DEFAULT", "NO ACTION"}

// ForeignKeyConstraint describes a foreign key relationship between tables.
type ForeignKeyConstraint struct {
	Table           string `yaml:"table"`
	Column          string `yaml:"column"`
	ReferenceTable  string `yaml:"reference_table"`
	ReferenceColumn string `yaml:"reference_column"`
	OnDelete        string `yaml:"on_delete,omitempty"` // CASCADE, RESTRICT, SET NULL, NO ACTION
	OnUpdate        string `yaml:"on_update,omitempty"`
	ConstraintName  string `yaml:"constraint_name,omitempty"`
	Description     string `yaml:"description,omitempty"`
}

// ForeignKeyConfig is the layout of the foreign key YAML file.
type ForeignKeyConfig struct {
	ForeignKeys []ForeignKeyConstraint `yaml:"foreign_keys"`
}

// Name returns the explicit constraint name or fk_<table>_<column>.
func (fk ForeignKeyConstraint) Name() string {
	if fk.ConstraintName != "" {
		return fk.ConstraintName
	}
	return fmt.Sprintf("fk_%s_%s", fk.Table, fk.Column)
}

// Query builds the ALTER TABLE statement with identifiers quoted for db.
func (fk ForeignKeyConstraint) Query(db bun.IDB) *bun.RawQuery {
	s := "ALTER TABLE ? ADD CONSTRAINT ? FOREIGN KEY (?) REFERENCES ? (?)"
	if fk.OnDelete != "" {
		s += " ON DELETE " + strings.ToUpper(fk.OnDelete)
	}
	if fk.OnUpdate != "" {
		s += " ON UPDATE " + strings.ToUpper(fk.OnUpdate)
	}
	return db.NewRaw(s,
		bun.Ident(fk.Table), bun.Ident(fk.Name()), bun.Ident(fk.Column),
		bun.Ident(fk.ReferenceTable), bun.Ident(fk.ReferenceColumn))
}

func (fk ForeignKeyConstraint) String() string {
	return fmt.Sprintf("%s.%s -> %s.%s", fk.Table, fk.Column, fk.ReferenceTable, fk.ReferenceColumn)
}

// DeriveForeignKeys reads the single column belongs-to relations of models.
// Relations declared with on_delete or on_update keep their rule.
func DeriveForeignKeys(db *bun.DB, models ...interface{}) []ForeignKeyConstraint {
	var out []ForeignKeyConstraint
	for _, model := range models {
		typ := reflect.TypeOf(model)
		for typ.Kind() == reflect.Ptr {
			typ = typ.Elem()
		}
		table := db.Table(typ)
		for _, rel := range table.Relations {
			if rel.Type != schema.BelongsToRelation || len(rel.BasePKs) != 1 || len(rel.JoinPKs) != 1 {
				continue
			}
			fk := ForeignKeyConstraint{
				Table:           table.Name,
				Column:          rel.BasePKs[0].Name,
				ReferenceTable:  rel.JoinTable.Name,
				ReferenceColumn: rel.JoinPKs[0].Name,
				OnDelete:        strings.TrimPrefix(rel.OnDelete, "ON DELETE "),
				OnUpdate:        strings.TrimPrefix(rel.OnUpdate, "ON UPDATE "),
			}
			fk.Description = fk.String()
			out = append(out, fk)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Table != out[j].Table {
			return out[i].Table < out[j].Table
		}
		return out[i].Column < out[j].Column
	})
	return out
}

// LoadForeignKeys reads constraints from a YAML file.
func LoadForeignKeys(path string) ([]ForeignKeyConstraint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read foreign key file: %w", err)
	}
	var config ForeignKeyConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse foreign key file: %w", err)
	}
	return config.ForeignKeys, nil
}

// ForeignKeyManager adds, removes and validates foreign key constraints.
type ForeignKeyManager struct {
	constraints []ForeignKeyConstraint
	logger      Logger
}

func NewForeignKeyManager(logger Logger, constraints ...ForeignKeyConstraint) *ForeignKeyManager {
	if logger == nil {
		logger = GetLogger()
	}
	return &ForeignKeyManager{constraints: constraints, logger: logger}
}

// NewForeignKeyManagerFromFile prefers the YAML file at path and falls back
// to the relations of models when the file does not exist.
func NewForeignKeyManagerFromFile(logger Logger, path string, db *bun.DB, models ...interface{}) (*ForeignKeyManager, error) {
	if path != "" {
		constraints, err := LoadForeignKeys(path)
		switch {
		case err == nil:
			return NewForeignKeyManager(logger, constraints...), nil
		case !errors.Is(err, os.ErrNotExist):
			return nil, err
		}
	}
	return NewForeignKeyManager(logger, DeriveForeignKeys(db, models...)...), nil
}

// AddAll adds every constraint. Failures are logged and skipped since a
// constraint may already exist; the number of constraints added is returned.
func (m *ForeignKeyManager) AddAll(ctx context.Context, db bun.IDB) int {
	added := 0
	for _, fk := range m.constraints {
		if _, err := fk.Query(db).Exec(ctx); err != nil {
			m.logger.Debug("Failed to add foreign key constraint", "constraint", fk.Name(), "error", err)
			continue
		}
		added++
		m.logger.Debug("Added foreign key constraint", "constraint", fk.Name())
	}
	return added
}

// Remove drops a named foreign key from a table.
func (m *ForeignKeyManager) Remove(ctx context.Context, db bun.IDB, table, name string) error {
	_, err := db.NewRaw("ALTER TABLE ? DROP CONSTRAINT ?", bun.Ident(table), bun.Ident(name)).Exec(ctx)
	return err
}

func (m *ForeignKeyManager) ByTable(table string) []ForeignKeyConstraint {
	var result []ForeignKeyConstraint
	for _, fk := range m.constraints {
		if strings.EqualFold(fk.Table, table) {
			result = append(result, fk)
		}
	}
	return result
}

func (m *ForeignKeyManager) Constraints() []ForeignKeyConstraint {
	return append([]ForeignKeyConstraint(nil), m.constraints...)
}

// Validate reports every incomplete constraint and unknown action.
func (m *ForeignKeyManager) Validate() error {
	var errs []error
	for _, fk := range m.constraints {
		if fk.Table == "" || fk.Column == "" || fk.ReferenceTable == "" || fk.ReferenceColumn == "" {
			errs = append(errs, fmt.Errorf("incomplete foreign key %q: %s", fk.Name(), fk))
		}
		for _, action := range []string{fk.OnDelete, fk.OnUpdate} {
			if action != "" && !knownAction(action) {
				errs = append(errs, fmt.Errorf("invalid action %q on foreign key %q", action, fk.Name()))
			}
		}
	}
	return errors.Join(errs...)
}

// Export writes the constraints as YAML, creating parent directories.
func (m *ForeignKeyManager) Export(path string) error {
	data, err := yaml.Marshal(&ForeignKeyConfig{ForeignKeys: m.constraints})
	if err != nil {
		return fmt.Errorf("failed to serialize foreign keys: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func knownAction(action string) bool {
	for _, a := range fkActions {
		if strings.EqualFold(action, a) {
			return true
		}
	}
	return false
}
