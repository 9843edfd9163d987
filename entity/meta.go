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

package entity

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/gobeam/stringy"
	"github.com/jinzhu/inflection"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
)

const (
	SearchFilter    = "search"
	CreatedAtColumn = "created_at"
	UpdatedAtColumn = "updated_at"
	relatedOwnerKey = "id"
)

var (
	ErrNoPrimaryKey = errors.New("entity has no primary key")
	ErrUnknownField = errors.New("unknown entity field")
	ErrNotAStruct   = errors.New("entity must be a struct")

	timeType = reflect.TypeOf(time.Time{})
)

// Meta is the read-only description of one model type. It is built once by
// Inspect and shared by every query against that type.
type Meta struct {
	Type             reflect.Type
	Table            string
	Alias            string
	Key              string
	Fillable         []string
	Hidden           []string
	Dates            []string
	Filters          []string
	SoftDeleteColumn string
	CreatedAt        string
	UpdatedAt        string

	table      *schema.Table
	spec       FilterSpec
	relations  map[string]Relation
	searchable []string
	fillable   map[string]struct{}
	filters    map[string]struct{}
}

type registryKey struct {
	typ     reflect.Type
	dialect string
}

var (
	registryMu sync.RWMutex
	registry   = map[registryKey]*Meta{}
)

// Inspect returns the metadata for T, building and caching it on first use.
func Inspect[T any](db bun.IDB) (*Meta, error) {
	return InspectType(db, reflect.TypeOf((*T)(nil)).Elem())
}

// InspectType is Inspect for a reflect.Type.
func InspectType(db bun.IDB, typ reflect.Type) (*Meta, error) {
	for typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: got %s", ErrNotAStruct, typ)
	}
	key := registryKey{typ: typ, dialect: db.Dialect().Name().String()}

	registryMu.RLock()
	meta, ok := registry[key]
	registryMu.RUnlock()
	if ok {
		return meta, nil
	}

	registryMu.Lock()
	defer registryMu.Unlock()
	if meta, ok := registry[key]; ok {
		return meta, nil
	}
	meta, err := newMeta(db.Dialect().Tables().Get(typ))
	if err != nil {
		return nil, err
	}
	registry[key] = meta
	return meta, nil
}

func newMeta(table *schema.Table) (*Meta, error) {
	if len(table.PKs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoPrimaryKey, table.TypeName)
	}
	m := &Meta{
		Type:      table.Type,
		Table:     table.Name,
		Alias:     table.Alias,
		Key:       table.PKs[0].Name,
		table:     table,
		relations: make(map[string]Relation),
	}
	if table.SoftDeleteField != nil {
		m.SoftDeleteColumn = table.SoftDeleteField.Name
	}
	if f, ok := table.FieldMap[CreatedAtColumn]; ok && f.IndirectType == timeType {
		m.CreatedAt = CreatedAtColumn
	}
	if f, ok := table.FieldMap[UpdatedAtColumn]; ok && f.IndirectType == timeType {
		m.UpdatedAt = UpdatedAtColumn
	}

	model := reflect.New(table.Type).Interface()

	if d, ok := model.(Dated); ok {
		m.Dates = d.Dates()
	} else {
		for _, f := range table.Fields {
			if f.IndirectType == timeType || f == table.SoftDeleteField {
				m.Dates = append(m.Dates, f.Name)
			}
		}
	}

	if f, ok := model.(Fillable); ok {
		m.Fillable = f.Fillable()
	} else {
		for _, f := range table.DataFields {
			if f != table.SoftDeleteField && !contains(m.Dates, f.Name) {
				m.Fillable = append(m.Fillable, f.Name)
			}
		}
	}
	if h, ok := model.(Hidden); ok {
		m.Hidden = h.Hidden()
	}
	m.Filters = []string{SearchFilter}
	if f, ok := model.(Filterable); ok {
		m.Filters = f.Filters()
	}
	m.spec = FilterSpec{}
	if p, ok := model.(FilterProvider); ok {
		for name, fn := range p.FilterSpec() {
			m.spec[name] = fn
		}
	}

	for _, name := range m.Fillable {
		if _, ok := table.FieldMap[name]; !ok {
			return nil, fmt.Errorf("%w: fillable %s.%s", ErrUnknownField, table.Name, name)
		}
	}

	for _, rel := range table.Relations {
		if rel.Type != schema.BelongsToRelation || len(rel.BasePKs) != 1 || len(rel.JoinPKs) != 1 {
			continue
		}
		m.relations[rel.Field.Name] = Relation{
			Table:      rel.JoinTable.Name,
			ForeignKey: rel.BasePKs[0].Name,
			OwnerKey:   rel.JoinPKs[0].Name,
		}
	}
	if r, ok := model.(Related); ok {
		for name, rel := range r.Relations() {
			m.relations[SnakeCase(name)] = rel
		}
	}

	m.fillable = toSet(m.Fillable)
	m.filters = toSet(m.Filters)
	m.searchable = m.computeSearchable()
	return m, nil
}

// computeSearchable is fillable minus hidden, dates and the key.
func (m *Meta) computeSearchable() []string {
	excluded := toSet(m.Hidden)
	for _, d := range m.Dates {
		excluded[d] = struct{}{}
	}
	excluded[m.Key] = struct{}{}

	columns := make([]string, 0, len(m.Fillable))
	for _, c := range m.Fillable {
		if _, ok := excluded[c]; !ok {
			columns = append(columns, c)
		}
	}
	return columns
}

// SupportsSoftDelete reports whether the model carries a bun soft_delete column.
func (m *Meta) SupportsSoftDelete() bool { return m.SoftDeleteColumn != "" }

func (m *Meta) IsFillable(column string) bool {
	_, ok := m.fillable[column]
	return ok
}

// AllowsFilter reports whether name is in the filter allowlist.
func (m *Meta) AllowsFilter(name string) bool {
	_, ok := m.filters[name]
	return ok
}

// FilterFunc returns the registered predicate for name.
func (m *Meta) FilterFunc(name string) (FilterFunc, bool) {
	fn, ok := m.spec[name]
	return fn, ok
}

// Searchable returns the columns free-text search runs over.
func (m *Meta) Searchable() []string {
	columns := make([]string, len(m.searchable))
	copy(columns, m.searchable)
	return columns
}

// IsText reports whether column maps to a string field. Unknown columns are
// not text.
func (m *Meta) IsText(column string) bool {
	f, ok := m.table.FieldMap[column]
	return ok && f.IndirectType.Kind() == reflect.String
}

func (m *Meta) HasColumn(column string) bool {
	_, ok := m.table.FieldMap[column]
	return ok
}

// SchemaTable exposes the underlying bun table.
func (m *Meta) SchemaTable() *schema.Table { return m.table }

// Relation resolves a relation name to the joined table and its keys. Declared
// relations and bun belongs-to relations win; otherwise the table is the
// plural of the snake cased name and the foreign key its singular plus _id.
func (m *Meta) Relation(name string) Relation {
	snake := SnakeCase(name)
	if rel, ok := m.relations[snake]; ok {
		return rel
	}
	return Relation{
		Table:      inflection.Plural(snake),
		ForeignKey: inflection.Singular(snake) + "_id",
		OwnerKey:   relatedOwnerKey,
	}
}

// SnakeCase lower snake cases a Go or camelCase identifier.
func SnakeCase(s string) string {
	return stringy.New(s).SnakeCase("?", "").ToLower()
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		set[item] = struct{}{}
	}
	return set
}

func contains(items []string, item string) bool {
	for _, it := range items {
		if it == item {
			return true
		}
	}
	return false
}
