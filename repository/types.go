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

package repository

import (
	"context"
	"time"

	"github.com/tomoncle/quarry/entity"
	"github.com/tomoncle/quarry/query"
	"github.com/tomoncle/quarry/types"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
)

// FilterOptions tunes a Filter call.
type FilterOptions struct {
	// Sort orders the result; nil keeps the store order.
	Sort *query.SortDirective
	// Columns restricts the projection; empty selects every column.
	Columns []string
	// WithTrashed includes soft-deleted records.
	WithTrashed bool
	// SkipSearch turns off free-text search while other filters still apply.
	SkipSearch bool
}

// LabelFunc transforms the labels built by GetArrayForSelect.
type LabelFunc func(string) string

// ReadRepository defines lookups and listings. Every WithTrashed variant
// also returns soft-deleted records.
type ReadRepository[T any] interface {
	// GetById returns nil, nil when no record matches.
	GetById(ctx context.Context, id any) (*T, error)
	GetByIdWithTrashed(ctx context.Context, id any) (*T, error)

	// GetByName looks up the first record whose name column equals name.
	GetByName(ctx context.Context, name string) (*T, error)

	// GetAll lists records newest first unless sort is given.
	GetAll(ctx context.Context, columns []string, sort *query.SortDirective) ([]*T, error)
	GetAllWithTrashed(ctx context.Context, columns []string, sort *query.SortDirective) ([]*T, error)
	GetAllRemoved(ctx context.Context, columns []string, sort *query.SortDirective) ([]*T, error)

	GetAllPaginated(ctx context.Context, page *types.PageRequest, sort *query.SortDirective) (*types.Pagination[T], error)
	GetAllPaginatedWithTrashed(ctx context.Context, page *types.PageRequest, sort *query.SortDirective) (*types.Pagination[T], error)

	// GetArrayForSelect maps key to value for every record, ordered by value.
	// fn, when set, rewrites each value.
	GetArrayForSelect(ctx context.Context, value, key string, fn LabelFunc) (map[string]string, error)
	GetArrayForSelectWithTrashed(ctx context.Context, value, key string, fn LabelFunc) (map[string]string, error)
}

// WriteRepository defines persistence. Attribute maps are reduced to the
// entity's fillable columns before they touch a record.
type WriteRepository[T any] interface {
	Add(ctx context.Context, attrs query.Attributes) (*T, error)
	Update(ctx context.Context, attrs query.Attributes, entity *T) (*T, error)

	// Save inserts a new record when entity is nil and updates entity otherwise.
	Save(ctx context.Context, attrs query.Attributes, entity *T) (*T, error)

	// FirstOrCreate returns the first record matching attrs or inserts one.
	FirstOrCreate(ctx context.Context, attrs query.Attributes) (*T, error)

	Upsert(ctx context.Context, fields []string, duplicateKeys []string, entity ...*T) error

	// Destroy soft deletes entity when supported and deletes it otherwise.
	Destroy(ctx context.Context, entity *T) error
	ForceDestroy(ctx context.Context, entity *T) error

	Restore(ctx context.Context, entity *T) (*T, error)
	// RestoreById returns nil, nil when no removed record matches.
	RestoreById(ctx context.Context, id any) (*T, error)

	// PurgeRemoved hard deletes records removed before the cutoff.
	PurgeRemoved(ctx context.Context, before time.Time) (int64, error)
}

// FilterRepository defines search, filtering and date windows.
type FilterRepository[T any] interface {
	Search(ctx context.Context, term string, page *types.PageRequest, sort *query.SortDirective) (*types.Pagination[T], error)
	SearchWithTrashed(ctx context.Context, term string, page *types.PageRequest, sort *query.SortDirective) (*types.Pagination[T], error)

	// Filter applies the entity's registered filters named in params. A
	// truthy "trashed" parameter includes removed records.
	Filter(ctx context.Context, params query.Params, opts FilterOptions) ([]*T, error)
	// FilterPaginated reads the page number from params when page has none.
	FilterPaginated(ctx context.Context, params query.Params, page *types.PageRequest, opts FilterOptions) (*types.Pagination[T], error)

	GetDateBetween(ctx context.Context, rng types.DateRange, columns []string, sort *query.SortDirective) ([]*T, error)
	GetDateBetweenWithTrashed(ctx context.Context, rng types.DateRange, columns []string, sort *query.SortDirective) ([]*T, error)
	GetDateBetweenPaginated(ctx context.Context, rng types.DateRange, page *types.PageRequest, sort *query.SortDirective) (*types.Pagination[T], error)
	GetDateBetweenPaginatedWithTrashed(ctx context.Context, rng types.DateRange, page *types.PageRequest, sort *query.SortDirective) (*types.Pagination[T], error)
}

// Repository combines reads, writes and filters and exposes Bun query
// builders for advanced use cases.
type Repository[T any] interface {
	ReadRepository[T]
	WriteRepository[T]
	FilterRepository[T]

	// WithTx returns a repository running its queries in tx.
	WithTx(tx bun.Tx) Repository[T]
	Meta() *entity.Meta
	Dialect() schema.Dialect
	NewSelect() *bun.SelectQuery
}
