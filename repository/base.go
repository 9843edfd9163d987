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
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cast"
	"github.com/tomoncle/quarry/database"
	"github.com/tomoncle/quarry/entity"
	"github.com/tomoncle/quarry/query"
	"github.com/tomoncle/quarry/types"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
)

// NameColumn is the column GetByName matches against.
const NameColumn = "name"

type baseRepositoryImpl[T any] struct {
	db       bun.IDB
	meta     *entity.Meta
	pipeline *query.Pipeline
	log      database.Logger
}

// NewRepository returns a generic repository for T backed by db. The entity
// metadata of T is inspected once here.
func NewRepository[T any](db bun.IDB) (Repository[T], error) {
	meta, err := entity.Inspect[T](db)
	if err != nil {
		return nil, fmt.Errorf("repository: %w", err)
	}
	return &baseRepositoryImpl[T]{
		db:       db,
		meta:     meta,
		pipeline: query.NewPipeline(meta),
		log:      database.GetLogger(),
	}, nil
}

func (r *baseRepositoryImpl[T]) WithTx(tx bun.Tx) Repository[T] {
	cp := *r
	cp.db = tx
	return &cp
}

func (r *baseRepositoryImpl[T]) Meta() *entity.Meta { return r.meta }

func (r *baseRepositoryImpl[T]) Dialect() schema.Dialect { return r.db.Dialect() }

func (r *baseRepositoryImpl[T]) NewSelect() *bun.SelectQuery {
	return r.db.NewSelect().Model((*T)(nil))
}

// listing describes one read through the shared select pipeline. The
// WithTrashed variants differ from the plain ones only in scope.
type listing struct {
	scope   types.Scope
	columns []string
	sort    *query.SortDirective
	// latest orders newest first when sort is nil
	latest bool

	params        query.Params
	searchEnabled bool
	term          string
	dates         *types.DateRange
}

func (r *baseRepositoryImpl[T]) build(model interface{}, l listing) (*bun.SelectQuery, error) {
	q, err := query.Open(r.db, model, r.meta, l.scope)
	if err != nil {
		return nil, err
	}
	if len(l.params) > 0 {
		q = r.pipeline.ApplyScoped(q, l.params, l.scope, l.searchEnabled)
	}
	q = query.Search(q, l.term, r.meta.Searchable(), query.TextColumns(r.meta.IsText))
	if l.dates != nil {
		from, to, column := l.dates.Resolve(time.Now())
		if !r.meta.HasColumn(column) {
			return nil, fmt.Errorf("%w: %s.%s", entity.ErrUnknownField, r.meta.Table, column)
		}
		q = q.Where("?TableAlias.? BETWEEN ? AND ?", bun.Ident(column), from, to)
	}
	q = query.Sort(q, r.meta, l.sort, l.columns...)
	if l.sort == nil && l.latest {
		q = query.Latest(q, r.latestColumn())
	}
	return q, nil
}

// latestColumn is created_at when the entity has one and the key otherwise.
func (r *baseRepositoryImpl[T]) latestColumn() string {
	if r.meta.CreatedAt != "" {
		return r.meta.CreatedAt
	}
	return r.meta.Key
}

func (r *baseRepositoryImpl[T]) list(ctx context.Context, l listing) ([]*T, error) {
	entities := make([]*T, 0)
	q, err := r.build(&entities, l)
	if err != nil {
		return nil, err
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return entities, nil
}

func (r *baseRepositoryImpl[T]) paginate(ctx context.Context, page *types.PageRequest, l listing) (*types.Pagination[T], error) {
	if page == nil {
		page = types.NewDefaultPageRequest(1, types.DefaultPageSize)
	}
	if len(l.columns) == 0 {
		l.columns = page.GetColumns()
	}
	var entities []*T
	q, err := r.build(&entities, l)
	if err != nil {
		return nil, err
	}
	total, err := q.Count(ctx)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return types.NewPagination[T](page, 0, nil), nil
	}
	err = q.
		Offset(page.GetOffset()).
		Limit(page.GetPageSize()).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return types.NewPagination[T](page, total, entities), nil
}

func (r *baseRepositoryImpl[T]) first(ctx context.Context, scope types.Scope, where func(*bun.SelectQuery) *bun.SelectQuery) (*T, error) {
	entity := new(T)
	q, err := query.Open(r.db, entity, r.meta, scope)
	if err != nil {
		return nil, err
	}
	err = where(q).Limit(1).Scan(ctx)
	if database.IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return entity, nil
}

func (r *baseRepositoryImpl[T]) byKey(id any) func(*bun.SelectQuery) *bun.SelectQuery {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.? = ?", bun.Ident(r.meta.Key), id)
	}
}

func (r *baseRepositoryImpl[T]) GetById(ctx context.Context, id any) (*T, error) {
	return r.first(ctx, types.ScopeActive, r.byKey(id))
}

func (r *baseRepositoryImpl[T]) GetByIdWithTrashed(ctx context.Context, id any) (*T, error) {
	return r.first(ctx, r.widest(), r.byKey(id))
}

func (r *baseRepositoryImpl[T]) GetByName(ctx context.Context, name string) (*T, error) {
	if !r.meta.HasColumn(NameColumn) {
		return nil, fmt.Errorf("%w: %s.%s", entity.ErrUnknownField, r.meta.Table, NameColumn)
	}
	return r.first(ctx, types.ScopeActive, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.? = ?", bun.Ident(NameColumn), name)
	})
}

// widest is the including-removed scope for soft delete entities and the
// active scope for the rest.
func (r *baseRepositoryImpl[T]) widest() types.Scope {
	if r.meta.SupportsSoftDelete() {
		return types.ScopeWithRemoved
	}
	return types.ScopeActive
}

func (r *baseRepositoryImpl[T]) GetAll(ctx context.Context, columns []string, sort *query.SortDirective) ([]*T, error) {
	return r.list(ctx, listing{scope: types.ScopeActive, columns: columns, sort: sort, latest: true})
}

func (r *baseRepositoryImpl[T]) GetAllWithTrashed(ctx context.Context, columns []string, sort *query.SortDirective) ([]*T, error) {
	return r.list(ctx, listing{scope: r.widest(), columns: columns, sort: sort, latest: true})
}

func (r *baseRepositoryImpl[T]) GetAllRemoved(ctx context.Context, columns []string, sort *query.SortDirective) ([]*T, error) {
	return r.list(ctx, listing{scope: types.ScopeRemovedOnly, columns: columns, sort: sort, latest: true})
}

func (r *baseRepositoryImpl[T]) GetAllPaginated(ctx context.Context, page *types.PageRequest, sort *query.SortDirective) (*types.Pagination[T], error) {
	return r.paginate(ctx, page, listing{scope: types.ScopeActive, sort: sort, latest: true})
}

func (r *baseRepositoryImpl[T]) GetAllPaginatedWithTrashed(ctx context.Context, page *types.PageRequest, sort *query.SortDirective) (*types.Pagination[T], error) {
	return r.paginate(ctx, page, listing{scope: r.widest(), sort: sort, latest: true})
}

func (r *baseRepositoryImpl[T]) GetArrayForSelect(ctx context.Context, value, key string, fn LabelFunc) (map[string]string, error) {
	return r.arrayForSelect(ctx, types.ScopeActive, value, key, fn)
}

func (r *baseRepositoryImpl[T]) GetArrayForSelectWithTrashed(ctx context.Context, value, key string, fn LabelFunc) (map[string]string, error) {
	return r.arrayForSelect(ctx, r.widest(), value, key, fn)
}

func (r *baseRepositoryImpl[T]) arrayForSelect(ctx context.Context, scope types.Scope, value, key string, fn LabelFunc) (map[string]string, error) {
	for _, column := range []string{value, key} {
		if !r.meta.HasColumn(column) {
			return nil, fmt.Errorf("%w: %s.%s", entity.ErrUnknownField, r.meta.Table, column)
		}
	}
	entities, err := r.list(ctx, listing{
		scope:   scope,
		columns: []string{key, value},
		sort:    &query.SortDirective{Field: value, Direction: types.Asc},
	})
	if err != nil {
		return nil, err
	}
	options := make(map[string]string, len(entities))
	for _, e := range entities {
		attrs := r.meta.Attributes(e, key, value)
		label := cast.ToString(attrs[value])
		if fn != nil {
			label = fn(label)
		}
		options[cast.ToString(attrs[key])] = label
	}
	return options, nil
}

func (r *baseRepositoryImpl[T]) Add(ctx context.Context, attrs query.Attributes) (*T, error) {
	return r.Save(ctx, attrs, nil)
}

func (r *baseRepositoryImpl[T]) Update(ctx context.Context, attrs query.Attributes, entity *T) (*T, error) {
	return r.Save(ctx, attrs, entity)
}

func (r *baseRepositoryImpl[T]) Save(ctx context.Context, attrs query.Attributes, entity *T) (*T, error) {
	insert := entity == nil
	if insert {
		entity = new(T)
	}
	if err := r.meta.Fill(entity, query.OnlyFillable(attrs, r.meta)); err != nil {
		return nil, err
	}
	r.meta.Touch(entity, time.Now())

	if insert {
		if _, err := r.db.NewInsert().Model(entity).Exec(ctx); err != nil {
			return nil, err
		}
		return entity, nil
	}

	q := r.db.NewUpdate().Model(entity).WherePK()
	if query.IsRemoved(r.meta, entity) {
		q = q.WhereAllWithDeleted()
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, fmt.Errorf("%w: %s has no row for the given key", sql.ErrNoRows, r.meta.Table)
	}
	return entity, nil
}

func (r *baseRepositoryImpl[T]) FirstOrCreate(ctx context.Context, attrs query.Attributes) (*T, error) {
	attrs = query.OnlyFillable(attrs, r.meta)
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	found, err := r.first(ctx, types.ScopeActive, func(q *bun.SelectQuery) *bun.SelectQuery {
		for _, k := range keys {
			if attrs[k] == nil {
				q = q.Where("?TableAlias.? IS NULL", bun.Ident(k))
				continue
			}
			q = q.Where("?TableAlias.? = ?", bun.Ident(k), attrs[k])
		}
		return q
	})
	if err != nil || found != nil {
		return found, err
	}
	return r.Save(ctx, attrs, nil)
}

func (r *baseRepositoryImpl[T]) Destroy(ctx context.Context, entity *T) error {
	_, err := r.db.NewDelete().Model(entity).WherePK().Exec(ctx)
	return err
}

func (r *baseRepositoryImpl[T]) ForceDestroy(ctx context.Context, entity *T) error {
	_, err := r.db.NewDelete().Model(entity).WherePK().ForceDelete().Exec(ctx)
	return err
}

func (r *baseRepositoryImpl[T]) Restore(ctx context.Context, entity *T) (*T, error) {
	if err := query.Restore(ctx, r.db, r.meta, entity); err != nil {
		return nil, err
	}
	return entity, nil
}

func (r *baseRepositoryImpl[T]) RestoreById(ctx context.Context, id any) (*T, error) {
	if err := query.CheckScope(r.meta, types.ScopeRemovedOnly); err != nil {
		return nil, err
	}
	entity, err := r.first(ctx, types.ScopeRemovedOnly, r.byKey(id))
	if err != nil || entity == nil {
		return nil, err
	}
	return r.Restore(ctx, entity)
}

func (r *baseRepositoryImpl[T]) PurgeRemoved(ctx context.Context, before time.Time) (int64, error) {
	if !r.meta.SupportsSoftDelete() {
		return 0, fmt.Errorf("%w: %s", query.ErrSoftDeleteUnsupported, r.meta.Table)
	}
	// unqualified: not every dialect aliases the table of a DELETE
	res, err := r.db.NewDelete().
		Model((*T)(nil)).
		WhereDeleted().
		Where("? < ?", bun.Ident(r.meta.SoftDeleteColumn), before.UTC()).
		ForceDelete().
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	r.log.Debug("Purged removed records", "entity", r.meta.Table, "before", before.UTC(), "count", n)
	return n, nil
}

func (r *baseRepositoryImpl[T]) Search(ctx context.Context, term string, page *types.PageRequest, sort *query.SortDirective) (*types.Pagination[T], error) {
	return r.paginate(ctx, page, listing{scope: types.ScopeActive, term: term, sort: sort})
}

func (r *baseRepositoryImpl[T]) SearchWithTrashed(ctx context.Context, term string, page *types.PageRequest, sort *query.SortDirective) (*types.Pagination[T], error) {
	return r.paginate(ctx, page, listing{scope: r.widest(), term: term, sort: sort})
}

func (r *baseRepositoryImpl[T]) filtered(params query.Params, opts FilterOptions) listing {
	scope := types.ScopeActive
	if opts.WithTrashed || query.IncludesRemoved(params) {
		scope = r.widest()
	}
	return listing{
		scope:         scope,
		columns:       opts.Columns,
		sort:          opts.Sort,
		params:        params,
		searchEnabled: !opts.SkipSearch,
	}
}

func (r *baseRepositoryImpl[T]) Filter(ctx context.Context, params query.Params, opts FilterOptions) ([]*T, error) {
	return r.list(ctx, r.filtered(params, opts))
}

func (r *baseRepositoryImpl[T]) FilterPaginated(ctx context.Context, params query.Params, page *types.PageRequest, opts FilterOptions) (*types.Pagination[T], error) {
	if page == nil {
		page = types.NewDefaultPageRequest(0, types.DefaultPageSize)
	}
	req := *page
	if !req.HasPage() {
		req.SetPage(params.Int(req.GetPageName()))
	}
	return r.paginate(ctx, &req, r.filtered(params, opts))
}

func (r *baseRepositoryImpl[T]) GetDateBetween(ctx context.Context, rng types.DateRange, columns []string, sort *query.SortDirective) ([]*T, error) {
	return r.list(ctx, listing{scope: types.ScopeActive, columns: columns, sort: sort, dates: &rng})
}

func (r *baseRepositoryImpl[T]) GetDateBetweenWithTrashed(ctx context.Context, rng types.DateRange, columns []string, sort *query.SortDirective) ([]*T, error) {
	return r.list(ctx, listing{scope: r.widest(), columns: columns, sort: sort, dates: &rng})
}

func (r *baseRepositoryImpl[T]) GetDateBetweenPaginated(ctx context.Context, rng types.DateRange, page *types.PageRequest, sort *query.SortDirective) (*types.Pagination[T], error) {
	return r.paginate(ctx, page, listing{scope: types.ScopeActive, sort: sort, dates: &rng})
}

func (r *baseRepositoryImpl[T]) GetDateBetweenPaginatedWithTrashed(ctx context.Context, rng types.DateRange, page *types.PageRequest, sort *query.SortDirective) (*types.Pagination[T], error) {
	return r.paginate(ctx, page, listing{scope: r.widest(), sort: sort, dates: &rng})
}
