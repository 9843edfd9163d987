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

package query

import (
	"sort"

	"github.com/spf13/cast"
	"github.com/tomoncle/quarry/database"
	"github.com/tomoncle/quarry/entity"
	"github.com/tomoncle/quarry/types"
	"github.com/uptrace/bun"
)

// Pipeline dispatches request parameters to the filter functions an entity
// registered. It holds no per-request state and may be shared.
type Pipeline struct {
	Meta   *entity.Meta
	Logger database.Logger
}

// NewPipeline returns a pipeline for meta logging through the database logger.
func NewPipeline(meta *entity.Meta) *Pipeline {
	return &Pipeline{Meta: meta, Logger: database.GetLogger()}
}

// Apply folds params into q. Only allowlisted, non-empty parameters reach
// their filter function; everything else is ignored. When searchEnabled is
// set the search parameter additionally runs free-text search over the
// entity's searchable columns.
func (p *Pipeline) Apply(q *bun.SelectQuery, params Params, includeRemoved, searchEnabled bool) *bun.SelectQuery {
	scope := types.ScopeActive
	if includeRemoved {
		scope = types.ScopeWithRemoved
	}
	return p.ApplyScoped(q, params, scope, searchEnabled)
}

// ApplyScoped is Apply for an explicit scope. The scope is re-asserted after
// every filter function so none of them can narrow it.
func (p *Pipeline) ApplyScoped(q *bun.SelectQuery, params Params, scope types.Scope, searchEnabled bool) *bun.SelectQuery {
	if !p.Meta.SupportsSoftDelete() {
		scope = types.ScopeActive
	}
	widened := scope.Widened()

	for _, name := range sortedNames(params) {
		value := params[name]
		if !p.Meta.AllowsFilter(name) || IsEmpty(value) {
			continue
		}
		if fn, ok := p.Meta.FilterFunc(name); ok {
			q = Reassert(fn(q, value, widened), scope)
		} else if name != SearchParam && p.Logger != nil {
			p.Logger.Debug("Filter allowed but not registered, skipped", "entity", p.Meta.Table, "filter", name)
		}
		if name == SearchParam && searchEnabled {
			q = Search(q, cast.ToString(value), p.Meta.Searchable(), TextColumns(p.Meta.IsText))
		}
	}
	return q
}

// IncludesRemoved reports whether params ask for soft-deleted records.
func IncludesRemoved(params Params) bool {
	return params.Bool(TrashedParam)
}

// sortedNames drops bookkeeping parameters and orders the rest so the
// generated SQL does not depend on map iteration order.
func sortedNames(params Params) []string {
	names := make([]string, 0, len(params))
	for name := range params {
		if name == TokenParam {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
