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
	"strings"

	"github.com/tomoncle/quarry/entity"
	"github.com/tomoncle/quarry/types"
	"github.com/uptrace/bun"
)

const (
	// RelatedAlias is the alias of the table joined for a relation sort.
	RelatedAlias   = "related"
	relationSep    = "."
	allColumns     = "*"
	tableColumnsFn = "?TableColumns"
)

// SortDirective orders by a column of the entity ("rank") or by a column of
// a related table one hop away ("owner.name").
type SortDirective struct {
	Field     string
	Direction types.Direction
}

// ParseSort builds a directive from a field and a direction string. It
// returns nil when field is empty.
func ParseSort(field, direction string) *SortDirective {
	field = strings.TrimSpace(field)
	if field == "" {
		return nil
	}
	return &SortDirective{Field: field, Direction: types.ParseDirection(direction)}
}

// IsRelation reports whether the directive crosses a relation.
func (d *SortDirective) IsRelation() bool {
	return d != nil && strings.Contains(d.Field, relationSep)
}

// split returns the relation and the related column. Only the first segment
// is ever joined.
func (d *SortDirective) split() (relation, column string) {
	parts := strings.Split(d.Field, relationSep)
	return parts[0], parts[len(parts)-1]
}

// Sort applies the projection and the ordering of d to q. columns selects a
// subset of the entity's own columns; none or "*" selects all of them.
//
// A relation directive selects the entity's columns explicitly, joins the
// related table as RelatedAlias and orders by the related column. No
// tiebreaker is added.
func Sort(q *bun.SelectQuery, meta *entity.Meta, d *SortDirective, columns ...string) *bun.SelectQuery {
	if !d.IsRelation() {
		q = Select(q, columns...)
		if d == nil {
			return q
		}
		return q.OrderExpr("?TableAlias.? ?", bun.Ident(d.Field), bun.Safe(d.Direction.String()))
	}

	if isAllColumns(columns) {
		q = q.ColumnExpr(tableColumnsFn)
	} else {
		q = Select(q, columns...)
	}

	name, column := d.split()
	rel := meta.Relation(name)
	return q.
		Join("JOIN ? AS ?", bun.Ident(rel.Table), bun.Ident(RelatedAlias)).
		JoinOn("?TableAlias.? = ?.?", bun.Ident(rel.ForeignKey), bun.Ident(RelatedAlias), bun.Ident(rel.OwnerKey)).
		OrderExpr("?.? ?", bun.Ident(RelatedAlias), bun.Ident(column), bun.Safe(d.Direction.String()))
}

// Select restricts q to the given entity columns, qualified by the table
// alias. None or "*" leaves the model's default column list.
func Select(q *bun.SelectQuery, columns ...string) *bun.SelectQuery {
	if isAllColumns(columns) {
		return q
	}
	for _, column := range columns {
		q = q.ColumnExpr("?TableAlias.?", bun.Ident(column))
	}
	return q
}

// Latest orders q newest first on column.
func Latest(q *bun.SelectQuery, column string) *bun.SelectQuery {
	return q.OrderExpr("?TableAlias.? DESC", bun.Ident(column))
}

func isAllColumns(columns []string) bool {
	if len(columns) == 0 {
		return true
	}
	for _, c := range columns {
		if c == allColumns {
			return true
		}
	}
	return false
}
