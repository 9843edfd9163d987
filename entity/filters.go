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
	"reflect"

	"github.com/uptrace/bun"
)

// FilterFunc applies one named filter to a select query. includeRemoved is
// true when the caller asked for soft-deleted records as well.
type FilterFunc func(q *bun.SelectQuery, value interface{}, includeRemoved bool) *bun.SelectQuery

// FilterSpec maps filter names to their predicate functions.
type FilterSpec map[string]FilterFunc

// Equal filters column by equality, or by membership when value is a slice.
func Equal(column string) FilterFunc {
	return func(q *bun.SelectQuery, value interface{}, includeRemoved bool) *bun.SelectQuery {
		if includeRemoved {
			q = q.WhereAllWithDeleted()
		}
		if IsList(value) {
			return q.Where("?TableAlias.? IN (?)", bun.Ident(column), bun.In(value))
		}
		return q.Where("?TableAlias.? = ?", bun.Ident(column), value)
	}
}

// Like filters column by substring match. Slices match any of their items.
func Like(column string) FilterFunc {
	return func(q *bun.SelectQuery, value interface{}, includeRemoved bool) *bun.SelectQuery {
		if includeRemoved {
			q = q.WhereAllWithDeleted()
		}
		if !IsList(value) {
			return q.Where("?TableAlias.? LIKE ?", bun.Ident(column), "%"+toString(value)+"%")
		}
		items := reflect.ValueOf(value)
		return q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			for i := 0; i < items.Len(); i++ {
				q = q.WhereOr("?TableAlias.? LIKE ?", bun.Ident(column), "%"+toString(items.Index(i).Interface())+"%")
			}
			return q
		})
	}
}

// Between filters column to the inclusive range given as a two element slice.
// Any other value is ignored.
func Between(column string) FilterFunc {
	return func(q *bun.SelectQuery, value interface{}, includeRemoved bool) *bun.SelectQuery {
		if includeRemoved {
			q = q.WhereAllWithDeleted()
		}
		if !IsList(value) {
			return q
		}
		bounds := reflect.ValueOf(value)
		if bounds.Len() != 2 {
			return q
		}
		return q.Where("?TableAlias.? BETWEEN ? AND ?", bun.Ident(column),
			bounds.Index(0).Interface(), bounds.Index(1).Interface())
	}
}

// IsList reports whether value is a slice or array other than []byte.
func IsList(value interface{}) bool {
	if value == nil {
		return false
	}
	if _, ok := value.([]byte); ok {
		return false
	}
	kind := reflect.TypeOf(value).Kind()
	return kind == reflect.Slice || kind == reflect.Array
}
