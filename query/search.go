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

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

// SearchOption adjusts how Search renders its predicates.
type SearchOption func(*searchOptions)

type searchOptions struct {
	isText func(column string) bool
}

// TextColumns tells Search which columns hold text. Every other column is
// cast to the dialect's character type before LIKE, since postgres has no
// LIKE operator for numbers.
func TextColumns(isText func(column string) bool) SearchOption {
	return func(o *searchOptions) { o.isText = isText }
}

// Search narrows q to rows where every whitespace separated token of term
// occurs in at least one of columns:
//
//	WHERE (a LIKE '%t1%' OR b LIKE '%t1%') AND (a LIKE '%t2%' OR b LIKE '%t2%')
//
// Tokens are matched literally; LIKE wildcards inside a token are not escaped.
// Without TextColumns every column is compared as is.
func Search(q *bun.SelectQuery, term string, columns []string, opts ...SearchOption) *bun.SelectQuery {
	tokens := strings.Fields(term)
	if len(tokens) == 0 || len(columns) == 0 {
		return q
	}
	var o searchOptions
	for _, opt := range opts {
		opt(&o)
	}
	charType := castType(q)
	for _, token := range tokens {
		pattern := "%" + token + "%"
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			for _, column := range columns {
				if o.isText == nil || o.isText(column) {
					q = q.WhereOr("?TableAlias.? LIKE ?", bun.Ident(column), pattern)
				} else {
					q = q.WhereOr("CAST(?TableAlias.? AS ?) LIKE ?", bun.Ident(column), bun.Safe(charType), pattern)
				}
			}
			return q
		})
	}
	return q
}

// castType is the character type a non-text column is cast to. MySQL only
// accepts CHAR as a CAST target.
func castType(q *bun.SelectQuery) string {
	if q.Dialect().Name() == dialect.MySQL {
		return "CHAR"
	}
	return "TEXT"
}
