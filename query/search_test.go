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
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/quarry/entity"
	"github.com/tomoncle/quarry/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/schema"
)

// renderDB builds queries in another dialect; nothing is executed.
func renderDB(t *testing.T, dialect schema.Dialect) *bun.DB {
	t.Helper()
	sqldb, err := sql.Open(sqliteshim.ShimName, "file::memory:")
	require.NoError(t, err)
	db := bun.NewDB(sqldb, dialect)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestSearchComposesGroups(t *testing.T) {
	db := newTestDB(t)

	sql := Search(db.NewSelect().Model((*item)(nil)), "alpha  beta", []string{"name", "number"}).String()
	assert.Contains(t, sql,
		`("i"."name" LIKE '%alpha%' OR "i"."number" LIKE '%alpha%') AND ("i"."name" LIKE '%beta%' OR "i"."number" LIKE '%beta%')`)
}

func TestSearchNoop(t *testing.T) {
	db := newTestDB(t)
	base := db.NewSelect().Model((*item)(nil)).String()

	assert.Equal(t, base, Search(db.NewSelect().Model((*item)(nil)), "", []string{"name"}).String())
	assert.Equal(t, base, Search(db.NewSelect().Model((*item)(nil)), " \t ", []string{"name"}).String())
	assert.Equal(t, base, Search(db.NewSelect().Model((*item)(nil)), "alpha", nil).String())
}

func TestSearchNeverTouchesHiddenColumns(t *testing.T) {
	db := newTestDB(t)
	meta := itemMeta(t, db)

	sql := Search(db.NewSelect().Model((*item)(nil)), "x", meta.Searchable()).String()
	assert.NotContains(t, sql, `"secret" LIKE`)
	assert.NotContains(t, sql, `"created_at" LIKE`)
	assert.NotContains(t, sql, `"id" LIKE`)
	assert.Contains(t, sql, `"i"."name" LIKE '%x%'`)
}

func TestSearchMatchesEveryToken(t *testing.T) {
	db := newTestDB(t)
	meta := itemMeta(t, db)
	ctx := context.Background()

	seedItems(t, db,
		&item{Name: "alpha one", Number: "A1"},
		&item{Name: "beta one", Number: "B1"},
		&item{Name: "alpha", Number: "beta"},
		&item{Name: "gamma", Number: "G", Secret: "alpha beta"},
	)

	var rows []item
	q, err := Open(db, &rows, meta, types.ScopeActive)
	require.NoError(t, err)
	require.NoError(t, Search(q, "alpha beta", meta.Searchable()).Scan(ctx))

	assert.Equal(t, []string{"alpha"}, names(rows))
}

func TestSearchCastsNonTextColumns(t *testing.T) {
	tests := []struct {
		name    string
		dialect schema.Dialect
		text    string
		nonText string
	}{
		{
			name:    "postgres",
			dialect: pgdialect.New(),
			text:    `"i"."name" LIKE '%alpha%'`,
			nonText: `CAST("i"."rank" AS TEXT) LIKE '%alpha%'`,
		},
		{
			name:    "mysql",
			dialect: mysqldialect.New(),
			text:    "`i`.`name` LIKE '%alpha%'",
			nonText: "CAST(`i`.`rank` AS CHAR) LIKE '%alpha%'",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := renderDB(t, tt.dialect)
			meta, err := entity.Inspect[item](db)
			require.NoError(t, err)

			sql := Search(db.NewSelect().Model((*item)(nil)), "alpha", []string{"name", "rank"}, TextColumns(meta.IsText)).String()
			assert.Contains(t, sql, tt.text)
			assert.Contains(t, sql, tt.nonText)
		})
	}
}

func TestSearchMatchesNumericColumns(t *testing.T) {
	db := newTestDB(t)
	meta := itemMeta(t, db)
	ctx := context.Background()

	seedItems(t, db,
		&item{Name: "alpha", Number: "A", Rank: 42},
		&item{Name: "beta", Number: "B", Rank: 7},
	)

	var rows []item
	q, err := Open(db, &rows, meta, types.ScopeActive)
	require.NoError(t, err)
	require.NoError(t, Search(q, "42", meta.Searchable(), TextColumns(meta.IsText)).Scan(ctx))

	assert.Equal(t, []string{"alpha"}, names(rows))
}
