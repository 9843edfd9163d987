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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/quarry/types"
)

func TestParseSort(t *testing.T) {
	assert.Nil(t, ParseSort("", "desc"))
	assert.Nil(t, ParseSort("  ", "asc"))

	d := ParseSort("rank", "DESC")
	require.NotNil(t, d)
	assert.Equal(t, types.Desc, d.Direction)
	assert.False(t, d.IsRelation())

	d = ParseSort("owner.name", "sideways")
	assert.Equal(t, types.Asc, d.Direction)
	assert.True(t, d.IsRelation())

	var none *SortDirective
	assert.False(t, none.IsRelation())
}

func TestSortOwnColumn(t *testing.T) {
	db := newTestDB(t)
	meta := itemMeta(t, db)

	sql := Sort(db.NewSelect().Model((*item)(nil)), meta, ParseSort("rank", "desc")).String()
	assert.Contains(t, sql, `ORDER BY "i"."rank" DESC`)
	assert.NotContains(t, sql, "JOIN")

	sql = Sort(db.NewSelect().Model((*item)(nil)), meta, nil).String()
	assert.NotContains(t, sql, "ORDER BY")
}

func TestSortSelectsColumns(t *testing.T) {
	db := newTestDB(t)
	meta := itemMeta(t, db)

	sql := Sort(db.NewSelect().Model((*item)(nil)), meta, ParseSort("rank", "asc"), "id", "name").String()
	assert.True(t, strings.HasPrefix(sql, `SELECT "i"."id", "i"."name" FROM`), sql)
	assert.Contains(t, sql, `ORDER BY "i"."rank" ASC`)
}

func TestSortAcrossRelation(t *testing.T) {
	db := newTestDB(t)
	meta := itemMeta(t, db)

	sql := Sort(db.NewSelect().Model((*item)(nil)), meta, ParseSort("owner.name", "desc")).String()
	assert.Contains(t, sql, `JOIN "owners" AS "related" ON "i"."owner_id" = "related"."id"`)
	assert.Contains(t, sql, `ORDER BY "related"."name" DESC`)
	assert.Equal(t, 1, strings.Count(sql, `"i"."name"`), sql)
	assert.NotContains(t, sql, `"related"."name",`)
}

func TestSortAcrossConventionalRelation(t *testing.T) {
	db := newTestDB(t)
	meta := itemMeta(t, db)

	sql := Sort(db.NewSelect().Model((*item)(nil)), meta, ParseSort("ProductCategory.title", "asc")).String()
	assert.Contains(t, sql, `JOIN "product_categories" AS "related" ON "i"."product_category_id" = "related"."id"`)
	assert.Contains(t, sql, `ORDER BY "related"."title" ASC`)

	// deeper paths only join the first hop
	sql = Sort(db.NewSelect().Model((*item)(nil)), meta, ParseSort("owner.team.label", "asc")).String()
	assert.Contains(t, sql, `JOIN "owners" AS "related"`)
	assert.Contains(t, sql, `ORDER BY "related"."label" ASC`)
}

func TestSortAcrossRelationOrdersRows(t *testing.T) {
	db := newTestDB(t)
	meta := itemMeta(t, db)
	ctx := context.Background()

	owners := []*owner{{Name: "mia"}, {Name: "zed"}, {Name: "amy"}}
	for _, o := range owners {
		_, err := db.NewInsert().Model(o).Exec(ctx)
		require.NoError(t, err)
	}
	seedItems(t, db,
		&item{Name: "first", OwnerID: owners[0].ID},
		&item{Name: "second", OwnerID: owners[1].ID},
		&item{Name: "third", OwnerID: owners[2].ID},
	)

	var rows []item
	q, err := Open(db, &rows, meta, types.ScopeActive)
	require.NoError(t, err)
	require.NoError(t, Sort(q, meta, ParseSort("owner.name", "desc")).Scan(ctx))

	assert.Equal(t, []string{"second", "first", "third"}, names(rows))
}

func TestSelectAndLatest(t *testing.T) {
	db := newTestDB(t)

	sql := Select(db.NewSelect().Model((*item)(nil)), "*").String()
	assert.Contains(t, sql, `"i"."deleted_at"`)

	sql = Latest(db.NewSelect().Model((*item)(nil)), "created_at").String()
	assert.Contains(t, sql, `ORDER BY "i"."created_at" DESC`)
}
