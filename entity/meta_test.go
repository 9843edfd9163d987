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
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type owner struct {
	bun.BaseModel `bun:"table:owners,alias:o"`

	ID   int64  `bun:"id,pk,autoincrement"`
	Name string `bun:"name"`
}

type dummy struct {
	bun.BaseModel `bun:"table:dummies,alias:d"`

	ID        int64     `bun:"id,pk,autoincrement"`
	Name      string    `bun:"name"`
	Number    string    `bun:"number"`
	Rank      int       `bun:"rank"`
	Secret    string    `bun:"secret"`
	OwnerID   *int64    `bun:"owner_id"`
	Owner     *owner    `bun:"rel:belongs-to,join:owner_id=id"`
	CreatedAt time.Time `bun:"created_at,nullzero"`
	UpdatedAt time.Time `bun:"updated_at,nullzero"`
	DeletedAt time.Time `bun:"deleted_at,soft_delete,nullzero"`
}

func (dummy) Fillable() []string { return []string{"name", "number", "rank", "secret", "owner_id"} }

func (dummy) Hidden() []string { return []string{"secret"} }

func (dummy) Filters() []string { return []string{"name", "number", "search"} }

func (dummy) FilterSpec() FilterSpec {
	return FilterSpec{"name": Equal("name"), "number": Equal("number")}
}

func (dummy) Relations() map[string]Relation {
	return map[string]Relation{"category": {Table: "groups", ForeignKey: "group_id", OwnerKey: "uid"}}
}

type plain struct {
	bun.BaseModel `bun:"table:plains"`

	ID        int64     `bun:"id,pk"`
	Title     string    `bun:"title"`
	Body      string    `bun:"body"`
	CreatedAt time.Time `bun:"created_at"`
}

type keyless struct {
	Name string `bun:"name"`
}

type badFillable struct {
	ID int64 `bun:"id,pk"`
}

func (badFillable) Fillable() []string { return []string{"missing"} }

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()
	sqldb, err := sql.Open(sqliteshim.ShimName, "file::memory:")
	require.NoError(t, err)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestInspectDeclaredModel(t *testing.T) {
	meta, err := Inspect[dummy](newTestDB(t))
	require.NoError(t, err)

	assert.Equal(t, "dummies", meta.Table)
	assert.Equal(t, "d", meta.Alias)
	assert.Equal(t, "id", meta.Key)
	assert.True(t, meta.SupportsSoftDelete())
	assert.Equal(t, "deleted_at", meta.SoftDeleteColumn)
	assert.Equal(t, CreatedAtColumn, meta.CreatedAt)
	assert.Equal(t, UpdatedAtColumn, meta.UpdatedAt)
	assert.ElementsMatch(t, []string{"created_at", "updated_at", "deleted_at"}, meta.Dates)
	assert.True(t, meta.IsFillable("rank"))
	assert.False(t, meta.IsFillable("id"))
	assert.True(t, meta.AllowsFilter("number"))
	assert.False(t, meta.AllowsFilter("rank"))

	_, ok := meta.FilterFunc("name")
	assert.True(t, ok)
	_, ok = meta.FilterFunc("search")
	assert.False(t, ok)
}

func TestInspectDefaults(t *testing.T) {
	meta, err := Inspect[plain](newTestDB(t))
	require.NoError(t, err)

	assert.Equal(t, []string{"title", "body"}, meta.Fillable)
	assert.Equal(t, []string{SearchFilter}, meta.Filters)
	assert.Equal(t, []string{"created_at"}, meta.Dates)
	assert.False(t, meta.SupportsSoftDelete())
	assert.Empty(t, meta.UpdatedAt)
}

func TestInspectIsCached(t *testing.T) {
	db := newTestDB(t)
	first, err := Inspect[plain](db)
	require.NoError(t, err)
	second, err := Inspect[*plain](db)
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestInspectErrors(t *testing.T) {
	db := newTestDB(t)

	_, err := Inspect[keyless](db)
	assert.ErrorIs(t, err, ErrNoPrimaryKey)

	_, err = Inspect[badFillable](db)
	assert.ErrorIs(t, err, ErrUnknownField)

	_, err = Inspect[int](db)
	assert.ErrorIs(t, err, ErrNotAStruct)
}

func TestSearchableExcludesHiddenDatesAndKey(t *testing.T) {
	meta, err := Inspect[dummy](newTestDB(t))
	require.NoError(t, err)

	assert.Equal(t, []string{"name", "number", "rank", "owner_id"}, meta.Searchable())
}

func TestRelationLookup(t *testing.T) {
	meta, err := Inspect[dummy](newTestDB(t))
	require.NoError(t, err)

	assert.Equal(t, Relation{Table: "owners", ForeignKey: "owner_id", OwnerKey: "id"}, meta.Relation("owner"))
	assert.Equal(t, Relation{Table: "groups", ForeignKey: "group_id", OwnerKey: "uid"}, meta.Relation("Category"))
	assert.Equal(t, Relation{Table: "dummy_relations", ForeignKey: "dummy_relation_id", OwnerKey: "id"},
		meta.Relation("dummyRelation"))
}

func TestSnakeCase(t *testing.T) {
	assert.Equal(t, "dummy_relation", SnakeCase("dummyRelation"))
	assert.Equal(t, "owner", SnakeCase("Owner"))
	assert.Equal(t, "rank", SnakeCase("rank"))
}
