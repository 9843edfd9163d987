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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFillConvertsValues(t *testing.T) {
	meta, err := Inspect[dummy](newTestDB(t))
	require.NoError(t, err)

	d := &dummy{}
	err = meta.Fill(d, map[string]interface{}{
		"name":     "alpha",
		"number":   12,
		"rank":     "42",
		"owner_id": "7",
	})
	require.NoError(t, err)

	assert.Equal(t, "alpha", d.Name)
	assert.Equal(t, "12", d.Number)
	assert.Equal(t, 42, d.Rank)
	require.NotNil(t, d.OwnerID)
	assert.Equal(t, int64(7), *d.OwnerID)

	require.NoError(t, meta.Fill(d, map[string]interface{}{"owner_id": nil}))
	assert.Nil(t, d.OwnerID)
}

func TestFillRejectsUnknownColumnAndBadValue(t *testing.T) {
	meta, err := Inspect[dummy](newTestDB(t))
	require.NoError(t, err)

	err = meta.Fill(&dummy{}, map[string]interface{}{"nope": 1})
	assert.ErrorIs(t, err, ErrUnknownField)

	err = meta.Fill(&dummy{}, map[string]interface{}{"rank": "high"})
	assert.Error(t, err)

	err = meta.Fill(dummy{}, map[string]interface{}{"name": "x"})
	assert.Error(t, err)
}

func TestAttributes(t *testing.T) {
	meta, err := Inspect[dummy](newTestDB(t))
	require.NoError(t, err)

	attrs := meta.Attributes(&dummy{Name: "n", Rank: 3}, "name", "rank", "missing")
	assert.Equal(t, map[string]interface{}{"name": "n", "rank": 3}, attrs)
}

func TestTouch(t *testing.T) {
	meta, err := Inspect[dummy](newTestDB(t))
	require.NoError(t, err)

	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	fresh := &dummy{}
	meta.Touch(fresh, now)
	assert.Equal(t, now, fresh.CreatedAt)
	assert.Equal(t, now, fresh.UpdatedAt)

	existing := &dummy{CreatedAt: created}
	meta.Touch(existing, now)
	assert.Equal(t, created, existing.CreatedAt)
	assert.Equal(t, now, existing.UpdatedAt)
}

func TestFilterHelpersRender(t *testing.T) {
	db := newTestDB(t)

	q := Equal("number")(db.NewSelect().Model((*dummy)(nil)), []string{"a", "b"}, false)
	assert.Contains(t, q.String(), `"d"."number" IN ('a', 'b')`)

	q = Equal("number")(db.NewSelect().Model((*dummy)(nil)), "a", true)
	sql := q.String()
	assert.Contains(t, sql, `"d"."number" = 'a'`)
	assert.NotContains(t, sql, `"deleted_at" IS NULL`)

	q = Like("name")(db.NewSelect().Model((*dummy)(nil)), "lph", false)
	assert.Contains(t, q.String(), `"d"."name" LIKE '%lph%'`)

	q = Between("rank")(db.NewSelect().Model((*dummy)(nil)), []int{1, 5}, false)
	assert.Contains(t, q.String(), `"d"."rank" BETWEEN 1 AND 5`)

	assert.True(t, IsList([]int{1}))
	assert.False(t, IsList([]byte("x")))
	assert.False(t, IsList("x"))
	assert.False(t, IsList(nil))
}
