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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/quarry/entity"
	"github.com/tomoncle/quarry/types"
)

func TestPipelineDropsIrrelevantParams(t *testing.T) {
	db := newTestDB(t)
	log := &recordingLogger{}
	p := &Pipeline{Meta: itemMeta(t, db), Logger: log}

	sql := p.Apply(db.NewSelect().Model((*item)(nil)), Params{
		TokenParam: "csrf",
		"number":   "N",
		"rank":     "",
		"name":     nil,
		"secret":   "s",
		"unknown":  "z",
		"ghost":    "1",
	}, false, true).String()

	assert.Contains(t, sql, `"i"."number" = 'N'`)
	assert.Contains(t, sql, `"i"."deleted_at" IS NULL`)
	assert.NotContains(t, sql, `"rank" =`)
	assert.NotContains(t, sql, `"name" LIKE`)
	assert.NotContains(t, sql, "csrf")
	assert.NotContains(t, sql, `'s'`)
	assert.NotContains(t, sql, `'z'`)

	require.Len(t, log.debugs, 1)
	assert.Contains(t, log.debugs[0], "ghost")
}

func TestPipelineListValues(t *testing.T) {
	db := newTestDB(t)
	p := NewPipeline(itemMeta(t, db))

	sql := p.Apply(db.NewSelect().Model((*item)(nil)), Params{"number": []string{"A", "B"}}, false, false).String()
	assert.Contains(t, sql, `"i"."number" IN ('A', 'B')`)

	sql = p.Apply(db.NewSelect().Model((*item)(nil)), Params{"number": []string{}}, false, false).String()
	assert.NotContains(t, sql, "IN (")
}

func TestPipelineSearchToggle(t *testing.T) {
	db := newTestDB(t)
	p := NewPipeline(itemMeta(t, db))
	params := Params{"search": "alpha", "number": "N"}

	sql := p.Apply(db.NewSelect().Model((*item)(nil)), params, false, true).String()
	assert.Contains(t, sql, `"i"."name" LIKE '%alpha%'`)
	assert.Contains(t, sql, `"i"."number" = 'N'`)

	sql = p.Apply(db.NewSelect().Model((*item)(nil)), params, false, false).String()
	assert.NotContains(t, sql, "LIKE")
	assert.Contains(t, sql, `"i"."number" = 'N'`)
}

func TestPipelineKeepsWidenedScope(t *testing.T) {
	db := newTestDB(t)
	p := NewPipeline(itemMeta(t, db))

	sql := p.Apply(db.NewSelect().Model((*item)(nil)), Params{"removed": "yes", "number": "N"}, true, false).String()
	assert.NotContains(t, sql, `"deleted_at" IS NULL`)
	assert.NotContains(t, sql, `"deleted_at" IS NOT NULL`)

	sql = p.ApplyScoped(db.NewSelect().Model((*item)(nil)), Params{"number": "N"}, types.ScopeRemovedOnly, false).String()
	assert.Contains(t, sql, `"i"."deleted_at" IS NOT NULL`)
}

func TestPipelineIgnoresWidenedScopeWithoutSoftDelete(t *testing.T) {
	db := newTestDB(t)
	meta, err := entity.Inspect[note](db)
	require.NoError(t, err)
	p := NewPipeline(meta)

	q := p.Apply(db.NewSelect().Model((*note)(nil)), Params{"search": "x"}, true, true)
	assert.Contains(t, q.String(), `"n"."title" LIKE '%x%'`)

	var rows []note
	require.NoError(t, q.Model(&rows).Scan(context.Background()))
}

func TestFilterScenario(t *testing.T) {
	db := newTestDB(t)
	meta := itemMeta(t, db)
	ctx := context.Background()

	numbers := []string{"N", "M"}
	for i := 0; i < 20; i++ {
		seedItems(t, db, &item{
			Name:   "item",
			Number: numbers[i%2],
			Rank:   (i * 7) % 20,
		})
	}

	var rows []item
	q, err := Open(db, &rows, meta, types.ScopeActive)
	require.NoError(t, err)
	q = NewPipeline(meta).Apply(q, Params{"number": "N"}, false, true)
	require.NoError(t, Sort(q, meta, ParseSort("rank", "desc")).Scan(ctx))

	require.Len(t, rows, 10)
	for i, row := range rows {
		assert.Equal(t, "N", row.Number)
		if i > 0 {
			assert.GreaterOrEqual(t, rows[i-1].Rank, row.Rank)
		}
	}
}

func TestFilterConjunction(t *testing.T) {
	db := newTestDB(t)
	meta := itemMeta(t, db)
	ctx := context.Background()

	seedItems(t, db,
		&item{Name: "a", Number: "N", Rank: 1},
		&item{Name: "b", Number: "N", Rank: 2},
		&item{Name: "c", Number: "M", Rank: 1},
	)

	var rows []item
	q, err := Open(db, &rows, meta, types.ScopeActive)
	require.NoError(t, err)
	require.NoError(t, NewPipeline(meta).Apply(q, Params{"number": "N", "rank": 1}, false, true).Scan(ctx))

	assert.Equal(t, []string{"a"}, names(rows))
}
