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
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/quarry/database"
	"github.com/tomoncle/quarry/entity"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type owner struct {
	bun.BaseModel `bun:"table:owners,alias:o"`

	ID   int64  `bun:"id,pk,autoincrement"`
	Name string `bun:"name"`
}

type item struct {
	bun.BaseModel `bun:"table:items,alias:i"`

	ID        int64     `bun:"id,pk,autoincrement"`
	Name      string    `bun:"name"`
	Number    string    `bun:"number"`
	Rank      int       `bun:"rank"`
	Secret    string    `bun:"secret"`
	OwnerID   int64     `bun:"owner_id"`
	Owner     *owner    `bun:"rel:belongs-to,join:owner_id=id"`
	CreatedAt time.Time `bun:"created_at,nullzero"`
	UpdatedAt time.Time `bun:"updated_at,nullzero"`
	DeletedAt time.Time `bun:"deleted_at,soft_delete,nullzero"`
}

func (item) Fillable() []string { return []string{"name", "number", "rank", "secret", "owner_id"} }

func (item) Hidden() []string { return []string{"secret"} }

func (item) Filters() []string {
	return []string{"name", "number", "rank", "removed", "ghost", SearchParam}
}

func (item) FilterSpec() entity.FilterSpec {
	return entity.FilterSpec{
		"name":   entity.Like("name"),
		"number": entity.Equal("number"),
		"rank":   entity.Equal("rank"),
		// narrows the scope on purpose
		"removed": func(q *bun.SelectQuery, value interface{}, _ bool) *bun.SelectQuery {
			return q.WhereDeleted()
		},
	}
}

type note struct {
	bun.BaseModel `bun:"table:notes,alias:n"`

	ID    int64  `bun:"id,pk,autoincrement"`
	Title string `bun:"title"`
}

type recordingLogger struct {
	mu     sync.Mutex
	debugs []string
}

func (l *recordingLogger) SetLevel(database.LogLevel) {}

func (l *recordingLogger) Debug(msg string, fields ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.debugs = append(l.debugs, fmt.Sprint(append([]interface{}{msg}, fields...)...))
}

func (l *recordingLogger) Info(string, ...interface{})  {}
func (l *recordingLogger) Warn(string, ...interface{})  {}
func (l *recordingLogger) Error(string, ...interface{}) {}

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	for _, model := range []interface{}{(*owner)(nil), (*item)(nil), (*note)(nil)} {
		_, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx)
		require.NoError(t, err)
	}
	return db
}

func itemMeta(t *testing.T, db bun.IDB) *entity.Meta {
	t.Helper()
	meta, err := entity.Inspect[item](db)
	require.NoError(t, err)
	return meta
}

func seedItems(t *testing.T, db bun.IDB, items ...*item) {
	t.Helper()
	for _, it := range items {
		_, err := db.NewInsert().Model(it).Exec(context.Background())
		require.NoError(t, err)
	}
}

func names(items []item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Name)
	}
	return out
}
