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

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsSqlErrorClassifiesDrivers(t *testing.T) {
	cases := []struct {
		name string
		err  error
		is   bool
		kind SQLError
	}{
		{"nil", nil, false, UnknownErr},
		{"plain", errors.New("boom"), false, UnknownErr},
		{"no rows", fmt.Errorf("get: %w", sql.ErrNoRows), true, NoRowsErr},
		{"mysql duplicate", &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}, true, DuplicateKeyErr},
		{"mysql fk", &mysql.MySQLError{Number: 1452}, true, ForeignKeyViolationErr},
		{"mysql unknown number", &mysql.MySQLError{Number: 9999}, true, UnknownErr},
		{"postgres unique", errors.New(`ERROR: duplicate key value violates unique constraint "x" (SQLSTATE 23505)`), true, DuplicateKeyErr},
		{"postgres missing table", errors.New(`pq: relation "x" does not exist (SQLSTATE 42P01)`), true, NoTableErr},
		{"sqlite not null", errors.New("NOT NULL constraint failed: teams.name"), true, NotNullViolationErr},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			is, kind := IsSqlError(tc.err)
			assert.Equal(t, tc.is, is)
			assert.Equal(t, tc.kind, kind)
		})
	}
}

func TestIsSqlErrorOnSqlite(t *testing.T) {
	m := connect(t, testConfig())
	require.NoError(t, m.RunMigrations(context.Background()))
	db := m.GetDB()
	ctx := context.Background()

	_, err := db.NewInsert().Model(&team{Name: "red"}).Exec(ctx)
	require.NoError(t, err)
	_, err = db.NewInsert().Model(&team{Name: "red"}).Exec(ctx)
	require.Error(t, err)
	assert.True(t, IsDuplicateKey(err))

	_, err = db.ExecContext(ctx, "SELECT * FROM nowhere")
	is, kind := IsSqlError(err)
	assert.True(t, is)
	assert.Equal(t, NoTableErr, kind)

	err = db.NewSelect().Model(&team{}).Where("name = ?", "blue").Scan(ctx)
	assert.True(t, IsNoRows(err))
}

func TestSQLErrorString(t *testing.T) {
	assert.Equal(t, "duplicate_key", DuplicateKeyErr.String())
	assert.Equal(t, "unknown", SQLError(-1).String())
}
