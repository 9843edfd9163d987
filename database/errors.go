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
	"database/sql"
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// ErrNotInitialized is returned when the global database is used before InitDB.
var ErrNotInitialized = errors.New("database not initialized")

type SQLError int

const (
	UnknownErr SQLError = iota
	NoRowsErr
	NoIndexErr
	NoColumnErr
	ExistIndexErr
	ExistColumnErr
	NoTableErr
	ExistTableErr
	DuplicateKeyErr
	NotNullViolationErr
	ForeignKeyViolationErr
	CheckConstraintViolationErr
	DataTruncatedErr
	InvalidTypeCastErr
)

var sqlErrorNames = map[SQLError]string{
	UnknownErr:                  "unknown",
	NoRowsErr:                   "no_rows",
	NoIndexErr:                  "no_index",
	NoColumnErr:                 "no_column",
	ExistIndexErr:               "exist_index",
	ExistColumnErr:              "exist_column",
	NoTableErr:                  "no_table",
	ExistTableErr:               "exist_table",
	DuplicateKeyErr:             "duplicate_key",
	NotNullViolationErr:         "not_null_violation",
	ForeignKeyViolationErr:      "foreign_key_violation",
	CheckConstraintViolationErr: "check_constraint_violation",
	DataTruncatedErr:            "data_truncated",
	InvalidTypeCastErr:          "invalid_type_cast",
}

func (e SQLError) String() string {
	if name, ok := sqlErrorNames[e]; ok {
		return name
	}
	return sqlErrorNames[UnknownErr]
}

var mysqlErrorNumbers = map[uint16]SQLError{
	1091: NoIndexErr,
	1054: NoColumnErr,
	1061: ExistIndexErr,
	1060: ExistColumnErr,
	1062: DuplicateKeyErr,
	1048: NotNullViolationErr,
	1216: ForeignKeyViolationErr,
	1217: ForeignKeyViolationErr,
	1451: ForeignKeyViolationErr,
	1452: ForeignKeyViolationErr,
	3819: CheckConstraintViolationErr,
	1265: DataTruncatedErr,
	1146: NoTableErr,
	1050: ExistTableErr,
}

// messageRule matches postgres and sqlite errors, which carry no typed code
// through bun. all holds substrings that must appear together.
type messageRule struct {
	all  []string
	kind SQLError
}

var messageRules = []messageRule{
	{[]string{"sqlstate 42703"}, NoColumnErr},
	{[]string{"undefined column"}, NoColumnErr},
	{[]string{"no such column"}, NoColumnErr},
	{[]string{"sqlstate 42704"}, NoIndexErr},
	{[]string{"no such index"}, NoIndexErr},
	{[]string{"does not exist", "index"}, NoIndexErr},
	{[]string{"sqlstate 42p01"}, NoTableErr},
	{[]string{"undefined table"}, NoTableErr},
	{[]string{"no such table"}, NoTableErr},
	{[]string{"already exists", "index"}, ExistIndexErr},
	{[]string{"already exists", "table"}, ExistTableErr},
	{[]string{"already exists", "relation"}, ExistTableErr},
	{[]string{"duplicate column"}, ExistColumnErr},
	{[]string{"duplicate key value"}, DuplicateKeyErr},
	{[]string{"unique constraint failed"}, DuplicateKeyErr},
	{[]string{"sqlstate 23505"}, DuplicateKeyErr},
	{[]string{"not-null constraint"}, NotNullViolationErr},
	{[]string{"sqlstate 23502"}, NotNullViolationErr},
	{[]string{"not null constraint failed"}, NotNullViolationErr},
	{[]string{"foreign key violation"}, ForeignKeyViolationErr},
	{[]string{"foreign key constraint failed"}, ForeignKeyViolationErr},
	{[]string{"sqlstate 23503"}, ForeignKeyViolationErr},
	{[]string{"check constraint"}, CheckConstraintViolationErr},
	{[]string{"sqlstate 23514"}, CheckConstraintViolationErr},
	{[]string{"string data right truncation"}, DataTruncatedErr},
	{[]string{"sqlstate 22001"}, DataTruncatedErr},
	{[]string{"data truncated"}, DataTruncatedErr},
	{[]string{"datatype mismatch"}, InvalidTypeCastErr},
	{[]string{"sqlstate 42804"}, InvalidTypeCastErr},
}

// IsSqlError classifies err as a store error. is is false for errors that
// did not come from the database.
func IsSqlError(err error) (is bool, sqlErr SQLError) {
	if err == nil {
		return false, UnknownErr
	}
	if errors.Is(err, sql.ErrNoRows) {
		return true, NoRowsErr
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		if kind, ok := mysqlErrorNumbers[mysqlErr.Number]; ok {
			return true, kind
		}
		return true, UnknownErr
	}
	s := strings.ToLower(err.Error())
	for _, rule := range messageRules {
		if containsAll(s, rule.all) {
			return true, rule.kind
		}
	}
	return false, UnknownErr
}

// IsNoRows reports whether err means the query matched nothing.
func IsNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// IsDuplicateKey reports whether err is a unique constraint violation.
func IsDuplicateKey(err error) bool {
	is, kind := IsSqlError(err)
	return is && kind == DuplicateKeyErr
}

func containsAll(s string, parts []string) bool {
	for _, p := range parts {
		if !strings.Contains(s, p) {
			return false
		}
	}
	return true
}
