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
	"errors"
	"fmt"
	"reflect"

	"github.com/tomoncle/quarry/entity"
	"github.com/tomoncle/quarry/types"
	"github.com/uptrace/bun"
)

// ErrSoftDeleteUnsupported is returned when removed records are requested
// from an entity without a soft delete column.
var ErrSoftDeleteUnsupported = errors.New("entity does not support soft delete")

// Open starts a select over model limited to scope.
func Open(db bun.IDB, model interface{}, meta *entity.Meta, scope types.Scope) (*bun.SelectQuery, error) {
	if err := CheckScope(meta, scope); err != nil {
		return nil, err
	}
	return Reassert(db.NewSelect().Model(model), scope), nil
}

// CheckScope rejects widened scopes on entities without soft delete.
func CheckScope(meta *entity.Meta, scope types.Scope) error {
	if !scope.IsValid() {
		return fmt.Errorf("invalid scope %d", scope)
	}
	if scope.Widened() && !meta.SupportsSoftDelete() {
		return fmt.Errorf("%w: %s", ErrSoftDeleteUnsupported, meta.Table)
	}
	return nil
}

// Reassert applies scope to q again. Filter functions may toggle bun's
// soft delete flags; calling Reassert after each one keeps a widened scope
// from being narrowed back to active records.
func Reassert(q *bun.SelectQuery, scope types.Scope) *bun.SelectQuery {
	switch scope {
	case types.ScopeWithRemoved:
		return q.WhereAllWithDeleted()
	case types.ScopeRemovedOnly:
		return q.WhereDeleted()
	default:
		return q
	}
}

// Restore clears the soft delete marker of record, a pointer to a model
// value, and writes it back.
func Restore(ctx context.Context, db bun.IDB, meta *entity.Meta, record interface{}) error {
	if !meta.SupportsSoftDelete() {
		return fmt.Errorf("%w: %s", ErrSoftDeleteUnsupported, meta.Table)
	}
	if err := meta.Fill(record, map[string]interface{}{meta.SoftDeleteColumn: nil}); err != nil {
		return err
	}
	_, err := db.NewUpdate().
		Model(record).
		Column(meta.SoftDeleteColumn).
		WherePK().
		WhereAllWithDeleted().
		Exec(ctx)
	return err
}

// IsRemoved reports whether record carries a soft delete marker.
func IsRemoved(meta *entity.Meta, record interface{}) bool {
	if !meta.SupportsSoftDelete() {
		return false
	}
	field := meta.SchemaTable().SoftDeleteField
	return !field.HasZeroValue(reflect.Indirect(reflect.ValueOf(record)))
}
