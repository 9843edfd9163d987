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

package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/feature"
)

// Upsert inserts entities, updating fields of the rows that collide on
// duplicateKeys. duplicateKeys defaults to the primary key and is ignored by
// MySQL, which resolves conflicts on any unique index.
func (r *baseRepositoryImpl[T]) Upsert(ctx context.Context, fields []string, duplicateKeys []string, entity ...*T) error {
	if len(fields) == 0 {
		return errors.New("fields cannot be empty")
	}
	if len(entity) == 0 {
		return nil
	}
	for _, f := range fields {
		if !r.meta.HasColumn(f) {
			return fmt.Errorf("upsert: unknown column %s.%s", r.meta.Table, f)
		}
	}

	entities := make([]*T, len(entity))
	copy(entities, entity)
	now := time.Now()
	for _, e := range entities {
		r.meta.Touch(e, now)
	}

	features := r.db.Dialect().Features()
	switch {
	case features.Has(feature.InsertOnConflict):
		return r.upsertOnConflict(ctx, fields, duplicateKeys, entities)
	case features.Has(feature.InsertOnDuplicateKey):
		return r.upsertOnDuplicateKey(ctx, fields, entities)
	default:
		return r.upsertFallback(ctx, entities)
	}
}

func (r *baseRepositoryImpl[T]) upsertOnDuplicateKey(ctx context.Context, fields []string, entities []*T) error {
	q := r.db.NewInsert().Model(&entities).On("DUPLICATE KEY UPDATE")
	for _, f := range fields {
		q = q.Set("? = VALUES(?)", bun.Ident(f), bun.Ident(f))
	}
	_, err := q.Exec(ctx)
	return err
}

func (r *baseRepositoryImpl[T]) upsertOnConflict(ctx context.Context, fields []string, duplicateKeys []string, entities []*T) error {
	if len(duplicateKeys) == 0 {
		duplicateKeys = []string{r.meta.Key}
	}
	keys := make([]interface{}, len(duplicateKeys))
	for i, k := range duplicateKeys {
		keys[i] = bun.Ident(k)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(keys)), ", ")

	q := r.db.NewInsert().Model(&entities).On("CONFLICT ("+placeholders+") DO UPDATE", keys...)
	for _, f := range fields {
		q = q.Set("? = EXCLUDED.?", bun.Ident(f), bun.Ident(f))
	}
	_, err := q.Exec(ctx)
	return err
}

// upsertFallback inserts row by row and updates the rows that fail to insert.
func (r *baseRepositoryImpl[T]) upsertFallback(ctx context.Context, entities []*T) error {
	for _, e := range entities {
		_, err := r.db.NewInsert().Model(e).Exec(ctx)
		if err == nil {
			continue
		}
		if _, updateErr := r.db.NewUpdate().Model(e).WherePK().Exec(ctx); updateErr != nil {
			return fmt.Errorf("upsert failed for entity: insert error: %v, update error: %v", err, updateErr)
		}
	}
	return nil
}
