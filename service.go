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

package quarry

import (
	"context"
	"database/sql"

	"github.com/tomoncle/quarry/database"
	"github.com/tomoncle/quarry/repository"

	"github.com/uptrace/bun"
)

// Service is a Repository bound to a database handle that can also open
// transactions of its own.
type Service[T any] interface {
	repository.Repository[T]

	// Transaction runs fn inside a transaction. fn receives a repository
	// whose queries join the transaction; any error rolls it back.
	Transaction(ctx context.Context, fn func(ctx context.Context, repo repository.Repository[T]) error) error
}

type baseServiceImpl[T any] struct {
	repository.Repository[T]
	db bun.IDB
}

// NewService returns a Service over the process database opened by
// database.InitDB.
func NewService[T any]() (Service[T], error) {
	db := database.GetDB()
	if db == nil {
		return nil, database.ErrNotInitialized
	}
	return NewServiceWithDB[T](db)
}

// NewServiceWithDB returns a Service over db.
func NewServiceWithDB[T any](db bun.IDB) (Service[T], error) {
	repo, err := repository.NewRepository[T](db)
	if err != nil {
		return nil, err
	}
	return &baseServiceImpl[T]{Repository: repo, db: db}, nil
}

func (s *baseServiceImpl[T]) Transaction(ctx context.Context, fn func(ctx context.Context, repo repository.Repository[T]) error) error {
	return s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, s.Repository.WithTx(tx))
	})
}
