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

package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageRequestDefaults(t *testing.T) {
	p := NewPageRequest(0, 0, "", nil)
	assert.False(t, p.HasPage())
	assert.Equal(t, 1, p.GetPage())
	assert.Equal(t, DefaultPageSize, p.GetPageSize())
	assert.Equal(t, DefaultPageName, p.GetPageName())
	assert.Equal(t, 0, p.GetOffset())

	p = NewDefaultPageRequest(3, 10)
	assert.True(t, p.HasPage())
	assert.Equal(t, 20, p.GetOffset())
	assert.Equal(t, 40, p.SetPage(5).GetOffset())
}

func TestNewPagination(t *testing.T) {
	p := NewPagination[int](NewDefaultPageRequest(2, 10), 21, nil)
	assert.Equal(t, 3, p.LastPage)
	assert.True(t, p.HasMorePages())
	assert.NotNil(t, p.Items)

	empty := NewPagination[int](NewDefaultPageRequest(1, 10), 0, nil)
	assert.Equal(t, 1, empty.LastPage)
	assert.False(t, empty.HasMorePages())
}

func TestDirectionAndScope(t *testing.T) {
	assert.Equal(t, Desc, ParseDirection(" DESC "))
	assert.Equal(t, Asc, ParseDirection("sideways"))
	assert.Equal(t, "ASC", Asc.String())
	assert.Equal(t, IllegalValue, Direction(7).Number())

	assert.False(t, ScopeActive.Widened())
	assert.True(t, ScopeWithRemoved.Widened())
	assert.True(t, ScopeRemovedOnly.Widened())
	assert.Equal(t, "removed_only", ScopeRemovedOnly.Name())
	assert.Equal(t, IllegalName, Scope(9).String())
}

func TestDateRangeResolve(t *testing.T) {
	now := time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC)

	from, to, column := DateRange{}.Resolve(now)
	assert.Equal(t, now.Add(-DefaultDateWindow), from)
	assert.Equal(t, now, to)
	assert.Equal(t, DefaultDateColumn, column)

	start := now.Add(-72 * time.Hour)
	from, to, column = NewDateRange(start, time.Time{}, "updated_at").Resolve(now)
	assert.Equal(t, start, from)
	assert.Equal(t, now, to)
	assert.Equal(t, "updated_at", column)
}

func TestJSONColumn(t *testing.T) {
	v, err := NewJSON(map[string]int64{"articles": 3}).Value()
	require.NoError(t, err)
	assert.Equal(t, `{"articles":3}`, v)

	var j JSON[map[string]int64]
	require.NoError(t, j.Scan(`{"a":1}`))
	assert.Equal(t, map[string]int64{"a": 1}, j.Data)
	require.NoError(t, j.Scan([]byte(`{"b":2}`)))
	assert.Equal(t, map[string]int64{"b": 2}, j.Data)
	require.NoError(t, j.Scan(nil))
	assert.Nil(t, j.Data)
	assert.Error(t, j.Scan(42))
}
