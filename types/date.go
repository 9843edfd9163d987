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

import "time"

const (
	DefaultDateColumn = "created_at"
	DefaultDateWindow = 24 * time.Hour
)

// DateRange is an inclusive time window over one timestamp column.
type DateRange struct {
	From   *time.Time
	To     *time.Time
	Column string
}

// Resolve fills the missing bounds relative to now: the upper bound defaults
// to now and the lower bound to DefaultDateWindow before it.
func (r DateRange) Resolve(now time.Time) (from time.Time, to time.Time, column string) {
	to = now
	if r.To != nil {
		to = *r.To
	}
	from = now.Add(-DefaultDateWindow)
	if r.From != nil {
		from = *r.From
	}
	column = r.Column
	if column == "" {
		column = DefaultDateColumn
	}
	return from.UTC(), to.UTC(), column
}

// NewDateRange builds a range on column; zero times are treated as unset.
func NewDateRange(from, to time.Time, column string) DateRange {
	r := DateRange{Column: column}
	if !from.IsZero() {
		r.From = &from
	}
	if !to.IsZero() {
		r.To = &to
	}
	return r
}
