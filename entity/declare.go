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

// The interfaces below are optional. A model implements the ones it needs,
// on either the value or the pointer receiver; anything not declared is
// derived from the bun table.

// Fillable lists the columns caller-supplied attribute maps may write.
type Fillable interface {
	Fillable() []string
}

// Hidden lists the columns excluded from search and select lists.
type Hidden interface {
	Hidden() []string
}

// Dated lists the timestamp columns. When absent every time.Time column and
// the soft delete column are used.
type Dated interface {
	Dates() []string
}

// Filterable lists the filter names a model accepts. Defaults to search.
type Filterable interface {
	Filters() []string
}

// FilterProvider returns the predicate functions backing the filter names.
type FilterProvider interface {
	FilterSpec() FilterSpec
}

// Related declares relations used for relation sorting, keyed by the
// relation name as it appears in a sort directive.
type Related interface {
	Relations() map[string]Relation
}

// Relation describes one foreign key hop from a model to a related table.
type Relation struct {
	// Table is the related table name.
	Table string
	// ForeignKey is the column on the model's own table.
	ForeignKey string
	// OwnerKey is the referenced column on the related table.
	OwnerKey string
}
