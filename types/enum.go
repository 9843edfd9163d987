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

import "strings"

// Common illegal/default values used by enums.
const (
	IllegalValue = -1
	IllegalName  = "unknown"
	IllegalDesc  = "unknown"
)

// BaseEnum represents a basic enum contract used by domain types.
type BaseEnum interface {
	IsValid() bool
	Number() int
	String() string
	Desc() string
	Name() string
}

// Direction is the ordering direction of a sort directive.
type Direction int

const (
	Asc Direction = iota
	Desc
)

var _ BaseEnum = Asc

// ParseDirection maps "desc" (any case) to Desc and everything else to Asc.
func ParseDirection(s string) Direction {
	if strings.EqualFold(strings.TrimSpace(s), "desc") {
		return Desc
	}
	return Asc
}

func (d Direction) IsValid() bool { return d == Asc || d == Desc }

func (d Direction) Number() int {
	if !d.IsValid() {
		return IllegalValue
	}
	return int(d)
}

// String returns the SQL keyword.
func (d Direction) String() string {
	switch d {
	case Asc:
		return "ASC"
	case Desc:
		return "DESC"
	default:
		return IllegalName
	}
}

func (d Direction) Name() string { return strings.ToLower(d.String()) }

func (d Direction) Desc() string {
	switch d {
	case Asc:
		return "ascending"
	case Desc:
		return "descending"
	default:
		return IllegalDesc
	}
}

// Scope is the visibility of a query over soft-deleted records.
type Scope int

const (
	// ScopeActive hides removed records. It is the default.
	ScopeActive Scope = iota
	// ScopeWithRemoved returns active and removed records.
	ScopeWithRemoved
	// ScopeRemovedOnly returns removed records only.
	ScopeRemovedOnly
)

var _ BaseEnum = ScopeActive

func (s Scope) IsValid() bool { return s >= ScopeActive && s <= ScopeRemovedOnly }

func (s Scope) Number() int {
	if !s.IsValid() {
		return IllegalValue
	}
	return int(s)
}

func (s Scope) String() string { return s.Name() }

func (s Scope) Name() string {
	switch s {
	case ScopeActive:
		return "active"
	case ScopeWithRemoved:
		return "with_removed"
	case ScopeRemovedOnly:
		return "removed_only"
	default:
		return IllegalName
	}
}

func (s Scope) Desc() string {
	switch s {
	case ScopeActive:
		return "active records only"
	case ScopeWithRemoved:
		return "active and removed records"
	case ScopeRemovedOnly:
		return "removed records only"
	default:
		return IllegalDesc
	}
}

// Widened reports whether the scope includes removed records.
func (s Scope) Widened() bool { return s == ScopeWithRemoved || s == ScopeRemovedOnly }
