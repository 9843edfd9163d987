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
	"reflect"

	"github.com/spf13/cast"
)

const (
	// TokenParam is the anti-forgery token a form post carries along.
	TokenParam = "_token"
	// TrashedParam opens the including-removed scope when truthy.
	TrashedParam = "trashed"
	// SearchParam carries the free-text search term.
	SearchParam = "search"
)

// Params are the named filter parameters of one request.
type Params map[string]interface{}

// Attributes are column values supplied for create and update.
type Attributes map[string]interface{}

// Bool reads key as a boolean; "1", 1 and true are all true.
func (p Params) Bool(key string) bool {
	return cast.ToBool(p[key])
}

// Int reads key as an int, 0 when missing or malformed.
func (p Params) Int(key string) int {
	return cast.ToInt(p[key])
}

func (p Params) String(key string) string {
	return cast.ToString(p[key])
}

// IsEmpty reports whether value counts as "not supplied": nil, the empty
// string or an empty list.
func IsEmpty(value interface{}) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case []byte:
		return len(v) == 0
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len() == 0
	case reflect.Ptr, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
