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
	"strings"

	"github.com/tomoncle/quarry/entity"
)

const confirmationMarker = "_confirmation"

// OnlyFillable returns the subset of attrs whose keys are fillable columns of
// the entity. Keys containing "_confirmation" ("password_confirmation",
// "email_confirmation_code") never pass, even when declared fillable. attrs is
// left untouched.
func OnlyFillable(attrs Attributes, meta *entity.Meta) Attributes {
	out := make(Attributes, len(attrs))
	for key, value := range attrs {
		if strings.Contains(key, confirmationMarker) || !meta.IsFillable(key) {
			continue
		}
		out[key] = value
	}
	return out
}
