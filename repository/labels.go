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
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// TitleCase upper-cases the first letter of every word and leaves the rest
// as is, the default label transform for select options.
func TitleCase(s string) string {
	// a Caser is stateful and not shared
	return cases.Title(language.Und, cases.NoLower).String(s)
}
