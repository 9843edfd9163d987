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

package database

import (
	"reflect"
	"sort"
	"sync"
)

var defaultRegistry = NewModelRegistry()

// RegisteredModel is a bun model instance taking part in migrations.
// Models with a lower Priority get their tables first, so referenced tables
// should carry a lower priority than the tables pointing at them.
type RegisteredModel struct {
	Instance interface{}
	Priority int
}

// ModelRegistry stores models in a deterministic order.
type ModelRegistry struct {
	mu     sync.RWMutex
	models []RegisteredModel
}

func NewModelRegistry() *ModelRegistry {
	return &ModelRegistry{}
}

// Register adds instance, a struct pointer such as (*User)(nil). Registering
// the same type twice replaces the previous priority.
func (r *ModelRegistry) Register(instance interface{}, priority int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	typ := reflect.TypeOf(instance)
	for i, m := range r.models {
		if reflect.TypeOf(m.Instance) == typ {
			r.models[i].Priority = priority
			return
		}
	}
	r.models = append(r.models, RegisteredModel{Instance: instance, Priority: priority})
}

// Models returns the models by ascending priority, keeping registration
// order among equal priorities.
func (r *ModelRegistry) Models() []RegisteredModel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]RegisteredModel, len(r.models))
	copy(result, r.models)
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Priority < result[j].Priority
	})
	return result
}

func (r *ModelRegistry) Instances() []interface{} {
	models := r.Models()
	out := make([]interface{}, len(models))
	for i, m := range models {
		out[i] = m.Instance
	}
	return out
}

// RegisterModel adds a model to the process registry used by InitDB.
func RegisterModel(instance interface{}, priority int) {
	defaultRegistry.Register(instance, priority)
}

func RegisteredModels() []RegisteredModel {
	return defaultRegistry.Models()
}

func RegisteredModelInstances() []interface{} {
	return defaultRegistry.Instances()
}
