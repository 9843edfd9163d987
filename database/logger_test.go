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
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestToFields(t *testing.T) {
	assert.Equal(t, logrus.Fields{"a": 1, "b": "x"}, toFields([]interface{}{"a", 1, "b", "x"}))
	assert.Equal(t, logrus.Fields{"a": 1, "extra": "dangling"}, toFields([]interface{}{"a", 1, "dangling"}))
	assert.Empty(t, toFields(nil))
}

func TestDefaultLoggerWritesFields(t *testing.T) {
	l := NewDefaultLogger("DBTEST")
	var buf bytes.Buffer
	l.logger.SetOutput(&buf)
	l.logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true, DisableColors: true})

	l.SetLevel(LogLevelWarn)
	l.Info("hidden")
	l.Warn("Slow query detected", "duration", "3s")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `msg="Slow query detected" duration=3s`)
}

func TestGetLoggerIsStable(t *testing.T) {
	assert.Same(t, GetLogger(), GetLogger())
}
