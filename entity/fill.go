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

import (
	"fmt"
	"reflect"
	"time"

	"github.com/spf13/cast"
)

// Fill assigns attrs to the columns of strct, a pointer to a value of the
// model type. Values are converted to the field type the way a form or JSON
// decoder would hand them over ("42" into an int64 column, and so on).
func (m *Meta) Fill(strct interface{}, attrs map[string]interface{}) error {
	v := reflect.ValueOf(strct)
	if v.Kind() != reflect.Ptr || v.Elem().Type() != m.Type {
		return fmt.Errorf("fill %s: want *%s, got %T", m.Table, m.Type, strct)
	}
	v = v.Elem()
	for column, value := range attrs {
		field, ok := m.table.FieldMap[column]
		if !ok {
			return fmt.Errorf("%w: %s.%s", ErrUnknownField, m.Table, column)
		}
		if err := assign(field.Value(v), value); err != nil {
			return fmt.Errorf("fill %s.%s: %w", m.Table, column, err)
		}
	}
	return nil
}

// Attributes reads the named columns of strct back into a map.
func (m *Meta) Attributes(strct interface{}, columns ...string) map[string]interface{} {
	v := reflect.Indirect(reflect.ValueOf(strct))
	attrs := make(map[string]interface{}, len(columns))
	for _, column := range columns {
		if field, ok := m.table.FieldMap[column]; ok {
			attrs[column] = field.Value(v).Interface()
		}
	}
	return attrs
}

// Touch sets the created and updated timestamps. created is only set when
// still zero.
func (m *Meta) Touch(strct interface{}, now time.Time) {
	v := reflect.Indirect(reflect.ValueOf(strct))
	if m.CreatedAt != "" {
		fv := m.table.FieldMap[m.CreatedAt].Value(v)
		if fv.Kind() == reflect.Ptr {
			if fv.IsNil() {
				_ = assign(fv, now)
			}
		} else if fv.Interface().(time.Time).IsZero() {
			fv.Set(reflect.ValueOf(now))
		}
	}
	if m.UpdatedAt != "" {
		_ = assign(m.table.FieldMap[m.UpdatedAt].Value(v), now)
	}
}

func assign(dst reflect.Value, value interface{}) error {
	if value == nil {
		dst.Set(reflect.Zero(dst.Type()))
		return nil
	}
	if dst.Kind() == reflect.Ptr {
		src := reflect.ValueOf(value)
		if src.Type().AssignableTo(dst.Type()) {
			dst.Set(src)
			return nil
		}
		if dst.IsNil() {
			dst.Set(reflect.New(dst.Type().Elem()))
		}
		return assign(dst.Elem(), value)
	}

	src := reflect.ValueOf(value)
	if src.Type().AssignableTo(dst.Type()) {
		dst.Set(src)
		return nil
	}
	if dst.Type() == timeType {
		t, err := cast.ToTimeE(value)
		if err != nil {
			return err
		}
		dst.Set(reflect.ValueOf(t))
		return nil
	}

	switch dst.Kind() {
	case reflect.String:
		s, err := cast.ToStringE(value)
		if err != nil {
			return err
		}
		dst.SetString(s)
	case reflect.Bool:
		b, err := cast.ToBoolE(value)
		if err != nil {
			return err
		}
		dst.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := cast.ToInt64E(value)
		if err != nil {
			return err
		}
		if dst.OverflowInt(n) {
			return fmt.Errorf("value %d overflows %s", n, dst.Type())
		}
		dst.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := cast.ToUint64E(value)
		if err != nil {
			return err
		}
		if dst.OverflowUint(n) {
			return fmt.Errorf("value %d overflows %s", n, dst.Type())
		}
		dst.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := cast.ToFloat64E(value)
		if err != nil {
			return err
		}
		dst.SetFloat(f)
	default:
		if !src.Type().ConvertibleTo(dst.Type()) {
			return fmt.Errorf("cannot assign %T to %s", value, dst.Type())
		}
		dst.Set(src.Convert(dst.Type()))
	}
	return nil
}

func toString(value interface{}) string {
	return cast.ToString(value)
}
