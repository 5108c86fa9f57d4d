package modkit

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Schema summarises a finished descriptor: state field types and the names
// registered under each handler field, recursively over modules.
type Schema struct {
	State       []FieldDescriptor `json:"state,omitempty"`
	Namespaced  bool              `json:"namespaced,omitempty"`
	Actions     []string          `json:"actions,omitempty"`
	RootActions []string          `json:"root_actions,omitempty"`
	Mutations   []string          `json:"mutations,omitempty"`
	Getters     []string          `json:"getters,omitempty"`
	Modules     map[string]Schema `json:"modules,omitempty"`
}

// FieldDescriptor describes a state path and its Go type.
type FieldDescriptor struct {
	Path string `json:"path"`
	Type string `json:"type"`
}

// Schema derives the descriptor schema.
func (d *Descriptor[S]) Schema() Schema {
	if d == nil {
		return Schema{}
	}
	schema := Schema{
		Namespaced: d.IsNamespaced(),
		Mutations:  sortedKeys(d.Mutations),
		Getters:    sortedKeys(d.Getters),
	}
	if d.HasState {
		schema.State = deriveFieldDescriptors(reflect.ValueOf(d.State), "")
	}
	for _, name := range sortedKeys(d.Actions) {
		schema.Actions = append(schema.Actions, name)
		if d.Actions[name].Root {
			schema.RootActions = append(schema.RootActions, name)
		}
	}
	for name, module := range d.Modules {
		described, ok := module.(interface{ Schema() Schema })
		if !ok {
			continue
		}
		if schema.Modules == nil {
			schema.Modules = map[string]Schema{}
		}
		schema.Modules[name] = described.Schema()
	}
	return schema
}

func deriveFieldDescriptors(value reflect.Value, prefix string) []FieldDescriptor {
	for value.IsValid() && (value.Kind() == reflect.Interface || value.Kind() == reflect.Pointer) {
		if value.IsNil() {
			break
		}
		value = value.Elem()
	}
	if !value.IsValid() {
		if prefix == "" {
			return nil
		}
		return []FieldDescriptor{{Path: prefix, Type: "nil"}}
	}

	switch {
	case value.Kind() == reflect.Map && value.Type().Key().Kind() == reflect.String && value.Len() > 0:
		keys := make([]string, 0, value.Len())
		for _, key := range value.MapKeys() {
			keys = append(keys, key.String())
		}
		sort.Strings(keys)
		var fields []FieldDescriptor
		for _, key := range keys {
			elem := value.MapIndex(reflect.ValueOf(key).Convert(value.Type().Key()))
			fields = append(fields, deriveFieldDescriptors(elem, joinPath(prefix, key))...)
		}
		return fields
	case value.Kind() == reflect.Struct && value.Type().PkgPath() != "time" && value.NumField() > 0:
		var fields []FieldDescriptor
		for i := 0; i < value.NumField(); i++ {
			field := value.Type().Field(i)
			if !field.IsExported() {
				continue
			}
			fields = append(fields, deriveFieldDescriptors(value.Field(i), joinPath(prefix, fieldName(field)))...)
		}
		return fields
	default:
		return []FieldDescriptor{{Path: prefix, Type: typeName(value)}}
	}
}

func fieldName(field reflect.StructField) string {
	if tag, ok := field.Tag.Lookup("json"); ok {
		name, _, _ := strings.Cut(tag, ",")
		if name != "" && name != "-" {
			return name
		}
	}
	return field.Name
}

func typeName(value reflect.Value) string {
	if value.Kind() == reflect.Slice && value.Type().Elem().Kind() == reflect.Interface && value.Len() > 0 {
		return "[]" + fmt.Sprintf("%T", value.Index(0).Interface())
	}
	return value.Type().String()
}

func joinPath(prefix, segment string) string {
	if prefix == "" {
		return segment
	}
	return prefix + "." + segment
}
