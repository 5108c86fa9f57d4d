package modkit

import (
	"fmt"
	"maps"
	"reflect"
	"sort"
	"strings"
	"sync"
)

// ServiceRegistry stores named services for one builder. Registering a name
// twice keeps the latest value.
type ServiceRegistry struct {
	mu       sync.RWMutex
	services map[string]any
}

// NewServiceRegistry constructs an empty registry.
func NewServiceRegistry() *ServiceRegistry {
	return &ServiceRegistry{
		services: make(map[string]any),
	}
}

// Register stores value under name, replacing any previous value.
func (r *ServiceRegistry) Register(name string, value any) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("modkit: service name must not be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.services == nil {
		r.services = make(map[string]any)
	}
	r.services[name] = value
	return nil
}

// Lookup returns the service registered under name.
func (r *ServiceRegistry) Lookup(name string) (any, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	value, ok := r.services[name]
	return value, ok
}

// Len returns the number of registered services.
func (r *ServiceRegistry) Len() int {
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.services)
}

// Clone returns a shallow copy of the registry.
func (r *ServiceRegistry) Clone() *ServiceRegistry {
	if r == nil {
		return NewServiceRegistry()
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return &ServiceRegistry{
		services: maps.Clone(r.services),
	}
}

// Names returns registered service names sorted alphabetically.
func (r *ServiceRegistry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.services))
	for name := range r.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns a copy of the registered services.
func (r *ServiceRegistry) Snapshot() map[string]any {
	if r == nil {
		return map[string]any{}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]any, len(r.services))
	maps.Copy(out, r.services)
	return out
}

// bindServices copies base and assigns every registered service into it.
// Maps receive one key per service; structs receive the exported field whose
// `service` tag or name (case-insensitive) matches.
func bindServices[V any](base V, registry *ServiceRegistry) (V, error) {
	if registry.Len() == 0 {
		return base, nil
	}
	services := registry.Snapshot()
	names := registry.Names()

	target := reflect.ValueOf(&base).Elem()
	switch {
	case target.Kind() == reflect.Interface:
		bound, err := bindInterface(target, names, services)
		if err != nil {
			return base, err
		}
		return bound.Interface().(V), nil
	case target.Kind() == reflect.Map:
		bound, err := bindMap(target, names, services)
		if err != nil {
			return base, err
		}
		return bound.Interface().(V), nil
	case target.Kind() == reflect.Struct:
		bound := reflect.New(target.Type()).Elem()
		bound.Set(target)
		if err := bindStruct(bound, names, services); err != nil {
			return base, err
		}
		return bound.Interface().(V), nil
	case target.Kind() == reflect.Pointer && target.Type().Elem().Kind() == reflect.Struct:
		bound := reflect.New(target.Type().Elem())
		if !target.IsNil() {
			bound.Elem().Set(target.Elem())
		}
		if err := bindStruct(bound.Elem(), names, services); err != nil {
			return base, err
		}
		return bound.Interface().(V), nil
	default:
		return base, fmt.Errorf("%w: bundle of type %s cannot hold named services", ErrServiceType, target.Type())
	}
}

// bindInterface handles bundles typed as an interface, typically any. The
// bundle becomes a map[string]any unless it already holds a map or struct.
func bindInterface(target reflect.Value, names []string, services map[string]any) (reflect.Value, error) {
	out := reflect.New(target.Type()).Elem()
	if target.IsNil() {
		bound := make(map[string]any, len(services))
		maps.Copy(bound, services)
		if !reflect.TypeOf(bound).AssignableTo(target.Type()) {
			return reflect.Value{}, fmt.Errorf("%w: map[string]any does not implement %s", ErrServiceType, target.Type())
		}
		out.Set(reflect.ValueOf(bound))
		return out, nil
	}

	inner := target.Elem()
	var bound reflect.Value
	var err error
	switch {
	case inner.Kind() == reflect.Map:
		bound, err = bindMap(inner, names, services)
	case inner.Kind() == reflect.Struct:
		bound = reflect.New(inner.Type()).Elem()
		bound.Set(inner)
		err = bindStruct(bound, names, services)
	case inner.Kind() == reflect.Pointer && inner.Type().Elem().Kind() == reflect.Struct && !inner.IsNil():
		bound = reflect.New(inner.Type().Elem())
		bound.Elem().Set(inner.Elem())
		err = bindStruct(bound.Elem(), names, services)
	default:
		err = fmt.Errorf("%w: bundle of type %s cannot hold named services", ErrServiceType, inner.Type())
	}
	if err != nil {
		return reflect.Value{}, err
	}
	out.Set(bound)
	return out, nil
}

func bindMap(target reflect.Value, names []string, services map[string]any) (reflect.Value, error) {
	mapType := target.Type()
	if mapType.Key().Kind() != reflect.String {
		return reflect.Value{}, fmt.Errorf("%w: bundle map keys must be strings, got %s", ErrServiceType, mapType.Key())
	}
	bound := reflect.MakeMapWithSize(mapType, target.Len()+len(names))
	if !target.IsNil() {
		iter := target.MapRange()
		for iter.Next() {
			bound.SetMapIndex(iter.Key(), iter.Value())
		}
	}
	for _, name := range names {
		value, err := serviceValue(name, services[name], mapType.Elem())
		if err != nil {
			return reflect.Value{}, err
		}
		bound.SetMapIndex(reflect.ValueOf(name).Convert(mapType.Key()), value)
	}
	return bound, nil
}

func bindStruct(target reflect.Value, names []string, services map[string]any) error {
	for _, name := range names {
		field, ok := serviceField(target, name)
		if !ok {
			return fmt.Errorf("%w: %q has no field in %s", ErrUnknownService, name, target.Type())
		}
		value, err := serviceValue(name, services[name], field.Type())
		if err != nil {
			return err
		}
		field.Set(value)
	}
	return nil
}

func serviceField(target reflect.Value, name string) (reflect.Value, bool) {
	structType := target.Type()
	for i := 0; i < structType.NumField(); i++ {
		field := structType.Field(i)
		if !field.IsExported() {
			continue
		}
		if tag, ok := field.Tag.Lookup("service"); ok {
			if tag == name {
				return target.Field(i), true
			}
			continue
		}
		if strings.EqualFold(field.Name, name) {
			return target.Field(i), true
		}
	}
	return reflect.Value{}, false
}

func serviceValue(name string, value any, want reflect.Type) (reflect.Value, error) {
	if value == nil {
		switch want.Kind() {
		case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
			return reflect.Zero(want), nil
		}
		return reflect.Value{}, fmt.Errorf("%w: %q is nil, want %s", ErrServiceType, name, want)
	}
	rv := reflect.ValueOf(value)
	if !rv.Type().AssignableTo(want) {
		return reflect.Value{}, fmt.Errorf("%w: %q is %s, want %s", ErrServiceType, name, rv.Type(), want)
	}
	return rv, nil
}
