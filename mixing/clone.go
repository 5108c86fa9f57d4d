package mixing

import "reflect"

// Clone returns a deep copy of value's mixable structure. Leaf values such as
// funcs, times and regexps are shared with the original. Shared and cyclic
// references are copied once, so the copy has the same shape as value.
func Clone[T any](value T) T {
	cloned := newCloner().value(reflect.ValueOf(value))
	if !cloned.IsValid() {
		var zero T
		return zero
	}
	if typed, ok := cloned.Interface().(T); ok {
		return typed
	}
	return value
}

// visit identifies a pointer, map or slice by its address and type. Slices
// also carry their length since two slices may share a backing array.
type visit struct {
	ptr uintptr
	typ reflect.Type
	len int
}

func identify(v reflect.Value) (visit, bool) {
	switch v.Kind() {
	case reflect.Pointer, reflect.Map:
		if v.IsNil() {
			return visit{}, false
		}
		return visit{ptr: v.Pointer(), typ: v.Type()}, true
	case reflect.Slice:
		if v.IsNil() || v.Len() == 0 {
			return visit{}, false
		}
		return visit{ptr: v.Pointer(), typ: v.Type(), len: v.Len()}, true
	default:
		return visit{}, false
	}
}

// cloner records the copy made for every reference it has entered. The copy
// is registered before its contents are filled in, which is what ends a walk
// over a cycle.
type cloner struct {
	seen map[visit]reflect.Value
}

func newCloner() *cloner {
	return &cloner{seen: make(map[visit]reflect.Value)}
}

func (c *cloner) value(v reflect.Value) reflect.Value {
	if !v.IsValid() {
		return v
	}
	if isOpaque(v.Type()) {
		return v
	}
	if id, ok := identify(v); ok {
		if done, found := c.seen[id]; found {
			return done
		}
	}

	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		clone := reflect.New(v.Type().Elem())
		c.remember(v, clone)
		clone.Elem().Set(c.value(v.Elem()))
		return clone
	case reflect.Interface:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		elem := c.value(v.Elem())
		if !elem.IsValid() {
			return reflect.Zero(v.Type())
		}
		return elem
	case reflect.Struct:
		clone := reflect.New(v.Type()).Elem()
		clone.Set(v)
		for i := 0; i < v.NumField(); i++ {
			field := clone.Field(i)
			if !field.CanSet() {
				continue
			}
			field.Set(c.value(v.Field(i)))
		}
		return clone
	case reflect.Map:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		clone := reflect.MakeMapWithSize(v.Type(), v.Len())
		c.remember(v, clone)
		iter := v.MapRange()
		for iter.Next() {
			value := c.value(iter.Value())
			if !value.IsValid() {
				value = reflect.Zero(v.Type().Elem())
			}
			clone.SetMapIndex(iter.Key(), value)
		}
		return clone
	case reflect.Slice:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		clone := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		c.remember(v, clone)
		for i := 0; i < v.Len(); i++ {
			clone.Index(i).Set(c.value(v.Index(i)))
		}
		return clone
	case reflect.Array:
		clone := reflect.New(v.Type()).Elem()
		for i := 0; i < v.Len(); i++ {
			clone.Index(i).Set(c.value(v.Index(i)))
		}
		return clone
	default:
		return v
	}
}

func (c *cloner) remember(original, clone reflect.Value) {
	if id, ok := identify(original); ok {
		c.seen[id] = clone
	}
}
