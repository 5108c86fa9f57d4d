package mixing

import (
	"maps"
	"reflect"
)

var (
	anyMapType   = reflect.TypeOf(map[string]any{})
	anySliceType = reflect.TypeOf([]any{})
)

// Mix combines to and from using strategy. When either side is not mixable
// the result is from, unchanged, so leaf values always follow last write
// wins. Mixable inputs are never mutated: the result is a new container.
func Mix(to, from any, strategy Strategy) any {
	if !IsMixable(to) || !IsMixable(from) {
		return from
	}
	merged, ok := newMerger(strategy).value(reflect.ValueOf(to), reflect.ValueOf(from))
	if !ok {
		return from
	}
	return merged.Interface()
}

// MixAs is the typed form of Mix. The merged value is converted back to T;
// when the merge widened the container type beyond T the result is from.
func MixAs[T any](to, from T, strategy Strategy) T {
	merged := Mix(to, from, strategy)
	if typed, ok := merged.(T); ok {
		return typed
	}
	return from
}

// ShallowMap returns a new map holding the entries of to overwritten and
// extended by the entries of from. A nil result is only returned when both
// inputs are nil.
func ShallowMap[K comparable, V any](to, from map[K]V) map[K]V {
	if to == nil && from == nil {
		return nil
	}
	out := make(map[K]V, len(to)+len(from))
	maps.Copy(out, to)
	maps.Copy(out, from)
	return out
}

// merger carries the state of one Mix call. seen maps each pair of
// references already being merged to its result, so cyclic inputs end in a
// cyclic result instead of unbounded recursion.
type merger struct {
	strategy Strategy
	clone    *cloner
	seen     map[[2]visit]reflect.Value
}

func newMerger(strategy Strategy) *merger {
	return &merger{
		strategy: strategy,
		clone:    newCloner(),
		seen:     make(map[[2]visit]reflect.Value),
	}
}

// pairOf reports the key for two references, or false when either side is
// not a reference.
func pairOf(to, from reflect.Value) ([2]visit, bool) {
	toID, ok := identify(to)
	if !ok {
		return [2]visit{}, false
	}
	fromID, ok := identify(from)
	if !ok {
		return [2]visit{}, false
	}
	return [2]visit{toID, fromID}, true
}

// value expects both sides to be mixable. It reports false when the two
// containers cannot be combined, in which case from wins.
func (m *merger) value(to, from reflect.Value) (reflect.Value, bool) {
	to, from = unwrapInterface(to), unwrapInterface(from)
	key, tracked := pairOf(to, from)
	if tracked {
		if done, ok := m.seen[key]; ok {
			return done, true
		}
	}

	switch {
	case to.Kind() == reflect.Pointer && from.Kind() == reflect.Pointer:
		if to.Type() != from.Type() {
			return reflect.Value{}, false
		}
		ptr := reflect.New(to.Type().Elem())
		if tracked {
			m.seen[key] = ptr
		}
		merged, ok := m.value(to.Elem(), from.Elem())
		if !ok || !merged.Type().AssignableTo(to.Type().Elem()) {
			if tracked {
				delete(m.seen, key)
			}
			return reflect.Value{}, false
		}
		ptr.Elem().Set(merged)
		return ptr, true
	case to.Kind() == reflect.Map && from.Kind() == reflect.Map:
		return m.maps(key, tracked, to, from), true
	case to.Kind() == reflect.Slice && from.Kind() == reflect.Slice:
		if m.strategy == Deep {
			return m.concat(to, from), true
		}
		return overlaySlices(to, from), true
	case to.Kind() == reflect.Struct && from.Kind() == reflect.Struct:
		if to.Type() != from.Type() {
			return reflect.Value{}, false
		}
		if m.strategy == Deep {
			return m.structs(to, from), true
		}
		out := reflect.New(from.Type()).Elem()
		out.Set(from)
		return out, true
	default:
		return reflect.Value{}, false
	}
}

// nested applies deep merging below the top level: incompatible or leaf
// values are replaced by a clone of from.
func (m *merger) nested(to, from reflect.Value) reflect.Value {
	if !isMixable(to) || !isMixable(from) {
		return m.clone.value(from)
	}
	merged, ok := m.value(to, from)
	if !ok {
		return m.clone.value(from)
	}
	return merged
}

func (m *merger) maps(key [2]visit, tracked bool, to, from reflect.Value) reflect.Value {
	resultType := to.Type()
	if to.Type() != from.Type() {
		resultType = anyMapType
	}
	result := reflect.MakeMapWithSize(resultType, to.Len()+from.Len())
	if tracked {
		m.seen[key] = result
	}
	keyType := resultType.Key()
	elemType := resultType.Elem()
	deep := m.strategy == Deep

	iter := to.MapRange()
	for iter.Next() {
		value := iter.Value()
		if deep {
			value = m.clone.value(value)
		}
		setMapIndex(result, iter.Key().Convert(keyType), value, elemType)
	}

	iter = from.MapRange()
	for iter.Next() {
		k := iter.Key().Convert(keyType)
		value := iter.Value()
		if deep {
			existing := to.MapIndex(iter.Key().Convert(to.Type().Key()))
			if existing.IsValid() {
				merged := m.nested(existing, value)
				if assignable(merged, elemType) {
					value = merged
				} else {
					value = m.clone.value(value)
				}
			} else {
				value = m.clone.value(value)
			}
		}
		setMapIndex(result, k, value, elemType)
	}
	return result
}

func setMapIndex(m, key, value reflect.Value, elemType reflect.Type) {
	if !value.IsValid() {
		m.SetMapIndex(key, reflect.Zero(elemType))
		return
	}
	if !value.Type().AssignableTo(elemType) {
		if value.Type().ConvertibleTo(elemType) {
			value = value.Convert(elemType)
		} else {
			return
		}
	}
	m.SetMapIndex(key, value)
}

func (m *merger) concat(to, from reflect.Value) reflect.Value {
	resultType := to.Type()
	if to.Type() != from.Type() {
		resultType = anySliceType
	}
	total := to.Len() + from.Len()
	result := reflect.MakeSlice(resultType, 0, total)
	for _, side := range []reflect.Value{to, from} {
		for i := 0; i < side.Len(); i++ {
			result = appendValue(result, m.clone.value(side.Index(i)))
		}
	}
	return result
}

func overlaySlices(to, from reflect.Value) reflect.Value {
	resultType := to.Type()
	if to.Type() != from.Type() {
		resultType = anySliceType
	}
	size := max(to.Len(), from.Len())
	result := reflect.MakeSlice(resultType, 0, size)
	for i := 0; i < size; i++ {
		if i < from.Len() {
			result = appendValue(result, from.Index(i))
			continue
		}
		result = appendValue(result, to.Index(i))
	}
	return result
}

func appendValue(slice, value reflect.Value) reflect.Value {
	elemType := slice.Type().Elem()
	if !value.IsValid() {
		return reflect.Append(slice, reflect.Zero(elemType))
	}
	if !value.Type().AssignableTo(elemType) {
		value = value.Convert(elemType)
	}
	return reflect.Append(slice, value)
}

// structs merges field by field. A nil map, slice, pointer or interface in
// from counts as unset and keeps the field of to. Zero scalars still win
// since they cannot be told apart from an explicit zero.
func (m *merger) structs(to, from reflect.Value) reflect.Value {
	result := reflect.New(from.Type()).Elem()
	result.Set(from)
	for i := 0; i < result.NumField(); i++ {
		field := result.Field(i)
		if !field.CanSet() {
			continue
		}
		if isNilReference(from.Field(i)) {
			field.Set(m.clone.value(to.Field(i)))
			continue
		}
		merged := m.nested(to.Field(i), from.Field(i))
		if assignable(merged, field.Type()) {
			field.Set(merged)
		}
	}
	return result
}

func isNilReference(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Map, reflect.Slice, reflect.Pointer, reflect.Interface:
		return v.IsNil()
	default:
		return false
	}
}

func assignable(v reflect.Value, t reflect.Type) bool {
	return v.IsValid() && v.Type().AssignableTo(t)
}

func unwrapInterface(v reflect.Value) reflect.Value {
	for v.IsValid() && v.Kind() == reflect.Interface && !v.IsNil() {
		v = v.Elem()
	}
	return v
}
