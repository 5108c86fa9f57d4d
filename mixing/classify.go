package mixing

import (
	"math/big"
	"reflect"
	"regexp"
	"time"
)

var (
	timeType     = reflect.TypeOf(time.Time{})
	regexpType   = reflect.TypeOf(regexp.Regexp{})
	bigIntType   = reflect.TypeOf(big.Int{})
	bigFloatType = reflect.TypeOf(big.Float{})
	bigRatType   = reflect.TypeOf(big.Rat{})
	emptyType    = reflect.TypeOf(struct{}{})
)

// IsMixable reports whether value is a composable container whose contents
// may be merged key by key. Leaf values (nil, scalars, times, regexps, big
// numbers, funcs, sets and non string keyed maps) are replaced wholesale.
func IsMixable(value any) bool {
	return isMixable(reflect.ValueOf(value))
}

func isMixable(v reflect.Value) bool {
	if !v.IsValid() {
		return false
	}
	if isOpaque(v.Type()) {
		return false
	}

	switch v.Kind() {
	case reflect.Interface, reflect.Pointer:
		if v.IsNil() {
			return false
		}
		return isMixable(v.Elem())
	case reflect.Map:
		if v.IsNil() {
			return false
		}
		return v.Type().Key().Kind() == reflect.String && v.Type().Elem() != emptyType
	case reflect.Slice:
		return !v.IsNil()
	case reflect.Struct:
		return true
	default:
		return false
	}
}

func isOpaque(t reflect.Type) bool {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t {
	case timeType, regexpType, bigIntType, bigFloatType, bigRatType:
		return true
	}
	return false
}
