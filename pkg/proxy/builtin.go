package proxy

import (
	"bytes"
	"math/big"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"time"
)

// builtinName reports whether v is a value with internal state that the
// layer cannot intercept, and returns its type name without pointer stars.
func builtinName(v any) (string, bool) {
	switch v.(type) {
	case nil:
		return "", false
	case time.Time, *time.Time, *time.Location, *regexp.Regexp,
		*bytes.Buffer, *sync.Map, *big.Int, *big.Float, *big.Rat:
		return typeName(v), true
	}

	rt := reflect.TypeOf(v)
	switch rt.Kind() {
	case reflect.Chan:
		return rt.String(), true
	case reflect.Map:
		if rt.Key().Kind() != reflect.String {
			return rt.String(), true
		}
	case reflect.Slice:
		if rt.Elem().Kind() == reflect.Uint8 {
			return rt.String(), true
		}
	}
	return "", false
}

// IsBuiltin reports whether v is returned as-is by views instead of being
// wrapped.
func IsBuiltin(v any) bool {
	_, ok := builtinName(v)
	return ok
}

func typeName(v any) string {
	return strings.TrimLeft(reflect.TypeOf(v).String(), "*")
}
