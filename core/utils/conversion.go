package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ToInt64 converts various types to int64 using explicit type switching.
// It handles standard integer types, floats, strings, and byte slices.
func ToInt64(val any) int64 {
	switch v := val.(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case int32:
		return int64(v)
	case uint:
		return int64(v)
	case uint32:
		return int64(v)
	case uint64:
		return int64(v)
	case float64:
		return int64(v)
	case string:
		i, _ := strconv.ParseInt(v, 10, 64)
		return i
	case []byte:
		i, _ := strconv.ParseInt(string(v), 10, 64)
		return i
	default:
		i, _ := strconv.ParseInt(fmt.Sprintf("%v", v), 10, 64)
		return i
	}
}

// ToBool converts various types to bool.
// It handles bool, numeric types (1=true), and strings ("1", "true").
func ToBool(val any) bool {
	switch v := val.(type) {
	case bool:
		return v
	case int, int64, int32, uint, uint64, uint32:
		return ToInt64(v) == 1
	case string:
		return v == "1" || strings.ToLower(v) == "true"
	case []byte:
		s := string(v)
		return s == "1" || strings.ToLower(s) == "true"
	default:
		return false
	}
}

// PutInt64 writes an optional integer into a hash field map. Nil values are omitted.
func PutInt64(fields map[string]string, name string, v *int64) {
	if v != nil {
		fields[name] = strconv.FormatInt(*v, 10)
	}
}

// GetInt64 reads an optional integer from a hash field map.
// A missing field yields nil; a malformed one yields an error.
func GetInt64(fields map[string]string, name string) (*int64, error) {
	raw, ok := fields[name]
	if !ok {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", name, err)
	}
	return &v, nil
}

// PutTime writes a timestamp as RFC3339Nano. Zero times are omitted.
func PutTime(fields map[string]string, name string, t time.Time) {
	if !t.IsZero() {
		fields[name] = t.UTC().Format(time.RFC3339Nano)
	}
}

// GetTime reads an RFC3339Nano timestamp; a missing field yields the zero time.
func GetTime(fields map[string]string, name string) (time.Time, error) {
	raw, ok := fields[name]
	if !ok {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("field %s: %w", name, err)
	}
	return t, nil
}

// Int64Ptr returns a pointer to v.
func Int64Ptr(v int64) *int64 {
	return &v
}
