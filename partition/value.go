package partition

import (
	"fmt"
	"math"
	"math/big"
	"strings"
	"time"
)

// valueKey is the canonical string form of a partition column value used for
// hashing and list membership.
func valueKey(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// orderValue converts a value or a qualifier to an exact rational so that
// integers beyond float64 precision still order correctly. Temporal values
// compare by their Unix time; times of day share a fixed date.
func orderValue(v any) (*big.Rat, error) {
	switch x := v.(type) {
	case int:
		return new(big.Rat).SetInt64(int64(x)), nil
	case int8:
		return new(big.Rat).SetInt64(int64(x)), nil
	case int16:
		return new(big.Rat).SetInt64(int64(x)), nil
	case int32:
		return new(big.Rat).SetInt64(int64(x)), nil
	case int64:
		return new(big.Rat).SetInt64(x), nil
	case uint:
		return new(big.Rat).SetUint64(uint64(x)), nil
	case uint8:
		return new(big.Rat).SetUint64(uint64(x)), nil
	case uint16:
		return new(big.Rat).SetUint64(uint64(x)), nil
	case uint32:
		return new(big.Rat).SetUint64(uint64(x)), nil
	case uint64:
		return new(big.Rat).SetUint64(x), nil
	case float32:
		return floatValue(float64(x))
	case float64:
		return floatValue(x)
	case time.Time:
		return timeValue(x), nil
	case string:
		x = strings.TrimSpace(x)
		if r, ok := new(big.Rat).SetString(x); ok {
			return r, nil
		}
		for _, layout := range []string{time.RFC3339Nano, time.DateTime, time.DateOnly, time.TimeOnly} {
			if t, err := time.Parse(layout, x); err == nil {
				return timeValue(t), nil
			}
		}
		return nil, fmt.Errorf("%q is not a number or timestamp", x)
	default:
		return nil, fmt.Errorf("value of type %T is not comparable", v)
	}
}

func floatValue(f float64) (*big.Rat, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("%v is not a finite number", f)
	}
	return new(big.Rat).SetFloat64(f), nil
}

func timeValue(t time.Time) *big.Rat {
	r := new(big.Rat).SetInt64(t.Unix())
	return r.Add(r, big.NewRat(int64(t.Nanosecond()), int64(time.Second)))
}
