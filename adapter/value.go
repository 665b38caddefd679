package adapter

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hupe1980/polyalloc/model"
)

// DefaultValue returns the column default converted to the Go type rows
// carry for the column's type, or nil when the column has no default.
func (c Column) DefaultValue() (any, error) {
	if c.Default == nil {
		return nil, nil
	}
	v, err := ParseValue(c.Type, c.Default.Value)
	if err != nil {
		return nil, fmt.Errorf("default of %s: %w", c.Name(), err)
	}
	return v, nil
}

// ParseValue converts the textual form of a value of type t.
func ParseValue(t model.PolyType, s string) (any, error) {
	switch {
	case t == model.TypeBoolean:
		return strconv.ParseBool(s)
	case t.IsInteger():
		return strconv.ParseInt(s, 10, 64)
	case t.IsFloating(), t == model.TypeDecimal:
		return strconv.ParseFloat(s, 64)
	case t == model.TypeDate:
		return time.Parse(time.DateOnly, s)
	case t == model.TypeTime:
		return time.Parse(time.TimeOnly, s)
	case t == model.TypeTimestamp:
		if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return ts, nil
		}
		return time.Parse(time.DateTime, s)
	case t.IsBlob() && t != model.TypeJSON:
		return []byte(s), nil
	default:
		return s, nil
	}
}

// DefaultSQL renders the column default as an SQL literal, or "" when the
// column has none.
func (c Column) DefaultSQL() string {
	if c.Default == nil {
		return ""
	}
	switch {
	case c.Type.IsInteger(), c.Type.IsFloating(), c.Type == model.TypeDecimal:
		if _, err := strconv.ParseFloat(c.Default.Value, 64); err == nil {
			return c.Default.Value
		}
	case c.Type == model.TypeBoolean:
		if b, err := strconv.ParseBool(c.Default.Value); err == nil {
			return strings.ToUpper(strconv.FormatBool(b))
		}
	}
	return "'" + strings.ReplaceAll(c.Default.Value, "'", "''") + "'"
}
