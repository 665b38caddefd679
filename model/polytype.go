package model

import "fmt"

// PolyType is the logical type of a column, independent of any adapter.
type PolyType uint8

const (
	TypeBoolean PolyType = iota
	TypeTinyInt
	TypeSmallInt
	TypeInteger
	TypeBigInt
	TypeDecimal
	TypeReal
	TypeDouble
	TypeDate
	TypeTime
	TypeTimestamp
	TypeChar
	TypeVarchar
	TypeText
	TypeBinary
	TypeVarbinary
	TypeBlob
	TypeJSON
	TypeArray
)

var polyTypeNames = [...]string{
	TypeBoolean:   "BOOLEAN",
	TypeTinyInt:   "TINYINT",
	TypeSmallInt:  "SMALLINT",
	TypeInteger:   "INTEGER",
	TypeBigInt:    "BIGINT",
	TypeDecimal:   "DECIMAL",
	TypeReal:      "REAL",
	TypeDouble:    "DOUBLE",
	TypeDate:      "DATE",
	TypeTime:      "TIME",
	TypeTimestamp: "TIMESTAMP",
	TypeChar:      "CHAR",
	TypeVarchar:   "VARCHAR",
	TypeText:      "TEXT",
	TypeBinary:    "BINARY",
	TypeVarbinary: "VARBINARY",
	TypeBlob:      "BLOB",
	TypeJSON:      "JSON",
	TypeArray:     "ARRAY",
}

func (t PolyType) String() string {
	if int(t) < len(polyTypeNames) {
		return polyTypeNames[t]
	}
	return fmt.Sprintf("PolyType(%d)", uint8(t))
}

// ParsePolyType parses the String form of a PolyType.
func ParsePolyType(s string) (PolyType, error) {
	all := make([]PolyType, len(polyTypeNames))
	for i := range all {
		all[i] = PolyType(i)
	}
	return parseEnum(s, all, "type")
}

// IsNumeric reports whether t is an exact or approximate number.
func (t PolyType) IsNumeric() bool {
	switch t {
	case TypeTinyInt, TypeSmallInt, TypeInteger, TypeBigInt, TypeDecimal, TypeReal, TypeDouble:
		return true
	}
	return false
}

// IsInteger reports whether t is an integer type.
func (t PolyType) IsInteger() bool {
	switch t {
	case TypeTinyInt, TypeSmallInt, TypeInteger, TypeBigInt:
		return true
	}
	return false
}

// IsFloating reports whether t is an approximate number.
func (t PolyType) IsFloating() bool {
	return t == TypeReal || t == TypeDouble
}

// IsTemporal reports whether t is a date or time type.
func (t PolyType) IsTemporal() bool {
	return t == TypeDate || t == TypeTime || t == TypeTimestamp
}

// IsCharacter reports whether t is a string type.
func (t PolyType) IsCharacter() bool {
	return t == TypeChar || t == TypeVarchar || t == TypeText
}

// IsBlob reports whether t holds unstructured binary or nested data.
func (t PolyType) IsBlob() bool {
	switch t {
	case TypeBinary, TypeVarbinary, TypeBlob, TypeJSON, TypeArray:
		return true
	}
	return false
}
