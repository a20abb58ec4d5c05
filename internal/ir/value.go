package ir

import (
	"bytes"
	"database/sql/driver"
	"fmt"
	"math"
)

// Kind identifies the storage class of a Value.
type Kind int

const (
	KindNull Kind = iota
	KindInt
	KindFloat
	KindText
	KindBlob
)

// String returns the SQLite name of the storage class.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "NULL"
	case KindInt:
		return "INTEGER"
	case KindFloat:
		return "REAL"
	case KindText:
		return "TEXT"
	case KindBlob:
		return "BLOB"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Value is a sealed interface representing one engine value.
// Only Null, Int, Float, Text and Blob implement it.
type Value interface {
	driver.Valuer
	Kind() Kind
	value() // Sealed - only these types implement it
}

// Null represents SQL NULL.
type Null struct{}

func (Null) value() {}
func (Null) Kind() Kind { return KindNull }
func (Null) Value() (driver.Value, error) { return nil, nil }
func (Null) String() string { return "NULL" }

// Int represents a 64-bit signed integer.
type Int int64

func (Int) value() {}
func (Int) Kind() Kind { return KindInt }
func (v Int) Value() (driver.Value, error) { return int64(v), nil }

// Float represents an IEEE 754 double.
type Float float64

func (Float) value() {}
func (Float) Kind() Kind { return KindFloat }
func (v Float) Value() (driver.Value, error) { return float64(v), nil }

// Text represents a UTF-8 string.
type Text string

func (Text) value() {}
func (Text) Kind() Kind { return KindText }
func (v Text) Value() (driver.Value, error) { return string(v), nil }

// Blob represents raw bytes.
type Blob []byte

func (Blob) value() {}
func (Blob) Kind() Kind { return KindBlob }
func (v Blob) Value() (driver.Value, error) { return []byte(v), nil }

// IsNull reports whether v is the null marker. A nil interface counts as null.
func IsNull(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(Null)
	return ok
}

// FromDriver converts a cell read from the SQLite driver into a Value.
//
// Cells arrive as their storage class: int64, float64, string, []byte or
// nil. Anything else means the driver converted the cell by its declared
// type, which loses the stored value, so it is rejected. Byte slices are
// copied because the driver may reuse its buffer.
func FromDriver(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case int64:
		return Int(val), nil
	case float64:
		return Float(val), nil
	case string:
		return Text(val), nil
	case []byte:
		return Blob(bytes.Clone(val)), nil
	default:
		return nil, fmt.Errorf("unsupported driver value type: %T", v)
	}
}

// Of converts a plain Go value into a Value.
// Accepts nil, every Value, all integer and float kinds, bool, string and
// []byte. Unsigned integers above math.MaxInt64 are rejected.
func Of(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case int:
		return Int(val), nil
	case int8:
		return Int(val), nil
	case int16:
		return Int(val), nil
	case int32:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case uint8:
		return Int(val), nil
	case uint16:
		return Int(val), nil
	case uint32:
		return Int(val), nil
	case uint:
		if uint64(val) > math.MaxInt64 {
			return nil, fmt.Errorf("uint %d overflows int64", val)
		}
		return Int(val), nil
	case uint64:
		if val > math.MaxInt64 {
			return nil, fmt.Errorf("uint64 %d overflows int64", val)
		}
		return Int(val), nil
	case float32:
		return Float(val), nil
	case float64:
		return Float(val), nil
	case bool:
		if val {
			return Int(1), nil
		}
		return Int(0), nil
	case string:
		return Text(val), nil
	case []byte:
		if val == nil {
			return Null{}, nil
		}
		return Blob(bytes.Clone(val)), nil
	default:
		return nil, fmt.Errorf("unsupported value type: %T", v)
	}
}

// Native returns the plain Go value behind v: nil, int64, float64, string
// or []byte.
func Native(v Value) any {
	switch val := v.(type) {
	case nil, Null:
		return nil
	case Int:
		return int64(val)
	case Float:
		return float64(val)
	case Text:
		return string(val)
	case Blob:
		return []byte(val)
	default:
		return nil
	}
}

// Equal reports whether two values have the same kind and content.
func Equal(a, b Value) bool {
	if IsNull(a) || IsNull(b) {
		return IsNull(a) && IsNull(b)
	}
	if a.Kind() != b.Kind() {
		return false
	}
	if ab, ok := a.(Blob); ok {
		return bytes.Equal(ab, b.(Blob))
	}
	return a == b
}
