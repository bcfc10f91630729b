package query

import (
	"errors"
	"fmt"
	"reflect"
	"time"
)

// Type is the declared SQL type of an Argument.
type Type int

const (
	Integer Type = iota + 1
	Text
	Date
	Blob
)

// DateLayout is the storage layout of Date arguments.
const DateLayout = "2006-01-02"

// ErrTypeMismatch is returned when an argument value does not fit its declared type.
var ErrTypeMismatch = errors.New("argument value does not match declared type")

func (t Type) String() string {
	switch t {
	case Integer:
		return "Integer"
	case Text:
		return "Text"
	case Date:
		return "Date"
	case Blob:
		return "Blob"
	default:
		return "Unknown"
	}
}

// Valid reports whether t is one of the declared types.
func (t Type) Valid() bool { return t >= Integer && t <= Blob }

// Argument is a (column, value, declared type) triple.
type Argument struct {
	Column string
	Value  any
	Type   Type
}

// Int returns an Integer argument.
func Int(column string, value int64) Argument { return Argument{Column: column, Value: value, Type: Integer} }

// Str returns a Text argument.
func Str(column, value string) Argument { return Argument{Column: column, Value: value, Type: Text} }

// Day returns a Date argument.
func Day(column string, value time.Time) Argument {
	return Argument{Column: column, Value: value, Type: Date}
}

// Bytes returns a Blob argument.
func Bytes(column string, value []byte) Argument {
	return Argument{Column: column, Value: value, Type: Blob}
}

// Null returns an argument binding SQL NULL with the given declared type.
func Null(column string, typ Type) Argument { return Argument{Column: column, Type: typ} }

// IsNull reports whether the argument binds SQL NULL: a nil value, or a typed
// nil such as a nil []byte or pointer.
func (a Argument) IsNull() bool {
	if a.Value == nil {
		return true
	}
	switch v := reflect.ValueOf(a.Value); v.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Map, reflect.Interface:
		return v.IsNil()
	}
	return false
}

func (a Argument) String() string {
	return fmt.Sprintf("%s(%s=%v)", a.Type, a.Column, a.Value)
}

// BindValue converts the value to the driver representation of the declared
// type. A null argument (see IsNull) binds NULL regardless of type.
func (a Argument) BindValue() (any, error) {
	if !a.Type.Valid() {
		return nil, fmt.Errorf("%w: column %q has unknown type %d", ErrTypeMismatch, a.Column, int(a.Type))
	}
	if a.IsNull() {
		return nil, nil
	}
	switch a.Type {
	case Integer:
		return bindInteger(a)
	case Text:
		switch v := a.Value.(type) {
		case string:
			return v, nil
		case []byte:
			return string(v), nil
		case fmt.Stringer:
			return v.String(), nil
		}
	case Date:
		switch v := a.Value.(type) {
		case time.Time:
			return v.Format(DateLayout), nil
		case string:
			d, err := time.Parse(DateLayout, v)
			if err != nil {
				return nil, fmt.Errorf("%w: column %q: %v", ErrTypeMismatch, a.Column, err)
			}
			return d.Format(DateLayout), nil
		}
	case Blob:
		switch v := a.Value.(type) {
		case []byte:
			return v, nil
		case string:
			return []byte(v), nil
		}
	}
	return nil, fmt.Errorf("%w: column %q declared %s got %T", ErrTypeMismatch, a.Column, a.Type, a.Value)
}

func bindInteger(a Argument) (any, error) {
	switch v := a.Value.(type) {
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case bool:
		if v {
			return int64(1), nil
		}
		return int64(0), nil
	}
	return nil, fmt.Errorf("%w: column %q declared %s got %T", ErrTypeMismatch, a.Column, a.Type, a.Value)
}
