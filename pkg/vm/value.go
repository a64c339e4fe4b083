package vm

import (
	"fmt"
	"strconv"
)

// Kind is the runtime type of a Value.
type Kind uint8

const (
	KindNone Kind = iota
	KindInt
	KindReal
	KindBool
	KindRef // reference to a variable, pushed by identifiers
)

var kindNames = [...]string{
	KindNone: "none",
	KindInt:  "integer",
	KindReal: "real",
	KindBool: "boolean",
	KindRef:  "reference",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Value is a stack slot or variable value.
type Value struct {
	Kind Kind
	I    int64
	F    float64
	B    bool
	Ref  string
}

func IntValue(i int64) Value     { return Value{Kind: KindInt, I: i} }
func RealValue(f float64) Value  { return Value{Kind: KindReal, F: f} }
func BoolValue(b bool) Value     { return Value{Kind: KindBool, B: b} }
func RefValue(name string) Value { return Value{Kind: KindRef, Ref: name} }

// AsReal widens an integer; reals pass through.
func (v Value) AsReal() float64 {
	if v.Kind == KindInt {
		return float64(v.I)
	}
	return v.F
}

func (v Value) IsNumeric() bool {
	return v.Kind == KindInt || v.Kind == KindReal
}

func (v Value) String() string {
	switch v.Kind {
	case KindInt:
		return strconv.FormatInt(v.I, 10)
	case KindReal:
		return strconv.FormatFloat(v.F, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.B)
	case KindRef:
		return "&" + v.Ref
	}
	return "<none>"
}

// ParseValue converts input text to a value of the given kind.
func ParseValue(kind Kind, text string) (Value, error) {
	switch kind {
	case KindInt:
		i, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("invalid integer %q", text)
		}
		return IntValue(i), nil
	case KindReal:
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return Value{}, fmt.Errorf("invalid real %q", text)
		}
		return RealValue(f), nil
	case KindBool:
		b, err := strconv.ParseBool(text)
		if err != nil {
			return Value{}, fmt.Errorf("invalid boolean %q", text)
		}
		return BoolValue(b), nil
	}
	return Value{}, fmt.Errorf("cannot read a value of kind %s", kind)
}
