// Copyright (c) 2025 pk910
// SPDX-License-Identifier: Apache-2.0
// This file is part of the dynamic-scale library.

package scaletypes

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
)

// ValueKind identifies the shape of a decoded value.
type ValueKind uint8

const (
	ValueNull ValueKind = iota
	ValueBool
	ValueUint    // unsigned up to 64 bits
	ValueInt     // signed up to 64 bits
	ValueBigUint // u128 / u256
	ValueBigInt  // i128 / i256
	ValueChar
	ValueString
	ValueBytes     // byte sequences and byte arrays
	ValueComposite // named or positional fields
	ValueVariant   // enum variant with inner fields
	ValueSequence  // vectors, arrays and tuples of non byte element types
	ValueOption
	ValueBits  // bit sequence
	ValueFlags // bit flag set
	ValueCall  // runtime call with pallet/call name and arguments
	ValueEra   // extrinsic mortality
)

// Value is one node of a decoded value tree.
type Value struct {
	Kind ValueKind

	Bool    bool
	Uint    uint64
	Int     int64
	BigUint *uint256.Int
	BigInt  *big.Int
	Char    rune
	Str     string
	Bytes   []byte

	Name   string       // variant name, or "Pallet.call" for calls
	Fields []ValueField // composite/variant/call members
	Values []*Value     // sequence members
	Inner  *Value       // option payload, nil when absent

	BitLen int      // number of bits in a bit sequence
	Flags  []string // names of the raised flags
	Word   uint64   // raw flag word

	Period uint64 // era period, 0 for immortal
	Phase  uint64 // era phase
}

// ValueField is a single composite member. Name is empty for positional
// members; a composite is either fully named or fully positional.
type ValueField struct {
	Name  string
	Value *Value
}

func BoolValue(v bool) *Value         { return &Value{Kind: ValueBool, Bool: v} }
func UintValue(v uint64) *Value       { return &Value{Kind: ValueUint, Uint: v} }
func IntValue(v int64) *Value         { return &Value{Kind: ValueInt, Int: v} }
func StringValue(v string) *Value     { return &Value{Kind: ValueString, Str: v} }
func BytesValue(v []byte) *Value      { return &Value{Kind: ValueBytes, Bytes: v} }
func CharValue(v rune) *Value         { return &Value{Kind: ValueChar, Char: v} }
func NullValue() *Value               { return &Value{Kind: ValueNull} }
func OptionValue(inner *Value) *Value { return &Value{Kind: ValueOption, Inner: inner} }

func BigUintValue(v *uint256.Int) *Value { return &Value{Kind: ValueBigUint, BigUint: v} }
func BigIntValue(v *big.Int) *Value      { return &Value{Kind: ValueBigInt, BigInt: v} }

func CompositeValue(fields ...ValueField) *Value {
	return &Value{Kind: ValueComposite, Fields: fields}
}

func SequenceValue(values ...*Value) *Value {
	return &Value{Kind: ValueSequence, Values: values}
}

func VariantValue(name string, fields ...ValueField) *Value {
	return &Value{Kind: ValueVariant, Name: name, Fields: fields}
}

func CallValue(name string, fields ...ValueField) *Value {
	return &Value{Kind: ValueCall, Name: name, Fields: fields}
}

func BitsValue(bits []byte, bitLen int) *Value {
	return &Value{Kind: ValueBits, Bytes: bits, BitLen: bitLen}
}

func FlagsValue(word uint64, flags ...string) *Value {
	return &Value{Kind: ValueFlags, Word: word, Flags: flags}
}

func EraValue(period, phase uint64) *Value {
	return &Value{Kind: ValueEra, Period: period, Phase: phase}
}

// Named reports whether the composite members carry field names.
func (v *Value) Named() bool {
	return len(v.Fields) > 0 && v.Fields[0].Name != ""
}

// Field returns the named composite member, or nil.
func (v *Value) Field(name string) *Value {
	for i := range v.Fields {
		if v.Fields[i].Name == name {
			return v.Fields[i].Value
		}
	}
	return nil
}

// String renders the value in a compact human readable form: named composites
// as `{ a: 1, b: 2 }`, positional ones as `(1, 2)`, variants as `Name(...)`,
// sequences as `[...]`.
func (v *Value) String() string {
	var sb strings.Builder
	v.writeString(&sb)
	return sb.String()
}

func (v *Value) writeString(sb *strings.Builder) {
	switch v.Kind {
	case ValueNull:
		sb.WriteString("()")
	case ValueBool:
		fmt.Fprintf(sb, "%v", v.Bool)
	case ValueUint:
		fmt.Fprintf(sb, "%d", v.Uint)
	case ValueInt:
		fmt.Fprintf(sb, "%d", v.Int)
	case ValueBigUint:
		sb.WriteString(v.BigUint.String())
	case ValueBigInt:
		sb.WriteString(v.BigInt.String())
	case ValueChar:
		fmt.Fprintf(sb, "%q", v.Char)
	case ValueString:
		fmt.Fprintf(sb, "%q", v.Str)
	case ValueBytes:
		fmt.Fprintf(sb, "0x%x", v.Bytes)
	case ValueComposite:
		v.writeFields(sb)
	case ValueVariant, ValueCall:
		sb.WriteString(v.Name)
		if len(v.Fields) > 0 {
			v.writeFields(sb)
		}
	case ValueSequence:
		sb.WriteString("[")
		for i, val := range v.Values {
			if i > 0 {
				sb.WriteString(", ")
			}
			val.writeString(sb)
		}
		sb.WriteString("]")
	case ValueOption:
		if v.Inner == nil {
			sb.WriteString("None")
		} else {
			sb.WriteString("Some(")
			v.Inner.writeString(sb)
			sb.WriteString(")")
		}
	case ValueBits:
		sb.WriteString("[")
		for i := 0; i < v.BitLen; i++ {
			if i > 0 {
				sb.WriteString(", ")
			}
			if v.Bytes[i/8]&(1<<(i%8)) != 0 {
				sb.WriteString("1")
			} else {
				sb.WriteString("0")
			}
		}
		sb.WriteString("]")
	case ValueFlags:
		sb.WriteString("[")
		sb.WriteString(strings.Join(v.Flags, " | "))
		sb.WriteString("]")
	case ValueEra:
		if v.Period == 0 {
			sb.WriteString("Immortal")
		} else {
			fmt.Fprintf(sb, "Mortal(%d, %d)", v.Period, v.Phase)
		}
	default:
		fmt.Fprintf(sb, "value(kind=%d)", v.Kind)
	}
}

func (v *Value) writeFields(sb *strings.Builder) {
	if v.Named() {
		sb.WriteString("{ ")
		for i, field := range v.Fields {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(field.Name)
			sb.WriteString(": ")
			field.Value.writeString(sb)
		}
		sb.WriteString(" }")
	} else {
		sb.WriteString("(")
		for i, field := range v.Fields {
			if i > 0 {
				sb.WriteString(", ")
			}
			field.Value.writeString(sb)
		}
		sb.WriteString(")")
	}
}

/// MarshalJSON renders the value tree as plain JSON: named composites become
// objects, positional ones arrays, bytes hex strings, 128/256 bit integers
// decimal strings, unit variants plain strings.
func (v *Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.jsonValue())
}

func (v *Value) jsonValue() any {
	switch v.Kind {
	case ValueNull:
		return nil
	case ValueBool:
		return v.Bool
	case ValueUint:
		return v.Uint
	case ValueInt:
		return v.Int
	case ValueBigUint:
		return v.BigUint.String()
	case ValueBigInt:
		return v.BigInt.String()
	case ValueChar:
		return string(v.Char)
	case ValueString:
		return v.Str
	case ValueBytes:
		return fmt.Sprintf("0x%x", v.Bytes)
	case ValueComposite:
		return v.jsonFields()
	case ValueVariant, ValueCall:
		if len(v.Fields) == 0 {
			return v.Name
		}
		return map[string]any{v.Name: v.jsonFields()}
	case ValueSequence:
		values := make([]any, len(v.Values))
		for i, val := range v.Values {
			values[i] = val.jsonValue()
		}
		return values
	case ValueOption:
		if v.Inner == nil {
			return nil
		}
		return v.Inner.jsonValue()
	case ValueBits:
		bits := make([]uint8, v.BitLen)
		for i := 0; i < v.BitLen; i++ {
			if v.Bytes[i/8]&(1<<(i%8)) != 0 {
				bits[i] = 1
			}
		}
		return bits
	case ValueFlags:
		if v.Flags == nil {
			return []string{}
		}
		return v.Flags
	case ValueEra:
		if v.Period == 0 {
			return "Immortal"
		}
		return map[string]any{"period": v.Period, "phase": v.Phase}
	default:
		return nil
	}
}

func (v *Value) jsonFields() any {
	if v.Named() {
		fields := make(map[string]any, len(v.Fields))
		for _, field := range v.Fields {
			fields[field.Name] = field.Value.jsonValue()
		}
		return fields
	}
	values := make([]any, len(v.Fields))
	for i, field := range v.Fields {
		values[i] = field.Value.jsonValue()
	}
	return values
}
