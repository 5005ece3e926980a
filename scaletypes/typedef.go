// Copyright (c) 2025 pk910
// SPDX-License-Identifier: Apache-2.0
// This file is part of the dynamic-scale library.

// Package scaletypes holds the version independent model of the library: type
// expressions, resolved type definitions, decoded values, the normalized
// runtime metadata shape and the chain type dictionaries.
package scaletypes

import (
	"fmt"
)

// TypeID is an index into a TypeSet.
type TypeID uint32

// TypeKind identifies the shape of a resolved type definition.
type TypeKind uint8

const (
	TypeUnresolved TypeKind = iota // placeholder while the definition is being built
	TypeNull                      // zero byte marker type
	TypePrimitive
	TypeComposite
	TypeEnum
	TypeSequence // vector with compact length prefix
	TypeArray    // fixed length, no prefix
	TypeTuple
	TypeOption
	TypeOptionBool // one byte Option<bool> special encoding
	TypeCompact
	TypeBitSeq  // compact bit count + packed bits
	TypeFlagSet // bit flag set over a fixed width word
	TypeCall    // runtime call: pallet index, call index, argument list
	TypeEra     // extrinsic mortality
)

// PrimitiveKind identifies a primitive type.
type PrimitiveKind uint8

const (
	PrimBool PrimitiveKind = iota
	PrimChar
	PrimStr
	PrimU8
	PrimU16
	PrimU32
	PrimU64
	PrimU128
	PrimU256
	PrimI8
	PrimI16
	PrimI32
	PrimI64
	PrimI128
	PrimI256
)

func (p PrimitiveKind) String() string {
	switch p {
	case PrimBool:
		return "bool"
	case PrimChar:
		return "char"
	case PrimStr:
		return "str"
	case PrimU8:
		return "u8"
	case PrimU16:
		return "u16"
	case PrimU32:
		return "u32"
	case PrimU64:
		return "u64"
	case PrimU128:
		return "u128"
	case PrimU256:
		return "u256"
	case PrimI8:
		return "i8"
	case PrimI16:
		return "i16"
	case PrimI32:
		return "i32"
	case PrimI64:
		return "i64"
	case PrimI128:
		return "i128"
	case PrimI256:
		return "i256"
	default:
		return fmt.Sprintf("primitive(%d)", uint8(p))
	}
}

// TypeDef is one resolved type definition inside a TypeSet. All references to
// other definitions are TypeIDs into the same set, so definition graphs may
// contain cycles without cyclic Go pointers.
type TypeDef struct {
	Kind     TypeKind      `json:"kind"`
	Prim     PrimitiveKind `json:"prim,omitempty"`     // for TypePrimitive
	Fields   []FieldDef    `json:"fields,omitempty"`   // for TypeComposite
	Variants []VariantDef  `json:"variants,omitempty"` // for TypeEnum
	Elem     TypeID        `json:"elem,omitempty"`     // for sequence/array/option/compact
	Len      uint32        `json:"len,omitempty"`      // for TypeArray
	Elems    []TypeID      `json:"elems,omitempty"`    // for TypeTuple
	Flags    []FlagDef     `json:"flags,omitempty"`    // for TypeFlagSet
	FlagBits uint32        `json:"flagBits,omitempty"` // for TypeFlagSet: width of the flag word in bits
	Path     string        `json:"path,omitempty"`     // display name for diagnostics
}

// FieldDef is a named (or positional, when Name is empty) composite member.
type FieldDef struct {
	Name string `json:"name,omitempty"`
	Type TypeID `json:"type"`
}

// VariantDef is one enum variant. Index is the wire discriminant, which is not
// necessarily the position in the variant list.
type VariantDef struct {
	Name   string     `json:"name"`
	Index  uint8      `json:"index"`
	Fields []FieldDef `json:"fields,omitempty"`
}

// FlagDef is one member of a bit flag set. Mask is the raw bit mask within the
// flag word, not a bit position.
type FlagDef struct {
	Name string `json:"name"`
	Mask uint64 `json:"mask"`
}

// TypeSet is an append-only arena of type definitions. Definitions reference
// each other by TypeID, which keeps recursive types representable and makes
// the whole set immutable once construction is done.
type TypeSet struct {
	defs []TypeDef
}

func NewTypeSet() *TypeSet {
	return &TypeSet{
		defs: make([]TypeDef, 0, 64),
	}
}

// Len returns the number of definitions in the set.
func (ts *TypeSet) Len() int {
	return len(ts.defs)
}

// Add appends a definition and returns its id.
func (ts *TypeSet) Add(def TypeDef) TypeID {
	ts.defs = append(ts.defs, def)
	return TypeID(len(ts.defs) - 1)
}

// Reserve appends an unresolved placeholder and returns its id. The caller
// fills it in via Assign once the real definition is known. This is how
// self referential definitions obtain an id before their body is built.
func (ts *TypeSet) Reserve() TypeID {
	return ts.Add(TypeDef{Kind: TypeUnresolved})
}

// Assign replaces the definition at id.
func (ts *TypeSet) Assign(id TypeID, def TypeDef) {
	ts.defs[id] = def
}

// Get returns the definition for id.
func (ts *TypeSet) Get(id TypeID) (*TypeDef, error) {
	if int(id) >= len(ts.defs) {
		return nil, fmt.Errorf("type id %v out of range (set size: %v)", id, len(ts.defs))
	}
	return &ts.defs[id], nil
}

// VariantByIndex returns the variant with the given wire discriminant.
func (d *TypeDef) VariantByIndex(index uint8) *VariantDef {
	for i := range d.Variants {
		if d.Variants[i].Index == index {
			return &d.Variants[i]
		}
	}
	return nil
}

func (d *TypeDef) String() string {
	if d.Path != "" {
		return d.Path
	}
	switch d.Kind {
	case TypePrimitive:
		return d.Prim.String()
	case TypeNull:
		return "()"
	default:
		return fmt.Sprintf("type(kind=%d)", d.Kind)
	}
}
