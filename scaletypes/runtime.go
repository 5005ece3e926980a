// Copyright (c) 2025 pk910
// SPDX-License-Identifier: Apache-2.0
// This file is part of the dynamic-scale library.

package scaletypes

import (
	"fmt"
)

// StorageHasher identifies the hashing strategy applied to a storage map key.
type StorageHasher uint8

const (
	HasherBlake2_128 StorageHasher = iota
	HasherBlake2_256
	HasherBlake2_128Concat
	HasherTwox128
	HasherTwox256
	HasherTwox64Concat
	HasherIdentity
)

func (h StorageHasher) String() string {
	switch h {
	case HasherBlake2_128:
		return "blake2_128"
	case HasherBlake2_256:
		return "blake2_256"
	case HasherBlake2_128Concat:
		return "blake2_128_concat"
	case HasherTwox128:
		return "twox128"
	case HasherTwox256:
		return "twox256"
	case HasherTwox64Concat:
		return "twox64_concat"
	case HasherIdentity:
		return "identity"
	default:
		return fmt.Sprintf("hasher(%d)", uint8(h))
	}
}

// StorageModifier describes whether a storage entry yields an Option or falls
// back to a default value when no data is stored under its key.
type StorageModifier uint8

const (
	StorageModifierOptional StorageModifier = iota
	StorageModifierDefault
)

// RuntimeMetadata is the normalized view of one runtime's metadata, produced
// by the version specific parsers. All seven supported metadata revisions are
// reduced to this one shape.
type RuntimeMetadata struct {
	Version   uint32
	Modules   []*ModuleMetadata
	Extrinsic *ExtrinsicMetadata // nil before metadata v11
	Types     *TypeSet           // interned registry for v14, nil for dictionary based runtimes

	moduleByName     map[string]*ModuleMetadata
	moduleByIndex    map[uint8]*ModuleMetadata
	moduleByCallIdx  map[uint8]*ModuleMetadata
	moduleByEventIdx map[uint8]*ModuleMetadata
}

func NewRuntimeMetadata(version uint32) *RuntimeMetadata {
	return &RuntimeMetadata{
		Version:          version,
		moduleByName:     map[string]*ModuleMetadata{},
		moduleByIndex:    map[uint8]*ModuleMetadata{},
		moduleByCallIdx:  map[uint8]*ModuleMetadata{},
		moduleByEventIdx: map[uint8]*ModuleMetadata{},
	}
}

// AddModule appends a module and indexes it by name and its index bytes. Call
// and event indexes only register when the module carries calls or events, as
// index bytes of index-less modules overlap before metadata v12.
func (m *RuntimeMetadata) AddModule(module *ModuleMetadata) {
	m.Modules = append(m.Modules, module)
	m.moduleByName[module.Name] = module
	m.moduleByIndex[module.Index] = module
	if module.Calls != nil {
		m.moduleByCallIdx[module.CallIndex] = module
	}
	if module.Events != nil {
		m.moduleByEventIdx[module.EventIndex] = module
	}
}

// Module returns the module with the given name, or nil.
func (m *RuntimeMetadata) Module(name string) *ModuleMetadata {
	return m.moduleByName[name]
}

// ModuleByIndex returns the module with the given index, or nil.
func (m *RuntimeMetadata) ModuleByIndex(index uint8) *ModuleMetadata {
	return m.moduleByIndex[index]
}

// ModuleByCallIndex returns the module addressed by the given index byte in
// encoded calls, or nil.
func (m *RuntimeMetadata) ModuleByCallIndex(index uint8) *ModuleMetadata {
	return m.moduleByCallIdx[index]
}

// ModuleByEventIndex returns the module addressed by the given index byte in
// encoded event records, or nil.
func (m *RuntimeMetadata) ModuleByEventIndex(index uint8) *ModuleMetadata {
	return m.moduleByEventIdx[index]
}

// ModuleMetadata is the normalized description of one runtime module (pallet).
//
// Index is the module's position in the module list before metadata v12 and
// an explicit byte from v12 on. CallIndex and EventIndex are the index bytes
// used on the wire: from v12 on they equal Index, before v12 they count only
// the modules that carry calls (respectively events), which is how runtimes
// assigned dispatch indexes back then.
type ModuleMetadata struct {
	Name       string
	Index      uint8
	CallIndex  uint8
	EventIndex uint8
	Storage    *StorageMetadata
	Calls      []CallMetadata // nil when the module dispatches no calls
	Events     []EventMetadata
	Errors     []ErrorMetadata
	Constants  []ConstantMetadata
}

// Call returns the call with the given name, or nil.
func (m *ModuleMetadata) Call(name string) *CallMetadata {
	for i := range m.Calls {
		if m.Calls[i].Name == name {
			return &m.Calls[i]
		}
	}
	return nil
}

// CallByIndex returns the call with the given dispatch index, or nil.
func (m *ModuleMetadata) CallByIndex(index uint8) *CallMetadata {
	for i := range m.Calls {
		if m.Calls[i].Index == index {
			return &m.Calls[i]
		}
	}
	return nil
}

// Event returns the event with the given name, or nil.
func (m *ModuleMetadata) Event(name string) *EventMetadata {
	for i := range m.Events {
		if m.Events[i].Name == name {
			return &m.Events[i]
		}
	}
	return nil
}

// EventByIndex returns the event with the given index, or nil.
func (m *ModuleMetadata) EventByIndex(index uint8) *EventMetadata {
	for i := range m.Events {
		if m.Events[i].Index == index {
			return &m.Events[i]
		}
	}
	return nil
}

// ErrorByIndex returns the error with the given index, or nil.
func (m *ModuleMetadata) ErrorByIndex(index uint8) *ErrorMetadata {
	for i := range m.Errors {
		if m.Errors[i].Index == index {
			return &m.Errors[i]
		}
	}
	return nil
}

// Constant returns the constant with the given name, or nil.
func (m *ModuleMetadata) Constant(name string) *ConstantMetadata {
	for i := range m.Constants {
		if m.Constants[i].Name == name {
			return &m.Constants[i]
		}
	}
	return nil
}

// ArgMetadata is one named (or positional) argument of a call or event.
type ArgMetadata struct {
	Name string
	Type *TypeExpr
}

// CallMetadata describes one dispatchable call.
type CallMetadata struct {
	Name  string
	Index uint8
	Args  []ArgMetadata
	Docs  []string
}

// EventMetadata describes one event variant.
type EventMetadata struct {
	Name  string
	Index uint8
	Args  []ArgMetadata
	Docs  []string
}

// ErrorMetadata describes one module error variant.
type ErrorMetadata struct {
	Name  string
	Index uint8
	Docs  []string
}

// ConstantMetadata describes one module constant. Value holds the raw SCALE
// encoded constant bytes; they decode with the constant's type.
type ConstantMetadata struct {
	Name  string
	Type  *TypeExpr
	Value []byte
	Docs  []string
}

// StorageMetadata describes a module's storage namespace.
type StorageMetadata struct {
	Prefix  string
	Entries []StorageEntryMetadata
}

// Entry returns the storage entry with the given name, or nil.
func (s *StorageMetadata) Entry(name string) *StorageEntryMetadata {
	for i := range s.Entries {
		if s.Entries[i].Name == name {
			return &s.Entries[i]
		}
	}
	return nil
}

// StorageEntryMetadata describes one storage entry. Plain entries have no
// keys; maps carry one hasher and key per dimension (one for simple maps, two
// for double maps, n for the v13+ n-maps). Linked marks the deprecated linked
// map form whose stored values carry previous/next key links after the value.
type StorageEntryMetadata struct {
	Name     string
	Modifier StorageModifier
	Hashers  []StorageHasher
	Keys     []*TypeExpr
	Value    *TypeExpr
	Linked   bool
	Default  []byte
	Docs     []string
}

// IsPlain reports whether the entry is a plain value rather than a map.
func (e *StorageEntryMetadata) IsPlain() bool {
	return len(e.Keys) == 0
}

// ExtrinsicMetadata describes the extrinsic format of a runtime. Metadata
// revisions before v11 carry no extrinsic information.
type ExtrinsicMetadata struct {
	Version          uint8
	SignedExtensions []SignedExtension

	// Address/Signature types from the registry based extrinsic type, when the
	// metadata revision exposes them. Dictionary based runtimes resolve the
	// conventional "Address"/"Signature" entries instead.
	AddressType   *TypeExpr
	SignatureType *TypeExpr
}

// SignedExtension is one entry of the signed extension list. Type is nil for
// metadata revisions that only record extension identifiers.
type SignedExtension struct {
	Name string
	Type *TypeExpr
}
