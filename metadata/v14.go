// Copyright (c) 2025 pk910
// SPDX-License-Identifier: Apache-2.0
// This file is part of the dynamic-scale library.

package metadata

import (
	"fmt"
	"strings"

	"github.com/pk910/dynamic-scale/scaletypes"
	"github.com/pk910/dynamic-scale/scaleutils"
)

// v14Parser reads the self describing metadata revision. v14 replaces the
// type names of the older revisions with a portable type registry, so the
// parsed modules reference interned registry types instead of expressions
// that need a chain type dictionary.
type v14Parser struct {
	reader *scaleutils.BufferReader
	types  map[uint32]*portableType
	order  []uint32
	idMap  map[uint32]scaletypes.TypeID
	set    *scaletypes.TypeSet
}

type portableType struct {
	path   []string
	params []portableParam
	def    rawTypeDef
}

type portableParam struct {
	name string
	ty   *uint32
}

// scale-info type definition tags
const (
	typeDefComposite   = 0
	typeDefVariant     = 1
	typeDefSequence    = 2
	typeDefArray       = 3
	typeDefTuple       = 4
	typeDefPrimitive   = 5
	typeDefCompact     = 6
	typeDefBitSequence = 7
)

type rawTypeDef struct {
	tag      uint8
	fields   []rawField
	variants []rawVariant
	elem     uint32
	len      uint32
	tuple    []uint32
	prim     scaletypes.PrimitiveKind
	bitStore uint32
	bitOrder uint32
}

type rawField struct {
	name string
	ty   uint32
}

type rawVariant struct {
	name   string
	index  uint8
	fields []rawField
	docs   []string
}

func parseV14(reader *scaleutils.BufferReader) (*scaletypes.RuntimeMetadata, error) {
	p := &v14Parser{
		reader: reader,
		types:  map[uint32]*portableType{},
		idMap:  map[uint32]scaletypes.TypeID{},
		set:    scaletypes.NewTypeSet(),
	}

	if err := p.parseRegistry(); err != nil {
		return nil, fmt.Errorf("type registry: %v", err)
	}
	if err := p.buildTypeSet(); err != nil {
		return nil, fmt.Errorf("type registry: %v", err)
	}

	meta := scaletypes.NewRuntimeMetadata(14)
	meta.Types = p.set

	palletCount, err := p.readLen()
	if err != nil {
		return nil, fmt.Errorf("cannot read pallet count: %v", err)
	}
	if palletCount > 256 {
		return nil, fmt.Errorf("pallet count %d out of range", palletCount)
	}
	for i := 0; i < palletCount; i++ {
		module, err := p.parsePallet()
		if err != nil {
			return nil, fmt.Errorf("pallet %d: %v", i, err)
		}
		meta.AddModule(module)
	}

	if meta.Extrinsic, err = p.parseExtrinsic(); err != nil {
		return nil, fmt.Errorf("extrinsic metadata: %v", err)
	}

	// trailing runtime type id, not needed for decoding
	if _, err := p.reader.ReadCompactUint32(); err != nil {
		return nil, fmt.Errorf("cannot read runtime type: %v", err)
	}
	return meta, nil
}

func (p *v14Parser) parseRegistry() error {
	count, err := p.readLen()
	if err != nil {
		return fmt.Errorf("cannot read type count: %v", err)
	}
	for i := 0; i < count; i++ {
		id, err := p.reader.ReadCompactUint32()
		if err != nil {
			return fmt.Errorf("cannot read type id: %v", err)
		}
		if _, exists := p.types[id]; exists {
			return fmt.Errorf("duplicate type id %d", id)
		}
		ty, err := p.parseType()
		if err != nil {
			return fmt.Errorf("type %d: %v", id, err)
		}
		p.types[id] = ty
		p.order = append(p.order, id)
	}
	return nil
}

func (p *v14Parser) parseType() (*portableType, error) {
	ty := &portableType{}

	pathLen, err := p.readLen()
	if err != nil {
		return nil, fmt.Errorf("cannot read path: %v", err)
	}
	ty.path = make([]string, 0, pathLen)
	for i := 0; i < pathLen; i++ {
		segment, err := p.reader.ReadText()
		if err != nil {
			return nil, fmt.Errorf("cannot read path segment: %v", err)
		}
		ty.path = append(ty.path, segment)
	}

	paramCount, err := p.readLen()
	if err != nil {
		return nil, fmt.Errorf("cannot read type parameters: %v", err)
	}
	ty.params = make([]portableParam, 0, paramCount)
	for i := 0; i < paramCount; i++ {
		param := portableParam{}
		if param.name, err = p.reader.ReadText(); err != nil {
			return nil, fmt.Errorf("cannot read type parameter name: %v", err)
		}
		hasType, err := p.reader.ReadOptionFlag()
		if err != nil {
			return nil, fmt.Errorf("cannot read type parameter: %v", err)
		}
		if hasType {
			paramType, err := p.reader.ReadCompactUint32()
			if err != nil {
				return nil, fmt.Errorf("cannot read type parameter: %v", err)
			}
			param.ty = &paramType
		}
		ty.params = append(ty.params, param)
	}

	if err := p.parseTypeDef(&ty.def); err != nil {
		return nil, err
	}

	if _, err := p.parseDocs(); err != nil {
		return nil, err
	}
	return ty, nil
}

func (p *v14Parser) parseTypeDef(def *rawTypeDef) error {
	tag, err := p.reader.ReadUint8()
	if err != nil {
		return fmt.Errorf("cannot read type definition tag: %v", err)
	}
	def.tag = tag

	switch tag {
	case typeDefComposite:
		def.fields, err = p.parseFields()
		return err
	case typeDefVariant:
		count, err := p.readLen()
		if err != nil {
			return fmt.Errorf("cannot read variant count: %v", err)
		}
		if count > 256 {
			return fmt.Errorf("variant count %d out of range", count)
		}
		def.variants = make([]rawVariant, 0, count)
		for i := 0; i < count; i++ {
			variant := rawVariant{}
			if variant.name, err = p.reader.ReadText(); err != nil {
				return fmt.Errorf("variant %d: cannot read name: %v", i, err)
			}
			if variant.fields, err = p.parseFields(); err != nil {
				return fmt.Errorf("variant %s: %v", variant.name, err)
			}
			if variant.index, err = p.reader.ReadUint8(); err != nil {
				return fmt.Errorf("variant %s: cannot read index: %v", variant.name, err)
			}
			if variant.docs, err = p.parseDocs(); err != nil {
				return fmt.Errorf("variant %s: %v", variant.name, err)
			}
			def.variants = append(def.variants, variant)
		}
		return nil
	case typeDefSequence:
		def.elem, err = p.reader.ReadCompactUint32()
		return err
	case typeDefArray:
		if def.len, err = p.reader.ReadUint32(); err != nil {
			return err
		}
		def.elem, err = p.reader.ReadCompactUint32()
		return err
	case typeDefTuple:
		count, err := p.readLen()
		if err != nil {
			return fmt.Errorf("cannot read tuple size: %v", err)
		}
		def.tuple = make([]uint32, 0, count)
		for i := 0; i < count; i++ {
			elem, err := p.reader.ReadCompactUint32()
			if err != nil {
				return err
			}
			def.tuple = append(def.tuple, elem)
		}
		return nil
	case typeDefPrimitive:
		prim, err := p.reader.ReadUint8()
		if err != nil {
			return err
		}
		if prim > uint8(scaletypes.PrimI256) {
			return fmt.Errorf("unknown primitive tag %d", prim)
		}
		def.prim = scaletypes.PrimitiveKind(prim)
		return nil
	case typeDefCompact:
		def.elem, err = p.reader.ReadCompactUint32()
		return err
	case typeDefBitSequence:
		if def.bitStore, err = p.reader.ReadCompactUint32(); err != nil {
			return err
		}
		def.bitOrder, err = p.reader.ReadCompactUint32()
		return err
	default:
		return fmt.Errorf("unknown type definition tag %d", tag)
	}
}

func (p *v14Parser) parseFields() ([]rawField, error) {
	count, err := p.readLen()
	if err != nil {
		return nil, fmt.Errorf("cannot read field count: %v", err)
	}
	fields := make([]rawField, 0, count)
	for i := 0; i < count; i++ {
		field := rawField{}
		hasName, err := p.reader.ReadOptionFlag()
		if err != nil {
			return nil, fmt.Errorf("field %d: %v", i, err)
		}
		if hasName {
			if field.name, err = p.reader.ReadText(); err != nil {
				return nil, fmt.Errorf("field %d: cannot read name: %v", i, err)
			}
		}
		if field.ty, err = p.reader.ReadCompactUint32(); err != nil {
			return nil, fmt.Errorf("field %d: cannot read type: %v", i, err)
		}
		hasTypeName, err := p.reader.ReadOptionFlag()
		if err != nil {
			return nil, fmt.Errorf("field %d: %v", i, err)
		}
		if hasTypeName {
			if _, err = p.reader.ReadText(); err != nil {
				return nil, fmt.Errorf("field %d: cannot read type name: %v", i, err)
			}
		}
		if _, err = p.parseDocs(); err != nil {
			return nil, fmt.Errorf("field %d: %v", i, err)
		}
		fields = append(fields, field)
	}
	return fields, nil
}

// buildTypeSet interns the portable registry into a TypeSet. All types are
// reserved first so definitions may reference each other in any order.
func (p *v14Parser) buildTypeSet() error {
	for _, id := range p.order {
		p.idMap[id] = p.set.Reserve()
	}
	for _, id := range p.order {
		ty := p.types[id]
		def, err := p.convertType(ty)
		if err != nil {
			return fmt.Errorf("type %d: %v", id, err)
		}
		p.set.Assign(p.idMap[id], def)
	}
	return nil
}

func (p *v14Parser) convertType(ty *portableType) (scaletypes.TypeDef, error) {
	def := scaletypes.TypeDef{Path: strings.Join(ty.path, "::")}
	raw := &ty.def

	switch raw.tag {
	case typeDefComposite:
		def.Kind = scaletypes.TypeComposite
		fields, err := p.convertFields(raw.fields)
		if err != nil {
			return def, err
		}
		def.Fields = fields
	case typeDefVariant:
		def.Kind = scaletypes.TypeEnum
		def.Variants = make([]scaletypes.VariantDef, 0, len(raw.variants))
		for _, variant := range raw.variants {
			fields, err := p.convertFields(variant.fields)
			if err != nil {
				return def, fmt.Errorf("variant %s: %v", variant.name, err)
			}
			def.Variants = append(def.Variants, scaletypes.VariantDef{
				Name:   variant.name,
				Index:  variant.index,
				Fields: fields,
			})
		}
	case typeDefSequence:
		def.Kind = scaletypes.TypeSequence
		elem, err := p.resolveRef(raw.elem)
		if err != nil {
			return def, err
		}
		def.Elem = elem
	case typeDefArray:
		def.Kind = scaletypes.TypeArray
		def.Len = raw.len
		elem, err := p.resolveRef(raw.elem)
		if err != nil {
			return def, err
		}
		def.Elem = elem
	case typeDefTuple:
		def.Kind = scaletypes.TypeTuple
		def.Elems = make([]scaletypes.TypeID, 0, len(raw.tuple))
		for _, elem := range raw.tuple {
			ref, err := p.resolveRef(elem)
			if err != nil {
				return def, err
			}
			def.Elems = append(def.Elems, ref)
		}
	case typeDefPrimitive:
		def.Kind = scaletypes.TypePrimitive
		def.Prim = raw.prim
	case typeDefCompact:
		def.Kind = scaletypes.TypeCompact
		elem, err := p.resolveRef(raw.elem)
		if err != nil {
			return def, err
		}
		def.Elem = elem
	case typeDefBitSequence:
		storeBits, err := p.bitStoreWidth(raw.bitStore)
		if err != nil {
			return def, err
		}
		order := p.types[raw.bitOrder]
		if order == nil || len(order.path) == 0 || order.path[len(order.path)-1] != "Lsb0" {
			return def, fmt.Errorf("unsupported bit order type %d", raw.bitOrder)
		}
		def.Kind = scaletypes.TypeBitSeq
		def.Len = storeBits
	default:
		return def, fmt.Errorf("unknown type definition tag %d", raw.tag)
	}
	return def, nil
}

func (p *v14Parser) convertFields(raw []rawField) ([]scaletypes.FieldDef, error) {
	fields := make([]scaletypes.FieldDef, 0, len(raw))
	for _, field := range raw {
		ref, err := p.resolveRef(field.ty)
		if err != nil {
			return nil, err
		}
		fields = append(fields, scaletypes.FieldDef{Name: field.name, Type: ref})
	}
	return fields, nil
}

func (p *v14Parser) resolveRef(id uint32) (scaletypes.TypeID, error) {
	ref, ok := p.idMap[id]
	if !ok {
		return 0, fmt.Errorf("reference to unknown type %d", id)
	}
	return ref, nil
}

// bitStoreWidth returns the bit width of a bit sequence store type, which
// must be an unsigned primitive.
func (p *v14Parser) bitStoreWidth(id uint32) (uint32, error) {
	store := p.types[id]
	if store == nil || store.def.tag != typeDefPrimitive {
		return 0, fmt.Errorf("unsupported bit store type %d", id)
	}
	switch store.def.prim {
	case scaletypes.PrimU8:
		return 8, nil
	case scaletypes.PrimU16:
		return 16, nil
	case scaletypes.PrimU32:
		return 32, nil
	case scaletypes.PrimU64:
		return 64, nil
	default:
		return 0, fmt.Errorf("unsupported bit store primitive %s", store.def.prim.String())
	}
}

func (p *v14Parser) parsePallet() (*scaletypes.ModuleMetadata, error) {
	module := &scaletypes.ModuleMetadata{}

	name, err := p.reader.ReadText()
	if err != nil {
		return nil, fmt.Errorf("cannot read pallet name: %v", err)
	}
	module.Name = name

	hasStorage, err := p.reader.ReadOptionFlag()
	if err != nil {
		return nil, fmt.Errorf("cannot read storage flag: %v", err)
	}
	if hasStorage {
		if module.Storage, err = p.parseStorage(); err != nil {
			return nil, fmt.Errorf("storage: %v", err)
		}
	}

	hasCalls, err := p.reader.ReadOptionFlag()
	if err != nil {
		return nil, fmt.Errorf("cannot read calls flag: %v", err)
	}
	if hasCalls {
		callType, err := p.reader.ReadCompactUint32()
		if err != nil {
			return nil, fmt.Errorf("cannot read call type: %v", err)
		}
		variants, err := p.variantItems(callType)
		if err != nil {
			return nil, fmt.Errorf("calls: %v", err)
		}
		module.Calls = make([]scaletypes.CallMetadata, 0, len(variants))
		for _, variant := range variants {
			args, err := p.variantArgs(variant)
			if err != nil {
				return nil, fmt.Errorf("call %s: %v", variant.name, err)
			}
			module.Calls = append(module.Calls, scaletypes.CallMetadata{
				Name:  variant.name,
				Index: variant.index,
				Args:  args,
				Docs:  variant.docs,
			})
		}
	}

	hasEvents, err := p.reader.ReadOptionFlag()
	if err != nil {
		return nil, fmt.Errorf("cannot read events flag: %v", err)
	}
	if hasEvents {
		eventType, err := p.reader.ReadCompactUint32()
		if err != nil {
			return nil, fmt.Errorf("cannot read event type: %v", err)
		}
		variants, err := p.variantItems(eventType)
		if err != nil {
			return nil, fmt.Errorf("events: %v", err)
		}
		module.Events = make([]scaletypes.EventMetadata, 0, len(variants))
		for _, variant := range variants {
			args, err := p.variantArgs(variant)
			if err != nil {
				return nil, fmt.Errorf("event %s: %v", variant.name, err)
			}
			module.Events = append(module.Events, scaletypes.EventMetadata{
				Name:  variant.name,
				Index: variant.index,
				Args:  args,
				Docs:  variant.docs,
			})
		}
	}

	constantCount, err := p.readLen()
	if err != nil {
		return nil, fmt.Errorf("cannot read constant count: %v", err)
	}
	module.Constants = make([]scaletypes.ConstantMetadata, 0, constantCount)
	for i := 0; i < constantCount; i++ {
		constant := scaletypes.ConstantMetadata{}
		if constant.Name, err = p.reader.ReadText(); err != nil {
			return nil, fmt.Errorf("constant %d: cannot read name: %v", i, err)
		}
		constantType, err := p.reader.ReadCompactUint32()
		if err != nil {
			return nil, fmt.Errorf("constant %s: cannot read type: %v", constant.Name, err)
		}
		if constant.Type, err = p.refExpr(constantType); err != nil {
			return nil, fmt.Errorf("constant %s: %v", constant.Name, err)
		}
		if constant.Value, err = p.reader.ReadByteString(); err != nil {
			return nil, fmt.Errorf("constant %s: cannot read value: %v", constant.Name, err)
		}
		if constant.Docs, err = p.parseDocs(); err != nil {
			return nil, fmt.Errorf("constant %s: %v", constant.Name, err)
		}
		module.Constants = append(module.Constants, constant)
	}

	hasErrors, err := p.reader.ReadOptionFlag()
	if err != nil {
		return nil, fmt.Errorf("cannot read errors flag: %v", err)
	}
	if hasErrors {
		errorType, err := p.reader.ReadCompactUint32()
		if err != nil {
			return nil, fmt.Errorf("cannot read error type: %v", err)
		}
		variants, err := p.variantItems(errorType)
		if err != nil {
			return nil, fmt.Errorf("errors: %v", err)
		}
		module.Errors = make([]scaletypes.ErrorMetadata, 0, len(variants))
		for _, variant := range variants {
			module.Errors = append(module.Errors, scaletypes.ErrorMetadata{
				Name:  variant.name,
				Index: variant.index,
				Docs:  variant.docs,
			})
		}
	}

	index, err := p.reader.ReadUint8()
	if err != nil {
		return nil, fmt.Errorf("cannot read pallet index: %v", err)
	}
	module.Index = index
	module.CallIndex = index
	module.EventIndex = index
	return module, nil
}

func (p *v14Parser) parseStorage() (*scaletypes.StorageMetadata, error) {
	storage := &scaletypes.StorageMetadata{}

	prefix, err := p.reader.ReadText()
	if err != nil {
		return nil, fmt.Errorf("cannot read prefix: %v", err)
	}
	storage.Prefix = prefix

	count, err := p.readLen()
	if err != nil {
		return nil, fmt.Errorf("cannot read entry count: %v", err)
	}
	storage.Entries = make([]scaletypes.StorageEntryMetadata, 0, count)
	for i := 0; i < count; i++ {
		entry, err := p.parseStorageEntry()
		if err != nil {
			return nil, fmt.Errorf("entry %d: %v", i, err)
		}
		storage.Entries = append(storage.Entries, entry)
	}
	return storage, nil
}

func (p *v14Parser) parseStorageEntry() (scaletypes.StorageEntryMetadata, error) {
	entry := scaletypes.StorageEntryMetadata{}

	name, err := p.reader.ReadText()
	if err != nil {
		return entry, fmt.Errorf("cannot read name: %v", err)
	}
	entry.Name = name

	modifier, err := p.reader.ReadUint8()
	if err != nil {
		return entry, fmt.Errorf("%s: cannot read modifier: %v", name, err)
	}
	if modifier > 1 {
		return entry, fmt.Errorf("%s: unknown modifier %d", name, modifier)
	}
	entry.Modifier = scaletypes.StorageModifier(modifier)

	tag, err := p.reader.ReadUint8()
	if err != nil {
		return entry, fmt.Errorf("%s: cannot read type tag: %v", name, err)
	}
	switch tag {
	case storagePlain:
		valueType, err := p.reader.ReadCompactUint32()
		if err != nil {
			return entry, fmt.Errorf("%s: cannot read value type: %v", name, err)
		}
		if entry.Value, err = p.refExpr(valueType); err != nil {
			return entry, fmt.Errorf("%s: %v", name, err)
		}
	case storageMap:
		hasherCount, err := p.readLen()
		if err != nil {
			return entry, fmt.Errorf("%s: cannot read hasher count: %v", name, err)
		}
		entry.Hashers = make([]scaletypes.StorageHasher, 0, hasherCount)
		for i := 0; i < hasherCount; i++ {
			hasherTag, err := p.reader.ReadUint8()
			if err != nil {
				return entry, fmt.Errorf("%s: cannot read hasher: %v", name, err)
			}
			hasher, err := parseV14Hasher(hasherTag)
			if err != nil {
				return entry, fmt.Errorf("%s: %v", name, err)
			}
			entry.Hashers = append(entry.Hashers, hasher)
		}
		keyType, err := p.reader.ReadCompactUint32()
		if err != nil {
			return entry, fmt.Errorf("%s: cannot read key type: %v", name, err)
		}
		if entry.Keys, err = p.splitKeys(keyType, len(entry.Hashers)); err != nil {
			return entry, fmt.Errorf("%s: %v", name, err)
		}
		valueType, err := p.reader.ReadCompactUint32()
		if err != nil {
			return entry, fmt.Errorf("%s: cannot read value type: %v", name, err)
		}
		if entry.Value, err = p.refExpr(valueType); err != nil {
			return entry, fmt.Errorf("%s: %v", name, err)
		}
	default:
		return entry, fmt.Errorf("%s: unknown storage type tag %d", name, tag)
	}

	if entry.Default, err = p.reader.ReadByteString(); err != nil {
		return entry, fmt.Errorf("%s: cannot read default value: %v", name, err)
	}
	if entry.Docs, err = p.parseDocs(); err != nil {
		return entry, fmt.Errorf("%s: %v", name, err)
	}
	return entry, nil
}

// splitKeys maps a storage key type onto the hasher list. Multi hasher maps
// store their key as a tuple with one element per hasher.
func (p *v14Parser) splitKeys(keyType uint32, hashers int) ([]*scaletypes.TypeExpr, error) {
	if hashers == 1 {
		key, err := p.refExpr(keyType)
		if err != nil {
			return nil, err
		}
		return []*scaletypes.TypeExpr{key}, nil
	}

	key := p.types[keyType]
	if key == nil {
		return nil, fmt.Errorf("reference to unknown type %d", keyType)
	}
	if key.def.tag != typeDefTuple || len(key.def.tuple) != hashers {
		return nil, fmt.Errorf("key type %d does not match %d hashers", keyType, hashers)
	}
	keys := make([]*scaletypes.TypeExpr, 0, hashers)
	for _, elem := range key.def.tuple {
		expr, err := p.refExpr(elem)
		if err != nil {
			return nil, err
		}
		keys = append(keys, expr)
	}
	return keys, nil
}

func (p *v14Parser) parseExtrinsic() (*scaletypes.ExtrinsicMetadata, error) {
	extrinsic := &scaletypes.ExtrinsicMetadata{}

	extrinsicType, err := p.reader.ReadCompactUint32()
	if err != nil {
		return nil, fmt.Errorf("cannot read extrinsic type: %v", err)
	}
	// the extrinsic type's parameters carry the address and signature types
	if ty := p.types[extrinsicType]; ty != nil {
		for _, param := range ty.params {
			if param.ty == nil {
				continue
			}
			switch param.name {
			case "Address":
				if extrinsic.AddressType, err = p.refExpr(*param.ty); err != nil {
					return nil, err
				}
			case "Signature":
				if extrinsic.SignatureType, err = p.refExpr(*param.ty); err != nil {
					return nil, err
				}
			}
		}
	}

	if extrinsic.Version, err = p.reader.ReadUint8(); err != nil {
		return nil, fmt.Errorf("cannot read extrinsic version: %v", err)
	}

	count, err := p.readLen()
	if err != nil {
		return nil, fmt.Errorf("cannot read signed extension count: %v", err)
	}
	extrinsic.SignedExtensions = make([]scaletypes.SignedExtension, 0, count)
	for i := 0; i < count; i++ {
		extension := scaletypes.SignedExtension{}
		if extension.Name, err = p.reader.ReadText(); err != nil {
			return nil, fmt.Errorf("signed extension %d: cannot read identifier: %v", i, err)
		}
		extensionType, err := p.reader.ReadCompactUint32()
		if err != nil {
			return nil, fmt.Errorf("signed extension %s: cannot read type: %v", extension.Name, err)
		}
		if extension.Type, err = p.refExpr(extensionType); err != nil {
			return nil, fmt.Errorf("signed extension %s: %v", extension.Name, err)
		}
		// the additional signed type only matters for building signatures
		if _, err := p.reader.ReadCompactUint32(); err != nil {
			return nil, fmt.Errorf("signed extension %s: cannot read additional type: %v", extension.Name, err)
		}
		extrinsic.SignedExtensions = append(extrinsic.SignedExtensions, extension)
	}
	return extrinsic, nil
}

// variantItems returns the variants of a registry type, which must have a
// variant definition. Calls, events and errors all reference such types.
func (p *v14Parser) variantItems(id uint32) ([]rawVariant, error) {
	ty := p.types[id]
	if ty == nil {
		return nil, fmt.Errorf("reference to unknown type %d", id)
	}
	if ty.def.tag != typeDefVariant {
		return nil, fmt.Errorf("type %d is not a variant type", id)
	}
	return ty.def.variants, nil
}

func (p *v14Parser) variantArgs(variant rawVariant) ([]scaletypes.ArgMetadata, error) {
	args := make([]scaletypes.ArgMetadata, 0, len(variant.fields))
	for _, field := range variant.fields {
		expr, err := p.refExpr(field.ty)
		if err != nil {
			return nil, err
		}
		args = append(args, scaletypes.ArgMetadata{Name: field.name, Type: expr})
	}
	return args, nil
}

func (p *v14Parser) refExpr(id uint32) (*scaletypes.TypeExpr, error) {
	ref, err := p.resolveRef(id)
	if err != nil {
		return nil, err
	}
	return scaletypes.RefExpr(ref), nil
}

func parseV14Hasher(tag uint8) (scaletypes.StorageHasher, error) {
	switch tag {
	case 0:
		return scaletypes.HasherBlake2_128, nil
	case 1:
		return scaletypes.HasherBlake2_256, nil
	case 2:
		return scaletypes.HasherBlake2_128Concat, nil
	case 3:
		return scaletypes.HasherTwox128, nil
	case 4:
		return scaletypes.HasherTwox256, nil
	case 5:
		return scaletypes.HasherTwox64Concat, nil
	case 6:
		return scaletypes.HasherIdentity, nil
	default:
		return 0, fmt.Errorf("unknown storage hasher %d", tag)
	}
}

func (p *v14Parser) parseDocs() ([]string, error) {
	count, err := p.readLen()
	if err != nil {
		return nil, fmt.Errorf("cannot read doc count: %v", err)
	}
	docs := make([]string, 0, count)
	for i := 0; i < count; i++ {
		doc, err := p.reader.ReadText()
		if err != nil {
			return nil, fmt.Errorf("cannot read doc line %d: %v", i, err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (p *v14Parser) readLen() (int, error) {
	count, err := p.reader.ReadCompactLength()
	if err != nil {
		return 0, err
	}
	if count > p.reader.Len() {
		return 0, scaleutils.ErrUnexpectedEOF
	}
	return count, nil
}
