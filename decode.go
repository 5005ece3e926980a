// Copyright (c) 2025 pk910
// SPDX-License-Identifier: Apache-2.0
// This file is part of the dynamic-scale library.

package dynscale

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"

	"github.com/pk910/dynamic-scale/scaletypes"
	"github.com/pk910/dynamic-scale/scaleutils"
)

// zeroSizeLengthLimit caps the claimed element count of sequences whose
// element type consumes no input. Such elements cannot be bounded by the
// remaining buffer, so an attacker controlled count must not drive the
// allocation.
const zeroSizeLengthLimit = 4096

// compactWrapperLimit caps how many single field composite layers a
// Compact<T> is unwrapped through before giving up.
const compactWrapperLimit = 16

// decodeState is the per call state of the decoding engine: the positioned
// reader plus the runtime era the type ids belong to.
type decodeState struct {
	decoder *Decoder
	entry   *runtimeEntry
	block   uint64
	reader  *scaleutils.BufferReader
}

func (d *Decoder) decodeWithReader(entry *runtimeEntry, block uint64, reader *scaleutils.BufferReader, id scaletypes.TypeID) (*scaletypes.Value, error) {
	st := &decodeState{decoder: d, entry: entry, block: block, reader: reader}
	return st.decodeType(id, "")
}

func (st *decodeState) wrap(err error, path string) error {
	return scaleutils.WrapError(err, path, st.reader.Position())
}

func joinPath(base, segment string) string {
	if base == "" {
		return segment
	}
	if segment == "" {
		return base
	}
	return base + "." + segment
}

func indexPath(base string, index int) string {
	if base == "" {
		return "[" + strconv.Itoa(index) + "]"
	}
	return base + "[" + strconv.Itoa(index) + "]"
}

func (st *decodeState) decodeType(id scaletypes.TypeID, path string) (*scaletypes.Value, error) {
	def, err := st.entry.compiler.set.Get(id)
	if err != nil {
		return nil, st.wrap(err, path)
	}
	return st.decodeDef(def, path)
}

func (st *decodeState) decodeDef(def *scaletypes.TypeDef, path string) (*scaletypes.Value, error) {
	switch def.Kind {
	case scaletypes.TypeNull:
		return scaletypes.NullValue(), nil
	case scaletypes.TypePrimitive:
		return st.decodePrimitive(def.Prim, path)
	case scaletypes.TypeComposite:
		fields, err := st.decodeFieldList(def.Fields, path)
		if err != nil {
			return nil, err
		}
		return scaletypes.CompositeValue(fields...), nil
	case scaletypes.TypeEnum:
		return st.decodeEnum(def, path)
	case scaletypes.TypeSequence:
		return st.decodeSequence(def, path)
	case scaletypes.TypeArray:
		return st.decodeArray(def, path)
	case scaletypes.TypeTuple:
		fields := make([]scaletypes.ValueField, len(def.Elems))
		for i, elem := range def.Elems {
			value, err := st.decodeType(elem, indexPath(path, i))
			if err != nil {
				return nil, err
			}
			fields[i] = scaletypes.ValueField{Value: value}
		}
		return scaletypes.CompositeValue(fields...), nil
	case scaletypes.TypeOption:
		present, err := st.reader.ReadOptionFlag()
		if err != nil {
			return nil, st.wrap(err, path)
		}
		if !present {
			return scaletypes.OptionValue(nil), nil
		}
		inner, err := st.decodeType(def.Elem, path)
		if err != nil {
			return nil, err
		}
		return scaletypes.OptionValue(inner), nil
	case scaletypes.TypeOptionBool:
		return st.decodeOptionBool(path)
	case scaletypes.TypeCompact:
		return st.decodeCompact(def, path)
	case scaletypes.TypeBitSeq:
		return st.decodeBitSeq(def, path)
	case scaletypes.TypeFlagSet:
		return st.decodeFlagSet(def, path)
	case scaletypes.TypeCall:
		return st.decodeCall(path)
	case scaletypes.TypeEra:
		return st.decodeEra(path)
	default:
		return nil, st.wrap(fmt.Errorf("unresolved type definition"), path)
	}
}

func (st *decodeState) decodePrimitive(prim scaletypes.PrimitiveKind, path string) (*scaletypes.Value, error) {
	switch prim {
	case scaletypes.PrimBool:
		val, err := st.reader.ReadBool()
		if err != nil {
			return nil, st.wrap(err, path)
		}
		return scaletypes.BoolValue(val), nil
	case scaletypes.PrimU8:
		val, err := st.reader.ReadUint8()
		if err != nil {
			return nil, st.wrap(err, path)
		}
		return scaletypes.UintValue(uint64(val)), nil
	case scaletypes.PrimU16:
		val, err := st.reader.ReadUint16()
		if err != nil {
			return nil, st.wrap(err, path)
		}
		return scaletypes.UintValue(uint64(val)), nil
	case scaletypes.PrimU32:
		val, err := st.reader.ReadUint32()
		if err != nil {
			return nil, st.wrap(err, path)
		}
		return scaletypes.UintValue(uint64(val)), nil
	case scaletypes.PrimU64:
		val, err := st.reader.ReadUint64()
		if err != nil {
			return nil, st.wrap(err, path)
		}
		return scaletypes.UintValue(val), nil
	case scaletypes.PrimU128:
		val, err := st.reader.ReadUint128()
		if err != nil {
			return nil, st.wrap(err, path)
		}
		return scaletypes.BigUintValue(val), nil
	case scaletypes.PrimU256:
		val, err := st.reader.ReadUint256()
		if err != nil {
			return nil, st.wrap(err, path)
		}
		return scaletypes.BigUintValue(val), nil
	case scaletypes.PrimI8:
		val, err := st.reader.ReadInt8()
		if err != nil {
			return nil, st.wrap(err, path)
		}
		return scaletypes.IntValue(int64(val)), nil
	case scaletypes.PrimI16:
		val, err := st.reader.ReadInt16()
		if err != nil {
			return nil, st.wrap(err, path)
		}
		return scaletypes.IntValue(int64(val)), nil
	case scaletypes.PrimI32:
		val, err := st.reader.ReadInt32()
		if err != nil {
			return nil, st.wrap(err, path)
		}
		return scaletypes.IntValue(int64(val)), nil
	case scaletypes.PrimI64:
		val, err := st.reader.ReadInt64()
		if err != nil {
			return nil, st.wrap(err, path)
		}
		return scaletypes.IntValue(val), nil
	case scaletypes.PrimI128:
		val, err := st.reader.ReadInt128()
		if err != nil {
			return nil, st.wrap(err, path)
		}
		return scaletypes.BigIntValue(val), nil
	case scaletypes.PrimI256:
		val, err := st.reader.ReadInt256()
		if err != nil {
			return nil, st.wrap(err, path)
		}
		return scaletypes.BigIntValue(val), nil
	case scaletypes.PrimChar:
		val, err := st.reader.ReadChar()
		if err != nil {
			return nil, st.wrap(err, path)
		}
		return scaletypes.CharValue(val), nil
	case scaletypes.PrimStr:
		val, err := st.reader.ReadText()
		if err != nil {
			return nil, st.wrap(err, path)
		}
		return scaletypes.StringValue(val), nil
	default:
		return nil, st.wrap(fmt.Errorf("unsupported primitive kind %d", prim), path)
	}
}

func (st *decodeState) decodeFieldList(fields []scaletypes.FieldDef, path string) ([]scaletypes.ValueField, error) {
	result := make([]scaletypes.ValueField, len(fields))
	for i, field := range fields {
		childPath := indexPath(path, i)
		if field.Name != "" {
			childPath = joinPath(path, field.Name)
		}
		value, err := st.decodeType(field.Type, childPath)
		if err != nil {
			return nil, err
		}
		result[i] = scaletypes.ValueField{Name: field.Name, Value: value}
	}
	return result, nil
}

func (st *decodeState) decodeEnum(def *scaletypes.TypeDef, path string) (*scaletypes.Value, error) {
	index, err := st.reader.ReadUint8()
	if err != nil {
		return nil, st.wrap(err, path)
	}
	variant := def.VariantByIndex(index)
	if variant == nil {
		return nil, st.wrap(fmt.Errorf("%w %d in %s", scaleutils.ErrInvalidEnumVariant, index, def.String()), path)
	}
	fields, err := st.decodeFieldList(variant.Fields, joinPath(path, variant.Name))
	if err != nil {
		return nil, err
	}
	return scaletypes.VariantValue(variant.Name, fields...), nil
}

func (st *decodeState) decodeSequence(def *scaletypes.TypeDef, path string) (*scaletypes.Value, error) {
	count, err := st.reader.ReadCompactLength()
	if err != nil {
		return nil, st.wrap(err, path)
	}
	elemDef, err := st.entry.compiler.set.Get(def.Elem)
	if err != nil {
		return nil, st.wrap(err, path)
	}

	if elemDef.Kind == scaletypes.TypePrimitive && elemDef.Prim == scaletypes.PrimU8 {
		data, err := st.reader.ReadBytes(count)
		if err != nil {
			return nil, st.wrap(err, path)
		}
		return scaletypes.BytesValue(data), nil
	}

	if st.zeroSize(def.Elem) {
		if count > zeroSizeLengthLimit {
			return nil, st.wrap(fmt.Errorf("implausible length %d for zero size element type", count), path)
		}
	} else if count > st.reader.Len() {
		// every element consumes at least one byte
		return nil, st.wrap(scaleutils.ErrUnexpectedEOF, path)
	}

	values := make([]*scaletypes.Value, count)
	for i := 0; i < count; i++ {
		if values[i], err = st.decodeType(def.Elem, indexPath(path, i)); err != nil {
			return nil, err
		}
	}
	return scaletypes.SequenceValue(values...), nil
}

func (st *decodeState) decodeArray(def *scaletypes.TypeDef, path string) (*scaletypes.Value, error) {
	elemDef, err := st.entry.compiler.set.Get(def.Elem)
	if err != nil {
		return nil, st.wrap(err, path)
	}

	if elemDef.Kind == scaletypes.TypePrimitive && elemDef.Prim == scaletypes.PrimU8 {
		data, err := st.reader.ReadBytes(int(def.Len))
		if err != nil {
			return nil, st.wrap(err, path)
		}
		return scaletypes.BytesValue(data), nil
	}

	values := make([]*scaletypes.Value, def.Len)
	for i := 0; i < int(def.Len); i++ {
		if values[i], err = st.decodeType(def.Elem, indexPath(path, i)); err != nil {
			return nil, err
		}
	}
	return scaletypes.SequenceValue(values...), nil
}

func (st *decodeState) decodeOptionBool(path string) (*scaletypes.Value, error) {
	flag, err := st.reader.ReadUint8()
	if err != nil {
		return nil, st.wrap(err, path)
	}
	switch flag {
	case 0:
		return scaletypes.OptionValue(nil), nil
	case 1:
		return scaletypes.OptionValue(scaletypes.BoolValue(true)), nil
	case 2:
		return scaletypes.OptionValue(scaletypes.BoolValue(false)), nil
	default:
		return nil, st.wrap(fmt.Errorf("%w %d for Option<bool>", scaleutils.ErrInvalidOption, flag), path)
	}
}

// decodeCompact decodes Compact<T>. T may be an unsigned integer or a single
// field composite wrapping one (Compact<ParaId> and friends); the composite
// layers are rebuilt around the decoded number.
func (st *decodeState) decodeCompact(def *scaletypes.TypeDef, path string) (*scaletypes.Value, error) {
	elemID := def.Elem
	wrapNames := []string(nil)

	for depth := 0; ; depth++ {
		if depth > compactWrapperLimit {
			return nil, st.wrap(fmt.Errorf("compact wrapper nesting too deep"), path)
		}
		elemDef, err := st.entry.compiler.set.Get(elemID)
		if err != nil {
			return nil, st.wrap(err, path)
		}
		if elemDef.Kind == scaletypes.TypeComposite {
			if len(elemDef.Fields) != 1 {
				return nil, st.wrap(fmt.Errorf("compact of composite with %d fields", len(elemDef.Fields)), path)
			}
			wrapNames = append(wrapNames, elemDef.Fields[0].Name)
			elemID = elemDef.Fields[0].Type
			continue
		}
		if elemDef.Kind == scaletypes.TypeCompact {
			elemID = elemDef.Elem
			continue
		}

		value, err := st.decodeCompactNumber(elemDef, path)
		if err != nil {
			return nil, err
		}
		for i := len(wrapNames) - 1; i >= 0; i-- {
			value = scaletypes.CompositeValue(scaletypes.ValueField{Name: wrapNames[i], Value: value})
		}
		return value, nil
	}
}

func (st *decodeState) decodeCompactNumber(elemDef *scaletypes.TypeDef, path string) (*scaletypes.Value, error) {
	if elemDef.Kind == scaletypes.TypeNull {
		// Compact<()> encodes nothing
		return scaletypes.NullValue(), nil
	}
	if elemDef.Kind != scaletypes.TypePrimitive {
		return nil, st.wrap(fmt.Errorf("compact of non integer type %s", elemDef.String()), path)
	}

	switch elemDef.Prim {
	case scaletypes.PrimU8, scaletypes.PrimU16, scaletypes.PrimU32:
		val, err := st.reader.ReadCompactUint32()
		if err != nil {
			return nil, st.wrap(err, path)
		}
		limit := uint32(math.MaxUint32)
		switch elemDef.Prim {
		case scaletypes.PrimU8:
			limit = math.MaxUint8
		case scaletypes.PrimU16:
			limit = math.MaxUint16
		}
		if val > limit {
			return nil, st.wrap(fmt.Errorf("%w for %s", scaleutils.ErrCompactOverflow, elemDef.Prim.String()), path)
		}
		return scaletypes.UintValue(uint64(val)), nil
	case scaletypes.PrimU64:
		val, err := st.reader.ReadCompactUint64()
		if err != nil {
			return nil, st.wrap(err, path)
		}
		return scaletypes.UintValue(val), nil
	case scaletypes.PrimU128, scaletypes.PrimU256:
		val, err := st.reader.ReadCompact()
		if err != nil {
			return nil, st.wrap(err, path)
		}
		return scaletypes.BigUintValue(val), nil
	default:
		return nil, st.wrap(fmt.Errorf("compact of non integer type %s", elemDef.Prim.String()), path)
	}
}

func (st *decodeState) decodeBitSeq(def *scaletypes.TypeDef, path string) (*scaletypes.Value, error) {
	bits, err := st.reader.ReadCompactLength()
	if err != nil {
		return nil, st.wrap(err, path)
	}
	storeBits := int(def.Len)
	if storeBits == 0 {
		storeBits = 8
	}
	words := (bits + storeBits - 1) / storeBits
	data, err := st.reader.ReadBytes(words * storeBits / 8)
	if err != nil {
		return nil, st.wrap(err, path)
	}
	return scaletypes.BitsValue(data, bits), nil
}

func (st *decodeState) decodeFlagSet(def *scaletypes.TypeDef, path string) (*scaletypes.Value, error) {
	byteLen := int(def.FlagBits) / 8
	if byteLen == 0 {
		byteLen = 1
	}
	data, err := st.reader.ReadBytes(byteLen)
	if err != nil {
		return nil, st.wrap(err, path)
	}
	var padded [8]byte
	copy(padded[:], data)
	word := binary.LittleEndian.Uint64(padded[:])

	flags := []string(nil)
	for _, flag := range def.Flags {
		if flag.Mask != 0 && word&flag.Mask == flag.Mask {
			flags = append(flags, flag.Name)
		}
	}
	return scaletypes.FlagsValue(word, flags...), nil
}

// decodeCall decodes a runtime call: the pallet index byte, the call index
// byte and the call's arguments per the runtime metadata.
func (st *decodeState) decodeCall(path string) (*scaletypes.Value, error) {
	palletIndex, err := st.reader.ReadUint8()
	if err != nil {
		return nil, st.wrap(err, path)
	}
	module := st.entry.meta.ModuleByCallIndex(palletIndex)
	if module == nil {
		return nil, st.wrap(fmt.Errorf("no module with call index %d", palletIndex), path)
	}

	callIndex, err := st.reader.ReadUint8()
	if err != nil {
		return nil, st.wrap(err, path)
	}
	call := module.CallByIndex(callIndex)
	if call == nil {
		return nil, st.wrap(fmt.Errorf("module %s has no call with index %d", module.Name, callIndex), path)
	}

	name := module.Name + "." + call.Name
	fields := make([]scaletypes.ValueField, len(call.Args))
	for i, arg := range call.Args {
		childPath := indexPath(joinPath(path, name), i)
		if arg.Name != "" {
			childPath = joinPath(joinPath(path, name), arg.Name)
		}
		id, err := st.entry.compiler.compile(module.Name, arg.Type, st.block)
		if err != nil {
			return nil, st.wrap(fmt.Errorf("call %s argument %s: %w", name, arg.Name, err), path)
		}
		value, err := st.decodeType(id, childPath)
		if err != nil {
			return nil, err
		}
		fields[i] = scaletypes.ValueField{Name: arg.Name, Value: value}
	}
	return scaletypes.CallValue(name, fields...), nil
}

// decodeEra decodes extrinsic mortality: one zero byte for immortal, two
// bytes carrying the period exponent and quantized phase otherwise.
func (st *decodeState) decodeEra(path string) (*scaletypes.Value, error) {
	first, err := st.reader.ReadUint8()
	if err != nil {
		return nil, st.wrap(err, path)
	}
	if first == 0 {
		return scaletypes.EraValue(0, 0), nil
	}
	second, err := st.reader.ReadUint8()
	if err != nil {
		return nil, st.wrap(err, path)
	}

	encoded := uint64(first) | uint64(second)<<8
	period := uint64(2) << (encoded % 16)
	quantize := period >> 12
	if quantize == 0 {
		quantize = 1
	}
	phase := (encoded >> 4) * quantize
	if period < 4 || phase >= period {
		return nil, st.wrap(fmt.Errorf("invalid mortal era (period %d, phase %d)", period, phase), path)
	}
	return scaletypes.EraValue(period, phase), nil
}

func (st *decodeState) zeroSize(id scaletypes.TypeID) bool {
	return st.zeroSizeDef(id, map[scaletypes.TypeID]bool{})
}

// zeroSizeDef reports whether decoding the type consumes no input at all.
func (st *decodeState) zeroSizeDef(id scaletypes.TypeID, visited map[scaletypes.TypeID]bool) bool {
	if visited[id] {
		return false
	}
	visited[id] = true

	def, err := st.entry.compiler.set.Get(id)
	if err != nil {
		return false
	}
	switch def.Kind {
	case scaletypes.TypeNull:
		return true
	case scaletypes.TypeTuple:
		for _, elem := range def.Elems {
			if !st.zeroSizeDef(elem, visited) {
				return false
			}
		}
		return true
	case scaletypes.TypeComposite:
		for _, field := range def.Fields {
			if !st.zeroSizeDef(field.Type, visited) {
				return false
			}
		}
		return true
	case scaletypes.TypeArray:
		return def.Len == 0 || st.zeroSizeDef(def.Elem, visited)
	default:
		return false
	}
}
