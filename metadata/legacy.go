// Copyright (c) 2025 pk910
// SPDX-License-Identifier: Apache-2.0
// This file is part of the dynamic-scale library.

package metadata

import (
	"fmt"

	"github.com/pk910/dynamic-scale/scaletypes"
	"github.com/pk910/dynamic-scale/scaleutils"
)

// legacyParser reads the dictionary based metadata revisions v8 through v13.
// The revisions share one layout with small additions per version:
//
//	v9  wraps storage entries with an explicit prefix (v8 uses the module name)
//	v10 adds the blake2_128_concat hasher, renumbering the hasher tags
//	v11 adds the identity hasher and the trailing extrinsic metadata
//	v12 adds an explicit index byte per module
//	v13 adds n-map storage entries
//
// Types are referenced by name, so the normalized modules carry parsed type
// expressions that resolve against a chain type dictionary later.
type legacyParser struct {
	reader  *scaleutils.BufferReader
	version uint32
}

func parseLegacy(reader *scaleutils.BufferReader, version uint32) (*scaletypes.RuntimeMetadata, error) {
	p := &legacyParser{reader: reader, version: version}
	meta := scaletypes.NewRuntimeMetadata(version)

	count, err := p.readLen()
	if err != nil {
		return nil, fmt.Errorf("cannot read module count: %v", err)
	}
	if count > 256 {
		return nil, fmt.Errorf("module count %d out of range", count)
	}

	callIndex, eventIndex := 0, 0
	for i := 0; i < count; i++ {
		module, err := p.parseModule()
		if err != nil {
			return nil, fmt.Errorf("module %d: %v", i, err)
		}
		if p.version >= 12 {
			module.CallIndex = module.Index
			module.EventIndex = module.Index
		} else {
			// index bytes are assigned by position, counting only the modules
			// that carry the respective item kind
			module.Index = uint8(i)
			if module.Calls != nil {
				module.CallIndex = uint8(callIndex)
				callIndex++
			}
			if module.Events != nil {
				module.EventIndex = uint8(eventIndex)
				eventIndex++
			}
		}
		meta.AddModule(module)
	}

	if p.version >= 11 {
		extrinsic, err := p.parseExtrinsic()
		if err != nil {
			return nil, fmt.Errorf("extrinsic metadata: %v", err)
		}
		meta.Extrinsic = extrinsic
	}
	return meta, nil
}

func (p *legacyParser) parseModule() (*scaletypes.ModuleMetadata, error) {
	name, err := p.reader.ReadText()
	if err != nil {
		return nil, fmt.Errorf("cannot read module name: %v", err)
	}
	module := &scaletypes.ModuleMetadata{Name: name}

	hasStorage, err := p.reader.ReadOptionFlag()
	if err != nil {
		return nil, fmt.Errorf("cannot read storage flag: %v", err)
	}
	if hasStorage {
		if module.Storage, err = p.parseStorage(name); err != nil {
			return nil, fmt.Errorf("storage: %v", err)
		}
	}

	hasCalls, err := p.reader.ReadOptionFlag()
	if err != nil {
		return nil, fmt.Errorf("cannot read calls flag: %v", err)
	}
	if hasCalls {
		if module.Calls, err = p.parseCalls(); err != nil {
			return nil, fmt.Errorf("calls: %v", err)
		}
	}

	hasEvents, err := p.reader.ReadOptionFlag()
	if err != nil {
		return nil, fmt.Errorf("cannot read events flag: %v", err)
	}
	if hasEvents {
		if module.Events, err = p.parseEvents(); err != nil {
			return nil, fmt.Errorf("events: %v", err)
		}
	}

	if module.Constants, err = p.parseConstants(); err != nil {
		return nil, fmt.Errorf("constants: %v", err)
	}
	if module.Errors, err = p.parseErrors(); err != nil {
		return nil, fmt.Errorf("errors: %v", err)
	}

	if p.version >= 12 {
		if module.Index, err = p.reader.ReadUint8(); err != nil {
			return nil, fmt.Errorf("cannot read module index: %v", err)
		}
	}
	return module, nil
}

func (p *legacyParser) parseStorage(moduleName string) (*scaletypes.StorageMetadata, error) {
	storage := &scaletypes.StorageMetadata{}

	if p.version >= 9 {
		prefix, err := p.reader.ReadText()
		if err != nil {
			return nil, fmt.Errorf("cannot read storage prefix: %v", err)
		}
		storage.Prefix = prefix
	} else {
		storage.Prefix = moduleName
	}

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

// storage entry type tags
const (
	storagePlain     = 0
	storageMap       = 1
	storageDoubleMap = 2
	storageNMap      = 3
)

func (p *legacyParser) parseStorageEntry() (scaletypes.StorageEntryMetadata, error) {
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
		if entry.Value, err = p.parseTypeText(); err != nil {
			return entry, fmt.Errorf("%s: %v", name, err)
		}
	case storageMap:
		hasher, err := p.parseHasher()
		if err != nil {
			return entry, fmt.Errorf("%s: %v", name, err)
		}
		key, err := p.parseTypeText()
		if err != nil {
			return entry, fmt.Errorf("%s: %v", name, err)
		}
		if entry.Value, err = p.parseTypeText(); err != nil {
			return entry, fmt.Errorf("%s: %v", name, err)
		}
		linked, err := p.reader.ReadBool()
		if err != nil {
			return entry, fmt.Errorf("%s: cannot read linked flag: %v", name, err)
		}
		entry.Hashers = []scaletypes.StorageHasher{hasher}
		entry.Keys = []*scaletypes.TypeExpr{key}
		entry.Linked = linked
	case storageDoubleMap:
		hasher1, err := p.parseHasher()
		if err != nil {
			return entry, fmt.Errorf("%s: %v", name, err)
		}
		key1, err := p.parseTypeText()
		if err != nil {
			return entry, fmt.Errorf("%s: %v", name, err)
		}
		key2, err := p.parseTypeText()
		if err != nil {
			return entry, fmt.Errorf("%s: %v", name, err)
		}
		if entry.Value, err = p.parseTypeText(); err != nil {
			return entry, fmt.Errorf("%s: %v", name, err)
		}
		hasher2, err := p.parseHasher()
		if err != nil {
			return entry, fmt.Errorf("%s: %v", name, err)
		}
		entry.Hashers = []scaletypes.StorageHasher{hasher1, hasher2}
		entry.Keys = []*scaletypes.TypeExpr{key1, key2}
	case storageNMap:
		if p.version < 13 {
			return entry, fmt.Errorf("%s: n-map entries need metadata v13", name)
		}
		keyCount, err := p.readLen()
		if err != nil {
			return entry, fmt.Errorf("%s: cannot read key count: %v", name, err)
		}
		entry.Keys = make([]*scaletypes.TypeExpr, 0, keyCount)
		for i := 0; i < keyCount; i++ {
			key, err := p.parseTypeText()
			if err != nil {
				return entry, fmt.Errorf("%s: key %d: %v", name, i, err)
			}
			entry.Keys = append(entry.Keys, key)
		}
		hasherCount, err := p.readLen()
		if err != nil {
			return entry, fmt.Errorf("%s: cannot read hasher count: %v", name, err)
		}
		entry.Hashers = make([]scaletypes.StorageHasher, 0, hasherCount)
		for i := 0; i < hasherCount; i++ {
			hasher, err := p.parseHasher()
			if err != nil {
				return entry, fmt.Errorf("%s: hasher %d: %v", name, i, err)
			}
			entry.Hashers = append(entry.Hashers, hasher)
		}
		if len(entry.Keys) != len(entry.Hashers) {
			return entry, fmt.Errorf("%s: %d keys but %d hashers", name, len(entry.Keys), len(entry.Hashers))
		}
		if entry.Value, err = p.parseTypeText(); err != nil {
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

// parseHasher reads one storage hasher tag. The tag numbering changed in v10
// when blake2_128_concat was inserted, and v11 appended the identity hasher.
func (p *legacyParser) parseHasher() (scaletypes.StorageHasher, error) {
	tag, err := p.reader.ReadUint8()
	if err != nil {
		return 0, fmt.Errorf("cannot read hasher: %v", err)
	}
	if p.version <= 9 {
		switch tag {
		case 0:
			return scaletypes.HasherBlake2_128, nil
		case 1:
			return scaletypes.HasherBlake2_256, nil
		case 2:
			return scaletypes.HasherTwox128, nil
		case 3:
			return scaletypes.HasherTwox256, nil
		case 4:
			return scaletypes.HasherTwox64Concat, nil
		}
	} else {
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
			if p.version >= 11 {
				return scaletypes.HasherIdentity, nil
			}
		}
	}
	return 0, fmt.Errorf("unknown storage hasher %d", tag)
}

func (p *legacyParser) parseCalls() ([]scaletypes.CallMetadata, error) {
	count, err := p.readLen()
	if err != nil {
		return nil, fmt.Errorf("cannot read call count: %v", err)
	}
	if count > 256 {
		return nil, fmt.Errorf("call count %d out of range", count)
	}
	calls := make([]scaletypes.CallMetadata, 0, count)
	for i := 0; i < count; i++ {
		call := scaletypes.CallMetadata{Index: uint8(i)}
		if call.Name, err = p.reader.ReadText(); err != nil {
			return nil, fmt.Errorf("call %d: cannot read name: %v", i, err)
		}
		argCount, err := p.readLen()
		if err != nil {
			return nil, fmt.Errorf("call %s: cannot read argument count: %v", call.Name, err)
		}
		call.Args = make([]scaletypes.ArgMetadata, 0, argCount)
		for j := 0; j < argCount; j++ {
			arg := scaletypes.ArgMetadata{}
			if arg.Name, err = p.reader.ReadText(); err != nil {
				return nil, fmt.Errorf("call %s: argument %d: cannot read name: %v", call.Name, j, err)
			}
			if arg.Type, err = p.parseTypeText(); err != nil {
				return nil, fmt.Errorf("call %s: argument %s: %v", call.Name, arg.Name, err)
			}
			call.Args = append(call.Args, arg)
		}
		if call.Docs, err = p.parseDocs(); err != nil {
			return nil, fmt.Errorf("call %s: %v", call.Name, err)
		}
		calls = append(calls, call)
	}
	return calls, nil
}

func (p *legacyParser) parseEvents() ([]scaletypes.EventMetadata, error) {
	count, err := p.readLen()
	if err != nil {
		return nil, fmt.Errorf("cannot read event count: %v", err)
	}
	if count > 256 {
		return nil, fmt.Errorf("event count %d out of range", count)
	}
	events := make([]scaletypes.EventMetadata, 0, count)
	for i := 0; i < count; i++ {
		event := scaletypes.EventMetadata{Index: uint8(i)}
		if event.Name, err = p.reader.ReadText(); err != nil {
			return nil, fmt.Errorf("event %d: cannot read name: %v", i, err)
		}
		argCount, err := p.readLen()
		if err != nil {
			return nil, fmt.Errorf("event %s: cannot read argument count: %v", event.Name, err)
		}
		event.Args = make([]scaletypes.ArgMetadata, 0, argCount)
		for j := 0; j < argCount; j++ {
			argType, err := p.parseTypeText()
			if err != nil {
				return nil, fmt.Errorf("event %s: argument %d: %v", event.Name, j, err)
			}
			event.Args = append(event.Args, scaletypes.ArgMetadata{Type: argType})
		}
		if event.Docs, err = p.parseDocs(); err != nil {
			return nil, fmt.Errorf("event %s: %v", event.Name, err)
		}
		events = append(events, event)
	}
	return events, nil
}

func (p *legacyParser) parseConstants() ([]scaletypes.ConstantMetadata, error) {
	count, err := p.readLen()
	if err != nil {
		return nil, fmt.Errorf("cannot read constant count: %v", err)
	}
	constants := make([]scaletypes.ConstantMetadata, 0, count)
	for i := 0; i < count; i++ {
		constant := scaletypes.ConstantMetadata{}
		if constant.Name, err = p.reader.ReadText(); err != nil {
			return nil, fmt.Errorf("constant %d: cannot read name: %v", i, err)
		}
		if constant.Type, err = p.parseTypeText(); err != nil {
			return nil, fmt.Errorf("constant %s: %v", constant.Name, err)
		}
		if constant.Value, err = p.reader.ReadByteString(); err != nil {
			return nil, fmt.Errorf("constant %s: cannot read value: %v", constant.Name, err)
		}
		if constant.Docs, err = p.parseDocs(); err != nil {
			return nil, fmt.Errorf("constant %s: %v", constant.Name, err)
		}
		constants = append(constants, constant)
	}
	return constants, nil
}

func (p *legacyParser) parseErrors() ([]scaletypes.ErrorMetadata, error) {
	count, err := p.readLen()
	if err != nil {
		return nil, fmt.Errorf("cannot read error count: %v", err)
	}
	if count > 256 {
		return nil, fmt.Errorf("error count %d out of range", count)
	}
	moduleErrors := make([]scaletypes.ErrorMetadata, 0, count)
	for i := 0; i < count; i++ {
		moduleError := scaletypes.ErrorMetadata{Index: uint8(i)}
		if moduleError.Name, err = p.reader.ReadText(); err != nil {
			return nil, fmt.Errorf("error %d: cannot read name: %v", i, err)
		}
		if moduleError.Docs, err = p.parseDocs(); err != nil {
			return nil, fmt.Errorf("error %s: %v", moduleError.Name, err)
		}
		moduleErrors = append(moduleErrors, moduleError)
	}
	return moduleErrors, nil
}

func (p *legacyParser) parseExtrinsic() (*scaletypes.ExtrinsicMetadata, error) {
	version, err := p.reader.ReadUint8()
	if err != nil {
		return nil, fmt.Errorf("cannot read extrinsic version: %v", err)
	}
	count, err := p.readLen()
	if err != nil {
		return nil, fmt.Errorf("cannot read signed extension count: %v", err)
	}
	extensions := make([]scaletypes.SignedExtension, 0, count)
	for i := 0; i < count; i++ {
		name, err := p.reader.ReadText()
		if err != nil {
			return nil, fmt.Errorf("signed extension %d: %v", i, err)
		}
		extensions = append(extensions, scaletypes.SignedExtension{Name: name})
	}
	return &scaletypes.ExtrinsicMetadata{Version: version, SignedExtensions: extensions}, nil
}

func (p *legacyParser) parseDocs() ([]string, error) {
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

func (p *legacyParser) parseTypeText() (*scaletypes.TypeExpr, error) {
	text, err := p.reader.ReadText()
	if err != nil {
		return nil, fmt.Errorf("cannot read type: %v", err)
	}
	return scaletypes.ParseTypeExpr(text)
}

// readLen reads a collection length and rejects counts that cannot fit in the
// remaining buffer, so corrupt blobs fail before large allocations.
func (p *legacyParser) readLen() (int, error) {
	count, err := p.reader.ReadCompactLength()
	if err != nil {
		return 0, err
	}
	if count > p.reader.Len() {
		return 0, scaleutils.ErrUnexpectedEOF
	}
	return count, nil
}
