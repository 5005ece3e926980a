// Copyright (c) 2025 pk910
// SPDX-License-Identifier: Apache-2.0
// This file is part of the dynamic-scale library.

package dynscale

import (
	"fmt"

	"github.com/pk910/dynamic-scale/scaletypes"
	"github.com/pk910/dynamic-scale/scaleutils"
	"github.com/pk910/dynamic-scale/storage"
)

// StorageItem is one decoded storage pair: the owning module and entry, the
// map keys recovered from the storage key (empty for plain entries) and the
// decoded value. Keys hashed with a non reversible hasher are returned as the
// raw digest bytes.
type StorageItem struct {
	Module string              `json:"module"`
	Entry  string              `json:"entry"`
	Keys   []*scaletypes.Value `json:"keys,omitempty"`
	Value  *scaletypes.Value   `json:"value"`
}

// DecodeStorage decodes a full storage pair. The entry is located through the
// 32 byte twox128 prefix of the key, the key remainder is split per hasher
// and the value is decoded with the entry's value type.
//
// Parameters:
//   - block: block height selecting the runtime era
//   - key: the full storage key
//   - value: the raw storage value bytes, nil or empty when no value is stored
//
// Returns:
//   - *StorageItem: the decoded storage pair
//   - error: an error if the key matches no entry or decoding fails
func (d *Decoder) DecodeStorage(block uint64, key []byte, value []byte) (*StorageItem, error) {
	entry, err := d.runtimeFor(block)
	if err != nil {
		return nil, err
	}
	if len(key) < 32 {
		return nil, fmt.Errorf("storage key too short (%d bytes)", len(key))
	}
	ref, ok := entry.storageIdx[string(key[:32])]
	if !ok {
		return nil, fmt.Errorf("no storage entry matches key prefix 0x%x", key[:32])
	}

	keys, err := d.decodeStorageKeys(entry, block, ref, key[32:])
	if err != nil {
		return nil, fmt.Errorf("storage key %s.%s: %w", ref.module.Name, ref.entry.Name, err)
	}

	decoded, err := d.decodeStorageEntryValue(entry, block, ref, value)
	if err != nil {
		return nil, fmt.Errorf("storage value %s.%s: %w", ref.module.Name, ref.entry.Name, err)
	}

	return &StorageItem{
		Module: ref.module.Name,
		Entry:  ref.entry.Name,
		Keys:   keys,
		Value:  decoded,
	}, nil
}

// DecodeStorageValue decodes a raw storage value for the named module and
// entry. Empty data yields the entry's default value when the entry has a
// default modifier and None otherwise.
func (d *Decoder) DecodeStorageValue(block uint64, module string, entry string, data []byte) (*scaletypes.Value, error) {
	runtime, err := d.runtimeFor(block)
	if err != nil {
		return nil, err
	}
	moduleMeta := runtime.meta.Module(module)
	if moduleMeta == nil {
		return nil, fmt.Errorf("unknown module %s", module)
	}
	if moduleMeta.Storage == nil {
		return nil, fmt.Errorf("module %s has no storage", module)
	}
	entryMeta := moduleMeta.Storage.Entry(entry)
	if entryMeta == nil {
		return nil, fmt.Errorf("module %s has no storage entry %s", module, entry)
	}
	return d.decodeStorageEntryValue(runtime, block, storageRef{module: moduleMeta, entry: entryMeta}, data)
}

// StorageKey builds the full storage key of an entry at the given block.
// Map entries take one SCALE encoded key per map dimension, hashed with the
// entry's declared hashers; plain entries take none.
func (d *Decoder) StorageKey(block uint64, module string, entry string, encodedKeys ...[]byte) ([]byte, error) {
	runtime, err := d.runtimeFor(block)
	if err != nil {
		return nil, err
	}
	moduleMeta := runtime.meta.Module(module)
	if moduleMeta == nil {
		return nil, fmt.Errorf("unknown module %s", module)
	}
	if moduleMeta.Storage == nil {
		return nil, fmt.Errorf("module %s has no storage", module)
	}
	entryMeta := moduleMeta.Storage.Entry(entry)
	if entryMeta == nil {
		return nil, fmt.Errorf("module %s has no storage entry %s", module, entry)
	}
	if entryMeta.IsPlain() && len(encodedKeys) == 0 {
		return storage.EntryPrefix(moduleMeta.Storage.Prefix, entryMeta.Name), nil
	}
	return storage.MapKey(moduleMeta.Storage.Prefix, entryMeta.Name, entryMeta.Hashers, encodedKeys)
}

func (d *Decoder) decodeStorageKeys(entry *runtimeEntry, block uint64, ref storageRef, remainder []byte) ([]*scaletypes.Value, error) {
	se := ref.entry
	if se.IsPlain() {
		if len(remainder) > 0 {
			return nil, fmt.Errorf("%w (plain entry with %d key bytes)", scaleutils.ErrTrailingBytes, len(remainder))
		}
		return nil, nil
	}

	reader := scaleutils.NewBufferReader(remainder)
	st := &decodeState{decoder: d, entry: entry, block: block, reader: reader}

	keys := make([]*scaletypes.Value, 0, len(se.Keys))
	for i, keyType := range se.Keys {
		hasher := se.Hashers[i]
		digestSize, err := storage.HashSize(hasher)
		if err != nil {
			return nil, fmt.Errorf("key %d: %v", i, err)
		}

		if !storage.IsReversible(hasher) {
			// the plain key is lost in the digest, return the digest itself
			digest, err := reader.ReadBytes(digestSize)
			if err != nil {
				return nil, st.wrap(err, indexPath("key", i))
			}
			keys = append(keys, scaletypes.BytesValue(digest))
			continue
		}

		if _, err := reader.ReadBytes(digestSize); err != nil {
			return nil, st.wrap(err, indexPath("key", i))
		}
		id, err := entry.compiler.compile(ref.module.Name, keyType, block)
		if err != nil {
			return nil, fmt.Errorf("key %d: %w", i, err)
		}
		key, err := st.decodeType(id, indexPath("key", i))
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}

	if reader.Len() > 0 {
		return nil, fmt.Errorf("%w (consumed: %v, size: %v)", scaleutils.ErrTrailingBytes, reader.Position(), len(remainder))
	}
	return keys, nil
}

func (d *Decoder) decodeStorageEntryValue(entry *runtimeEntry, block uint64, ref storageRef, data []byte) (*scaletypes.Value, error) {
	se := ref.entry
	if len(data) == 0 {
		if se.Modifier == scaletypes.StorageModifierDefault && len(se.Default) > 0 {
			return d.decodeStorageEntryValue(entry, block, ref, se.Default)
		}
		return scaletypes.OptionValue(nil), nil
	}

	valueID, err := entry.compiler.compile(ref.module.Name, se.Value, block)
	if err != nil {
		return nil, err
	}

	reader := scaleutils.NewBufferReader(data)
	st := &decodeState{decoder: d, entry: entry, block: block, reader: reader}

	value, err := st.decodeType(valueID, "value")
	if err != nil {
		return nil, err
	}

	if se.Linked {
		// deprecated linked maps append previous/next key links to the value
		linked, err := st.decodeLinkedKeys(ref)
		if err != nil {
			return nil, err
		}
		value = scaletypes.CompositeValue(
			scaletypes.ValueField{Name: "value", Value: value},
			scaletypes.ValueField{Name: "previous", Value: linked[0]},
			scaletypes.ValueField{Name: "next", Value: linked[1]},
		)
	}

	if reader.Len() > 0 {
		return nil, fmt.Errorf("%w (consumed: %v, size: %v)", scaleutils.ErrTrailingBytes, reader.Position(), len(data))
	}
	return value, nil
}

func (st *decodeState) decodeLinkedKeys(ref storageRef) ([2]*scaletypes.Value, error) {
	var links [2]*scaletypes.Value
	if len(ref.entry.Keys) == 0 {
		return links, fmt.Errorf("linked storage entry %s.%s has no key type", ref.module.Name, ref.entry.Name)
	}
	keyID, err := st.entry.compiler.compile(ref.module.Name, ref.entry.Keys[0], st.block)
	if err != nil {
		return links, err
	}

	for i, name := range [2]string{"previous", "next"} {
		flag, err := st.reader.ReadOptionFlag()
		if err != nil {
			return links, st.wrap(err, name)
		}
		if !flag {
			links[i] = scaletypes.OptionValue(nil)
			continue
		}
		key, err := st.decodeType(keyID, name)
		if err != nil {
			return links, err
		}
		links[i] = scaletypes.OptionValue(key)
	}
	return links, nil
}
