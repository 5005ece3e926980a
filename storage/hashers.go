// Copyright (c) 2025 pk910
// SPDX-License-Identifier: Apache-2.0
// This file is part of the dynamic-scale library.

// Package storage computes Substrate storage keys. A storage value lives
// under twox128(module prefix) ++ twox128(entry name), with map entries
// appending one hashed key segment per declared hasher.
package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/crypto/blake2b"

	"github.com/pk910/dynamic-scale/scaletypes"
)

// Hash applies a storage hasher to SCALE encoded key data.
// Concat hashers append the plain data after the digest, which is what makes
// their map keys reversible.
func Hash(hasher scaletypes.StorageHasher, data []byte) ([]byte, error) {
	switch hasher {
	case scaletypes.HasherBlake2_128:
		return blake2Sum(16, data), nil
	case scaletypes.HasherBlake2_256:
		return blake2Sum(32, data), nil
	case scaletypes.HasherBlake2_128Concat:
		return append(blake2Sum(16, data), data...), nil
	case scaletypes.HasherTwox128:
		return twoxSum(2, data), nil
	case scaletypes.HasherTwox256:
		return twoxSum(4, data), nil
	case scaletypes.HasherTwox64Concat:
		return append(twoxSum(1, data), data...), nil
	case scaletypes.HasherIdentity:
		out := make([]byte, len(data))
		copy(out, data)
		return out, nil
	default:
		return nil, fmt.Errorf("unknown storage hasher %d", hasher)
	}
}

// HashSize returns the digest length a hasher prepends to a map key segment.
// For concat and identity hashers the plain key data follows the digest.
func HashSize(hasher scaletypes.StorageHasher) (int, error) {
	switch hasher {
	case scaletypes.HasherBlake2_128, scaletypes.HasherTwox128, scaletypes.HasherBlake2_128Concat:
		return 16, nil
	case scaletypes.HasherBlake2_256, scaletypes.HasherTwox256:
		return 32, nil
	case scaletypes.HasherTwox64Concat:
		return 8, nil
	case scaletypes.HasherIdentity:
		return 0, nil
	default:
		return 0, fmt.Errorf("unknown storage hasher %d", hasher)
	}
}

// IsReversible reports whether the plain key bytes can be recovered from a
// key segment hashed with this hasher.
func IsReversible(hasher scaletypes.StorageHasher) bool {
	switch hasher {
	case scaletypes.HasherBlake2_128Concat, scaletypes.HasherTwox64Concat, scaletypes.HasherIdentity:
		return true
	default:
		return false
	}
}

// ModulePrefix returns the 16 byte key prefix shared by every entry of a
// storage module.
func ModulePrefix(prefix string) []byte {
	return twoxSum(2, []byte(prefix))
}

// EntryPrefix returns the 32 byte key of a plain storage entry, which is
// also the common prefix of all keys of a map entry.
func EntryPrefix(prefix, entry string) []byte {
	key := twoxSum(2, []byte(prefix))
	return append(key, twoxSum(2, []byte(entry))...)
}

// MapKey builds the full storage key of one map element. encodedKeys holds
// the SCALE encoded key of each map dimension, matching the entry's hashers
// in count and order.
func MapKey(prefix, entry string, hashers []scaletypes.StorageHasher, encodedKeys [][]byte) ([]byte, error) {
	if len(hashers) != len(encodedKeys) {
		return nil, fmt.Errorf("entry has %d hashers but %d keys were given", len(hashers), len(encodedKeys))
	}
	key := EntryPrefix(prefix, entry)
	for i, hasher := range hashers {
		segment, err := Hash(hasher, encodedKeys[i])
		if err != nil {
			return nil, fmt.Errorf("key %d: %v", i, err)
		}
		key = append(key, segment...)
	}
	return key, nil
}

func blake2Sum(size int, data []byte) []byte {
	h, err := blake2b.New(size, nil)
	if err != nil {
		// unkeyed blake2b only fails on invalid sizes
		panic(err)
	}
	h.Write(data)
	return h.Sum(nil)
}

// twoxSum computes the xx64 based multi word hash Substrate calls twox:
// the data is hashed once per output word with the word index as seed.
func twoxSum(words uint64, data []byte) []byte {
	out := make([]byte, 0, words*8)
	for seed := uint64(0); seed < words; seed++ {
		digest := xxhash.NewWithSeed(seed)
		digest.Write(data)
		out = binary.LittleEndian.AppendUint64(out, digest.Sum64())
	}
	return out
}
