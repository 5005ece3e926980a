// Copyright (c) 2025 pk910
// SPDX-License-Identifier: Apache-2.0
// This file is part of the dynamic-scale library.

package dynscale_test

import (
	"bytes"
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/pk910/dynamic-scale/scaletypes"
	"github.com/pk910/dynamic-scale/scaleutils"
	"github.com/pk910/dynamic-scale/storage"
)

func TestDecodeStoragePlain(t *testing.T) {
	decoder := newTestDecoder(t)

	key := storage.EntryPrefix("Balances", "TotalIssuance")
	item, err := decoder.DecodeStorage(0, key, fromHex("e8030000000000000000000000000000"))
	if err != nil {
		t.Fatalf("failed to decode storage pair: %v", err)
	}
	if item.Module != "Balances" || item.Entry != "TotalIssuance" {
		t.Errorf("got entry %s.%s, want Balances.TotalIssuance", item.Module, item.Entry)
	}
	if len(item.Keys) != 0 {
		t.Errorf("got %d keys on plain entry, want 0", len(item.Keys))
	}
	if got := item.Value.String(); got != "1000" {
		t.Errorf("got value %s, want 1000", got)
	}
}

func TestDecodeStorageMapKey(t *testing.T) {
	decoder := newTestDecoder(t)

	account := bytes.Repeat([]byte{0x11}, 32)
	key, err := storage.MapKey("Balances", "Account",
		[]scaletypes.StorageHasher{scaletypes.HasherBlake2_128Concat},
		[][]byte{account})
	if err != nil {
		t.Fatalf("failed to build storage key: %v", err)
	}

	item, err := decoder.DecodeStorage(0, key, fromHex("05000000e8030000000000000000000000000000"))
	if err != nil {
		t.Fatalf("failed to decode storage pair: %v", err)
	}
	if item.Module != "Balances" || item.Entry != "Account" {
		t.Errorf("got entry %s.%s, want Balances.Account", item.Module, item.Entry)
	}
	if len(item.Keys) != 1 {
		t.Fatalf("got %d keys, want 1", len(item.Keys))
	}
	// blake2_128_concat appends the plain key, so it is recoverable
	if got := item.Keys[0].String(); got != "0x"+strings.Repeat("11", 32) {
		t.Errorf("got key %s", got)
	}
	if got := item.Value.String(); got != "{ nonce: 5, free: 1000 }" {
		t.Errorf("got value %s", got)
	}
}

func TestDecodeStorageOpaqueKey(t *testing.T) {
	decoder := newTestDecoder(t)

	account := bytes.Repeat([]byte{0x42}, 32)
	key, err := storage.MapKey("Balances", "FreeBalance",
		[]scaletypes.StorageHasher{scaletypes.HasherBlake2_256},
		[][]byte{account})
	if err != nil {
		t.Fatalf("failed to build storage key: %v", err)
	}

	item, err := decoder.DecodeStorage(0, key, fromHex("e8030000000000000000000000000000"))
	if err != nil {
		t.Fatalf("failed to decode storage pair: %v", err)
	}
	if len(item.Keys) != 1 {
		t.Fatalf("got %d keys, want 1", len(item.Keys))
	}

	// blake2_256 is not reversible, the digest itself is returned
	digest, err := storage.Hash(scaletypes.HasherBlake2_256, account)
	if err != nil {
		t.Fatalf("failed to hash key: %v", err)
	}
	if got := item.Keys[0].String(); got != "0x"+hex.EncodeToString(digest) {
		t.Errorf("got key %s, want digest 0x%x", got, digest)
	}
}

func TestStorageKey(t *testing.T) {
	decoder := newTestDecoder(t)

	key, err := decoder.StorageKey(0, "Balances", "TotalIssuance")
	if err != nil {
		t.Fatalf("failed to build plain key: %v", err)
	}
	if want := storage.EntryPrefix("Balances", "TotalIssuance"); !bytes.Equal(key, want) {
		t.Errorf("got key %x, want %x", key, want)
	}

	account := bytes.Repeat([]byte{0x11}, 32)
	key, err = decoder.StorageKey(0, "Balances", "Account", account)
	if err != nil {
		t.Fatalf("failed to build map key: %v", err)
	}

	// the built key locates the entry and recovers the map key
	item, err := decoder.DecodeStorage(0, key, fromHex("05000000e8030000000000000000000000000000"))
	if err != nil {
		t.Fatalf("failed to decode storage pair: %v", err)
	}
	if item.Entry != "Account" {
		t.Errorf("got entry %s, want Account", item.Entry)
	}
	if got := item.Keys[0].String(); got != "0x"+strings.Repeat("11", 32) {
		t.Errorf("got key %s", got)
	}

	if _, err := decoder.StorageKey(0, "Balances", "Account"); err == nil {
		t.Error("expected an error for a map entry without keys")
	}
	if _, err := decoder.StorageKey(0, "Balances", "TotalIssuance", account); err == nil {
		t.Error("expected an error for a plain entry with keys")
	}
}

func TestDecodeStorageDefaults(t *testing.T) {
	decoder := newTestDecoder(t)

	// empty data on an entry with a default modifier decodes the default
	value, err := decoder.DecodeStorageValue(0, "Balances", "TotalIssuance", nil)
	if err != nil {
		t.Fatalf("failed to decode default value: %v", err)
	}
	if got := value.String(); got != "500" {
		t.Errorf("got value %s, want 500", got)
	}

	// empty data on an optional entry decodes to None
	value, err = decoder.DecodeStorageValue(0, "Balances", "Account", nil)
	if err != nil {
		t.Fatalf("failed to decode missing optional value: %v", err)
	}
	if got := value.String(); got != "None" {
		t.Errorf("got value %s, want None", got)
	}
}

func TestDecodeStorageLinkedMap(t *testing.T) {
	decoder := newTestDecoder(t)

	// linked map values carry previous/next key options after the value
	payload := "0a000000" + "00" + "01" + strings.Repeat("ee", 32)
	value, err := decoder.DecodeStorageValue(0, "Balances", "Voters", fromHex(payload))
	if err != nil {
		t.Fatalf("failed to decode linked map value: %v", err)
	}
	want := "{ value: 10, previous: None, next: Some(0x" + strings.Repeat("ee", 32) + ") }"
	if got := value.String(); got != want {
		t.Errorf("got value %s, want %s", got, want)
	}
}

func TestDecodeStorageErrors(t *testing.T) {
	decoder := newTestDecoder(t)

	_, err := decoder.DecodeStorage(0, fromHex("0011"), nil)
	if err == nil || !strings.Contains(err.Error(), "storage key too short") {
		t.Errorf("got error %v, want short key error", err)
	}

	_, err = decoder.DecodeStorage(0, bytes.Repeat([]byte{0xab}, 32), nil)
	if err == nil || !strings.Contains(err.Error(), "no storage entry matches") {
		t.Errorf("got error %v, want unknown prefix error", err)
	}

	// key bytes after the prefix of a plain entry
	key := append(storage.EntryPrefix("Balances", "TotalIssuance"), 0xff)
	_, err = decoder.DecodeStorage(0, key, nil)
	if !errors.Is(err, scaleutils.ErrTrailingBytes) {
		t.Errorf("got error %v, want %v", err, scaleutils.ErrTrailingBytes)
	}

	// value bytes beyond the entry's value type
	prefix := storage.EntryPrefix("Balances", "TotalIssuance")
	_, err = decoder.DecodeStorage(0, prefix, fromHex("e8030000000000000000000000000000ff"))
	if !errors.Is(err, scaleutils.ErrTrailingBytes) {
		t.Errorf("got error %v, want %v", err, scaleutils.ErrTrailingBytes)
	}

	_, err = decoder.DecodeStorageValue(0, "Oracle", "Feed", nil)
	if err == nil || !strings.Contains(err.Error(), "unknown module") {
		t.Errorf("got error %v, want unknown module error", err)
	}

	_, err = decoder.DecodeStorageValue(0, "Balances", "Missing", nil)
	if err == nil || !strings.Contains(err.Error(), "has no storage entry") {
		t.Errorf("got error %v, want unknown entry error", err)
	}
}
