// Copyright (c) 2025 pk910
// SPDX-License-Identifier: Apache-2.0
// This file is part of the dynamic-scale library.

package metadata_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/pk910/dynamic-scale/metadata"
	"github.com/pk910/dynamic-scale/scaletypes"
)

// scaleWriter builds SCALE encoded metadata blobs for the tests below.
type scaleWriter struct {
	buf []byte
}

func (w *scaleWriter) byte(b byte) {
	w.buf = append(w.buf, b)
}

func (w *scaleWriter) raw(bs ...byte) {
	w.buf = append(w.buf, bs...)
}

func (w *scaleWriter) u32(v uint32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
}

func (w *scaleWriter) compact(v uint64) {
	switch {
	case v < 1<<6:
		w.byte(byte(v << 2))
	case v < 1<<14:
		w.buf = binary.LittleEndian.AppendUint16(w.buf, uint16(v<<2|1))
	case v < 1<<30:
		w.buf = binary.LittleEndian.AppendUint32(w.buf, uint32(v<<2|2))
	default:
		panic("compact value too large for test fixtures")
	}
}

func (w *scaleWriter) text(s string) {
	w.compact(uint64(len(s)))
	w.buf = append(w.buf, s...)
}

func (w *scaleWriter) option(present bool) {
	if present {
		w.byte(1)
	} else {
		w.byte(0)
	}
}

func (w *scaleWriter) docs(lines ...string) {
	w.compact(uint64(len(lines)))
	for _, line := range lines {
		w.text(line)
	}
}

func (w *scaleWriter) header(version byte) {
	w.raw('m', 'e', 't', 'a')
	w.byte(version)
}

// legacyMapHasher picks a hasher tag that exists in the given revision, so
// the fixtures exercise the per version tag tables.
func legacyMapHasher(version byte) (tag byte, hasher scaletypes.StorageHasher) {
	switch {
	case version <= 9:
		return 4, scaletypes.HasherTwox64Concat
	case version == 10 || version == 13:
		return 2, scaletypes.HasherBlake2_128Concat
	default:
		return 6, scaletypes.HasherIdentity
	}
}

func buildLegacyMetadata(version byte) []byte {
	w := &scaleWriter{}
	w.header(version)
	w.compact(2) // modules

	// System
	w.text("System")
	w.option(false) // storage
	w.option(true)  // calls
	w.compact(1)
	w.text("remark")
	w.compact(1)
	w.text("_remark")
	w.text("Vec<u8>")
	w.docs("Make some on-chain remark.")
	w.option(true) // events
	w.compact(1)
	w.text("ExtrinsicSuccess")
	w.compact(1)
	w.text("DispatchInfo")
	w.docs()
	w.compact(0) // constants
	w.compact(0) // errors
	if version >= 12 {
		w.byte(0)
	}

	// Balances
	w.text("Balances")
	w.option(true) // storage
	if version >= 9 {
		w.text("Bal")
	}
	if version >= 13 {
		w.compact(2)
	} else {
		w.compact(1)
	}
	w.text("FreeBalance")
	w.byte(1) // modifier: default
	w.byte(1) // map
	hasherTag, _ := legacyMapHasher(version)
	w.byte(hasherTag)
	w.text("T::AccountId")
	w.text("T::Balance")
	w.byte(0) // linked
	w.compact(4)
	w.raw(1, 0, 0, 0)
	w.docs()
	if version >= 13 {
		w.text("Approvals")
		w.byte(0) // modifier: optional
		w.byte(3) // n-map
		w.compact(2)
		w.text("T::AccountId")
		w.text("u32")
		w.compact(2)
		w.byte(2) // blake2_128_concat
		w.byte(5) // twox64_concat
		w.text("T::Balance")
		w.compact(0)
		w.docs()
	}
	w.option(true) // calls
	w.compact(1)
	w.text("transfer")
	w.compact(2)
	w.text("dest")
	w.text("T::AccountId")
	w.text("value")
	w.text("Compact<T::Balance>")
	w.docs("Transfer some liquid free balance to another account.")
	w.option(true) // events
	w.compact(1)
	w.text("Transfer")
	w.compact(3)
	w.text("AccountId")
	w.text("AccountId")
	w.text("Balance")
	w.docs()
	w.compact(1) // constants
	w.text("ExistentialDeposit")
	w.text("T::Balance")
	w.compact(4)
	w.raw(0xe8, 0x03, 0, 0)
	w.docs()
	w.compact(1) // errors
	w.text("InsufficientBalance")
	w.docs()
	if version >= 12 {
		w.byte(5)
	}

	if version >= 11 {
		w.byte(4) // extrinsic version
		w.compact(3)
		w.text("CheckEra")
		w.text("CheckNonce")
		w.text("ChargeTransactionPayment")
	}
	return w.buf
}

func TestParseLegacyMetadata(t *testing.T) {
	for version := byte(8); version <= 13; version++ {
		meta, err := metadata.Parse(buildLegacyMetadata(version))
		if err != nil {
			t.Errorf("v%d: parse failed: %v", version, err)
			continue
		}
		if meta.Version != uint32(version) {
			t.Errorf("v%d: unexpected version %d", version, meta.Version)
		}
		if len(meta.Modules) != 2 {
			t.Errorf("v%d: unexpected module count %d", version, len(meta.Modules))
			continue
		}

		system := meta.Module("System")
		if system == nil || system.Calls == nil || len(system.Calls) != 1 {
			t.Errorf("v%d: System calls not parsed: %+v", version, system)
			continue
		}
		if system.Calls[0].Name != "remark" || system.Calls[0].Args[0].Type.String() != "Vec<u8>" {
			t.Errorf("v%d: unexpected remark call: %+v", version, system.Calls[0])
		}
		if system.Storage != nil {
			t.Errorf("v%d: System should have no storage", version)
		}

		balances := meta.Module("Balances")
		if balances == nil || balances.Storage == nil {
			t.Errorf("v%d: Balances not parsed", version)
			continue
		}

		expectedPrefix := "Bal"
		if version == 8 {
			// v8 has no storage prefix, the module name fills in
			expectedPrefix = "Balances"
		}
		if balances.Storage.Prefix != expectedPrefix {
			t.Errorf("v%d: unexpected storage prefix %q", version, balances.Storage.Prefix)
		}

		entry := balances.Storage.Entry("FreeBalance")
		if entry == nil {
			t.Errorf("v%d: FreeBalance entry missing", version)
			continue
		}
		_, expectedHasher := legacyMapHasher(version)
		if len(entry.Hashers) != 1 || entry.Hashers[0] != expectedHasher {
			t.Errorf("v%d: unexpected hashers %v", version, entry.Hashers)
		}
		if len(entry.Keys) != 1 || entry.Keys[0].String() != "AccountId" || entry.Value.String() != "Balance" {
			t.Errorf("v%d: unexpected map types: %+v", version, entry)
		}
		if entry.Modifier != scaletypes.StorageModifierDefault || !bytes.Equal(entry.Default, []byte{1, 0, 0, 0}) {
			t.Errorf("v%d: unexpected modifier or default: %+v", version, entry)
		}
		if entry.Linked {
			t.Errorf("v%d: entry should not be linked", version)
		}

		transfer := balances.Call("transfer")
		if transfer == nil || transfer.Args[1].Type.String() != "Compact<Balance>" {
			t.Errorf("v%d: unexpected transfer call: %+v", version, transfer)
		}
		if event := balances.EventByIndex(0); event == nil || event.Name != "Transfer" || len(event.Args) != 3 {
			t.Errorf("v%d: unexpected Transfer event", version)
		}
		if len(balances.Constants) != 1 || !bytes.Equal(balances.Constants[0].Value, []byte{0xe8, 0x03, 0, 0}) {
			t.Errorf("v%d: unexpected constants: %+v", version, balances.Constants)
		}
		if len(balances.Errors) != 1 || balances.Errors[0].Name != "InsufficientBalance" {
			t.Errorf("v%d: unexpected errors: %+v", version, balances.Errors)
		}

		if version >= 12 {
			if balances.Index != 5 || balances.CallIndex != 5 || balances.EventIndex != 5 {
				t.Errorf("v%d: unexpected explicit index: %+v", version, balances)
			}
			if meta.ModuleByCallIndex(5) != balances {
				t.Errorf("v%d: call index lookup failed", version)
			}
		} else {
			if balances.Index != 1 || balances.CallIndex != 1 || balances.EventIndex != 1 {
				t.Errorf("v%d: unexpected positional index: %+v", version, balances)
			}
			if meta.ModuleByCallIndex(1) != balances || meta.ModuleByEventIndex(1) != balances {
				t.Errorf("v%d: positional index lookup failed", version)
			}
		}

		if version >= 11 {
			if meta.Extrinsic == nil || meta.Extrinsic.Version != 4 || len(meta.Extrinsic.SignedExtensions) != 3 {
				t.Errorf("v%d: unexpected extrinsic metadata: %+v", version, meta.Extrinsic)
			} else if meta.Extrinsic.SignedExtensions[0].Name != "CheckEra" {
				t.Errorf("v%d: unexpected signed extensions", version)
			}
		} else if meta.Extrinsic != nil {
			t.Errorf("v%d: unexpected extrinsic metadata", version)
		}

		if version >= 13 {
			approvals := balances.Storage.Entry("Approvals")
			if approvals == nil || len(approvals.Keys) != 2 || len(approvals.Hashers) != 2 {
				t.Errorf("v%d: n-map entry not parsed: %+v", version, approvals)
			} else if approvals.Hashers[0] != scaletypes.HasherBlake2_128Concat ||
				approvals.Hashers[1] != scaletypes.HasherTwox64Concat {
				t.Errorf("v%d: unexpected n-map hashers: %v", version, approvals.Hashers)
			}
		}
	}
}

// registry type ids used by the v14 fixture
const (
	v14TypeU8        = 0
	v14TypeHash      = 1
	v14TypeAccount   = 2
	v14TypeU32       = 3
	v14TypeCompact32 = 4
	v14TypeU128      = 5
	v14TypeCompact   = 6
	v14TypeCall      = 7
	v14TypeEvent     = 8
	v14TypeError     = 9
	v14TypeExtrinsic = 10
	v14TypeSignature = 11
	v14TypeUnit      = 12
	v14TypeByteSeq   = 13
	v14TypeKeyTuple  = 14
	v14TypeLsb0      = 15
	v14TypeBitSeq    = 16
	v14TypeEra       = 17
	v14TypeCount     = 18
)

func buildV14Metadata() []byte {
	w := &scaleWriter{}
	w.header(14)
	w.compact(v14TypeCount)

	path := func(segments ...string) {
		w.compact(uint64(len(segments)))
		for _, segment := range segments {
			w.text(segment)
		}
	}
	noParams := func() { w.compact(0) }
	namedField := func(name string, ty uint64) {
		w.option(true)
		w.text(name)
		w.compact(ty)
		w.option(false) // type name
		w.docs()
	}
	unnamedField := func(ty uint64) {
		w.option(false)
		w.compact(ty)
		w.option(false)
		w.docs()
	}

	w.compact(v14TypeU8)
	path()
	noParams()
	w.byte(5) // primitive
	w.byte(3) // u8
	w.docs()

	w.compact(v14TypeHash)
	path()
	noParams()
	w.byte(3) // array
	w.u32(32)
	w.compact(v14TypeU8)
	w.docs()

	w.compact(v14TypeAccount)
	path("sp_core", "crypto", "AccountId32")
	noParams()
	w.byte(0) // composite
	w.compact(1)
	unnamedField(v14TypeHash)
	w.docs()

	w.compact(v14TypeU32)
	path()
	noParams()
	w.byte(5)
	w.byte(5) // u32
	w.docs()

	w.compact(v14TypeCompact32)
	path()
	noParams()
	w.byte(6) // compact
	w.compact(v14TypeU32)
	w.docs()

	w.compact(v14TypeU128)
	path()
	noParams()
	w.byte(5)
	w.byte(7) // u128
	w.docs()

	w.compact(v14TypeCompact)
	path()
	noParams()
	w.byte(6)
	w.compact(v14TypeU128)
	w.docs()

	w.compact(v14TypeCall)
	path("pallet_balances", "pallet", "Call")
	noParams()
	w.byte(1) // variant
	w.compact(1)
	w.text("transfer")
	w.compact(2)
	namedField("dest", v14TypeAccount)
	namedField("value", v14TypeCompact)
	w.byte(0) // index
	w.docs("Transfer some liquid free balance to another account.")
	w.docs()

	w.compact(v14TypeEvent)
	path("pallet_balances", "pallet", "Event")
	noParams()
	w.byte(1)
	w.compact(1)
	w.text("Transfer")
	w.compact(3)
	namedField("from", v14TypeAccount)
	namedField("to", v14TypeAccount)
	namedField("amount", v14TypeU128)
	w.byte(2) // sparse index
	w.docs()
	w.docs()

	w.compact(v14TypeError)
	path("pallet_balances", "pallet", "Error")
	noParams()
	w.byte(1)
	w.compact(1)
	w.text("InsufficientBalance")
	w.compact(0)
	w.byte(2)
	w.docs()
	w.docs()

	w.compact(v14TypeExtrinsic)
	path("sp_runtime", "generic", "unchecked_extrinsic", "UncheckedExtrinsic")
	w.compact(4) // type params
	w.text("Address")
	w.option(true)
	w.compact(v14TypeAccount)
	w.text("Call")
	w.option(true)
	w.compact(v14TypeCall)
	w.text("Signature")
	w.option(true)
	w.compact(v14TypeSignature)
	w.text("Extra")
	w.option(true)
	w.compact(v14TypeUnit)
	w.byte(0) // composite
	w.compact(1)
	unnamedField(v14TypeByteSeq)
	w.docs()

	w.compact(v14TypeSignature)
	path("sp_runtime", "MultiSignature")
	noParams()
	w.byte(1)
	w.compact(1)
	w.text("Sr25519")
	w.compact(1)
	unnamedField(v14TypeHash)
	w.byte(1)
	w.docs()
	w.docs()

	w.compact(v14TypeUnit)
	path()
	noParams()
	w.byte(4) // tuple
	w.compact(0)
	w.docs()

	w.compact(v14TypeByteSeq)
	path()
	noParams()
	w.byte(2) // sequence
	w.compact(v14TypeU8)
	w.docs()

	w.compact(v14TypeKeyTuple)
	path()
	noParams()
	w.byte(4)
	w.compact(2)
	w.compact(v14TypeAccount)
	w.compact(v14TypeU32)
	w.docs()

	w.compact(v14TypeLsb0)
	path("bitvec", "order", "Lsb0")
	noParams()
	w.byte(0)
	w.compact(0)
	w.docs()

	w.compact(v14TypeBitSeq)
	path()
	noParams()
	w.byte(7) // bit sequence
	w.compact(v14TypeU8)
	w.compact(v14TypeLsb0)
	w.docs()

	w.compact(v14TypeEra)
	path("sp_runtime", "generic", "era", "Era")
	noParams()
	w.byte(1)
	w.compact(1)
	w.text("Immortal")
	w.compact(0)
	w.byte(0)
	w.docs()
	w.docs()

	// pallets
	w.compact(1)
	w.text("Balances")
	w.option(true) // storage
	w.text("Balances")
	w.compact(2)
	w.text("Account")
	w.byte(1) // modifier: default
	w.byte(1) // map
	w.compact(1)
	w.byte(2) // blake2_128_concat
	w.compact(v14TypeAccount)
	w.compact(v14TypeU128)
	w.compact(4)
	w.raw(1, 2, 3, 4)
	w.docs()
	w.text("Approvals")
	w.byte(0)
	w.byte(1)
	w.compact(2)
	w.byte(2) // blake2_128_concat
	w.byte(5) // twox64_concat
	w.compact(v14TypeKeyTuple)
	w.compact(v14TypeU128)
	w.compact(0)
	w.docs()
	w.option(true) // calls
	w.compact(v14TypeCall)
	w.option(true) // events
	w.compact(v14TypeEvent)
	w.compact(1) // constants
	w.text("ExistentialDeposit")
	w.compact(v14TypeU128)
	w.compact(16)
	w.raw(0xe8, 0x03, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0)
	w.docs()
	w.option(true) // errors
	w.compact(v14TypeError)
	w.byte(5) // pallet index

	// extrinsic
	w.compact(v14TypeExtrinsic)
	w.byte(4)
	w.compact(2)
	w.text("CheckMortality")
	w.compact(v14TypeEra)
	w.compact(v14TypeUnit)
	w.text("ChargeTransactionPayment")
	w.compact(v14TypeCompact)
	w.compact(v14TypeUnit)

	// runtime type
	w.compact(v14TypeU8)
	return w.buf
}

func typeDefFor(t *testing.T, meta *scaletypes.RuntimeMetadata, expr *scaletypes.TypeExpr) *scaletypes.TypeDef {
	t.Helper()
	if expr == nil || expr.Kind != scaletypes.ExprRef {
		t.Fatalf("expected registry reference, got %+v", expr)
	}
	def, err := meta.Types.Get(expr.Ref)
	if err != nil {
		t.Fatalf("cannot resolve reference: %v", err)
	}
	return def
}

func TestParseV14Metadata(t *testing.T) {
	meta, err := metadata.Parse(buildV14Metadata())
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	if meta.Version != 14 || meta.Types == nil {
		t.Fatalf("unexpected metadata shape: version %d", meta.Version)
	}
	if meta.Types.Len() != v14TypeCount {
		t.Errorf("unexpected registry size: %d", meta.Types.Len())
	}

	balances := meta.Module("Balances")
	if balances == nil {
		t.Fatalf("Balances pallet missing")
	}
	if balances.Index != 5 || meta.ModuleByCallIndex(5) != balances || meta.ModuleByEventIndex(5) != balances {
		t.Errorf("pallet index not applied: %+v", balances)
	}

	transfer := balances.Call("transfer")
	if transfer == nil || transfer.Index != 0 || len(transfer.Args) != 2 {
		t.Fatalf("transfer call not parsed: %+v", transfer)
	}
	if transfer.Args[0].Name != "dest" {
		t.Errorf("unexpected argument name %q", transfer.Args[0].Name)
	}
	if def := typeDefFor(t, meta, transfer.Args[0].Type); def.Path != "sp_core::crypto::AccountId32" {
		t.Errorf("unexpected dest type: %+v", def)
	}
	if def := typeDefFor(t, meta, transfer.Args[1].Type); def.Kind != scaletypes.TypeCompact {
		t.Errorf("unexpected value type: %+v", def)
	}

	event := balances.EventByIndex(2)
	if event == nil || event.Name != "Transfer" || len(event.Args) != 3 {
		t.Errorf("Transfer event not parsed: %+v", event)
	}
	if moduleErr := balances.ErrorByIndex(2); moduleErr == nil || moduleErr.Name != "InsufficientBalance" {
		t.Errorf("error variant not parsed: %+v", moduleErr)
	}

	account := balances.Storage.Entry("Account")
	if account == nil || len(account.Hashers) != 1 || account.Hashers[0] != scaletypes.HasherBlake2_128Concat {
		t.Fatalf("Account entry not parsed: %+v", account)
	}
	if def := typeDefFor(t, meta, account.Keys[0]); def.Path != "sp_core::crypto::AccountId32" {
		t.Errorf("unexpected key type: %+v", def)
	}
	if def := typeDefFor(t, meta, account.Value); def.Kind != scaletypes.TypePrimitive || def.Prim != scaletypes.PrimU128 {
		t.Errorf("unexpected value type: %+v", def)
	}

	// multi hasher maps split their key tuple
	approvals := balances.Storage.Entry("Approvals")
	if approvals == nil || len(approvals.Keys) != 2 {
		t.Fatalf("Approvals entry not parsed: %+v", approvals)
	}
	if def := typeDefFor(t, meta, approvals.Keys[1]); def.Kind != scaletypes.TypePrimitive || def.Prim != scaletypes.PrimU32 {
		t.Errorf("unexpected second key type: %+v", def)
	}

	bitSeq, err := meta.Types.Get(scaletypes.TypeID(v14TypeBitSeq))
	if err != nil || bitSeq.Kind != scaletypes.TypeBitSeq || bitSeq.Len != 8 {
		t.Errorf("bit sequence type not interned: %+v (%v)", bitSeq, err)
	}

	if meta.Extrinsic == nil || meta.Extrinsic.Version != 4 {
		t.Fatalf("extrinsic metadata missing: %+v", meta.Extrinsic)
	}
	if def := typeDefFor(t, meta, meta.Extrinsic.AddressType); def.Path != "sp_core::crypto::AccountId32" {
		t.Errorf("unexpected address type: %+v", def)
	}
	if def := typeDefFor(t, meta, meta.Extrinsic.SignatureType); def.Path != "sp_runtime::MultiSignature" {
		t.Errorf("unexpected signature type: %+v", def)
	}
	if len(meta.Extrinsic.SignedExtensions) != 2 {
		t.Fatalf("unexpected signed extensions: %+v", meta.Extrinsic.SignedExtensions)
	}
	if ext := meta.Extrinsic.SignedExtensions[0]; ext.Name != "CheckMortality" {
		t.Errorf("unexpected signed extension: %+v", ext)
	} else if def := typeDefFor(t, meta, ext.Type); def.Path != "sp_runtime::generic::era::Era" {
		t.Errorf("unexpected extension type: %+v", def)
	}
}

func TestParseErrors(t *testing.T) {
	// wrong magic
	w := &scaleWriter{}
	w.raw('n', 'o', 'p', 'e')
	w.byte(12)
	if _, err := metadata.Parse(w.buf); !errors.Is(err, metadata.ErrBadMagic) {
		t.Errorf("expected bad magic error, got %v", err)
	}
	if _, err := metadata.Parse([]byte{0x6d}); !errors.Is(err, metadata.ErrBadMagic) {
		t.Errorf("expected bad magic error, got %v", err)
	}

	// unsupported revisions
	for _, version := range []byte{0, 7, 15, 42} {
		w := &scaleWriter{}
		w.header(version)
		if _, err := metadata.Parse(w.buf); !errors.Is(err, metadata.ErrUnsupportedVersion) {
			t.Errorf("v%d: expected unsupported version error, got %v", version, err)
		}
	}

	// truncated blob
	blob := buildLegacyMetadata(12)
	if _, err := metadata.Parse(blob[:len(blob)/2]); err == nil {
		t.Errorf("expected error for truncated blob")
	}

	// n-map entries are not valid before v13
	w = &scaleWriter{}
	w.header(12)
	w.compact(1)
	w.text("Assets")
	w.option(true) // storage
	w.text("Assets")
	w.compact(1)
	w.text("Approvals")
	w.byte(0)
	w.byte(3) // n-map tag
	if _, err := metadata.Parse(w.buf); err == nil {
		t.Errorf("expected error for v12 n-map entry")
	}

	// identity hasher does not exist before v11
	w = &scaleWriter{}
	w.header(10)
	w.compact(1)
	w.text("Assets")
	w.option(true)
	w.text("Assets")
	w.compact(1)
	w.text("Balance")
	w.byte(0)
	w.byte(1) // map
	w.byte(6) // identity tag
	if _, err := metadata.Parse(w.buf); err == nil {
		t.Errorf("expected error for v10 identity hasher")
	}
}

func TestParseV14UnknownReference(t *testing.T) {
	w := &scaleWriter{}
	w.header(14)
	w.compact(1)
	w.compact(0) // type id
	w.compact(0) // path
	w.compact(0) // params
	w.byte(2)    // sequence
	w.compact(99)
	w.docs()
	if _, err := metadata.Parse(w.buf); err == nil {
		t.Errorf("expected error for dangling type reference")
	}
}

func TestMetadataVersion(t *testing.T) {
	version, err := metadata.Version(buildLegacyMetadata(11))
	if err != nil || version != 11 {
		t.Errorf("unexpected version %d (%v)", version, err)
	}
	version, err = metadata.Version(buildV14Metadata())
	if err != nil || version != 14 {
		t.Errorf("unexpected version %d (%v)", version, err)
	}
	if _, err := metadata.Version([]byte{1, 2, 3, 4, 5}); !errors.Is(err, metadata.ErrBadMagic) {
		t.Errorf("expected bad magic error, got %v", err)
	}
}
