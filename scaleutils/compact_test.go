// Copyright (c) 2025 pk910
// SPDX-License-Identifier: Apache-2.0
// This file is part of the dynamic-scale library.

package scaleutils_test

import (
	"errors"
	"testing"

	"github.com/pk910/dynamic-scale/scaleutils"
)

var compactTestMatrix = []struct {
	data     []byte
	expected string
}{
	// single byte mode
	{fromHex("0x00"), "0"},
	{fromHex("0x04"), "1"},
	{fromHex("0xa8"), "42"},
	{fromHex("0xfc"), "63"},

	// two byte mode
	{fromHex("0x0101"), "64"},
	{fromHex("0x1501"), "69"},
	{fromHex("0xfdff"), "16383"},

	// four byte mode
	{fromHex("0x02000100"), "16384"},
	{fromHex("0xfeffffff"), "1073741823"},

	// big integer mode
	{fromHex("0x0300000040"), "1073741824"},
	{fromHex("0x03ffffffff"), "4294967295"},
	{fromHex("0x070000000001"), "4294967296"},
	{fromHex("0x13ffffffffffffffff"), "18446744073709551615"},
	{fromHex("0x17000000000000000001"), "18446744073709551616"},
	{fromHex("0x33ffffffffffffffffffffffffffffffff"), "340282366920938463463374607431768211455"},
	{fromHex("0x73ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff"), "115792089237316195423570985008687907853269984665640564039457584007913129639935"},

	// non-minimal encodings are accepted
	{fromHex("0x0100"), "0"},
	{fromHex("0x02000000"), "0"},
}

func TestReadCompact(t *testing.T) {
	for idx, test := range compactTestMatrix {
		r := scaleutils.NewBufferReader(test.data)
		val, err := r.ReadCompact()
		if err != nil {
			t.Errorf("test %v failed: unexpected error: %v", idx, err)
			continue
		}
		if val.String() != test.expected {
			t.Errorf("test %v failed: got %v, wanted %v", idx, val.String(), test.expected)
		}
		if r.Len() != 0 {
			t.Errorf("test %v failed: did not consume full input (remaining: %v)", idx, r.Len())
		}
	}
}

func TestReadCompactErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		err  error
	}{
		{"empty", fromHex("0x"), scaleutils.ErrUnexpectedEOF},
		{"two_byte_truncated", fromHex("0x01"), scaleutils.ErrUnexpectedEOF},
		{"four_byte_truncated", fromHex("0x0200"), scaleutils.ErrUnexpectedEOF},
		{"big_mode_truncated", fromHex("0x03000000"), scaleutils.ErrUnexpectedEOF},
		{"big_mode_too_long", append(fromHex("0x77"), make([]byte, 33)...), scaleutils.ErrCompactOverflow},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			r := scaleutils.NewBufferReader(test.data)
			if _, err := r.ReadCompact(); !errors.Is(err, test.err) {
				t.Errorf("got error %v, wanted %v", err, test.err)
			}
		})
	}
}

func TestReadCompactUint64(t *testing.T) {
	r := scaleutils.NewBufferReader(fromHex("0x13ffffffffffffffff"))
	val, err := r.ReadCompactUint64()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != 18446744073709551615 {
		t.Errorf("got %v, wanted uint64 max", val)
	}

	r = scaleutils.NewBufferReader(fromHex("0x17000000000000000001"))
	if _, err := r.ReadCompactUint64(); !errors.Is(err, scaleutils.ErrCompactOverflow) {
		t.Errorf("got error %v, wanted ErrCompactOverflow", err)
	}
}

func TestReadCompactUint32(t *testing.T) {
	r := scaleutils.NewBufferReader(fromHex("0x03ffffffff"))
	val, err := r.ReadCompactUint32()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != 4294967295 {
		t.Errorf("got %v, wanted uint32 max", val)
	}

	r = scaleutils.NewBufferReader(fromHex("0x070000000001"))
	if _, err := r.ReadCompactUint32(); !errors.Is(err, scaleutils.ErrCompactOverflow) {
		t.Errorf("got error %v, wanted ErrCompactOverflow", err)
	}
}

func FuzzReadCompact(f *testing.F) {
	f.Add(fromHex("0x00"))
	f.Add(fromHex("0x1501"))
	f.Add(fromHex("0x02000100"))
	f.Add(fromHex("0x0300000040"))
	f.Add(fromHex("0x33ffffffffffffffffffffffffffffffff"))
	f.Fuzz(func(t *testing.T, data []byte) {
		r := scaleutils.NewBufferReader(data)
		val, err := r.ReadCompact()
		if err != nil {
			return
		}
		if val == nil {
			t.Fatal("nil value without error")
		}
		if r.Position() > len(data) {
			t.Fatalf("consumed %v bytes of %v", r.Position(), len(data))
		}
	})
}
