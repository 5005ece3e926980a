// Copyright (c) 2025 pk910
// SPDX-License-Identifier: Apache-2.0
// This file is part of the dynamic-scale library.

package scaleutils

import (
	"math"

	"github.com/holiman/uint256"
)

// ReadCompact reads a SCALE compact integer. The low two bits of the first
// byte select the mode: 0 packs the value into the remaining six bits, 1 and 2
// extend to two and four little endian bytes, 3 is the big integer mode with
// (prefix>>2)+4 payload bytes. Values above 2^256-1 fail with
// ErrCompactOverflow.
func (r *BufferReader) ReadCompact() (*uint256.Int, error) {
	prefix, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}

	switch prefix & 0x03 {
	case 0:
		return uint256.NewInt(uint64(prefix >> 2)), nil
	case 1:
		next, err := r.ReadUint8()
		if err != nil {
			return nil, err
		}
		return uint256.NewInt((uint64(prefix) | uint64(next)<<8) >> 2), nil
	case 2:
		rest, err := r.ReadBytes(3)
		if err != nil {
			return nil, err
		}
		val := uint64(prefix) | uint64(rest[0])<<8 | uint64(rest[1])<<16 | uint64(rest[2])<<24
		return uint256.NewInt(val >> 2), nil
	default:
		byteLen := int(prefix>>2) + 4
		if byteLen > 32 {
			return nil, ErrCompactOverflow
		}
		data, err := r.ReadBytes(byteLen)
		if err != nil {
			return nil, err
		}
		beBuf := make([]byte, byteLen)
		for i, b := range data {
			beBuf[byteLen-1-i] = b
		}
		return new(uint256.Int).SetBytes(beBuf), nil
	}
}

// ReadCompactUint64 reads a compact integer that must fit into 64 bits.
func (r *BufferReader) ReadCompactUint64() (uint64, error) {
	val, err := r.ReadCompact()
	if err != nil {
		return 0, err
	}
	if !val.IsUint64() {
		return 0, ErrCompactOverflow
	}
	return val.Uint64(), nil
}

// ReadCompactUint32 reads a compact integer that must fit into 32 bits.
func (r *BufferReader) ReadCompactUint32() (uint32, error) {
	val, err := r.ReadCompactUint64()
	if err != nil {
		return 0, err
	}
	if val > math.MaxUint32 {
		return 0, ErrCompactOverflow
	}
	return uint32(val), nil
}

// ReadCompactLength reads a compact encoded collection length. Lengths are
// used for allocations, so anything that does not fit into a non-negative int
// fails with ErrCompactOverflow.
func (r *BufferReader) ReadCompactLength() (int, error) {
	val, err := r.ReadCompactUint64()
	if err != nil {
		return 0, err
	}
	if val > math.MaxInt32 {
		return 0, ErrCompactOverflow
	}
	return int(val), nil
}
