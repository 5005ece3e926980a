// Copyright (c) 2025 pk910
// SPDX-License-Identifier: Apache-2.0
// This file is part of the dynamic-scale library.

package scaleutils

import (
	"math/big"
	"unicode/utf16"

	"github.com/holiman/uint256"
)

func (r *BufferReader) ReadInt8() (int8, error) {
	val, err := r.ReadUint8()
	return int8(val), err
}

func (r *BufferReader) ReadInt16() (int16, error) {
	val, err := r.ReadUint16()
	return int16(val), err
}

func (r *BufferReader) ReadInt32() (int32, error) {
	val, err := r.ReadUint32()
	return int32(val), err
}

func (r *BufferReader) ReadInt64() (int64, error) {
	val, err := r.ReadUint64()
	return int64(val), err
}

// ReadUint128 reads a 16 byte little endian unsigned integer.
func (r *BufferReader) ReadUint128() (*uint256.Int, error) {
	return r.readWideUint(16)
}

// ReadUint256 reads a 32 byte little endian unsigned integer.
func (r *BufferReader) ReadUint256() (*uint256.Int, error) {
	return r.readWideUint(32)
}

func (r *BufferReader) readWideUint(byteLen int) (*uint256.Int, error) {
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

// ReadInt128 reads a 16 byte little endian two's complement integer.
func (r *BufferReader) ReadInt128() (*big.Int, error) {
	return r.readWideInt(16)
}

// ReadInt256 reads a 32 byte little endian two's complement integer.
func (r *BufferReader) ReadInt256() (*big.Int, error) {
	return r.readWideInt(32)
}

func (r *BufferReader) readWideInt(byteLen int) (*big.Int, error) {
	data, err := r.ReadBytes(byteLen)
	if err != nil {
		return nil, err
	}
	beBuf := make([]byte, byteLen)
	for i, b := range data {
		beBuf[byteLen-1-i] = b
	}
	val := new(big.Int).SetBytes(beBuf)
	if beBuf[0]&0x80 != 0 {
		bound := new(big.Int).Lsh(big.NewInt(1), uint(byteLen*8))
		val.Sub(val, bound)
	}
	return val, nil
}

// ReadChar reads a 4 byte little endian unicode scalar value.
func (r *BufferReader) ReadChar() (rune, error) {
	val, err := r.ReadUint32()
	if err != nil {
		return 0, err
	}
	if val > 0x10ffff || utf16.IsSurrogate(rune(val)) {
		return 0, ErrInvalidChar
	}
	return rune(val), nil
}
