// Copyright (c) 2025 pk910
// SPDX-License-Identifier: Apache-2.0
// This file is part of the dynamic-scale library.

// Package scaleutils provides the low level SCALE wire primitives: a positioned
// byte reader, the compact integer codec and the fixed width value codecs that
// the higher level decoding engine is built on.
package scaleutils

import (
	"encoding/binary"
	"unicode/utf8"
)

// BufferReader is a cursor over an immutable byte buffer. All reads check the
// remaining length before advancing the position, so a failed read never moves
// the cursor.
type BufferReader struct {
	buffer    []byte
	bufferLen int
	position  int
}

func NewBufferReader(buffer []byte) *BufferReader {
	return &BufferReader{
		buffer:    buffer,
		bufferLen: len(buffer),
		position:  0,
	}
}

// Position returns the number of bytes consumed so far.
func (r *BufferReader) Position() int {
	return r.position
}

// Len returns the number of unread bytes.
func (r *BufferReader) Len() int {
	return r.bufferLen - r.position
}

func (r *BufferReader) ReadUint8() (uint8, error) {
	if r.Len() < 1 {
		return 0, ErrUnexpectedEOF
	}
	val := r.buffer[r.position]
	r.position++
	return val, nil
}

func (r *BufferReader) ReadUint16() (uint16, error) {
	if r.Len() < 2 {
		return 0, ErrUnexpectedEOF
	}
	val := binary.LittleEndian.Uint16(r.buffer[r.position:])
	r.position += 2
	return val, nil
}

func (r *BufferReader) ReadUint32() (uint32, error) {
	if r.Len() < 4 {
		return 0, ErrUnexpectedEOF
	}
	val := binary.LittleEndian.Uint32(r.buffer[r.position:])
	r.position += 4
	return val, nil
}

func (r *BufferReader) ReadUint64() (uint64, error) {
	if r.Len() < 8 {
		return 0, ErrUnexpectedEOF
	}
	val := binary.LittleEndian.Uint64(r.buffer[r.position:])
	r.position += 8
	return val, nil
}

// ReadBytes returns the next n bytes as a subslice of the underlying buffer.
// The returned slice aliases the input buffer and must not be modified.
func (r *BufferReader) ReadBytes(n int) ([]byte, error) {
	if n < 0 || r.Len() < n {
		return nil, ErrUnexpectedEOF
	}
	buf := r.buffer[r.position : r.position+n]
	r.position += n
	return buf, nil
}

// PeekBytes returns the next n bytes without advancing the position. Like
// ReadBytes, the returned slice aliases the input buffer.
func (r *BufferReader) PeekBytes(n int) ([]byte, error) {
	if n < 0 || r.Len() < n {
		return nil, ErrUnexpectedEOF
	}
	return r.buffer[r.position : r.position+n], nil
}

// PeekUint8 returns the next byte without advancing the position.
func (r *BufferReader) PeekUint8() (uint8, error) {
	if r.Len() < 1 {
		return 0, ErrUnexpectedEOF
	}
	return r.buffer[r.position], nil
}

func (r *BufferReader) Skip(n int) error {
	if n < 0 || r.Len() < n {
		return ErrUnexpectedEOF
	}
	r.position += n
	return nil
}

func (r *BufferReader) ReadBool() (bool, error) {
	if r.Len() < 1 {
		return false, ErrUnexpectedEOF
	}
	val := r.buffer[r.position]
	if val != 1 && val != 0 {
		return false, ErrInvalidBool
	}
	r.position++
	return val == 1, nil
}

// ReadOptionFlag reads an option discriminant byte: 0 for absent, 1 for
// present. Any other value fails with ErrInvalidOption.
func (r *BufferReader) ReadOptionFlag() (bool, error) {
	if r.Len() < 1 {
		return false, ErrUnexpectedEOF
	}
	val := r.buffer[r.position]
	if val != 1 && val != 0 {
		return false, ErrInvalidOption
	}
	r.position++
	return val == 1, nil
}

// ReadByteString reads a compact length prefix followed by that many raw bytes.
func (r *BufferReader) ReadByteString() ([]byte, error) {
	length, err := r.ReadCompactLength()
	if err != nil {
		return nil, err
	}
	return r.ReadBytes(length)
}

// ReadText reads a compact length prefixed UTF-8 string.
func (r *BufferReader) ReadText() (string, error) {
	data, err := r.ReadByteString()
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", ErrInvalidText
	}
	return string(data), nil
}
