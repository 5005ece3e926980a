// Copyright (c) 2025 pk910
// SPDX-License-Identifier: Apache-2.0
// This file is part of the dynamic-scale library.

// Package metadata parses SCALE encoded runtime metadata blobs. It supports
// the metadata revisions v8 through v14 and reduces all of them to the single
// normalized model in the scaletypes package, so that callers never deal with
// per revision differences.
//
// Metadata blobs are obtained from a node via the state_getMetadata RPC call
// and start with the magic bytes "meta" followed by one version byte.
package metadata

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/pk910/dynamic-scale/scaletypes"
	"github.com/pk910/dynamic-scale/scaleutils"
)

// "meta" read as a little endian u32
const metadataMagic = 0x6174656d

var (
	ErrBadMagic           = fmt.Errorf("metadata blob lacks the magic prefix")
	ErrUnsupportedVersion = fmt.Errorf("unsupported metadata version")
)

// Parse decodes a runtime metadata blob into the normalized model.
//
// The returned error matches ErrBadMagic when the blob does not start with
// the metadata magic, and ErrUnsupportedVersion (via errors.Is) when the
// version byte names a revision outside v8..v14.
//
// Parameters:
//   - data: the raw SCALE encoded metadata bytes
//
// Returns:
//   - *scaletypes.RuntimeMetadata: the normalized runtime metadata
//   - error: any error that occurred during parsing
func Parse(data []byte) (*scaletypes.RuntimeMetadata, error) {
	reader := scaleutils.NewBufferReader(data)

	magic, err := reader.ReadUint32()
	if err != nil {
		return nil, ErrBadMagic
	}
	if magic != metadataMagic {
		return nil, fmt.Errorf("%w (got 0x%08x)", ErrBadMagic, magic)
	}
	version, err := reader.ReadUint8()
	if err != nil {
		return nil, fmt.Errorf("cannot read metadata version: %v", err)
	}

	var meta *scaletypes.RuntimeMetadata
	switch {
	case version >= 8 && version <= 13:
		meta, err = parseLegacy(reader, uint32(version))
	case version == 14:
		meta, err = parseV14(reader)
	default:
		return nil, fmt.Errorf("%w %d", ErrUnsupportedVersion, version)
	}
	if err != nil {
		return nil, fmt.Errorf("cannot parse v%d metadata: %v", version, err)
	}

	if reader.Len() > 0 {
		Logger().Debug("trailing bytes after metadata",
			zap.Uint32("version", uint32(version)),
			zap.Int("count", reader.Len()))
	}
	return meta, nil
}

// Version peeks at the revision of a metadata blob without parsing it.
func Version(data []byte) (uint32, error) {
	reader := scaleutils.NewBufferReader(data)
	magic, err := reader.ReadUint32()
	if err != nil {
		return 0, ErrBadMagic
	}
	if magic != metadataMagic {
		return 0, fmt.Errorf("%w (got 0x%08x)", ErrBadMagic, magic)
	}
	version, err := reader.ReadUint8()
	if err != nil {
		return 0, fmt.Errorf("cannot read metadata version: %v", err)
	}
	return uint32(version), nil
}
