// Copyright (c) 2025 pk910
// SPDX-License-Identifier: Apache-2.0
// This file is part of the dynamic-scale library.

package dynscale

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/pk910/dynamic-scale/scaletypes"
	"github.com/pk910/dynamic-scale/scaleutils"
)

// Extrinsic is one decoded extrinsic: the wire format version, the signature
// block for signed extrinsics (nil otherwise) and the decoded call.
type Extrinsic struct {
	Version   uint8               `json:"version"`
	Signature *ExtrinsicSignature `json:"signature,omitempty"`
	Call      *scaletypes.Value   `json:"call"`
}

// ExtrinsicSignature is the signature block of a signed extrinsic. Extensions
// holds the decoded signed extension payloads (era, nonce, tip, ...) by
// extension identifier; extensions that encode nothing are omitted.
type ExtrinsicSignature struct {
	Address    *scaletypes.Value `json:"address"`
	Signature  *scaletypes.Value `json:"signature"`
	Extensions *scaletypes.Value `json:"extensions,omitempty"`
}

// extension list assumed for runtimes whose metadata predates the explicit
// signed extension list introduced with v11
var legacyDefaultExtensions = []scaletypes.SignedExtension{
	{Name: "CheckMortality"},
	{Name: "CheckNonce"},
	{Name: "ChargeTransactionPayment"},
}

// DecodeExtrinsics decodes a block body: a SCALE vector of length prefixed
// extrinsics, as returned in the "extrinsics" field of a signed block.
//
// Parameters:
//   - block: block height selecting the runtime era
//   - data: the encoded extrinsics vector
//
// Returns:
//   - []*Extrinsic: the decoded extrinsics in block order
//   - error: an error if any extrinsic fails to decode
func (d *Decoder) DecodeExtrinsics(block uint64, data []byte) ([]*Extrinsic, error) {
	entry, err := d.runtimeFor(block)
	if err != nil {
		return nil, err
	}

	reader := scaleutils.NewBufferReader(data)
	count, err := reader.ReadCompactLength()
	if err != nil {
		return nil, fmt.Errorf("cannot read extrinsic count: %v", err)
	}
	if count > reader.Len() {
		return nil, scaleutils.ErrUnexpectedEOF
	}

	extrinsics := make([]*Extrinsic, 0, count)
	for i := 0; i < count; i++ {
		length, err := reader.ReadCompactLength()
		if err != nil {
			return nil, fmt.Errorf("extrinsic %d: cannot read length: %v", i, err)
		}
		body, err := reader.ReadBytes(length)
		if err != nil {
			return nil, fmt.Errorf("extrinsic %d: %v", i, err)
		}
		extrinsic, err := d.decodeExtrinsicBody(entry, block, body)
		if err != nil {
			return nil, fmt.Errorf("extrinsic %d: %w", i, err)
		}
		extrinsics = append(extrinsics, extrinsic)
	}

	if reader.Len() > 0 {
		return nil, fmt.Errorf("%w (consumed: %v, size: %v)", scaleutils.ErrTrailingBytes, reader.Position(), len(data))
	}
	return extrinsics, nil
}

// DecodeExtrinsic decodes one length prefixed extrinsic, the format returned
// by author_pendingExtrinsics and stored in block bodies.
func (d *Decoder) DecodeExtrinsic(block uint64, data []byte) (*Extrinsic, error) {
	entry, err := d.runtimeFor(block)
	if err != nil {
		return nil, err
	}

	reader := scaleutils.NewBufferReader(data)
	length, err := reader.ReadCompactLength()
	if err != nil {
		return nil, fmt.Errorf("cannot read extrinsic length: %v", err)
	}
	body, err := reader.ReadBytes(length)
	if err != nil {
		return nil, err
	}
	if reader.Len() > 0 {
		return nil, fmt.Errorf("%w (consumed: %v, size: %v)", scaleutils.ErrTrailingBytes, reader.Position(), len(data))
	}
	return d.decodeExtrinsicBody(entry, block, body)
}

// DecodeUnwrappedExtrinsic decodes an extrinsic without a length prefix,
// starting directly at the version byte.
func (d *Decoder) DecodeUnwrappedExtrinsic(block uint64, data []byte) (*Extrinsic, error) {
	entry, err := d.runtimeFor(block)
	if err != nil {
		return nil, err
	}
	return d.decodeExtrinsicBody(entry, block, data)
}

func (d *Decoder) decodeExtrinsicBody(entry *runtimeEntry, block uint64, body []byte) (*Extrinsic, error) {
	reader := scaleutils.NewBufferReader(body)
	st := &decodeState{decoder: d, entry: entry, block: block, reader: reader}

	version, err := reader.ReadUint8()
	if err != nil {
		return nil, fmt.Errorf("cannot read version byte: %v", err)
	}
	signed := version&0x80 != 0
	version &= 0x7f
	if version != 4 {
		return nil, fmt.Errorf("unsupported extrinsic version %d", version)
	}

	extrinsic := &Extrinsic{Version: version}
	if signed {
		signature, err := st.decodeExtrinsicSignature()
		if err != nil {
			return nil, err
		}
		extrinsic.Signature = signature
	}

	call, err := st.decodeCall("call")
	if err != nil {
		return nil, err
	}
	extrinsic.Call = call

	if reader.Len() > 0 {
		return nil, fmt.Errorf("%w (consumed: %v, size: %v)", scaleutils.ErrTrailingBytes, reader.Position(), len(body))
	}
	return extrinsic, nil
}

func (st *decodeState) decodeExtrinsicSignature() (*ExtrinsicSignature, error) {
	addressID, err := st.addressTypeID()
	if err != nil {
		return nil, err
	}
	address, err := st.decodeType(addressID, "address")
	if err != nil {
		return nil, err
	}

	signatureID, err := st.signatureTypeID()
	if err != nil {
		return nil, err
	}
	signature, err := st.decodeType(signatureID, "signature")
	if err != nil {
		return nil, err
	}

	extensions, err := st.decodeSignedExtensions()
	if err != nil {
		return nil, err
	}

	return &ExtrinsicSignature{
		Address:    address,
		Signature:  signature,
		Extensions: extensions,
	}, nil
}

func (st *decodeState) addressTypeID() (scaletypes.TypeID, error) {
	meta := st.entry.meta
	if meta.Extrinsic != nil && meta.Extrinsic.AddressType != nil {
		return st.entry.compiler.compile(scaletypes.GlobalModule, meta.Extrinsic.AddressType, st.block)
	}
	id, err := st.compileFirstType("Address", "MultiAddress", "AccountId")
	if err != nil {
		return 0, fmt.Errorf("cannot resolve extrinsic address type: %w", err)
	}
	return id, nil
}

func (st *decodeState) signatureTypeID() (scaletypes.TypeID, error) {
	meta := st.entry.meta
	if meta.Extrinsic != nil && meta.Extrinsic.SignatureType != nil {
		return st.entry.compiler.compile(scaletypes.GlobalModule, meta.Extrinsic.SignatureType, st.block)
	}
	id, err := st.compileFirstType("ExtrinsicSignature", "MultiSignature", "Signature")
	if err != nil {
		return 0, fmt.Errorf("cannot resolve extrinsic signature type: %w", err)
	}
	return id, nil
}

// compileFirstType compiles the first of the given type expressions that
// resolves, trying them in order.
func (st *decodeState) compileFirstType(names ...string) (scaletypes.TypeID, error) {
	var lastErr error
	for _, name := range names {
		expr, err := scaletypes.ParseTypeExpr(name)
		if err != nil {
			lastErr = err
			continue
		}
		id, err := st.entry.compiler.compile(scaletypes.GlobalModule, expr, st.block)
		if err == nil {
			return id, nil
		}
		lastErr = err
	}
	return 0, lastErr
}

func (st *decodeState) decodeSignedExtensions() (*scaletypes.Value, error) {
	extensions := legacyDefaultExtensions
	if st.entry.meta.Extrinsic != nil {
		extensions = st.entry.meta.Extrinsic.SignedExtensions
	}

	fields := []scaletypes.ValueField(nil)
	for _, extension := range extensions {
		value, err := st.decodeSignedExtension(extension)
		if err != nil {
			return nil, err
		}
		if value == nil || value.Kind == scaletypes.ValueNull {
			continue
		}
		fields = append(fields, scaletypes.ValueField{Name: extension.Name, Value: value})
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return scaletypes.CompositeValue(fields...), nil
}

func (st *decodeState) decodeSignedExtension(extension scaletypes.SignedExtension) (*scaletypes.Value, error) {
	path := joinPath("extensions", extension.Name)

	// mortality decodes through the era rules, the registry's variant shape
	// of Era consumes the same bytes but loses period and phase
	if extension.Name == "CheckMortality" || extension.Name == "CheckEra" {
		return st.decodeEra(path)
	}

	if extension.Type != nil {
		id, err := st.entry.compiler.compile(scaletypes.GlobalModule, extension.Type, st.block)
		if err != nil {
			return nil, fmt.Errorf("signed extension %s: %w", extension.Name, err)
		}
		return st.decodeType(id, path)
	}

	switch extension.Name {
	case "CheckNonce":
		id, err := st.compileFirstType("Compact<Index>", "Compact<u32>")
		if err != nil {
			return nil, fmt.Errorf("signed extension %s: %w", extension.Name, err)
		}
		return st.decodeType(id, path)
	case "ChargeTransactionPayment":
		id, err := st.compileFirstType("Compact<Balance>", "Compact<u128>")
		if err != nil {
			return nil, fmt.Errorf("signed extension %s: %w", extension.Name, err)
		}
		return st.decodeType(id, path)
	}

	// unknown extension: use a dictionary definition when one exists,
	// otherwise assume it encodes nothing
	id, err := st.compileFirstType(extension.Name)
	if err != nil {
		if errors.Is(err, ErrUnknownType) {
			st.decoder.logger.Debug("no definition for signed extension, assuming empty",
				zap.String("extension", extension.Name))
			return nil, nil
		}
		return nil, fmt.Errorf("signed extension %s: %w", extension.Name, err)
	}
	return st.decodeType(id, path)
}
