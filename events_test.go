// Copyright (c) 2025 pk910
// SPDX-License-Identifier: Apache-2.0
// This file is part of the dynamic-scale library.

package dynscale_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/pk910/dynamic-scale/scaleutils"
)

func TestDecodeEvents(t *testing.T) {
	decoder := newTestDecoder(t)

	// three records: ExtrinsicSuccess during extrinsic 0, a Transfer during
	// extrinsic 1 and an ExtrinsicFailed with one topic during finalization
	payload := "0c" +
		("00" + "00000000" + "0000" + "00") +
		("00" + "01000000" + "0100" +
			strings.Repeat("aa", 32) + strings.Repeat("bb", 32) +
			"e8030000000000000000000000000000" + "00") +
		("01" + "0001" + "04" + strings.Repeat("cc", 32))

	events, err := decoder.DecodeEvents(0, fromHex(payload))
	if err != nil {
		t.Fatalf("failed to decode events: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}

	if got := events[0].Phase.String(); got != "ApplyExtrinsic(0)" {
		t.Errorf("got phase %s", got)
	}
	if got := events[0].Event.String(); got != "System.ExtrinsicSuccess" {
		t.Errorf("got event %s", got)
	}
	if got := events[0].Topics.String(); got != "[]" {
		t.Errorf("got topics %s", got)
	}

	if got := events[1].Phase.String(); got != "ApplyExtrinsic(1)" {
		t.Errorf("got phase %s", got)
	}
	wantTransfer := "Balances.Transfer{ from: 0x" + strings.Repeat("aa", 32) +
		", to: 0x" + strings.Repeat("bb", 32) + ", value: 1000 }"
	if got := events[1].Event.String(); got != wantTransfer {
		t.Errorf("got event %s, want %s", got, wantTransfer)
	}

	if got := events[2].Phase.String(); got != "Finalization" {
		t.Errorf("got phase %s", got)
	}
	if got := events[2].Event.String(); got != "System.ExtrinsicFailed" {
		t.Errorf("got event %s", got)
	}
	if got := events[2].Topics.String(); got != "[0x"+strings.Repeat("cc", 32)+"]" {
		t.Errorf("got topics %s", got)
	}
}

func TestDecodeEventsEmpty(t *testing.T) {
	decoder := newTestDecoder(t)

	events, err := decoder.DecodeEvents(0, fromHex("00"))
	if err != nil {
		t.Fatalf("failed to decode empty event list: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("got %d events, want 0", len(events))
	}
}

func TestDecodeEventsErrors(t *testing.T) {
	decoder := newTestDecoder(t)

	// phase discriminant 3 does not exist
	_, err := decoder.DecodeEvents(0, fromHex("04"+"03"))
	if !errors.Is(err, scaleutils.ErrInvalidEnumVariant) {
		t.Errorf("got error %v, want %v", err, scaleutils.ErrInvalidEnumVariant)
	}

	// no module carries event index 7
	_, err = decoder.DecodeEvents(0, fromHex("04"+"02"+"0700"+"00"))
	if err == nil || !strings.Contains(err.Error(), "no module with event index") {
		t.Errorf("got error %v, want unknown event index error", err)
	}

	// System has no event with index 5
	_, err = decoder.DecodeEvents(0, fromHex("04"+"02"+"0005"+"00"))
	if err == nil || !strings.Contains(err.Error(), "has no event with index") {
		t.Errorf("got error %v, want unknown event error", err)
	}

	// trailing bytes after the last record
	_, err = decoder.DecodeEvents(0, fromHex("04"+("00"+"00000000"+"0000"+"00")+"ff"))
	if !errors.Is(err, scaleutils.ErrTrailingBytes) {
		t.Errorf("got error %v, want %v", err, scaleutils.ErrTrailingBytes)
	}

	// claimed count exceeds the remaining input
	_, err = decoder.DecodeEvents(0, fromHex("1c"+"02"))
	if !errors.Is(err, scaleutils.ErrUnexpectedEOF) {
		t.Errorf("got error %v, want %v", err, scaleutils.ErrUnexpectedEOF)
	}
}
