// Copyright (c) 2025 pk910
// SPDX-License-Identifier: Apache-2.0
// This file is part of the dynamic-scale library.

package spectests

import (
	"testing"

	require "github.com/stretchr/testify/require"
)

// TestStorageFixtures decodes the storage pair fixtures: entry lookup through
// the key prefix, map key recovery and value decoding.
func TestStorageFixtures(t *testing.T) {
	for _, test := range loadCases[storageCase](t, storageCasesData) {
		t.Run(test.Name, func(t *testing.T) {
			item, err := fixtureDecoder.DecodeStorage(test.Block, fromHex(t, test.Key), fromHex(t, test.Value))
			require.NoError(t, err)
			require.Equal(t, test.Module, item.Module)
			require.Equal(t, test.Entry, item.Entry)

			require.Len(t, item.Keys, len(test.Keys))
			for i, want := range test.Keys {
				require.Equal(t, want, item.Keys[i].String(), "key %d", i)
			}
			require.Equal(t, test.Decoded, item.Value.String())
		})
	}
}
