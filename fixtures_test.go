// Copyright (c) 2025 pk910
// SPDX-License-Identifier: Apache-2.0
// This file is part of the dynamic-scale library.

package dynscale_test

import (
	"encoding/hex"
	"strings"
	"testing"

	dynscale "github.com/pk910/dynamic-scale"
	"github.com/pk910/dynamic-scale/scaletypes"
)

// chain dictionary used across the decoder tests, in the polkadot-js chain
// spec layout: global types plus a module namespace with a block range
// override.
var testDictionary = []byte(`{
	"types": {
		"Balance": "u128",
		"Index": "u32",
		"AccountId": "[u8; 32]",
		"Address": "AccountId",
		"Signature": "[u8; 64]",
		"Hash": "[u8; 32]",
		"ParaId": [
			{"name": "id", "type": "u32"}
		],
		"AccountInfo": [
			{"name": "nonce", "type": "Index"},
			{"name": "free", "type": "Balance"}
		],
		"Judgement": {"_enum": ["Unknown", "FeePaid", "Reasonable"]},
		"RewardDestination": {"_enum": [
			{"name": "Staked"},
			{"name": "Stash"},
			{"name": "Account", "type": "AccountId"},
			{"name": "Legacy", "index": 9}
		]},
		"WithdrawReasons": {"_set": {
			"_bitLength": 8,
			"TransactionPayment": 1,
			"Transfer": 2,
			"Reserve": 4
		}},
		"Pair<A, B>": "(A, B)",
		"BoundedVec<T, S>": "Vec<T>",
		"TreeNode": [
			{"name": "label", "type": "u8"},
			{"name": "children", "type": "Vec<TreeNode>"}
		],
		"Loop": "(Loop, u8)",
		"SessionKeys": "[u8; ValidatorCount]",
		"DoubleBuf": "[u8; MaxLen * 2]"
	},
	"staking": {
		"types": {
			"Points": "u32"
		},
		"versions": [
			{"minmax": [0, 99], "types": {"Points": "u8"}}
		]
	}
}`)

// testRuntimeMetadata builds a small dictionary based runtime with the module
// surface the extrinsic, event and storage tests decode against.
func testRuntimeMetadata() *scaletypes.RuntimeMetadata {
	meta := scaletypes.NewRuntimeMetadata(11)
	meta.Extrinsic = &scaletypes.ExtrinsicMetadata{
		Version: 4,
		SignedExtensions: []scaletypes.SignedExtension{
			{Name: "CheckMortality"},
			{Name: "CheckNonce"},
			{Name: "ChargeTransactionPayment"},
		},
	}

	meta.AddModule(&scaletypes.ModuleMetadata{
		Name: "System",
		Calls: []scaletypes.CallMetadata{
			{Name: "remark", Index: 0, Args: []scaletypes.ArgMetadata{
				{Name: "remark", Type: mustParseExpr("Vec<u8>")},
			}},
		},
		Events: []scaletypes.EventMetadata{
			{Name: "ExtrinsicSuccess", Index: 0},
			{Name: "ExtrinsicFailed", Index: 1},
		},
	})

	meta.AddModule(&scaletypes.ModuleMetadata{
		Name:       "Balances",
		Index:      1,
		CallIndex:  1,
		EventIndex: 1,
		Storage: &scaletypes.StorageMetadata{
			Prefix: "Balances",
			Entries: []scaletypes.StorageEntryMetadata{
				{
					Name:     "TotalIssuance",
					Modifier: scaletypes.StorageModifierDefault,
					Value:    mustParseExpr("Balance"),
					Default:  fromHex("f4010000000000000000000000000000"),
				},
				{
					Name:     "Account",
					Modifier: scaletypes.StorageModifierOptional,
					Hashers:  []scaletypes.StorageHasher{scaletypes.HasherBlake2_128Concat},
					Keys:     []*scaletypes.TypeExpr{mustParseExpr("AccountId")},
					Value:    mustParseExpr("AccountInfo"),
				},
				{
					Name:     "FreeBalance",
					Modifier: scaletypes.StorageModifierDefault,
					Hashers:  []scaletypes.StorageHasher{scaletypes.HasherBlake2_256},
					Keys:     []*scaletypes.TypeExpr{mustParseExpr("AccountId")},
					Value:    mustParseExpr("Balance"),
					Default:  fromHex("00000000000000000000000000000000"),
				},
				{
					Name:     "Voters",
					Modifier: scaletypes.StorageModifierOptional,
					Hashers:  []scaletypes.StorageHasher{scaletypes.HasherTwox64Concat},
					Keys:     []*scaletypes.TypeExpr{mustParseExpr("AccountId")},
					Value:    mustParseExpr("u32"),
					Linked:   true,
				},
			},
		},
		Calls: []scaletypes.CallMetadata{
			{Name: "transfer", Index: 0, Args: []scaletypes.ArgMetadata{
				{Name: "dest", Type: mustParseExpr("Address")},
				{Name: "value", Type: mustParseExpr("Compact<Balance>")},
			}},
			{Name: "set_balance", Index: 1, Args: []scaletypes.ArgMetadata{
				{Name: "who", Type: mustParseExpr("Address")},
				{Name: "new_free", Type: mustParseExpr("Compact<Balance>")},
				{Name: "new_reserved", Type: mustParseExpr("Compact<Balance>")},
			}},
		},
		Events: []scaletypes.EventMetadata{
			{Name: "Transfer", Index: 0, Args: []scaletypes.ArgMetadata{
				{Name: "from", Type: mustParseExpr("AccountId")},
				{Name: "to", Type: mustParseExpr("AccountId")},
				{Name: "value", Type: mustParseExpr("Balance")},
			}},
			{Name: "Deposit", Index: 1, Args: []scaletypes.ArgMetadata{
				{Name: "who", Type: mustParseExpr("AccountId")},
				{Name: "value", Type: mustParseExpr("Balance")},
			}},
		},
	})

	meta.AddModule(&scaletypes.ModuleMetadata{
		Name:       "Staking",
		Index:      2,
		CallIndex:  2,
		EventIndex: 2,
		Calls: []scaletypes.CallMetadata{
			{Name: "bond", Index: 0, Args: []scaletypes.ArgMetadata{
				{Name: "value", Type: mustParseExpr("Compact<Balance>")},
				{Name: "payee", Type: mustParseExpr("RewardDestination")},
			}},
		},
	})

	return meta
}

func newTestDecoder(t *testing.T) *dynscale.Decoder {
	t.Helper()
	decoder := dynscale.NewDecoder(map[string]any{
		"ValidatorCount": 3,
		"MaxLen":         4,
	})
	if err := decoder.ChainTypes().LoadJSON(testDictionary); err != nil {
		t.Fatalf("failed to load test dictionary: %v", err)
	}
	if err := decoder.RegisterRuntime(0, testRuntimeMetadata()); err != nil {
		t.Fatalf("failed to register test runtime: %v", err)
	}
	return decoder
}

func mustParseExpr(expr string) *scaletypes.TypeExpr {
	parsed, err := scaletypes.ParseTypeExpr(expr)
	if err != nil {
		panic(err)
	}
	return parsed
}

func fromHex(hexStr string) []byte {
	data, err := hex.DecodeString(strings.ReplaceAll(strings.TrimPrefix(hexStr, "0x"), " ", ""))
	if err != nil {
		panic(err)
	}
	return data
}
