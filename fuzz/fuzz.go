// Copyright (c) 2025 pk910
// SPDX-License-Identifier: Apache-2.0
// This file is part of the dynamic-scale library.

// Package fuzz holds the fuzzing entry points for the dynamic-scale
// decoders. Every target asserts the same property: arbitrary input either
// decodes into a value tree or returns an error, it never panics and never
// allocates past the input size.
package fuzz

import (
	dynscale "github.com/pk910/dynamic-scale"
	"github.com/pk910/dynamic-scale/scaletypes"
)

// fuzzTypes are the type expressions the value target decodes against. The
// set covers all decoder branches: primitives, compacts, options, vectors,
// arrays, tuples, structs, enums, flag sets and eras.
var fuzzTypes = []string{
	"Balance",
	"Compact<Balance>",
	"Vec<AccountId>",
	"Option<Moment>",
	"RewardDestination",
	"WithdrawReasons",
	"Exposure",
	"Era",
	"(AccountId, Balance)",
	"Text",
	"DispatchInfo",
	"DispatchError",
	"Option<bool>",
	"Vec<(u32, bool)>",
	"[u16; 4]",
	"Compact<u32>",
}

const fixtureChainTypes = `
types:
  Address: "AccountId"
  AccountId: "[u8; 32]"
  Balance: "u128"
  EraIndex: "u32"
  Hash: "[u8; 32]"
  Moment: "u64"
  Signature: "[u8; 64]"
  Weight: "u32"
  DispatchClass:
    _enum:
      - Normal
      - Operational
      - Mandatory
  DispatchErrorModule:
    - name: index
      type: "u8"
    - name: error
      type: "u8"
  DispatchError:
    _enum:
      - Other
      - CannotLookup
      - BadOrigin
      - name: Module
        type: DispatchErrorModule
  DispatchInfo:
    - name: weight
      type: "Weight"
    - name: class
      type: "DispatchClass"
    - name: pays_fee
      type: "bool"
  IndividualExposure:
    - name: who
      type: "AccountId"
    - name: value
      type: "Compact<Balance>"
  Exposure:
    - name: total
      type: "Compact<Balance>"
    - name: own
      type: "Compact<Balance>"
    - name: others
      type: "Vec<IndividualExposure>"
  RewardDestination:
    _enum:
      - Staked
      - Stash
      - Controller
  WithdrawReasons:
    _set:
      _bitLength: 8
      TransactionPayment: 1
      Transfer: 2
      Reserve: 4
      Fee: 8
      Tip: 16
`

// NewFixtureDecoder builds the decoder shared by all fuzz targets: the
// dictionary above plus one runtime era with calls, events and the three
// storage entry shapes (plain, opaque map, reversible double map).
func NewFixtureDecoder() *dynscale.Decoder {
	decoder := dynscale.NewDecoder(nil)
	if err := decoder.ChainTypes().LoadYAML([]byte(fixtureChainTypes)); err != nil {
		panic("Failed to load fuzz chain types: " + err.Error())
	}
	if err := decoder.RegisterRuntime(0, buildFixtureRuntime()); err != nil {
		panic("Failed to register fuzz runtime: " + err.Error())
	}
	return decoder
}

func buildFixtureRuntime() *scaletypes.RuntimeMetadata {
	meta := scaletypes.NewRuntimeMetadata(10)

	meta.AddModule(&scaletypes.ModuleMetadata{
		Name: "System",
		Calls: []scaletypes.CallMetadata{
			{Name: "remark", Index: 0, Args: []scaletypes.ArgMetadata{
				{Name: "remark", Type: mustExpr("Vec<u8>")},
			}},
		},
		Events: []scaletypes.EventMetadata{
			{Name: "ExtrinsicSuccess", Index: 0},
			{Name: "ExtrinsicFailed", Index: 1},
		},
	})

	meta.AddModule(&scaletypes.ModuleMetadata{
		Name:      "Timestamp",
		Index:     1,
		CallIndex: 1,
		Calls: []scaletypes.CallMetadata{
			{Name: "set", Index: 0, Args: []scaletypes.ArgMetadata{
				{Name: "now", Type: mustExpr("Compact<Moment>")},
			}},
		},
	})

	meta.AddModule(&scaletypes.ModuleMetadata{
		Name:       "Balances",
		Index:      3,
		CallIndex:  2,
		EventIndex: 2,
		Storage: &scaletypes.StorageMetadata{
			Prefix: "Balances",
			Entries: []scaletypes.StorageEntryMetadata{
				{
					Name:     "TotalIssuance",
					Modifier: scaletypes.StorageModifierDefault,
					Value:    mustExpr("Balance"),
					Default:  make([]byte, 16),
				},
				{
					Name:     "FreeBalance",
					Modifier: scaletypes.StorageModifierDefault,
					Hashers:  []scaletypes.StorageHasher{scaletypes.HasherBlake2_256},
					Keys:     []*scaletypes.TypeExpr{mustExpr("AccountId")},
					Value:    mustExpr("Balance"),
					Default:  make([]byte, 16),
				},
			},
		},
		Calls: []scaletypes.CallMetadata{
			{Name: "transfer", Index: 0, Args: []scaletypes.ArgMetadata{
				{Name: "dest", Type: mustExpr("Address")},
				{Name: "value", Type: mustExpr("Compact<Balance>")},
			}},
		},
		Events: []scaletypes.EventMetadata{
			{Name: "NewAccount", Index: 0, Args: []scaletypes.ArgMetadata{
				{Type: mustExpr("AccountId")},
				{Type: mustExpr("Balance")},
			}},
			{Name: "Transfer", Index: 1, Args: []scaletypes.ArgMetadata{
				{Type: mustExpr("AccountId")},
				{Type: mustExpr("AccountId")},
				{Type: mustExpr("Balance")},
				{Type: mustExpr("Balance")},
			}},
		},
	})

	meta.AddModule(&scaletypes.ModuleMetadata{
		Name:       "Staking",
		Index:      4,
		CallIndex:  3,
		EventIndex: 3,
		Storage: &scaletypes.StorageMetadata{
			Prefix: "Staking",
			Entries: []scaletypes.StorageEntryMetadata{
				{
					Name:     "ErasStakers",
					Modifier: scaletypes.StorageModifierDefault,
					Hashers:  []scaletypes.StorageHasher{scaletypes.HasherTwox64Concat, scaletypes.HasherTwox64Concat},
					Keys:     []*scaletypes.TypeExpr{mustExpr("EraIndex"), mustExpr("AccountId")},
					Value:    mustExpr("Exposure"),
					Default:  []byte{0, 0, 0},
				},
			},
		},
		Calls: []scaletypes.CallMetadata{
			{Name: "unbond", Index: 0, Args: []scaletypes.ArgMetadata{
				{Name: "value", Type: mustExpr("Compact<Balance>")},
			}},
		},
		Events: []scaletypes.EventMetadata{
			{Name: "Reward", Index: 0, Args: []scaletypes.ArgMetadata{
				{Type: mustExpr("Balance")},
			}},
		},
	})

	return meta
}

func mustExpr(src string) *scaletypes.TypeExpr {
	expr, err := scaletypes.ParseTypeExpr(src)
	if err != nil {
		panic("Failed to parse type expression: " + err.Error())
	}
	return expr
}
