package spectests

import (
	_ "embed"

	dynscale "github.com/pk910/dynamic-scale"
	"github.com/pk910/dynamic-scale/scaletypes"
)

// fixtureDecoder decodes all scenario fixtures. It carries two runtime eras:
// an early one without extrinsic metadata starting at block 0 and a later one
// with an explicit signed extension list starting at block 1500000.
var fixtureDecoder *dynscale.Decoder

//go:embed fixtures/chain-types.yaml
var chainTypesData []byte

func initializeFixtureDecoder() {
	decoder := dynscale.NewDecoder(nil)
	if err := decoder.ChainTypes().LoadYAML(chainTypesData); err != nil {
		panic("Failed to load fixture chain types: " + err.Error())
	}
	if err := decoder.RegisterRuntime(0, earlyRuntime()); err != nil {
		panic("Failed to register early fixture runtime: " + err.Error())
	}
	if err := decoder.RegisterRuntime(1_500_000, currentRuntime()); err != nil {
		panic("Failed to register current fixture runtime: " + err.Error())
	}
	fixtureDecoder = decoder
}

func init() {
	initializeFixtureDecoder()
}

// earlyRuntime models a first generation runtime: no extrinsic metadata (the
// signed extension set is implied), positional index bytes that count only
// call respectively event carrying modules, and the deprecated linked map
// storage format.
func earlyRuntime() *scaletypes.RuntimeMetadata {
	meta := scaletypes.NewRuntimeMetadata(10)

	meta.AddModule(&scaletypes.ModuleMetadata{
		Name: "System",
		Calls: []scaletypes.CallMetadata{
			{Name: "remark", Index: 0, Args: []scaletypes.ArgMetadata{
				{Name: "remark", Type: expr("Vec<u8>")},
			}},
			{Name: "set_heap_pages", Index: 1, Args: []scaletypes.ArgMetadata{
				{Name: "pages", Type: expr("u64")},
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
				{Name: "now", Type: expr("Compact<Moment>")},
			}},
		},
	})

	meta.AddModule(&scaletypes.ModuleMetadata{
		Name:       "Indices",
		Index:      2,
		EventIndex: 1,
		Events: []scaletypes.EventMetadata{
			{Name: "NewAccountIndex", Index: 0, Args: []scaletypes.ArgMetadata{
				{Type: expr("AccountId")},
				{Type: expr("AccountIndex")},
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
					Value:    expr("Balance"),
					Default:  make([]byte, 16),
				},
				{
					Name:     "FreeBalance",
					Modifier: scaletypes.StorageModifierDefault,
					Hashers:  []scaletypes.StorageHasher{scaletypes.HasherBlake2_256},
					Keys:     []*scaletypes.TypeExpr{expr("AccountId")},
					Value:    expr("Balance"),
					Default:  make([]byte, 16),
				},
			},
		},
		Calls: []scaletypes.CallMetadata{
			{Name: "transfer", Index: 0, Args: []scaletypes.ArgMetadata{
				{Name: "dest", Type: expr("Address")},
				{Name: "value", Type: expr("Compact<Balance>")},
			}},
			{Name: "set_balance", Index: 1, Args: []scaletypes.ArgMetadata{
				{Name: "who", Type: expr("Address")},
				{Name: "new_free", Type: expr("Compact<Balance>")},
				{Name: "new_reserved", Type: expr("Compact<Balance>")},
			}},
		},
		Events: []scaletypes.EventMetadata{
			{Name: "NewAccount", Index: 0, Args: []scaletypes.ArgMetadata{
				{Type: expr("AccountId")},
				{Type: expr("Balance")},
			}},
			{Name: "Transfer", Index: 1, Args: []scaletypes.ArgMetadata{
				{Type: expr("AccountId")},
				{Type: expr("AccountId")},
				{Type: expr("Balance")},
				{Type: expr("Balance")},
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
					Name:     "Validators",
					Modifier: scaletypes.StorageModifierOptional,
					Hashers:  []scaletypes.StorageHasher{scaletypes.HasherBlake2_256},
					Keys:     []*scaletypes.TypeExpr{expr("AccountId")},
					Value:    expr("ValidatorPrefs"),
					Linked:   true,
				},
			},
		},
		Calls: []scaletypes.CallMetadata{
			{Name: "bond", Index: 0, Args: []scaletypes.ArgMetadata{
				{Name: "controller", Type: expr("Address")},
				{Name: "value", Type: expr("Compact<Balance>")},
				{Name: "payee", Type: expr("RewardDestination")},
			}},
			{Name: "unbond", Index: 1, Args: []scaletypes.ArgMetadata{
				{Name: "value", Type: expr("Compact<Balance>")},
			}},
		},
		Events: []scaletypes.EventMetadata{
			{Name: "Reward", Index: 0, Args: []scaletypes.ArgMetadata{
				{Type: expr("Balance")},
			}},
			{Name: "Slash", Index: 1, Args: []scaletypes.ArgMetadata{
				{Type: expr("AccountId")},
				{Type: expr("Balance")},
			}},
		},
	})

	return meta
}

// currentRuntime models a later era of the same chain: an explicit signed
// extension list, richer event payloads, sparse event indexes and double map
// storage.
func currentRuntime() *scaletypes.RuntimeMetadata {
	meta := scaletypes.NewRuntimeMetadata(11)
	meta.Extrinsic = &scaletypes.ExtrinsicMetadata{
		Version: 4,
		SignedExtensions: []scaletypes.SignedExtension{
			{Name: "CheckVersion"},
			{Name: "CheckGenesis"},
			{Name: "CheckEra"},
			{Name: "CheckNonce"},
			{Name: "CheckWeight"},
			{Name: "ChargeTransactionPayment"},
		},
	}

	meta.AddModule(&scaletypes.ModuleMetadata{
		Name: "System",
		Calls: []scaletypes.CallMetadata{
			{Name: "fill_block", Index: 0, Args: []scaletypes.ArgMetadata{
				{Name: "ratio", Type: expr("Perbill")},
			}},
			{Name: "remark", Index: 1, Args: []scaletypes.ArgMetadata{
				{Name: "remark", Type: expr("Vec<u8>")},
			}},
		},
		Events: []scaletypes.EventMetadata{
			{Name: "ExtrinsicSuccess", Index: 0, Args: []scaletypes.ArgMetadata{
				{Type: expr("DispatchInfo")},
			}},
			{Name: "ExtrinsicFailed", Index: 1, Args: []scaletypes.ArgMetadata{
				{Type: expr("DispatchError")},
				{Type: expr("DispatchInfo")},
			}},
			{Name: "CodeUpdated", Index: 2},
		},
	})

	meta.AddModule(&scaletypes.ModuleMetadata{
		Name:  "Babe",
		Index: 1,
	})

	meta.AddModule(&scaletypes.ModuleMetadata{
		Name:      "Timestamp",
		Index:     2,
		CallIndex: 1,
		Calls: []scaletypes.CallMetadata{
			{Name: "set", Index: 0, Args: []scaletypes.ArgMetadata{
				{Name: "now", Type: expr("Compact<Moment>")},
			}},
		},
	})

	meta.AddModule(&scaletypes.ModuleMetadata{
		Name:  "Indices",
		Index: 3,
	})

	meta.AddModule(&scaletypes.ModuleMetadata{
		Name:       "Balances",
		Index:      4,
		CallIndex:  2,
		EventIndex: 1,
		Storage: &scaletypes.StorageMetadata{
			Prefix: "Balances",
			Entries: []scaletypes.StorageEntryMetadata{
				{
					Name:     "TotalIssuance",
					Modifier: scaletypes.StorageModifierDefault,
					Value:    expr("Balance"),
					Default:  make([]byte, 16),
				},
				{
					Name:     "FreeBalance",
					Modifier: scaletypes.StorageModifierDefault,
					Hashers:  []scaletypes.StorageHasher{scaletypes.HasherBlake2_256},
					Keys:     []*scaletypes.TypeExpr{expr("AccountId")},
					Value:    expr("Balance"),
					Default:  make([]byte, 16),
				},
			},
		},
		Calls: []scaletypes.CallMetadata{
			{Name: "transfer", Index: 0, Args: []scaletypes.ArgMetadata{
				{Name: "dest", Type: expr("Address")},
				{Name: "value", Type: expr("Compact<Balance>")},
			}},
			{Name: "set_balance", Index: 1, Args: []scaletypes.ArgMetadata{
				{Name: "who", Type: expr("Address")},
				{Name: "new_free", Type: expr("Compact<Balance>")},
				{Name: "new_reserved", Type: expr("Compact<Balance>")},
			}},
			{Name: "force_transfer", Index: 2, Args: []scaletypes.ArgMetadata{
				{Name: "source", Type: expr("Address")},
				{Name: "dest", Type: expr("Address")},
				{Name: "value", Type: expr("Compact<Balance>")},
			}},
			{Name: "transfer_keep_alive", Index: 3, Args: []scaletypes.ArgMetadata{
				{Name: "dest", Type: expr("Address")},
				{Name: "value", Type: expr("Compact<Balance>")},
			}},
		},
		Events: []scaletypes.EventMetadata{
			{Name: "Endowed", Index: 0, Args: []scaletypes.ArgMetadata{
				{Type: expr("AccountId")},
				{Type: expr("Balance")},
			}},
			{Name: "DustLost", Index: 1, Args: []scaletypes.ArgMetadata{
				{Type: expr("AccountId")},
				{Type: expr("Balance")},
			}},
			{Name: "Transfer", Index: 2, Args: []scaletypes.ArgMetadata{
				{Type: expr("AccountId")},
				{Type: expr("AccountId")},
				{Type: expr("Balance")},
			}},
			{Name: "Deposit", Index: 4, Args: []scaletypes.ArgMetadata{
				{Type: expr("AccountId")},
				{Type: expr("Balance")},
			}},
		},
	})

	meta.AddModule(&scaletypes.ModuleMetadata{
		Name:      "Authorship",
		Index:     5,
		CallIndex: 3,
		Calls: []scaletypes.CallMetadata{
			{Name: "set_uncles", Index: 0, Args: []scaletypes.ArgMetadata{
				{Name: "new_uncles", Type: expr("Vec<Hash>")},
			}},
		},
	})

	meta.AddModule(&scaletypes.ModuleMetadata{
		Name:       "Staking",
		Index:      6,
		CallIndex:  4,
		EventIndex: 2,
		Storage: &scaletypes.StorageMetadata{
			Prefix: "Staking",
			Entries: []scaletypes.StorageEntryMetadata{
				{
					Name:     "CurrentEra",
					Modifier: scaletypes.StorageModifierOptional,
					Value:    expr("EraIndex"),
				},
				{
					Name:     "ErasStakers",
					Modifier: scaletypes.StorageModifierOptional,
					Hashers: []scaletypes.StorageHasher{
						scaletypes.HasherTwox64Concat,
						scaletypes.HasherTwox64Concat,
					},
					Keys:  []*scaletypes.TypeExpr{expr("EraIndex"), expr("AccountId")},
					Value: expr("Exposure"),
				},
			},
		},
		Calls: []scaletypes.CallMetadata{
			{Name: "bond", Index: 0, Args: []scaletypes.ArgMetadata{
				{Name: "controller", Type: expr("Address")},
				{Name: "value", Type: expr("Compact<Balance>")},
				{Name: "payee", Type: expr("RewardDestination")},
			}},
			{Name: "bond_extra", Index: 1, Args: []scaletypes.ArgMetadata{
				{Name: "max_additional", Type: expr("Compact<Balance>")},
			}},
			{Name: "unbond", Index: 2, Args: []scaletypes.ArgMetadata{
				{Name: "value", Type: expr("Compact<Balance>")},
			}},
		},
		Events: []scaletypes.EventMetadata{
			{Name: "Reward", Index: 0, Args: []scaletypes.ArgMetadata{
				{Type: expr("AccountId")},
				{Type: expr("Balance")},
			}},
			{Name: "Slash", Index: 1, Args: []scaletypes.ArgMetadata{
				{Type: expr("AccountId")},
				{Type: expr("Balance")},
			}},
		},
	})

	meta.AddModule(&scaletypes.ModuleMetadata{
		Name:       "Utility",
		Index:      7,
		CallIndex:  5,
		EventIndex: 3,
		Calls: []scaletypes.CallMetadata{
			{Name: "batch", Index: 0, Args: []scaletypes.ArgMetadata{
				{Name: "calls", Type: expr("Vec<Call>")},
			}},
		},
		Events: []scaletypes.EventMetadata{
			{Name: "BatchInterrupted", Index: 0, Args: []scaletypes.ArgMetadata{
				{Type: expr("u32")},
				{Type: expr("DispatchError")},
			}},
			{Name: "BatchCompleted", Index: 1},
		},
	})

	return meta
}

func expr(src string) *scaletypes.TypeExpr {
	parsed, err := scaletypes.ParseTypeExpr(src)
	if err != nil {
		panic(err)
	}
	return parsed
}
