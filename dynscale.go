// Package dynscale provides dynamic SCALE decoding for Substrate based chains.
// Unlike generated codecs bound to one runtime, dynscale reads the chain's own
// runtime metadata (v8 through v14) at runtime and decodes extrinsics, events,
// storage and free standing values against it, without any generated types.
//
// Copyright (c) 2025 by pk910. See LICENSE file for details.
package dynscale

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/pk910/dynamic-scale/metadata"
	"github.com/pk910/dynamic-scale/scaletypes"
	"github.com/pk910/dynamic-scale/scaleutils"
	"github.com/pk910/dynamic-scale/storage"
)

// Decoder is a dynamic SCALE decoder for one chain. It holds the chain's type
// dictionary, the runtime metadata of every known spec era and per era caches
// of resolved type definitions.
//
// The instance maintains caches for compiled types and chain property
// expressions to optimize performance. It's recommended to reuse the same
// Decoder instance across operations to benefit from caching.
//
// Key features:
//   - Metadata driven: decodes against runtime metadata v8 through v14
//   - Dictionary support: module scoped type definitions with block range
//     overrides, in the polkadot-js chain spec format
//   - Type caching: compiled type definitions are reused per runtime era
//
// Register type dictionaries before runtimes: compiled type caches are keyed
// against the override ranges known at registration time.
//
// Example usage:
//
//	decoder := dynscale.NewDecoder(nil)
//	decoder.ChainTypes().LoadJSON(chainSpecTypes)
//	decoder.RegisterRuntimeBlob(0, metadataBlob)
//
//	exts, err := decoder.DecodeExtrinsics(blockNum, blockBody)
type Decoder struct {
	chainTypes *scaletypes.ChainTypes
	logger     *zap.Logger

	properties    map[string]any
	propertyCache map[string]*cachedProperty
	propertyMutex sync.Mutex

	runtimeMutex sync.RWMutex
	runtimes     []*runtimeEntry
}

// runtimeEntry binds one registered runtime era: the metadata, the block the
// era starts at, the type compiler for the era and the storage key index.
type runtimeEntry struct {
	firstBlock uint64
	meta       *scaletypes.RuntimeMetadata
	compiler   *typeCompiler
	storageIdx map[string]storageRef
}

type storageRef struct {
	module *scaletypes.ModuleMetadata
	entry  *scaletypes.StorageEntryMetadata
}

// NewDecoder creates a new Decoder instance.
//
// The properties map contains chain properties referenced by dictionary type
// definitions, typically array length expressions like "[u8; MAX_NOMINATIONS]".
// It can be nil when the dictionary uses no property expressions.
//
// Parameters:
//   - properties: chain property values referenced by dictionary expressions
//   - opts: functional options (logger, pre-populated type dictionary)
//
// Returns:
//   - *Decoder: a new Decoder ready for runtime registration
func NewDecoder(properties map[string]any, opts ...DecoderOption) *Decoder {
	options := &DecoderOptions{}
	for _, opt := range opts {
		opt(options)
	}
	if options.Logger == nil {
		options.Logger = zap.NewNop()
	}
	if options.ChainTypes == nil {
		options.ChainTypes = scaletypes.NewChainTypes()
	}
	if properties == nil {
		properties = map[string]any{}
	}

	return &Decoder{
		chainTypes:    options.ChainTypes,
		logger:        options.Logger,
		properties:    properties,
		propertyCache: map[string]*cachedProperty{},
	}
}

// ChainTypes returns the decoder's type dictionary. Load chain spec type
// definitions into it before registering runtimes.
func (d *Decoder) ChainTypes() *scaletypes.ChainTypes {
	return d.chainTypes
}

// RegisterRuntime registers normalized runtime metadata for the spec era that
// starts at firstBlock. Eras extend until the next higher registered
// firstBlock. Registering the same firstBlock twice replaces the earlier
// entry.
func (d *Decoder) RegisterRuntime(firstBlock uint64, meta *scaletypes.RuntimeMetadata) error {
	if meta == nil {
		return fmt.Errorf("nil runtime metadata")
	}

	entry := &runtimeEntry{
		firstBlock: firstBlock,
		meta:       meta,
		compiler:   newTypeCompiler(d, meta),
		storageIdx: buildStorageIndex(meta),
	}

	d.runtimeMutex.Lock()
	defer d.runtimeMutex.Unlock()

	pos := sort.Search(len(d.runtimes), func(i int) bool {
		return d.runtimes[i].firstBlock >= firstBlock
	})
	if pos < len(d.runtimes) && d.runtimes[pos].firstBlock == firstBlock {
		d.runtimes[pos] = entry
	} else {
		d.runtimes = append(d.runtimes, nil)
		copy(d.runtimes[pos+1:], d.runtimes[pos:])
		d.runtimes[pos] = entry
	}

	d.logger.Debug("registered runtime metadata",
		zap.Uint64("firstBlock", firstBlock),
		zap.Uint32("version", meta.Version),
		zap.Int("modules", len(meta.Modules)))
	return nil
}

// RegisterRuntimeBlob parses a raw state_getMetadata blob and registers it
// for the spec era that starts at firstBlock.
func (d *Decoder) RegisterRuntimeBlob(firstBlock uint64, data []byte) error {
	meta, err := metadata.Parse(data)
	if err != nil {
		return err
	}
	return d.RegisterRuntime(firstBlock, meta)
}

// Runtime returns the metadata of the era that covers the given block.
func (d *Decoder) Runtime(block uint64) (*scaletypes.RuntimeMetadata, error) {
	entry, err := d.runtimeFor(block)
	if err != nil {
		return nil, err
	}
	return entry.meta, nil
}

func (d *Decoder) runtimeFor(block uint64) (*runtimeEntry, error) {
	d.runtimeMutex.RLock()
	defer d.runtimeMutex.RUnlock()

	pos := sort.Search(len(d.runtimes), func(i int) bool {
		return d.runtimes[i].firstBlock > block
	})
	if pos == 0 {
		return nil, fmt.Errorf("no runtime metadata registered for block %d", block)
	}
	return d.runtimes[pos-1], nil
}

// DecodeValue decodes data as one value of the named type, resolved in the
// global namespace of the dictionary. The type name accepts the full type
// expression surface ("Vec<(AccountId, Balance)>", "Compact<u32>", ...).
//
// The whole input must be consumed; leftover bytes are an error.
//
// Parameters:
//   - block: block height selecting the runtime era and dictionary overrides
//   - typeName: type expression to decode as
//   - data: SCALE encoded input
//
// Returns:
//   - *scaletypes.Value: the decoded value tree
//   - error: an error if resolution or decoding fails
func (d *Decoder) DecodeValue(block uint64, typeName string, data []byte) (*scaletypes.Value, error) {
	return d.DecodeModuleValue(block, scaletypes.GlobalModule, typeName, data)
}

// DecodeModuleValue decodes data as one value of the named type, resolving
// the name in the given module's namespace first and the global namespace
// second. The whole input must be consumed.
func (d *Decoder) DecodeModuleValue(block uint64, module, typeName string, data []byte) (*scaletypes.Value, error) {
	entry, err := d.runtimeFor(block)
	if err != nil {
		return nil, err
	}
	expr, err := scaletypes.ParseTypeExpr(typeName)
	if err != nil {
		return nil, err
	}
	id, err := entry.compiler.compile(module, expr, block)
	if err != nil {
		return nil, err
	}

	reader := scaleutils.NewBufferReader(data)
	value, err := d.decodeWithReader(entry, block, reader, id)
	if err != nil {
		return nil, err
	}
	if reader.Len() > 0 {
		return nil, fmt.Errorf("%w (consumed: %v, size: %v)", scaleutils.ErrTrailingBytes, reader.Position(), len(data))
	}
	return value, nil
}

func buildStorageIndex(meta *scaletypes.RuntimeMetadata) map[string]storageRef {
	index := map[string]storageRef{}
	for _, module := range meta.Modules {
		if module.Storage == nil {
			continue
		}
		for i := range module.Storage.Entries {
			entry := &module.Storage.Entries[i]
			prefix := storage.EntryPrefix(module.Storage.Prefix, entry.Name)
			index[string(prefix)] = storageRef{module: module, entry: entry}
		}
	}
	return index
}
