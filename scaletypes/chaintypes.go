// Copyright (c) 2025 pk910
// SPDX-License-Identifier: Apache-2.0
// This file is part of the dynamic-scale library.

package scaletypes

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// GlobalModule is the namespace that holds chain wide type definitions.
// Lookups that miss their module namespace fall back to this one.
const GlobalModule = "runtime"

// ChainDefKind identifies the shape of a dictionary type definition.
type ChainDefKind uint8

const (
	ChainDefExpr   ChainDefKind = iota // alias for a type expression
	ChainDefStruct                     // named field composite
	ChainDefEnum                       // tagged variants
	ChainDefSet                        // bitmask flag set
)

// ChainTypeDef is one parsed dictionary definition. Exactly one of the shape
// specific field groups is populated, indicated by Kind. Params lists generic
// parameter names declared by the dictionary key (as in "MultiAddress<AccountId>");
// expressions inside the definition referencing a parameter name are bound
// positionally at resolution time.
type ChainTypeDef struct {
	Kind     ChainDefKind
	Params   []string
	Expr     *TypeExpr
	Fields   []ChainField
	Variants []ChainVariant
	Flags    []FlagDef
	FlagBits uint32
}

// ChainField is one field of a struct or variant definition. Either Expr or
// Inline is set; Inline carries a nested anonymous definition.
type ChainField struct {
	Name   string
	Expr   *TypeExpr
	Inline *ChainTypeDef
}

// ChainVariant is one variant of an enum definition. Index is the wire
// discriminant, which may be sparse.
type ChainVariant struct {
	Name   string
	Index  uint8
	Fields []ChainField
}

type typeOverride struct {
	first uint64
	last  uint64 // inclusive; math.MaxUint64 for open ended ranges
	types map[string]*ChainTypeDef
}

type moduleTypes struct {
	types     map[string]*ChainTypeDef
	overrides []typeOverride
}

// ChainTypes is the type dictionary for one chain: per module namespaces of
// type definitions plus block range scoped overrides. Module namespaces are
// case insensitive; type names are case sensitive.
//
// The dictionary accepts the common chain spec layouts:
//
//	{"types": {"Balance": "u128"}}                          // flat global types
//	{"balances": {"types": {"VestingSchedule": {...}}}}     // per module types
//	{"runtime": {"versions": [{"minmax": [0, 1019], "types": {...}}]}}
//
// Definitions follow the usual dictionary conventions: plain strings are type
// expressions, objects are structs, "_enum" declares variants, "_set" declares
// bitmask flags. Object keys have no reliable order once parsed, so map form
// structs and enums are normalized by sorting field names; use the list forms
// when declaration order must be preserved.
type ChainTypes struct {
	modules map[string]*moduleTypes
}

func NewChainTypes() *ChainTypes {
	return &ChainTypes{
		modules: map[string]*moduleTypes{},
	}
}

// LoadJSON merges type definitions from a JSON document into the dictionary.
func (t *ChainTypes) LoadJSON(data []byte) error {
	raw := map[string]any{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("cannot parse type dictionary json: %v", err)
	}
	return t.ParseRaw(raw)
}

// LoadYAML merges type definitions from a YAML document into the dictionary.
func (t *ChainTypes) LoadYAML(data []byte) error {
	raw := map[string]any{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("cannot parse type dictionary yaml: %v", err)
	}
	return t.ParseRaw(raw)
}

// ParseRaw merges an already unmarshalled document into the dictionary.
// Definitions merged later win over earlier ones with the same name.
func (t *ChainTypes) ParseRaw(raw map[string]any) error {
	for _, key := range sortedKeys(raw) {
		value := raw[key]
		valueMap, ok := value.(map[string]any)
		if !ok {
			return fmt.Errorf("module %q: expected object, got %T", key, value)
		}

		// a top level "types" object holds flat global definitions
		if strings.EqualFold(key, "types") {
			if err := t.parseTypesMap(GlobalModule, valueMap); err != nil {
				return err
			}
			continue
		}

		module := strings.ToLower(key)
		if rawTypes, ok := valueMap["types"]; ok || valueMap["versions"] != nil {
			if rawTypes != nil {
				typesMap, ok := rawTypes.(map[string]any)
				if !ok {
					return fmt.Errorf("module %q: expected types object, got %T", key, rawTypes)
				}
				if err := t.parseTypesMap(module, typesMap); err != nil {
					return err
				}
			}
			if rawVersions, ok := valueMap["versions"]; ok {
				if err := t.parseVersions(module, rawVersions); err != nil {
					return err
				}
			}
			continue
		}

		// no wrapper keys, the object itself is the types map
		if err := t.parseTypesMap(module, valueMap); err != nil {
			return err
		}
	}
	return nil
}

// AddType registers a single definition in a module namespace, replacing any
// earlier definition with the same name.
func (t *ChainTypes) AddType(module, name string, def *ChainTypeDef) {
	t.ensureModule(module).types[name] = def
}

// AddOverride registers definitions that only apply to blocks in the
// inclusive range [first, last]. Use math.MaxUint64 as last for an open
// ended range. Later overrides win over earlier ones covering the same block.
func (t *ChainTypes) AddOverride(module string, first, last uint64, types map[string]*ChainTypeDef) {
	mt := t.ensureModule(module)
	mt.overrides = append(mt.overrides, typeOverride{first: first, last: last, types: types})
}

// Lookup resolves a type name at a block height: overrides and definitions of
// the module namespace first, then the global namespace. Returns nil when the
// dictionary has no matching definition.
func (t *ChainTypes) Lookup(module, name string, block uint64) *ChainTypeDef {
	if !strings.EqualFold(module, GlobalModule) {
		if def := t.lookupIn(strings.ToLower(module), name, block); def != nil {
			return def
		}
	}
	return t.lookupIn(GlobalModule, name, block)
}

func (t *ChainTypes) lookupIn(module, name string, block uint64) *ChainTypeDef {
	mt := t.modules[module]
	if mt == nil {
		return nil
	}
	for i := len(mt.overrides) - 1; i >= 0; i-- {
		override := &mt.overrides[i]
		if block < override.first || block > override.last {
			continue
		}
		if def, ok := override.types[name]; ok {
			return def
		}
	}
	return mt.types[name]
}

// OverrideBoundaries returns the sorted distinct block heights at which any
// override range begins or ends. Lookup results can only change at these
// heights, which lets callers cache resolutions per interval.
func (t *ChainTypes) OverrideBoundaries() []uint64 {
	seen := map[uint64]bool{}
	for _, mt := range t.modules {
		for _, override := range mt.overrides {
			seen[override.first] = true
			if override.last != math.MaxUint64 {
				seen[override.last+1] = true
			}
		}
	}
	bounds := make([]uint64, 0, len(seen))
	for block := range seen {
		bounds = append(bounds, block)
	}
	sort.Slice(bounds, func(i, j int) bool { return bounds[i] < bounds[j] })
	return bounds
}

func (t *ChainTypes) ensureModule(module string) *moduleTypes {
	module = strings.ToLower(module)
	mt := t.modules[module]
	if mt == nil {
		mt = &moduleTypes{types: map[string]*ChainTypeDef{}}
		t.modules[module] = mt
	}
	return mt
}

func (t *ChainTypes) parseTypesMap(module string, raw map[string]any) error {
	mt := t.ensureModule(module)
	types, err := parseDefMap(raw)
	if err != nil {
		return fmt.Errorf("module %q: %v", module, err)
	}
	for name, def := range types {
		mt.types[name] = def
	}
	return nil
}

func (t *ChainTypes) parseVersions(module string, raw any) error {
	versions, ok := raw.([]any)
	if !ok {
		return fmt.Errorf("module %q: expected versions list, got %T", module, raw)
	}
	for idx, rawVersion := range versions {
		versionMap, ok := rawVersion.(map[string]any)
		if !ok {
			return fmt.Errorf("module %q: version %d: expected object, got %T", module, idx, rawVersion)
		}
		first, last, err := parseVersionRange(versionMap)
		if err != nil {
			return fmt.Errorf("module %q: version %d: %v", module, idx, err)
		}
		rawTypes, ok := versionMap["types"].(map[string]any)
		if !ok {
			return fmt.Errorf("module %q: version %d: missing types object", module, idx)
		}
		types, err := parseDefMap(rawTypes)
		if err != nil {
			return fmt.Errorf("module %q: version %d: %v", module, idx, err)
		}
		t.AddOverride(module, first, last, types)
	}
	return nil
}

func parseVersionRange(raw map[string]any) (first uint64, last uint64, err error) {
	if rawSince, ok := raw["since"]; ok {
		since, ok := rawUint(rawSince)
		if !ok {
			return 0, 0, fmt.Errorf("invalid since value %v", rawSince)
		}
		return since, math.MaxUint64, nil
	}
	rawRange, ok := raw["minmax"].([]any)
	if !ok || len(rawRange) != 2 {
		return 0, 0, fmt.Errorf("missing minmax range")
	}
	first, ok = rawUint(rawRange[0])
	if !ok {
		return 0, 0, fmt.Errorf("invalid range start %v", rawRange[0])
	}
	if rawRange[1] == nil {
		return first, math.MaxUint64, nil
	}
	last, ok = rawUint(rawRange[1])
	if !ok {
		return 0, 0, fmt.Errorf("invalid range end %v", rawRange[1])
	}
	if last < first {
		return 0, 0, fmt.Errorf("invalid range [%d, %d]", first, last)
	}
	return first, last, nil
}

func parseDefMap(raw map[string]any) (map[string]*ChainTypeDef, error) {
	types := map[string]*ChainTypeDef{}
	for _, key := range sortedKeys(raw) {
		name, params, err := parseTypeKey(key)
		if err != nil {
			return nil, err
		}
		def, err := parseChainDef(raw[key])
		if err != nil {
			return nil, fmt.Errorf("type %q: %v", key, err)
		}
		def.Params = params
		types[name] = def
	}
	return types, nil
}

// parseTypeKey splits a dictionary key into the type name and its declared
// generic parameter names ("MultiAddress<AccountId>" yields "MultiAddress"
// and ["AccountId"]).
func parseTypeKey(key string) (string, []string, error) {
	key = strings.TrimSpace(key)
	open := strings.IndexByte(key, '<')
	if open < 0 {
		return key, nil, nil
	}
	if !strings.HasSuffix(key, ">") {
		return "", nil, fmt.Errorf("malformed type key %q", key)
	}
	name := strings.TrimSpace(key[:open])
	params := []string{}
	for _, param := range splitTopLevel(key[open+1:len(key)-1], ",") {
		param = strings.TrimSpace(param)
		if param == "" {
			return "", nil, fmt.Errorf("malformed type key %q", key)
		}
		params = append(params, param)
	}
	return name, params, nil
}

func parseChainDef(raw any) (*ChainTypeDef, error) {
	switch def := raw.(type) {
	case string:
		expr, err := ParseTypeExpr(def)
		if err != nil {
			return nil, err
		}
		return &ChainTypeDef{Kind: ChainDefExpr, Expr: expr}, nil
	case map[string]any:
		if rawEnum, ok := def["_enum"]; ok {
			return parseEnumDef(rawEnum)
		}
		if rawSet, ok := def["_set"]; ok {
			return parseSetDef(rawSet)
		}
		fields, err := parseStructFields(def, sortedKeys(def))
		if err != nil {
			return nil, err
		}
		return &ChainTypeDef{Kind: ChainDefStruct, Fields: fields}, nil
	case []any:
		return parseListDef(def)
	default:
		return nil, fmt.Errorf("unsupported definition of type %T", raw)
	}
}

// parseListDef handles list form definitions: a list of strings is a tuple,
// a list of {"name", "type"} objects is an order preserving struct.
func parseListDef(raw []any) (*ChainTypeDef, error) {
	if len(raw) == 0 {
		return &ChainTypeDef{Kind: ChainDefExpr, Expr: NullExpr()}, nil
	}
	if _, ok := raw[0].(string); ok {
		elems := make([]*TypeExpr, 0, len(raw))
		for _, rawElem := range raw {
			elem, ok := rawElem.(string)
			if !ok {
				return nil, fmt.Errorf("mixed tuple element of type %T", rawElem)
			}
			expr, err := ParseTypeExpr(elem)
			if err != nil {
				return nil, err
			}
			elems = append(elems, expr)
		}
		return &ChainTypeDef{Kind: ChainDefExpr, Expr: TupleExpr(elems...)}, nil
	}

	fields := make([]ChainField, 0, len(raw))
	for idx, rawField := range raw {
		fieldMap, ok := rawField.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("field %d: expected object, got %T", idx, rawField)
		}
		name, ok := fieldMap["name"].(string)
		if !ok {
			return nil, fmt.Errorf("field %d: missing name", idx)
		}
		field := ChainField{Name: name}
		if rawType, ok := fieldMap["type"]; ok {
			expr, inline, err := parseFieldValue(rawType)
			if err != nil {
				return nil, fmt.Errorf("field %q: %v", name, err)
			}
			field.Expr, field.Inline = expr, inline
		}
		fields = append(fields, field)
	}
	return &ChainTypeDef{Kind: ChainDefStruct, Fields: fields}, nil
}

func parseStructFields(raw map[string]any, order []string) ([]ChainField, error) {
	fields := make([]ChainField, 0, len(raw))
	for _, name := range order {
		if strings.HasPrefix(name, "_") {
			// compatibility keys like _alias or _fallback carry no type info
			continue
		}
		expr, inline, err := parseFieldValue(raw[name])
		if err != nil {
			return nil, fmt.Errorf("field %q: %v", name, err)
		}
		fields = append(fields, ChainField{Name: name, Expr: expr, Inline: inline})
	}
	return fields, nil
}

func parseFieldValue(raw any) (*TypeExpr, *ChainTypeDef, error) {
	if raw == nil {
		return NullExpr(), nil, nil
	}
	def, err := parseChainDef(raw)
	if err != nil {
		return nil, nil, err
	}
	if def.Kind == ChainDefExpr {
		return def.Expr, nil, nil
	}
	return nil, def, nil
}

func parseEnumDef(raw any) (*ChainTypeDef, error) {
	switch rawEnum := raw.(type) {
	case []any:
		return parseEnumList(rawEnum)
	case map[string]any:
		return parseEnumMap(rawEnum)
	default:
		return nil, fmt.Errorf("unsupported _enum definition of type %T", raw)
	}
}

// parseEnumList handles the order preserving enum forms: a list of variant
// names, or a list of {"name", "type"/"fields", "index"} objects.
func parseEnumList(raw []any) (*ChainTypeDef, error) {
	if len(raw) > 256 {
		return nil, fmt.Errorf("enum with %d variants exceeds discriminant space", len(raw))
	}
	variants := make([]ChainVariant, 0, len(raw))
	nextIndex := 0
	for idx, rawVariant := range raw {
		switch variant := rawVariant.(type) {
		case string:
			variants = append(variants, ChainVariant{Name: variant, Index: uint8(nextIndex)})
			nextIndex++
		case map[string]any:
			name, ok := variant["name"].(string)
			if !ok {
				return nil, fmt.Errorf("variant %d: missing name", idx)
			}
			if rawIndex, ok := variant["index"]; ok {
				index, ok := rawUint(rawIndex)
				if !ok || index > 255 {
					return nil, fmt.Errorf("variant %q: invalid index %v", name, rawIndex)
				}
				nextIndex = int(index)
			}
			if nextIndex > 255 {
				return nil, fmt.Errorf("variant %q: discriminant %d out of range", name, nextIndex)
			}
			fields, err := parseVariantFields(variant)
			if err != nil {
				return nil, fmt.Errorf("variant %q: %v", name, err)
			}
			variants = append(variants, ChainVariant{Name: name, Index: uint8(nextIndex), Fields: fields})
			nextIndex++
		default:
			return nil, fmt.Errorf("variant %d: unsupported definition of type %T", idx, rawVariant)
		}
	}
	return &ChainTypeDef{Kind: ChainDefEnum, Variants: variants}, nil
}

func parseVariantFields(raw map[string]any) ([]ChainField, error) {
	if rawFields, ok := raw["fields"].(map[string]any); ok {
		return parseStructFields(rawFields, sortedKeys(rawFields))
	}
	rawType, ok := raw["type"]
	if !ok || rawType == nil {
		return nil, nil
	}
	expr, inline, err := parseFieldValue(rawType)
	if err != nil {
		return nil, err
	}
	return []ChainField{{Expr: expr, Inline: inline}}, nil
}

// parseEnumMap handles the object enum forms. All numeric values declare
// sparse unit variants with explicit discriminants; otherwise values declare
// the variant payload (null for none, a type expression, or a field object).
// Object keys are sorted for determinism, so typed map form enums are only
// suitable where the discriminant order matches the sorted name order.
func parseEnumMap(raw map[string]any) (*ChainTypeDef, error) {
	if len(raw) > 256 {
		return nil, fmt.Errorf("enum with %d variants exceeds discriminant space", len(raw))
	}
	names := sortedKeys(raw)

	allNumeric := len(raw) > 0
	for _, name := range names {
		if _, ok := rawUint(raw[name]); !ok {
			allNumeric = false
			break
		}
	}
	if allNumeric {
		variants := make([]ChainVariant, 0, len(raw))
		for _, name := range names {
			index, _ := rawUint(raw[name])
			if index > 255 {
				return nil, fmt.Errorf("variant %q: discriminant %d out of range", name, index)
			}
			variants = append(variants, ChainVariant{Name: name, Index: uint8(index)})
		}
		sort.SliceStable(variants, func(a, b int) bool {
			return variants[a].Index < variants[b].Index
		})
		return &ChainTypeDef{Kind: ChainDefEnum, Variants: variants}, nil
	}

	variants := make([]ChainVariant, 0, len(raw))
	for idx, name := range names {
		variant := ChainVariant{Name: name, Index: uint8(idx)}
		if rawValue := raw[name]; rawValue != nil {
			if fieldMap, ok := rawValue.(map[string]any); ok {
				fields, err := parseStructFields(fieldMap, sortedKeys(fieldMap))
				if err != nil {
					return nil, fmt.Errorf("variant %q: %v", name, err)
				}
				variant.Fields = fields
			} else {
				expr, inline, err := parseFieldValue(rawValue)
				if err != nil {
					return nil, fmt.Errorf("variant %q: %v", name, err)
				}
				variant.Fields = []ChainField{{Expr: expr, Inline: inline}}
			}
		}
		variants = append(variants, variant)
	}
	return &ChainTypeDef{Kind: ChainDefEnum, Variants: variants}, nil
}

// parseSetDef handles "_set" definitions: an object of flag names to bitmask
// values, with an optional "_bitLength" key selecting the encoded width.
func parseSetDef(raw any) (*ChainTypeDef, error) {
	setMap, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("unsupported _set definition of type %T", raw)
	}
	def := &ChainTypeDef{Kind: ChainDefSet, FlagBits: 8}
	for _, name := range sortedKeys(setMap) {
		if name == "_bitLength" {
			bits, ok := rawUint(setMap[name])
			if !ok || bits == 0 || bits > 64 || bits%8 != 0 {
				return nil, fmt.Errorf("invalid _bitLength %v", setMap[name])
			}
			def.FlagBits = uint32(bits)
			continue
		}
		if strings.HasPrefix(name, "_") {
			continue
		}
		mask, ok := rawUint(setMap[name])
		if !ok {
			return nil, fmt.Errorf("flag %q: invalid mask %v", name, setMap[name])
		}
		def.Flags = append(def.Flags, FlagDef{Name: name, Mask: mask})
	}
	sort.SliceStable(def.Flags, func(a, b int) bool {
		return def.Flags[a].Mask < def.Flags[b].Mask
	})
	for _, flag := range def.Flags {
		if def.FlagBits < 64 && flag.Mask >= uint64(1)<<def.FlagBits {
			return nil, fmt.Errorf("flag %q: mask %d exceeds bit length %d", flag.Name, flag.Mask, def.FlagBits)
		}
	}
	return def, nil
}

// rawUint converts the numeric shapes produced by json and yaml decoding.
func rawUint(raw any) (uint64, bool) {
	switch value := raw.(type) {
	case float64:
		if value < 0 || value != math.Trunc(value) || value > math.MaxUint32 {
			return 0, false
		}
		return uint64(value), true
	case int:
		if value < 0 {
			return 0, false
		}
		return uint64(value), true
	case int64:
		if value < 0 {
			return 0, false
		}
		return uint64(value), true
	case uint64:
		return value, true
	default:
		return 0, false
	}
}

func sortedKeys(raw map[string]any) []string {
	keys := make([]string, 0, len(raw))
	for key := range raw {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
