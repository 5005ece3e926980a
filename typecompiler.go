// Copyright (c) 2025 pk910
// SPDX-License-Identifier: Apache-2.0
// This file is part of the dynamic-scale library.

package dynscale

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/pk910/dynamic-scale/scaletypes"
)

var (
	ErrUnknownType   = fmt.Errorf("unknown type name")
	ErrGenericArity  = fmt.Errorf("generic argument count mismatch")
	ErrRecursiveType = fmt.Errorf("unguarded recursive type expansion")
)

// typeCompiler resolves type expressions into TypeDefs for one runtime era.
// Names resolve against the chain dictionary first, then the built in types,
// then (for v14 runtimes) the metadata's own type registry by path suffix.
//
// Compiled definitions live in a per era TypeSet. For v14 runtimes that set
// is the metadata registry itself, so dictionary resolved and registry
// resolved definitions can reference each other by id.
type typeCompiler struct {
	decoder *Decoder
	meta    *scaletypes.RuntimeMetadata
	set     *scaletypes.TypeSet

	mutex      sync.Mutex
	compiled   map[compileKey]scaletypes.TypeID
	primIDs    map[scaletypes.PrimitiveKind]scaletypes.TypeID
	builtinIDs map[string]scaletypes.TypeID
	nullID     scaletypes.TypeID
	hasNullID  bool
	pathIndex  map[string]scaletypes.TypeID

	// override boundaries snapshot; dictionary lookups can only change at
	// these heights, so they partition the cache key space
	bounds []uint64
}

type compileKey struct {
	module string
	expr   string
	bucket int
}

// compileContext is the state of one compile call: the recursion guard stack
// and the block height the dictionary is queried at.
type compileContext struct {
	compiler *typeCompiler
	block    uint64
	bucket   int
	guards   int
	visiting map[compileKey]*visitFrame
}

// visitFrame marks a named type that is currently being compiled. guards
// records the guard depth at entry: hitting the frame again at the same depth
// means the type contains itself with nothing consuming input in between.
type visitFrame struct {
	id     scaletypes.TypeID
	guards int
}

func newTypeCompiler(decoder *Decoder, meta *scaletypes.RuntimeMetadata) *typeCompiler {
	compiler := &typeCompiler{
		decoder:    decoder,
		meta:       meta,
		set:        meta.Types,
		compiled:   map[compileKey]scaletypes.TypeID{},
		primIDs:    map[scaletypes.PrimitiveKind]scaletypes.TypeID{},
		builtinIDs: map[string]scaletypes.TypeID{},
		bounds:     decoder.chainTypes.OverrideBoundaries(),
	}
	if compiler.set == nil {
		compiler.set = scaletypes.NewTypeSet()
	} else {
		compiler.pathIndex = buildPathIndex(decoder, compiler.set)
	}
	return compiler
}

// buildPathIndex maps the last path segment of every registry type to its id,
// so dictionary style names ("AccountId32", "Perbill") resolve against v14
// metadata without a dictionary entry.
func buildPathIndex(decoder *Decoder, set *scaletypes.TypeSet) map[string]scaletypes.TypeID {
	index := map[string]scaletypes.TypeID{}
	ambiguous := map[string]bool{}
	for i := 0; i < set.Len(); i++ {
		def, err := set.Get(scaletypes.TypeID(i))
		if err != nil || def.Path == "" {
			continue
		}
		name := def.Path
		if pos := strings.LastIndex(name, "::"); pos >= 0 {
			name = name[pos+2:]
		}
		if _, exists := index[name]; exists {
			// keep the first occurrence, names like "Call" repeat per pallet
			ambiguous[name] = true
			continue
		}
		index[name] = scaletypes.TypeID(i)
	}
	if len(ambiguous) > 0 {
		names := make([]string, 0, len(ambiguous))
		for name := range ambiguous {
			names = append(names, name)
		}
		sort.Strings(names)
		decoder.logger.Debug("ambiguous registry type names", zap.Strings("names", names))
	}
	return index
}

// compile resolves a type expression at a block height and returns the id of
// its definition. The module scopes dictionary lookups; pass
// scaletypes.GlobalModule for unscoped resolution.
func (c *typeCompiler) compile(module string, expr *scaletypes.TypeExpr, block uint64) (scaletypes.TypeID, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	ctx := &compileContext{
		compiler: c,
		block:    block,
		bucket:   c.bucketFor(block),
		visiting: map[compileKey]*visitFrame{},
	}
	return ctx.compileExpr(strings.ToLower(module), expr)
}

// bucketFor returns the index of the override interval covering block.
func (c *typeCompiler) bucketFor(block uint64) int {
	return sort.Search(len(c.bounds), func(i int) bool {
		return c.bounds[i] > block
	})
}

func (ctx *compileContext) compileExpr(module string, expr *scaletypes.TypeExpr) (scaletypes.TypeID, error) {
	c := ctx.compiler

	switch expr.Kind {
	case scaletypes.ExprPrim:
		return c.primID(expr.Prim), nil
	case scaletypes.ExprNull:
		return c.nullTypeID(), nil
	case scaletypes.ExprRef:
		if c.meta.Types == nil {
			return 0, fmt.Errorf("type registry reference in a dictionary runtime")
		}
		if _, err := c.set.Get(expr.Ref); err != nil {
			return 0, err
		}
		return expr.Ref, nil
	}

	key := compileKey{module: module, expr: expr.String(), bucket: ctx.bucket}
	if id, exists := c.compiled[key]; exists {
		return id, nil
	}

	var id scaletypes.TypeID
	var err error

	switch expr.Kind {
	case scaletypes.ExprNamed:
		id, err = ctx.compileNamed(module, expr, key)
	case scaletypes.ExprTuple:
		if len(expr.Elems) == 0 {
			return c.nullTypeID(), nil
		}
		elems := make([]scaletypes.TypeID, len(expr.Elems))
		for i, elem := range expr.Elems {
			if elems[i], err = ctx.compileExpr(module, elem); err != nil {
				return 0, err
			}
		}
		id = c.set.Add(scaletypes.TypeDef{Kind: scaletypes.TypeTuple, Elems: elems})
	case scaletypes.ExprSeq:
		ctx.guards++
		elem, elemErr := ctx.compileExpr(module, expr.Elem)
		ctx.guards--
		if elemErr != nil {
			return 0, elemErr
		}
		id = c.set.Add(scaletypes.TypeDef{Kind: scaletypes.TypeSequence, Elem: elem})
	case scaletypes.ExprArray:
		length := expr.Len
		if expr.LenExpr != "" {
			resolved, value, propErr := c.decoder.propertyValue(expr.LenExpr)
			if propErr != nil {
				return 0, propErr
			}
			if !resolved {
				return 0, fmt.Errorf("cannot resolve array length %q", expr.LenExpr)
			}
			length = uint32(value)
		}
		elem, elemErr := ctx.compileExpr(module, expr.Elem)
		if elemErr != nil {
			return 0, elemErr
		}
		id = c.set.Add(scaletypes.TypeDef{Kind: scaletypes.TypeArray, Elem: elem, Len: length})
	case scaletypes.ExprOption:
		if expr.Elem.Kind == scaletypes.ExprPrim && expr.Elem.Prim == scaletypes.PrimBool {
			id = c.set.Add(scaletypes.TypeDef{Kind: scaletypes.TypeOptionBool})
			break
		}
		ctx.guards++
		elem, elemErr := ctx.compileExpr(module, expr.Elem)
		ctx.guards--
		if elemErr != nil {
			return 0, elemErr
		}
		id = c.set.Add(scaletypes.TypeDef{Kind: scaletypes.TypeOption, Elem: elem})
	case scaletypes.ExprCompact:
		elem, elemErr := ctx.compileExpr(module, expr.Elem)
		if elemErr != nil {
			return 0, elemErr
		}
		id = c.set.Add(scaletypes.TypeDef{Kind: scaletypes.TypeCompact, Elem: elem})
	default:
		return 0, fmt.Errorf("unsupported type expression kind %d", expr.Kind)
	}

	if err != nil {
		return 0, err
	}
	c.compiled[key] = id
	return id, nil
}

func (ctx *compileContext) compileNamed(module string, expr *scaletypes.TypeExpr, key compileKey) (scaletypes.TypeID, error) {
	c := ctx.compiler
	canonical := key.expr

	if frame := ctx.visiting[key]; frame != nil {
		if frame.guards < ctx.guards {
			// recursion through a length or discriminant prefix, reference
			// the definition under construction
			return frame.id, nil
		}
		return 0, fmt.Errorf("%w: %s", ErrRecursiveType, canonical)
	}

	if def := c.decoder.chainTypes.Lookup(module, expr.Name, ctx.block); def != nil {
		bindings, err := bindTypeParams(def, expr)
		if err != nil {
			return 0, err
		}

		id := c.set.Reserve()
		ctx.visiting[key] = &visitFrame{id: id, guards: ctx.guards}
		defer delete(ctx.visiting, key)

		compiled, err := ctx.compileDef(module, def, bindings)
		if err != nil {
			return 0, fmt.Errorf("cannot resolve %s: %w", canonical, err)
		}
		if compiled.Path == "" {
			compiled.Path = canonical
		}
		c.set.Assign(id, compiled)
		return id, nil
	}

	if id, exists := ctx.builtinType(expr.Name); exists {
		return id, nil
	}

	if id, exists := c.pathIndex[expr.Name]; exists {
		if len(expr.Params) > 0 {
			c.decoder.logger.Debug("ignoring type arguments on registry resolved type",
				zap.String("type", canonical))
		}
		return id, nil
	}

	if module != scaletypes.GlobalModule {
		return 0, fmt.Errorf("%w: %s (module %s)", ErrUnknownType, canonical, module)
	}
	return 0, fmt.Errorf("%w: %s", ErrUnknownType, canonical)
}

// bindTypeParams positionally binds the type arguments of a named expression
// to the parameters of its dictionary definition.
func bindTypeParams(def *scaletypes.ChainTypeDef, expr *scaletypes.TypeExpr) (map[string]*scaletypes.TypeExpr, error) {
	if len(def.Params) == 0 {
		// dictionaries often declare generic runtime types without their
		// parameters; arguments carry no information then
		return nil, nil
	}
	if len(def.Params) != len(expr.Params) {
		return nil, fmt.Errorf("%w: %s expects %d type arguments, got %d",
			ErrGenericArity, expr.Name, len(def.Params), len(expr.Params))
	}
	bindings := make(map[string]*scaletypes.TypeExpr, len(def.Params))
	for i, param := range def.Params {
		bindings[param] = expr.Params[i]
	}
	return bindings, nil
}

func (ctx *compileContext) compileDef(module string, def *scaletypes.ChainTypeDef, bindings map[string]*scaletypes.TypeExpr) (scaletypes.TypeDef, error) {
	switch def.Kind {
	case scaletypes.ChainDefExpr:
		childID, err := ctx.compileExpr(module, substituteParams(def.Expr, bindings))
		if err != nil {
			return scaletypes.TypeDef{}, err
		}
		child, err := ctx.compiler.set.Get(childID)
		if err != nil {
			return scaletypes.TypeDef{}, err
		}
		return *child, nil

	case scaletypes.ChainDefStruct:
		fields, err := ctx.compileFields(module, def.Fields, bindings)
		if err != nil {
			return scaletypes.TypeDef{}, err
		}
		return scaletypes.TypeDef{Kind: scaletypes.TypeComposite, Fields: fields}, nil

	case scaletypes.ChainDefEnum:
		variants := make([]scaletypes.VariantDef, len(def.Variants))
		// variant payloads only decode after the discriminant byte
		ctx.guards++
		defer func() { ctx.guards-- }()
		for i, variant := range def.Variants {
			fields, err := ctx.compileFields(module, variant.Fields, bindings)
			if err != nil {
				return scaletypes.TypeDef{}, fmt.Errorf("variant %s: %w", variant.Name, err)
			}
			variants[i] = scaletypes.VariantDef{
				Name:   variant.Name,
				Index:  variant.Index,
				Fields: fields,
			}
		}
		return scaletypes.TypeDef{Kind: scaletypes.TypeEnum, Variants: variants}, nil

	case scaletypes.ChainDefSet:
		return scaletypes.TypeDef{
			Kind:     scaletypes.TypeFlagSet,
			Flags:    def.Flags,
			FlagBits: def.FlagBits,
		}, nil

	default:
		return scaletypes.TypeDef{}, fmt.Errorf("unsupported dictionary definition kind %d", def.Kind)
	}
}

func (ctx *compileContext) compileFields(module string, fields []scaletypes.ChainField, bindings map[string]*scaletypes.TypeExpr) ([]scaletypes.FieldDef, error) {
	compiled := make([]scaletypes.FieldDef, len(fields))
	for i, field := range fields {
		var id scaletypes.TypeID
		var err error
		if field.Inline != nil {
			var def scaletypes.TypeDef
			if def, err = ctx.compileDef(module, field.Inline, bindings); err == nil {
				id = ctx.compiler.set.Add(def)
			}
		} else {
			id, err = ctx.compileExpr(module, substituteParams(field.Expr, bindings))
		}
		if err != nil {
			if field.Name != "" {
				return nil, fmt.Errorf("field %s: %w", field.Name, err)
			}
			return nil, err
		}
		compiled[i] = scaletypes.FieldDef{Name: field.Name, Type: id}
	}
	return compiled, nil
}

// substituteParams replaces bound parameter names in an expression tree with
// their argument expressions. Unbound parts are shared, not copied.
func substituteParams(expr *scaletypes.TypeExpr, bindings map[string]*scaletypes.TypeExpr) *scaletypes.TypeExpr {
	if len(bindings) == 0 || expr == nil {
		return expr
	}
	switch expr.Kind {
	case scaletypes.ExprNamed:
		if len(expr.Params) == 0 {
			if bound, exists := bindings[expr.Name]; exists {
				return bound
			}
			return expr
		}
		params := make([]*scaletypes.TypeExpr, len(expr.Params))
		changed := false
		for i, param := range expr.Params {
			params[i] = substituteParams(param, bindings)
			changed = changed || params[i] != param
		}
		if !changed {
			return expr
		}
		return scaletypes.NamedExpr(expr.Name, params...)
	case scaletypes.ExprTuple:
		elems := make([]*scaletypes.TypeExpr, len(expr.Elems))
		changed := false
		for i, elem := range expr.Elems {
			elems[i] = substituteParams(elem, bindings)
			changed = changed || elems[i] != elem
		}
		if !changed {
			return expr
		}
		return scaletypes.TupleExpr(elems...)
	case scaletypes.ExprSeq, scaletypes.ExprArray, scaletypes.ExprOption, scaletypes.ExprCompact:
		elem := substituteParams(expr.Elem, bindings)
		if elem == expr.Elem {
			return expr
		}
		clone := *expr
		clone.Elem = elem
		return &clone
	default:
		return expr
	}
}

// builtinType resolves the type names the decoder implements natively. The
// dictionary can shadow these, built ins only apply when no definition
// exists.
func (ctx *compileContext) builtinType(name string) (scaletypes.TypeID, bool) {
	c := ctx.compiler
	if id, exists := c.builtinIDs[name]; exists {
		return id, true
	}

	var def scaletypes.TypeDef
	switch name {
	case "Call", "GenericCall", "RuntimeCall":
		def = scaletypes.TypeDef{Kind: scaletypes.TypeCall, Path: "Call"}
	case "Era", "ExtrinsicEra":
		def = scaletypes.TypeDef{Kind: scaletypes.TypeEra, Path: "Era"}
	case "BitVec":
		def = scaletypes.TypeDef{Kind: scaletypes.TypeBitSeq, Len: 8, Path: "BitVec"}
	default:
		return 0, false
	}

	id := c.set.Add(def)
	c.builtinIDs[name] = id
	return id, true
}

func (c *typeCompiler) primID(prim scaletypes.PrimitiveKind) scaletypes.TypeID {
	if id, exists := c.primIDs[prim]; exists {
		return id
	}
	id := c.set.Add(scaletypes.TypeDef{Kind: scaletypes.TypePrimitive, Prim: prim})
	c.primIDs[prim] = id
	return id
}

func (c *typeCompiler) nullTypeID() scaletypes.TypeID {
	if !c.hasNullID {
		c.nullID = c.set.Add(scaletypes.TypeDef{Kind: scaletypes.TypeNull})
		c.hasNullID = true
	}
	return c.nullID
}
