// Copyright (c) 2025 pk910
// SPDX-License-Identifier: Apache-2.0
// This file is part of the dynamic-scale library.

package scaletypes

import (
	"fmt"
	"strconv"
	"strings"
)

// ExprKind identifies the shape of a type expression node.
type ExprKind uint8

const (
	ExprNamed   ExprKind = iota // reference to a dictionary entry, possibly with type arguments
	ExprPrim                    // primitive type
	ExprTuple                   // (A, B, ...)
	ExprSeq                     // Vec<T>
	ExprArray                   // [T; N] with a literal or property expression length
	ExprOption                  // Option<T>
	ExprCompact                 // Compact<T>
	ExprRef                     // direct reference into a TypeSet (used for registry based runtimes)
	ExprNull                    // () / Null / PhantomData
)

// TypeExpr is a parsed type expression. Expressions are produced by the string
// parser or built directly by the metadata normalizer, and are resolved into
// TypeDefs against a dictionary.
type TypeExpr struct {
	Kind    ExprKind
	Name    string        // ExprNamed: entry name
	Params  []*TypeExpr   // ExprNamed: type arguments
	Prim    PrimitiveKind // ExprPrim
	Elems   []*TypeExpr   // ExprTuple
	Elem    *TypeExpr     // ExprSeq/ExprArray/ExprOption/ExprCompact
	Len     uint32        // ExprArray: literal length
	LenExpr string        // ExprArray: chain property expression, evaluated during resolution
	Ref     TypeID        // ExprRef
}

func NamedExpr(name string, params ...*TypeExpr) *TypeExpr {
	return &TypeExpr{Kind: ExprNamed, Name: name, Params: params}
}

func PrimExpr(prim PrimitiveKind) *TypeExpr {
	return &TypeExpr{Kind: ExprPrim, Prim: prim}
}

func TupleExpr(elems ...*TypeExpr) *TypeExpr {
	return &TypeExpr{Kind: ExprTuple, Elems: elems}
}

func SeqExpr(elem *TypeExpr) *TypeExpr {
	return &TypeExpr{Kind: ExprSeq, Elem: elem}
}

func ArrayExpr(len uint32, elem *TypeExpr) *TypeExpr {
	return &TypeExpr{Kind: ExprArray, Len: len, Elem: elem}
}

func OptionExpr(elem *TypeExpr) *TypeExpr {
	return &TypeExpr{Kind: ExprOption, Elem: elem}
}

func CompactExpr(elem *TypeExpr) *TypeExpr {
	return &TypeExpr{Kind: ExprCompact, Elem: elem}
}

func RefExpr(id TypeID) *TypeExpr {
	return &TypeExpr{Kind: ExprRef, Ref: id}
}

func NullExpr() *TypeExpr {
	return &TypeExpr{Kind: ExprNull}
}

// String renders the expression in its canonical source form. The rendering is
// also used as part of resolution cache keys, so equal expressions must render
// equally.
func (e *TypeExpr) String() string {
	switch e.Kind {
	case ExprNamed:
		if len(e.Params) == 0 {
			return e.Name
		}
		params := make([]string, len(e.Params))
		for i, p := range e.Params {
			params[i] = p.String()
		}
		return fmt.Sprintf("%s<%s>", e.Name, strings.Join(params, ", "))
	case ExprPrim:
		return e.Prim.String()
	case ExprTuple:
		elems := make([]string, len(e.Elems))
		for i, el := range e.Elems {
			elems[i] = el.String()
		}
		return "(" + strings.Join(elems, ", ") + ")"
	case ExprSeq:
		return fmt.Sprintf("Vec<%s>", e.Elem.String())
	case ExprArray:
		if e.LenExpr != "" {
			return fmt.Sprintf("[%s; %s]", e.Elem.String(), e.LenExpr)
		}
		return fmt.Sprintf("[%s; %d]", e.Elem.String(), e.Len)
	case ExprOption:
		return fmt.Sprintf("Option<%s>", e.Elem.String())
	case ExprCompact:
		return fmt.Sprintf("Compact<%s>", e.Elem.String())
	case ExprRef:
		return fmt.Sprintf("#%d", e.Ref)
	case ExprNull:
		return "()"
	default:
		return fmt.Sprintf("expr(kind=%d)", e.Kind)
	}
}

var primitiveNames = map[string]PrimitiveKind{
	"bool":   PrimBool,
	"char":   PrimChar,
	"str":    PrimStr,
	"Str":    PrimStr,
	"String": PrimStr,
	"Text":   PrimStr,
	"u8":     PrimU8,
	"u16":    PrimU16,
	"u32":    PrimU32,
	"u64":    PrimU64,
	"u128":   PrimU128,
	"u256":   PrimU256,
	"i8":     PrimI8,
	"i16":    PrimI16,
	"i32":    PrimI32,
	"i64":    PrimI64,
	"i128":   PrimI128,
	"i256":   PrimI256,
}

// ParseTypeExpr parses a type expression in the notation used by runtime
// metadata and polkadot-js type bundles: primitives, Vec<T>, Option<T>,
// Compact<T>, fixed arrays, tuples, generic references, reference slices and
// qualified paths.
func ParseTypeExpr(input string) (*TypeExpr, error) {
	expr, err := parseTypeExpr(input)
	if err != nil {
		return nil, fmt.Errorf("cannot parse type expression %q: %v", input, err)
	}
	return expr, nil
}

func parseTypeExpr(input string) (*TypeExpr, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return nil, fmt.Errorf("empty type expression")
	}

	// reference and lifetime markers carry no wire meaning
	for strings.HasPrefix(s, "&") {
		s = strings.TrimSpace(s[1:])
		if strings.HasPrefix(s, "'") {
			if idx := strings.IndexAny(s, " \t["); idx >= 0 {
				s = strings.TrimSpace(s[idx:])
			} else {
				return nil, fmt.Errorf("dangling lifetime")
			}
		}
		s = strings.TrimSpace(strings.TrimPrefix(s, "mut "))
	}
	if s == "str" {
		return PrimExpr(PrimStr), nil
	}

	switch {
	case strings.HasPrefix(s, "<"):
		return parseQualifiedPath(s)
	case strings.HasPrefix(s, "("):
		return parseTuple(s)
	case strings.HasPrefix(s, "["):
		return parseBracket(s)
	}

	if idx := strings.IndexByte(s, '<'); idx >= 0 {
		return parseGeneric(s, idx)
	}

	return parsePlainName(s)
}

// parseQualifiedPath handles `<A as B>::C` forms. `<X as HasCompact>::Type`
// resolves to Compact<X>; any other form resolves to the trailing path.
func parseQualifiedPath(s string) (*TypeExpr, error) {
	closeIdx := matchingBracket(s, 0, '<', '>')
	if closeIdx < 0 {
		return nil, fmt.Errorf("unclosed qualified path")
	}
	inner := s[1:closeIdx]
	tail := strings.TrimSpace(s[closeIdx+1:])
	if !strings.HasPrefix(tail, "::") {
		return nil, fmt.Errorf("qualified path without trailing segment")
	}
	tail = strings.TrimSpace(tail[2:])

	parts := splitTopLevel(inner, " as ")
	if len(parts) == 2 && strings.Contains(parts[1], "HasCompact") {
		elem, err := parseTypeExpr(parts[0])
		if err != nil {
			return nil, err
		}
		return CompactExpr(elem), nil
	}
	return parseTypeExpr(tail)
}

func parseTuple(s string) (*TypeExpr, error) {
	if !strings.HasSuffix(s, ")") {
		return nil, fmt.Errorf("unclosed tuple")
	}
	inner := strings.TrimSpace(s[1 : len(s)-1])
	if inner == "" {
		return NullExpr(), nil
	}
	parts := splitTopLevel(inner, ",")
	elems := make([]*TypeExpr, 0, len(parts))
	for _, part := range parts {
		elem, err := parseTypeExpr(part)
		if err != nil {
			return nil, err
		}
		elems = append(elems, elem)
	}
	if len(elems) == 1 {
		// one element tuples are just parenthesized types
		return elems[0], nil
	}
	return TupleExpr(elems...), nil
}

// parseBracket handles `[T; N]` fixed arrays and `[T]` slices. The length may
// be a decimal literal or a chain property expression.
func parseBracket(s string) (*TypeExpr, error) {
	if !strings.HasSuffix(s, "]") {
		return nil, fmt.Errorf("unclosed bracket")
	}
	inner := strings.TrimSpace(s[1 : len(s)-1])
	parts := splitTopLevel(inner, ";")
	elem, err := parseTypeExpr(parts[0])
	if err != nil {
		return nil, err
	}

	switch len(parts) {
	case 1:
		return SeqExpr(elem), nil
	case 2:
		lenStr := strings.TrimSpace(parts[1])
		if length, err := strconv.ParseUint(lenStr, 10, 32); err == nil {
			return ArrayExpr(uint32(length), elem), nil
		}
		if lenStr == "" {
			return nil, fmt.Errorf("empty array length")
		}
		return &TypeExpr{Kind: ExprArray, Elem: elem, LenExpr: lenStr}, nil
	default:
		return nil, fmt.Errorf("malformed array")
	}
}

func parseGeneric(s string, openIdx int) (*TypeExpr, error) {
	if !strings.HasSuffix(s, ">") {
		return nil, fmt.Errorf("unclosed generic")
	}
	name := lastPathSegment(strings.TrimSpace(s[:openIdx]))
	inner := s[openIdx+1 : len(s)-1]
	parts := splitTopLevel(inner, ",")
	params := make([]*TypeExpr, 0, len(parts))
	for _, part := range parts {
		param, err := parseTypeExpr(part)
		if err != nil {
			return nil, err
		}
		params = append(params, param)
	}

	switch name {
	case "Vec", "BoundedVec", "WeakBoundedVec":
		return SeqExpr(params[0]), nil
	case "Option":
		if len(params) != 1 {
			return nil, fmt.Errorf("option takes one parameter")
		}
		return OptionExpr(params[0]), nil
	case "Compact":
		if len(params) != 1 {
			return nil, fmt.Errorf("compact takes one parameter")
		}
		return CompactExpr(params[0]), nil
	case "Box", "Arc", "Rc":
		return params[0], nil
	case "PhantomData":
		return NullExpr(), nil
	case "BTreeMap", "HashMap":
		if len(params) != 2 {
			return nil, fmt.Errorf("map takes two parameters")
		}
		return SeqExpr(TupleExpr(params[0], params[1])), nil
	case "BTreeSet", "HashSet":
		return SeqExpr(params[0]), nil
	default:
		return NamedExpr(name, params...), nil
	}
}

func parsePlainName(s string) (*TypeExpr, error) {
	name := lastPathSegment(s)
	if name == "" {
		return nil, fmt.Errorf("empty type name")
	}

	if prim, ok := primitiveNames[name]; ok {
		return PrimExpr(prim), nil
	}

	switch name {
	case "Null", "PhantomData", "DoNotConstruct":
		return NullExpr(), nil
	case "Bytes":
		return SeqExpr(PrimExpr(PrimU8)), nil
	}

	for _, c := range name {
		if !isIdentChar(c) {
			return nil, fmt.Errorf("invalid character %q in type name", c)
		}
	}
	return NamedExpr(name), nil
}

func lastPathSegment(s string) string {
	if idx := strings.LastIndex(s, "::"); idx >= 0 {
		return strings.TrimSpace(s[idx+2:])
	}
	return s
}

func isIdentChar(c rune) bool {
	return c == '_' || (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// matchingBracket returns the index of the bracket closing the one at openIdx,
// or -1 if the brackets are unbalanced.
func matchingBracket(s string, openIdx int, open, close byte) int {
	depth := 0
	for i := openIdx; i < len(s); i++ {
		switch s[i] {
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// splitTopLevel splits s on sep while ignoring separators nested inside angle,
// round or square brackets.
func splitTopLevel(s, sep string) []string {
	parts := []string{}
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<', '(', '[':
			depth++
		case '>', ')', ']':
			depth--
		default:
			if depth == 0 && strings.HasPrefix(s[i:], sep) {
				parts = append(parts, s[start:i])
				i += len(sep) - 1
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])
	return parts
}
