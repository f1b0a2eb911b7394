// Package layout computes the byte layout of struct and constant buffer members.
//
// Two rule sets are supported. Constant buffers use the HLSL register packing: members are
// packed into 16-byte registers, a member never straddles a register boundary, and array
// elements, matrices and nested structs start on a new register. Structs and structured buffers
// use natural packing, which aligns every member to its own alignment the way std430 and WGSL
// storage buffers do.
package layout

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/oxy-sfx/engine/sfx/declaration"
	"github.com/Carmen-Shannon/oxy-sfx/engine/sfx/variant"
)

// registerSize is the size of one constant buffer register.
const registerSize = 16

// maxDepth bounds struct nesting, which also stops self-referencing structs.
const maxDepth = 32

// Rules selects a packing rule set.
type Rules int

const (
	// Natural aligns each member to its own alignment.
	Natural Rules = iota
	// ConstantBuffer packs members into 16-byte registers.
	ConstantBuffer
)

func (r Rules) String() string {
	if r == ConstantBuffer {
		return "cbuffer"
	}
	return "natural"
}

// RulesFor returns the rule set used for a declaration kind.
//
// Parameters:
//   - t: the declaration kind
//
// Returns:
//   - Rules: ConstantBuffer for both constant buffer kinds, Natural otherwise
func RulesFor(t declaration.Type) Rules {
	if t == declaration.TypeConstantBuffer || t == declaration.TypeNamedConstantBuffer {
		return ConstantBuffer
	}
	return Natural
}

// Lookup resolves a struct type name used as a member type.
type Lookup func(name string) (*declaration.Struct, bool)

// Field is the placement of one member.
type Field struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type" yaml:"type"`
	// Offset is relative to the start of the enclosing struct.
	Offset uint64 `json:"offset" yaml:"offset"`
	Size   uint64 `json:"size" yaml:"size"`
	Align  uint64 `json:"align" yaml:"align"`
	// ArraySize is 0 for non-array members.
	ArraySize int `json:"array_size,omitempty" yaml:"array_size,omitempty"`
	// Stride is the distance between array elements, 0 for non-array members.
	Stride uint64 `json:"stride,omitempty" yaml:"stride,omitempty"`
	// Fields holds the placement of nested struct members, relative to Offset.
	Fields []Field `json:"fields,omitempty" yaml:"fields,omitempty"`
}

// Layout is the placement of a member list.
type Layout struct {
	Rules  Rules   `json:"-" yaml:"-"`
	Fields []Field `json:"fields" yaml:"fields"`
	// Size is the total byte size, rounded up to 16 for constant buffers and to Align otherwise.
	Size  uint64 `json:"size" yaml:"size"`
	Align uint64 `json:"align" yaml:"align"`
}

// Field returns the placement of the named top-level member.
func (l *Layout) Field(name string) (Field, bool) {
	for _, f := range l.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Packer computes layouts under one rule set.
type Packer struct {
	Rules Rules
	// Lookup resolves nested struct types. Nil means member types must be numeric.
	Lookup Lookup
	// Bindings selects the members of nested structs that have variants.
	Bindings variant.Bindings
}

// Of computes the layout of a struct-like declaration under the given variant bindings, using the
// rule set of its kind.
//
// Parameters:
//   - d: a STRUCT, CONSTANT_BUFFER or NAMED_CONSTANT_BUFFER declaration
//   - bindings: the variant variable values, may be nil for structs without variants
//   - lookup: resolves nested struct types, may be nil
//
// Returns:
//   - *Layout: the layout
//   - error: if the variants cannot be evaluated or a member type is unknown
func Of(d *declaration.Declaration, bindings variant.Bindings, lookup Lookup) (*Layout, error) {
	members, err := variant.Evaluate(d, bindings)
	if err != nil {
		return nil, err
	}
	p := Packer{Rules: RulesFor(d.Type()), Lookup: lookup, Bindings: bindings}
	l, err := p.Pack(members)
	if err != nil {
		return nil, fmt.Errorf("layout of %s: %w", d.Name, err)
	}
	return l, nil
}

// Pack places a concrete member list.
//
// Parameters:
//   - members: the members in declaration order, variants already evaluated
//
// Returns:
//   - *Layout: the layout
//   - error: if a member type is unknown or a packoffset is malformed
func (p Packer) Pack(members []declaration.Member) (*Layout, error) {
	fields, size, align, err := p.pack(members, 0)
	if err != nil {
		return nil, err
	}
	if p.Rules == ConstantBuffer {
		size = roundUpAlign(registerSize, size)
	}
	return &Layout{Rules: p.Rules, Fields: fields, Size: size, Align: align}, nil
}

// pack places members from offset zero and returns the unpadded end for constant buffers or the
// aligned size for natural packing.
func (p Packer) pack(members []declaration.Member, depth int) ([]Field, uint64, uint64, error) {
	if depth > maxDepth {
		return nil, 0, 0, fmt.Errorf("structs nested deeper than %d", maxDepth)
	}
	fields := make([]Field, 0, len(members))
	offset := uint64(0)
	maxAlign := uint64(1)
	if p.Rules == ConstantBuffer {
		maxAlign = registerSize
	}

	for _, m := range members {
		f, err := p.place(m, depth)
		if err != nil {
			return nil, 0, 0, fmt.Errorf("member %s: %w", m.Name, err)
		}

		switch {
		case p.Rules == ConstantBuffer && m.PackOffset != "":
			at, err := parsePackOffset(m.PackOffset)
			if err != nil {
				return nil, 0, 0, fmt.Errorf("member %s: %w", m.Name, err)
			}
			offset = at
		case p.Rules == ConstantBuffer && f.Align == registerSize:
			offset = roundUpAlign(registerSize, offset)
		case p.Rules == ConstantBuffer:
			if offset%registerSize+f.Size > registerSize {
				offset = roundUpAlign(registerSize, offset)
			}
		default:
			offset = roundUpAlign(f.Align, offset)
		}

		f.Offset = offset
		offset += f.Size
		if f.Align > maxAlign {
			maxAlign = f.Align
		}
		fields = append(fields, f)
	}

	if p.Rules == Natural {
		offset = roundUpAlign(maxAlign, offset)
	}
	return fields, offset, maxAlign, nil
}

// place computes the size and alignment of one member without its offset. Under constant buffer
// rules an alignment of 16 means the member must start on a register boundary.
func (p Packer) place(m declaration.Member, depth int) (Field, error) {
	f := Field{Name: m.Name, Type: m.Type, ArraySize: m.ArraySize}
	elemSize, elemAlign, nested, err := p.element(m, depth)
	if err != nil {
		return Field{}, err
	}
	f.Fields = nested

	if m.ArraySize <= 0 {
		f.Size, f.Align = elemSize, elemAlign
		return f, nil
	}

	if p.Rules == ConstantBuffer {
		f.Stride = roundUpAlign(registerSize, elemSize)
		f.Size = uint64(m.ArraySize-1)*f.Stride + elemSize
		f.Align = registerSize
		return f, nil
	}
	f.Stride = roundUpAlign(elemAlign, elemSize)
	f.Size = uint64(m.ArraySize) * f.Stride
	f.Align = elemAlign
	return f, nil
}

// element computes the size and alignment of a single element of the member's type.
func (p Packer) element(m declaration.Member, depth int) (uint64, uint64, []Field, error) {
	if s, ok := parseShape(m.Type); ok {
		size, align := p.numeric(s, slices.Contains(m.Modifiers, "row_major"))
		return size, align, nil, nil
	}
	if p.Lookup == nil {
		return 0, 0, nil, fmt.Errorf("unknown type %q", m.Type)
	}
	st, ok := p.Lookup(m.Type)
	if !ok {
		return 0, 0, nil, fmt.Errorf("unknown type %q", m.Type)
	}
	members, err := variant.EvaluateStruct(m.Type, st, p.Bindings)
	if err != nil {
		return 0, 0, nil, err
	}
	fields, size, align, err := p.pack(members, depth+1)
	if err != nil {
		return 0, 0, nil, err
	}
	if p.Rules == ConstantBuffer {
		align = registerSize
	}
	return size, align, fields, nil
}

// numeric computes the size and alignment of a scalar, vector or matrix.
func (p Packer) numeric(s shape, rowMajor bool) (uint64, uint64) {
	count, length := s.vectors(rowMajor)
	vecSize := uint64(length) * s.scalar

	if p.Rules == ConstantBuffer {
		if count == 1 {
			return vecSize, s.scalar
		}
		return uint64(count-1)*registerSize + vecSize, registerSize
	}

	vecAlign := s.scalar
	switch length {
	case 2:
		vecAlign = 2 * s.scalar
	case 3, 4:
		vecAlign = 4 * s.scalar
	}
	if count == 1 {
		return vecSize, vecAlign
	}
	stride := roundUpAlign(vecAlign, vecSize)
	return uint64(count) * stride, vecAlign
}

// parsePackOffset converts a packoffset argument such as "c2" or "c1.z" to a byte offset.
func parsePackOffset(text string) (uint64, error) {
	reg, comp, _ := strings.Cut(strings.TrimSpace(text), ".")
	if !strings.HasPrefix(reg, "c") {
		return 0, fmt.Errorf("invalid packoffset %q", text)
	}
	n, err := strconv.ParseUint(reg[1:], 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid packoffset %q", text)
	}
	offset := n * registerSize
	if comp != "" {
		i := strings.IndexByte("xyzw", comp[0])
		if i < 0 || len(comp) != 1 {
			return 0, fmt.Errorf("invalid packoffset component %q", text)
		}
		offset += uint64(i) * 4
	}
	return offset, nil
}

// roundUpAlign rounds value up to the next multiple of alignment, a power of two.
func roundUpAlign(alignment, value uint64) uint64 {
	if alignment == 0 {
		return value
	}
	return (value + alignment - 1) &^ (alignment - 1)
}
