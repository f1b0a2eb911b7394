// Package bindmap turns the binding annotations of effect resources into the binding tables of
// the runtime backends: naga HLSL, GLSL and MSL writer options, and WebGPU bind group layouts.
//
// Collect is the single source of truth. It assigns every resource a DirectX register in its
// register class and space and a (group, binding) pair for the descriptor-set backends; the
// exporters in this package only reshape that assignment.
package bindmap

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/Carmen-Shannon/oxy-sfx/engine/sfx/declaration"
	"github.com/Carmen-Shannon/oxy-sfx/engine/sfx/restype"
	"github.com/gogpu/naga/hlsl"
)

var (
	// ErrBindingConflict is returned when two resources end up on the same binding.
	ErrBindingConflict = errors.New("binding conflict")

	// ErrUnsupported is returned when a backend cannot express a resource or state.
	ErrUnsupported = errors.New("unsupported by backend")
)

// Shifts offsets register numbers per register class when a resource has no explicit
// descriptor set binding, so t0, s0, b0 and u0 do not collide in one set.
type Shifts struct {
	B, T, S, U uint32
}

// DefaultShifts keeps the register classes apart in a set of up to 16 bindings per class.
var DefaultShifts = Shifts{B: 0, T: 16, S: 32, U: 48}

func (s Shifts) of(class hlsl.RegisterType) uint32 {
	switch class {
	case hlsl.RegisterTypeT:
		return s.T
	case hlsl.RegisterTypeS:
		return s.S
	case hlsl.RegisterTypeU:
		return s.U
	default:
		return s.B
	}
}

// Resource is one shader-visible resource with its final coordinates.
type Resource struct {
	Decl *declaration.Declaration   `json:"-" yaml:"-"`
	Name string                     `json:"name" yaml:"name"`
	Type restype.ShaderResourceType `json:"type" yaml:"type"`

	// Class, Space and Register are the DirectX coordinates.
	Class    hlsl.RegisterType `json:"-" yaml:"-"`
	Space    uint8             `json:"space" yaml:"space"`
	Register uint32            `json:"register" yaml:"register"`

	// Group and Binding are the Vulkan and WebGPU coordinates.
	Group   uint32 `json:"group" yaml:"group"`
	Binding uint32 `json:"binding" yaml:"binding"`

	// Count is the array length, 0 for a single resource and for unbounded arrays.
	Count     uint32 `json:"count,omitempty" yaml:"count,omitempty"`
	Unbounded bool   `json:"unbounded,omitempty" yaml:"unbounded,omitempty"`
	// Auto is true when the source gave no slot and one was assigned.
	Auto bool `json:"auto,omitempty" yaml:"auto,omitempty"`
	// Size is the minimum buffer size in bytes, 0 when unknown.
	Size uint64 `json:"size,omitempty" yaml:"size,omitempty"`
}

// RegisterClass returns the DirectX register class a resource type binds to.
//
// Parameters:
//   - t: the resource type
//
// Returns:
//   - hlsl.RegisterType: b for constant buffers, s for samplers, u for writable resources and t
//     for everything else
func RegisterClass(t restype.ShaderResourceType) hlsl.RegisterType {
	switch {
	case t.Has(restype.ConstantBuffer):
		return hlsl.RegisterTypeB
	case t.IsSampler():
		return hlsl.RegisterTypeS
	case t.IsWritable():
		return hlsl.RegisterTypeU
	default:
		return hlsl.RegisterTypeT
	}
}

type classKey struct {
	class hlsl.RegisterType
	space uint8
}

type setKey struct {
	group, binding uint32
}

// Collect assigns coordinates to every resource declaration. Explicit slots are kept as written.
// Resources without a slot get the next free register of their class and space, in declaration
// order. Without an explicit descriptor set the group is the register space and the binding is
// the register shifted by its class.
//
// Parameters:
//   - decls: the declarations of an effect; non-resources are skipped
//   - shifts: the per-class binding offsets
//
// Returns:
//   - []Resource: the resources in declaration order
//   - error: wrapping ErrBindingConflict when two resources share a register or a binding, or
//     ErrUnsupported for a register space above 255
func Collect(decls []*declaration.Declaration, shifts Shifts) ([]Resource, error) {
	var out []Resource
	used := make(map[classKey]map[uint32]string)
	next := make(map[classKey]uint32)

	reserve := func(k classKey, reg, count uint32, name string) error {
		if used[k] == nil {
			used[k] = make(map[uint32]string)
		}
		for i := range max(count, 1) {
			if prev, ok := used[k][reg+i]; ok {
				return fmt.Errorf("%w: %s and %s both use register %s%d, space %d", ErrBindingConflict, prev, name, k.class, reg+i, k.space)
			}
			used[k][reg+i] = name
		}
		next[k] = max(next[k], reg+max(count, 1))
		return nil
	}

	for _, d := range decls {
		if !d.IsResource() {
			continue
		}
		if d.Binding.Space > math.MaxUint8 {
			return nil, fmt.Errorf("%s: %w: register space %d, backends address at most %d", d.Name, ErrUnsupported, d.Binding.Space, math.MaxUint8)
		}
		t := d.ResourceType()
		r := Resource{
			Decl:  d,
			Name:  d.Name,
			Type:  t,
			Class: RegisterClass(t),
			Space: uint8(d.Binding.Space),
		}
		switch {
		case d.Binding.ArraySize > 0:
			r.Count = uint32(d.Binding.ArraySize)
		case d.Binding.ArraySize < 0:
			r.Unbounded = true
		}
		if d.Binding.HasSlot() {
			r.Register = uint32(d.Binding.Slot)
			if err := reserve(classKey{r.Class, r.Space}, r.Register, r.Count, d.Name); err != nil {
				return nil, err
			}
		}
		out = append(out, r)
	}

	for i := range out {
		r := &out[i]
		if r.Decl.Binding.HasSlot() {
			continue
		}
		k := classKey{r.Class, r.Space}
		r.Register = next[k]
		r.Auto = true
		if err := reserve(k, r.Register, r.Count, r.Name); err != nil {
			return nil, err
		}
	}

	seen := make(map[setKey]string)
	for i := range out {
		r := &out[i]
		if r.Decl.Binding.HasGroup() {
			r.Group, r.Binding = uint32(r.Decl.Binding.Group), r.Register
		} else {
			r.Group, r.Binding = uint32(r.Space), r.Register+shifts.of(r.Class)
		}
		k := setKey{r.Group, r.Binding}
		if prev, ok := seen[k]; ok {
			return nil, fmt.Errorf("%w: %s and %s both use group %d binding %d", ErrBindingConflict, prev, r.Name, r.Group, r.Binding)
		}
		seen[k] = r.Name
	}
	return out, nil
}

// Groups returns the distinct groups used by resources in ascending order.
func Groups(resources []Resource) []uint32 {
	var out []uint32
	for _, r := range resources {
		if !slices.Contains(out, r.Group) {
			out = append(out, r.Group)
		}
	}
	slices.Sort(out)
	return out
}

// sortedBySet returns a copy of resources ordered by group then binding.
func sortedBySet(resources []Resource) []Resource {
	out := slices.Clone(resources)
	slices.SortStableFunc(out, func(a, b Resource) int {
		if c := cmp.Compare(a.Group, b.Group); c != 0 {
			return c
		}
		return cmp.Compare(a.Binding, b.Binding)
	})
	return out
}
