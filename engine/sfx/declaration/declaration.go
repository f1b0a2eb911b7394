// Package declaration holds the object model produced by the effect parser: resource, state,
// struct and function declarations, and the passes and techniques that reference them.
//
// A Declaration is a closed sum type. Every declaration carries the same header (name, kind,
// position, binding coordinates, reference count) and exactly one kind-specific Body. The set
// of bodies is closed by an unexported interface method, so the only way to create a
// Declaration is through the constructors in this package, and a type switch over Body is
// exhaustive over the kinds listed in Type.
package declaration

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-sfx/common"
	"github.com/Carmen-Shannon/oxy-sfx/engine/sfx/restype"
)

// Type identifies the kind of a declaration.
type Type int

const (
	// TypeTexture is a texture resource (Texture2D, RWTexture3D, ...).
	TypeTexture Type = iota
	// TypeSampler is a sampler resource, optionally with a sampler state body.
	TypeSampler
	// TypeBlendState is a named BlendState block.
	TypeBlendState
	// TypeRasterizerState is a named RasterizerState block.
	TypeRasterizerState
	// TypeDepthState is a named DepthStencilState block.
	TypeDepthState
	// TypeBuffer is a buffer resource (StructuredBuffer, ByteAddressBuffer, ...).
	TypeBuffer
	// TypeStruct is a struct type declaration.
	TypeStruct
	// TypeConstantBuffer is a cbuffer without an instance name.
	TypeConstantBuffer
	// TypeNamedConstantBuffer is a cbuffer with an instance name after its body.
	TypeNamedConstantBuffer
	// TypeRenderTargetFormatState is a named RenderTargetFormatState block.
	TypeRenderTargetFormatState
	// TypeVariable is a global variable, including compiled shader objects.
	TypeVariable
	// TypeFunction is a function definition, the target of pass shader references.
	TypeFunction
)

var typeNames = [...]string{
	TypeTexture:                 "TEXTURE",
	TypeSampler:                 "SAMPLER",
	TypeBlendState:              "BLENDSTATE",
	TypeRasterizerState:         "RASTERIZERSTATE",
	TypeDepthState:              "DEPTHSTATE",
	TypeBuffer:                  "BUFFER",
	TypeStruct:                  "STRUCT",
	TypeConstantBuffer:          "CONSTANT_BUFFER",
	TypeNamedConstantBuffer:     "NAMED_CONSTANT_BUFFER",
	TypeRenderTargetFormatState: "RENDERTARGETFORMAT_STATE",
	TypeVariable:                "VARIABLE",
	TypeFunction:                "FUNCTION",
}

func (t Type) String() string {
	if t >= 0 && int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// MarshalText encodes the type as its display name.
func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Binding holds the backend binding coordinates of a declaration.
//
// Slot is the DirectX register number or the Vulkan binding number, Group is the Vulkan
// descriptor set, Space is the DirectX register space. Slot and Group are -1 when the source did
// not annotate them. ArraySize is -1 for unbounded arrays declared with [].
type Binding struct {
	Slot          int  `json:"slot" yaml:"slot"`
	Group         int  `json:"group" yaml:"group"`
	Space         int  `json:"space" yaml:"space"`
	RegisterClass byte `json:"register_class,omitempty" yaml:"register_class,omitempty"`
	ArraySize     int  `json:"array_size,omitempty" yaml:"array_size,omitempty"`
}

// Unbound returns the binding of a declaration without annotations.
//
// Returns:
//   - Binding: Slot and Group -1, Space 0
func Unbound() Binding {
	return Binding{Slot: -1, Group: -1}
}

// HasSlot reports whether the slot was annotated.
func (b Binding) HasSlot() bool { return b.Slot >= 0 }

// HasGroup reports whether the descriptor set was annotated.
func (b Binding) HasGroup() bool { return b.Group >= 0 }

// Body is the kind-specific part of a declaration. The set of implementations is closed.
type Body interface {
	declType() Type
}

// Declaration is a named shader-visible entity.
type Declaration struct {
	// Name is the identifier the declaration is referenced by.
	Name string
	// StructureType is the element or struct type named by the declaration, e.g. the T in
	// StructuredBuffer<T>, or the return type of a function. Empty when not applicable.
	StructureType string
	// Source is the exact source text of the declaration.
	Source string
	// Pos is where the declaration starts.
	Pos common.Position
	// Span locates Source inside its file.
	Span common.Span
	// Binding holds the slot, group and space coordinates.
	Binding Binding
	// RefCount counts the pass and technique sites that use the declaration. Maintained by the
	// resolver.
	RefCount int
	// Body holds the kind-specific fields.
	Body Body
}

// New creates a declaration with an unbound Binding.
//
// Parameters:
//   - name: the declaration name
//   - body: the kind-specific body, must not be nil
//
// Returns:
//   - *Declaration: the new declaration
func New(name string, body Body) *Declaration {
	return &Declaration{
		Name:    name,
		Binding: Unbound(),
		Body:    body,
	}
}

// Type returns the kind of the declaration, derived from its body.
//
// Returns:
//   - Type: the declaration kind
func (d *Declaration) Type() Type {
	return d.Body.declType()
}

// ResourceType returns the shader resource type of textures, samplers and buffers, and
// ConstantBuffer for both constant buffer kinds.
//
// Returns:
//   - restype.ShaderResourceType: the resource type, restype.Unknown for non-resources
func (d *Declaration) ResourceType() restype.ShaderResourceType {
	switch b := d.Body.(type) {
	case *Texture:
		return b.ResourceType
	case *Sampler:
		return b.ResourceType
	case *Buffer:
		return b.ResourceType
	case *ConstantBuffer, *NamedConstantBuffer:
		return restype.ConstantBuffer
	default:
		return restype.Unknown
	}
}

// IsResource reports whether the declaration occupies a binding slot at runtime.
//
// Returns:
//   - bool: true for textures, samplers, buffers and constant buffers
func (d *Declaration) IsResource() bool {
	return d.ResourceType() != restype.Unknown
}

// Texture returns the texture body.
func (d *Declaration) Texture() (*Texture, bool) { b, ok := d.Body.(*Texture); return b, ok }

// Sampler returns the sampler body.
func (d *Declaration) Sampler() (*Sampler, bool) { b, ok := d.Body.(*Sampler); return b, ok }

// Buffer returns the buffer body.
func (d *Declaration) Buffer() (*Buffer, bool) { b, ok := d.Body.(*Buffer); return b, ok }

// Variable returns the variable body.
func (d *Declaration) Variable() (*Variable, bool) { b, ok := d.Body.(*Variable); return b, ok }

// Function returns the function body.
func (d *Declaration) Function() (*Function, bool) { b, ok := d.Body.(*Function); return b, ok }

// BlendState returns the blend state body.
func (d *Declaration) BlendState() (*BlendState, bool) { b, ok := d.Body.(*BlendState); return b, ok }

// RasterizerState returns the rasterizer state body.
func (d *Declaration) RasterizerState() (*RasterizerState, bool) {
	b, ok := d.Body.(*RasterizerState)
	return b, ok
}

// DepthStencilState returns the depth-stencil state body.
func (d *Declaration) DepthStencilState() (*DepthStencilState, bool) {
	b, ok := d.Body.(*DepthStencilState)
	return b, ok
}

// RenderTargetFormatState returns the render target format body.
func (d *Declaration) RenderTargetFormatState() (*RenderTargetFormatState, bool) {
	b, ok := d.Body.(*RenderTargetFormatState)
	return b, ok
}

// Struct returns the member layout of structs and both constant buffer kinds.
//
// Returns:
//   - *Struct: the member layout
//   - bool: false for declarations without members
func (d *Declaration) Struct() (*Struct, bool) {
	switch b := d.Body.(type) {
	case *Struct:
		return b, true
	case *ConstantBuffer:
		return &b.Struct, true
	case *NamedConstantBuffer:
		return &b.Struct, true
	default:
		return nil, false
	}
}

// String formats the declaration as "KIND name".
func (d *Declaration) String() string {
	return d.Type().String() + " " + d.Name
}

// Texture is the body of a TEXTURE declaration.
type Texture struct {
	ResourceType restype.ShaderResourceType
	// ElementType is the template argument, e.g. "float4" in Texture2D<float4>.
	ElementType string
	// SampleCount is the second template argument of multisampled textures, 0 if absent.
	SampleCount int
}

func (*Texture) declType() Type { return TypeTexture }

// Sampler is the body of a SAMPLER declaration.
type Sampler struct {
	ResourceType restype.ShaderResourceType
	// State holds the sampler state, defaults applied for properties the source omitted.
	State SamplerState
}

func (*Sampler) declType() Type { return TypeSampler }

// Buffer is the body of a BUFFER declaration.
type Buffer struct {
	ResourceType restype.ShaderResourceType
	// ElementType is the template argument, e.g. the struct in StructuredBuffer<Light>.
	ElementType string
}

func (*Buffer) declType() Type { return TypeBuffer }

// CompiledShader records a CompileShader(profile, Function(args)) expression.
type CompiledShader struct {
	// Profile is the target profile, e.g. "vs_5_0".
	Profile string
	// Function is the entry point function name.
	Function string
}

// Variable is the body of a VARIABLE declaration.
type Variable struct {
	// TypeName is the declared type, e.g. "float4" or "VertexShader".
	TypeName string
	// Modifiers are storage qualifiers in source order, e.g. "static", "const", "uniform".
	Modifiers []string
	// ArraySize is the array length, 0 if the variable is not an array.
	ArraySize int
	// Initializer is the raw initializer text, empty if none.
	Initializer string
	// Compiled is set when the initializer is a CompileShader expression.
	Compiled *CompiledShader
}

func (*Variable) declType() Type { return TypeVariable }

// Function is the body of a FUNCTION declaration.
type Function struct {
	// ReturnType is the declared return type.
	ReturnType string
	// Parameters is the raw parameter list text.
	Parameters string
	// Semantic is the return semantic, e.g. "SV_Target".
	Semantic string
	// Attributes are the bracketed attributes preceding the function, e.g. "numthreads".
	Attributes []Attribute
	// WorkgroupSize is set from [numthreads(x, y, z)], all zero otherwise.
	WorkgroupSize [3]int
	// IsShader is true when the function was marked with the shader keyword.
	IsShader bool
}

func (*Function) declType() Type { return TypeFunction }

// Attribute is a bracketed attribute such as [numthreads(8, 8, 1)] or [[vk::binding(0, 1)]].
type Attribute struct {
	Name string
	Args []string
}
