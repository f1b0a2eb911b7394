// Package restype defines ShaderResourceType, the bit-flag taxonomy shared between the effect
// parser and the runtime renderers.
//
// The numeric values are a published contract: backends mirror this enumeration bit for bit, so
// base flag values must never be renumbered. Composite types are defined only as bitwise ORs of
// base flags, which guarantees that testing a stored value against any base flag (for example
// t&Texture or t&RW) behaves the same whichever composite was stored.
package restype

import (
	"fmt"
	"math/bits"
	"sort"
	"strings"
)

// ShaderResourceType is a bit set describing a shader-visible resource.
type ShaderResourceType uint32

// Base flags. Values are frozen.
const (
	Unknown ShaderResourceType = 0

	RW                    ShaderResourceType = 1 << 0
	Array                 ShaderResourceType = 1 << 1
	MS                    ShaderResourceType = 1 << 2
	Texture               ShaderResourceType = 1 << 3
	Dim1D                 ShaderResourceType = 1 << 4
	Dim2D                 ShaderResourceType = 1 << 5
	Dim3D                 ShaderResourceType = 1 << 6
	DimCube               ShaderResourceType = 1 << 7
	Sampler               ShaderResourceType = 1 << 8
	Comparison            ShaderResourceType = 1 << 9
	Buffer                ShaderResourceType = 1 << 10
	Constant              ShaderResourceType = 1 << 11
	Structured            ShaderResourceType = 1 << 12
	ByteAddress           ShaderResourceType = 1 << 13
	Append                ShaderResourceType = 1 << 14
	Consume               ShaderResourceType = 1 << 15
	AccelerationStructure ShaderResourceType = 1 << 16
)

// Composite types.
const (
	Texture1D        = Texture | Dim1D
	Texture1DArray   = Texture1D | Array
	Texture2D        = Texture | Dim2D
	Texture2DArray   = Texture2D | Array
	Texture2DMS      = Texture2D | MS
	Texture2DMSArray = Texture2DMS | Array
	Texture3D        = Texture | Dim3D
	TextureCube      = Texture | DimCube
	TextureCubeArray = TextureCube | Array

	RWTexture1D      = RW | Texture1D
	RWTexture1DArray = RW | Texture1DArray
	RWTexture2D      = RW | Texture2D
	RWTexture2DArray = RW | Texture2DArray
	RWTexture3D      = RW | Texture3D

	SamplerComparison = Sampler | Comparison

	RWBuffer                = RW | Buffer
	ConstantBuffer          = Buffer | Constant
	StructuredBuffer        = Buffer | Structured
	RWStructuredBuffer      = RW | StructuredBuffer
	ByteAddressBuffer       = Buffer | ByteAddress
	RWByteAddressBuffer     = RW | ByteAddressBuffer
	AppendStructuredBuffer  = RW | StructuredBuffer | Append
	ConsumeStructuredBuffer = RW | StructuredBuffer | Consume
)

// Entry is one row of the published enumeration table.
type Entry struct {
	// Name is the published identifier, e.g. "RW_TEXTURE_2D_ARRAY".
	Name string
	// Value is the numeric value.
	Value ShaderResourceType
	// Parts lists the base flags the value is composed of. Empty for base flags.
	Parts []ShaderResourceType
}

// baseFlags lists every base flag with its published name, in bit order.
var baseFlags = []Entry{
	{Name: "RW", Value: RW},
	{Name: "ARRAY", Value: Array},
	{Name: "MS", Value: MS},
	{Name: "TEXTURE", Value: Texture},
	{Name: "DIM_1D", Value: Dim1D},
	{Name: "DIM_2D", Value: Dim2D},
	{Name: "DIM_3D", Value: Dim3D},
	{Name: "DIM_CUBE", Value: DimCube},
	{Name: "SAMPLER", Value: Sampler},
	{Name: "COMPARISON", Value: Comparison},
	{Name: "BUFFER", Value: Buffer},
	{Name: "CONSTANT", Value: Constant},
	{Name: "STRUCTURED", Value: Structured},
	{Name: "BYTE_ADDRESS", Value: ByteAddress},
	{Name: "APPEND", Value: Append},
	{Name: "CONSUME", Value: Consume},
	{Name: "ACCELERATION_STRUCTURE", Value: AccelerationStructure},
}

// composites lists every composite with its published name. Constituents are always derived from
// the value so the constant expressions above stay the only definition.
var composites = []Entry{
	{Name: "TEXTURE_1D", Value: Texture1D},
	{Name: "TEXTURE_1D_ARRAY", Value: Texture1DArray},
	{Name: "TEXTURE_2D", Value: Texture2D},
	{Name: "TEXTURE_2D_ARRAY", Value: Texture2DArray},
	{Name: "TEXTURE_2DMS", Value: Texture2DMS},
	{Name: "TEXTURE_2DMS_ARRAY", Value: Texture2DMSArray},
	{Name: "TEXTURE_3D", Value: Texture3D},
	{Name: "TEXTURE_CUBE", Value: TextureCube},
	{Name: "TEXTURE_CUBE_ARRAY", Value: TextureCubeArray},
	{Name: "RW_TEXTURE_1D", Value: RWTexture1D},
	{Name: "RW_TEXTURE_1D_ARRAY", Value: RWTexture1DArray},
	{Name: "RW_TEXTURE_2D", Value: RWTexture2D},
	{Name: "RW_TEXTURE_2D_ARRAY", Value: RWTexture2DArray},
	{Name: "RW_TEXTURE_3D", Value: RWTexture3D},
	{Name: "SAMPLER_COMPARISON", Value: SamplerComparison},
	{Name: "RW_BUFFER", Value: RWBuffer},
	{Name: "CONSTANT_BUFFER", Value: ConstantBuffer},
	{Name: "STRUCTURED_BUFFER", Value: StructuredBuffer},
	{Name: "RW_STRUCTURED_BUFFER", Value: RWStructuredBuffer},
	{Name: "BYTE_ADDRESS_BUFFER", Value: ByteAddressBuffer},
	{Name: "RW_BYTE_ADDRESS_BUFFER", Value: RWByteAddressBuffer},
	{Name: "APPEND_STRUCTURED_BUFFER", Value: AppendStructuredBuffer},
	{Name: "CONSUME_STRUCTURED_BUFFER", Value: ConsumeStructuredBuffer},
}

// hlslKeywords maps shading-language resource type keywords to their resource type.
var hlslKeywords = map[string]ShaderResourceType{
	"Texture1D":                       Texture1D,
	"Texture1DArray":                  Texture1DArray,
	"Texture2D":                       Texture2D,
	"Texture2DArray":                  Texture2DArray,
	"Texture2DMS":                     Texture2DMS,
	"Texture2DMSArray":                Texture2DMSArray,
	"Texture3D":                       Texture3D,
	"TextureCube":                     TextureCube,
	"TextureCubeArray":                TextureCubeArray,
	"RWTexture1D":                     RWTexture1D,
	"RWTexture1DArray":                RWTexture1DArray,
	"RWTexture2D":                     RWTexture2D,
	"RWTexture2DArray":                RWTexture2DArray,
	"RWTexture3D":                     RWTexture3D,
	"SamplerState":                    Sampler,
	"sampler":                         Sampler,
	"SamplerComparisonState":          SamplerComparison,
	"Buffer":                          Buffer,
	"RWBuffer":                        RWBuffer,
	"ConstantBuffer":                  ConstantBuffer,
	"StructuredBuffer":                StructuredBuffer,
	"RWStructuredBuffer":              RWStructuredBuffer,
	"ByteAddressBuffer":               ByteAddressBuffer,
	"RWByteAddressBuffer":             RWByteAddressBuffer,
	"AppendStructuredBuffer":          AppendStructuredBuffer,
	"ConsumeStructuredBuffer":         ConsumeStructuredBuffer,
	"RaytracingAccelerationStructure": AccelerationStructure,
}

// names is built once from the two tables and serves String.
var names = func() map[ShaderResourceType]string {
	m := make(map[ShaderResourceType]string, len(baseFlags)+len(composites))
	for _, e := range baseFlags {
		m[e.Value] = e.Name
	}
	for _, e := range composites {
		m[e.Value] = e.Name
	}
	return m
}()

// FromKeyword returns the resource type named by a shading-language type keyword such as
// "RWTexture2DArray" or "StructuredBuffer".
//
// Parameters:
//   - keyword: the type keyword, case-sensitive
//
// Returns:
//   - ShaderResourceType: the resource type, Unknown if not recognized
//   - bool: true if the keyword names a resource type
func FromKeyword(keyword string) (ShaderResourceType, bool) {
	t, ok := hlslKeywords[keyword]
	return t, ok
}

// IsResourceKeyword reports whether keyword names a resource type.
//
// Parameters:
//   - keyword: the identifier to test
//
// Returns:
//   - bool: true for resource type keywords
func IsResourceKeyword(keyword string) bool {
	_, ok := hlslKeywords[keyword]
	return ok
}

// Has reports whether every bit of flag is set in t.
//
// Parameters:
//   - flag: the flag or flags to test
//
// Returns:
//   - bool: true if t&flag == flag
func (t ShaderResourceType) Has(flag ShaderResourceType) bool {
	return t&flag == flag
}

// IsTexture reports whether t is any kind of texture.
func (t ShaderResourceType) IsTexture() bool { return t&Texture != 0 }

// IsBuffer reports whether t is any kind of buffer.
func (t ShaderResourceType) IsBuffer() bool { return t&Buffer != 0 }

// IsSampler reports whether t is a sampler.
func (t ShaderResourceType) IsSampler() bool { return t&Sampler != 0 }

// IsWritable reports whether t is bound for unordered (read-write) access.
func (t ShaderResourceType) IsWritable() bool { return t&RW != 0 }

// Parts decomposes t into its set base flags, lowest bit first.
//
// Returns:
//   - []ShaderResourceType: the base flags set in t
func (t ShaderResourceType) Parts() []ShaderResourceType {
	var parts []ShaderResourceType
	for v := uint32(t); v != 0; v &= v - 1 {
		parts = append(parts, ShaderResourceType(1)<<bits.TrailingZeros32(v))
	}
	return parts
}

// String returns the published name of t, or a "|"-joined list of base flag names when t is not a
// published value.
func (t ShaderResourceType) String() string {
	if t == Unknown {
		return "UNKNOWN"
	}
	if n, ok := names[t]; ok {
		return n
	}
	parts := t.Parts()
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if n, ok := names[p]; ok {
			out = append(out, n)
		} else {
			out = append(out, fmt.Sprintf("0x%x", uint32(p)))
		}
	}
	return strings.Join(out, "|")
}

// MarshalText encodes t by its published name.
func (t ShaderResourceType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// Parse parses a published name back into its value. Names are matched exactly.
//
// Parameters:
//   - name: a published name, e.g. "TEXTURE_2D_ARRAY"
//
// Returns:
//   - ShaderResourceType: the value
//   - error: if the name is not published
func Parse(name string) (ShaderResourceType, error) {
	if name == "UNKNOWN" {
		return Unknown, nil
	}
	for v, n := range names {
		if n == name {
			return v, nil
		}
	}
	return Unknown, fmt.Errorf("restype: unknown shader resource type %q", name)
}

// Table returns the published enumeration, base flags first in bit order then composites in
// ascending value order. Backends generate their mirror of the enumeration from this table.
//
// Returns:
//   - []Entry: a copy of the table
func Table() []Entry {
	out := make([]Entry, 0, len(baseFlags)+len(composites))
	out = append(out, baseFlags...)
	comp := Composites()
	sort.SliceStable(comp, func(i, j int) bool { return comp[i].Value < comp[j].Value })
	return append(out, comp...)
}

// Composites returns the composite rows of the published table in declaration order.
//
// Returns:
//   - []Entry: a copy of the composite rows
func Composites() []Entry {
	out := make([]Entry, len(composites))
	for i, e := range composites {
		out[i] = Entry{Name: e.Name, Value: e.Value, Parts: e.Value.Parts()}
	}
	return out
}
