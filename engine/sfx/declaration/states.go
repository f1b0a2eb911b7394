package declaration

import (
	"fmt"
	"math"
	"strings"
	"unicode"
)

// MaxRenderTargets is the number of color targets a blend or render target format state describes.
const MaxRenderTargets = 8

// Value is the right-hand side of a state property assignment as it appeared in source.
type Value struct {
	// Text is the identifier or literal text, e.g. "SOLID", "TRUE" or "0.5".
	Text string
	// Numbers holds the numeric value of a literal, or the components of a vector such as
	// float4(0, 0, 0, 1). Empty for identifiers.
	Numbers []float64
}

// Ident creates a Value from an identifier.
func Ident(text string) Value { return Value{Text: text} }

// Number creates a Value from a numeric literal.
func Number(n float64) Value { return Value{Text: fmt.Sprint(n), Numbers: []float64{n}} }

func (v Value) number() (float64, error) {
	if len(v.Numbers) != 1 {
		return 0, fmt.Errorf("expected a number, got %q", v.Text)
	}
	return v.Numbers[0], nil
}

func (v Value) float32() (float32, error) {
	n, err := v.number()
	if err != nil {
		return 0, err
	}
	if math.IsInf(n, 0) || math.Abs(n) > math.MaxFloat32 {
		if n > 0 {
			return math.MaxFloat32, nil
		}
		return -math.MaxFloat32, nil
	}
	return float32(n), nil
}

func (v Value) uint(limit uint64) (uint32, error) {
	n, err := v.number()
	if err != nil {
		return 0, err
	}
	if n < 0 || n != math.Trunc(n) || uint64(n) > limit {
		return 0, fmt.Errorf("value %q out of range [0, %d]", v.Text, limit)
	}
	return uint32(n), nil
}

func (v Value) int() (int32, error) {
	n, err := v.number()
	if err != nil {
		return 0, err
	}
	if n != math.Trunc(n) || n < math.MinInt32 || n > math.MaxInt32 {
		return 0, fmt.Errorf("value %q is not a 32-bit integer", v.Text)
	}
	return int32(n), nil
}

func (v Value) bool() (bool, error) {
	if len(v.Numbers) == 1 {
		return v.Numbers[0] != 0, nil
	}
	switch strings.ToUpper(v.Text) {
	case "TRUE":
		return true, nil
	case "FALSE":
		return false, nil
	}
	return false, fmt.Errorf("expected TRUE or FALSE, got %q", v.Text)
}

// enumSpec describes how identifiers map onto one enumeration. Lookups ignore case, underscores
// and a leading D3D10_/D3D11_/D3D12_ prefix. prefixes lists type prefixes that may precede the
// value name, e.g. "CULL" for D3D11_CULL_BACK.
type enumSpec[T comparable] struct {
	what     string
	prefixes []string
	values   map[string]T
}

func (s enumSpec[T]) parse(text string) (T, error) {
	key := normalizeEnum(text)
	if v, ok := s.values[key]; ok {
		return v, nil
	}
	for _, p := range s.prefixes {
		if k, ok := strings.CutPrefix(key, p); ok {
			if v, ok := s.values[k]; ok {
				return v, nil
			}
		}
	}
	var zero T
	return zero, fmt.Errorf("unknown %s %q", s.what, text)
}

func (s enumSpec[T]) name(v T) string {
	best := ""
	for k, x := range s.values {
		if x == v && (best == "" || len(k) < len(best) || len(k) == len(best) && k < best) {
			best = k
		}
	}
	if best == "" {
		return "UNKNOWN"
	}
	return best
}

func normalizeEnum(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	for _, p := range []string{"D3D10_", "D3D11_", "D3D12_", "D3D_"} {
		if r, ok := strings.CutPrefix(s, p); ok {
			s = r
			break
		}
	}
	return strings.ReplaceAll(s, "_", "")
}

// FillMode selects how triangles are rasterized.
type FillMode int

const (
	FillSolid FillMode = iota
	FillWireframe
)

var fillModes = enumSpec[FillMode]{"fill mode", []string{"FILLMODE", "FILL"}, map[string]FillMode{
	"SOLID": FillSolid, "WIREFRAME": FillWireframe,
}}

func (m FillMode) String() string { return fillModes.name(m) }

// ParseFillMode parses a fill mode name such as "SOLID" or "D3D11_FILL_WIREFRAME".
func ParseFillMode(s string) (FillMode, error) { return fillModes.parse(s) }

// CullMode selects which triangle faces are discarded.
type CullMode int

const (
	CullNone CullMode = iota
	CullFront
	CullBack
)

var cullModes = enumSpec[CullMode]{"cull mode", []string{"CULLMODE", "CULL"}, map[string]CullMode{
	"NONE": CullNone, "FRONT": CullFront, "BACK": CullBack,
}}

func (m CullMode) String() string { return cullModes.name(m) }

// ParseCullMode parses a cull mode name.
func ParseCullMode(s string) (CullMode, error) { return cullModes.parse(s) }

// ComparisonFunc is the comparison used by depth, stencil and comparison-sampler tests.
type ComparisonFunc int

const (
	CompareNever ComparisonFunc = iota
	CompareLess
	CompareEqual
	CompareLessEqual
	CompareGreater
	CompareNotEqual
	CompareGreaterEqual
	CompareAlways
)

var comparisonFuncs = enumSpec[ComparisonFunc]{"comparison function", []string{"COMPARISONFUNC", "COMPARISON", "CMP"}, map[string]ComparisonFunc{
	"NEVER": CompareNever, "LESS": CompareLess, "EQUAL": CompareEqual, "LESSEQUAL": CompareLessEqual,
	"GREATER": CompareGreater, "NOTEQUAL": CompareNotEqual, "GREATEREQUAL": CompareGreaterEqual,
	"ALWAYS": CompareAlways,
}}

func (f ComparisonFunc) String() string { return comparisonFuncs.name(f) }

// ParseComparisonFunc parses a comparison function name such as "LESS_EQUAL".
func ParseComparisonFunc(s string) (ComparisonFunc, error) { return comparisonFuncs.parse(s) }

// StencilOp is the operation applied to the stencil buffer when a stencil test resolves.
type StencilOp int

const (
	StencilKeep StencilOp = iota
	StencilZero
	StencilReplace
	StencilIncrSat
	StencilDecrSat
	StencilInvert
	StencilIncr
	StencilDecr
)

var stencilOps = enumSpec[StencilOp]{"stencil op", []string{"STENCILOP"}, map[string]StencilOp{
	"KEEP": StencilKeep, "ZERO": StencilZero, "REPLACE": StencilReplace, "INCRSAT": StencilIncrSat,
	"DECRSAT": StencilDecrSat, "INVERT": StencilInvert, "INCR": StencilIncr, "DECR": StencilDecr,
}}

func (o StencilOp) String() string { return stencilOps.name(o) }

// ParseStencilOp parses a stencil operation name.
func ParseStencilOp(s string) (StencilOp, error) { return stencilOps.parse(s) }

// Blend is a blend factor.
type Blend int

const (
	BlendZero Blend = iota
	BlendOne
	BlendSrcColor
	BlendInvSrcColor
	BlendSrcAlpha
	BlendInvSrcAlpha
	BlendDestAlpha
	BlendInvDestAlpha
	BlendDestColor
	BlendInvDestColor
	BlendSrcAlphaSat
	BlendBlendFactor
	BlendInvBlendFactor
)

var blends = enumSpec[Blend]{"blend factor", []string{"BLEND"}, map[string]Blend{
	"ZERO": BlendZero, "ONE": BlendOne, "SRCCOLOR": BlendSrcColor, "INVSRCCOLOR": BlendInvSrcColor,
	"SRCALPHA": BlendSrcAlpha, "INVSRCALPHA": BlendInvSrcAlpha, "DESTALPHA": BlendDestAlpha,
	"INVDESTALPHA": BlendInvDestAlpha, "DESTCOLOR": BlendDestColor, "INVDESTCOLOR": BlendInvDestColor,
	"SRCALPHASAT": BlendSrcAlphaSat, "BLENDFACTOR": BlendBlendFactor, "INVBLENDFACTOR": BlendInvBlendFactor,
}}

func (b Blend) String() string { return blends.name(b) }

// ParseBlend parses a blend factor name such as "INV_SRC_ALPHA".
func ParseBlend(s string) (Blend, error) { return blends.parse(s) }

// BlendOp combines source and destination blend terms.
type BlendOp int

const (
	BlendOpAdd BlendOp = iota
	BlendOpSubtract
	BlendOpRevSubtract
	BlendOpMin
	BlendOpMax
)

var blendOps = enumSpec[BlendOp]{"blend op", []string{"BLENDOP"}, map[string]BlendOp{
	"ADD": BlendOpAdd, "SUBTRACT": BlendOpSubtract, "REVSUBTRACT": BlendOpRevSubtract,
	"MIN": BlendOpMin, "MAX": BlendOpMax,
}}

func (o BlendOp) String() string { return blendOps.name(o) }

// ParseBlendOp parses a blend operation name.
func ParseBlendOp(s string) (BlendOp, error) { return blendOps.parse(s) }

// AddressMode selects how texture coordinates outside [0, 1] are resolved.
type AddressMode int

const (
	AddressWrap AddressMode = iota
	AddressMirror
	AddressClamp
	AddressBorder
	AddressMirrorOnce
)

var addressModes = enumSpec[AddressMode]{"address mode", []string{"TEXTUREADDRESS", "ADDRESS"}, map[string]AddressMode{
	"WRAP": AddressWrap, "REPEAT": AddressWrap, "MIRROR": AddressMirror, "CLAMP": AddressClamp,
	"BORDER": AddressBorder, "MIRRORONCE": AddressMirrorOnce,
}}

func (m AddressMode) String() string { return addressModes.name(m) }

// ParseAddressMode parses an address mode name.
func ParseAddressMode(s string) (AddressMode, error) { return addressModes.parse(s) }

// DepthWriteMask enables or disables depth writes.
type DepthWriteMask int

const (
	DepthWriteZero DepthWriteMask = iota
	DepthWriteAll
)

var depthWriteMasks = enumSpec[DepthWriteMask]{"depth write mask", []string{"DEPTHWRITEMASK"}, map[string]DepthWriteMask{
	"ZERO": DepthWriteZero, "ALL": DepthWriteAll,
}}

func (m DepthWriteMask) String() string { return depthWriteMasks.name(m) }

// FilterMode is the per-axis sampling mode of a filter.
type FilterMode int

const (
	FilterPoint FilterMode = iota
	FilterLinear
)

func (m FilterMode) String() string {
	if m == FilterLinear {
		return "LINEAR"
	}
	return "POINT"
}

// Filter is a decomposed sampler filter: one mode each for minification, magnification and
// mipmap selection, plus the anisotropic and comparison flags.
type Filter struct {
	Min, Mag, Mip FilterMode
	Anisotropic   bool
	Comparison    bool
}

// ParseFilter parses a D3D-style filter name. Both MIN_MAG_POINT_MIP_LINEAR and
// MinMagPointMipLinear spellings are accepted, with optional D3D11_FILTER_ and COMPARISON_
// prefixes. A bare POINT, LINEAR or ANISOTROPIC applies to every axis.
//
// Parameters:
//   - s: the filter name
//
// Returns:
//   - Filter: the decomposed filter
//   - error: if the name is not a valid filter
func ParseFilter(s string) (Filter, error) {
	var f Filter
	var pending []*FilterMode
	assigned := false
	for _, tok := range filterTokens(s) {
		switch tok {
		case "D3D10", "D3D11", "D3D12", "FILTER":
		case "COMPARISON":
			f.Comparison = true
		case "MIN":
			pending = append(pending, &f.Min)
		case "MAG":
			pending = append(pending, &f.Mag)
		case "MIP":
			pending = append(pending, &f.Mip)
		case "POINT", "LINEAR":
			mode := FilterPoint
			if tok == "LINEAR" {
				mode = FilterLinear
			}
			if len(pending) == 0 {
				if assigned {
					return Filter{}, fmt.Errorf("unknown filter %q", s)
				}
				pending = []*FilterMode{&f.Min, &f.Mag, &f.Mip}
			}
			for _, p := range pending {
				*p = mode
			}
			pending = nil
			assigned = true
		case "ANISOTROPIC":
			f.Min, f.Mag, f.Mip = FilterLinear, FilterLinear, FilterLinear
			f.Anisotropic = true
			assigned = true
		default:
			return Filter{}, fmt.Errorf("unknown filter %q", s)
		}
	}
	if len(pending) > 0 || !assigned {
		return Filter{}, fmt.Errorf("unknown filter %q", s)
	}
	return f, nil
}

func filterTokens(s string) []string {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "_") {
		return strings.Split(strings.ToUpper(s), "_")
	}
	var toks []string
	start := 0
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) && !unicode.IsUpper(rune(s[i-1])) {
			toks = append(toks, strings.ToUpper(s[start:i]))
			start = i
		}
	}
	return append(toks, strings.ToUpper(s[start:]))
}

// String returns the D3D-style name of the filter.
func (f Filter) String() string {
	var name string
	switch {
	case f.Anisotropic:
		name = "ANISOTROPIC"
	case f.Min == f.Mag && f.Mag == f.Mip:
		name = "MIN_MAG_MIP_" + f.Min.String()
	case f.Min == f.Mag:
		name = "MIN_MAG_" + f.Min.String() + "_MIP_" + f.Mip.String()
	case f.Mag == f.Mip:
		name = "MIN_" + f.Min.String() + "_MAG_MIP_" + f.Mag.String()
	default:
		name = "MIN_" + f.Min.String() + "_MAG_" + f.Mag.String() + "_MIP_" + f.Mip.String()
	}
	if f.Comparison {
		name = "COMPARISON_" + name
	}
	return name
}

// Format is a render target or depth buffer pixel format.
type Format int

const (
	FormatUnknown Format = iota
	FormatRGBA32Float
	FormatRGBA16Float
	FormatRGBA8Unorm
	FormatRGBA8UnormSRGB
	FormatBGRA8Unorm
	FormatBGRA8UnormSRGB
	FormatRGB10A2Unorm
	FormatR11G11B10Float
	FormatRG32Float
	FormatRG16Float
	FormatRG8Unorm
	FormatR32Float
	FormatR16Float
	FormatR32Uint
	FormatR8Unorm
	FormatD32Float
	FormatD24UnormS8Uint
	FormatD16Unorm
)

var formatNames = [...]string{
	FormatUnknown:        "UNKNOWN",
	FormatRGBA32Float:    "RGBA_32_FLOAT",
	FormatRGBA16Float:    "RGBA_16_FLOAT",
	FormatRGBA8Unorm:     "RGBA_8_UNORM",
	FormatRGBA8UnormSRGB: "RGBA_8_UNORM_SRGB",
	FormatBGRA8Unorm:     "BGRA_8_UNORM",
	FormatBGRA8UnormSRGB: "BGRA_8_UNORM_SRGB",
	FormatRGB10A2Unorm:   "RGB_10_A2_UNORM",
	FormatR11G11B10Float: "RGB_11_11_10_FLOAT",
	FormatRG32Float:      "RG_32_FLOAT",
	FormatRG16Float:      "RG_16_FLOAT",
	FormatRG8Unorm:       "RG_8_UNORM",
	FormatR32Float:       "R_32_FLOAT",
	FormatR16Float:       "R_16_FLOAT",
	FormatR32Uint:        "R_32_UINT",
	FormatR8Unorm:        "R_8_UNORM",
	FormatD32Float:       "D_32_FLOAT",
	FormatD24UnormS8Uint: "D_24_UNORM_S_8_UINT",
	FormatD16Unorm:       "D_16_UNORM",
}

var formats = func() enumSpec[Format] {
	values := map[string]Format{
		"R32G32B32A32FLOAT": FormatRGBA32Float,
		"R16G16B16A16FLOAT": FormatRGBA16Float,
		"R8G8B8A8UNORM":     FormatRGBA8Unorm,
		"R8G8B8A8UNORMSRGB": FormatRGBA8UnormSRGB,
		"B8G8R8A8UNORM":     FormatBGRA8Unorm,
		"B8G8R8A8UNORMSRGB": FormatBGRA8UnormSRGB,
		"R10G10B10A2UNORM":  FormatRGB10A2Unorm,
		"R11G11B10FLOAT":    FormatR11G11B10Float,
		"R32G32FLOAT":       FormatRG32Float,
		"R16G16FLOAT":       FormatRG16Float,
		"R8G8UNORM":         FormatRG8Unorm,
		"D32FLOAT":          FormatD32Float,
		"D24UNORMS8UINT":    FormatD24UnormS8Uint,
		"D16UNORM":          FormatD16Unorm,
	}
	for f, n := range formatNames {
		values[normalizeEnum(n)] = Format(f)
	}
	return enumSpec[Format]{"format", []string{"DXGIFORMAT", "FORMAT"}, values}
}()

func (f Format) String() string {
	if f >= 0 && int(f) < len(formatNames) {
		return formatNames[f]
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// IsDepth reports whether f is a depth or depth-stencil format.
func (f Format) IsDepth() bool {
	return f == FormatD32Float || f == FormatD24UnormS8Uint || f == FormatD16Unorm
}

// ParseFormat parses a format name. Both the short names ("RGBA_16_FLOAT") and DXGI names
// ("DXGI_FORMAT_R16G16B16A16_FLOAT") are accepted.
func ParseFormat(s string) (Format, error) { return formats.parse(s) }

// SamplerState holds the fixed-function sampling configuration of a sampler declaration.
type SamplerState struct {
	Filter         Filter
	AddressU       AddressMode
	AddressV       AddressMode
	AddressW       AddressMode
	MipLODBias     float32
	MaxAnisotropy  uint32
	ComparisonFunc ComparisonFunc
	BorderColor    [4]float32
	MinLOD         float32
	MaxLOD         float32
}

// DefaultSamplerState returns the sampler state used for every property a sampler body omits:
// MIN_MAG_MIP_POINT filtering, WRAP addressing on all axes, no LOD bias, MaxAnisotropy 1,
// ComparisonFunc NEVER, a transparent black border and an unclamped LOD range.
//
// Returns:
//   - SamplerState: the default state
func DefaultSamplerState() SamplerState {
	return SamplerState{
		Filter:         Filter{Min: FilterPoint, Mag: FilterPoint, Mip: FilterPoint},
		AddressU:       AddressWrap,
		AddressV:       AddressWrap,
		AddressW:       AddressWrap,
		MaxAnisotropy:  1,
		ComparisonFunc: CompareNever,
		MaxLOD:         math.MaxFloat32,
	}
}

// Set assigns one property from a sampler state body.
//
// Parameters:
//   - key: the property name, case-insensitive
//   - index: the bracketed index, or -1 when the property was not indexed
//   - v: the assigned value
//
// Returns:
//   - error: for unknown properties, indexed properties or invalid values
func (s *SamplerState) Set(key string, index int, v Value) error {
	if index >= 0 {
		return fmt.Errorf("sampler property %s cannot be indexed", key)
	}
	var err error
	switch strings.ToUpper(key) {
	case "FILTER":
		s.Filter, err = ParseFilter(v.Text)
	case "ADDRESSU":
		s.AddressU, err = addressModes.parse(v.Text)
	case "ADDRESSV":
		s.AddressV, err = addressModes.parse(v.Text)
	case "ADDRESSW":
		s.AddressW, err = addressModes.parse(v.Text)
	case "MIPLODBIAS":
		s.MipLODBias, err = v.float32()
	case "MAXANISOTROPY":
		s.MaxAnisotropy, err = v.uint(16)
	case "COMPARISONFUNC":
		s.ComparisonFunc, err = comparisonFuncs.parse(v.Text)
	case "BORDERCOLOR":
		if len(v.Numbers) != 4 {
			return fmt.Errorf("BorderColor expects 4 components, got %q", v.Text)
		}
		for i, n := range v.Numbers {
			s.BorderColor[i] = float32(n)
		}
	case "MINLOD":
		s.MinLOD, err = v.float32()
	case "MAXLOD":
		s.MaxLOD, err = v.float32()
	default:
		return fmt.Errorf("unknown sampler property %q", key)
	}
	return err
}

// RasterizerState is the body of a RASTERIZERSTATE declaration.
type RasterizerState struct {
	FillMode              FillMode
	CullMode              CullMode
	FrontCounterClockwise bool
	DepthBias             int32
	DepthBiasClamp        float32
	SlopeScaledDepthBias  float32
	DepthClipEnable       bool
	ScissorEnable         bool
	MultisampleEnable     bool
	AntialiasedLineEnable bool
}

func (*RasterizerState) declType() Type { return TypeRasterizerState }

// DefaultRasterizerState returns the rasterizer state for omitted properties: SOLID fill, BACK
// culling, clockwise front faces, no depth bias and depth clipping enabled.
//
// Returns:
//   - RasterizerState: the default state
func DefaultRasterizerState() RasterizerState {
	return RasterizerState{
		FillMode:        FillSolid,
		CullMode:        CullBack,
		DepthClipEnable: true,
	}
}

// Set assigns one property from a rasterizer state body.
//
// Parameters:
//   - key: the property name, case-insensitive
//   - index: the bracketed index, or -1 when the property was not indexed
//   - v: the assigned value
//
// Returns:
//   - error: for unknown properties, indexed properties or invalid values
func (s *RasterizerState) Set(key string, index int, v Value) error {
	if index >= 0 {
		return fmt.Errorf("rasterizer property %s cannot be indexed", key)
	}
	var err error
	switch strings.ToUpper(key) {
	case "FILLMODE":
		s.FillMode, err = fillModes.parse(v.Text)
	case "CULLMODE":
		s.CullMode, err = cullModes.parse(v.Text)
	case "FRONTCOUNTERCLOCKWISE":
		s.FrontCounterClockwise, err = v.bool()
	case "DEPTHBIAS":
		s.DepthBias, err = v.int()
	case "DEPTHBIASCLAMP":
		s.DepthBiasClamp, err = v.float32()
	case "SLOPESCALEDDEPTHBIAS":
		s.SlopeScaledDepthBias, err = v.float32()
	case "DEPTHCLIPENABLE":
		s.DepthClipEnable, err = v.bool()
	case "SCISSORENABLE":
		s.ScissorEnable, err = v.bool()
	case "MULTISAMPLEENABLE":
		s.MultisampleEnable, err = v.bool()
	case "ANTIALIASEDLINEENABLE":
		s.AntialiasedLineEnable, err = v.bool()
	default:
		return fmt.Errorf("unknown rasterizer property %q", key)
	}
	return err
}

// StencilFace holds the stencil operations for one triangle facing.
type StencilFace struct {
	FailOp      StencilOp
	DepthFailOp StencilOp
	PassOp      StencilOp
	Func        ComparisonFunc
}

// DepthStencilState is the body of a DEPTHSTATE declaration.
type DepthStencilState struct {
	DepthEnable      bool
	DepthWriteMask   DepthWriteMask
	DepthFunc        ComparisonFunc
	StencilEnable    bool
	StencilReadMask  uint8
	StencilWriteMask uint8
	FrontFace        StencilFace
	BackFace         StencilFace
}

func (*DepthStencilState) declType() Type { return TypeDepthState }

// DefaultDepthStencilState returns the depth-stencil state for omitted properties: depth test
// LESS with writes enabled, stencil disabled with full masks, and KEEP/ALWAYS on both faces.
//
// Returns:
//   - DepthStencilState: the default state
func DefaultDepthStencilState() DepthStencilState {
	face := StencilFace{FailOp: StencilKeep, DepthFailOp: StencilKeep, PassOp: StencilKeep, Func: CompareAlways}
	return DepthStencilState{
		DepthEnable:      true,
		DepthWriteMask:   DepthWriteAll,
		DepthFunc:        CompareLess,
		StencilReadMask:  0xFF,
		StencilWriteMask: 0xFF,
		FrontFace:        face,
		BackFace:         face,
	}
}

// Set assigns one property from a depth-stencil state body.
//
// Parameters:
//   - key: the property name, case-insensitive
//   - index: the bracketed index, or -1 when the property was not indexed
//   - v: the assigned value
//
// Returns:
//   - error: for unknown properties, indexed properties or invalid values
func (s *DepthStencilState) Set(key string, index int, v Value) error {
	if index >= 0 {
		return fmt.Errorf("depth-stencil property %s cannot be indexed", key)
	}
	k := strings.ToUpper(key)
	var face *StencilFace
	if rest, ok := strings.CutPrefix(k, "FRONTFACE"); ok {
		face, k = &s.FrontFace, "FACE"+rest
	} else if rest, ok := strings.CutPrefix(k, "BACKFACE"); ok {
		face, k = &s.BackFace, "FACE"+rest
	} else if strings.HasPrefix(k, "FACE") {
		return fmt.Errorf("unknown depth-stencil property %q", key)
	}

	var err error
	var mask uint32
	switch k {
	case "DEPTHENABLE":
		s.DepthEnable, err = v.bool()
	case "DEPTHWRITEMASK":
		s.DepthWriteMask, err = depthWriteMasks.parse(v.Text)
	case "DEPTHFUNC":
		s.DepthFunc, err = comparisonFuncs.parse(v.Text)
	case "STENCILENABLE":
		s.StencilEnable, err = v.bool()
	case "STENCILREADMASK":
		mask, err = v.uint(0xFF)
		s.StencilReadMask = uint8(mask)
	case "STENCILWRITEMASK":
		mask, err = v.uint(0xFF)
		s.StencilWriteMask = uint8(mask)
	case "FACESTENCILFAIL", "FACESTENCILFAILOP":
		face.FailOp, err = stencilOps.parse(v.Text)
	case "FACESTENCILDEPTHFAIL", "FACESTENCILDEPTHFAILOP", "FACESTENCILZFAIL":
		face.DepthFailOp, err = stencilOps.parse(v.Text)
	case "FACESTENCILPASS", "FACESTENCILPASSOP":
		face.PassOp, err = stencilOps.parse(v.Text)
	case "FACESTENCILFUNC":
		face.Func, err = comparisonFuncs.parse(v.Text)
	default:
		return fmt.Errorf("unknown depth-stencil property %q", key)
	}
	return err
}

// RenderTargetBlend is the blend configuration of one color target.
type RenderTargetBlend struct {
	BlendEnable    bool
	SrcBlend       Blend
	DestBlend      Blend
	BlendOp        BlendOp
	SrcBlendAlpha  Blend
	DestBlendAlpha Blend
	BlendOpAlpha   BlendOp
	WriteMask      uint8
}

// BlendState is the body of a BLENDSTATE declaration.
type BlendState struct {
	AlphaToCoverageEnable  bool
	IndependentBlendEnable bool
	RenderTargets          [MaxRenderTargets]RenderTargetBlend
}

func (*BlendState) declType() Type { return TypeBlendState }

// DefaultBlendState returns the blend state for omitted properties: blending disabled on all eight
// targets with ONE/ZERO/ADD for color and alpha and a full write mask.
//
// Returns:
//   - BlendState: the default state
func DefaultBlendState() BlendState {
	var s BlendState
	for i := range s.RenderTargets {
		s.RenderTargets[i] = RenderTargetBlend{
			SrcBlend:       BlendOne,
			DestBlend:      BlendZero,
			BlendOp:        BlendOpAdd,
			SrcBlendAlpha:  BlendOne,
			DestBlendAlpha: BlendZero,
			BlendOpAlpha:   BlendOpAdd,
			WriteMask:      0xF,
		}
	}
	return s
}

// Set assigns one property from a blend state body. Per-target properties without an index
// apply to every target.
//
// Parameters:
//   - key: the property name, case-insensitive
//   - index: the render target index, or -1 when the property was not indexed
//   - v: the assigned value
//
// Returns:
//   - error: for unknown properties, out of range indices or invalid values
func (s *BlendState) Set(key string, index int, v Value) error {
	k := strings.ToUpper(key)
	switch k {
	case "ALPHATOCOVERAGEENABLE", "INDEPENDENTBLENDENABLE":
		if index >= 0 {
			return fmt.Errorf("blend property %s cannot be indexed", key)
		}
		b, err := v.bool()
		if err != nil {
			return err
		}
		if k == "ALPHATOCOVERAGEENABLE" {
			s.AlphaToCoverageEnable = b
		} else {
			s.IndependentBlendEnable = b
		}
		return nil
	}
	if index >= MaxRenderTargets {
		return fmt.Errorf("blend property %s index %d out of range [0, %d)", key, index, MaxRenderTargets)
	}

	var apply func(t *RenderTargetBlend)
	switch k {
	case "BLENDENABLE":
		b, err := v.bool()
		if err != nil {
			return err
		}
		apply = func(t *RenderTargetBlend) { t.BlendEnable = b }
	case "SRCBLEND", "DESTBLEND", "SRCBLENDALPHA", "DESTBLENDALPHA":
		f, err := blends.parse(v.Text)
		if err != nil {
			return err
		}
		apply = func(t *RenderTargetBlend) {
			switch k {
			case "SRCBLEND":
				t.SrcBlend = f
			case "DESTBLEND":
				t.DestBlend = f
			case "SRCBLENDALPHA":
				t.SrcBlendAlpha = f
			default:
				t.DestBlendAlpha = f
			}
		}
	case "BLENDOP", "BLENDOPALPHA":
		op, err := blendOps.parse(v.Text)
		if err != nil {
			return err
		}
		apply = func(t *RenderTargetBlend) {
			if k == "BLENDOP" {
				t.BlendOp = op
			} else {
				t.BlendOpAlpha = op
			}
		}
	case "RENDERTARGETWRITEMASK", "WRITEMASK":
		m, err := v.uint(0xF)
		if err != nil {
			return err
		}
		apply = func(t *RenderTargetBlend) { t.WriteMask = uint8(m) }
	default:
		return fmt.Errorf("unknown blend property %q", key)
	}

	if index >= 0 {
		apply(&s.RenderTargets[index])
		return nil
	}
	for i := range s.RenderTargets {
		apply(&s.RenderTargets[i])
	}
	return nil
}

// RenderTargetFormatState is the body of a RENDERTARGETFORMAT_STATE declaration.
type RenderTargetFormatState struct {
	Formats     [MaxRenderTargets]Format
	DepthFormat Format
}

func (*RenderTargetFormatState) declType() Type { return TypeRenderTargetFormatState }

// DefaultRenderTargetFormatState returns a state with every format UNKNOWN.
func DefaultRenderTargetFormatState() RenderTargetFormatState {
	return RenderTargetFormatState{}
}

// Set assigns one property from a render target format body. An unindexed Format sets target 0.
//
// Parameters:
//   - key: the property name, case-insensitive
//   - index: the render target index, or -1 when the property was not indexed
//   - v: the assigned value
//
// Returns:
//   - error: for unknown properties, out of range indices or invalid formats
func (s *RenderTargetFormatState) Set(key string, index int, v Value) error {
	f, err := formats.parse(v.Text)
	if err != nil {
		return err
	}
	switch strings.ToUpper(key) {
	case "FORMAT", "RENDERTARGETFORMAT", "COLORFORMAT":
		if index < 0 {
			index = 0
		}
		if index >= MaxRenderTargets {
			return fmt.Errorf("render target index %d out of range [0, %d)", index, MaxRenderTargets)
		}
		s.Formats[index] = f
	case "DEPTHFORMAT", "DEPTHSTENCILFORMAT":
		if index >= 0 {
			return fmt.Errorf("%s cannot be indexed", key)
		}
		if f != FormatUnknown && !f.IsDepth() {
			return fmt.Errorf("%s is not a depth format", f)
		}
		s.DepthFormat = f
	default:
		return fmt.Errorf("unknown render target format property %q", key)
	}
	return nil
}
