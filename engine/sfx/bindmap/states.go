package bindmap

import (
	"fmt"
	"math"

	"github.com/Carmen-Shannon/oxy-sfx/engine/sfx/declaration"
	"github.com/cogentcore/webgpu/wgpu"
)

var topologies = map[declaration.Topology]wgpu.PrimitiveTopology{
	declaration.TopologyPointList:     wgpu.PrimitiveTopologyPointList,
	declaration.TopologyLineList:      wgpu.PrimitiveTopologyLineList,
	declaration.TopologyLineStrip:     wgpu.PrimitiveTopologyLineStrip,
	declaration.TopologyTriangleList:  wgpu.PrimitiveTopologyTriangleList,
	declaration.TopologyTriangleStrip: wgpu.PrimitiveTopologyTriangleStrip,
}

var compareFunctions = map[declaration.ComparisonFunc]wgpu.CompareFunction{
	declaration.CompareNever:        wgpu.CompareFunctionNever,
	declaration.CompareLess:         wgpu.CompareFunctionLess,
	declaration.CompareEqual:        wgpu.CompareFunctionEqual,
	declaration.CompareLessEqual:    wgpu.CompareFunctionLessEqual,
	declaration.CompareGreater:      wgpu.CompareFunctionGreater,
	declaration.CompareNotEqual:     wgpu.CompareFunctionNotEqual,
	declaration.CompareGreaterEqual: wgpu.CompareFunctionGreaterEqual,
	declaration.CompareAlways:       wgpu.CompareFunctionAlways,
}

var stencilOperations = map[declaration.StencilOp]wgpu.StencilOperation{
	declaration.StencilKeep:    wgpu.StencilOperationKeep,
	declaration.StencilZero:    wgpu.StencilOperationZero,
	declaration.StencilReplace: wgpu.StencilOperationReplace,
	declaration.StencilIncrSat: wgpu.StencilOperationIncrementClamp,
	declaration.StencilDecrSat: wgpu.StencilOperationDecrementClamp,
	declaration.StencilInvert:  wgpu.StencilOperationInvert,
	declaration.StencilIncr:    wgpu.StencilOperationIncrementWrap,
	declaration.StencilDecr:    wgpu.StencilOperationDecrementWrap,
}

var blendFactors = map[declaration.Blend]wgpu.BlendFactor{
	declaration.BlendZero:           wgpu.BlendFactorZero,
	declaration.BlendOne:            wgpu.BlendFactorOne,
	declaration.BlendSrcColor:       wgpu.BlendFactorSrc,
	declaration.BlendInvSrcColor:    wgpu.BlendFactorOneMinusSrc,
	declaration.BlendSrcAlpha:       wgpu.BlendFactorSrcAlpha,
	declaration.BlendInvSrcAlpha:    wgpu.BlendFactorOneMinusSrcAlpha,
	declaration.BlendDestAlpha:      wgpu.BlendFactorDstAlpha,
	declaration.BlendInvDestAlpha:   wgpu.BlendFactorOneMinusDstAlpha,
	declaration.BlendDestColor:      wgpu.BlendFactorDst,
	declaration.BlendInvDestColor:   wgpu.BlendFactorOneMinusDst,
	declaration.BlendSrcAlphaSat:    wgpu.BlendFactorSrcAlphaSaturated,
	declaration.BlendBlendFactor:    wgpu.BlendFactorConstant,
	declaration.BlendInvBlendFactor: wgpu.BlendFactorOneMinusConstant,
}

var blendOperations = map[declaration.BlendOp]wgpu.BlendOperation{
	declaration.BlendOpAdd:         wgpu.BlendOperationAdd,
	declaration.BlendOpSubtract:    wgpu.BlendOperationSubtract,
	declaration.BlendOpRevSubtract: wgpu.BlendOperationReverseSubtract,
	declaration.BlendOpMin:         wgpu.BlendOperationMin,
	declaration.BlendOpMax:         wgpu.BlendOperationMax,
}

var addressModes = map[declaration.AddressMode]wgpu.AddressMode{
	declaration.AddressWrap:   wgpu.AddressModeRepeat,
	declaration.AddressMirror: wgpu.AddressModeMirrorRepeat,
	declaration.AddressClamp:  wgpu.AddressModeClampToEdge,
}

var textureFormats = map[declaration.Format]wgpu.TextureFormat{
	declaration.FormatUnknown:        wgpu.TextureFormatUndefined,
	declaration.FormatRGBA32Float:    wgpu.TextureFormatRGBA32Float,
	declaration.FormatRGBA16Float:    wgpu.TextureFormatRGBA16Float,
	declaration.FormatRGBA8Unorm:     wgpu.TextureFormatRGBA8Unorm,
	declaration.FormatRGBA8UnormSRGB: wgpu.TextureFormatRGBA8UnormSrgb,
	declaration.FormatBGRA8Unorm:     wgpu.TextureFormatBGRA8Unorm,
	declaration.FormatBGRA8UnormSRGB: wgpu.TextureFormatBGRA8UnormSrgb,
	declaration.FormatRGB10A2Unorm:   wgpu.TextureFormatRGB10A2Unorm,
	declaration.FormatR11G11B10Float: wgpu.TextureFormatRG11B10Ufloat,
	declaration.FormatRG32Float:      wgpu.TextureFormatRG32Float,
	declaration.FormatRG16Float:      wgpu.TextureFormatRG16Float,
	declaration.FormatRG8Unorm:       wgpu.TextureFormatRG8Unorm,
	declaration.FormatR32Float:       wgpu.TextureFormatR32Float,
	declaration.FormatR16Float:       wgpu.TextureFormatR16Float,
	declaration.FormatR32Uint:        wgpu.TextureFormatR32Uint,
	declaration.FormatR8Unorm:        wgpu.TextureFormatR8Unorm,
	declaration.FormatD32Float:       wgpu.TextureFormatDepth32Float,
	declaration.FormatD24UnormS8Uint: wgpu.TextureFormatDepth24PlusStencil8,
	declaration.FormatD16Unorm:       wgpu.TextureFormatDepth16Unorm,
}

// Topology converts a pass topology. An undefined topology becomes a triangle list.
//
// Parameters:
//   - t: the pass topology
//
// Returns:
//   - wgpu.PrimitiveTopology: the WebGPU topology
//   - error: wrapping ErrUnsupported for adjacency and patch topologies
func Topology(t declaration.Topology) (wgpu.PrimitiveTopology, error) {
	if t == declaration.TopologyUndefined {
		return wgpu.PrimitiveTopologyTriangleList, nil
	}
	if v, ok := topologies[t]; ok {
		return v, nil
	}
	return wgpu.PrimitiveTopologyTriangleList, fmt.Errorf("%w: topology %s", ErrUnsupported, t)
}

// TextureFormat converts a render target or depth format.
//
// Parameters:
//   - f: the format
//
// Returns:
//   - wgpu.TextureFormat: the WebGPU format, TextureFormatUndefined for FormatUnknown
//   - error: wrapping ErrUnsupported for formats without a WebGPU equivalent
func TextureFormat(f declaration.Format) (wgpu.TextureFormat, error) {
	if v, ok := textureFormats[f]; ok {
		return v, nil
	}
	return wgpu.TextureFormatUndefined, fmt.Errorf("%w: format %s", ErrUnsupported, f)
}

// PrimitiveState converts a rasterizer state and pass topology. Direct3D treats clockwise
// triangles as front facing unless FrontCounterClockwise is set.
//
// Parameters:
//   - rs: the rasterizer state
//   - topology: the pass topology
//
// Returns:
//   - wgpu.PrimitiveState: the primitive state
//   - error: wrapping ErrUnsupported for wireframe fill and unsupported topologies
func PrimitiveState(rs declaration.RasterizerState, topology declaration.Topology) (wgpu.PrimitiveState, error) {
	var ps wgpu.PrimitiveState
	if rs.FillMode == declaration.FillWireframe {
		return ps, fmt.Errorf("%w: wireframe fill", ErrUnsupported)
	}
	topo, err := Topology(topology)
	if err != nil {
		return ps, err
	}
	ps.Topology = topo
	ps.FrontFace = wgpu.FrontFaceCW
	if rs.FrontCounterClockwise {
		ps.FrontFace = wgpu.FrontFaceCCW
	}
	switch rs.CullMode {
	case declaration.CullFront:
		ps.CullMode = wgpu.CullModeFront
	case declaration.CullBack:
		ps.CullMode = wgpu.CullModeBack
	default:
		ps.CullMode = wgpu.CullModeNone
	}
	return ps, nil
}

func stencilFace(f declaration.StencilFace) wgpu.StencilFaceState {
	return wgpu.StencilFaceState{
		Compare:     compareFunctions[f.Func],
		FailOp:      stencilOperations[f.FailOp],
		DepthFailOp: stencilOperations[f.DepthFailOp],
		PassOp:      stencilOperations[f.PassOp],
	}
}

// DepthStencilState converts a depth-stencil state. The depth bias comes from the rasterizer
// state, which is where Direct3D keeps it.
//
// Parameters:
//   - ds: the depth-stencil state
//   - rs: the rasterizer state
//   - format: the depth buffer format
//
// Returns:
//   - *wgpu.DepthStencilState: the depth-stencil state
//   - error: wrapping ErrUnsupported when format is not a depth format
func DepthStencilState(ds declaration.DepthStencilState, rs declaration.RasterizerState, format declaration.Format) (*wgpu.DepthStencilState, error) {
	if !format.IsDepth() {
		return nil, fmt.Errorf("%w: %s is not a depth format", ErrUnsupported, format)
	}
	wf, err := TextureFormat(format)
	if err != nil {
		return nil, err
	}
	out := &wgpu.DepthStencilState{
		Format:              wf,
		DepthWriteEnabled:   ds.DepthEnable && ds.DepthWriteMask == declaration.DepthWriteAll,
		DepthCompare:        wgpu.CompareFunctionAlways,
		DepthBias:           rs.DepthBias,
		DepthBiasSlopeScale: rs.SlopeScaledDepthBias,
		DepthBiasClamp:      rs.DepthBiasClamp,
		StencilFront:        wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
		StencilBack:         wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
	}
	if ds.DepthEnable {
		out.DepthCompare = compareFunctions[ds.DepthFunc]
	}
	if ds.StencilEnable {
		out.StencilFront = stencilFace(ds.FrontFace)
		out.StencilBack = stencilFace(ds.BackFace)
		out.StencilReadMask = uint32(ds.StencilReadMask)
		out.StencilWriteMask = uint32(ds.StencilWriteMask)
	}
	return out, nil
}

// BlendState converts the blend configuration of one render target.
//
// Parameters:
//   - rt: the render target blend
//
// Returns:
//   - *wgpu.BlendState: the blend state, nil when blending is disabled
func BlendState(rt declaration.RenderTargetBlend) *wgpu.BlendState {
	if !rt.BlendEnable {
		return nil
	}
	return &wgpu.BlendState{
		Color: wgpu.BlendComponent{
			SrcFactor: blendFactors[rt.SrcBlend],
			DstFactor: blendFactors[rt.DestBlend],
			Operation: blendOperations[rt.BlendOp],
		},
		Alpha: wgpu.BlendComponent{
			SrcFactor: blendFactors[rt.SrcBlendAlpha],
			DstFactor: blendFactors[rt.DestBlendAlpha],
			Operation: blendOperations[rt.BlendOpAlpha],
		},
	}
}

// ColorTargets converts a blend state and the color formats of a render target format state.
// One target is produced per format up to the last non-UNKNOWN one. Without independent blending
// every target uses the blend of target 0.
//
// Parameters:
//   - bs: the blend state
//   - formats: the render target formats
//
// Returns:
//   - []wgpu.ColorTargetState: the color targets
//   - error: wrapping ErrUnsupported for unsupported formats
func ColorTargets(bs declaration.BlendState, formats [declaration.MaxRenderTargets]declaration.Format) ([]wgpu.ColorTargetState, error) {
	count := 0
	for i, f := range formats {
		if f != declaration.FormatUnknown {
			count = i + 1
		}
	}
	out := make([]wgpu.ColorTargetState, count)
	for i := range count {
		f, err := TextureFormat(formats[i])
		if err != nil {
			return nil, err
		}
		rt := bs.RenderTargets[0]
		if bs.IndependentBlendEnable {
			rt = bs.RenderTargets[i]
		}
		out[i] = wgpu.ColorTargetState{
			Format:    f,
			Blend:     BlendState(rt),
			WriteMask: wgpu.ColorWriteMask(rt.WriteMask),
		}
	}
	return out, nil
}

// SamplerDescriptor converts a sampler state. BORDER and MIRROR_ONCE addressing fall back to
// clamping, and the unclamped Direct3D LOD range is clamped to the WebGPU maximum of 32.
//
// Parameters:
//   - label: the sampler label
//   - s: the sampler state
//
// Returns:
//   - wgpu.SamplerDescriptor: the sampler descriptor
func SamplerDescriptor(label string, s declaration.SamplerState) wgpu.SamplerDescriptor {
	filter := func(m declaration.FilterMode) wgpu.FilterMode {
		if m == declaration.FilterLinear {
			return wgpu.FilterModeLinear
		}
		return wgpu.FilterModeNearest
	}
	mip := wgpu.MipmapFilterModeNearest
	if s.Filter.Mip == declaration.FilterLinear {
		mip = wgpu.MipmapFilterModeLinear
	}
	address := func(m declaration.AddressMode) wgpu.AddressMode {
		if v, ok := addressModes[m]; ok {
			return v
		}
		return wgpu.AddressModeClampToEdge
	}

	desc := wgpu.SamplerDescriptor{
		Label:         label,
		AddressModeU:  address(s.AddressU),
		AddressModeV:  address(s.AddressV),
		AddressModeW:  address(s.AddressW),
		MagFilter:     filter(s.Filter.Mag),
		MinFilter:     filter(s.Filter.Min),
		MipmapFilter:  mip,
		LodMinClamp:   max(s.MinLOD, 0),
		LodMaxClamp:   min(s.MaxLOD, 32),
		MaxAnisotropy: 1,
	}
	if s.Filter.Anisotropic {
		desc.MaxAnisotropy = uint16(max(min(s.MaxAnisotropy, math.MaxUint16), 1))
	}
	if s.Filter.Comparison {
		desc.Compare = compareFunctions[s.ComparisonFunc]
	}
	return desc
}

// MultisampleState converts the sample mask of a pass and the alpha-to-coverage flag of its blend
// state.
func MultisampleState(sampleMask uint32, bs declaration.BlendState) wgpu.MultisampleState {
	return wgpu.MultisampleState{
		Count:                  1,
		Mask:                   sampleMask,
		AlphaToCoverageEnabled: bs.AlphaToCoverageEnable,
	}
}

// PipelineState is the fixed-function part of a WebGPU render pipeline for one pass.
type PipelineState struct {
	Primitive    wgpu.PrimitiveState
	DepthStencil *wgpu.DepthStencilState
	Multisample  wgpu.MultisampleState
	Targets      []wgpu.ColorTargetState
}

// PassPipeline assembles the pipeline state of a graphics pass from the state declarations it
// references. A reference that is not set uses the default state of its kind; no depth-stencil
// state is produced when the render target format state has no depth format.
//
// Parameters:
//   - p: the pass
//   - lookup: finds the declaration a pass refers to by name
//
// Returns:
//   - *PipelineState: the pipeline state
//   - error: for missing declarations or states WebGPU cannot express
func PassPipeline(p *declaration.Pass, lookup func(name string) (*declaration.Declaration, bool)) (*PipelineState, error) {
	rs := declaration.DefaultRasterizerState()
	ds := declaration.DefaultDepthStencilState()
	bs := declaration.DefaultBlendState()
	rtf := declaration.DefaultRenderTargetFormatState()

	find := func(name string) (*declaration.Declaration, error) {
		d, ok := lookup(name)
		if !ok {
			return nil, fmt.Errorf("pass %s: state %q not found", p.Name, name)
		}
		return d, nil
	}
	if p.RasterizerState != "" {
		d, err := find(p.RasterizerState)
		if err != nil {
			return nil, err
		}
		if s, ok := d.RasterizerState(); ok {
			rs = *s
		}
	}
	if p.DepthStencilState != "" {
		d, err := find(p.DepthStencilState)
		if err != nil {
			return nil, err
		}
		if s, ok := d.DepthStencilState(); ok {
			ds = *s
		}
	}
	if p.BlendState != "" {
		d, err := find(p.BlendState)
		if err != nil {
			return nil, err
		}
		if s, ok := d.BlendState(); ok {
			bs = *s
		}
	}
	if p.RenderTargetFormatState != "" {
		d, err := find(p.RenderTargetFormatState)
		if err != nil {
			return nil, err
		}
		if s, ok := d.RenderTargetFormatState(); ok {
			rtf = *s
		}
	}

	primitive, err := PrimitiveState(rs, p.Topology)
	if err != nil {
		return nil, fmt.Errorf("pass %s: %w", p.Name, err)
	}
	targets, err := ColorTargets(bs, rtf.Formats)
	if err != nil {
		return nil, fmt.Errorf("pass %s: %w", p.Name, err)
	}
	out := &PipelineState{
		Primitive:   primitive,
		Multisample: MultisampleState(p.SampleMask, bs),
		Targets:     targets,
	}
	if rtf.DepthFormat != declaration.FormatUnknown {
		out.DepthStencil, err = DepthStencilState(ds, rs, rtf.DepthFormat)
		if err != nil {
			return nil, fmt.Errorf("pass %s: %w", p.Name, err)
		}
	}
	return out, nil
}
