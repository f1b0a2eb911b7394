package declaration

import (
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-sfx/common"
	"github.com/Carmen-Shannon/oxy-sfx/engine/sfx/restype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeclarationKinds(t *testing.T) {
	tests := []struct {
		body Body
		want Type
		res  restype.ShaderResourceType
	}{
		{&Texture{ResourceType: restype.Texture2D}, TypeTexture, restype.Texture2D},
		{&Sampler{ResourceType: restype.Sampler, State: DefaultSamplerState()}, TypeSampler, restype.Sampler},
		{&Buffer{ResourceType: restype.StructuredBuffer, ElementType: "Light"}, TypeBuffer, restype.StructuredBuffer},
		{&Struct{}, TypeStruct, restype.Unknown},
		{&ConstantBuffer{}, TypeConstantBuffer, restype.ConstantBuffer},
		{&NamedConstantBuffer{InstanceName: "cb"}, TypeNamedConstantBuffer, restype.ConstantBuffer},
		{&BlendState{}, TypeBlendState, restype.Unknown},
		{&RasterizerState{}, TypeRasterizerState, restype.Unknown},
		{&DepthStencilState{}, TypeDepthState, restype.Unknown},
		{&RenderTargetFormatState{}, TypeRenderTargetFormatState, restype.Unknown},
		{&Variable{TypeName: "float4"}, TypeVariable, restype.Unknown},
		{&Function{ReturnType: "float4"}, TypeFunction, restype.Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			d := New("x", tt.body)
			assert.Equal(t, tt.want, d.Type())
			assert.Equal(t, tt.res, d.ResourceType())
			assert.Equal(t, -1, d.Binding.Slot)
			assert.Equal(t, -1, d.Binding.Group)
			assert.Equal(t, 0, d.Binding.Space)
		})
	}
}

func TestStructAccessorCoversConstantBuffers(t *testing.T) {
	cb := &NamedConstantBuffer{InstanceName: "perFrame"}
	cb.AddMember(Member{Type: "float4x4", Name: "view"})
	d := New("PerFrame", cb)

	s, ok := d.Struct()
	require.True(t, ok)
	require.Len(t, s.Members, 1)
	assert.False(t, s.HasVariants)

	_, ok = New("tex", &Texture{}).Struct()
	assert.False(t, ok)
}

func TestAddMemberTracksVariants(t *testing.T) {
	var s Struct
	s.AddMember(Member{Type: "float4", Name: "color"})
	assert.False(t, s.HasVariants)
	s.AddMember(Member{Type: "float", Name: "fade", Condition: VariantCondition{Variable: "useFade", Test: Equal, Value: IntValue(1)}})
	s.AddMember(Member{Type: "float", Name: "scale", Condition: VariantCondition{Variable: "quality", Test: Greater, Value: IntValue(2)}})
	assert.True(t, s.HasVariants)
	assert.Equal(t, []string{"quality", "useFade"}, s.VariantVariables())
}

func TestVariantTestBits(t *testing.T) {
	assert.Equal(t, Greater|Equal, GreaterEqual)
	assert.Equal(t, Less|Equal, LessEqual)
	for _, tt := range []VariantTest{NotEqual, Equal, Greater, Less, GreaterEqual, LessEqual} {
		got, ok := ParseVariantTest(tt.String())
		require.True(t, ok)
		assert.Equal(t, tt, got)
		assert.Equal(t, tt, tt.Negate().Negate())
	}
	_, ok := ParseVariantTest("=")
	assert.False(t, ok)
}

func TestVariantValue(t *testing.T) {
	tests := []struct {
		in   string
		want VariantValue
	}{
		{"1", IntValue(1)},
		{"0x10", IntValue(16)},
		{"-3", IntValue(-3)},
		{"2u", IntValue(2)},
		{"1.5", FloatValue(1.5)},
		{"2.0f", FloatValue(2)},
		{"1e3", FloatValue(1000)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseVariantValue(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseVariantValue("abc")
	assert.Error(t, err)

	c, err := IntValue(1).Compare(IntValue(2))
	require.NoError(t, err)
	assert.Equal(t, -1, c)
	c, err = FloatValue(2.5).Compare(FloatValue(2.5))
	require.NoError(t, err)
	assert.Equal(t, 0, c)
	_, err = IntValue(1).Compare(FloatValue(1))
	assert.Error(t, err)
}

func TestStateDefaults(t *testing.T) {
	r := DefaultRasterizerState()
	assert.Equal(t, FillSolid, r.FillMode)
	assert.Equal(t, CullBack, r.CullMode)
	assert.True(t, r.DepthClipEnable)
	assert.False(t, r.FrontCounterClockwise)

	d := DefaultDepthStencilState()
	assert.True(t, d.DepthEnable)
	assert.Equal(t, DepthWriteAll, d.DepthWriteMask)
	assert.Equal(t, CompareLess, d.DepthFunc)
	assert.Equal(t, uint8(0xFF), d.StencilReadMask)
	assert.Equal(t, CompareAlways, d.BackFace.Func)

	b := DefaultBlendState()
	for _, rt := range b.RenderTargets {
		assert.False(t, rt.BlendEnable)
		assert.Equal(t, BlendOne, rt.SrcBlend)
		assert.Equal(t, BlendZero, rt.DestBlend)
		assert.Equal(t, uint8(0xF), rt.WriteMask)
	}

	s := DefaultSamplerState()
	assert.Equal(t, "MIN_MAG_MIP_POINT", s.Filter.String())
	assert.Equal(t, AddressWrap, s.AddressU)
	assert.Equal(t, uint32(1), s.MaxAnisotropy)
	assert.Equal(t, float32(math.MaxFloat32), s.MaxLOD)
}

func TestRasterizerSet(t *testing.T) {
	r := DefaultRasterizerState()
	require.NoError(t, r.Set("FillMode", -1, Ident("WIREFRAME")))
	require.NoError(t, r.Set("cullmode", -1, Ident("D3D11_CULL_NONE")))
	require.NoError(t, r.Set("DepthBias", -1, Number(-4)))
	require.NoError(t, r.Set("FrontCounterClockwise", -1, Ident("true")))
	assert.Equal(t, FillWireframe, r.FillMode)
	assert.Equal(t, CullNone, r.CullMode)
	assert.Equal(t, int32(-4), r.DepthBias)
	assert.True(t, r.FrontCounterClockwise)

	assert.Error(t, r.Set("FillMode", -1, Ident("DOTTED")))
	assert.Error(t, r.Set("Bogus", -1, Ident("TRUE")))
	assert.Error(t, r.Set("CullMode", 0, Ident("BACK")))
}

func TestDepthStencilSet(t *testing.T) {
	d := DefaultDepthStencilState()
	require.NoError(t, d.Set("DepthWriteMask", -1, Ident("ZERO")))
	require.NoError(t, d.Set("DepthFunc", -1, Ident("LESS_EQUAL")))
	require.NoError(t, d.Set("FrontFaceStencilPass", -1, Ident("INCR_SAT")))
	require.NoError(t, d.Set("BackFaceStencilFunc", -1, Ident("D3D11_COMPARISON_EQUAL")))
	require.NoError(t, d.Set("StencilReadMask", -1, Number(0x0F)))
	assert.Equal(t, DepthWriteZero, d.DepthWriteMask)
	assert.Equal(t, CompareLessEqual, d.DepthFunc)
	assert.Equal(t, StencilIncrSat, d.FrontFace.PassOp)
	assert.Equal(t, CompareEqual, d.BackFace.Func)
	assert.Equal(t, uint8(0x0F), d.StencilReadMask)

	assert.Error(t, d.Set("StencilReadMask", -1, Number(256)))
	assert.Error(t, d.Set("FaceStencilPass", -1, Ident("KEEP")))
}

func TestBlendSet(t *testing.T) {
	b := DefaultBlendState()
	require.NoError(t, b.Set("BlendEnable", 0, Ident("TRUE")))
	require.NoError(t, b.Set("SrcBlend", -1, Ident("SRC_ALPHA")))
	require.NoError(t, b.Set("DestBlend", -1, Ident("INV_SRC_ALPHA")))
	require.NoError(t, b.Set("RenderTargetWriteMask", 1, Number(0x7)))

	assert.True(t, b.RenderTargets[0].BlendEnable)
	assert.False(t, b.RenderTargets[1].BlendEnable)
	for _, rt := range b.RenderTargets {
		assert.Equal(t, BlendSrcAlpha, rt.SrcBlend)
		assert.Equal(t, BlendInvSrcAlpha, rt.DestBlend)
	}
	assert.Equal(t, uint8(0x7), b.RenderTargets[1].WriteMask)
	assert.Equal(t, uint8(0xF), b.RenderTargets[2].WriteMask)

	assert.Error(t, b.Set("BlendEnable", MaxRenderTargets, Ident("TRUE")))
	assert.Error(t, b.Set("AlphaToCoverageEnable", 0, Ident("TRUE")))
}

func TestSamplerSet(t *testing.T) {
	s := DefaultSamplerState()
	require.NoError(t, s.Set("Filter", -1, Ident("MIN_MAG_LINEAR_MIP_POINT")))
	require.NoError(t, s.Set("AddressU", -1, Ident("Clamp")))
	require.NoError(t, s.Set("BorderColor", -1, Value{Text: "float4(0,0,0,1)", Numbers: []float64{0, 0, 0, 1}}))
	assert.Equal(t, Filter{Min: FilterLinear, Mag: FilterLinear, Mip: FilterPoint}, s.Filter)
	assert.Equal(t, AddressClamp, s.AddressU)
	assert.Equal(t, AddressWrap, s.AddressV)
	assert.Equal(t, [4]float32{0, 0, 0, 1}, s.BorderColor)

	assert.Error(t, s.Set("BorderColor", -1, Number(1)))
}

func TestParseFilter(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"MIN_MAG_MIP_LINEAR", "MIN_MAG_MIP_LINEAR"},
		{"MinMagMipPoint", "MIN_MAG_MIP_POINT"},
		{"D3D11_FILTER_MIN_POINT_MAG_MIP_LINEAR", "MIN_POINT_MAG_MIP_LINEAR"},
		{"MIN_LINEAR_MAG_POINT_MIP_LINEAR", "MIN_LINEAR_MAG_POINT_MIP_LINEAR"},
		{"COMPARISON_MIN_MAG_LINEAR_MIP_POINT", "COMPARISON_MIN_MAG_LINEAR_MIP_POINT"},
		{"ANISOTROPIC", "ANISOTROPIC"},
		{"LINEAR", "MIN_MAG_MIP_LINEAR"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			f, err := ParseFilter(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, f.String())
		})
	}
	for _, bad := range []string{"", "MIN_MAG", "CUBIC", "POINT_LINEAR"} {
		_, err := ParseFilter(bad)
		assert.Error(t, err, bad)
	}
}

func TestRenderTargetFormatSet(t *testing.T) {
	s := DefaultRenderTargetFormatState()
	require.NoError(t, s.Set("Format", 1, Ident("RGBA_16_FLOAT")))
	require.NoError(t, s.Set("Format", -1, Ident("DXGI_FORMAT_R8G8B8A8_UNORM")))
	require.NoError(t, s.Set("DepthFormat", -1, Ident("D_32_FLOAT")))
	assert.Equal(t, FormatRGBA8Unorm, s.Formats[0])
	assert.Equal(t, FormatRGBA16Float, s.Formats[1])
	assert.Equal(t, FormatUnknown, s.Formats[2])
	assert.Equal(t, FormatD32Float, s.DepthFormat)

	assert.Error(t, s.Set("DepthFormat", -1, Ident("RGBA_8_UNORM")))
	assert.Error(t, s.Set("Format", -1, Ident("RGBA_7_UNORM")))
}

func TestParseTopology(t *testing.T) {
	for in, want := range map[string]Topology{
		"TriangleList":                          TopologyTriangleList,
		"TRIANGLE_STRIP":                        TopologyTriangleStrip,
		"D3D11_PRIMITIVE_TOPOLOGY_LINELIST":     TopologyLineList,
		"D3D_PRIMITIVE_TOPOLOGY_POINTLIST":      TopologyPointList,
		"D3D11_PRIMITIVE_TOPOLOGY_3_CONTROL_POINT_PATCHLIST": TopologyPatchList,
	} {
		got, err := ParseTopology(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseTopology("Quads")
	assert.Error(t, err)
}

func TestPassValidate(t *testing.T) {
	pos := common.Position{FileLine: 1}
	tests := []struct {
		name  string
		build func(p *Pass)
		ok    bool
	}{
		{"graphics", func(p *Pass) {
			p.Shaders[StageVertex] = ShaderRef{Name: "VS"}
			p.Shaders[StagePixel] = ShaderRef{Name: "PS"}
			p.Topology = TopologyTriangleList
		}, true},
		{"compute", func(p *Pass) { p.Shaders[StageCompute] = ShaderRef{Name: "CS"} }, true},
		{"ray tracing", func(p *Pass) {
			p.Shaders[StageRayGeneration] = ShaderRef{Name: "RayGen"}
			p.Shaders[StageMiss] = ShaderRef{Name: "Miss"}
			p.HitGroups = []HitGroup{{Name: "HG", ClosestHit: "CH"}}
			p.MaxPayloadSize = 16
		}, true},
		{"compute with ray generation", func(p *Pass) {
			p.Shaders[StageCompute] = ShaderRef{Name: "CS"}
			p.Shaders[StageRayGeneration] = ShaderRef{Name: "RayGen"}
		}, false},
		{"compute with topology", func(p *Pass) {
			p.Shaders[StageCompute] = ShaderRef{Name: "CS"}
			p.Topology = TopologyPointList
		}, false},
		{"graphics with hit group", func(p *Pass) {
			p.Shaders[StagePixel] = ShaderRef{Name: "PS"}
			p.HitGroups = []HitGroup{{Name: "HG"}}
		}, false},
		{"hull without domain", func(p *Pass) {
			p.Shaders[StageVertex] = ShaderRef{Name: "VS"}
			p.Shaders[StageHull] = ShaderRef{Name: "HS"}
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPass("P0", pos)
			tt.build(p)
			err := p.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestPassSetShaderTwice(t *testing.T) {
	p := NewPass("P0", common.Position{})
	require.NoError(t, p.SetShader(StagePixel, ShaderRef{Name: "PS"}))
	assert.Error(t, p.SetShader(StagePixel, ShaderRef{Name: "PS2"}))
	assert.Equal(t, "PS", p.Shader(StagePixel))
	assert.Equal(t, FamilyGraphics, p.Family())
}

func TestTechniquePassOrder(t *testing.T) {
	tech := NewTechnique("Main", "", common.Position{})
	for _, n := range []string{"Z", "A", "M"} {
		require.NoError(t, tech.AddPass(NewPass(n, common.Position{})))
	}
	assert.Error(t, tech.AddPass(NewPass("A", common.Position{})))
	var names []string
	for _, p := range tech.Passes() {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"Z", "A", "M"}, names)
	_, ok := tech.Pass("M")
	assert.True(t, ok)
}
