package parser

import (
	"errors"
	"fmt"
	"testing"

	"github.com/Carmen-Shannon/oxy-sfx/engine/sfx/declaration"
	"github.com/Carmen-Shannon/oxy-sfx/engine/sfx/diag"
	"github.com/Carmen-Shannon/oxy-sfx/engine/sfx/index"
	"github.com/Carmen-Shannon/oxy-sfx/engine/sfx/restype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, src string) *Result {
	t.Helper()
	res, err := Parse(src, 0)
	require.NoError(t, err)
	return res
}

func findDecl(t *testing.T, res *Result, name string) *declaration.Declaration {
	t.Helper()
	for _, d := range res.Declarations {
		if d.Name == name {
			return d
		}
	}
	require.Failf(t, "declaration not found", "%q", name)
	return nil
}

func TestParseEndToEnd(t *testing.T) {
	res := mustParse(t, `Texture2D tex : register(t0);
SamplerState samp : register(s0);
technique11 Main { pass P0 { SetPixelShader(PS_Main); } }`)

	require.Len(t, res.Declarations, 2)
	tex, samp := res.Declarations[0], res.Declarations[1]

	assert.Equal(t, "tex", tex.Name)
	assert.Equal(t, declaration.TypeTexture, tex.Type())
	assert.Equal(t, restype.Texture2D, tex.ResourceType())
	assert.Equal(t, 0, tex.Binding.Slot)
	assert.Equal(t, byte('t'), tex.Binding.RegisterClass)

	assert.Equal(t, "samp", samp.Name)
	assert.Equal(t, declaration.TypeSampler, samp.Type())
	assert.Equal(t, 0, samp.Binding.Slot)

	tech, ok := res.Technique("Main")
	require.True(t, ok)
	assert.Equal(t, []string{"Main"}, res.TechniqueOrder)
	pass, ok := tech.Pass("P0")
	require.True(t, ok)
	assert.Equal(t, "PS_Main", pass.Shader(declaration.StagePixel))
	assert.Equal(t, []declaration.Stage{declaration.StagePixel}, pass.BoundStages())
	for s := range declaration.StageCount {
		if s != declaration.StagePixel {
			assert.Empty(t, pass.Shader(s), s.String())
		}
	}
}

func TestParseBindingRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		slot  int
		group int
		space int
		class byte
	}{
		{"register only", "Texture2D t : register(t7);", 7, -1, 0, 't'},
		{"register with space", "Texture2D t : register(t4, space2);", 4, -1, 2, 't'},
		{"trailing space", "Texture2D t : register(t4), space(3);", 4, -1, 3, 't'},
		{"vk binding only", "[[vk::binding(5, 1)]] Texture2D t;", 5, 1, 0, 0},
		{"vk binding default set", "[[vk::binding(2)]] Texture2D t;", 2, 0, 0, 0},
		{"vk and register agree", "[[vk::binding(3, 2)]] RWTexture2D<float4> t : register(u3, space1);", 3, 2, 1, 'u'},
		{"uav", "RWStructuredBuffer<uint> t : register(u1);", 1, -1, 0, 'u'},
		{"comparison sampler", "SamplerComparisonState t : register(s2);", 2, -1, 0, 's'},
		{"constant buffer template", "ConstantBuffer<Globals> t : register(b3);", 3, -1, 0, 'b'},
		{"unannotated", "ByteAddressBuffer t;", -1, -1, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := findDecl(t, mustParse(t, tt.src), "t")
			assert.Equal(t, tt.slot, d.Binding.Slot)
			assert.Equal(t, tt.group, d.Binding.Group)
			assert.Equal(t, tt.space, d.Binding.Space)
			assert.Equal(t, tt.class, d.Binding.RegisterClass)
		})
	}
}

func TestParseResourceBodies(t *testing.T) {
	res := mustParse(t, `
Texture2DMS<float4, 4> msaa : register(t0);
StructuredBuffer<Light> lights : register(t1);
Texture2D textures[] : register(t0, space1);
Texture2D shadows[4] : register(t8);
RaytracingAccelerationStructure scene : register(t2);
`)
	msaa := findDecl(t, res, "msaa")
	tex, ok := msaa.Texture()
	require.True(t, ok)
	assert.Equal(t, 4, tex.SampleCount)
	assert.Equal(t, "float4", tex.ElementType)
	assert.Equal(t, restype.Texture2DMS, tex.ResourceType)

	lights := findDecl(t, res, "lights")
	buf, ok := lights.Buffer()
	require.True(t, ok)
	assert.Equal(t, "Light", buf.ElementType)
	assert.Equal(t, "Light", lights.StructureType)

	assert.Equal(t, -1, findDecl(t, res, "textures").Binding.ArraySize)
	assert.Equal(t, 4, findDecl(t, res, "shadows").Binding.ArraySize)
	assert.Equal(t, restype.AccelerationStructure, findDecl(t, res, "scene").ResourceType())
}

func TestParseBindingErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"conflicting slots", "[[vk::binding(1)]] Texture2D t : register(t2);", "conflicts with vk::binding"},
		{"wrong register class", "Texture2D t : register(s0);", "does not match"},
		{"uav class for srv", "RWTexture2D<float> t : register(t0);", "does not match"},
		{"malformed register", "Texture2D t : register(tx);", "malformed register"},
		{"malformed space", "Texture2D t : register(t0, spc1);", "malformed register space"},
		{"zero array", "Texture2D t[0];", "must be positive"},
		{"missing semicolon", "Texture2D t : register(t0)", "expected"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.src, 0)
			require.Error(t, err)
			assert.True(t, errors.Is(err, diag.ErrSyntax))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseIsDeterministic(t *testing.T) {
	src := `
#define LIGHTS 8
cbuffer Frame : register(b0) { float4x4 viewProj; float4 lights[LIGHTS]; };
struct VSOut { float4 pos : SV_Position; float2 uv : TEXCOORD0; };
BlendState Additive { BlendEnable[0] = TRUE; SrcBlend = ONE; DestBlend = ONE; };
float4 PS(VSOut i) : SV_Target { return 1; }
technique11 T { pass P { SetPixelShader(PS); SetBlendState(Additive, float4(0, 0, 0, 0), 0xFFFFFFFF); } }
`
	a, err := Parse(src, 0)
	require.NoError(t, err)
	b, err := Parse(src, 0)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestParseStructAndConstantBuffers(t *testing.T) {
	res := mustParse(t, `
struct Light
{
    float3 position;
    float  radius, intensity;
    float4 color : COLOR0;
};

cbuffer PerObject : register(b1)
{
    row_major float4x4 world : packoffset(c0);
    float4 tint;
}

cbuffer PerFrame : register(b2) { float time; } frame;
`)
	light := findDecl(t, res, "Light")
	s, ok := light.Struct()
	require.True(t, ok)
	require.Len(t, s.Members, 4)
	assert.Equal(t, "radius", s.Members[1].Name)
	assert.Equal(t, "intensity", s.Members[2].Name)
	assert.Equal(t, "float", s.Members[2].Type)
	assert.Equal(t, "COLOR0", s.Members[3].Semantic)

	perObject := findDecl(t, res, "PerObject")
	assert.Equal(t, declaration.TypeConstantBuffer, perObject.Type())
	assert.Equal(t, 1, perObject.Binding.Slot)
	assert.Equal(t, byte('b'), perObject.Binding.RegisterClass)
	s, _ = perObject.Struct()
	assert.Equal(t, "c0", s.Members[0].PackOffset)
	assert.Equal(t, []string{"row_major"}, s.Members[0].Modifiers)

	perFrame := findDecl(t, res, "PerFrame")
	named, ok := perFrame.Body.(*declaration.NamedConstantBuffer)
	require.True(t, ok)
	assert.Equal(t, "frame", named.InstanceName)
	assert.Equal(t, declaration.TypeNamedConstantBuffer, perFrame.Type())
}

func TestParseVariantMembers(t *testing.T) {
	res := mustParse(t, `
cbuffer Material : register(b0)
{
    float4 baseColor;
#if variantVar == 1
    float4 emissive;
#else
    float4 fallback;
#endif
#if quality >= 2.5
    float detail;
#endif
#if useFog
    float fogDensity;
#endif
};`)
	s, ok := findDecl(t, res, "Material").Struct()
	require.True(t, ok)
	require.Len(t, s.Members, 5)
	assert.True(t, s.HasVariants)

	assert.False(t, s.Members[0].Condition.IsSet())

	emissive := s.Members[1].Condition
	assert.Equal(t, "variantVar", emissive.Variable)
	assert.Equal(t, declaration.Equal, emissive.Test)
	assert.Equal(t, declaration.IntValue(1), emissive.Value)

	fallback := s.Members[2].Condition
	assert.Equal(t, "variantVar", fallback.Variable)
	assert.Equal(t, declaration.NotEqual, fallback.Test)

	detail := s.Members[3].Condition
	assert.Equal(t, declaration.GreaterEqual, detail.Test)
	assert.Equal(t, declaration.FloatValue(2.5), detail.Value)

	fog := s.Members[4].Condition
	assert.Equal(t, declaration.NotEqual, fog.Test)
	assert.Equal(t, declaration.IntValue(0), fog.Value)

	assert.Equal(t, []string{"quality", "useFog", "variantVar"}, s.VariantVariables())
}

func TestParseVariantErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"nested if", "#if a == 1\n#if b == 2\nfloat x;\n#endif\n#endif", "nested #if"},
		{"unterminated if", "#if a == 1\nfloat x;", "without matching #endif"},
		{"else without if", "#else\nfloat x;", "#else without matching #if"},
		{"endif without if", "#endif", "#endif without matching #if"},
		{"unknown operator", "#if a ~ 1\nfloat x;\n#endif", "unknown comparison"},
		{"literal variable", "#if 1 == a\nfloat x;\n#endif", "expects a variant variable"},
		{"ifdef", "#ifdef A\nfloat x;\n#endif", "not supported"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("struct S {\n"+tt.body+"\n};", 0)
			require.Error(t, err)
			assert.True(t, errors.Is(err, diag.ErrSyntax))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseTopLevelDirectives(t *testing.T) {
	res := mustParse(t, "#pragma pack_matrix(row_major)\n#define N 3\nTexture2D t[N];\n#undef N\n")
	assert.Equal(t, 3, findDecl(t, res, "t").Binding.ArraySize)

	_, err := Parse("#undef N\nTexture2D t[N];", 0)
	assert.True(t, errors.Is(err, diag.ErrSyntax))

	_, err = Parse("#error nope", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported directive #error")
}

func TestParseConditionalBlocks(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []string
	}{
		{"undefined ifdef", "#ifdef X\nTexture2D a;\n#endif\nTexture2D b;", []string{"b"}},
		{"defined ifdef", "#define X\n#ifdef X\nTexture2D a;\n#endif", []string{"a"}},
		{"else taken", "#ifdef X\nTexture2D a;\n#else\nTexture2D b;\n#endif", []string{"b"}},
		{"else skipped", "#define X 1\n#ifdef X\nTexture2D a;\n#else\nTexture2D b;\n#endif", []string{"a"}},
		{"include guard", "#ifndef G\n#define G\n#ifdef MISSING\nTexture2D hidden;\n#error hidden\n#endif\nTexture2D shown;\n#endif", []string{"shown"}},
		{"guard closed", "#ifndef G\n#define G\nTexture2D a;\n#endif\n#ifndef G\nTexture2D b;\n#endif", []string{"a"}},
		{"undef reopens", "#define G\n#undef G\n#ifndef G\nTexture2D a;\n#endif", []string{"a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := mustParse(t, tt.src)
			var names []string
			for _, d := range res.Declarations {
				names = append(names, d.Name)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestParseConditionalErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"expression if", "#if X > 1\n#endif", "only supported inside struct"},
		{"stray endif", "#endif", "#endif without #ifdef"},
		{"stray else", "#else", "#else without #ifdef"},
		{"double else", "#ifdef X\n#else\n#else\n#endif", "#else without #ifdef"},
		{"no macro", "#ifdef\n#endif", "needs a single macro name"},
		{"open inactive", "#ifdef X\nTexture2D t;", "unterminated #ifdef X"},
		{"open active", "#define X\n#ifdef X\nTexture2D t;", "unterminated #ifdef X"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.src, 0)
			require.Error(t, err)
			assert.True(t, errors.Is(err, diag.ErrSyntax))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseStateBlocks(t *testing.T) {
	res := mustParse(t, `
RasterizerState NoCull { CullMode = NONE; FillMode = Wireframe; DepthBias = -10; };
DepthStencilState DepthRead
{
    DepthEnable = true;
    DepthWriteMask = ZERO;
    DepthFunc = LESS_EQUAL;
    StencilEnable = TRUE;
    FrontFaceStencilPass = D3D11_STENCIL_OP_REPLACE;
};
BlendState Alpha
{
    BlendEnable[0] = TRUE;
    SrcBlend = SRC_ALPHA;
    DestBlend = INV_SRC_ALPHA;
    RenderTargetWriteMask[1] = 0x7;
};
RenderTargetFormatState GBuffer
{
    Format[0] = RGBA_16_FLOAT;
    Format[1] = DXGI_FORMAT_R8G8B8A8_UNORM;
    DepthFormat = D32_FLOAT;
};
SamplerState Shadow : register(s1)
{
    Filter = COMPARISON_MIN_MAG_LINEAR_MIP_POINT;
    AddressU = Clamp;
    ComparisonFunc = LESS;
    BorderColor = float4(1, 1, 1, 1);
};
sampler Legacy = sampler_state { AddressV = MIRROR; };
`)
	rs, ok := findDecl(t, res, "NoCull").RasterizerState()
	require.True(t, ok)
	assert.Equal(t, declaration.CullNone, rs.CullMode)
	assert.Equal(t, declaration.FillWireframe, rs.FillMode)
	assert.Equal(t, int32(-10), rs.DepthBias)
	assert.True(t, rs.DepthClipEnable)

	ds, ok := findDecl(t, res, "DepthRead").DepthStencilState()
	require.True(t, ok)
	assert.Equal(t, declaration.DepthWriteZero, ds.DepthWriteMask)
	assert.Equal(t, declaration.CompareLessEqual, ds.DepthFunc)
	assert.True(t, ds.StencilEnable)
	assert.Equal(t, declaration.StencilReplace, ds.FrontFace.PassOp)
	assert.Equal(t, declaration.StencilKeep, ds.BackFace.PassOp)

	bs, ok := findDecl(t, res, "Alpha").BlendState()
	require.True(t, ok)
	assert.True(t, bs.RenderTargets[0].BlendEnable)
	assert.False(t, bs.RenderTargets[1].BlendEnable)
	for i := range bs.RenderTargets {
		assert.Equal(t, declaration.BlendSrcAlpha, bs.RenderTargets[i].SrcBlend)
	}
	assert.Equal(t, uint8(0x7), bs.RenderTargets[1].WriteMask)
	assert.Equal(t, uint8(0xF), bs.RenderTargets[0].WriteMask)

	rt, ok := findDecl(t, res, "GBuffer").RenderTargetFormatState()
	require.True(t, ok)
	assert.Equal(t, declaration.FormatRGBA16Float, rt.Formats[0])
	assert.Equal(t, declaration.FormatRGBA8Unorm, rt.Formats[1])
	assert.Equal(t, declaration.FormatD32Float, rt.DepthFormat)

	shadow, ok := findDecl(t, res, "Shadow").Sampler()
	require.True(t, ok)
	assert.True(t, shadow.State.Filter.Comparison)
	assert.Equal(t, declaration.FilterLinear, shadow.State.Filter.Min)
	assert.Equal(t, declaration.FilterPoint, shadow.State.Filter.Mip)
	assert.Equal(t, declaration.AddressClamp, shadow.State.AddressU)
	assert.Equal(t, declaration.AddressWrap, shadow.State.AddressV)
	assert.Equal(t, [4]float32{1, 1, 1, 1}, shadow.State.BorderColor)
	assert.Equal(t, 1, findDecl(t, res, "Shadow").Binding.Slot)

	legacy, ok := findDecl(t, res, "Legacy").Sampler()
	require.True(t, ok)
	assert.Equal(t, declaration.AddressMirror, legacy.State.AddressV)
}

func TestParseStateBlockDefaults(t *testing.T) {
	res := mustParse(t, "RasterizerState R {}; DepthStencilState D {}; BlendState B {}; SamplerState S;")
	rs, _ := findDecl(t, res, "R").RasterizerState()
	assert.Equal(t, declaration.DefaultRasterizerState(), *rs)
	ds, _ := findDecl(t, res, "D").DepthStencilState()
	assert.Equal(t, declaration.DefaultDepthStencilState(), *ds)
	bs, _ := findDecl(t, res, "B").BlendState()
	assert.Equal(t, declaration.DefaultBlendState(), *bs)
	ss, _ := findDecl(t, res, "S").Sampler()
	assert.Equal(t, declaration.DefaultSamplerState(), ss.State)
}

func TestParseStateBlockErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"unknown property", "RasterizerState R { Wobble = TRUE; };"},
		{"unknown value", "RasterizerState R { CullMode = SIDEWAYS; };"},
		{"index out of range", "BlendState B { BlendEnable[8] = TRUE; };"},
		{"non depth format", "RenderTargetFormatState F { DepthFormat = RGBA_16_FLOAT; };"},
		{"border color arity", "SamplerState S { BorderColor = float3(0, 0, 0); };"},
		{"missing equals", "BlendState B { SrcBlend ONE; };"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.src, 0)
			require.Error(t, err)
			assert.True(t, errors.Is(err, diag.ErrSyntax))
		})
	}
}

func TestParseFunctionsAndVariables(t *testing.T) {
	res := mustParse(t, `
static const float PI = 3.14159;
float4 Helper(float2 uv);
VSOut VS_Main(float3 pos : POSITION, uint id : SV_VertexID) { VSOut o; o.pos = float4(pos, 1); return o; }
[numthreads(8, 8, 1)]
void CS_Blur(uint3 id : SV_DispatchThreadID) { }
[shader("raygeneration")]
void RayGen() { }
VertexShader vsCompiled = CompileShader(vs_5_0, VS_Main());
`)
	pi := findDecl(t, res, "PI")
	v, ok := pi.Variable()
	require.True(t, ok)
	assert.Equal(t, "float", v.TypeName)
	assert.Equal(t, []string{"static", "const"}, v.Modifiers)
	assert.Equal(t, "3.14159", v.Initializer)

	for _, d := range res.Declarations {
		assert.NotEqual(t, "Helper", d.Name, "prototypes are not declarations")
	}

	vs, ok := findDecl(t, res, "VS_Main").Function()
	require.True(t, ok)
	assert.Equal(t, "VSOut", vs.ReturnType)
	assert.Equal(t, "float3 pos : POSITION, uint id : SV_VertexID", vs.Parameters)

	cs, ok := findDecl(t, res, "CS_Blur").Function()
	require.True(t, ok)
	assert.Equal(t, [3]int{8, 8, 1}, cs.WorkgroupSize)

	rg, ok := findDecl(t, res, "RayGen").Function()
	require.True(t, ok)
	assert.True(t, rg.IsShader)

	compiled, ok := findDecl(t, res, "vsCompiled").Variable()
	require.True(t, ok)
	require.NotNil(t, compiled.Compiled)
	assert.Equal(t, "vs_5_0", compiled.Compiled.Profile)
	assert.Equal(t, "VS_Main", compiled.Compiled.Function)
	assert.Equal(t, "CompileShader(vs_5_0, VS_Main())", compiled.Initializer)
}

func TestParseTechniques(t *testing.T) {
	res := mustParse(t, `
technique11 Forward <string author = "fx";>
{
    pass Opaque
    {
        SetVertexShader(CompileShader(vs_5_0, VS_Main()));
        SetHullShader(NULL);
        SetFragmentShader(PS_Main);
        SetRasterizerState(NoCull);
        SetDepthStencilState(DepthRead, 3);
        SetBlendState(Alpha, float4(0.5, 0.5, 0.5, 1), 0xFF);
        SetRenderTargetFormatState(GBuffer);
        SetTopology(TriangleStrip);
    }
    pass { SetComputeShader(CS_Blur); }
}

group Lighting
{
    technique12 Rays
    {
        pass Trace
        {
            SetRayGenerationShader(RayGen);
            SetMissShader(Miss);
            SetHitGroup("Hit", ClosestHit, NULL, NULL);
            SetRaytracingShaderConfig(16, 8);
            SetRaytracingPipelineConfig(2);
        }
    }
}
`)
	assert.Equal(t, []string{"Forward", "Rays"}, res.TechniqueOrder)

	fwd, ok := res.Technique("Forward")
	require.True(t, ok)
	require.Equal(t, 2, fwd.PassCount())
	opaque := fwd.Passes()[0]
	assert.Equal(t, "Opaque", opaque.Name)
	assert.Equal(t, declaration.ShaderRef{Name: "VS_Main", Profile: "vs_5_0"}, opaque.Shaders[declaration.StageVertex])
	assert.Empty(t, opaque.Shader(declaration.StageHull))
	assert.Equal(t, "PS_Main", opaque.Shader(declaration.StagePixel))
	assert.Equal(t, "NoCull", opaque.RasterizerState)
	assert.Equal(t, "DepthRead", opaque.DepthStencilState)
	assert.Equal(t, uint32(3), opaque.StencilRef)
	assert.Equal(t, "Alpha", opaque.BlendState)
	assert.Equal(t, [4]float32{0.5, 0.5, 0.5, 1}, opaque.BlendFactor)
	assert.Equal(t, uint32(0xFF), opaque.SampleMask)
	assert.Equal(t, "GBuffer", opaque.RenderTargetFormatState)
	assert.Equal(t, declaration.TopologyTriangleStrip, opaque.Topology)

	unnamed := fwd.Passes()[1]
	assert.Equal(t, "pass1", unnamed.Name)
	assert.Equal(t, declaration.FamilyCompute, unnamed.Family())

	rays, ok := res.Technique("Rays")
	require.True(t, ok)
	assert.Equal(t, "Lighting", rays.Group)
	trace, ok := rays.Pass("Trace")
	require.True(t, ok)
	assert.Equal(t, []declaration.HitGroup{{Name: "Hit", ClosestHit: "ClosestHit"}}, trace.HitGroups)
	assert.Equal(t, 16, trace.MaxPayloadSize)
	assert.Equal(t, 8, trace.MaxAttributeSize)
	assert.Equal(t, 2, trace.MaxTraceRecursionDepth)
	assert.Equal(t, declaration.FamilyRayTracing, trace.Family())
}

func TestParseTechniqueErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"unknown command", "technique11 T { pass P { SetWobbleShader(X); } }", `unknown pass command "SetWobbleShader"`},
		{"stage bound twice", "technique11 T { pass P { SetPixelShader(A); SetPixelShader(B); } }", "twice"},
		{"mixed families", "technique11 T { pass P { SetComputeShader(C); SetRayGenerationShader(R); } }", "cannot be combined"},
		{"hull without domain", "technique11 T { pass P { SetVertexShader(V); SetHullShader(H); } }", "hull and domain"},
		{"topology on compute", "technique11 T { pass P { SetComputeShader(C); SetTopology(TriangleList); } }", "only valid for graphics"},
		{"duplicate pass", "technique11 T { pass P { } pass P { } }", "already has a pass"},
		{"duplicate technique", "technique11 T { } technique11 T { }", "already declared"},
		{"stencil ref range", "technique11 T { pass P { SetDepthStencilState(D, 300); } }", "out of range"},
		{"bad topology", "technique11 T { pass P { SetTopology(Hexagons); } }", "topology"},
		{"statement in technique", "technique11 T { float x; }", "expected pass"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.src, 0)
			require.Error(t, err)
			assert.True(t, errors.Is(err, diag.ErrSyntax))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseSyntaxErrorPosition(t *testing.T) {
	_, err := ParseWithContext(NewParseContext("Texture2D a;\nTexture2D b : register(t0)\nfloat c;", 0, WithFileName("scene.sfx")))
	var synErr *diag.SyntaxError
	require.ErrorAs(t, err, &synErr)
	assert.Equal(t, "scene.sfx", synErr.File)
	assert.Equal(t, 3, synErr.Pos.FileLine)
	assert.Equal(t, 1, synErr.Pos.Column)
	assert.Contains(t, synErr.FormatWithContext(), "scene.sfx:3:1")
}

func TestParseIndexSpans(t *testing.T) {
	src := "Texture2D tex : register(t0);\n\nstruct S { float a; };\nfloat4 PS() : SV_Target { return 0; }\n"
	res := mustParse(t, src)

	assert.True(t, res.Index.Frozen())
	assert.Equal(t, []string{"tex", "S", "PS"}, res.Index.Names())

	tests := map[string]string{
		"tex": "Texture2D tex : register(t0);",
		"S":   "struct S { float a; };",
		"PS":  "float4 PS() : SV_Target { return 0; }",
	}
	for name, want := range tests {
		got, err := res.Index.Extract(name, index.SourceMap(res.Sources))
		require.NoError(t, err)
		assert.Equal(t, want, got)
		assert.Equal(t, want, findDecl(t, res, name).Source)
	}

	_, err := res.Index.Extract("te", index.SourceMap(res.Sources))
	assert.ErrorIs(t, err, index.ErrNotFound)
}

func TestParseIncludes(t *testing.T) {
	files := map[string]struct {
		idx int
		src string
	}{
		"shared.sfxh": {1, "SamplerState linearSampler : register(s0);\n#include \"inner.sfxh\"\n"},
		"inner.sfxh":  {2, "Texture2D shared : register(t3);"},
	}
	var calls []string
	resolver := IncludeResolverFunc(func(from int, path string) (int, string, error) {
		calls = append(calls, fmt.Sprintf("%d:%s", from, path))
		f, ok := files[path]
		if !ok {
			return 0, "", fmt.Errorf("%s: not found", path)
		}
		return f.idx, f.src, nil
	})
	ctx := NewParseContext("#include \"shared.sfxh\"\nTexture2D local : register(t0);", 0, WithIncludes(resolver))
	res, err := ParseWithContext(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{"0:shared.sfxh", "1:inner.sfxh"}, calls)
	require.Len(t, res.Declarations, 3)
	assert.Equal(t, []string{"linearSampler", "shared", "local"}, res.Index.Names())

	shared := findDecl(t, res, "shared")
	assert.Equal(t, 2, shared.Pos.FileIndex)
	assert.Equal(t, 1, shared.Pos.FileLine)
	assert.Equal(t, 2, shared.Span.FileIndex)
	assert.Equal(t, 0, shared.Span.Offset)

	local := findDecl(t, res, "local")
	assert.Equal(t, 0, local.Pos.FileIndex)
	assert.Equal(t, 2, local.Pos.FileLine)
	assert.Greater(t, local.Pos.GlobalLine, local.Pos.FileLine)

	assert.Len(t, res.Sources, 3)
	text, err := res.Index.Extract("shared", index.SourceMap(res.Sources))
	require.NoError(t, err)
	assert.Equal(t, "Texture2D shared : register(t3);", text)

	_, err = Parse("#include \"missing.sfxh\"", 0)
	assert.True(t, errors.Is(err, diag.ErrSyntax))
}

func TestParseGuardedIncludes(t *testing.T) {
	files := map[string]struct {
		idx int
		src string
	}{
		"a.sfxh": {1, "#ifndef A_SFXH\n#define A_SFXH\n#include \"b.sfxh\"\nTexture2D fromA;\n#endif\n"},
		"b.sfxh": {2, "#ifndef B_SFXH\n#define B_SFXH\n#include \"a.sfxh\"\nTexture2D fromB;\n#endif\n"},
	}
	var calls []string
	resolver := IncludeResolverFunc(func(from int, path string) (int, string, error) {
		calls = append(calls, path)
		f, ok := files[path]
		if !ok {
			return 0, "", fmt.Errorf("%s: not found", path)
		}
		return f.idx, f.src, nil
	})
	src := "#include \"a.sfxh\"\n#include \"b.sfxh\"\nTexture2D local;"
	res, err := ParseWithContext(NewParseContext(src, 0, WithIncludes(resolver)))
	require.NoError(t, err)

	// The second a.sfxh is skipped before its include of b.sfxh, and the root's b.sfxh is
	// opened but skipped whole.
	assert.Equal(t, []string{"a.sfxh", "b.sfxh", "a.sfxh", "b.sfxh"}, calls)
	assert.Equal(t, []string{"fromB", "fromA", "local"}, res.Index.Names())
}

func TestParseSharedIndexFirstWins(t *testing.T) {
	idx := index.New()
	_, err := ParseWithContext(NewParseContext("Texture2D t : register(t0);\nTexture2D t : register(t1);", 0, WithIndex(idx)))
	require.NoError(t, err)
	span, ok := idx.Lookup("t")
	require.True(t, ok)
	assert.Equal(t, 0, span.Offset)
}
