package bindmap

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-sfx/engine/sfx/declaration"
	"github.com/Carmen-Shannon/oxy-sfx/engine/sfx/parser"
	"github.com/Carmen-Shannon/oxy-sfx/engine/sfx/restype"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gogpu/naga/glsl"
	"github.com/gogpu/naga/hlsl"
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/naga/msl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sceneSource = `
cbuffer Frame : register(b0) { float4 tint; };
Texture2D albedo : register(t0);
Texture2D normal;
SamplerState samp : register(s0);
RWTexture2D<float4> output;
[[vk::binding(3, 1)]] StructuredBuffer<float4> lights;
`

func collect(t *testing.T, src string) []Resource {
	t.Helper()
	res, err := parser.Parse(src, 0)
	require.NoError(t, err)
	resources, err := Collect(res.Declarations, DefaultShifts)
	require.NoError(t, err)
	return resources
}

func byName(t *testing.T, resources []Resource, name string) Resource {
	t.Helper()
	for _, r := range resources {
		if r.Name == name {
			return r
		}
	}
	require.Failf(t, "resource not found", "%q", name)
	return Resource{}
}

func TestCollectAssignsCoordinates(t *testing.T) {
	resources := collect(t, sceneSource)
	require.Len(t, resources, 6)

	tests := []struct {
		name           string
		class          hlsl.RegisterType
		register       uint32
		group, binding uint32
		auto           bool
	}{
		{"Frame", hlsl.RegisterTypeB, 0, 0, 0, false},
		{"albedo", hlsl.RegisterTypeT, 0, 0, 16, false},
		{"normal", hlsl.RegisterTypeT, 4, 0, 20, true},
		{"samp", hlsl.RegisterTypeS, 0, 0, 32, false},
		{"output", hlsl.RegisterTypeU, 0, 0, 48, true},
		{"lights", hlsl.RegisterTypeT, 3, 1, 3, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := byName(t, resources, tt.name)
			assert.Equal(t, tt.class, r.Class)
			assert.Equal(t, tt.register, r.Register)
			assert.Equal(t, tt.group, r.Group)
			assert.Equal(t, tt.binding, r.Binding)
			assert.Equal(t, tt.auto, r.Auto)
		})
	}
	assert.Equal(t, []uint32{0, 1}, Groups(resources))
}

func TestCollectArrays(t *testing.T) {
	resources := collect(t, `
Texture2D shadows[4] : register(t8);
Texture2D after;
Texture2D textures[] : register(t0, space1);
`)
	shadows := byName(t, resources, "shadows")
	assert.Equal(t, uint32(4), shadows.Count)

	after := byName(t, resources, "after")
	assert.Equal(t, uint32(12), after.Register)

	textures := byName(t, resources, "textures")
	assert.True(t, textures.Unbounded)
	assert.Equal(t, uint8(1), textures.Space)
	assert.Equal(t, uint32(1), textures.Group)
	assert.Equal(t, uint32(16), textures.Binding)
}

func TestCollectConflicts(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"same register", "Texture2D a : register(t1); Texture2D b : register(t1);"},
		{"overlapping array", "Texture2D a[2] : register(t0); Texture2D b : register(t1);"},
		{"same binding", "[[vk::binding(0)]] Texture2D a; cbuffer C : register(b0) { float x; };"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := parser.Parse(tt.src, 0)
			require.NoError(t, err)
			_, err = Collect(res.Declarations, DefaultShifts)
			assert.ErrorIs(t, err, ErrBindingConflict)
		})
	}
}

func TestCollectRejectsWideSpaces(t *testing.T) {
	res, err := parser.Parse("Texture2D a : register(t0, space300); Texture2D b : register(t0, space44);", 0)
	require.NoError(t, err)
	_, err = Collect(res.Declarations, DefaultShifts)
	assert.ErrorIs(t, err, ErrUnsupported)
	assert.NotErrorIs(t, err, ErrBindingConflict)
	assert.ErrorContains(t, err, "register space 300")

	resources := collect(t, "Texture2D a : register(t0, space255);")
	assert.Equal(t, uint8(255), resources[0].Space)
}

func TestCollectCustomShifts(t *testing.T) {
	res, err := parser.Parse("Texture2D a : register(t2); SamplerState s : register(s2);", 0)
	require.NoError(t, err)
	resources, err := Collect(res.Declarations, Shifts{T: 100, S: 200})
	require.NoError(t, err)
	assert.Equal(t, uint32(102), resources[0].Binding)
	assert.Equal(t, uint32(202), resources[1].Binding)
}

func TestRegisterClass(t *testing.T) {
	assert.Equal(t, hlsl.RegisterTypeB, RegisterClass(restype.ConstantBuffer))
	assert.Equal(t, hlsl.RegisterTypeS, RegisterClass(restype.SamplerComparison))
	assert.Equal(t, hlsl.RegisterTypeU, RegisterClass(restype.RWStructuredBuffer))
	assert.Equal(t, hlsl.RegisterTypeT, RegisterClass(restype.TextureCube))
	assert.Equal(t, hlsl.RegisterTypeT, RegisterClass(restype.AccelerationStructure))
}

func TestHLSLOptions(t *testing.T) {
	resources := collect(t, sceneSource+"Texture2D shadows[4] : register(t8, space2);\n")
	opts := HLSLOptions(resources, hlsl.ShaderModel6_0)

	assert.Equal(t, hlsl.ShaderModel6_0, opts.ShaderModel)
	assert.False(t, opts.FakeMissingBindings)
	assert.Len(t, opts.BindingMap, 7)

	albedo := opts.BindingMap[hlsl.ResourceBinding{Group: 0, Binding: 16}]
	assert.Equal(t, uint32(0), albedo.Register)
	assert.Nil(t, albedo.BindingArraySize)

	lights := opts.BindingMap[hlsl.ResourceBinding{Group: 1, Binding: 3}]
	assert.Equal(t, uint32(3), lights.Register)

	shadows := opts.BindingMap[hlsl.ResourceBinding{Group: 2, Binding: 24}]
	assert.Equal(t, uint8(2), shadows.Space)
	assert.Equal(t, uint32(8), shadows.Register)
	require.NotNil(t, shadows.BindingArraySize)
	assert.Equal(t, uint32(4), *shadows.BindingArraySize)
}

func TestParseShaderModel(t *testing.T) {
	for in, want := range map[string]hlsl.ShaderModel{
		"5.1":     hlsl.ShaderModel5_1,
		"6_0":     hlsl.ShaderModel6_0,
		"sm_6_6":  hlsl.ShaderModel6_6,
		"ps_5_0":  hlsl.ShaderModel5_0,
		"lib_6_3": hlsl.ShaderModel6_3,
	} {
		got, err := ParseShaderModel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseShaderModel("vs_4_0")
	assert.Error(t, err)
}

func TestRequiredShaderModel(t *testing.T) {
	assert.Equal(t, hlsl.ShaderModel6_1, RequiredShaderModel([]string{"vs_5_0", "ps_6_1", "fx_5_0"}))
	assert.Equal(t, hlsl.DefaultOptions().ShaderModel, RequiredShaderModel([]string{"fx_5_0"}))
}

func TestGLSLFlattensUnits(t *testing.T) {
	resources := collect(t, sceneSource)
	m, err := GLSL(resources, glsl.Version450)
	require.NoError(t, err)
	assert.Equal(t, glsl.Version450, m.Options.LangVersion)

	want := map[string]GLBinding{
		"Frame":  {Name: "Frame", Class: GLUniformBlock, Unit: 0},
		"albedo": {Name: "albedo", Class: GLTexture, Unit: 0},
		"normal": {Name: "normal", Class: GLTexture, Unit: 1},
		"samp":   {Name: "samp", Class: GLSampler, Unit: 0},
		"output": {Name: "output", Class: GLImage, Unit: 0},
		"lights": {Name: "lights", Class: GLStorageBlock, Unit: 0},
	}
	require.Len(t, m.Bindings, len(want))
	for name, b := range want {
		got, ok := m.Binding(name)
		require.True(t, ok, name)
		assert.Equal(t, b, got)
	}
	assert.Equal(t, "Frame", m.Bindings[0].Name)
}

func TestGLSLRejectsStorageOnOldVersions(t *testing.T) {
	resources := collect(t, sceneSource)
	_, err := GLSL(resources, glsl.Version330)
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = GLSL(resources, glsl.VersionES310)
	assert.NoError(t, err)
}

func TestParseGLSLVersion(t *testing.T) {
	for in, want := range map[string]glsl.Version{
		"330":      glsl.Version330,
		"450 core": glsl.Version450,
		"300 es":   glsl.VersionES300,
		"310es":    glsl.VersionES310,
	} {
		got, err := ParseGLSLVersion(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseGLSLVersion("120")
	assert.Error(t, err)
}

func TestMSLResources(t *testing.T) {
	resources := collect(t, sceneSource)
	table, err := MSLResources(resources)
	require.NoError(t, err)

	slot := func(group, binding uint32) msl.BindTarget {
		return table.Resources[ir.ResourceBinding{Group: group, Binding: binding}]
	}
	require.NotNil(t, slot(0, 0).Buffer)
	assert.Equal(t, uint8(0), *slot(0, 0).Buffer)
	require.NotNil(t, slot(0, 20).Texture)
	assert.Equal(t, uint8(1), *slot(0, 20).Texture)
	require.NotNil(t, slot(0, 32).Sampler)
	assert.Equal(t, uint8(0), *slot(0, 32).Sampler)

	output := slot(0, 48)
	require.NotNil(t, output.Texture)
	assert.Equal(t, uint8(2), *output.Texture)
	assert.True(t, output.Mutable)

	require.NotNil(t, slot(1, 3).Buffer)
	assert.Equal(t, uint8(1), *slot(1, 3).Buffer)

	opts, err := MSLOptions(resources, []string{"VS", "PS"}, msl.Version2_1)
	require.NoError(t, err)
	assert.Equal(t, msl.Version2_1, opts.LangVersion)
	assert.Len(t, opts.PerEntryPointMap, 2)
}

func TestMSLRejectsUnbounded(t *testing.T) {
	resources := collect(t, "Texture2D textures[] : register(t0, space1);")
	_, err := MSLResources(resources)
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestParseMSLVersion(t *testing.T) {
	v, err := ParseMSLVersion("2.3")
	require.NoError(t, err)
	assert.Equal(t, msl.Version2_3, v)

	_, err = ParseMSLVersion("9.9")
	assert.Error(t, err)
}

func TestBindGroupLayouts(t *testing.T) {
	resources := collect(t, sceneSource)
	for i := range resources {
		if resources[i].Name == "Frame" {
			resources[i].Size = 16
		}
	}
	layouts, err := BindGroupLayouts("scene", resources, wgpu.ShaderStageFragment)
	require.NoError(t, err)
	require.Len(t, layouts, 2)
	assert.Equal(t, "scene group 1", layouts[1].Label)

	group0 := layouts[0].Entries
	require.Len(t, group0, 5)
	assert.Equal(t, wgpu.BufferBindingTypeUniform, group0[0].Buffer.Type)
	assert.Equal(t, uint64(16), group0[0].Buffer.MinBindingSize)
	assert.Equal(t, wgpu.TextureViewDimension2D, group0[1].Texture.ViewDimension)
	assert.Equal(t, wgpu.TextureSampleTypeFloat, group0[1].Texture.SampleType)
	assert.Equal(t, wgpu.SamplerBindingTypeFiltering, group0[3].Sampler.Type)
	assert.Equal(t, wgpu.StorageTextureAccessReadWrite, group0[4].StorageTexture.Access)
	assert.Equal(t, wgpu.TextureFormatRGBA32Float, group0[4].StorageTexture.Format)

	group1 := layouts[1].Entries
	require.Len(t, group1, 1)
	assert.Equal(t, uint32(3), group1[0].Binding)
	assert.Equal(t, wgpu.BufferBindingTypeReadOnlyStorage, group1[0].Buffer.Type)
}

func TestLayoutEntryUnsupported(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"binding array", "Texture2D shadows[4];"},
		{"acceleration structure", "RaytracingAccelerationStructure scene;"},
		{"storage texture element", "RWTexture2D<float3> target;"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resources := collect(t, tt.src)
			_, err := LayoutEntry(resources[0], wgpu.ShaderStageCompute)
			assert.ErrorIs(t, err, ErrUnsupported)
		})
	}
}

func TestLayoutEntryTextures(t *testing.T) {
	resources := collect(t, `
Texture2DMS<float4, 4> msaa;
TextureCubeArray<uint4> cubes;
SamplerComparisonState shadow;
`)
	msaa, err := LayoutEntry(resources[0], wgpu.ShaderStageFragment)
	require.NoError(t, err)
	assert.True(t, msaa.Texture.Multisampled)

	cubes, err := LayoutEntry(resources[1], wgpu.ShaderStageFragment)
	require.NoError(t, err)
	assert.Equal(t, wgpu.TextureViewDimensionCubeArray, cubes.Texture.ViewDimension)
	assert.Equal(t, wgpu.TextureSampleTypeUint, cubes.Texture.SampleType)

	shadow, err := LayoutEntry(resources[2], wgpu.ShaderStageFragment)
	require.NoError(t, err)
	assert.Equal(t, wgpu.SamplerBindingTypeComparison, shadow.Sampler.Type)
}

func TestStageVisibility(t *testing.T) {
	v := StageVisibility([]declaration.Stage{declaration.StageVertex, declaration.StagePixel, declaration.StageGeometry})
	assert.Equal(t, wgpu.ShaderStageVertex|wgpu.ShaderStageFragment, v)
	assert.Equal(t, wgpu.ShaderStageNone, StageVisibility(nil))
}
