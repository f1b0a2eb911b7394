package sfx

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/oxy-sfx/engine/sfx/declaration"
	"github.com/Carmen-Shannon/oxy-sfx/engine/sfx/diag"
	"github.com/Carmen-Shannon/oxy-sfx/engine/sfx/variant"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gogpu/naga/hlsl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const commonHeader = `SamplerState linearSampler : register(s0) { Filter = MIN_MAG_MIP_LINEAR; };
struct Light { float3 position; float range; };
`

const mainEffect = `#include "common.sfxh"
cbuffer PerFrame : register(b0) { float4x4 viewProj; float time; };
Texture2D albedo : register(t0);
RasterizerState NoCull { CullMode = NONE; };
float4 VS() : SV_Position { return 0; }
float4 PS() : SV_Target { return albedo.Sample(linearSampler, float2(0, 0)); }
technique11 Main
{
    pass P0
    {
        SetVertexShader(CompileShader(vs_5_0, VS()));
        SetPixelShader(CompileShader(ps_6_0, PS()));
        SetRasterizerState(NoCull);
    }
}
`

const postEffect = `#include "common.sfxh"
RWTexture2D<float4> target : register(u0);
[numthreads(8, 8, 1)] void Blur() { }
technique11 Post { pass P0 { SetComputeShader(Blur); } }
`

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, src := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	}
	return dir
}

func newTestCompiler(t *testing.T, options ...CompilerBuilderOption) Compiler {
	t.Helper()
	c := NewCompiler(append([]CompilerBuilderOption{WithWorkers(4)}, options...)...)
	t.Cleanup(c.Close)
	return c
}

func TestParseFilesBuildsOneEffect(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"include/common.sfxh": commonHeader,
		"main.sfx":            mainEffect,
		"post.sfx":            postEffect,
	})
	c := newTestCompiler(t, WithIncludeDirs(filepath.Join(dir, "include")), WithProfiling(true))

	e, err := c.ParseFiles(filepath.Join(dir, "main.sfx"), filepath.Join(dir, "post.sfx"))
	require.NoError(t, err)

	assert.Equal(t, []string{"Main", "Post"}, e.Techniques())
	files := e.Files()
	require.Len(t, files, 3)
	assert.Equal(t, filepath.Join(dir, "main.sfx"), files[0])
	assert.Equal(t, filepath.Join(dir, "post.sfx"), files[1])
	assert.Equal(t, filepath.Join(dir, "include", "common.sfxh"), files[2])

	tex, ok := e.Lookup("albedo")
	require.True(t, ok)
	assert.Equal(t, 0, tex.Binding.Slot)

	// Both files include the header, and both copies carry file index 2.
	samplers := 0
	for _, d := range e.Declarations() {
		if d.Name == "linearSampler" {
			samplers++
			assert.Equal(t, 2, d.Pos.FileIndex)
		}
	}
	assert.Equal(t, 2, samplers)

	text, err := e.Extract("NoCull")
	require.NoError(t, err)
	assert.Equal(t, "RasterizerState NoCull { CullMode = NONE; };", text)

	src, ok := e.Source(2)
	require.True(t, ok)
	assert.Equal(t, commonHeader, src)

	vs, ok := e.Lookup("VS")
	require.True(t, ok)
	assert.Equal(t, 1, vs.RefCount)

	var unused []string
	for _, d := range e.Unreferenced() {
		unused = append(unused, d.Name)
	}
	assert.Contains(t, unused, "Light")
	assert.Contains(t, unused, "albedo")
	assert.NotContains(t, unused, "NoCull")
}

func TestParseFilesCollectsErrors(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"broken.sfx":   "Texture2D a : register(t0)\nfloat b;",
		"dangling.sfx": "technique11 T { pass P { SetPixelShader(Missing); SetRasterizerState(Gone); } }",
	})
	c := newTestCompiler(t)

	_, err := c.ParseFiles(filepath.Join(dir, "broken.sfx"), filepath.Join(dir, "missing.sfx"))
	require.Error(t, err)
	var list diag.List
	require.ErrorAs(t, err, &list)
	require.Len(t, list, 2)
	assert.True(t, errors.Is(list[0], diag.ErrSyntax))
	assert.True(t, errors.Is(list[1], os.ErrNotExist))

	_, err = c.ParseFiles(filepath.Join(dir, "dangling.sfx"))
	require.ErrorAs(t, err, &list)
	assert.Len(t, list, 2)
	assert.True(t, errors.Is(err, diag.ErrUnresolvedReference))
}

func TestParseErrorsFormatTogether(t *testing.T) {
	c := newTestCompiler(t)
	_, err := c.ParseSources(
		Source{Name: "a.sfx", Text: "Texture2D ;"},
		Source{Name: "b.sfx", Text: "SamplerState ;"},
	)
	var list diag.List
	require.ErrorAs(t, err, &list)
	require.Len(t, list, 2)

	out := diag.Format(err)
	assert.Contains(t, out, "a.sfx:1:11")
	assert.Contains(t, out, "b.sfx:1:")
}

func TestParseSourcesIsDeterministic(t *testing.T) {
	c := newTestCompiler(t)
	sources := []Source{
		{Name: "a.sfx", Text: "Texture2D tex : register(t0);\nfloat4 PS() : SV_Target { return 0; }\n"},
		{Name: "b.sfx", Text: "technique11 T { pass P { SetPixelShader(PS); } }"},
	}
	first, err := c.ParseSources(sources...)
	require.NoError(t, err)
	second, err := c.ParseSources(sources...)
	require.NoError(t, err)

	require.Len(t, first.Declarations(), len(second.Declarations()))
	for i, d := range first.Declarations() {
		o := second.Declarations()[i]
		assert.Equal(t, d.Name, o.Name)
		assert.Equal(t, d.Source, o.Source)
		assert.Equal(t, d.Binding, o.Binding)
		assert.Equal(t, d.Pos, o.Pos)
	}
	assert.Equal(t, []string{"tex", "PS"}, first.Index().Names())
}

func TestEffectLayoutsAndPermutations(t *testing.T) {
	c := newTestCompiler(t)
	e, err := c.ParseSources(Source{Name: "v.sfx", Text: `
struct Material
{
    float4 color;
#if quality > 1
    float roughness;
#endif
};
cbuffer PerObject : register(b1) { float4x4 world; Material material; };
`})
	require.NoError(t, err)

	l, err := e.Layout("Material", variant.Bindings{"quality": declaration.IntValue(2)})
	require.NoError(t, err)
	assert.Len(t, l.Fields, 2)

	perms, err := e.Permutations("Material", variant.Domain{
		"quality": {declaration.IntValue(0), declaration.IntValue(1), declaration.IntValue(2)},
	})
	require.NoError(t, err)
	assert.Len(t, perms, 2)

	_, err = e.Layout("Nope", nil)
	assert.Error(t, err)

	// PerObject nests a variant struct, so its size is only known once quality is bound.
	resources, err := e.Resources()
	require.NoError(t, err)
	require.Len(t, resources, 1)
	assert.Zero(t, resources[0].Size)
}

func TestEffectExport(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"common.sfxh": commonHeader,
		"main.sfx":    mainEffect,
	})
	c := newTestCompiler(t)
	e, err := c.ParseFiles(filepath.Join(dir, "main.sfx"))
	require.NoError(t, err)

	assert.Equal(t, []string{"vs_5_0", "ps_6_0"}, e.Profiles())
	assert.Equal(t, []string{"VS", "PS"}, e.EntryPoints())
	assert.Equal(t, []declaration.Stage{declaration.StageVertex, declaration.StagePixel}, e.Stages())

	x, err := e.Export(Targets{})
	require.NoError(t, err)
	assert.Empty(t, x.Problems)
	require.Len(t, x.Resources, 3)

	assert.Equal(t, hlsl.ShaderModel6_0, x.HLSL.ShaderModel)
	require.NotNil(t, x.GLSL)
	require.NotNil(t, x.MSL)
	assert.Len(t, x.MSL.PerEntryPointMap, 2)

	for _, r := range x.Resources {
		if r.Name == "PerFrame" {
			assert.Equal(t, uint64(80), r.Size)
		}
	}

	require.Len(t, x.BindGroups, 1)
	for _, entry := range x.BindGroups[0].Entries {
		assert.Equal(t, wgpu.ShaderStageVertex|wgpu.ShaderStageFragment, entry.Visibility)
	}

	pl, ok := x.Pipelines["Main/P0"]
	require.True(t, ok)
	assert.Equal(t, "PS", pl.EntryPoint(declaration.StagePixel))
	require.NotNil(t, pl.State())
	assert.Equal(t, wgpu.CullModeNone, pl.State().Primitive.CullMode)

	model := hlsl.ShaderModel5_1
	x, err = e.Export(Targets{ShaderModel: &model})
	require.NoError(t, err)
	assert.Equal(t, hlsl.ShaderModel5_1, x.HLSL.ShaderModel)
}
