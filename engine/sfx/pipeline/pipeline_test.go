package pipeline

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-sfx/common"
	"github.com/Carmen-Shannon/oxy-sfx/engine/sfx/bindmap"
	"github.com/Carmen-Shannon/oxy-sfx/engine/sfx/declaration"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupOf(decls ...*declaration.Declaration) func(string) (*declaration.Declaration, bool) {
	byName := make(map[string]*declaration.Declaration, len(decls))
	for _, d := range decls {
		byName[d.Name] = d
	}
	return func(name string) (*declaration.Declaration, bool) {
		d, ok := byName[name]
		return d, ok
	}
}

func TestRenderPipeline(t *testing.T) {
	compiled := declaration.New("vsMain", &declaration.Variable{
		TypeName: "VertexShader",
		Compiled: &declaration.CompiledShader{Profile: "vs_5_0", Function: "VS"},
	})
	p := declaration.NewPass("P0", common.Position{})
	p.Shaders[declaration.StageVertex] = declaration.ShaderRef{Name: "vsMain"}
	p.Shaders[declaration.StagePixel] = declaration.ShaderRef{Name: "PS", Profile: "ps_5_0"}

	pl, err := FromPass("Main", p, lookupOf(compiled), WithSampleCount(4), WithSurfaceFormat(wgpu.TextureFormatRGBA8Unorm))
	require.NoError(t, err)
	assert.Equal(t, PipelineTypeRender, pl.Type())
	assert.Equal(t, "Main/P0", pl.PipelineKey())
	assert.Equal(t, "VS", pl.EntryPoint(declaration.StageVertex))
	assert.Equal(t, "PS", pl.EntryPoint(declaration.StagePixel))
	assert.Equal(t, []declaration.Stage{declaration.StageVertex, declaration.StagePixel}, pl.Stages())
	require.NotNil(t, pl.State())
	assert.Nil(t, pl.Pipeline().(*wgpu.RenderPipeline))

	vs, fs := &wgpu.ShaderModule{}, &wgpu.ShaderModule{}
	desc, err := pl.RenderDescriptor(nil, Modules{declaration.StageVertex: vs, declaration.StagePixel: fs})
	require.NoError(t, err)
	assert.Equal(t, "Main/P0 Render Pipeline", desc.Label)
	assert.Same(t, vs, desc.Vertex.Module)
	assert.Equal(t, "VS", desc.Vertex.EntryPoint)
	assert.Equal(t, uint32(4), desc.Multisample.Count)
	assert.Nil(t, desc.DepthStencil)
	require.NotNil(t, desc.Fragment)
	assert.Equal(t, "PS", desc.Fragment.EntryPoint)
	require.Len(t, desc.Fragment.Targets, 1)
	assert.Equal(t, wgpu.TextureFormatRGBA8Unorm, desc.Fragment.Targets[0].Format)

	_, err = pl.RenderDescriptor(nil, Modules{declaration.StageVertex: vs})
	assert.ErrorIs(t, err, ErrMissingModule)
	_, err = pl.ComputeDescriptor(nil, Modules{declaration.StageCompute: vs})
	assert.Error(t, err)
}

func TestDepthOnlyPipeline(t *testing.T) {
	p := declaration.NewPass("Shadow", common.Position{})
	p.Shaders[declaration.StageVertex] = declaration.ShaderRef{Name: "VS"}

	pl, err := FromPass("Shadows", p, lookupOf())
	require.NoError(t, err)
	desc, err := pl.RenderDescriptor(nil, Modules{declaration.StageVertex: &wgpu.ShaderModule{}})
	require.NoError(t, err)
	assert.Nil(t, desc.Fragment)
	assert.Equal(t, uint32(1), desc.Multisample.Count)
}

func TestComputePipeline(t *testing.T) {
	p := declaration.NewPass("Blur", common.Position{})
	p.Shaders[declaration.StageCompute] = declaration.ShaderRef{Name: "CS"}

	pl, err := FromPass("Post", p, lookupOf())
	require.NoError(t, err)
	assert.Equal(t, PipelineTypeCompute, pl.Type())
	assert.Nil(t, pl.State())

	cs := &wgpu.ShaderModule{}
	desc, err := pl.ComputeDescriptor(nil, Modules{declaration.StageCompute: cs})
	require.NoError(t, err)
	assert.Equal(t, "Post/Blur Compute Pipeline", desc.Label)
	assert.Equal(t, "CS", desc.Compute.EntryPoint)
	assert.Same(t, cs, desc.Compute.Module)

	_, err = pl.ComputeDescriptor(nil, nil)
	assert.ErrorIs(t, err, ErrMissingModule)
	_, err = pl.RenderDescriptor(nil, nil)
	assert.Error(t, err)
}

func TestUnsupportedPasses(t *testing.T) {
	p := declaration.NewPass("Rays", common.Position{})
	p.Shaders[declaration.StageRayGeneration] = declaration.ShaderRef{Name: "RayGen"}
	_, err := FromPass("RT", p, lookupOf())
	assert.ErrorIs(t, err, bindmap.ErrUnsupported)

	p = declaration.NewPass("P0", common.Position{})
	p.Shaders[declaration.StageVertex] = declaration.ShaderRef{Name: "VS"}
	p.RasterizerState = "Missing"
	_, err = FromPass("Main", p, lookupOf())
	assert.ErrorContains(t, err, `state "Missing" not found`)
}
