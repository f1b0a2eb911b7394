package sfx

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-sfx/common"
	"github.com/Carmen-Shannon/oxy-sfx/engine/sfx/bindmap"
	"github.com/Carmen-Shannon/oxy-sfx/engine/sfx/pipeline"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gogpu/naga/glsl"
	"github.com/gogpu/naga/hlsl"
	"github.com/gogpu/naga/msl"
)

// Targets selects the backend versions an effect is exported for.
type Targets struct {
	// ShaderModel is the HLSL shader model. Nil picks the highest model named by the effect's
	// compile profiles.
	ShaderModel *hlsl.ShaderModel
	// GLSL is the GLSL version, glsl.Version450 when zero.
	GLSL glsl.Version
	// MSL is the Metal shading language version, msl.Version2_1 when zero.
	MSL msl.Version
}

// Export holds the binding tables of an effect for every backend. A backend that cannot express
// the effect has a nil table and an entry in Problems.
type Export struct {
	Resources []bindmap.Resource

	HLSL       *hlsl.Options
	GLSL       *bindmap.GLSLMap
	MSL        *msl.Options
	BindGroups []wgpu.BindGroupLayoutDescriptor
	// Pipelines holds the WebGPU pipeline of every graphics and compute pass, keyed
	// "technique/pass".
	Pipelines map[string]pipeline.Pipeline

	// Problems maps a backend name ("hlsl", "glsl", "msl", "wgpu") or a pipeline key to the reason
	// it was not exported.
	Problems map[string]error
}

// Export builds the binding tables of every backend.
//
// Parameters:
//   - targets: the backend versions
//   - opts: applied to every pipeline
//
// Returns:
//   - *Export: the tables
//   - error: only when resources cannot be collected; backend limitations are reported in
//     Export.Problems
func (e *Effect) Export(targets Targets, opts ...pipeline.PipelineBuilderOption) (*Export, error) {
	resources, err := e.Resources()
	if err != nil {
		return nil, err
	}
	out := &Export{
		Resources: resources,
		Pipelines: make(map[string]pipeline.Pipeline),
		Problems:  make(map[string]error),
	}

	model := bindmap.RequiredShaderModel(e.Profiles())
	if targets.ShaderModel != nil {
		model = *targets.ShaderModel
	}
	out.HLSL = bindmap.HLSLOptions(resources, model)

	version := targets.GLSL
	if version == (glsl.Version{}) {
		version = glsl.Version450
	}
	if out.GLSL, err = bindmap.GLSL(resources, version); err != nil {
		out.Problems["glsl"] = err
	}

	mslVersion := targets.MSL
	if mslVersion == (msl.Version{}) {
		mslVersion = msl.Version2_1
	}
	if opts, err := bindmap.MSLOptions(resources, e.EntryPoints(), mslVersion); err != nil {
		out.Problems["msl"] = err
	} else {
		out.MSL = &opts
	}

	visibility := bindmap.StageVisibility(e.Stages())
	if visibility == wgpu.ShaderStageNone {
		visibility = wgpu.ShaderStageVertex | wgpu.ShaderStageFragment | wgpu.ShaderStageCompute
	}
	if out.BindGroups, err = bindmap.BindGroupLayouts("effect", resources, visibility); err != nil {
		out.Problems["wgpu"] = err
	}

	for _, techName := range e.techniqueOrder {
		for _, p := range e.techniques[techName].Passes() {
			pl, err := pipeline.FromPass(techName, p, e.registry.Lookup, opts...)
			if err != nil {
				out.Problems[fmt.Sprintf("%s/%s", techName, p.Name)] = err
				continue
			}
			out.Pipelines[pl.PipelineKey()] = pl
		}
	}

	for name, err := range out.Problems {
		common.Logger().Warn("sfx: backend export skipped", "target", name, "error", err)
	}
	return out, nil
}
