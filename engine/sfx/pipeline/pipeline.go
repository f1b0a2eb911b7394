package pipeline

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-sfx/engine/sfx/bindmap"
	"github.com/Carmen-Shannon/oxy-sfx/engine/sfx/declaration"
	"github.com/cogentcore/webgpu/wgpu"
)

// PipelineType identifies whether a pipeline is a compute pipeline or a render pipeline.
type PipelineType int

const (
	// PipelineTypeCompute indicates a compute pipeline with a single compute shader entry point.
	PipelineTypeCompute PipelineType = iota

	// PipelineTypeRender indicates a render pipeline with vertex and optional pixel shader entry points.
	PipelineTypeRender
)

func (t PipelineType) String() string {
	if t == PipelineTypeCompute {
		return "compute"
	}
	return "render"
}

// ErrMissingModule is returned when a descriptor is requested without a shader module for a bound
// stage.
var ErrMissingModule = errors.New("missing shader module")

// Modules holds the compiled shader module of every stage of a pass.
type Modules map[declaration.Stage]*wgpu.ShaderModule

// pipeline is the implementation of the Pipeline interface.
type pipeline struct {
	pipelineType PipelineType
	// pipelineKey is "technique/pass".
	pipelineKey string

	// entryPoints holds the function name bound to every stage of the pass.
	entryPoints map[declaration.Stage]string

	// state is the fixed-function state of a render pass, nil for compute passes.
	state *bindmap.PipelineState

	// The following are applied when descriptors are assembled and can be set with the builder options.

	surfaceFormat wgpu.TextureFormat
	sampleCount   uint32
	vertexBuffers []wgpu.VertexBufferLayout

	renderPipeline  *wgpu.RenderPipeline
	computePipeline *wgpu.ComputePipeline
}

// Pipeline is the WebGPU view of one pass of an effect: its entry points and fixed-function state,
// and the GPU pipeline object once one has been created from them.
type Pipeline interface {
	// Type returns the type of the pipeline
	//
	// Returns:
	//   - PipelineType: the type of the pipeline (render or compute)
	Type() PipelineType

	// PipelineKey returns the "technique/pass" key of the pipeline.
	//
	// Returns:
	//   - string: the unique key for this pipeline
	PipelineKey() string

	// EntryPoint returns the function bound to a stage.
	//
	// Parameters:
	//   - stage: the pipeline stage
	//
	// Returns:
	//   - string: the entry point name, "" if the stage is unbound
	EntryPoint(stage declaration.Stage) string

	// Stages returns the bound stages in stage order.
	Stages() []declaration.Stage

	// State returns the fixed-function state, nil for compute pipelines.
	State() *bindmap.PipelineState

	// RenderDescriptor assembles the render pipeline descriptor.
	//
	// Parameters:
	//   - layout: the pipeline layout, may be nil for an automatic layout
	//   - modules: the shader module of every bound stage
	//
	// Returns:
	//   - *wgpu.RenderPipelineDescriptor: the descriptor
	//   - error: for compute pipelines, or wrapping ErrMissingModule
	RenderDescriptor(layout *wgpu.PipelineLayout, modules Modules) (*wgpu.RenderPipelineDescriptor, error)

	// ComputeDescriptor assembles the compute pipeline descriptor.
	//
	// Parameters:
	//   - layout: the pipeline layout, may be nil for an automatic layout
	//   - modules: must hold the compute stage module
	//
	// Returns:
	//   - *wgpu.ComputePipelineDescriptor: the descriptor
	//   - error: for render pipelines, or wrapping ErrMissingModule
	ComputeDescriptor(layout *wgpu.PipelineLayout, modules Modules) (*wgpu.ComputePipelineDescriptor, error)

	// Pipeline returns the underlying pipeline object, either *wgpu.RenderPipeline or *wgpu.ComputePipeline
	// Note: The caller is responsible for type asserting the returned value as either pipeline type.
	//
	// Returns:
	//   - any: the underlying pipeline object, nil before Create
	Pipeline() any

	// Create creates the GPU pipeline on device and keeps it.
	//
	// Parameters:
	//   - device: the device to create the pipeline on
	//   - layout: the pipeline layout, may be nil for an automatic layout
	//   - modules: the shader module of every bound stage
	//
	// Returns:
	//   - error: from descriptor assembly or pipeline creation
	Create(device *wgpu.Device, layout *wgpu.PipelineLayout, modules Modules) error
}

var _ Pipeline = &pipeline{}

// FromPass creates the pipeline of a graphics or compute pass.
//
// Parameters:
//   - technique: the technique name, used in the key
//   - p: the pass
//   - lookup: resolves state blocks and compiled shader variables by name
//   - opts: a variadic list of PipelineBuilderOption functions to configure the pipeline
//
// Returns:
//   - Pipeline: the pipeline
//   - error: wrapping bindmap.ErrUnsupported for ray tracing passes or states WebGPU cannot
//     express
func FromPass(technique string, p *declaration.Pass, lookup func(name string) (*declaration.Declaration, bool), opts ...PipelineBuilderOption) (Pipeline, error) {
	key := technique + "/" + p.Name
	pl := &pipeline{
		pipelineKey:   key,
		entryPoints:   make(map[declaration.Stage]string),
		surfaceFormat: wgpu.TextureFormatBGRA8UnormSrgb,
		sampleCount:   1,
	}

	switch p.Family() {
	case declaration.FamilyGraphics:
		pl.pipelineType = PipelineTypeRender
		state, err := bindmap.PassPipeline(p, lookup)
		if err != nil {
			return nil, err
		}
		pl.state = state
	case declaration.FamilyCompute:
		pl.pipelineType = PipelineTypeCompute
	default:
		return nil, fmt.Errorf("pipeline %s: %w: %s passes", key, bindmap.ErrUnsupported, p.Family())
	}

	for _, stage := range p.BoundStages() {
		pl.entryPoints[stage] = entryPoint(p.Shaders[stage], lookup)
	}
	for _, opt := range opts {
		opt(pl)
	}
	return pl, nil
}

// entryPoint follows a reference to a compiled shader variable to the function it compiles.
func entryPoint(ref declaration.ShaderRef, lookup func(name string) (*declaration.Declaration, bool)) string {
	if d, ok := lookup(ref.Name); ok {
		if v, ok := d.Variable(); ok && v.Compiled != nil {
			return v.Compiled.Function
		}
	}
	return ref.Name
}

func (p *pipeline) Type() PipelineType {
	return p.pipelineType
}

func (p *pipeline) PipelineKey() string {
	return p.pipelineKey
}

func (p *pipeline) EntryPoint(stage declaration.Stage) string {
	return p.entryPoints[stage]
}

func (p *pipeline) Stages() []declaration.Stage {
	var out []declaration.Stage
	for s := range declaration.StageCount {
		if _, ok := p.entryPoints[s]; ok {
			out = append(out, s)
		}
	}
	return out
}

func (p *pipeline) State() *bindmap.PipelineState {
	return p.state
}

func (p *pipeline) RenderDescriptor(layout *wgpu.PipelineLayout, modules Modules) (*wgpu.RenderPipelineDescriptor, error) {
	if p.pipelineType != PipelineTypeRender {
		return nil, fmt.Errorf("pipeline %s: not a render pipeline", p.pipelineKey)
	}
	vs := modules[declaration.StageVertex]
	if vs == nil {
		return nil, fmt.Errorf("pipeline %s: %w: vertex", p.pipelineKey, ErrMissingModule)
	}

	multisample := p.state.Multisample
	multisample.Count = p.sampleCount
	desc := &wgpu.RenderPipelineDescriptor{
		Label:  p.pipelineKey + " Render Pipeline",
		Layout: layout,
		Vertex: wgpu.VertexState{
			Module:     vs,
			EntryPoint: p.entryPoints[declaration.StageVertex],
			Buffers:    p.vertexBuffers,
		},
		Primitive:    p.state.Primitive,
		DepthStencil: p.state.DepthStencil,
		Multisample:  multisample,
	}

	// A pass without a pixel shader is depth only.
	name, ok := p.entryPoints[declaration.StagePixel]
	if !ok {
		return desc, nil
	}
	fs := modules[declaration.StagePixel]
	if fs == nil {
		return nil, fmt.Errorf("pipeline %s: %w: pixel", p.pipelineKey, ErrMissingModule)
	}
	targets := p.state.Targets
	if len(targets) == 0 {
		targets = []wgpu.ColorTargetState{{Format: p.surfaceFormat, WriteMask: wgpu.ColorWriteMaskAll}}
	}
	desc.Fragment = &wgpu.FragmentState{
		Module:     fs,
		EntryPoint: name,
		Targets:    targets,
	}
	return desc, nil
}

func (p *pipeline) ComputeDescriptor(layout *wgpu.PipelineLayout, modules Modules) (*wgpu.ComputePipelineDescriptor, error) {
	if p.pipelineType != PipelineTypeCompute {
		return nil, fmt.Errorf("pipeline %s: not a compute pipeline", p.pipelineKey)
	}
	cs := modules[declaration.StageCompute]
	if cs == nil {
		return nil, fmt.Errorf("pipeline %s: %w: compute", p.pipelineKey, ErrMissingModule)
	}
	return &wgpu.ComputePipelineDescriptor{
		Label:  p.pipelineKey + " Compute Pipeline",
		Layout: layout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     cs,
			EntryPoint: p.entryPoints[declaration.StageCompute],
		},
	}, nil
}

func (p *pipeline) Pipeline() any {
	switch p.pipelineType {
	case PipelineTypeRender:
		return p.renderPipeline
	case PipelineTypeCompute:
		return p.computePipeline
	default:
		return nil
	}
}

func (p *pipeline) Create(device *wgpu.Device, layout *wgpu.PipelineLayout, modules Modules) error {
	if p.pipelineType == PipelineTypeCompute {
		desc, err := p.ComputeDescriptor(layout, modules)
		if err != nil {
			return err
		}
		created, err := device.CreateComputePipeline(desc)
		if err != nil {
			return fmt.Errorf("pipeline %s: %w", p.pipelineKey, err)
		}
		p.computePipeline = created
		return nil
	}

	desc, err := p.RenderDescriptor(layout, modules)
	if err != nil {
		return err
	}
	created, err := device.CreateRenderPipeline(desc)
	if err != nil {
		return fmt.Errorf("pipeline %s: %w", p.pipelineKey, err)
	}
	p.renderPipeline = created
	return nil
}
