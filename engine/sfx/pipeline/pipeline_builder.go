package pipeline

import "github.com/cogentcore/webgpu/wgpu"

// PipelineBuilderOption is a functional option used to configure a Pipeline during construction.
type PipelineBuilderOption func(*pipeline)

// WithSurfaceFormat sets the color target format used when the pass declares no render target
// formats of its own.
//
// Parameters:
//   - format: the surface texture format
//
// Returns:
//   - PipelineBuilderOption: a function that sets the surface format for this pipeline
func WithSurfaceFormat(format wgpu.TextureFormat) PipelineBuilderOption {
	return func(p *pipeline) {
		p.surfaceFormat = format
	}
}

// WithSampleCount sets the MSAA sample count of the render targets.
//
// Parameters:
//   - count: the sample count, values below 1 are ignored
//
// Returns:
//   - PipelineBuilderOption: a function that sets the sample count for this pipeline
func WithSampleCount(count uint32) PipelineBuilderOption {
	return func(p *pipeline) {
		if count >= 1 {
			p.sampleCount = count
		}
	}
}

// WithVertexBuffers sets the vertex buffer layouts of the vertex stage.
//
// Parameters:
//   - layouts: the vertex buffer layouts in slot order
//
// Returns:
//   - PipelineBuilderOption: a function that sets the vertex buffers for this pipeline
func WithVertexBuffers(layouts ...wgpu.VertexBufferLayout) PipelineBuilderOption {
	return func(p *pipeline) {
		p.vertexBuffers = layouts
	}
}
