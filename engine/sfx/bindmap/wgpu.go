package bindmap

import (
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-sfx/engine/sfx/declaration"
	"github.com/Carmen-Shannon/oxy-sfx/engine/sfx/restype"
	"github.com/cogentcore/webgpu/wgpu"
)

// viewDimensions maps the dimension and array flags of a texture to its WebGPU view dimension.
var viewDimensions = map[restype.ShaderResourceType]wgpu.TextureViewDimension{
	restype.Dim1D:                   wgpu.TextureViewDimension1D,
	restype.Dim2D:                   wgpu.TextureViewDimension2D,
	restype.Dim2D | restype.Array:   wgpu.TextureViewDimension2DArray,
	restype.Dim3D:                   wgpu.TextureViewDimension3D,
	restype.DimCube:                 wgpu.TextureViewDimensionCube,
	restype.DimCube | restype.Array: wgpu.TextureViewDimensionCubeArray,
}

// storageFormats maps the element type of a writable texture to its storage format.
var storageFormats = map[string]wgpu.TextureFormat{
	"float":        wgpu.TextureFormatR32Float,
	"float2":       wgpu.TextureFormatRG32Float,
	"float4":       wgpu.TextureFormatRGBA32Float,
	"uint":         wgpu.TextureFormatR32Uint,
	"uint2":        wgpu.TextureFormatRG32Uint,
	"uint4":        wgpu.TextureFormatRGBA32Uint,
	"int":          wgpu.TextureFormatR32Sint,
	"int2":         wgpu.TextureFormatRG32Sint,
	"int4":         wgpu.TextureFormatRGBA32Sint,
	"unorm float4": wgpu.TextureFormatRGBA8Unorm,
	"snorm float4": wgpu.TextureFormatRGBA8Snorm,
	"half4":        wgpu.TextureFormatRGBA16Float,
}

// sampleType returns the WebGPU sample type of a texture element type such as "float4" or
// "uint".
func sampleType(element string) wgpu.TextureSampleType {
	switch {
	case strings.HasPrefix(element, "uint"):
		return wgpu.TextureSampleTypeUint
	case strings.HasPrefix(element, "int"):
		return wgpu.TextureSampleTypeSint
	default:
		return wgpu.TextureSampleTypeFloat
	}
}

// LayoutEntry creates the bind group layout entry of one resource. Buffers become uniform or
// storage buffers, samplers filtering or comparison samplers, read-only textures sampled textures
// and writable textures storage textures.
//
// Parameters:
//   - r: the resource
//   - visibility: the stages that can see the resource
//
// Returns:
//   - wgpu.BindGroupLayoutEntry: the entry
//   - error: wrapping ErrUnsupported for resources WebGPU cannot bind
func LayoutEntry(r Resource, visibility wgpu.ShaderStage) (wgpu.BindGroupLayoutEntry, error) {
	entry := wgpu.BindGroupLayoutEntry{
		Binding:    r.Binding,
		Visibility: visibility,
	}
	t := r.Type
	if r.Count > 0 || r.Unbounded {
		return entry, fmt.Errorf("%s: %w: binding arrays in WebGPU", r.Name, ErrUnsupported)
	}

	switch {
	case t.Has(restype.AccelerationStructure):
		return entry, fmt.Errorf("%s: %w: %s in WebGPU", r.Name, ErrUnsupported, t)
	case t.Has(restype.ConstantBuffer):
		entry.Buffer.Type = wgpu.BufferBindingTypeUniform
		entry.Buffer.MinBindingSize = r.Size
	case t.IsBuffer():
		entry.Buffer.Type = wgpu.BufferBindingTypeReadOnlyStorage
		if t.IsWritable() {
			entry.Buffer.Type = wgpu.BufferBindingTypeStorage
		}
		entry.Buffer.MinBindingSize = r.Size
	case t.IsSampler():
		entry.Sampler.Type = wgpu.SamplerBindingTypeFiltering
		if t.Has(restype.Comparison) {
			entry.Sampler.Type = wgpu.SamplerBindingTypeComparison
		}
	case t.IsTexture():
		dim, ok := viewDimensions[t&(restype.Dim1D|restype.Dim2D|restype.Dim3D|restype.DimCube|restype.Array)]
		if !ok {
			return entry, fmt.Errorf("%s: %w: %s in WebGPU", r.Name, ErrUnsupported, t)
		}
		element := ""
		if tex, ok := r.Decl.Texture(); ok {
			element = strings.TrimSpace(tex.ElementType)
		}
		if t.IsWritable() {
			entry.StorageTexture.Access = wgpu.StorageTextureAccessReadWrite
			entry.StorageTexture.ViewDimension = dim
			entry.StorageTexture.Format = storageFormats[element]
			if entry.StorageTexture.Format == wgpu.TextureFormatUndefined {
				return entry, fmt.Errorf("%s: %w: storage texture element type %q", r.Name, ErrUnsupported, element)
			}
			return entry, nil
		}
		entry.Texture.ViewDimension = dim
		entry.Texture.Multisampled = t.Has(restype.MS)
		entry.Texture.SampleType = sampleType(element)
	default:
		return entry, fmt.Errorf("%s: %w: %s in WebGPU", r.Name, ErrUnsupported, t)
	}
	return entry, nil
}

// BindGroupLayouts groups the resources into one layout descriptor per group. Groups are dense
// from 0 to the highest group used; a group without resources gets an empty layout.
//
// Parameters:
//   - label: the label prefix, e.g. the effect name
//   - resources: the collected resources
//   - visibility: the stages that can see every resource
//
// Returns:
//   - []wgpu.BindGroupLayoutDescriptor: the layouts indexed by group
//   - error: from LayoutEntry
func BindGroupLayouts(label string, resources []Resource, visibility wgpu.ShaderStage) ([]wgpu.BindGroupLayoutDescriptor, error) {
	groups := Groups(resources)
	if len(groups) == 0 {
		return nil, nil
	}
	out := make([]wgpu.BindGroupLayoutDescriptor, groups[len(groups)-1]+1)
	for i := range out {
		out[i].Label = fmt.Sprintf("%s group %d", label, i)
	}
	for _, r := range sortedBySet(resources) {
		entry, err := LayoutEntry(r, visibility)
		if err != nil {
			return nil, err
		}
		out[r.Group].Entries = append(out[r.Group].Entries, entry)
	}
	return out, nil
}

// StageVisibility returns the WebGPU visibility flags of a set of pass stages. Stages WebGPU does
// not have are ignored.
func StageVisibility(stages []declaration.Stage) wgpu.ShaderStage {
	v := wgpu.ShaderStageNone
	for _, s := range stages {
		switch s {
		case declaration.StageVertex:
			v |= wgpu.ShaderStageVertex
		case declaration.StagePixel:
			v |= wgpu.ShaderStageFragment
		case declaration.StageCompute:
			v |= wgpu.ShaderStageCompute
		}
	}
	return v
}
