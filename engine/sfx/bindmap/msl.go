package bindmap

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-sfx/engine/sfx/restype"
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/naga/msl"
)

// Metal argument table sizes per stage.
const (
	mslMaxBuffers  = 31
	mslMaxTextures = 128
	mslMaxSamplers = 16
)

type mslSlot int

const (
	mslBuffer mslSlot = iota
	mslTexture
	mslSampler
)

func mslSlotOf(t restype.ShaderResourceType) mslSlot {
	switch {
	case t.IsSampler():
		return mslSampler
	case t.Has(restype.ConstantBuffer), t.Has(restype.Structured), t.Has(restype.ByteAddress), t.Has(restype.AccelerationStructure):
		return mslBuffer
	default:
		return mslTexture
	}
}

// MSLResources assigns Metal argument table slots to resources. Buffers, textures and samplers
// have separate tables and are filled in group then binding order.
//
// Parameters:
//   - resources: the collected resources
//
// Returns:
//   - msl.EntryPointResources: the slot table
//   - error: wrapping ErrUnsupported when a table overflows or an array is unbounded
func MSLResources(resources []Resource) (msl.EntryPointResources, error) {
	out := msl.EntryPointResources{Resources: make(map[ir.ResourceBinding]msl.BindTarget, len(resources))}
	var next [3]uint32
	limits := [3]uint32{mslMaxBuffers, mslMaxTextures, mslMaxSamplers}

	for _, r := range sortedBySet(resources) {
		if r.Unbounded {
			return msl.EntryPointResources{}, fmt.Errorf("%s: %w: unbounded arrays in MSL", r.Name, ErrUnsupported)
		}
		kind := mslSlotOf(r.Type)
		slot := next[kind]
		next[kind] += max(r.Count, 1)
		if next[kind] > limits[kind] {
			return msl.EntryPointResources{}, fmt.Errorf("%s: %w: more than %d Metal argument slots", r.Name, ErrUnsupported, limits[kind])
		}

		index := uint8(slot)
		target := msl.BindTarget{Mutable: r.Type.IsWritable()}
		switch kind {
		case mslBuffer:
			target.Buffer = &index
		case mslTexture:
			target.Texture = &index
		default:
			target.Sampler = &index
		}
		out.Resources[ir.ResourceBinding{Group: r.Group, Binding: r.Binding}] = target
	}
	return out, nil
}

// MSLOptions builds the naga MSL writer options with one slot table per entry point.
//
// Parameters:
//   - resources: the collected resources
//   - entryPoints: the entry point function names
//   - version: the target MSL version
//
// Returns:
//   - msl.Options: the writer options
//   - error: from MSLResources
func MSLOptions(resources []Resource, entryPoints []string, version msl.Version) (msl.Options, error) {
	table, err := MSLResources(resources)
	if err != nil {
		return msl.Options{}, err
	}
	opts := msl.DefaultOptions()
	opts.LangVersion = version
	opts.PerEntryPointMap = make(map[string]msl.EntryPointResources, len(entryPoints))
	for _, ep := range entryPoints {
		opts.PerEntryPointMap[ep] = table
	}
	return opts, nil
}

var mslVersions = []msl.Version{msl.Version1_2, msl.Version2_0, msl.Version2_1, msl.Version2_3, msl.Version3_0}

// ParseMSLVersion parses a Metal shading language version such as "2.1".
//
// Parameters:
//   - s: the version text
//
// Returns:
//   - msl.Version: the version
//   - error: if s names no supported version
func ParseMSLVersion(s string) (msl.Version, error) {
	for _, v := range mslVersions {
		if v.String() == s {
			return v, nil
		}
	}
	return msl.Version{}, fmt.Errorf("unknown MSL version %q", s)
}
