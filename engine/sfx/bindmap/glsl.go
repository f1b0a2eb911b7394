package bindmap

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/oxy-sfx/engine/sfx/restype"
	"github.com/gogpu/naga/glsl"
)

// GLClass is an OpenGL binding namespace. Units are numbered independently per class.
type GLClass int

const (
	GLUniformBlock GLClass = iota
	GLStorageBlock
	GLTexture
	GLSampler
	GLImage
)

func (c GLClass) String() string {
	switch c {
	case GLUniformBlock:
		return "uniform"
	case GLStorageBlock:
		return "storage"
	case GLTexture:
		return "texture"
	case GLSampler:
		return "sampler"
	default:
		return "image"
	}
}

// MarshalText encodes the class by name.
func (c GLClass) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// GLBinding is the flattened OpenGL binding of one resource.
type GLBinding struct {
	Name  string  `json:"name" yaml:"name"`
	Class GLClass `json:"class" yaml:"class"`
	Unit  uint32  `json:"unit" yaml:"unit"`
}

// GLSLMap is the OpenGL export of an effect.
type GLSLMap struct {
	Options  glsl.Options
	Bindings []GLBinding
}

// Binding returns the flattened binding of the named resource.
func (m *GLSLMap) Binding(name string) (GLBinding, bool) {
	for _, b := range m.Bindings {
		if b.Name == name {
			return b, true
		}
	}
	return GLBinding{}, false
}

// glClass returns the OpenGL namespace of a resource type.
func glClass(t restype.ShaderResourceType) (GLClass, error) {
	switch {
	case t.Has(restype.AccelerationStructure):
		return 0, fmt.Errorf("%w: %s in GLSL", ErrUnsupported, t)
	case t.Has(restype.ConstantBuffer):
		return GLUniformBlock, nil
	case t.IsSampler():
		return GLSampler, nil
	case t.Has(restype.Structured), t.Has(restype.ByteAddress):
		return GLStorageBlock, nil
	case t.IsWritable():
		return GLImage, nil
	default:
		return GLTexture, nil
	}
}

// GLSL flattens the (group, binding) coordinates of resources into per-class OpenGL units. Units
// are handed out in group then binding order, arrays consuming one unit per element.
//
// Parameters:
//   - resources: the collected resources
//   - version: the target GLSL version
//
// Returns:
//   - *GLSLMap: the writer options and the unit table in resource order
//   - error: wrapping ErrUnsupported for resources the version cannot express
func GLSL(resources []Resource, version glsl.Version) (*GLSLMap, error) {
	opts := glsl.DefaultOptions()
	opts.LangVersion = version

	units := make(map[string]GLBinding, len(resources))
	next := make(map[GLClass]uint32)
	for _, r := range sortedBySet(resources) {
		class, err := glClass(r.Type)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", r.Name, err)
		}
		if (class == GLStorageBlock || class == GLImage) && !supportsStorage(version) {
			return nil, fmt.Errorf("%s: %w: %s resources need GLSL 430 or 310 es, have %s", r.Name, ErrUnsupported, class, versionString(version))
		}
		if r.Unbounded {
			return nil, fmt.Errorf("%s: %w: unbounded arrays in GLSL", r.Name, ErrUnsupported)
		}
		units[r.Name] = GLBinding{Name: r.Name, Class: class, Unit: next[class]}
		next[class] += max(r.Count, 1)
	}

	m := &GLSLMap{Options: opts, Bindings: make([]GLBinding, 0, len(resources))}
	for _, r := range resources {
		m.Bindings = append(m.Bindings, units[r.Name])
	}
	return m, nil
}

func supportsStorage(v glsl.Version) bool {
	if v.ES {
		return v.Major > 3 || v.Major == 3 && v.Minor >= 10
	}
	return v.Major > 4 || v.Major == 4 && v.Minor >= 30
}

var glslVersions = []glsl.Version{
	glsl.Version330,
	glsl.Version400,
	glsl.Version410,
	glsl.Version420,
	glsl.Version430,
	glsl.Version450,
	glsl.Version460,
	glsl.VersionES300,
	glsl.VersionES310,
	glsl.VersionES320,
}

// versionString formats a version the way a #version directive does, e.g. "450" or "310 es".
func versionString(v glsl.Version) string {
	s := strconv.Itoa(int(v.Major)*100 + int(v.Minor))
	if v.ES {
		s += " es"
	}
	return s
}

// ParseGLSLVersion parses a version as written in a #version directive: "330", "450 core",
// "300 es" or "310es".
//
// Parameters:
//   - s: the version text
//
// Returns:
//   - glsl.Version: the version
//   - error: if s names no supported version
func ParseGLSLVersion(s string) (glsl.Version, error) {
	text := strings.ToLower(strings.Join(strings.Fields(s), ""))
	text = strings.TrimSuffix(text, "core")
	for _, v := range glslVersions {
		if strings.ReplaceAll(versionString(v), " ", "") == text {
			return v, nil
		}
	}
	return glsl.Version{}, fmt.Errorf("unknown GLSL version %q", s)
}
