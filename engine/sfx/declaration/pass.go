package declaration

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-sfx/common"
)

// Stage is a shader pipeline stage a pass can bind an entry point to.
type Stage int

const (
	StageVertex Stage = iota
	StageHull
	StageDomain
	StageGeometry
	StagePixel
	StageCompute
	StageRayGeneration
	StageMiss
	StageCallable
	StageClosestHit
	StageAnyHit
	StageIntersection
	// StageCount is the number of stages.
	StageCount
)

var stageNames = [StageCount]string{
	StageVertex:        "vertex",
	StageHull:          "hull",
	StageDomain:        "domain",
	StageGeometry:      "geometry",
	StagePixel:         "pixel",
	StageCompute:       "compute",
	StageRayGeneration: "raygeneration",
	StageMiss:          "miss",
	StageCallable:      "callable",
	StageClosestHit:    "closesthit",
	StageAnyHit:        "anyhit",
	StageIntersection:  "intersection",
}

func (s Stage) String() string {
	if s >= 0 && s < StageCount {
		return stageNames[s]
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// MarshalText encodes the stage by name.
func (s Stage) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Family is the pipeline kind a stage belongs to.
type Family int

const (
	FamilyNone Family = iota
	FamilyGraphics
	FamilyCompute
	FamilyRayTracing
)

func (f Family) String() string {
	switch f {
	case FamilyGraphics:
		return "graphics"
	case FamilyCompute:
		return "compute"
	case FamilyRayTracing:
		return "ray tracing"
	default:
		return "none"
	}
}

// Family returns the pipeline family of the stage.
func (s Stage) Family() Family {
	switch {
	case s >= StageVertex && s <= StagePixel:
		return FamilyGraphics
	case s == StageCompute:
		return FamilyCompute
	case s >= StageRayGeneration && s < StageCount:
		return FamilyRayTracing
	default:
		return FamilyNone
	}
}

// Topology is the primitive topology of a graphics pass.
type Topology int

const (
	TopologyUndefined Topology = iota
	TopologyPointList
	TopologyLineList
	TopologyLineStrip
	TopologyTriangleList
	TopologyTriangleStrip
	TopologyLineListAdj
	TopologyLineStripAdj
	TopologyTriangleListAdj
	TopologyTriangleStripAdj
	TopologyPatchList
)

var topologies = enumSpec[Topology]{"topology", []string{"PRIMITIVETOPOLOGY", "TOPOLOGY"}, map[string]Topology{
	"UNDEFINED":        TopologyUndefined,
	"POINTLIST":        TopologyPointList,
	"LINELIST":         TopologyLineList,
	"LINESTRIP":        TopologyLineStrip,
	"TRIANGLELIST":     TopologyTriangleList,
	"TRIANGLESTRIP":    TopologyTriangleStrip,
	"LINELISTADJ":      TopologyLineListAdj,
	"LINESTRIPADJ":     TopologyLineStripAdj,
	"TRIANGLELISTADJ":  TopologyTriangleListAdj,
	"TRIANGLESTRIPADJ": TopologyTriangleStripAdj,
	"PATCHLIST":        TopologyPatchList,
}}

func (t Topology) String() string { return topologies.name(t) }

// MarshalText encodes the topology by name.
func (t Topology) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// ParseTopology parses a topology name such as "TriangleList" or
// "D3D11_PRIMITIVE_TOPOLOGY_TRIANGLESTRIP". A control point count suffix on patch lists
// ("PATCHLIST_3_CONTROL_POINT") is accepted and dropped.
func ParseTopology(s string) (Topology, error) {
	key := normalizeEnum(s)
	if strings.Contains(key, "PATCHLIST") {
		return TopologyPatchList, nil
	}
	return topologies.parse(key)
}

// ShaderRef names the entry point bound to one stage.
type ShaderRef struct {
	// Name is the function or compiled shader variable name. Empty when the stage is unset.
	Name string `json:"name" yaml:"name"`
	// Profile is the compile target from CompileShader(profile, ...), empty if not given.
	Profile string `json:"profile,omitempty" yaml:"profile,omitempty"`
}

// IsSet reports whether the stage has an entry point.
func (r ShaderRef) IsSet() bool { return r.Name != "" }

// HitGroup is a named ray tracing hit group.
type HitGroup struct {
	Name         string `json:"name" yaml:"name"`
	ClosestHit   string `json:"closest_hit,omitempty" yaml:"closest_hit,omitempty"`
	AnyHit       string `json:"any_hit,omitempty" yaml:"any_hit,omitempty"`
	Intersection string `json:"intersection,omitempty" yaml:"intersection,omitempty"`
}

// PassState holds everything a pass block can set.
type PassState struct {
	Shaders [StageCount]ShaderRef

	RasterizerState         string
	DepthStencilState       string
	StencilRef              uint32
	BlendState              string
	BlendFactor             [4]float32
	SampleMask              uint32
	RenderTargetFormatState string
	Topology                Topology

	HitGroups              []HitGroup
	MaxPayloadSize         int
	MaxAttributeSize       int
	MaxTraceRecursionDepth int
}

// Pass is one rendering step of a technique.
type Pass struct {
	Name string
	Pos  common.Position
	PassState
}

// NewPass creates an empty pass with the default sample mask and blend factor.
//
// Parameters:
//   - name: the pass name
//   - pos: the position of the pass keyword
//
// Returns:
//   - *Pass: the new pass
func NewPass(name string, pos common.Position) *Pass {
	return &Pass{
		Name: name,
		Pos:  pos,
		PassState: PassState{
			SampleMask:  0xFFFFFFFF,
			BlendFactor: [4]float32{1, 1, 1, 1},
		},
	}
}

// Shader returns the entry point name bound to stage, or "" if unset.
func (p *Pass) Shader(stage Stage) string {
	return p.Shaders[stage].Name
}

// SetShader binds an entry point to a stage. Binding the same stage twice is an error.
//
// Parameters:
//   - stage: the stage to bind
//   - ref: the entry point
//
// Returns:
//   - error: if the stage is already bound
func (p *Pass) SetShader(stage Stage, ref ShaderRef) error {
	if p.Shaders[stage].IsSet() {
		return fmt.Errorf("pass %q binds the %s stage twice", p.Name, stage)
	}
	p.Shaders[stage] = ref
	return nil
}

// AddHitGroup appends a hit group. Names must be unique within the pass.
func (p *Pass) AddHitGroup(g HitGroup) error {
	for _, h := range p.HitGroups {
		if h.Name == g.Name {
			return fmt.Errorf("pass %q declares hit group %q twice", p.Name, g.Name)
		}
	}
	p.HitGroups = append(p.HitGroups, g)
	return nil
}

// BoundStages returns the stages with an entry point, in stage order.
func (p *Pass) BoundStages() []Stage {
	var out []Stage
	for s := range StageCount {
		if p.Shaders[s].IsSet() {
			out = append(out, s)
		}
	}
	return out
}

// Family returns the pipeline family of the bound stages, FamilyNone if no stage is bound. The
// result is only meaningful for passes that passed Validate.
func (p *Pass) Family() Family {
	for s := range StageCount {
		if p.Shaders[s].IsSet() {
			return s.Family()
		}
	}
	if len(p.HitGroups) > 0 {
		return FamilyRayTracing
	}
	return FamilyNone
}

// Validate checks that the stages and settings of the pass describe one pipeline: stages of a
// single family, topology only for graphics, hit groups and ray tracing limits only for ray
// tracing, and hull and domain stages bound together.
//
// Returns:
//   - error: describing every inconsistency found, nil if the pass is consistent
func (p *Pass) Validate() error {
	var errs []error
	family := FamilyNone
	for _, s := range p.BoundStages() {
		f := s.Family()
		if family == FamilyNone {
			family = f
			continue
		}
		if f != family {
			errs = append(errs, fmt.Errorf("%s shader cannot be combined with %s stages", s, family))
		}
	}

	rtSettings := len(p.HitGroups) > 0 || p.MaxPayloadSize > 0 || p.MaxAttributeSize > 0 || p.MaxTraceRecursionDepth > 0
	if rtSettings && family != FamilyNone && family != FamilyRayTracing {
		errs = append(errs, fmt.Errorf("hit groups and ray tracing limits require a ray tracing pass, not %s", family))
	}
	if p.Topology != TopologyUndefined && (family == FamilyCompute || family == FamilyRayTracing || rtSettings) {
		errs = append(errs, fmt.Errorf("topology %s is only valid for graphics passes", p.Topology))
	}
	if p.Shaders[StageHull].IsSet() != p.Shaders[StageDomain].IsSet() {
		errs = append(errs, errors.New("hull and domain shaders must be bound together"))
	}
	if p.Topology == TopologyPatchList && !p.Shaders[StageHull].IsSet() {
		errs = append(errs, errors.New("patch list topology requires hull and domain shaders"))
	}
	return errors.Join(errs...)
}

// Technique is a named, ordered set of passes.
type Technique struct {
	Name string
	// Group is the enclosing group block, empty at top level.
	Group  string
	Pos    common.Position
	passes map[string]*Pass
	order  []string
}

// NewTechnique creates an empty technique.
//
// Parameters:
//   - name: the technique name
//   - group: the enclosing group, or ""
//   - pos: the position of the technique keyword
//
// Returns:
//   - *Technique: the new technique
func NewTechnique(name, group string, pos common.Position) *Technique {
	return &Technique{Name: name, Group: group, Pos: pos, passes: make(map[string]*Pass)}
}

// AddPass adds a pass. Pass names are unique within a technique.
//
// Parameters:
//   - p: the pass to add
//
// Returns:
//   - error: if a pass with the same name exists
func (t *Technique) AddPass(p *Pass) error {
	if _, ok := t.passes[p.Name]; ok {
		return fmt.Errorf("technique %q already has a pass %q", t.Name, p.Name)
	}
	t.passes[p.Name] = p
	t.order = append(t.order, p.Name)
	return nil
}

// Pass returns the pass with the given name.
func (t *Technique) Pass(name string) (*Pass, bool) {
	p, ok := t.passes[name]
	return p, ok
}

// Passes returns the passes in source order.
func (t *Technique) Passes() []*Pass {
	out := make([]*Pass, len(t.order))
	for i, n := range t.order {
		out[i] = t.passes[n]
	}
	return out
}

// PassCount returns the number of passes.
func (t *Technique) PassCount() int { return len(t.order) }
