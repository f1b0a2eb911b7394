package main

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"text/tabwriter"

	"github.com/Carmen-Shannon/oxy-sfx/engine/config"
	"github.com/Carmen-Shannon/oxy-sfx/engine/sfx"
	"github.com/Carmen-Shannon/oxy-sfx/engine/sfx/bindmap"
	"github.com/Carmen-Shannon/oxy-sfx/engine/sfx/declaration"
	"github.com/Carmen-Shannon/oxy-sfx/engine/sfx/layout"
	"github.com/Carmen-Shannon/oxy-sfx/engine/sfx/restype"
	"github.com/Carmen-Shannon/oxy-sfx/engine/sfx/variant"
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/naga/msl"
	"gopkg.in/yaml.v3"
)

// report is the machine readable summary of one build.
type report struct {
	Files        []string           `json:"files" yaml:"files"`
	Techniques   []techniqueReport  `json:"techniques" yaml:"techniques"`
	Resources    []bindmap.Resource `json:"resources" yaml:"resources"`
	Unreferenced []string           `json:"unreferenced,omitempty" yaml:"unreferenced,omitempty"`
	Profiles     []string           `json:"profiles,omitempty" yaml:"profiles,omitempty"`
	EntryPoints  []string           `json:"entry_points,omitempty" yaml:"entry_points,omitempty"`
	Layouts      []layoutReport     `json:"layouts,omitempty" yaml:"layouts,omitempty"`
	Bindings     *bindingsReport    `json:"bindings,omitempty" yaml:"bindings,omitempty"`
}

type techniqueReport struct {
	Name   string       `json:"name" yaml:"name"`
	Passes []passReport `json:"passes" yaml:"passes"`
}

type passReport struct {
	Name    string                           `json:"name" yaml:"name"`
	Shaders map[string]declaration.ShaderRef `json:"shaders,omitempty" yaml:"shaders,omitempty"`
	States  map[string]string                `json:"states,omitempty" yaml:"states,omitempty"`
}

type layoutReport struct {
	Name string `json:"name" yaml:"name"`
	// Variants is the first assignment producing the layout, "" when the struct has no variants.
	Variants string         `json:"variants,omitempty" yaml:"variants,omitempty"`
	Layout   *layout.Layout `json:"layout,omitempty" yaml:"layout,omitempty"`
	Error    string         `json:"error,omitempty" yaml:"error,omitempty"`
}

type bindingsReport struct {
	ShaderModel string                 `json:"shader_model" yaml:"shader_model"`
	HLSL        []hlslBinding          `json:"hlsl" yaml:"hlsl"`
	GLSL        []bindmap.GLBinding    `json:"glsl,omitempty" yaml:"glsl,omitempty"`
	MSL         []mslBinding           `json:"msl,omitempty" yaml:"msl,omitempty"`
	WGPU        []groupReport          `json:"wgpu,omitempty" yaml:"wgpu,omitempty"`
	Pipelines   map[string]pipelineRow `json:"pipelines,omitempty" yaml:"pipelines,omitempty"`
	Problems    map[string]string      `json:"problems,omitempty" yaml:"problems,omitempty"`
}

type hlslBinding struct {
	Name     string `json:"name" yaml:"name"`
	Register string `json:"register" yaml:"register"`
	Space    uint8  `json:"space" yaml:"space"`
}

type mslBinding struct {
	Name string `json:"name" yaml:"name"`
	// Slot is "buffer(n)", "texture(n)" or "sampler(n)".
	Slot    string `json:"slot" yaml:"slot"`
	Mutable bool   `json:"mutable,omitempty" yaml:"mutable,omitempty"`
}

type groupReport struct {
	Label   string   `json:"label" yaml:"label"`
	Entries []uint32 `json:"entries" yaml:"entries"`
}

type pipelineRow struct {
	Type         string            `json:"type" yaml:"type"`
	EntryPoints  map[string]string `json:"entry_points" yaml:"entry_points"`
	Topology     string            `json:"topology,omitempty" yaml:"topology,omitempty"`
	CullMode     string            `json:"cull_mode,omitempty" yaml:"cull_mode,omitempty"`
	DepthStencil bool              `json:"depth_stencil,omitempty" yaml:"depth_stencil,omitempty"`
	Targets      int               `json:"targets,omitempty" yaml:"targets,omitempty"`
}

// newReport summarizes an effect.
func newReport(e *sfx.Effect) (*report, error) {
	resources, err := e.Resources()
	if err != nil {
		return nil, err
	}
	r := &report{
		Files:       e.Files(),
		Resources:   resources,
		Profiles:    e.Profiles(),
		EntryPoints: e.EntryPoints(),
	}
	for _, d := range e.Unreferenced() {
		r.Unreferenced = append(r.Unreferenced, d.Name)
	}
	for _, name := range e.Techniques() {
		t, _ := e.Technique(name)
		tr := techniqueReport{Name: name}
		for _, p := range t.Passes() {
			tr.Passes = append(tr.Passes, newPassReport(p))
		}
		r.Techniques = append(r.Techniques, tr)
	}
	return r, nil
}

func newPassReport(p *declaration.Pass) passReport {
	pr := passReport{Name: p.Name, Shaders: make(map[string]declaration.ShaderRef)}
	for _, s := range p.BoundStages() {
		pr.Shaders[s.String()] = p.Shaders[s]
	}
	states := map[string]string{
		"rasterizer":           p.RasterizerState,
		"depth_stencil":        p.DepthStencilState,
		"blend":                p.BlendState,
		"render_target_format": p.RenderTargetFormatState,
	}
	maps.DeleteFunc(states, func(_, v string) bool { return v == "" })
	if len(states) > 0 {
		pr.States = states
	}
	return pr
}

// addLayouts lays out every struct and constant buffer once per distinct variant permutation.
// Variables of nested structs take the first value of their domain.
func (r *report) addLayouts(e *sfx.Effect, domain variant.Domain) {
	base := make(variant.Bindings, len(domain))
	for name, values := range domain {
		if len(values) > 0 {
			base[name] = values[0]
		}
	}
	seen := make(map[string]bool)
	for _, d := range e.Declarations() {
		if _, ok := d.Struct(); !ok || seen[d.Name] {
			continue
		}
		seen[d.Name] = true
		perms, err := e.Permutations(d.Name, domain)
		if err != nil {
			r.Layouts = append(r.Layouts, layoutReport{Name: d.Name, Error: err.Error()})
			continue
		}
		for _, p := range perms {
			bindings := maps.Clone(base)
			maps.Copy(bindings, p.Assignments[0])
			lr := layoutReport{Name: d.Name, Variants: p.Assignments[0].String()}
			if l, err := e.Layout(d.Name, bindings); err != nil {
				lr.Error = err.Error()
			} else {
				lr.Layout = l
			}
			r.Layouts = append(r.Layouts, lr)
		}
	}
}

// addBindings exports the binding tables of every backend.
func (r *report) addBindings(e *sfx.Effect, targets sfx.Targets) error {
	x, err := e.Export(targets)
	if err != nil {
		return err
	}
	b := &bindingsReport{
		ShaderModel: x.HLSL.ShaderModel.String(),
		Pipelines:   make(map[string]pipelineRow, len(x.Pipelines)),
		Problems:    make(map[string]string, len(x.Problems)),
	}
	for _, res := range x.Resources {
		b.HLSL = append(b.HLSL, hlslBinding{
			Name:     res.Name,
			Register: fmt.Sprintf("%s%d", res.Class, res.Register),
			Space:    res.Space,
		})
	}
	if x.GLSL != nil {
		b.GLSL = x.GLSL.Bindings
	}
	if x.MSL != nil {
		b.MSL = mslBindings(x.Resources, x.MSL.PerEntryPointMap)
	}
	for _, g := range x.BindGroups {
		gr := groupReport{Label: g.Label}
		for _, entry := range g.Entries {
			gr.Entries = append(gr.Entries, entry.Binding)
		}
		b.WGPU = append(b.WGPU, gr)
	}
	for key, pl := range x.Pipelines {
		row := pipelineRow{Type: pl.Type().String(), EntryPoints: make(map[string]string)}
		for _, s := range pl.Stages() {
			row.EntryPoints[s.String()] = pl.EntryPoint(s)
		}
		if ps := pl.State(); ps != nil {
			row.Topology = fmt.Sprint(ps.Primitive.Topology)
			row.CullMode = fmt.Sprint(ps.Primitive.CullMode)
			row.DepthStencil = ps.DepthStencil != nil
			row.Targets = len(ps.Targets)
		}
		b.Pipelines[key] = row
	}
	for name, err := range x.Problems {
		b.Problems[name] = err.Error()
	}
	r.Bindings = b
	return nil
}

// mslBindings flattens the slot table of the first entry point. Every entry point shares one
// table.
func mslBindings(resources []bindmap.Resource, perEntry map[string]msl.EntryPointResources) []mslBinding {
	keys := slices.Sorted(maps.Keys(perEntry))
	if len(keys) == 0 {
		return nil
	}
	table := perEntry[keys[0]]
	var out []mslBinding
	for _, res := range resources {
		t, ok := table.Resources[ir.ResourceBinding{Group: res.Group, Binding: res.Binding}]
		if !ok {
			continue
		}
		mb := mslBinding{Name: res.Name, Mutable: t.Mutable}
		switch {
		case t.Buffer != nil:
			mb.Slot = fmt.Sprintf("buffer(%d)", *t.Buffer)
		case t.Texture != nil:
			mb.Slot = fmt.Sprintf("texture(%d)", *t.Texture)
		case t.Sampler != nil:
			mb.Slot = fmt.Sprintf("sampler(%d)", *t.Sampler)
		}
		out = append(out, mb)
	}
	return out
}

// encode writes v in a machine readable format.
func encode(w io.Writer, format string, v any) error {
	switch format {
	case config.FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case config.FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("format %q is not machine readable", format)
	}
}

// writeText prints the report for a terminal.
func (r *report) writeText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "files:\n")
	for i, f := range r.Files {
		fmt.Fprintf(tw, "  %d\t%s\n", i, f)
	}
	fmt.Fprintf(tw, "techniques:\n")
	for _, t := range r.Techniques {
		for _, p := range t.Passes {
			for _, stage := range slices.Sorted(maps.Keys(p.Shaders)) {
				ref := p.Shaders[stage]
				fmt.Fprintf(tw, "  %s/%s\t%s\t%s\t%s\n", t.Name, p.Name, stage, ref.Name, ref.Profile)
			}
		}
	}
	fmt.Fprintf(tw, "resources:\n")
	for _, res := range r.Resources {
		fmt.Fprintf(tw, "  %s\t%s\tspace%d\tgroup %d\tbinding %d\n", res.Name, res.Type, res.Space, res.Group, res.Binding)
	}
	if len(r.Unreferenced) > 0 {
		fmt.Fprintf(tw, "unreferenced:\n")
		for _, name := range r.Unreferenced {
			fmt.Fprintf(tw, "  %s\n", name)
		}
	}
	for _, l := range r.Layouts {
		fmt.Fprintf(tw, "layout %s %s:\n", l.Name, l.Variants)
		if l.Error != "" {
			fmt.Fprintf(tw, "  error\t%s\n", l.Error)
			continue
		}
		for _, f := range l.Layout.Fields {
			fmt.Fprintf(tw, "  %s\t%s\toffset %d\tsize %d\n", f.Name, f.Type, f.Offset, f.Size)
		}
		fmt.Fprintf(tw, "  total\t\tsize %d\talign %d\n", l.Layout.Size, l.Layout.Align)
	}
	if b := r.Bindings; b != nil {
		fmt.Fprintf(tw, "bindings (%s):\n", b.ShaderModel)
		for _, h := range b.HLSL {
			fmt.Fprintf(tw, "  hlsl\t%s\t%s\tspace%d\n", h.Name, h.Register, h.Space)
		}
		for _, g := range b.GLSL {
			fmt.Fprintf(tw, "  glsl\t%s\t%s\t%d\n", g.Name, g.Class, g.Unit)
		}
		for _, m := range b.MSL {
			fmt.Fprintf(tw, "  msl\t%s\t%s\n", m.Name, m.Slot)
		}
		for _, name := range slices.Sorted(maps.Keys(b.Problems)) {
			fmt.Fprintf(tw, "  skipped\t%s\t%s\n", name, b.Problems[name])
		}
	}
	return tw.Flush()
}

// writeEnum prints the published resource type table.
func writeEnum(w io.Writer, format string) error {
	table := restype.Table()
	if format != config.FormatText {
		return encode(w, format, table)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, entry := range table {
		fmt.Fprintf(tw, "%s\t0x%08X\n", entry.Name, uint32(entry.Value))
	}
	return tw.Flush()
}
