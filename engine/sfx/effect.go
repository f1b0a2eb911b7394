package sfx

import (
	"fmt"
	"maps"
	"slices"

	"github.com/Carmen-Shannon/oxy-sfx/common"
	"github.com/Carmen-Shannon/oxy-sfx/engine/sfx/bindmap"
	"github.com/Carmen-Shannon/oxy-sfx/engine/sfx/declaration"
	"github.com/Carmen-Shannon/oxy-sfx/engine/sfx/index"
	"github.com/Carmen-Shannon/oxy-sfx/engine/sfx/layout"
	"github.com/Carmen-Shannon/oxy-sfx/engine/sfx/resolve"
	"github.com/Carmen-Shannon/oxy-sfx/engine/sfx/variant"
)

// Effect is the resolved output of one build. It is read-only and safe for concurrent use.
type Effect struct {
	registry       resolve.Registry
	index          *index.Index
	sources        map[int]string
	files          []string
	techniques     map[string]*declaration.Technique
	techniqueOrder []string
	shifts         bindmap.Shifts
}

func newEffect(reg resolve.Registry, units []resolve.Unit, files []string, shifts bindmap.Shifts) *Effect {
	e := &Effect{
		registry:   reg,
		sources:    make(map[int]string),
		files:      files,
		techniques: make(map[string]*declaration.Technique),
		shifts:     shifts,
	}
	indices := make([]*index.Index, 0, len(units))
	for _, u := range units {
		indices = append(indices, u.Result.Index)
		maps.Copy(e.sources, u.Result.Sources)
		for _, name := range u.Result.TechniqueOrder {
			if _, ok := e.techniques[name]; ok {
				continue
			}
			e.techniques[name] = u.Result.Techniques[name]
			e.techniqueOrder = append(e.techniqueOrder, name)
		}
	}
	e.index = index.Merge(indices...)
	return e
}

// Declarations returns every declaration, file by file in source order.
func (e *Effect) Declarations() []*declaration.Declaration {
	return e.registry.Declarations()
}

// Lookup returns the declaration named name.
//
// Parameters:
//   - name: the exact declaration name
//
// Returns:
//   - *declaration.Declaration: the first declaration with that name in build order
//   - bool: false if no file declares name
func (e *Effect) Lookup(name string) (*declaration.Declaration, bool) {
	return e.registry.Lookup(name)
}

// Technique returns the technique with the given name. When several files declare the same
// technique the first one in build order wins.
func (e *Effect) Technique(name string) (*declaration.Technique, bool) {
	t, ok := e.techniques[name]
	return t, ok
}

// Techniques returns the technique names in build order.
func (e *Effect) Techniques() []string {
	return slices.Clone(e.techniqueOrder)
}

// Index returns the merged name to source span index of every file.
func (e *Effect) Index() *index.Index {
	return e.index
}

// Extract returns the exact source text of a declaration.
//
// Parameters:
//   - name: the exact declaration name
//
// Returns:
//   - string: the declaration text
//   - error: if the name is not indexed or its file is unknown
func (e *Effect) Extract(name string) (string, error) {
	return e.index.Extract(name, index.SourceMap(e.sources))
}

// Unreferenced returns the declarations no pass uses.
func (e *Effect) Unreferenced() []*declaration.Declaration {
	return e.registry.Unreferenced()
}

// Source returns the text of a file of the build.
func (e *Effect) Source(fileIndex int) (string, bool) {
	s, ok := e.sources[fileIndex]
	return s, ok
}

// Files returns the path of every file the build opened, by file index.
func (e *Effect) Files() []string {
	return slices.Clone(e.files)
}

// structLookup resolves struct names for nested layouts.
func (e *Effect) structLookup(name string) (*declaration.Struct, bool) {
	d, ok := e.registry.LookupFrom("", name, declaration.TypeStruct)
	if !ok {
		return nil, false
	}
	return d.Struct()
}

// Layout packs the members of a struct or constant buffer under the given variant bindings.
//
// Parameters:
//   - name: the struct or constant buffer name
//   - bindings: the variant variable values, may be nil for structs without variant members
//
// Returns:
//   - *layout.Layout: the byte layout
//   - error: if name is not a struct or a member cannot be laid out
func (e *Effect) Layout(name string, bindings variant.Bindings) (*layout.Layout, error) {
	d, ok := e.registry.LookupFrom("", name, declaration.TypeStruct, declaration.TypeConstantBuffer, declaration.TypeNamedConstantBuffer)
	if !ok {
		return nil, fmt.Errorf("no struct or constant buffer named %q", name)
	}
	return layout.Of(d, bindings, e.structLookup)
}

// Permutations enumerates the distinct member layouts of a struct over a variant domain.
//
// Parameters:
//   - name: the struct or constant buffer name
//   - domain: the candidate values of every variant variable
//
// Returns:
//   - []variant.Permutation: one entry per distinct layout
//   - error: if name is not a struct or the domain misses a variable
func (e *Effect) Permutations(name string, domain variant.Domain) ([]variant.Permutation, error) {
	d, ok := e.registry.LookupFrom("", name, declaration.TypeStruct, declaration.TypeConstantBuffer, declaration.TypeNamedConstantBuffer)
	if !ok {
		return nil, fmt.Errorf("no struct or constant buffer named %q", name)
	}
	s, _ := d.Struct()
	return variant.Permutations(name, s, domain)
}

// Resources collects the binding coordinates of every resource. Constant buffer sizes are filled
// in where the buffer can be laid out without variant bindings.
//
// Returns:
//   - []bindmap.Resource: the resources in declaration order
//   - error: wrapping bindmap.ErrBindingConflict on conflicting slots
func (e *Effect) Resources() ([]bindmap.Resource, error) {
	resources, err := bindmap.Collect(e.Declarations(), e.shifts)
	if err != nil {
		return nil, err
	}
	for i := range resources {
		r := &resources[i]
		if _, ok := r.Decl.Struct(); !ok {
			continue
		}
		l, err := layout.Of(r.Decl, nil, e.structLookup)
		if err != nil {
			common.Logger().Debug("sfx: constant buffer size unknown", "name", r.Name, "error", err)
			continue
		}
		r.Size = l.Size
	}
	return resources, nil
}

// Profiles returns the distinct compile profiles named by CompileShader expressions and pass
// bindings, in first-seen order.
func (e *Effect) Profiles() []string {
	var out []string
	add := func(p string) {
		if p != "" && !slices.Contains(out, p) {
			out = append(out, p)
		}
	}
	for _, d := range e.Declarations() {
		if v, ok := d.Variable(); ok && v.Compiled != nil {
			add(v.Compiled.Profile)
		}
	}
	for _, name := range e.techniqueOrder {
		for _, p := range e.techniques[name].Passes() {
			for _, ref := range p.Shaders {
				add(ref.Profile)
			}
		}
	}
	return out
}

// EntryPoints returns the distinct functions bound to a pass stage, in first-seen order. Stages
// bound to a compiled shader variable contribute the function it compiles.
func (e *Effect) EntryPoints() []string {
	var out []string
	for _, name := range e.techniqueOrder {
		for _, p := range e.techniques[name].Passes() {
			for _, ref := range p.Shaders {
				if !ref.IsSet() {
					continue
				}
				fn := ref.Name
				if d, ok := e.registry.Lookup(fn); ok {
					if v, ok := d.Variable(); ok && v.Compiled != nil {
						fn = v.Compiled.Function
					}
				}
				if !slices.Contains(out, fn) {
					out = append(out, fn)
				}
			}
		}
	}
	return out
}

// Stages returns every stage bound by any pass, in stage order.
func (e *Effect) Stages() []declaration.Stage {
	var out []declaration.Stage
	for _, name := range e.techniqueOrder {
		for _, p := range e.techniques[name].Passes() {
			for _, s := range p.BoundStages() {
				if !slices.Contains(out, s) {
					out = append(out, s)
				}
			}
		}
	}
	slices.Sort(out)
	return out
}
