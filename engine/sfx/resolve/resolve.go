// Package resolve links the passes of parsed effect files to the declarations they name.
//
// Each parsed file is one scope. Names are looked up in the scope of the referencing file first
// and then in the other scopes in the order they were added. Resolution never stops at the first
// problem: every dangling or mismatched reference is collected and returned as one diag.List.
package resolve

import (
	"github.com/Carmen-Shannon/oxy-sfx/common"
	"github.com/Carmen-Shannon/oxy-sfx/engine/sfx/declaration"
	"github.com/Carmen-Shannon/oxy-sfx/engine/sfx/diag"
	"github.com/Carmen-Shannon/oxy-sfx/engine/sfx/parser"
)

// Unit is one parsed file registered as a scope.
type Unit struct {
	// Name identifies the scope, usually the file path.
	Name string
	// Result is the parse output of the file.
	Result *parser.Result
}

// Registry holds the declarations of a build and resolves pass references against them.
type Registry interface {
	// Lookup returns the first declaration named name, searching scopes in the order they were added.
	//
	// Parameters:
	//   - name: the exact declaration name
	//
	// Returns:
	//   - *declaration.Declaration: the declaration
	//   - bool: false if no scope declares name
	Lookup(name string) (*declaration.Declaration, bool)

	// LookupFrom returns the declaration named name as seen from the given scope: the scope itself
	// is searched first, then the others in order. Only declarations of the listed kinds match;
	// with no kinds any declaration matches.
	//
	// Parameters:
	//   - scope: the name of the referencing scope
	//   - name: the exact declaration name
	//   - kinds: the acceptable declaration kinds
	//
	// Returns:
	//   - *declaration.Declaration: the declaration
	//   - bool: false if nothing matches
	LookupFrom(scope, name string, kinds ...declaration.Type) (*declaration.Declaration, bool)

	// Declarations returns every registered declaration, scope by scope in source order.
	//
	// Returns:
	//   - []*declaration.Declaration: the declarations
	Declarations() []*declaration.Declaration

	// Scopes returns the scope names in registration order.
	//
	// Returns:
	//   - []string: the scope names
	Scopes() []string

	// Resolve checks every pass reference of every registered unit and recomputes reference counts.
	// Calling it again recounts from zero.
	//
	// Returns:
	//   - error: a diag.List of *diag.UnresolvedReferenceError, or nil
	Resolve() error

	// Unreferenced returns the declarations no pass uses, in registration order. Only meaningful
	// after Resolve.
	//
	// Returns:
	//   - []*declaration.Declaration: the unused declarations
	Unreferenced() []*declaration.Declaration
}

// scope is the declaration table of one unit.
type scope struct {
	name    string
	results []*parser.Result
	byName  map[string][]*declaration.Declaration
	order   []*declaration.Declaration
}

// registry is the implementation of the Registry interface.
type registry struct {
	scopes  []*scope
	byScope map[string]*scope
}

var _ Registry = &registry{}

// NewRegistry builds a registry with one scope per unit. Declarations that repeat a name and kind
// within a scope are reported, except when both come from the same file and line, which happens
// when one header is included twice; the first copy is kept. Function overloads share a name and
// are not reported; lookups return the first overload.
//
// Parameters:
//   - units: the parsed files, in build order
//
// Returns:
//   - Registry: the registry, usable even when an error is returned
//   - error: a diag.List of *diag.DuplicateDeclarationError, or nil
func NewRegistry(units ...Unit) (Registry, error) {
	r := &registry{byScope: make(map[string]*scope, len(units))}
	var errs diag.List
	for _, u := range units {
		s, ok := r.byScope[u.Name]
		if !ok {
			s = &scope{name: u.Name, byName: make(map[string][]*declaration.Declaration)}
			r.scopes = append(r.scopes, s)
			r.byScope[u.Name] = s
		}
		s.results = append(s.results, u.Result)
		for _, d := range u.Result.Declarations {
			errs.Add(s.add(d))
		}
	}
	common.Logger().Debug("sfx: registry built", "scopes", len(r.scopes), "duplicates", len(errs))
	return r, errs.Err()
}

func (s *scope) add(d *declaration.Declaration) error {
	for _, prev := range s.byName[d.Name] {
		if prev.Type() != d.Type() {
			continue
		}
		if prev.Pos.FileIndex == d.Pos.FileIndex && prev.Pos.FileLine == d.Pos.FileLine {
			return nil
		}
		if d.Type() == declaration.TypeFunction {
			continue
		}
		return &diag.DuplicateDeclarationError{Name: d.Name, Kind: d.Type().String(), First: prev.Pos, Second: d.Pos}
	}
	s.byName[d.Name] = append(s.byName[d.Name], d)
	s.order = append(s.order, d)
	return nil
}

func (s *scope) find(name string, kinds []declaration.Type) (*declaration.Declaration, bool) {
	for _, d := range s.byName[name] {
		if len(kinds) == 0 {
			return d, true
		}
		for _, k := range kinds {
			if d.Type() == k {
				return d, true
			}
		}
	}
	return nil, false
}

func (r *registry) Lookup(name string) (*declaration.Declaration, bool) {
	return r.LookupFrom("", name)
}

func (r *registry) LookupFrom(scopeName, name string, kinds ...declaration.Type) (*declaration.Declaration, bool) {
	local := r.byScope[scopeName]
	if local != nil {
		if d, ok := local.find(name, kinds); ok {
			return d, true
		}
	}
	for _, s := range r.scopes {
		if s == local {
			continue
		}
		if d, ok := s.find(name, kinds); ok {
			return d, true
		}
	}
	return nil, false
}

func (r *registry) Declarations() []*declaration.Declaration {
	var out []*declaration.Declaration
	for _, s := range r.scopes {
		out = append(out, s.order...)
	}
	return out
}

func (r *registry) Scopes() []string {
	out := make([]string, len(r.scopes))
	for i, s := range r.scopes {
		out[i] = s.name
	}
	return out
}

func (r *registry) Unreferenced() []*declaration.Declaration {
	var out []*declaration.Declaration
	for _, d := range r.Declarations() {
		if d.RefCount == 0 {
			out = append(out, d)
		}
	}
	return out
}

func (r *registry) Resolve() error {
	for _, d := range r.Declarations() {
		d.RefCount = 0
	}
	var errs diag.List
	for _, s := range r.scopes {
		for _, res := range s.results {
			for _, techName := range res.TechniqueOrder {
				tech := res.Techniques[techName]
				for _, pass := range tech.Passes() {
					ref := &reference{r: r, scope: s.name, tech: tech, pass: pass, errs: &errs}
					ref.resolvePass()
				}
			}
		}
	}
	common.Logger().Debug("sfx: references resolved", "errors", len(errs))
	return errs.Err()
}
