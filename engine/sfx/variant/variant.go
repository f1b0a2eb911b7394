// Package variant selects the concrete member list of a struct or constant buffer for a given
// assignment of its variant variables.
//
// Members written inside "#if variable OP value" blocks carry a condition. A member without a
// condition is always present; a conditioned member is present when its test holds for the value
// bound to its variable. Unbound variables and comparisons between integer and floating-point
// values are errors rather than guesses.
package variant

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/oxy-sfx/engine/sfx/declaration"
	"github.com/Carmen-Shannon/oxy-sfx/engine/sfx/diag"
)

// MaxPermutations bounds the number of assignments Permutations will enumerate.
const MaxPermutations = 1 << 16

// Bindings assigns a value to each variant variable.
type Bindings map[string]declaration.VariantValue

// Domain lists the candidate values of each variant variable.
type Domain map[string][]declaration.VariantValue

// Evaluate returns the members of a struct-like declaration that are present under bindings.
//
// Parameters:
//   - d: a STRUCT, CONSTANT_BUFFER or NAMED_CONSTANT_BUFFER declaration
//   - bindings: the variant variable values
//
// Returns:
//   - []declaration.Member: the present members in declaration order
//   - error: a *diag.VariantBindingError, or an error if d has no members
func Evaluate(d *declaration.Declaration, bindings Bindings) ([]declaration.Member, error) {
	s, ok := d.Struct()
	if !ok {
		return nil, fmt.Errorf("variant: %s %q has no members", d.Type(), d.Name)
	}
	return EvaluateStruct(d.Name, s, bindings)
}

// EvaluateStruct is Evaluate for a bare struct body.
//
// Parameters:
//   - name: the struct name, used in errors
//   - s: the struct body
//   - bindings: the variant variable values
//
// Returns:
//   - []declaration.Member: the present members in declaration order
//   - error: a *diag.VariantBindingError for the first member that cannot be evaluated
func EvaluateStruct(name string, s *declaration.Struct, bindings Bindings) ([]declaration.Member, error) {
	out := make([]declaration.Member, 0, len(s.Members))
	for _, m := range s.Members {
		ok, err := Holds(m.Condition, bindings)
		if err != nil {
			return nil, &diag.VariantBindingError{Struct: name, Member: m.Name, Variable: m.Condition.Variable, Reason: err.Error()}
		}
		if ok {
			out = append(out, m)
		}
	}
	return out, nil
}

// Holds reports whether a condition passes under bindings. Conditions without a test always pass.
//
// Parameters:
//   - c: the condition
//   - bindings: the variant variable values
//
// Returns:
//   - bool: true if the condition passes
//   - error: if the variable is unbound or its value has a different kind than the condition
func Holds(c declaration.VariantCondition, bindings Bindings) (bool, error) {
	if !c.IsSet() {
		return true, nil
	}
	v, ok := bindings[c.Variable]
	if !ok {
		return false, fmt.Errorf("not bound")
	}
	cmp, err := v.Compare(c.Value)
	if err != nil {
		return false, err
	}
	switch {
	case c.Test&declaration.Equal != 0 && cmp == 0:
		return true, nil
	case c.Test&declaration.NotEqual != 0 && cmp != 0:
		return true, nil
	case c.Test&declaration.Greater != 0 && cmp > 0:
		return true, nil
	case c.Test&declaration.Less != 0 && cmp < 0:
		return true, nil
	}
	return false, nil
}

// Permutation is one distinct concrete layout of a struct.
type Permutation struct {
	// Members is the concrete member list.
	Members []declaration.Member
	// Assignments lists every binding that produces this layout, in enumeration order.
	Assignments []Bindings
}

// Key returns a compact description of the member list, "float4 a;float b[2]".
func (p Permutation) Key() string {
	return layoutKey(p.Members)
}

// Permutations enumerates the cartesian product of the candidate values of every variable the
// struct depends on and groups the assignments by the layout they produce. Variables are taken in
// sorted order with the last one varying fastest, so the result is deterministic.
//
// Parameters:
//   - name: the struct name, used in errors
//   - s: the struct body
//   - domain: the candidate values per variable, every variable of s must be present
//
// Returns:
//   - []Permutation: the distinct layouts in order of first appearance
//   - error: a *diag.VariantBindingError for a variable without candidates or a failing
//     comparison, or an error when the product exceeds MaxPermutations
func Permutations(name string, s *declaration.Struct, domain Domain) ([]Permutation, error) {
	vars := s.VariantVariables()
	total := 1
	for _, v := range vars {
		values := domain[v]
		if len(values) == 0 {
			return nil, &diag.VariantBindingError{Struct: name, Variable: v, Reason: "no candidate values"}
		}
		total *= len(values)
		if total > MaxPermutations {
			return nil, fmt.Errorf("variant: %q has more than %d permutations", name, MaxPermutations)
		}
	}

	var out []Permutation
	byKey := make(map[string]int)
	idx := make([]int, len(vars))
	for range total {
		b := make(Bindings, len(vars))
		for i, v := range vars {
			b[v] = domain[v][idx[i]]
		}
		members, err := EvaluateStruct(name, s, b)
		if err != nil {
			return nil, err
		}
		key := layoutKey(members)
		if i, ok := byKey[key]; ok {
			out[i].Assignments = append(out[i].Assignments, b)
		} else {
			byKey[key] = len(out)
			out = append(out, Permutation{Members: members, Assignments: []Bindings{b}})
		}

		for i := len(idx) - 1; i >= 0; i-- {
			idx[i]++
			if idx[i] < len(domain[vars[i]]) {
				break
			}
			idx[i] = 0
		}
	}
	return out, nil
}

func layoutKey(members []declaration.Member) string {
	parts := make([]string, len(members))
	for i, m := range members {
		p := m.Type + " " + m.Name
		if m.ArraySize > 0 {
			p += "[" + strconv.Itoa(m.ArraySize) + "]"
		}
		parts[i] = p
	}
	return strings.Join(parts, ";")
}

// String formats bindings as "a=1 b=2.5" in variable order.
func (b Bindings) String() string {
	keys := make([]string, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + b[k].String()
	}
	return strings.Join(parts, " ")
}

// ValueOf converts a decoded configuration value to a VariantValue. Integers stay integers,
// floats stay floats, booleans become 0 or 1 and strings are parsed as literals.
//
// Parameters:
//   - v: the value, as produced by a TOML, YAML or JSON decoder
//
// Returns:
//   - declaration.VariantValue: the converted value
//   - error: for unsupported types
func ValueOf(v any) (declaration.VariantValue, error) {
	switch x := v.(type) {
	case int:
		return declaration.IntValue(int64(x)), nil
	case int64:
		return declaration.IntValue(x), nil
	case int32:
		return declaration.IntValue(int64(x)), nil
	case uint64:
		return declaration.IntValue(int64(x)), nil
	case float64:
		return declaration.FloatValue(x), nil
	case float32:
		return declaration.FloatValue(float64(x)), nil
	case bool:
		if x {
			return declaration.IntValue(1), nil
		}
		return declaration.IntValue(0), nil
	case string:
		return declaration.ParseVariantValue(x)
	default:
		return declaration.VariantValue{}, fmt.Errorf("variant: unsupported value %v of type %T", v, v)
	}
}

// DomainOf converts decoded configuration lists to a Domain.
//
// Parameters:
//   - raw: candidate values per variable
//
// Returns:
//   - Domain: the converted domain
//   - error: for the first unsupported value
func DomainOf(raw map[string][]any) (Domain, error) {
	d := make(Domain, len(raw))
	for name, values := range raw {
		for _, v := range values {
			vv, err := ValueOf(v)
			if err != nil {
				return nil, fmt.Errorf("variable %q: %w", name, err)
			}
			d[name] = append(d[name], vv)
		}
	}
	return d, nil
}
