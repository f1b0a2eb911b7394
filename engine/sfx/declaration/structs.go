package declaration

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// VariantTest is the comparison operator of a variant condition. The composite tests are the OR of
// the primitives, so a test passes when any of its primitive comparisons holds.
type VariantTest uint8

const (
	NoTest       VariantTest = 0
	NotEqual     VariantTest = 1 << 0
	Equal        VariantTest = 1 << 1
	Greater      VariantTest = 1 << 2
	Less         VariantTest = 1 << 3
	GreaterEqual             = Greater | Equal
	LessEqual                = Less | Equal
)

var variantTestNames = map[VariantTest]string{
	NoTest:       "",
	NotEqual:     "!=",
	Equal:        "==",
	Greater:      ">",
	Less:         "<",
	GreaterEqual: ">=",
	LessEqual:    "<=",
}

func (t VariantTest) String() string {
	if s, ok := variantTestNames[t]; ok {
		return s
	}
	return fmt.Sprintf("VariantTest(%d)", uint8(t))
}

// ParseVariantTest parses a comparison operator as written after #if.
//
// Parameters:
//   - op: one of ==, !=, >, <, >=, <=
//
// Returns:
//   - VariantTest: the operator
//   - bool: false if op is not a comparison operator
func ParseVariantTest(op string) (VariantTest, bool) {
	for t, s := range variantTestNames {
		if t != NoTest && s == op {
			return t, true
		}
	}
	return NoTest, false
}

// Negate returns the test that passes exactly when t fails. It is used for #else branches.
//
// Returns:
//   - VariantTest: the complementary test, NoTest for NoTest
func (t VariantTest) Negate() VariantTest {
	switch t {
	case Equal:
		return NotEqual
	case NotEqual:
		return Equal
	case Greater:
		return LessEqual
	case LessEqual:
		return Greater
	case Less:
		return GreaterEqual
	case GreaterEqual:
		return Less
	default:
		return NoTest
	}
}

// ValueKind tags the representation of a VariantValue.
type ValueKind uint8

const (
	KindInt ValueKind = iota
	KindFloat
)

func (k ValueKind) String() string {
	if k == KindFloat {
		return "float"
	}
	return "int"
}

// VariantValue is an integer or floating-point comparator. Only the field selected by Kind is
// meaningful.
type VariantValue struct {
	Kind  ValueKind
	Int   int64
	Float float64
}

// IntValue creates an integer VariantValue.
func IntValue(v int64) VariantValue { return VariantValue{Kind: KindInt, Int: v} }

// FloatValue creates a floating-point VariantValue.
func FloatValue(v float64) VariantValue { return VariantValue{Kind: KindFloat, Float: v} }

// ParseVariantValue parses a numeric literal. Literals containing a decimal point or exponent, or
// ending in an f suffix, are floats; everything else is an integer.
//
// Parameters:
//   - s: the literal text
//
// Returns:
//   - VariantValue: the tagged value
//   - error: if s is not a number
func ParseVariantValue(s string) (VariantValue, error) {
	text := strings.TrimRight(s, "uUlL")
	isHex := strings.HasPrefix(text, "0x") || strings.HasPrefix(text, "0X")
	if !isHex && (strings.ContainsAny(text, ".eE") || strings.HasSuffix(text, "f") || strings.HasSuffix(text, "F")) {
		f, err := strconv.ParseFloat(strings.TrimRight(text, "fFhH"), 64)
		if err != nil {
			return VariantValue{}, fmt.Errorf("invalid variant value %q", s)
		}
		return FloatValue(f), nil
	}
	i, err := strconv.ParseInt(text, 0, 64)
	if err != nil {
		return VariantValue{}, fmt.Errorf("invalid variant value %q", s)
	}
	return IntValue(i), nil
}

func (v VariantValue) String() string {
	if v.Kind == KindFloat {
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	}
	return strconv.FormatInt(v.Int, 10)
}

// Compare orders v against w. Values of different kinds are not comparable.
//
// Parameters:
//   - w: the value to compare against
//
// Returns:
//   - int: -1, 0 or 1
//   - error: if the kinds differ
func (v VariantValue) Compare(w VariantValue) (int, error) {
	if v.Kind != w.Kind {
		return 0, fmt.Errorf("cannot compare %s value %s with %s value %s", v.Kind, v, w.Kind, w)
	}
	switch {
	case v.Kind == KindInt && v.Int < w.Int, v.Kind == KindFloat && v.Float < w.Float:
		return -1, nil
	case v.Kind == KindInt && v.Int > w.Int, v.Kind == KindFloat && v.Float > w.Float:
		return 1, nil
	default:
		return 0, nil
	}
}

// VariantCondition gates a struct member on the value of a variant variable.
type VariantCondition struct {
	Variable string
	Test     VariantTest
	Value    VariantValue
}

// IsSet reports whether the condition gates its member.
func (c VariantCondition) IsSet() bool { return c.Test != NoTest }

func (c VariantCondition) String() string {
	if !c.IsSet() {
		return ""
	}
	return fmt.Sprintf("%s %s %s", c.Variable, c.Test, c.Value)
}

// Member is one field of a struct or constant buffer.
type Member struct {
	Type      string
	Name      string
	Semantic  string
	ArraySize int
	// Modifiers are interpolation and storage qualifiers, e.g. "nointerpolation", "row_major".
	Modifiers []string
	// PackOffset is the raw packoffset(...) argument, empty if absent.
	PackOffset string
	Condition  VariantCondition
}

// Struct is the body of a STRUCT declaration and the shared part of both constant buffer kinds.
type Struct struct {
	Members     []Member
	HasVariants bool
}

func (*Struct) declType() Type { return TypeStruct }

// AddMember appends a member and keeps HasVariants in step with the member conditions.
//
// Parameters:
//   - m: the member to append
func (s *Struct) AddMember(m Member) {
	s.Members = append(s.Members, m)
	if m.Condition.IsSet() {
		s.HasVariants = true
	}
}

// Member returns the member with the given name. With variants the first match is returned.
func (s *Struct) Member(name string) (Member, bool) {
	for _, m := range s.Members {
		if m.Name == name {
			return m, true
		}
	}
	return Member{}, false
}

// VariantVariables returns the sorted, de-duplicated names of the variables the members depend on.
func (s *Struct) VariantVariables() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, m := range s.Members {
		if !m.Condition.IsSet() {
			continue
		}
		if _, ok := seen[m.Condition.Variable]; ok {
			continue
		}
		seen[m.Condition.Variable] = struct{}{}
		out = append(out, m.Condition.Variable)
	}
	slices.Sort(out)
	return out
}

// ConstantBuffer is the body of a CONSTANT_BUFFER declaration.
type ConstantBuffer struct {
	Struct
}

func (*ConstantBuffer) declType() Type { return TypeConstantBuffer }

// NamedConstantBuffer is the body of a NAMED_CONSTANT_BUFFER declaration, a constant buffer
// referenced through InstanceName outside its type declaration.
type NamedConstantBuffer struct {
	Struct
	InstanceName string
}

func (*NamedConstantBuffer) declType() Type { return TypeNamedConstantBuffer }
