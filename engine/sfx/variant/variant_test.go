package variant

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-sfx/engine/sfx/declaration"
	"github.com/Carmen-Shannon/oxy-sfx/engine/sfx/diag"
	"github.com/Carmen-Shannon/oxy-sfx/engine/sfx/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const material = `
cbuffer Material : register(b0)
{
    float4 baseColor;
#if variantVar == 1
    float4 emissive;
#else
    float4 fallback;
#endif
#if quality >= 2.5
    float detail[2];
#endif
};`

func parseStruct(t *testing.T, src, name string) *declaration.Declaration {
	t.Helper()
	res, err := parser.Parse(src, 0)
	require.NoError(t, err)
	for _, d := range res.Declarations {
		if d.Name == name {
			return d
		}
	}
	t.Fatalf("declaration %q not found", name)
	return nil
}

func names(members []declaration.Member) []string {
	out := make([]string, len(members))
	for i, m := range members {
		out[i] = m.Name
	}
	return out
}

func TestEvaluateSelectsMembers(t *testing.T) {
	d := parseStruct(t, material, "Material")

	tests := []struct {
		name     string
		bindings Bindings
		want     []string
	}{
		{"on", Bindings{"variantVar": declaration.IntValue(1), "quality": declaration.FloatValue(3)}, []string{"baseColor", "emissive", "detail"}},
		{"off", Bindings{"variantVar": declaration.IntValue(0), "quality": declaration.FloatValue(1)}, []string{"baseColor", "fallback"}},
		{"boundary", Bindings{"variantVar": declaration.IntValue(2), "quality": declaration.FloatValue(2.5)}, []string{"baseColor", "fallback", "detail"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			members, err := Evaluate(d, tt.bindings)
			require.NoError(t, err)
			assert.Equal(t, tt.want, names(members))
		})
	}
}

func TestEvaluateUnconditionalStruct(t *testing.T) {
	d := parseStruct(t, "struct Plain { float a; float b; };", "Plain")
	members, err := Evaluate(d, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names(members))
}

func TestEvaluateUnboundVariable(t *testing.T) {
	d := parseStruct(t, material, "Material")
	_, err := Evaluate(d, Bindings{"quality": declaration.FloatValue(1)})
	require.Error(t, err)

	var vb *diag.VariantBindingError
	require.ErrorAs(t, err, &vb)
	assert.Equal(t, "Material", vb.Struct)
	assert.Equal(t, "emissive", vb.Member)
	assert.Equal(t, "variantVar", vb.Variable)
	assert.True(t, errors.Is(err, diag.ErrVariantBinding))
}

func TestEvaluateMixedKinds(t *testing.T) {
	d := parseStruct(t, material, "Material")
	_, err := Evaluate(d, Bindings{"variantVar": declaration.IntValue(1), "quality": declaration.IntValue(3)})

	var vb *diag.VariantBindingError
	require.ErrorAs(t, err, &vb)
	assert.Equal(t, "detail", vb.Member)
	assert.Contains(t, vb.Reason, "cannot compare")
}

func TestEvaluateRejectsNonStruct(t *testing.T) {
	d := parseStruct(t, "Texture2D tex;", "tex")
	_, err := Evaluate(d, nil)
	assert.Error(t, err)
}

func TestHoldsCompositeTests(t *testing.T) {
	b := Bindings{"x": declaration.IntValue(5)}
	tests := []struct {
		test declaration.VariantTest
		rhs  int64
		want bool
	}{
		{declaration.Equal, 5, true},
		{declaration.NotEqual, 5, false},
		{declaration.Greater, 4, true},
		{declaration.Less, 4, false},
		{declaration.GreaterEqual, 5, true},
		{declaration.LessEqual, 4, false},
		{declaration.LessEqual, 5, true},
	}
	for _, tt := range tests {
		t.Run(tt.test.String(), func(t *testing.T) {
			got, err := Holds(declaration.VariantCondition{Variable: "x", Test: tt.test, Value: declaration.IntValue(tt.rhs)}, b)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			neg, err := Holds(declaration.VariantCondition{Variable: "x", Test: tt.test.Negate(), Value: declaration.IntValue(tt.rhs)}, b)
			require.NoError(t, err)
			assert.Equal(t, !tt.want, neg)
		})
	}
}

func TestPermutationsGroupsLayouts(t *testing.T) {
	d := parseStruct(t, material, "Material")
	s, _ := d.Struct()

	perms, err := Permutations("Material", s, Domain{
		"variantVar": {declaration.IntValue(0), declaration.IntValue(1), declaration.IntValue(2)},
		"quality":    {declaration.FloatValue(1), declaration.FloatValue(3)},
	})
	require.NoError(t, err)
	require.Len(t, perms, 4)

	assert.Equal(t, "float4 baseColor;float4 fallback", perms[0].Key())
	require.Len(t, perms[0].Assignments, 2)
	assert.Equal(t, "quality=1 variantVar=0", perms[0].Assignments[0].String())
	assert.Equal(t, "quality=1 variantVar=2", perms[0].Assignments[1].String())

	assert.Equal(t, "float4 baseColor;float4 emissive", perms[1].Key())
	assert.Equal(t, "float4 baseColor;float4 fallback;float detail[2]", perms[2].Key())
	assert.Equal(t, "float4 baseColor;float4 emissive;float detail[2]", perms[3].Key())
}

func TestPermutationsMissingDomain(t *testing.T) {
	d := parseStruct(t, material, "Material")
	s, _ := d.Struct()

	_, err := Permutations("Material", s, Domain{"quality": {declaration.FloatValue(1)}})
	var vb *diag.VariantBindingError
	require.ErrorAs(t, err, &vb)
	assert.Equal(t, "variantVar", vb.Variable)
}

func TestDomainOf(t *testing.T) {
	d, err := DomainOf(map[string][]any{
		"a": {int64(1), 2, true},
		"b": {1.5, "0x10"},
	})
	require.NoError(t, err)
	assert.Equal(t, []declaration.VariantValue{declaration.IntValue(1), declaration.IntValue(2), declaration.IntValue(1)}, d["a"])
	assert.Equal(t, []declaration.VariantValue{declaration.FloatValue(1.5), declaration.IntValue(16)}, d["b"])

	_, err = DomainOf(map[string][]any{"c": {[]int{1}}})
	assert.Error(t, err)
}
