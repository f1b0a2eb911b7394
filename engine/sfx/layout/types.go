package layout

import (
	"slices"
	"strconv"
	"strings"
)

// scalarSizes maps scalar type names to their size in bytes. half and the min-precision types
// occupy a full 32-bit component unless the explicit 16-bit types are used.
var scalarSizes = map[string]uint64{
	"float":      4,
	"int":        4,
	"uint":       4,
	"dword":      4,
	"bool":       4,
	"half":       4,
	"min16float": 4,
	"min10float": 4,
	"min16int":   4,
	"min12int":   4,
	"min16uint":  4,
	"float32_t":  4,
	"int32_t":    4,
	"uint32_t":   4,
	"float16_t":  2,
	"int16_t":    2,
	"uint16_t":   2,
	"double":     8,
	"float64_t":  8,
	"int64_t":    8,
	"uint64_t":   8,
}

// scalarsByLength lists scalar names longest first so prefixes such as "int" do not shadow
// "int16_t".
var scalarsByLength = func() []string {
	out := make([]string, 0, len(scalarSizes))
	for k := range scalarSizes {
		out = append(out, k)
	}
	slices.SortFunc(out, func(a, b string) int {
		if len(a) != len(b) {
			return len(b) - len(a)
		}
		return strings.Compare(a, b)
	})
	return out
}()

// glslVectorPrefixes maps GLSL vector prefixes to their HLSL scalar.
var glslVectorPrefixes = map[string]string{
	"vec":  "float",
	"ivec": "int",
	"uvec": "uint",
	"bvec": "bool",
	"dvec": "double",
}

// shape is the component structure of a numeric type.
type shape struct {
	// scalar is the component size in bytes.
	scalar uint64
	// rows and cols are 1 for scalars; vectors have rows 1.
	rows, cols int
	matrix     bool
}

// vectors returns the number and length of the vectors a value of this shape is stored as.
func (s shape) vectors(rowMajor bool) (count, length int) {
	switch {
	case !s.matrix:
		return 1, s.cols
	case rowMajor:
		return s.rows, s.cols
	default:
		return s.cols, s.rows
	}
}

// parseShape resolves an HLSL or GLSL numeric type name.
//
// Parameters:
//   - name: the type name, e.g. "float4", "uint2x3", "vec3", "mat4", "vector<float, 2>"
//
// Returns:
//   - shape: the component structure
//   - bool: false if name is not a numeric type
func parseShape(name string) (shape, bool) {
	name = strings.ReplaceAll(name, " ", "")
	switch name {
	case "vector":
		return shape{scalar: 4, rows: 1, cols: 4}, true
	case "matrix":
		return shape{scalar: 4, rows: 4, cols: 4, matrix: true}, true
	}

	if args, ok := templateArgs(name, "vector"); ok && len(args) == 2 {
		return sized(args[0], args[1])
	}
	if args, ok := templateArgs(name, "matrix"); ok && len(args) == 3 {
		return sized(args[0], args[1]+"x"+args[2])
	}

	if rest, ok := strings.CutPrefix(name, "mat"); ok {
		// GLSL matCxR has C columns of R rows.
		c, r, found := strings.Cut(rest, "x")
		if !found {
			r = c
		}
		return sized("float", r+"x"+c)
	}
	for prefix, scalar := range glslVectorPrefixes {
		if rest, ok := strings.CutPrefix(name, prefix); ok {
			if n, err := strconv.Atoi(rest); err == nil && n >= 2 && n <= 4 {
				return sized(scalar, rest)
			}
		}
	}

	for _, scalar := range scalarsByLength {
		if rest, ok := strings.CutPrefix(name, scalar); ok {
			return sized(scalar, rest)
		}
	}
	return shape{}, false
}

// sized builds a shape from a scalar name and a dimension suffix: "" for a scalar, "N" for a
// vector and "RxC" for a matrix.
func sized(scalar, dims string) (shape, bool) {
	size, ok := scalarSizes[scalar]
	if !ok {
		return shape{}, false
	}
	if dims == "" {
		return shape{scalar: size, rows: 1, cols: 1}, true
	}
	r, c, isMatrix := strings.Cut(dims, "x")
	rows, err := strconv.Atoi(r)
	if err != nil || rows < 1 || rows > 4 {
		return shape{}, false
	}
	if !isMatrix {
		return shape{scalar: size, rows: 1, cols: rows}, true
	}
	cols, err := strconv.Atoi(c)
	if err != nil || cols < 1 || cols > 4 {
		return shape{}, false
	}
	return shape{scalar: size, rows: rows, cols: cols, matrix: true}, true
}

func templateArgs(name, template string) ([]string, bool) {
	rest, ok := strings.CutPrefix(name, template+"<")
	if !ok || !strings.HasSuffix(rest, ">") {
		return nil, false
	}
	return strings.Split(rest[:len(rest)-1], ","), true
}
