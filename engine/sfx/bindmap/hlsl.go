package bindmap

import (
	"fmt"
	"strings"

	"github.com/gogpu/naga/hlsl"
)

// HLSLOptions builds the naga HLSL writer options that place every resource on its register.
// Missing bindings are not faked, so a shader that uses a resource the effect did not declare
// fails to compile.
//
// Parameters:
//   - resources: the collected resources
//   - model: the target shader model
//
// Returns:
//   - *hlsl.Options: the writer options
func HLSLOptions(resources []Resource, model hlsl.ShaderModel) *hlsl.Options {
	opts := hlsl.DefaultOptions()
	opts.ShaderModel = model
	opts.FakeMissingBindings = false
	for _, r := range resources {
		target := hlsl.DefaultBindTarget().WithSpace(r.Space).WithRegister(r.Register)
		if r.Count > 0 {
			target = target.WithArraySize(r.Count)
		}
		opts.BindingMap[hlsl.ResourceBinding{Group: r.Group, Binding: r.Binding}] = target
	}
	return opts
}

// shaderModels lists the models ParseShaderModel recognizes, oldest first.
var shaderModels = []hlsl.ShaderModel{
	hlsl.ShaderModel5_0,
	hlsl.ShaderModel5_1,
	hlsl.ShaderModel6_0,
	hlsl.ShaderModel6_1,
	hlsl.ShaderModel6_2,
	hlsl.ShaderModel6_3,
	hlsl.ShaderModel6_4,
	hlsl.ShaderModel6_5,
	hlsl.ShaderModel6_6,
	hlsl.ShaderModel6_7,
}

// ParseShaderModel parses a shader model written as "5.1", "6_0", "sm_6_6" or as a full profile
// such as "ps_5_0" or "lib_6_3".
//
// Parameters:
//   - s: the model or profile text
//
// Returns:
//   - hlsl.ShaderModel: the model
//   - error: if s names no known model
func ParseShaderModel(s string) (hlsl.ShaderModel, error) {
	text := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), ".", "_"))
	if i := strings.IndexByte(text, '_'); i > 0 && !isDigit(text[0]) {
		text = text[i+1:]
	}
	for _, m := range shaderModels {
		if m.ProfileSuffix() == text {
			return m, nil
		}
	}
	return hlsl.ShaderModel5_1, fmt.Errorf("unknown shader model %q", s)
}

// RequiredShaderModel returns the highest model named by a set of profiles, so every entry point
// of an effect can be compiled with one set of options. Profiles without a model, such as
// "fx_5_0", are ignored; with no usable profile the result is the naga default.
//
// Parameters:
//   - profiles: the CompileShader profiles of an effect
//
// Returns:
//   - hlsl.ShaderModel: the highest model found
func RequiredShaderModel(profiles []string) hlsl.ShaderModel {
	best := hlsl.DefaultOptions().ShaderModel
	found := false
	for _, p := range profiles {
		if strings.HasPrefix(strings.ToLower(p), "fx_") {
			continue
		}
		m, err := ParseShaderModel(p)
		if err != nil {
			continue
		}
		if !found || m > best {
			best, found = m, true
		}
	}
	return best
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
