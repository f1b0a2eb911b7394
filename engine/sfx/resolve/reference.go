package resolve

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-sfx/engine/sfx/declaration"
	"github.com/Carmen-Shannon/oxy-sfx/engine/sfx/diag"
)

// reference resolves the references of one pass.
type reference struct {
	r     *registry
	scope string
	tech  *declaration.Technique
	pass  *declaration.Pass
	errs  *diag.List
}

func (x *reference) resolvePass() {
	for stage := range declaration.StageCount {
		ref := x.pass.Shaders[stage]
		if !ref.IsSet() {
			continue
		}
		x.shader(ref, stage.String()+" shader")
	}
	for _, g := range x.pass.HitGroups {
		for _, h := range []struct{ name, usage string }{
			{g.ClosestHit, "closest hit shader"},
			{g.AnyHit, "any hit shader"},
			{g.Intersection, "intersection shader"},
		} {
			if h.name == "" {
				continue
			}
			if d := x.find(h.name, "hit group "+g.Name+" "+h.usage, declaration.TypeFunction); d != nil {
				d.RefCount++
			}
		}
	}
	x.state(x.pass.RasterizerState, "rasterizer state", declaration.TypeRasterizerState)
	x.state(x.pass.DepthStencilState, "depth stencil state", declaration.TypeDepthState)
	x.state(x.pass.BlendState, "blend state", declaration.TypeBlendState)
	x.state(x.pass.RenderTargetFormatState, "render target format state", declaration.TypeRenderTargetFormatState)
}

// shader resolves an entry point reference. A name may denote a function, or a variable holding
// a compiled shader whose function must resolve in turn.
func (x *reference) shader(ref declaration.ShaderRef, usage string) {
	d := x.find(ref.Name, usage, declaration.TypeFunction, declaration.TypeVariable)
	if d == nil {
		return
	}
	if d.Type() == declaration.TypeFunction {
		d.RefCount++
		return
	}
	v, _ := d.Variable()
	if v.Compiled == nil {
		x.fail(ref.Name, usage, fmt.Sprintf("variable of type %s is not a compiled shader", v.TypeName))
		return
	}
	d.RefCount++
	if fn := x.find(v.Compiled.Function, usage+" entry point", declaration.TypeFunction); fn != nil {
		fn.RefCount++
	}
}

func (x *reference) state(name, usage string, kind declaration.Type) {
	if name == "" {
		return
	}
	if d := x.find(name, usage, kind); d != nil {
		d.RefCount++
	}
}

// find looks a name up for one of kinds and records an error when it is missing or declared with
// another kind.
func (x *reference) find(name, usage string, kinds ...declaration.Type) *declaration.Declaration {
	if d, ok := x.r.LookupFrom(x.scope, name, kinds...); ok {
		return d
	}
	detail := ""
	if other, ok := x.r.LookupFrom(x.scope, name); ok {
		detail = fmt.Sprintf("found %s, expected %s", other.Type(), kinds[0])
	}
	x.fail(name, usage, detail)
	return nil
}

func (x *reference) fail(name, usage, detail string) {
	x.errs.Add(&diag.UnresolvedReferenceError{
		Technique: x.tech.Name,
		Pass:      x.pass.Name,
		Name:      name,
		Usage:     usage,
		Detail:    detail,
		Pos:       x.pass.Pos,
	})
}
