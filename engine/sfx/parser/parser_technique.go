package parser

import (
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-sfx/engine/sfx/declaration"
)

// passCommand applies one Set...(...) command to a pass. The current token is the opening
// parenthesis and the command must consume the closing one.
type passCommand func(p *parser, pass *declaration.Pass, cmd Token) error

var passCommands map[string]passCommand

func init() {
	passCommands = map[string]passCommand{
		"setvertexshader":             stageCommand(declaration.StageVertex),
		"sethullshader":               stageCommand(declaration.StageHull),
		"setdomainshader":             stageCommand(declaration.StageDomain),
		"setgeometryshader":           stageCommand(declaration.StageGeometry),
		"setpixelshader":              stageCommand(declaration.StagePixel),
		"setfragmentshader":           stageCommand(declaration.StagePixel),
		"setcomputeshader":            stageCommand(declaration.StageCompute),
		"setraygenerationshader":      stageCommand(declaration.StageRayGeneration),
		"setmissshader":               stageCommand(declaration.StageMiss),
		"setcallableshader":           stageCommand(declaration.StageCallable),
		"setclosesthitshader":         stageCommand(declaration.StageClosestHit),
		"setanyhitshader":             stageCommand(declaration.StageAnyHit),
		"setintersectionshader":       stageCommand(declaration.StageIntersection),
		"sethitgroup":                 (*parser).hitGroupCommand,
		"setraytracingshaderconfig":   (*parser).shaderConfigCommand,
		"setraytracingpipelineconfig": (*parser).pipelineConfigCommand,
		"setrasterizerstate":          (*parser).rasterizerCommand,
		"setdepthstencilstate":        (*parser).depthStencilCommand,
		"setblendstate":               (*parser).blendCommand,
		"setrendertargetformatstate":  (*parser).renderTargetFormatCommand,
		"settopology":                 (*parser).topologyCommand,
	}
}

// parseGroup parses "group Name { technique... }".
func (p *parser) parseGroup() error {
	if err := p.next(); err != nil {
		return err
	}
	nameTok, err := p.expectIdent("for group name")
	if err != nil {
		return err
	}
	if err := p.skipAnnotations(); err != nil {
		return err
	}
	if _, err := p.expect(TokenLeftBrace, "to open group "+nameTok.Text); err != nil {
		return err
	}
	for p.tok.Kind != TokenRightBrace {
		switch {
		case p.tok.Kind == TokenEOF:
			return p.errorf(p.tok, "unexpected end of file in group %q", nameTok.Text)
		case p.tok.Kind == TokenSemicolon:
			if err := p.next(); err != nil {
				return err
			}
		case strings.HasPrefix(p.tok.Text, "technique") && p.tok.Kind == TokenKeyword:
			if err := p.parseTechnique(nameTok.Text); err != nil {
				return err
			}
		default:
			return p.errorf(p.tok, "expected technique in group %q, found %s", nameTok.Text, p.tok)
		}
	}
	if err := p.next(); err != nil {
		return err
	}
	_, err = p.accept(TokenSemicolon)
	return err
}

// parseTechnique parses "technique11 Name { pass P { ... } ... }".
func (p *parser) parseTechnique(group string) error {
	kw := p.tok
	if err := p.next(); err != nil {
		return err
	}
	nameTok, err := p.expectIdent("for technique name")
	if err != nil {
		return err
	}
	if prev, ok := p.result.Techniques[nameTok.Text]; ok {
		return p.errorf(nameTok, "technique %q already declared at %s", nameTok.Text, prev.Pos)
	}
	if err := p.skipAnnotations(); err != nil {
		return err
	}
	if _, err := p.expect(TokenLeftBrace, "to open technique "+nameTok.Text); err != nil {
		return err
	}
	tech := declaration.NewTechnique(nameTok.Text, group, kw.Pos)
	for p.tok.Kind != TokenRightBrace {
		switch {
		case p.tok.Kind == TokenEOF:
			return p.errorf(p.tok, "unexpected end of file in technique %q", tech.Name)
		case p.tok.Kind == TokenSemicolon:
			if err := p.next(); err != nil {
				return err
			}
		case p.tok.Is("pass"):
			if err := p.parsePass(tech); err != nil {
				return err
			}
		default:
			return p.errorf(p.tok, "expected pass in technique %q, found %s", tech.Name, p.tok)
		}
	}
	if err := p.next(); err != nil {
		return err
	}
	if _, err := p.accept(TokenSemicolon); err != nil {
		return err
	}
	p.result.Techniques[tech.Name] = tech
	p.result.TechniqueOrder = append(p.result.TechniqueOrder, tech.Name)
	return nil
}

// parsePass parses "pass [Name] { commands }". Unnamed passes are called pass0, pass1, ...
func (p *parser) parsePass(tech *declaration.Technique) error {
	kw := p.tok
	if err := p.next(); err != nil {
		return err
	}
	name := fmt.Sprintf("pass%d", tech.PassCount())
	if p.tok.Kind == TokenIdent {
		name = p.tok.Text
		if err := p.next(); err != nil {
			return err
		}
	}
	if err := p.skipAnnotations(); err != nil {
		return err
	}
	if _, err := p.expect(TokenLeftBrace, "to open pass "+name); err != nil {
		return err
	}
	pass := declaration.NewPass(name, kw.Pos)
	for p.tok.Kind != TokenRightBrace {
		if ok, err := p.accept(TokenSemicolon); err != nil {
			return err
		} else if ok {
			continue
		}
		cmd := p.tok
		if cmd.Kind == TokenEOF {
			return p.errorf(cmd, "unexpected end of file in pass %q", name)
		}
		if cmd.Kind != TokenIdent {
			return p.errorf(cmd, "expected pass command in pass %q, found %s", name, cmd)
		}
		run, ok := passCommands[strings.ToLower(cmd.Text)]
		if !ok {
			return p.errorf(cmd, "unknown pass command %q", cmd.Text)
		}
		if err := p.next(); err != nil {
			return err
		}
		if _, err := p.expect(TokenLeftParen, "after "+cmd.Text); err != nil {
			return err
		}
		if err := run(p, pass, cmd); err != nil {
			return err
		}
		if _, err := p.expect(TokenSemicolon, "after "+cmd.Text+"(...)"); err != nil {
			return err
		}
	}
	if err := p.next(); err != nil {
		return err
	}
	if err := pass.Validate(); err != nil {
		return p.errorf(kw, "pass %q of technique %q: %v", name, tech.Name, err)
	}
	if err := tech.AddPass(pass); err != nil {
		return p.errorf(kw, "%v", err)
	}
	return nil
}

func stageCommand(stage declaration.Stage) passCommand {
	return func(p *parser, pass *declaration.Pass, cmd Token) error {
		ref, err := p.parseShaderArg()
		if err != nil {
			return err
		}
		if ref.IsSet() {
			if err := pass.SetShader(stage, ref); err != nil {
				return p.errorf(cmd, "%v", err)
			}
		}
		_, err = p.expect(TokenRightParen, "to close "+cmd.Text)
		return err
	}
}

// parseShaderArg parses an entry point argument: a name, NULL, or CompileShader(profile, Fn()).
// NULL yields an unset reference.
func (p *parser) parseShaderArg() (declaration.ShaderRef, error) {
	switch {
	case p.tok.Is("NULL"):
		return declaration.ShaderRef{}, p.next()
	case p.tok.Is("CompileShader"):
		return p.parseCompileShader()
	case p.tok.Kind == TokenIdent:
		ref := declaration.ShaderRef{Name: p.tok.Text}
		if err := p.next(); err != nil {
			return declaration.ShaderRef{}, err
		}
		if p.tok.Kind == TokenLeftParen {
			if _, err := p.skipBalanced(TokenLeftParen, TokenRightParen); err != nil {
				return declaration.ShaderRef{}, err
			}
		}
		return ref, nil
	default:
		return declaration.ShaderRef{}, p.errorf(p.tok, "expected shader name, NULL or CompileShader, found %s", p.tok)
	}
}

// parseNameArg parses a state object name or NULL, returning "" for NULL.
func (p *parser) parseNameArg(what string) (string, error) {
	if p.tok.Is("NULL") {
		return "", p.next()
	}
	tok, err := p.expectIdent("for " + what)
	if err != nil {
		return "", err
	}
	return tok.Text, nil
}

func (p *parser) hitGroupCommand(pass *declaration.Pass, cmd Token) error {
	var names [4]string
	for i := range names {
		if i > 0 {
			if _, err := p.expect(TokenComma, "in SetHitGroup"); err != nil {
				return err
			}
		}
		var err error
		if p.tok.Kind == TokenStringLiteral {
			names[i] = strings.Trim(p.tok.Text, `"`)
			err = p.next()
		} else {
			names[i], err = p.parseNameArg("hit group shader")
		}
		if err != nil {
			return err
		}
	}
	if names[0] == "" {
		return p.errorf(cmd, "hit group name must not be NULL")
	}
	g := declaration.HitGroup{Name: names[0], ClosestHit: names[1], AnyHit: names[2], Intersection: names[3]}
	if err := pass.AddHitGroup(g); err != nil {
		return p.errorf(cmd, "%v", err)
	}
	_, err := p.expect(TokenRightParen, "to close SetHitGroup")
	return err
}

func (p *parser) positiveInt(what string) (int, error) {
	tok := p.tok
	n, err := p.parseIntToken("for " + what)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, p.errorf(tok, "%s must be positive, got %d", what, n)
	}
	return int(n), nil
}

func (p *parser) shaderConfigCommand(pass *declaration.Pass, _ Token) error {
	var err error
	if pass.MaxPayloadSize, err = p.positiveInt("max payload size"); err != nil {
		return err
	}
	if _, err := p.expect(TokenComma, "in SetRaytracingShaderConfig"); err != nil {
		return err
	}
	if pass.MaxAttributeSize, err = p.positiveInt("max attribute size"); err != nil {
		return err
	}
	_, err = p.expect(TokenRightParen, "to close SetRaytracingShaderConfig")
	return err
}

func (p *parser) pipelineConfigCommand(pass *declaration.Pass, _ Token) error {
	var err error
	if pass.MaxTraceRecursionDepth, err = p.positiveInt("max trace recursion depth"); err != nil {
		return err
	}
	_, err = p.expect(TokenRightParen, "to close SetRaytracingPipelineConfig")
	return err
}

func (p *parser) rasterizerCommand(pass *declaration.Pass, _ Token) error {
	var err error
	if pass.RasterizerState, err = p.parseNameArg("rasterizer state"); err != nil {
		return err
	}
	_, err = p.expect(TokenRightParen, "to close SetRasterizerState")
	return err
}

func (p *parser) depthStencilCommand(pass *declaration.Pass, _ Token) error {
	var err error
	if pass.DepthStencilState, err = p.parseNameArg("depth stencil state"); err != nil {
		return err
	}
	if ok, err := p.accept(TokenComma); err != nil {
		return err
	} else if ok {
		tok := p.tok
		ref, err := p.parseIntToken("for stencil reference")
		if err != nil {
			return err
		}
		if ref < 0 || ref > 0xFF {
			return p.errorf(tok, "stencil reference %d out of range 0..255", ref)
		}
		pass.StencilRef = uint32(ref)
	}
	_, err = p.expect(TokenRightParen, "to close SetDepthStencilState")
	return err
}

func (p *parser) blendCommand(pass *declaration.Pass, _ Token) error {
	var err error
	if pass.BlendState, err = p.parseNameArg("blend state"); err != nil {
		return err
	}
	if ok, err := p.accept(TokenComma); err != nil {
		return err
	} else if ok {
		tok := p.tok
		v, err := p.parseValue()
		if err != nil {
			return err
		}
		if len(v.Numbers) != 4 {
			return p.errorf(tok, "blend factor expects 4 components, got %q", v.Text)
		}
		for i, n := range v.Numbers {
			pass.BlendFactor[i] = float32(n)
		}
		if ok, err := p.accept(TokenComma); err != nil {
			return err
		} else if ok {
			tok := p.tok
			mask, err := p.parseIntToken("for sample mask")
			if err != nil {
				return err
			}
			if mask < 0 || mask > 0xFFFFFFFF {
				return p.errorf(tok, "sample mask %d out of range", mask)
			}
			pass.SampleMask = uint32(mask)
		}
	}
	_, err = p.expect(TokenRightParen, "to close SetBlendState")
	return err
}

func (p *parser) renderTargetFormatCommand(pass *declaration.Pass, _ Token) error {
	var err error
	if pass.RenderTargetFormatState, err = p.parseNameArg("render target format state"); err != nil {
		return err
	}
	_, err = p.expect(TokenRightParen, "to close SetRenderTargetFormatState")
	return err
}

func (p *parser) topologyCommand(pass *declaration.Pass, _ Token) error {
	tok := p.tok
	if tok.Kind != TokenIdent {
		return p.errorf(tok, "expected topology name, found %s", tok)
	}
	topo, err := declaration.ParseTopology(tok.Text)
	if err != nil {
		return p.errorf(tok, "%v", err)
	}
	pass.Topology = topo
	if err := p.next(); err != nil {
		return err
	}
	_, err = p.expect(TokenRightParen, "to close SetTopology")
	return err
}
