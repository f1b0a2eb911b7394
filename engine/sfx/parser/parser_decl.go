package parser

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/Carmen-Shannon/oxy-sfx/engine/sfx/declaration"
	"github.com/Carmen-Shannon/oxy-sfx/engine/sfx/restype"
)

// modifiers are storage, interpolation and matrix-order qualifiers accepted before a type.
var modifiers = map[string]bool{
	"static":           true,
	"const":            true,
	"uniform":          true,
	"extern":           true,
	"groupshared":      true,
	"volatile":         true,
	"shared":           true,
	"precise":          true,
	"inline":           true,
	"globallycoherent": true,
	"row_major":        true,
	"column_major":     true,
	"nointerpolation":  true,
	"linear":           true,
	"centroid":         true,
	"noperspective":    true,
	"sample":           true,
	"snorm":            true,
	"unorm":            true,
	"in":               true,
	"out":              true,
	"inout":            true,
}

func (p *parser) parseModifiers() ([]string, bool, error) {
	var mods []string
	isShader := false
	for {
		switch {
		case p.tok.Is("shader"):
			isShader = true
		case p.tok.Kind == TokenIdent && modifiers[p.tok.Text]:
			mods = append(mods, p.tok.Text)
		default:
			return mods, isShader, nil
		}
		if err := p.next(); err != nil {
			return nil, false, err
		}
	}
}

func (p *parser) parseDeclaration(start Token, attrs []declaration.Attribute) error {
	mods, isShader, err := p.parseModifiers()
	if err != nil {
		return err
	}
	switch {
	case p.tok.Is("struct"):
		return p.parseStruct(start)
	case p.tok.Is("cbuffer"):
		return p.parseCBuffer(start, attrs)
	case p.tok.Is("RasterizerState"), p.tok.Is("DepthStencilState"), p.tok.Is("BlendState"), p.tok.Is("RenderTargetFormatState"):
		return p.parseStateBlock(start)
	case p.tok.Kind == TokenIdent && restype.IsResourceKeyword(p.tok.Text):
		return p.parseResource(start, attrs)
	case p.tok.Kind == TokenIdent:
		return p.parseVariableOrFunction(start, attrs, mods, isShader)
	default:
		return p.errorf(p.tok, "unexpected %s at top level", p.tok)
	}
}

// applyBindingAttributes copies [[vk::binding(slot, set)]] onto the binding.
func (p *parser) applyBindingAttributes(d *declaration.Declaration, attrs []declaration.Attribute, at Token) error {
	for _, a := range attrs {
		if a.Name != "vk::binding" {
			continue
		}
		if len(a.Args) < 1 || len(a.Args) > 2 {
			return p.errorf(at, "vk::binding expects (binding[, set]), got %d arguments", len(a.Args))
		}
		slot, err := parseIntText(a.Args[0])
		if err != nil || slot < 0 {
			return p.errorf(at, "invalid vk::binding slot %q", a.Args[0])
		}
		set := int64(0)
		if len(a.Args) == 2 {
			if set, err = parseIntText(a.Args[1]); err != nil || set < 0 {
				return p.errorf(at, "invalid vk::binding set %q", a.Args[1])
			}
		}
		d.Binding.Slot = int(slot)
		d.Binding.Group = int(set)
	}
	return nil
}

// expectedRegisterClass returns the register class a resource of type t binds to.
func expectedRegisterClass(t restype.ShaderResourceType) byte {
	switch {
	case t.Has(restype.ConstantBuffer):
		return 'b'
	case t.IsSampler():
		return 's'
	case t.IsWritable():
		return 'u'
	default:
		return 't'
	}
}

// parseRegister parses "register(xN[, spaceM])" with the current token on "register", plus the
// optional trailing ", space(M)" form.
func (p *parser) parseRegister(d *declaration.Declaration, class byte) error {
	regTok := p.tok
	if err := p.next(); err != nil {
		return err
	}
	if _, err := p.expect(TokenLeftParen, "after register"); err != nil {
		return err
	}
	slotTok, err := p.expectIdent("for register slot")
	if err != nil {
		return err
	}
	c, n, ok := splitRegister(slotTok.Text, "")
	if !ok {
		return p.errorf(slotTok, "malformed register %q", slotTok.Text)
	}
	if class != 0 && c != class {
		return p.errorf(slotTok, "register class %q does not match %s, expected %q", string(c), d.ResourceType(), string(class))
	}
	if d.Binding.HasSlot() && d.Binding.Slot != n {
		return p.errorf(slotTok, "register slot %d conflicts with vk::binding slot %d", n, d.Binding.Slot)
	}
	d.Binding.Slot = n
	d.Binding.RegisterClass = c

	if ok, err := p.accept(TokenComma); err != nil {
		return err
	} else if ok {
		spaceTok, err := p.expectIdent("for register space")
		if err != nil {
			return err
		}
		_, space, ok := splitRegister(spaceTok.Text, "space")
		if !ok {
			return p.errorf(spaceTok, "malformed register space %q", spaceTok.Text)
		}
		d.Binding.Space = space
	}
	if _, err := p.expect(TokenRightParen, "to close register"); err != nil {
		return err
	}

	if p.tok.Kind == TokenComma {
		next, err := p.peek()
		if err != nil {
			return err
		}
		if next.Is("space") {
			if err := p.next(); err != nil {
				return err
			}
			if err := p.next(); err != nil {
				return err
			}
			if _, err := p.expect(TokenLeftParen, "after space"); err != nil {
				return err
			}
			space, err := p.parseIntToken("for register space")
			if err != nil {
				return err
			}
			if space < 0 {
				return p.errorf(regTok, "register space must not be negative")
			}
			d.Binding.Space = int(space)
			if _, err := p.expect(TokenRightParen, "to close space"); err != nil {
				return err
			}
		}
	}
	return nil
}

// splitRegister splits "t12" into 't' and 12, or "space3" into 0 and 3 when prefix is "space".
func splitRegister(text, prefix string) (byte, int, bool) {
	var class byte
	digits := text
	if prefix != "" {
		var ok bool
		if digits, ok = strings.CutPrefix(text, prefix); !ok {
			return 0, 0, false
		}
	} else {
		if len(text) < 2 {
			return 0, 0, false
		}
		class = byte(unicode.ToLower(rune(text[0])))
		if !strings.ContainsRune("btsuc", rune(class)) {
			return 0, 0, false
		}
		digits = text[1:]
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n < 0 {
		return 0, 0, false
	}
	return class, n, true
}

// parseResource parses "[[vk::binding]] Type<Elem> name[N] : register(...) [{ state }];".
func (p *parser) parseResource(start Token, attrs []declaration.Attribute) error {
	typeTok := p.tok
	rt, _ := restype.FromKeyword(typeTok.Text)
	if err := p.next(); err != nil {
		return err
	}
	var args []string
	if p.tok.Kind == TokenLess {
		var err error
		if args, err = p.parseTemplateArgs(); err != nil {
			return err
		}
	}
	nameTok, err := p.expectIdent("for resource name")
	if err != nil {
		return err
	}

	var body declaration.Body
	var sampler *declaration.Sampler
	elem := ""
	if len(args) > 0 {
		elem = args[0]
	}
	switch {
	case rt.IsTexture():
		tex := &declaration.Texture{ResourceType: rt, ElementType: elem}
		if len(args) > 1 && rt.Has(restype.MS) {
			n, err := strconv.Atoi(args[1])
			if err != nil || n <= 0 {
				return p.errorf(typeTok, "invalid sample count %q", args[1])
			}
			tex.SampleCount = n
		}
		body = tex
	case rt.IsSampler():
		sampler = &declaration.Sampler{ResourceType: rt, State: declaration.DefaultSamplerState()}
		body = sampler
	default:
		body = &declaration.Buffer{ResourceType: rt, ElementType: elem}
	}

	d := declaration.New(nameTok.Text, body)
	d.StructureType = elem
	if err := p.applyBindingAttributes(d, attrs, start); err != nil {
		return err
	}
	if d.Binding.ArraySize, err = p.parseArraySize(); err != nil {
		return err
	}
	if ok, err := p.accept(TokenColon); err != nil {
		return err
	} else if ok {
		if !p.tok.Is("register") {
			return p.errorf(p.tok, "expected register(...) after ':' on resource %q, found %s", d.Name, p.tok)
		}
		if err := p.parseRegister(d, expectedRegisterClass(rt)); err != nil {
			return err
		}
	}
	if sampler != nil && p.tok.Kind == TokenEqual {
		next, err := p.peek()
		if err != nil {
			return err
		}
		if !next.Is("sampler_state") {
			return p.errorf(next, "expected sampler_state after '=' on sampler %q, found %s", d.Name, next)
		}
		if err := p.next(); err != nil {
			return err
		}
		if err := p.next(); err != nil {
			return err
		}
	}
	if sampler != nil && p.tok.Kind == TokenLeftBrace {
		if err := p.parseProperties("sampler", sampler.State.Set); err != nil {
			return err
		}
	}
	if _, err := p.expect(TokenSemicolon, "after resource declaration"); err != nil {
		return err
	}
	return p.finish(d, start)
}

// parseStruct parses "struct Name { members };".
func (p *parser) parseStruct(start Token) error {
	if err := p.next(); err != nil {
		return err
	}
	nameTok, err := p.expectIdent("for struct name")
	if err != nil {
		return err
	}
	s := &declaration.Struct{}
	if err := p.parseMembers(s, nameTok.Text); err != nil {
		return err
	}
	if _, err := p.expect(TokenSemicolon, "after struct body"); err != nil {
		return err
	}
	d := declaration.New(nameTok.Text, s)
	return p.finish(d, start)
}

// parseCBuffer parses "cbuffer Name [: register(bN)] { members } [instance] [;]".
func (p *parser) parseCBuffer(start Token, attrs []declaration.Attribute) error {
	if err := p.next(); err != nil {
		return err
	}
	nameTok, err := p.expectIdent("for cbuffer name")
	if err != nil {
		return err
	}
	cb := &declaration.ConstantBuffer{}
	d := declaration.New(nameTok.Text, cb)
	if err := p.applyBindingAttributes(d, attrs, start); err != nil {
		return err
	}
	if ok, err := p.accept(TokenColon); err != nil {
		return err
	} else if ok {
		if !p.tok.Is("register") {
			return p.errorf(p.tok, "expected register(...) after ':' on cbuffer %q, found %s", d.Name, p.tok)
		}
		if err := p.parseRegister(d, 'b'); err != nil {
			return err
		}
	}
	if err := p.parseMembers(&cb.Struct, nameTok.Text); err != nil {
		return err
	}
	if p.tok.Kind == TokenIdent {
		d.Body = &declaration.NamedConstantBuffer{Struct: cb.Struct, InstanceName: p.tok.Text}
		if err := p.next(); err != nil {
			return err
		}
	}
	if _, err := p.accept(TokenSemicolon); err != nil {
		return err
	}
	return p.finish(d, start)
}

// condState tracks the open #if block inside a member list.
type condState struct {
	cond   declaration.VariantCondition
	tok    Token
	inElse bool
}

// parseMembers parses "{ members }" into s, handling #if/#else/#endif variant blocks.
func (p *parser) parseMembers(s *declaration.Struct, owner string) error {
	if _, err := p.expect(TokenLeftBrace, "to open "+owner); err != nil {
		return err
	}
	var open *condState
	for p.tok.Kind != TokenRightBrace {
		switch p.tok.Kind {
		case TokenEOF:
			return p.errorf(p.tok, "unexpected end of file in %q, expected '}'", owner)
		case TokenSemicolon:
			if err := p.next(); err != nil {
				return err
			}
			continue
		case TokenDirective:
			var err error
			if open, err = p.memberDirective(open); err != nil {
				return err
			}
			if err := p.next(); err != nil {
				return err
			}
			continue
		}

		var cond declaration.VariantCondition
		if open != nil {
			cond = open.cond
			if open.inElse {
				cond.Test = cond.Test.Negate()
			}
		}
		if err := p.parseMember(s, cond); err != nil {
			return err
		}
	}
	if open != nil {
		return p.errorf(open.tok, "#if without matching #endif in %q", owner)
	}
	_, err := p.expect(TokenRightBrace, "to close "+owner)
	return err
}

func (p *parser) memberDirective(open *condState) (*condState, error) {
	tok := p.tok
	name, rest := directiveName(tok.Text)
	switch name {
	case "if":
		if open != nil {
			return nil, p.errorf(tok, "nested #if is not supported inside struct bodies (outer #if at line %d)", open.tok.Pos.FileLine)
		}
		cond, err := parseCondition(rest)
		if err != nil {
			return nil, p.errorf(tok, "%v", err)
		}
		return &condState{cond: cond, tok: tok}, nil
	case "else":
		if open == nil || open.inElse {
			return nil, p.errorf(tok, "#else without matching #if")
		}
		open.inElse = true
		return open, nil
	case "endif":
		if open == nil {
			return nil, p.errorf(tok, "#endif without matching #if")
		}
		return nil, nil
	case "pragma":
		return open, nil
	default:
		return nil, p.errorf(tok, "directive #%s is not supported inside struct bodies", name)
	}
}

// parseCondition parses the expression of "#if var OP value". A bare "#if var" means var != 0.
func parseCondition(expr string) (declaration.VariantCondition, error) {
	expr = strings.TrimSpace(expr)
	i := 0
	for i < len(expr) && isIdentPart(rune(expr[i])) {
		i++
	}
	if i == 0 || isDigit(rune(expr[0])) {
		return declaration.VariantCondition{}, fmt.Errorf("#if expects a variant variable, got %q", expr)
	}
	cond := declaration.VariantCondition{Variable: expr[:i]}
	rest := strings.TrimSpace(expr[i:])
	if rest == "" {
		cond.Test = declaration.NotEqual
		cond.Value = declaration.IntValue(0)
		return cond, nil
	}

	opLen := 1
	if len(rest) >= 2 && rest[1] == '=' {
		opLen = 2
	}
	test, ok := declaration.ParseVariantTest(rest[:opLen])
	if !ok {
		return declaration.VariantCondition{}, fmt.Errorf("unknown comparison %q in #if", rest[:opLen])
	}
	value, err := declaration.ParseVariantValue(strings.TrimSpace(rest[opLen:]))
	if err != nil {
		return declaration.VariantCondition{}, err
	}
	cond.Test = test
	cond.Value = value
	return cond, nil
}

// parseMember parses one member line, which may declare several comma-separated names.
func (p *parser) parseMember(s *declaration.Struct, cond declaration.VariantCondition) error {
	mods, _, err := p.parseModifiers()
	if err != nil {
		return err
	}
	typeName, _, err := p.parseTypeName()
	if err != nil {
		return err
	}
	for {
		nameTok, err := p.expectIdent("for member name")
		if err != nil {
			return err
		}
		m := declaration.Member{Type: typeName, Name: nameTok.Text, Modifiers: mods, Condition: cond}
		if m.ArraySize, err = p.parseArraySize(); err != nil {
			return err
		}
		if m.ArraySize < 0 {
			return p.errorf(nameTok, "member %q cannot be an unbounded array", m.Name)
		}
		for p.tok.Kind == TokenColon {
			if err := p.next(); err != nil {
				return err
			}
			if p.tok.Is("register") {
				if err := p.next(); err != nil {
					return err
				}
				if _, err := p.skipBalanced(TokenLeftParen, TokenRightParen); err != nil {
					return err
				}
				continue
			}
			if p.tok.Is("packoffset") {
				if err := p.next(); err != nil {
					return err
				}
				open := p.tok
				closeTok, err := p.skipBalanced(TokenLeftParen, TokenRightParen)
				if err != nil {
					return err
				}
				m.PackOffset = p.textBetween(open, closeTok)
				continue
			}
			semTok, err := p.expectIdent("for semantic")
			if err != nil {
				return err
			}
			m.Semantic = semTok.Text
		}
		if ok, err := p.accept(TokenEqual); err != nil {
			return err
		} else if ok {
			if err := p.skipInitializer(); err != nil {
				return err
			}
		}
		s.AddMember(m)
		if ok, err := p.accept(TokenComma); err != nil {
			return err
		} else if !ok {
			break
		}
	}
	_, err = p.expect(TokenSemicolon, "after member")
	return err
}

// skipInitializer consumes an initializer up to, not including, the ',' or ';' ending it.
func (p *parser) skipInitializer() error {
	depth := 0
	for {
		switch p.tok.Kind {
		case TokenEOF:
			return p.errorf(p.tok, "unexpected end of file in initializer")
		case TokenLeftParen, TokenLeftBrace, TokenLeftBracket:
			depth++
		case TokenRightParen, TokenRightBrace, TokenRightBracket:
			depth--
		case TokenSemicolon, TokenComma:
			if depth == 0 {
				return nil
			}
		}
		if err := p.next(); err != nil {
			return err
		}
	}
}

// parseStateBlock parses "BlendState Name { key = value; ... } [;]".
func (p *parser) parseStateBlock(start Token) error {
	kindTok := p.tok
	if err := p.next(); err != nil {
		return err
	}
	nameTok, err := p.expectIdent("for state name")
	if err != nil {
		return err
	}

	var body declaration.Body
	var set func(string, int, declaration.Value) error
	switch kindTok.Text {
	case "RasterizerState":
		s := declaration.DefaultRasterizerState()
		body, set = &s, s.Set
	case "DepthStencilState":
		s := declaration.DefaultDepthStencilState()
		body, set = &s, s.Set
	case "BlendState":
		s := declaration.DefaultBlendState()
		body, set = &s, s.Set
	default:
		s := declaration.DefaultRenderTargetFormatState()
		body, set = &s, s.Set
	}
	if err := p.parseProperties(kindTok.Text, set); err != nil {
		return err
	}
	if _, err := p.accept(TokenSemicolon); err != nil {
		return err
	}
	return p.finish(declaration.New(nameTok.Text, body), start)
}

// parseProperties parses "{ Key = Value; Key[i] = Value; }" and hands each assignment to set.
func (p *parser) parseProperties(owner string, set func(string, int, declaration.Value) error) error {
	if _, err := p.expect(TokenLeftBrace, "to open "+owner+" body"); err != nil {
		return err
	}
	for p.tok.Kind != TokenRightBrace {
		if ok, err := p.accept(TokenSemicolon); err != nil {
			return err
		} else if ok {
			continue
		}
		keyTok := p.tok
		if keyTok.Kind != TokenIdent && keyTok.Kind != TokenKeyword {
			return p.errorf(keyTok, "expected property name in %s body, found %s", owner, keyTok)
		}
		if err := p.next(); err != nil {
			return err
		}
		idx := -1
		if ok, err := p.accept(TokenLeftBracket); err != nil {
			return err
		} else if ok {
			n, err := p.parseIntToken("for property index")
			if err != nil {
				return err
			}
			if n < 0 {
				return p.errorf(keyTok, "negative index on %s", keyTok.Text)
			}
			idx = int(n)
			if _, err := p.expect(TokenRightBracket, "after property index"); err != nil {
				return err
			}
		}
		if _, err := p.expect(TokenEqual, "after property name"); err != nil {
			return err
		}
		valTok := p.tok
		v, err := p.parseValue()
		if err != nil {
			return err
		}
		if err := set(keyTok.Text, idx, v); err != nil {
			return p.errorf(valTok, "%s: %v", owner, err)
		}
		if p.tok.Kind != TokenRightBrace {
			if _, err := p.expect(TokenSemicolon, "after property"); err != nil {
				return err
			}
		}
	}
	return p.next()
}

// parseValue parses a property value: an identifier, a number, a constructor such as
// float4(0, 0, 0, 1), or a brace list {0, 0, 0, 1}.
func (p *parser) parseValue() (declaration.Value, error) {
	switch p.tok.Kind {
	case TokenMinus, TokenIntLiteral, TokenFloatLiteral:
		n, text, err := p.parseNumber()
		if err != nil {
			return declaration.Value{}, err
		}
		return declaration.Value{Text: text, Numbers: []float64{n}}, nil
	case TokenLeftBrace:
		return p.parseNumberList(TokenLeftBrace, TokenRightBrace, "")
	case TokenIdent, TokenKeyword:
		tok := p.tok
		if err := p.next(); err != nil {
			return declaration.Value{}, err
		}
		if p.tok.Kind == TokenLeftParen {
			return p.parseNumberList(TokenLeftParen, TokenRightParen, tok.Text)
		}
		return declaration.Value{Text: tok.Text}, nil
	default:
		return declaration.Value{}, p.errorf(p.tok, "expected value, found %s", p.tok)
	}
}

func (p *parser) parseNumber() (float64, string, error) {
	neg := false
	if p.tok.Kind == TokenMinus {
		neg = true
		if err := p.next(); err != nil {
			return 0, "", err
		}
	}
	tok := p.tok
	if tok.Kind != TokenIntLiteral && tok.Kind != TokenFloatLiteral {
		return 0, "", p.errorf(tok, "expected number, found %s", tok)
	}
	n, err := parseNumberToken(tok)
	if err != nil {
		return 0, "", p.errorf(tok, "invalid number %q", tok.Text)
	}
	text := tok.Text
	if neg {
		n, text = -n, "-"+text
	}
	return n, text, p.next()
}

func (p *parser) parseNumberList(open, close TokenKind, ctor string) (declaration.Value, error) {
	if _, err := p.expect(open, "to open value list"); err != nil {
		return declaration.Value{}, err
	}
	var nums []float64
	var parts []string
	for p.tok.Kind != close {
		n, text, err := p.parseNumber()
		if err != nil {
			return declaration.Value{}, err
		}
		nums = append(nums, n)
		parts = append(parts, text)
		if p.tok.Kind != close {
			if _, err := p.expect(TokenComma, "between values"); err != nil {
				return declaration.Value{}, err
			}
		}
	}
	if err := p.next(); err != nil {
		return declaration.Value{}, err
	}
	text := "{" + strings.Join(parts, ", ") + "}"
	if ctor != "" {
		text = ctor + "(" + strings.Join(parts, ", ") + ")"
	}
	return declaration.Value{Text: text, Numbers: nums}, nil
}

// parseVariableOrFunction parses a global variable or a function definition after its modifiers.
func (p *parser) parseVariableOrFunction(start Token, attrs []declaration.Attribute, mods []string, isShader bool) error {
	typeName, _, err := p.parseTypeName()
	if err != nil {
		return err
	}
	nameTok, err := p.expectIdent("for declaration name")
	if err != nil {
		return err
	}
	if p.tok.Kind == TokenLeftParen {
		return p.parseFunction(start, attrs, typeName, nameTok, isShader)
	}

	v := &declaration.Variable{TypeName: typeName, Modifiers: mods}
	d := declaration.New(nameTok.Text, v)
	if err := p.applyBindingAttributes(d, attrs, start); err != nil {
		return err
	}
	if v.ArraySize, err = p.parseArraySize(); err != nil {
		return err
	}
	d.Binding.ArraySize = max(v.ArraySize, 0)
	for p.tok.Kind == TokenColon {
		if err := p.next(); err != nil {
			return err
		}
		if p.tok.Is("register") {
			if err := p.parseRegister(d, 0); err != nil {
				return err
			}
			continue
		}
		if _, err := p.expectIdent("for semantic"); err != nil {
			return err
		}
	}
	if ok, err := p.accept(TokenEqual); err != nil {
		return err
	} else if ok {
		if err := p.parseInitializer(v); err != nil {
			return err
		}
	}
	if _, err := p.expect(TokenSemicolon, "after variable declaration"); err != nil {
		return err
	}
	return p.finish(d, start)
}

// parseInitializer records the initializer text and recognizes CompileShader(profile, Fn(...)).
func (p *parser) parseInitializer(v *declaration.Variable) error {
	first := p.tok
	if first.Is("CompileShader") {
		ref, err := p.parseCompileShader()
		if err != nil {
			return err
		}
		v.Compiled = &declaration.CompiledShader{Profile: ref.Profile, Function: ref.Name}
	} else if err := p.skipInitializer(); err != nil {
		return err
	}
	if p.tok.Kind != TokenSemicolon {
		return p.errorf(p.tok, "expected ';' after initializer, found %s", p.tok)
	}
	if first.Pos.FileIndex == p.prev.Pos.FileIndex {
		if src, ok := p.ctx.SourceOf(first.Pos.FileIndex); ok && p.prev.End() <= len(src) {
			v.Initializer = src[first.Offset:p.prev.End()]
		}
	}
	return nil
}

// parseCompileShader parses "CompileShader(profile, Function(args))".
func (p *parser) parseCompileShader() (declaration.ShaderRef, error) {
	if err := p.next(); err != nil {
		return declaration.ShaderRef{}, err
	}
	if _, err := p.expect(TokenLeftParen, "after CompileShader"); err != nil {
		return declaration.ShaderRef{}, err
	}
	profTok, err := p.expectIdent("for shader profile")
	if err != nil {
		return declaration.ShaderRef{}, err
	}
	if _, err := p.expect(TokenComma, "after shader profile"); err != nil {
		return declaration.ShaderRef{}, err
	}
	fnTok, err := p.expectIdent("for entry point")
	if err != nil {
		return declaration.ShaderRef{}, err
	}
	if p.tok.Kind == TokenLeftParen {
		if _, err := p.skipBalanced(TokenLeftParen, TokenRightParen); err != nil {
			return declaration.ShaderRef{}, err
		}
	}
	if _, err := p.expect(TokenRightParen, "to close CompileShader"); err != nil {
		return declaration.ShaderRef{}, err
	}
	return declaration.ShaderRef{Name: fnTok.Text, Profile: profTok.Text}, nil
}

// parseFunction parses the rest of a function after its name. Prototypes without a body are
// skipped.
func (p *parser) parseFunction(start Token, attrs []declaration.Attribute, ret string, nameTok Token, isShader bool) error {
	open := p.tok
	closeTok, err := p.skipBalanced(TokenLeftParen, TokenRightParen)
	if err != nil {
		return err
	}
	fn := &declaration.Function{
		ReturnType: ret,
		Parameters: p.textBetween(open, closeTok),
		Attributes: attrs,
		IsShader:   isShader,
	}
	for _, a := range attrs {
		if a.Name == "shader" {
			fn.IsShader = true
		}
		if a.Name != "numthreads" {
			continue
		}
		if len(a.Args) != 3 {
			return p.errorf(start, "numthreads expects 3 arguments, got %d", len(a.Args))
		}
		for i, arg := range a.Args {
			n, err := parseIntText(arg)
			if err != nil || n <= 0 {
				if v, ok := p.defines[arg]; ok && v > 0 {
					n, err = v, nil
				} else {
					return p.errorf(start, "invalid numthreads argument %q", arg)
				}
			}
			fn.WorkgroupSize[i] = int(n)
		}
	}
	if ok, err := p.accept(TokenColon); err != nil {
		return err
	} else if ok {
		semTok, err := p.expectIdent("for return semantic")
		if err != nil {
			return err
		}
		fn.Semantic = semTok.Text
	}
	if ok, err := p.accept(TokenSemicolon); err != nil || ok {
		return err
	}
	if p.tok.Kind != TokenLeftBrace {
		return p.errorf(p.tok, "expected function body for %q, found %s", nameTok.Text, p.tok)
	}
	if _, err := p.skipBalanced(TokenLeftBrace, TokenRightBrace); err != nil {
		return err
	}
	d := declaration.New(nameTok.Text, fn)
	d.StructureType = ret
	return p.finish(d, start)
}
