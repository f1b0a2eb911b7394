package parser

import (
	"strconv"
	"strings"
	"time"

	"github.com/Carmen-Shannon/oxy-sfx/common"
	"github.com/Carmen-Shannon/oxy-sfx/engine/sfx/declaration"
	"github.com/Carmen-Shannon/oxy-sfx/engine/sfx/diag"
	"github.com/Carmen-Shannon/oxy-sfx/engine/sfx/index"
)

// Result is the output of one successful parse.
type Result struct {
	// FileIndex is the index of the root file.
	FileIndex int
	// Declarations holds every declaration in source order, included files expanded in place.
	Declarations []*declaration.Declaration
	// Techniques maps technique names to techniques.
	Techniques map[string]*declaration.Technique
	// TechniqueOrder lists technique names in source order.
	TechniqueOrder []string
	// Index maps declaration names to their source spans. Frozen.
	Index *index.Index
	// Sources holds the text of the root file and every included file, by file index.
	Sources map[int]string
}

// Technique returns the technique with the given name.
func (r *Result) Technique(name string) (*declaration.Technique, bool) {
	t, ok := r.Techniques[name]
	return t, ok
}

// Parse parses one effect file that has no includes.
//
// Parameters:
//   - source: the effect source text
//   - fileIndex: the index identifying the file in positions and spans
//
// Returns:
//   - *Result: the declarations, techniques and index of the file
//   - error: a *diag.LexicalError or *diag.SyntaxError for the first problem found
func Parse(source string, fileIndex int) (*Result, error) {
	return ParseWithContext(NewParseContext(source, fileIndex))
}

// ParseWithContext parses the root file of ctx, expanding includes through ctx.Includes. The
// context must not be reused for another parse.
//
// Parameters:
//   - ctx: the parse context
//
// Returns:
//   - *Result: the declarations, techniques and index of the file
//   - error: a *diag.LexicalError or *diag.SyntaxError for the first problem found
func ParseWithContext(ctx *ParseContext) (*Result, error) {
	started := time.Now()
	ctx.init()
	p := &parser{
		ctx:     ctx,
		lex:     NewLexer(ctx),
		defines: make(map[string]int64),
		defined: make(map[string]bool),
		result: &Result{
			FileIndex:  ctx.FileIndex,
			Techniques: make(map[string]*declaration.Technique),
			Index:      ctx.Index,
		},
	}
	if err := p.next(); err != nil {
		return nil, err
	}
	for p.tok.Kind != TokenEOF {
		if err := p.parseTopLevel(); err != nil {
			return nil, err
		}
	}
	if n := len(p.conds); n > 0 {
		return nil, p.errorf(p.conds[n-1].open, "unterminated %s", p.conds[n-1].open.Text)
	}
	ctx.Index.Freeze()
	p.result.Sources = ctx.Sources()

	common.Logger().Debug("sfx: parsed file",
		"file", ctx.nameOf(ctx.FileIndex),
		"declarations", len(p.result.Declarations),
		"techniques", len(p.result.TechniqueOrder),
		"files", len(p.result.Sources),
		"elapsed", time.Since(started))
	return p.result, nil
}

// parser is a recursive-descent parser over the lexer's token stream.
type parser struct {
	ctx    *ParseContext
	lex    *Lexer
	tok    Token
	prev   Token
	ahead  []Token
	result *Result

	// defines holds integer #define values usable as array sizes.
	defines map[string]int64
	// defined holds every #define'd name, valued or not.
	defined map[string]bool
	// conds is the stack of open top-level #ifdef and #ifndef blocks.
	conds []conditional
}

// conditional is an open top-level #ifdef or #ifndef block.
type conditional struct {
	open   Token
	inElse bool
}

func (p *parser) next() error {
	p.prev = p.tok
	if len(p.ahead) > 0 {
		p.tok = p.ahead[0]
		p.ahead = p.ahead[1:]
		return nil
	}
	tok, err := p.lex.Next()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

func (p *parser) peek() (Token, error) {
	if len(p.ahead) == 0 {
		tok, err := p.lex.Next()
		if err != nil {
			return Token{}, err
		}
		p.ahead = append(p.ahead, tok)
	}
	return p.ahead[0], nil
}

func (p *parser) errorf(tok Token, format string, args ...any) error {
	err := diag.NewSyntaxError(tok.Pos, format, args...)
	err.File = p.ctx.nameOf(tok.Pos.FileIndex)
	err.Source, _ = p.ctx.SourceOf(tok.Pos.FileIndex)
	return err
}

func (p *parser) expect(kind TokenKind, context string) (Token, error) {
	if p.tok.Kind != kind {
		return Token{}, p.errorf(p.tok, "expected %q %s, found %s", kind.String(), context, p.tok)
	}
	tok := p.tok
	return tok, p.next()
}

func (p *parser) expectIdent(context string) (Token, error) {
	if p.tok.Kind != TokenIdent {
		return Token{}, p.errorf(p.tok, "expected identifier %s, found %s", context, p.tok)
	}
	tok := p.tok
	return tok, p.next()
}

func (p *parser) accept(kind TokenKind) (bool, error) {
	if p.tok.Kind != kind {
		return false, nil
	}
	return true, p.next()
}

// finish completes a declaration: it records position, source text and span from the first token
// of the declaration to the last consumed token, then appends it to the result and the index.
func (p *parser) finish(d *declaration.Declaration, start Token) error {
	end := p.prev
	d.Pos = start.Pos
	if end.Pos.FileIndex == start.Pos.FileIndex && end.End() >= start.Offset {
		d.Span = common.Span{FileIndex: start.Pos.FileIndex, Offset: start.Offset, Size: end.End() - start.Offset}
		if src, ok := p.ctx.SourceOf(start.Pos.FileIndex); ok {
			d.Source = d.Span.Text(src)
		}
		if _, err := p.ctx.Index.Record(d.Name, d.Span); err != nil {
			return p.errorf(start, "%v", err)
		}
	}
	p.result.Declarations = append(p.result.Declarations, d)
	return nil
}

// textBetween returns the source text strictly between two tokens of the same file.
func (p *parser) textBetween(open, close Token) string {
	if open.Pos.FileIndex != close.Pos.FileIndex {
		return ""
	}
	src, ok := p.ctx.SourceOf(open.Pos.FileIndex)
	if !ok || open.End() > close.Offset || close.Offset > len(src) {
		return ""
	}
	return strings.TrimSpace(src[open.End():close.Offset])
}

func (p *parser) parseTopLevel() error {
	start := p.tok
	switch {
	case p.tok.Kind == TokenSemicolon:
		return p.next()
	case p.tok.Kind == TokenDirective:
		return p.topLevelDirective()
	case p.tok.Is("technique") || p.tok.Is("technique10") || p.tok.Is("technique11") || p.tok.Is("technique12"):
		return p.parseTechnique("")
	case p.tok.Is("group"):
		return p.parseGroup()
	case p.tok.Is("typedef"):
		return p.skipPast(TokenSemicolon)
	}

	var attrs []declaration.Attribute
	for p.tok.Kind == TokenLeftDoubleBracket || p.tok.Kind == TokenLeftBracket {
		more, err := p.parseAttributes()
		if err != nil {
			return err
		}
		attrs = append(attrs, more...)
	}
	return p.parseDeclaration(start, attrs)
}

func (p *parser) topLevelDirective() error {
	tok := p.tok
	name, rest := directiveName(tok.Text)
	switch name {
	case "pragma", "line":
	case "define":
		fields := strings.Fields(rest)
		if len(fields) > 0 {
			p.defined[fields[0]] = true
		}
		if len(fields) == 2 {
			if v, err := parseIntText(fields[1]); err == nil {
				p.defines[fields[0]] = v
			}
		}
	case "undef":
		macro := strings.TrimSpace(rest)
		delete(p.defines, macro)
		delete(p.defined, macro)
	case "ifdef", "ifndef":
		macro := strings.TrimSpace(rest)
		if !isIdentifier(macro) {
			return p.errorf(tok, "#%s needs a single macro name", name)
		}
		p.conds = append(p.conds, conditional{open: tok})
		if p.defined[macro] != (name == "ifdef") {
			return p.skipBranch()
		}
	case "else":
		if len(p.conds) == 0 || p.conds[len(p.conds)-1].inElse {
			return p.errorf(tok, "#else without #ifdef or #ifndef")
		}
		// The taken branch ends here.
		p.conds[len(p.conds)-1].inElse = true
		return p.skipBranch()
	case "endif":
		if len(p.conds) == 0 {
			return p.errorf(tok, "#endif without #ifdef or #ifndef")
		}
		p.conds = p.conds[:len(p.conds)-1]
	case "if", "elif":
		return p.errorf(tok, "#%s is only supported inside struct and cbuffer bodies, use #ifdef or #ifndef at top level", name)
	default:
		return p.errorf(tok, "unsupported directive #%s", name)
	}
	return p.next()
}

// skipBranch discards the inactive branch of the innermost conditional up to its #else, where
// parsing resumes, or its #endif, which closes the block. Includes inside the branch are not
// expanded.
func (p *parser) skipBranch() error {
	c := &p.conds[len(p.conds)-1]
	p.lex.skipIncludes = true
	depth := 0
	for {
		if err := p.next(); err != nil {
			return err
		}
		if p.tok.Kind == TokenEOF || p.tok.Pos.FileIndex != c.open.Pos.FileIndex {
			return p.errorf(c.open, "unterminated %s", c.open.Text)
		}
		if p.tok.Kind != TokenDirective {
			continue
		}
		name, _ := directiveName(p.tok.Text)
		switch {
		case name == "if" || name == "ifdef" || name == "ifndef":
			depth++
		case name == "endif" && depth > 0:
			depth--
		case name == "endif":
			p.conds = p.conds[:len(p.conds)-1]
			p.lex.skipIncludes = false
			return p.next()
		case name == "else" && depth == 0 && !c.inElse:
			c.inElse = true
			p.lex.skipIncludes = false
			return p.next()
		}
	}
}

// skipPast consumes tokens up to and including the first kind at nesting depth zero.
func (p *parser) skipPast(kind TokenKind) error {
	depth := 0
	for {
		switch p.tok.Kind {
		case TokenEOF:
			return p.errorf(p.tok, "unexpected end of file, expected %q", kind.String())
		case TokenLeftParen, TokenLeftBrace, TokenLeftBracket:
			depth++
		case TokenRightParen, TokenRightBrace, TokenRightBracket:
			depth--
		}
		if p.tok.Kind == kind && depth <= 0 {
			return p.next()
		}
		if err := p.next(); err != nil {
			return err
		}
	}
}

// skipBalanced consumes a bracketed region starting at the current open token and returns the
// closing token.
func (p *parser) skipBalanced(open, close TokenKind) (Token, error) {
	if _, err := p.expect(open, "to open block"); err != nil {
		return Token{}, err
	}
	depth := 1
	for {
		switch p.tok.Kind {
		case TokenEOF:
			return Token{}, p.errorf(p.tok, "unexpected end of file, expected %q", close.String())
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				tok := p.tok
				return tok, p.next()
			}
		}
		if err := p.next(); err != nil {
			return Token{}, err
		}
	}
}

// skipAnnotations skips an optional <...> annotation block after technique and pass names.
func (p *parser) skipAnnotations() error {
	if p.tok.Kind != TokenLess {
		return nil
	}
	_, err := p.skipBalanced(TokenLess, TokenGreater)
	return err
}

// parseAttributes parses one [attr, ...] or [[attr, ...]] group.
func (p *parser) parseAttributes() ([]declaration.Attribute, error) {
	closeKind := TokenRightBracket
	if p.tok.Kind == TokenLeftDoubleBracket {
		closeKind = TokenRightDoubleBracket
	}
	if err := p.next(); err != nil {
		return nil, err
	}
	var attrs []declaration.Attribute
	for {
		nameTok := p.tok
		if nameTok.Kind != TokenIdent && nameTok.Kind != TokenKeyword {
			return nil, p.errorf(nameTok, "expected attribute name, found %s", nameTok)
		}
		if err := p.next(); err != nil {
			return nil, err
		}
		attr := declaration.Attribute{Name: nameTok.Text}
		for p.tok.Kind == TokenColonColon {
			if err := p.next(); err != nil {
				return nil, err
			}
			part, err := p.expectIdent("in attribute name")
			if err != nil {
				return nil, err
			}
			attr.Name += "::" + part.Text
		}
		if p.tok.Kind == TokenLeftParen {
			var err error
			if attr.Args, err = p.parseArgList(); err != nil {
				return nil, err
			}
		}
		attrs = append(attrs, attr)
		if ok, err := p.accept(TokenComma); err != nil {
			return nil, err
		} else if !ok {
			break
		}
	}
	if _, err := p.expect(closeKind, "to close attribute"); err != nil {
		return nil, err
	}
	return attrs, nil
}

// parseArgList parses "(a, b, ...)" into the raw text of each argument. String quotes are removed.
func (p *parser) parseArgList() ([]string, error) {
	if _, err := p.expect(TokenLeftParen, "to open argument list"); err != nil {
		return nil, err
	}
	var args []string
	var cur strings.Builder
	depth := 0
	for {
		switch p.tok.Kind {
		case TokenEOF:
			return nil, p.errorf(p.tok, "unexpected end of file in argument list")
		case TokenLeftParen:
			depth++
		case TokenRightParen:
			if depth == 0 {
				if s := strings.TrimSpace(cur.String()); s != "" || len(args) > 0 {
					args = append(args, s)
				}
				return args, p.next()
			}
			depth--
		case TokenComma:
			if depth == 0 {
				args = append(args, strings.TrimSpace(cur.String()))
				cur.Reset()
				if err := p.next(); err != nil {
					return nil, err
				}
				continue
			}
		}
		if p.tok.Kind == TokenStringLiteral {
			cur.WriteString(strings.Trim(p.tok.Text, `"`))
		} else {
			cur.WriteString(p.tok.Text)
		}
		if err := p.next(); err != nil {
			return nil, err
		}
	}
}

// parseTemplateArgs parses "<a, b<c>>" into its top-level arguments.
func (p *parser) parseTemplateArgs() ([]string, error) {
	if _, err := p.expect(TokenLess, "to open template arguments"); err != nil {
		return nil, err
	}
	var args []string
	var cur strings.Builder
	depth := 0
	for {
		switch p.tok.Kind {
		case TokenEOF, TokenSemicolon, TokenLeftBrace:
			return nil, p.errorf(p.tok, "unterminated template argument list")
		case TokenLess:
			depth++
		case TokenGreater:
			if depth == 0 {
				args = append(args, strings.TrimSpace(cur.String()))
				return args, p.next()
			}
			depth--
		case TokenComma:
			if depth == 0 {
				args = append(args, strings.TrimSpace(cur.String()))
				cur.Reset()
				if err := p.next(); err != nil {
					return nil, err
				}
				continue
			}
		}
		cur.WriteString(p.tok.Text)
		if p.tok.Kind == TokenComma {
			cur.WriteString(" ")
		}
		if err := p.next(); err != nil {
			return nil, err
		}
	}
}

// parseTypeName parses a type such as "float4", "unsigned int" or "vector<float, 4>".
func (p *parser) parseTypeName() (string, []string, error) {
	tok, err := p.expectIdent("for type name")
	if err != nil {
		return "", nil, err
	}
	name := tok.Text
	if name == "unsigned" && p.tok.Kind == TokenIdent {
		name += " " + p.tok.Text
		if err := p.next(); err != nil {
			return "", nil, err
		}
	}
	if p.tok.Kind != TokenLess {
		return name, nil, nil
	}
	args, err := p.parseTemplateArgs()
	if err != nil {
		return "", nil, err
	}
	return name + "<" + strings.Join(args, ", ") + ">", args, nil
}

// parseArraySize parses an optional "[N]". Unbounded arrays "[]" report -1.
func (p *parser) parseArraySize() (int, error) {
	if p.tok.Kind != TokenLeftBracket {
		return 0, nil
	}
	if err := p.next(); err != nil {
		return 0, err
	}
	if ok, err := p.accept(TokenRightBracket); err != nil || ok {
		return -1, err
	}
	sizeTok := p.tok
	var n int64
	switch sizeTok.Kind {
	case TokenIntLiteral:
		v, err := parseIntText(sizeTok.Text)
		if err != nil {
			return 0, p.errorf(sizeTok, "invalid array size %q", sizeTok.Text)
		}
		n = v
	case TokenIdent:
		v, ok := p.defines[sizeTok.Text]
		if !ok {
			return 0, p.errorf(sizeTok, "array size %q is not an integer constant", sizeTok.Text)
		}
		n = v
	default:
		return 0, p.errorf(sizeTok, "expected array size, found %s", sizeTok)
	}
	if n <= 0 {
		return 0, p.errorf(sizeTok, "array size must be positive, got %d", n)
	}
	if err := p.next(); err != nil {
		return 0, err
	}
	if _, err := p.expect(TokenRightBracket, "after array size"); err != nil {
		return 0, err
	}
	return int(n), nil
}

func (p *parser) parseIntToken(context string) (int64, error) {
	neg := false
	if p.tok.Kind == TokenMinus {
		neg = true
		if err := p.next(); err != nil {
			return 0, err
		}
	}
	tok := p.tok
	if tok.Kind != TokenIntLiteral {
		return 0, p.errorf(tok, "expected integer %s, found %s", context, tok)
	}
	v, err := parseIntText(tok.Text)
	if err != nil {
		return 0, p.errorf(tok, "invalid integer %q", tok.Text)
	}
	if neg {
		v = -v
	}
	return v, p.next()
}

func parseIntText(text string) (int64, error) {
	return strconv.ParseInt(strings.TrimRight(text, "uUlL"), 0, 64)
}

func parseFloatText(text string) (float64, error) {
	return strconv.ParseFloat(strings.TrimRight(text, "fFhHlL"), 64)
}

func parseNumberToken(tok Token) (float64, error) {
	if tok.Kind == TokenIntLiteral {
		v, err := parseIntText(tok.Text)
		return float64(v), err
	}
	return parseFloatText(tok.Text)
}
