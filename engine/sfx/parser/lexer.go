package parser

import (
	"strings"
	"unicode/utf8"

	"github.com/Carmen-Shannon/oxy-sfx/common"
	"github.com/Carmen-Shannon/oxy-sfx/engine/sfx/diag"
)

// frame is one open file. The root file is the bottom frame; each #include pushes another.
type frame struct {
	fileIndex int
	src       string
	pos       int
	line      int
	col       int
}

// Lexer tokenizes effect source on demand, expanding #include directives in place.
type Lexer struct {
	ctx        *ParseContext
	frames     []*frame
	globalLine int

	start      int
	startPos   common.Position
	startFrame *frame

	// skipIncludes returns #include lines as plain directives while the parser skips an
	// inactive conditional branch.
	skipIncludes bool
}

// NewLexer creates a lexer reading the root file of ctx.
//
// Parameters:
//   - ctx: the parse context, which supplies the root source and the include resolver
//
// Returns:
//   - *Lexer: the new lexer
func NewLexer(ctx *ParseContext) *Lexer {
	if ctx.sources == nil {
		ctx.init()
	}
	return &Lexer{
		ctx:        ctx,
		frames:     []*frame{{fileIndex: ctx.FileIndex, src: ctx.Source, line: 1, col: 1}},
		globalLine: 1,
	}
}

// Tokenize returns every remaining token, ending with TokenEOF.
//
// Returns:
//   - []Token: the tokens
//   - error: the first lexical error
func (l *Lexer) Tokenize() ([]Token, error) {
	var tokens []Token
	for {
		tok, err := l.Next()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Kind == TokenEOF {
			return tokens, nil
		}
	}
}

// Next returns the next token. Comments and whitespace are skipped, and #include directives are
// replaced by the tokens of the included file.
//
// Returns:
//   - Token: the next token, TokenEOF at the end of the root file
//   - error: a *diag.LexicalError for malformed input, or a *diag.SyntaxError for a failed include
func (l *Lexer) Next() (Token, error) {
	for {
		if err := l.skipTrivia(); err != nil {
			return Token{}, err
		}
		f := l.top()
		if l.isAtEnd() {
			if len(l.frames) > 1 {
				l.frames = l.frames[:len(l.frames)-1]
				continue
			}
			l.mark()
			return l.token(TokenEOF), nil
		}

		l.mark()
		r := l.advance()
		switch {
		case r == '#':
			tok, include, err := l.directive()
			if err != nil {
				return Token{}, err
			}
			if include {
				continue
			}
			return tok, nil
		case isIdentStart(r):
			for isIdentPart(l.peek()) {
				l.advance()
			}
			text := f.src[l.start:f.pos]
			if keywords[text] {
				return l.token(TokenKeyword), nil
			}
			return l.token(TokenIdent), nil
		case isDigit(r), r == '.' && isDigit(l.peek()):
			return l.number(r)
		case r == '"':
			return l.stringLiteral()
		default:
			return l.punctuation(r)
		}
	}
}

func (l *Lexer) top() *frame {
	return l.frames[len(l.frames)-1]
}

func (l *Lexer) mark() {
	f := l.top()
	l.start = f.pos
	l.startFrame = f
	l.startPos = common.Position{FileIndex: f.fileIndex, GlobalLine: l.globalLine, FileLine: f.line, Column: f.col}
}

func (l *Lexer) token(kind TokenKind) Token {
	f := l.startFrame
	return Token{
		Kind:   kind,
		Text:   f.src[l.start:f.pos],
		Pos:    l.startPos,
		Offset: l.start,
		Len:    f.pos - l.start,
	}
}

func (l *Lexer) skipTrivia() error {
	for !l.isAtEnd() {
		switch r := l.peek(); {
		case r == '\n':
			l.newline()
		case r == ' ' || r == '\t' || r == '\r' || r == '\f' || r == '\v' || r == '\uFEFF':
			l.advance()
		case r == '\\' && (l.peekNext() == '\n' || l.peekNext() == '\r'):
			l.advance()
		case r == '/' && l.peekNext() == '/':
			for !l.isAtEnd() && l.peek() != '\n' {
				l.advance()
			}
		case r == '/' && l.peekNext() == '*':
			l.mark()
			l.advance()
			l.advance()
			closed := false
			for !l.isAtEnd() {
				if l.peek() == '*' && l.peekNext() == '/' {
					l.advance()
					l.advance()
					closed = true
					break
				}
				if l.peek() == '\n' {
					l.newline()
				} else {
					l.advance()
				}
			}
			if !closed {
				return l.errorAt(l.startPos, "unterminated block comment")
			}
		default:
			return nil
		}
	}
	return nil
}

// directive consumes a preprocessor line. #include is expanded and reported with include set;
// every other directive is returned as a TokenDirective holding the whole logical line.
func (l *Lexer) directive() (Token, bool, error) {
	f := l.top()
	for !l.isAtEnd() && l.peek() != '\n' {
		if l.peek() == '\\' && (l.peekNext() == '\n' || l.peekNext() == '\r') {
			l.advance()
			if l.peek() == '\r' {
				l.advance()
			}
			if l.peek() == '\n' {
				l.newline()
			}
			continue
		}
		if l.peek() == '/' && l.peekNext() == '/' {
			break
		}
		l.advance()
	}
	tok := l.token(TokenDirective)
	tok.Text = strings.TrimRight(f.src[l.start:f.pos], " \t\r")
	tok.Len = len(tok.Text)

	name, rest := directiveName(tok.Text)
	if name != "include" || l.skipIncludes {
		return tok, false, nil
	}
	return tok, true, l.include(tok, rest)
}

// directiveName splits "#  if x == 1" into "if" and "x == 1".
func directiveName(text string) (string, string) {
	body := strings.TrimSpace(strings.TrimPrefix(text, "#"))
	end := 0
	for end < len(body) && isIdentPart(rune(body[end])) {
		end++
	}
	return body[:end], strings.TrimSpace(body[end:])
}

func (l *Lexer) include(tok Token, arg string) error {
	var path string
	switch {
	case len(arg) >= 2 && arg[0] == '"' && strings.IndexByte(arg[1:], '"') >= 0:
		path = arg[1 : 1+strings.IndexByte(arg[1:], '"')]
	case len(arg) >= 2 && arg[0] == '<' && strings.IndexByte(arg, '>') > 0:
		path = arg[1:strings.IndexByte(arg, '>')]
	default:
		return l.syntaxErrorAt(tok.Pos, "malformed #include, expected \"path\" or <path>")
	}
	if l.ctx.Includes == nil {
		return l.syntaxErrorAt(tok.Pos, "cannot include %q: no include resolver configured", path)
	}
	if len(l.frames) >= l.ctx.MaxIncludeDepth {
		return l.syntaxErrorAt(tok.Pos, "cannot include %q: include depth exceeds %d", path, l.ctx.MaxIncludeDepth)
	}

	from := l.top().fileIndex
	idx, src, err := l.ctx.Includes.ResolveInclude(from, path)
	if err != nil {
		return l.syntaxErrorAt(tok.Pos, "cannot include %q: %v", path, err)
	}
	common.Logger().Debug("sfx: include", "path", path, "from", from, "file", idx, "bytes", len(src))

	l.ctx.sources[idx] = src
	l.globalLine++
	l.frames = append(l.frames, &frame{fileIndex: idx, src: src, line: 1, col: 1})
	return nil
}

func (l *Lexer) number(first rune) (Token, error) {
	f := l.top()
	kind := TokenIntLiteral
	if first == '0' && (l.peek() == 'x' || l.peek() == 'X') {
		l.advance()
		digits := 0
		for isHexDigit(l.peek()) {
			l.advance()
			digits++
		}
		if digits == 0 {
			return Token{}, l.errorAt(l.startPos, "malformed hexadecimal literal %q", f.src[l.start:f.pos])
		}
		for l.peek() == 'u' || l.peek() == 'U' || l.peek() == 'l' || l.peek() == 'L' {
			l.advance()
		}
		return l.finishNumber(kind)
	}

	if first == '.' {
		kind = TokenFloatLiteral
	}
	for isDigit(l.peek()) {
		l.advance()
	}
	if first != '.' && l.peek() == '.' && (!isIdentStart(l.peekNext()) || isFloatSuffix(l.peekNext()) && !isIdentPart(l.peekAt(2))) {
		kind = TokenFloatLiteral
		l.advance()
		for isDigit(l.peek()) {
			l.advance()
		}
	}
	if l.peek() == 'e' || l.peek() == 'E' {
		kind = TokenFloatLiteral
		l.advance()
		if l.peek() == '+' || l.peek() == '-' {
			l.advance()
		}
		if !isDigit(l.peek()) {
			return Token{}, l.errorAt(l.startPos, "malformed exponent in %q", f.src[l.start:f.pos])
		}
		for isDigit(l.peek()) {
			l.advance()
		}
	}
	switch p := l.peek(); {
	case isFloatSuffix(p):
		kind = TokenFloatLiteral
		l.advance()
	case kind == TokenFloatLiteral && (p == 'l' || p == 'L'):
		l.advance()
		if l.peek() == 'f' || l.peek() == 'F' {
			l.advance()
		}
	case kind == TokenIntLiteral:
		for l.peek() == 'u' || l.peek() == 'U' || l.peek() == 'l' || l.peek() == 'L' {
			l.advance()
		}
	}
	return l.finishNumber(kind)
}

func (l *Lexer) finishNumber(kind TokenKind) (Token, error) {
	f := l.top()
	if isIdentPart(l.peek()) || l.peek() == '.' && isDigit(l.peekNext()) {
		for isIdentPart(l.peek()) || l.peek() == '.' {
			l.advance()
		}
		return Token{}, l.errorAt(l.startPos, "malformed numeric literal %q", f.src[l.start:f.pos])
	}
	return l.token(kind), nil
}

func (l *Lexer) stringLiteral() (Token, error) {
	for !l.isAtEnd() {
		switch l.peek() {
		case '"':
			l.advance()
			return l.token(TokenStringLiteral), nil
		case '\n':
			return Token{}, l.errorAt(l.startPos, "unterminated string literal")
		case '\\':
			l.advance()
			if !l.isAtEnd() && l.peek() != '\n' {
				l.advance()
			}
		default:
			l.advance()
		}
	}
	return Token{}, l.errorAt(l.startPos, "unterminated string literal")
}

func (l *Lexer) punctuation(r rune) (Token, error) {
	switch r {
	case '(':
		return l.token(TokenLeftParen), nil
	case ')':
		return l.token(TokenRightParen), nil
	case '{':
		return l.token(TokenLeftBrace), nil
	case '}':
		return l.token(TokenRightBrace), nil
	case '[':
		if l.match('[') {
			return l.token(TokenLeftDoubleBracket), nil
		}
		return l.token(TokenLeftBracket), nil
	case ']':
		if l.match(']') {
			return l.token(TokenRightDoubleBracket), nil
		}
		return l.token(TokenRightBracket), nil
	case ';':
		return l.token(TokenSemicolon), nil
	case ',':
		return l.token(TokenComma), nil
	case '.':
		return l.token(TokenDot), nil
	case ':':
		if l.match(':') {
			return l.token(TokenColonColon), nil
		}
		return l.token(TokenColon), nil
	case '<':
		if l.match('=') {
			return l.token(TokenOperator), nil
		}
		return l.token(TokenLess), nil
	case '>':
		if l.match('=') {
			return l.token(TokenOperator), nil
		}
		return l.token(TokenGreater), nil
	case '=':
		if l.match('=') {
			return l.token(TokenOperator), nil
		}
		return l.token(TokenEqual), nil
	case '-':
		if l.match('-') || l.match('=') || l.match('>') {
			return l.token(TokenOperator), nil
		}
		return l.token(TokenMinus), nil
	case '+', '&', '|':
		if !l.match(r) {
			l.match('=')
		}
		return l.token(TokenOperator), nil
	case '*', '/', '%', '^', '!':
		l.match('=')
		return l.token(TokenOperator), nil
	case '~', '?':
		return l.token(TokenOperator), nil
	}
	return Token{}, l.errorAt(l.startPos, "unexpected character %q", r)
}

func (l *Lexer) errorAt(pos common.Position, format string, args ...any) error {
	err := diag.NewLexicalError(pos, format, args...)
	err.File = l.ctx.nameOf(pos.FileIndex)
	err.Source, _ = l.ctx.SourceOf(pos.FileIndex)
	return err
}

func (l *Lexer) syntaxErrorAt(pos common.Position, format string, args ...any) error {
	err := diag.NewSyntaxError(pos, format, args...)
	err.File = l.ctx.nameOf(pos.FileIndex)
	err.Source, _ = l.ctx.SourceOf(pos.FileIndex)
	return err
}

func (l *Lexer) newline() {
	f := l.top()
	f.pos++
	f.line++
	f.col = 1
	l.globalLine++
}

func (l *Lexer) advance() rune {
	f := l.top()
	r, size := utf8.DecodeRuneInString(f.src[f.pos:])
	f.pos += size
	f.col++
	return r
}

func (l *Lexer) peek() rune {
	f := l.top()
	if f.pos >= len(f.src) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(f.src[f.pos:])
	return r
}

func (l *Lexer) peekNext() rune {
	f := l.top()
	if f.pos >= len(f.src) {
		return 0
	}
	_, size := utf8.DecodeRuneInString(f.src[f.pos:])
	if f.pos+size >= len(f.src) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(f.src[f.pos+size:])
	return r
}

// peekAt returns the byte n bytes ahead, or 0 past the end. Only used for ASCII lookahead.
func (l *Lexer) peekAt(n int) rune {
	f := l.top()
	if f.pos+n >= len(f.src) {
		return 0
	}
	return rune(f.src[f.pos+n])
}

func (l *Lexer) match(expected rune) bool {
	if l.isAtEnd() || l.peek() != expected {
		return false
	}
	l.advance()
	return true
}

func (l *Lexer) isAtEnd() bool {
	f := l.top()
	return f.pos >= len(f.src)
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isHexDigit(r rune) bool {
	return isDigit(r) || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

func isFloatSuffix(r rune) bool {
	return r == 'f' || r == 'F' || r == 'h' || r == 'H'
}

func isIdentStart(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || isDigit(r)
}

func isIdentifier(s string) bool {
	if s == "" || !isIdentStart(rune(s[0])) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isIdentPart(rune(s[i])) {
			return false
		}
	}
	return true
}
