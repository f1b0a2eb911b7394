// Package parser turns effect source text into declarations and techniques.
//
// The front end is a hand-written lexer feeding a recursive-descent parser. Both are driven by an
// explicit ParseContext, so any number of files can be parsed concurrently as long as each parse
// gets its own context.
//
// Preprocessing is limited. #include is expanded by the lexer; #define of an integer makes the
// name usable as an array size; at top level #ifdef, #ifndef, #else and #endif select blocks by
// whether a name is defined, which covers include guards. Expression #if is accepted only around
// struct and cbuffer members, where it marks variant members.
package parser

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-sfx/common"
)

// TokenKind represents the type of token.
type TokenKind uint8

const (
	TokenEOF TokenKind = iota

	// Literals
	TokenIdent
	TokenKeyword
	TokenIntLiteral
	TokenFloatLiteral
	TokenStringLiteral

	// Preprocessor line other than #include, e.g. "#if useFog == 1"
	TokenDirective

	// Delimiters
	TokenLeftParen           // (
	TokenRightParen          // )
	TokenLeftBrace           // {
	TokenRightBrace          // }
	TokenLeftBracket         // [
	TokenRightBracket        // ]
	TokenLeftDoubleBracket   // [[
	TokenRightDoubleBracket  // ]]
	TokenLess                // <
	TokenGreater             // >
	TokenSemicolon           // ;
	TokenColon               // :
	TokenColonColon          // ::
	TokenComma               // ,
	TokenDot                 // .
	TokenEqual               // =
	TokenMinus               // -
	TokenOperator            // any other operator, only meaningful inside function bodies
)

var tokenKindNames = map[TokenKind]string{
	TokenEOF:                "EOF",
	TokenIdent:              "identifier",
	TokenKeyword:            "keyword",
	TokenIntLiteral:         "integer literal",
	TokenFloatLiteral:       "float literal",
	TokenStringLiteral:      "string literal",
	TokenDirective:          "directive",
	TokenLeftParen:          "(",
	TokenRightParen:         ")",
	TokenLeftBrace:          "{",
	TokenRightBrace:         "}",
	TokenLeftBracket:        "[",
	TokenRightBracket:       "]",
	TokenLeftDoubleBracket:  "[[",
	TokenRightDoubleBracket: "]]",
	TokenLess:               "<",
	TokenGreater:            ">",
	TokenSemicolon:          ";",
	TokenColon:              ":",
	TokenColonColon:         "::",
	TokenComma:              ",",
	TokenDot:                ".",
	TokenEqual:              "=",
	TokenMinus:              "-",
	TokenOperator:           "operator",
}

// String returns the string representation of the token kind.
func (k TokenKind) String() string {
	if s, ok := tokenKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("TokenKind(%d)", uint8(k))
}

// keywords is the subset of the shading language the parser gives structural meaning to.
// Resource type names such as Texture2D stay identifiers and are classified by the restype
// registry.
var keywords = map[string]bool{
	"struct":                  true,
	"cbuffer":                 true,
	"register":                true,
	"packoffset":              true,
	"technique":               true,
	"technique10":             true,
	"technique11":             true,
	"technique12":             true,
	"pass":                    true,
	"group":                   true,
	"shader":                  true,
	"CompileShader":           true,
	"NULL":                    true,
	"true":                    true,
	"false":                   true,
	"typedef":                 true,
	"RasterizerState":         true,
	"DepthStencilState":       true,
	"BlendState":              true,
	"RenderTargetFormatState": true,
}

// Token represents a lexical token.
type Token struct {
	Kind TokenKind
	// Text is the exact source text of the token. For directives it is the whole logical line.
	Text string
	// Pos is the position of the first character.
	Pos common.Position
	// Offset is the byte offset of the token within its file.
	Offset int
	// Len is the byte length of the token.
	Len int
}

// End returns the byte offset one past the token within its file.
func (t Token) End() int { return t.Offset + t.Len }

// Is reports whether the token is the keyword or identifier text.
func (t Token) Is(text string) bool {
	return (t.Kind == TokenKeyword || t.Kind == TokenIdent) && t.Text == text
}

func (t Token) String() string {
	switch t.Kind {
	case TokenEOF:
		return "end of file"
	case TokenIdent, TokenKeyword, TokenIntLiteral, TokenFloatLiteral, TokenStringLiteral, TokenOperator:
		return fmt.Sprintf("%s %q", t.Kind, t.Text)
	case TokenDirective:
		return fmt.Sprintf("directive %q", t.Text)
	default:
		return fmt.Sprintf("%q", t.Kind.String())
	}
}
