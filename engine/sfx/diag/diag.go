// Package diag defines the error kinds produced while parsing and resolving effect files.
//
// Lexer and parser errors abort the current file and carry the file and line they were raised
// at. Resolver errors are collected across the whole declaration set and returned together as a
// List. Every kind matches a sentinel through errors.Is so callers can branch on the kind
// without type assertions.
package diag

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-sfx/common"
)

var (
	// ErrLexical matches every LexicalError.
	ErrLexical = errors.New("lexical error")

	// ErrSyntax matches every SyntaxError.
	ErrSyntax = errors.New("syntax error")

	// ErrUnresolvedReference matches every UnresolvedReferenceError.
	ErrUnresolvedReference = errors.New("unresolved reference")

	// ErrVariantBinding matches every VariantBindingError.
	ErrVariantBinding = errors.New("variant binding error")

	// ErrDuplicateDeclaration matches every DuplicateDeclarationError.
	ErrDuplicateDeclaration = errors.New("duplicate declaration")
)

// SourceError is the shared shape of errors raised at a position in effect source.
type SourceError struct {
	// File is the display name of the file, empty when the caller did not name it.
	File string
	// Pos is where the error was raised.
	Pos common.Position
	// Message describes the problem.
	Message string
	// Source is the text of the file the error was raised in, used for context display.
	Source string
}

func (e *SourceError) location() string {
	file := e.File
	if file == "" {
		file = fmt.Sprintf("file#%d", e.Pos.FileIndex)
	}
	if !e.Pos.IsValid() {
		return file
	}
	return fmt.Sprintf("%s:%d:%d", file, e.Pos.FileLine, e.Pos.Column)
}

// FormatWithContext returns the message followed by the offending source line and a caret under
// the column, or the plain message if no source text is attached.
//
// Returns:
//   - string: the formatted, multi-line message
func (e *SourceError) FormatWithContext() string {
	if e.Source == "" || !e.Pos.IsValid() {
		return e.location() + ": " + e.Message
	}
	lines := strings.Split(e.Source, "\n")
	if e.Pos.FileLine > len(lines) {
		return e.location() + ": " + e.Message
	}
	line := strings.TrimRight(lines[e.Pos.FileLine-1], "\r")
	col := max(e.Pos.Column, 1)
	col = min(col, len(line)+1)

	var sb strings.Builder
	fmt.Fprintf(&sb, "error: %s\n", e.Message)
	fmt.Fprintf(&sb, "  --> %s\n", e.location())
	sb.WriteString("   |\n")
	fmt.Fprintf(&sb, "%3d| %s\n", e.Pos.FileLine, line)
	fmt.Fprintf(&sb, "   | %s^\n", strings.Repeat(" ", col-1))
	return sb.String()
}

// LexicalError reports a character or literal the lexer could not tokenize.
type LexicalError struct {
	SourceError
}

func (e *LexicalError) Error() string {
	return fmt.Sprintf("%s: lexical error: %s", e.location(), e.Message)
}

// Is reports whether target is ErrLexical.
func (e *LexicalError) Is(target error) bool { return target == ErrLexical }

// SyntaxError reports a grammar violation. The file that raised it is discarded entirely.
type SyntaxError struct {
	SourceError
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s: syntax error: %s", e.location(), e.Message)
}

// Is reports whether target is ErrSyntax.
func (e *SyntaxError) Is(target error) bool { return target == ErrSyntax }

// NewLexicalError creates a LexicalError with a formatted message.
//
// Parameters:
//   - pos: where the error occurred
//   - format: fmt-style format string
//   - args: format arguments
//
// Returns:
//   - *LexicalError: the new error
func NewLexicalError(pos common.Position, format string, args ...any) *LexicalError {
	return &LexicalError{SourceError{Pos: pos, Message: fmt.Sprintf(format, args...)}}
}

// NewSyntaxError creates a SyntaxError with a formatted message.
//
// Parameters:
//   - pos: where the error occurred
//   - format: fmt-style format string
//   - args: format arguments
//
// Returns:
//   - *SyntaxError: the new error
func NewSyntaxError(pos common.Position, format string, args ...any) *SyntaxError {
	return &SyntaxError{SourceError{Pos: pos, Message: fmt.Sprintf(format, args...)}}
}

// UnresolvedReferenceError reports a pass or hit group naming a declaration that does not exist,
// or that exists with a kind the usage cannot accept.
type UnresolvedReferenceError struct {
	// Technique is the technique owning the pass.
	Technique string
	// Pass is the pass that holds the reference.
	Pass string
	// Name is the referenced declaration name.
	Name string
	// Usage says what the reference was for, e.g. "pixel shader" or "blend state".
	Usage string
	// Detail is an optional explanation, e.g. the kind that was found instead.
	Detail string
	// Pos is the position of the pass block.
	Pos common.Position
}

func (e *UnresolvedReferenceError) Error() string {
	msg := fmt.Sprintf("%s: technique %q pass %q: %s %q is not declared", e.Pos, e.Technique, e.Pass, e.Usage, e.Name)
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

// Is reports whether target is ErrUnresolvedReference.
func (e *UnresolvedReferenceError) Is(target error) bool { return target == ErrUnresolvedReference }

// VariantBindingError reports a variant condition that cannot be evaluated against the supplied
// variable bindings.
type VariantBindingError struct {
	// Struct is the struct or constant buffer being evaluated.
	Struct string
	// Member is the member whose condition failed.
	Member string
	// Variable is the variant variable named by the condition.
	Variable string
	// Reason explains the failure.
	Reason string
}

func (e *VariantBindingError) Error() string {
	return fmt.Sprintf("struct %q member %q: variant variable %q: %s", e.Struct, e.Member, e.Variable, e.Reason)
}

// Is reports whether target is ErrVariantBinding.
func (e *VariantBindingError) Is(target error) bool { return target == ErrVariantBinding }

// DuplicateDeclarationError reports two declarations of the same name and kind in one scope.
type DuplicateDeclarationError struct {
	// Name is the duplicated name.
	Name string
	// Kind is the declaration kind, as its display string.
	Kind string
	// First is where the name was first declared.
	First common.Position
	// Second is where it was declared again.
	Second common.Position
}

func (e *DuplicateDeclarationError) Error() string {
	return fmt.Sprintf("%s: %s %q already declared at %s", e.Second, e.Kind, e.Name, e.First)
}

// Is reports whether target is ErrDuplicateDeclaration.
func (e *DuplicateDeclarationError) Is(target error) bool { return target == ErrDuplicateDeclaration }

// List is a batch of errors reported together, used by the resolver.
type List []error

// Error implements the error interface.
func (l List) Error() string {
	switch len(l) {
	case 0:
		return "no errors"
	case 1:
		return l[0].Error()
	default:
		return fmt.Sprintf("%s (and %d more errors)", l[0].Error(), len(l)-1)
	}
}

// Unwrap exposes the batch to errors.Is and errors.As.
func (l List) Unwrap() []error {
	return l
}

// Add appends an error to the list. Nil errors are ignored.
//
// Parameters:
//   - err: the error to append
func (l *List) Add(err error) {
	if err != nil {
		*l = append(*l, err)
	}
}

// Err returns the list as an error, or nil when it is empty.
//
// Returns:
//   - error: nil, or the list itself
func (l List) Err() error {
	if len(l) == 0 {
		return nil
	}
	return l
}

// FormatAll formats every error on its own line, with source context where available.
//
// Returns:
//   - string: all errors, newline separated
func (l List) FormatAll() string {
	var sb strings.Builder
	for i, err := range l {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(Format(err))
	}
	return sb.String()
}

// Format renders an error with source context when it is a lexical or syntax error. A List is
// rendered member by member, so every error of a batch is shown.
//
// Parameters:
//   - err: the error to format
//
// Returns:
//   - string: the formatted text
func Format(err error) string {
	// List goes first: its Unwrap would otherwise hand errors.As its first member only.
	var list List
	if errors.As(err, &list) {
		return list.FormatAll()
	}
	var lexErr *LexicalError
	if errors.As(err, &lexErr) {
		return lexErr.FormatWithContext()
	}
	var synErr *SyntaxError
	if errors.As(err, &synErr) {
		return synErr.FormatWithContext()
	}
	return err.Error()
}
