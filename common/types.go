// package common contains common types that are used throughout the SFX engine. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types.
package common

import "fmt"

// Position identifies a location in effect source. Effects may pull in other files through
// #include, so a position carries two line numbers: the global line counts every line the lexer
// has consumed for the current parse across all included files, while FileLine restarts at 1 for
// every included file.
type Position struct {
	// FileIndex is the index of the file the position belongs to, as assigned by the caller of the
	// parser (root file) or by the include resolver (included files).
	FileIndex int
	// GlobalLine is the 1-based line number counted across the whole parse, includes expanded in place.
	GlobalLine int
	// FileLine is the 1-based line number inside the file identified by FileIndex.
	FileLine int
	// Column is the 1-based column of the position on its line.
	Column int
}

// String formats the position as "file#<index>:<line>:<column>".
func (p Position) String() string {
	return fmt.Sprintf("file#%d:%d:%d", p.FileIndex, p.FileLine, p.Column)
}

// IsValid reports whether the position was set by the lexer.
//
// Returns:
//   - bool: true if the position has a line number
func (p Position) IsValid() bool {
	return p.FileLine > 0
}

// Span is a byte range inside a single source file. Offsets are relative to the start of the file
// identified by FileIndex, not to the start of the parse.
type Span struct {
	// FileIndex is the file the span belongs to.
	FileIndex int
	// Offset is the byte offset of the first byte of the span.
	Offset int
	// Size is the number of bytes covered by the span.
	Size int
}

// End returns the byte offset one past the last byte of the span.
//
// Returns:
//   - int: Offset + Size
func (s Span) End() int {
	return s.Offset + s.Size
}

// Text slices the span out of the given file source. An empty string is returned when the span does
// not fit inside the source.
//
// Parameters:
//   - source: the full text of the file identified by s.FileIndex
//
// Returns:
//   - string: the text covered by the span
func (s Span) Text(source string) string {
	if s.Offset < 0 || s.Size < 0 || s.End() > len(source) {
		return ""
	}
	return source[s.Offset:s.End()]
}
