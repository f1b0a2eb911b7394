package parser

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-sfx/engine/sfx/index"
)

// DefaultMaxIncludeDepth bounds #include nesting, which also stops include cycles.
const DefaultMaxIncludeDepth = 32

// IncludeResolver locates the content of included files. The parser never touches the file
// system itself.
type IncludeResolver interface {
	// ResolveInclude returns the file index and text of path as included from file index from.
	// Returning the same index for the same file keeps positions stable across a build.
	ResolveInclude(from int, path string) (fileIndex int, source string, err error)
}

// IncludeResolverFunc adapts a function to IncludeResolver.
type IncludeResolverFunc func(from int, path string) (int, string, error)

// ResolveInclude calls f.
func (f IncludeResolverFunc) ResolveInclude(from int, path string) (int, string, error) {
	return f(from, path)
}

// FileNamer is optionally implemented by an IncludeResolver to give file indices display names
// for error messages.
type FileNamer interface {
	FileName(fileIndex int) string
}

// ParseContext carries everything one parse needs. A context must not be shared between
// concurrent parses; create one per file.
type ParseContext struct {
	// FileIndex is the index of the root file.
	FileIndex int
	// FileName is the display name of the root file, used in diagnostics.
	FileName string
	// Source is the text of the root file.
	Source string
	// Includes resolves #include directives. Includes fail when nil.
	Includes IncludeResolver
	// Index receives the span of every declaration. A fresh index is created when nil.
	Index *index.Index
	// MaxIncludeDepth bounds include nesting, DefaultMaxIncludeDepth when zero.
	MaxIncludeDepth int

	// sources holds the text of every file the lexer opened, by file index.
	sources map[int]string
}

// ParseContextOption configures a ParseContext.
type ParseContextOption func(*ParseContext)

// WithIncludes sets the include resolver.
func WithIncludes(r IncludeResolver) ParseContextOption {
	return func(c *ParseContext) { c.Includes = r }
}

// WithFileName sets the display name of the root file.
func WithFileName(name string) ParseContextOption {
	return func(c *ParseContext) { c.FileName = name }
}

// WithIndex makes the parse record declaration spans into idx.
func WithIndex(idx *index.Index) ParseContextOption {
	return func(c *ParseContext) { c.Index = idx }
}

// WithMaxIncludeDepth overrides the include nesting limit.
func WithMaxIncludeDepth(depth int) ParseContextOption {
	return func(c *ParseContext) { c.MaxIncludeDepth = depth }
}

// NewParseContext creates a context for parsing source as file fileIndex.
//
// Parameters:
//   - source: the text of the root file
//   - fileIndex: the index identifying the root file
//   - options: optional settings
//
// Returns:
//   - *ParseContext: the new context
func NewParseContext(source string, fileIndex int, options ...ParseContextOption) *ParseContext {
	c := &ParseContext{
		FileIndex: fileIndex,
		Source:    source,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

func (c *ParseContext) init() {
	if c.Index == nil {
		c.Index = index.New()
	}
	if c.MaxIncludeDepth <= 0 {
		c.MaxIncludeDepth = DefaultMaxIncludeDepth
	}
	c.sources = map[int]string{c.FileIndex: c.Source}
}

// SourceOf returns the text of a file opened during the parse.
//
// Parameters:
//   - fileIndex: the file index
//
// Returns:
//   - string: the file text
//   - bool: false if the parse never opened the file
func (c *ParseContext) SourceOf(fileIndex int) (string, bool) {
	s, ok := c.sources[fileIndex]
	return s, ok
}

// Sources returns the text of every file opened during the parse, keyed by file index.
func (c *ParseContext) Sources() map[int]string {
	out := make(map[int]string, len(c.sources))
	for k, v := range c.sources {
		out[k] = v
	}
	return out
}

func (c *ParseContext) nameOf(fileIndex int) string {
	if fileIndex == c.FileIndex && c.FileName != "" {
		return c.FileName
	}
	if n, ok := c.Includes.(FileNamer); ok {
		if name := n.FileName(fileIndex); name != "" {
			return name
		}
	}
	return fmt.Sprintf("file#%d", fileIndex)
}
