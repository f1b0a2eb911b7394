package sfx

import (
	"github.com/Carmen-Shannon/oxy-sfx/engine/sfx/bindmap"
	"github.com/Carmen-Shannon/oxy-sfx/engine/sfx/parser"
)

// CompilerBuilderOption is a functional option for configuring a Compiler.
// Use the With* functions to create options that are applied directly to the compiler instance.
type CompilerBuilderOption func(*compiler)

// WithWorkers sets the number of files parsed in parallel. Values <= 0 are treated as the
// default of one worker per CPU, leaving one CPU free.
//
// Parameters:
//   - n: the maximum number of parse workers
//
// Returns:
//   - CompilerBuilderOption: option function to apply
func WithWorkers(n int) CompilerBuilderOption {
	return func(c *compiler) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithIncludeDirs adds directories searched for #include files after the directory of the
// including file.
//
// Parameters:
//   - dirs: the include directories, searched in order
//
// Returns:
//   - CompilerBuilderOption: option function to apply
func WithIncludeDirs(dirs ...string) CompilerBuilderOption {
	return func(c *compiler) {
		c.includeDirs = append(c.includeDirs, dirs...)
	}
}

// WithIncludeResolver replaces the directory based include lookup. The resolver must not return
// the file indices of the root files, which are numbered from 0 in the order they are passed to
// ParseFiles.
//
// Parameters:
//   - r: the include resolver
//
// Returns:
//   - CompilerBuilderOption: option function to apply
func WithIncludeResolver(r parser.IncludeResolver) CompilerBuilderOption {
	return func(c *compiler) {
		c.resolver = r
	}
}

// WithProfiling enables or disables the build profile logged at the end of every build.
//
// Parameters:
//   - enabled: if true, builds are profiled
//
// Returns:
//   - CompilerBuilderOption: option function to apply
func WithProfiling(enabled bool) CompilerBuilderOption {
	return func(c *compiler) {
		c.profiling = enabled
	}
}

// WithMaxIncludeDepth overrides the include nesting limit of every parse.
func WithMaxIncludeDepth(depth int) CompilerBuilderOption {
	return func(c *compiler) {
		c.maxIncludeDepth = depth
	}
}

// WithShifts sets the per-class binding offsets used when resources are collected.
func WithShifts(s bindmap.Shifts) CompilerBuilderOption {
	return func(c *compiler) {
		c.shifts = s
	}
}
