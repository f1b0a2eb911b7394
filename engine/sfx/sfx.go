// Package sfx builds effects: it parses a set of effect files in parallel, resolves the passes of
// every technique against the declarations of all files, and exposes the result as an Effect.
//
// Every file is parsed on its own ParseContext by a worker of a shared pool. The only state the
// workers share is the file table that numbers files, so positions stay stable no matter which
// worker opens an include first. Resolution runs on the calling goroutine after every parse has
// finished.
package sfx

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-sfx/common"
	"github.com/Carmen-Shannon/oxy-sfx/engine/profiler"
	"github.com/Carmen-Shannon/oxy-sfx/engine/sfx/bindmap"
	"github.com/Carmen-Shannon/oxy-sfx/engine/sfx/diag"
	"github.com/Carmen-Shannon/oxy-sfx/engine/sfx/parser"
	"github.com/Carmen-Shannon/oxy-sfx/engine/sfx/resolve"
)

// parseQueueSize bounds the number of files waiting for a worker.
const parseQueueSize = 256

// Source is an effect file held in memory.
type Source struct {
	// Name identifies the file in diagnostics and is the base for relative includes.
	Name string
	// Text is the file content.
	Text string
}

// Compiler builds effects from effect files.
type Compiler interface {
	// ParseFiles reads, parses and resolves the given files as one effect. Files are numbered
	// from 0 in argument order; includes get the following indices.
	//
	// Parameters:
	//   - paths: the root effect files
	//
	// Returns:
	//   - *Effect: the resolved effect
	//   - error: a diag.List holding every read, lexical, syntax, duplicate and unresolved
	//     reference error found, nil on success
	ParseFiles(paths ...string) (*Effect, error)

	// ParseSources parses and resolves in-memory files as one effect. Includes are still looked
	// up on disk relative to each source name.
	//
	// Parameters:
	//   - sources: the root effect files
	//
	// Returns:
	//   - *Effect: the resolved effect
	//   - error: as for ParseFiles
	ParseSources(sources ...Source) (*Effect, error)

	// Close stops the parse workers. The compiler must not be used afterwards.
	Close()
}

// compiler is the implementation of the Compiler interface.
type compiler struct {
	workers         int
	includeDirs     []string
	resolver        parser.IncludeResolver
	profiling       bool
	maxIncludeDepth int
	shifts          bindmap.Shifts

	pool worker.DynamicWorkerPool
}

var _ Compiler = &compiler{}

// NewCompiler creates a Compiler and starts its parse workers.
//
// Parameters:
//   - options: optional settings
//
// Returns:
//   - Compiler: the new compiler
func NewCompiler(options ...CompilerBuilderOption) Compiler {
	c := &compiler{
		workers: max(runtime.NumCPU()-1, 1),
		shifts:  bindmap.DefaultShifts,
	}
	for _, option := range options {
		option(c)
	}

	// Start the pool after options so WithWorkers can override the default.
	c.pool = worker.NewDynamicWorkerPool(c.workers, parseQueueSize, time.Second)
	return c
}

// input is one root file of a build.
type input struct {
	name  string
	index int
	load  func() (string, error)
}

// parsed is the outcome of parsing one input.
type parsed struct {
	result *parser.Result
	err    error
}

func (c *compiler) ParseFiles(paths ...string) (*Effect, error) {
	includes := NewDirIncludeResolver(c.includeDirs...)
	inputs := make([]input, len(paths))
	for i, p := range paths {
		name := filepath.Clean(p)
		inputs[i] = input{
			name:  name,
			index: includes.files.index(name),
			load: func() (string, error) {
				_, src, err := includes.files.read(name)
				return src, err
			},
		}
	}
	return c.build(inputs, includes)
}

func (c *compiler) ParseSources(sources ...Source) (*Effect, error) {
	includes := NewDirIncludeResolver(c.includeDirs...)
	inputs := make([]input, len(sources))
	for i, s := range sources {
		inputs[i] = input{
			name:  s.Name,
			index: includes.files.put(s.Name, s.Text),
			load:  func() (string, error) { return s.Text, nil },
		}
	}
	return c.build(inputs, includes)
}

func (c *compiler) Close() {
	c.pool.Stop()
}

// build parses every input on the worker pool, then resolves the results in input order.
func (c *compiler) build(inputs []input, dirs *DirIncludeResolver) (*Effect, error) {
	started := time.Now()
	var prof *profiler.BuildProfiler
	if c.profiling {
		prof = profiler.NewBuildProfiler()
	}
	var includes parser.IncludeResolver = dirs
	if c.resolver != nil {
		includes = c.resolver
	}

	// The pool's own Wait blocks until workers go idle, so each build keeps its own barrier.
	outs := make([]parsed, len(inputs))
	var wg sync.WaitGroup
	for n, in := range inputs {
		wg.Add(1)
		c.pool.SubmitTask(worker.Task{
			ID:      n,
			Payload: in.name,
			Do: func() (any, error) {
				defer wg.Done()
				parseStarted := time.Now()
				src, err := in.load()
				if err != nil {
					outs[n].err = fmt.Errorf("%s: %w", in.name, err)
					return nil, outs[n].err
				}
				ctx := parser.NewParseContext(src, in.index,
					parser.WithFileName(in.name),
					parser.WithIncludes(includes),
					parser.WithMaxIncludeDepth(c.maxIncludeDepth))
				outs[n].result, outs[n].err = parser.ParseWithContext(ctx)
				if prof != nil {
					prof.Record(in.name, len(src), time.Since(parseStarted))
				}
				return outs[n].result, outs[n].err
			},
		})
	}
	wg.Wait()
	if prof != nil {
		prof.Finish()
	}

	var errs diag.List
	units := make([]resolve.Unit, 0, len(inputs))
	for n, out := range outs {
		if out.err != nil {
			errs.Add(out.err)
			continue
		}
		units = append(units, resolve.Unit{Name: inputs[n].name, Result: out.result})
	}
	if len(errs) > 0 {
		return nil, errs
	}

	reg, err := resolve.NewRegistry(units...)
	addAll(&errs, err)
	addAll(&errs, reg.Resolve())
	if len(errs) > 0 {
		return nil, errs
	}

	e := newEffect(reg, units, dirs.Files(), c.shifts)
	for _, d := range reg.Unreferenced() {
		common.Logger().Warn("sfx: unreferenced declaration", "name", d.Name, "kind", d.Type(), "at", d.Pos)
	}
	common.Logger().Info("sfx: build finished",
		"files", len(inputs),
		"declarations", len(e.Declarations()),
		"techniques", len(e.techniqueOrder),
		"elapsed", time.Since(started))
	return e, nil
}

// addAll appends err to errs, flattening a diag.List.
func addAll(errs *diag.List, err error) {
	var list diag.List
	if errors.As(err, &list) {
		*errs = append(*errs, list...)
		return
	}
	errs.Add(err)
}
