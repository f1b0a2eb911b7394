// Package index maps declaration names to the byte span of their text in the source files, so
// tools can pull a single declaration out of a file without reparsing it.
//
// An Index is filled while a file is parsed and frozen when the parse completes. A frozen index
// is read-only and may be shared between goroutines. Lookups match names exactly.
package index

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-sfx/common"
)

// ErrFrozen is returned when recording into an index that has been frozen.
var ErrFrozen = errors.New("index: frozen")

// ErrNotFound is returned by Extract for names that are not indexed.
var ErrNotFound = errors.New("index: name not found")

// Sources provides the text of source files by file index.
type Sources interface {
	Source(fileIndex int) (string, bool)
}

// SourceMap is a Sources backed by a map.
type SourceMap map[int]string

// Source returns the text of a file.
func (m SourceMap) Source(fileIndex int) (string, bool) {
	s, ok := m[fileIndex]
	return s, ok
}

// Index is a name to span mapping.
type Index struct {
	mu     sync.RWMutex
	spans  map[string]common.Span
	order  []string
	frozen bool
}

// New creates an empty, writable index.
//
// Returns:
//   - *Index: the new index
func New() *Index {
	return &Index{spans: make(map[string]common.Span)}
}

// Record stores the span of a declaration. The first span recorded for a name is kept.
//
// Parameters:
//   - name: the declaration name
//   - span: the location of its text
//
// Returns:
//   - bool: true if the span was stored, false if the name was already indexed
//   - error: ErrFrozen if the index no longer accepts writes
func (x *Index) Record(name string, span common.Span) (bool, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.frozen {
		return false, ErrFrozen
	}
	if _, ok := x.spans[name]; ok {
		return false, nil
	}
	x.spans[name] = span
	x.order = append(x.order, name)
	return true, nil
}

// Freeze makes the index read-only. Freezing twice is a no-op.
func (x *Index) Freeze() {
	x.mu.Lock()
	x.frozen = true
	x.mu.Unlock()
}

// Frozen reports whether the index is read-only.
func (x *Index) Frozen() bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.frozen
}

// Lookup returns the span recorded for name. Only exact matches are found.
//
// Parameters:
//   - name: the declaration name
//
// Returns:
//   - common.Span: the span
//   - bool: false if name is not indexed
func (x *Index) Lookup(name string) (common.Span, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	s, ok := x.spans[name]
	return s, ok
}

// Extract returns the source text of the named declaration.
//
// Parameters:
//   - name: the declaration name
//   - src: the source files the spans point into
//
// Returns:
//   - string: the declaration text
//   - error: ErrNotFound for unknown names, or an error if the span does not fit its file
func (x *Index) Extract(name string, src Sources) (string, error) {
	span, ok := x.Lookup(name)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	text, ok := src.Source(span.FileIndex)
	if !ok {
		return "", fmt.Errorf("index: no source for file %d of %q", span.FileIndex, name)
	}
	if span.Offset < 0 || span.End() > len(text) {
		return "", fmt.Errorf("index: span %d+%d of %q outside file %d (%d bytes)", span.Offset, span.Size, name, span.FileIndex, len(text))
	}
	return span.Text(text), nil
}

// Names returns the indexed names in recording order.
func (x *Index) Names() []string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return append([]string(nil), x.order...)
}

// Len returns the number of indexed names.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.order)
}

// Merge combines indices into a new frozen index. When a name appears in more than one input,
// the span from the earliest input wins, so the result depends only on the argument order.
//
// Parameters:
//   - indices: the indices to combine, nil entries are skipped
//
// Returns:
//   - *Index: the merged, frozen index
func Merge(indices ...*Index) *Index {
	out := New()
	for _, x := range indices {
		if x == nil {
			continue
		}
		x.mu.RLock()
		for _, name := range x.order {
			if _, ok := out.spans[name]; !ok {
				out.spans[name] = x.spans[name]
				out.order = append(out.order, name)
			}
		}
		x.mu.RUnlock()
	}
	out.frozen = true
	return out
}
