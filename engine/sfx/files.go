package sfx

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/Carmen-Shannon/oxy-sfx/engine/sfx/parser"
)

// fileTable hands out stable file indices for every file a build opens. Parse workers share one
// table, so every method locks.
type fileTable struct {
	mu      sync.Mutex
	byPath  map[string]int
	paths   []string
	sources map[int]string
}

func newFileTable() *fileTable {
	return &fileTable{
		byPath:  make(map[string]int),
		sources: make(map[int]string),
	}
}

// index returns the index of path, assigning the next free one on first use.
func (t *fileTable) index(path string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i, ok := t.byPath[path]; ok {
		return i
	}
	i := len(t.paths)
	t.byPath[path] = i
	t.paths = append(t.paths, path)
	return i
}

// read returns the index and text of path, reading it from disk once per build. Files that
// cannot be read are not given an index.
func (t *fileTable) read(path string) (int, string, error) {
	t.mu.Lock()
	if i, ok := t.byPath[path]; ok {
		if src, ok := t.sources[i]; ok {
			t.mu.Unlock()
			return i, src, nil
		}
	}
	t.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return 0, "", err
	}
	i := t.index(path)
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.sources[i]; !ok {
		t.sources[i] = string(data)
	}
	return i, t.sources[i], nil
}

// put registers an in-memory file.
func (t *fileTable) put(path, src string) int {
	i := t.index(path)
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sources[i] = src
	return i
}

func (t *fileTable) name(i int) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i >= 0 && i < len(t.paths) {
		return t.paths[i]
	}
	return ""
}

func (t *fileTable) snapshot() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.paths))
	copy(out, t.paths)
	return out
}

// DirIncludeResolver resolves #include paths against the directory of the including file first
// and then against a list of include directories, in order.
type DirIncludeResolver struct {
	files *fileTable
	dirs  []string
}

var (
	_ parser.IncludeResolver = &DirIncludeResolver{}
	_ parser.FileNamer       = &DirIncludeResolver{}
)

// NewDirIncludeResolver creates a resolver with its own file table. Builds create one per build
// so that file indices are shared between the root files and their includes.
//
// Parameters:
//   - dirs: the include directories, searched in order after the including file's directory
//
// Returns:
//   - *DirIncludeResolver: the resolver
func NewDirIncludeResolver(dirs ...string) *DirIncludeResolver {
	return &DirIncludeResolver{files: newFileTable(), dirs: dirs}
}

// ResolveInclude implements parser.IncludeResolver.
func (r *DirIncludeResolver) ResolveInclude(from int, path string) (int, string, error) {
	var candidates []string
	if filepath.IsAbs(path) {
		candidates = []string{path}
	} else {
		if name := r.files.name(from); name != "" {
			candidates = append(candidates, filepath.Join(filepath.Dir(name), path))
		}
		for _, dir := range r.dirs {
			candidates = append(candidates, filepath.Join(dir, path))
		}
	}
	for _, c := range candidates {
		i, src, err := r.files.read(filepath.Clean(c))
		if err == nil {
			return i, src, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return 0, "", err
		}
	}
	return 0, "", fmt.Errorf("include %q not found in %d locations", path, len(candidates))
}

// FileName implements parser.FileNamer.
func (r *DirIncludeResolver) FileName(fileIndex int) string {
	return r.files.name(fileIndex)
}

// Files returns every file opened so far, by file index.
func (r *DirIncludeResolver) Files() []string {
	return r.files.snapshot()
}
