// Package config loads sfxc build files. A build file is TOML:
//
//	files = ["effects/main.sfx", "effects/post.sfx"]
//	include_dirs = ["effects/include"]
//	workers = 4
//
//	[variants]
//	quality = [0, 1, 2]
//
//	[output]
//	format = "json"
//	path = "build/effects.json"
//
//	[backend]
//	shader_model = "6_0"
//	glsl = "450"
//	msl = "2.1"
//
// Relative paths are resolved against the directory of the build file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/Carmen-Shannon/oxy-sfx/engine/sfx"
	"github.com/Carmen-Shannon/oxy-sfx/engine/sfx/bindmap"
	"github.com/Carmen-Shannon/oxy-sfx/engine/sfx/variant"
	"github.com/pelletier/go-toml/v2"
)

// Output formats of the build report.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Formats lists the accepted output formats.
var Formats = []string{FormatText, FormatJSON, FormatYAML}

// ErrInvalid is matched by every validation error.
var ErrInvalid = errors.New("invalid build configuration")

// Config is a build file.
type Config struct {
	Files           []string         `toml:"files" json:"files" yaml:"files"`
	IncludeDirs     []string         `toml:"include_dirs" json:"include_dirs,omitempty" yaml:"include_dirs,omitempty"`
	Workers         int              `toml:"workers" json:"workers" yaml:"workers"`
	Profiling       bool             `toml:"profiling" json:"profiling" yaml:"profiling"`
	MaxIncludeDepth int              `toml:"max_include_depth" json:"max_include_depth,omitempty" yaml:"max_include_depth,omitempty"`
	Variants        map[string][]any `toml:"variants" json:"variants,omitempty" yaml:"variants,omitempty"`
	Output          Output           `toml:"output" json:"output" yaml:"output"`
	Backend         Backend          `toml:"backend" json:"backend" yaml:"backend"`
}

// Output selects where and how the build report is written.
type Output struct {
	// Format is one of Formats.
	Format string `toml:"format" json:"format" yaml:"format"`
	// Path is the report file. Empty writes to stdout.
	Path string `toml:"path" json:"path,omitempty" yaml:"path,omitempty"`
}

// Backend holds the target versions of the exported binding tables. Empty strings pick the
// defaults of sfx.Targets.
type Backend struct {
	ShaderModel string  `toml:"shader_model" json:"shader_model,omitempty" yaml:"shader_model,omitempty"`
	GLSL        string  `toml:"glsl" json:"glsl,omitempty" yaml:"glsl,omitempty"`
	MSL         string  `toml:"msl" json:"msl,omitempty" yaml:"msl,omitempty"`
	Shifts      *Shifts `toml:"shifts" json:"shifts,omitempty" yaml:"shifts,omitempty"`
}

// Shifts overrides the per register class binding offsets.
type Shifts struct {
	B uint32 `toml:"b" json:"b" yaml:"b"`
	T uint32 `toml:"t" json:"t" yaml:"t"`
	S uint32 `toml:"s" json:"s" yaml:"s"`
	U uint32 `toml:"u" json:"u" yaml:"u"`
}

// Default returns a configuration with every optional field set.
func Default() *Config {
	return &Config{
		Output: Output{Format: FormatText},
	}
}

// Load reads and validates a build file. Unknown keys are rejected.
//
// Parameters:
//   - path: the TOML file
//
// Returns:
//   - *Config: the configuration, with relative paths made relative to the working directory
//   - error: on read, decode or validation failure
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	c.rebase(filepath.Dir(path))
	return c, nil
}

// Parse decodes and validates a build file held in memory. Paths are left as written.
//
// Parameters:
//   - data: the TOML text
//
// Returns:
//   - *Config: the configuration
//   - error: on decode or validation failure
func Parse(data []byte) (*Config, error) {
	c := Default()
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(c); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return nil, fmt.Errorf("line %d, column %d: %w", row, col, err)
		}
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// rebase joins relative paths onto dir.
func (c *Config) rebase(dir string) {
	join := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	for i, f := range c.Files {
		c.Files[i] = join(f)
	}
	for i, d := range c.IncludeDirs {
		c.IncludeDirs[i] = join(d)
	}
	c.Output.Path = join(c.Output.Path)
}

// Validate checks every field.
//
// Returns:
//   - error: wrapping ErrInvalid for the first bad field
func (c *Config) Validate() error {
	if len(c.Files) == 0 {
		return fmt.Errorf("%w: no files", ErrInvalid)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must not be negative, got %d", ErrInvalid, c.Workers)
	}
	if c.MaxIncludeDepth < 0 {
		return fmt.Errorf("%w: max_include_depth must not be negative, got %d", ErrInvalid, c.MaxIncludeDepth)
	}
	if c.Output.Format == "" {
		c.Output.Format = FormatText
	}
	if !slices.Contains(Formats, c.Output.Format) {
		return fmt.Errorf("%w: output format %q, want one of %v", ErrInvalid, c.Output.Format, Formats)
	}
	if _, err := c.Domain(); err != nil {
		return fmt.Errorf("%w: variants: %v", ErrInvalid, err)
	}
	if _, err := c.Targets(); err != nil {
		return fmt.Errorf("%w: backend: %v", ErrInvalid, err)
	}
	return nil
}

// Domain converts the variant lists to a variant domain.
func (c *Config) Domain() (variant.Domain, error) {
	return variant.DomainOf(c.Variants)
}

// Targets converts the backend versions.
//
// Returns:
//   - sfx.Targets: the export targets
//   - error: if a version is not recognized
func (c *Config) Targets() (sfx.Targets, error) {
	var t sfx.Targets
	if c.Backend.ShaderModel != "" {
		model, err := bindmap.ParseShaderModel(c.Backend.ShaderModel)
		if err != nil {
			return t, err
		}
		t.ShaderModel = &model
	}
	if c.Backend.GLSL != "" {
		v, err := bindmap.ParseGLSLVersion(c.Backend.GLSL)
		if err != nil {
			return t, err
		}
		t.GLSL = v
	}
	if c.Backend.MSL != "" {
		v, err := bindmap.ParseMSLVersion(c.Backend.MSL)
		if err != nil {
			return t, err
		}
		t.MSL = v
	}
	return t, nil
}

// CompilerOptions returns the compiler options the build file asks for.
func (c *Config) CompilerOptions() []sfx.CompilerBuilderOption {
	options := []sfx.CompilerBuilderOption{
		sfx.WithWorkers(c.Workers),
		sfx.WithIncludeDirs(c.IncludeDirs...),
		sfx.WithProfiling(c.Profiling),
		sfx.WithMaxIncludeDepth(c.MaxIncludeDepth),
	}
	if s := c.Backend.Shifts; s != nil {
		options = append(options, sfx.WithShifts(bindmap.Shifts{B: s.B, T: s.T, S: s.S, U: s.U}))
	}
	return options
}
