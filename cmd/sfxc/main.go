// Command sfxc builds shader effect files and reports their metadata.
//
// Usage:
//
//	sfxc [options] <file.sfx>...
//	sfxc -config sfx.toml [options]
//
// Examples:
//
//	sfxc main.sfx post.sfx                     # Parse, resolve and summarize
//	sfxc -format json -o build/fx.json main.sfx
//	sfxc -bindings -layouts -config sfx.toml   # Also export binding tables and layouts
//	sfxc -watch -config sfx.toml               # Rebuild whenever an input changes
//	sfxc -enum -format yaml                    # Print the resource type table
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/Carmen-Shannon/oxy-sfx/common"
	"github.com/Carmen-Shannon/oxy-sfx/engine/config"
	"github.com/Carmen-Shannon/oxy-sfx/engine/sfx"
	"github.com/Carmen-Shannon/oxy-sfx/engine/sfx/diag"
)

// errBuildFailed is returned after the diagnostics of a failed build have been printed.
var errBuildFailed = errors.New("build failed")

// options are the command line settings that are not part of a build file.
type options struct {
	configFile string
	watch      bool
	verbose    bool
	enum       bool
	layouts    bool
	bindings   bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, errBuildFailed) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("sfxc", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		opts        options
		includeDirs []string
		cliCfg      = config.Default()
	)
	fs.StringVar(&opts.configFile, "config", "", "read the build from TOML `file`")
	fs.StringVar(&cliCfg.Output.Format, "format", config.FormatText, "report format: "+strings.Join(config.Formats, ", "))
	fs.StringVar(&cliCfg.Output.Path, "o", "", "write the report to `file` (default: stdout)")
	fs.IntVar(&cliCfg.Workers, "workers", 0, "files parsed in parallel (default: CPUs - 1)")
	fs.BoolVar(&cliCfg.Profiling, "profile", false, "log parse throughput and memory statistics")
	fs.StringVar(&cliCfg.Backend.ShaderModel, "sm", "", "HLSL shader model, e.g. 6_0 (default: highest profile used)")
	fs.StringVar(&cliCfg.Backend.GLSL, "glsl", "", "GLSL version, e.g. 450 or \"310 es\"")
	fs.StringVar(&cliCfg.Backend.MSL, "msl", "", "Metal shading language version, e.g. 2.1")
	fs.Func("I", "add an include `dir` (repeatable)", func(dir string) error {
		includeDirs = append(includeDirs, dir)
		return nil
	})
	fs.BoolVar(&opts.watch, "watch", false, "rebuild whenever an input or include changes")
	fs.BoolVar(&opts.verbose, "v", false, "log debug output")
	fs.BoolVar(&opts.enum, "enum", false, "print the shader resource type table and exit")
	fs.BoolVar(&opts.layouts, "layouts", false, "report the byte layout of every struct and constant buffer")
	fs.BoolVar(&opts.bindings, "bindings", false, "report HLSL, GLSL, MSL and WebGPU binding tables")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: sfxc [options] <file.sfx>...\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	level := slog.LevelWarn
	switch {
	case opts.verbose:
		level = slog.LevelDebug
	case cliCfg.Profiling:
		level = slog.LevelInfo
	}
	common.SetLogger(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})))
	defer common.SetLogger(nil)

	if opts.enum {
		return writeEnum(stdout, cliCfg.Output.Format)
	}

	cfg, err := resolveConfig(fs, opts, cliCfg, includeDirs)
	if err != nil {
		return err
	}

	compiler := sfx.NewCompiler(cfg.CompilerOptions()...)
	defer compiler.Close()

	if opts.watch {
		return watch(ctx, compiler, cfg, opts, stdout, stderr)
	}
	_, err = buildOnce(compiler, cfg, opts, stdout, stderr)
	return err
}

// resolveConfig merges the build file with the flags given on the command line. Flags win.
func resolveConfig(fs *flag.FlagSet, opts options, cliCfg *config.Config, includeDirs []string) (*config.Config, error) {
	cfg := cliCfg
	if opts.configFile != "" {
		loaded, err := config.Load(opts.configFile)
		if err != nil {
			return nil, err
		}
		fs.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "format":
				loaded.Output.Format = cliCfg.Output.Format
			case "o":
				loaded.Output.Path = cliCfg.Output.Path
			case "workers":
				loaded.Workers = cliCfg.Workers
			case "profile":
				loaded.Profiling = cliCfg.Profiling
			case "sm":
				loaded.Backend.ShaderModel = cliCfg.Backend.ShaderModel
			case "glsl":
				loaded.Backend.GLSL = cliCfg.Backend.GLSL
			case "msl":
				loaded.Backend.MSL = cliCfg.Backend.MSL
			}
		})
		cfg = loaded
	}
	cfg.Files = append(cfg.Files, fs.Args()...)
	cfg.IncludeDirs = append(cfg.IncludeDirs, includeDirs...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// buildOnce runs one build and writes its report.
//
// Returns:
//   - *sfx.Effect: the effect, nil when the build failed
//   - error: errBuildFailed after printing diagnostics, or an output error
func buildOnce(c sfx.Compiler, cfg *config.Config, opts options, stdout, stderr io.Writer) (*sfx.Effect, error) {
	e, err := c.ParseFiles(cfg.Files...)
	if err != nil {
		fmt.Fprintln(stderr, diag.Format(err))
		return nil, errBuildFailed
	}

	r, err := newReport(e)
	if err != nil {
		fmt.Fprintln(stderr, diag.Format(err))
		return nil, errBuildFailed
	}
	if opts.layouts {
		domain, err := cfg.Domain()
		if err != nil {
			return nil, err
		}
		r.addLayouts(e, domain)
	}
	if opts.bindings {
		targets, err := cfg.Targets()
		if err != nil {
			return nil, err
		}
		if err := r.addBindings(e, targets); err != nil {
			fmt.Fprintln(stderr, diag.Format(err))
			return nil, errBuildFailed
		}
	}

	return e, writeReport(r, cfg.Output, stdout)
}

// writeReport writes r to out.Path, or to stdout when no path is set.
func writeReport(r *report, out config.Output, stdout io.Writer) error {
	w := stdout
	if out.Path != "" {
		if err := os.MkdirAll(filepath.Dir(out.Path), 0o755); err != nil {
			return err
		}
		f, err := os.Create(out.Path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	if out.Format == config.FormatText {
		return r.writeText(w)
	}
	return encode(w, out.Format, r)
}
