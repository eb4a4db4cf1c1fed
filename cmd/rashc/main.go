// Command rashc compiles restricted rashc source files into hardened
// POSIX shell scripts.
package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
	maybeio "github.com/google/renameio/v2/maybe"
	diffpkg "github.com/rogpeppe/go-internal/diff"
	"golang.org/x/sync/errgroup"

	"github.com/rash-tools/rashc/internal/diagnostics"
	"github.com/rash-tools/rashc/internal/lower"
	"github.com/rash-tools/rashc/internal/posix"
	"github.com/rash-tools/rashc/internal/rashconfig"
	"github.com/rash-tools/rashc/internal/restrict"
	"github.com/rash-tools/rashc/internal/source"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		usage()
		return 2
	}

	switch args[0] {
	case "build":
		return runBuild(args[1:])
	case "check":
		return runCheck(args[1:])
	case "-h", "--help", "help":
		usage()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "rashc: unknown subcommand %q\n", args[0])
		usage()
		return 2
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `usage: rashc <command> [flags] <path ...>

commands:
  build   compile .rh sources into POSIX shell scripts
  check   validate .rh sources without emitting output

build flags:
  -o dir          write scripts to dir instead of alongside each source
  -entry name     entry point function name (default "main")
  -config path    load emitter configuration from a YAML file
  -verify=bool    embed a verifying rash_download_verified (default true)
  -strict=bool    reject malformed IR instead of emitting best-effort output
  -diff           print a diff instead of writing, exit nonzero if different
  -v              verbose logging

check flags:
  -entry name     entry point function name (default "main")
  -v              verbose logging
`)
}

func runCheck(args []string) int {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	entry := fs.String("entry", "main", "entry point function name")
	verbose := fs.Bool("v", false, "verbose logging")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	diagnostics.SetVerbose(*verbose)

	paths := fs.Args()
	if len(paths) == 0 {
		fmt.Fprintln(os.Stderr, "rashc check: no input files")
		return 2
	}

	failed := false
	for _, path := range paths {
		_, src, err := compile(path, *entry)
		if err != nil {
			reportCompileError(path, src, err)
			failed = true
			continue
		}
		diagnostics.Logger.Infof("%s: ok", path)
	}
	if failed {
		return 1
	}
	return 0
}

func runBuild(args []string) int {
	fs := flag.NewFlagSet("build", flag.ContinueOnError)
	outDir := fs.String("o", "", "output directory")
	entry := fs.String("entry", "main", "entry point function name")
	configPath := fs.String("config", "", "path to a YAML emitter configuration")
	verify := fs.Bool("verify", true, "embed a verifying rash_download_verified")
	strict := fs.Bool("strict", false, "reject malformed IR instead of best-effort output")
	diff := fs.Bool("diff", false, "print a diff instead of writing")
	verbose := fs.Bool("v", false, "verbose logging")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	diagnostics.SetVerbose(*verbose)

	paths := fs.Args()
	if len(paths) == 0 {
		fmt.Fprintln(os.Stderr, "rashc build: no input files")
		return 2
	}

	cfg := rashconfig.Default()
	if *configPath != "" {
		loaded, err := rashconfig.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "rashc: %v\n", err)
			return 2
		}
		cfg = loaded
	}
	// Only flags given explicitly override the loaded configuration.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "verify":
			cfg.VerifyMode = *verify
		case "strict":
			cfg.StrictMode = *strict
		}
	})

	results := make([][]byte, len(paths))
	srcs := make([]string, len(paths))
	errs := make([]error, len(paths))

	var g errgroup.Group
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			script, src, err := buildOne(path, *entry, cfg)
			srcs[i] = src
			if err != nil {
				errs[i] = err
				return nil
			}
			results[i] = script
			return nil
		})
	}
	_ = g.Wait()

	failed := false
	for i, path := range paths {
		if errs[i] != nil {
			reportCompileError(path, srcs[i], errs[i])
			failed = true
			continue
		}
		if err := emitOutput(path, *outDir, results[i], *diff); err != nil {
			fmt.Fprintf(os.Stderr, "rashc: %s: %v\n", path, err)
			failed = true
		}
	}
	if failed {
		return 1
	}
	return 0
}

func buildOne(path, entry string, cfg rashconfig.Config) ([]byte, string, error) {
	prog, src, err := compile(path, entry)
	if err != nil {
		return nil, src, err
	}
	mainIR, funcs, err := lower.Lower(prog)
	if err != nil {
		return nil, src, fmt.Errorf("lowering: %w", err)
	}
	script, err := posix.New(cfg).EmitProgram(funcs, mainIR)
	if err != nil {
		return nil, src, fmt.Errorf("emitting: %w", err)
	}
	return []byte(script), src, nil
}

// compile parses and validates path, the two steps "check" and "build"
// share; build additionally lowers and emits. It returns the raw source
// text alongside any error so reportCompileError can print the offending
// line even when the failure is a parse error.
func compile(path, entry string) (*restrict.Program, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	src := string(data)

	prog, err := source.ParseString(path, src, entry)
	if err != nil {
		return nil, src, err
	}
	if err := restrict.Validate(prog); err != nil {
		return nil, src, err
	}
	return prog, src, nil
}

// reportCompileError prints a caret-pointing diagnostic via
// internal/diagnostics, extracting the offending position from err when
// it is a participle parse error (the same type assertion kanso's own
// reportParseError performs).
func reportCompileError(path, src string, err error) {
	var pos lexer.Position
	var pe participle.Error
	if errors.As(err, &pe) {
		pos = pe.Position()
	}
	diagnostics.Report(os.Stderr, path, pos, src, err)
}

func outputPath(srcPath, outDir string) string {
	name := strings.TrimSuffix(filepath.Base(srcPath), filepath.Ext(srcPath)) + ".sh"
	if outDir == "" {
		return filepath.Join(filepath.Dir(srcPath), name)
	}
	return filepath.Join(outDir, name)
}

func emitOutput(srcPath, outDir string, script []byte, diff bool) error {
	dest := outputPath(srcPath, outDir)

	if diff {
		existing, err := os.ReadFile(dest)
		if err != nil && !os.IsNotExist(err) {
			return err
		}
		if bytes.Equal(existing, script) {
			return nil
		}
		d := diffpkg.Diff(dest+" (old)", existing, dest+" (new)", script)
		os.Stdout.Write(d)
		return fmt.Errorf("would reformat")
	}

	return maybeio.WriteFile(dest, script, 0o755)
}
