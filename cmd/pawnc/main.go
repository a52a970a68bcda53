package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/wasm-pawnc/compiler"
	"github.com/wippyai/wasm-pawnc/diag"
	"github.com/wippyai/wasm-pawnc/engine"
	"github.com/wippyai/wasm-pawnc/options"
	"github.com/wippyai/wasm-pawnc/vfs"
)

const (
	exitOK = iota
	exitCompileFailed
	exitUsage
)

type cliConfig struct {
	wasmFile    string
	source      string
	output      string
	includeDir  string
	flags       string
	defines     string
	warnings    string
	fetchURL    string
	fetchFiles  string
	cacheDir    string
	optimize    int
	debug       int
	memPages    uint
	verbose     bool
	interactive bool
}

func main() {
	var cfg cliConfig
	flag.StringVar(&cfg.wasmFile, "wasm", "", "Path to the compiler wasm module")
	flag.StringVar(&cfg.output, "o", "", "Write the AMX artifact here (default: <source>.amx)")
	flag.StringVar(&cfg.includeDir, "I", "", "Directory of include files to stage")
	flag.IntVar(&cfg.optimize, "O", -1, "Optimization level 0-3")
	flag.IntVar(&cfg.debug, "d", -1, "Debug level 0-3")
	flag.StringVar(&cfg.flags, "flags", "", "Extra compiler flags, shell quoted (\"-Z+ -;+\")")
	flag.StringVar(&cfg.defines, "D", "", "Definitions (NAME=VALUE,NAME2)")
	flag.StringVar(&cfg.warnings, "w", "", "Disabled warnings (203,204)")
	flag.StringVar(&cfg.fetchURL, "fetch", "", "Base URL to download includes from")
	flag.StringVar(&cfg.fetchFiles, "fetch-files", "", "Includes to download (a_samp.inc,sscanf2.inc)")
	flag.StringVar(&cfg.cacheDir, "cache", "", "Compilation cache directory")
	flag.UintVar(&cfg.memPages, "mem", 0, "Memory limit in 64KiB pages (0 = runtime default)")
	flag.BoolVar(&cfg.verbose, "v", false, "Verbose logging")
	flag.BoolVar(&cfg.interactive, "i", false, "Interactive mode with TUI")
	flag.Parse()

	if cfg.wasmFile == "" || flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: pawnc -wasm <pawncc.wasm> [-I dir] [-O n] [-d n] [-flags \"...\"] [-o out.amx] <file.pwn>")
		fmt.Fprintln(os.Stderr, "       pawnc -wasm <pawncc.wasm> -fetch <url> -fetch-files a.inc,b.inc <file.pwn>")
		fmt.Fprintln(os.Stderr, "       pawnc -wasm <pawncc.wasm> -i <file.pwn>  (interactive mode)")
		os.Exit(exitUsage)
	}
	cfg.source = flag.Arg(0)
	if cfg.output == "" {
		cfg.output = strings.TrimSuffix(cfg.source, filepath.Ext(cfg.source)) + ".amx"
	}

	code, err := run(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitUsage)
	}
	os.Exit(code)
}

func run(cfg cliConfig) (int, error) {
	ctx := context.Background()

	log := zap.NewNop()
	if cfg.verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			return exitUsage, fmt.Errorf("create logger: %w", err)
		}
		log = l
		defer log.Sync()
		engine.SetLogger(log)
		vfs.SetLogger(log)
	}

	opts, err := buildOptions(cfg)
	if err != nil {
		return exitUsage, err
	}

	wasm, err := os.ReadFile(cfg.wasmFile)
	if err != nil {
		return exitUsage, fmt.Errorf("read module: %w", err)
	}

	engCfg := &engine.Config{CacheDir: cfg.cacheDir, MemoryLimitPages: uint32(cfg.memPages)}
	c, err := compiler.New(compiler.Config{WASM: wasm, Engine: engCfg, Logger: log})
	if err != nil {
		return exitUsage, err
	}
	defer c.Close(ctx)

	if err := c.Initialize(ctx); err != nil {
		return exitUsage, fmt.Errorf("initialize compiler: %w", err)
	}

	if err := stageIncludes(ctx, c, cfg); err != nil {
		return exitUsage, err
	}

	tty := term.IsTerminal(int(os.Stdout.Fd()))

	if cfg.interactive {
		if !tty {
			return exitUsage, fmt.Errorf("interactive mode needs a terminal")
		}
		return exitOK, runInteractive(c, cfg, opts)
	}

	res, err := compileFile(ctx, c, cfg.source, opts)
	if err != nil {
		return exitUsage, err
	}

	p := newPrinter(os.Stdout, !tty)
	p.result(res)

	if !res.Success {
		return exitCompileFailed, nil
	}

	size, err := writeArtifact(res, cfg.output)
	if err != nil {
		return exitUsage, err
	}
	p.artifact(cfg.output, size)

	if err := c.Cleanup(); err != nil {
		return exitUsage, err
	}
	return exitOK, nil
}

func buildOptions(cfg cliConfig) (options.Options, error) {
	var opts options.Options
	if cfg.optimize >= 0 {
		opts.Optimization = options.Level(cfg.optimize)
	}
	if cfg.debug >= 0 {
		opts.Debug = options.Level(cfg.debug)
	}

	flags, err := options.ParseFlags(cfg.flags)
	if err != nil {
		return opts, err
	}
	opts.Flags = flags

	for _, w := range splitList(cfg.warnings) {
		n, err := strconv.Atoi(w)
		if err != nil {
			return opts, fmt.Errorf("invalid warning number %q", w)
		}
		opts.DisabledWarnings = append(opts.DisabledWarnings, n)
	}

	for _, d := range splitList(cfg.defines) {
		name, value, _ := strings.Cut(d, "=")
		opts.Defines = append(opts.Defines, options.Define{Name: name, Value: value})
	}

	return opts, options.Validate(opts)
}

// stageIncludes copies the -I tree into the compiler and downloads -fetch
// includes. A partial download is reported but does not stop the build; the
// compiler will name any include that is still missing.
func stageIncludes(ctx context.Context, c *compiler.Compiler, cfg cliConfig) error {
	if cfg.includeDir != "" {
		var list []vfs.Include
		err := filepath.WalkDir(cfg.includeDir, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			rel, err := filepath.Rel(cfg.includeDir, path)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			list = append(list, vfs.Include{Path: filepath.ToSlash(rel), Content: data})
			return nil
		})
		if err != nil {
			return fmt.Errorf("read includes: %w", err)
		}
		if err := c.AddIncludes(list); err != nil {
			return err
		}
	}

	if cfg.fetchURL != "" {
		if err := c.FetchIncludes(ctx, cfg.fetchURL, splitList(cfg.fetchFiles)); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}
	return nil
}

func compileFile(ctx context.Context, c *compiler.Compiler, path string, opts options.Options) (diag.Result, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return diag.Result{}, fmt.Errorf("read source: %w", err)
	}
	return c.Compile(ctx, string(src), opts)
}

func writeArtifact(res diag.Result, path string) (int, error) {
	data := res.Artifact
	if data == nil {
		return 0, fmt.Errorf("compiler reported success but produced no artifact")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return 0, fmt.Errorf("write artifact: %w", err)
	}
	return len(data), nil
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func formatSize(n int) string {
	return humanize.Bytes(uint64(n))
}
