package testbed_test

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/wippyai/wasm-pawnc/compiler"
	"github.com/wippyai/wasm-pawnc/engine"
	"github.com/wippyai/wasm-pawnc/errors"
	"github.com/wippyai/wasm-pawnc/options"
	"github.com/wippyai/wasm-pawnc/testbed"
	"github.com/wippyai/wasm-pawnc/vfs"
)

func newCompiler(t testing.TB, cfg compiler.Config) *compiler.Compiler {
	t.Helper()
	ctx := context.Background()

	cfg.WASM = testbed.FakeCompiler
	c, err := compiler.New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { c.Close(ctx) })

	if err := c.Initialize(ctx); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return c
}

func TestEndToEnd_StageCompileCollect(t *testing.T) {
	ctx := context.Background()
	c := newCompiler(t, compiler.Config{})

	err := c.AddIncludes([]vfs.Include{
		{Path: "a_samp.inc", Content: []byte("native print(const string[]);")},
		{Path: "YSI/y_va.inc", Content: []byte("#define va_args<%0> %0")},
	})
	if err != nil {
		t.Fatalf("AddIncludes: %v", err)
	}

	res, err := c.Compile(ctx, testbed.SourceOK, options.Options{
		Optimization: options.Level(2),
		Debug:        options.Level(3),
		Flags:        []string{"-Z+"},
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !res.Success {
		t.Fatalf("compile failed:\n%s", res.Output)
	}
	if res.ArtifactSize == nil || *res.ArtifactSize != 8 {
		t.Errorf("ArtifactSize = %v", res.ArtifactSize)
	}
	if string(res.Artifact) != testbed.FakeArtifact {
		t.Errorf("res.Artifact = %q", res.Artifact)
	}

	amx, ok, err := c.Artifact()
	if err != nil || !ok || string(amx) != testbed.FakeArtifact {
		t.Fatalf("Artifact = %q, %v, %v", amx, ok, err)
	}

	if err := c.Cleanup(); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if _, ok, _ := c.Artifact(); ok {
		t.Error("artifact survived cleanup")
	}
}

func TestEndToEnd_FetchIncludes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/pawn/a_samp.inc":
			_, _ = w.Write([]byte("native print(const string[]);"))
		case "/pawn/sscanf2.inc":
			_, _ = w.Write([]byte("native sscanf(const data[], const format[], {Float,_}:...);"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := newCompiler(t, compiler.Config{FetchRetries: 1, FetchRetryWait: time.Millisecond})

	err := c.FetchIncludes(context.Background(), srv.URL+"/pawn", []string{"a_samp.inc", "missing.inc", "sscanf2.inc"})

	var perr *errors.PartialFetchError
	if !stderrors.As(err, &perr) {
		t.Fatalf("FetchIncludes = %v, want partial failure", err)
	}
	if perr.Failed() != 1 || perr.Total != 3 {
		t.Errorf("failed %d of %d, want 1 of 3", perr.Failed(), perr.Total)
	}
	if perr.Failures[0].Name != "missing.inc" {
		t.Errorf("failure = %+v", perr.Failures[0])
	}

	res, err := c.Compile(context.Background(), testbed.SourceOK, options.Options{})
	if err != nil || !res.Success {
		t.Errorf("compile after partial fetch: %v, %+v", err, res)
	}
}

func TestEndToEnd_FailuresNeverEscapeAsErrors(t *testing.T) {
	c := newCompiler(t, compiler.Config{})
	ctx := context.Background()

	sources := []string{testbed.SourceError, testbed.SourceTrap, testbed.SourceExit, testbed.SourceWarning, testbed.SourceOK}
	for _, src := range sources {
		res, err := c.Compile(ctx, src, options.Options{})
		if err != nil {
			t.Errorf("Compile(%q) returned error %v", src, err)
			continue
		}
		wantSuccess := src == testbed.SourceOK || src == testbed.SourceWarning
		if res.Success != wantSuccess {
			t.Errorf("Compile(%q) Success = %v, want %v\n%s", src, res.Success, wantSuccess, res.Output)
		}
		if !res.Success && len(res.Errors) == 0 {
			t.Errorf("Compile(%q) failed without errors", src)
		}
	}
}

func TestEndToEnd_LargeSourceAllocationFailure(t *testing.T) {
	c := newCompiler(t, compiler.Config{})

	// larger than the fake module's fixed memory
	src := "main() {}" + strings.Repeat(" ", 300*1024)
	res, err := c.Compile(context.Background(), src, options.Options{})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if res.Success || !strings.Contains(res.Output, "allocat") {
		t.Errorf("result = %q, want allocation failure", res.Output)
	}
}

func TestEndToEnd_CompilationCache(t *testing.T) {
	cacheDir := t.TempDir()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		c, err := compiler.New(compiler.Config{
			WASM:   testbed.FakeCompiler,
			Engine: &engine.Config{CacheDir: cacheDir, MemoryLimitPages: 16},
		})
		if err != nil {
			t.Fatal(err)
		}
		if err := c.Initialize(ctx); err != nil {
			t.Fatalf("run %d: Initialize: %v", i, err)
		}
		res, err := c.Compile(ctx, testbed.SourceOK, options.Options{})
		if err != nil || !res.Success {
			t.Errorf("run %d: %v, %+v", i, err, res)
		}
		if err := c.Close(ctx); err != nil {
			t.Errorf("run %d: Close: %v", i, err)
		}
	}
}

func BenchmarkCompile(b *testing.B) {
	ctx := context.Background()
	opts := options.Options{Optimization: options.Level(2)}
	c := newCompiler(b, compiler.Config{})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		// the fake module never reclaims heap; start over before it runs out
		if i > 0 && i%1000 == 0 {
			b.StopTimer()
			c = newCompiler(b, compiler.Config{})
			b.StartTimer()
		}
		res, err := c.Compile(ctx, testbed.SourceOK, opts)
		if err != nil || !res.Success {
			b.Fatalf("compile: %v %s", err, res.Output)
		}
	}
}
