package vfs

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wippyai/wasm-pawnc/errors"
)

func newIncludeServer(t *testing.T, files map[string]string, flaky *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, "/inc/")
		if name == "flaky.inc" && flaky.Add(1) == 1 {
			http.Error(w, "try again", http.StatusServiceUnavailable)
			return
		}
		body, ok := files[name]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testFetchConfig() *FetchConfig {
	return &FetchConfig{
		Retries:      2,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: 5 * time.Millisecond,
	}
}

func TestFetcher_FetchIncludes(t *testing.T) {
	var flaky atomic.Int32
	srv := newIncludeServer(t, map[string]string{
		"a_samp.inc":    "native SendClientMessage();",
		"sub/float.inc": "native Float:floatsqroot(Float:value);",
		"flaky.inc":     "stock ok() {}",
	}, &flaky)

	s := newTestStore(t)
	f := NewFetcher(s, testFetchConfig())

	err := f.FetchIncludes(context.Background(), srv.URL+"/inc", []string{"a_samp.inc", "sub/float.inc", "flaky.inc"})
	if err != nil {
		t.Fatalf("FetchIncludes: %v", err)
	}

	got, err := s.ReadFile("/include/sub/float.inc")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "native Float:floatsqroot(Float:value);" {
		t.Errorf("content = %q", got)
	}
	if flaky.Load() < 2 {
		t.Errorf("flaky.inc requested %d times, want a retry", flaky.Load())
	}
}

func TestFetcher_PartialFailure(t *testing.T) {
	var flaky atomic.Int32
	srv := newIncludeServer(t, map[string]string{
		"ok1.inc": "1",
		"ok2.inc": "2",
	}, &flaky)

	s := newTestStore(t)
	f := NewFetcher(s, testFetchConfig())

	names := []string{"missing1.inc", "ok1.inc", "../escape.inc", "ok2.inc"}
	err := f.FetchIncludes(context.Background(), srv.URL+"/inc", names)

	var perr *errors.PartialFetchError
	if !stderrors.As(err, &perr) {
		t.Fatalf("error = %v, want *PartialFetchError", err)
	}
	if perr.Failed() != 2 || perr.Total != 4 {
		t.Errorf("Failed()=%d Total=%d, want 2 of 4", perr.Failed(), perr.Total)
	}
	if perr.Failures[0].Name != "missing1.inc" || perr.Failures[1].Name != "../escape.inc" {
		t.Errorf("failures out of order: %+v", perr.Failures)
	}
	if !strings.Contains(perr.Failures[0].Cause.Error(), "404") {
		t.Errorf("cause = %v, want status", perr.Failures[0].Cause)
	}

	for _, p := range []string{"/include/ok1.inc", "/include/ok2.inc"} {
		if ok, _ := s.Exists(p); !ok {
			t.Errorf("%s should be staged despite other failures", p)
		}
	}
}

func TestFetcher_Empty(t *testing.T) {
	f := NewFetcher(newTestStore(t), nil)
	if err := f.FetchIncludes(context.Background(), "http://127.0.0.1:0", nil); err != nil {
		t.Errorf("FetchIncludes(nil) = %v", err)
	}
}

func TestFetcher_CanceledContext(t *testing.T) {
	var flaky atomic.Int32
	srv := newIncludeServer(t, map[string]string{"a.inc": "a"}, &flaky)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := NewFetcher(newTestStore(t), testFetchConfig())
	err := f.FetchIncludes(ctx, srv.URL+"/inc", []string{"a.inc"})

	var perr *errors.PartialFetchError
	if !stderrors.As(err, &perr) || perr.Failed() != 1 {
		t.Fatalf("error = %v, want one failure", err)
	}
	if !stderrors.Is(err, context.Canceled) {
		t.Errorf("error should wrap context.Canceled: %v", err)
	}
}

func TestFetcher_Logging(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	prev := Logger()
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(prev) })

	var flaky atomic.Int32
	srv := newIncludeServer(t, map[string]string{"a.inc": "a"}, &flaky)

	f := NewFetcher(newTestStore(t), testFetchConfig())
	if err := f.FetchIncludes(context.Background(), srv.URL+"/inc", []string{"a.inc"}); err != nil {
		t.Fatal(err)
	}

	entries := logs.FilterMessage("includes fetched").All()
	if len(entries) != 1 {
		t.Fatalf("got %d fetch log entries, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["total"] != int64(1) || fields["failed"] != int64(0) {
		t.Errorf("fields = %v", fields)
	}
	if logs.FilterMessage("include staged").Len() != 1 {
		t.Error("expected one staged entry")
	}
}

func TestFetcher_ConfigLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := zap.New(core)

	var flaky atomic.Int32
	srv := newIncludeServer(t, map[string]string{"a.inc": "a"}, &flaky)

	cfg := testFetchConfig()
	cfg.Logger = log
	f := NewFetcher(newTestStore(t).WithLogger(log), cfg)
	if err := f.FetchIncludes(context.Background(), srv.URL+"/inc", []string{"a.inc", "flaky.inc"}); err == nil {
		t.Fatal("expected flaky.inc to be missing after its retry")
	}

	if logs.FilterMessage("includes fetched").Len() != 1 {
		t.Error("fetch summary should go to the configured logger")
	}
	if logs.FilterMessage("include staged").Len() != 1 {
		t.Error("staging should go to the store's logger")
	}
	if logs.FilterLevelExact(zapcore.DebugLevel).Len() < 3 {
		t.Errorf("retry client logs missing, got %d entries", logs.Len())
	}
}
