package compiler

import (
	"context"
	"os"
	"sync"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	pawnc "github.com/wippyai/wasm-pawnc"
	"github.com/wippyai/wasm-pawnc/engine"
	"github.com/wippyai/wasm-pawnc/errors"
	"github.com/wippyai/wasm-pawnc/vfs"
)

// Compiler hosts one compiler module instance. It is safe for concurrent use.
type Compiler struct {
	log     *zap.Logger
	store   *vfs.Store
	fetcher *vfs.Fetcher

	// guarded by compileMu
	engine   *engine.WazeroEngine
	module   *engine.WazeroModule
	instance *engine.WazeroInstance
	output   *engine.Capture

	loadFn  func(ctx context.Context) (*loaded, error)
	workDir string
	wasm    []byte
	engCfg  *engine.Config
	waiters []chan error

	mu        sync.Mutex
	compileMu sync.Mutex
	state     State
	ownsDir   bool
	closed    bool
}

// New creates an uninitialized Compiler. Call Initialize before use.
func New(cfg Config) (*Compiler, error) {
	if len(cfg.WASM) == 0 {
		return nil, errors.InvalidInput(errors.PhaseLoad, "no compiler module bytes")
	}

	log := cfg.Logger
	if log == nil {
		log = Logger()
	}

	workDir := cfg.WorkDir
	ownsDir := false
	if workDir == "" {
		dir, err := os.MkdirTemp("", "pawnc-*")
		if err != nil {
			return nil, errors.Filesystem("mkdtemp", os.TempDir(), err)
		}
		workDir = dir
		ownsDir = true
	} else if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, errors.Filesystem("mkdir", workDir, err)
	}

	store := vfs.NewDirStore(workDir, pawnc.IncludeRoot).WithLogger(log)

	c := &Compiler{
		log:     log,
		store:   store,
		workDir: workDir,
		ownsDir: ownsDir,
		wasm:    cfg.WASM,
		engCfg:  cfg.Engine,
		fetcher: vfs.NewFetcher(store, &vfs.FetchConfig{
			HTTPClient:   cfg.HTTPClient,
			Logger:       log,
			Concurrency:  cfg.FetchConcurrency,
			Retries:      cfg.FetchRetries,
			RetryWaitMin: cfg.FetchRetryWait,
		}),
	}
	c.loadFn = c.load
	return c, nil
}

// WorkDir returns the host directory mounted as the module's root.
func (c *Compiler) WorkDir() string {
	return c.workDir
}

// AddInclude stages content at name beneath the include root, replacing any
// existing file. Staging while a Compile runs is allowed but which version
// that compile reads is undefined.
func (c *Compiler) AddInclude(name string, content []byte) error {
	if err := c.requireReady(errors.PhaseFilesystem); err != nil {
		return err
	}
	return c.store.AddInclude(name, content)
}

// AddIncludes stages list in order and stops at the first failure. Entries
// staged before the failure are kept.
func (c *Compiler) AddIncludes(list []vfs.Include) error {
	if err := c.requireReady(errors.PhaseFilesystem); err != nil {
		return err
	}
	return c.store.AddIncludes(list)
}

// FetchIncludes downloads names relative to baseURL and stages each one as
// soon as it arrives. A failed download does not stop the others; if any
// failed the error is an *errors.PartialFetchError.
func (c *Compiler) FetchIncludes(ctx context.Context, baseURL string, names []string) error {
	if err := c.requireReady(errors.PhaseFetch); err != nil {
		return err
	}
	return c.fetcher.FetchIncludes(ctx, baseURL, names)
}

// Close releases the runtime and, when it was created by New, the work
// directory. The Compiler cannot be used afterwards.
func (c *Compiler) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.state = StateUninitialized
	c.mu.Unlock()

	c.compileMu.Lock()
	defer c.compileMu.Unlock()

	var merr *multierror.Error
	if err := c.release(ctx); err != nil {
		merr = multierror.Append(merr, err)
	}
	if c.ownsDir {
		if err := os.RemoveAll(c.workDir); err != nil {
			merr = multierror.Append(merr, errors.Filesystem("remove", c.workDir, err))
		}
	}

	c.log.Debug("compiler closed", zap.String("workdir", c.workDir))
	return merr.ErrorOrNil()
}

// release tears down the runtime. The caller holds compileMu.
func (c *Compiler) release(ctx context.Context) error {
	var err error
	if c.instance != nil {
		_ = c.instance.Close(ctx)
		c.instance = nil
	}
	if c.engine != nil {
		err = c.engine.Close(ctx)
		c.engine = nil
	}
	c.module = nil
	return err
}

func (c *Compiler) requireReady(phase errors.Phase) error {
	if c.State() != StateReady {
		return errors.NotInitialized(phase, "compiler")
	}
	return nil
}
