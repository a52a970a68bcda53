package compiler

import (
	"context"
	stderrors "errors"
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-pawnc/engine"
	"github.com/wippyai/wasm-pawnc/errors"
)

// State reports the lifecycle state.
func (c *Compiler) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Initialize loads the compiler module. It returns immediately once the
// Compiler is ready. If a load is already running the caller waits for it
// and gets the same result; if ctx ends first it returns ctx.Err() and the
// load carries on. A failed load leaves the Compiler uninitialized so a
// later call retries.
func (c *Compiler) Initialize(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errors.Closed("compiler")
	}

	switch c.state {
	case StateReady:
		c.mu.Unlock()
		return nil
	case StateInitializing:
		done := make(chan error, 1)
		c.waiters = append(c.waiters, done)
		c.mu.Unlock()

		select {
		case err := <-done:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	c.state = StateInitializing
	c.mu.Unlock()

	start := time.Now()
	rt, err := c.loadFn(ctx)
	if err == nil {
		err = c.install(ctx, rt)
	}

	c.mu.Lock()
	if err == nil && c.closed {
		// Close already released what install published
		err = errors.Closed("compiler")
	}
	if err != nil {
		c.state = StateUninitialized
	} else {
		c.state = StateReady
	}
	waiters := c.waiters
	c.waiters = nil
	c.mu.Unlock()

	// Buffered channels: a waiter that gave up on its context never blocks
	// the others.
	for _, done := range waiters {
		done <- err
	}

	if err != nil {
		c.log.Warn("compiler initialization failed",
			zap.Int("waiters", len(waiters)),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return err
	}

	c.log.Info("compiler initialized",
		zap.Int("waiters", len(waiters)),
		zap.Duration("elapsed", time.Since(start)),
		zap.String("workdir", c.workDir))
	return nil
}

// loaded is what a successful load hands to install.
type loaded struct {
	engine   *engine.WazeroEngine
	module   *engine.WazeroModule
	instance *engine.WazeroInstance
	output   *engine.Capture
}

func (l *loaded) close(ctx context.Context) {
	if l == nil {
		return
	}
	if l.instance != nil {
		_ = l.instance.Close(ctx)
	}
	if l.engine != nil {
		_ = l.engine.Close(ctx)
	}
}

// install publishes a loaded runtime under compileMu, or releases it when
// Close ran while the load was in flight.
func (c *Compiler) install(ctx context.Context, rt *loaded) error {
	c.compileMu.Lock()
	defer c.compileMu.Unlock()

	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()

	if closed {
		rt.close(ctx)
		return errors.Closed("compiler")
	}
	if rt == nil {
		return nil
	}

	c.engine = rt.engine
	c.module = rt.module
	c.instance = rt.instance
	c.output = rt.output
	return nil
}

// load creates the runtime, instantiates the module and prepares the include
// root. On failure everything created so far is released. It touches no
// Compiler fields guarded by compileMu.
func (c *Compiler) load(ctx context.Context) (_ *loaded, err error) {
	eng, err := engine.NewWazeroEngineWithConfig(ctx, c.engCfg)
	if err != nil {
		return nil, lifecycleError("create engine", err)
	}
	defer func() {
		if err != nil {
			_ = eng.Close(ctx)
		}
	}()

	if err := eng.InitWASI(ctx); err != nil {
		return nil, lifecycleError("init WASI", err)
	}

	mod, err := eng.LoadModule(ctx, c.wasm)
	if err != nil {
		return nil, lifecycleError("load module", err)
	}

	output := engine.NewCapture(nil)
	inst, err := mod.InstantiateWithConfig(ctx, c.instanceConfig(output))
	if err != nil {
		return nil, lifecycleError("instantiate module", err)
	}

	if err := c.store.EnsureRoot(); err != nil {
		_ = inst.Close(ctx)
		return nil, lifecycleError("create include root", err)
	}

	return &loaded{engine: eng, module: mod, instance: inst, output: output}, nil
}

func (c *Compiler) instanceConfig(output *engine.Capture) *engine.InstanceConfig {
	return &engine.InstanceConfig{
		FSDir:  c.workDir,
		Stdout: output,
		Stderr: output,
	}
}

// lifecycleError keeps load-phase errors from lower layers as they are and
// wraps anything else.
func lifecycleError(detail string, err error) error {
	var perr *errors.Error
	if stderrors.As(err, &perr) && perr.Phase == errors.PhaseLoad {
		return err
	}
	return errors.Lifecycle(detail, err)
}
