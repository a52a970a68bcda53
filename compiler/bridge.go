package compiler

import (
	"context"
	stderrors "errors"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	pawnc "github.com/wippyai/wasm-pawnc"
	"github.com/wippyai/wasm-pawnc/diag"
	"github.com/wippyai/wasm-pawnc/engine"
	"github.com/wippyai/wasm-pawnc/errors"
	"github.com/wippyai/wasm-pawnc/options"
)

// Compile compiles source with opts and returns the parsed result.
//
// Every outcome of the compilation itself, including invalid options and
// failures inside the module, is reported through the Result. The error is
// non-nil only when the Compiler is not ready or ctx is done.
//
// Calls are serialized; a second Compile starts only after the first has
// finished reading its result. The artifact is read before the lock is
// released, so Result.Artifact always belongs to this call.
func (c *Compiler) Compile(ctx context.Context, source string, opts options.Options) (diag.Result, error) {
	if err := c.requireReady(errors.PhaseInvoke); err != nil {
		return diag.Result{}, err
	}

	c.compileMu.Lock()
	defer c.compileMu.Unlock()

	if err := ctx.Err(); err != nil {
		return diag.Result{}, err
	}
	if c.module == nil {
		return diag.Result{}, errors.NotInitialized(errors.PhaseInvoke, "compiler")
	}

	start := time.Now()

	if err := options.Validate(opts); err != nil {
		c.log.Warn("compile rejected", zap.Error(err))
		return diag.Failure(err.Error()), nil
	}
	flags := options.String(opts, c.store.Root())

	raw, artifact, err := c.invoke(ctx, source, flags)
	if err != nil {
		c.log.Warn("compile failed at module boundary",
			zap.String("flags", flags),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return diag.Failure(err.Error()), nil
	}

	res := diag.Parse(raw)
	res.Artifact = artifact
	fields := []zap.Field{
		zap.Bool("success", res.Success),
		zap.Int("errors", len(res.Errors)),
		zap.Int("warnings", len(res.Warnings)),
		zap.String("flags", flags),
		zap.Duration("elapsed", time.Since(start)),
	}
	if res.ArtifactSize != nil {
		fields = append(fields, zap.Int64("artifact_size", *res.ArtifactSize))
	}
	c.log.Info("compile finished", fields...)
	return res, nil
}

// invoke runs one compile inside the module and returns the captured guest
// output followed by the result message, plus the artifact it wrote. The
// caller holds compileMu.
func (c *Compiler) invoke(ctx context.Context, source, flags string) (string, []byte, error) {
	// A failed compile must not leave the previous artifact behind.
	if err := c.store.Remove(pawnc.OutputPath); err != nil {
		return "", nil, err
	}

	inst, err := c.ensureInstance(ctx)
	if err != nil {
		return "", nil, err
	}

	alloc := inst.Allocator(ctx)
	mem := inst.Memory()
	free := func(ptr uint32) {
		if !inst.IsClosed() {
			alloc.Free(ptr)
		}
	}

	src, err := engine.WriteCString(alloc, mem, source)
	if err != nil {
		return "", nil, err
	}
	defer free(src)

	opt, err := engine.WriteCString(alloc, mem, flags)
	if err != nil {
		return "", nil, err
	}
	defer free(opt)

	c.output.Start()
	ptr, err := inst.Compile(ctx, src, opt)
	captured := c.output.Stop()
	if err != nil {
		if captured != "" {
			c.log.Debug("module output before failure", zap.String("output", captured))
		}
		// A trap unwinds without restoring the guest stack pointer or heap
		// bookkeeping, so neither a trapped nor an exited instance is reused.
		c.discardInstance(ctx, err)
		return "", nil, err
	}
	if ptr == 0 {
		return "", nil, errors.Invocation(errors.KindInvalidInput, pawnc.ExportCompile+" returned a null result", nil)
	}
	defer func() {
		if err := inst.Release(ctx, ptr); err != nil {
			c.log.Warn("release result failed", zap.Uint32("ptr", ptr), zap.Error(err))
		}
	}()

	msg, err := mem.ReadCString(ptr)
	if err != nil {
		return "", nil, err
	}

	artifact, err := c.store.ReadFile(pawnc.OutputPath)
	if err != nil {
		if !stderrors.Is(err, os.ErrNotExist) {
			return "", nil, err
		}
		artifact = nil
	}

	if captured != "" && !strings.HasSuffix(captured, "\n") {
		captured += "\n"
	}
	return captured + msg, artifact, nil
}

// ensureInstance returns the running instance, creating a new one from the
// compiled module if the previous one exited.
func (c *Compiler) ensureInstance(ctx context.Context) (*engine.WazeroInstance, error) {
	if c.instance != nil && !c.instance.IsClosed() {
		return c.instance, nil
	}

	inst, err := c.module.InstantiateWithConfig(ctx, c.instanceConfig(c.output))
	if err != nil {
		return nil, err
	}
	c.instance = inst
	c.log.Info("compiler instance recreated")
	return inst, nil
}

func (c *Compiler) discardInstance(ctx context.Context, cause error) {
	if c.instance == nil {
		return
	}
	_ = c.instance.Close(ctx)
	c.instance = nil
	c.log.Warn("compiler instance discarded",
		zap.Bool("exit", engine.IsExit(cause)),
		zap.Error(cause))
}
