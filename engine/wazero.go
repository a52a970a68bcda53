package engine

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"

	pawnc "github.com/wippyai/wasm-pawnc"
	"github.com/wippyai/wasm-pawnc/errors"
)

// requiredFunctions are the exports every compiler module must provide.
var requiredFunctions = []string{
	pawnc.ExportCompile,
	pawnc.ExportRelease,
	pawnc.ExportMalloc,
	pawnc.ExportFree,
}

// WazeroEngine owns a wazero runtime shared by every module it loads.
type WazeroEngine struct {
	runtime      wazero.Runtime
	cache        wazero.CompilationCache
	wasiInitMu   sync.Mutex
	wasiInitDone atomic.Bool
}

// Config holds configuration for engine creation
type Config struct {
	// CacheDir enables wazero's on-disk compilation cache. Compiling the
	// compiler module is the slowest part of initialization; a warm cache
	// makes later process starts much faster.
	CacheDir string

	// MemoryLimitPages sets the maximum memory per instance in pages (64KB each).
	// 0 means default (65536 pages = 4GB).
	// 256 = 16MB, 1024 = 64MB, 4096 = 256MB
	MemoryLimitPages uint32
}

// NewWazeroEngine creates a new wazero-based engine
func NewWazeroEngine(ctx context.Context) (*WazeroEngine, error) {
	return NewWazeroEngineWithConfig(ctx, nil)
}

// NewWazeroEngineWithConfig creates a new engine with custom configuration
func NewWazeroEngineWithConfig(ctx context.Context, cfg *Config) (*WazeroEngine, error) {
	runtimeCfg := wazero.NewRuntimeConfig()

	var cache wazero.CompilationCache
	if cfg != nil {
		if cfg.MemoryLimitPages > 0 {
			runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
		}
		if cfg.CacheDir != "" {
			c, err := wazero.NewCompilationCacheWithDir(cfg.CacheDir)
			if err != nil {
				return nil, errors.Lifecycle("open compilation cache "+cfg.CacheDir, err)
			}
			cache = c
			runtimeCfg = runtimeCfg.WithCompilationCache(cache)
		}
	}

	runtime := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)
	return &WazeroEngine{runtime: runtime, cache: cache}, nil
}

// LoadModule compiles wasmBytes and checks that the compiler exports are
// present. Instances are created with WazeroModule.Instantiate.
func (e *WazeroEngine) LoadModule(ctx context.Context, wasmBytes []byte) (*WazeroModule, error) {
	if len(wasmBytes) == 0 {
		return nil, errors.InvalidInput(errors.PhaseLoad, "empty module bytes")
	}

	compiled, err := e.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, errors.Lifecycle("compile module", err)
	}

	exports := compiled.ExportedFunctions()
	for _, name := range requiredFunctions {
		if _, ok := exports[name]; !ok {
			_ = compiled.Close(ctx)
			return nil, errors.MissingExport(name)
		}
	}
	if len(compiled.ExportedMemories()) == 0 {
		_ = compiled.Close(ctx)
		return nil, errors.MissingExport("memory")
	}

	Logger().Debug("module compiled",
		zap.Int("size", len(wasmBytes)),
		zap.Int("exports", len(exports)))

	return &WazeroModule{
		engine:   e,
		compiled: compiled,
	}, nil
}

func (e *WazeroEngine) Close(ctx context.Context) error {
	err := e.runtime.Close(ctx)
	if e.cache != nil {
		if cerr := e.cache.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// InitWASI instantiates the WASI singleton for this engine's runtime.
// Safe for concurrent calls from multiple modules sharing the same engine.
func (e *WazeroEngine) InitWASI(ctx context.Context) error {
	if e.wasiInitDone.Load() {
		return nil
	}

	e.wasiInitMu.Lock()
	defer e.wasiInitMu.Unlock()

	if e.wasiInitDone.Load() {
		return nil
	}

	if e.runtime.Module(wasi_snapshot_preview1.ModuleName) != nil {
		e.wasiInitDone.Store(true)
		return nil
	}

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, e.runtime); err != nil {
		// If another path initialized WASI concurrently in the same runtime,
		// treat it as success and mark done.
		if e.runtime.Module(wasi_snapshot_preview1.ModuleName) == nil {
			return errors.Lifecycle("instantiate WASI", err)
		}
	}

	e.wasiInitDone.Store(true)
	return nil
}

// WazeroModule is a compiled compiler module
type WazeroModule struct {
	engine   *WazeroEngine
	compiled wazero.CompiledModule
}

// InstanceConfig holds configuration for module instantiation
type InstanceConfig struct {
	Stdout io.Writer
	Stderr io.Writer
	Name   string
	// FSDir is the host directory mounted as the guest's "/".
	FSDir string
}

// ExportNames returns the sorted names of all exported functions.
func (m *WazeroModule) ExportNames() []string {
	defs := m.compiled.ExportedFunctions()
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m *WazeroModule) Instantiate(ctx context.Context) (*WazeroInstance, error) {
	return m.InstantiateWithConfig(ctx, nil)
}

// InstantiateWithConfig creates an instance with custom configuration.
// WASI must already be initialized on the engine.
func (m *WazeroModule) InstantiateWithConfig(ctx context.Context, cfg *InstanceConfig) (*WazeroInstance, error) {
	if cfg == nil {
		cfg = &InstanceConfig{}
	}

	// Reactors expose _initialize; commands would run main from _start and
	// exit, so only the reactor entry point is honoured.
	modConfig := wazero.NewModuleConfig().
		WithName(cfg.Name).
		WithStartFunctions(pawnc.ExportInitialize)

	if cfg.FSDir != "" {
		modConfig = modConfig.WithFSConfig(wazero.NewFSConfig().WithDirMount(cfg.FSDir, "/"))
	}
	if cfg.Stdout != nil {
		modConfig = modConfig.WithStdout(cfg.Stdout)
	}
	if cfg.Stderr != nil {
		modConfig = modConfig.WithStderr(cfg.Stderr)
	}

	instance, err := m.engine.runtime.InstantiateModule(ctx, m.compiled, modConfig)
	if err != nil {
		return nil, errors.Lifecycle("instantiate module", err)
	}

	mem := instance.Memory()
	if mem == nil {
		_ = instance.Close(ctx)
		return nil, errors.MissingExport("memory")
	}

	inst := &WazeroInstance{
		instance:  instance,
		memory:    &WazeroMemory{mem: mem},
		compileFn: instance.ExportedFunction(pawnc.ExportCompile),
		releaseFn: instance.ExportedFunction(pawnc.ExportRelease),
		stackBuf:  make([]uint64, 2),
	}
	inst.alloc = &wazeroAllocator{
		allocFn:  instance.ExportedFunction(pawnc.ExportMalloc),
		freeFn:   instance.ExportedFunction(pawnc.ExportFree),
		memory:   inst.memory,
		stackBuf: make([]uint64, 1),
	}

	return inst, nil
}

// WazeroInstance is a running compiler module.
// It is not safe for concurrent use; callers serialize access.
type WazeroInstance struct {
	instance  api.Module
	compileFn api.Function
	releaseFn api.Function
	memory    *WazeroMemory
	alloc     *wazeroAllocator
	stackBuf  []uint64
}

// Memory returns the instance's linear memory.
func (i *WazeroInstance) Memory() *WazeroMemory {
	return i.memory
}

// MemorySize returns the current linear memory size in bytes, or 0 if no memory.
func (i *WazeroInstance) MemorySize() uint32 {
	if i.memory == nil {
		return 0
	}
	return i.memory.Size()
}

// Allocator returns the guest malloc/free pair bound to ctx.
func (i *WazeroInstance) Allocator(ctx context.Context) pawnc.Allocator {
	i.alloc.setContext(ctx)
	return i.alloc
}

// IsClosed reports whether the guest is gone, either through Close or
// because it called proc_exit.
func (i *WazeroInstance) IsClosed() bool {
	return i.instance == nil || i.instance.IsClosed()
}

// Call invokes an exported function by name.
func (i *WazeroInstance) Call(ctx context.Context, name string, params ...uint64) ([]uint64, error) {
	fn := i.instance.ExportedFunction(name)
	if fn == nil {
		return nil, errors.MissingExport(name)
	}
	results, err := fn.Call(ctx, params...)
	if err != nil {
		return nil, callError(name, err)
	}
	return results, nil
}

// Compile calls pawncl_compile with guest pointers to the NUL-terminated
// source and option strings and returns the result message pointer. The
// caller owns the result and must pass it to Release.
func (i *WazeroInstance) Compile(ctx context.Context, source, opts uint32) (uint32, error) {
	i.stackBuf[0] = uint64(source)
	i.stackBuf[1] = uint64(opts)
	if err := i.compileFn.CallWithStack(ctx, i.stackBuf[:2]); err != nil {
		return 0, callError(pawnc.ExportCompile, err)
	}
	return uint32(i.stackBuf[0]), nil
}

// Release returns a result message to the guest.
func (i *WazeroInstance) Release(ctx context.Context, ptr uint32) error {
	if ptr == 0 {
		return nil
	}
	i.stackBuf[0] = uint64(ptr)
	if err := i.releaseFn.CallWithStack(ctx, i.stackBuf[:1]); err != nil {
		return callError(pawnc.ExportRelease, err)
	}
	return nil
}

func (i *WazeroInstance) Close(ctx context.Context) error {
	var err error
	if i.instance != nil {
		err = i.instance.Close(ctx)
		i.instance = nil
	}
	i.memory = nil
	i.alloc = nil
	i.compileFn = nil
	i.releaseFn = nil
	return err
}

type wazeroAllocator struct {
	allocFn    api.Function
	freeFn     api.Function
	memory     *WazeroMemory
	currentCtx context.Context
	stackBuf   []uint64
	stackMutex sync.Mutex
}

func (a *wazeroAllocator) setContext(ctx context.Context) {
	a.stackMutex.Lock()
	defer a.stackMutex.Unlock()
	a.currentCtx = ctx
}

func (a *wazeroAllocator) ctx() context.Context {
	if a.currentCtx == nil {
		return context.Background()
	}
	return a.currentCtx
}

func (a *wazeroAllocator) Alloc(size uint32) (uint32, error) {
	a.stackMutex.Lock()
	defer a.stackMutex.Unlock()

	a.stackBuf[0] = uint64(size)
	if err := a.allocFn.CallWithStack(a.ctx(), a.stackBuf[:1]); err != nil {
		return 0, errors.AllocationFailed(size, callError(pawnc.ExportMalloc, err))
	}

	ptr := uint32(a.stackBuf[0])
	if ptr == 0 {
		return 0, errors.AllocationFailed(size, nil)
	}
	if uint64(ptr)+uint64(size) > uint64(a.memory.Size()) {
		return 0, errors.AllocationFailed(size, errors.OutOfBounds(ptr, size))
	}
	return ptr, nil
}

func (a *wazeroAllocator) Free(ptr uint32) {
	if ptr == 0 {
		return
	}

	a.stackMutex.Lock()
	defer a.stackMutex.Unlock()

	a.stackBuf[0] = uint64(ptr)
	if err := a.freeFn.CallWithStack(a.ctx(), a.stackBuf[:1]); err != nil {
		Logger().Warn("free failed",
			zap.Uint32("ptr", ptr),
			zap.Error(err))
	}
}

// WazeroMemory wraps wazero memory to implement pawnc.Memory
type WazeroMemory struct {
	mem api.Memory
}

func (m *WazeroMemory) Read(offset uint32, length uint32) ([]byte, error) {
	data, ok := m.mem.Read(offset, length)
	if !ok {
		return nil, errors.OutOfBounds(offset, length)
	}
	return data, nil
}

func (m *WazeroMemory) Write(offset uint32, data []byte) error {
	if !m.mem.Write(offset, data) {
		return errors.OutOfBounds(offset, uint32(len(data)))
	}
	return nil
}

// ReadCString copies the NUL-terminated string at offset. The result never
// aliases guest memory.
func (m *WazeroMemory) ReadCString(offset uint32) (string, error) {
	size := m.Size()
	if offset >= size {
		return "", errors.OutOfBounds(offset, 1)
	}

	view, ok := m.mem.Read(offset, size-offset)
	if !ok {
		return "", errors.OutOfBounds(offset, size-offset)
	}
	for n, b := range view {
		if b == 0 {
			return string(view[:n]), nil
		}
	}
	return "", errors.New(errors.PhaseInvoke, errors.KindOutOfBounds).
		Value(offset).
		Detail("unterminated string at offset %d", offset).
		Build()
}

func (m *WazeroMemory) Size() uint32 {
	if m.mem == nil {
		return 0
	}
	return m.mem.Size()
}

// Compile-time check that WazeroMemory implements pawnc.Memory and MemorySizer
var _ pawnc.Memory = (*WazeroMemory)(nil)
var _ pawnc.MemorySizer = (*WazeroMemory)(nil)

// Compile-time check that wazeroAllocator implements pawnc.Allocator
var _ pawnc.Allocator = (*wazeroAllocator)(nil)

// formatExit is shared by log lines and error details.
func formatExit(name string, code uint32) string {
	return fmt.Sprintf("%s called proc_exit(%d)", name, code)
}
