// Package engine runs the compiler module on wazero.
//
// The compiler is a core WebAssembly module built as a WASI preview1 reactor.
// It exports a C ABI (pawncl_compile, pawncl_free, malloc, free) and a single
// linear memory. This package loads it, instantiates it with a host directory
// mounted as its root filesystem, and exposes typed calls plus guest memory
// access.
//
// # Architecture
//
//	WazeroEngine   - wazero runtime, optional on-disk compilation cache, WASI
//	WazeroModule   - a compiled compiler module with its exports verified
//	WazeroInstance - a running instance with memory, allocator and entry points
//
// # Instantiation Flow
//
//  1. WazeroEngine.InitWASI() instantiates wasi_snapshot_preview1 once
//  2. WazeroEngine.LoadModule() compiles the bytes and checks required exports
//  3. WazeroModule.InstantiateWithConfig() mounts the filesystem, wires stdio
//     and runs _initialize if present
//  4. WazeroInstance.Compile()/Release() cross the boundary
//
// # Strings
//
// Strings cross the boundary as NUL-terminated byte sequences. WriteCString
// allocates a guest copy through malloc; WazeroMemory.ReadCString copies a
// guest string out. Host code never keeps a slice that aliases guest memory.
//
// # Failures
//
// A trap or a call to proc_exit inside the guest returns an *errors.Error in
// PhaseInvoke with KindTrap or KindExit. After proc_exit the instance is
// closed (IsClosed reports true); a new instance can be created from the same
// WazeroModule and sees the same mounted directory.
//
// # Thread Safety
//
// WazeroEngine and WazeroModule are safe for concurrent use.
// WazeroInstance is NOT thread-safe and should be used by a single goroutine.
package engine
