// Package compiler is the host-facing API of the Pawn compiler module.
//
// A Compiler owns one wazero runtime, one compiled module, one instance and
// one private directory that the instance sees as its root filesystem. The
// typical sequence is:
//
//	c, _ := compiler.New(compiler.Config{WASM: wasmBytes})
//	defer c.Close(ctx)
//
//	_ = c.Initialize(ctx)                     // load once, shareable
//	_ = c.AddInclude("a_samp.inc", inc)       // stage includes
//	res, _ := c.Compile(ctx, src, opts)       // structured result, res.Artifact
//	amx, ok, _ := c.Artifact()                // latest artifact or absence
//	_ = c.Cleanup()                           // drop transient files
//
// # Initialization
//
// Initialize loads the module exactly once. Callers that arrive while a load
// is in flight wait for it and receive the same outcome, success or failure.
// A failed load returns the Compiler to StateUninitialized so a later call
// can retry.
//
// # Compilation
//
// Compile never reports compiler problems as Go errors. Source errors, bad
// options, traps and every other failure at the module boundary come back as
// a diag.Result with Success false. The only errors Compile returns are
// "not initialized" and context errors.
//
// Compilations are serialized. The module reads and writes fixed paths, so a
// second Compile waits until the first has read its result and artifact.
// Result.Artifact holds the bytes of that call's compile; Artifact returns
// whatever the most recent compile left behind. Artifact and Cleanup take the
// same lock.
//
// # Includes
//
// AddInclude may run while a Compile is in flight; which version of the file
// that compile reads is undefined. Stage includes before compiling.
//
// # Recovery
//
// If the module traps or calls proc_exit the running instance is discarded,
// since a trap leaves the guest stack and heap in an unknown state. The next
// Compile creates a fresh instance from the already compiled module. Staged
// includes survive because they live in the host directory, not in the
// instance.
package compiler
