// Package pawnc hosts a pre-built Pawn compiler WebAssembly module and exposes
// it as a Go library.
//
// The compiler is an opaque WASI reactor: given source text and a flag string
// it writes a binary AMX artifact into its private filesystem and returns a
// human-readable result message. This library never links against or
// inspects the compiler; it only stages files, crosses the call boundary and
// interprets the text that comes back.
//
// # Architecture Overview
//
//	pawnc/            Root package with Memory/Allocator interfaces, export names and guest paths
//	├── compiler/     Host-facing API: lifecycle, invocation bridge, artifacts, cleanup
//	├── engine/       Low-level wazero integration, guest memory and allocator
//	├── vfs/          Include store over the module's private filesystem, remote fetcher
//	├── options/      Structured options to compiler flag marshaling
//	├── diag/         Free-text compiler output to structured result parsing
//	├── errors/       Structured error types
//	├── testbed/      Embedded fake compiler module and end-to-end tests
//	└── cmd/pawnc/    Command line front end
//
// # Quick Start
//
//	c, err := compiler.New(compiler.Config{WASM: wasmBytes})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Close(ctx)
//
//	if err := c.Initialize(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := c.AddInclude("a_samp.inc", incBytes); err != nil {
//	    log.Fatal(err)
//	}
//
//	res, err := c.Compile(ctx, source, options.Options{Optimization: options.Level(2)})
//	if err != nil {
//	    log.Fatal(err) // only when the compiler was never initialized
//	}
//	for _, e := range res.Errors {
//	    fmt.Println(e)
//	}
//
// # Include Files
//
// No include library ships with this module. Callers stage every include the
// source needs, either from memory (AddInclude, AddIncludes) or from a remote
// base URL (FetchIncludes).
//
// # Thread Safety
//
// Compiler is safe for concurrent use. Compilations are serialized: the
// module's filesystem is shared state, so only one compile runs at a time and
// later callers wait for the earlier ones to finish.
//
// # Memory Model
//
// WASM linear memory can only grow, never shrink. A long-running host that
// compiles many large sources should recycle its Compiler periodically.
package pawnc
