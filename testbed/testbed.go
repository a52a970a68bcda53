// Package testbed provides a fake compiler module for tests.
//
// FakeCompiler is a small hand-built WASI reactor with the same exports as
// the real compiler (memory, malloc, free, pawncl_compile, pawncl_free) plus
// live_results, which reports how many result messages are still
// unreleased. fakepawncc.wat documents its behaviour. The first byte of the
// source selects what a compile does:
//
//	'e'  print an error diagnostic to stdout, return a failure message
//	'w'  print a warning diagnostic to stderr, then succeed
//	'x'  trap (unreachable)
//	'q'  call proc_exit(3)
//	else write an 8 byte /output.amx and return a success message
//
// Every compile writes the source to /input.pwn and prints
// "options: <opts>" to stdout.
package testbed

import _ "embed"

//go:embed fakepawncc.wasm
var FakeCompiler []byte

// FakeArtifact is the content the fake compiler writes to /output.amx.
const FakeArtifact = "AMXFAKE!"

// Source prefixes understood by FakeCompiler.
const (
	SourceOK      = "main() {}"
	SourceError   = "error: main() { foo(); }"
	SourceWarning = "warn: new x; main() {}"
	SourceTrap    = "x"
	SourceExit    = "quit"
)

// LiveResults is the export reporting unreleased result messages.
const LiveResults = "live_results"
