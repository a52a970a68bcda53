// Package vfs stages files in the compiler module's private filesystem.
//
// A Store wraps an afero.Fs whose root is the directory the module sees as
// "/". Includes live under a single include root (normally "/include") and
// mirror the caller's relative paths beneath it. The transient compile files
// (input, artifact, log) sit at fixed absolute paths and are reached through
// the same Store primitives.
//
// Replacing an include removes the old file before writing the new content,
// so a shorter file never keeps trailing bytes from a longer predecessor.
//
// Fetcher loads includes over HTTP. Each name is fetched on its own with
// bounded parallelism and retries; a failed download does not stop the
// others, and every successful download is staged as soon as it arrives.
//
// The Store serializes its own writes but does not coordinate with an
// in-flight compile. Staging an include while a compile runs is the caller's
// responsibility; which version that compile reads is undefined.
package vfs
