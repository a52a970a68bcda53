package pawnc

// Memory represents guest linear memory
type Memory interface {
	Read(offset uint32, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
	// ReadCString copies a NUL-terminated string starting at offset.
	ReadCString(offset uint32) (string, error)
}

// MemorySizer provides the current size of guest linear memory in bytes.
type MemorySizer interface {
	Size() uint32
}

// Allocator allocates memory in guest linear memory through the module's
// libc malloc/free exports.
type Allocator interface {
	Alloc(size uint32) (uint32, error)
	Free(ptr uint32)
}

// Guest exports required from the compiler module.
const (
	// ExportCompile compiles source text with a space separated option string.
	// Signature: pawncl_compile(source: i32, options: i32) -> i32 (result message pointer)
	ExportCompile = "pawncl_compile"

	// ExportRelease releases a result message returned by ExportCompile.
	// Signature: pawncl_free(ptr: i32)
	ExportRelease = "pawncl_free"

	// ExportMalloc allocates memory in guest linear memory.
	// Signature: malloc(size: i32) -> i32
	ExportMalloc = "malloc"

	// ExportFree frees memory in guest linear memory.
	// Signature: free(ptr: i32)
	ExportFree = "free"

	// ExportInitialize is the WASI reactor initializer, called once after
	// instantiation when present.
	ExportInitialize = "_initialize"
)

// Reserved paths inside the module's private filesystem.
const (
	InputPath   = "/input.pwn"
	OutputPath  = "/output.amx"
	LogPath     = "/output.log"
	IncludeRoot = "/include"
)

// ProgramName is argv[0] as seen by the compiler.
const ProgramName = "pawncc"
