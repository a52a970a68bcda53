// Package options turns structured compile options into the flag vector the
// Pawn compiler module expects.
//
// Flag order is significant because the compiler lets a later flag override an
// earlier one it recognizes twice:
//
//	-O<n>  -d<n>  -i<include root>  -w<n>...  NAME=VALUE...  <caller flags...>
//
// The positional source path is never produced here; the module appends its
// own reserved input path.
//
//	args := options.Marshal(options.Options{
//	    Optimization: options.Level(2),
//	    Debug:        options.Level(3),
//	    Flags:        []string{"-Z+"},
//	}, pawnc.IncludeRoot)
//	// [-O2 -d3 -i/include -Z+]
package options
