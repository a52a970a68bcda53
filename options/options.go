package options

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/google/shlex"

	"github.com/wippyai/wasm-pawnc/errors"
)

// MaxArgs is the number of option tokens the module's argv can carry.
// The wrapper reserves 4 of its 32 slots for the program name, output flag,
// input path and the terminating NULL.
const MaxArgs = 28

// MaxLevel is the highest optimization and debug level the compiler accepts.
const MaxLevel = 3

// Define is a symbol passed to the compiler as NAME or NAME=VALUE.
type Define struct {
	Name  string
	Value string
}

// Options are the structured compile options.
type Options struct {
	// Optimization is the -O level, omitted when nil.
	Optimization *int
	// Debug is the -d level, omitted when nil.
	Debug *int
	// DisabledWarnings become -w<n> flags.
	DisabledWarnings []int
	// Defines become NAME=VALUE symbol definitions.
	Defines []Define
	// Flags are passed verbatim after everything else, in order.
	Flags []string
}

// Level returns a pointer to n for use in Options.
func Level(n int) *int {
	return &n
}

// Marshal builds the flag vector for opts. It is pure and deterministic.
func Marshal(opts Options, includeRoot string) []string {
	args := make([]string, 0, 3+len(opts.DisabledWarnings)+len(opts.Defines)+len(opts.Flags))

	if opts.Optimization != nil {
		args = append(args, "-O"+strconv.Itoa(*opts.Optimization))
	}
	if opts.Debug != nil {
		args = append(args, "-d"+strconv.Itoa(*opts.Debug))
	}
	args = append(args, "-i"+includeRoot)

	for _, w := range opts.DisabledWarnings {
		args = append(args, "-w"+strconv.Itoa(w))
	}
	for _, d := range opts.Defines {
		if d.Value == "" {
			args = append(args, d.Name)
			continue
		}
		args = append(args, d.Name+"="+d.Value)
	}

	return append(args, opts.Flags...)
}

// String joins the marshaled flags with single spaces, the form the module
// splits back into argv.
func String(opts Options, includeRoot string) string {
	return strings.Join(Marshal(opts, includeRoot), " ")
}

// Validate reports options the module cannot represent faithfully.
func Validate(opts Options) error {
	if err := checkLevel("optimization", opts.Optimization); err != nil {
		return err
	}
	if err := checkLevel("debug", opts.Debug); err != nil {
		return err
	}

	for _, w := range opts.DisabledWarnings {
		if w < 0 {
			return errors.New(errors.PhaseOptions, errors.KindInvalidInput).
				Value(w).
				Detail("warning number %d is negative", w).
				Build()
		}
	}

	for _, d := range opts.Defines {
		if !isIdentifier(d.Name) {
			return errors.New(errors.PhaseOptions, errors.KindInvalidInput).
				Value(d.Name).
				Detail("define name %q is not an identifier", d.Name).
				Build()
		}
		if strings.IndexFunc(d.Value, unicode.IsSpace) >= 0 {
			return errors.InvalidInput(errors.PhaseOptions, fmt.Sprintf("define %s value contains whitespace", d.Name))
		}
	}

	for i, f := range opts.Flags {
		if f == "" {
			return errors.InvalidInput(errors.PhaseOptions, fmt.Sprintf("flag %d is empty", i))
		}
		if strings.IndexFunc(f, unicode.IsSpace) >= 0 {
			return errors.New(errors.PhaseOptions, errors.KindInvalidInput).
				Value(f).
				Detail("flag %q contains whitespace", f).
				Build()
		}
	}

	// the include flag is always present
	n := 1 + len(opts.DisabledWarnings) + len(opts.Defines) + len(opts.Flags)
	if opts.Optimization != nil {
		n++
	}
	if opts.Debug != nil {
		n++
	}
	if n > MaxArgs {
		return errors.New(errors.PhaseOptions, errors.KindInvalidInput).
			Value(n).
			Detail("%d option tokens exceed the module limit of %d", n, MaxArgs).
			Build()
	}

	return nil
}

// ParseFlags splits a shell-style flag string such as `-Z+ -;+ '-t4'`.
// A token starting with # begins a comment that runs to the end of the line.
func ParseFlags(s string) ([]string, error) {
	flags, err := shlex.Split(s)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseOptions, errors.KindInvalidInput, err, "parse flags")
	}
	return flags, nil
}

func checkLevel(name string, level *int) error {
	if level == nil {
		return nil
	}
	if *level < 0 || *level > MaxLevel {
		return errors.New(errors.PhaseOptions, errors.KindInvalidInput).
			Value(*level).
			Detail("%s level %d out of range 0-%d", name, *level, MaxLevel).
			Build()
	}
	return nil
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || r == '@' || unicode.IsLetter(r):
		case i > 0 && unicode.IsDigit(r):
		default:
			return false
		}
	}
	return true
}
