package engine

import (
	stderrors "errors"

	"github.com/tetratelabs/wazero/sys"

	pawnc "github.com/wippyai/wasm-pawnc"
	"github.com/wippyai/wasm-pawnc/errors"
)

// callError classifies a failed guest call. proc_exit surfaces as KindExit,
// everything else the runtime reports (unreachable, out of bounds access,
// stack exhaustion) as KindTrap.
func callError(name string, err error) error {
	var exitErr *sys.ExitError
	if stderrors.As(err, &exitErr) {
		Logger().Debug(formatExit(name, exitErr.ExitCode()))
		return errors.New(errors.PhaseInvoke, errors.KindExit).
			Value(exitErr.ExitCode()).
			Detail("%s", formatExit(name, exitErr.ExitCode())).
			Cause(err).
			Build()
	}
	return errors.Invocation(errors.KindTrap, name, err)
}

// IsExit reports whether err came from the guest calling proc_exit.
func IsExit(err error) bool {
	return stderrors.Is(err, &errors.Error{Phase: errors.PhaseInvoke, Kind: errors.KindExit})
}

// WriteCString copies s into freshly allocated guest memory followed by a NUL
// byte. The caller releases the pointer with a.Free.
func WriteCString(a pawnc.Allocator, m pawnc.Memory, s string) (uint32, error) {
	size := uint32(len(s)) + 1
	ptr, err := a.Alloc(size)
	if err != nil {
		return 0, err
	}

	buf := make([]byte, size)
	copy(buf, s)
	if err := m.Write(ptr, buf); err != nil {
		a.Free(ptr)
		return 0, err
	}
	return ptr, nil
}
