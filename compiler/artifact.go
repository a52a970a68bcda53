package compiler

import (
	stderrors "errors"
	"os"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	pawnc "github.com/wippyai/wasm-pawnc"
	"github.com/wippyai/wasm-pawnc/errors"
)

// transientPaths are removed by Cleanup.
var transientPaths = []string{
	pawnc.InputPath,
	pawnc.OutputPath,
	pawnc.LogPath,
}

// Artifact returns the AMX left by the most recent compile, whichever caller
// ran it. ok is false when there is none; err is reserved for unexpected read
// failures. Callers sharing a Compiler should use the Result.Artifact of their
// own Compile instead.
func (c *Compiler) Artifact() (data []byte, ok bool, err error) {
	c.compileMu.Lock()
	defer c.compileMu.Unlock()

	data, err = c.store.ReadFile(pawnc.OutputPath)
	if err != nil {
		if stderrors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

// Cleanup removes the input, artifact and log files. Each removal is
// attempted; missing files are ignored and other failures are returned
// together. Calling it again is a no-op.
func (c *Compiler) Cleanup() error {
	c.compileMu.Lock()
	defer c.compileMu.Unlock()

	var merr *multierror.Error
	for _, p := range transientPaths {
		if err := c.store.Remove(p); err != nil {
			merr = multierror.Append(merr, err)
		}
	}

	if err := merr.ErrorOrNil(); err != nil {
		c.log.Warn("cleanup incomplete", zap.Error(err))
		return errors.Wrap(errors.PhaseCleanup, errors.KindIO, err, "remove transient files")
	}
	return nil
}
