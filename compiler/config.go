package compiler

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-pawnc/engine"
)

// Config holds configuration for a Compiler.
// Only WASM is required; zero values select defaults.
type Config struct {
	// Engine configures the wazero runtime. nil means defaults.
	Engine *engine.Config

	// Logger receives lifecycle, compile, staging and fetch logs. nil uses
	// Logger().
	Logger *zap.Logger

	// HTTPClient is used by FetchIncludes. nil uses a pooled client.
	HTTPClient *http.Client

	// WorkDir is the host directory mounted as the module's "/". When empty
	// a temporary directory is created and removed by Close.
	WorkDir string

	// WASM is the compiler module binary.
	WASM []byte

	// FetchConcurrency bounds parallel downloads in FetchIncludes.
	FetchConcurrency int

	// FetchRetries is the retry budget per downloaded include.
	FetchRetries int

	// FetchRetryWait is the minimum backoff between download retries.
	FetchRetryWait time.Duration
}
