package vfs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wippyai/wasm-pawnc/errors"
)

const (
	DefaultFetchConcurrency = 4
	DefaultFetchRetries     = 3

	// MaxIncludeSize caps a single downloaded include.
	MaxIncludeSize = 16 << 20
)

// FetchConfig configures a Fetcher.
// A nil config or zero fields use defaults.
type FetchConfig struct {
	// HTTPClient replaces the pooled default transport client.
	HTTPClient *http.Client
	// Logger receives fetch and retry logs. nil uses Logger().
	Logger       *zap.Logger
	Concurrency  int
	Retries      int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
}

// Fetcher downloads includes and stages them in a Store.
type Fetcher struct {
	store       *Store
	client      *retryablehttp.Client
	log         *zap.Logger
	concurrency int
}

// NewFetcher creates a Fetcher that stages into store.
func NewFetcher(store *Store, cfg *FetchConfig) *Fetcher {
	if cfg == nil {
		cfg = &FetchConfig{}
	}

	log := cfg.Logger
	if log == nil {
		log = Logger()
	}

	client := retryablehttp.NewClient()
	client.Logger = newLeveledLogger(log)
	client.RetryMax = DefaultFetchRetries
	if cfg.Retries > 0 {
		client.RetryMax = cfg.Retries
	}
	if cfg.HTTPClient != nil {
		client.HTTPClient = cfg.HTTPClient
	}
	if cfg.RetryWaitMin > 0 {
		client.RetryWaitMin = cfg.RetryWaitMin
	}
	if cfg.RetryWaitMax > 0 {
		client.RetryWaitMax = cfg.RetryWaitMax
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultFetchConcurrency
	}

	return &Fetcher{
		store:       store,
		client:      client,
		log:         log,
		concurrency: concurrency,
	}
}

// FetchIncludes downloads every name relative to baseURL and stages it under
// the same relative path. Names are fetched independently; each success is
// staged immediately. If any name fails the returned error is a
// *errors.PartialFetchError listing the failures in names order.
func (f *Fetcher) FetchIncludes(ctx context.Context, baseURL string, names []string) error {
	if len(names) == 0 {
		return nil
	}

	start := time.Now()
	causes := make([]error, len(names))

	var g errgroup.Group
	g.SetLimit(f.concurrency)

	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			causes[i] = f.fetchOne(ctx, baseURL, name)
			return nil
		})
	}
	_ = g.Wait()

	var failures []errors.FetchFailure
	for i, err := range causes {
		if err != nil {
			failures = append(failures, errors.FetchFailure{Name: names[i], Cause: err})
		}
	}

	f.log.Debug("includes fetched",
		zap.String("base", baseURL),
		zap.Int("total", len(names)),
		zap.Int("failed", len(failures)),
		zap.Duration("elapsed", time.Since(start)))

	if len(failures) > 0 {
		return errors.NewPartialFetchError(len(names), failures)
	}
	return nil
}

func (f *Fetcher) fetchOne(ctx context.Context, baseURL, name string) error {
	rel, err := cleanInclude(name)
	if err != nil {
		return err
	}

	u, err := url.JoinPath(baseURL, rel)
	if err != nil {
		return errors.Wrap(errors.PhaseFetch, errors.KindInvalidInput, err, "join url")
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return errors.Wrap(errors.PhaseFetch, errors.KindInvalidInput, err, "build request")
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return errors.Wrap(errors.PhaseFetch, errors.KindIO, err, u)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.New(errors.PhaseFetch, errors.KindIO).
			Path(u).
			Detail("unexpected status %s", resp.Status).
			Value(resp.StatusCode).
			Build()
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxIncludeSize+1))
	if err != nil {
		return errors.Wrap(errors.PhaseFetch, errors.KindIO, err, u)
	}
	if len(body) > MaxIncludeSize {
		return errors.InvalidInput(errors.PhaseFetch,
			fmt.Sprintf("%s exceeds %d bytes", u, MaxIncludeSize))
	}

	return f.store.AddInclude(rel, body)
}
