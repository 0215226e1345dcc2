// File: internal/scrape/batch.go
package scrape

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/couchwatch/couchwatch/api/schemas"
)

// PlatformFailure records one platform that did not complete in a batch.
type PlatformFailure struct {
	Platform schemas.Platform
	Err      error
}

// BatchError aggregates per-platform failures from a batch run. Individual
// causes stay reachable through Unwrap.
type BatchError struct {
	Failures []PlatformFailure
}

func (e *BatchError) Error() string {
	names := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		names = append(names, f.Platform.String())
	}
	return fmt.Sprintf("batch completed with %d failure(s): %s", len(e.Failures), strings.Join(names, ", "))
}

func (e *BatchError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

// BatchSummary reports the outcome of a full batch.
type BatchSummary struct {
	Results   []*Result
	Failures  []PlatformFailure
	Succeeded int
	Failed    int
	Duration  time.Duration
}

// BatchRunner walks the enabled platforms sequentially. One platform failing
// never stops the batch; every platform gets its attempt, and the aggregate
// error names the ones that failed.
type BatchRunner struct {
	runner   *Runner
	resolver AdapterResolver
	resume   schemas.ResumeDataStore
	logger   *zap.Logger
}

// NewBatchRunner wires the sequential all-platform runner.
func NewBatchRunner(runner *Runner, resolver AdapterResolver, resume schemas.ResumeDataStore, logger *zap.Logger) *BatchRunner {
	return &BatchRunner{
		runner:   runner,
		resolver: resolver,
		resume:   resume,
		logger:   logger.Named("batch"),
	}
}

// RunAll scrapes every listed platform in order and persists each successful
// result. Execution is strictly sequential; a browser context per platform
// is heavy enough without overlap, and ordering keeps logs readable.
func (b *BatchRunner) RunAll(ctx context.Context, platforms []schemas.Platform) (*BatchSummary, error) {
	started := time.Now()
	summary := &BatchSummary{}

	for _, platform := range platforms {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		result, err := b.runPlatform(ctx, platform)
		if err != nil {
			b.logger.Error("Platform scrape failed.",
				zap.String("platform", platform.String()),
				zap.Error(err),
			)
			summary.Failures = append(summary.Failures, PlatformFailure{Platform: platform, Err: err})
			summary.Failed++
			continue
		}
		summary.Results = append(summary.Results, result)
		summary.Succeeded++
	}

	summary.Duration = time.Since(started)
	b.logger.Info("Batch complete",
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Duration("duration", summary.Duration),
	)

	if len(summary.Failures) > 0 {
		return summary, &BatchError{Failures: summary.Failures}
	}
	return summary, nil
}

func (b *BatchRunner) runPlatform(ctx context.Context, platform schemas.Platform) (*Result, error) {
	adapter, err := b.resolver.Resolve(platform)
	if err != nil {
		return nil, err
	}
	result, err := b.runner.Run(ctx, adapter)
	if err != nil {
		return nil, err
	}
	if err := b.resume.SaveResumeData(ctx, platform, result.Data); err != nil {
		return nil, err
	}
	return result, nil
}
