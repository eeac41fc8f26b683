// Package analyzer runs the full hypnogram analysis pipeline:
// wake classification, cycle detection, annotation, and epoch
// resampling for display.
package analyzer

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/somnolab/hypnocycle/pkg/cycles"
	"github.com/somnolab/hypnocycle/pkg/hypnogram"
	"github.com/somnolab/hypnocycle/pkg/resample"
)

// Option configures an analysis run.
type Option func(*config)

type config struct {
	wakeThreshold time.Duration
	minLength     time.Duration
	minSeparation time.Duration
	epoch         time.Duration
	trailing      cycles.TrailingPolicy
	logger        *slog.Logger
}

// WithWakeThreshold sets the short/long wake boundary.
func WithWakeThreshold(d time.Duration) Option {
	return func(c *config) { c.wakeThreshold = d }
}

// WithMinLength sets the minimum span for a candidate NREM run.
func WithMinLength(d time.Duration) Option {
	return func(c *config) { c.minLength = d }
}

// WithMinSeparation sets the minimum gap between distinct NREM runs.
func WithMinSeparation(d time.Duration) Option {
	return func(c *config) { c.minSeparation = d }
}

// WithEpoch sets the epoch duration for the resampled display channel.
// Zero disables resampling.
func WithEpoch(d time.Duration) Option {
	return func(c *config) { c.epoch = d }
}

// WithTrailingPolicy sets the policy for an unresolved final cycle.
func WithTrailingPolicy(p cycles.TrailingPolicy) Option {
	return func(c *config) { c.trailing = p }
}

// WithLogger sets the logger for pipeline progress.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// Result is the full pipeline output handed to renderers.
type Result struct {
	Span     time.Duration       `json:"span"`
	WakeRuns []hypnogram.WakeRun `json:"wake_runs"`
	Cycles   []cycles.Cycle      `json:"cycles"`
	Records  cycles.Annotated    `json:"records"`
	Epochs   cycles.Annotated    `json:"epochs,omitempty"`
}

// Analyze runs the pipeline on a validated sequence. Defaults match
// the conventional scoring parameters: 2-minute wake threshold,
// 10-minute minimum NREM run and separation, 30-second epochs, and an
// emitted truncated trailing cycle. The input sequence is never
// mutated; every channel of the result is freshly allocated.
func Analyze(seq hypnogram.Sequence, opts ...Option) (*Result, error) {
	cfg := config{
		wakeThreshold: 2 * time.Minute,
		minLength:     10 * time.Minute,
		minSeparation: 10 * time.Minute,
		epoch:         resample.DefaultEpoch,
		trailing:      cycles.TrailingEmit,
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if err := seq.Validate(); err != nil {
		return nil, err
	}

	wakes, err := hypnogram.ClassifyWake(seq, cfg.wakeThreshold)
	if err != nil {
		return nil, fmt.Errorf("classifying wake runs: %w", err)
	}
	cfg.logger.Debug("classified wake runs", "count", len(wakes))

	detected, err := cycles.Detect(seq, wakes, cycles.Params{
		MinLength:     cfg.minLength,
		MinSeparation: cfg.minSeparation,
		Trailing:      cfg.trailing,
	})
	if err != nil {
		return nil, fmt.Errorf("detecting cycles: %w", err)
	}
	cfg.logger.Debug("detected cycles", "count", len(detected))

	annotated, err := cycles.Annotate(seq, detected)
	if err != nil {
		return nil, fmt.Errorf("annotating sequence: %w", err)
	}

	result := &Result{
		Span:     seq.Span(),
		WakeRuns: wakes,
		Cycles:   detected,
		Records:  annotated,
	}

	if cfg.epoch > 0 {
		epochs, err := resample.Epochs(seq, cfg.epoch)
		if err != nil {
			return nil, fmt.Errorf("resampling: %w", err)
		}
		result.Epochs, err = cycles.Annotate(epochs, detected)
		if err != nil {
			return nil, fmt.Errorf("annotating epochs: %w", err)
		}
		cfg.logger.Debug("resampled", "epochs", len(epochs), "epoch", cfg.epoch)
	}

	return result, nil
}
