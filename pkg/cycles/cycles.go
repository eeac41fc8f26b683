// Package cycles detects NREM-REM sleep cycles in classified stage
// sequences and merges the results back onto the hypnogram.
package cycles

import (
	"errors"
	"fmt"
	"time"

	"github.com/somnolab/hypnocycle/pkg/hypnogram"
)

// OffsetReason records which rule closed a cycle.
type OffsetReason string

const (
	OffsetLastREM               OffsetReason = "last_rem"
	OffsetLastN3BeforeShortWake OffsetReason = "last_n3_before_short_wake"
	OffsetFirstLongWakeOnset    OffsetReason = "first_long_wake_onset"
	OffsetEndOfRecording        OffsetReason = "end_of_recording"
)

// Cycle is one detected NREM-REM cycle. Cycles are immutable once
// returned and strictly ordered by onset.
type Cycle struct {
	Index  int           `json:"index"`
	Onset  time.Duration `json:"onset"`
	Offset time.Duration `json:"offset"`
	Reason OffsetReason  `json:"offset_reason"`
}

// Duration returns the cycle length.
func (c Cycle) Duration() time.Duration {
	return c.Offset - c.Onset
}

// TrailingPolicy controls what happens to a final candidate cycle whose
// offset never resolves before the recording ends.
type TrailingPolicy int

const (
	// TrailingEmit closes the cycle at the end of the recording with
	// reason OffsetEndOfRecording.
	TrailingEmit TrailingPolicy = iota
	// TrailingDrop discards the unresolved cycle.
	TrailingDrop
)

// Params carries the detection thresholds. Values travel with each
// call; there is no process-wide configuration.
type Params struct {
	// MinLength is the minimum span for a merged NREM run to count as
	// a candidate cycle onset. Runs of exactly MinLength qualify.
	MinLength time.Duration
	// MinSeparation is the minimum gap between two NREM runs for them
	// to stay distinct; shorter gaps merge the runs regardless of what
	// fills the gap.
	MinSeparation time.Duration
	// Trailing selects the policy for an unresolved final cycle.
	Trailing TrailingPolicy
}

// ErrInvalidParameters indicates out-of-range detection thresholds.
var ErrInvalidParameters = errors.New("invalid cycle detection parameters")

// Detect scans a classified sequence and returns cycles in onset
// order. wakes must be the classification of s, as produced by
// hypnogram.ClassifyWake. Detection is deterministic and total for any
// valid input: it fails only on malformed sequences or bad parameters,
// and never returns a partial cycle list alongside an error.
func Detect(s hypnogram.Sequence, wakes []hypnogram.WakeRun, p Params) ([]Cycle, error) {
	if p.MinLength <= 0 {
		return nil, fmt.Errorf("%w: min length %v", ErrInvalidParameters, p.MinLength)
	}
	if p.MinSeparation < 0 {
		return nil, fmt.Errorf("%w: min separation %v", ErrInvalidParameters, p.MinSeparation)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}

	runs := mergeRuns(hypnogram.Runs(s, hypnogram.Stage.IsNREM), p.MinSeparation)

	// Candidate onsets: merged runs spanning at least MinLength.
	var candidates []hypnogram.Run
	for _, run := range runs {
		if run.Duration() >= p.MinLength {
			candidates = append(candidates, run)
		}
	}

	wakeKind := wakeKindByRecord(wakes)

	var cycles []Cycle
	for i, cand := range candidates {
		limit := s.End()
		last := i == len(candidates)-1
		if !last {
			limit = candidates[i+1].Onset
		}

		offset, reason, ok := resolveOffset(s, wakes, wakeKind, cand.Onset, limit)
		if !ok {
			if !last || p.Trailing == TrailingDrop {
				continue
			}
			offset, reason = s.End(), OffsetEndOfRecording
		}
		cycles = append(cycles, Cycle{
			Index:  len(cycles),
			Onset:  cand.Onset,
			Offset: offset,
			Reason: reason,
		})
	}
	return cycles, nil
}

// mergeRuns collapses NREM runs separated by gaps shorter than
// minSeparation into single runs, repeating until a fixed point: no
// two remaining runs are closer than minSeparation. The loop converges
// in at most len(runs) passes.
func mergeRuns(runs []hypnogram.Run, minSeparation time.Duration) []hypnogram.Run {
	for changed := true; changed; {
		changed = false
		merged := runs[:0:0]
		for _, run := range runs {
			n := len(merged)
			if n > 0 && run.Onset-merged[n-1].Offset < minSeparation {
				merged[n-1].Offset = run.Offset
				merged[n-1].Last = run.Last
				changed = true
				continue
			}
			merged = append(merged, run)
		}
		runs = merged
	}
	return runs
}

// wakeKindByRecord maps each record index covered by a wake run to its
// classification.
func wakeKindByRecord(wakes []hypnogram.WakeRun) map[int]hypnogram.WakeKind {
	kinds := make(map[int]hypnogram.WakeKind)
	for _, w := range wakes {
		for i := w.First; i <= w.Last; i++ {
			kinds[i] = w.Kind
		}
	}
	return kinds
}

// resolveOffset scans records with onsets strictly inside (onset,
// limit) and applies the offset rules in priority order:
//
//	A: end of the last contiguous REM run in the window
//	B: end of the last N3 run immediately preceding a short wake
//	C: onset of the first long wake run in the window
func resolveOffset(
	s hypnogram.Sequence,
	wakes []hypnogram.WakeRun,
	wakeKind map[int]hypnogram.WakeKind,
	onset, limit time.Duration,
) (time.Duration, OffsetReason, bool) {
	inWindow := func(t time.Duration) bool { return t > onset && t < limit }

	// Rule A: last REM record in the window.
	for i := len(s) - 1; i >= 0; i-- {
		if inWindow(s[i].Onset) && s[i].Stage == hypnogram.REM {
			return s[i].End(), OffsetLastREM, true
		}
	}

	// Rule B: first N3 record whose immediate successor opens a short
	// wake run; the N3 record is by construction the tail of its run.
	for i, rec := range s {
		if !inWindow(rec.Onset) || rec.Stage != hypnogram.N3 || i+1 >= len(s) {
			continue
		}
		if s[i+1].Stage == hypnogram.Wake && wakeKind[i+1] == hypnogram.ShortWake {
			return rec.End(), OffsetLastN3BeforeShortWake, true
		}
	}

	// Rule C: first long wake run opening inside the window.
	for _, w := range wakes {
		if w.Kind == hypnogram.LongWake && inWindow(w.Onset) {
			return w.Onset, OffsetFirstLongWakeOnset, true
		}
	}

	return 0, "", false
}
