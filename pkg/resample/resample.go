// Package resample converts arbitrary-granularity stage sequences onto
// a fixed-epoch grid for cycle scanning and display.
package resample

import (
	"errors"
	"time"

	"github.com/somnolab/hypnocycle/pkg/hypnogram"
)

// ErrInvalidEpochDuration indicates a non-positive epoch duration.
var ErrInvalidEpochDuration = errors.New("epoch duration must be positive")

// DefaultEpoch is the standard polysomnography scoring epoch.
const DefaultEpoch = 30 * time.Second

// Epochs regrids the sequence into contiguous fixed-width epochs. Each
// epoch takes the stage with the most overlapping time inside its
// window; on a tie the stage that appears first within the window
// wins. The output covers exactly the input span, with a shorter final
// epoch when the span is not a whole multiple of epoch.
func Epochs(s hypnogram.Sequence, epoch time.Duration) (hypnogram.Sequence, error) {
	if epoch <= 0 {
		return nil, ErrInvalidEpochDuration
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if len(s) == 0 {
		return nil, nil
	}

	out := make(hypnogram.Sequence, 0, int(s.Span()/epoch)+1)
	cursor := 0 // index of first record overlapping the current epoch
	for start := s.Start(); start < s.End(); start += epoch {
		end := start + epoch
		if end > s.End() {
			end = s.End()
		}
		out = append(out, hypnogram.Record{
			Onset:    start,
			Duration: end - start,
			Stage:    dominantStage(s, &cursor, start, end),
		})
	}
	return out, nil
}

// dominantStage votes the stage for the window [start, end), advancing
// cursor past records fully consumed by the window.
func dominantStage(s hypnogram.Sequence, cursor *int, start, end time.Duration) hypnogram.Stage {
	overlaps := make(map[hypnogram.Stage]time.Duration)
	var order []hypnogram.Stage // stages in first-appearance order

	for i := *cursor; i < len(s) && s[i].Onset < end; i++ {
		rec := s[i]
		lo, hi := rec.Onset, rec.End()
		if lo < start {
			lo = start
		}
		if hi > end {
			hi = end
		}
		if hi <= lo {
			continue
		}
		if _, seen := overlaps[rec.Stage]; !seen {
			order = append(order, rec.Stage)
		}
		overlaps[rec.Stage] += hi - lo
		if rec.End() <= end {
			*cursor = i + 1
		}
	}

	best := order[0]
	for _, st := range order[1:] {
		if overlaps[st] > overlaps[best] {
			best = st
		}
	}
	return best
}
