package hypnogram

import (
	"errors"
	"time"
)

// Run is a maximal contiguous span of records sharing a property
// (same stage, or same stage group). First and Last are the inclusive
// record index range backing the run.
type Run struct {
	Onset  time.Duration `json:"onset"`
	Offset time.Duration `json:"offset"`
	First  int           `json:"first_record"`
	Last   int           `json:"last_record"`
}

// Duration returns the total length of the run.
func (r Run) Duration() time.Duration {
	return r.Offset - r.Onset
}

// Runs groups consecutive records matched by pred into maximal runs.
// Records not matching pred break runs but produce none themselves.
func Runs(s Sequence, pred func(Stage) bool) []Run {
	var runs []Run
	open := false
	for i, rec := range s {
		switch {
		case pred(rec.Stage) && !open:
			runs = append(runs, Run{Onset: rec.Onset, Offset: rec.End(), First: i, Last: i})
			open = true
		case pred(rec.Stage):
			runs[len(runs)-1].Offset = rec.End()
			runs[len(runs)-1].Last = i
		default:
			open = false
		}
	}
	return runs
}

// WakeKind classifies a wake run by duration.
type WakeKind string

const (
	ShortWake WakeKind = "short"
	LongWake  WakeKind = "long"
)

// WakeRun is a maximal contiguous Wake span with its classification.
type WakeRun struct {
	Run
	Kind WakeKind `json:"kind"`
}

// ErrInvalidThreshold indicates a non-positive wake threshold.
var ErrInvalidThreshold = errors.New("wake threshold must be positive")

// ClassifyWake finds every maximal Wake run and labels it short when
// its duration is at most threshold, long otherwise. A run of exactly
// threshold length is short. Runs touching either end of the recording
// are classified the same way as interior runs.
func ClassifyWake(s Sequence, threshold time.Duration) ([]WakeRun, error) {
	if threshold <= 0 {
		return nil, ErrInvalidThreshold
	}
	var wakes []WakeRun
	for _, run := range Runs(s, func(st Stage) bool { return st == Wake }) {
		kind := LongWake
		if run.Duration() <= threshold {
			kind = ShortWake
		}
		wakes = append(wakes, WakeRun{Run: run, Kind: kind})
	}
	return wakes, nil
}
