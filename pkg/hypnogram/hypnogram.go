// Package hypnogram provides the staged sleep-record data model for
// polysomnography hypnograms.
package hypnogram

import (
	"errors"
	"fmt"
	"time"
)

// Stage is one scored sleep stage. The set is closed; ordering carries
// no meaning beyond the named groupings below.
type Stage string

const (
	Wake     Stage = "W"
	N1       Stage = "N1"
	N2       Stage = "N2"
	N3       Stage = "N3"
	REM      Stage = "R"
	Movement Stage = "MT"
	Unscored Stage = "U"
)

// IsNREM reports whether the stage belongs to the NREM group {N1, N2, N3}.
func (s Stage) IsNREM() bool {
	return s == N1 || s == N2 || s == N3
}

// Valid reports whether the stage is one of the closed enumeration values.
func (s Stage) Valid() bool {
	switch s {
	case Wake, N1, N2, N3, REM, Movement, Unscored:
		return true
	default:
		return false
	}
}

// ParseStage maps a scored label to a Stage. Polyman exports sometimes
// label NREM stages as bare integers, so those aliases are accepted too.
func ParseStage(label string) (Stage, error) {
	switch label {
	case "W", "Wake":
		return Wake, nil
	case "N1", "1":
		return N1, nil
	case "N2", "2":
		return N2, nil
	case "N3", "3":
		return N3, nil
	case "R", "REM":
		return REM, nil
	case "MT", "Movement":
		return Movement, nil
	case "U", "Unscored":
		return Unscored, nil
	default:
		return "", fmt.Errorf("unrecognized sleep stage %q", label)
	}
}

// ErrMalformedSequence indicates a sequence that is not chronologically
// sorted, contiguous, and non-overlapping.
var ErrMalformedSequence = errors.New("malformed stage sequence")

// Record is one scored interval of the recording.
type Record struct {
	Onset    time.Duration `json:"onset"`
	Duration time.Duration `json:"duration"`
	Stage    Stage         `json:"stage"`
}

// End returns the instant the record stops covering.
func (r Record) End() time.Duration {
	return r.Onset + r.Duration
}

// Sequence is an ordered, gap-free stage record covering a full
// recording. Records tile the span exactly: each record ends where the
// next one begins.
type Sequence []Record

// Start returns the onset of the first record, or zero for an empty sequence.
func (s Sequence) Start() time.Duration {
	if len(s) == 0 {
		return 0
	}
	return s[0].Onset
}

// End returns the offset of the last record, or zero for an empty sequence.
func (s Sequence) End() time.Duration {
	if len(s) == 0 {
		return 0
	}
	return s[len(s)-1].End()
}

// Span returns the total covered duration.
func (s Sequence) Span() time.Duration {
	return s.End() - s.Start()
}

// Validate checks the tiling invariant: every record has positive
// duration and a valid stage, and each record starts exactly where the
// previous one ended.
func (s Sequence) Validate() error {
	for i, r := range s {
		if r.Duration <= 0 {
			return fmt.Errorf("%w: record %d has non-positive duration %v", ErrMalformedSequence, i, r.Duration)
		}
		if !r.Stage.Valid() {
			return fmt.Errorf("%w: record %d has unknown stage %q", ErrMalformedSequence, i, r.Stage)
		}
		if i > 0 && s[i-1].End() != r.Onset {
			return fmt.Errorf("%w: record %d onset %v does not continue previous end %v",
				ErrMalformedSequence, i, r.Onset, s[i-1].End())
		}
	}
	return nil
}
