package hypnogram

import (
	"errors"
	"testing"
	"time"
)

func TestRunsGroupsContiguousNREM(t *testing.T) {
	s := seq(t, Wake, 5, N2, 12, N3, 8, REM, 10, N1, 4, Wake, 3)
	runs := Runs(s, Stage.IsNREM)
	if len(runs) != 2 {
		t.Fatalf("expected 2 NREM runs, got %d", len(runs))
	}
	if runs[0].Onset != 5*time.Minute || runs[0].Offset != 25*time.Minute {
		t.Errorf("first run = [%v, %v), want [5m, 25m)", runs[0].Onset, runs[0].Offset)
	}
	if runs[0].First != 1 || runs[0].Last != 2 {
		t.Errorf("first run records = %d..%d, want 1..2", runs[0].First, runs[0].Last)
	}
	if runs[1].Duration() != 4*time.Minute {
		t.Errorf("second run duration = %v, want 4m", runs[1].Duration())
	}
}

func TestClassifyWakeRejectsInvalidThreshold(t *testing.T) {
	s := seq(t, Wake, 5)
	for _, bad := range []time.Duration{0, -time.Minute} {
		if _, err := ClassifyWake(s, bad); !errors.Is(err, ErrInvalidThreshold) {
			t.Errorf("threshold %v: expected ErrInvalidThreshold, got %v", bad, err)
		}
	}
}

// A wake run of exactly the threshold duration is short; only strictly
// longer runs are long awakenings.
func TestClassifyWakeThresholdBoundary(t *testing.T) {
	s := seq(t, Wake, 2, N2, 10, Wake, 3)
	wakes, err := ClassifyWake(s, 2*time.Minute)
	if err != nil {
		t.Fatalf("ClassifyWake failed: %v", err)
	}
	if len(wakes) != 2 {
		t.Fatalf("expected 2 wake runs, got %d", len(wakes))
	}
	if wakes[0].Kind != ShortWake {
		t.Errorf("2m run at 2m threshold should be short, got %v", wakes[0].Kind)
	}
	if wakes[1].Kind != LongWake {
		t.Errorf("3m run at 2m threshold should be long, got %v", wakes[1].Kind)
	}
}

// Wake runs touching the recording boundaries are classified like any
// interior run.
func TestClassifyWakeNoBoundarySpecialCasing(t *testing.T) {
	s := seq(t, Wake, 30, N2, 10, Wake, 1)
	wakes, err := ClassifyWake(s, 2*time.Minute)
	if err != nil {
		t.Fatalf("ClassifyWake failed: %v", err)
	}
	if wakes[0].Kind != LongWake {
		t.Errorf("leading 30m wake should be long, got %v", wakes[0].Kind)
	}
	if wakes[1].Kind != ShortWake {
		t.Errorf("trailing 1m wake should be short, got %v", wakes[1].Kind)
	}
}

func TestClassifyWakeIsPure(t *testing.T) {
	s := seq(t, Wake, 5, N2, 10)
	before := make(Sequence, len(s))
	copy(before, s)
	if _, err := ClassifyWake(s, 2*time.Minute); err != nil {
		t.Fatalf("ClassifyWake failed: %v", err)
	}
	for i := range s {
		if s[i] != before[i] {
			t.Fatalf("input sequence mutated at record %d", i)
		}
	}
}
