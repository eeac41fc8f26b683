package cycles

import (
	"errors"
	"testing"
	"time"

	"github.com/somnolab/hypnocycle/pkg/hypnogram"
)

func detectOn(t *testing.T, s hypnogram.Sequence) []Cycle {
	t.Helper()
	wakes := classify(t, s, 2*time.Minute)
	got, err := Detect(s, wakes, Params{MinLength: minutes(10), MinSeparation: minutes(5)})
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	return got
}

func TestAnnotateAssignsCycleIndices(t *testing.T) {
	s := seq(t, hypnogram.Wake, 5, hypnogram.N2, 12, hypnogram.N3, 8, hypnogram.REM, 10, hypnogram.Wake, 3)
	detected := detectOn(t, s)

	annotated, err := Annotate(s, detected)
	if err != nil {
		t.Fatalf("Annotate failed: %v", err)
	}
	if len(annotated) != len(s) {
		t.Fatalf("annotated length %d, want %d", len(annotated), len(s))
	}

	// Cycle spans [5m, 35m): leading and trailing wake stay outside.
	wantIn := []bool{false, true, true, true, false}
	for i, rec := range annotated {
		if (rec.Cycle != nil) != wantIn[i] {
			t.Errorf("record %d: in-cycle = %v, want %v", i, rec.Cycle != nil, wantIn[i])
		}
		if rec.Cycle != nil && *rec.Cycle != 0 {
			t.Errorf("record %d: cycle index = %d, want 0", i, *rec.Cycle)
		}
		if rec.Stage != s[i].Stage {
			t.Errorf("record %d: stage changed from %v to %v", i, s[i].Stage, rec.Stage)
		}
	}
}

// The long wake record whose onset closed a cycle via rule C stays
// outside that cycle.
func TestAnnotateExcludesClosingLongWake(t *testing.T) {
	s := seq(t, hypnogram.Wake, 3, hypnogram.N2, 15, hypnogram.Wake, 15)
	detected := detectOn(t, s)

	annotated, err := Annotate(s, detected)
	if err != nil {
		t.Fatalf("Annotate failed: %v", err)
	}
	if annotated[2].Cycle != nil {
		t.Errorf("closing long wake record should carry no cycle index")
	}
	if annotated[1].Cycle == nil {
		t.Errorf("NREM record should carry the cycle index")
	}
}

func TestAnnotateEmptyCycleList(t *testing.T) {
	s := seq(t, hypnogram.Wake, 5, hypnogram.N2, 12)
	annotated, err := Annotate(s, nil)
	if err != nil {
		t.Fatalf("Annotate failed: %v", err)
	}
	for i, rec := range annotated {
		if rec.Cycle != nil {
			t.Errorf("record %d unexpectedly inside a cycle", i)
		}
	}
}

// Re-annotating the stripped result with the same cycles reproduces
// the annotation.
func TestAnnotateIdempotent(t *testing.T) {
	s := seq(t, hypnogram.Wake, 5, hypnogram.N2, 12, hypnogram.N3, 8, hypnogram.REM, 10, hypnogram.Wake, 3)
	detected := detectOn(t, s)

	first, err := Annotate(s, detected)
	if err != nil {
		t.Fatalf("Annotate failed: %v", err)
	}
	second, err := Annotate(first.Sequence(), detected)
	if err != nil {
		t.Fatalf("re-Annotate failed: %v", err)
	}
	for i := range first {
		if first[i].Record != second[i].Record {
			t.Errorf("record %d differs after re-annotation", i)
		}
		a, b := first[i].Cycle, second[i].Cycle
		switch {
		case (a == nil) != (b == nil):
			t.Errorf("record %d cycle presence differs after re-annotation", i)
		case a != nil && *a != *b:
			t.Errorf("record %d cycle index differs: %d vs %d", i, *a, *b)
		}
	}
}

func TestAnnotateRejectsMalformedSequence(t *testing.T) {
	s := hypnogram.Sequence{
		{Onset: 0, Duration: minutes(5), Stage: hypnogram.N2},
		{Onset: minutes(9), Duration: minutes(5), Stage: hypnogram.N2},
	}
	if _, err := Annotate(s, nil); !errors.Is(err, hypnogram.ErrMalformedSequence) {
		t.Errorf("expected ErrMalformedSequence, got %v", err)
	}
}

// Annotation works on a resampled grid just as on raw records.
func TestAnnotateResampledGrid(t *testing.T) {
	s := seq(t, hypnogram.Wake, 5, hypnogram.N2, 12, hypnogram.N3, 8, hypnogram.REM, 10, hypnogram.Wake, 3)
	detected := detectOn(t, s)

	// A coarser uniform grid carrying the same span.
	var grid hypnogram.Sequence
	for at := time.Duration(0); at < s.End(); at += minutes(1) {
		grid = append(grid, hypnogram.Record{Onset: at, Duration: minutes(1), Stage: hypnogram.N2})
	}
	annotated, err := Annotate(grid, detected)
	if err != nil {
		t.Fatalf("Annotate failed: %v", err)
	}
	// Epoch at 5m opens the cycle; epoch at 34m is the last inside it.
	if annotated[5].Cycle == nil || annotated[34].Cycle == nil {
		t.Error("epochs inside the cycle span should carry its index")
	}
	if annotated[4].Cycle != nil || annotated[35].Cycle != nil {
		t.Error("epochs outside the cycle span should carry no index")
	}
}
