package hypnoio

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/somnolab/hypnocycle/pkg/hypnogram"
)

func TestLoadLocalFile(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	seq, err := Load(context.Background(), filepath.Join("testdata", "night.csv"), logger)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(seq) != 5 {
		t.Fatalf("expected 5 records, got %d", len(seq))
	}
	if seq.Span() != 38*time.Minute {
		t.Errorf("span = %v, want 38m", seq.Span())
	}
}

func TestParseTabulatedHypnogram(t *testing.T) {
	csv := `Entry,Onset,Duration,Stage,StageN
1,0,5,W,0
2,5,12,N2,2
3,17,8,N3,3
4,25,10,R,4
5,35,3,W,0
`
	seq, err := Parse(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(seq) != 5 {
		t.Fatalf("expected 5 records, got %d", len(seq))
	}
	if seq[1].Onset != 5*time.Minute || seq[1].Duration != 12*time.Minute {
		t.Errorf("record 1 = %v+%v, want 5m+12m", seq[1].Onset, seq[1].Duration)
	}
	if seq[3].Stage != hypnogram.REM {
		t.Errorf("record 3 stage = %v, want REM", seq[3].Stage)
	}
	if seq.Span() != 38*time.Minute {
		t.Errorf("span = %v, want 38m", seq.Span())
	}
}

// Polyman exports sometimes label NREM stages as bare integers.
func TestParseIntegerStageAliases(t *testing.T) {
	csv := `Onset,Duration,Stage
0,10,1
10,10,2
20,10,3
`
	seq, err := Parse(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	want := []hypnogram.Stage{hypnogram.N1, hypnogram.N2, hypnogram.N3}
	for i, st := range want {
		if seq[i].Stage != st {
			t.Errorf("record %d stage = %v, want %v", i, seq[i].Stage, st)
		}
	}
}

func TestParseFractionalMinutes(t *testing.T) {
	csv := `Onset,Duration,Stage
0,0.5,W
0.5,0.5,N1
`
	seq, err := Parse(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if seq[0].Duration != 30*time.Second {
		t.Errorf("duration = %v, want 30s", seq[0].Duration)
	}
}

func TestParseMissingColumn(t *testing.T) {
	csv := `Onset,Stage
0,W
`
	if _, err := Parse(strings.NewReader(csv)); err == nil {
		t.Error("expected error for missing Duration column")
	}
}

func TestParseBadStage(t *testing.T) {
	csv := `Onset,Duration,Stage
0,5,N9
`
	if _, err := Parse(strings.NewReader(csv)); err == nil {
		t.Error("expected error for unknown stage label")
	}
}

func TestParseRejectsNonContiguousRows(t *testing.T) {
	csv := `Onset,Duration,Stage
0,5,W
7,5,N2
`
	_, err := Parse(strings.NewReader(csv))
	if !errors.Is(err, hypnogram.ErrMalformedSequence) {
		t.Errorf("expected ErrMalformedSequence, got %v", err)
	}
}

func TestParseBadNumber(t *testing.T) {
	csv := `Onset,Duration,Stage
0,five,W
`
	if _, err := Parse(strings.NewReader(csv)); err == nil {
		t.Error("expected error for non-numeric duration")
	}
}
