// Package render draws analysis results as colored terminal output:
// a per-epoch hypnogram timeline and a tabular cycle summary.
package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/somnolab/hypnocycle/pkg/analyzer"
	"github.com/somnolab/hypnocycle/pkg/cycles"
	"github.com/somnolab/hypnocycle/pkg/hypnogram"
)

// epochsPerRow is the timeline width; at 30-second epochs one row
// spans 30 minutes.
const epochsPerRow = 60

// stageColor returns the display color for a stage. Deeper sleep gets
// darker blues, REM stands out in red.
func stageColor(s hypnogram.Stage) *color.Color {
	switch s {
	case hypnogram.Wake:
		return color.New(color.FgYellow)
	case hypnogram.N1:
		return color.New(color.FgCyan)
	case hypnogram.N2:
		return color.New(color.FgBlue)
	case hypnogram.N3:
		return color.New(color.FgMagenta)
	case hypnogram.REM:
		return color.New(color.FgRed)
	default:
		return color.New(color.FgHiBlack)
	}
}

func stageGlyph(s hypnogram.Stage) string {
	switch s {
	case hypnogram.Wake:
		return "W"
	case hypnogram.N1:
		return "1"
	case hypnogram.N2:
		return "2"
	case hypnogram.N3:
		return "3"
	case hypnogram.REM:
		return "R"
	case hypnogram.Movement:
		return "M"
	default:
		return "?"
	}
}

// Timeline renders the resampled epoch channel as stage glyph rows
// with a cycle-index lane beneath each row. Falls back to the raw
// record channel when the result carries no epochs.
func Timeline(result *analyzer.Result) string {
	epochs := result.Epochs
	if len(epochs) == 0 {
		epochs = result.Records
	}
	if len(epochs) == 0 {
		return ""
	}

	var out strings.Builder
	out.WriteString("🛌 Hypnogram (dominant stage per epoch)\n")
	out.WriteString(strings.Repeat("─", epochsPerRow+8) + "\n")

	for row := 0; row*epochsPerRow < len(epochs); row++ {
		lo := row * epochsPerRow
		hi := min(lo+epochsPerRow, len(epochs))

		out.WriteString(fmt.Sprintf("%8s  ", clock(epochs[lo].Onset)))
		for _, e := range epochs[lo:hi] {
			out.WriteString(stageColor(e.Stage).Sprint(stageGlyph(e.Stage)))
		}
		out.WriteString("\n" + strings.Repeat(" ", 10))
		for _, e := range epochs[lo:hi] {
			if e.Cycle != nil {
				out.WriteString(fmt.Sprintf("%d", *e.Cycle%10))
			} else {
				out.WriteString("·")
			}
		}
		out.WriteString("\n")
	}
	return out.String()
}

// Cycles renders the cycle list as an aligned table.
func Cycles(detected []cycles.Cycle) string {
	var out strings.Builder
	bold := color.New(color.Bold)

	out.WriteString("🔁 Detected sleep cycles\n")
	if len(detected) == 0 {
		out.WriteString("  none\n")
		return out.String()
	}

	out.WriteString(bold.Sprintf("  %-6s %9s %9s %9s  %s\n", "cycle", "onset", "offset", "length", "closed by"))
	for _, c := range detected {
		out.WriteString(fmt.Sprintf("  %-6d %9s %9s %9s  %s\n",
			c.Index, clock(c.Onset), clock(c.Offset), minutes(c.Duration()), reasonLabel(c.Reason)))
	}
	return out.String()
}

// WakeRuns renders the classified wake runs.
func WakeRuns(wakes []hypnogram.WakeRun) string {
	var out strings.Builder
	out.WriteString("⏰ Wake runs\n")
	if len(wakes) == 0 {
		out.WriteString("  none\n")
		return out.String()
	}
	for _, w := range wakes {
		c := color.New(color.FgYellow)
		if w.Kind == hypnogram.LongWake {
			c = color.New(color.FgRed)
		}
		out.WriteString(fmt.Sprintf("  %9s - %9s  %9s  %s\n",
			clock(w.Onset), clock(w.Offset), minutes(w.Duration()), c.Sprint(string(w.Kind))))
	}
	return out.String()
}

func reasonLabel(r cycles.OffsetReason) string {
	switch r {
	case cycles.OffsetLastREM:
		return "last REM"
	case cycles.OffsetLastN3BeforeShortWake:
		return "last N3 before short wake"
	case cycles.OffsetFirstLongWakeOnset:
		return "first long wake onset"
	case cycles.OffsetEndOfRecording:
		return "end of recording"
	default:
		return string(r)
	}
}

// clock formats an offset into the recording as h:mm:ss.
func clock(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	return fmt.Sprintf("%d:%02d:%02d", h, m, s)
}

func minutes(d time.Duration) string {
	return fmt.Sprintf("%.1fm", d.Minutes())
}
