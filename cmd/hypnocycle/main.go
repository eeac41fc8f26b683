// Package main implements the hypnocycle CLI for NREM-REM sleep cycle
// detection in staged hypnograms.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/somnolab/hypnocycle/pkg/analyzer"
	"github.com/somnolab/hypnocycle/pkg/cycles"
	"github.com/somnolab/hypnocycle/pkg/hypnoio"
	"github.com/somnolab/hypnocycle/pkg/render"
	"github.com/somnolab/hypnocycle/pkg/resample"
)

var (
	wakeThreshold = flag.Duration("wake-threshold", 2*time.Minute, "Wake runs at most this long are short awakenings")
	minLength     = flag.Duration("min-length", 10*time.Minute, "Minimum NREM run span to open a cycle")
	minSeparation = flag.Duration("min-separation", 10*time.Minute, "Minimum gap keeping NREM runs distinct")
	epoch         = flag.Duration("epoch", resample.DefaultEpoch, "Epoch duration for the display grid (0 disables resampling)")
	dropTrailing  = flag.Bool("drop-trailing", false, "Drop a final cycle whose offset never resolves instead of truncating it")
	jsonOut       = flag.Bool("json", false, "Emit the full result as JSON instead of rendering")
	verbose       = flag.Bool("verbose", false, "Enable verbose logging")
	version       = flag.Bool("version", false, "Show version")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Println("hypnocycle CLI v1.2.0")
		return
	}

	args := flag.Args()
	if len(args) != 1 {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <hypnogram.csv | https://...>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}
	source := args[0]

	level := slog.LevelError
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	seq, err := hypnoio.Load(ctx, source, logger)
	if err != nil {
		logger.Error("Loading hypnogram failed", "source", source, "error", err)
		os.Exit(1)
	}

	trailing := cycles.TrailingEmit
	if *dropTrailing {
		trailing = cycles.TrailingDrop
	}

	result, err := analyzer.Analyze(seq,
		analyzer.WithWakeThreshold(*wakeThreshold),
		analyzer.WithMinLength(*minLength),
		analyzer.WithMinSeparation(*minSeparation),
		analyzer.WithEpoch(*epoch),
		analyzer.WithTrailingPolicy(trailing),
		analyzer.WithLogger(logger),
	)
	if err != nil {
		logger.Error("Analysis failed", "source", source, "error", err)
		os.Exit(1)
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			logger.Error("Encoding result failed", "error", err)
			os.Exit(1)
		}
		return
	}

	fmt.Println(render.Timeline(result))
	fmt.Println(render.WakeRuns(result.WakeRuns))
	fmt.Println(render.Cycles(result.Cycles))
}
