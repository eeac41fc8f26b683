// Package hypnoio loads tabulated hypnograms into stage sequences.
// It understands the CSV shape exported by scoring tools (Entry,
// Onset, Duration, Stage with times in minutes) from local files or
// http(s) sources.
package hypnoio

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"

	"github.com/somnolab/hypnocycle/pkg/hypnogram"
)

// Load reads a hypnogram from a local path or an http(s) URL and
// returns a validated stage sequence.
func Load(ctx context.Context, source string, logger *slog.Logger) (hypnogram.Sequence, error) {
	var data []byte
	var err error
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		data, err = fetch(ctx, source, logger)
	} else {
		data, err = os.ReadFile(source)
	}
	if err != nil {
		return nil, fmt.Errorf("reading hypnogram %s: %w", source, err)
	}
	return Parse(bytes.NewReader(data))
}

// Parse decodes a tabulated CSV hypnogram. The header names columns;
// Onset and Duration are minutes, Stage accepts the scored labels and
// their integer NREM aliases. Extra columns are ignored.
func Parse(r io.Reader) (hypnogram.Sequence, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading hypnogram header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{"Onset", "Duration", "Stage"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("hypnogram CSV missing %s column", required)
		}
	}

	var seq hypnogram.Sequence
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading hypnogram row: %w", err)
		}
		rec, err := parseRecord(row, cols)
		if err != nil {
			return nil, fmt.Errorf("hypnogram line %d: %w", line, err)
		}
		seq = append(seq, rec)
	}

	if err := seq.Validate(); err != nil {
		return nil, err
	}
	return seq, nil
}

func parseRecord(row []string, cols map[string]int) (hypnogram.Record, error) {
	onset, err := minutesField(row, cols["Onset"])
	if err != nil {
		return hypnogram.Record{}, fmt.Errorf("onset: %w", err)
	}
	duration, err := minutesField(row, cols["Duration"])
	if err != nil {
		return hypnogram.Record{}, fmt.Errorf("duration: %w", err)
	}
	stage, err := hypnogram.ParseStage(strings.TrimSpace(row[cols["Stage"]]))
	if err != nil {
		return hypnogram.Record{}, err
	}
	return hypnogram.Record{Onset: onset, Duration: duration, Stage: stage}, nil
}

func minutesField(row []string, col int) (time.Duration, error) {
	if col >= len(row) {
		return 0, errors.New("missing value")
	}
	minutes, err := strconv.ParseFloat(strings.TrimSpace(row[col]), 64)
	if err != nil {
		return 0, fmt.Errorf("parsing minutes: %w", err)
	}
	return time.Duration(minutes * float64(time.Minute)), nil
}

// fetch downloads a remote hypnogram with exponential backoff and
// jitter, retrying on server errors and rate limiting.
func fetch(ctx context.Context, url string, logger *slog.Logger) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "text/csv")
	req.Header.Set("User-Agent", "hypnocycle/1.0")

	client := &http.Client{Timeout: 30 * time.Second}

	var data []byte
	err = retry.Do(
		func() error {
			resp, doErr := client.Do(req)
			if doErr != nil {
				return doErr
			}
			defer func() {
				if closeErr := resp.Body.Close(); closeErr != nil {
					logger.Debug("failed to close response body", "error", closeErr)
				}
			}()
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
				return fmt.Errorf("HTTP %d", resp.StatusCode)
			}
			if resp.StatusCode != http.StatusOK {
				return retry.Unrecoverable(fmt.Errorf("HTTP %d", resp.StatusCode))
			}
			body, readErr := io.ReadAll(resp.Body)
			if readErr != nil {
				return fmt.Errorf("reading body: %w", readErr)
			}
			data = body
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(5),
		retry.Delay(time.Second),
		retry.MaxDelay(30*time.Second),
		retry.DelayType(retry.FullJitterBackoffDelay),
		retry.OnRetry(func(n uint, err error) {
			logger.Debug("retrying hypnogram fetch", "attempt", n+1, "url", url, "error", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("fetching after retries: %w", err)
	}
	return data, nil
}
