// Package main implements the hypnocycle web server: a JSON API that
// loads hypnograms, runs cycle detection, and caches results.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/somnolab/hypnocycle/pkg/analyzer"
	"github.com/somnolab/hypnocycle/pkg/cycles"
	"github.com/somnolab/hypnocycle/pkg/hypnogram"
	"github.com/somnolab/hypnocycle/pkg/hypnoio"
	"github.com/somnolab/hypnocycle/pkg/resample"
	"github.com/somnolab/hypnocycle/pkg/resultcache"
)

var (
	port     = flag.String("port", "8080", "Port for web server")
	dataDir  = flag.String("data-dir", ".", "Directory hypnogram files are served from (or set DATA_DIR)")
	cacheTTL = flag.Duration("cache-ttl", 12*time.Hour, "Result cache TTL")
	verbose  = flag.Bool("verbose", false, "Enable verbose logging")
	version  = flag.Bool("version", false, "Show version")
)

type rateLimiter struct {
	requests map[string][]time.Time
	mu       sync.Mutex
}

func newRateLimiter() *rateLimiter {
	return &rateLimiter{requests: make(map[string][]time.Time)}
}

func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-time.Minute)

	var valid []time.Time
	for _, t := range rl.requests[ip] {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}

	// Rate limit: 30 requests per minute per IP
	if len(valid) >= 30 {
		rl.requests[ip] = valid
		return false
	}

	rl.requests[ip] = append(valid, now)
	return true
}

type server struct {
	cache   *resultcache.Cache
	limiter *rateLimiter
	logger  *slog.Logger
	dataDir string
}

func main() {
	flag.Parse()

	if *version {
		fmt.Println("hypnocycle Server v1.2.0")
		return
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if env := os.Getenv("DATA_DIR"); env != "" && *dataDir == "." {
		*dataDir = env
	}

	logger.Info("Server configuration",
		"port", *port,
		"verbose", *verbose,
		"data_dir", *dataDir,
		"cache_ttl", *cacheTTL)

	srv := &server{
		cache:   resultcache.New(*cacheTTL, logger),
		limiter: newRateLimiter(),
		logger:  logger,
		dataDir: *dataDir,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/analyze", srv.handleAnalyze)
	mux.HandleFunc("GET /healthz", srv.handleHealth)

	httpSrv := &http.Server{
		Addr:              ":" + *port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info("Server starting", "port", *port)
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		logger.Error("Shutdown failed", "error", err)
	}
	logger.Info("Server stopped")
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok")); err != nil {
		s.logger.Debug("writing health response", "error", err)
	}
}

func (s *server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}
	if !s.limiter.allow(ip) {
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		return
	}

	params, err := parseParams(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	key := resultcache.Key(params.source, params.wakeThreshold, params.minLength,
		params.minSeparation, params.epoch, params.dropTrailing)
	if result, ok := s.cache.Get(key); ok {
		s.writeJSON(w, result)
		return
	}

	seq, err := hypnoio.Load(r.Context(), s.resolveSource(params.source), s.logger)
	if err != nil {
		s.logger.Warn("loading hypnogram failed", "source", params.source, "error", err)
		http.Error(w, "could not load hypnogram", http.StatusBadGateway)
		return
	}

	trailing := cycles.TrailingEmit
	if params.dropTrailing {
		trailing = cycles.TrailingDrop
	}
	result, err := analyzer.Analyze(seq,
		analyzer.WithWakeThreshold(params.wakeThreshold),
		analyzer.WithMinLength(params.minLength),
		analyzer.WithMinSeparation(params.minSeparation),
		analyzer.WithEpoch(params.epoch),
		analyzer.WithTrailingPolicy(trailing),
		analyzer.WithLogger(s.logger),
	)
	switch {
	case err == nil:
	case errors.Is(err, hypnogram.ErrMalformedSequence),
		errors.Is(err, hypnogram.ErrInvalidThreshold),
		errors.Is(err, cycles.ErrInvalidParameters),
		errors.Is(err, resample.ErrInvalidEpochDuration):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	default:
		s.logger.Error("analysis failed", "source", params.source, "error", err)
		http.Error(w, "analysis failed", http.StatusInternalServerError)
		return
	}

	s.cache.Set(key, result)
	s.writeJSON(w, result)
}

func (s *server) writeJSON(w http.ResponseWriter, result *analyzer.Result) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		s.logger.Debug("writing response", "error", err)
	}
}

// resolveSource keeps relative paths inside the data directory;
// absolute URLs pass through for remote fetching.
func (s *server) resolveSource(source string) string {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return source
	}
	return filepath.Join(s.dataDir, filepath.Clean("/"+source))
}

type analyzeParams struct {
	source        string
	wakeThreshold time.Duration
	minLength     time.Duration
	minSeparation time.Duration
	epoch         time.Duration
	dropTrailing  bool
}

func parseParams(r *http.Request) (analyzeParams, error) {
	q := r.URL.Query()
	p := analyzeParams{
		source:        q.Get("source"),
		wakeThreshold: 2 * time.Minute,
		minLength:     10 * time.Minute,
		minSeparation: 10 * time.Minute,
		epoch:         resample.DefaultEpoch,
	}
	if p.source == "" {
		return p, errors.New("source parameter is required")
	}
	for name, dst := range map[string]*time.Duration{
		"wake_threshold": &p.wakeThreshold,
		"min_length":     &p.minLength,
		"min_separation": &p.minSeparation,
		"epoch":          &p.epoch,
	} {
		if v := q.Get(name); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return p, fmt.Errorf("invalid %s: %w", name, err)
			}
			*dst = d
		}
	}
	p.dropTrailing = q.Get("drop_trailing") == "true"
	return p, nil
}
