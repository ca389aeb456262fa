// Package logger writes ragqa's diagnostics to stderr, keeping stdout for
// results (chunks, answers, summaries).
//
// Levels follow who needs the line:
//
//   - Section and Debug trace the pipeline step by step (config path, chunks
//     per document, snapshot decisions, retrieval counts). Verbose only.
//   - Info reports the outcome of an ingest. Verbose only, since the
//     commands already print their own summary.
//   - Warn marks a fallback the user pays for without an error: an embedding
//     request retried or a snapshot ignored and the corpus embedded again.
//     Always written.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

var (
	mu      sync.RWMutex
	verbose bool
	output  io.Writer = os.Stderr
)

// SetVerbose turns pipeline tracing on or off.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
}

// IsVerbose reports whether tracing is on.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput redirects all log lines. Defaults to os.Stderr.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

func write(always bool, prefix, format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	if always || verbose {
		fmt.Fprintf(output, prefix+format+"\n", args...)
	}
}

func Debug(format string, args ...any) { write(false, "[DEBUG] ", format, args...) }

func Info(format string, args ...any) { write(false, "[INFO] ", format, args...) }

func Warn(format string, args ...any) { write(true, "[WARN] ", format, args...) }

// Section starts a named block of trace lines, one per pipeline stage.
func Section(name string) {
	mu.RLock()
	defer mu.RUnlock()
	if verbose {
		fmt.Fprintf(output, "\n=== %s ===\n", name)
	}
}

// Since traces how long step took, counting from start.
//
//	defer logger.Since("embed", time.Now())
func Since(step string, start time.Time) {
	Debug("%s took %s", step, time.Since(start).Round(time.Millisecond))
}
