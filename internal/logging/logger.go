// Package logging provides leveled logging and step tracing for schelling.
// It offers two complementary outputs:
//   - A leveled slog.Logger for stderr (operational output)
//   - A StepTracer for structured JSONL step traces (<data dir>/steps.jsonl)
package logging

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LevelTrace is a custom slog level below Debug. At this level every
// relocation step is logged, not only the run summary.
const LevelTrace = slog.LevelDebug - 4

// TraceFile is the name of the JSONL file written by StepTracer.
const TraceFile = "steps.jsonl"

// ParseLevel maps a string level name to a slog.Level.
// Supported values: "info", "debug", "trace" (case-insensitive).
// Unknown values default to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "trace":
		return LevelTrace
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a leveled slog.Logger writing text records to w.
func NewLogger(level string, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(level),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key != slog.LevelKey {
				return a
			}
			if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
				a.Value = slog.StringValue("TRACE")
			}
			return a
		},
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// StepEvent is one line of the step trace.
type StepEvent struct {
	Time        time.Time `json:"time"`
	RunID       string    `json:"run_id"`
	Step        int       `json:"step"`
	Unsatisfied int       `json:"unsatisfied"`
	Empty       int       `json:"empty"`
	Similarity  float64   `json:"similarity"`
}

// StepTracer appends StepEvents to a JSONL file. It is safe for concurrent
// use. A nil StepTracer is valid; all methods are no-ops on a nil receiver.
type StepTracer struct {
	mu   sync.Mutex
	file *os.File
	now  func() time.Time
}

// NewStepTracer opens dir/steps.jsonl for append when level is "debug" or
// "trace". At "info" it returns nil and no file is created. It also returns
// nil when the file cannot be opened.
func NewStepTracer(dir string, level string) *StepTracer {
	if ParseLevel(level) == slog.LevelInfo {
		return nil
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil
	}

	f, err := os.OpenFile(filepath.Join(dir, TraceFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil
	}

	return &StepTracer{file: f, now: time.Now}
}

// Record writes ev as a single JSON line, stamping Time when it is zero.
func (st *StepTracer) Record(ev StepEvent) {
	if st == nil {
		return
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if st.file == nil {
		return
	}
	if ev.Time.IsZero() {
		ev.Time = st.now().UTC()
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	_, _ = st.file.Write(append(data, '\n'))
}

// Close closes the trace file. Safe to call on nil receiver or twice.
func (st *StepTracer) Close() {
	if st == nil {
		return
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if st.file != nil {
		st.file.Close()
		st.file = nil
	}
}
