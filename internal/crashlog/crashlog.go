// Package crashlog records recovered panics as JSON lines.
package crashlog

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Incident struct {
	ID      string
	TraceID string
	Method  string
	Path    string
	Panic   any
	Stack   []byte
	At      time.Time
}

// Recorder appends incidents to a file. The file is opened on the first
// incident, so a process that never panics leaves nothing on disk.
type Recorder struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	logger *zerolog.Logger
}

func NewFileRecorder(path string) *Recorder {
	return &Recorder{path: path}
}

// NewRecorder writes to w instead of a file.
func NewRecorder(w io.Writer) *Recorder {
	logger := newLogger(w)
	return &Recorder{logger: &logger}
}

func NewIncidentID() string {
	return uuid.NewString()
}

func (r *Recorder) Record(incident Incident) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.logger == nil {
		if r.path == "" {
			return fmt.Errorf("crash log path is not configured")
		}
		file, err := os.OpenFile(r.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open crash log %s: %w", r.path, err)
		}
		logger := newLogger(file)
		r.file = file
		r.logger = &logger
	}

	if incident.ID == "" {
		incident.ID = NewIncidentID()
	}
	if incident.At.IsZero() {
		incident.At = time.Now().UTC()
	}
	r.logger.Error().
		Time("at", incident.At).
		Str("incident_id", incident.ID).
		Str("trace_id", incident.TraceID).
		Str("method", incident.Method).
		Str("path", incident.Path).
		Str("panic", fmt.Sprint(incident.Panic)).
		Str("stack", string(incident.Stack)).
		Msg("unhandled panic")
	if r.file != nil {
		return r.file.Sync()
	}
	return nil
}

func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	r.logger = nil
	return err
}

func newLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Str("component", "salesql-api").Logger()
}
