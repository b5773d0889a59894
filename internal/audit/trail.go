// Package audit maintains the append-only intake trail. One line is written
// per intake call, including suppressed and silent outcomes. The trail is
// write-only: nothing in the engine ever reads it back.
package audit

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/batterybuildsog1/Project-manager/internal/models"
	"github.com/batterybuildsog1/Project-manager/pkg/logger"
)

// Outcomes recorded on the trail.
const (
	OutcomeCreated    = "created"
	OutcomeSent       = "sent"
	OutcomeQueued     = "queued"
	OutcomeSuppressed = "suppressed"
	OutcomeLogged     = "logged"
)

const maxMessageLen = 200

// Trail appends one JSON line per intake outcome to a log file.
type Trail struct {
	log *zap.Logger
}

// NewTrail opens (or creates) the trail file at path.
func NewTrail(path string) (*Trail, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	fileLogger, err := logger.NewFileLogger(path)
	if err != nil {
		return nil, err
	}
	return &Trail{log: fileLogger}, nil
}

// NewTrailWithLogger wires a preconfigured logger, primarily for tests.
func NewTrailWithLogger(log *zap.Logger) *Trail {
	if log == nil {
		log = zap.NewNop()
	}
	return &Trail{log: log}
}

// Record appends one line for an intake outcome. Failures to write are
// swallowed by the zap core; the trail must never fail an intake call.
func (t *Trail) Record(priority models.Priority, eventKind, outcome, message string) {
	if t == nil || t.log == nil {
		return
	}

	if len(message) > maxMessageLen {
		message = message[:maxMessageLen]
	}

	t.log.Info("notification",
		zap.String("priority", string(priority)),
		zap.String("event_kind", eventKind),
		zap.String("outcome", outcome),
		zap.String("message", message),
	)
}

// Close flushes buffered lines.
func (t *Trail) Close() {
	if t != nil && t.log != nil {
		_ = t.log.Sync()
	}
}
