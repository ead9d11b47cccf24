package retry

import (
	"context"

	"github.com/sirupsen/logrus"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// AuditLogger writes the retry-chain audit trail (spec §4.4 "a retry
// job records {...} in the durable store") to a rotating local file in
// addition to the durable recorder, so an operator can tail recent
// retry decisions without a database round trip. Rotation keeps the
// file from growing unbounded under a campaign with a high failure
// rate.
type AuditLogger struct {
	log *logrus.Logger
}

// NewAuditLogger opens (or creates) path as a rotating log file:
// maxSizeMB per file, keeping maxBackups old files, each at most
// maxAgeDays old.
func NewAuditLogger(path string, maxSizeMB, maxBackups, maxAgeDays int) *AuditLogger {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
		Compress:   true,
	})
	return &AuditLogger{log: log}
}

// RecordRetryAttempt satisfies AttemptRecorder so an AuditLogger can be
// chained alongside (or instead of) the durable-store recorder.
func (a *AuditLogger) RecordRetryAttempt(_ context.Context, attempt Attempt) error {
	a.log.WithFields(logrus.Fields{
		"original_call_id": attempt.OriginalCallID,
		"contact_id":       attempt.ContactID,
		"attempt_number":   attempt.AttemptNumber,
		"scheduled_for":    attempt.ScheduledFor,
		"failure_kind":     attempt.FailureKind,
		"status":           attempt.Status,
	}).Info("retry attempt")
	return nil
}

// chainedRecorder fans RecordRetryAttempt out to multiple recorders,
// returning the first error encountered (after still calling the
// rest) so a failing sink never silently masks another.
type chainedRecorder struct {
	recorders []AttemptRecorder
}

// ChainRecorders combines recorders (skipping nils) into one
// AttemptRecorder, used to wire an AuditLogger alongside the
// durable-store RetryRecorder in cmd/dispatcherd.
func ChainRecorders(recorders ...AttemptRecorder) AttemptRecorder {
	nonNil := make([]AttemptRecorder, 0, len(recorders))
	for _, r := range recorders {
		if r != nil {
			nonNil = append(nonNil, r)
		}
	}
	if len(nonNil) == 1 {
		return nonNil[0]
	}
	return &chainedRecorder{recorders: nonNil}
}

func (c *chainedRecorder) RecordRetryAttempt(ctx context.Context, attempt Attempt) error {
	var firstErr error
	for _, r := range c.recorders {
		if err := r.RecordRetryAttempt(ctx, attempt); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
