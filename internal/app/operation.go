package app

import (
	"time"

	"ttshist/internal/history"
)

// Operation tracks a single CLI invocation. It is recorded in the log when
// it starts and when the app closes.
type Operation struct {
	ID         string
	Operation  string
	Parameters string
	Status     string // "success" or "error"
	StartedAt  time.Time
}

// NewOperation creates an operation named after the CLI command being run.
// The ID doubles as the opID column of the log file.
func NewOperation(operation, parameters string, now time.Time) *Operation {
	return &Operation{
		ID:         now.UTC().Format("20060102T150405Z"),
		Operation:  operation,
		Parameters: parameters,
		Status:     "success",
		StartedAt:  now,
	}
}

// Fail marks the operation as failed.
func (op *Operation) Fail() {
	op.Status = "error"
}

func (op *Operation) logStart(logger history.Logger) {
	logger.Info("operation started", "operation", op.Operation, "parameters", op.Parameters)
}

func (op *Operation) logFinish(logger history.Logger, now time.Time) {
	logger.Info("operation finished",
		"operation", op.Operation,
		"status", op.Status,
		"duration", now.Sub(op.StartedAt).Truncate(time.Millisecond).String(),
	)
}
