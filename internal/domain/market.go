package domain

import "time"

// CloseReason explains why the trading session is closed.
type CloseReason string

const (
	CloseReasonWeekend     CloseReason = "weekend"
	CloseReasonMaintenance CloseReason = "maintenance"
)

// SessionStatus is the trading session state at a point in time. When the
// session is closed, ReasonClosed is set and ReopensAt is the next instant
// trading resumes, always strictly after the evaluation time.
type SessionStatus struct {
	IsOpen       bool
	ReasonClosed CloseReason
	ReopensAt    *time.Time
}
