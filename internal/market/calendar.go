// Package market implements the trading session calendar for spot forex
// and metals. All session arithmetic is done in UTC: the market closes for
// the weekend from Friday 22:00 until Sunday 23:10, and for daily
// maintenance between 22:00 and 23:10 on the remaining days.
package market

import (
	"time"

	"github.com/alanyoungcy/fxbot/internal/domain"
)

const (
	// Session boundaries, minutes after UTC midnight.
	closeMinute  = 22 * 60    // 22:00
	reopenMinute = 23*60 + 10 // 23:10
)

// Status evaluates the session state at the given instant. It is a pure
// function of its argument: no clocks, no I/O, no state. When the session
// is closed the returned status carries the reason and the next reopen
// time, which is always strictly after now.
func Status(now time.Time) domain.SessionStatus {
	utc := now.UTC()
	minute := utc.Hour()*60 + utc.Minute()

	// The weekend envelope runs Friday 22:00 through Sunday 23:10 and
	// wins over the daily window where they overlap.
	switch utc.Weekday() {
	case time.Friday:
		if minute >= closeMinute {
			return closedStatus(domain.CloseReasonWeekend, reopenAt(utc.AddDate(0, 0, 2)))
		}
	case time.Saturday:
		return closedStatus(domain.CloseReasonWeekend, reopenAt(utc.AddDate(0, 0, 1)))
	case time.Sunday:
		if minute < reopenMinute {
			return closedStatus(domain.CloseReasonWeekend, reopenAt(utc))
		}
	}

	if minute >= closeMinute && minute < reopenMinute {
		return closedStatus(domain.CloseReasonMaintenance, reopenAt(utc))
	}

	return domain.SessionStatus{IsOpen: true}
}

func closedStatus(reason domain.CloseReason, reopens time.Time) domain.SessionStatus {
	return domain.SessionStatus{
		IsOpen:       false,
		ReasonClosed: reason,
		ReopensAt:    &reopens,
	}
}

// reopenAt returns 23:10 UTC on the given day.
func reopenAt(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), 23, 10, 0, 0, time.UTC)
}
