package engine

import (
	"math"

	"github.com/alanyoungcy/fxbot/internal/domain"
)

// partialCloseFraction is the share of the remaining size closed when the
// first take-profit is reached.
const partialCloseFraction = 0.75

// exitAction is the single exit that fires for a position on one tick.
type exitAction int

const (
	exitNone exitAction = iota
	exitTP1
	exitTP2
	exitSL
)

func (a exitAction) String() string {
	switch a {
	case exitTP1:
		return "tp1"
	case exitTP2:
		return "tp2"
	case exitSL:
		return "sl"
	default:
		return "none"
	}
}

// evaluateExit decides which exit, if any, fires for the position at the
// given live price. At most one action is returned per evaluation, with
// fixed priority TP1 before TP2 before SL: the hit-flags make the decision
// idempotent under repeated ticks at an unchanged price, and a gap that
// crosses several levels at once resolves to the highest-priority branch
// whose condition holds right now.
func evaluateExit(pos domain.Position, price float64) exitAction {
	switch {
	case !pos.TP1Hit && crossedFavorably(pos.Direction, price, pos.TP1):
		return exitTP1
	case pos.TP1Hit && !pos.TP2Hit && crossedFavorably(pos.Direction, price, pos.TP2):
		return exitTP2
	case !pos.SLHit && crossedAdversely(pos.Direction, price, pos.SL):
		return exitSL
	default:
		return exitNone
	}
}

// exitPrice picks the side of the book a close would execute at: a long
// sells into the bid, a short buys back at the ask.
func exitPrice(d domain.Direction, q domain.Quote) float64 {
	if d == domain.DirectionShort {
		return q.Ask
	}
	return q.Bid
}

// crossedFavorably reports whether the price has reached a take-profit
// level: at or above for longs, at or below for shorts.
func crossedFavorably(d domain.Direction, price, level float64) bool {
	if d == domain.DirectionShort {
		return price <= level
	}
	return price >= level
}

// crossedAdversely reports whether the price has reached the stop-loss
// level: at or below for longs, at or above for shorts.
func crossedAdversely(d domain.Direction, price, level float64) bool {
	if d == domain.DirectionShort {
		return price >= level
	}
	return price <= level
}

// partialCloseUnits returns the positive integer unit count to close at
// TP1: 75% of the broker-reported remaining size, floored.
func partialCloseUnits(brokerUnits float64) int64 {
	return int64(math.Floor(math.Abs(brokerUnits) * partialCloseFraction))
}
