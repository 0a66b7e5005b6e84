package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Lot multipliers. Metals trade in units of 100 per lot, everything else in
// standard lots of 100,000.
const (
	UnitsPerLotMetal = 100
	UnitsPerLotFX    = 100_000
)

// TradeIntent describes a requested market order before it reaches the
// broker. Levels are absolute prices.
type TradeIntent struct {
	Instrument string
	Direction  Direction
	Lots       float64
	TP1        float64
	TP2        float64
	SL         float64
}

// Units converts the intent's lot size into signed broker units: negative
// for shorts, scaled by the instrument's lot multiplier.
func (t TradeIntent) Units() int64 {
	mult := UnitsPerLotFX
	if IsMetal(t.Instrument) {
		mult = UnitsPerLotMetal
	}
	units := int64(math.Round(t.Lots * float64(mult)))
	if t.Direction == DirectionShort {
		units = -units
	}
	return units
}

// IsMetal reports whether the instrument is a spot metal (gold or silver).
func IsMetal(instrument string) bool {
	s := strings.ToUpper(instrument)
	return strings.HasPrefix(s, "XAU") || strings.HasPrefix(s, "XAG")
}

// NormalizeInstrument converts compact symbols like "EURUSD" or "XAUUSD"
// into the broker's underscore form ("EUR_USD", "XAU_USD"). Symbols that
// already contain an underscore pass through unchanged.
func NormalizeInstrument(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if strings.Contains(s, "_") || len(s) != 6 {
		return s
	}
	return s[:3] + "_" + s[3:]
}

// AccountSummary is the broker account's balance together with the
// floating profit or loss of its open trades.
type AccountSummary struct {
	Balance      float64
	UnrealizedPL float64
}

// Quote is a two-sided price at a point in time.
type Quote struct {
	Instrument string
	Bid        float64
	Ask        float64
	Time       time.Time
}

// Reference returns the price a new order of the given direction would
// execute against: the ask for longs, the bid for shorts.
func (q Quote) Reference(d Direction) float64 {
	if d == DirectionShort {
		return q.Bid
	}
	return q.Ask
}

// ValidateLevels checks a new order's levels against the reference price.
// All comparisons are strict: a level equal to the reference is rejected.
func ValidateLevels(d Direction, ref, tp1, tp2, sl float64) error {
	switch d {
	case DirectionLong:
		if tp1 <= ref {
			return fmt.Errorf("take profit 1 (%.5f) must be above the current price (%.5f): %w", tp1, ref, ErrInvalidLevels)
		}
		if tp2 <= ref {
			return fmt.Errorf("take profit 2 (%.5f) must be above the current price (%.5f): %w", tp2, ref, ErrInvalidLevels)
		}
		if sl >= ref {
			return fmt.Errorf("stop loss (%.5f) must be below the current price (%.5f): %w", sl, ref, ErrInvalidLevels)
		}
		if tp1 >= tp2 {
			return fmt.Errorf("take profit 1 (%.5f) must be below take profit 2 (%.5f): %w", tp1, tp2, ErrInvalidLevels)
		}
	case DirectionShort:
		if tp1 >= ref {
			return fmt.Errorf("take profit 1 (%.5f) must be below the current price (%.5f): %w", tp1, ref, ErrInvalidLevels)
		}
		if tp2 >= ref {
			return fmt.Errorf("take profit 2 (%.5f) must be below the current price (%.5f): %w", tp2, ref, ErrInvalidLevels)
		}
		if sl <= ref {
			return fmt.Errorf("stop loss (%.5f) must be above the current price (%.5f): %w", sl, ref, ErrInvalidLevels)
		}
		if tp1 <= tp2 {
			return fmt.Errorf("take profit 1 (%.5f) must be above take profit 2 (%.5f): %w", tp1, tp2, ErrInvalidLevels)
		}
	default:
		return fmt.Errorf("unknown direction %q: %w", d, ErrInvalidLevels)
	}
	return nil
}

// BrokerTrade is an open trade as reported by the broker.
type BrokerTrade struct {
	ID           string
	Instrument   string
	Units        float64 // signed: negative means short
	Price        float64 // open/fill price
	UnrealizedPL float64
	OpenTime     time.Time
}

// Direction derives the exposure direction from the sign of the units.
func (t BrokerTrade) Direction() Direction {
	if t.Units < 0 {
		return DirectionShort
	}
	return DirectionLong
}

// Lots converts the broker's signed units back into a positive lot size.
func (t BrokerTrade) Lots() float64 {
	mult := float64(UnitsPerLotFX)
	if IsMetal(t.Instrument) {
		mult = float64(UnitsPerLotMetal)
	}
	return math.Abs(t.Units) / mult
}

// OrderTicket is the result of a filled market order.
type OrderTicket struct {
	BrokerTradeID string
	FillPrice     float64
	Units         int64
	Time          time.Time
}
