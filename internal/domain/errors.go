package domain

import "errors"

var (
	// Order placement failures.
	ErrMarketClosed          = errors.New("market closed")
	ErrInvalidLevels         = errors.New("invalid levels")
	ErrInsufficientMargin    = errors.New("insufficient margin")
	ErrPositionLimitExceeded = errors.New("position limit exceeded")
	ErrMarketHalted          = errors.New("market halted")
	ErrOrderRejected         = errors.New("order rejected")
	ErrOrderNotFilled        = errors.New("order not filled")

	// Data-plane failures.
	ErrPriceUnavailable  = errors.New("price unavailable")
	ErrCloseFailed       = errors.New("close failed")
	ErrLedgerUnavailable = errors.New("ledger unavailable")

	// Generic.
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrLockHeld     = errors.New("lock already held")
)

// ErrorCode is the stable machine-readable code exposed by the API.
type ErrorCode string

const (
	CodeMarketClosed          ErrorCode = "MARKET_CLOSED"
	CodeInvalidLevels         ErrorCode = "INVALID_LEVELS"
	CodeInsufficientMargin    ErrorCode = "INSUFFICIENT_MARGIN"
	CodePositionLimitExceeded ErrorCode = "POSITION_LIMIT_EXCEEDED"
	CodeMarketHalted          ErrorCode = "MARKET_HALTED"
	CodeOrderRejected         ErrorCode = "ORDER_REJECTED"
	CodeOrderNotFilled        ErrorCode = "ORDER_NOT_FILLED"
	CodePriceUnavailable      ErrorCode = "PRICE_UNAVAILABLE"
	CodeCloseFailed           ErrorCode = "CLOSE_FAILED"
	CodeLedgerUnavailable     ErrorCode = "LEDGER_UNAVAILABLE"
	CodeNotFound              ErrorCode = "NOT_FOUND"
	CodeUnauthorized          ErrorCode = "UNAUTHORIZED"
	CodeUnknown               ErrorCode = "UNKNOWN"
)

// Classify maps an error chain onto its taxonomy code. Unrecognized errors
// classify as CodeUnknown.
func Classify(err error) ErrorCode {
	switch {
	case errors.Is(err, ErrMarketClosed):
		return CodeMarketClosed
	case errors.Is(err, ErrInvalidLevels):
		return CodeInvalidLevels
	case errors.Is(err, ErrInsufficientMargin):
		return CodeInsufficientMargin
	case errors.Is(err, ErrPositionLimitExceeded):
		return CodePositionLimitExceeded
	case errors.Is(err, ErrMarketHalted):
		return CodeMarketHalted
	case errors.Is(err, ErrOrderNotFilled):
		return CodeOrderNotFilled
	case errors.Is(err, ErrOrderRejected):
		return CodeOrderRejected
	case errors.Is(err, ErrPriceUnavailable):
		return CodePriceUnavailable
	case errors.Is(err, ErrCloseFailed):
		return CodeCloseFailed
	case errors.Is(err, ErrLedgerUnavailable):
		return CodeLedgerUnavailable
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrUnauthorized):
		return CodeUnauthorized
	default:
		return CodeUnknown
	}
}
