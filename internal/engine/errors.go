package engine

import "fmt"

// Code is a closed taxonomy of domain-level failures the engine can report.
// Unlike infra errors (db, cache, network), a Code is stable across
// releases and is safe to expose to a caller over the wire.
type Code string

const (
	CodeInvalidState      Code = "invalid_state"
	CodeUnauthorized      Code = "unauthorized"
	CodeStakeBelowMin     Code = "stake_below_min"
	CodeStakeAboveMax     Code = "stake_above_max"
	CodeMarketEnded       Code = "market_ended"
	CodeMarketNotEnded    Code = "market_not_ended"
	CodeMarketNotSettled  Code = "market_not_settled"
	CodeMarketNotCancelled Code = "market_not_cancelled"
	CodeTicketNotOwned    Code = "ticket_not_owned"
	CodeTicketNotActive   Code = "ticket_not_active"
	CodeTicketDidNotWin   Code = "ticket_did_not_win"
	CodeIndexConflict     Code = "index_conflict"
	CodeIdentifierTooLong Code = "identifier_too_long"
	CodeMathOverflow      Code = "math_overflow"
	CodeNotFound          Code = "not_found"
	CodeInvalidPrincipal  Code = "invalid_principal"
)

// Error is the engine's domain error type. It never wraps infra errors —
// those are returned as plain wrapped errors from stores and propagate as
// opaque failures instead of Codes.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// newErr constructs an *Error, which satisfies the error interface.
func newErr(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// AsError extracts an *Error from err, if any, the way callers at the
// server boundary use it to map a domain failure onto a wire error code.
func AsError(err error) (*Error, bool) {
	e, ok := err.(*Error)
	return e, ok
}
