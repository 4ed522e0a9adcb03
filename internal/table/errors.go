package table

import "fmt"

// ErrorKind classifies errors for the transport layer. Every error that
// crosses the table boundary carries a kind and a human-readable message.
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindRouting    ErrorKind = "routing"
	KindState      ErrorKind = "state"
	KindResource   ErrorKind = "resource"
)

// Error is the table's error type. Code is a stable machine-readable
// identifier; Message is for humans.
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Code    string    `json:"code"`
	Message string    `json:"humanMessage"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches errors by code so callers can use errors.Is against the
// sentinel constructors below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

func errTableFull() *Error {
	return &Error{Kind: KindRouting, Code: "table_full", Message: "table is full"}
}

func errUnknownPlayer() *Error {
	return &Error{Kind: KindRouting, Code: "unknown_player", Message: "unknown player token"}
}

func errNoActiveHand() *Error {
	return &Error{Kind: KindState, Code: "no_active_hand", Message: "no hand in progress"}
}

func errNotYourTurn() *Error {
	return &Error{Kind: KindState, Code: "not_your_turn", Message: "it is not your turn to act"}
}

func errIllegalAction(reason string) *Error {
	return &Error{Kind: KindState, Code: "illegal_action", Message: reason}
}

func errIllegalState(reason string) *Error {
	return &Error{Kind: KindState, Code: "illegal_state", Message: reason}
}

func errInvalidBuyIn(reason string) *Error {
	return &Error{Kind: KindValidation, Code: "invalid_buy_in", Message: reason}
}

func errExceedsMaxBuyIn(reason string) *Error {
	return &Error{Kind: KindValidation, Code: "exceeds_max_buy_in", Message: reason}
}

func errTableClosed() *Error {
	return &Error{Kind: KindResource, Code: "table_closed", Message: "table has shut down"}
}

func errInternal(reason string) *Error {
	return &Error{Kind: KindResource, Code: "internal", Message: reason}
}

// Sentinels for errors.Is comparisons.
var (
	ErrTableFull       = errTableFull()
	ErrUnknownPlayer   = errUnknownPlayer()
	ErrNoActiveHand    = errNoActiveHand()
	ErrNotYourTurn     = errNotYourTurn()
	ErrIllegalAction   = errIllegalAction("")
	ErrIllegalState    = errIllegalState("")
	ErrInvalidBuyIn    = errInvalidBuyIn("")
	ErrExceedsMaxBuyIn = errExceedsMaxBuyIn("")
	ErrTableClosed     = errTableClosed()
)
