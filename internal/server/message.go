package server

import (
	"errors"

	"github.com/feltnet/felt/internal/table"
)

// Wire types for the request/response API. Push events go out as
// table.Event envelopes unchanged.

// JoinRequest seats a new player.
type JoinRequest struct {
	Name  string `json:"name"`
	Table string `json:"table,omitempty"` // empty picks the first configured table
	BuyIn int    `json:"buyIn,omitempty"` // 0 uses the table default
}

// JoinResponse carries the session token the client uses from then on.
type JoinResponse struct {
	Token   string `json:"token"`
	TableID string `json:"tableId"`
	Seat    int    `json:"seat"`
	Stack   int    `json:"stack"`
	Welcome string `json:"welcome"`
}

// ActionRequest applies a betting action for the token's player.
type ActionRequest struct {
	Token  string `json:"token"`
	Action string `json:"action"`
	Amount int    `json:"amount,omitempty"` // total level raised to
}

// ActionResponse acknowledges the applied action.
type ActionResponse struct {
	Applied string `json:"applied"`
}

// TokenRequest is the body for leave, sit-out, return and state calls
// that take nothing but the session token.
type TokenRequest struct {
	Token string `json:"token"`
}

// LeaveResponse returns the chips the player walks away with.
type LeaveResponse struct {
	FinalStack int `json:"finalStack"`
}

// RebuyRequest tops up a stack between hands.
type RebuyRequest struct {
	Token  string `json:"token"`
	Amount int    `json:"amount"`
}

// RebuyResponse carries the stack after the top-up.
type RebuyResponse struct {
	Stack int `json:"stack"`
}

// TablesResponse lists the public view of every table.
type TablesResponse struct {
	Tables []table.View `json:"tables"`
}

// HistoryResponse carries recent hand records, newest first.
type HistoryResponse struct {
	TableID string             `json:"tableId"`
	Hands   []table.HandRecord `json:"hands"`
}

// ErrorPayload is the wire form of every error the API returns.
type ErrorPayload struct {
	Kind         string `json:"kind"`
	Code         string `json:"code"`
	HumanMessage string `json:"humanMessage"`
}

// errorPayload maps any error onto the wire taxonomy. Table errors keep
// their kind and code; anything else is reported as internal.
func errorPayload(err error) ErrorPayload {
	var terr *table.Error
	if errors.As(err, &terr) {
		return ErrorPayload{Kind: string(terr.Kind), Code: terr.Code, HumanMessage: terr.Message}
	}
	return ErrorPayload{Kind: string(table.KindResource), Code: "internal", HumanMessage: err.Error()}
}

// httpStatus picks the response status for an error payload.
func httpStatus(p ErrorPayload) int {
	switch p.Code {
	case "unknown_player", "unknown_table":
		return 404
	case "table_full", "duplicate_name":
		return 409
	case "internal", "table_closed":
		return 500
	default:
		return 400
	}
}
