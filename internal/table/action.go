package table

import "fmt"

// ActionType enumerates the player actions accepted mid-hand.
type ActionType uint8

const (
	Fold ActionType = iota
	Check
	Call
	Raise
)

// String returns the wire name of the action.
func (a ActionType) String() string {
	switch a {
	case Fold:
		return "fold"
	case Check:
		return "check"
	case Call:
		return "call"
	case Raise:
		return "raise"
	default:
		return "unknown"
	}
}

// Action is a tagged action variant. Amount is the total bet level raised
// to and is only meaningful for Raise.
type Action struct {
	Type   ActionType
	Amount int
}

// ParseActionType maps a wire string onto an ActionType.
func ParseActionType(s string) (ActionType, error) {
	switch s {
	case "fold":
		return Fold, nil
	case "check":
		return Check, nil
	case "call":
		return Call, nil
	case "raise":
		return Raise, nil
	default:
		return 0, fmt.Errorf("unknown action %q", s)
	}
}
