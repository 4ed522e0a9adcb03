package table

import (
	"encoding/json"
	"fmt"

	"github.com/coder/quartz"

	"github.com/feltnet/felt/poker"
)

// Status is a player's standing at the table.
type Status uint8

const (
	StatusWaiting Status = iota
	StatusActive
	StatusFolded
	StatusAllIn
	StatusSittingOut
)

// String returns the wire name of the status.
func (s Status) String() string {
	switch s {
	case StatusWaiting:
		return "waiting"
	case StatusActive:
		return "active"
	case StatusFolded:
		return "folded"
	case StatusAllIn:
		return "all-in"
	case StatusSittingOut:
		return "sitting-out"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the status as its wire name.
func (s Status) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// UnmarshalJSON parses a wire name back into a status.
func (s *Status) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	switch name {
	case "waiting":
		*s = StatusWaiting
	case "active":
		*s = StatusActive
	case "folded":
		*s = StatusFolded
	case "all-in":
		*s = StatusAllIn
	case "sitting-out":
		*s = StatusSittingOut
	default:
		return fmt.Errorf("unknown status %q", name)
	}
	return nil
}

// Player is a seat record. All fields are owned by the table actor that
// seats the player; nothing outside the actor loop touches them.
type Player struct {
	Token string
	Name  string
	Seat  int

	Stack     int
	HoleCards []poker.Card
	Status    Status

	// Per-street and per-hand commitments. CurrentBet resets each street,
	// TotalBetThisHand each hand; CurrentBet never exceeds TotalBetThisHand.
	CurrentBet       int
	TotalBetThisHand int

	// acted records a voluntary action this street. Blind posts do not set
	// it, so the blinds still close the preflop round themselves.
	acted      bool
	LastAction string

	TimeBank     int // seconds remaining, consumed only after the turn timer expires
	SitOut       bool
	Disconnected bool

	// Session stats.
	HandsPlayed int
	HandsWon    int
	Elo         float64

	sitOutTimer *quartz.Timer
	sitOutSeq   uint64

	// pendingRemove keeps the seat occupied as a folded ghost until the
	// hand ends, so pot layering still sees the departed contribution.
	pendingRemove bool
}

// inHand reports whether the player is participating in the current hand.
func (p *Player) inHand() bool {
	return p.Status == StatusActive || p.Status == StatusFolded || p.Status == StatusAllIn
}

// contender reports whether the player can still win a pot.
func (p *Player) contender() bool {
	return p.Status == StatusActive || p.Status == StatusAllIn
}

// canAct reports whether the player may still take actions this hand.
func (p *Player) canAct() bool {
	return p.Status == StatusActive
}

// resetForHand clears per-hand state and recomputes the player's status
// for the next deal.
func (p *Player) resetForHand() {
	p.HoleCards = nil
	p.CurrentBet = 0
	p.TotalBetThisHand = 0
	p.acted = false
	p.LastAction = ""
	if p.Stack > 0 && !p.SitOut {
		p.Status = StatusActive
	} else {
		p.Status = StatusSittingOut
	}
}

// commit moves up to amount chips from the stack into the current bet,
// returning the chips actually moved. Going broke marks the player all-in.
func (p *Player) commit(amount int) int {
	if amount > p.Stack {
		amount = p.Stack
	}
	p.Stack -= amount
	p.CurrentBet += amount
	p.TotalBetThisHand += amount
	if p.Stack == 0 && p.Status == StatusActive {
		p.Status = StatusAllIn
	}
	return amount
}
