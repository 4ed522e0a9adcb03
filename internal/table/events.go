package table

import "github.com/feltnet/felt/poker"

// Event types pushed to clients. Every event carries the table ID and the
// hand number so clients can reconcile out-of-order or missed deliveries
// against the state query.
const (
	EventPlayerJoined   = "player_joined"
	EventPlayerLeft     = "player_left"
	EventBlindsPosted   = "blinds_posted"
	EventCardsDealt     = "cards_dealt"
	EventActionOn       = "action_on"
	EventPlayerAction   = "player_action"
	EventCommunityCards = "community_cards"
	EventTimeBank       = "time_bank"
	EventShowdown       = "showdown"
	EventHandComplete   = "hand_complete"
	EventHandAborted    = "hand_aborted"
	EventMitsuki        = "mitsuki"
)

// Event is a push notification. Data is event-specific and must carry
// enough state for a client to reconstruct its view (delivery is
// best-effort and idempotent).
type Event struct {
	Type       string `json:"type"`
	TableID    string `json:"tableId"`
	HandNumber int    `json:"handNumber"`
	Data       any    `json:"data,omitempty"`
}

// Broadcaster fans events out to push channels. Broadcast goes to every
// client at the table; SendToPlayer only to the sockets of one token.
type Broadcaster interface {
	Broadcast(ev Event)
	SendToPlayer(token string, ev Event)
}

// NopBroadcaster discards all events.
type NopBroadcaster struct{}

func (NopBroadcaster) Broadcast(Event)            {}
func (NopBroadcaster) SendToPlayer(string, Event) {}

// PlayerJoinedData announces a new seat occupant.
type PlayerJoinedData struct {
	Seat  int    `json:"seat"`
	Name  string `json:"name"`
	Stack int    `json:"stack"`
}

// PlayerLeftData announces a vacated seat.
type PlayerLeftData struct {
	Seat   int    `json:"seat"`
	Name   string `json:"name"`
	Reason string `json:"reason,omitempty"`
}

// BlindsPostedData describes the forced bets opening a hand.
type BlindsPostedData struct {
	DealerSeat      int `json:"dealerSeat"`
	SmallBlindSeat  int `json:"smallBlindSeat"`
	SmallBlind      int `json:"smallBlind"`
	BigBlindSeat    int `json:"bigBlindSeat"`
	BigBlind        int `json:"bigBlind"`
	Pot             int `json:"pot"`
	CurrentBetLevel int `json:"currentBetLevel"`
}

// CardsDealtData carries a player's private hole cards.
type CardsDealtData struct {
	Seat      int          `json:"seat"`
	HoleCards []poker.Card `json:"holeCards"`
}

// ActionOnData tells everyone whose turn it is and what the actor faces.
type ActionOnData struct {
	Seat            int    `json:"seat"`
	Name            string `json:"name"`
	Pot             int    `json:"pot"`
	CurrentBetLevel int    `json:"currentBetLevel"`
	CurrentBet      int    `json:"currentBet"`
	ToCall          int    `json:"toCall"`
	MinRaise        int    `json:"minRaise"`
	TimeBank        int    `json:"timeBank"`
	TimeoutMs       int64  `json:"timeoutMs"`
}

// PlayerActionData reports a committed action. Synthetic is set for
// timer- and disconnect-induced folds.
type PlayerActionData struct {
	Seat      int    `json:"seat"`
	Name      string `json:"name"`
	Action    string `json:"action"`
	Amount    int    `json:"amount,omitempty"`
	AllIn     bool   `json:"allIn,omitempty"`
	Synthetic bool   `json:"synthetic,omitempty"`
	Pot       int    `json:"pot"`
}

// CommunityCardsData carries the board after a street is dealt.
type CommunityCardsData struct {
	Street    string       `json:"street"`
	Cards     []poker.Card `json:"cards"`
	Community []poker.Card `json:"community"`
	Pot       int          `json:"pot"`
}

// TimeBankData is the once-per-second countdown after the primary turn
// timer has expired.
type TimeBankData struct {
	Seat      int `json:"seat"`
	Remaining int `json:"remaining"`
}

// ShowdownHand is one contender's revealed holding.
type ShowdownHand struct {
	Seat      int          `json:"seat"`
	Name      string       `json:"name"`
	HoleCards []poker.Card `json:"holeCards"`
	Category  string       `json:"category"`
	BestFive  []poker.Card `json:"bestFive"`
}

// PotResult is the outcome of a single pot.
type PotResult struct {
	Label   string `json:"label"`
	Amount  int    `json:"amount"`
	Winners []int  `json:"winnerSeats"`
}

// ShowdownData reveals contenders and the pot breakdown.
type ShowdownData struct {
	Community []poker.Card   `json:"community"`
	Hands     []ShowdownHand `json:"hands"`
	Pots      []PotResult    `json:"pots"`
}

// HandCompleteData closes out a hand.
type HandCompleteData struct {
	Winners     []int       `json:"winnerSeats"`
	Pot         int         `json:"pot"`
	Uncontested bool        `json:"uncontested"`
	Stacks      map[int]int `json:"stacks"`
}

// HandAbortedData is the terminal event for a hand killed by an internal
// error; all contributions have been refunded.
type HandAbortedData struct {
	Reason string `json:"reason"`
}

// MitsukiData is the dealer's table talk. Purely cosmetic.
type MitsukiData struct {
	Text string `json:"text"`
}
