package table

import "github.com/feltnet/felt/poker"

// SeatView is the public view of one seat. Hole cards never appear here;
// they are revealed only via the showdown event.
type SeatView struct {
	Seat         int    `json:"seat"`
	Name         string `json:"name"`
	Stack        int    `json:"stack"`
	Status       Status `json:"status"`
	CurrentBet   int    `json:"currentBet"`
	TotalBet     int    `json:"totalBetThisHand"`
	LastAction   string `json:"lastAction,omitempty"`
	TimeBank     int    `json:"timeBank"`
	SitOut       bool   `json:"sitOut"`
	Disconnected bool   `json:"disconnected"`
	HandsPlayed  int    `json:"handsPlayed"`
	HandsWon     int    `json:"handsWon"`
	Elo          int    `json:"elo"`
}

// View is the public table state, safe to hand to any client.
type View struct {
	TableID          string       `json:"tableId"`
	HandNumber       int          `json:"handNumber"`
	Phase            string       `json:"phase"`
	Community        []poker.Card `json:"community"`
	Pot              int          `json:"pot"`
	Pots             []Pot        `json:"pots,omitempty"`
	DealerSeat       int          `json:"dealerSeat"`
	CurrentBetLevel  int          `json:"currentBetLevel"`
	MinRaise         int          `json:"minRaise"`
	CurrentActorSeat int          `json:"currentActorSeat"` // -1 when no one is to act
	SmallBlind       int          `json:"smallBlind"`
	BigBlind         int          `json:"bigBlind"`
	Seats            []SeatView   `json:"seats"`
}

// PrivateView is the public view plus the requesting player's own cards
// and turn context.
type PrivateView struct {
	View
	Seat      int          `json:"seat"`
	HoleCards []poker.Card `json:"holeCards,omitempty"`
	ToCall    int          `json:"toCall"`
	TimeBank  int          `json:"timeBank"`
}

// view builds the public snapshot. Runs on the actor loop.
func (t *Table) view() View {
	v := View{
		TableID:          t.id,
		HandNumber:       t.handNumber,
		Phase:            t.phase.String(),
		Community:        append([]poker.Card(nil), t.community...),
		Pot:              t.pot,
		Pots:             append([]Pot(nil), t.pots...),
		DealerSeat:       t.dealerSeat,
		CurrentBetLevel:  t.currentBetLevel,
		MinRaise:         t.minRaise,
		CurrentActorSeat: t.currentActorSeat,
		SmallBlind:       t.cfg.SmallBlind,
		BigBlind:         t.cfg.BigBlind,
	}
	for _, p := range t.seats {
		if p == nil {
			continue
		}
		v.Seats = append(v.Seats, SeatView{
			Seat:         p.Seat,
			Name:         p.Name,
			Stack:        p.Stack,
			Status:       p.Status,
			CurrentBet:   p.CurrentBet,
			TotalBet:     p.TotalBetThisHand,
			LastAction:   p.LastAction,
			TimeBank:     p.TimeBank,
			SitOut:       p.SitOut,
			Disconnected: p.Disconnected,
			HandsPlayed:  p.HandsPlayed,
			HandsWon:     p.HandsWon,
			Elo:          int(p.Elo),
		})
	}
	return v
}

// privateView builds the view for one token. Runs on the actor loop.
func (t *Table) privateView(p *Player) PrivateView {
	toCall := 0
	if p.canAct() && t.currentBetLevel > p.CurrentBet {
		toCall = t.currentBetLevel - p.CurrentBet
	}
	return PrivateView{
		View:      t.view(),
		Seat:      p.Seat,
		HoleCards: append([]poker.Card(nil), p.HoleCards...),
		ToCall:    toCall,
		TimeBank:  p.TimeBank,
	}
}
