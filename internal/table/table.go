// Package table implements the per-table hand state machine: seating,
// blinds, betting streets, pot construction, showdown distribution and
// turn timers. Each table is an actor; client actions, timer expirations
// and disconnect notifications all funnel through one serial op queue, so
// the game-rule invariants hold without any locking inside hand logic.
package table

import (
	"fmt"
	rand "math/rand/v2"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/feltnet/felt/poker"
)

// Phase is the hand lifecycle state.
type Phase uint8

const (
	PhaseWaiting Phase = iota
	PhasePreflop
	PhaseFlop
	PhaseTurn
	PhaseRiver
	PhaseShowdown
)

// String returns the wire name of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseWaiting:
		return "waiting"
	case PhasePreflop:
		return "preflop"
	case PhaseFlop:
		return "flop"
	case PhaseTurn:
		return "turn"
	case PhaseRiver:
		return "river"
	case PhaseShowdown:
		return "showdown"
	default:
		return "unknown"
	}
}

// Table owns one hand at a time. All state below the op queue is touched
// only by the run loop.
type Table struct {
	id     string
	cfg    Config
	logger *log.Logger
	clock  quartz.Clock
	rng    *rand.Rand
	bcast  Broadcaster

	ops       chan func()
	done      chan struct{}
	closeOnce sync.Once

	seats     []*Player
	tokens    map[string]*Player
	deck      *poker.Deck
	community []poker.Card
	pot       int
	pots      []Pot
	phase     Phase

	dealerSeat       int
	sbSeat           int
	bbSeat           int
	currentBetLevel  int
	minRaise         int
	currentActorSeat int
	handNumber       int

	// handStacks snapshots stack+commitment at hand start so chip
	// conservation can be asserted at every step.
	handStacks int

	handLog []LogEntry
	history *historyRing

	turnSeq      uint64
	turnTimer    *quartz.Timer
	timeBankLive bool
	startSeq     uint64
	startPending bool
	sitOutSeq    uint64

	// stackNext rigs the next hand's deal. Test seam; applied after the
	// shuffle, then cleared.
	stackNext []poker.Card
}

// New creates a table and starts its actor loop.
func New(id string, cfg Config, logger *log.Logger, clock quartz.Clock, rng *rand.Rand, bcast Broadcaster) *Table {
	if bcast == nil {
		bcast = NopBroadcaster{}
	}
	t := &Table{
		id:               id,
		cfg:              cfg,
		logger:           logger.WithPrefix("table").With("table", id),
		clock:            clock,
		rng:              rng,
		bcast:            bcast,
		ops:              make(chan func(), 64),
		done:             make(chan struct{}),
		seats:            make([]*Player, cfg.MaxPlayers),
		tokens:           make(map[string]*Player),
		deck:             poker.NewDeck(rng),
		phase:            PhaseWaiting,
		dealerSeat:       -1,
		currentActorSeat: -1,
		minRaise:         cfg.BigBlind,
		history:          newHistoryRing(cfg.MaxHandHistory),
	}
	go t.run()
	return t
}

// ID returns the table identifier.
func (t *Table) ID() string { return t.id }

// Close shuts the actor down. Pending callers receive ErrTableClosed.
func (t *Table) Close() {
	t.closeOnce.Do(func() { close(t.done) })
}

func (t *Table) run() {
	for {
		select {
		case op := <-t.ops:
			op()
		case <-t.done:
			return
		}
	}
}

// call runs fn on the actor loop and waits for its result.
func call[T any](t *Table, fn func() (T, error)) (T, error) {
	var zero T
	type result struct {
		v   T
		err error
	}
	resc := make(chan result, 1)
	op := func() {
		v, err := guarded(t, fn)
		resc <- result{v, err}
	}
	select {
	case t.ops <- op:
	case <-t.done:
		return zero, errTableClosed()
	}
	select {
	case res := <-resc:
		return res.v, res.err
	case <-t.done:
		return zero, errTableClosed()
	}
}

// do is call without a value.
func (t *Table) do(fn func() error) error {
	_, err := call(t, func() (struct{}, error) { return struct{}{}, fn() })
	return err
}

// enqueue schedules fn on the actor loop without waiting. Used by timer
// callbacks, which must never run game logic on their own goroutine.
func (t *Table) enqueue(fn func()) {
	op := func() {
		_, _ = guarded(t, func() (struct{}, error) { fn(); return struct{}{}, nil })
	}
	select {
	case t.ops <- op:
	case <-t.done:
	}
}

// guarded converts a panic inside hand logic into an aborted hand. The
// table recovers to waiting with every contribution refunded.
func guarded[T any](t *Table, fn func() (T, error)) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("panic in table op", "panic", r, "hand", t.handNumber)
			t.abortHand(fmt.Sprintf("internal error: %v", r))
			err = errInternal("internal table error; hand aborted")
		}
	}()
	return fn()
}

// SeatPlayer seats a player at the lowest empty seat.
func (t *Table) SeatPlayer(p *Player) (int, error) {
	return call(t, func() (int, error) {
		seat := -1
		for i, s := range t.seats {
			if s == nil {
				seat = i
				break
			}
		}
		if seat == -1 {
			return -1, errTableFull()
		}

		p.Seat = seat
		p.TimeBank = t.cfg.TimeBankSeconds
		if p.Elo == 0 {
			p.Elo = t.cfg.DefaultElo
		}
		if p.SitOut {
			p.Status = StatusSittingOut
		} else {
			p.Status = StatusWaiting
		}
		t.seats[seat] = p
		t.tokens[p.Token] = p

		t.logger.Info("player seated", "name", p.Name, "seat", seat, "stack", p.Stack)
		t.broadcast(EventPlayerJoined, PlayerJoinedData{Seat: seat, Name: p.Name, Stack: p.Stack})
		t.maybeScheduleHandStart(t.cfg.HandStartDelay)
		return seat, nil
	})
}

// RemovePlayer removes a player and returns their remaining stack. If the
// player was the current actor in a live hand, an auto-fold is applied
// first; chips already committed stay in the pot.
func (t *Table) RemovePlayer(token string) (int, error) {
	return call(t, func() (int, error) {
		p, ok := t.tokens[token]
		if !ok {
			return 0, errUnknownPlayer()
		}
		t.removeSeat(p, "left")
		return p.Stack, nil
	})
}

// removeSeat vacates a seat. A player removed mid-hand is folded but
// their seat record stays as a ghost until the hand ends, so pot layering
// and chip conservation still see their contribution. Runs on the actor
// loop.
func (t *Table) removeSeat(p *Player, reason string) {
	t.stopSitOutTimer(p)
	delete(t.tokens, p.Token)
	t.logger.Info("player removed", "name", p.Name, "seat", p.Seat, "reason", reason)
	t.broadcast(EventPlayerLeft, PlayerLeftData{Seat: p.Seat, Name: p.Name, Reason: reason})

	if t.handLive() && p.inHand() {
		p.pendingRemove = true
		wasActor := p.Seat == t.currentActorSeat
		if p.contender() {
			if wasActor {
				t.applyFold(p, true)
				t.afterAction(p)
			} else {
				p.Status = StatusFolded
				p.LastAction = "fold"
				t.logEvent(fmt.Sprintf("seat %d folded (removed)", p.Seat))
				t.checkHandStillContested()
			}
		}
		return
	}
	t.seats[p.Seat] = nil
}

// SetSitOut marks a player sitting out. Sitting out on one's own turn
// folds the hand.
func (t *Table) SetSitOut(token string) error {
	return t.do(func() error {
		p, ok := t.tokens[token]
		if !ok {
			return errUnknownPlayer()
		}
		if p.SitOut {
			return errIllegalState("already sitting out")
		}
		p.SitOut = true
		if !p.inHand() {
			p.Status = StatusSittingOut
		}
		t.startSitOutTimer(p)
		if t.handLive() && p.Seat == t.currentActorSeat {
			t.applyFold(p, true)
			t.afterAction(p)
		}
		return nil
	})
}

// ReturnFromSitOut brings a player back for the next hand.
func (t *Table) ReturnFromSitOut(token string) error {
	return t.do(func() error {
		p, ok := t.tokens[token]
		if !ok {
			return errUnknownPlayer()
		}
		if !p.SitOut {
			return errIllegalState("not sitting out")
		}
		if p.Stack <= 0 {
			return errIllegalState("cannot return with an empty stack; rebuy first")
		}
		p.SitOut = false
		if p.Status == StatusSittingOut {
			p.Status = StatusWaiting
		}
		t.stopSitOutTimer(p)
		t.maybeScheduleHandStart(t.cfg.HandStartDelay)
		return nil
	})
}

// Rebuy adds chips to a player's stack between hands, capped at the
// table's maximum buy-in.
func (t *Table) Rebuy(token string, amount int) (int, error) {
	return call(t, func() (int, error) {
		p, ok := t.tokens[token]
		if !ok {
			return 0, errUnknownPlayer()
		}
		if amount <= 0 {
			return 0, errInvalidBuyIn("rebuy amount must be positive")
		}
		if t.handLive() && p.inHand() {
			return 0, errIllegalState("cannot rebuy during a hand")
		}
		if p.Stack+amount > t.cfg.MaxBuyIn {
			return 0, errExceedsMaxBuyIn(fmt.Sprintf("stack would exceed the maximum buy-in of %d", t.cfg.MaxBuyIn))
		}
		p.Stack += amount
		t.logger.Info("rebuy", "name", p.Name, "amount", amount, "stack", p.Stack)
		t.maybeScheduleHandStart(t.cfg.HandStartDelay)
		return p.Stack, nil
	})
}

// StateForPlayer returns the private view for a token.
func (t *Table) StateForPlayer(token string) (PrivateView, error) {
	return call(t, func() (PrivateView, error) {
		p, ok := t.tokens[token]
		if !ok {
			return PrivateView{}, errUnknownPlayer()
		}
		return t.privateView(p), nil
	})
}

// PublicState returns the public view.
func (t *Table) PublicState() View {
	v, _ := call(t, func() (View, error) { return t.view(), nil })
	return v
}

// History returns up to limit most recent hand records, newest first.
func (t *Table) History(limit int) []HandRecord {
	recs, _ := call(t, func() ([]HandRecord, error) { return t.history.recent(limit), nil })
	return recs
}

// PlayerDisconnected translates transport loss into sit-out semantics:
// the player auto-folds when the action is (or comes) on them and sits
// out the following hands until they reconnect.
func (t *Table) PlayerDisconnected(token string) {
	_ = t.do(func() error {
		p, ok := t.tokens[token]
		if !ok {
			return nil
		}
		p.Disconnected = true
		p.SitOut = true
		if !p.inHand() {
			p.Status = StatusSittingOut
		}
		t.startSitOutTimer(p)
		t.logger.Info("player disconnected", "name", p.Name, "seat", p.Seat)
		if t.handLive() && p.Seat == t.currentActorSeat {
			t.applyFold(p, true)
			t.afterAction(p)
		}
		return nil
	})
}

// PlayerReconnected clears the disconnect flag. The player stays sitting
// out until they explicitly return.
func (t *Table) PlayerReconnected(token string) {
	_ = t.do(func() error {
		if p, ok := t.tokens[token]; ok {
			p.Disconnected = false
			t.logger.Info("player reconnected", "name", p.Name, "seat", p.Seat)
		}
		return nil
	})
}

// handLive reports whether a hand is in a betting phase.
func (t *Table) handLive() bool {
	return t.phase != PhaseWaiting && t.phase != PhaseShowdown
}

// eligibleCount counts seated players able to start a hand.
func (t *Table) eligibleCount() int {
	n := 0
	for _, p := range t.seats {
		if p != nil && !p.pendingRemove && p.Stack > 0 && !p.SitOut {
			n++
		}
	}
	return n
}

// nextSeat scans clockwise from (and excluding) seat for one matching ok.
func (t *Table) nextSeat(seat int, ok func(*Player) bool) int {
	n := len(t.seats)
	for i := 1; i <= n; i++ {
		idx := (seat + i) % n
		if p := t.seats[idx]; p != nil && ok(p) {
			return idx
		}
	}
	return -1
}

// maybeScheduleHandStart arms the next-hand timer when the table is
// waiting with enough eligible players. startSeq discards stale fires.
func (t *Table) maybeScheduleHandStart(delay time.Duration) {
	if t.phase != PhaseWaiting || t.startPending {
		return
	}
	if t.eligibleCount() < t.cfg.MinPlayers {
		return
	}
	t.startPending = true
	t.startSeq++
	seq := t.startSeq
	t.clock.AfterFunc(delay, func() {
		t.enqueue(func() {
			if seq != t.startSeq {
				return
			}
			t.startPending = false
			t.startHand()
		})
	})
}

// startHand deals a new hand. Runs on the actor loop.
func (t *Table) startHand() {
	if t.phase != PhaseWaiting || t.eligibleCount() < t.cfg.MinPlayers {
		return
	}

	t.handNumber++
	t.community = nil
	t.pots = nil
	t.pot = 0
	t.handLog = nil
	t.currentActorSeat = -1

	for _, p := range t.seats {
		if p != nil {
			p.resetForHand()
			if p.Status == StatusActive {
				p.HandsPlayed++
			}
		}
	}

	t.handStacks = 0
	for _, p := range t.seats {
		if p != nil && p.Status == StatusActive {
			t.handStacks += p.Stack
		}
	}

	// Button moves to the next seat able to play; the first hand uses the
	// first eligible seat.
	t.dealerSeat = t.nextSeat(t.dealerSeat, func(p *Player) bool { return p.Status == StatusActive })

	t.deck.Reset()
	if len(t.stackNext) > 0 {
		t.deck.Stack(t.stackNext)
		t.stackNext = nil
	}
	t.phase = PhasePreflop

	t.logger.Info("hand starting", "hand", t.handNumber, "button", t.dealerSeat, "players", t.eligibleCount())
	t.narrate(fmt.Sprintf("Hand #%d. Shuffling up and dealing.", t.handNumber))

	t.postBlinds()
	t.dealHoleCards()
	t.beginBettingRound(true)
}

// dealHoleCards gives two cards to each active player, starting left of
// the button, and pushes each player their private cards.
func (t *Table) dealHoleCards() {
	seat := t.dealerSeat
	n := 0
	for range t.seats {
		seat = t.nextSeat(seat, func(p *Player) bool { return p.inHand() && len(p.HoleCards) == 0 })
		if seat == -1 {
			break
		}
		p := t.seats[seat]
		cards, err := t.deck.Deal(2)
		if err != nil {
			panic(err) // 52 cards always cover 9 players plus the board
		}
		p.HoleCards = cards
		t.bcast.SendToPlayer(p.Token, t.event(EventCardsDealt, CardsDealtData{Seat: p.Seat, HoleCards: cards}))
		n++
	}
	t.logEvent(fmt.Sprintf("dealt hole cards to %d players", n))
}

// dealCommunity burns one and deals n board cards, broadcasting the result.
func (t *Table) dealCommunity(n int) {
	if err := t.deck.Burn(); err != nil {
		panic(err)
	}
	cards, err := t.deck.Deal(n)
	if err != nil {
		panic(err)
	}
	t.community = append(t.community, cards...)
	t.logEvent(fmt.Sprintf("%s: %v", t.phase, cards))
	t.broadcast(EventCommunityCards, CommunityCardsData{
		Street:    t.phase.String(),
		Cards:     cards,
		Community: append([]poker.Card(nil), t.community...),
		Pot:       t.pot,
	})
}

// abortHand recovers from an internal error mid-hand: every player's
// contribution is refunded, the table returns to waiting, and clients get
// a terminal hand_aborted event. Chips are conserved under abort.
func (t *Table) abortHand(reason string) {
	if t.phase == PhaseWaiting {
		return
	}
	t.cancelTurnTimers()
	for i, p := range t.seats {
		if p == nil {
			continue
		}
		p.Stack += p.TotalBetThisHand
		p.TotalBetThisHand = 0
		p.CurrentBet = 0
		p.HoleCards = nil
		if p.pendingRemove {
			t.seats[i] = nil
			continue
		}
		if p.Stack > 0 && !p.SitOut {
			p.Status = StatusWaiting
		} else {
			p.Status = StatusSittingOut
		}
	}
	t.pot = 0
	t.pots = nil
	t.community = nil
	t.currentBetLevel = 0
	t.minRaise = t.cfg.BigBlind
	t.currentActorSeat = -1
	t.phase = PhaseWaiting
	t.logger.Error("hand aborted", "hand", t.handNumber, "reason", reason)
	t.broadcast(EventHandAborted, HandAbortedData{Reason: reason})
	t.maybeScheduleHandStart(t.cfg.HandStartDelay)
}

// endHand returns the table to waiting and schedules the next hand.
func (t *Table) endHand() {
	t.cancelTurnTimers()
	for i, p := range t.seats {
		if p == nil {
			continue
		}
		if p.pendingRemove {
			t.seats[i] = nil
			continue
		}
		p.HoleCards = nil
		p.CurrentBet = 0
		p.TotalBetThisHand = 0
		p.acted = false
		p.LastAction = ""
		if p.Stack > 0 && !p.SitOut {
			p.Status = StatusWaiting
		} else {
			p.Status = StatusSittingOut
		}
	}
	t.pot = 0
	t.pots = nil
	t.community = nil
	t.currentBetLevel = 0
	t.minRaise = t.cfg.BigBlind
	t.currentActorSeat = -1
	t.phase = PhaseWaiting
	t.maybeScheduleHandStart(t.cfg.ShowdownDelay)
}

// broadcast wraps data in the table envelope and fans it out.
func (t *Table) broadcast(typ string, data any) {
	t.bcast.Broadcast(t.event(typ, data))
}

func (t *Table) event(typ string, data any) Event {
	return Event{Type: typ, TableID: t.id, HandNumber: t.handNumber, Data: data}
}

// narrate emits dealer table talk. Cosmetic only.
func (t *Table) narrate(text string) {
	t.broadcast(EventMitsuki, MitsukiData{Text: text})
}

// assertConservation panics if chips have leaked, aborting the hand via
// the op guard. Checked after every state transition while a hand runs.
func (t *Table) assertConservation() {
	if t.phase == PhaseWaiting {
		return
	}
	total := 0
	for _, p := range t.seats {
		if p != nil && p.inHand() {
			total += p.Stack + p.TotalBetThisHand
		}
	}
	if total != t.handStacks {
		panic(fmt.Sprintf("chip conservation violated: have %d, want %d", total, t.handStacks))
	}
}
