package table

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feltnet/felt/internal/randutil"
	"github.com/feltnet/felt/poker"
)

// eventRecorder captures pushed events for assertions.
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) Broadcast(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *eventRecorder) SendToPlayer(_ string, ev Event) { r.Broadcast(ev) }

func (r *eventRecorder) ofType(typ string) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, ev := range r.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func newTestTable(t *testing.T, cfg Config) (*Table, *quartz.Mock, *eventRecorder) {
	t.Helper()
	clock := quartz.NewMock(t)
	logger := log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
	rec := &eventRecorder{}
	tbl := New("test", cfg, logger, clock, randutil.New(42), rec)
	t.Cleanup(tbl.Close)
	return tbl, clock, rec
}

func seatPlayers(t *testing.T, tbl *Table, stacks ...int) {
	t.Helper()
	for i, stack := range stacks {
		p := &Player{Token: tok(i), Name: fmt.Sprintf("bot%d", i), Stack: stack}
		seat, err := tbl.SeatPlayer(p)
		require.NoError(t, err)
		require.Equal(t, i, seat)
	}
}

func tok(i int) string { return fmt.Sprintf("tok%d", i) }

// rigDeck presets the next hand's deal order: hole cards in dealing
// order (left of the button first), then burns and board interleaved.
func rigDeck(tbl *Table, cards string) {
	_ = tbl.do(func() error {
		tbl.stackNext = poker.MustParseCards(cards)
		return nil
	})
}

// advance moves the mock clock and then drains the op queue, so every
// timer-enqueued op has been applied before the test continues.
func advance(t *testing.T, tbl *Table, clock *quartz.Mock, d time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for d > 0 {
		step := d
		if next, ok := clock.Peek(); ok && next < step {
			step = next
		}
		clock.Advance(step).MustWait(ctx)
		tbl.PublicState()
		d -= step
	}
}

func seatView(t *testing.T, v View, seat int) SeatView {
	t.Helper()
	for _, s := range v.Seats {
		if s.Seat == seat {
			return s
		}
	}
	t.Fatalf("seat %d not found in view", seat)
	return SeatView{}
}

func act(tbl *Table, i int, typ ActionType, amount ...int) error {
	a := Action{Type: typ}
	if len(amount) > 0 {
		a.Amount = amount[0]
	}
	return tbl.HandleAction(tok(i), a)
}

func TestHeadsUpFoldEndsHandUncontested(t *testing.T) {
	cfg := DefaultConfig()
	tbl, clock, rec := newTestTable(t, cfg)
	seatPlayers(t, tbl, 200, 200)
	advance(t, tbl, clock, cfg.HandStartDelay)

	v := tbl.PublicState()
	require.Equal(t, "preflop", v.Phase)
	require.Equal(t, 0, v.DealerSeat)
	// Heads-up the button posts the small blind and acts first.
	require.Equal(t, 0, v.CurrentActorSeat)
	require.Equal(t, 3, v.Pot)

	require.NoError(t, act(tbl, 0, Fold))

	v = tbl.PublicState()
	assert.Equal(t, "waiting", v.Phase)
	assert.Equal(t, 199, seatView(t, v, 0).Stack)
	assert.Equal(t, 201, seatView(t, v, 1).Stack)

	recs := tbl.History(0)
	require.Len(t, recs, 1)
	assert.True(t, recs[0].Uncontested)
	assert.Equal(t, []int{1}, recs[0].Winners)
	assert.Equal(t, 3, recs[0].PotTotal)
	assert.Empty(t, recs[0].Showdown, "uncontested hands must not reveal cards")

	// No showdown, no rating movement.
	assert.Equal(t, 1000, seatView(t, v, 0).Elo)
	assert.Equal(t, 1000, seatView(t, v, 1).Elo)

	done := rec.ofType(EventHandComplete)
	require.Len(t, done, 1)
}

func TestHeadsUpCheckDownToShowdown(t *testing.T) {
	cfg := DefaultConfig()
	tbl, clock, _ := newTestTable(t, cfg)
	seatPlayers(t, tbl, 200, 200)
	// Seat 1 is dealt first and holds aces; board pairs kings.
	rigDeck(tbl, "As Ah 2c 7d 5c Kd Ks 3h 5d 4c 5h 9s")
	advance(t, tbl, clock, cfg.HandStartDelay)

	require.NoError(t, act(tbl, 0, Call))
	require.NoError(t, act(tbl, 1, Check))

	v := tbl.PublicState()
	require.Equal(t, "flop", v.Phase)
	// Postflop the non-button acts first.
	require.Equal(t, 1, v.CurrentActorSeat)

	for _, next := range []string{"turn", "river", "waiting"} {
		require.NoError(t, act(tbl, 1, Check))
		require.NoError(t, act(tbl, 0, Check))
		require.Equal(t, next, tbl.PublicState().Phase)
	}

	v = tbl.PublicState()
	assert.Equal(t, 198, seatView(t, v, 0).Stack)
	assert.Equal(t, 202, seatView(t, v, 1).Stack)

	recs := tbl.History(1)
	require.Len(t, recs, 1)
	rec := recs[0]
	assert.False(t, rec.Uncontested)
	assert.Equal(t, []int{1}, rec.Winners)
	assert.Equal(t, poker.MustParseCards("Kd Ks 3h 4c 9s"), rec.Community)
	require.Len(t, rec.Showdown, 2)
	assert.Equal(t, 1, seatView(t, v, 1).HandsWon)
	assert.Greater(t, seatView(t, v, 1).Elo, seatView(t, v, 0).Elo)
}

func TestThreeWayAllInBuildsSidePots(t *testing.T) {
	cfg := DefaultConfig()
	tbl, clock, _ := newTestTable(t, cfg)
	seatPlayers(t, tbl, 50, 100, 200)
	// Dealing order 1, 2, 0: kings, queens, aces.
	rigDeck(tbl, "Ks Kh Qs Qh As Ah 5c 2c 7d 8h 5d 3s 5h 4d")
	advance(t, tbl, clock, cfg.HandStartDelay)

	// Seat 0 shoves, seat 1 shoves over the top, seat 2 covers both.
	require.NoError(t, act(tbl, 0, Raise, 50))
	require.NoError(t, act(tbl, 1, Raise, 100))
	require.NoError(t, act(tbl, 2, Call))

	// Everyone but one is all-in, so the board runs out immediately.
	v := tbl.PublicState()
	require.Equal(t, "waiting", v.Phase)

	recs := tbl.History(1)
	require.Len(t, recs, 1)
	rec := recs[0]
	require.Len(t, rec.Pots, 2)
	assert.Equal(t, "Main Pot", rec.Pots[0].Label)
	assert.Equal(t, 150, rec.Pots[0].Amount)
	assert.Equal(t, []int{0}, rec.Pots[0].Winners, "aces take the main pot")
	assert.Equal(t, "Side Pot 1", rec.Pots[1].Label)
	assert.Equal(t, 100, rec.Pots[1].Amount)
	assert.Equal(t, []int{1}, rec.Pots[1].Winners, "kings take the side pot")

	assert.Equal(t, 150, seatView(t, v, 0).Stack)
	assert.Equal(t, 100, seatView(t, v, 1).Stack)
	assert.Equal(t, 100, seatView(t, v, 2).Stack)
}

func TestEloUpdatesPairwiseAtShowdown(t *testing.T) {
	cfg := DefaultConfig()
	tbl, clock, _ := newTestTable(t, cfg)
	seatPlayers(t, tbl, 200, 200, 200)
	// Dealing order 1, 2, 0: kings, rags, aces.
	rigDeck(tbl, "Kd Kh 2c 3d As Ah 7d 8h 9s 2d 4c Jc 5h Qd")
	advance(t, tbl, clock, cfg.HandStartDelay)

	require.NoError(t, act(tbl, 0, Call))
	require.NoError(t, act(tbl, 1, Call))
	require.NoError(t, act(tbl, 2, Fold))

	for range 3 {
		require.NoError(t, act(tbl, 1, Check))
		require.NoError(t, act(tbl, 0, Check))
	}

	v := tbl.PublicState()
	require.Equal(t, "waiting", v.Phase)

	// Equal ratings make each pairing worth half of K. Only the two
	// showdown contenders are rated; the folded seat is untouched.
	assert.Equal(t, 1016, seatView(t, v, 0).Elo)
	assert.Equal(t, 984, seatView(t, v, 1).Elo)
	assert.Equal(t, 1000, seatView(t, v, 2).Elo)
}

func TestPotBreakdownAppearsOnlyAfterAllIn(t *testing.T) {
	cfg := DefaultConfig()
	tbl, clock, _ := newTestTable(t, cfg)
	seatPlayers(t, tbl, 50, 200, 200)
	// Dealing order 1, 2, 0: kings, queens, aces.
	rigDeck(tbl, "Kd Kh Qs Qh As Ah 7d 8h 9s 2d 4c Jc 5h 6d")
	advance(t, tbl, clock, cfg.HandStartDelay)

	// Before any all-in the hand carries a single implicit pot.
	assert.Empty(t, tbl.PublicState().Pots)

	require.NoError(t, act(tbl, 0, Raise, 50))
	require.NoError(t, act(tbl, 1, Call))
	require.NoError(t, act(tbl, 2, Call))

	v := tbl.PublicState()
	require.Equal(t, "flop", v.Phase)
	require.Len(t, v.Pots, 1)
	assert.Equal(t, "Main Pot", v.Pots[0].Label)
	assert.Equal(t, 150, v.Pots[0].Amount)
	assert.Equal(t, []int{0, 1, 2}, v.Pots[0].Eligible)

	for range 3 {
		require.NoError(t, act(tbl, 1, Check))
		require.NoError(t, act(tbl, 2, Check))
	}

	v = tbl.PublicState()
	require.Equal(t, "waiting", v.Phase)
	assert.Equal(t, 150, seatView(t, v, 0).Stack, "aces scoop the lot")
	assert.Equal(t, 150, seatView(t, v, 1).Stack)
	assert.Equal(t, 150, seatView(t, v, 2).Stack)
}

func TestSplitPotOddChipGoesLeftOfButton(t *testing.T) {
	cfg := DefaultConfig()
	tbl, clock, _ := newTestTable(t, cfg)
	seatPlayers(t, tbl, 200, 200, 200)
	// Royal flush on board; seats 0 and 2 chop a 5-chip pot.
	rigDeck(tbl, "2s 2d 3c 4c 5s 6s 7c Th Jh Qh 7d Kh 7h Ah")
	advance(t, tbl, clock, cfg.HandStartDelay)

	require.NoError(t, act(tbl, 0, Call))
	require.NoError(t, act(tbl, 1, Fold))
	require.NoError(t, act(tbl, 2, Check))

	for range 3 {
		require.NoError(t, act(tbl, 2, Check))
		require.NoError(t, act(tbl, 0, Check))
	}

	v := tbl.PublicState()
	require.Equal(t, "waiting", v.Phase)

	recs := tbl.History(1)
	require.Len(t, recs, 1)
	require.Len(t, recs[0].Pots, 1)
	assert.Equal(t, []int{0, 2}, recs[0].Pots[0].Winners)

	// 5 chips between two winners: seat 2 sits closer to the button's
	// left than the button itself, so it gets the odd chip.
	assert.Equal(t, 200, seatView(t, v, 0).Stack)
	assert.Equal(t, 199, seatView(t, v, 1).Stack)
	assert.Equal(t, 201, seatView(t, v, 2).Stack)
}

func TestIncompleteAllInRaiseDoesNotReopenAction(t *testing.T) {
	cfg := DefaultConfig()
	tbl, clock, _ := newTestTable(t, cfg)
	seatPlayers(t, tbl, 200, 200, 30)
	rigDeck(tbl, "9c 9d Ac Ad Kc Kd 2h 3s 5h 8c 2s Js 2c 4h")
	advance(t, tbl, clock, cfg.HandStartDelay)

	require.NoError(t, act(tbl, 0, Raise, 20))
	require.NoError(t, act(tbl, 1, Fold))
	// The big blind shoves for 30: a raise of 10 against a minimum of 18.
	require.NoError(t, act(tbl, 2, Raise, 30))

	// The original raiser faces the shove but the action is not reopened.
	err := act(tbl, 0, Raise, 50)
	require.ErrorIs(t, err, ErrIllegalAction)
	require.NoError(t, act(tbl, 0, Call))

	v := tbl.PublicState()
	require.Equal(t, "waiting", v.Phase)

	recs := tbl.History(1)
	require.Len(t, recs, 1)
	assert.Equal(t, []int{2}, recs[0].Winners)
	assert.Equal(t, 61, recs[0].PotTotal)
	assert.Equal(t, 170, seatView(t, v, 0).Stack)
	assert.Equal(t, 199, seatView(t, v, 1).Stack)
	assert.Equal(t, 61, seatView(t, v, 2).Stack)
}

func TestMinRaiseBoundary(t *testing.T) {
	cfg := DefaultConfig()
	tbl, clock, _ := newTestTable(t, cfg)
	seatPlayers(t, tbl, 200, 200)
	advance(t, tbl, clock, cfg.HandStartDelay)

	// Preflop the bet level and minimum raise are both the big blind, so
	// the smallest legal raise is to 4.
	err := act(tbl, 0, Raise, 3)
	require.ErrorIs(t, err, ErrIllegalAction)
	require.NoError(t, act(tbl, 0, Raise, 4))

	// Seat 1 must now raise by at least 2 more.
	err = act(tbl, 1, Raise, 5)
	require.ErrorIs(t, err, ErrIllegalAction)
	require.NoError(t, act(tbl, 1, Raise, 6))
}

func TestActionValidation(t *testing.T) {
	cfg := DefaultConfig()
	tbl, clock, _ := newTestTable(t, cfg)
	seatPlayers(t, tbl, 200, 200)

	// No hand yet.
	require.ErrorIs(t, act(tbl, 0, Fold), ErrNoActiveHand)

	advance(t, tbl, clock, cfg.HandStartDelay)

	require.ErrorIs(t, tbl.HandleAction("nope", Action{Type: Fold}), ErrUnknownPlayer)
	require.ErrorIs(t, act(tbl, 1, Fold), ErrNotYourTurn)
	// Facing the big blind, seat 0 cannot check.
	require.ErrorIs(t, act(tbl, 0, Check), ErrIllegalAction)
	// A raise beyond the stack is rejected.
	require.ErrorIs(t, act(tbl, 0, Raise, 500), ErrIllegalAction)

	require.NoError(t, act(tbl, 0, Call))
	// Nothing to call for the big blind.
	require.ErrorIs(t, act(tbl, 1, Call), ErrIllegalAction)
	require.NoError(t, act(tbl, 1, Check))
}

func TestTurnTimerCascadesIntoTimeBank(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TimeBankSeconds = 5
	tbl, clock, rec := newTestTable(t, cfg)
	seatPlayers(t, tbl, 200, 200)
	advance(t, tbl, clock, cfg.HandStartDelay)

	require.Equal(t, 0, tbl.PublicState().CurrentActorSeat)

	// Primary timer expires: the time bank engages instead of folding.
	advance(t, tbl, clock, cfg.TurnTimer)
	banks := rec.ofType(EventTimeBank)
	require.Len(t, banks, 1)
	assert.Equal(t, 5, banks[0].Data.(TimeBankData).Remaining)

	// Three seconds tick away, then the player acts in time.
	for range 3 {
		advance(t, tbl, clock, time.Second)
	}
	require.NoError(t, act(tbl, 0, Call))

	// Spent seconds are retained, not refunded.
	pv, err := tbl.StateForPlayer(tok(0))
	require.NoError(t, err)
	assert.Equal(t, 2, pv.TimeBank)

	// Seat 1 lets both the timer and its whole bank expire and is folded.
	advance(t, tbl, clock, cfg.TurnTimer)
	for range 5 {
		advance(t, tbl, clock, time.Second)
	}

	v := tbl.PublicState()
	assert.Equal(t, "waiting", v.Phase)
	assert.Equal(t, 202, seatView(t, v, 0).Stack)
	assert.Equal(t, 198, seatView(t, v, 1).Stack)
	assert.Equal(t, 0, seatView(t, v, 1).TimeBank)

	var sawSynthetic bool
	for _, ev := range rec.ofType(EventPlayerAction) {
		data := ev.Data.(PlayerActionData)
		if data.Seat == 1 && data.Action == "fold" && data.Synthetic {
			sawSynthetic = true
		}
	}
	assert.True(t, sawSynthetic, "timeout fold must be flagged synthetic")
}

func TestDisconnectFoldsAndSitsOut(t *testing.T) {
	cfg := DefaultConfig()
	tbl, clock, _ := newTestTable(t, cfg)
	seatPlayers(t, tbl, 200, 200)
	advance(t, tbl, clock, cfg.HandStartDelay)

	// Disconnecting on one's own turn folds immediately.
	tbl.PlayerDisconnected(tok(0))

	v := tbl.PublicState()
	assert.Equal(t, "waiting", v.Phase)
	assert.Equal(t, 199, seatView(t, v, 0).Stack)
	sv := seatView(t, v, 0)
	assert.True(t, sv.Disconnected)
	assert.True(t, sv.SitOut)

	// One eligible player: no next hand is scheduled.
	advance(t, tbl, clock, cfg.ShowdownDelay)
	assert.Equal(t, "waiting", tbl.PublicState().Phase)

	// Reconnecting alone does not resume play; the player must sit back in.
	tbl.PlayerReconnected(tok(0))
	sv = seatView(t, tbl.PublicState(), 0)
	assert.False(t, sv.Disconnected)
	assert.True(t, sv.SitOut)

	require.NoError(t, tbl.ReturnFromSitOut(tok(0)))
	advance(t, tbl, clock, cfg.HandStartDelay)
	assert.Equal(t, "preflop", tbl.PublicState().Phase)
}

func TestSitOutAutoRemovesAfterIdleTimeout(t *testing.T) {
	cfg := DefaultConfig()
	tbl, clock, rec := newTestTable(t, cfg)
	seatPlayers(t, tbl, 200, 200)
	require.NoError(t, tbl.SetSitOut(tok(1)))

	advance(t, tbl, clock, cfg.SitOutAutoRemove)

	v := tbl.PublicState()
	require.Len(t, v.Seats, 1)
	assert.Equal(t, 0, v.Seats[0].Seat)

	lefts := rec.ofType(EventPlayerLeft)
	require.Len(t, lefts, 1)
	assert.Equal(t, "idle", lefts[0].Data.(PlayerLeftData).Reason)
}

func TestRemoveActorMidHandFoldsAndPreservesChips(t *testing.T) {
	cfg := DefaultConfig()
	tbl, clock, _ := newTestTable(t, cfg)
	seatPlayers(t, tbl, 200, 200, 200)
	advance(t, tbl, clock, cfg.HandStartDelay)

	require.Equal(t, 0, tbl.PublicState().CurrentActorSeat)

	// The actor leaves: their blind-free stack comes back, committed
	// chips stay in the pot.
	stack, err := tbl.RemovePlayer(tok(0))
	require.NoError(t, err)
	assert.Equal(t, 200, stack)

	// The hand continues between the blinds; the departed seat stays as
	// a folded ghost so the pot still includes its contribution.
	v := tbl.PublicState()
	require.Equal(t, "preflop", v.Phase)
	require.Equal(t, 1, v.CurrentActorSeat)
	require.NoError(t, act(tbl, 1, Call))
	require.NoError(t, act(tbl, 2, Check))
	require.Equal(t, "flop", tbl.PublicState().Phase)
	require.NoError(t, act(tbl, 1, Fold))

	// Seat 2 takes the pot and the ghost seat is finally released.
	v = tbl.PublicState()
	assert.Equal(t, "waiting", v.Phase)
	assert.Len(t, v.Seats, 2)
	assert.Equal(t, 202, seatView(t, v, 2).Stack)
}

func TestRebuyRules(t *testing.T) {
	cfg := DefaultConfig()
	tbl, clock, _ := newTestTable(t, cfg)
	seatPlayers(t, tbl, 200, 200)

	// Topping up past the maximum buy-in is rejected.
	_, err := tbl.Rebuy(tok(0), 300)
	require.ErrorIs(t, err, ErrExceedsMaxBuyIn)

	_, err = tbl.Rebuy(tok(0), 0)
	require.ErrorIs(t, err, ErrInvalidBuyIn)

	stack, err := tbl.Rebuy(tok(0), 200)
	require.NoError(t, err)
	assert.Equal(t, 400, stack)

	// No rebuy while in a hand.
	advance(t, tbl, clock, cfg.HandStartDelay)
	_, err = tbl.Rebuy(tok(0), 10)
	require.ErrorIs(t, err, ErrIllegalState)
}

func TestTableFull(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinPlayers = 10 // keep hands from starting
	tbl, _, _ := newTestTable(t, cfg)
	seatPlayers(t, tbl, 200, 200, 200, 200, 200, 200, 200, 200, 200)

	_, err := tbl.SeatPlayer(&Player{Token: "late", Name: "late", Stack: 200})
	require.ErrorIs(t, err, ErrTableFull)
}

func TestButtonRotatesBetweenHands(t *testing.T) {
	cfg := DefaultConfig()
	tbl, clock, _ := newTestTable(t, cfg)
	seatPlayers(t, tbl, 200, 200, 200)
	advance(t, tbl, clock, cfg.HandStartDelay)

	require.Equal(t, 0, tbl.PublicState().DealerSeat)
	require.NoError(t, act(tbl, 0, Fold))
	require.NoError(t, act(tbl, 1, Fold))

	advance(t, tbl, clock, cfg.ShowdownDelay)
	v := tbl.PublicState()
	require.Equal(t, "preflop", v.Phase)
	assert.Equal(t, 1, v.DealerSeat)
	assert.Equal(t, 2, v.HandNumber)
}

func TestHoleCardsStayPrivate(t *testing.T) {
	cfg := DefaultConfig()
	tbl, clock, _ := newTestTable(t, cfg)
	seatPlayers(t, tbl, 200, 200)
	advance(t, tbl, clock, cfg.HandStartDelay)

	pv, err := tbl.StateForPlayer(tok(0))
	require.NoError(t, err)
	require.Len(t, pv.HoleCards, 2)
	assert.Equal(t, 1, pv.ToCall)

	pv2, err := tbl.StateForPlayer(tok(1))
	require.NoError(t, err)
	assert.NotEqual(t, pv.HoleCards, pv2.HoleCards)
}

func TestClosedTableRejectsCalls(t *testing.T) {
	cfg := DefaultConfig()
	tbl, _, _ := newTestTable(t, cfg)
	seatPlayers(t, tbl, 200, 200)
	tbl.Close()

	_, err := tbl.SeatPlayer(&Player{Token: "x", Name: "x", Stack: 200})
	require.ErrorIs(t, err, ErrTableClosed)
	require.ErrorIs(t, tbl.HandleAction(tok(0), Action{Type: Fold}), ErrTableClosed)
}
