package server

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feltnet/felt/internal/table"
)

func newTestRegistry(t *testing.T) (*Registry, *quartz.Mock) {
	t.Helper()
	clock := quartz.NewMock(t)
	logger := log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
	r := NewRegistry(DefaultConfig(), logger, clock, 7, table.NopBroadcaster{})
	t.Cleanup(r.Close)
	return r, clock
}

func TestJoinValidation(t *testing.T) {
	r, _ := newTestRegistry(t)

	_, err := r.Join(JoinRequest{Name: "   "})
	require.ErrorIs(t, err, ErrInvalidName)

	_, err = r.Join(JoinRequest{Name: strings.Repeat("x", 33)})
	require.ErrorIs(t, err, ErrInvalidName)

	_, err = r.Join(JoinRequest{Name: "alpha", Table: "nope"})
	require.ErrorIs(t, err, ErrUnknownTable)

	// Buy-in bounds are inclusive: 40 and 400 pass, 39 and 401 do not.
	_, err = r.Join(JoinRequest{Name: "alpha", BuyIn: 39})
	require.ErrorIs(t, err, table.ErrInvalidBuyIn)
	_, err = r.Join(JoinRequest{Name: "alpha", BuyIn: 401})
	require.ErrorIs(t, err, table.ErrInvalidBuyIn)

	resp, err := r.Join(JoinRequest{Name: "alpha", BuyIn: 40})
	require.NoError(t, err)
	assert.Equal(t, 40, resp.Stack)
	assert.Equal(t, "main", resp.TableID)
	assert.Equal(t, 0, resp.Seat)
	assert.NotEmpty(t, resp.Token)

	_, err = r.Join(JoinRequest{Name: "beta", BuyIn: 400})
	require.NoError(t, err)

	// Omitted buy-in uses the table default.
	resp, err = r.Join(JoinRequest{Name: "gamma"})
	require.NoError(t, err)
	assert.Equal(t, 200, resp.Stack)

	_, err = r.Join(JoinRequest{Name: "alpha"})
	require.ErrorIs(t, err, ErrDuplicateName)
}

func TestActionRouting(t *testing.T) {
	r, clock := newTestRegistry(t)

	a, err := r.Join(JoinRequest{Name: "alpha"})
	require.NoError(t, err)
	_, err = r.Join(JoinRequest{Name: "beta"})
	require.NoError(t, err)

	_, err = r.Action("bogus", "fold", 0)
	require.ErrorIs(t, err, table.ErrUnknownPlayer)

	_, err = r.Action(a.Token, "fold", 0)
	require.ErrorIs(t, err, table.ErrNoActiveHand)

	_, err = r.Action(a.Token, "levitate", 0)
	require.Error(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	clock.Advance(table.DefaultConfig().HandStartDelay).MustWait(ctx)

	// Heads-up the button (first seat) acts first.
	view, err := r.State(a.Token)
	require.NoError(t, err)
	require.Equal(t, "preflop", view.Phase)
	require.Equal(t, 0, view.CurrentActorSeat)

	applied, err := r.Action(a.Token, "fold", 0)
	require.NoError(t, err)
	assert.Equal(t, "fold", applied)
}

func TestLeaveForgetsToken(t *testing.T) {
	r, _ := newTestRegistry(t)

	a, err := r.Join(JoinRequest{Name: "alpha"})
	require.NoError(t, err)

	stack, err := r.Leave(a.Token)
	require.NoError(t, err)
	assert.Equal(t, 200, stack)

	_, err = r.Leave(a.Token)
	require.ErrorIs(t, err, table.ErrUnknownPlayer)
	assert.False(t, r.KnownToken(a.Token))

	// The seat is free again, so the name can be reused.
	_, err = r.Join(JoinRequest{Name: "alpha"})
	require.NoError(t, err)
}

func TestTablesAndHistory(t *testing.T) {
	r, _ := newTestRegistry(t)

	views := r.Tables()
	require.Len(t, views, 1)
	assert.Equal(t, "main", views[0].TableID)
	assert.Equal(t, "waiting", views[0].Phase)

	_, err := r.History("nope", 5)
	require.ErrorIs(t, err, ErrUnknownTable)

	// Empty table ID means the default table.
	hands, err := r.History("", 5)
	require.NoError(t, err)
	assert.Empty(t, hands)
}

func TestSitOutAndReturnRouting(t *testing.T) {
	r, _ := newTestRegistry(t)

	a, err := r.Join(JoinRequest{Name: "alpha"})
	require.NoError(t, err)

	require.NoError(t, r.SitOut(a.Token))
	require.ErrorIs(t, r.SitOut(a.Token), table.ErrIllegalState)
	require.NoError(t, r.Return(a.Token))
	require.ErrorIs(t, r.Return("bogus"), table.ErrUnknownPlayer)
}

func TestRebuyRouting(t *testing.T) {
	r, _ := newTestRegistry(t)

	a, err := r.Join(JoinRequest{Name: "alpha", BuyIn: 100})
	require.NoError(t, err)

	stack, err := r.Rebuy(a.Token, 100)
	require.NoError(t, err)
	assert.Equal(t, 200, stack)

	_, err = r.Rebuy(a.Token, 1000)
	require.ErrorIs(t, err, table.ErrExceedsMaxBuyIn)
}
