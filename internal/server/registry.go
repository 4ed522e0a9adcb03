package server

import (
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/google/uuid"

	"github.com/feltnet/felt/internal/randutil"
	"github.com/feltnet/felt/internal/table"
)

// Registry is the only cross-table structure: it creates the configured
// tables and routes session tokens to them. Tables own all player state;
// the registry owns only the routing maps.
type Registry struct {
	logger *log.Logger

	mu      sync.RWMutex
	tables  map[string]*table.Table
	configs map[string]table.Config
	order   []string // configured listing order; order[0] is the default table
	byToken map[string]string

	closed bool
}

func errInvalidName(reason string) *table.Error {
	return &table.Error{Kind: table.KindValidation, Code: "invalid_name", Message: reason}
}

func errDuplicateName() *table.Error {
	return &table.Error{Kind: table.KindRouting, Code: "duplicate_name", Message: "that name is already seated at this table"}
}

func errUnknownTable() *table.Error {
	return &table.Error{Kind: table.KindRouting, Code: "unknown_table", Message: "no such table"}
}

func errBuyInOutOfRange(reason string) *table.Error {
	return &table.Error{Kind: table.KindValidation, Code: "invalid_buy_in", Message: reason}
}

func errUnknownAction(reason string) *table.Error {
	return &table.Error{Kind: table.KindValidation, Code: "invalid_action", Message: reason}
}

func errInvalidLimit(reason string) *table.Error {
	return &table.Error{Kind: table.KindValidation, Code: "invalid_limit", Message: reason}
}

// Sentinels for errors.Is comparisons.
var (
	ErrInvalidName   = errInvalidName("")
	ErrDuplicateName = errDuplicateName()
	ErrUnknownTable  = errUnknownTable()
)

// NewRegistry builds every configured table. Each table gets its own RNG
// stream derived from the server seed so deals on one table never depend
// on activity at another.
func NewRegistry(cfg *Config, logger *log.Logger, clock quartz.Clock, seed int64, bcast table.Broadcaster) *Registry {
	r := &Registry{
		logger:  logger.WithPrefix("registry"),
		tables:  make(map[string]*table.Table),
		configs: make(map[string]table.Config),
		byToken: make(map[string]string),
	}
	for i, ts := range cfg.Tables {
		tc := ts.TableConfig()
		r.tables[ts.Name] = table.New(ts.Name, tc, logger, clock, randutil.New(seed+int64(i)), bcast)
		r.configs[ts.Name] = tc
		r.order = append(r.order, ts.Name)
		r.logger.Info("table created", "table", ts.Name, "blinds", fmt.Sprintf("%d/%d", tc.SmallBlind, tc.BigBlind))
	}
	return r
}

// Close shuts every table down.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	for _, tbl := range r.tables {
		tbl.Close()
	}
}

// Join validates the request, seats the player and issues their session
// token.
func (r *Registry) Join(req JoinRequest) (JoinResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return JoinResponse{}, errInvalidName("name must not be empty")
	}
	if len(name) > 32 {
		return JoinResponse{}, errInvalidName("name must be at most 32 characters")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tableID := req.Table
	if tableID == "" && len(r.order) > 0 {
		tableID = r.order[0]
	}
	tbl, ok := r.tables[tableID]
	if !ok {
		return JoinResponse{}, errUnknownTable()
	}
	cfg := r.configs[tableID]

	buyIn := req.BuyIn
	if buyIn == 0 {
		buyIn = cfg.DefaultBuyIn
	}
	if buyIn < cfg.MinBuyIn || buyIn > cfg.MaxBuyIn {
		return JoinResponse{}, errBuyInOutOfRange(fmt.Sprintf("buy-in must be between %d and %d", cfg.MinBuyIn, cfg.MaxBuyIn))
	}

	for _, s := range tbl.PublicState().Seats {
		if s.Name == name {
			return JoinResponse{}, errDuplicateName()
		}
	}

	token := uuid.NewString()
	p := &table.Player{Token: token, Name: name, Stack: buyIn}
	seat, err := tbl.SeatPlayer(p)
	if err != nil {
		return JoinResponse{}, err
	}
	r.byToken[token] = tableID

	r.logger.Info("player joined", "table", tableID, "name", name, "seat", seat, "buyIn", buyIn)
	return JoinResponse{
		Token:   token,
		TableID: tableID,
		Seat:    seat,
		Stack:   buyIn,
		Welcome: fmt.Sprintf("Welcome to %s, %s. Mitsuki has your seat ready.", tableID, name),
	}, nil
}

// tableFor resolves a token to its table.
func (r *Registry) tableFor(token string) (*table.Table, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tableID, ok := r.byToken[token]
	if !ok {
		return nil, table.ErrUnknownPlayer
	}
	return r.tables[tableID], nil
}

// Action applies a betting action for the token's player.
func (r *Registry) Action(token, action string, amount int) (string, error) {
	tbl, err := r.tableFor(token)
	if err != nil {
		return "", err
	}
	typ, err := table.ParseActionType(action)
	if err != nil {
		return "", errUnknownAction(err.Error())
	}
	if err := tbl.HandleAction(token, table.Action{Type: typ, Amount: amount}); err != nil {
		return "", err
	}
	return typ.String(), nil
}

// State returns the private view for a token.
func (r *Registry) State(token string) (table.PrivateView, error) {
	tbl, err := r.tableFor(token)
	if err != nil {
		return table.PrivateView{}, err
	}
	return tbl.StateForPlayer(token)
}

// Leave removes the player and forgets the token.
func (r *Registry) Leave(token string) (int, error) {
	tbl, err := r.tableFor(token)
	if err != nil {
		return 0, err
	}
	stack, err := tbl.RemovePlayer(token)
	if err != nil {
		return 0, err
	}
	r.mu.Lock()
	delete(r.byToken, token)
	r.mu.Unlock()
	return stack, nil
}

// SitOut marks the token's player sitting out.
func (r *Registry) SitOut(token string) error {
	tbl, err := r.tableFor(token)
	if err != nil {
		return err
	}
	return tbl.SetSitOut(token)
}

// Return brings the token's player back for the next hand.
func (r *Registry) Return(token string) error {
	tbl, err := r.tableFor(token)
	if err != nil {
		return err
	}
	return tbl.ReturnFromSitOut(token)
}

// Rebuy tops up the token's stack between hands.
func (r *Registry) Rebuy(token string, amount int) (int, error) {
	tbl, err := r.tableFor(token)
	if err != nil {
		return 0, err
	}
	return tbl.Rebuy(token, amount)
}

// Tables lists the public view of every table in configured order.
func (r *Registry) Tables() []table.View {
	r.mu.RLock()
	tables := make([]*table.Table, 0, len(r.order))
	for _, id := range r.order {
		tables = append(tables, r.tables[id])
	}
	r.mu.RUnlock()

	views := make([]table.View, 0, len(tables))
	for _, tbl := range tables {
		views = append(views, tbl.PublicState())
	}
	return views
}

// History returns up to limit hand records for a table, newest first. An
// empty tableID means the default table.
func (r *Registry) History(tableID string, limit int) ([]table.HandRecord, error) {
	r.mu.RLock()
	if tableID == "" && len(r.order) > 0 {
		tableID = r.order[0]
	}
	tbl, ok := r.tables[tableID]
	r.mu.RUnlock()
	if !ok {
		return nil, errUnknownTable()
	}
	return tbl.History(limit), nil
}

// Disconnected notifies the token's table that its push channel is gone.
func (r *Registry) Disconnected(token string) {
	if tbl, err := r.tableFor(token); err == nil {
		tbl.PlayerDisconnected(token)
	}
}

// Reconnected clears the token's disconnect flag.
func (r *Registry) Reconnected(token string) {
	if tbl, err := r.tableFor(token); err == nil {
		tbl.PlayerReconnected(token)
	}
}

// TableIDFor resolves a token to its table ID.
func (r *Registry) TableIDFor(token string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byToken[token]
	return id, ok
}

// KnownToken reports whether a token routes to a table.
func (r *Registry) KnownToken(token string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byToken[token]
	return ok
}
