package table

import "time"

// Config is the immutable per-table rule set. The registry hands each
// table a copy at creation; running hands never see config changes.
type Config struct {
	MinPlayers int
	MaxPlayers int

	SmallBlind int
	BigBlind   int

	MinBuyIn     int
	MaxBuyIn     int
	DefaultBuyIn int

	TurnTimer       time.Duration
	TimeBankSeconds int

	HandStartDelay   time.Duration
	ShowdownDelay    time.Duration
	SitOutAutoRemove time.Duration

	MaxHandHistory int

	EloKFactor float64
	DefaultElo float64
}

// DefaultConfig returns the standard table rules.
func DefaultConfig() Config {
	return Config{
		MinPlayers:       2,
		MaxPlayers:       9,
		SmallBlind:       1,
		BigBlind:         2,
		MinBuyIn:         40,
		MaxBuyIn:         400,
		DefaultBuyIn:     200,
		TurnTimer:        15 * time.Second,
		TimeBankSeconds:  30,
		HandStartDelay:   3 * time.Second,
		ShowdownDelay:    2 * time.Second,
		SitOutAutoRemove: 10 * time.Minute,
		MaxHandHistory:   100,
		EloKFactor:       32,
		DefaultElo:       1000,
	}
}
