package table

import "math"

// updateElo applies the pairwise rating update between every pair of
// showdown contenders. Each pair is treated as a match: actual is 1 for
// a seat among the winners and 0 otherwise, expected follows the
// standard logistic curve, and the full K factor applies per pairing.
// Folded seats and uncontested hands never move ratings.
func (t *Table) updateElo(winners map[int]bool) {
	var parts []*Player
	for _, p := range t.seats {
		if p != nil && p.contender() {
			parts = append(parts, p)
		}
	}
	if len(parts) < 2 {
		return
	}

	deltas := make(map[int]float64, len(parts))
	for _, a := range parts {
		for _, b := range parts {
			if a.Seat == b.Seat {
				continue
			}
			score := 0.0
			if winners[a.Seat] {
				score = 1
			}
			expected := 1 / (1 + math.Pow(10, (b.Elo-a.Elo)/400))
			deltas[a.Seat] += t.cfg.EloKFactor * (score - expected)
		}
	}

	for _, p := range parts {
		p.Elo += deltas[p.Seat]
	}
}
