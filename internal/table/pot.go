package table

import (
	"fmt"
	"sort"
)

// Pot is one layer of the hand's chips: the amount, the cap that defines
// the layer, and the seats that can win it.
type Pot struct {
	Amount   int    `json:"amount"`
	Cap      int    `json:"cap"` // per-player contribution ceiling; 0 for an uncapped pot
	Eligible []int  `json:"eligibleSeats"`
	Label    string `json:"label"`
}

// calculatePots converts per-player hand contributions into an ordered
// main pot plus side pots.
//
// The distinct TotalBetThisHand levels of seats still in contention form
// ascending thresholds; each threshold takes a layer from every seat's
// contribution (folded seats pay into layers but are never eligible), and
// a layer's pot can only be won by contenders who covered it. The sum of
// all pot amounts always equals the sum of all contributions.
func calculatePots(seats []*Player) []Pot {
	var thresholds []int
	seen := make(map[int]bool)
	for _, p := range seats {
		if p == nil || !p.contender() || p.TotalBetThisHand == 0 {
			continue
		}
		if !seen[p.TotalBetThisHand] {
			seen[p.TotalBetThisHand] = true
			thresholds = append(thresholds, p.TotalBetThisHand)
		}
	}
	sort.Ints(thresholds)

	if len(thresholds) == 0 {
		return nil
	}

	var pots []Pot
	prev := 0
	for _, level := range thresholds {
		pot := Pot{Cap: level}
		for _, p := range seats {
			if p == nil {
				continue
			}
			layer := p.TotalBetThisHand - prev
			if layer > level-prev {
				layer = level - prev
			}
			if layer > 0 {
				pot.Amount += layer
			}
			if p.contender() && p.TotalBetThisHand >= level {
				pot.Eligible = append(pot.Eligible, p.Seat)
			}
		}
		if pot.Amount > 0 {
			pots = append(pots, pot)
		}
		prev = level
	}

	// Contributions above the top threshold can only come from folded
	// seats; that money is dead and goes to the top pot.
	dead := 0
	for _, p := range seats {
		if p != nil && p.TotalBetThisHand > prev {
			dead += p.TotalBetThisHand - prev
		}
	}
	if dead > 0 && len(pots) > 0 {
		pots[len(pots)-1].Amount += dead
	}

	for i := range pots {
		if i == 0 {
			pots[i].Label = "Main Pot"
		} else {
			pots[i].Label = fmt.Sprintf("Side Pot %d", i)
		}
	}
	return pots
}

// potTotal sums the amounts across pots.
func potTotal(pots []Pot) int {
	total := 0
	for _, p := range pots {
		total += p.Amount
	}
	return total
}

// buttonDistance measures clockwise seats from the button to seat, used
// for the odd-chip rule: the winner closest to the button's left gets the
// remainder. The button itself orders last.
func buttonDistance(button, seat, maxSeats int) int {
	d := ((seat-button)%maxSeats + maxSeats) % maxSeats
	if d == 0 {
		d = maxSeats
	}
	return d
}
