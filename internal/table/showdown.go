package table

import (
	"fmt"
	"sort"
	"strings"

	"github.com/feltnet/felt/poker"
)

// doShowdown reveals the remaining contenders, ranks their hands and
// distributes every pot. Runs on the actor loop with all streets closed.
func (t *Table) doShowdown() {
	t.cancelTurnTimers()
	t.currentActorSeat = -1
	t.phase = PhaseShowdown
	t.pots = calculatePots(t.seats)

	type holding struct {
		p    *Player
		rank poker.HandRank
		best []poker.Card
	}
	holdings := make(map[int]holding)
	var hands []ShowdownHand
	for _, p := range t.seats {
		if p == nil || !p.contender() {
			continue
		}
		all := append(append([]poker.Card(nil), p.HoleCards...), t.community...)
		best, rank, err := poker.BestFive(all)
		if err != nil {
			panic(err) // showdown always has seven cards per contender
		}
		holdings[p.Seat] = holding{p: p, rank: rank, best: best}
		hands = append(hands, ShowdownHand{
			Seat:      p.Seat,
			Name:      p.Name,
			HoleCards: append([]poker.Card(nil), p.HoleCards...),
			Category:  rank.String(),
			BestFive:  best,
		})
		t.logEvent(fmt.Sprintf("seat %d shows %v (%s)", p.Seat, p.HoleCards, rank))
	}

	// Pots resolve main first, then side pots in ascending cap order, which
	// is the order calculatePots builds them in.
	var results []PotResult
	wonSeats := make(map[int]bool)
	for _, pot := range t.pots {
		var best poker.HandRank
		var winners []int
		for _, seat := range pot.Eligible {
			h, ok := holdings[seat]
			if !ok {
				continue
			}
			switch {
			case len(winners) == 0 || h.rank > best:
				best = h.rank
				winners = []int{seat}
			case h.rank == best:
				winners = append(winners, seat)
			}
		}
		if len(winners) == 0 {
			// Every eligible seat vanished mid-hand; conservation demands
			// the chips go somewhere.
			panic(fmt.Sprintf("pot %q has no winner", pot.Label))
		}

		share := pot.Amount / len(winners)
		remainder := pot.Amount % len(winners)
		odd := oddChipSeat(winners, t.dealerSeat, len(t.seats))
		for _, seat := range winners {
			amount := share
			if remainder > 0 && seat == odd {
				amount += remainder
			}
			t.seats[seat].Stack += amount
			wonSeats[seat] = true
		}
		sort.Ints(winners)
		results = append(results, PotResult{Label: pot.Label, Amount: pot.Amount, Winners: winners})
		t.logEvent(fmt.Sprintf("%s (%d) to seats %v", pot.Label, pot.Amount, winners))
	}

	for seat := range wonSeats {
		t.seats[seat].HandsWon++
	}
	t.updateElo(wonSeats)

	t.broadcast(EventShowdown, ShowdownData{
		Community: append([]poker.Card(nil), t.community...),
		Hands:     hands,
		Pots:      results,
	})
	t.narrate(showdownNarration(hands, results, holdings[firstWinner(results)].rank))

	t.finishHand(results, hands, false)
}

// awardUncontested gives the whole pot to the last contender without a
// reveal and closes the hand.
func (t *Table) awardUncontested(winner *Player) {
	t.cancelTurnTimers()
	t.currentActorSeat = -1
	t.phase = PhaseShowdown

	total := t.pot
	winner.Stack += total
	winner.HandsWon++

	t.logEvent(fmt.Sprintf("seat %d wins %d uncontested", winner.Seat, total))
	t.narrate(fmt.Sprintf("%s takes it down. %d chips, no questions asked.", winner.Name, total))

	results := []PotResult{{Label: "Main Pot", Amount: total, Winners: []int{winner.Seat}}}
	t.finishHand(results, nil, true)
}

// finishHand records history, announces completion and resets the table.
func (t *Table) finishHand(results []PotResult, hands []ShowdownHand, uncontested bool) {
	total := 0
	winnerSet := make(map[int]bool)
	for _, r := range results {
		total += r.Amount
		for _, s := range r.Winners {
			winnerSet[s] = true
		}
	}
	winners := make([]int, 0, len(winnerSet))
	for s := range winnerSet {
		winners = append(winners, s)
	}
	sort.Ints(winners)

	stacks := make(map[int]int)
	for _, p := range t.seats {
		if p != nil && p.inHand() {
			stacks[p.Seat] = p.Stack
		}
	}

	t.history.add(HandRecord{
		HandNumber:  t.handNumber,
		Completed:   t.clock.Now(),
		Community:   append([]poker.Card(nil), t.community...),
		Pots:        results,
		Showdown:    hands,
		Winners:     winners,
		PotTotal:    total,
		Uncontested: uncontested,
		Log:         t.handLog,
	})
	t.handLog = nil

	t.logger.Info("hand complete", "hand", t.handNumber, "pot", total, "winners", winners, "uncontested", uncontested)
	t.broadcast(EventHandComplete, HandCompleteData{
		Winners:     winners,
		Pot:         total,
		Uncontested: uncontested,
		Stacks:      stacks,
	})
	t.endHand()
}

// oddChipSeat picks which winner receives the indivisible remainder: the
// one fewest seats clockwise from the button.
func oddChipSeat(winners []int, button, maxSeats int) int {
	best := winners[0]
	bestDist := buttonDistance(button, best, maxSeats)
	for _, seat := range winners[1:] {
		if d := buttonDistance(button, seat, maxSeats); d < bestDist {
			best = seat
			bestDist = d
		}
	}
	return best
}

func firstWinner(results []PotResult) int {
	if len(results) == 0 || len(results[0].Winners) == 0 {
		return -1
	}
	return results[0].Winners[0]
}

func showdownNarration(hands []ShowdownHand, results []PotResult, winning poker.HandRank) string {
	if len(results) == 0 {
		return "That's the hand."
	}
	var names []string
	seen := make(map[int]bool)
	for _, h := range hands {
		for _, r := range results {
			for _, w := range r.Winners {
				if w == h.Seat && !seen[w] {
					seen[w] = true
					names = append(names, h.Name)
				}
			}
		}
	}
	if len(names) == 0 {
		return "That's the hand."
	}
	if len(names) == 1 {
		return fmt.Sprintf("%s wins with %s.", names[0], winning)
	}
	return fmt.Sprintf("Split pot. %s chop it up with %s.", strings.Join(names, " and "), winning)
}
