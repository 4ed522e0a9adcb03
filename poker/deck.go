package poker

import (
	"errors"
	rand "math/rand/v2"
)

// ErrDeckExhausted is returned when more cards are requested than remain.
// Hitting it mid-hand indicates a dealing bug, not a recoverable condition.
var ErrDeckExhausted = errors.New("deck exhausted")

// Deck is a standard 52-card deck dealt from the top.
type Deck struct {
	cards [52]Card
	next  int
	rng   *rand.Rand
}

// NewDeck creates a deck in canonical order using the provided RNG for
// shuffling. The deck is not shuffled until Shuffle or Reset is called.
func NewDeck(rng *rand.Rand) *Deck {
	d := &Deck{rng: rng}
	d.rebuild()
	return d
}

// rebuild restores the canonical suit-major, rank-minor order.
func (d *Deck) rebuild() {
	i := 0
	for suit := Clubs; suit <= Spades; suit++ {
		for rank := Two; rank <= Ace; rank++ {
			d.cards[i] = NewCard(rank, suit)
			i++
		}
	}
	d.next = 0
}

// Reset restores the full 52 cards in canonical order and shuffles.
func (d *Deck) Reset() {
	d.rebuild()
	d.Shuffle()
}

// Shuffle performs a uniform Fisher-Yates shuffle of the remaining cards.
func (d *Deck) Shuffle() {
	for i := len(d.cards) - 1; i > d.next; i-- {
		j := d.next + d.rng.IntN(i-d.next+1)
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	}
}

// Deal removes and returns the top n cards.
func (d *Deck) Deal(n int) ([]Card, error) {
	if d.next+n > len(d.cards) {
		return nil, ErrDeckExhausted
	}
	cards := make([]Card, n)
	copy(cards, d.cards[d.next:d.next+n])
	d.next += n
	return cards, nil
}

// Burn discards the top card with no observable output.
func (d *Deck) Burn() error {
	if d.next >= len(d.cards) {
		return ErrDeckExhausted
	}
	d.next++
	return nil
}

// Remaining returns the number of undealt cards.
func (d *Deck) Remaining() int {
	return len(d.cards) - d.next
}

// Stack places the given cards on top of the remaining deck, in order.
// Cards already dealt are unaffected. Used by tests to rig deals.
func (d *Deck) Stack(cards []Card) {
	pos := make(map[Card]int, 52)
	for i := d.next; i < len(d.cards); i++ {
		pos[d.cards[i]] = i
	}
	target := d.next
	for _, c := range cards {
		i, ok := pos[c]
		if !ok {
			continue
		}
		other := d.cards[target]
		d.cards[target], d.cards[i] = d.cards[i], other
		pos[other] = i
		pos[c] = target
		target++
	}
}
