package poker

import (
	"fmt"
	"sort"
)

// Category enumerates hand categories ordered from weakest to strongest.
type Category uint8

const (
	HighCard Category = iota
	OnePair
	TwoPair
	ThreeOfAKind
	Straight
	Flush
	FullHouse
	FourOfAKind
	StraightFlush
)

// String returns a human-readable category name.
func (c Category) String() string {
	switch c {
	case HighCard:
		return "High Card"
	case OnePair:
		return "Pair"
	case TwoPair:
		return "Two Pair"
	case ThreeOfAKind:
		return "Three of a Kind"
	case Straight:
		return "Straight"
	case Flush:
		return "Flush"
	case FullHouse:
		return "Full House"
	case FourOfAKind:
		return "Four of a Kind"
	case StraightFlush:
		return "Straight Flush"
	default:
		return "Unknown"
	}
}

// HandRank is a totally ordered hand strength key: higher beats lower,
// equal keys tie. The category ordinal occupies the top bits, followed by
// five 4-bit rank nibbles in dominant-first order (pair ranks before
// kickers, kickers descending). Two 5-card hands drawable from the same
// deck compare correctly under plain integer comparison.
type HandRank uint32

// packRank builds a HandRank from a category and up to five defining ranks.
func packRank(cat Category, ranks ...Rank) HandRank {
	r := HandRank(cat) << 20
	shift := 16
	for _, rank := range ranks {
		r |= HandRank(rank) << shift
		shift -= 4
	}
	return r
}

// Category returns the hand category encoded in the rank.
func (hr HandRank) Category() Category {
	return Category(hr >> 20)
}

// String describes the rank, e.g. "Full House (KKK99)".
func (hr HandRank) String() string {
	s := hr.Category().String() + " ("
	for shift := 16; shift >= 0; shift -= 4 {
		if r := Rank(hr >> shift & 0xf); r >= Two {
			s += r.String()
		}
	}
	return s + ")"
}

// Evaluate returns the best 5-card hand rank drawable from 5 to 7 cards.
func Evaluate(cards []Card) (HandRank, error) {
	if len(cards) < 5 || len(cards) > 7 {
		return 0, fmt.Errorf("evaluate needs 5-7 cards, got %d", len(cards))
	}
	if len(cards) == 5 {
		return evaluate5([5]Card(cards)), nil
	}

	var best HandRank
	forEachFive(cards, func(hand [5]Card) {
		if r := evaluate5(hand); r > best {
			best = r
		}
	})
	return best, nil
}

// BestFive returns the winning 5-card subset along with its rank. The
// returned cards are sorted by descending rank for display.
func BestFive(cards []Card) ([]Card, HandRank, error) {
	if len(cards) < 5 || len(cards) > 7 {
		return nil, 0, fmt.Errorf("evaluate needs 5-7 cards, got %d", len(cards))
	}

	var best HandRank
	var bestHand [5]Card
	forEachFive(cards, func(hand [5]Card) {
		if r := evaluate5(hand); r > best {
			best = r
			bestHand = hand
		}
	})
	result := bestHand[:]
	sort.Slice(result, func(i, j int) bool { return result[i].Rank > result[j].Rank })
	return result, best, nil
}

// forEachFive visits every 5-card combination of the input.
func forEachFive(cards []Card, fn func([5]Card)) {
	n := len(cards)
	if n == 5 {
		fn([5]Card(cards))
		return
	}
	var hand [5]Card
	for a := 0; a < n-4; a++ {
		hand[0] = cards[a]
		for b := a + 1; b < n-3; b++ {
			hand[1] = cards[b]
			for c := b + 1; c < n-2; c++ {
				hand[2] = cards[c]
				for d := c + 1; d < n-1; d++ {
					hand[3] = cards[d]
					for e := d + 1; e < n; e++ {
						hand[4] = cards[e]
						fn(hand)
					}
				}
			}
		}
	}
}

// evaluate5 ranks exactly five cards.
func evaluate5(hand [5]Card) HandRank {
	var counts [15]uint8
	flush := true
	for i, c := range hand {
		counts[c.Rank]++
		if i > 0 && c.Suit != hand[0].Suit {
			flush = false
		}
	}

	straightHigh := straightHighCard(counts)

	if flush && straightHigh > 0 {
		return packRank(StraightFlush, straightHigh)
	}

	// Group ranks by multiplicity, higher counts first, then higher ranks.
	var quads, trips, pairs, singles []Rank
	for r := Ace; r >= Two; r-- {
		switch counts[r] {
		case 4:
			quads = append(quads, r)
		case 3:
			trips = append(trips, r)
		case 2:
			pairs = append(pairs, r)
		case 1:
			singles = append(singles, r)
		}
	}

	switch {
	case len(quads) == 1:
		return packRank(FourOfAKind, quads[0], singles[0])
	case len(trips) == 1 && len(pairs) == 1:
		return packRank(FullHouse, trips[0], pairs[0])
	case flush:
		return packRank(Flush, singles[0], singles[1], singles[2], singles[3], singles[4])
	case straightHigh > 0:
		return packRank(Straight, straightHigh)
	case len(trips) == 1:
		return packRank(ThreeOfAKind, trips[0], singles[0], singles[1])
	case len(pairs) == 2:
		return packRank(TwoPair, pairs[0], pairs[1], singles[0])
	case len(pairs) == 1:
		return packRank(OnePair, pairs[0], singles[0], singles[1], singles[2])
	default:
		return packRank(HighCard, singles[0], singles[1], singles[2], singles[3], singles[4])
	}
}

// straightHighCard returns the high card of a 5-card straight, or 0. The
// wheel A-2-3-4-5 reports 5 as its high card.
func straightHighCard(counts [15]uint8) Rank {
	run := 0
	for r := Two; r <= Ace; r++ {
		if counts[r] == 0 {
			run = 0
			continue
		}
		run++
		if run == 5 {
			return r
		}
	}
	if counts[Ace] > 0 && counts[Two] > 0 && counts[Three] > 0 && counts[Four] > 0 && counts[Five] > 0 {
		return Five
	}
	return 0
}
