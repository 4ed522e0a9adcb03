package poker

import "fmt"

// Suit represents a card suit.
type Suit uint8

const (
	Clubs Suit = iota
	Diamonds
	Hearts
	Spades
)

// String returns the single-letter suit code used on the wire.
func (s Suit) String() string {
	switch s {
	case Clubs:
		return "c"
	case Diamonds:
		return "d"
	case Hearts:
		return "h"
	case Spades:
		return "s"
	default:
		return "?"
	}
}

// Rank represents a card rank. Aces are high (14) but play low in the
// wheel straight.
type Rank uint8

const (
	Two Rank = iota + 2
	Three
	Four
	Five
	Six
	Seven
	Eight
	Nine
	Ten
	Jack
	Queen
	King
	Ace
)

// String returns the single-letter rank code used on the wire.
func (r Rank) String() string {
	switch {
	case r >= Two && r <= Nine:
		return string(rune('0' + int(r)))
	case r == Ten:
		return "T"
	case r == Jack:
		return "J"
	case r == Queen:
		return "Q"
	case r == King:
		return "K"
	case r == Ace:
		return "A"
	default:
		return "?"
	}
}

// Card is a single playing card. The zero value is not a valid card.
type Card struct {
	Rank Rank
	Suit Suit
}

// NewCard creates a card from a rank and suit.
func NewCard(rank Rank, suit Suit) Card {
	return Card{Rank: rank, Suit: suit}
}

// String returns the two-letter card code, e.g. "As" or "Td".
func (c Card) String() string {
	return c.Rank.String() + c.Suit.String()
}

// MarshalJSON encodes the card as its two-letter code.
func (c Card) MarshalJSON() ([]byte, error) {
	return []byte(`"` + c.String() + `"`), nil
}

// UnmarshalJSON decodes a two-letter card code.
func (c *Card) UnmarshalJSON(data []byte) error {
	if len(data) != 4 || data[0] != '"' || data[3] != '"' {
		return fmt.Errorf("invalid card %q", data)
	}
	card, err := ParseCard(string(data[1:3]))
	if err != nil {
		return err
	}
	*c = card
	return nil
}

// ParseCard parses a two-letter card code like "As" or "Td".
func ParseCard(s string) (Card, error) {
	if len(s) != 2 {
		return Card{}, fmt.Errorf("invalid card %q", s)
	}

	var rank Rank
	switch s[0] {
	case '2', '3', '4', '5', '6', '7', '8', '9':
		rank = Rank(s[0] - '0')
	case 'T', 't':
		rank = Ten
	case 'J', 'j':
		rank = Jack
	case 'Q', 'q':
		rank = Queen
	case 'K', 'k':
		rank = King
	case 'A', 'a':
		rank = Ace
	default:
		return Card{}, fmt.Errorf("invalid rank %q", s[0])
	}

	var suit Suit
	switch s[1] {
	case 'c', 'C':
		suit = Clubs
	case 'd', 'D':
		suit = Diamonds
	case 'h', 'H':
		suit = Hearts
	case 's', 'S':
		suit = Spades
	default:
		return Card{}, fmt.Errorf("invalid suit %q", s[1])
	}

	return Card{Rank: rank, Suit: suit}, nil
}

// MustParseCards parses a space-separated list of card codes, panicking on
// bad input. Intended for tests and stacked decks.
func MustParseCards(s string) []Card {
	var cards []Card
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ' ' {
			if i > start {
				card, err := ParseCard(s[start:i])
				if err != nil {
					panic(err)
				}
				cards = append(cards, card)
			}
			start = i + 1
		}
	}
	return cards
}
