package table

import (
	"fmt"
	"time"

	"github.com/feltnet/felt/poker"
)

// LogEntry is one line of a hand's play-by-play log.
type LogEntry struct {
	Time time.Time `json:"time"`
	Text string    `json:"text"`
}

// HandRecord is the archived outcome of one hand. Hole cards appear only
// for hands that reached showdown.
type HandRecord struct {
	HandNumber  int            `json:"handNumber"`
	Completed   time.Time      `json:"completed"`
	Community   []poker.Card   `json:"community"`
	Pots        []PotResult    `json:"pots"`
	Showdown    []ShowdownHand `json:"showdown,omitempty"`
	Winners     []int          `json:"winnerSeats"`
	PotTotal    int            `json:"potTotal"`
	Uncontested bool           `json:"uncontested"`
	Log         []LogEntry     `json:"log"`
}

// historyRing keeps the most recent hand records up to a fixed capacity.
type historyRing struct {
	recs  []HandRecord
	next  int
	count int
}

func newHistoryRing(capacity int) *historyRing {
	if capacity < 1 {
		capacity = 1
	}
	return &historyRing{recs: make([]HandRecord, capacity)}
}

func (h *historyRing) add(rec HandRecord) {
	h.recs[h.next] = rec
	h.next = (h.next + 1) % len(h.recs)
	if h.count < len(h.recs) {
		h.count++
	}
}

// recent returns up to limit records, newest first. limit <= 0 means all.
func (h *historyRing) recent(limit int) []HandRecord {
	n := h.count
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]HandRecord, 0, n)
	for i := 1; i <= n; i++ {
		idx := (h.next - i + len(h.recs)) % len(h.recs)
		out = append(out, h.recs[idx])
	}
	return out
}

// logEvent appends a timestamped line to the running hand log.
func (t *Table) logEvent(text string) {
	t.handLog = append(t.handLog, LogEntry{Time: t.clock.Now(), Text: text})
}

// logAction records a player action in the hand log.
func (t *Table) logAction(p *Player, verb string, amount int) {
	if amount > 0 {
		t.logEvent(fmt.Sprintf("seat %d (%s) %s %d", p.Seat, p.Name, verb, amount))
		return
	}
	t.logEvent(fmt.Sprintf("seat %d (%s) %s", p.Seat, p.Name, verb))
}
