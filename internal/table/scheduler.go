package table

import "time"

// The turn scheduler arms exactly one timer chain per prompted actor.
// Every armed callback captures the turnSeq fingerprint current at arm
// time; any fire whose fingerprint no longer matches is stale (the actor
// acted, the street moved on, the hand ended) and is discarded. All
// callbacks hop onto the actor queue, so timer logic never races actions.

// promptCurrentPlayer announces whose turn it is and starts the primary
// turn timer. Sitting-out and disconnected actors fold immediately.
func (t *Table) promptCurrentPlayer() {
	p := t.seats[t.currentActorSeat]
	if p == nil || !p.canAct() {
		return
	}

	t.turnSeq++
	t.timeBankLive = false
	seq := t.turnSeq

	toCall := t.currentBetLevel - p.CurrentBet
	if toCall < 0 {
		toCall = 0
	}
	t.broadcast(EventActionOn, ActionOnData{
		Seat:            p.Seat,
		Name:            p.Name,
		Pot:             t.pot,
		CurrentBetLevel: t.currentBetLevel,
		CurrentBet:      p.CurrentBet,
		ToCall:          toCall,
		MinRaise:        t.minRaise,
		TimeBank:        p.TimeBank,
		TimeoutMs:       t.cfg.TurnTimer.Milliseconds(),
	})

	if p.SitOut || p.Disconnected {
		t.applyFold(p, true)
		t.afterAction(p)
		return
	}

	t.turnTimer = t.clock.AfterFunc(t.cfg.TurnTimer, func() {
		t.enqueue(func() { t.onTurnExpired(seq) })
	})
}

// onTurnExpired fires when the primary turn timer runs out. If the actor
// has time bank left it cascades into a one-second countdown; otherwise
// the turn is folded.
func (t *Table) onTurnExpired(seq uint64) {
	if seq != t.turnSeq || !t.handLive() || t.currentActorSeat == -1 {
		return
	}
	p := t.seats[t.currentActorSeat]
	if p == nil || !p.canAct() {
		return
	}

	if p.TimeBank > 0 && !t.timeBankLive {
		t.timeBankLive = true
		t.logger.Debug("turn timer expired, engaging time bank", "seat", p.Seat, "timeBank", p.TimeBank)
		t.broadcast(EventTimeBank, TimeBankData{Seat: p.Seat, Remaining: p.TimeBank})
		t.turnTimer = t.clock.AfterFunc(time.Second, func() {
			t.enqueue(func() { t.onTimeBankTick(seq) })
		})
		return
	}

	t.timeoutFold(p)
}

// onTimeBankTick consumes one time-bank second. Seconds spent are kept
// even if the player acts before exhaustion; the bank never regenerates
// within a session.
func (t *Table) onTimeBankTick(seq uint64) {
	if seq != t.turnSeq || !t.handLive() || t.currentActorSeat == -1 {
		return
	}
	p := t.seats[t.currentActorSeat]
	if p == nil || !p.canAct() {
		return
	}

	p.TimeBank--
	t.broadcast(EventTimeBank, TimeBankData{Seat: p.Seat, Remaining: p.TimeBank})
	if p.TimeBank <= 0 {
		t.timeoutFold(p)
		return
	}
	t.turnTimer = t.clock.AfterFunc(time.Second, func() {
		t.enqueue(func() { t.onTimeBankTick(seq) })
	})
}

// timeoutFold synthesises a fold for the timed-out actor. Not an error:
// it flows through the normal action path with full visibility.
func (t *Table) timeoutFold(p *Player) {
	t.logger.Info("turn timed out, auto-folding", "seat", p.Seat, "name", p.Name, "hand", t.handNumber)
	t.applyFold(p, true)
	t.afterAction(p)
}

// cancelTurnTimers invalidates any outstanding turn or time-bank timer.
func (t *Table) cancelTurnTimers() {
	t.turnSeq++
	t.timeBankLive = false
	if t.turnTimer != nil {
		t.turnTimer.Stop()
		t.turnTimer = nil
	}
}

// startSitOutTimer arms (or restarts) the idle auto-removal clock for a
// sitting-out player.
func (t *Table) startSitOutTimer(p *Player) {
	t.sitOutSeq++
	seq := t.sitOutSeq
	p.sitOutSeq = seq
	if p.sitOutTimer != nil {
		p.sitOutTimer.Stop()
	}
	token := p.Token
	p.sitOutTimer = t.clock.AfterFunc(t.cfg.SitOutAutoRemove, func() {
		t.enqueue(func() {
			pp, ok := t.tokens[token]
			if !ok || pp.sitOutSeq != seq || !pp.SitOut {
				return
			}
			t.logger.Info("removing idle player", "name", pp.Name, "seat", pp.Seat)
			t.removeSeat(pp, "idle")
		})
	})
}

// stopSitOutTimer cancels the idle auto-removal clock.
func (t *Table) stopSitOutTimer(p *Player) {
	if p.sitOutTimer != nil {
		p.sitOutTimer.Stop()
		p.sitOutTimer = nil
	}
	p.sitOutSeq = 0
}
