package table

import "fmt"

// HandleAction is the primary entry point for player actions. Timer
// expirations and disconnect folds are synthesised through the same
// application path, so every mutation of betting state happens here.
func (t *Table) HandleAction(token string, a Action) error {
	return t.do(func() error {
		p, ok := t.tokens[token]
		if !ok {
			return errUnknownPlayer()
		}
		if !t.handLive() {
			return errNoActiveHand()
		}
		if p.Seat != t.currentActorSeat {
			return errNotYourTurn()
		}
		return t.applyAction(p, a, false)
	})
}

// applyAction validates and applies an action for the current actor. On
// a validation error the table state is untouched.
func (t *Table) applyAction(p *Player, a Action, synthetic bool) error {
	toCall := t.currentBetLevel - p.CurrentBet

	switch a.Type {
	case Fold:
		t.applyFold(p, synthetic)

	case Check:
		if toCall > 0 {
			return errIllegalAction(fmt.Sprintf("cannot check with %d to call", toCall))
		}
		t.cancelTurnTimers()
		p.acted = true
		p.LastAction = "check"
		t.logAction(p, "checks", 0)
		t.broadcastAction(p, "check", 0, synthetic)

	case Call:
		if toCall <= 0 {
			return errIllegalAction("nothing to call; check instead")
		}
		t.cancelTurnTimers()
		moved := p.commit(toCall)
		t.pot += moved
		p.acted = true
		p.LastAction = "call"
		t.logAction(p, "calls", moved)
		t.broadcastAction(p, "call", moved, synthetic)

	case Raise:
		target := a.Amount
		need := target - p.CurrentBet
		if target <= t.currentBetLevel {
			return errIllegalAction(fmt.Sprintf("raise must exceed the current bet of %d", t.currentBetLevel))
		}
		if need > p.Stack {
			return errIllegalAction("insufficient chips")
		}
		if p.acted {
			// Action was not reopened for this player (an incomplete
			// all-in raise moved the level); they may only call or fold.
			return errIllegalAction("raising is not reopened after an incomplete all-in raise")
		}
		allIn := need == p.Stack
		increment := target - t.currentBetLevel
		if increment < t.minRaise && !allIn {
			return errIllegalAction(fmt.Sprintf("raise too small, minimum raise to %d", t.currentBetLevel+t.minRaise))
		}

		t.cancelTurnTimers()
		moved := p.commit(need)
		t.pot += moved

		// A full raise grows minRaise and reopens the action; an
		// incomplete all-in raise moves the level only.
		if increment >= t.minRaise {
			t.minRaise = increment
			for _, other := range t.seats {
				if other != nil && other != p && other.canAct() {
					other.acted = false
				}
			}
		}
		t.currentBetLevel = target

		p.acted = true
		p.LastAction = "raise"
		t.logAction(p, fmt.Sprintf("raises to %d", target), 0)
		t.broadcastAction(p, "raise", target, synthetic)

	default:
		return errIllegalAction("unknown action")
	}

	t.afterAction(p)
	return nil
}

// applyFold marks the player folded. Used by the action path and by the
// synthetic folds from timeouts, sit-outs, disconnects and removals.
func (t *Table) applyFold(p *Player, synthetic bool) {
	t.cancelTurnTimers()
	p.Status = StatusFolded
	p.acted = true
	p.LastAction = "fold"
	t.logAction(p, "folds", 0)
	t.broadcastAction(p, "fold", 0, synthetic)
}

func (t *Table) broadcastAction(p *Player, action string, amount int, synthetic bool) {
	t.broadcast(EventPlayerAction, PlayerActionData{
		Seat:      p.Seat,
		Name:      p.Name,
		Action:    action,
		Amount:    amount,
		AllIn:     p.Status == StatusAllIn,
		Synthetic: synthetic,
		Pot:       t.pot,
	})
}

// afterAction advances the hand after any applied action.
func (t *Table) afterAction(p *Player) {
	t.assertConservation()
	if t.checkHandStillContested() {
		return
	}
	if t.roundComplete() {
		t.endBettingRound()
		return
	}
	next := t.nextSeat(t.currentActorSeat, (*Player).canAct)
	if next == -1 {
		t.endBettingRound()
		return
	}
	t.currentActorSeat = next
	t.promptCurrentPlayer()
}

// roundComplete reports whether the street's betting is closed: every
// player who can still act has taken a voluntary action this street and
// matched the bet level. Blind posts do not count as acting, which gives
// the blinds their preflop option.
func (t *Table) roundComplete() bool {
	for _, p := range t.seats {
		if p == nil || !p.canAct() {
			continue
		}
		if !p.acted || p.CurrentBet != t.currentBetLevel {
			return false
		}
	}
	return true
}

// countCanAct counts players who may still take actions.
func (t *Table) countCanAct() int {
	n := 0
	for _, p := range t.seats {
		if p != nil && p.canAct() {
			n++
		}
	}
	return n
}

// roundActionable reports whether any betting can still happen this
// street. With at most one player able to act, action only continues if
// that player still faces a bet.
func (t *Table) roundActionable() bool {
	var lone *Player
	n := 0
	for _, p := range t.seats {
		if p != nil && p.canAct() {
			lone = p
			n++
		}
	}
	if n >= 2 {
		return true
	}
	return n == 1 && lone.CurrentBet < t.currentBetLevel
}

// checkHandStillContested ends the hand uncontested when a single
// contender remains. Returns true if the hand ended.
func (t *Table) checkHandStillContested() bool {
	var last *Player
	n := 0
	for _, p := range t.seats {
		if p != nil && p.contender() {
			last = p
			n++
		}
	}
	if n != 1 || !t.handLive() {
		return false
	}
	t.awardUncontested(last)
	return true
}

// beginBettingRound starts the street's betting, or runs the board out
// when no more betting is possible.
func (t *Table) beginBettingRound(preflop bool) {
	if t.checkHandStillContested() {
		return
	}
	if !t.roundActionable() {
		t.runOutBoard()
		return
	}

	var first int
	if preflop {
		if t.inHandCount() == 2 {
			// Heads-up the button is the small blind and acts first.
			first = t.dealerSeat
			if !t.seats[first].canAct() {
				first = t.nextSeat(first, (*Player).canAct)
			}
		} else {
			first = t.nextSeat(t.bbSeat, (*Player).canAct)
		}
	} else {
		first = t.nextSeat(t.dealerSeat, (*Player).canAct)
	}
	if first == -1 {
		t.runOutBoard()
		return
	}
	t.currentActorSeat = first
	t.promptCurrentPlayer()
}

// endBettingRound collects the street and advances the hand.
func (t *Table) endBettingRound() {
	t.cancelTurnTimers()
	t.currentActorSeat = -1
	for _, p := range t.seats {
		if p != nil && p.inHand() {
			p.CurrentBet = 0
			p.acted = false
			p.LastAction = ""
		}
	}
	t.currentBetLevel = 0
	t.minRaise = t.cfg.BigBlind
	// The layered breakdown only becomes visible once someone is all-in;
	// until then the hand has a single implicit pot.
	t.pots = nil
	if t.anyAllIn() {
		t.pots = calculatePots(t.seats)
	}
	t.assertConservation()

	if t.phase == PhaseRiver {
		t.doShowdown()
		return
	}

	t.advanceStreet()
	t.beginBettingRound(false)
}

// advanceStreet moves to the next phase and deals its board cards.
func (t *Table) advanceStreet() {
	t.phase++
	switch t.phase {
	case PhaseFlop:
		t.dealCommunity(3)
	case PhaseTurn, PhaseRiver:
		t.dealCommunity(1)
	}
}

// runOutBoard deals the remaining streets with no further betting, then
// goes to showdown. Reached when all but at most one contender is all-in.
func (t *Table) runOutBoard() {
	t.cancelTurnTimers()
	t.currentActorSeat = -1
	for t.phase != PhaseRiver {
		t.advanceStreet()
	}
	// Collect the final street before showdown.
	for _, p := range t.seats {
		if p != nil && p.inHand() {
			p.CurrentBet = 0
			p.acted = false
		}
	}
	t.currentBetLevel = 0
	t.doShowdown()
}

// anyAllIn reports whether any hand participant is all-in.
func (t *Table) anyAllIn() bool {
	for _, p := range t.seats {
		if p != nil && p.Status == StatusAllIn {
			return true
		}
	}
	return false
}

// inHandCount counts hand participants, folded included.
func (t *Table) inHandCount() int {
	n := 0
	for _, p := range t.seats {
		if p != nil && p.inHand() {
			n++
		}
	}
	return n
}

// postBlinds commits the forced bets and seeds the preflop bet level.
// A short stack posts what it has and is all-in.
func (t *Table) postBlinds() {
	if t.inHandCount() == 2 {
		// Heads-up: the button posts the small blind.
		t.sbSeat = t.dealerSeat
	} else {
		t.sbSeat = t.nextSeat(t.dealerSeat, (*Player).canAct)
	}
	t.bbSeat = t.nextSeat(t.sbSeat, (*Player).canAct)

	sb := t.seats[t.sbSeat]
	bb := t.seats[t.bbSeat]

	t.pot += sb.commit(t.cfg.SmallBlind)
	sb.LastAction = "small blind"
	t.pot += bb.commit(t.cfg.BigBlind)
	bb.LastAction = "big blind"

	t.currentBetLevel = t.cfg.BigBlind
	t.minRaise = t.cfg.BigBlind

	t.logEvent(fmt.Sprintf("blinds posted: seat %d posts %d, seat %d posts %d", t.sbSeat, sb.CurrentBet, t.bbSeat, bb.CurrentBet))
	t.broadcast(EventBlindsPosted, BlindsPostedData{
		DealerSeat:      t.dealerSeat,
		SmallBlindSeat:  t.sbSeat,
		SmallBlind:      sb.CurrentBet,
		BigBlindSeat:    t.bbSeat,
		BigBlind:        bb.CurrentBet,
		Pot:             t.pot,
		CurrentBetLevel: t.currentBetLevel,
	})
}
