// Package round owns the state of the active round: its phase, its clock,
// the escrowed prize and the process wide balance.
package round

import (
	"time"

	"github.com/DE-labtory/lotto"
	"github.com/pkg/errors"
)

// NoEntry marks a round that has no archive entry yet.
const NoEntry = -1

type Ledger struct {
	number    uint64
	state     lotto.State
	startTime time.Time
	started   bool
	pending   lotto.RequestID
	escrow    lotto.Amount
	balance   lotto.Amount
	winner    lotto.Address
	// entry is the archive index written when this round was drawn.
	entry int
}

func New() *Ledger {
	return &Ledger{
		state: lotto.Open,
		entry: NoEntry,
	}
}

func (l *Ledger) Number() uint64          { return l.number }
func (l *Ledger) State() lotto.State      { return l.state }
func (l *Ledger) Escrow() lotto.Amount    { return l.escrow }
func (l *Ledger) Balance() lotto.Amount   { return l.balance }
func (l *Ledger) Winner() lotto.Address   { return l.winner }
func (l *Ledger) Pending() lotto.RequestID { return l.pending }
func (l *Ledger) Entry() int              { return l.entry }

// StartTime returns the time of the first accepted purchase of the round.
func (l *Ledger) StartTime() (time.Time, bool) {
	return l.startTime, l.started
}

// Info returns the round view used by the access policy, participants
// being owned by the ticket store.
func (l *Ledger) Info(participants int) lotto.RoundInfo {
	return lotto.RoundInfo{
		Number:       l.number,
		State:        l.state,
		Participants: participants,
		StartTime:    l.startTime,
		Started:      l.started,
		Escrow:       l.escrow,
		Winner:       l.winner,
		Pending:      l.pending,
	}
}

// Deposit credits a ticket payment to the escrow and the balance. first
// starts the round clock.
func (l *Ledger) Deposit(amount lotto.Amount, now time.Time, first bool) error {
	if l.state != lotto.Open {
		return lotto.ErrRoundNotOpen
	}
	escrow, err := l.escrow.Add(amount)
	if err != nil {
		return err
	}
	balance, err := l.balance.Add(amount)
	if err != nil {
		return err
	}
	l.escrow, l.balance = escrow, balance
	if first {
		l.startTime = now
		l.started = true
	}
	return nil
}

// BeginDraw moves Open to DrawPending and records the outstanding request.
func (l *Ledger) BeginDraw(id lotto.RequestID) error {
	if l.state != lotto.Open {
		return lotto.ErrDrawAlreadyPending
	}
	if id == lotto.NilRequestID {
		return errors.New("draw request id must not be nil")
	}
	l.state = lotto.DrawPending
	l.pending = id
	return nil
}

// CompleteDraw moves DrawPending to Drawn. It accepts exactly one
// fulfillment: the one matching the outstanding request id.
func (l *Ledger) CompleteDraw(id lotto.RequestID, winner lotto.Address, entry int) error {
	if l.state != lotto.DrawPending || id != l.pending {
		return lotto.ErrStaleFulfillment
	}
	l.state = lotto.Drawn
	l.pending = lotto.NilRequestID
	l.winner = winner
	l.entry = entry
	return nil
}

// CheckFulfillment reports whether id would be accepted by CompleteDraw.
func (l *Ledger) CheckFulfillment(id lotto.RequestID) error {
	if l.state != lotto.DrawPending || id != l.pending {
		return lotto.ErrStaleFulfillment
	}
	return nil
}

// ReleaseEscrow zeroes the escrow of a drawn round and debits the balance.
// It returns the released amount.
func (l *Ledger) ReleaseEscrow() lotto.Amount {
	amount := l.escrow
	l.escrow = 0
	l.balance = l.balance.Sub(amount)
	return amount
}

// Debit takes a past round payout out of the balance.
func (l *Ledger) Debit(amount lotto.Amount) error {
	if amount > l.balance {
		return errors.Errorf("balance %d cannot cover %d", l.balance, amount)
	}
	l.balance = l.balance.Sub(amount)
	return nil
}

// Reset supersedes a drawn round with an empty Open one. The escrow is
// dropped from the round: the prize stays in the balance, owed by the
// archive entry written at fulfillment.
func (l *Ledger) Reset() error {
	if l.state != lotto.Drawn {
		return lotto.ErrRoundNotDrawn
	}
	l.number++
	l.state = lotto.Open
	l.startTime = time.Time{}
	l.started = false
	l.pending = lotto.NilRequestID
	l.escrow = 0
	l.winner = lotto.ZeroAddress
	l.entry = NoEntry
	return nil
}

type Snapshot struct {
	Number    uint64
	State     lotto.State
	StartTime time.Time
	Started   bool
	Pending   lotto.RequestID
	Escrow    lotto.Amount
	Balance   lotto.Amount
	Winner    lotto.Address
	Entry     int
}

func (l *Ledger) Snapshot() Snapshot {
	return Snapshot{
		Number:    l.number,
		State:     l.state,
		StartTime: l.startTime,
		Started:   l.started,
		Pending:   l.pending,
		Escrow:    l.escrow,
		Balance:   l.balance,
		Winner:    l.winner,
		Entry:     l.entry,
	}
}

// Restore loads a snapshot after checking the pending request invariant.
func (l *Ledger) Restore(snap Snapshot) error {
	if (snap.State == lotto.DrawPending) != (snap.Pending != lotto.NilRequestID) {
		return errors.Errorf("round snapshot in state %s with pending request %s", snap.State, snap.Pending)
	}
	if snap.Escrow > snap.Balance {
		return errors.Errorf("round snapshot escrow %d exceeds balance %d", snap.Escrow, snap.Balance)
	}
	l.number = snap.Number
	l.state = snap.State
	l.startTime = snap.StartTime
	l.started = snap.Started
	l.pending = snap.Pending
	l.escrow = snap.Escrow
	l.balance = snap.Balance
	l.winner = snap.Winner
	l.entry = snap.Entry
	return nil
}
