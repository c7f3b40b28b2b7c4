package core

import (
	"time"

	"github.com/DE-labtory/lotto"
	"github.com/DE-labtory/lotto/access"
	"github.com/DE-labtory/lotto/archive"
	"github.com/DE-labtory/lotto/draw"
	"github.com/DE-labtory/lotto/log"
	"github.com/DE-labtory/lotto/round"
	"github.com/DE-labtory/lotto/ticket"
	"github.com/pkg/errors"
)

// settlement holds the ledger state and applies operations to it. It does
// no locking: Lottery runs every call on a single goroutine.
type settlement struct {
	policy  *access.Policy
	tickets *ticket.Store
	ledger  *round.Ledger
	draws   *draw.Coordinator
	archive *archive.Archive

	oracleAddr lotto.Address
	oracle     lotto.Oracle
	payout     lotto.Payout
	clock      lotto.Clock
	events     lotto.EventSender
	store      Store
}

func (s *settlement) snapshot() Snapshot {
	snap := Snapshot{
		Round:   s.ledger.Snapshot(),
		Tickets: s.tickets.Snapshot(),
		Archive: s.archive.Snapshot(),
	}
	if req, ok := s.draws.Pending(); ok {
		snap.Pending = &req
	}
	return snap
}

// rollback puts back the state taken before a failed operation.
func (s *settlement) rollback(snap Snapshot) {
	if err := s.ledger.Restore(snap.Round); err != nil {
		panic(errors.Wrap(err, "rollback round"))
	}
	if err := s.tickets.Restore(snap.Tickets); err != nil {
		panic(errors.Wrap(err, "rollback tickets"))
	}
	s.draws.Restore(snap.Pending)
	s.archive.Rollback(snap.Archive)
}

// load installs a snapshot read from storage.
func (s *settlement) load(snap Snapshot) error {
	if (snap.Pending != nil) != (snap.Round.State == lotto.DrawPending) {
		return errors.Errorf("stored round is %s but pending request is %v", snap.Round.State, snap.Pending)
	}
	if snap.Pending != nil && snap.Pending.ID != snap.Round.Pending {
		return errors.Errorf("stored pending request %s does not match round request %s", snap.Pending.ID, snap.Round.Pending)
	}
	if snap.Round.Entry >= len(snap.Archive) {
		return errors.Errorf("stored round points at archive entry %d of %d", snap.Round.Entry, len(snap.Archive))
	}
	if err := s.ledger.Restore(snap.Round); err != nil {
		return err
	}
	if err := s.tickets.Restore(snap.Tickets); err != nil {
		return err
	}
	if err := s.archive.Restore(snap.Archive); err != nil {
		return err
	}
	s.draws.Restore(snap.Pending)
	return nil
}

// atomically runs op and undoes every change it made when it fails,
// including the stored copy.
func (s *settlement) atomically(name string, op func() error) error {
	before := s.snapshot()
	if err := op(); err != nil {
		s.rollback(before)
		if lotto.IsRejection(err) {
			log.Debug("op", name, "err", err)
			return err
		}
		s.persistRollback(before)
		log.Error("op", name, "err", err)
		return err
	}
	return nil
}

func (s *settlement) persist() error {
	if s.store == nil {
		return nil
	}
	return errors.Wrap(s.store.Save(s.snapshot()), "persist ledger")
}

// persistRollback rewrites the stored state after a failure that may have
// happened after persist.
func (s *settlement) persistRollback(snap Snapshot) {
	if s.store == nil {
		return
	}
	if err := s.store.Save(snap); err != nil {
		log.Error("op", "rollback", "err", err)
	}
}

func (s *settlement) emit(e lotto.Event) {
	if s.events != nil {
		s.events.Send(e)
	}
}

func (s *settlement) info() lotto.RoundInfo {
	return s.ledger.Info(s.tickets.Count())
}

func (s *settlement) purchaseTicket(caller lotto.Address, ct lotto.Ciphertext, proof lotto.Proof, payment lotto.Amount) error {
	return s.atomically("purchaseTicket", func() error {
		if s.ledger.State() != lotto.Open {
			return lotto.ErrRoundNotOpen
		}
		now := s.clock.Now()
		receipt, err := s.tickets.Purchase(caller, ct, proof, payment)
		if err != nil {
			return err
		}
		if err := s.ledger.Deposit(payment, now, receipt.First); err != nil {
			return err
		}
		if err := s.persist(); err != nil {
			return err
		}

		log.Info("op", "purchaseTicket", "round", s.ledger.Number(), "caller", caller,
			"participants", s.tickets.Count(), "escrow", s.ledger.Escrow(), "repurchase", receipt.Repurchase)
		s.emit(lotto.Event{
			Type:   lotto.TicketPurchased,
			Round:  s.ledger.Number(),
			Caller: caller,
			Amount: payment,
			Time:   now,
		})
		return nil
	})
}

func (s *settlement) requestDraw(caller lotto.Address) (lotto.DrawRequest, error) {
	var req lotto.DrawRequest
	err := s.atomically("requestDraw", func() error {
		now := s.clock.Now()
		info := s.info()
		if info.Participants == 0 {
			return lotto.ErrNoParticipants
		}
		if !s.policy.CanRequestDraw(caller, now, info) {
			return lotto.ErrDrawNotReady
		}
		if info.State != lotto.Open {
			return lotto.ErrDrawAlreadyPending
		}

		var err error
		req, err = s.draws.Prepare(info.Number, s.tickets.Tickets(), now)
		if err != nil {
			return err
		}
		if err := s.ledger.BeginDraw(req.ID); err != nil {
			return err
		}
		if err := s.draws.Track(req); err != nil {
			return err
		}
		if err := s.persist(); err != nil {
			return err
		}
		if err := s.oracle.RequestDecryption(req); err != nil {
			return errors.Wrapf(err, "dispatch draw request %s", req.ID)
		}

		log.Info("op", "requestDraw", "round", req.Round, "caller", caller,
			"request", req.ID, "participants", req.Participants)
		s.emit(lotto.Event{
			Type:    lotto.DrawRequested,
			Round:   req.Round,
			Caller:  caller,
			Request: req.ID,
			Handle:  req.Handle,
			Time:    now,
		})
		return nil
	})
	if err != nil {
		return lotto.DrawRequest{}, err
	}
	return req, nil
}

func (s *settlement) fulfillDraw(caller lotto.Address, f lotto.Fulfillment) error {
	return s.atomically("fulfillDraw", func() error {
		if caller != s.oracleAddr {
			return lotto.ErrNotOracle
		}
		if err := s.ledger.CheckFulfillment(f.RequestID); err != nil {
			return err
		}
		winner, err := s.draws.Resolve(f, s.tickets.Participants())
		if err != nil {
			return err
		}

		now := s.clock.Now()
		prize := s.ledger.Escrow()
		entry := s.archive.Record(s.ledger.Number(), winner, prize, now)
		if err := s.ledger.CompleteDraw(f.RequestID, winner, entry); err != nil {
			return err
		}
		s.draws.Clear()
		if err := s.persist(); err != nil {
			return err
		}

		log.Info("op", "fulfillDraw", "round", s.ledger.Number(), "request", f.RequestID,
			"winner", winner, "prize", prize, "entry", entry)
		s.emit(lotto.Event{
			Type:    lotto.WinnerDrawn,
			Round:   s.ledger.Number(),
			Winner:  winner,
			Amount:  prize,
			Request: f.RequestID,
			Time:    now,
		})
		return nil
	})
}

// claimPrize pays the escrow of the drawn round to its winner. State is
// committed and persisted before the transfer.
func (s *settlement) claimPrize(caller lotto.Address) (lotto.Amount, error) {
	var amount lotto.Amount
	err := s.atomically("claimPrize", func() error {
		if s.ledger.State() != lotto.Drawn || caller != s.ledger.Winner() {
			return lotto.ErrNotWinner
		}
		if _, err := s.archive.Claim(caller, s.ledger.Entry()); err != nil {
			return err
		}
		amount = s.ledger.ReleaseEscrow()
		return s.pay(caller, amount, s.ledger.Entry())
	})
	if err != nil {
		return 0, err
	}
	return amount, nil
}

// claimPastPrize pays the frozen prize of an archived round. When that round
// is still the drawn one its escrow is released with it.
func (s *settlement) claimPastPrize(caller lotto.Address, index int) (lotto.Amount, error) {
	var amount lotto.Amount
	err := s.atomically("claimPastPrize", func() error {
		prize, err := s.archive.Claim(caller, index)
		if err != nil {
			return err
		}
		if s.ledger.State() == lotto.Drawn && s.ledger.Entry() == index {
			if released := s.ledger.ReleaseEscrow(); released != prize {
				return errors.Errorf("escrow %d of round %d differs from archived prize %d", released, index, prize)
			}
		} else if err := s.ledger.Debit(prize); err != nil {
			return err
		}
		amount = prize
		return s.pay(caller, amount, index)
	})
	if err != nil {
		return 0, err
	}
	return amount, nil
}

func (s *settlement) pay(to lotto.Address, amount lotto.Amount, index int) error {
	if err := s.persist(); err != nil {
		return err
	}
	if err := s.payout.Transfer(to, amount); err != nil {
		return errors.Wrapf(err, "transfer %d to %s", amount, to)
	}

	entry, _ := s.archive.Entry(index)
	log.Info("op", "claim", "round", entry.Round, "entry", index, "winner", to,
		"amount", amount, "balance", s.ledger.Balance())
	s.emit(lotto.Event{
		Type:   lotto.PrizeClaimed,
		Round:  entry.Round,
		Winner: to,
		Amount: amount,
		Time:   s.clock.Now(),
	})
	return nil
}

func (s *settlement) startNewRound(caller lotto.Address) error {
	return s.atomically("startNewRound", func() error {
		if !s.policy.CanStartNewRound(s.info()) {
			return lotto.ErrRoundNotDrawn
		}
		if err := s.ledger.Reset(); err != nil {
			return err
		}
		s.tickets.Reset()
		if err := s.persist(); err != nil {
			return err
		}

		log.Info("op", "startNewRound", "round", s.ledger.Number(), "caller", caller,
			"balance", s.ledger.Balance())
		s.emit(lotto.Event{
			Type:   lotto.RoundStarted,
			Round:  s.ledger.Number(),
			Caller: caller,
			Time:   s.clock.Now(),
		})
		return nil
	})
}

// liabilities is what the ledger still owes: unclaimed archive prizes plus
// the escrow of a round that has not been archived yet. A drawn round's
// escrow and its archive entry are the same debt.
func (s *settlement) liabilities() (lotto.Amount, error) {
	skip := -1
	if s.ledger.State() == lotto.Drawn {
		skip = s.ledger.Entry()
	}
	unclaimed, err := s.archive.Unclaimed(skip)
	if err != nil {
		return 0, err
	}
	return unclaimed.Add(s.ledger.Escrow())
}

func (s *settlement) drawAvailableAt() time.Time {
	return s.policy.DrawAvailableAt(s.info())
}
