package core

import (
	"sync/atomic"
	"time"

	"github.com/DE-labtory/lotto"
	"github.com/DE-labtory/lotto/access"
	"github.com/DE-labtory/lotto/archive"
	"github.com/DE-labtory/lotto/archive/merkletree"
	"github.com/DE-labtory/lotto/draw"
	"github.com/DE-labtory/lotto/log"
	"github.com/DE-labtory/lotto/round"
	"github.com/DE-labtory/lotto/ticket"
	"github.com/pkg/errors"
)

type Options struct {
	Admin lotto.Address
	// OracleAddress is the only caller allowed to fulfill draws.
	OracleAddress lotto.Address
	TicketPrice   lotto.Amount
	// Cooldown defaults to lotto.Cooldown.
	Cooldown time.Duration
	// Context is bound into every ticket validity proof.
	Context []byte

	Verifier    lotto.ProofVerifier
	Selector    lotto.Selector
	Oracle      lotto.Oracle
	Attestation lotto.AttestationVerifier
	Payout      lotto.Payout
	Clock       lotto.Clock
	Events      lotto.EventSender
	Store       Store
}

type transport struct {
	op  func(s *settlement) error
	err chan error
}

// Lottery is the settlement ledger. Every call, reads included, runs on one
// goroutine in arrival order, so no call observes another half applied.
type Lottery struct {
	s *settlement

	reqChan   chan transport
	closeChan chan struct{}
	doneChan  chan struct{}

	stopFlag int32
}

func New(opts Options) (*Lottery, error) {
	if opts.Verifier == nil || opts.Selector == nil || opts.Oracle == nil || opts.Payout == nil {
		return nil, errors.New("lottery needs a proof verifier, a selector, an oracle and a payout")
	}
	if opts.OracleAddress.IsZero() {
		return nil, errors.New("lottery needs an oracle address")
	}
	if opts.Cooldown == 0 {
		opts.Cooldown = lotto.Cooldown
	}
	if opts.Clock == nil {
		opts.Clock = lotto.SystemClock{}
	}

	s := &settlement{
		policy:     access.New(opts.Admin, opts.Cooldown),
		tickets:    ticket.New(opts.TicketPrice, opts.Verifier, opts.Context),
		ledger:     round.New(),
		draws:      draw.New(opts.Selector, opts.Attestation),
		archive:    archive.New(),
		oracleAddr: opts.OracleAddress,
		oracle:     opts.Oracle,
		payout:     opts.Payout,
		clock:      opts.Clock,
		events:     opts.Events,
		store:      opts.Store,
	}

	if opts.Store != nil {
		snap, ok, err := opts.Store.Load()
		if err != nil {
			return nil, errors.Wrap(err, "load ledger")
		}
		if ok {
			if err := s.load(snap); err != nil {
				return nil, errors.Wrap(err, "restore ledger")
			}
			log.Info("op", "restore", "round", s.ledger.Number(), "state", s.ledger.State().String(),
				"participants", s.tickets.Count(), "archive", s.archive.Len())
		}
	}

	l := &Lottery{
		s:         s,
		reqChan:   make(chan transport),
		closeChan: make(chan struct{}),
		doneChan:  make(chan struct{}),
	}
	go l.run()
	return l, nil
}

func (l *Lottery) run() {
	defer close(l.doneChan)
	for {
		select {
		case t := <-l.reqChan:
			t.err <- t.op(l.s)
		case <-l.closeChan:
			return
		}
	}
}

func (l *Lottery) do(op func(s *settlement) error) error {
	if l.toDie() {
		return lotto.ErrClosed
	}
	t := transport{
		op:  op,
		err: make(chan error, 1),
	}
	select {
	case l.reqChan <- t:
	case <-l.closeChan:
		return lotto.ErrClosed
	}
	return <-t.err
}

// Close stops the ledger after the call in progress. Later calls fail
// with lotto.ErrClosed.
func (l *Lottery) Close() {
	if first := atomic.CompareAndSwapInt32(&l.stopFlag, int32(0), int32(1)); !first {
		return
	}
	close(l.closeChan)
	<-l.doneChan
}

func (l *Lottery) toDie() bool {
	return atomic.LoadInt32(&(l.stopFlag)) == int32(1)
}

func (l *Lottery) PurchaseTicket(caller lotto.Address, ct lotto.Ciphertext, proof lotto.Proof, payment lotto.Amount) error {
	return l.do(func(s *settlement) error {
		return s.purchaseTicket(caller, ct, proof, payment)
	})
}

// RequestDraw hands a draw request to the oracle and returns without
// waiting for the decryption.
func (l *Lottery) RequestDraw(caller lotto.Address) (lotto.DrawRequest, error) {
	var req lotto.DrawRequest
	err := l.do(func(s *settlement) error {
		var err error
		req, err = s.requestDraw(caller)
		return err
	})
	return req, err
}

// FulfillDraw implements lotto.FulfillmentHandler.
func (l *Lottery) FulfillDraw(caller lotto.Address, f lotto.Fulfillment) error {
	return l.do(func(s *settlement) error {
		return s.fulfillDraw(caller, f)
	})
}

func (l *Lottery) ClaimPrize(caller lotto.Address) (lotto.Amount, error) {
	var amount lotto.Amount
	err := l.do(func(s *settlement) error {
		var err error
		amount, err = s.claimPrize(caller)
		return err
	})
	return amount, err
}

func (l *Lottery) ClaimPastPrize(caller lotto.Address, index int) (lotto.Amount, error) {
	var amount lotto.Amount
	err := l.do(func(s *settlement) error {
		var err error
		amount, err = s.claimPastPrize(caller, index)
		return err
	})
	return amount, err
}

func (l *Lottery) StartNewRound(caller lotto.Address) error {
	return l.do(func(s *settlement) error {
		return s.startNewRound(caller)
	})
}

// view runs a read on the ledger goroutine. Reads on a closed ledger see
// the final state.
func (l *Lottery) view(read func(s *settlement)) {
	err := l.do(func(s *settlement) error {
		read(s)
		return nil
	})
	if err == lotto.ErrClosed {
		<-l.doneChan
		read(l.s)
	}
}

func (l *Lottery) ParticipantCount() (n int) {
	l.view(func(s *settlement) { n = s.tickets.Count() })
	return
}

func (l *Lottery) Balance() (b lotto.Amount) {
	l.view(func(s *settlement) { b = s.ledger.Balance() })
	return
}

func (l *Lottery) TicketPrice() (p lotto.Amount) {
	l.view(func(s *settlement) { p = s.tickets.Price() })
	return
}

func (l *Lottery) IsDrawn() (drawn bool) {
	l.view(func(s *settlement) { drawn = s.ledger.State() == lotto.Drawn })
	return
}

func (l *Lottery) DrawPending() (pending bool) {
	l.view(func(s *settlement) { pending = s.ledger.State() == lotto.DrawPending })
	return
}

// Winner returns the winner of the drawn round, or the zero address.
func (l *Lottery) Winner() (w lotto.Address) {
	l.view(func(s *settlement) { w = s.ledger.Winner() })
	return
}

func (l *Lottery) Admin() (a lotto.Address) {
	l.view(func(s *settlement) { a = s.policy.Admin() })
	return
}

// RoundStartTime returns the first purchase time of the round. ok is false
// until a ticket has been bought.
func (l *Lottery) RoundStartTime() (t time.Time, ok bool) {
	l.view(func(s *settlement) { t, ok = s.ledger.StartTime() })
	return
}

func (l *Lottery) RoundNumber() (n uint64) {
	l.view(func(s *settlement) { n = s.ledger.Number() })
	return
}

func (l *Lottery) Round() (info lotto.RoundInfo) {
	l.view(func(s *settlement) { info = s.info() })
	return
}

// Status is the ledger as seen between two operations.
type Status struct {
	Round           lotto.RoundInfo
	Balance         lotto.Amount
	TicketPrice     lotto.Amount
	Admin           lotto.Address
	DrawAvailableAt time.Time
	PastRounds      int
	ArchiveRoot     merkletree.RootHash
}

// Status reads every status field in a single view.
func (l *Lottery) Status() (st Status, err error) {
	l.view(func(s *settlement) {
		st = Status{
			Round:           s.info(),
			Balance:         s.ledger.Balance(),
			TicketPrice:     s.tickets.Price(),
			Admin:           s.policy.Admin(),
			DrawAvailableAt: s.drawAvailableAt(),
			PastRounds:      s.archive.Len(),
		}
		st.ArchiveRoot, err = s.archive.Root()
	})
	return
}

// DrawAvailableAt returns when any caller may request the draw. It is zero
// before the first purchase.
func (l *Lottery) DrawAvailableAt() (t time.Time) {
	l.view(func(s *settlement) { t = s.drawAvailableAt() })
	return
}

func (l *Lottery) PastRoundsLength() (n int) {
	l.view(func(s *settlement) { n = s.archive.Len() })
	return
}

func (l *Lottery) PastRound(index int) (entry archive.Entry, err error) {
	l.view(func(s *settlement) { entry, err = s.archive.Entry(index) })
	return
}

// MyTicket returns the ciphertext caller submitted this round.
func (l *Lottery) MyTicket(caller lotto.Address) (ct lotto.Ciphertext, ok bool) {
	l.view(func(s *settlement) { ct, ok = s.tickets.Ticket(caller) })
	return
}

func (l *Lottery) PendingRequest() (req lotto.DrawRequest, ok bool) {
	l.view(func(s *settlement) { req, ok = s.draws.Pending() })
	return
}

func (l *Lottery) ArchiveRoot() (root merkletree.RootHash, err error) {
	l.view(func(s *settlement) { root, err = s.archive.Root() })
	return
}

func (l *Lottery) PastRoundProof(index int) (proof archive.Proof, err error) {
	l.view(func(s *settlement) { proof, err = s.archive.Proof(index) })
	return
}

// Liabilities is what the ledger owes: unclaimed prizes plus the escrow of
// a round not yet archived. Balance never drops below it.
func (l *Lottery) Liabilities() (owed lotto.Amount, err error) {
	l.view(func(s *settlement) { owed, err = s.liabilities() })
	return
}
