package core_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DE-labtory/lotto"
	"github.com/DE-labtory/lotto/core"
	"github.com/DE-labtory/lotto/test/mock"
	"github.com/google/uuid"
)

const price = lotto.Amount(100000000000000)

var (
	admin      = lotto.BytesToAddress([]byte{0xad})
	oracleAddr = lotto.BytesToAddress([]byte{0x0c})
	alice      = lotto.BytesToAddress([]byte{0xa1})
	bob        = lotto.BytesToAddress([]byte{0xb0})
	charlie    = lotto.BytesToAddress([]byte{0xc4})
	dave       = lotto.BytesToAddress([]byte{0xda})
	genesis    = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
)

type env struct {
	lottery *core.Lottery
	oracle  *mock.Oracle
	payout  *mock.Payout
	clock   *mock.Clock
	events  *lotto.EventChannel
}

func setUp(t *testing.T, modify func(opts *core.Options)) *env {
	e := &env{
		oracle: &mock.Oracle{},
		payout: &mock.Payout{},
		clock:  mock.NewClock(genesis),
		events: lotto.NewEventChannel(100),
	}
	opts := core.Options{
		Admin:         admin,
		OracleAddress: oracleAddr,
		TicketPrice:   price,
		Context:       []byte("lotto-test"),
		Verifier:      &mock.ProofVerifier{},
		Selector:      &mock.Selector{},
		Oracle:        e.oracle,
		Payout:        e.payout,
		Clock:         e.clock,
		Events:        e.events,
	}
	if modify != nil {
		modify(&opts)
	}
	l, err := core.New(opts)
	if err != nil {
		t.Fatalf("failed to create lottery: %s", err)
	}
	e.lottery = l
	return e
}

func (e *env) buy(t *testing.T, buyers ...lotto.Address) {
	for _, b := range buyers {
		if err := e.lottery.PurchaseTicket(b, lotto.Ciphertext(b.String()), lotto.Proof("proof"), price); err != nil {
			t.Fatalf("purchase by %s failed: %s", b, err)
		}
	}
}

// drawn runs a full draw that selects the participant at index.
func (e *env) drawn(t *testing.T, index uint64) {
	if _, err := e.lottery.RequestDraw(admin); err != nil {
		t.Fatalf("request draw failed: %s", err)
	}
	if err := e.oracle.Fulfill(e.lottery, oracleAddr, index); err != nil {
		t.Fatalf("fulfill draw failed: %s", err)
	}
}

func checkSolvent(t *testing.T, l *core.Lottery) {
	owed, err := l.Liabilities()
	if err != nil {
		t.Fatalf("failed to compute liabilities: %s", err)
	}
	if l.Balance() < owed {
		t.Fatalf("balance %d is below liabilities %d", l.Balance(), owed)
	}
}

func TestLottery_PurchaseTicket(t *testing.T) {
	e := setUp(t, nil)
	defer e.lottery.Close()

	if _, ok := e.lottery.RoundStartTime(); ok {
		t.Fatalf("expected round start time to be unset")
	}

	e.buy(t, alice)
	e.clock.Advance(time.Minute)
	e.buy(t, bob)

	if e.lottery.ParticipantCount() != 2 {
		t.Fatalf("expected 2 participants, but got %d", e.lottery.ParticipantCount())
	}
	if e.lottery.Balance() != 2*price {
		t.Fatalf("expected balance %d, but got %d", 2*price, e.lottery.Balance())
	}
	start, ok := e.lottery.RoundStartTime()
	if !ok || !start.Equal(genesis) {
		t.Fatalf("expected round start %s, but got %s", genesis, start)
	}
	if at := e.lottery.DrawAvailableAt(); !at.Equal(genesis.Add(lotto.Cooldown)) {
		t.Fatalf("expected draw available at %s, but got %s", genesis.Add(lotto.Cooldown), at)
	}
	ct, ok := e.lottery.MyTicket(bob)
	if !ok || string(ct) != bob.String() {
		t.Fatalf("expected bob's ticket, but got %s", ct)
	}
	checkSolvent(t, e.lottery)
}

func TestLottery_PurchaseTicket_Repurchase(t *testing.T) {
	e := setUp(t, nil)
	defer e.lottery.Close()

	e.buy(t, alice)
	if err := e.lottery.PurchaseTicket(alice, lotto.Ciphertext("second"), nil, price); err != nil {
		t.Fatalf("unexpected err: %s", err)
	}

	if e.lottery.ParticipantCount() != 1 {
		t.Fatalf("expected 1 participant, but got %d", e.lottery.ParticipantCount())
	}
	if e.lottery.Balance() != 2*price {
		t.Fatalf("expected balance %d, but got %d", 2*price, e.lottery.Balance())
	}
	ct, _ := e.lottery.MyTicket(alice)
	if string(ct) != "second" {
		t.Fatalf("expected replaced ticket, but got %s", ct)
	}
}

func TestLottery_PurchaseTicket_Rejected(t *testing.T) {
	e := setUp(t, func(opts *core.Options) {
		opts.Verifier = &mock.ProofVerifier{
			VerifyFunc: func(ct lotto.Ciphertext, caller lotto.Address, context []byte, proof lotto.Proof) bool {
				return string(proof) == "proof" && string(context) == "lotto-test"
			},
		}
	})
	defer e.lottery.Close()

	tests := []struct {
		payment lotto.Amount
		proof   lotto.Proof
		err     error
	}{
		{price - 1, lotto.Proof("proof"), lotto.ErrInvalidPrice},
		{price + 1, lotto.Proof("proof"), lotto.ErrInvalidPrice},
		{0, lotto.Proof("proof"), lotto.ErrInvalidPrice},
		{price, lotto.Proof("forged"), lotto.ErrProofInvalid},
	}
	for _, test := range tests {
		err := e.lottery.PurchaseTicket(alice, lotto.Ciphertext("a"), test.proof, test.payment)
		if err != test.err {
			t.Fatalf("expected %s, but got %v", test.err, err)
		}
	}

	if e.lottery.ParticipantCount() != 0 || e.lottery.Balance() != 0 {
		t.Fatalf("rejected purchases must not change state")
	}
	if _, ok := e.lottery.RoundStartTime(); ok {
		t.Fatalf("rejected purchases must not start the round")
	}
}

func TestLottery_PurchaseTicket_WhilePending(t *testing.T) {
	e := setUp(t, nil)
	defer e.lottery.Close()

	e.buy(t, alice)
	if _, err := e.lottery.RequestDraw(admin); err != nil {
		t.Fatalf("unexpected err: %s", err)
	}
	if err := e.lottery.PurchaseTicket(bob, lotto.Ciphertext("b"), nil, price); err != lotto.ErrRoundNotOpen {
		t.Fatalf("expected %s, but got %v", lotto.ErrRoundNotOpen, err)
	}
	if e.lottery.Balance() != price {
		t.Fatalf("expected balance %d, but got %d", price, e.lottery.Balance())
	}
}

func TestLottery_RequestDraw_NoParticipants(t *testing.T) {
	e := setUp(t, nil)
	defer e.lottery.Close()

	for _, caller := range []lotto.Address{admin, alice} {
		if _, err := e.lottery.RequestDraw(caller); err != lotto.ErrNoParticipants {
			t.Fatalf("expected %s, but got %v", lotto.ErrNoParticipants, err)
		}
	}
	e.clock.Advance(time.Hour)
	if _, err := e.lottery.RequestDraw(alice); err != lotto.ErrNoParticipants {
		t.Fatalf("expected %s, but got %v", lotto.ErrNoParticipants, err)
	}
}

func TestLottery_RequestDraw_Cooldown(t *testing.T) {
	e := setUp(t, nil)
	defer e.lottery.Close()

	e.buy(t, alice, bob)

	e.clock.Advance(lotto.Cooldown - time.Second)
	if _, err := e.lottery.RequestDraw(alice); err != lotto.ErrDrawNotReady {
		t.Fatalf("expected %s, but got %v", lotto.ErrDrawNotReady, err)
	}
	if e.lottery.DrawPending() {
		t.Fatalf("rejected draw must not leave a pending request")
	}

	e.clock.Advance(time.Second)
	req, err := e.lottery.RequestDraw(charlie)
	if err != nil {
		t.Fatalf("unexpected err: %s", err)
	}
	if !e.lottery.DrawPending() || e.lottery.IsDrawn() {
		t.Fatalf("expected draw pending")
	}
	if req.Participants != 2 || req.ID == lotto.NilRequestID {
		t.Fatalf("unexpected request: %+v", req)
	}
	sent, _ := e.oracle.Last()
	if sent.ID != req.ID {
		t.Fatalf("expected oracle to receive %s, but got %s", req.ID, sent.ID)
	}
	pending, ok := e.lottery.PendingRequest()
	if !ok || pending.ID != req.ID {
		t.Fatalf("expected pending request %s", req.ID)
	}

	if _, err := e.lottery.RequestDraw(admin); err != lotto.ErrDrawAlreadyPending {
		t.Fatalf("expected %s, but got %v", lotto.ErrDrawAlreadyPending, err)
	}
	if len(e.oracle.Requests()) != 1 {
		t.Fatalf("expected exactly one outstanding request, but got %d", len(e.oracle.Requests()))
	}
}

func TestLottery_RequestDraw_AdminBeforeCooldown(t *testing.T) {
	e := setUp(t, nil)
	defer e.lottery.Close()

	e.buy(t, alice)
	if _, err := e.lottery.RequestDraw(admin); err != nil {
		t.Fatalf("unexpected err: %s", err)
	}
}

func TestLottery_RequestDraw_DispatchFailure(t *testing.T) {
	e := setUp(t, nil)
	defer e.lottery.Close()

	e.buy(t, alice)
	e.oracle.RequestDecryptionFunc = func(req lotto.DrawRequest) error {
		return errors.New("relayer unreachable")
	}
	if _, err := e.lottery.RequestDraw(admin); err == nil {
		t.Fatalf("expected dispatch error")
	}
	if e.lottery.DrawPending() {
		t.Fatalf("failed dispatch must leave the round open")
	}

	e.oracle.RequestDecryptionFunc = nil
	if _, err := e.lottery.RequestDraw(admin); err != nil {
		t.Fatalf("unexpected err: %s", err)
	}
}

func TestLottery_FulfillDraw(t *testing.T) {
	e := setUp(t, nil)
	defer e.lottery.Close()

	e.buy(t, alice, bob, charlie, dave)
	req, err := e.lottery.RequestDraw(admin)
	if err != nil {
		t.Fatalf("unexpected err: %s", err)
	}

	if err := e.oracle.Fulfill(e.lottery, alice, 0); err != lotto.ErrNotOracle {
		t.Fatalf("expected %s, but got %v", lotto.ErrNotOracle, err)
	}
	if err := e.oracle.FulfillWith(e.lottery, oracleAddr, uuid.New(), 0); err != lotto.ErrStaleFulfillment {
		t.Fatalf("expected %s, but got %v", lotto.ErrStaleFulfillment, err)
	}
	if !e.lottery.DrawPending() {
		t.Fatalf("rejected fulfillments must keep the draw pending")
	}

	if err := e.oracle.FulfillWith(e.lottery, oracleAddr, req.ID, 6); err != nil {
		t.Fatalf("unexpected err: %s", err)
	}
	if e.lottery.Winner() != charlie {
		t.Fatalf("expected %s, but got %s", charlie, e.lottery.Winner())
	}
	if !e.lottery.IsDrawn() || e.lottery.DrawPending() {
		t.Fatalf("expected drawn round")
	}
	if _, ok := e.lottery.PendingRequest(); ok {
		t.Fatalf("expected no pending request")
	}
	if e.lottery.PastRoundsLength() != 1 {
		t.Fatalf("expected 1 past round, but got %d", e.lottery.PastRoundsLength())
	}
	entry, err := e.lottery.PastRound(0)
	if err != nil {
		t.Fatalf("unexpected err: %s", err)
	}
	if entry.Winner != charlie || entry.Prize != 4*price || entry.Claimed || !entry.DrawTime.Equal(genesis) {
		t.Fatalf("unexpected past round: %+v", entry)
	}
	if e.lottery.Balance() != 4*price {
		t.Fatalf("fulfillment must keep the escrow, balance %d", e.lottery.Balance())
	}
	checkSolvent(t, e.lottery)

	if err := e.oracle.FulfillWith(e.lottery, oracleAddr, req.ID, 1); err != lotto.ErrStaleFulfillment {
		t.Fatalf("expected %s on replay, but got %v", lotto.ErrStaleFulfillment, err)
	}
	if e.lottery.Winner() != charlie || e.lottery.PastRoundsLength() != 1 {
		t.Fatalf("replayed fulfillment changed the draw")
	}
}

func TestLottery_FulfillDraw_AttestationRejected(t *testing.T) {
	e := setUp(t, func(opts *core.Options) {
		opts.Attestation = &mock.AttestationVerifier{
			VerifyAttestationFunc: func(req lotto.DrawRequest, f lotto.Fulfillment) error {
				return errors.New("bad signature")
			},
		}
	})
	defer e.lottery.Close()

	e.buy(t, alice)
	e.lottery.RequestDraw(admin)

	err := e.oracle.Fulfill(e.lottery, oracleAddr, 0)
	if !errors.Is(err, lotto.ErrAttestationInvalid) {
		t.Fatalf("expected %s, but got %v", lotto.ErrAttestationInvalid, err)
	}
	if !e.lottery.DrawPending() || e.lottery.PastRoundsLength() != 0 {
		t.Fatalf("rejected attestation must not settle the round")
	}
}

func TestLottery_ClaimPrize(t *testing.T) {
	e := setUp(t, nil)
	defer e.lottery.Close()

	e.buy(t, alice, bob, charlie, dave)
	if _, err := e.lottery.ClaimPrize(alice); err != lotto.ErrNotWinner {
		t.Fatalf("expected %s before draw, but got %v", lotto.ErrNotWinner, err)
	}
	e.drawn(t, 1)

	if _, err := e.lottery.ClaimPrize(alice); err != lotto.ErrNotWinner {
		t.Fatalf("expected %s, but got %v", lotto.ErrNotWinner, err)
	}

	amount, err := e.lottery.ClaimPrize(bob)
	if err != nil {
		t.Fatalf("unexpected err: %s", err)
	}
	if amount != 4*price || e.payout.BalanceOf(bob) != 4*price {
		t.Fatalf("expected bob to receive %d, but got %d", 4*price, e.payout.BalanceOf(bob))
	}
	if e.lottery.Balance() != 0 {
		t.Fatalf("expected empty balance, but got %d", e.lottery.Balance())
	}
	entry, _ := e.lottery.PastRound(0)
	if !entry.Claimed || entry.Prize != 4*price {
		t.Fatalf("unexpected past round after claim: %+v", entry)
	}

	if _, err := e.lottery.ClaimPrize(bob); err != lotto.ErrAlreadyClaimed {
		t.Fatalf("expected %s, but got %v", lotto.ErrAlreadyClaimed, err)
	}
	if _, err := e.lottery.ClaimPastPrize(bob, 0); err != lotto.ErrAlreadyClaimed {
		t.Fatalf("expected %s, but got %v", lotto.ErrAlreadyClaimed, err)
	}
	if e.payout.BalanceOf(bob) != 4*price {
		t.Fatalf("duplicate claims must not pay, bob has %d", e.payout.BalanceOf(bob))
	}
	checkSolvent(t, e.lottery)
}

func TestLottery_ClaimPrize_TransferFailure(t *testing.T) {
	e := setUp(t, nil)
	defer e.lottery.Close()

	e.buy(t, alice, bob)
	e.drawn(t, 0)

	e.payout.TransferFunc = func(to lotto.Address, amount lotto.Amount) error {
		return errors.New("transfer reverted")
	}
	if _, err := e.lottery.ClaimPrize(alice); err == nil {
		t.Fatalf("expected transfer error")
	}
	entry, _ := e.lottery.PastRound(0)
	if entry.Claimed || e.lottery.Balance() != 2*price {
		t.Fatalf("failed transfer must roll back the claim, got %+v balance %d", entry, e.lottery.Balance())
	}

	e.payout.TransferFunc = nil
	if _, err := e.lottery.ClaimPrize(alice); err != nil {
		t.Fatalf("unexpected err: %s", err)
	}
	if e.payout.BalanceOf(alice) != 2*price {
		t.Fatalf("expected alice to receive %d, but got %d", 2*price, e.payout.BalanceOf(alice))
	}
}

func TestLottery_ClaimPastPrize_CurrentRound(t *testing.T) {
	e := setUp(t, nil)
	defer e.lottery.Close()

	e.buy(t, alice, bob)
	e.drawn(t, 1)

	if _, err := e.lottery.ClaimPastPrize(alice, 0); err != lotto.ErrNotWinnerOfRound {
		t.Fatalf("expected %s, but got %v", lotto.ErrNotWinnerOfRound, err)
	}
	if _, err := e.lottery.ClaimPastPrize(bob, 1); err != lotto.ErrRoundNotFound {
		t.Fatalf("expected %s, but got %v", lotto.ErrRoundNotFound, err)
	}

	amount, err := e.lottery.ClaimPastPrize(bob, 0)
	if err != nil {
		t.Fatalf("unexpected err: %s", err)
	}
	if amount != 2*price || e.lottery.Balance() != 0 {
		t.Fatalf("expected %d paid and empty balance, but got %d and %d", 2*price, amount, e.lottery.Balance())
	}
	if _, err := e.lottery.ClaimPrize(bob); err != lotto.ErrAlreadyClaimed {
		t.Fatalf("expected %s, but got %v", lotto.ErrAlreadyClaimed, err)
	}
	checkSolvent(t, e.lottery)
}

func TestLottery_ClaimPastPrize_AfterNewRounds(t *testing.T) {
	e := setUp(t, nil)
	defer e.lottery.Close()

	e.buy(t, alice, bob, charlie, dave)
	e.drawn(t, 0)
	if err := e.lottery.StartNewRound(bob); err != nil {
		t.Fatalf("unexpected err: %s", err)
	}

	e.buy(t, bob, charlie)
	e.drawn(t, 1)
	if err := e.lottery.StartNewRound(dave); err != nil {
		t.Fatalf("unexpected err: %s", err)
	}
	e.buy(t, dave)
	checkSolvent(t, e.lottery)

	if e.lottery.Balance() != 7*price {
		t.Fatalf("expected balance %d, but got %d", 7*price, e.lottery.Balance())
	}

	amount, err := e.lottery.ClaimPastPrize(alice, 0)
	if err != nil {
		t.Fatalf("unexpected err: %s", err)
	}
	if amount != 4*price || e.payout.BalanceOf(alice) != 4*price {
		t.Fatalf("expected alice to receive %d, but got %d", 4*price, e.payout.BalanceOf(alice))
	}
	if e.lottery.Balance() != 3*price {
		t.Fatalf("expected balance %d, but got %d", 3*price, e.lottery.Balance())
	}

	if _, err := e.lottery.ClaimPastPrize(charlie, 1); err != nil {
		t.Fatalf("unexpected err: %s", err)
	}
	if e.lottery.Balance() != price {
		t.Fatalf("expected the active escrow %d to remain, but got %d", price, e.lottery.Balance())
	}
	if e.lottery.ParticipantCount() != 1 || e.lottery.RoundNumber() != 2 {
		t.Fatalf("past claims must not touch the active round")
	}
	checkSolvent(t, e.lottery)
}

func TestLottery_StartNewRound(t *testing.T) {
	e := setUp(t, nil)
	defer e.lottery.Close()

	if err := e.lottery.StartNewRound(alice); err != lotto.ErrRoundNotDrawn {
		t.Fatalf("expected %s, but got %v", lotto.ErrRoundNotDrawn, err)
	}
	e.buy(t, alice, bob)
	if err := e.lottery.StartNewRound(alice); err != lotto.ErrRoundNotDrawn {
		t.Fatalf("expected %s, but got %v", lotto.ErrRoundNotDrawn, err)
	}
	e.lottery.RequestDraw(admin)
	if err := e.lottery.StartNewRound(alice); err != lotto.ErrRoundNotDrawn {
		t.Fatalf("expected %s while pending, but got %v", lotto.ErrRoundNotDrawn, err)
	}
	e.oracle.Fulfill(e.lottery, oracleAddr, 0)

	if err := e.lottery.StartNewRound(charlie); err != nil {
		t.Fatalf("unexpected err: %s", err)
	}
	if e.lottery.ParticipantCount() != 0 || !e.lottery.Winner().IsZero() || e.lottery.IsDrawn() {
		t.Fatalf("expected a fresh round, got %+v", e.lottery.Round())
	}
	if _, ok := e.lottery.RoundStartTime(); ok {
		t.Fatalf("expected round start time to be unset")
	}
	if _, ok := e.lottery.MyTicket(alice); ok {
		t.Fatalf("expected tickets to be cleared")
	}
	if e.lottery.RoundNumber() != 1 {
		t.Fatalf("expected round 1, but got %d", e.lottery.RoundNumber())
	}
	if e.lottery.Balance() != 2*price {
		t.Fatalf("unclaimed prize must stay in the balance, got %d", e.lottery.Balance())
	}
	checkSolvent(t, e.lottery)

	if err := e.lottery.StartNewRound(charlie); err != lotto.ErrRoundNotDrawn {
		t.Fatalf("expected %s, but got %v", lotto.ErrRoundNotDrawn, err)
	}
}

func TestLottery_Scenario(t *testing.T) {
	e := setUp(t, nil)
	defer e.lottery.Close()

	e.buy(t, alice, bob, charlie, dave)
	if e.lottery.Balance() != 4*price {
		t.Fatalf("expected balance %d, but got %d", 4*price, e.lottery.Balance())
	}

	e.drawn(t, 3)
	winner := e.lottery.Winner()
	if winner != dave {
		t.Fatalf("expected %s, but got %s", dave, winner)
	}
	if _, err := e.lottery.ClaimPrize(winner); err != nil {
		t.Fatalf("unexpected err: %s", err)
	}
	if e.lottery.Balance() != 0 {
		t.Fatalf("expected empty balance, but got %d", e.lottery.Balance())
	}
	if err := e.lottery.StartNewRound(alice); err != nil {
		t.Fatalf("unexpected err: %s", err)
	}
	e.buy(t, alice, bob)

	if _, err := e.lottery.ClaimPastPrize(winner, 0); err != lotto.ErrAlreadyClaimed {
		t.Fatalf("expected %s, but got %v", lotto.ErrAlreadyClaimed, err)
	}
	if e.lottery.Balance() != 2*price || e.payout.BalanceOf(winner) != 4*price {
		t.Fatalf("unexpected balances: ledger %d winner %d", e.lottery.Balance(), e.payout.BalanceOf(winner))
	}
}

func TestLottery_Events(t *testing.T) {
	e := setUp(t, nil)
	defer e.lottery.Close()

	e.buy(t, alice)
	req, _ := e.lottery.RequestDraw(admin)
	e.oracle.Fulfill(e.lottery, oracleAddr, 0)
	e.lottery.ClaimPrize(alice)
	e.lottery.StartNewRound(alice)
	e.lottery.ClaimPrize(alice)

	expected := []lotto.EventType{
		lotto.TicketPurchased,
		lotto.DrawRequested,
		lotto.WinnerDrawn,
		lotto.PrizeClaimed,
		lotto.RoundStarted,
	}
	for _, typ := range expected {
		select {
		case ev := <-e.events.Receive():
			if ev.Type != typ {
				t.Fatalf("expected %s, but got %s", typ, ev.Type)
			}
			if ev.Type == lotto.DrawRequested && (ev.Request != req.ID || string(ev.Handle) != string(req.Handle)) {
				t.Fatalf("unexpected draw event: %+v", ev)
			}
			if ev.Type == lotto.WinnerDrawn && (ev.Winner != alice || ev.Amount != price) {
				t.Fatalf("unexpected winner event: %+v", ev)
			}
		default:
			t.Fatalf("expected %s event", typ)
		}
	}
	select {
	case ev := <-e.events.Receive():
		t.Fatalf("failed operations must not emit events, got %+v", ev)
	default:
	}
}

func TestLottery_ConcurrentPurchases(t *testing.T) {
	e := setUp(t, nil)
	defer e.lottery.Close()

	wg := sync.WaitGroup{}
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			buyer := lotto.BytesToAddress([]byte{byte(i % 10)})
			e.lottery.PurchaseTicket(buyer, lotto.Ciphertext{byte(i)}, nil, price)
		}(i)
	}
	wg.Wait()

	if e.lottery.ParticipantCount() != 10 {
		t.Fatalf("expected 10 participants, but got %d", e.lottery.ParticipantCount())
	}
	if e.lottery.Balance() != 50*price {
		t.Fatalf("expected balance %d, but got %d", 50*price, e.lottery.Balance())
	}
}

func TestLottery_Close(t *testing.T) {
	e := setUp(t, nil)
	e.buy(t, alice)

	e.lottery.Close()
	e.lottery.Close()

	if err := e.lottery.PurchaseTicket(bob, nil, nil, price); err != lotto.ErrClosed {
		t.Fatalf("expected %s, but got %v", lotto.ErrClosed, err)
	}
	if e.lottery.ParticipantCount() != 1 {
		t.Fatalf("expected reads after close to see 1 participant, but got %d", e.lottery.ParticipantCount())
	}
}

type memStore struct {
	lock  sync.Mutex
	snap  core.Snapshot
	saved bool
	err   error
}

func (s *memStore) Load() (core.Snapshot, bool, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.snap, s.saved, nil
}

func (s *memStore) Save(snap core.Snapshot) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.err != nil {
		return s.err
	}
	s.snap, s.saved = snap, true
	return nil
}

func TestLottery_Restore(t *testing.T) {
	store := &memStore{}
	withStore := func(opts *core.Options) { opts.Store = store }

	first := setUp(t, withStore)
	first.buy(t, alice, bob)
	first.drawn(t, 0)
	first.lottery.StartNewRound(bob)
	first.buy(t, charlie, dave)
	req, err := first.lottery.RequestDraw(admin)
	if err != nil {
		t.Fatalf("unexpected err: %s", err)
	}
	first.lottery.Close()

	second := setUp(t, withStore)
	defer second.lottery.Close()

	if !second.lottery.DrawPending() || second.lottery.ParticipantCount() != 2 || second.lottery.RoundNumber() != 1 {
		t.Fatalf("unexpected restored round: %+v", second.lottery.Round())
	}
	if second.lottery.Balance() != 4*price || second.lottery.PastRoundsLength() != 1 {
		t.Fatalf("unexpected restored ledger: balance %d archive %d", second.lottery.Balance(), second.lottery.PastRoundsLength())
	}

	if err := second.oracle.FulfillWith(second.lottery, oracleAddr, req.ID, 1); err != nil {
		t.Fatalf("expected restored request to be fulfillable: %s", err)
	}
	if second.lottery.Winner() != dave {
		t.Fatalf("expected %s, but got %s", dave, second.lottery.Winner())
	}
	if _, err := second.lottery.ClaimPastPrize(alice, 0); err != nil {
		t.Fatalf("unexpected err: %s", err)
	}
}

func TestLottery_PersistFailure(t *testing.T) {
	store := &memStore{}
	e := setUp(t, func(opts *core.Options) { opts.Store = store })
	defer e.lottery.Close()

	e.buy(t, alice)
	store.lock.Lock()
	store.err = errors.New("disk full")
	store.lock.Unlock()

	if err := e.lottery.PurchaseTicket(bob, lotto.Ciphertext("b"), nil, price); err == nil {
		t.Fatalf("expected persist error")
	}
	if e.lottery.ParticipantCount() != 1 || e.lottery.Balance() != price {
		t.Fatalf("failed persist must roll back the purchase")
	}
}

func TestLottery_Status(t *testing.T) {
	e := setUp(t, nil)
	defer e.lottery.Close()

	st, err := e.lottery.Status()
	if err != nil {
		t.Fatalf("failed to read status: %s", err)
	}
	if st.Round.Started || !st.DrawAvailableAt.IsZero() || st.Admin != admin || st.TicketPrice != price {
		t.Fatalf("unexpected initial status %+v", st)
	}

	e.buy(t, alice, bob)

	done := make(chan struct{})
	errs := make(chan string, 1)
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			st, err := e.lottery.Status()
			if err != nil {
				errs <- err.Error()
				return
			}
			drawn := st.Round.State == lotto.Drawn
			if drawn != !st.Round.Winner.IsZero() || drawn != (st.PastRounds == 1) {
				errs <- "status mixes rounds: " + st.Round.State.String()
				return
			}
			if st.Round.Participants != 2 || st.Balance != 2*price {
				errs <- "status mixes purchases"
				return
			}
		}
	}()
	e.drawn(t, 1)
	<-done
	select {
	case msg := <-errs:
		t.Fatalf("expected a consistent status, but got %s", msg)
	default:
	}

	st, err = e.lottery.Status()
	if err != nil {
		t.Fatalf("failed to read status: %s", err)
	}
	if st.Round.State != lotto.Drawn || st.Round.Winner != bob || st.PastRounds != 1 || len(st.ArchiveRoot) == 0 {
		t.Fatalf("expected drawn status with winner %s, but got %+v", bob, st)
	}
	if !st.DrawAvailableAt.Equal(genesis.Add(lotto.Cooldown)) {
		t.Fatalf("expected draw available at %s, but got %s", genesis.Add(lotto.Cooldown), st.DrawAvailableAt)
	}
}
