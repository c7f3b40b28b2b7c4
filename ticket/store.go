// Package ticket holds the encrypted tickets of the active round and
// enforces the purchase price and the one-ticket-per-address rule.
package ticket

import (
	"github.com/DE-labtory/lotto"
	"github.com/pkg/errors"
)

// Receipt describes what an accepted purchase changed.
type Receipt struct {
	// Repurchase is set when the caller already held a ticket. The old
	// ciphertext is replaced and the payment is not refunded.
	Repurchase bool
	// First is set when this purchase opened the round.
	First bool
}

type Store struct {
	price        lotto.Amount
	verifier     lotto.ProofVerifier
	context      []byte
	participants *ParticipantSet
}

// New creates a store charging price per ticket. context is bound into every
// validity proof so a proof cannot be replayed against another ledger.
func New(price lotto.Amount, verifier lotto.ProofVerifier, context []byte) *Store {
	return &Store{
		price:        price,
		verifier:     verifier,
		context:      context,
		participants: NewParticipantSet(),
	}
}

func (s *Store) Price() lotto.Amount {
	return s.price
}

func (s *Store) Context() []byte {
	return s.context
}

// Check validates a purchase without changing anything.
func (s *Store) Check(caller lotto.Address, ct lotto.Ciphertext, proof lotto.Proof, payment lotto.Amount) error {
	if payment != s.price {
		return lotto.ErrInvalidPrice
	}
	if !s.verifier.Verify(ct, caller, s.context, proof) {
		return lotto.ErrProofInvalid
	}
	return nil
}

// Purchase checks and then records the ticket of caller.
func (s *Store) Purchase(caller lotto.Address, ct lotto.Ciphertext, proof lotto.Proof, payment lotto.Amount) (Receipt, error) {
	if err := s.Check(caller, ct, proof, payment); err != nil {
		return Receipt{}, err
	}
	first := s.participants.Len() == 0
	isNew := s.participants.Put(caller, ct)
	return Receipt{
		Repurchase: !isNew,
		First:      first,
	}, nil
}

func (s *Store) Ticket(addr lotto.Address) (lotto.Ciphertext, bool) {
	return s.participants.Ticket(addr)
}

func (s *Store) Participants() []lotto.Address {
	return s.participants.Addresses()
}

func (s *Store) Tickets() []lotto.Ciphertext {
	return s.participants.Tickets()
}

func (s *Store) Count() int {
	return s.participants.Len()
}

func (s *Store) Reset() {
	s.participants.Clear()
}

// Snapshot is the persisted form of the store, tickets aligned with owners.
type Snapshot struct {
	Owners  []lotto.Address
	Tickets []lotto.Ciphertext
}

func (s *Store) Snapshot() Snapshot {
	return Snapshot{
		Owners:  s.participants.Addresses(),
		Tickets: s.participants.Tickets(),
	}
}

func (s *Store) Restore(snap Snapshot) error {
	if len(snap.Owners) != len(snap.Tickets) {
		return errors.Errorf("ticket snapshot mismatch: %d owners, %d tickets", len(snap.Owners), len(snap.Tickets))
	}
	s.participants.Clear()
	for i, owner := range snap.Owners {
		s.participants.Put(owner, snap.Tickets[i])
	}
	return nil
}
