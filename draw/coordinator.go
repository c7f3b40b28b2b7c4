// Package draw runs the two phase draw handshake with the decryption oracle.
package draw

import (
	"time"

	"github.com/DE-labtory/lotto"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type Coordinator struct {
	selector lotto.Selector
	// verifier may be nil, in which case attestations are trusted.
	verifier lotto.AttestationVerifier
	pending  *lotto.DrawRequest
}

func New(selector lotto.Selector, verifier lotto.AttestationVerifier) *Coordinator {
	return &Coordinator{
		selector: selector,
		verifier: verifier,
	}
}

// Prepare derives the encrypted selection handle over tickets and builds a
// request with a fresh id. Nothing is recorded until Track.
func (c *Coordinator) Prepare(round uint64, tickets []lotto.Ciphertext, now time.Time) (lotto.DrawRequest, error) {
	if len(tickets) == 0 {
		return lotto.DrawRequest{}, lotto.ErrNoParticipants
	}
	handle, err := c.selector.EncryptedIndex(tickets)
	if err != nil {
		return lotto.DrawRequest{}, errors.Wrap(err, "derive encrypted index")
	}
	id, err := uuid.NewRandom()
	if err != nil {
		return lotto.DrawRequest{}, errors.Wrap(err, "allocate request id")
	}
	return lotto.DrawRequest{
		ID:           id,
		Round:        round,
		Handle:       handle,
		Participants: len(tickets),
		IssuedAt:     now,
	}, nil
}

// Track records req as the single outstanding request.
func (c *Coordinator) Track(req lotto.DrawRequest) error {
	if c.pending != nil {
		return lotto.ErrDrawAlreadyPending
	}
	c.pending = &req
	return nil
}

func (c *Coordinator) Pending() (lotto.DrawRequest, bool) {
	if c.pending == nil {
		return lotto.DrawRequest{}, false
	}
	return *c.pending, true
}

// Resolve checks f against the outstanding request and returns the winner
// among participants. The request stays outstanding until Clear.
func (c *Coordinator) Resolve(f lotto.Fulfillment, participants []lotto.Address) (lotto.Address, error) {
	if c.pending == nil || c.pending.ID != f.RequestID {
		return lotto.ZeroAddress, lotto.ErrStaleFulfillment
	}
	if len(participants) != c.pending.Participants {
		return lotto.ZeroAddress, errors.Errorf("participants changed under draw request %s: %d, was %d",
			c.pending.ID, len(participants), c.pending.Participants)
	}
	if c.verifier != nil {
		if err := c.verifier.VerifyAttestation(*c.pending, f); err != nil {
			return lotto.ZeroAddress, errors.Wrap(lotto.ErrAttestationInvalid, err.Error())
		}
	}
	winner, err := c.selector.Winner(f.Result, participants)
	if err != nil {
		return lotto.ZeroAddress, errors.Wrap(err, "interpret draw result")
	}
	return winner, nil
}

func (c *Coordinator) Clear() {
	c.pending = nil
}

// Restore reinstates an outstanding request loaded from storage.
func (c *Coordinator) Restore(req *lotto.DrawRequest) {
	if req == nil {
		c.pending = nil
		return
	}
	r := *req
	c.pending = &r
}
