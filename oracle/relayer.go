// Package oracle is the decryption relayer. It takes draw requests off the
// ledger without blocking it, has the committee decrypt the selection
// handle, signs the result and calls the ledger back.
package oracle

import (
	"crypto/sha256"
	"sync/atomic"
	"time"

	"github.com/DE-labtory/lotto"
	"github.com/DE-labtory/lotto/elgamal"
	"github.com/DE-labtory/lotto/log"
	"github.com/pkg/errors"
	"go.dedis.ch/kyber/v3"
)

// attestationMessage is what the relayer signs for a fulfillment.
func attestationMessage(req lotto.DrawRequest, result []byte) []byte {
	h := sha256.New()
	h.Write(req.ID[:])
	h.Write(req.Handle)
	h.Write(result)
	return h.Sum(nil)
}

type Relayer struct {
	address   lotto.Address
	queue     lotto.RequestQueue
	members   []*elgamal.Member
	threshold int
	signer    kyber.Scalar
	handler   lotto.FulfillmentHandler
	interval  time.Duration

	closeChan chan struct{}
	doneChan  chan struct{}
	stopFlag  int32
}

// NewRelayer builds a relayer calling back as address and holding every
// committee share of keys.
func NewRelayer(address lotto.Address, keys *elgamal.KeySet, interval time.Duration) *Relayer {
	members := make([]*elgamal.Member, 0, keys.Size())
	for _, s := range keys.Shares {
		members = append(members, elgamal.NewMember(s))
	}
	return &Relayer{
		address:   address,
		queue:     lotto.NewRequestQueue(),
		members:   members,
		threshold: keys.Threshold,
		signer:    keys.Signer,
		interval:  interval,
		closeChan: make(chan struct{}),
		doneChan:  make(chan struct{}),
	}
}

func (r *Relayer) Address() lotto.Address {
	return r.address
}

// Bind sets the ledger fulfillments go to. Call it before Start.
func (r *Relayer) Bind(handler lotto.FulfillmentHandler) {
	r.handler = handler
}

// RequestDecryption implements lotto.Oracle. It only queues the request.
func (r *Relayer) RequestDecryption(req lotto.DrawRequest) error {
	if r.toDie() {
		return errors.New("relayer is closed")
	}
	r.queue.Push(req)
	return nil
}

func (r *Relayer) Pending() int {
	return r.queue.Len()
}

func (r *Relayer) Start() {
	go r.run()
}

func (r *Relayer) run() {
	defer close(r.doneChan)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.Flush()
		case <-r.closeChan:
			return
		}
	}
}

func (r *Relayer) Close() {
	if first := atomic.CompareAndSwapInt32(&r.stopFlag, int32(0), int32(1)); !first {
		return
	}
	close(r.closeChan)
	<-r.doneChan
}

func (r *Relayer) toDie() bool {
	return atomic.LoadInt32(&(r.stopFlag)) == int32(1)
}

// Flush answers every queued request and returns how many were delivered.
// A request that could not be decrypted, or that the ledger could not take
// for a reason other than a rejection, goes back in the queue.
func (r *Relayer) Flush() int {
	var retry []lotto.DrawRequest
	delivered := 0
	for {
		req, err := r.queue.Poll()
		if lotto.IsEmptyQueue(err) {
			break
		}
		f, err := r.Fulfill(req)
		if err != nil {
			log.Error("op", "decrypt", "request", req.ID, "err", err)
			retry = append(retry, req)
			continue
		}
		if err := r.handler.FulfillDraw(r.address, f); err != nil {
			if lotto.IsRejection(err) {
				log.Warn("op", "fulfill", "request", req.ID, "err", err)
				continue
			}
			log.Error("op", "fulfill", "request", req.ID, "err", err)
			retry = append(retry, req)
			continue
		}
		log.Info("op", "fulfill", "request", req.ID, "round", req.Round)
		delivered++
	}
	for _, req := range retry {
		r.queue.Push(req)
	}
	return delivered
}

// Fulfill decrypts the handle of req with a threshold of committee shares
// and signs the result.
func (r *Relayer) Fulfill(req lotto.DrawRequest) (lotto.Fulfillment, error) {
	if len(r.members) < r.threshold {
		return lotto.Fulfillment{}, errors.Errorf("committee has %d members, threshold is %d", len(r.members), r.threshold)
	}
	combiner := elgamal.NewCombiner(r.threshold, len(r.members))
	for _, m := range r.members[:r.threshold] {
		ds, err := m.DecShare(req.Handle)
		if err != nil {
			return lotto.Fulfillment{}, errors.Wrapf(err, "decryption share of member %d", m.Index())
		}
		if err := combiner.AcceptDecShare(ds); err != nil {
			return lotto.Fulfillment{}, err
		}
	}
	v, err := combiner.Decrypt(req.Handle, elgamal.Bound(req.Participants))
	if err != nil {
		return lotto.Fulfillment{}, errors.Wrapf(err, "decrypt handle of request %s", req.ID)
	}

	result := elgamal.EncodeResult(v)
	sig, err := elgamal.Sign(r.signer, attestationMessage(req, result))
	if err != nil {
		return lotto.Fulfillment{}, errors.Wrap(err, "sign attestation")
	}
	return lotto.Fulfillment{
		RequestID:   req.ID,
		Result:      result,
		Attestation: sig,
	}, nil
}
