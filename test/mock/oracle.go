package mock

import (
	"errors"
	"sync"

	"github.com/DE-labtory/lotto"
)

// Oracle records every draw request it is given. Tests answer them through
// Fulfill, which can also forge stale, duplicate or unknown fulfillments.
type Oracle struct {
	RequestDecryptionFunc func(req lotto.DrawRequest) error

	lock     sync.Mutex
	requests []lotto.DrawRequest
}

func (o *Oracle) RequestDecryption(req lotto.DrawRequest) error {
	if o.RequestDecryptionFunc != nil {
		if err := o.RequestDecryptionFunc(req); err != nil {
			return err
		}
	}
	o.lock.Lock()
	defer o.lock.Unlock()
	o.requests = append(o.requests, req)
	return nil
}

func (o *Oracle) Requests() []lotto.DrawRequest {
	o.lock.Lock()
	defer o.lock.Unlock()
	reqs := make([]lotto.DrawRequest, len(o.requests))
	copy(reqs, o.requests)
	return reqs
}

// Last returns the most recent draw request.
func (o *Oracle) Last() (lotto.DrawRequest, error) {
	o.lock.Lock()
	defer o.lock.Unlock()
	if len(o.requests) == 0 {
		return lotto.DrawRequest{}, errors.New("no draw request issued")
	}
	return o.requests[len(o.requests)-1], nil
}

// Fulfill answers the most recent request, selecting the participant at index.
func (o *Oracle) Fulfill(h lotto.FulfillmentHandler, caller lotto.Address, index uint64) error {
	req, err := o.Last()
	if err != nil {
		return err
	}
	return h.FulfillDraw(caller, lotto.Fulfillment{
		RequestID: req.ID,
		Result:    Result(index),
	})
}

// FulfillWith delivers a fulfillment for an arbitrary request id.
func (o *Oracle) FulfillWith(h lotto.FulfillmentHandler, caller lotto.Address, id lotto.RequestID, index uint64) error {
	return h.FulfillDraw(caller, lotto.Fulfillment{
		RequestID: id,
		Result:    Result(index),
	})
}
