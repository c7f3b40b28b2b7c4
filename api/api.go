// Package api exposes the ledger over HTTP. Callers identify themselves
// with the X-Lotto-Caller header: signing and submission happen in front
// of this server.
package api

import (
	"context"
	"net/http"

	"github.com/DE-labtory/lotto"
	"github.com/DE-labtory/lotto/archive"
	"github.com/DE-labtory/lotto/archive/merkletree"
	"github.com/DE-labtory/lotto/core"
	kitendpoint "github.com/go-kit/kit/endpoint"
	kitlog "github.com/go-kit/kit/log"
	kithttp "github.com/go-kit/kit/transport/http"
	"github.com/gorilla/mux"
)

const CallerHeader = "X-Lotto-Caller"

// Ledger is the part of the lottery the API serves.
type Ledger interface {
	PurchaseTicket(caller lotto.Address, ct lotto.Ciphertext, proof lotto.Proof, payment lotto.Amount) error
	RequestDraw(caller lotto.Address) (lotto.DrawRequest, error)
	FulfillDraw(caller lotto.Address, f lotto.Fulfillment) error
	ClaimPrize(caller lotto.Address) (lotto.Amount, error)
	ClaimPastPrize(caller lotto.Address, index int) (lotto.Amount, error)
	StartNewRound(caller lotto.Address) error

	Status() (core.Status, error)
	PastRound(index int) (archive.Entry, error)
	MyTicket(caller lotto.Address) (lotto.Ciphertext, bool)
	PastRoundProof(index int) (archive.Proof, error)
	RoundNumber() uint64
	ArchiveRoot() (merkletree.RootHash, error)
}

type endpoint struct {
	logger kitlog.Logger
	ledger Ledger
}

func newEndpoint(ledger Ledger, logger kitlog.Logger) *endpoint {
	return &endpoint{
		logger: logger,
		ledger: ledger,
	}
}

func NewApiHandler(ledger Ledger, logger kitlog.Logger) http.Handler {
	e := newEndpoint(ledger, logger)
	r := mux.NewRouter()

	opts := []kithttp.ServerOption{
		kithttp.ServerErrorLogger(logger),
		kithttp.ServerErrorEncoder(encodeError),
	}

	r.Methods("GET").Path("/healthz").HandlerFunc(func(w http.ResponseWriter, request *http.Request) {
		logger.Log("method", "GET", "endpoint", "healthz")
		w.Write([]byte("up"))
	})

	routes := []struct {
		method   string
		path     string
		name     string
		endpoint kitendpoint.Endpoint
		decode   kithttp.DecodeRequestFunc
	}{
		{"GET", "/lottery", "status", e.makeStatusEndpoint(), decodeEmptyRequest},
		{"POST", "/tickets", "purchaseTicket", e.makePurchaseTicketEndpoint(), decodePurchaseTicketRequest},
		{"GET", "/tickets/mine", "myTicket", e.makeMyTicketEndpoint(), decodeCallerRequest},
		{"POST", "/draw", "requestDraw", e.makeRequestDrawEndpoint(), decodeCallerRequest},
		{"POST", "/draw/fulfill", "fulfillDraw", e.makeFulfillDrawEndpoint(), decodeFulfillDrawRequest},
		{"POST", "/prize/claim", "claimPrize", e.makeClaimPrizeEndpoint(), decodeCallerRequest},
		{"POST", "/rounds", "startNewRound", e.makeStartNewRoundEndpoint(), decodeCallerRequest},
		{"GET", "/rounds/{index:[0-9]+}", "pastRound", e.makePastRoundEndpoint(), decodeRoundRequest},
		{"GET", "/rounds/{index:[0-9]+}/proof", "pastRoundProof", e.makePastRoundProofEndpoint(), decodeRoundRequest},
		{"POST", "/rounds/{index:[0-9]+}/claim", "claimPastPrize", e.makeClaimPastPrizeEndpoint(), decodeRoundRequest},
	}
	for _, route := range routes {
		r.Methods(route.method).Path(route.path).Handler(kithttp.NewServer(
			e.logged(route.name, route.endpoint),
			route.decode,
			encodeResponse,
			opts...,
		))
	}
	return r
}

func (e *endpoint) logged(name string, next kitendpoint.Endpoint) kitendpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		e.logger.Log("endpoint", name)
		response, err := next(ctx, request)
		if err != nil {
			e.logger.Log("endpoint", name, "err", err.Error())
		}
		return response, err
	}
}

func (e *endpoint) makeStatusEndpoint() kitendpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		st, err := e.ledger.Status()
		if err != nil {
			return nil, err
		}
		return statusResponse(st), nil
	}
}

func (e *endpoint) makePurchaseTicketEndpoint() kitendpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req := request.(PurchaseTicketRequest)
		err := e.ledger.PurchaseTicket(req.Caller, lotto.Ciphertext(req.Ciphertext), lotto.Proof(req.Proof), req.Payment)
		if err != nil {
			return nil, err
		}
		st, err := e.ledger.Status()
		if err != nil {
			return nil, err
		}
		return PurchaseTicketResponse{ParticipantCount: st.Round.Participants}, nil
	}
}

func (e *endpoint) makeMyTicketEndpoint() kitendpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req := request.(CallerRequest)
		ct, ok := e.ledger.MyTicket(req.Caller)
		if !ok {
			return nil, ErrNotFound{"no ticket this round"}
		}
		return MyTicketResponse{Ciphertext: HexBytes(ct)}, nil
	}
}

func (e *endpoint) makeRequestDrawEndpoint() kitendpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req := request.(CallerRequest)
		draw, err := e.ledger.RequestDraw(req.Caller)
		if err != nil {
			return nil, err
		}
		return RequestDrawResponse{
			RequestID: draw.ID.String(),
			Handle:    HexBytes(draw.Handle),
		}, nil
	}
}

func (e *endpoint) makeFulfillDrawEndpoint() kitendpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req := request.(FulfillDrawRequest)
		err := e.ledger.FulfillDraw(req.Caller, lotto.Fulfillment{
			RequestID:   req.RequestID,
			Result:      req.Result,
			Attestation: req.Attestation,
		})
		if err != nil {
			return nil, err
		}
		st, err := e.ledger.Status()
		if err != nil {
			return nil, err
		}
		return FulfillDrawResponse{Winner: st.Round.Winner}, nil
	}
}

func (e *endpoint) makeClaimPrizeEndpoint() kitendpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req := request.(CallerRequest)
		amount, err := e.ledger.ClaimPrize(req.Caller)
		if err != nil {
			return nil, err
		}
		return ClaimResponse{Amount: amount}, nil
	}
}

func (e *endpoint) makeClaimPastPrizeEndpoint() kitendpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req := request.(RoundRequest)
		amount, err := e.ledger.ClaimPastPrize(req.Caller, req.Index)
		if err != nil {
			return nil, err
		}
		return ClaimResponse{Amount: amount}, nil
	}
}

func (e *endpoint) makeStartNewRoundEndpoint() kitendpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req := request.(CallerRequest)
		if err := e.ledger.StartNewRound(req.Caller); err != nil {
			return nil, err
		}
		return StartNewRoundResponse{RoundNumber: e.ledger.RoundNumber()}, nil
	}
}

func (e *endpoint) makePastRoundEndpoint() kitendpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req := request.(RoundRequest)
		entry, err := e.ledger.PastRound(req.Index)
		if err != nil {
			return nil, err
		}
		return PastRoundResponse{
			Round:    entry.Round,
			Winner:   entry.Winner,
			Prize:    entry.Prize,
			DrawTime: entry.DrawTime,
			Claimed:  entry.Claimed,
		}, nil
	}
}

func (e *endpoint) makePastRoundProofEndpoint() kitendpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req := request.(RoundRequest)
		proof, err := e.ledger.PastRoundProof(req.Index)
		if err != nil {
			return nil, err
		}
		root, err := e.ledger.ArchiveRoot()
		if err != nil {
			return nil, err
		}
		res := PastRoundProofResponse{
			Index: proof.Index,
			Root:  HexBytes(root),
			Sides: proof.Sides,
		}
		for _, p := range proof.Path {
			res.Path = append(res.Path, HexBytes(p))
		}
		return res, nil
	}
}
