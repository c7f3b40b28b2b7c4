package api

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/DE-labtory/lotto"
	"github.com/DE-labtory/lotto/core"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type ErrIllegalArgument struct {
	Reason string
}

func (e ErrIllegalArgument) Error() string {
	return fmt.Sprintf("illegal arguments: %s", e.Reason)
}

type ErrNotFound struct {
	Reason string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("not found: %s", e.Reason)
}

// HexBytes is a byte slice carried as a 0x prefixed hex string.
type HexBytes []byte

func (b HexBytes) MarshalText() ([]byte, error) {
	return []byte("0x" + hex.EncodeToString(b)), nil
}

func (b *HexBytes) UnmarshalText(text []byte) error {
	s := strings.TrimPrefix(strings.TrimPrefix(string(text), "0x"), "0X")
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	*b = decoded
	return nil
}

type CallerRequest struct {
	Caller lotto.Address
}

type RoundRequest struct {
	Caller lotto.Address
	Index  int
}

type PurchaseTicketRequest struct {
	Caller     lotto.Address `json:"-"`
	Ciphertext HexBytes      `json:"ciphertext"`
	Proof      HexBytes      `json:"proof"`
	Payment    lotto.Amount  `json:"payment"`
}

type FulfillDrawRequest struct {
	Caller      lotto.Address   `json:"-"`
	RequestID   lotto.RequestID `json:"requestId"`
	Result      HexBytes        `json:"result"`
	Attestation HexBytes        `json:"attestation"`
}

type StatusResponse struct {
	ParticipantCount int           `json:"participantCount"`
	Balance          lotto.Amount  `json:"balance"`
	TicketPrice      lotto.Amount  `json:"ticketPrice"`
	IsDrawn          bool          `json:"isDrawn"`
	DrawPending      bool          `json:"drawPending"`
	Winner           lotto.Address `json:"winner"`
	Admin            lotto.Address `json:"admin"`
	RoundNumber      uint64        `json:"roundNumber"`
	RoundStartTime   *time.Time    `json:"roundStartTime,omitempty"`
	DrawAvailableAt  *time.Time    `json:"drawAvailableAt,omitempty"`
	PastRoundsLength int           `json:"pastRoundsLength"`
	ArchiveRoot      HexBytes      `json:"archiveRoot,omitempty"`
}

func statusResponse(st core.Status) StatusResponse {
	res := StatusResponse{
		ParticipantCount: st.Round.Participants,
		Balance:          st.Balance,
		TicketPrice:      st.TicketPrice,
		IsDrawn:          st.Round.State == lotto.Drawn,
		DrawPending:      st.Round.State == lotto.DrawPending,
		Winner:           st.Round.Winner,
		Admin:            st.Admin,
		RoundNumber:      st.Round.Number,
		PastRoundsLength: st.PastRounds,
		ArchiveRoot:      HexBytes(st.ArchiveRoot),
	}
	if st.Round.Started {
		start, at := st.Round.StartTime, st.DrawAvailableAt
		res.RoundStartTime = &start
		res.DrawAvailableAt = &at
	}
	return res
}

type PurchaseTicketResponse struct {
	ParticipantCount int `json:"participantCount"`
}

type MyTicketResponse struct {
	Ciphertext HexBytes `json:"ciphertext"`
}

type RequestDrawResponse struct {
	RequestID string   `json:"requestId"`
	Handle    HexBytes `json:"handle"`
}

type FulfillDrawResponse struct {
	Winner lotto.Address `json:"winner"`
}

type ClaimResponse struct {
	Amount lotto.Amount `json:"amount"`
}

type StartNewRoundResponse struct {
	RoundNumber uint64 `json:"roundNumber"`
}

type PastRoundResponse struct {
	Round    uint64        `json:"round"`
	Winner   lotto.Address `json:"winner"`
	Prize    lotto.Amount  `json:"prize"`
	DrawTime time.Time     `json:"drawTime"`
	Claimed  bool          `json:"claimed"`
}

type PastRoundProofResponse struct {
	Index int        `json:"index"`
	Root  HexBytes   `json:"root"`
	Path  []HexBytes `json:"path"`
	Sides []int64    `json:"sides"`
}

func callerOf(r *http.Request) (lotto.Address, error) {
	value := r.Header.Get(CallerHeader)
	if value == "" {
		return lotto.Address{}, ErrIllegalArgument{"missing " + CallerHeader + " header"}
	}
	addr, err := lotto.ToAddress(value)
	if err != nil {
		return lotto.Address{}, ErrIllegalArgument{err.Error()}
	}
	return addr, nil
}

func decodeEmptyRequest(_ context.Context, r *http.Request) (interface{}, error) {
	return nil, nil
}

func decodeCallerRequest(_ context.Context, r *http.Request) (interface{}, error) {
	caller, err := callerOf(r)
	if err != nil {
		return nil, err
	}
	return CallerRequest{Caller: caller}, nil
}

// decodeRoundRequest accepts a missing caller for the read-only routes.
func decodeRoundRequest(_ context.Context, r *http.Request) (interface{}, error) {
	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		return nil, ErrIllegalArgument{"round index: " + err.Error()}
	}
	req := RoundRequest{Index: index}
	if r.Header.Get(CallerHeader) != "" {
		if req.Caller, err = callerOf(r); err != nil {
			return nil, err
		}
	}
	return req, nil
}

func decodePurchaseTicketRequest(_ context.Context, r *http.Request) (interface{}, error) {
	caller, err := callerOf(r)
	if err != nil {
		return nil, err
	}
	var req PurchaseTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, ErrIllegalArgument{err.Error()}
	}
	if len(req.Ciphertext) == 0 {
		return nil, ErrIllegalArgument{"empty ciphertext"}
	}
	req.Caller = caller
	return req, nil
}

func decodeFulfillDrawRequest(_ context.Context, r *http.Request) (interface{}, error) {
	caller, err := callerOf(r)
	if err != nil {
		return nil, err
	}
	var req FulfillDrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, ErrIllegalArgument{err.Error()}
	}
	if req.RequestID == uuid.Nil {
		return nil, ErrIllegalArgument{"missing request id"}
	}
	req.Caller = caller
	return req, nil
}

type errorer interface {
	error() error
}

func encodeResponse(ctx context.Context, w http.ResponseWriter, response interface{}) error {
	if e, ok := response.(errorer); ok && e.error() != nil {
		encodeError(ctx, e.error(), w)
		return nil
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	return json.NewEncoder(w).Encode(response)
}

func encodeError(_ context.Context, err error, w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusOf(err))
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": err.Error(),
	})
}

func statusOf(err error) int {
	switch {
	case errors.As(err, new(ErrIllegalArgument)),
		errors.Is(err, lotto.ErrInvalidPrice),
		errors.Is(err, lotto.ErrProofInvalid),
		errors.Is(err, lotto.ErrAmountOverflow):
		return http.StatusBadRequest
	case errors.Is(err, lotto.ErrNotOracle),
		errors.Is(err, lotto.ErrNotWinner),
		errors.Is(err, lotto.ErrNotWinnerOfRound),
		errors.Is(err, lotto.ErrAttestationInvalid):
		return http.StatusForbidden
	case errors.As(err, new(ErrNotFound)),
		errors.Is(err, lotto.ErrRoundNotFound):
		return http.StatusNotFound
	case errors.Is(err, lotto.ErrClosed):
		return http.StatusServiceUnavailable
	case lotto.IsRejection(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
