package lotto

import "errors"

var (
	ErrInvalidPrice       = errors.New("incorrect ticket price")
	ErrProofInvalid       = errors.New("ticket proof does not verify")
	ErrRoundNotOpen       = errors.New("round is not open for purchases")
	ErrNoParticipants     = errors.New("no participants")
	ErrDrawNotReady       = errors.New("draw not available yet or not admin")
	ErrDrawAlreadyPending = errors.New("draw already pending")
	ErrStaleFulfillment   = errors.New("stale or unknown draw fulfillment")
	ErrNotOracle          = errors.New("caller is not the oracle")
	ErrAttestationInvalid = errors.New("oracle attestation is invalid")
	ErrNotWinner          = errors.New("not the winner")
	ErrNotWinnerOfRound   = errors.New("not the winner of this round")
	ErrAlreadyClaimed     = errors.New("prize already claimed")
	ErrRoundNotDrawn      = errors.New("lottery not drawn yet")
	ErrRoundNotFound      = errors.New("invalid round")
	ErrAmountOverflow     = errors.New("amount overflow")
	ErrClosed             = errors.New("lottery is closed")
)

// IsRejection reports whether err belongs to the taxonomy of precondition
// failures a caller can fix and retry, as opposed to infrastructure errors.
func IsRejection(err error) bool {
	for _, target := range rejections {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

var rejections = []error{
	ErrInvalidPrice,
	ErrProofInvalid,
	ErrRoundNotOpen,
	ErrNoParticipants,
	ErrDrawNotReady,
	ErrDrawAlreadyPending,
	ErrStaleFulfillment,
	ErrNotOracle,
	ErrAttestationInvalid,
	ErrNotWinner,
	ErrNotWinnerOfRound,
	ErrAlreadyClaimed,
	ErrRoundNotDrawn,
	ErrRoundNotFound,
	ErrAmountOverflow,
}
