package lotto

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// Cooldown is how long after the first purchase of a round a non-admin
// caller has to wait before requesting a draw.
const Cooldown = 600 * time.Second

// Amount is a value in the smallest native unit (wei).
type Amount uint64

// Add returns a+b or ErrAmountOverflow.
func (a Amount) Add(b Amount) (Amount, error) {
	if b > math.MaxUint64-a {
		return 0, ErrAmountOverflow
	}
	return a + b, nil
}

// Sub returns a-b. Callers check b <= a, underflow is a ledger bug.
func (a Amount) Sub(b Amount) Amount {
	if b > a {
		panic(fmt.Sprintf("amount underflow: %d - %d", a, b))
	}
	return a - b
}

type State int32

const (
	Open State = iota
	DrawPending
	Drawn
)

func (s State) String() string {
	switch s {
	case Open:
		return "open"
	case DrawPending:
		return "draw-pending"
	case Drawn:
		return "drawn"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Ciphertext is an encrypted ticket as produced by the encryption client.
// The ledger never sees its cleartext value.
type Ciphertext []byte

// Proof accompanies a Ciphertext and proves it is well formed.
type Proof []byte

// Handle is an encrypted selection value handed to the oracle.
type Handle []byte

type RequestID = uuid.UUID

// NilRequestID marks the absence of an outstanding draw request.
var NilRequestID = uuid.Nil

// RoundInfo is a read-only view of the active round.
type RoundInfo struct {
	Number       uint64
	State        State
	Participants int
	StartTime    time.Time
	Started      bool
	Escrow       Amount
	Winner       Address
	Pending      RequestID
}

// Clock supplies the current time to the ledger.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

// ProofVerifier checks a ticket validity proof against the ciphertext, the
// purchasing caller and the contract context. It is an opaque boolean oracle
// from the ledger's point of view.
type ProofVerifier interface {
	Verify(ciphertext Ciphertext, caller Address, context []byte, proof Proof) bool
}

// Selector is the privacy preserving winner selection capability.
type Selector interface {
	// EncryptedIndex derives an encrypted selection handle from the tickets
	// of the current participants without decrypting any of them.
	EncryptedIndex(tickets []Ciphertext) (Handle, error)

	// Winner interprets a decrypted selection result as one of participants.
	Winner(result []byte, participants []Address) (Address, error)
}

// Oracle is the outbound half of the draw handshake. RequestDecryption must
// not block on the decryption itself.
type Oracle interface {
	RequestDecryption(req DrawRequest) error
}

// FulfillmentHandler is the inbound half of the draw handshake.
type FulfillmentHandler interface {
	FulfillDraw(caller Address, f Fulfillment) error
}

// AttestationVerifier checks the oracle attestation attached to a fulfillment.
type AttestationVerifier interface {
	VerifyAttestation(req DrawRequest, f Fulfillment) error
}

// Payout performs the external value transfer of a claim. It is called
// after the ledger state has been committed and while the ledger is still
// serialized, so implementations must not call back into the ledger.
type Payout interface {
	Transfer(to Address, amount Amount) error
}
