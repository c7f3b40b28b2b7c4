package elgamal

import (
	"encoding/binary"
	"math/big"

	"github.com/DE-labtory/lotto"
	"github.com/pkg/errors"
	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/util/random"
)

// BlindFactor sizes the blind added to the ticket sum: r is drawn from
// [0, n*BlindFactor) for n participants.
const BlindFactor = 1 << 10

// Bound is the largest selection value a handle over n tickets can
// decrypt to.
func Bound(n int) uint64 {
	return uint64(n) * (MaxTicket + BlindFactor)
}

// blindLimit is a multiple of n, so every residue mod n is equally likely
// for a blind drawn below it.
func blindLimit(n int) *big.Int {
	return new(big.Int).SetUint64(uint64(n) * BlindFactor)
}

// Selector implements lotto.Selector. The handle is the homomorphic sum of
// all tickets plus an encrypted blind, so decrypting it reveals nothing
// about any single ticket.
type Selector struct {
	public kyber.Point
}

func NewSelector(public kyber.Point) *Selector {
	return &Selector{public: public}
}

func (s *Selector) EncryptedIndex(tickets []lotto.Ciphertext) (lotto.Handle, error) {
	if len(tickets) == 0 {
		return nil, lotto.ErrNoParticipants
	}
	sum := zeroPair()
	for i, ct := range tickets {
		pair, err := PairFromBytes(ct)
		if err != nil {
			return nil, errors.Wrapf(err, "ticket %d", i)
		}
		sum = sum.add(pair)
	}

	r := random.Int(blindLimit(len(tickets)), suite.RandomStream())
	blind, _ := encrypt(s.public, r.Uint64())
	return sum.add(blind).Bytes()
}

// Winner reads an 8 byte big-endian selection value and picks the
// participant at its position modulo the participant count.
func (s *Selector) Winner(result []byte, participants []lotto.Address) (lotto.Address, error) {
	if len(participants) == 0 {
		return lotto.ZeroAddress, lotto.ErrNoParticipants
	}
	if len(result) != 8 {
		return lotto.ZeroAddress, errors.Errorf("selection result must be 8 bytes, got %d", len(result))
	}
	v := binary.BigEndian.Uint64(result)
	return participants[v%uint64(len(participants))], nil
}

// EncodeResult is the inverse of what Winner reads.
func EncodeResult(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
