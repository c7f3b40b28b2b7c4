// Package elgamal implements the encrypted ticket scheme: exponential
// ElGamal on edwards25519, with tickets added together homomorphically and
// decrypted by a threshold committee.
package elgamal

import (
	"crypto/sha256"

	"github.com/DE-labtory/lotto"
	"github.com/pkg/errors"
	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/group/edwards25519"
	"go.dedis.ch/kyber/v3/sign/schnorr"
)

// MaxTicket is the largest number a ticket can encode.
const MaxTicket = 100

var suite = edwards25519.NewBlakeSHA256Ed25519()

var ErrTicketRange = errors.New("ticket value out of range")

// Pair is an ElGamal ciphertext (K, C) = (kG, kX + mG).
type Pair struct {
	K kyber.Point
	C kyber.Point
}

func zeroPair() Pair {
	return Pair{K: suite.Point().Null(), C: suite.Point().Null()}
}

// encrypt returns the encryption of m under public and the ephemeral
// scalar used for it.
func encrypt(public kyber.Point, m uint64) (Pair, kyber.Scalar) {
	k := suite.Scalar().Pick(suite.RandomStream())
	mG := suite.Point().Mul(scalarOf(m), nil)
	return Pair{
		K: suite.Point().Mul(k, nil),
		C: suite.Point().Add(suite.Point().Mul(k, public), mG),
	}, k
}

func (p Pair) add(o Pair) Pair {
	return Pair{
		K: suite.Point().Add(p.K, o.K),
		C: suite.Point().Add(p.C, o.C),
	}
}

func (p Pair) Bytes() ([]byte, error) {
	k, err := p.K.MarshalBinary()
	if err != nil {
		return nil, err
	}
	c, err := p.C.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return append(k, c...), nil
}

// PairFromBytes decodes K||C.
func PairFromBytes(b []byte) (Pair, error) {
	n := suite.PointLen()
	if len(b) != 2*n {
		return Pair{}, errors.Errorf("ciphertext must be %d bytes, got %d", 2*n, len(b))
	}
	k := suite.Point()
	if err := k.UnmarshalBinary(b[:n]); err != nil {
		return Pair{}, errors.Wrap(err, "decode K")
	}
	c := suite.Point()
	if err := c.UnmarshalBinary(b[n:]); err != nil {
		return Pair{}, errors.Wrap(err, "decode C")
	}
	return Pair{K: k, C: c}, nil
}

func scalarOf(m uint64) kyber.Scalar {
	return suite.Scalar().SetInt64(int64(m))
}

// proofMessage binds a ciphertext to its purchaser and the ledger it was
// made for.
func proofMessage(ct []byte, caller lotto.Address, context []byte) []byte {
	h := sha256.New()
	h.Write(ct)
	h.Write(caller[:])
	h.Write(context)
	return h.Sum(nil)
}

// Seal encrypts ticket value m for caller under the committee key and
// proves that the ciphertext holds a value in 1..MaxTicket.
func Seal(public kyber.Point, m uint64, caller lotto.Address, context []byte) (lotto.Ciphertext, lotto.Proof, error) {
	if m < 1 || m > MaxTicket {
		return nil, nil, ErrTicketRange
	}
	pair, k := encrypt(public, m)
	ct, err := pair.Bytes()
	if err != nil {
		return nil, nil, err
	}
	proof, err := proveRange(public, pair, k, m, proofMessage(ct, caller, context))
	if err != nil {
		return nil, nil, errors.Wrap(err, "prove ticket range")
	}
	return ct, proof, nil
}

// Verifier implements lotto.ProofVerifier for tickets sealed under one
// committee key.
type Verifier struct {
	public kyber.Point
}

func NewVerifier(public kyber.Point) *Verifier {
	return &Verifier{public: public}
}

func (v *Verifier) Verify(ct lotto.Ciphertext, caller lotto.Address, context []byte, proof lotto.Proof) bool {
	pair, err := PairFromBytes(ct)
	if err != nil {
		return false
	}
	return verifyRange(v.public, pair, proof, proofMessage(ct, caller, context))
}

// Sign makes a Schnorr signature over msg.
func Sign(secret kyber.Scalar, msg []byte) ([]byte, error) {
	return schnorr.Sign(suite, secret, msg)
}

func VerifySignature(public kyber.Point, msg, sig []byte) error {
	return schnorr.Verify(suite, public, msg, sig)
}
