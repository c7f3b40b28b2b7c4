package oracle

import (
	"crypto/sha256"

	"github.com/DE-labtory/lotto"
	"github.com/DE-labtory/lotto/elgamal"
	"github.com/pkg/errors"
	"go.dedis.ch/kyber/v3"
)

// Verifier implements lotto.AttestationVerifier against the relayer's
// signing key.
type Verifier struct {
	public kyber.Point
}

func NewVerifier(public kyber.Point) *Verifier {
	return &Verifier{public: public}
}

func (v *Verifier) VerifyAttestation(req lotto.DrawRequest, f lotto.Fulfillment) error {
	return elgamal.VerifySignature(v.public, attestationMessage(req, f.Result), f.Attestation)
}

// AddressOf derives the relayer address from its signing key: the last
// bytes of the key's sha256.
func AddressOf(public kyber.Point) (lotto.Address, error) {
	b, err := public.MarshalBinary()
	if err != nil {
		return lotto.Address{}, errors.Wrap(err, "marshal signer key")
	}
	sum := sha256.Sum256(b)
	return lotto.BytesToAddress(sum[:]), nil
}
