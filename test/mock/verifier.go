package mock

import "github.com/DE-labtory/lotto"

// ProofVerifier accepts every proof unless VerifyFunc says otherwise.
type ProofVerifier struct {
	VerifyFunc func(ct lotto.Ciphertext, caller lotto.Address, context []byte, proof lotto.Proof) bool
}

func (v *ProofVerifier) Verify(ct lotto.Ciphertext, caller lotto.Address, context []byte, proof lotto.Proof) bool {
	if v.VerifyFunc == nil {
		return true
	}
	return v.VerifyFunc(ct, caller, context, proof)
}

type AttestationVerifier struct {
	VerifyAttestationFunc func(req lotto.DrawRequest, f lotto.Fulfillment) error
}

func (v *AttestationVerifier) VerifyAttestation(req lotto.DrawRequest, f lotto.Fulfillment) error {
	if v.VerifyAttestationFunc == nil {
		return nil
	}
	return v.VerifyAttestationFunc(req, f)
}
