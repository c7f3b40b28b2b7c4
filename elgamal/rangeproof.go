package elgamal

import (
	"github.com/pkg/errors"
	"go.dedis.ch/kyber/v3"
)

// A range proof is a disjunction of Chaum-Pedersen proofs, one branch per
// ticket value j in 1..MaxTicket, each claiming log_G(K) = log_X(C - jG).
// Only the branch of the sealed value is proven; the others are
// simulated. The branch challenges must add up to the Fiat-Shamir challenge.
// Encoding is c_1||z_1||...||c_MaxTicket||z_MaxTicket.

func rangeProofLen() int {
	return 2 * MaxTicket * suite.ScalarLen()
}

// rangeTargets returns C - jG for j in 1..MaxTicket.
func rangeTargets(c kyber.Point) []kyber.Point {
	g := suite.Point().Base()
	targets := make([]kyber.Point, MaxTicket)
	t := suite.Point().Sub(c, g)
	for i := range targets {
		targets[i] = t
		t = suite.Point().Sub(t, g)
	}
	return targets
}

// simulated returns the commitments (zG - cK, zX - cT) a verifier rebuilds
// for one branch.
func simulated(public, k, target kyber.Point, c, z kyber.Scalar) (kyber.Point, kyber.Point) {
	a := suite.Point().Sub(suite.Point().Mul(z, nil), suite.Point().Mul(c, k))
	b := suite.Point().Sub(suite.Point().Mul(z, public), suite.Point().Mul(c, target))
	return a, b
}

func challenge(public kyber.Point, pair Pair, bind []byte, as, bs []kyber.Point) (kyber.Scalar, error) {
	h := suite.Hash()
	h.Write(bind)
	for _, p := range []kyber.Point{public, pair.K, pair.C} {
		if _, err := p.MarshalTo(h); err != nil {
			return nil, err
		}
	}
	for i := range as {
		if _, err := as[i].MarshalTo(h); err != nil {
			return nil, err
		}
		if _, err := bs[i].MarshalTo(h); err != nil {
			return nil, err
		}
	}
	return suite.Scalar().SetBytes(h.Sum(nil)), nil
}

// proveRange proves that pair, made with ephemeral key k, encrypts m under
// public. m must already be in 1..MaxTicket.
func proveRange(public kyber.Point, pair Pair, k kyber.Scalar, m uint64, bind []byte) ([]byte, error) {
	sealed := int(m) - 1
	targets := rangeTargets(pair.C)
	cs := make([]kyber.Scalar, MaxTicket)
	zs := make([]kyber.Scalar, MaxTicket)
	as := make([]kyber.Point, MaxTicket)
	bs := make([]kyber.Point, MaxTicket)

	w := suite.Scalar().Pick(suite.RandomStream())
	sum := suite.Scalar().Zero()
	for i := 0; i < MaxTicket; i++ {
		if i == sealed {
			as[i] = suite.Point().Mul(w, nil)
			bs[i] = suite.Point().Mul(w, public)
			continue
		}
		cs[i] = suite.Scalar().Pick(suite.RandomStream())
		zs[i] = suite.Scalar().Pick(suite.RandomStream())
		as[i], bs[i] = simulated(public, pair.K, targets[i], cs[i], zs[i])
		sum = suite.Scalar().Add(sum, cs[i])
	}

	c, err := challenge(public, pair, bind, as, bs)
	if err != nil {
		return nil, errors.Wrap(err, "range proof challenge")
	}
	cs[sealed] = suite.Scalar().Sub(c, sum)
	zs[sealed] = suite.Scalar().Add(w, suite.Scalar().Mul(cs[sealed], k))

	proof := make([]byte, 0, rangeProofLen())
	for i := 0; i < MaxTicket; i++ {
		for _, s := range []kyber.Scalar{cs[i], zs[i]} {
			b, err := s.MarshalBinary()
			if err != nil {
				return nil, err
			}
			proof = append(proof, b...)
		}
	}
	return proof, nil
}

func verifyRange(public kyber.Point, pair Pair, proof []byte, bind []byte) bool {
	if len(proof) != rangeProofLen() {
		return false
	}
	n := suite.ScalarLen()
	targets := rangeTargets(pair.C)
	as := make([]kyber.Point, MaxTicket)
	bs := make([]kyber.Point, MaxTicket)
	sum := suite.Scalar().Zero()
	for i := 0; i < MaxTicket; i++ {
		off := 2 * i * n
		c := suite.Scalar()
		if err := c.UnmarshalBinary(proof[off : off+n]); err != nil {
			return false
		}
		z := suite.Scalar()
		if err := z.UnmarshalBinary(proof[off+n : off+2*n]); err != nil {
			return false
		}
		as[i], bs[i] = simulated(public, pair.K, targets[i], c, z)
		sum = suite.Scalar().Add(sum, c)
	}
	c, err := challenge(public, pair, bind, as, bs)
	if err != nil {
		return false
	}
	return c.Equal(sum)
}
