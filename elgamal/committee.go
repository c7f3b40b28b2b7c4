package elgamal

import (
	"encoding/binary"
	"math"
	"sort"

	"github.com/DE-labtory/lotto"
	"github.com/pkg/errors"
	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/share"
)

// KeySet is the output of a trusted dealer: the committee public key, one
// private share per member and the key the relayer signs results with.
type KeySet struct {
	Threshold int
	Public    kyber.Point
	Shares    []*share.PriShare
	Signer    kyber.Scalar
}

// Setup deals a fresh key for size members, any threshold of which can
// decrypt.
func Setup(threshold, size int) (*KeySet, error) {
	if threshold < 1 || threshold > size {
		return nil, errors.Errorf("invalid threshold %d of %d", threshold, size)
	}
	secret := suite.Scalar().Pick(suite.RandomStream())
	poly := share.NewPriPoly(suite, threshold, secret, suite.RandomStream())
	return &KeySet{
		Threshold: threshold,
		Public:    suite.Point().Mul(secret, nil),
		Shares:    poly.Shares(size),
		Signer:    suite.Scalar().Pick(suite.RandomStream()),
	}, nil
}

func (k *KeySet) SignerPublic() kyber.Point {
	return suite.Point().Mul(k.Signer, nil)
}

func (k *KeySet) Size() int {
	return len(k.Shares)
}

// Member holds one private share of the committee key.
type Member struct {
	share *share.PriShare
}

func NewMember(s *share.PriShare) *Member {
	return &Member{share: s}
}

func (m *Member) Index() int {
	return m.share.I
}

// DecryptionShare is a member index followed by x_i*K.
type DecryptionShare []byte

// DecShare makes the decryption share of this member for handle.
func (m *Member) DecShare(handle lotto.Handle) (DecryptionShare, error) {
	pair, err := PairFromBytes(handle)
	if err != nil {
		return nil, err
	}
	v, err := suite.Point().Mul(m.share.V, pair.K).MarshalBinary()
	if err != nil {
		return nil, err
	}
	ds := make([]byte, 4, 4+len(v))
	binary.BigEndian.PutUint32(ds, uint32(m.share.I))
	return append(ds, v...), nil
}

func (d DecryptionShare) pubShare() (*share.PubShare, error) {
	if len(d) != 4+suite.PointLen() {
		return nil, errors.Errorf("decryption share must be %d bytes, got %d", 4+suite.PointLen(), len(d))
	}
	v := suite.Point()
	if err := v.UnmarshalBinary(d[4:]); err != nil {
		return nil, errors.Wrap(err, "decode decryption share")
	}
	return &share.PubShare{I: int(binary.BigEndian.Uint32(d[:4])), V: v}, nil
}

// Combiner collects decryption shares for one handle and recovers the
// plaintext once threshold of them are in.
type Combiner struct {
	threshold int
	size      int
	decShares map[int]*share.PubShare
}

func NewCombiner(threshold, size int) *Combiner {
	return &Combiner{
		threshold: threshold,
		size:      size,
		decShares: make(map[int]*share.PubShare),
	}
}

func (c *Combiner) AcceptDecShare(ds DecryptionShare) error {
	ps, err := ds.pubShare()
	if err != nil {
		return err
	}
	if ps.I < 0 || ps.I >= c.size {
		return errors.Errorf("decryption share index %d out of committee of %d", ps.I, c.size)
	}
	c.decShares[ps.I] = ps
	return nil
}

func (c *Combiner) ClearDecShare() {
	c.decShares = make(map[int]*share.PubShare)
}

func (c *Combiner) Ready() bool {
	return len(c.decShares) >= c.threshold
}

// Decrypt recovers m from handle, searching [0, bound].
func (c *Combiner) Decrypt(handle lotto.Handle, bound uint64) (uint64, error) {
	if !c.Ready() {
		return 0, errors.Errorf("need %d decryption shares, have %d", c.threshold, len(c.decShares))
	}
	pair, err := PairFromBytes(handle)
	if err != nil {
		return 0, err
	}

	shares := make([]*share.PubShare, 0, len(c.decShares))
	for _, ps := range c.decShares {
		shares = append(shares, ps)
	}
	sort.Slice(shares, func(i, j int) bool { return shares[i].I < shares[j].I })

	xK, err := share.RecoverCommit(suite, shares, c.threshold, c.size)
	if err != nil {
		return 0, errors.Wrap(err, "recover commit")
	}
	mG := suite.Point().Sub(pair.C, xK)
	return discreteLog(mG, bound)
}

// discreteLog solves mG = target for m in [0, bound] with baby-step
// giant-step.
func discreteLog(target kyber.Point, bound uint64) (uint64, error) {
	steps := uint64(math.Ceil(math.Sqrt(float64(bound + 1))))
	if steps == 0 {
		steps = 1
	}

	baby := make(map[string]uint64, steps)
	p := suite.Point().Null()
	g := suite.Point().Base()
	for j := uint64(0); j < steps; j++ {
		key, err := p.MarshalBinary()
		if err != nil {
			return 0, err
		}
		baby[string(key)] = j
		p = suite.Point().Add(p, g)
	}

	giant := suite.Point().Neg(suite.Point().Mul(scalarOf(steps), nil))
	gamma := suite.Point().Set(target)
	for i := uint64(0); i <= steps; i++ {
		key, err := gamma.MarshalBinary()
		if err != nil {
			return 0, err
		}
		if j, ok := baby[string(key)]; ok {
			if m := i*steps + j; m <= bound {
				return m, nil
			}
		}
		gamma = suite.Point().Add(gamma, giant)
	}
	return 0, errors.Errorf("plaintext not within [0, %d]", bound)
}
