package oracle_test

import (
	"crypto/sha256"
	"errors"
	"testing"
	"time"

	"github.com/DE-labtory/lotto"
	"github.com/DE-labtory/lotto/core"
	"github.com/DE-labtory/lotto/elgamal"
	"github.com/DE-labtory/lotto/oracle"
	"github.com/DE-labtory/lotto/test/mock"
	"go.dedis.ch/kyber/v3/group/edwards25519"
	"go.dedis.ch/kyber/v3/sign/schnorr"
)

const price = lotto.Amount(100)

var (
	admin       = lotto.BytesToAddress([]byte{0xad})
	relayerAddr = lotto.BytesToAddress([]byte{0x0c})
	context     = []byte("lotto-oracle-test")
)

func setUpKeys(t *testing.T) *elgamal.KeySet {
	keys, err := elgamal.Setup(3, 4)
	if err != nil {
		t.Fatalf("failed to set up committee keys: %s", err)
	}
	return keys
}

// setUpWith builds a lottery sealing tickets under keys and a relayer
// holding the shares of committee.
func setUpWith(t *testing.T, keys, committee *elgamal.KeySet) (*core.Lottery, *oracle.Relayer) {
	relayer := oracle.NewRelayer(relayerAddr, committee, 10*time.Millisecond)
	l, err := core.New(core.Options{
		Admin:         admin,
		OracleAddress: relayerAddr,
		TicketPrice:   price,
		Context:       context,
		Verifier:      elgamal.NewVerifier(keys.Public),
		Selector:      elgamal.NewSelector(keys.Public),
		Oracle:        relayer,
		Attestation:   oracle.NewVerifier(committee.SignerPublic()),
		Payout:        &mock.Payout{},
		Clock:         mock.NewClock(time.Unix(1700000000, 0)),
	})
	if err != nil {
		t.Fatalf("failed to create lottery: %s", err)
	}
	relayer.Bind(l)
	return l, relayer
}

func setUp(t *testing.T) (*core.Lottery, *oracle.Relayer, *elgamal.KeySet) {
	keys := setUpKeys(t)
	l, relayer := setUpWith(t, keys, keys)
	return l, relayer, keys
}

func buy(t *testing.T, l *core.Lottery, keys *elgamal.KeySet, n int) []lotto.Address {
	var buyers []lotto.Address
	for i := 0; i < n; i++ {
		buyer := lotto.BytesToAddress([]byte{byte(i + 1)})
		ct, proof, err := elgamal.Seal(keys.Public, uint64(i*13%elgamal.MaxTicket+1), buyer, context)
		if err != nil {
			t.Fatalf("failed to seal ticket: %s", err)
		}
		if err := l.PurchaseTicket(buyer, ct, proof, price); err != nil {
			t.Fatalf("purchase by %s failed: %s", buyer, err)
		}
		buyers = append(buyers, buyer)
	}
	return buyers
}

func requestDraw(t *testing.T, l *core.Lottery) lotto.DrawRequest {
	req, err := l.RequestDraw(admin)
	if err != nil {
		t.Fatalf("request draw failed: %s", err)
	}
	return req
}

func contains(addrs []lotto.Address, a lotto.Address) bool {
	for _, b := range addrs {
		if a == b {
			return true
		}
	}
	return false
}

func TestRelayer_Flush(t *testing.T) {
	l, relayer, keys := setUp(t)
	defer l.Close()

	buyers := buy(t, l, keys, 4)
	req := requestDraw(t, l)
	if relayer.Pending() != 1 || !l.DrawPending() {
		t.Fatalf("expected one pending request, but got %d (draw pending %t)", relayer.Pending(), l.DrawPending())
	}

	if n := relayer.Flush(); n != 1 {
		t.Fatalf("expected 1 delivered fulfillment, but got %d", n)
	}
	if relayer.Pending() != 0 {
		t.Fatalf("expected empty queue, but got %d", relayer.Pending())
	}
	if !l.IsDrawn() {
		t.Fatalf("expected round to be drawn")
	}
	if !contains(buyers, l.Winner()) {
		t.Fatalf("expected winner among buyers, but got %s", l.Winner())
	}

	entry, err := l.PastRound(0)
	if err != nil {
		t.Fatalf("failed to read past round: %s", err)
	}
	if entry.Prize != 4*price {
		t.Fatalf("expected prize %d, but got %d", 4*price, entry.Prize)
	}

	// a replayed fulfillment is stale
	f, err := relayer.Fulfill(req)
	if err != nil {
		t.Fatalf("fulfill failed: %s", err)
	}
	if err := l.FulfillDraw(relayerAddr, f); err != lotto.ErrStaleFulfillment {
		t.Fatalf("expected %s, but got %v", lotto.ErrStaleFulfillment, err)
	}
}

func TestRelayer_Flush_RequeuesUndecryptable(t *testing.T) {
	keys := setUpKeys(t)
	l, relayer := setUpWith(t, keys, setUpKeys(t))
	defer l.Close()

	buy(t, l, keys, 2)
	requestDraw(t, l)

	for i := 0; i < 2; i++ {
		if n := relayer.Flush(); n != 0 {
			t.Fatalf("expected no delivered fulfillment, but got %d", n)
		}
		if relayer.Pending() != 1 {
			t.Fatalf("expected request to stay queued, but got %d", relayer.Pending())
		}
	}
	if !l.DrawPending() || l.IsDrawn() {
		t.Fatalf("expected draw to stay pending")
	}
}

// forge builds a ticket holding m with only a signature under the
// ephemeral key as its proof.
func forge(t *testing.T, keys *elgamal.KeySet, m int64, caller lotto.Address) (lotto.Ciphertext, lotto.Proof) {
	suite := edwards25519.NewBlakeSHA256Ed25519()
	k := suite.Scalar().Pick(suite.RandomStream())
	pair := elgamal.Pair{
		K: suite.Point().Mul(k, nil),
		C: suite.Point().Add(suite.Point().Mul(k, keys.Public), suite.Point().Mul(suite.Scalar().SetInt64(m), nil)),
	}
	ct, err := pair.Bytes()
	if err != nil {
		t.Fatalf("failed to encode ciphertext: %s", err)
	}
	h := sha256.New()
	h.Write(ct)
	h.Write(caller[:])
	h.Write(context)
	sig, err := schnorr.Sign(suite, k, h.Sum(nil))
	if err != nil {
		t.Fatalf("failed to sign: %s", err)
	}
	return ct, sig
}

func TestRelayer_OutOfRangeTicketRejected(t *testing.T) {
	l, relayer, keys := setUp(t)
	defer l.Close()

	buyers := buy(t, l, keys, 2)

	mallory := lotto.BytesToAddress([]byte{0x66})
	ct, proof := forge(t, keys, 1<<40, mallory)
	if err := l.PurchaseTicket(mallory, ct, proof, price); err != lotto.ErrProofInvalid {
		t.Fatalf("expected %s, but got %v", lotto.ErrProofInvalid, err)
	}

	// a valid proof for another ciphertext does not carry over
	_, honest, err := elgamal.Seal(keys.Public, 5, mallory, context)
	if err != nil {
		t.Fatalf("failed to seal ticket: %s", err)
	}
	if err := l.PurchaseTicket(mallory, ct, honest, price); err != lotto.ErrProofInvalid {
		t.Fatalf("expected %s, but got %v", lotto.ErrProofInvalid, err)
	}
	if l.ParticipantCount() != 2 || l.Balance() != 2*price {
		t.Fatalf("expected 2 participants and balance %d, but got %d and %d", 2*price, l.ParticipantCount(), l.Balance())
	}

	requestDraw(t, l)
	if n := relayer.Flush(); n != 1 {
		t.Fatalf("expected 1 delivered fulfillment, but got %d", n)
	}
	if !l.IsDrawn() || !contains(buyers, l.Winner()) {
		t.Fatalf("expected round drawn by an honest buyer, but got %s", l.Winner())
	}
}

func TestRelayer_Fulfill_Attestation(t *testing.T) {
	l, relayer, keys := setUp(t)
	defer l.Close()

	buy(t, l, keys, 3)
	req := requestDraw(t, l)

	f, err := relayer.Fulfill(req)
	if err != nil {
		t.Fatalf("fulfill failed: %s", err)
	}
	if err := oracle.NewVerifier(keys.SignerPublic()).VerifyAttestation(req, f); err != nil {
		t.Fatalf("expected attestation to verify, but got %s", err)
	}

	forged := f
	forged.Result = elgamal.EncodeResult(0)
	if err := l.FulfillDraw(relayerAddr, forged); !errors.Is(err, lotto.ErrAttestationInvalid) {
		t.Fatalf("expected %s, but got %v", lotto.ErrAttestationInvalid, err)
	}
	if err := l.FulfillDraw(admin, f); err != lotto.ErrNotOracle {
		t.Fatalf("expected %s, but got %v", lotto.ErrNotOracle, err)
	}
	if !l.DrawPending() {
		t.Fatalf("expected draw to stay pending")
	}

	if err := l.FulfillDraw(relayerAddr, f); err != nil {
		t.Fatalf("fulfill draw failed: %s", err)
	}
	if !l.IsDrawn() {
		t.Fatalf("expected round to be drawn")
	}
}

func TestRelayer_Start(t *testing.T) {
	l, relayer, keys := setUp(t)
	defer l.Close()

	relayer.Start()
	defer relayer.Close()

	buy(t, l, keys, 2)
	requestDraw(t, l)

	deadline := time.Now().Add(5 * time.Second)
	for !l.IsDrawn() {
		if time.Now().After(deadline) {
			t.Fatalf("expected round to be drawn by the relayer")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if l.DrawPending() {
		t.Fatalf("expected no pending draw")
	}
}

func TestRelayer_Close(t *testing.T) {
	l, relayer, _ := setUp(t)
	defer l.Close()
	relayer.Start()
	relayer.Close()
	relayer.Close()

	if err := relayer.RequestDecryption(lotto.DrawRequest{}); err == nil {
		t.Fatalf("expected closed relayer to refuse requests")
	}
}

func TestAddressOf(t *testing.T) {
	keys := setUpKeys(t)

	addr, err := oracle.AddressOf(keys.SignerPublic())
	if err != nil {
		t.Fatalf("failed to derive address: %s", err)
	}
	if addr.IsZero() {
		t.Fatalf("expected non-zero address")
	}

	again, err := oracle.AddressOf(keys.SignerPublic())
	if err != nil || again != addr {
		t.Fatalf("expected %s, but got %s (%v)", addr, again, err)
	}

	otherAddr, err := oracle.AddressOf(setUpKeys(t).SignerPublic())
	if err != nil {
		t.Fatalf("failed to derive address: %s", err)
	}
	if otherAddr == addr {
		t.Fatalf("expected distinct committees to have distinct addresses")
	}
}
