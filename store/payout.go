package store

import (
	"encoding/binary"
	"time"

	"github.com/DE-labtory/lotto"
	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
	"go.dedis.ch/protobuf"
)

// Transfer is one journaled payout.
type Transfer struct {
	Seq    uint64
	To     lotto.Address
	Amount lotto.Amount
	Time   time.Time
}

type transferRecord struct {
	To     []byte
	Amount uint64
	Time   int64
}

// Transfer implements lotto.Payout by appending to the payout journal. The
// settlement of the journal against real funds happens outside the ledger.
func (s *BoltStore) Transfer(to lotto.Address, amount lotto.Amount) error {
	buf, err := protobuf.Encode(&transferRecord{
		To:     to.Bytes(),
		Amount: uint64(amount),
		Time:   time.Now().UnixNano(),
	})
	if err != nil {
		return errors.Wrap(err, "encode transfer")
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(payoutBucket)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		return b.Put(entryKey(int(seq)), buf)
	})
}

// Transfers returns the journal in payout order.
func (s *BoltStore) Transfers() ([]Transfer, error) {
	transfers := make([]Transfer, 0)
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(payoutBucket).ForEach(func(k, v []byte) error {
			rec := &transferRecord{}
			if err := protobuf.Decode(v, rec); err != nil {
				return errors.Wrapf(err, "decode transfer %x", k)
			}
			to, err := toAddress(rec.To)
			if err != nil {
				return err
			}
			transfers = append(transfers, Transfer{
				Seq:    binary.BigEndian.Uint64(k),
				To:     to,
				Amount: lotto.Amount(rec.Amount),
				Time:   toTime(rec.Time),
			})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return transfers, nil
}

// Paid sums the journaled payouts to addr.
func (s *BoltStore) Paid(addr lotto.Address) (lotto.Amount, error) {
	transfers, err := s.Transfers()
	if err != nil {
		return 0, err
	}
	var total lotto.Amount
	for _, t := range transfers {
		if t.To != addr {
			continue
		}
		if total, err = total.Add(t.Amount); err != nil {
			return 0, err
		}
	}
	return total, nil
}
