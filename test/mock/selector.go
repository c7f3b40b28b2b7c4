package mock

import (
	"encoding/binary"
	"fmt"

	"github.com/DE-labtory/lotto"
	"github.com/pkg/errors"
)

// Selector is a deterministic stand-in for the encrypted selection. The
// handle is the ticket count and a result is a big-endian participant index.
type Selector struct {
	EncryptedIndexFunc func(tickets []lotto.Ciphertext) (lotto.Handle, error)
	WinnerFunc         func(result []byte, participants []lotto.Address) (lotto.Address, error)
}

func (s *Selector) EncryptedIndex(tickets []lotto.Ciphertext) (lotto.Handle, error) {
	if s.EncryptedIndexFunc != nil {
		return s.EncryptedIndexFunc(tickets)
	}
	return lotto.Handle(fmt.Sprintf("handle-%d", len(tickets))), nil
}

func (s *Selector) Winner(result []byte, participants []lotto.Address) (lotto.Address, error) {
	if s.WinnerFunc != nil {
		return s.WinnerFunc(result, participants)
	}
	if len(result) != 8 {
		return lotto.ZeroAddress, errors.Errorf("expected 8 byte result, but got %d", len(result))
	}
	if len(participants) == 0 {
		return lotto.ZeroAddress, errors.New("no participants")
	}
	idx := binary.BigEndian.Uint64(result) % uint64(len(participants))
	return participants[idx], nil
}

// Result encodes a participant index the way Selector.Winner reads it.
func Result(index uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, index)
	return b
}
