package mock

import (
	"sync"

	"github.com/DE-labtory/lotto"
)

// Payout credits transfers to in-memory balances. TransferFunc runs before
// the credit and can fail the transfer.
type Payout struct {
	TransferFunc func(to lotto.Address, amount lotto.Amount) error

	lock     sync.Mutex
	balances map[lotto.Address]lotto.Amount
}

func (p *Payout) Transfer(to lotto.Address, amount lotto.Amount) error {
	if p.TransferFunc != nil {
		if err := p.TransferFunc(to, amount); err != nil {
			return err
		}
	}
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.balances == nil {
		p.balances = make(map[lotto.Address]lotto.Amount)
	}
	p.balances[to] += amount
	return nil
}

func (p *Payout) BalanceOf(addr lotto.Address) lotto.Amount {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.balances[addr]
}
