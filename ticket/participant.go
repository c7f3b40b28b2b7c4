package ticket

import (
	"sync"

	"github.com/DE-labtory/lotto"
)

// ParticipantSet holds at most one ticket per address and remembers the
// order in which addresses first bought a ticket.
type ParticipantSet struct {
	lock    sync.RWMutex
	order   []lotto.Address
	tickets map[lotto.Address]lotto.Ciphertext
}

func NewParticipantSet() *ParticipantSet {
	return &ParticipantSet{
		lock:    sync.RWMutex{},
		order:   make([]lotto.Address, 0),
		tickets: make(map[lotto.Address]lotto.Ciphertext),
	}
}

// Put stores or overwrites the ticket of addr and reports whether addr is new.
func (p *ParticipantSet) Put(addr lotto.Address, ct lotto.Ciphertext) bool {
	p.lock.Lock()
	defer p.lock.Unlock()

	_, ok := p.tickets[addr]
	p.tickets[addr] = append(lotto.Ciphertext(nil), ct...)
	if !ok {
		p.order = append(p.order, addr)
	}
	return !ok
}

func (p *ParticipantSet) Ticket(addr lotto.Address) (lotto.Ciphertext, bool) {
	p.lock.RLock()
	defer p.lock.RUnlock()

	ct, ok := p.tickets[addr]
	if !ok {
		return nil, false
	}
	return append(lotto.Ciphertext(nil), ct...), true
}

func (p *ParticipantSet) Contains(addr lotto.Address) bool {
	p.lock.RLock()
	defer p.lock.RUnlock()

	_, ok := p.tickets[addr]
	return ok
}

// Addresses returns participants in purchase order.
func (p *ParticipantSet) Addresses() []lotto.Address {
	p.lock.RLock()
	defer p.lock.RUnlock()

	addrs := make([]lotto.Address, len(p.order))
	copy(addrs, p.order)
	return addrs
}

// Tickets returns the ciphertexts in the same order as Addresses.
func (p *ParticipantSet) Tickets() []lotto.Ciphertext {
	p.lock.RLock()
	defer p.lock.RUnlock()

	cts := make([]lotto.Ciphertext, 0, len(p.order))
	for _, addr := range p.order {
		cts = append(cts, p.tickets[addr])
	}
	return cts
}

func (p *ParticipantSet) Len() int {
	p.lock.RLock()
	defer p.lock.RUnlock()

	return len(p.order)
}

func (p *ParticipantSet) Clear() {
	p.lock.Lock()
	defer p.lock.Unlock()

	p.order = make([]lotto.Address, 0)
	p.tickets = make(map[lotto.Address]lotto.Ciphertext)
}
