// Package access decides who may trigger privileged ledger operations and
// when the time based fallback applies.
package access

import (
	"time"

	"github.com/DE-labtory/lotto"
)

type Policy struct {
	admin    lotto.Address
	cooldown time.Duration
}

func New(admin lotto.Address, cooldown time.Duration) *Policy {
	return &Policy{
		admin:    admin,
		cooldown: cooldown,
	}
}

func (p *Policy) Admin() lotto.Address {
	return p.admin
}

func (p *Policy) Cooldown() time.Duration {
	return p.cooldown
}

// CanRequestDraw is true iff the round has participants and the caller is
// the admin or the cooldown since the first purchase has elapsed.
func (p *Policy) CanRequestDraw(caller lotto.Address, now time.Time, round lotto.RoundInfo) bool {
	if round.Participants == 0 {
		return false
	}
	if caller == p.admin {
		return true
	}
	return round.Started && !now.Before(round.StartTime.Add(p.cooldown))
}

// CanStartNewRound is gated purely by state, any caller may restart.
func (p *Policy) CanStartNewRound(round lotto.RoundInfo) bool {
	return round.State == lotto.Drawn
}

// DrawAvailableAt returns when any caller may request a draw, or the zero
// time when the round has no purchase yet.
func (p *Policy) DrawAvailableAt(round lotto.RoundInfo) time.Time {
	if !round.Started {
		return time.Time{}
	}
	return round.StartTime.Add(p.cooldown)
}
