package store

import (
	"time"

	"github.com/DE-labtory/lotto"
	"github.com/DE-labtory/lotto/archive"
	"github.com/DE-labtory/lotto/core"
	"github.com/DE-labtory/lotto/round"
	"github.com/DE-labtory/lotto/ticket"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// stateRecord is the encoded active round, its tickets and the
// outstanding draw request.
type stateRecord struct {
	Number    uint64
	State     int64
	Started   bool
	StartTime int64
	Pending   []byte
	Escrow    uint64
	Balance   uint64
	Winner    []byte
	Entry     int64
	Owners    [][]byte
	Tickets   [][]byte
	Request   *requestRecord
}

type requestRecord struct {
	ID           []byte
	Round        uint64
	Handle       []byte
	Participants int64
	IssuedAt     int64
}

type entryRecord struct {
	Round    uint64
	Winner   []byte
	Prize    uint64
	DrawTime int64
	Claimed  bool
}

func toTime(nanos int64) time.Time {
	return time.Unix(0, nanos).UTC()
}

func toID(b []byte) (lotto.RequestID, error) {
	if len(b) == 0 {
		return lotto.NilRequestID, nil
	}
	return uuid.FromBytes(b)
}

func toAddress(b []byte) (lotto.Address, error) {
	if len(b) == 0 {
		return lotto.ZeroAddress, nil
	}
	if len(b) != lotto.AddressLength {
		return lotto.Address{}, errors.Errorf("stored address has %d bytes", len(b))
	}
	return lotto.BytesToAddress(b), nil
}

func newStateRecord(snap core.Snapshot) *stateRecord {
	r := snap.Round
	rec := &stateRecord{
		Number:  r.Number,
		State:   int64(r.State),
		Started: r.Started,
		Escrow:  uint64(r.Escrow),
		Balance: uint64(r.Balance),
		Entry:   int64(r.Entry),
	}
	if r.Started {
		rec.StartTime = r.StartTime.UnixNano()
	}
	if r.Pending != lotto.NilRequestID {
		rec.Pending = append([]byte(nil), r.Pending[:]...)
	}
	if !r.Winner.IsZero() {
		rec.Winner = r.Winner.Bytes()
	}
	for i, owner := range snap.Tickets.Owners {
		rec.Owners = append(rec.Owners, owner.Bytes())
		rec.Tickets = append(rec.Tickets, snap.Tickets.Tickets[i])
	}
	if req := snap.Pending; req != nil {
		rec.Request = &requestRecord{
			ID:           append([]byte(nil), req.ID[:]...),
			Round:        req.Round,
			Handle:       req.Handle,
			Participants: int64(req.Participants),
			IssuedAt:     req.IssuedAt.UnixNano(),
		}
	}
	return rec
}

func (rec *stateRecord) snapshot() (core.Snapshot, error) {
	pending, err := toID(rec.Pending)
	if err != nil {
		return core.Snapshot{}, errors.Wrap(err, "pending request id")
	}
	winner, err := toAddress(rec.Winner)
	if err != nil {
		return core.Snapshot{}, err
	}
	snap := core.Snapshot{
		Round: round.Snapshot{
			Number:  rec.Number,
			State:   lotto.State(rec.State),
			Started: rec.Started,
			Pending: pending,
			Escrow:  lotto.Amount(rec.Escrow),
			Balance: lotto.Amount(rec.Balance),
			Winner:  winner,
			Entry:   int(rec.Entry),
		},
	}
	if rec.Started {
		snap.Round.StartTime = toTime(rec.StartTime)
	}
	if len(rec.Owners) != len(rec.Tickets) {
		return core.Snapshot{}, errors.Errorf("stored %d owners for %d tickets", len(rec.Owners), len(rec.Tickets))
	}
	snap.Tickets = ticket.Snapshot{
		Owners:  make([]lotto.Address, 0, len(rec.Owners)),
		Tickets: make([]lotto.Ciphertext, 0, len(rec.Tickets)),
	}
	for i, b := range rec.Owners {
		owner, err := toAddress(b)
		if err != nil {
			return core.Snapshot{}, err
		}
		snap.Tickets.Owners = append(snap.Tickets.Owners, owner)
		snap.Tickets.Tickets = append(snap.Tickets.Tickets, lotto.Ciphertext(rec.Tickets[i]))
	}
	if req := rec.Request; req != nil {
		id, err := toID(req.ID)
		if err != nil {
			return core.Snapshot{}, errors.Wrap(err, "draw request id")
		}
		snap.Pending = &lotto.DrawRequest{
			ID:           id,
			Round:        req.Round,
			Handle:       lotto.Handle(req.Handle),
			Participants: int(req.Participants),
			IssuedAt:     toTime(req.IssuedAt),
		}
	}
	return snap, nil
}

func newEntryRecord(e archive.Entry) *entryRecord {
	return &entryRecord{
		Round:    e.Round,
		Winner:   e.Winner.Bytes(),
		Prize:    uint64(e.Prize),
		DrawTime: e.DrawTime.UnixNano(),
		Claimed:  e.Claimed,
	}
}

func (rec *entryRecord) entry() (archive.Entry, error) {
	winner, err := toAddress(rec.Winner)
	if err != nil {
		return archive.Entry{}, err
	}
	return archive.Entry{
		Round:    rec.Round,
		Winner:   winner,
		Prize:    lotto.Amount(rec.Prize),
		DrawTime: toTime(rec.DrawTime),
		Claimed:  rec.Claimed,
	}, nil
}
