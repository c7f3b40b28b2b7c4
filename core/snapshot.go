package core

import (
	"github.com/DE-labtory/lotto"
	"github.com/DE-labtory/lotto/archive"
	"github.com/DE-labtory/lotto/round"
	"github.com/DE-labtory/lotto/ticket"
)

// Snapshot is the whole ledger state at an operation boundary.
type Snapshot struct {
	Round   round.Snapshot
	Tickets ticket.Snapshot
	// Pending is the outstanding draw request, nil unless the round is
	// waiting for the oracle.
	Pending *lotto.DrawRequest
	Archive []archive.Entry
}

// Store persists snapshots. Save is called once per committed operation
// and must write the snapshot atomically.
type Store interface {
	Load() (Snapshot, bool, error)
	Save(snap Snapshot) error
}
