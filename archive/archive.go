// Package archive keeps the append-only history of settled rounds. Entries
// are immutable except for their claim flag, which flips at most once.
package archive

import (
	"time"

	"github.com/DE-labtory/lotto"
	"github.com/DE-labtory/lotto/archive/merkletree"
	"github.com/pkg/errors"
)

type Entry struct {
	Round    uint64
	Winner   lotto.Address
	Prize    lotto.Amount
	DrawTime time.Time
	Claimed  bool
}

func (e Entry) leaf() merkletree.Leaf {
	return merkletree.NewLeaf(e.Round, e.Winner, e.Prize, e.DrawTime.UnixNano())
}

// Proof lets a reader check an entry against Archive.Root without the rest
// of the history.
type Proof struct {
	Index int
	Path  merkletree.RootPath
	Sides []int64
}

// Verify reports whether entry sits at p.Index under root.
func (p Proof) Verify(entry Entry, root merkletree.RootHash) bool {
	if merkletree.OrderOfData(p.Sides) != p.Index {
		return false
	}
	return merkletree.ValidatePath(entry.leaf(), root, p.Path, p.Sides)
}

type Archive struct {
	entries []Entry
}

func New() *Archive {
	return &Archive{
		entries: make([]Entry, 0),
	}
}

// Record appends a settled round and returns its index.
func (a *Archive) Record(round uint64, winner lotto.Address, prize lotto.Amount, drawTime time.Time) int {
	a.entries = append(a.entries, Entry{
		Round:    round,
		Winner:   winner,
		Prize:    prize,
		DrawTime: drawTime,
	})
	return len(a.entries) - 1
}

func (a *Archive) Len() int {
	return len(a.entries)
}

func (a *Archive) Entry(index int) (Entry, error) {
	if index < 0 || index >= len(a.entries) {
		return Entry{}, lotto.ErrRoundNotFound
	}
	return a.entries[index], nil
}

// CheckClaim reports whether caller may claim the entry at index.
func (a *Archive) CheckClaim(caller lotto.Address, index int) (Entry, error) {
	entry, err := a.Entry(index)
	if err != nil {
		return Entry{}, err
	}
	if entry.Winner != caller {
		return Entry{}, lotto.ErrNotWinnerOfRound
	}
	if entry.Claimed {
		return Entry{}, lotto.ErrAlreadyClaimed
	}
	return entry, nil
}

// Claim flips the claim flag of the entry at index and returns its prize.
func (a *Archive) Claim(caller lotto.Address, index int) (lotto.Amount, error) {
	entry, err := a.CheckClaim(caller, index)
	if err != nil {
		return 0, err
	}
	a.entries[index].Claimed = true
	return entry.Prize, nil
}

// Unclaimed sums the prizes still owed, excluding the entry at skip.
// Pass -1 to sum every entry.
func (a *Archive) Unclaimed(skip int) (lotto.Amount, error) {
	var total lotto.Amount
	for i, e := range a.entries {
		if e.Claimed || i == skip {
			continue
		}
		next, err := total.Add(e.Prize)
		if err != nil {
			return 0, err
		}
		total = next
	}
	return total, nil
}

func (a *Archive) tree() (*merkletree.Tree, error) {
	leaves := make([]merkletree.Leaf, 0, len(a.entries))
	for _, e := range a.entries {
		leaves = append(leaves, e.leaf())
	}
	return merkletree.New(leaves)
}

// Root commits to the immutable fields of every entry. It is nil while the
// archive is empty.
func (a *Archive) Root() (merkletree.RootHash, error) {
	if len(a.entries) == 0 {
		return nil, nil
	}
	t, err := a.tree()
	if err != nil {
		return nil, errors.Wrap(err, "build archive tree")
	}
	return t.Root(), nil
}

func (a *Archive) Proof(index int) (Proof, error) {
	entry, err := a.Entry(index)
	if err != nil {
		return Proof{}, err
	}
	t, err := a.tree()
	if err != nil {
		return Proof{}, errors.Wrap(err, "build archive tree")
	}
	path, sides, err := t.Path(entry.leaf())
	if err != nil {
		return Proof{}, errors.Wrapf(err, "merkle path of round %d", index)
	}
	return Proof{
		Index: index,
		Path:  path,
		Sides: sides,
	}, nil
}

func (a *Archive) Snapshot() []Entry {
	entries := make([]Entry, len(a.entries))
	copy(entries, a.entries)
	return entries
}

// Restore replaces the history. It refuses to forget entries or rewrite
// their immutable fields, and a claimed entry stays claimed.
func (a *Archive) Restore(entries []Entry) error {
	if len(entries) < len(a.entries) {
		return errors.Errorf("archive restore would drop %d entries", len(a.entries)-len(entries))
	}
	for i, old := range a.entries {
		e := entries[i]
		if e.Round != old.Round || e.Winner != old.Winner || e.Prize != old.Prize || !e.DrawTime.Equal(old.DrawTime) {
			return errors.Errorf("archive restore rewrites round %d", i)
		}
		if old.Claimed && !e.Claimed {
			return errors.Errorf("archive restore unclaims round %d", i)
		}
	}
	a.entries = make([]Entry, len(entries))
	copy(a.entries, entries)
	return nil
}

// Rollback puts back a snapshot taken before a failed operation. Unlike
// Restore it may drop the entry that operation appended.
func (a *Archive) Rollback(snap []Entry) {
	a.entries = make([]Entry, len(snap))
	copy(a.entries, snap)
}
