// Package merkletree commits to the settled round history so a single root
// can vouch for every past round.
package merkletree

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"math"

	"github.com/DE-labtory/lotto"
	"github.com/cbergoon/merkletree"
)

type RootPath [][]byte
type RootHash []byte

type Tree struct {
	tree merkletree.MerkleTree
}

func (t *Tree) Root() RootHash {
	return t.tree.MerkleRoot()
}

func (t *Tree) Path(leaf Leaf) (RootPath, []int64, error) {
	return t.tree.GetMerklePath(leaf)
}

func New(leaves []Leaf) (*Tree, error) {
	var contents []merkletree.Content

	for _, leaf := range leaves {
		contents = append(contents, leaf)
	}

	t, err := merkletree.NewTree(contents)
	if err != nil {
		return nil, err
	}

	return &Tree{*t}, nil
}

// Leaf is the byte encoding of the immutable fields of a past round:
// round number, winner, prize and draw time. The claim flag is left out so
// the root never changes after a round is settled.
type Leaf []byte

func NewLeaf(round uint64, winner lotto.Address, prize lotto.Amount, drawTime int64) Leaf {
	b := make([]byte, 8+lotto.AddressLength+8+8)
	binary.BigEndian.PutUint64(b[0:8], round)
	copy(b[8:8+lotto.AddressLength], winner[:])
	binary.BigEndian.PutUint64(b[8+lotto.AddressLength:], uint64(prize))
	binary.BigEndian.PutUint64(b[16+lotto.AddressLength:], uint64(drawTime))
	return b
}

func (l Leaf) CalculateHash() ([]byte, error) {
	h := sha256.New()
	if _, err := h.Write(l); err != nil {
		return nil, err
	}

	return h.Sum(nil), nil
}

func (l Leaf) Equals(other merkletree.Content) (bool, error) {
	o, ok := other.(Leaf)
	if !ok {
		return false, nil
	}
	return bytes.Equal(l, o), nil
}

// ValidatePath recomputes the root from leaf and its path.
func ValidatePath(leaf Leaf, root RootHash, path RootPath, indexList []int64) bool {
	if len(path) != len(indexList) {
		return false
	}
	node := make(Leaf, 64)
	branch, err := leaf.CalculateHash()
	if err != nil {
		return false
	}

	for i, sibling := range path {
		switch indexList[i] {
		// sibling on the left
		case 0:
			copy(node[:32], sibling)
			copy(node[32:], branch)
		// sibling on the right
		case 1:
			copy(node[:32], branch)
			copy(node[32:], sibling)
		default:
			return false
		}
		if branch, err = node.CalculateHash(); err != nil {
			return false
		}
	}

	return bytes.Equal(root, branch)
}

// OrderOfData returns the leaf position encoded by a path index list.
func OrderOfData(indexList []int64) int {
	order := 0
	for i, idx := range indexList {
		num := int(math.Pow(2, float64(i+1)))
		if idx == 0 {
			order += num / 2
		}
	}

	return order
}
