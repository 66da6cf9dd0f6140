// Package census builds the Merkle commitment over the public keys of the
// voters of an election. The tree has no cap: its root is a single Digest
// and every path has exactly Height siblings. Leaves are the public keys
// themselves, inner nodes are poseidon.Compress(left, right).
package census

import (
	"errors"
	"fmt"
	"math/bits"

	"github.com/aragonzkresearch/rovote/crypto"
	"github.com/aragonzkresearch/rovote/crypto/hash/poseidon"
	"github.com/aragonzkresearch/rovote/types"
)

var (
	// ErrInvalidCensusSize is returned when building a tree from an empty
	// list of keys or from a list whose length is not a power of two.
	ErrInvalidCensusSize = errors.New("census size must be a non-zero power of two")
	// ErrIndexOutOfRange is returned when asking for a leaf index outside
	// of the tree.
	ErrIndexOutOfRange = errors.New("census index out of range")
	// ErrInvalidLeaf is returned when a public key has an element outside of
	// the scalar field.
	ErrInvalidLeaf = errors.New("census leaf is not a valid field element")
)

// Tree is an immutable census Merkle tree. It is safe for concurrent use.
type Tree struct {
	// layers[0] holds the leaves and layers[Height()] holds the root.
	layers [][]types.Digest
	index  map[string]int
}

// Build commits to the ordered list of public keys. The position of each key
// is the voter index used when proving membership.
func Build(publicKeys []types.Digest) (*Tree, error) {
	if _, err := HeightFor(len(publicKeys)); err != nil {
		return nil, err
	}
	leaves := make([]types.Digest, len(publicKeys))
	index := make(map[string]int, len(publicKeys))
	for i, pk := range publicKeys {
		for _, e := range pk.BigInts() {
			if !crypto.InField(e) {
				return nil, fmt.Errorf("%w: key %d", ErrInvalidLeaf, i)
			}
		}
		leaves[i] = types.NewDigest(pk.BigInts()...)
		// the first occurrence wins when a key is repeated
		if _, ok := index[string(pk.Bytes())]; !ok {
			index[string(pk.Bytes())] = i
		}
	}
	layers := [][]types.Digest{leaves}
	for level := leaves; len(level) > 1; {
		next := make([]types.Digest, len(level)/2)
		for i := range next {
			node, err := poseidon.Compress(level[2*i], level[2*i+1])
			if err != nil {
				return nil, fmt.Errorf("hashing census node: %w", err)
			}
			next[i] = node
		}
		layers = append(layers, next)
		level = next
	}
	return &Tree{layers: layers, index: index}, nil
}

// Root returns the census commitment.
func (t *Tree) Root() types.Digest {
	return t.layers[len(t.layers)-1][0]
}

// Height returns log2 of the number of leaves.
func (t *Tree) Height() int {
	return len(t.layers) - 1
}

// Size returns the number of leaves.
func (t *Tree) Size() int {
	return len(t.layers[0])
}

// Leaves returns a copy of the ordered public keys.
func (t *Tree) Leaves() []types.Digest {
	return append([]types.Digest(nil), t.layers[0]...)
}

// Leaf returns the public key at the given index.
func (t *Tree) Leaf(index int) (types.Digest, error) {
	if err := t.checkIndex(index); err != nil {
		return types.Digest{}, err
	}
	return t.layers[0][index], nil
}

// IndexOf returns the index of the first leaf equal to pk.
func (t *Tree) IndexOf(pk types.Digest) (int, bool) {
	i, ok := t.index[string(pk.Bytes())]
	return i, ok
}

// PathFor returns the siblings of the leaf at index, from the leaf level up
// to the children of the root.
func (t *Tree) PathFor(index int) ([]types.Digest, error) {
	if err := t.checkIndex(index); err != nil {
		return nil, err
	}
	siblings := make([]types.Digest, t.Height())
	for level := range siblings {
		siblings[level] = t.layers[level][index^1]
		index >>= 1
	}
	return siblings, nil
}

func (t *Tree) checkIndex(index int) error {
	if index < 0 || index >= t.Size() {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, index, t.Size())
	}
	return nil
}

// IndexBits decomposes index into height bits, least significant first.
// Bit i is 1 when the node at level i is a right child.
func IndexBits(index, height int) []uint {
	out := make([]uint, height)
	for i := range out {
		out[i] = uint(index>>i) & 1
	}
	return out
}

// HeightFor returns log2(size) when size is a valid census size.
func HeightFor(size int) (int, error) {
	if size <= 0 || size&(size-1) != 0 {
		return 0, fmt.Errorf("%w: got %d keys", ErrInvalidCensusSize, size)
	}
	return bits.TrailingZeros(uint(size)), nil
}

// VerifyPath recomputes the root from a leaf, its index and its siblings.
func VerifyPath(root, leaf types.Digest, index int, siblings []types.Digest) (bool, error) {
	if index < 0 || index >= 1<<len(siblings) {
		return false, fmt.Errorf("%w: %d for height %d", ErrIndexOutOfRange, index, len(siblings))
	}
	node := leaf
	for level, bit := range IndexBits(index, len(siblings)) {
		left, right := node, siblings[level]
		if bit == 1 {
			left, right = right, left
		}
		var err error
		if node, err = poseidon.Compress(left, right); err != nil {
			return false, err
		}
	}
	return node.Equal(root), nil
}
