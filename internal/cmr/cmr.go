// Package cmr computes commitment Merkle roots of combinator trees.
//
// The root of a node is SHA3-256 over, in order: a seed derived from the
// node's kind, the length-prefixed encodings of its source and target types,
// the length-prefixed payload (witness slot name, jet name or const value) and
// the roots of its children. Witness values never contribute, so binding a
// witness cannot change the root of a program.
package cmr

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/sha3"

	"martianoff/simc/internal/combinator"
	"martianoff/simc/internal/types"
)

// Size is the width of a CMR in bytes.
const Size = 32

// CMR is a commitment Merkle root.
type CMR [Size]byte

// String returns the lowercase hex form.
func (c CMR) String() string {
	return hex.EncodeToString(c[:])
}

// Parse reads the hex form of a CMR.
func Parse(s string) (CMR, error) {
	var c CMR
	b, err := hex.DecodeString(s)
	if err != nil {
		return c, fmt.Errorf("invalid cmr: %w", err)
	}
	if len(b) != Size {
		return c, fmt.Errorf("invalid cmr: want %d bytes, got %d", Size, len(b))
	}
	copy(c[:], b)
	return c, nil
}

var seeds = func() map[combinator.Kind][Size]byte {
	m := make(map[combinator.Kind][Size]byte)
	for k := combinator.Iden; k <= combinator.Jet; k++ {
		m[k] = sha3.Sum256([]byte("simc/cmr/" + k.String()))
	}
	return m
}()

// Seed returns the initial hash input for nodes of kind k.
func Seed(k combinator.Kind) [Size]byte {
	return seeds[k]
}

// Hasher computes roots and remembers the root of every node it has seen, so
// shared subtrees are hashed once. A Hasher is not safe for concurrent use.
type Hasher struct {
	memo map[*combinator.Node]CMR
}

// NewHasher creates an empty Hasher.
func NewHasher() *Hasher {
	return &Hasher{memo: make(map[*combinator.Node]CMR)}
}

// Compute returns the root of the tree at root.
func Compute(root *combinator.Node) CMR {
	return NewHasher().Sum(root)
}

// Sum returns the root of n.
func (h *Hasher) Sum(n *combinator.Node) CMR {
	if c, ok := h.memo[n]; ok {
		return c
	}

	children := make([]CMR, 0, 2)
	for _, child := range n.Children() {
		children = append(children, h.Sum(child))
	}

	d := sha3.New256()
	seed := Seed(n.Kind)
	d.Write(seed[:])
	d.Write(lengthPrefixed(types.AppendTag(nil, n.Source)))
	d.Write(lengthPrefixed(types.AppendTag(nil, n.Target)))
	switch n.Kind {
	case combinator.Witness, combinator.Jet:
		d.Write(lengthPrefixed([]byte(n.Name)))
	case combinator.Const:
		d.Write(lengthPrefixed(types.AppendValue(nil, n.Value, n.Target)))
	}
	for _, c := range children {
		d.Write(c[:])
	}

	var c CMR
	d.Sum(c[:0])
	h.memo[n] = c
	return c
}

func lengthPrefixed(b []byte) []byte {
	out := binary.AppendUvarint(make([]byte, 0, len(b)+binary.MaxVarintLen64), uint64(len(b)))
	return append(out, b...)
}
