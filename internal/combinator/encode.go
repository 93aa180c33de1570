package combinator

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"martianoff/simc/internal/compiler/registry"
	"martianoff/simc/internal/types"
)

var magic = []byte("SIMC\x01")

// Encode serializes the DAG rooted at root. The output holds a table of the
// distinct types followed by the distinct nodes in post-order; children are
// referenced by their distance back in the node table. The root is the last
// node.
func Encode(root *Node) []byte {
	var (
		nodes    []*Node
		typeIdx  = make(map[string]int)
		typeList [][]byte
	)
	internType := func(t types.Type) {
		tag := types.AppendTag(nil, t)
		if _, ok := typeIdx[string(tag)]; !ok {
			typeIdx[string(tag)] = len(typeList)
			typeList = append(typeList, tag)
		}
	}
	PostOrder(root, func(n *Node) {
		nodes = append(nodes, n)
		internType(n.Source)
		internType(n.Target)
	})
	typeOf := func(t types.Type) uint64 {
		return uint64(typeIdx[string(types.AppendTag(nil, t))])
	}

	b := append([]byte(nil), magic...)
	b = binary.AppendUvarint(b, uint64(len(typeList)))
	for _, tag := range typeList {
		b = append(b, tag...)
	}

	index := make(map[*Node]int, len(nodes))
	b = binary.AppendUvarint(b, uint64(len(nodes)))
	for i, n := range nodes {
		index[n] = i
		b = append(b, byte(n.Kind))
		b = binary.AppendUvarint(b, typeOf(n.Source))
		b = binary.AppendUvarint(b, typeOf(n.Target))
		for _, c := range n.Children() {
			b = binary.AppendUvarint(b, uint64(i-index[c]))
		}
		switch n.Kind {
		case Witness, Jet:
			b = binary.AppendUvarint(b, uint64(len(n.Name)))
			b = append(b, n.Name...)
		case Const:
			b = types.AppendValue(b, n.Value, n.Target)
		}
	}
	return b
}

// ErrBadProgram is wrapped by every Decode error.
var ErrBadProgram = errors.New("malformed program")

type decoder struct {
	b []byte
}

func (d *decoder) uvarint() (uint64, error) {
	v, k := binary.Uvarint(d.b)
	if k <= 0 {
		return 0, fmt.Errorf("%w: truncated integer", ErrBadProgram)
	}
	d.b = d.b[k:]
	return v, nil
}

// Decode restores a tree written by Encode and validates it against jets.
func Decode(data []byte, jets *registry.JetRegistry) (*Node, error) {
	if !bytes.HasPrefix(data, magic) {
		return nil, fmt.Errorf("%w: bad header", ErrBadProgram)
	}
	d := &decoder{b: data[len(magic):]}

	ntypes, err := d.uvarint()
	if err != nil {
		return nil, err
	}
	if ntypes > uint64(len(d.b)) {
		return nil, fmt.Errorf("%w: too many types", ErrBadProgram)
	}
	typeList := make([]types.Type, ntypes)
	for i := range typeList {
		t, rest, err := types.ReadTag(d.b)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadProgram, err)
		}
		typeList[i] = t
		d.b = rest
	}
	typeAt := func() (types.Type, error) {
		i, err := d.uvarint()
		if err != nil {
			return nil, err
		}
		if i >= uint64(len(typeList)) {
			return nil, fmt.Errorf("%w: type index %d out of range", ErrBadProgram, i)
		}
		return typeList[i], nil
	}

	nnodes, err := d.uvarint()
	if err != nil {
		return nil, err
	}
	if nnodes == 0 || nnodes > uint64(len(d.b)) {
		return nil, fmt.Errorf("%w: bad node count", ErrBadProgram)
	}
	nodes := make([]*Node, 0, nnodes)
	for i := 0; i < int(nnodes); i++ {
		if len(d.b) == 0 {
			return nil, fmt.Errorf("%w: truncated node table", ErrBadProgram)
		}
		n := &Node{Kind: Kind(d.b[0])}
		d.b = d.b[1:]
		if int(n.Kind) >= len(kindNames) {
			return nil, fmt.Errorf("%w: unknown kind %d", ErrBadProgram, n.Kind)
		}
		if n.Source, err = typeAt(); err != nil {
			return nil, err
		}
		if n.Target, err = typeAt(); err != nil {
			return nil, err
		}
		children := make([]*Node, n.Kind.Arity())
		for j := range children {
			back, err := d.uvarint()
			if err != nil {
				return nil, err
			}
			if back == 0 || back > uint64(i) {
				return nil, fmt.Errorf("%w: bad child reference", ErrBadProgram)
			}
			children[j] = nodes[i-int(back)]
		}
		if len(children) > 0 {
			n.Left = children[0]
		}
		if len(children) > 1 {
			n.Right = children[1]
		}
		switch n.Kind {
		case Witness, Jet:
			l, err := d.uvarint()
			if err != nil {
				return nil, err
			}
			if l > uint64(len(d.b)) {
				return nil, fmt.Errorf("%w: truncated name", ErrBadProgram)
			}
			n.Name = string(d.b[:l])
			d.b = d.b[l:]
		case Const:
			v, rest, err := types.ReadValue(d.b, n.Target)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrBadProgram, err)
			}
			n.Value = v
			d.b = rest
		}
		nodes = append(nodes, n)
	}
	if len(d.b) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrBadProgram, len(d.b))
	}

	root := nodes[len(nodes)-1]
	if err := Validate(root, jets); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadProgram, err)
	}
	return root, nil
}
