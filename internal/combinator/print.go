package combinator

import (
	"fmt"
	"io"
	"strings"

	"martianoff/simc/internal/types"
)

// Fprint writes the tree as a numbered node list, children first. Shared
// subtrees are printed once and referenced by number.
//
//	%0 = unit : () -> ()
//	%1 = injr %0 : () -> bool
func Fprint(w io.Writer, root *Node) error {
	ids := make(map[*Node]int)
	var err error
	PostOrder(root, func(n *Node) {
		if err != nil {
			return
		}
		id := len(ids)
		ids[n] = id

		var sb strings.Builder
		fmt.Fprintf(&sb, "%%%d = %s", id, n.Kind)
		for _, c := range n.Children() {
			fmt.Fprintf(&sb, " %%%d", ids[c])
		}
		switch n.Kind {
		case Witness, Jet:
			fmt.Fprintf(&sb, " %s", n.Name)
		case Const:
			fmt.Fprintf(&sb, " %s", n.Value)
		}
		fmt.Fprintf(&sb, " : %s -> %s\n", types.Format(n.Source), types.Format(n.Target))
		_, err = io.WriteString(w, sb.String())
	})
	return err
}

// Sprint returns the Fprint rendering of root.
func Sprint(root *Node) string {
	var sb strings.Builder
	_ = Fprint(&sb, root)
	return sb.String()
}
