package cmr

import (
	"testing"

	"martianoff/simc/internal/combinator"
	"martianoff/simc/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	// unit : () -> ()
	emptyProgramCMR = "345c2d7e7da821dcf649ed8611b1e6d21cb94b7fd62ed8631196217cebcd9b3f"
	// witness VALUE : () -> u64
	valueWitnessCMR = "715cdc36705ead8037d6de6adacd674a27eeac18a21cfb5c2cd432e461996431"
)

var (
	u8   = types.Word(8)
	unit = types.Unit{}
)

func TestKnownRoots(t *testing.T) {
	assert.Equal(t, emptyProgramCMR, Compute(combinator.NewUnit(unit)).String())
	assert.Equal(t, valueWitnessCMR, Compute(combinator.NewWitness("VALUE", unit, types.Word(64))).String())
}

func TestDeterminism(t *testing.T) {
	build := func() *combinator.Node {
		return combinator.NewComp(
			combinator.NewPair(combinator.NewConst(types.MustWord(8, 3), unit, u8), combinator.NewIden(unit)),
			combinator.NewTake(combinator.NewIden(u8), unit),
		)
	}
	a, b := Compute(build()), Compute(build())
	assert.Equal(t, a, b)
	assert.Len(t, a.String(), 2*Size)
}

func TestSensitivity(t *testing.T) {
	iden := combinator.NewIden(u8)
	nodes := map[string]*combinator.Node{
		"iden u8":        iden,
		"iden u16":       combinator.NewIden(types.Word(16)),
		"unit u8":        combinator.NewUnit(u8),
		"take":           combinator.NewTake(iden, u8),
		"drop":           combinator.NewDrop(u8, iden),
		"pair":           combinator.NewPair(iden, combinator.NewUnit(u8)),
		"pair swapped":   combinator.NewPair(combinator.NewUnit(u8), iden),
		"injl":           combinator.NewInjL(iden, unit),
		"injr":           combinator.NewInjR(unit, iden),
		"witness A":      combinator.NewWitness("A", unit, u8),
		"witness B":      combinator.NewWitness("B", unit, u8),
		"witness A bool": combinator.NewWitness("A", unit, types.Bool()),
		"const 1":        combinator.NewConst(types.MustWord(8, 1), unit, u8),
		"const 2":        combinator.NewConst(types.MustWord(8, 2), unit, u8),
	}

	seen := make(map[CMR]string)
	for name, n := range nodes {
		c := Compute(n)
		if other, ok := seen[c]; ok {
			t.Fatalf("%s and %s share root %s", name, other, c)
		}
		seen[c] = name
	}
}

func TestSharedSubtreesMatchCopies(t *testing.T) {
	shared := combinator.NewIden(u8)
	dag := combinator.NewPair(shared, shared)
	tree := combinator.NewPair(combinator.NewIden(u8), combinator.NewIden(u8))
	assert.Equal(t, Compute(tree), Compute(dag))

	h := NewHasher()
	h.Sum(dag)
	assert.Len(t, h.memo, 2)
}

func TestSeedsAreDistinct(t *testing.T) {
	seen := make(map[[Size]byte]combinator.Kind)
	for k := combinator.Iden; k <= combinator.Jet; k++ {
		s := Seed(k)
		_, dup := seen[s]
		assert.False(t, dup, k.String())
		seen[s] = k
	}
}

func TestParse(t *testing.T) {
	c, err := Parse(emptyProgramCMR)
	require.NoError(t, err)
	assert.Equal(t, emptyProgramCMR, c.String())

	_, err = Parse("zz")
	assert.Error(t, err)
	_, err = Parse("abcd")
	assert.Error(t, err)
}
