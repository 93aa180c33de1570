package registry

import (
	"fmt"

	"martianoff/simc/internal/types"
)

// ArithmeticWidths are the word sizes that have arithmetic jets.
var ArithmeticWidths = []int{8, 16, 32, 64}

func registerBuiltins(r *JetRegistry) {
	must := func(info JetInfo) {
		if err := r.Register(info); err != nil {
			panic(err)
		}
	}

	must(JetInfo{Name: "verify", Params: []types.Type{types.Bool()}, Target: types.Unit{}})

	for _, n := range ArithmeticWidths {
		w := types.Word(n)
		carry := types.Tuple(types.Bool(), w)
		two := []types.Type{w, w}

		must(JetInfo{Name: fmt.Sprintf("eq_%d", n), Params: two, Target: types.Bool()})
		must(JetInfo{Name: fmt.Sprintf("lt_%d", n), Params: two, Target: types.Bool()})
		must(JetInfo{Name: fmt.Sprintf("add_%d", n), Params: two, Target: carry})
		must(JetInfo{Name: fmt.Sprintf("subtract_%d", n), Params: two, Target: carry})
		must(JetInfo{Name: fmt.Sprintf("multiply_%d", n), Params: two, Target: types.Word(2 * n)})
		must(JetInfo{Name: fmt.Sprintf("complement_%d", n), Params: []types.Type{w}, Target: w})
		must(JetInfo{Name: fmt.Sprintf("is_zero_%d", n), Params: []types.Type{w}, Target: types.Bool()})
	}
}
