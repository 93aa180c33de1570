package witness

import (
	"encoding/json"
	"math/big"
	"testing"

	"martianoff/simc/internal/combinator"
	"martianoff/simc/internal/compiler/registry"
	"martianoff/simc/internal/types"
	"martianoff/simc/simerr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	u8   = types.Word(8)
	u64  = types.Word(64)
	unit = types.Unit{}
)

func TestParseJSON(t *testing.T) {
	obj, err := ParseJSON([]byte(`{"A": 1, "B": [true, null], "C": {"Left": "0x10"}}`))
	require.NoError(t, err)
	assert.Equal(t, json.Number("1"), obj["A"])
	assert.Equal(t, []any{true, nil}, obj["B"])
	assert.Equal(t, map[string]any{"Left": "0x10"}, obj["C"])

	tests := []struct {
		name  string
		input string
	}{
		{"Not JSON", "not json"},
		{"Duplicate key", `{"A": 1, "A": 2}`},
		{"Nested duplicate key", `{"A": {"Left": 1, "Left": 2}}`},
		{"Array at top level", `[1, 2]`},
		{"Trailing data", `{"A": 1} {}`},
		{"Truncated", `{"A": `},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseJSON([]byte(tt.input))
			assert.Error(t, err)
		})
	}
}

func TestFromJSON(t *testing.T) {
	max256, _ := new(big.Int).SetString("ff", 16)
	tests := []struct {
		name    string
		json    string
		typ     types.Type
		want    types.Value
		wantErr bool
	}{
		{name: "Unit", json: `null`, typ: unit, want: types.UnitValue{}},
		{name: "Word", json: `42`, typ: u8, want: types.MustWord(8, 42)},
		{name: "Word from decimal string", json: `"42"`, typ: u8, want: types.MustWord(8, 42)},
		{name: "Word from hex string", json: `"0x2a"`, typ: u8, want: types.MustWord(8, 42)},
		{name: "Wide word", json: `"0xff"`, typ: types.Word(256), want: &types.WordValue{Bits: 256, Int: max256}},
		{name: "Word overflow", json: `256`, typ: u8, wantErr: true},
		{name: "Negative word", json: `-1`, typ: u8, wantErr: true},
		{name: "Fractional word", json: `1.5`, typ: u8, wantErr: true},
		{name: "Bool", json: `true`, typ: types.Bool(), want: types.True()},
		{name: "Bool as sum", json: `{"Left": null}`, typ: types.Bool(), want: types.False()},
		{name: "Either", json: `{"Right": 7}`, typ: &types.Sum{Left: types.Bool(), Right: u8}, want: &types.RightValue{Inner: types.MustWord(8, 7)}},
		{name: "Either with two keys", json: `{"Left": 1, "Right": 2}`, typ: &types.Sum{Left: u8, Right: u8}, wantErr: true},
		{name: "None as null", json: `null`, typ: types.Option(u8), want: &types.LeftValue{Inner: types.UnitValue{}}},
		{name: "Some", json: `{"Right": 3}`, typ: types.Option(u8), want: &types.RightValue{Inner: types.MustWord(8, 3)}},
		{
			name: "Flat product",
			json: `[1, true, null]`,
			typ:  types.Tuple(u8, types.Bool(), unit),
			want: types.TupleValue(types.MustWord(8, 1), types.True(), types.UnitValue{}),
		},
		{
			name: "Nested product",
			json: `[1, [true, null]]`,
			typ:  types.Tuple(u8, types.Bool(), unit),
			want: types.TupleValue(types.MustWord(8, 1), types.True(), types.UnitValue{}),
		},
		{name: "Product too long", json: `[1, 2, 3]`, typ: types.Tuple(u8, u8), wantErr: true},
		{name: "Product too short", json: `[1]`, typ: types.Tuple(u8, u8), wantErr: true},
		{name: "String for bool", json: `"true"`, typ: types.Bool(), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj, err := ParseJSON([]byte(`{"x": ` + tt.json + `}`))
			require.NoError(t, err)
			got, err := FromJSON(obj["x"], tt.typ)
			if tt.wantErr {
				require.Error(t, err)
				var m *MismatchError
				assert.ErrorAs(t, err, &m)
				return
			}
			require.NoError(t, err)
			assert.True(t, types.EqualValues(tt.want, got), "want %s, got %s", tt.want, got)
		})
	}
}

func TestCanonicalJSONRoundTrip(t *testing.T) {
	typ := types.Tuple(u64, types.Option(types.Word(128)), types.Bool(), &types.Sum{Left: u8, Right: unit})
	wide, _ := new(big.Int).SetString("123456789abcdef0123456789", 16)
	w128, err := types.NewWord(128, wide)
	require.NoError(t, err)
	v := types.TupleValue(
		types.MustWord(64, 18446744073709551615),
		&types.RightValue{Inner: w128},
		types.False(),
		&types.LeftValue{Inner: types.MustWord(8, 9)},
	)

	first, err := json.Marshal(map[string]any{"W": ToJSON(v, typ)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"W": [18446744073709551615, {"Right": "0x123456789abcdef0123456789"}, false, {"Left": 9}]}`, string(first))

	obj, err := ParseJSON(first)
	require.NoError(t, err)
	back, err := FromJSON(obj["W"], typ)
	require.NoError(t, err)
	assert.True(t, types.EqualValues(v, back))

	second, err := json.Marshal(map[string]any{"W": ToJSON(back, typ)})
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

// valueProgram is witness VALUE : () -> u64 paired with a use of it.
func valueProgram() *combinator.Node {
	w := combinator.NewWitness("VALUE", unit, u64)
	return combinator.NewPair(w, combinator.NewComp(w, combinator.NewUnit(u64)))
}

func TestBindJSON(t *testing.T) {
	b := NewBinder(registry.Default())
	root := valueProgram()

	obj, err := ParseJSON([]byte(`{"VALUE": 42}`))
	require.NoError(t, err)
	bound, err := b.BindJSON(root, obj)
	require.NoError(t, err)

	assert.Empty(t, combinator.Witnesses(bound.Root))
	assert.Equal(t, map[string]any{"VALUE": json.Number("42")}, bound.Data())
	require.NoError(t, combinator.Validate(bound.Root, registry.Default()))

	// the shared witness becomes one shared const
	assert.Same(t, bound.Root.Left, bound.Root.Right.Left)
	// the input is untouched
	assert.Len(t, combinator.Witnesses(root), 1)
}

func TestBindErrors(t *testing.T) {
	b := NewBinder(registry.Default())
	tests := []struct {
		name  string
		input string
		kind  simerr.BindErrorKind
		slot  string
	}{
		{"Missing", `{"OTHER": 1}`, simerr.KindMissingWitness, "VALUE"},
		{"Unused", `{"VALUE": 1, "EXTRA": 2}`, simerr.KindUnusedWitness, "EXTRA"},
		{"Mismatch", `{"VALUE": true}`, simerr.KindTypeMismatch, "VALUE"},
		{"Overflow", `{"VALUE": "0x10000000000000000"}`, simerr.KindTypeMismatch, "VALUE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj, err := ParseJSON([]byte(tt.input))
			require.NoError(t, err)
			_, err = b.BindJSON(valueProgram(), obj)
			require.Error(t, err)
			var bindErr *simerr.BindError
			require.ErrorAs(t, err, &bindErr)
			assert.Equal(t, tt.kind, bindErr.Kind)
			assert.Equal(t, tt.slot, bindErr.Name)
			assert.Equal(t, simerr.TypeBind, simerr.TypeOf(err))
		})
	}
}

func TestBindTypedValues(t *testing.T) {
	b := NewBinder(registry.Default())

	bound, err := b.Bind(valueProgram(), Map{"VALUE": types.MustWord(64, 7)})
	require.NoError(t, err)
	assert.Equal(t, "const 7", bound.Root.Left.String())

	_, err = b.Bind(valueProgram(), Map{"VALUE": types.MustWord(8, 7)})
	var bindErr *simerr.BindError
	require.ErrorAs(t, err, &bindErr)
	assert.Equal(t, simerr.KindTypeMismatch, bindErr.Kind)
	assert.Equal(t, "u64", bindErr.Expected)
}

func TestBindMissingValues(t *testing.T) {
	b := NewBinder(registry.Default())
	tests := []struct {
		name  string
		value types.Value
		found string
	}{
		{name: "Nil", value: nil, found: "nothing"},
		{name: "Nil word", value: (*types.WordValue)(nil), found: "nothing"},
		{name: "Nil inside pair", value: &types.PairValue{First: types.MustWord(64, 1)}, found: "(1, %!s(<nil>))"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var bound *Bound
			var err error
			require.NotPanics(t, func() {
				bound, err = b.Bind(valueProgram(), Map{"VALUE": tt.value})
			})
			assert.Nil(t, bound)
			var bindErr *simerr.BindError
			require.ErrorAs(t, err, &bindErr)
			assert.Equal(t, simerr.KindTypeMismatch, bindErr.Kind)
			assert.Equal(t, "VALUE", bindErr.Name)
			assert.Equal(t, "u64", bindErr.Expected)
			assert.Equal(t, tt.found, bindErr.Found)
		})
	}
}

func TestBindClosedProgram(t *testing.T) {
	b := NewBinder(registry.Default())
	root := combinator.NewUnit(unit)
	bound, err := b.Bind(root, Map{})
	require.NoError(t, err)
	assert.Same(t, root, bound.Root)
	assert.Empty(t, bound.Data())
}
