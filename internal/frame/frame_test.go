package frame

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample(t *testing.T) *Frame {
	t.Helper()
	f := New()
	require.NoError(t, f.AddString("State", []string{"B", "A", "A", "B", ""}))
	require.NoError(t, f.AddString("District", []string{"b1", "a1", "a2", "b2", "x"}))
	require.NoError(t, f.AddFloat("Pop", []float64{10, 20, math.NaN(), 40, 50}))
	require.NoError(t, f.AddFloat("Lit", []float64{1, 2, 3, 4, 5}))
	return f
}

func TestAddColumnLengthMismatch(t *testing.T) {
	f := New()
	require.NoError(t, f.AddFloat("a", []float64{1, 2}))
	err := f.AddFloat("b", []float64{1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has 1 rows, want 2")
}

func TestAddReplacesExistingColumn(t *testing.T) {
	f := sample(t)
	require.NoError(t, f.AddFloat("Lit", []float64{9, 9, 9, 9, 9}))
	assert.Equal(t, []string{"State", "District", "Pop", "Lit"}, f.Columns())
	assert.Equal(t, 9.0, f.Value("Lit", 0))
}

func TestValueAndTextOutOfRange(t *testing.T) {
	f := sample(t)
	assert.True(t, math.IsNaN(f.Value("Missing", 0)))
	assert.True(t, math.IsNaN(f.Value("Pop", 99)))
	assert.Equal(t, "", f.Text("State", -1))
	assert.Equal(t, "A", f.Text("State", 1))
}

func TestCloneIsDeep(t *testing.T) {
	f := sample(t)
	c := f.Clone()
	c.Float("Lit")[0] = 100
	assert.Equal(t, 1.0, f.Value("Lit", 0))
	assert.Equal(t, f.Len(), c.Len())
}

func TestCloneEmptyNumericStaysNumeric(t *testing.T) {
	f := New()
	require.NoError(t, f.AddFloat("x", nil))
	c := f.Clone()
	assert.Equal(t, []string{"x"}, c.NumericColumns())
}

func TestDropNaN(t *testing.T) {
	f := sample(t)

	out := f.DropNaN("Pop", "State")
	assert.Equal(t, 3, out.Len())
	assert.Equal(t, []string{"b1", "a1", "b2"}, out.String("District"))

	// Unknown columns are ignored.
	assert.Equal(t, 5, f.DropNaN("Nope").Len())
}

func TestMedian(t *testing.T) {
	tests := []struct {
		name string
		in   []float64
		want float64
	}{
		{"odd", []float64{3, 1, 2}, 2},
		{"even averages middle", []float64{4, 1, 3, 2}, 2.5},
		{"skips nan", []float64{math.NaN(), 10, 20}, 15},
		{"single", []float64{7}, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Median(tt.in), 1e-12)
		})
	}
	assert.True(t, math.IsNaN(Median([]float64{math.NaN()})))
	assert.True(t, math.IsNaN(Median(nil)))
}

func TestFillNaNWithMedianUsesWholeColumn(t *testing.T) {
	f := New()
	require.NoError(t, f.AddFloat("a", []float64{1, math.NaN(), 3, math.NaN(), 10}))
	require.NoError(t, f.AddFloat("empty", []float64{math.NaN(), math.NaN(), math.NaN(), math.NaN(), math.NaN()}))

	f.FillNaNWithMedian()

	assert.Equal(t, []float64{1, 3, 3, 3, 10}, f.Float("a"))
	assert.True(t, math.IsNaN(f.Value("empty", 0)))
}

func TestMatrix(t *testing.T) {
	f := sample(t)
	m, err := f.Matrix([]string{"Lit", "Pop"})
	require.NoError(t, err)
	require.Len(t, m, 5)
	assert.Equal(t, []float64{1, 10}, m[0])

	_, err = f.Matrix([]string{"State"})
	assert.Error(t, err)
}

func TestRenameAndDrop(t *testing.T) {
	f := sample(t)
	f.Rename(map[string]string{"Pop": "Population", "Nope": "X"})
	assert.True(t, f.Has("Population"))
	assert.False(t, f.Has("Pop"))

	f.Drop("Population", "Nope")
	assert.Equal(t, []string{"State", "District", "Lit"}, f.Columns())
	assert.Equal(t, 5, f.Len())
}

func TestLookupAndUnique(t *testing.T) {
	f := sample(t)
	assert.Equal(t, 2, f.Lookup("District", "a2"))
	assert.Equal(t, -1, f.Lookup("District", "zz"))
	assert.Equal(t, []string{"B", "A", ""}, f.Unique("State"))
}

func TestGroupMeanSortedAndSkipsEmptyKeys(t *testing.T) {
	f := sample(t)

	g, err := f.GroupMean([]string{"State"}, []string{"Pop", "Lit", "Missing"})
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B"}, g.String("State"))
	// A: Pop {20, NaN} -> 20; Lit {2,3} -> 2.5
	assert.Equal(t, []float64{20, 25}, g.Float("Pop"))
	assert.Equal(t, []float64{2.5, 2.5}, g.Float("Lit"))
	assert.False(t, g.Has("Missing"))
}

func TestGroupSum(t *testing.T) {
	f := sample(t)
	g, err := f.GroupSum([]string{"State"}, []string{"Pop"})
	require.NoError(t, err)
	assert.Equal(t, []float64{20, 50}, g.Float("Pop"))
}

func TestGroupByMissingKey(t *testing.T) {
	f := sample(t)
	_, err := f.GroupMean([]string{"Region"}, []string{"Pop"})
	assert.Error(t, err)
}

func TestLeftJoin(t *testing.T) {
	left := New()
	require.NoError(t, left.AddString("S", []string{"A", "A", "B"}))
	require.NoError(t, left.AddString("D", []string{"x", "y", "z"}))
	require.NoError(t, left.AddFloat("v", []float64{1, 2, 3}))

	right := New()
	require.NoError(t, right.AddString("S2", []string{"A", "B", "A"}))
	require.NoError(t, right.AddString("D2", []string{"x", "z", "x"}))
	require.NoError(t, right.AddFloat("h", []float64{10, 30, 99}))
	require.NoError(t, right.AddFloat("v", []float64{7, 8, 9}))

	out, err := left.LeftJoin(right, []string{"S", "D"}, []string{"S2", "D2"}, nil)
	require.NoError(t, err)

	assert.Equal(t, 3, out.Len())
	assert.False(t, out.Has("S2"))
	assert.False(t, out.Has("D2"))
	h := out.Float("h")
	assert.Equal(t, 10.0, h[0]) // first right row wins
	assert.True(t, math.IsNaN(h[1]))
	assert.Equal(t, 30.0, h[2])
	assert.Equal(t, []float64{1, 2, 3}, out.Float("v"))
	assert.Equal(t, 7.0, out.Value("v_right", 0))
}

func TestLeftJoinWithKeyFunc(t *testing.T) {
	left := New()
	require.NoError(t, left.AddString("D", []string{"Pune ", "NASHIK"}))
	right := New()
	require.NoError(t, right.AddString("D", []string{"pune", "nashik"}))
	require.NoError(t, right.AddFloat("h", []float64{1, 2}))

	exact, err := left.LeftJoin(right, []string{"D"}, []string{"D"}, Exact)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(exact.Value("h", 0)))

	fold := func(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
	out, err := left.LeftJoin(right, []string{"D"}, []string{"D"}, fold)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, out.Float("h"))
}

func TestLeftJoinKeyErrors(t *testing.T) {
	left := sample(t)
	_, err := left.LeftJoin(left, []string{"State"}, nil, nil)
	assert.Error(t, err)
	_, err = left.LeftJoin(left, []string{"Nope"}, []string{"State"}, nil)
	assert.Error(t, err)
}

func TestGroupByKeepEmpty(t *testing.T) {
	f := sample(t)
	g, err := f.GroupBy([]string{"State"}, []string{"Pop"}, Sum, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"", "A", "B"}, g.String("State"))
	assert.Equal(t, []float64{50, 20, 50}, g.Float("Pop"))
}
