package frame

import (
	"math"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

// Aggregator reduces the values of one group to a single value.
type Aggregator func(vals []float64) float64

// Mean averages the non-NaN values; NaN when none are present.
func Mean(vals []float64) float64 {
	var sum float64
	n := 0
	for _, v := range vals {
		if !math.IsNaN(v) {
			sum += v
			n++
		}
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

// Sum adds the non-NaN values; 0 when none are present.
func Sum(vals []float64) float64 {
	var sum float64
	for _, v := range vals {
		if !math.IsNaN(v) {
			sum += v
		}
	}
	return sum
}

// KeyFunc normalises a join or group key.
type KeyFunc func(string) string

// Exact is the identity KeyFunc.
func Exact(s string) string { return s }

const keySep = "\x1f"

func (f *Frame) keyColumns(keys []string) ([][]string, error) {
	out := make([][]string, len(keys))
	for i, k := range keys {
		vals := f.String(k)
		if vals == nil {
			return nil, eris.Errorf("frame: key column %q not found", k)
		}
		out[i] = vals
	}
	return out, nil
}

func tupleKey(cols [][]string, row int, norm KeyFunc) string {
	parts := make([]string, len(cols))
	for j, c := range cols {
		parts[j] = norm(c[row])
	}
	return strings.Join(parts, keySep)
}

// GroupBy groups rows by the key columns and reduces each listed numeric
// column with agg. Groups are returned sorted by key. Rows with an empty key
// form their own group when keepEmpty is set and are dropped otherwise.
// Listed columns that are absent or non-numeric are skipped.
func (f *Frame) GroupBy(keys, cols []string, agg Aggregator, keepEmpty bool) (*Frame, error) {
	keyCols, err := f.keyColumns(keys)
	if err != nil {
		return nil, err
	}

	groups := make(map[string][]int)
	first := make(map[string]int)
	for i := 0; i < f.rows; i++ {
		empty := false
		for _, c := range keyCols {
			if c[i] == "" {
				empty = true
				break
			}
		}
		if empty && !keepEmpty {
			continue
		}
		k := tupleKey(keyCols, i, Exact)
		if _, ok := groups[k]; !ok {
			first[k] = i
		}
		groups[k] = append(groups[k], i)
	}

	order := make([]string, 0, len(groups))
	for k := range groups {
		order = append(order, k)
	}
	sort.Strings(order)

	out := New()
	for j, name := range keys {
		vals := make([]string, len(order))
		for g, k := range order {
			vals[g] = keyCols[j][first[k]]
		}
		if err := out.AddString(name, vals); err != nil {
			return nil, err
		}
	}

	for _, name := range cols {
		src := f.Float(name)
		if src == nil {
			continue
		}
		vals := make([]float64, len(order))
		buf := make([]float64, 0, 16)
		for g, k := range order {
			buf = buf[:0]
			for _, r := range groups[k] {
				buf = append(buf, src[r])
			}
			vals[g] = agg(buf)
		}
		if err := out.AddFloat(name, vals); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// GroupMean groups by keys and averages cols, dropping empty keys.
func (f *Frame) GroupMean(keys, cols []string) (*Frame, error) {
	return f.GroupBy(keys, cols, Mean, false)
}

// GroupSum groups by keys and sums cols, dropping empty keys.
func (f *Frame) GroupSum(keys, cols []string) (*Frame, error) {
	return f.GroupBy(keys, cols, Sum, false)
}

// LeftJoin keeps every row of f and appends the columns of right, matched on
// leftKeys/rightKeys after normalising both sides with norm. The right key
// columns are not copied. Unmatched rows get NaN or "". When right has
// several rows for one key, the first is used. A right column whose name
// already exists in f is suffixed with "_right".
func (f *Frame) LeftJoin(right *Frame, leftKeys, rightKeys []string, norm KeyFunc) (*Frame, error) {
	if len(leftKeys) != len(rightKeys) || len(leftKeys) == 0 {
		return nil, eris.New("frame: join key lists must be non-empty and equal length")
	}
	if norm == nil {
		norm = Exact
	}
	lk, err := f.keyColumns(leftKeys)
	if err != nil {
		return nil, eris.Wrap(err, "frame: left join")
	}
	rk, err := right.keyColumns(rightKeys)
	if err != nil {
		return nil, eris.Wrap(err, "frame: left join")
	}

	lookup := make(map[string]int, right.rows)
	for i := 0; i < right.rows; i++ {
		k := tupleKey(rk, i, norm)
		if _, ok := lookup[k]; !ok {
			lookup[k] = i
		}
	}

	match := make([]int, f.rows)
	for i := range match {
		if r, ok := lookup[tupleKey(lk, i, norm)]; ok {
			match[i] = r
		} else {
			match[i] = -1
		}
	}

	out := f.Clone()
	skip := make(map[string]bool, len(rightKeys))
	for _, k := range rightKeys {
		skip[k] = true
	}
	for _, c := range right.cols {
		if skip[c.Name] {
			continue
		}
		name := c.Name
		if out.Has(name) {
			name += "_right"
		}
		if c.Numeric() {
			vals := make([]float64, f.rows)
			for i, r := range match {
				if r < 0 {
					vals[i] = math.NaN()
				} else {
					vals[i] = c.Floats[r]
				}
			}
			err = out.AddFloat(name, vals)
		} else {
			vals := make([]string, f.rows)
			for i, r := range match {
				if r >= 0 {
					vals[i] = c.Strings[r]
				}
			}
			err = out.AddString(name, vals)
		}
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
