// Package frame provides a small column-oriented table used for census data.
// Numeric columns hold float64 values with NaN marking missing cells; text
// columns hold strings with "" marking missing cells.
package frame

import (
	"math"
	"sort"

	"github.com/rotisserie/eris"
)

// Column is a named column. Exactly one of Floats or Strings is non-nil.
type Column struct {
	Name    string
	Floats  []float64
	Strings []string
}

// Numeric reports whether the column holds float64 values.
func (c *Column) Numeric() bool { return c.Floats != nil }

func (c *Column) len() int {
	if c.Floats != nil {
		return len(c.Floats)
	}
	return len(c.Strings)
}

func (c *Column) clone() *Column {
	out := &Column{Name: c.Name}
	if c.Floats != nil {
		out.Floats = make([]float64, len(c.Floats))
		copy(out.Floats, c.Floats)
	} else {
		out.Strings = make([]string, len(c.Strings))
		copy(out.Strings, c.Strings)
	}
	return out
}

func (c *Column) take(rows []int) *Column {
	out := &Column{Name: c.Name}
	if c.Floats != nil {
		out.Floats = make([]float64, len(rows))
		for i, r := range rows {
			out.Floats[i] = c.Floats[r]
		}
		return out
	}
	out.Strings = make([]string, len(rows))
	for i, r := range rows {
		out.Strings[i] = c.Strings[r]
	}
	return out
}

// Frame is an ordered set of equal-length columns. A Frame is not safe for
// concurrent mutation; callers treat built frames as read-only.
type Frame struct {
	cols  []*Column
	index map[string]int
	rows  int
}

// New returns an empty frame.
func New() *Frame {
	return &Frame{index: make(map[string]int)}
}

// Len returns the number of rows.
func (f *Frame) Len() int { return f.rows }

// Columns returns the column names in order.
func (f *Frame) Columns() []string {
	names := make([]string, len(f.cols))
	for i, c := range f.cols {
		names[i] = c.Name
	}
	return names
}

// NumericColumns returns the names of the float64 columns in order.
func (f *Frame) NumericColumns() []string {
	var names []string
	for _, c := range f.cols {
		if c.Numeric() {
			names = append(names, c.Name)
		}
	}
	return names
}

// Has reports whether the frame has a column called name.
func (f *Frame) Has(name string) bool {
	_, ok := f.index[name]
	return ok
}

// Column returns the named column, or nil.
func (f *Frame) Column(name string) *Column {
	i, ok := f.index[name]
	if !ok {
		return nil
	}
	return f.cols[i]
}

// Float returns the values of a numeric column, or nil if the column is
// absent or holds text. The returned slice is shared with the frame.
func (f *Frame) Float(name string) []float64 {
	c := f.Column(name)
	if c == nil {
		return nil
	}
	return c.Floats
}

// String returns the values of a text column, or nil.
func (f *Frame) String(name string) []string {
	c := f.Column(name)
	if c == nil {
		return nil
	}
	return c.Strings
}

// Value returns row i of a numeric column, or NaN when the column is absent.
func (f *Frame) Value(name string, i int) float64 {
	vals := f.Float(name)
	if vals == nil || i < 0 || i >= len(vals) {
		return math.NaN()
	}
	return vals[i]
}

// Text returns row i of a text column, or "".
func (f *Frame) Text(name string, i int) string {
	vals := f.String(name)
	if vals == nil || i < 0 || i >= len(vals) {
		return ""
	}
	return vals[i]
}

func (f *Frame) add(c *Column) error {
	n := c.len()
	if len(f.cols) > 0 && n != f.rows {
		return eris.Errorf("frame: column %q has %d rows, want %d", c.Name, n, f.rows)
	}
	if i, ok := f.index[c.Name]; ok {
		f.cols[i] = c
	} else {
		f.index[c.Name] = len(f.cols)
		f.cols = append(f.cols, c)
	}
	f.rows = n
	return nil
}

// AddFloat adds or replaces a numeric column.
func (f *Frame) AddFloat(name string, vals []float64) error {
	if vals == nil {
		vals = []float64{}
	}
	return f.add(&Column{Name: name, Floats: vals})
}

// AddString adds or replaces a text column.
func (f *Frame) AddString(name string, vals []string) error {
	if vals == nil {
		vals = []string{}
	}
	return f.add(&Column{Name: name, Strings: vals})
}

// Drop removes the named columns. Unknown names are ignored.
func (f *Frame) Drop(names ...string) {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	kept := f.cols[:0]
	for _, c := range f.cols {
		if !drop[c.Name] {
			kept = append(kept, c)
		}
	}
	f.cols = kept
	f.reindex()
}

// Rename renames columns according to m. Unknown names are ignored.
func (f *Frame) Rename(m map[string]string) {
	for _, c := range f.cols {
		if to, ok := m[c.Name]; ok && to != "" {
			c.Name = to
		}
	}
	f.reindex()
}

func (f *Frame) reindex() {
	f.index = make(map[string]int, len(f.cols))
	for i, c := range f.cols {
		f.index[c.Name] = i
	}
	if len(f.cols) == 0 {
		f.rows = 0
	}
}

// Clone returns a deep copy.
func (f *Frame) Clone() *Frame {
	out := New()
	for _, c := range f.cols {
		out.cols = append(out.cols, c.clone())
	}
	out.reindex()
	out.rows = f.rows
	return out
}

// Take returns a new frame holding the given rows in the given order.
func (f *Frame) Take(rows []int) *Frame {
	out := New()
	for _, c := range f.cols {
		out.cols = append(out.cols, c.take(rows))
	}
	out.reindex()
	out.rows = len(rows)
	return out
}

// DropNaN returns the rows with a value in every listed column. Numeric cells
// are missing when NaN, text cells when empty. Unknown columns are ignored.
func (f *Frame) DropNaN(cols ...string) *Frame {
	return f.Take(f.CompleteRows(cols...))
}

// CompleteRows returns the indices of rows with a value in every listed column.
func (f *Frame) CompleteRows(cols ...string) []int {
	var check []*Column
	for _, name := range cols {
		if c := f.Column(name); c != nil {
			check = append(check, c)
		}
	}
	rows := make([]int, 0, f.rows)
	for i := 0; i < f.rows; i++ {
		ok := true
		for _, c := range check {
			if c.Numeric() && math.IsNaN(c.Floats[i]) || !c.Numeric() && c.Strings[i] == "" {
				ok = false
				break
			}
		}
		if ok {
			rows = append(rows, i)
		}
	}
	return rows
}

// Median returns the median of the non-NaN values, averaging the two middle
// values for even counts. It returns NaN when no value is present.
func Median(vals []float64) float64 {
	present := make([]float64, 0, len(vals))
	for _, v := range vals {
		if !math.IsNaN(v) {
			present = append(present, v)
		}
	}
	n := len(present)
	if n == 0 {
		return math.NaN()
	}
	sort.Float64s(present)
	if n%2 == 1 {
		return present[n/2]
	}
	return (present[n/2-1] + present[n/2]) / 2
}

// FillNaNWithMedian replaces NaN cells with the median of their column. The
// median of each column is computed over the whole column before any cell is
// filled. With no names, every numeric column is filled. Columns with no
// values at all stay NaN.
func (f *Frame) FillNaNWithMedian(cols ...string) {
	if len(cols) == 0 {
		cols = f.NumericColumns()
	}
	for _, name := range cols {
		vals := f.Float(name)
		if vals == nil {
			continue
		}
		med := Median(vals)
		if math.IsNaN(med) {
			continue
		}
		for i, v := range vals {
			if math.IsNaN(v) {
				vals[i] = med
			}
		}
	}
}

// Matrix returns the listed numeric columns as row-major data.
func (f *Frame) Matrix(cols []string) ([][]float64, error) {
	src := make([][]float64, len(cols))
	for j, name := range cols {
		vals := f.Float(name)
		if vals == nil {
			return nil, eris.Errorf("frame: numeric column %q not found", name)
		}
		src[j] = vals
	}
	out := make([][]float64, f.rows)
	for i := range out {
		row := make([]float64, len(cols))
		for j := range cols {
			row[j] = src[j][i]
		}
		out[i] = row
	}
	return out, nil
}

// Lookup returns the index of the first row whose text column equals value,
// or -1.
func (f *Frame) Lookup(col, value string) int {
	for i, v := range f.String(col) {
		if v == value {
			return i
		}
	}
	return -1
}

// Unique returns the distinct values of a text column in first-seen order.
func (f *Frame) Unique(col string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, v := range f.String(col) {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
