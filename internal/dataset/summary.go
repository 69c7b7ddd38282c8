package dataset

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/sells-group/census-insights/internal/frame"
)

func nan() float64 { return math.NaN() }

// MissingCount is the number of missing cells in one column.
type MissingCount struct {
	Column  string `json:"column"`
	Missing int    `json:"missing"`
}

// Summary is high-level metadata about a loaded table.
type Summary struct {
	Rows          int            `json:"rows"`
	Columns       int            `json:"columns"`
	DuplicateRows int            `json:"duplicate_rows"`
	MissingValues []MissingCount `json:"missing_values"`
}

// Summarise counts rows, columns, fully duplicated rows, and missing cells
// per column. Only columns with missing cells are listed, most missing first.
func Summarise(f *frame.Frame) Summary {
	s := Summary{Rows: f.Len(), Columns: len(f.Columns())}

	cols := f.Columns()
	seen := make(map[string]bool, f.Len())
	var sb strings.Builder
	for i := 0; i < f.Len(); i++ {
		sb.Reset()
		for _, name := range cols {
			c := f.Column(name)
			if c.Numeric() {
				sb.WriteString(strconv.FormatFloat(c.Floats[i], 'g', -1, 64))
			} else {
				sb.WriteString(c.Strings[i])
			}
			sb.WriteByte(0x1f)
		}
		k := sb.String()
		if seen[k] {
			s.DuplicateRows++
		}
		seen[k] = true
	}

	for _, name := range cols {
		c := f.Column(name)
		n := 0
		for i := 0; i < f.Len(); i++ {
			if c.Numeric() && math.IsNaN(c.Floats[i]) || !c.Numeric() && c.Strings[i] == "" {
				n++
			}
		}
		if n > 0 {
			s.MissingValues = append(s.MissingValues, MissingCount{Column: name, Missing: n})
		}
	}
	sort.SliceStable(s.MissingValues, func(a, b int) bool {
		return s.MissingValues[a].Missing > s.MissingValues[b].Missing
	})
	return s
}
