package dataset

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/census-insights/internal/config"
	"github.com/sells-group/census-insights/internal/fetcher"
	"github.com/sells-group/census-insights/internal/model"
)

const districtCSV = `State name,District name,Population,Literate
Goa,North Goa,818008,731000
Goa,South Goa,640537,NA
`

const housingCSV = `State Name,District Name,H1,H2
GOA,North Goa,60.1,30.2
GOA,South Goa,55.0,35.5
`

const mappingCSV = `H1,Total Number of Good

H2,Total Number of Livable
malformed line
H3,Roof, concrete
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseMapping(t *testing.T) {
	m, err := ParseMapping(strings.NewReader(mappingCSV))
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"H1": "Total Number of Good",
		"H2": "Total Number of Livable",
		"H3": "Roof, concrete",
	}, m)
}

func TestCheckPathsListsEveryMissingFile(t *testing.T) {
	dir := t.TempDir()
	district := writeFile(t, dir, "districts.csv", districtCSV)

	err := CheckPaths(Paths{
		District: district,
		Housing:  filepath.Join(dir, "housing.csv"),
		Mapping:  filepath.Join(dir, "mapping.csv"),
	})

	var mie *model.MissingInputError
	require.True(t, errors.As(err, &mie))
	assert.Equal(t, []string{"housing.csv", "mapping.csv"}, mie.Missing)
}

func TestCheckPathsSkipsUnrequested(t *testing.T) {
	dir := t.TempDir()
	district := writeFile(t, dir, "districts.csv", districtCSV)
	assert.NoError(t, CheckPaths(Paths{District: district}))
}

func TestLoadRenamesHousingColumns(t *testing.T) {
	dir := t.TempDir()
	p := Paths{
		District: writeFile(t, dir, "districts.csv", districtCSV),
		Housing:  writeFile(t, dir, "housing.csv", housingCSV),
		Mapping:  writeFile(t, dir, "mapping.csv", mappingCSV),
	}

	b, err := Load(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, 2, b.District.Len())
	assert.Equal(t, []float64{818008, 640537}, b.District.Float("Population"))
	lit := b.District.Float("Literate")
	require.Len(t, lit, 2)
	assert.True(t, math.IsNaN(lit[1]))

	assert.True(t, b.Housing.Has("Total Number of Good"))
	assert.True(t, b.Housing.Has("Total Number of Livable"))
	assert.False(t, b.Housing.Has("H1"))
	assert.Equal(t, "Roof, concrete", b.Mapping["H3"])
}

func TestLoadDistrictOnly(t *testing.T) {
	dir := t.TempDir()
	b, err := Load(context.Background(), Paths{District: writeFile(t, dir, "districts.csv", districtCSV)})
	require.NoError(t, err)
	assert.Nil(t, b.Housing)
	assert.Nil(t, b.Mapping)
}

func TestLoadMissingFile(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(context.Background(), Paths{District: filepath.Join(dir, "nope.csv")})

	var mie *model.MissingInputError
	require.True(t, errors.As(err, &mie))
	assert.Equal(t, []string{"nope.csv"}, mie.Missing)
}

func TestPathsFromConfig(t *testing.T) {
	cfg := config.DataConfig{Dir: "data", DistrictFile: "d.csv", HousingFile: "h.csv", MappingFile: "m.csv"}

	p := PathsFromConfig(cfg, true)
	assert.Equal(t, filepath.Join("data", "d.csv"), p.District)
	assert.Equal(t, filepath.Join("data", "h.csv"), p.Housing)
	assert.Equal(t, filepath.Join("data", "m.csv"), p.Mapping)

	p = PathsFromConfig(cfg, false)
	assert.Empty(t, p.Housing)
	assert.Empty(t, p.Mapping)
}

func TestFromTableTypeInference(t *testing.T) {
	tbl := &fetcher.Table{
		Header: []string{"Name", "Value", "Mixed", "Value"},
		Rows: [][]string{
			{"a", "1.5", "1", "3"},
			{"b", "", "x"},
			{"c", "-2", "2", "4"},
		},
	}

	f, err := FromTable(tbl)
	require.NoError(t, err)

	assert.Equal(t, []string{"Name", "Value", "Mixed", "Value.1"}, f.Columns())
	assert.Equal(t, []string{"Value", "Value.1"}, f.NumericColumns())
	v := f.Float("Value")
	assert.Equal(t, 1.5, v[0])
	assert.True(t, math.IsNaN(v[1]))
	assert.Equal(t, -2.0, v[2])
	assert.Equal(t, []string{"1", "x", "2"}, f.String("Mixed"))
	// Short rows are padded as missing.
	assert.True(t, math.IsNaN(f.Value("Value.1", 1)))
}

func TestSummarise(t *testing.T) {
	tbl := &fetcher.Table{
		Header: []string{"State", "Pop", "Lit"},
		Rows: [][]string{
			{"Goa", "1", ""},
			{"Goa", "1", ""},
			{"", "2", "3"},
			{"Kerala", "", ""},
		},
	}
	f, err := FromTable(tbl)
	require.NoError(t, err)

	s := Summarise(f)
	assert.Equal(t, 4, s.Rows)
	assert.Equal(t, 3, s.Columns)
	assert.Equal(t, 1, s.DuplicateRows)
	assert.Equal(t, []MissingCount{
		{Column: "Lit", Missing: 3},
		{Column: "State", Missing: 1},
		{Column: "Pop", Missing: 1},
	}, s.MissingValues)
}
