//go:build !integration

package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/census-insights/internal/dataset"
	"github.com/sells-group/census-insights/internal/model"
	"github.com/sells-group/census-insights/internal/policy"
)

func TestFormatResults(t *testing.T) {
	env := newTrainedEnv(t)

	var buf bytes.Buffer
	formatResults(&buf, env.Results())
	out := buf.String()

	assert.Contains(t, out, "TASK")
	assert.Contains(t, out, "literacy_prediction")
	assert.Contains(t, out, "housing_quality_prediction")
	assert.Contains(t, out, "skipped")
	assert.Contains(t, out, "30 districts, housing data: false")
}

func TestFormatRate(t *testing.T) {
	assert.Equal(t, "0.1235", formatRate(model.Rate(0.12345)))
	assert.Equal(t, "n/a", formatRate(model.NaN()))
}

func TestBuildAnalysis(t *testing.T) {
	env := newTestEnv(t)

	rep, err := buildAnalysis(env, 2)
	require.NoError(t, err)
	assert.Equal(t, 30, rep.Overview.TotalDistricts)
	assert.Len(t, rep.States.Population, 2)
	assert.Nil(t, rep.Highlights)
	assert.Nil(t, rep.HousingTable)
	assert.Equal(t, 30, rep.DistrictTable.Rows)

	var buf bytes.Buffer
	formatAnalysis(&buf, rep)
	assert.Contains(t, buf.String(), "30 districts in 4 states")
	assert.Contains(t, buf.String(), "District table: 30 rows")
	assert.NotContains(t, buf.String(), "Housing highlights")
}

func TestHeadOf(t *testing.T) {
	s := []int{1, 2, 3}
	assert.Equal(t, []int{1, 2}, headOf(s, 2))
	assert.Equal(t, s, headOf(s, 5))
	assert.Equal(t, s, headOf(s, 0))
}

func TestFormatPriorities(t *testing.T) {
	recs := []*model.Recommendation{
		{
			District:      "District 00",
			State:         "State 0",
			PriorityScore: 10,
			Recommendations: []model.Intervention{
				{Category: "Education", Priority: model.PriorityHigh},
				{Category: "Sanitation", Priority: model.PriorityCritical},
			},
		},
	}

	var buf bytes.Buffer
	formatPriorities(&buf, recs, 30)
	out := buf.String()

	assert.Contains(t, out, "District 00")
	assert.Contains(t, out, "Education, Sanitation")
	assert.Contains(t, out, "10/")
	assert.Contains(t, out, "30 districts analysed")
	assert.Positive(t, policy.MaxScore())
}

func TestFormatFetchResults(t *testing.T) {
	var buf bytes.Buffer
	formatFetchResults(&buf, []dataset.FetchResult{
		{Target: "data/districts.csv", Changed: true, Bytes: 1024},
		{Target: "data/hlpca-colnames.csv"},
	})
	out := buf.String()

	assert.Contains(t, out, "data/districts.csv")
	assert.Contains(t, out, "downloaded")
	assert.Contains(t, out, "unchanged")
	assert.Contains(t, out, "1024")
}
