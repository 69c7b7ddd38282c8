package housing

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/census-insights/internal/frame"
	"github.com/sells-group/census-insights/internal/model"
)

func houselisting(t *testing.T) *frame.Frame {
	t.Helper()
	h := frame.New()
	require.NoError(t, h.AddString(model.ColHousingState, []string{"Kerala", "Kerala", "Kerala", "Bihar"}))
	require.NoError(t, h.AddString(model.ColHousingDistrict, []string{"Idukki", "Idukki", "Wayanad", "Patna"}))
	require.NoError(t, h.AddFloat(ColGood, []float64{60, 40, 70, 30}))
	require.NoError(t, h.AddFloat(ColLivable, []float64{30, 50, 20, 50}))
	require.NoError(t, h.AddFloat(ColDilapidated, []float64{10, 10, 10, 20}))
	require.NoError(t, h.AddFloat(ColRoofConcrete, []float64{40, 40, 20, 10}))
	require.NoError(t, h.AddFloat(ColWallConcrete, []float64{20, 20, 20, 10}))
	require.NoError(t, h.AddFloat(ColFloorCement, []float64{30, 30, 20, 10}))
	require.NoError(t, h.AddFloat(ColFloorMosaic, []float64{10, 10, 20, 10}))
	require.NoError(t, h.AddFloat(ColCookingLPG, []float64{50, 30, 40, 20}))
	require.NoError(t, h.AddFloat(ColCookingElectricity, []float64{1, 1, 1, 1}))
	require.NoError(t, h.AddFloat(ColElectricity, []float64{90, 90, 80, 60}))
	require.NoError(t, h.AddFloat(ColWaterPremises, []float64{60, 60, 50, 30}))
	require.NoError(t, h.AddFloat(ColLatrinePremises, []float64{90, 90, 80, 30}))
	require.NoError(t, h.AddFloat(ColBathroom, []float64{30, 30, 20, 15}))
	return h
}

func TestPrepareFeaturesGroupsAndScores(t *testing.T) {
	out, err := PrepareFeatures(houselisting(t))
	require.NoError(t, err)

	require.Equal(t, 3, out.Len())
	// Groups are sorted by (state, district).
	assert.Equal(t, []string{"Bihar", "Kerala", "Kerala"}, out.String(model.ColHousingState))
	assert.Equal(t, []string{"Patna", "Idukki", "Wayanad"}, out.String(model.ColHousingDistrict))

	// Idukki means: good 50, livable 40, dilapidated 10.
	assert.InDelta(t, 50+40*0.6+10*0.2, out.Value(model.ColHousingQuality, 1), 1e-9)
	assert.InDelta(t, (40+20+30+10)/4.0, out.Value(model.ColModernConstruction, 1), 1e-9)
	assert.InDelta(t, (40+1+90)/3.0, out.Value(model.ColCleanEnergy, 1), 1e-9)
	assert.InDelta(t, (60+90+30)/3.0, out.Value(model.ColInfrastructure, 1), 1e-9)

	// No asset columns were supplied.
	assert.True(t, math.IsNaN(out.Value(model.ColDigitalAssets, 0)))
	assert.False(t, out.Has(ColRadio))
}

func TestPrepareFeaturesMissingKeys(t *testing.T) {
	h := frame.New()
	require.NoError(t, h.AddString(model.ColHousingState, []string{"Kerala"}))

	_, err := PrepareFeatures(h)
	var sm *model.SchemaMismatchError
	require.True(t, errors.As(err, &sm))
	assert.Equal(t, []string{model.ColHousingDistrict}, sm.Missing)
}

func metricsFrame(t *testing.T, districts ...string) *frame.Frame {
	t.Helper()
	f := frame.New()
	states := make([]string, len(districts))
	lit := make([]float64, len(districts))
	for i, d := range districts {
		if d == "Patna" {
			states[i] = "Bihar"
		} else {
			states[i] = "Kerala"
		}
		lit[i] = float64(60 + 10*i)
	}
	require.NoError(t, f.AddString(model.ColState, states))
	require.NoError(t, f.AddString(model.ColDistrict, districts))
	require.NoError(t, f.AddFloat(model.ColLiteracyRate, lit))
	return f
}

func TestIntegrateNoDuplication(t *testing.T) {
	features, err := PrepareFeatures(houselisting(t))
	require.NoError(t, err)
	m := metricsFrame(t, "Idukki", "Wayanad", "Patna")

	out, err := Integrate(m, features, nil)
	require.NoError(t, err)

	assert.Equal(t, m.Len(), out.Len())
	assert.Equal(t, m.String(model.ColDistrict), out.String(model.ColDistrict))
	assert.False(t, out.Has(model.ColHousingState))
	assert.False(t, out.Has(model.ColHousingDistrict))
	assert.InDelta(t, features.Value(model.ColHousingQuality, 2), out.Value(model.ColHousingQuality, 1), 1e-9)

	// Integrating twice yields the same rows.
	again, err := Integrate(m, features, nil)
	require.NoError(t, err)
	assert.Equal(t, out.Float(model.ColHousingQuality), again.Float(model.ColHousingQuality))
}

func TestIntegrateFillsUnmatchedWithMedian(t *testing.T) {
	features, err := PrepareFeatures(houselisting(t))
	require.NoError(t, err)
	m := metricsFrame(t, "Idukki", "Wayanad", "Patna", "Kollam")

	out, err := Integrate(m, features, ExactKey)
	require.NoError(t, err)

	require.Equal(t, 4, out.Len())
	hq := out.Float(model.ColHousingQuality)
	assert.InDelta(t, frame.Median(hq[:3]), hq[3], 1e-9)
	// Columns that are NaN everywhere stay NaN.
	assert.True(t, math.IsNaN(out.Value(model.ColDigitalAssets, 3)))
}

func TestIntegrateFoldKey(t *testing.T) {
	features, err := PrepareFeatures(houselisting(t))
	require.NoError(t, err)
	m := frame.New()
	require.NoError(t, m.AddString(model.ColState, []string{"KERALA ", "bihar"}))
	require.NoError(t, m.AddString(model.ColDistrict, []string{"idukki", "PATNA"}))

	exact, err := Integrate(m, features, ExactKey)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(exact.Value(model.ColHousingQuality, 0)))

	folded, err := Integrate(m, features, FoldKey)
	require.NoError(t, err)
	assert.InDelta(t, features.Value(model.ColHousingQuality, 1), folded.Value(model.ColHousingQuality, 0), 1e-9)
	assert.InDelta(t, features.Value(model.ColHousingQuality, 0), folded.Value(model.ColHousingQuality, 1), 1e-9)
}

func TestKeyFuncFor(t *testing.T) {
	tests := []struct {
		mode    string
		in      string
		want    string
		wantErr bool
	}{
		{mode: "", in: " A ", want: " A "},
		{mode: "exact", in: "A", want: "A"},
		{mode: "FOLD", in: "  Ｐｕｎｅ ", want: "pune"},
		{mode: "soundex", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			fn, err := KeyFuncFor(tt.mode)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, fn(tt.in))
		})
	}
}

func TestIsHousingColumn(t *testing.T) {
	assert.True(t, IsHousingColumn(model.ColInfrastructure))
	assert.True(t, IsHousingColumn(ColElectricity))
	assert.False(t, IsHousingColumn(model.ColLiteracyRate))
}
