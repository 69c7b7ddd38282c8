// Package housing aggregates the houselisting table to one row per district,
// derives composite scores and joins them onto the district metrics.
package housing

import (
	"math"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/census-insights/internal/frame"
	"github.com/sells-group/census-insights/internal/model"
)

// Source columns of the houselisting table, after the mapping rename.
const (
	ColGood               = "Total Number of Good"
	ColLivable            = "Total Number of Livable"
	ColDilapidated        = "Total Number of Dilapidated"
	ColRoofConcrete       = "Material_Roof_Concrete"
	ColWallConcrete       = "Material_Wall_Concrete"
	ColFloorCement        = "Material_Floor_Cement"
	ColFloorMosaic        = "Material_Floor_MF"
	ColElectricity        = "MSL_Electricty"
	ColCookingLPG         = "Cooking_LPG_PNG"
	ColCookingElectricity = "Cooking_Electricity"
	ColCookingFirewood    = "Cooking_FW"
	ColWaterPremises      = "Within_premises"
	ColLatrinePremises    = "Latrine_premise"
	ColBathroom           = "Households_Bathroom"
	ColRadio              = "assets_RT"
	ColTelevision         = "assets_Tel"
	ColComputerInternet   = "assets_CL_WI"
	ColComputerNoInternet = "assets_CLWI"
	ColMobile             = "assets_TM_MO"
	ColBicycle            = "assets_Bicycle"
	ColScooter            = "assets_SMM"
	ColCar                = "assets_CJV"
	ColPermanent          = "Permanents"
	ColSemiPermanent      = "Semi_Permanent"
	ColTemporary          = "Total_Temporary"
)

// Fields lists the houselisting columns averaged per district.
var Fields = []string{
	ColGood, ColLivable, ColDilapidated,
	ColRoofConcrete, ColWallConcrete, ColFloorCement, ColFloorMosaic,
	ColElectricity, ColCookingLPG, ColCookingElectricity, ColCookingFirewood,
	ColWaterPremises, ColLatrinePremises, ColBathroom,
	ColRadio, ColTelevision, ColComputerInternet, ColComputerNoInternet,
	ColMobile, ColBicycle, ColScooter, ColCar,
	ColPermanent, ColSemiPermanent, ColTemporary,
	"H_size_1", "H_size_2", "H_size_3", "H_size_4", "H_size_5", "H_size_6_8", "H_size_9",
}

var groupKeys = []string{model.ColHousingState, model.ColHousingDistrict}

// PrepareFeatures averages Fields per (State Name, District Name) and adds the
// five composite scores. Fields absent from h are skipped and composites that
// need them come out NaN.
func PrepareFeatures(h *frame.Frame) (*frame.Frame, error) {
	var missing []string
	for _, k := range groupKeys {
		if h.String(k) == nil {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return nil, &model.SchemaMismatchError{Missing: missing}
	}

	out, err := h.GroupMean(groupKeys, Fields)
	if err != nil {
		return nil, eris.Wrap(err, "housing: group by district")
	}
	if err := addComposites(out); err != nil {
		return nil, eris.Wrap(err, "housing: composite scores")
	}
	return out, nil
}

func addComposites(f *frame.Frame) error {
	n := f.Len()
	get := func(col string) []float64 {
		if v := f.Float(col); v != nil {
			return v
		}
		nan := make([]float64, n)
		for i := range nan {
			nan[i] = math.NaN()
		}
		return nan
	}
	weighted := func(cols []string, weights []float64) []float64 {
		src := make([][]float64, len(cols))
		for j, c := range cols {
			src[j] = get(c)
		}
		out := make([]float64, n)
		for i := range out {
			for j := range cols {
				out[i] += src[j][i] * weights[j]
			}
		}
		return out
	}
	mean := func(cols ...string) []float64 {
		w := make([]float64, len(cols))
		for j := range w {
			w[j] = 1
		}
		out := weighted(cols, w)
		for i := range out {
			out[i] /= float64(len(cols))
		}
		return out
	}

	scores := []struct {
		name string
		vals []float64
	}{
		{model.ColHousingQuality, weighted([]string{ColGood, ColLivable, ColDilapidated}, []float64{1.0, 0.6, 0.2})},
		{model.ColModernConstruction, mean(ColRoofConcrete, ColWallConcrete, ColFloorCement, ColFloorMosaic)},
		{model.ColCleanEnergy, mean(ColCookingLPG, ColCookingElectricity, ColElectricity)},
		{model.ColDigitalAssets, mean(ColComputerInternet, ColComputerNoInternet, ColMobile, ColTelevision)},
		{model.ColInfrastructure, mean(ColWaterPremises, ColLatrinePremises, ColBathroom)},
	}
	for _, s := range scores {
		if err := f.AddFloat(s.name, s.vals); err != nil {
			return err
		}
	}
	return nil
}

// ExactKey matches join keys byte for byte.
func ExactKey(s string) string { return s }

var folder = cases.Fold()

// FoldKey trims, applies NFKC normalisation and folds case, so "Pune " and
// "PUNE" join.
func FoldKey(s string) string {
	return folder.String(norm.NFKC.String(strings.TrimSpace(s)))
}

// KeyFuncFor returns the key normaliser for a data.join_keys setting.
func KeyFuncFor(mode string) (frame.KeyFunc, error) {
	switch strings.ToLower(mode) {
	case "", "exact":
		return ExactKey, nil
	case "fold":
		return FoldKey, nil
	}
	return nil, eris.Errorf("housing: unknown join key mode %q", mode)
}

// Integrate left-joins the aggregated housing features onto the district
// metrics and fills every numeric NaN with its column median. Districts keep
// their row even without housing data. key normalises both sides of the join;
// nil means ExactKey.
func Integrate(metrics, features *frame.Frame, key frame.KeyFunc) (*frame.Frame, error) {
	if key == nil {
		key = ExactKey
	}
	out, err := metrics.LeftJoin(features,
		[]string{model.ColState, model.ColDistrict},
		groupKeys,
		key,
	)
	if err != nil {
		return nil, eris.Wrap(err, "housing: integrate")
	}
	out.FillNaNWithMedian()
	return out, nil
}

// IsHousingColumn reports whether col comes from the housing aggregate.
func IsHousingColumn(col string) bool {
	for _, c := range model.CompositeColumns {
		if c == col {
			return true
		}
	}
	for _, c := range Fields {
		if c == col {
			return true
		}
	}
	return false
}
