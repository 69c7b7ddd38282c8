package metrics

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/sells-group/census-insights/internal/frame"
	"github.com/sells-group/census-insights/internal/model"
)

func formatCode(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Overview summarises the loaded tables.
type Overview struct {
	DistrictRows           int        `json:"district_rows"`
	DistrictColumns        int        `json:"district_columns"`
	HousingRows            int        `json:"housing_rows"`
	HousingColumns         int        `json:"housing_columns"`
	TotalPopulation        float64    `json:"total_population"`
	TotalStates            int        `json:"total_states"`
	TotalDistricts         int        `json:"total_districts"`
	AvgLiteracyRate        model.Rate `json:"avg_literacy_rate"`
	AvgSexRatio            model.Rate `json:"avg_sex_ratio"`
	AvgUrbanisation        model.Rate `json:"avg_urbanisation"`
	AvgInternet            model.Rate `json:"avg_internet_penetration"`
	AvgSanitationGap       model.Rate `json:"avg_sanitation_gap"`
	AvgWorkerParticipation model.Rate `json:"avg_worker_participation"`
}

// ComputeOverview builds an Overview. housing may be nil.
func ComputeOverview(enriched, housing *frame.Frame) Overview {
	o := Overview{
		DistrictRows:           enriched.Len(),
		DistrictColumns:        len(enriched.Columns()),
		TotalPopulation:        frame.Sum(enriched.Float(model.ColPopulation)),
		TotalStates:            countNonEmpty(enriched.Unique(model.ColState)),
		TotalDistricts:         countNonEmpty(enriched.Unique(model.ColDistrict)),
		AvgLiteracyRate:        meanOf(enriched, model.ColLiteracyRate),
		AvgSexRatio:            meanOf(enriched, model.ColSexRatio),
		AvgUrbanisation:        meanOf(enriched, model.ColUrbanisationRate),
		AvgInternet:            meanOf(enriched, model.ColInternetPenetration),
		AvgSanitationGap:       meanOf(enriched, model.ColSanitationGap),
		AvgWorkerParticipation: meanOf(enriched, model.ColWorkerParticipation),
	}
	if housing != nil {
		o.HousingRows = housing.Len()
		o.HousingColumns = len(housing.Columns())
	}
	return o
}

func countNonEmpty(vals []string) int {
	n := 0
	for _, v := range vals {
		if v != "" {
			n++
		}
	}
	return n
}

func meanOf(f *frame.Frame, col string) model.Rate {
	return model.Rate(frame.Mean(column(f, col)))
}

// States returns the sorted distinct state names.
func States(f *frame.Frame) []string {
	var out []string
	for _, s := range f.Unique(model.ColState) {
		if s != "" {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

// DistrictBrief is a short per-district line in a state view.
type DistrictBrief struct {
	District     string     `json:"district"`
	Population   float64    `json:"population"`
	LiteracyRate model.Rate `json:"literacy_rate"`
}

// StateDetail summarises one state's districts.
type StateDetail struct {
	State           string          `json:"state_name"`
	TotalDistricts  int             `json:"total_districts"`
	TotalPopulation float64         `json:"total_population"`
	AvgLiteracyRate model.Rate      `json:"avg_literacy_rate"`
	AvgSexRatio     model.Rate      `json:"avg_sex_ratio"`
	AvgUrbanisation model.Rate      `json:"avg_urbanisation"`
	Districts       []DistrictBrief `json:"districts"`
}

// ComputeStateDetail returns the detail view for state, or false when no
// district belongs to it.
func ComputeStateDetail(f *frame.Frame, state string) (StateDetail, bool) {
	var rows []int
	for i, s := range f.String(model.ColState) {
		if s == state {
			rows = append(rows, i)
		}
	}
	if len(rows) == 0 {
		return StateDetail{}, false
	}
	sub := f.Take(rows)

	d := StateDetail{
		State:           state,
		TotalDistricts:  countNonEmpty(sub.Unique(model.ColDistrict)),
		TotalPopulation: frame.Sum(sub.Float(model.ColPopulation)),
		AvgLiteracyRate: meanOf(sub, model.ColLiteracyRate),
		AvgSexRatio:     meanOf(sub, model.ColSexRatio),
		AvgUrbanisation: meanOf(sub, model.ColUrbanisationRate),
		Districts:       make([]DistrictBrief, sub.Len()),
	}
	for i := range d.Districts {
		d.Districts[i] = DistrictBrief{
			District:     sub.Text(model.ColDistrict, i),
			Population:   sub.Value(model.ColPopulation, i),
			LiteracyRate: model.Rate(sub.Value(model.ColLiteracyRate, i)),
		}
	}
	return d, true
}

// Bucket is one labelled count.
type Bucket struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Demographics holds the population-centred views.
type Demographics struct {
	TopStatesByPopulation []StateValue `json:"top_states_population"`
	SexRatioByState       []StateValue `json:"sex_ratio_by_state"`
	LiteracyDistribution  []Bucket     `json:"literacy_distribution"`
}

var literacyEdges = []float64{0, 50, 70, 85, 100}

// ComputeDemographics builds the top 10 states by population, the top 15
// states by mean sex ratio, and the district literacy distribution.
func ComputeDemographics(f *frame.Frame) (Demographics, error) {
	var d Demographics

	pop, err := stateAggregate(f, model.ColPopulation, frame.Sum)
	if err != nil {
		return d, err
	}
	d.TopStatesByPopulation = head(pop, 10)

	sex, err := stateAggregate(f, model.ColSexRatio, frame.Mean)
	if err != nil {
		return d, err
	}
	d.SexRatioByState = head(sex, 15)

	counts := make([]int, len(literacyEdges)-1)
	for _, v := range f.Float(model.ColLiteracyRate) {
		for b := 1; b < len(literacyEdges); b++ {
			if v > literacyEdges[b-1] && v <= literacyEdges[b] {
				counts[b-1]++
				break
			}
		}
	}
	for b, n := range counts {
		d.LiteracyDistribution = append(d.LiteracyDistribution, Bucket{
			Label: "(" + formatCode(literacyEdges[b]) + ", " + formatCode(literacyEdges[b+1]) + "]",
			Count: n,
		})
	}
	return d, nil
}

// Workforce holds the labour-market views.
type Workforce struct {
	ParticipationByState []StateValue `json:"worker_participation_by_state"`
	// LiteracyCorrelation is the Pearson correlation between district literacy
	// and worker participation over rows where both are defined.
	LiteracyCorrelation model.Rate `json:"literacy_workforce_correlation"`
	MaleWorkers         float64    `json:"male_workers"`
	FemaleWorkers       float64    `json:"female_workers"`
}

// ComputeWorkforce builds the Workforce view.
func ComputeWorkforce(f *frame.Frame) (Workforce, error) {
	var w Workforce

	byState, err := stateAggregate(f, model.ColWorkerParticipation, frame.Mean)
	if err != nil {
		return w, err
	}
	w.ParticipationByState = head(byState, 15)
	w.LiteracyCorrelation = model.Rate(Correlation(column(f, model.ColLiteracyRate), column(f, model.ColWorkerParticipation)))
	w.MaleWorkers = frame.Sum(f.Float(model.ColMaleWorkers))
	w.FemaleWorkers = frame.Sum(f.Float(model.ColFemaleWorkers))
	return w, nil
}

// Correlation is the Pearson correlation of the pairs where both x and y are
// defined. It is NaN with fewer than two such pairs.
func Correlation(x, y []float64) float64 {
	var xs, ys []float64
	for i := range x {
		if i < len(y) && !math.IsNaN(x[i]) && !math.IsNaN(y[i]) {
			xs = append(xs, x[i])
			ys = append(ys, y[i])
		}
	}
	if len(xs) < 2 {
		return math.NaN()
	}
	return stat.Correlation(xs, ys, nil)
}

// HousingView holds household asset and amenity views.
type HousingView struct {
	AssetAccess         map[string]model.Rate `json:"asset_access"`
	SanitationCoverage  model.Rate            `json:"sanitation_coverage"`
	UrbanisationByState []StateValue          `json:"urbanisation_by_state"`
}

var assetColumns = []string{
	model.ColInternet,
	model.ColMobile,
	model.ColTelevision,
	model.ColComputer,
	"Households_with_Computer_Laptop",
}

// ComputeHousingView builds household-weighted asset access rates, mean
// sanitation coverage and the top 10 states by mean urbanisation.
func ComputeHousingView(f *frame.Frame) (HousingView, error) {
	v := HousingView{AssetAccess: make(map[string]model.Rate)}
	households := frame.Sum(f.Float(model.ColHouseholds))
	for _, col := range assetColumns {
		vals := f.Float(col)
		if vals == nil {
			continue
		}
		v.AssetAccess[strings.TrimPrefix(col, "Households_with_")] = model.Rate(ratio(frame.Sum(vals), households, 100))
	}
	v.SanitationCoverage = model.Rate(100 - frame.Mean(column(f, model.ColSanitationGap)))

	urban, err := stateAggregate(f, model.ColUrbanisationRate, frame.Mean)
	if err != nil {
		return v, err
	}
	v.UrbanisationByState = head(urban, 10)
	return v, nil
}

// HousingHighlights holds the mean share of each roof material, wall
// material and cooking fuel column, largest first.
type HousingHighlights struct {
	RoofMix    []Share `json:"roof_mix"`
	WallMix    []Share `json:"wall_mix"`
	CookingMix []Share `json:"cooking_mix"`
}

// Share is one category's mean share.
type Share struct {
	Category string     `json:"category"`
	Value    model.Rate `json:"value"`
}

// ComputeHousingHighlights summarises material and fuel mixes of the raw
// housing table. Columns are matched case-insensitively by prefix.
func ComputeHousingHighlights(housing *frame.Frame) HousingHighlights {
	return HousingHighlights{
		RoofMix:    prefixMix(housing, "material_roof"),
		WallMix:    prefixMix(housing, "material_wall"),
		CookingMix: prefixMix(housing, "cooking_"),
	}
}

func prefixMix(f *frame.Frame, prefix string) []Share {
	var out []Share
	for _, col := range f.NumericColumns() {
		if strings.HasPrefix(strings.ToLower(col), prefix) {
			out = append(out, Share{Category: col, Value: model.Rate(frame.Mean(f.Float(col)))})
		}
	}
	sort.SliceStable(out, func(a, b int) bool {
		va, vb := out[a].Value, out[b].Value
		if !va.Valid() || !vb.Valid() {
			return va.Valid() && !vb.Valid()
		}
		return va > vb
	})
	return out
}

func stateAggregate(f *frame.Frame, col string, agg frame.Aggregator) ([]StateValue, error) {
	g, err := f.GroupBy([]string{model.ColState}, []string{col}, agg, false)
	if err != nil {
		return nil, err
	}
	states := g.String(model.ColState)
	vals := column(g, col)
	out := make([]StateValue, len(states))
	for i, s := range states {
		out[i] = StateValue{State: s, Value: model.Rate(vals[i])}
	}
	sortSeries(out, true)
	return out, nil
}

func head(s []StateValue, n int) []StateValue {
	if len(s) > n {
		return s[:n]
	}
	return s
}
