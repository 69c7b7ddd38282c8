// Package metrics derives per-district indicators from raw census counts and
// aggregates them to state level.
package metrics

import (
	"math"
	"sort"

	"github.com/sells-group/census-insights/internal/frame"
	"github.com/sells-group/census-insights/internal/model"
)

// ratio divides num by den and scales it. A zero denominator yields NaN
// rather than an infinity, and NaN operands propagate.
func ratio(num, den, scale float64) float64 {
	if den == 0 || math.IsNaN(num) || math.IsNaN(den) {
		return math.NaN()
	}
	return num / den * scale
}

func column(f *frame.Frame, name string) []float64 {
	if vals := f.Float(name); vals != nil {
		return vals
	}
	vals := make([]float64, f.Len())
	for i := range vals {
		vals[i] = math.NaN()
	}
	return vals
}

// ComputeMetrics returns a copy of the district table with the seven derived
// indicator columns added. A missing source column makes the dependent
// indicator NaN for every row.
func ComputeMetrics(districts *frame.Frame) *frame.Frame {
	out := districts.Clone()
	n := out.Len()

	female := column(out, model.ColFemale)
	male := column(out, model.ColMale)
	literate := column(out, model.ColLiterate)
	population := column(out, model.ColPopulation)
	workers := column(out, model.ColWorkers)
	urban := column(out, model.ColUrbanHouseholds)
	households := column(out, model.ColHouseholds)
	internet := column(out, model.ColInternet)
	mobile := column(out, model.ColMobile)
	latrine := column(out, model.ColLatrine)

	sexRatio := make([]float64, n)
	literacy := make([]float64, n)
	participation := make([]float64, n)
	urbanisation := make([]float64, n)
	penetration := make([]float64, n)
	mobileAccess := make([]float64, n)
	sanitation := make([]float64, n)

	for i := 0; i < n; i++ {
		sexRatio[i] = ratio(female[i], male[i], 1000)
		literacy[i] = ratio(literate[i], population[i], 100)
		participation[i] = ratio(workers[i], population[i], 100)
		urbanisation[i] = ratio(urban[i], households[i], 100)
		penetration[i] = ratio(internet[i], households[i], 100)
		mobileAccess[i] = ratio(mobile[i], households[i], 100)
		sanitation[i] = 100 - ratio(latrine[i], households[i], 100)
	}

	// Lengths match by construction.
	_ = out.AddFloat(model.ColSexRatio, sexRatio)
	_ = out.AddFloat(model.ColLiteracyRate, literacy)
	_ = out.AddFloat(model.ColWorkerParticipation, participation)
	_ = out.AddFloat(model.ColUrbanisationRate, urbanisation)
	_ = out.AddFloat(model.ColInternetPenetration, penetration)
	_ = out.AddFloat(model.ColMobilePhoneAccess, mobileAccess)
	_ = out.AddFloat(model.ColSanitationGap, sanitation)
	return out
}

// Rows returns the typed per-district view of an enriched table.
func Rows(f *frame.Frame) []model.DistrictMetrics {
	out := make([]model.DistrictMetrics, f.Len())
	for i := range out {
		out[i] = Row(f, i)
	}
	return out
}

// Row returns the typed view of row i.
func Row(f *frame.Frame, i int) model.DistrictMetrics {
	code := f.Text(model.ColDistrictCode, i)
	if code == "" {
		if v := f.Value(model.ColDistrictCode, i); !math.IsNaN(v) {
			code = formatCode(v)
		}
	}
	return model.DistrictMetrics{
		State:                   f.Text(model.ColState, i),
		District:                f.Text(model.ColDistrict, i),
		Code:                    code,
		Population:              f.Value(model.ColPopulation, i),
		SexRatio:                model.Rate(f.Value(model.ColSexRatio, i)),
		LiteracyRate:            model.Rate(f.Value(model.ColLiteracyRate, i)),
		WorkerParticipationRate: model.Rate(f.Value(model.ColWorkerParticipation, i)),
		UrbanisationRate:        model.Rate(f.Value(model.ColUrbanisationRate, i)),
		InternetPenetration:     model.Rate(f.Value(model.ColInternetPenetration, i)),
		MobilePhoneAccess:       model.Rate(f.Value(model.ColMobilePhoneAccess, i)),
		SanitationGap:           model.Rate(f.Value(model.ColSanitationGap, i)),
	}
}

// StateValue is one state's value in a ranked series.
type StateValue struct {
	State string     `json:"state"`
	Value model.Rate `json:"value"`
}

// StateInsights holds the four state-level ranked series.
type StateInsights struct {
	Population          []StateValue `json:"population"`
	LiteracyRate        []StateValue `json:"literacy_rate"`
	InternetPenetration []StateValue `json:"internet_penetration"`
	SanitationGap       []StateValue `json:"sanitation_gap"`
}

// Series returns the named series, or nil.
func (s *StateInsights) Series(name string) []StateValue {
	switch name {
	case "population":
		return s.Population
	case "literacy_rate":
		return s.LiteracyRate
	case "internet_penetration":
		return s.InternetPenetration
	case "sanitation_gap":
		return s.SanitationGap
	}
	return nil
}

// ComputeStateInsights sums the underlying counts per state and recomputes
// the rates from the sums, so large and small districts are weighted by
// their size. Population, literacy and internet series are sorted
// descending; the sanitation gap series ascending.
func ComputeStateInsights(f *frame.Frame) (*StateInsights, error) {
	sums, err := f.GroupBy([]string{model.ColState}, []string{
		model.ColPopulation,
		model.ColLiterate,
		model.ColHouseholds,
		model.ColInternet,
		model.ColLatrine,
	}, frame.Sum, true)
	if err != nil {
		return nil, err
	}

	states := sums.String(model.ColState)
	pop := column(sums, model.ColPopulation)
	lit := column(sums, model.ColLiterate)
	hh := column(sums, model.ColHouseholds)
	inet := column(sums, model.ColInternet)
	lat := column(sums, model.ColLatrine)

	ins := &StateInsights{
		Population:          make([]StateValue, len(states)),
		LiteracyRate:        make([]StateValue, len(states)),
		InternetPenetration: make([]StateValue, len(states)),
		SanitationGap:       make([]StateValue, len(states)),
	}
	for i, s := range states {
		ins.Population[i] = StateValue{State: s, Value: model.Rate(pop[i])}
		ins.LiteracyRate[i] = StateValue{State: s, Value: model.Rate(ratio(lit[i], pop[i], 100))}
		ins.InternetPenetration[i] = StateValue{State: s, Value: model.Rate(ratio(inet[i], hh[i], 100))}
		ins.SanitationGap[i] = StateValue{State: s, Value: model.Rate(100 - ratio(lat[i], hh[i], 100))}
	}

	sortSeries(ins.Population, true)
	sortSeries(ins.LiteracyRate, true)
	sortSeries(ins.InternetPenetration, true)
	sortSeries(ins.SanitationGap, false)
	return ins, nil
}

// sortSeries orders by value; undefined values always sort last.
func sortSeries(s []StateValue, desc bool) {
	sort.SliceStable(s, func(a, b int) bool {
		va, vb := s[a].Value, s[b].Value
		if !va.Valid() || !vb.Valid() {
			return va.Valid() && !vb.Valid()
		}
		if desc {
			return va > vb
		}
		return va < vb
	})
}
