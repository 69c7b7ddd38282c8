// Package policy turns district metrics into ranked intervention
// recommendations.
package policy

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/sells-group/census-insights/internal/frame"
	"github.com/sells-group/census-insights/internal/metrics"
	"github.com/sells-group/census-insights/internal/model"
)

// rule is one independent intervention trigger. Comparisons against NaN are
// false, so undefined metrics never fire a rule.
type rule struct {
	weight  int
	applies func(m model.DistrictMetrics) bool
	build   func(m model.DistrictMetrics) model.Intervention
}

var rules = []rule{
	{
		weight:  3,
		applies: func(m model.DistrictMetrics) bool { return m.LiteracyRate < 70 },
		build: func(m model.DistrictMetrics) model.Intervention {
			return model.Intervention{
				Category:       "Education",
				Priority:       model.PriorityHigh,
				Intervention:   "Adult Literacy Programs",
				Reason:         fmt.Sprintf("Literacy rate is %.1f%%, below national average", float64(m.LiteracyRate)),
				ExpectedImpact: "Improve workforce quality and economic opportunities",
			}
		},
	},
	{
		weight:  3,
		applies: func(m model.DistrictMetrics) bool { return m.InternetPenetration < 15 },
		build: func(m model.DistrictMetrics) model.Intervention {
			return model.Intervention{
				Category:       "Digital Infrastructure",
				Priority:       model.PriorityHigh,
				Intervention:   "Broadband Expansion Program",
				Reason:         fmt.Sprintf("Internet penetration is only %.1f%%", float64(m.InternetPenetration)),
				ExpectedImpact: "Enable digital education, e-governance, and economic growth",
			}
		},
	},
	{
		weight:  4,
		applies: func(m model.DistrictMetrics) bool { return m.SanitationGap > 30 },
		build: func(m model.DistrictMetrics) model.Intervention {
			return model.Intervention{
				Category:       "Sanitation",
				Priority:       model.PriorityCritical,
				Intervention:   "Swachh Bharat Mission - Toilet Construction",
				Reason:         fmt.Sprintf("Sanitation gap is %.1f%%, indicating poor latrine coverage", float64(m.SanitationGap)),
				ExpectedImpact: "Improve public health, reduce disease burden, enhance dignity",
			}
		},
	},
	{
		weight: 2,
		applies: func(m model.DistrictMetrics) bool {
			return m.UrbanisationRate < 20 && m.MobilePhoneAccess < 50
		},
		build: func(m model.DistrictMetrics) model.Intervention {
			return model.Intervention{
				Category:       "Infrastructure",
				Priority:       model.PriorityMedium,
				Intervention:   "Rural Connectivity and Electrification",
				Reason:         fmt.Sprintf("Low urbanization (%.1f%%) with poor mobile access", float64(m.UrbanisationRate)),
				ExpectedImpact: "Bridge urban-rural divide, improve communication",
			}
		},
	},
	{
		weight:  2,
		applies: func(m model.DistrictMetrics) bool { return m.WorkerParticipationRate < 35 },
		build: func(m model.DistrictMetrics) model.Intervention {
			return model.Intervention{
				Category:       "Employment",
				Priority:       model.PriorityMedium,
				Intervention:   "Skill Development and Job Creation Programs",
				Reason:         fmt.Sprintf("Worker participation is %.1f%%, below optimal levels", float64(m.WorkerParticipationRate)),
				ExpectedImpact: "Increase household income and economic productivity",
			}
		},
	},
}

// MaxScore is the priority score of a district that triggers every rule.
func MaxScore() int {
	var total int
	for _, r := range rules {
		total += r.weight
	}
	return total
}

// Evaluate applies every rule to m.
func Evaluate(m model.DistrictMetrics) *model.Recommendation {
	rec := &model.Recommendation{
		District:        m.District,
		State:           m.State,
		Recommendations: []model.Intervention{},
		CurrentMetrics: model.CurrentMetrics{
			LiteracyRate:        m.LiteracyRate,
			InternetPenetration: m.InternetPenetration,
			SanitationGap:       m.SanitationGap,
			UrbanisationRate:    m.UrbanisationRate,
			MobilePhoneAccess:   m.MobilePhoneAccess,
			WorkerParticipation: m.WorkerParticipationRate,
		},
	}
	for _, r := range rules {
		if !r.applies(m) {
			continue
		}
		rec.Recommendations = append(rec.Recommendations, r.build(m))
		rec.PriorityScore += r.weight
	}
	rec.TotalRecommendations = len(rec.Recommendations)
	return rec
}

// Recommend evaluates the first row of f whose district name equals district.
func Recommend(f *frame.Frame, district string) (*model.Recommendation, error) {
	i := f.Lookup(model.ColDistrict, district)
	if i < 0 {
		return nil, &model.DistrictNotFoundError{District: district}
	}
	return Evaluate(metrics.Row(f, i)), nil
}

// TopPriority evaluates every distinct district of f and returns the limit
// highest scores, with ties kept in table order, along with the number of
// districts analysed. A non-positive limit returns every district.
func TopPriority(f *frame.Frame, limit int) ([]*model.Recommendation, int) {
	var recs []*model.Recommendation
	for _, d := range f.Unique(model.ColDistrict) {
		rec, err := Recommend(f, d)
		if err != nil {
			zap.L().Debug("policy: skip district", zap.String("district", d), zap.Error(err))
			continue
		}
		recs = append(recs, rec)
	}
	analysed := len(recs)

	sort.SliceStable(recs, func(a, b int) bool {
		return recs[a].PriorityScore > recs[b].PriorityScore
	})
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, analysed
}
