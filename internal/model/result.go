package model

import (
	"sort"
	"time"
)

// ResultKind discriminates the Result variants.
type ResultKind string

const (
	KindRegression     ResultKind = "regression"
	KindClassification ResultKind = "classification"
	KindClustering     ResultKind = "clustering"
	KindAnomaly        ResultKind = "anomaly"
	KindProjection     ResultKind = "projection"
	KindSkipped        ResultKind = "skipped"
)

// Envelope carries the diagnostics common to every training result.
// FeaturesUsed and HousingFeaturesIncluded expose any silent narrowing of the
// declared feature list.
type Envelope struct {
	ModelName               string             `json:"model_name"`
	Task                    string             `json:"task"`
	Kind                    ResultKind         `json:"kind"`
	Samples                 int                `json:"samples"`
	FeaturesUsed            []string           `json:"features_used"`
	FeaturesDeclared        int                `json:"features_declared"`
	HousingFeaturesIncluded int                `json:"housing_features_included"`
	FeatureImportance       map[string]float64 `json:"feature_importance,omitempty"`
}

// Result is implemented by every training result variant.
type Result interface {
	Meta() *Envelope
	// Headline returns the result's primary metric for summaries.
	Headline() Headline
}

// Meta returns the shared envelope.
func (e *Envelope) Meta() *Envelope { return e }

// RegressionResult reports a holdout evaluation of a regressor.
type RegressionResult struct {
	Envelope
	MSE         float64 `json:"mse"`
	RMSE        float64 `json:"rmse"`
	R2          float64 `json:"r2_score"`
	TestSamples int     `json:"test_samples"`
}

func (r *RegressionResult) Headline() Headline {
	return Headline{Kind: r.Kind, Metric: "r2_score", Value: Rate(r.R2), Samples: r.Samples}
}

// ClassificationResult reports a holdout evaluation of a classifier.
type ClassificationResult struct {
	Envelope
	Accuracy          float64        `json:"accuracy"`
	Classes           []string       `json:"classes"`
	ClassDistribution map[string]int `json:"class_distribution"`
	TestSamples       int            `json:"test_samples"`
}

func (r *ClassificationResult) Headline() Headline {
	return Headline{Kind: r.Kind, Metric: "accuracy", Value: Rate(r.Accuracy), Samples: r.Samples}
}

// ClusterProfile summarises one cluster.
type ClusterProfile struct {
	ClusterID int             `json:"cluster_id"`
	Size      int             `json:"size"`
	Averages  map[string]Rate `json:"averages"`
	Districts []string        `json:"districts"`
}

// ClusteringResult reports a partitioning. Silhouette is undefined and
// Degenerate is set when fewer than two clusters are populated.
type ClusteringResult struct {
	Envelope
	NClusters      int              `json:"n_clusters"`
	Silhouette     Rate             `json:"silhouette_score"`
	Inertia        float64          `json:"inertia"`
	Degenerate     bool             `json:"degenerate"`
	Profiles       []ClusterProfile `json:"cluster_profiles"`
	TotalDistricts int              `json:"total_districts"`
}

func (r *ClusteringResult) Headline() Headline {
	return Headline{Kind: r.Kind, Metric: "silhouette_score", Value: r.Silhouette, Samples: r.Samples}
}

// Anomaly is one flagged district.
type Anomaly struct {
	District            string  `json:"district"`
	State               string  `json:"state"`
	Score               float64 `json:"score"`
	LiteracyRate        Rate    `json:"literacy_rate"`
	UrbanisationRate    Rate    `json:"urbanisation_rate"`
	InternetPenetration Rate    `json:"internet_penetration"`
	SanitationGap       Rate    `json:"sanitation_gap"`
}

// AnomalyResult reports isolation-based outlier detection.
type AnomalyResult struct {
	Envelope
	TotalDistricts    int       `json:"total_districts"`
	AnomaliesDetected int       `json:"anomalies_detected"`
	AnomalyPercentage float64   `json:"anomaly_percentage"`
	Anomalies         []Anomaly `json:"anomalies"`
}

func (r *AnomalyResult) Headline() Headline {
	return Headline{Kind: r.Kind, Metric: "anomaly_percentage", Value: Rate(r.AnomalyPercentage), Samples: r.Samples}
}

// ProjectedPoint is one district in component space.
type ProjectedPoint struct {
	District string    `json:"district"`
	State    string    `json:"state"`
	Coords   []float64 `json:"coords"`
}

// ProjectionResult reports a principal component analysis.
type ProjectionResult struct {
	Envelope
	ExplainedVariance      []float64            `json:"explained_variance"`
	TotalVarianceExplained float64              `json:"total_variance_explained"`
	Loadings               map[string][]float64 `json:"feature_loadings"`
	Points                 []ProjectedPoint     `json:"points"`
}

func (r *ProjectionResult) Headline() Headline {
	return Headline{Kind: r.Kind, Metric: "total_variance_explained", Value: Rate(r.TotalVarianceExplained), Samples: r.Samples}
}

// SkippedResult records a task that did not run.
type SkippedResult struct {
	Envelope
	Reason string `json:"reason"`
}

func (r *SkippedResult) Headline() Headline {
	return Headline{Kind: KindSkipped, Metric: "skipped", Value: NaN()}
}

// Results is the outcome of one training pass, keyed by task name.
type Results struct {
	Tasks       map[string]Result `json:"tasks"`
	Districts   int               `json:"districts"`
	WithHousing bool              `json:"with_housing"`
	TrainedAt   time.Time         `json:"trained_at"`
}

// Get returns the result for task, or nil.
func (r *Results) Get(task string) Result {
	if r == nil {
		return nil
	}
	return r.Tasks[task]
}

// Names returns the task names in sorted order.
func (r *Results) Names() []string {
	names := make([]string, 0, len(r.Tasks))
	for name := range r.Tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Summary condenses the results into a RunSummary.
func (r *Results) Summary() *RunSummary {
	s := &RunSummary{Districts: r.Districts, Tasks: make(map[string]Headline, len(r.Tasks))}
	for _, name := range r.Names() {
		res := r.Tasks[name]
		if _, ok := res.(*SkippedResult); ok {
			s.Skipped = append(s.Skipped, name)
			continue
		}
		s.Tasks[name] = res.Headline()
	}
	return s
}
