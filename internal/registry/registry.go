// Package registry holds trained models behind an atomically swapped
// snapshot and answers prediction requests against them.
package registry

import (
	"math"
	"sort"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/census-insights/internal/ml"
	"github.com/sells-group/census-insights/internal/model"
)

// Kind is the estimator family of an Entry.
type Kind string

const (
	KindRegressor  Kind = "regressor"
	KindClassifier Kind = "classifier"
	KindClusterer  Kind = "clusterer"
	KindAnomaly    Kind = "anomaly"
	KindProjection Kind = "projection"
)

// Registered model names.
const (
	Literacy         = "literacy_predictor"
	Internet         = "internet_predictor"
	Sanitation       = "sanitation_classifier"
	DistrictClusters = "district_clustering"
	Anomaly          = "anomaly_detector"
	Projection       = "pca"
	HousingQuality   = "housing_quality_predictor"
	AssetOwnership   = "asset_ownership_classifier"
	HousingClusters  = "housing_clustering"
	Infrastructure   = "infrastructure_predictor"
)

// Entry is one trained model with the scaler fitted on its training rows and
// the ordered feature names it expects. Exactly one estimator field is set,
// matching Kind.
type Entry struct {
	Name     string
	Kind     Kind
	Features []string
	// Classes names the classifier labels by index.
	Classes   []string
	Scaler    *ml.StandardScaler
	Forest    *ml.Forest
	KMeans    *ml.KMeans
	Isolation *ml.IsolationForest
	PCA       *ml.PCA
}

func (e *Entry) validate() error {
	if e.Name == "" {
		return eris.New("registry: entry without name")
	}
	if e.Scaler == nil {
		return &model.InconsistentArtifactsError{Model: e.Name, Missing: "scaler"}
	}
	var set bool
	switch e.Kind {
	case KindRegressor, KindClassifier:
		set = e.Forest != nil
	case KindClusterer:
		set = e.KMeans != nil
	case KindAnomaly:
		set = e.Isolation != nil
	case KindProjection:
		set = e.PCA != nil
	default:
		return eris.Errorf("registry: entry %s has unknown kind %q", e.Name, e.Kind)
	}
	if !set {
		return &model.InconsistentArtifactsError{Model: e.Name, Missing: "model"}
	}
	if e.Scaler.Width() != len(e.Features) {
		return eris.Errorf("registry: entry %s scaler width %d does not match %d features", e.Name, e.Scaler.Width(), len(e.Features))
	}
	return nil
}

// Vector resolves features by name in the entry's order and applies the
// fitted scaler. Every absent or NaN key is reported in one
// SchemaMismatchError.
func (e *Entry) Vector(features map[string]float64) ([]float64, error) {
	row := make([]float64, len(e.Features))
	var missing []string
	for j, name := range e.Features {
		v, ok := features[name]
		if !ok || math.IsNaN(v) {
			missing = append(missing, name)
			continue
		}
		row[j] = v
	}
	if len(missing) > 0 {
		return nil, &model.SchemaMismatchError{Model: e.Name, Missing: missing}
	}
	return e.Scaler.TransformRow(row)
}

// Snapshot is an immutable set of entries produced by one training pass.
type Snapshot struct {
	TrainedAt time.Time
	entries   map[string]*Entry
}

// NewSnapshot validates and indexes entries.
func NewSnapshot(trainedAt time.Time, entries ...*Entry) (*Snapshot, error) {
	s := &Snapshot{TrainedAt: trainedAt, entries: make(map[string]*Entry, len(entries))}
	for _, e := range entries {
		if err := e.validate(); err != nil {
			return nil, err
		}
		if _, dup := s.entries[e.Name]; dup {
			return nil, eris.Errorf("registry: duplicate entry %s", e.Name)
		}
		s.entries[e.Name] = e
	}
	return s, nil
}

// Get returns the named entry.
func (s *Snapshot) Get(name string) (*Entry, bool) {
	if s == nil {
		return nil, false
	}
	e, ok := s.entries[name]
	return e, ok
}

// Names lists the entries in sorted order.
func (s *Snapshot) Names() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.entries))
	for n := range s.entries {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Len is the number of entries.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.entries)
}

// Registry serves predictions from the most recently published snapshot.
// Each call loads the snapshot once, so a concurrent Publish never mixes
// models from two passes.
type Registry struct {
	current atomic.Pointer[Snapshot]
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{}
}

// Publish replaces the current snapshot.
func (r *Registry) Publish(s *Snapshot) {
	r.current.Store(s)
}

// Snapshot returns the current snapshot, or nil before the first Publish.
func (r *Registry) Snapshot() *Snapshot {
	return r.current.Load()
}

// Ready reports whether any model has been published.
func (r *Registry) Ready() bool {
	return r.Snapshot().Len() > 0
}

func (r *Registry) entry(name string, kinds ...Kind) (*Entry, error) {
	e, ok := r.Snapshot().Get(name)
	if !ok {
		return nil, &model.UntrainedModelError{Model: name}
	}
	for _, k := range kinds {
		if e.Kind == k {
			return e, nil
		}
	}
	return nil, eris.Errorf("registry: model %s is a %s", name, e.Kind)
}

// Predict runs a regressor.
func (r *Registry) Predict(name string, features map[string]float64) (float64, error) {
	e, err := r.entry(name, KindRegressor)
	if err != nil {
		return 0, err
	}
	x, err := e.Vector(features)
	if err != nil {
		return 0, err
	}
	return e.Forest.Predict(x), nil
}

// Classify runs a classifier and returns the label.
func (r *Registry) Classify(name string, features map[string]float64) (string, error) {
	e, err := r.entry(name, KindClassifier)
	if err != nil {
		return "", err
	}
	x, err := e.Vector(features)
	if err != nil {
		return "", err
	}
	k := int(e.Forest.Predict(x))
	if k < 0 || k >= len(e.Classes) {
		return "", eris.Errorf("registry: model %s predicted unknown class %d", name, k)
	}
	return e.Classes[k], nil
}

// Cluster assigns features to the nearest centroid of a clusterer.
func (r *Registry) Cluster(name string, features map[string]float64) (int, error) {
	e, err := r.entry(name, KindClusterer)
	if err != nil {
		return 0, err
	}
	x, err := e.Vector(features)
	if err != nil {
		return 0, err
	}
	return e.KMeans.Predict(x), nil
}

// Score returns the anomaly score and whether it crosses the fitted
// threshold.
func (r *Registry) Score(name string, features map[string]float64) (float64, bool, error) {
	e, err := r.entry(name, KindAnomaly)
	if err != nil {
		return 0, false, err
	}
	x, err := e.Vector(features)
	if err != nil {
		return 0, false, err
	}
	return e.Isolation.Score(x), e.Isolation.Predict(x) == -1, nil
}

// Project maps features into principal component space.
func (r *Registry) Project(name string, features map[string]float64) ([]float64, error) {
	e, err := r.entry(name, KindProjection)
	if err != nil {
		return nil, err
	}
	x, err := e.Vector(features)
	if err != nil {
		return nil, err
	}
	return e.PCA.TransformRow(x)
}

// PredictLiteracy predicts a district literacy rate.
func (r *Registry) PredictLiteracy(features map[string]float64) (float64, error) {
	return r.Predict(Literacy, features)
}

// PredictHousingQuality predicts the housing quality score.
func (r *Registry) PredictHousingQuality(features map[string]float64) (float64, error) {
	return r.Predict(HousingQuality, features)
}

// ClassifyAssetOwnership returns the digital asset ownership band.
func (r *Registry) ClassifyAssetOwnership(features map[string]float64) (string, error) {
	return r.Classify(AssetOwnership, features)
}

// DistrictCluster returns the development cluster for a district profile.
func (r *Registry) DistrictCluster(features map[string]float64) (int, error) {
	return r.Cluster(DistrictClusters, features)
}

// HousingCluster returns the housing cluster for a district profile.
func (r *Registry) HousingCluster(features map[string]float64) (int, error) {
	return r.Cluster(HousingClusters, features)
}

// Features returns the ordered feature names of a model.
func (r *Registry) Features(name string) ([]string, error) {
	e, ok := r.Snapshot().Get(name)
	if !ok {
		return nil, &model.UntrainedModelError{Model: name}
	}
	return append([]string(nil), e.Features...), nil
}
