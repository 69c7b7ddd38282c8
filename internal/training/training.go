// Package training runs the model training pass over the enriched district
// table and, when available, the houselisting aggregates.
package training

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/census-insights/internal/config"
	"github.com/sells-group/census-insights/internal/frame"
	"github.com/sells-group/census-insights/internal/housing"
	"github.com/sells-group/census-insights/internal/ml"
	"github.com/sells-group/census-insights/internal/model"
	"github.com/sells-group/census-insights/internal/registry"
)

// errSkip marks a task that could not run on the given input. The pass
// records it as a SkippedResult and continues.
type errSkip struct{ reason string }

func (e *errSkip) Error() string { return e.reason }

func skipf(format string, args ...any) error {
	return &errSkip{reason: fmt.Sprintf(format, args...)}
}

// Trainer runs training passes with fixed hyperparameters.
type Trainer struct {
	cfg config.TrainingConfig
	key frame.KeyFunc
	now func() time.Time
}

// New returns a Trainer. key normalises the district/housing join; nil
// means exact matching.
func New(cfg config.TrainingConfig, key frame.KeyFunc) *Trainer {
	if key == nil {
		key = housing.ExactKey
	}
	return &Trainer{cfg: cfg, key: key, now: time.Now}
}

// Integrate aggregates the raw houselisting table and joins it onto the
// enriched district table. It returns enriched unchanged when houses is nil.
func (t *Trainer) Integrate(enriched, houses *frame.Frame) (*frame.Frame, error) {
	if houses == nil {
		return enriched, nil
	}
	features, err := housing.PrepareFeatures(houses)
	if err != nil {
		return nil, err
	}
	return housing.Integrate(enriched, features, t.key)
}

// TrainAll trains the core models on enriched and, when houses is non-nil,
// the housing models on the integrated table. It returns the per-task
// results and a snapshot holding every model that trained.
func (t *Trainer) TrainAll(ctx context.Context, enriched, houses *frame.Frame) (*model.Results, *registry.Snapshot, error) {
	data, err := t.Integrate(enriched, houses)
	if err != nil {
		return nil, nil, eris.Wrap(err, "training: integrate housing")
	}

	res := &model.Results{
		Tasks:       make(map[string]model.Result),
		Districts:   data.Len(),
		WithHousing: houses != nil,
		TrainedAt:   t.now().UTC(),
	}
	var entries []*registry.Entry

	type step struct {
		def taskDef
		run func(context.Context, *frame.Frame, taskDef) (model.Result, *registry.Entry, error)
	}
	steps := []step{
		{literacyTask, t.regress},
		{internetTask, t.regress},
		{sanitationTask, t.classifyWith(t.cfg.SanitationBins)},
		{districtClusterTask, t.clusterWith(t.cfg.DistrictClusters)},
		{anomalyTask, t.detectAnomalies},
		{pcaTask, t.project},
	}
	if houses != nil {
		steps = append(steps,
			step{housingQualityTask, t.regress},
			step{assetOwnershipTask, t.classifyWith(t.cfg.AssetBins)},
			step{housingClusterTask, t.clusterWith(t.cfg.HousingClusters)},
			step{infrastructureTask, t.regress},
		)
	} else {
		for _, s := range []taskDef{housingQualityTask, assetOwnershipTask, housingClusterTask, infrastructureTask} {
			res.Tasks[s.task] = skipped(s, "housing data not loaded")
		}
	}

	for _, st := range steps {
		if err := ctx.Err(); err != nil {
			return nil, nil, eris.Wrap(err, "training: cancelled")
		}
		start := time.Now()
		r, entry, err := st.run(ctx, data, st.def)
		var skip *errSkip
		switch {
		case errors.As(err, &skip):
			zap.L().Warn("training: task skipped",
				zap.String("task", st.def.task),
				zap.String("reason", skip.reason),
			)
			res.Tasks[st.def.task] = skipped(st.def, skip.reason)
			continue
		case err != nil:
			return nil, nil, eris.Wrapf(err, "training: %s", st.def.task)
		}

		res.Tasks[st.def.task] = r
		entries = append(entries, entry)
		h := r.Headline()
		zap.L().Info("training: task complete",
			zap.String("task", st.def.task),
			zap.String("metric", h.Metric),
			zap.Float64("value", float64(h.Value)),
			zap.Int("samples", r.Meta().Samples),
			zap.Int("features", len(r.Meta().FeaturesUsed)),
			zap.Duration("elapsed", time.Since(start)),
		)
	}

	snap, err := registry.NewSnapshot(res.TrainedAt, entries...)
	if err != nil {
		return nil, nil, eris.Wrap(err, "training: build snapshot")
	}
	return res, snap, nil
}

func skipped(s taskDef, reason string) *model.SkippedResult {
	return &model.SkippedResult{
		Envelope: model.Envelope{ModelName: s.title, Task: s.task, Kind: model.KindSkipped, FeaturesDeclared: len(s.features)},
		Reason:   reason,
	}
}

// present returns the declared features that exist as numeric columns.
func present(f *frame.Frame, s taskDef) ([]string, error) {
	var used []string
	for _, c := range s.features {
		if f.Float(c) != nil {
			used = append(used, c)
		}
	}
	if len(used) < s.minFeatures || len(used) == 0 {
		return nil, skipf("insufficient features: %d of %d present, need %d", len(used), len(s.features), max(s.minFeatures, 1))
	}
	return used, nil
}

func (t *Trainer) envelope(s taskDef, kind model.ResultKind, samples int, used []string, importance []float64) model.Envelope {
	env := model.Envelope{
		ModelName:        s.title,
		Task:             s.task,
		Kind:             kind,
		Samples:          samples,
		FeaturesUsed:     used,
		FeaturesDeclared: len(s.features),
	}
	for _, c := range used {
		if s.housing != nil {
			for _, h := range s.housing {
				if h == c {
					env.HousingFeaturesIncluded++
				}
			}
		} else if housing.IsHousingColumn(c) {
			env.HousingFeaturesIncluded++
		}
	}
	if importance != nil {
		env.FeatureImportance = make(map[string]float64, len(used))
		for j, c := range used {
			env.FeatureImportance[c] = importance[j]
		}
	}
	return env
}

func (t *Trainer) forestOptions(classes int, d int) ml.ForestOptions {
	opts := ml.ForestOptions{
		Trees:    t.cfg.NEstimators,
		MaxDepth: t.cfg.MaxDepth,
		Classes:  classes,
		Seed:     t.cfg.Seed,
	}
	if classes > 0 {
		opts.MaxFeatures = ml.SqrtFeatures(d)
	}
	return opts
}

// split partitions X and y into train and test sets.
func (t *Trainer) split(X [][]float64, y []float64) (xTrain [][]float64, yTrain []float64, xTest [][]float64, yTest []float64, err error) {
	train, test := ml.TrainTestSplit(len(X), t.cfg.TestSize, t.cfg.Seed)
	if len(train) == 0 || len(test) == 0 {
		return nil, nil, nil, nil, skipf("too few rows to split: %d", len(X))
	}
	for _, i := range train {
		xTrain = append(xTrain, X[i])
		yTrain = append(yTrain, y[i])
	}
	for _, i := range test {
		xTest = append(xTest, X[i])
		yTest = append(yTest, y[i])
	}
	return xTrain, yTrain, xTest, yTest, nil
}

func (t *Trainer) regress(ctx context.Context, f *frame.Frame, s taskDef) (model.Result, *registry.Entry, error) {
	used, err := present(f, s)
	if err != nil {
		return nil, nil, err
	}
	if f.Float(s.target) == nil {
		return nil, nil, skipf("target column %s not present", s.target)
	}
	clean := f.DropNaN(append([]string{s.target}, used...)...)
	if clean.Len() < 2 {
		return nil, nil, skipf("too few complete rows: %d", clean.Len())
	}

	X, scaler, err := ml.PrepareFeatures(clean, used)
	if err != nil {
		return nil, nil, err
	}
	xTrain, yTrain, xTest, yTest, err := t.split(X, clean.Float(s.target))
	if err != nil {
		return nil, nil, err
	}
	forest, err := ml.FitForest(ctx, xTrain, yTrain, t.forestOptions(0, len(used)))
	if err != nil {
		return nil, nil, err
	}

	pred := forest.PredictAll(xTest)
	mse := ml.MSE(yTest, pred)
	r := &model.RegressionResult{
		Envelope:    t.envelope(s, model.KindRegression, clean.Len(), used, forest.Importance),
		MSE:         mse,
		RMSE:        math.Sqrt(mse),
		R2:          ml.R2(yTest, pred),
		TestSamples: len(yTest),
	}
	entry := &registry.Entry{Name: s.model, Kind: registry.KindRegressor, Features: used, Scaler: scaler, Forest: forest}
	return r, entry, nil
}

// binLabels names the bins of edges. Three bins use Low/Medium/High.
func binLabels(edges []float64) []string {
	n := len(edges) - 1
	if n == len(ml.RiskLabels) {
		return ml.RiskLabels
	}
	labels := make([]string, n)
	for i := range labels {
		labels[i] = fmt.Sprintf("(%g, %g]", edges[i], edges[i+1])
	}
	return labels
}

func (t *Trainer) classifyWith(edges []float64) func(context.Context, *frame.Frame, taskDef) (model.Result, *registry.Entry, error) {
	return func(ctx context.Context, f *frame.Frame, s taskDef) (model.Result, *registry.Entry, error) {
		if len(edges) < 2 {
			return nil, nil, skipf("no bin edges configured")
		}
		used, err := present(f, s)
		if err != nil {
			return nil, nil, err
		}
		if f.Float(s.target) == nil {
			return nil, nil, skipf("target column %s not present", s.target)
		}
		clean := f.DropNaN(append([]string{s.target}, used...)...)

		// Rows outside every bin have no label and are dropped.
		var keep []int
		for i, v := range clean.Float(s.target) {
			if ml.Bin(v, edges) >= 0 {
				keep = append(keep, i)
			}
		}
		clean = clean.Take(keep)
		if clean.Len() < 2 {
			return nil, nil, skipf("too few labelled rows: %d", clean.Len())
		}

		labels := binLabels(edges)
		y := make([]float64, clean.Len())
		for i, v := range clean.Float(s.target) {
			y[i] = float64(ml.Bin(v, edges))
		}

		X, scaler, err := ml.PrepareFeatures(clean, used)
		if err != nil {
			return nil, nil, err
		}
		xTrain, yTrain, xTest, yTest, err := t.split(X, y)
		if err != nil {
			return nil, nil, err
		}
		forest, err := ml.FitForest(ctx, xTrain, yTrain, t.forestOptions(len(labels), len(used)))
		if err != nil {
			return nil, nil, err
		}

		dist := make(map[string]int)
		for _, v := range yTest {
			dist[labels[int(v)]]++
		}
		r := &model.ClassificationResult{
			Envelope:          t.envelope(s, model.KindClassification, clean.Len(), used, forest.Importance),
			Accuracy:          ml.Accuracy(yTest, forest.PredictAll(xTest)),
			Classes:           labels,
			ClassDistribution: dist,
			TestSamples:       len(yTest),
		}
		entry := &registry.Entry{Name: s.model, Kind: registry.KindClassifier, Features: used, Classes: labels, Scaler: scaler, Forest: forest}
		return r, entry, nil
	}
}

func (t *Trainer) clusterWith(k int) func(context.Context, *frame.Frame, taskDef) (model.Result, *registry.Entry, error) {
	return func(_ context.Context, f *frame.Frame, s taskDef) (model.Result, *registry.Entry, error) {
		used, err := present(f, s)
		if err != nil {
			return nil, nil, err
		}
		clean := f.DropNaN(used...)
		if clean.Len() < k {
			return nil, nil, skipf("%d complete rows for %d clusters", clean.Len(), k)
		}

		X, scaler, err := ml.PrepareFeatures(clean, used)
		if err != nil {
			return nil, nil, err
		}
		km, labels, err := ml.FitKMeans(X, ml.KMeansOptions{K: k, Restarts: t.cfg.KMeansRestarts, Seed: t.cfg.Seed})
		if err != nil {
			return nil, nil, err
		}
		sil, ok := ml.Silhouette(X, labels)

		members := make([][]int, k)
		for i, l := range labels {
			members[l] = append(members[l], i)
		}
		profiles := make([]model.ClusterProfile, k)
		for c := range profiles {
			sub := clean.Take(members[c])
			p := model.ClusterProfile{
				ClusterID: c,
				Size:      sub.Len(),
				Averages:  make(map[string]model.Rate, len(s.profile)),
				Districts: []string{},
			}
			for key, col := range s.profile {
				p.Averages[key] = model.Rate(frame.Mean(sub.Float(col)))
			}
			for i := 0; i < sub.Len() && i < maxClusterDistricts; i++ {
				p.Districts = append(p.Districts, sub.Text(model.ColDistrict, i))
			}
			profiles[c] = p
		}
		if !ok {
			zap.L().Warn("training: degenerate clustering",
				zap.String("task", s.task),
				zap.Int("rows", clean.Len()),
			)
		}

		r := &model.ClusteringResult{
			Envelope:       t.envelope(s, model.KindClustering, clean.Len(), used, nil),
			NClusters:      k,
			Silhouette:     model.Rate(sil),
			Inertia:        km.Inertia,
			Degenerate:     !ok,
			Profiles:       profiles,
			TotalDistricts: clean.Len(),
		}
		entry := &registry.Entry{Name: s.model, Kind: registry.KindClusterer, Features: used, Scaler: scaler, KMeans: km}
		return r, entry, nil
	}
}

func (t *Trainer) detectAnomalies(_ context.Context, f *frame.Frame, s taskDef) (model.Result, *registry.Entry, error) {
	used, err := present(f, s)
	if err != nil {
		return nil, nil, err
	}
	clean := f.DropNaN(append([]string{model.ColDistrict, model.ColState}, used...)...)
	if clean.Len() < 2 {
		return nil, nil, skipf("too few complete rows: %d", clean.Len())
	}

	X, scaler, err := ml.PrepareFeatures(clean, used)
	if err != nil {
		return nil, nil, err
	}
	iso, err := ml.FitIsolationForest(X, ml.IsolationOptions{
		Trees:         t.cfg.NEstimators,
		MaxSamples:    256,
		Contamination: t.cfg.Contamination,
		Seed:          t.cfg.Seed,
	})
	if err != nil {
		return nil, nil, err
	}

	r := &model.AnomalyResult{
		Envelope:       t.envelope(s, model.KindAnomaly, clean.Len(), used, nil),
		TotalDistricts: clean.Len(),
		Anomalies:      []model.Anomaly{},
	}
	for i, row := range X {
		if iso.Predict(row) != -1 {
			continue
		}
		r.AnomaliesDetected++
		if len(r.Anomalies) < maxAnomalies {
			r.Anomalies = append(r.Anomalies, model.Anomaly{
				District:            clean.Text(model.ColDistrict, i),
				State:               clean.Text(model.ColState, i),
				Score:               iso.Score(row),
				LiteracyRate:        model.Rate(clean.Value(model.ColLiteracyRate, i)),
				UrbanisationRate:    model.Rate(clean.Value(model.ColUrbanisationRate, i)),
				InternetPenetration: model.Rate(clean.Value(model.ColInternetPenetration, i)),
				SanitationGap:       model.Rate(clean.Value(model.ColSanitationGap, i)),
			})
		}
	}
	r.AnomalyPercentage = float64(r.AnomaliesDetected) / float64(clean.Len()) * 100

	entry := &registry.Entry{Name: s.model, Kind: registry.KindAnomaly, Features: used, Scaler: scaler, Isolation: iso}
	return r, entry, nil
}

func (t *Trainer) project(_ context.Context, f *frame.Frame, s taskDef) (model.Result, *registry.Entry, error) {
	used, err := present(f, s)
	if err != nil {
		return nil, nil, err
	}
	clean := f.DropNaN(used...)
	k := t.cfg.PCAComponents
	if clean.Len() <= k {
		return nil, nil, skipf("too few complete rows: %d", clean.Len())
	}

	X, scaler, err := ml.PrepareFeatures(clean, used)
	if err != nil {
		return nil, nil, err
	}
	pca, err := ml.FitPCA(X, k)
	if err != nil {
		return nil, nil, err
	}

	r := &model.ProjectionResult{
		Envelope:               t.envelope(s, model.KindProjection, clean.Len(), used, nil),
		ExplainedVariance:      pca.ExplainedVarianceRatio,
		TotalVarianceExplained: pca.TotalExplained(),
		Loadings:               make(map[string][]float64, len(used)),
	}
	for j, c := range used {
		load := make([]float64, len(pca.Components))
		for comp := range pca.Components {
			load[comp] = pca.Components[comp][j]
		}
		r.Loadings[c] = load
	}
	n := min(len(X), maxProjectedDistricts)
	coords, err := pca.Transform(X[:n])
	if err != nil {
		return nil, nil, err
	}
	for i, c := range coords {
		r.Points = append(r.Points, model.ProjectedPoint{
			District: clean.Text(model.ColDistrict, i),
			State:    clean.Text(model.ColState, i),
			Coords:   c,
		})
	}

	entry := &registry.Entry{Name: s.model, Kind: registry.KindProjection, Features: used, Scaler: scaler, PCA: pca}
	return r, entry, nil
}
