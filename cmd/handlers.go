package main

import (
	"context"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sells-group/census-insights/internal/app"
	"github.com/sells-group/census-insights/internal/dataset"
	"github.com/sells-group/census-insights/internal/metrics"
	"github.com/sells-group/census-insights/internal/model"
	"github.com/sells-group/census-insights/internal/policy"
	"github.com/sells-group/census-insights/internal/training"
)

// handlers serves the REST API from an app.Env.
type handlers struct {
	env *app.Env
}

// taskAliases maps the hyphenated result paths onto task names.
var taskAliases = map[string]string{
	"literacy-prediction":        training.TaskLiteracy,
	"internet-prediction":        training.TaskInternet,
	"sanitation-classification":  training.TaskSanitation,
	"clustering":                 training.TaskDistrictClusters,
	"anomalies":                  training.TaskAnomalies,
	"pca":                        training.TaskPCA,
	"housing-quality-prediction": training.TaskHousingQuality,
	"asset-ownership":            training.TaskAssetOwnership,
	"housing-clustering":         training.TaskHousingClusters,
	"infrastructure-prediction":  training.TaskInfrastructure,
}

// clusterMetrics are the profile averages compared across district clusters.
var clusterMetrics = []string{"avg_literacy", "avg_urbanisation", "avg_internet", "avg_sanitation_gap"}

// -- data views --

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "healthy",
		"timestamp":    time.Now().UTC(),
		"models_ready": h.env.Ready(),
	})
}

func (h *handlers) overview(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, metrics.ComputeOverview(h.env.Enriched, h.env.Bundle.Housing))
}

func (h *handlers) states(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"states": metrics.States(h.env.Enriched)})
}

func (h *handlers) stateDetail(w http.ResponseWriter, r *http.Request) {
	d, ok := metrics.ComputeStateDetail(h.env.Enriched, chi.URLParam(r, "state"))
	if !ok {
		writeMessage(w, http.StatusNotFound, "State not found")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *handlers) stateInsights(w http.ResponseWriter, r *http.Request) {
	ins, err := metrics.ComputeStateInsights(h.env.Enriched)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ins)
}

func (h *handlers) demographics(w http.ResponseWriter, r *http.Request) {
	d, err := metrics.ComputeDemographics(h.env.Enriched)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *handlers) workforce(w http.ResponseWriter, r *http.Request) {
	wf, err := metrics.ComputeWorkforce(h.env.Enriched)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wf)
}

// housingResponse adds the houselisting material mixes when that table is loaded.
type housingResponse struct {
	metrics.HousingView
	Highlights *metrics.HousingHighlights `json:"highlights,omitempty"`
}

func (h *handlers) housing(w http.ResponseWriter, r *http.Request) {
	view, err := metrics.ComputeHousingView(h.env.Enriched)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := housingResponse{HousingView: view}
	if h.env.Bundle.Housing != nil {
		hl := metrics.ComputeHousingHighlights(h.env.Bundle.Housing)
		resp.Highlights = &hl
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) summary(w http.ResponseWriter, r *http.Request) {
	resp := map[string]dataset.Summary{"district": dataset.Summarise(h.env.Bundle.District)}
	if h.env.Bundle.Housing != nil {
		resp["housing"] = dataset.Summarise(h.env.Bundle.Housing)
	}
	writeJSON(w, http.StatusOK, resp)
}

// -- model results --

// results returns the latest results or writes a 503.
func (h *handlers) results(w http.ResponseWriter) *model.Results {
	res := h.env.Results()
	if res == nil {
		writeMessage(w, http.StatusServiceUnavailable, errNotTrained)
	}
	return res
}

// modelSummary is one row of the model overview.
type modelSummary struct {
	Name    string           `json:"name"`
	Type    model.ResultKind `json:"type"`
	Metric  string           `json:"metric,omitempty"`
	Value   model.Rate       `json:"value"`
	Samples int              `json:"samples"`
	Reason  string           `json:"reason,omitempty"`
}

func (h *handlers) mlOverview(w http.ResponseWriter, r *http.Request) {
	res := h.results(w)
	if res == nil {
		return
	}
	models := make(map[string]modelSummary, len(res.Tasks))
	trained := 0
	for _, name := range res.Names() {
		result := res.Tasks[name]
		hl := result.Headline()
		ms := modelSummary{
			Name:    result.Meta().ModelName,
			Type:    hl.Kind,
			Metric:  hl.Metric,
			Value:   hl.Value,
			Samples: result.Meta().Samples,
		}
		if sk, ok := result.(*model.SkippedResult); ok {
			ms.Reason = sk.Reason
		} else {
			trained++
		}
		models[name] = ms
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"models_trained": trained,
		"trained_at":     res.TrainedAt,
		"with_housing":   res.WithHousing,
		"districts":      res.Districts,
		"models":         models,
	})
}

func (h *handlers) mlResult(w http.ResponseWriter, r *http.Request) {
	res := h.results(w)
	if res == nil {
		return
	}
	task := chi.URLParam(r, "task")
	if alias, ok := taskAliases[task]; ok {
		task = alias
	}
	result := res.Get(task)
	if result == nil {
		writeError(w, r, &model.NotFoundError{Entity: "task", ID: task})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handlers) clusterComparison(w http.ResponseWriter, r *http.Request) {
	res := h.results(w)
	if res == nil {
		return
	}
	cr, ok := res.Get(training.TaskDistrictClusters).(*model.ClusteringResult)
	if !ok {
		writeMessage(w, http.StatusServiceUnavailable, "district clustering did not run")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"clusters": cr.Profiles,
		"metrics":  clusterMetrics,
	})
}

// -- policy --

func (h *handlers) recommendation(w http.ResponseWriter, r *http.Request) {
	rec, err := policy.Recommend(h.env.Enriched, chi.URLParam(r, "district"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *handlers) topRecommendations(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", h.env.Config.Policy.TopLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	top, analysed := policy.TopPriority(h.env.Enriched, limit)
	writeJSON(w, http.StatusOK, map[string]any{
		"top_priority_districts": top,
		"total_analyzed":         analysed,
	})
}

// -- training --

func (h *handlers) train(w http.ResponseWriter, r *http.Request) {
	if err := h.env.TrainAsync(context.WithoutCancel(r.Context())); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (h *handlers) listRuns(w http.ResponseWriter, r *http.Request) {
	if h.env.Store == nil {
		writeMessage(w, http.StatusServiceUnavailable, "store not configured")
		return
	}
	limit, err := intParam(r, "limit", 50)
	if err != nil {
		writeError(w, r, err)
		return
	}
	runs, err := h.env.Store.ListRuns(r.Context(), model.RunFilter{
		Status: model.RunStatus(r.URL.Query().Get("status")),
		Limit:  limit,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if runs == nil {
		runs = []model.TrainingRun{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (h *handlers) getRun(w http.ResponseWriter, r *http.Request) {
	if h.env.Store == nil {
		writeMessage(w, http.StatusServiceUnavailable, "store not configured")
		return
	}
	run, err := h.env.Store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// -- inference --

type predictRequest struct {
	Features map[string]float64 `json:"features"`
}

func (h *handlers) predict(name string) http.HandlerFunc {
	p := predictors[name]
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.env.Ready() {
			writeMessage(w, http.StatusServiceUnavailable, errNotTrained)
			return
		}
		var req predictRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		if len(req.Features) == 0 {
			writeError(w, r, badRequest("features are required"))
			return
		}
		out, err := p.run(h.env.Registry, req.Features)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			p.key:           out,
			"features_used": req.Features,
		})
	}
}

// intParam parses an optional positive integer query parameter.
func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, badRequest(name + " must be a non-negative integer")
	}
	return n, nil
}

// sortedKeys returns the keys of m in order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
