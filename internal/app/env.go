// Package app holds the loaded data, trained models and backing services
// shared by the CLI commands and the HTTP server.
package app

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/census-insights/internal/chat"
	"github.com/sells-group/census-insights/internal/config"
	"github.com/sells-group/census-insights/internal/dataset"
	"github.com/sells-group/census-insights/internal/frame"
	"github.com/sells-group/census-insights/internal/housing"
	"github.com/sells-group/census-insights/internal/metrics"
	"github.com/sells-group/census-insights/internal/model"
	"github.com/sells-group/census-insights/internal/registry"
	"github.com/sells-group/census-insights/internal/store"
	"github.com/sells-group/census-insights/internal/training"
)

// ErrTrainingInProgress is returned when a training pass is requested while
// another is running.
var ErrTrainingInProgress = eris.New("app: training already in progress")

// Env is the service context. Store and Chat are optional.
type Env struct {
	Config     *config.Config
	Bundle     *dataset.Bundle
	Enriched   *frame.Frame
	Integrated *frame.Frame
	Registry   *registry.Registry
	Store      store.Store
	Chat       *chat.Service

	trainer  *training.Trainer
	results  atomic.Pointer[model.Results]
	training sync.Mutex
	bg       sync.WaitGroup
}

// New derives the enriched and integrated tables from a loaded bundle.
func New(cfg *config.Config, b *dataset.Bundle) (*Env, error) {
	key, err := housing.KeyFuncFor(cfg.Data.JoinKeys)
	if err != nil {
		return nil, err
	}
	e := &Env{
		Config:   cfg,
		Bundle:   b,
		Enriched: metrics.ComputeMetrics(b.District),
		Registry: registry.New(),
		trainer:  training.New(cfg.Training, key),
	}
	e.Integrated, err = e.trainer.Integrate(e.Enriched, b.Housing)
	if err != nil {
		return nil, eris.Wrap(err, "app: integrate housing")
	}
	return e, nil
}

// Load reads the configured inputs and builds an Env. With
// models.load_on_start set, persisted models are published when present.
func Load(ctx context.Context, cfg *config.Config) (*Env, error) {
	b, err := dataset.Load(ctx, dataset.PathsFromConfig(cfg.Data, cfg.Training.WithHousing))
	if err != nil {
		return nil, err
	}
	e, err := New(cfg, b)
	if err != nil {
		return nil, err
	}
	if cfg.Models.LoadOnStart {
		if err := e.LoadModels(cfg.Models.Dir); err != nil {
			zap.L().Warn("app: no persisted models loaded", zap.Error(err))
		}
	}
	return e, nil
}

// LoadModels publishes a snapshot read from dir.
func (e *Env) LoadModels(dir string) error {
	snap, err := registry.Load(dir)
	if err != nil {
		return err
	}
	e.Registry.Publish(snap)
	zap.L().Info("app: models loaded", zap.String("dir", dir), zap.Int("models", snap.Len()))
	return nil
}

// Ready reports whether models are available for inference.
func (e *Env) Ready() bool {
	return e.Registry.Ready()
}

// Results returns the latest training results, or nil before the first pass.
func (e *Env) Results() *model.Results {
	return e.results.Load()
}

// Train runs one training pass synchronously.
func (e *Env) Train(ctx context.Context) (*model.Results, error) {
	if !e.training.TryLock() {
		return nil, ErrTrainingInProgress
	}
	defer e.training.Unlock()
	return e.train(ctx)
}

// TrainAsync starts a training pass in the background. It fails immediately
// when a pass is already running.
func (e *Env) TrainAsync(ctx context.Context) error {
	if !e.training.TryLock() {
		return ErrTrainingInProgress
	}
	e.bg.Add(1)
	go func() {
		defer e.bg.Done()
		defer e.training.Unlock()
		if _, err := e.train(ctx); err != nil {
			zap.L().Error("app: background training failed", zap.Error(err))
		}
	}()
	return nil
}

// Wait blocks until background training has finished.
func (e *Env) Wait() {
	e.bg.Wait()
}

func (e *Env) train(ctx context.Context) (*model.Results, error) {
	var run *model.TrainingRun
	if e.Store != nil {
		var err error
		run, err = e.Store.CreateRun(ctx, e.Bundle.Housing != nil)
		if err != nil {
			return nil, eris.Wrap(err, "app: create run")
		}
	}

	res, snap, err := e.trainer.TrainAll(ctx, e.Enriched, e.Bundle.Housing)
	if err != nil {
		if run != nil {
			e.failRun(ctx, run.ID, err)
		}
		return nil, err
	}

	e.Registry.Publish(snap)
	e.results.Store(res)

	if e.Config.Models.Persist {
		if err := registry.Save(e.Config.Models.Dir, snap); err != nil {
			zap.L().Error("app: persist models", zap.String("dir", e.Config.Models.Dir), zap.Error(err))
		}
	}

	if run != nil {
		n, err := e.Store.SaveDistrictMetrics(ctx, run.ID, metrics.Rows(e.Enriched))
		if err != nil {
			e.failRun(ctx, run.ID, err)
			return res, eris.Wrap(err, "app: export district metrics")
		}
		if err := e.Store.CompleteRun(ctx, run.ID, res.Summary()); err != nil {
			e.failRun(ctx, run.ID, err)
			return res, eris.Wrap(err, "app: complete run")
		}
		zap.L().Info("app: run recorded", zap.String("run_id", run.ID), zap.Int64("district_rows", n))
	}

	zap.L().Info("app: training complete",
		zap.Int("districts", res.Districts),
		zap.Int("models", snap.Len()),
		zap.Bool("with_housing", res.WithHousing),
	)
	return res, nil
}

// failRun marks a run failed so it never stays in the running state.
// It survives cancellation of ctx.
func (e *Env) failRun(ctx context.Context, runID string, cause error) {
	if err := e.Store.FailRun(context.WithoutCancel(ctx), runID, cause.Error()); err != nil {
		zap.L().Error("app: record failed run", zap.String("run_id", runID), zap.Error(err))
	}
}

// Briefing builds the dataset context for the chat assistant.
func (e *Env) Briefing() *chat.Briefing {
	b := &chat.Briefing{Overview: metrics.ComputeOverview(e.Enriched, e.Bundle.Housing)}
	if ins, err := metrics.ComputeStateInsights(e.Enriched); err == nil {
		b.TopStates = ins.Population
	}
	if res := e.Results(); res != nil {
		b.Models = res.Summary()
	}
	return b
}
