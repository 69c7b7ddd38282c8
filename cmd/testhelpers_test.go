//go:build !integration

package main

import (
	"context"
	"fmt"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/census-insights/internal/app"
	"github.com/sells-group/census-insights/internal/config"
	"github.com/sells-group/census-insights/internal/dataset"
	"github.com/sells-group/census-insights/internal/frame"
	"github.com/sells-group/census-insights/internal/model"
	"github.com/sells-group/census-insights/internal/store"
)

// rawDistricts builds a raw district table. The first district is given a
// low literacy rate and poor sanitation so it always ranks first.
func rawDistricts(t *testing.T, n int) *frame.Frame {
	t.Helper()
	rng := rand.New(rand.NewSource(11))
	cols := map[string][]float64{}
	add := func(col string, v float64) { cols[col] = append(cols[col], v) }
	var states, dists []string

	for i := 0; i < n; i++ {
		states = append(states, fmt.Sprintf("State %d", i%4))
		dists = append(dists, fmt.Sprintf("District %02d", i))

		pop := 2e5 + rng.Float64()*2e6
		hh := pop / 5
		lit, latrine, inet := 0.6+rng.Float64()*0.3, 0.75+rng.Float64()*0.2, 0.2+rng.Float64()*0.2
		if i == 0 {
			lit, latrine, inet = 0.4, 0.2, 0.02
		}
		male := 0.5 + rng.Float64()*0.03
		add(model.ColDistrictCode, float64(i+1))
		add(model.ColPopulation, pop)
		add(model.ColMale, pop*male)
		add(model.ColFemale, pop*(1-male))
		add(model.ColLiterate, pop*lit)
		add(model.ColWorkers, pop*(0.36+rng.Float64()*0.1))
		add(model.ColMaleWorkers, pop*0.3)
		add(model.ColFemaleWorkers, pop*0.1)
		add(model.ColHouseholds, hh)
		add(model.ColUrbanHouseholds, hh*(0.1+rng.Float64()*0.6))
		add(model.ColInternet, hh*inet)
		add(model.ColMobile, hh*(0.5+rng.Float64()*0.4))
		add(model.ColTelevision, hh*rng.Float64()*0.6)
		add(model.ColComputer, hh*rng.Float64()*0.1)
		add(model.ColLatrine, hh*latrine)
	}

	f := frame.New()
	require.NoError(t, f.AddString(model.ColState, states))
	require.NoError(t, f.AddString(model.ColDistrict, dists))
	for _, c := range []string{
		model.ColDistrictCode, model.ColPopulation, model.ColMale, model.ColFemale,
		model.ColLiterate, model.ColWorkers, model.ColMaleWorkers, model.ColFemaleWorkers,
		model.ColHouseholds, model.ColUrbanHouseholds, model.ColInternet, model.ColMobile,
		model.ColTelevision, model.ColComputer, model.ColLatrine,
	} {
		require.NoError(t, f.AddFloat(c, cols[c]))
	}
	return f
}

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		Data:   config.DataConfig{JoinKeys: "exact"},
		Models: config.ModelsConfig{Dir: filepath.Join(t.TempDir(), "models"), Persist: true},
		Policy: config.PolicyConfig{TopLimit: 3},
		Training: config.TrainingConfig{
			Seed:             42,
			TestSize:         0.2,
			NEstimators:      8,
			MaxDepth:         4,
			KMeansRestarts:   2,
			DistrictClusters: 3,
			HousingClusters:  3,
			Contamination:    0.1,
			PCAComponents:    2,
			SanitationBins:   []float64{0, 20, 50, 100},
			AssetBins:        []float64{0, 20, 50, 100},
		},
	}
}

// newTestEnv builds an Env over 30 districts with a SQLite store.
func newTestEnv(t *testing.T) *app.Env {
	t.Helper()
	env, err := app.New(testConfig(t), &dataset.Bundle{District: rawDistricts(t, 30)})
	require.NoError(t, err)

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "cmd.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	env.Store = st
	return env
}

// newTrainedEnv is newTestEnv after one training pass.
func newTrainedEnv(t *testing.T) *app.Env {
	t.Helper()
	env := newTestEnv(t)
	_, err := env.Train(context.Background())
	require.NoError(t, err)
	return env
}
