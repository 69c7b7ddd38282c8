package main

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/census-insights/internal/registry"
)

// predictor runs one inference target against a registry.
type predictor struct {
	key string
	run func(reg *registry.Registry, features map[string]float64) (any, error)
}

// predictors are keyed by the target names used by the predict command.
var predictors = map[string]predictor{
	"literacy": {"predicted_literacy_rate", func(reg *registry.Registry, f map[string]float64) (any, error) {
		return reg.PredictLiteracy(f)
	}},
	"housing-quality": {"predicted_housing_quality", func(reg *registry.Registry, f map[string]float64) (any, error) {
		return reg.PredictHousingQuality(f)
	}},
	"asset-ownership": {"asset_ownership_class", func(reg *registry.Registry, f map[string]float64) (any, error) {
		return reg.ClassifyAssetOwnership(f)
	}},
	"district-cluster": {"cluster", func(reg *registry.Registry, f map[string]float64) (any, error) {
		return reg.DistrictCluster(f)
	}},
	"housing-cluster": {"cluster", func(reg *registry.Registry, f map[string]float64) (any, error) {
		return reg.HousingCluster(f)
	}},
}

var (
	predictFeatures []string
	predictModels   string
)

var predictCmd = &cobra.Command{
	Use:       "predict <literacy|housing-quality|asset-ownership|district-cluster|housing-cluster>",
	Short:     "Run a saved model on one feature vector",
	Long:      "Loads the artifacts written by train from --models (default models.dir) and prints the prediction. Features are passed as --feature name=value.",
	Args:      cobra.ExactArgs(1),
	ValidArgs: sortedKeys(predictors),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, ok := predictors[args[0]]
		if !ok {
			return eris.Errorf("predict: unknown target %q (want one of %s)", args[0], strings.Join(sortedKeys(predictors), ", "))
		}

		features, err := parseFeatures(predictFeatures)
		if err != nil {
			return err
		}

		dir := predictModels
		if dir == "" {
			dir = cfg.Models.Dir
		}
		snap, err := registry.Load(dir)
		if err != nil {
			return err
		}
		reg := registry.New()
		reg.Publish(snap)

		out, err := p.run(reg, features)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{p.key: out, "features_used": features})
	},
}

func init() {
	predictCmd.Flags().StringArrayVar(&predictFeatures, "feature", nil, "feature as name=value (repeatable)")
	predictCmd.Flags().StringVar(&predictModels, "models", "", "model artifact directory (default from config)")
	rootCmd.AddCommand(predictCmd)
}

// parseFeatures turns name=value pairs into a feature map.
func parseFeatures(pairs []string) (map[string]float64, error) {
	out := make(map[string]float64, len(pairs))
	for _, p := range pairs {
		name, raw, ok := strings.Cut(p, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, eris.Errorf("predict: feature %q is not name=value", p)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, eris.Wrapf(err, "predict: feature %s", name)
		}
		out[name] = v
	}
	return out, nil
}
