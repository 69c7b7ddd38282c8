package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/census-insights/internal/model"
)

var trainNoStore bool

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Run one training pass and report headline metrics",
	Long:  "Loads the census tables, trains every model, records the run and saves the model artifacts to models.dir.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "train", envOptions{store: !trainNoStore})
		if err != nil {
			return err
		}
		defer closeEnv(env)

		res, err := env.Train(ctx)
		if err != nil {
			return err
		}

		formatResults(os.Stdout, res)
		return nil
	},
}

func init() {
	trainCmd.Flags().BoolVar(&trainNoStore, "no-store", false, "skip recording the run in the store")
	rootCmd.AddCommand(trainCmd)
}

// formatResults writes one line per task to w.
func formatResults(out io.Writer, res *model.Results) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "TASK\tKIND\tMETRIC\tVALUE\tSAMPLES\tFEATURES")
	_, _ = fmt.Fprintln(w, "----\t----\t------\t-----\t-------\t--------")
	for _, name := range res.Names() {
		r := res.Tasks[name]
		if sk, ok := r.(*model.SkippedResult); ok {
			_, _ = fmt.Fprintf(w, "%s\tskipped\t%s\t\t\t\n", name, sk.Reason)
			continue
		}
		h := r.Headline()
		meta := r.Meta()
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d/%d\n",
			name, h.Kind, h.Metric, formatRate(h.Value), meta.Samples,
			len(meta.FeaturesUsed), meta.FeaturesDeclared,
		)
	}
	_ = w.Flush()
	_, _ = fmt.Fprintf(out, "\n%d districts, housing data: %t\n", res.Districts, res.WithHousing)
}

func formatRate(r model.Rate) string {
	if !r.Valid() {
		return "n/a"
	}
	return fmt.Sprintf("%.4f", float64(r))
}
