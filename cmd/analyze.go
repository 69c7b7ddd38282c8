package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/census-insights/internal/app"
	"github.com/sells-group/census-insights/internal/dataset"
	"github.com/sells-group/census-insights/internal/metrics"
)

var (
	analyzeTop    int
	analyzeJSON   bool
	analyzeReport string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Print state insights, housing highlights and a data summary",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "train", envOptions{})
		if err != nil {
			return err
		}
		defer closeEnv(env)

		rep, err := buildAnalysis(env, analyzeTop)
		if err != nil {
			return err
		}

		if analyzeReport != "" {
			if err := writeReport(analyzeReport, rep); err != nil {
				return err
			}
		}

		if analyzeJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(rep)
		}
		formatAnalysis(os.Stdout, rep)
		return nil
	},
}

func init() {
	analyzeCmd.Flags().IntVar(&analyzeTop, "top", 5, "entries shown per ranking")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "print the analysis as JSON")
	analyzeCmd.Flags().StringVar(&analyzeReport, "report", "", "also write a Markdown report to this path")
	rootCmd.AddCommand(analyzeCmd)
}

// analysis is the output of the analyze command.
type analysis struct {
	Overview      metrics.Overview           `json:"overview"`
	States        *metrics.StateInsights     `json:"state_insights"`
	Highlights    *metrics.HousingHighlights `json:"housing_highlights,omitempty"`
	DistrictTable dataset.Summary            `json:"district_summary"`
	HousingTable  *dataset.Summary           `json:"housing_summary,omitempty"`
}

func buildAnalysis(env *app.Env, top int) (*analysis, error) {
	ins, err := metrics.ComputeStateInsights(env.Enriched)
	if err != nil {
		return nil, err
	}
	ins.Population = headOf(ins.Population, top)
	ins.LiteracyRate = headOf(ins.LiteracyRate, top)
	ins.InternetPenetration = headOf(ins.InternetPenetration, top)
	ins.SanitationGap = headOf(ins.SanitationGap, top)

	rep := &analysis{
		Overview:      metrics.ComputeOverview(env.Enriched, env.Bundle.Housing),
		States:        ins,
		DistrictTable: dataset.Summarise(env.Bundle.District),
	}
	if env.Bundle.Housing != nil {
		hl := metrics.ComputeHousingHighlights(env.Bundle.Housing)
		hl.RoofMix = headOf(hl.RoofMix, top)
		hl.WallMix = headOf(hl.WallMix, top)
		hl.CookingMix = headOf(hl.CookingMix, top)
		rep.Highlights = &hl
		hs := dataset.Summarise(env.Bundle.Housing)
		rep.HousingTable = &hs
	}
	return rep, nil
}

func headOf[T any](s []T, n int) []T {
	if n > 0 && len(s) > n {
		return s[:n]
	}
	return s
}

func formatAnalysis(out io.Writer, rep *analysis) {
	o := rep.Overview
	_, _ = fmt.Fprintf(out, "%d districts in %d states, population %.0f\n", o.TotalDistricts, o.TotalStates, o.TotalPopulation)
	_, _ = fmt.Fprintf(out, "Average literacy %s, internet %s, sanitation gap %s\n\n",
		formatRate(o.AvgLiteracyRate), formatRate(o.AvgInternet), formatRate(o.AvgSanitationGap))

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, series := range []string{"population", "literacy_rate", "internet_penetration", "sanitation_gap"} {
		_, _ = fmt.Fprintf(w, "%s\t\n", series)
		for i, sv := range rep.States.Series(series) {
			_, _ = fmt.Fprintf(w, "  %d. %s\t%s\n", i+1, sv.State, formatRate(sv.Value))
		}
	}
	_ = w.Flush()

	if rep.Highlights != nil {
		_, _ = fmt.Fprintln(out, "\nHousing highlights")
		for _, mix := range []struct {
			label  string
			shares []metrics.Share
		}{
			{"roof", rep.Highlights.RoofMix},
			{"wall", rep.Highlights.WallMix},
			{"cooking", rep.Highlights.CookingMix},
		} {
			for _, s := range mix.shares {
				_, _ = fmt.Fprintf(out, "  %s: %s %s\n", mix.label, s.Category, formatRate(s.Value))
			}
		}
	}

	d := rep.DistrictTable
	_, _ = fmt.Fprintf(out, "\nDistrict table: %d rows, %d columns, %d duplicate rows, %d columns with missing values\n",
		d.Rows, d.Columns, d.DuplicateRows, len(d.MissingValues))
	if h := rep.HousingTable; h != nil {
		_, _ = fmt.Fprintf(out, "Housing table: %d rows, %d columns, %d duplicate rows, %d columns with missing values\n",
			h.Rows, h.Columns, h.DuplicateRows, len(h.MissingValues))
	}
}
