package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/census-insights/internal/model"
	"github.com/sells-group/census-insights/internal/policy"
)

var recommendTop int

var recommendCmd = &cobra.Command{
	Use:   "recommend [district]",
	Short: "Show policy interventions for a district or the highest priority districts",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if len(args) == 0 && recommendTop <= 0 {
			return eris.New("recommend: pass a district name or --top N")
		}

		env, err := initEnv(ctx, "train", envOptions{})
		if err != nil {
			return err
		}
		defer closeEnv(env)

		if len(args) == 1 {
			rec, err := policy.Recommend(env.Enriched, args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(rec)
		}

		top, analysed := policy.TopPriority(env.Enriched, recommendTop)
		formatPriorities(os.Stdout, top, analysed)
		return nil
	},
}

func init() {
	recommendCmd.Flags().IntVar(&recommendTop, "top", 0, "list the N highest priority districts")
	rootCmd.AddCommand(recommendCmd)
}

// formatPriorities writes a ranked table of recommendations to w.
func formatPriorities(out io.Writer, recs []*model.Recommendation, analysed int) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "RANK\tDISTRICT\tSTATE\tSCORE\tINTERVENTIONS")
	_, _ = fmt.Fprintln(w, "----\t--------\t-----\t-----\t-------------")
	for i, rec := range recs {
		cats := ""
		for j, iv := range rec.Recommendations {
			if j > 0 {
				cats += ", "
			}
			cats += iv.Category
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%d/%d\t%s\n", i+1, rec.District, rec.State, rec.PriorityScore, policy.MaxScore(), cats)
	}
	_ = w.Flush()
	_, _ = fmt.Fprintf(out, "\n%d districts analysed\n", analysed)
}
