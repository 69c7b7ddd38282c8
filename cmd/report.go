package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/census-insights/internal/dataset"
	"github.com/sells-group/census-insights/internal/metrics"
)

// writeReport renders rep as Markdown and writes it to path.
func writeReport(path string, rep *analysis) error {
	var buf bytes.Buffer
	formatReport(&buf, rep, metrics.QuestionBank())

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrapf(err, "analyze: create %s", dir)
		}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return eris.Wrapf(err, "analyze: write report %s", path)
	}
	zap.L().Info("analyze: report written", zap.String("path", path), zap.Int("bytes", buf.Len()))
	return nil
}

func formatReport(out io.Writer, rep *analysis, bank []metrics.Question) {
	_, _ = fmt.Fprint(out, "# Census & Housing Deep-dive\n\n")

	section(out, "Overview")
	_, _ = fmt.Fprint(out, "District census indicators joined with the housing stock table.\n\n")
	o := rep.Overview
	_, _ = fmt.Fprintf(out, "* %d districts in %d states, population %.0f\n", o.TotalDistricts, o.TotalStates, o.TotalPopulation)
	_, _ = fmt.Fprintf(out, "* District dataset: %d rows x %d columns\n", rep.DistrictTable.Rows, rep.DistrictTable.Columns)
	if h := rep.HousingTable; h != nil {
		_, _ = fmt.Fprintf(out, "* Housing dataset: %d rows x %d columns\n", h.Rows, h.Columns)
	}
	_, _ = fmt.Fprintln(out)

	section(out, "Key state-level insights")
	for _, t := range []struct {
		title, series string
	}{
		{"Most populous states", "population"},
		{"Literacy leaders", "literacy_rate"},
		{"Highest internet penetration", "internet_penetration"},
		{"Lowest sanitation gap", "sanitation_gap"},
	} {
		var rows [][]string
		for _, sv := range rep.States.Series(t.series) {
			rows = append(rows, []string{sv.State, formatRate(sv.Value)})
		}
		_, _ = fmt.Fprintf(out, "%s:\n\n", t.title)
		mdTable(out, []string{"State", t.series}, rows)
	}

	if hl := rep.Highlights; hl != nil {
		section(out, "Housing fabric & amenities")
		for _, mix := range []struct {
			title  string
			shares []metrics.Share
		}{
			{"Roof materials", hl.RoofMix},
			{"Wall materials", hl.WallMix},
			{"Cooking fuels", hl.CookingMix},
		} {
			var rows [][]string
			for _, s := range mix.shares {
				rows = append(rows, []string{s.Category, formatRate(s.Value)})
			}
			_, _ = fmt.Fprintf(out, "%s:\n\n", mix.title)
			mdTable(out, []string{"Category", "Mean share"}, rows)
		}
	}

	section(out, fmt.Sprintf("Exploratory question bank (%d prompts)", len(bank)))
	_, _ = fmt.Fprint(out, "Prompts to pose to the chat assistant or the prediction API.\n\n")
	rows := make([][]string, len(bank))
	for i, q := range bank {
		rows[i] = []string{fmt.Sprint(i + 1), q.Question, q.Output, q.Description}
	}
	mdTable(out, []string{"#", "Question", "Output", "Description"}, rows)

	section(out, "Data quality notes")
	missing := func(label string, s *dataset.Summary) {
		if s == nil || len(s.MissingValues) == 0 {
			return
		}
		rows := make([][]string, len(s.MissingValues))
		for i, m := range s.MissingValues {
			rows[i] = []string{m.Column, fmt.Sprint(m.Missing)}
		}
		_, _ = fmt.Fprintf(out, "%s:\n\n", label)
		mdTable(out, []string{"Column", "Missing"}, rows)
	}
	if len(rep.DistrictTable.MissingValues) == 0 && (rep.HousingTable == nil || len(rep.HousingTable.MissingValues) == 0) {
		_, _ = fmt.Fprint(out, "No missing values detected in the supplied datasets.\n\n")
	} else {
		_, _ = fmt.Fprint(out, "Columns with missing values:\n\n")
		missing("District dataset", &rep.DistrictTable)
		missing("Housing dataset", rep.HousingTable)
	}
	if d := rep.DistrictTable.DuplicateRows; d > 0 {
		_, _ = fmt.Fprintf(out, "District dataset has %d fully duplicated rows.\n\n", d)
	}
	if h := rep.HousingTable; h != nil && h.DuplicateRows > 0 {
		_, _ = fmt.Fprintf(out, "Housing dataset has %d fully duplicated rows.\n\n", h.DuplicateRows)
	}
}

func section(out io.Writer, title string) {
	_, _ = fmt.Fprintf(out, "## %s\n\n", title)
}

// mdTable writes a pipe table. Pipes inside cells are escaped.
func mdTable(out io.Writer, header []string, rows [][]string) {
	cell := strings.NewReplacer("|", `\|`, "\n", " ")
	line := func(cells []string) {
		esc := make([]string, len(cells))
		for i, c := range cells {
			esc[i] = cell.Replace(c)
		}
		_, _ = fmt.Fprintf(out, "| %s |\n", strings.Join(esc, " | "))
	}
	line(header)
	sep := make([]string, len(header))
	for i := range sep {
		sep[i] = "---"
	}
	line(sep)
	for _, r := range rows {
		line(r)
	}
	_, _ = fmt.Fprintln(out)
}
