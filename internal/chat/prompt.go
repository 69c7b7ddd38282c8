package chat

import (
	"fmt"
	"strings"

	"github.com/sells-group/census-insights/internal/metrics"
	"github.com/sells-group/census-insights/internal/model"
)

// Briefing is the dataset context the assistant answers from.
type Briefing struct {
	Overview  metrics.Overview
	TopStates []metrics.StateValue
	Models    *model.RunSummary
}

const maxBriefingStates = 5

const rolePrompt = `You are a data analyst for the India Census 2011 district dataset.
Answer only from the dataset context below and say "This information is not available in the Census 2011 dataset" when it does not cover the question.
Attribute figures to Census 2011 India data. Use specific numbers, compare states or districts where relevant, and keep answers concise.
Do not discuss post-2011 events or make predictions beyond the trained models listed.`

// SystemPrompt renders the role instructions followed by the dataset context.
func SystemPrompt(b *Briefing) string {
	var sb strings.Builder
	sb.WriteString(rolePrompt)
	sb.WriteString("\n\n# Dataset context\n")
	if b == nil {
		sb.WriteString("No dataset is loaded.\n")
		return sb.String()
	}

	o := b.Overview
	fmt.Fprintf(&sb, "- District records: %d (%d columns)\n", o.DistrictRows, o.DistrictColumns)
	if o.HousingRows > 0 {
		fmt.Fprintf(&sb, "- Houselisting records: %d (%d columns)\n", o.HousingRows, o.HousingColumns)
	}
	fmt.Fprintf(&sb, "- States/UTs: %d, districts: %d\n", o.TotalStates, o.TotalDistricts)
	fmt.Fprintf(&sb, "- Total population: %.0f\n", o.TotalPopulation)
	fmt.Fprintf(&sb, "- Average literacy rate: %s%%\n", formatRate(o.AvgLiteracyRate))
	fmt.Fprintf(&sb, "- Average sex ratio: %s females per 1000 males\n", formatRate(o.AvgSexRatio))
	fmt.Fprintf(&sb, "- Average urbanisation: %s%%\n", formatRate(o.AvgUrbanisation))
	fmt.Fprintf(&sb, "- Average internet penetration: %s%%\n", formatRate(o.AvgInternet))
	fmt.Fprintf(&sb, "- Average sanitation gap: %s%%\n", formatRate(o.AvgSanitationGap))
	fmt.Fprintf(&sb, "- Average worker participation: %s%%\n", formatRate(o.AvgWorkerParticipation))

	if len(b.TopStates) > 0 {
		sb.WriteString("\n## Top states by population\n")
		for i, s := range b.TopStates {
			if i == maxBriefingStates {
				break
			}
			fmt.Fprintf(&sb, "%d. %s: %.0f\n", i+1, s.State, float64(s.Value))
		}
	}

	if b.Models != nil && len(b.Models.Tasks) > 0 {
		sb.WriteString("\n## Trained models\n")
		for _, name := range sortedTasks(b.Models) {
			h := b.Models.Tasks[name]
			fmt.Fprintf(&sb, "- %s: %s %s (%d samples)\n", name, h.Metric, formatRate(h.Value), h.Samples)
		}
	}
	return sb.String()
}

// summaryPrompt asks for a short summary of a transcript.
func summaryPrompt(history []model.ChatMessage) string {
	var sb strings.Builder
	sb.WriteString("Summarise the following conversation about India Census 2011 data.\n")
	sb.WriteString("Cover the main topics, the key statistics mentioned and any findings. Keep it to 3-5 short paragraphs.\n\n")
	q := 0
	for _, m := range history {
		switch m.Role {
		case model.ChatRoleUser:
			q++
			fmt.Fprintf(&sb, "Q%d: %s\n", q, m.Content)
		case model.ChatRoleAssistant:
			fmt.Fprintf(&sb, "A%d: %s\n\n", q, m.Content)
		}
	}
	return sb.String()
}

func formatRate(r model.Rate) string {
	if !r.Valid() {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", float64(r))
}
