package metrics

// Question is one exploratory prompt and the output that best answers it.
type Question struct {
	Question    string `json:"question"`
	Output      string `json:"output"`
	Description string `json:"description"`
}

var questionBank = []Question{
	{
		Question:    "Which states contribute the highest share of India's total population?",
		Output:      "Table",
		Description: "Rank states by population using aggregated district totals.",
	},
	{
		Question:    "How does literacy rate correlate with worker participation at the district level?",
		Output:      "Scatter plot",
		Description: "Plot literacy percentage against worker participation rate with an urbanisation colour scale.",
	},
	{
		Question:    "What is the distribution of roof materials across rural housing stock?",
		Output:      "Bar chart",
		Description: "Summarise the mean share of roof material categories (rural subset).",
	},
	{
		Question:    "Which districts face the largest sanitation gaps (lack of in-premise latrines)?",
		Output:      "Table",
		Description: "Sort districts by sanitation gap metric derived from latrine coverage.",
	},
	{
		Question:    "How is internet access spread across states when normalised by total households?",
		Output:      "Bar chart",
		Description: "Compute household-weighted internet penetration per state.",
	},
	{
		Question:    "Which cooking fuels dominate urban households compared to rural ones?",
		Output:      "Grouped bar chart",
		Description: "Contrast mean cooking fuel shares split by Rural/Urban flag.",
	},
	{
		Question:    "How does asset ownership (TV, mobile, internet, vehicle) vary by state?",
		Output:      "Stacked bar chart",
		Description: "Aggregate asset ownership percentages per state and display comparisons.",
	},
	{
		Question:    "Which districts have the highest female-to-male sex ratio?",
		Output:      "Table",
		Description: "List top districts by computed sex ratio indicator.",
	},
	{
		Question:    "Where is the gap between rural and urban literacy widest?",
		Output:      "Bar chart",
		Description: "Calculate literacy difference between rural and urban households per district/state.",
	},
	{
		Question:    "What share of households live in dilapidated dwellings across states?",
		Output:      "Heatmap",
		Description: "Summarise dilapidated household percentage by Rural/Urban and state.",
	},
	{
		Question:    "Which districts report the highest proportion of households using LPG/PNG for cooking?",
		Output:      "Table",
		Description: "Rank districts by LPG/PNG adoption using housing dataset percentages.",
	},
	{
		Question:    "How does internet access relate to literacy at the state level?",
		Output:      "Scatter plot",
		Description: "Plot state-level literacy versus internet penetration with bubble size for population.",
	},
	{
		Question:    "Which states have the largest marginal worker populations?",
		Output:      "Bar chart",
		Description: "Sum marginal workers per state from district census data.",
	},
	{
		Question:    "How prevalent are non-permanent wall materials across districts?",
		Output:      "Choropleth map",
		Description: "Map percentage of non-brick/concrete wall materials to highlight vulnerability.",
	},
	{
		Question:    "What percentage of households access drinking water within premises versus away?",
		Output:      "Stacked bar chart",
		Description: "Aggregate water-source proximity categories by state.",
	},
	{
		Question:    "Which districts have the highest concentration of Scheduled Tribe populations?",
		Output:      "Table",
		Description: "Rank districts by share of ST population in total population.",
	},
	{
		Question:    "How does rural electrification compare with urban electrification by state?",
		Output:      "Dual line chart",
		Description: "Track electricity access percentages for rural vs urban households per state.",
	},
	{
		Question:    "Where are machine-made tiles most prevalent as roof material?",
		Output:      "Table",
		Description: "Identify top regions by mean share of machine-made tiles in housing records.",
	},
	{
		Question:    "Which states demonstrate the highest female literacy rates?",
		Output:      "Bar chart",
		Description: "Calculate female literacy share relative to female population per state.",
	},
	{
		Question:    "How does household size distribution vary between rural and urban areas?",
		Output:      "Violin plot",
		Description: "Visualise household size categories split by Rural/Urban flag.",
	},
	{
		Question:    "What is the relationship between tele-density and internet adoption?",
		Output:      "Scatter plot",
		Description: "Plot mobile phone access against internet penetration at state level.",
	},
	{
		Question:    "Which districts rely heavily on kerosene or other traditional fuels for cooking?",
		Output:      "Table",
		Description: "Highlight districts where non-clean fuels exceed a chosen threshold.",
	},
	{
		Question:    "How many households lack bathing facilities within premises across states?",
		Output:      "Horizontal bar chart",
		Description: "Aggregate counts of households without bathing facility and normalise by totals.",
	},
	{
		Question:    "Where is the urbanisation rate growing fastest relative to household counts?",
		Output:      "Line chart",
		Description: "Trend urban household ratios when multi-year data becomes available (placeholder for future).",
	},
	{
		Question:    "Which districts exhibit the highest percentage of graduate-educated residents?",
		Output:      "Table",
		Description: "Rank districts by share of graduate-level education among literate population.",
	},
	{
		Question:    "How does household asset ownership cluster together?",
		Output:      "Clustered heatmap",
		Description: "Perform hierarchical clustering on asset access percentages per state.",
	},
	{
		Question:    "What is the distribution of households by dwelling condition (good, livable, dilapidated)?",
		Output:      "Pie chart",
		Description: "Visualise overall share of dwelling conditions across India.",
	},
	{
		Question:    "Which states have the lowest workforce participation among women?",
		Output:      "Bar chart",
		Description: "Compute female worker participation as share of female population per state.",
	},
	{
		Question:    "How do separate kitchen facilities vary with fuel types?",
		Output:      "Mosaic plot",
		Description: "Cross-tabulate kitchen availability with primary cooking fuel categories.",
	},
	{
		Question:    "Where is the reliance on hand pumps for drinking water highest?",
		Output:      "Table",
		Description: "Identify districts with the greatest share of hand-pump usage in water sources.",
	},
	{
		Question:    "Which districts show the highest proportion of alternative latrine arrangements?",
		Output:      "Table",
		Description: "Rank based on alternative latrine facility usage (e.g., pit, service, open drain).",
	},
}

// QuestionBank returns the exploratory prompts listed in the analysis report.
func QuestionBank() []Question {
	return append([]Question(nil), questionBank...)
}
