package model

// DistrictMetrics is the typed view of one row of the enriched district table.
type DistrictMetrics struct {
	State                   string  `json:"state"`
	District                string  `json:"district"`
	Code                    string  `json:"district_code,omitempty"`
	Population              float64 `json:"population"`
	SexRatio                Rate    `json:"sex_ratio"`
	LiteracyRate            Rate    `json:"literacy_rate"`
	WorkerParticipationRate Rate    `json:"worker_participation_rate"`
	UrbanisationRate        Rate    `json:"urbanisation_rate"`
	InternetPenetration     Rate    `json:"internet_penetration"`
	MobilePhoneAccess       Rate    `json:"mobile_phone_access"`
	SanitationGap           Rate    `json:"sanitation_gap"`
}

// Priority ranks a policy intervention.
type Priority string

const (
	PriorityCritical Priority = "Critical"
	PriorityHigh     Priority = "High"
	PriorityMedium   Priority = "Medium"
)

// Intervention is one triggered policy rule.
type Intervention struct {
	Category       string   `json:"category"`
	Priority       Priority `json:"priority"`
	Intervention   string   `json:"intervention"`
	Reason         string   `json:"reason"`
	ExpectedImpact string   `json:"expected_impact"`
}

// CurrentMetrics holds the district values a recommendation was computed from.
type CurrentMetrics struct {
	LiteracyRate        Rate `json:"literacy_rate"`
	InternetPenetration Rate `json:"internet_penetration"`
	SanitationGap       Rate `json:"sanitation_gap"`
	UrbanisationRate    Rate `json:"urbanisation_rate"`
	MobilePhoneAccess   Rate `json:"mobile_phone_access"`
	WorkerParticipation Rate `json:"worker_participation"`
}

// Recommendation is the policy engine output for one district. It is computed
// per request and never persisted.
type Recommendation struct {
	District             string         `json:"district"`
	State                string         `json:"state"`
	Recommendations      []Intervention `json:"recommendations"`
	PriorityScore        int            `json:"priority_score"`
	TotalRecommendations int            `json:"total_recommendations"`
	CurrentMetrics       CurrentMetrics `json:"current_metrics"`
}
