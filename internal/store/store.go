package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/census-insights/internal/model"
)

// Store defines the persistence interface for training runs, chat sessions
// and exported district metrics.
type Store interface {
	// Training runs
	CreateRun(ctx context.Context, withHousing bool) (*model.TrainingRun, error)
	CompleteRun(ctx context.Context, runID string, summary *model.RunSummary) error
	FailRun(ctx context.Context, runID string, cause string) error
	GetRun(ctx context.Context, runID string) (*model.TrainingRun, error)
	ListRuns(ctx context.Context, filter model.RunFilter) ([]model.TrainingRun, error)
	SaveDistrictMetrics(ctx context.Context, runID string, rows []model.DistrictMetrics) (int64, error)

	// Chat
	CreateSession(ctx context.Context) (*model.ChatSession, error)
	GetSession(ctx context.Context, sessionID string) (*model.ChatSession, error)
	ListSessions(ctx context.Context, limit int) ([]model.ChatSession, error)
	AppendMessage(ctx context.Context, sessionID string, role model.ChatRole, content string) (*model.ChatMessage, error)
	ListMessages(ctx context.Context, sessionID string, limit int) ([]model.ChatMessage, error)
	SaveSummary(ctx context.Context, sessionID, summary string) error
	DeleteSession(ctx context.Context, sessionID string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Config selects and configures a store backend.
type Config struct {
	Driver      string
	DatabaseURL string
	Pool        *PoolConfig
}

// New opens the configured backend.
func New(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", "sqlite":
		return NewSQLite(cfg.DatabaseURL)
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL, cfg.Pool)
	}
	return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
}

const (
	defaultListLimit = 100
	runColumns       = `id, status, with_housing, summary, error, created_at, updated_at`
)

// metricColumns are the district_metrics columns written by SaveDistrictMetrics.
var metricColumns = []string{
	"run_id", "state", "district", "district_code", "population",
	"sex_ratio", "literacy_rate", "worker_participation_rate", "urbanisation_rate",
	"internet_penetration", "mobile_phone_access", "sanitation_gap",
}

// nullable maps an undefined rate to SQL NULL.
func nullable(r model.Rate) any {
	if !r.Valid() {
		return nil
	}
	return float64(r)
}

// metricRows converts rows for export. A repeated (state, district) pair
// keeps its first row.
func metricRows(runID string, rows []model.DistrictMetrics) [][]any {
	seen := make(map[[2]string]bool, len(rows))
	out := make([][]any, 0, len(rows))
	for _, m := range rows {
		key := [2]string{m.State, m.District}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, []any{
			runID, m.State, m.District, m.Code, m.Population,
			nullable(m.SexRatio), nullable(m.LiteracyRate), nullable(m.WorkerParticipationRate),
			nullable(m.UrbanisationRate), nullable(m.InternetPenetration),
			nullable(m.MobilePhoneAccess), nullable(m.SanitationGap),
		})
	}
	return out
}

func listLimit(n int) int {
	if n <= 0 {
		return defaultListLimit
	}
	return n
}
