package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/census-insights/internal/model"
)

func newTestSQLite(t *testing.T) Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() }) //nolint:errcheck
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func assertNotFound(t *testing.T, err error, entity string) {
	t.Helper()
	var nf *model.NotFoundError
	require.True(t, errors.As(err, &nf), "want NotFoundError, got %v", err)
	assert.Equal(t, entity, nf.Entity)
}

func storeTestSuite(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("CreateAndGetRun", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		run, err := s.CreateRun(ctx, true)
		require.NoError(t, err)
		assert.NotEmpty(t, run.ID)
		assert.Equal(t, model.RunStatusRunning, run.Status)

		got, err := s.GetRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, run.ID, got.ID)
		assert.Equal(t, model.RunStatusRunning, got.Status)
		assert.True(t, got.WithHousing)
		assert.Nil(t, got.Summary)
	})

	t.Run("CompleteRun", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		run, err := s.CreateRun(ctx, false)
		require.NoError(t, err)

		summary := &model.RunSummary{
			Districts: 640,
			Tasks: map[string]model.Headline{
				"literacy_prediction": {Kind: model.KindRegression, Metric: "r2_score", Value: 0.81, Samples: 640},
				"district_clustering": {Kind: model.KindClustering, Metric: "silhouette_score", Value: model.NaN(), Samples: 640},
			},
			Skipped: []string{"housing_clustering"},
		}
		require.NoError(t, s.CompleteRun(ctx, run.ID, summary))

		got, err := s.GetRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, model.RunStatusComplete, got.Status)
		require.NotNil(t, got.Summary)
		assert.Equal(t, 640, got.Summary.Districts)
		assert.InDelta(t, 0.81, float64(got.Summary.Tasks["literacy_prediction"].Value), 1e-9)
		assert.False(t, got.Summary.Tasks["district_clustering"].Value.Valid())
		assert.Equal(t, []string{"housing_clustering"}, got.Summary.Skipped)
	})

	t.Run("FailRun", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		run, err := s.CreateRun(ctx, false)
		require.NoError(t, err)
		require.NoError(t, s.FailRun(ctx, run.ID, "missing input files: districts.csv"))

		got, err := s.GetRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, model.RunStatusFailed, got.Status)
		assert.Equal(t, "missing input files: districts.csv", got.Error)
	})

	t.Run("RunNotFound", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.GetRun(ctx, "nonexistent-id")
		assertNotFound(t, err, "run")
		assertNotFound(t, s.CompleteRun(ctx, "nonexistent-id", &model.RunSummary{}), "run")
		assertNotFound(t, s.FailRun(ctx, "nonexistent-id", "x"), "run")
	})

	t.Run("ListRuns", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		for i := 0; i < 3; i++ {
			_, err := s.CreateRun(ctx, false)
			require.NoError(t, err)
		}
		done, err := s.CreateRun(ctx, true)
		require.NoError(t, err)
		require.NoError(t, s.CompleteRun(ctx, done.ID, &model.RunSummary{Districts: 1}))

		all, err := s.ListRuns(ctx, model.RunFilter{})
		require.NoError(t, err)
		assert.Len(t, all, 4)

		complete, err := s.ListRuns(ctx, model.RunFilter{Status: model.RunStatusComplete})
		require.NoError(t, err)
		require.Len(t, complete, 1)
		assert.Equal(t, done.ID, complete[0].ID)

		page, err := s.ListRuns(ctx, model.RunFilter{Limit: 2, Offset: 1})
		require.NoError(t, err)
		assert.Len(t, page, 2)
	})

	t.Run("ChatSessionLifecycle", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		cs, err := s.CreateSession(ctx)
		require.NoError(t, err)
		assert.NotEmpty(t, cs.ID)

		_, err = s.AppendMessage(ctx, cs.ID, model.ChatRoleUser, "Which state has the highest literacy?")
		require.NoError(t, err)
		_, err = s.AppendMessage(ctx, cs.ID, model.ChatRoleAssistant, "Kerala, at about 94%.")
		require.NoError(t, err)
		_, err = s.AppendMessage(ctx, cs.ID, model.ChatRoleUser, "And the lowest?")
		require.NoError(t, err)

		got, err := s.GetSession(ctx, cs.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, got.MessageCount)

		all, err := s.ListMessages(ctx, cs.ID, 0)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, model.ChatRoleUser, all[0].Role)
		assert.Equal(t, "And the lowest?", all[2].Content)

		// A limit keeps the most recent messages in chronological order.
		recent, err := s.ListMessages(ctx, cs.ID, 2)
		require.NoError(t, err)
		require.Len(t, recent, 2)
		assert.Equal(t, model.ChatRoleAssistant, recent[0].Role)
		assert.Equal(t, "And the lowest?", recent[1].Content)

		require.NoError(t, s.SaveSummary(ctx, cs.ID, "Literacy by state"))
		got, err = s.GetSession(ctx, cs.ID)
		require.NoError(t, err)
		assert.Equal(t, "Literacy by state", got.Summary)

		sessions, err := s.ListSessions(ctx, 10)
		require.NoError(t, err)
		assert.Len(t, sessions, 1)

		require.NoError(t, s.DeleteSession(ctx, cs.ID))
		_, err = s.GetSession(ctx, cs.ID)
		assertNotFound(t, err, "session")
		_, err = s.ListMessages(ctx, cs.ID, 0)
		assertNotFound(t, err, "session")
	})

	t.Run("ChatSessionNotFound", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.AppendMessage(ctx, "missing", model.ChatRoleUser, "hello")
		assertNotFound(t, err, "session")
		assertNotFound(t, s.SaveSummary(ctx, "missing", "x"), "session")
		assertNotFound(t, s.DeleteSession(ctx, "missing"), "session")
	})

	t.Run("EmptyMessageList", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		cs, err := s.CreateSession(ctx)
		require.NoError(t, err)
		msgs, err := s.ListMessages(ctx, cs.ID, 5)
		require.NoError(t, err)
		assert.NotNil(t, msgs)
		assert.Empty(t, msgs)
	})
}

func TestSQLiteStore(t *testing.T) {
	storeTestSuite(t, newTestSQLite)
}

func TestNewUnknownDriver(t *testing.T) {
	_, err := New(context.Background(), Config{Driver: "mysql"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown driver")
}

func TestMetricRowsKeepFirstDuplicate(t *testing.T) {
	rows := metricRows("run-1", []model.DistrictMetrics{
		{State: "Maharashtra", District: "Aurangabad", LiteracyRate: 79},
		{State: "Bihar", District: "Aurangabad", LiteracyRate: 70},
		{State: "Maharashtra", District: "Aurangabad", LiteracyRate: 10},
	})
	require.Len(t, rows, 2)
	assert.Equal(t, 79.0, rows[0][6])
	assert.Equal(t, "Bihar", rows[1][1])
	assert.Len(t, rows[0], len(metricColumns))
}

func TestNullable(t *testing.T) {
	assert.Nil(t, nullable(model.NaN()))
	assert.Equal(t, 12.5, nullable(12.5))
}
