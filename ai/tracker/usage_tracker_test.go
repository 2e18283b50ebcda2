package tracker

import (
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entalign/kgmorph/db"
)

// setupTestDB creates an in-memory SQLite database with the usage schema.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, db.Migrate(conn, nil))

	return conn
}

func float64Ptr(f float64) *float64 { return &f }
func intPtr(i int) *int             { return &i }

func TestTrackUsage(t *testing.T) {
	db := setupTestDB(t)
	tracker := NewUsageTracker(db)

	now := time.Now()
	responseTime := now.Add(2 * time.Second)
	tokens := 150
	cost := 0.0005

	usage := &ModelUsage{
		RunID:             "run-1",
		OperationType:     "rename_entity",
		EntityID:          "e3",
		ModelName:         "openai/gpt-4o-mini",
		ModelProvider:     "openrouter",
		ModelConfig:       NewModelConfig(float64Ptr(0.2), intPtr(256)),
		RequestTimestamp:  now,
		ResponseTimestamp: &responseTime,
		TokensUsed:        &tokens,
		Cost:              &cost,
		Success:           true,
	}

	require.NoError(t, tracker.TrackUsage(usage))

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM llm_usage WHERE run_id = ?", "run-1").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestGetUsageStats(t *testing.T) {
	db := setupTestDB(t)
	tracker := NewUsageTracker(db)

	now := time.Now()
	tokens := 100
	cost := 0.001

	for i := 0; i < 3; i++ {
		usage := &ModelUsage{
			RunID:            "run-1",
			OperationType:    "synthesize_description",
			EntityID:         "e1",
			ModelName:        "openai/gpt-4o-mini",
			ModelProvider:    "openrouter",
			RequestTimestamp: now,
			TokensUsed:       &tokens,
			Cost:             &cost,
			Success:          i != 2,
		}
		require.NoError(t, tracker.TrackUsage(usage))
	}

	stats, err := tracker.GetUsageStats(now.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalRequests)
	assert.Equal(t, 2, stats.SuccessfulRequests)
	assert.InDelta(t, 2.0/3.0, stats.SuccessRate, 1e-9)
	assert.Equal(t, 300, stats.TotalTokens)
	assert.Equal(t, 1, stats.UniqueModels)
}

func TestGetRunBreakdown(t *testing.T) {
	db := setupTestDB(t)
	tracker := NewUsageTracker(db)

	now := time.Now()
	tokens := 50
	record := func(runID, op string) {
		require.NoError(t, tracker.TrackUsage(&ModelUsage{
			RunID:            runID,
			OperationType:    op,
			EntityID:         "e1",
			ModelName:        "openai/gpt-4o-mini",
			ModelProvider:    "openrouter",
			RequestTimestamp: now,
			TokensUsed:       &tokens,
			Success:          true,
		}))
	}
	record("run-1", "rename_entity")
	record("run-1", "rename_entity")
	record("run-1", "rename_relation")
	record("run-2", "rename_entity")

	breakdown, err := tracker.GetRunBreakdown("run-1")
	require.NoError(t, err)
	require.Len(t, breakdown, 2)
	assert.Equal(t, "rename_entity", breakdown[0].OperationType)
	assert.Equal(t, 2, breakdown[0].RequestCount)
	assert.Equal(t, 100, breakdown[0].TotalTokens)
	assert.Equal(t, "rename_relation", breakdown[1].OperationType)
}

func TestTrackUsageQueryShape(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	tracker := NewUsageTracker(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO llm_usage")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = tracker.TrackUsage(&ModelUsage{
		RunID:            "run-1",
		OperationType:    "rename_entity",
		EntityID:         "e1",
		ModelName:        "m",
		ModelProvider:    "openrouter",
		RequestTimestamp: time.Now(),
		Success:          true,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewModelConfig(t *testing.T) {
	assert.Nil(t, NewModelConfig(nil, nil))

	cfg := NewModelConfig(float64Ptr(0.2), intPtr(256))
	require.NotNil(t, cfg)
	assert.JSONEq(t, `{"temperature":0.2,"max_tokens":256}`, *cfg)
}
