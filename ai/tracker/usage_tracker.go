// Package tracker records LLM usage for perturbation runs in SQLite.
package tracker

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/entalign/kgmorph/db"
	"github.com/entalign/kgmorph/errors"
)

// ModelUsage is one recorded LLM call made during a perturbation run.
type ModelUsage struct {
	ID                int        `json:"id" db:"id"`
	RunID             string     `json:"run_id" db:"run_id"`
	OperationType     string     `json:"operation_type" db:"operation_type"`
	EntityID          string     `json:"entity_id" db:"entity_id"`
	ModelName         string     `json:"model_name" db:"model_name"`
	ModelProvider     string     `json:"model_provider" db:"model_provider"`
	ModelConfig       *string    `json:"model_config,omitempty" db:"model_config"`
	RequestTimestamp  time.Time  `json:"request_timestamp" db:"request_timestamp"`
	ResponseTimestamp *time.Time `json:"response_timestamp,omitempty" db:"response_timestamp"`
	TokensUsed        *int       `json:"tokens_used,omitempty" db:"tokens_used"`
	Cost              *float64   `json:"cost,omitempty" db:"cost"`
	Success           bool       `json:"success" db:"success"`
	ErrorMessage      *string    `json:"error_message,omitempty" db:"error_message"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
}

// ModelConfig captures the sampling parameters a request was made with.
type ModelConfig struct {
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
}

// UsageTracker persists LLM usage records.
type UsageTracker struct {
	db *sql.DB
}

// NewUsageTracker wraps an existing database handle.
func NewUsageTracker(db *sql.DB) *UsageTracker {
	return &UsageTracker{db: db}
}

// Open opens (creating if needed) a SQLite usage database at path and
// ensures the schema is migrated.
func Open(path string) (*UsageTracker, error) {
	conn, err := db.Open(path, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open usage database %s", path)
	}
	if err := db.Migrate(conn, nil); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "failed to migrate usage schema")
	}
	return &UsageTracker{db: conn}, nil
}

// Close closes the underlying database.
func (t *UsageTracker) Close() error {
	return t.db.Close()
}

// TrackUsage records one LLM call.
func (t *UsageTracker) TrackUsage(usage *ModelUsage) error {
	query := `
		INSERT INTO llm_usage (
			run_id, operation_type, entity_id, model_name, model_provider,
			model_config, request_timestamp, response_timestamp, tokens_used,
			cost, success, error_message
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := t.db.Exec(query,
		usage.RunID, usage.OperationType, usage.EntityID,
		usage.ModelName, usage.ModelProvider, usage.ModelConfig,
		usage.RequestTimestamp, usage.ResponseTimestamp, usage.TokensUsed,
		usage.Cost, usage.Success, usage.ErrorMessage,
	)

	return err
}

// UsageStats aggregates usage over a time window.
type UsageStats struct {
	TotalRequests      int     `json:"total_requests"`
	SuccessfulRequests int     `json:"successful_requests"`
	SuccessRate        float64 `json:"success_rate"`
	TotalTokens        int     `json:"total_tokens"`
	TotalCost          float64 `json:"total_cost"`
	UniqueModels       int     `json:"unique_models"`
}

// GetUsageStats returns aggregate statistics for calls since the given time.
func (t *UsageTracker) GetUsageStats(since time.Time) (*UsageStats, error) {
	query := `
		SELECT
			COUNT(*) as total_requests,
			COUNT(CASE WHEN success = 1 THEN 1 END) as successful_requests,
			COALESCE(SUM(COALESCE(tokens_used, 0)), 0) as total_tokens,
			COALESCE(SUM(COALESCE(cost, 0)), 0) as total_cost,
			COUNT(DISTINCT model_name) as unique_models
		FROM llm_usage
		WHERE request_timestamp >= ?`

	var stats UsageStats
	err := t.db.QueryRow(query, since).Scan(
		&stats.TotalRequests, &stats.SuccessfulRequests,
		&stats.TotalTokens, &stats.TotalCost, &stats.UniqueModels,
	)
	if err != nil {
		return nil, err
	}

	if stats.TotalRequests > 0 {
		stats.SuccessRate = float64(stats.SuccessfulRequests) / float64(stats.TotalRequests)
	}

	return &stats, nil
}

// RunBreakdown summarizes one perturbation run's usage by operation.
type RunBreakdown struct {
	OperationType string  `json:"operation_type"`
	RequestCount  int     `json:"request_count"`
	TotalTokens   int     `json:"total_tokens"`
	TotalCost     float64 `json:"total_cost"`
}

// GetRunBreakdown returns per-operation usage for a single run.
func (t *UsageTracker) GetRunBreakdown(runID string) ([]RunBreakdown, error) {
	query := `
		SELECT
			operation_type,
			COUNT(*) as request_count,
			SUM(COALESCE(tokens_used, 0)) as total_tokens,
			SUM(COALESCE(cost, 0)) as total_cost
		FROM llm_usage
		WHERE run_id = ? AND success = 1
		GROUP BY operation_type
		ORDER BY operation_type ASC`

	rows, err := t.db.Query(query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var breakdown []RunBreakdown
	for rows.Next() {
		var rb RunBreakdown
		if err := rows.Scan(&rb.OperationType, &rb.RequestCount, &rb.TotalTokens, &rb.TotalCost); err != nil {
			continue
		}
		breakdown = append(breakdown, rb)
	}

	return breakdown, rows.Err()
}

// NewModelConfig serializes sampling parameters to JSON for storage.
func NewModelConfig(temperature *float64, maxTokens *int) *string {
	if temperature == nil && maxTokens == nil {
		return nil
	}

	data, err := json.Marshal(ModelConfig{Temperature: temperature, MaxTokens: maxTokens})
	if err != nil {
		return nil
	}

	jsonStr := string(data)
	return &jsonStr
}
