package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"interview-insights-go/internal/config"
	apperrors "interview-insights-go/internal/errors"
	"interview-insights-go/internal/logger"
	"interview-insights-go/internal/types"
)

// Archive mirrors artifacts and summaries into MySQL for querying next
// to the on-disk files. The disk store stays authoritative; archive
// failures are logged and never fail a run.
type Archive struct {
	db  *sql.DB
	log *logger.Logger
}

const createAnnotationsTable = `
CREATE TABLE IF NOT EXISTS annotations (
    interview_id VARCHAR(128) PRIMARY KEY,
    run_id VARCHAR(64) NOT NULL,
    status VARCHAR(32) NOT NULL,
    quality_score DECIMAL(4,3) NOT NULL DEFAULT 0,
    coverage DECIMAL(5,2) NOT NULL DEFAULT 0,
    cost_usd DECIMAL(10,6) NOT NULL DEFAULT 0,
    payload JSON NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
    INDEX idx_run_id (run_id),
    INDEX idx_status (status)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;
`

const createSummariesTable = `
CREATE TABLE IF NOT EXISTS validation_summaries (
    run_id VARCHAR(64) PRIMARY KEY,
    generated_at TIMESTAMP NOT NULL,
    total_interviews INT NOT NULL,
    accepted INT NOT NULL,
    flagged INT NOT NULL,
    total_cost_usd DECIMAL(10,6) NOT NULL DEFAULT 0,
    payload JSON NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;
`

// NewArchive opens the database, verifies connectivity, and ensures the
// schema exists.
func NewArchive(cfg config.DatabaseConfig, log *logger.Logger) (*Archive, error) {
	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, apperrors.Wrap(err, "cannot open database connection")
	}

	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, apperrors.Wrap(err, "cannot reach database",
			map[string]interface{}{"host": cfg.Host, "database": cfg.Name})
	}

	a := &Archive{db: db, log: log}
	if err := a.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	log.WithFields(map[string]interface{}{
		"host":     cfg.Host,
		"database": cfg.Name,
	}).Info("Connected to annotation archive")
	return a, nil
}

func (a *Archive) Close() error {
	if a == nil || a.db == nil {
		return nil
	}
	return a.db.Close()
}

func (a *Archive) migrate() error {
	for _, stmt := range []string{createAnnotationsTable, createSummariesTable} {
		if _, err := a.db.Exec(stmt); err != nil {
			return apperrors.Wrap(err, "archive migration failed")
		}
	}
	return nil
}

// SaveAnnotation upserts one artifact. Re-running a stage overwrites the
// previous row for the interview.
func (a *Archive) SaveAnnotation(ctx context.Context, ann *types.InterviewAnnotation) error {
	payload, err := json.Marshal(ann)
	if err != nil {
		return apperrors.Wrap(err, "cannot marshal annotation for archive")
	}

	query := `
		INSERT INTO annotations (interview_id, run_id, status, quality_score, coverage, cost_usd, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			run_id = VALUES(run_id), status = VALUES(status),
			quality_score = VALUES(quality_score), coverage = VALUES(coverage),
			cost_usd = VALUES(cost_usd), payload = VALUES(payload)
	`
	_, err = a.db.ExecContext(ctx, query,
		ann.InterviewID, ann.RunID, string(ann.Status),
		ann.QualityScore, ann.CoveragePercentage, ann.Stats.CostUSD, payload,
	)
	if err != nil {
		return apperrors.Wrap(err, "cannot archive annotation",
			map[string]interface{}{"interview_id": ann.InterviewID})
	}
	return nil
}

// GetAnnotation loads one archived artifact by interview id.
func (a *Archive) GetAnnotation(ctx context.Context, interviewID string) (*types.InterviewAnnotation, error) {
	var payload []byte
	err := a.db.QueryRowContext(ctx,
		`SELECT payload FROM annotations WHERE interview_id = ?`, interviewID,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFound("interview not in archive",
			map[string]interface{}{"interview_id": interviewID})
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "cannot load archived annotation",
			map[string]interface{}{"interview_id": interviewID})
	}

	var ann types.InterviewAnnotation
	if err := json.Unmarshal(payload, &ann); err != nil {
		return nil, apperrors.Wrap(err, "archived annotation is not valid JSON",
			map[string]interface{}{"interview_id": interviewID})
	}
	return &ann, nil
}

// SaveSummary upserts the corpus summary for a run.
func (a *Archive) SaveSummary(ctx context.Context, summary *types.ValidationSummary) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return apperrors.Wrap(err, "cannot marshal summary for archive")
	}

	query := `
		INSERT INTO validation_summaries (run_id, generated_at, total_interviews, accepted, flagged, total_cost_usd, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			generated_at = VALUES(generated_at), total_interviews = VALUES(total_interviews),
			accepted = VALUES(accepted), flagged = VALUES(flagged),
			total_cost_usd = VALUES(total_cost_usd), payload = VALUES(payload)
	`
	_, err = a.db.ExecContext(ctx, query,
		summary.RunID, summary.GeneratedAt, summary.TotalInterviews,
		summary.Accepted, summary.Flagged, summary.TotalCostUSD, payload,
	)
	if err != nil {
		return apperrors.Wrap(err, "cannot archive validation summary",
			map[string]interface{}{"run_id": summary.RunID})
	}
	return nil
}
