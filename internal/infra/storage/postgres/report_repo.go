package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/pricewatch/internal/core/domain"
	"github.com/vietddude/pricewatch/internal/infra/storage"
)

// ReportRepo implements storage.ReportRepository using PostgreSQL.
type ReportRepo struct {
	db *DB
}

// NewReportRepo creates a new PostgreSQL report repository.
func NewReportRepo(db *DB) *ReportRepo {
	return &ReportRepo{db: db}
}

type reportRow struct {
	ID                   string    `db:"id"`
	Feed                 string    `db:"feed"`
	Service              string    `db:"service"`
	ErrorCode            string    `db:"error_code"`
	Details              string    `db:"details"`
	Endpoint             string    `db:"endpoint"`
	Reason               string    `db:"reason"`
	Status               *int      `db:"status"`
	ConsecutiveFailures  int       `db:"consecutive_failures"`
	IsValidError         bool      `db:"is_valid_error"`
	Category             string    `db:"category"`
	ClassificationReason string    `db:"classification_reason"`
	ReportedAt           time.Time `db:"reported_at"`
	StoredAt             time.Time `db:"stored_at"`
}

func (row reportRow) record() *storage.ReportRecord {
	errCtx := domain.ErrorContext{Endpoint: row.Endpoint, Reason: row.Reason}
	if row.Status != nil {
		errCtx.Status = *row.Status
	}
	return &storage.ReportRecord{
		ID:   row.ID,
		Feed: row.Feed,
		Report: domain.ErrorReport{
			Service:             row.Service,
			Timestamp:           row.ReportedAt.UTC(),
			ErrorCode:           row.ErrorCode,
			Details:             row.Details,
			Context:             errCtx,
			ConsecutiveFailures: row.ConsecutiveFailures,
		},
		Classification: domain.ClassificationResult{
			IsValidError: row.IsValidError,
			Category:     domain.Category(row.Category),
			Reason:       row.ClassificationReason,
		},
		StoredAt: row.StoredAt.UTC(),
	}
}

// Save inserts a record.
func (r *ReportRepo) Save(ctx context.Context, rec *storage.ReportRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.StoredAt.IsZero() {
		rec.StoredAt = time.Now().UTC()
	}
	category := rec.Classification.Category
	if category == "" {
		category = domain.CategoryValidError
	}

	var status *int
	if rec.Report.Context.Status != 0 {
		s := rec.Report.Context.Status
		status = &s
	}

	query := `
		INSERT INTO error_reports (
			id, feed, service, error_code, details, endpoint, reason, status,
			consecutive_failures, is_valid_error, category, classification_reason,
			reported_at, stored_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := r.db.ExecContext(
		ctx,
		query,
		rec.ID,
		rec.Feed,
		rec.Report.Service,
		rec.Report.ErrorCode,
		rec.Report.Details,
		rec.Report.Context.Endpoint,
		rec.Report.Context.Reason,
		status,
		rec.Report.ConsecutiveFailures,
		rec.Classification.IsValidError,
		string(category),
		rec.Classification.Reason,
		rec.Report.Timestamp,
		rec.StoredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save error report: %w", err)
	}
	return nil
}

// Recent returns the newest records for feed.
func (r *ReportRepo) Recent(
	ctx context.Context,
	feed string,
	limit int,
) ([]*storage.ReportRecord, error) {
	query := `
		SELECT id, feed, service, error_code, details, endpoint, reason, status,
			consecutive_failures, is_valid_error, category, classification_reason,
			reported_at, stored_at
		FROM error_reports
		WHERE feed = $1
		ORDER BY stored_at DESC
		LIMIT $2
	`

	var rows []reportRow
	if err := r.db.SelectContext(ctx, &rows, query, feed, storage.NormalizeLimit(limit)); err != nil {
		return nil, fmt.Errorf("failed to get recent error reports: %w", err)
	}

	records := make([]*storage.ReportRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.record())
	}
	return records, nil
}

// Count returns the number of records for feed.
func (r *ReportRepo) Count(ctx context.Context, feed string) (int, error) {
	query := `SELECT COUNT(*) FROM error_reports WHERE feed = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, feed); err != nil {
		return 0, fmt.Errorf("failed to count error reports: %w", err)
	}
	return count, nil
}

// DeleteOlderThan removes records stored before the cutoff.
func (r *ReportRepo) DeleteOlderThan(ctx context.Context, before time.Time) (int, error) {
	query := `DELETE FROM error_reports WHERE stored_at < $1`
	res, err := r.db.ExecContext(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("failed to prune error reports: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read pruned rows: %w", err)
	}
	return int(n), nil
}
