package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/pricewatch/internal/core/domain"
)

var (
	// ErrInvalidRecord is returned when a record is missing its feed or report service.
	ErrInvalidRecord = errors.New("invalid report record")
)

// DefaultRecentLimit is used when Recent is called with a non-positive limit.
const DefaultRecentLimit = 20

// ReportRecord is an ErrorReport as persisted, together with its classification.
type ReportRecord struct {
	ID             string                     `json:"id"`
	Feed           string                     `json:"feed"`
	Report         domain.ErrorReport         `json:"report"`
	Classification domain.ClassificationResult `json:"classification"`
	StoredAt       time.Time                  `json:"storedAt"`
}

// NewReportRecord stamps a record with a fresh ID.
func NewReportRecord(
	feed string,
	report domain.ErrorReport,
	result domain.ClassificationResult,
	at time.Time,
) *ReportRecord {
	return &ReportRecord{
		ID:             uuid.NewString(),
		Feed:           feed,
		Report:         report,
		Classification: result,
		StoredAt:       at.UTC(),
	}
}

// Validate checks the fields every backend relies on.
func (r *ReportRecord) Validate() error {
	if r == nil || r.Feed == "" || r.Report.Service == "" {
		return ErrInvalidRecord
	}
	return nil
}

// ReportRepository persists error reports per feed.
type ReportRepository interface {
	// Save stores a record. A missing ID is generated.
	Save(ctx context.Context, rec *ReportRecord) error

	// Recent returns up to limit records for feed, newest first.
	Recent(ctx context.Context, feed string, limit int) ([]*ReportRecord, error)

	// Count returns the number of records stored for feed.
	Count(ctx context.Context, feed string) (int, error)
}

// ReportPruner is implemented by backends that can drop records by age.
type ReportPruner interface {
	DeleteOlderThan(ctx context.Context, before time.Time) (int, error)
}

// NormalizeLimit applies DefaultRecentLimit to non-positive limits.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultRecentLimit
	}
	return limit
}
