package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/pricewatch/internal/core/domain"
	"github.com/vietddude/pricewatch/internal/infra/storage"
)

var reportColumns = []string{
	"id", "feed", "service", "error_code", "details", "endpoint", "reason", "status",
	"consecutive_failures", "is_valid_error", "category", "classification_reason",
	"reported_at", "stored_at",
}

func newMockRepo(t *testing.T) (*ReportRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewReportRepo(Wrap(db)), mock
}

func TestReportRepo_Save(t *testing.T) {
	repo, mock := newMockRepo(t)
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	rec := &storage.ReportRecord{
		Feed: "xrp-usd",
		Report: domain.ErrorReport{
			Service:             "price-api",
			Timestamp:           at,
			ErrorCode:           "HTTP_ERROR",
			Details:             "Too Many Requests",
			Context:             domain.ErrorContext{Endpoint: "coingecko", Reason: "rate limited by upstream", Status: 429},
			ConsecutiveFailures: 2,
		},
		Classification: domain.ClassificationResult{
			IsValidError: true,
			Category:     domain.CategoryValidError,
			Reason:       "ok",
		},
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO error_reports")).
		WithArgs(
			sqlmock.AnyArg(), "xrp-usd", "price-api", "HTTP_ERROR", "Too Many Requests",
			"coingecko", "rate limited by upstream", 429, 2, true, "valid-error", "ok",
			at, sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Save(context.Background(), rec))
	assert.NotEmpty(t, rec.ID)
	assert.False(t, rec.StoredAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepo_SaveRejectsInvalid(t *testing.T) {
	repo, mock := newMockRepo(t)

	err := repo.Save(context.Background(), &storage.ReportRecord{Feed: "xrp-usd"})
	assert.ErrorIs(t, err, storage.ErrInvalidRecord)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepo_SaveWrapsError(t *testing.T) {
	repo, mock := newMockRepo(t)
	boom := errors.New("connection reset")

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO error_reports")).WillReturnError(boom)

	err := repo.Save(context.Background(), &storage.ReportRecord{
		Feed:   "xrp-usd",
		Report: domain.ErrorReport{Service: "price-api", ErrorCode: "NETWORK_ERROR"},
	})
	assert.ErrorIs(t, err, boom)
}

func TestReportRepo_Recent(t *testing.T) {
	repo, mock := newMockRepo(t)
	reported := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	stored := reported.Add(time.Second)

	rows := sqlmock.NewRows(reportColumns).
		AddRow("id-2", "xrp-usd", "price-api", "VALIDATION_ERROR", "bad", "b", "Invalid XRP price structure",
			nil, 1, true, "valid-error", "ok", reported, stored).
		AddRow("id-1", "xrp-usd", "payment-gateway", "E-12045", "", "", "",
			int64(502), 0, false, "false-positive", "no gateway", reported, reported)

	mock.ExpectQuery(regexp.QuoteMeta("FROM error_reports")).
		WithArgs("xrp-usd", storage.DefaultRecentLimit).
		WillReturnRows(rows)

	got, err := repo.Recent(context.Background(), "xrp-usd", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "id-2", got[0].ID)
	assert.Equal(t, "Invalid XRP price structure", got[0].Report.Context.Reason)
	assert.Equal(t, 0, got[0].Report.Context.Status)
	assert.Equal(t, reported, got[0].Report.Timestamp)

	assert.Equal(t, 502, got[1].Report.Context.Status)
	assert.False(t, got[1].Classification.IsValidError)
	assert.Equal(t, domain.CategoryFalsePositive, got[1].Classification.Category)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepo_Count(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM error_reports")).
		WithArgs("xrp-usd").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	n, err := repo.Count(context.Background(), "xrp-usd")
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepo_DeleteOlderThan(t *testing.T) {
	repo, mock := newMockRepo(t)
	cutoff := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM error_reports WHERE stored_at < $1")).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := repo.DeleteOlderThan(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
