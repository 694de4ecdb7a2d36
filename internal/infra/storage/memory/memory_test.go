package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/vietddude/pricewatch/internal/core/domain"
	"github.com/vietddude/pricewatch/internal/infra/storage"
)

func record(feed, details string) *storage.ReportRecord {
	return &storage.ReportRecord{
		Feed:     feed,
		Report:   domain.ErrorReport{Service: "price-api", ErrorCode: "HTTP_ERROR", Details: details},
		StoredAt: time.Unix(1700000000, 0).UTC(),
	}
}

func TestReportRepo_SaveRecent(t *testing.T) {
	ctx := context.Background()
	repo := NewReportRepo(NewMemoryStorage())

	for i := 0; i < 3; i++ {
		if err := repo.Save(ctx, record("xrp", fmt.Sprintf("r%d", i))); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	if err := repo.Save(ctx, record("btc", "other")); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := repo.Recent(ctx, "xrp", 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if got[0].Report.Details != "r2" || got[1].Report.Details != "r1" {
		t.Errorf("expected newest first, got %s, %s", got[0].Report.Details, got[1].Report.Details)
	}
	if got[0].ID == "" {
		t.Error("expected generated ID")
	}

	n, _ := repo.Count(ctx, "xrp")
	if n != 3 {
		t.Errorf("expected count 3, got %d", n)
	}
	n, _ = repo.Count(ctx, "unknown")
	if n != 0 {
		t.Errorf("expected count 0, got %d", n)
	}
}

func TestReportRepo_Retention(t *testing.T) {
	ctx := context.Background()
	repo := NewReportRepo(NewMemoryStorageWithRetention(2))

	for i := 0; i < 5; i++ {
		_ = repo.Save(ctx, record("xrp", fmt.Sprintf("r%d", i)))
	}

	n, _ := repo.Count(ctx, "xrp")
	if n != 2 {
		t.Fatalf("expected 2 retained, got %d", n)
	}
	got, _ := repo.Recent(ctx, "xrp", 0)
	if got[0].Report.Details != "r4" || got[1].Report.Details != "r3" {
		t.Errorf("unexpected retained records: %s, %s", got[0].Report.Details, got[1].Report.Details)
	}
}

func TestReportRepo_RejectsInvalid(t *testing.T) {
	repo := NewReportRepo(NewMemoryStorage())
	if err := repo.Save(context.Background(), &storage.ReportRecord{Feed: "xrp"}); err != storage.ErrInvalidRecord {
		t.Errorf("expected ErrInvalidRecord, got %v", err)
	}
}

func TestReportRepo_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewReportRepo(NewMemoryStorage())
	_ = repo.Save(ctx, record("xrp", "orig"))

	got, _ := repo.Recent(ctx, "xrp", 1)
	got[0].Report.Details = "mutated"

	again, _ := repo.Recent(ctx, "xrp", 1)
	if again[0].Report.Details != "orig" {
		t.Error("stored record was mutated through a returned copy")
	}
}

func TestReportRepo_DeleteOlderThan(t *testing.T) {
	ctx := context.Background()
	repo := NewReportRepo(NewMemoryStorage())
	base := time.Unix(1700000000, 0).UTC()

	for i := 0; i < 4; i++ {
		rec := record("xrp", fmt.Sprintf("r%d", i))
		rec.StoredAt = base.Add(time.Duration(i) * time.Hour)
		_ = repo.Save(ctx, rec)
	}

	n, err := repo.DeleteOlderThan(ctx, base.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 deleted, got %d", n)
	}
	left, _ := repo.Count(ctx, "xrp")
	if left != 2 {
		t.Errorf("expected 2 left, got %d", left)
	}
}
