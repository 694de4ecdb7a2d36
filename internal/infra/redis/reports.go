package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/vietddude/pricewatch/internal/infra/storage"
)

// DefaultRetention is the number of reports kept per feed list.
const DefaultRetention = 500

// ReportRepo implements storage.ReportRepository using one capped Redis list per feed.
type ReportRepo struct {
	client    *Client
	retention int64
}

// NewReportRepo creates a new Redis-backed report repository.
func NewReportRepo(client *Client, retention int) *ReportRepo {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &ReportRepo{client: client, retention: int64(retention)}
}

// Save pushes rec to the head of the feed list and trims the tail.
func (r *ReportRepo) Save(ctx context.Context, rec *storage.ReportRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}

	key := reportsKey(rec.Feed)
	pipe := r.client.rdb.TxPipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, r.retention-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save error report: %w", err)
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (r *ReportRepo) Recent(
	ctx context.Context,
	feed string,
	limit int,
) ([]*storage.ReportRecord, error) {
	limit = storage.NormalizeLimit(limit)

	items, err := r.client.rdb.LRange(ctx, reportsKey(feed), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange failed: %w", err)
	}

	records := make([]*storage.ReportRecord, 0, len(items))
	for _, item := range items {
		rec, err := decodeRecord([]byte(item))
		if err != nil {
			// Skip entries written by an incompatible version.
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// Count returns the length of the feed list.
func (r *ReportRepo) Count(ctx context.Context, feed string) (int, error) {
	n, err := r.client.rdb.LLen(ctx, reportsKey(feed)).Result()
	if err != nil {
		return 0, fmt.Errorf("llen failed: %w", err)
	}
	return int(n), nil
}

func encodeRecord(rec *storage.ReportRecord) ([]byte, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal error report: %w", err)
	}
	return data, nil
}

func decodeRecord(data []byte) (*storage.ReportRecord, error) {
	var rec storage.ReportRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal error report: %w", err)
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	return &rec, nil
}
