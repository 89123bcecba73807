package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	logger "github.com/sirupsen/logrus"

	"alertbridge/src/model"
)

const (
	// History reads are clamped the same way the UI paginates them.
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
)

func recordKey(id string) string {
	return "dispatch:" + id
}

func indexKey(userID string) string {
	return fmt.Sprintf("user:%s:dispatches", userID)
}

func intentKey(id string) string {
	return "dispatch_intent:" + id
}

// Mirror receives every appended record for secondary storage. Mirror
// failures are logged and swallowed: the ledger in Redis is the record
// of truth and a dispatch must never fail because of its mirror.
type Mirror interface {
	Save(ctx context.Context, record *model.DispatchRecord) error
}

// Ledger is the append-only dispatch history. Records are written once,
// at a terminal state, and never mutated or deleted by the bridge.
type Ledger struct {
	rdb    *redis.Client
	mirror Mirror
}

func New(rdb *redis.Client) *Ledger {
	return &Ledger{rdb: rdb}
}

// SetMirror attaches a secondary store fed on every append.
func (l *Ledger) SetMirror(mirror Mirror) {
	l.mirror = mirror
}

// Append writes one terminal dispatch record: the JSON body plus a
// per-user index entry scored by completion time for pagination.
func (l *Ledger) Append(ctx context.Context, record *model.DispatchRecord) error {
	if !record.Terminal() {
		return fmt.Errorf("refusing to append non-terminal record %s (status %q)", record.ID, record.Status)
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal dispatch record: %w", err)
	}

	_, err = l.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, recordKey(record.ID), data, 0)
		pipe.ZAdd(ctx, indexKey(record.UserID), redis.Z{
			Score:  float64(record.CompletedAt.UnixMilli()),
			Member: record.ID,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("append dispatch record: %w", err)
	}

	if l.mirror != nil {
		if err := l.mirror.Save(ctx, record); err != nil {
			logger.WithError(err).WithField("dispatch_id", record.ID).Error("Failed to mirror dispatch record")
		}
	}

	return nil
}

// ListByUser returns up to limit records completed strictly before the
// given time, newest first. A zero before means "from now".
func (l *Ledger) ListByUser(ctx context.Context, userID string, limit int, before time.Time) ([]model.DispatchRecord, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	max := "+inf"
	if !before.IsZero() {
		max = "(" + strconv.FormatInt(before.UnixMilli(), 10)
	}

	ids, err := l.rdb.ZRevRangeByScore(ctx, indexKey(userID), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   max,
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("list dispatch index: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = recordKey(id)
	}

	values, err := l.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load dispatch records: %w", err)
	}

	records := make([]model.DispatchRecord, 0, len(values))
	for i, value := range values {
		data, ok := value.(string)
		if !ok {
			// Index entry without a body; possible after partial manual cleanup.
			logger.WithField("dispatch_id", ids[i]).Warn("Dispatch index entry without record body")
			continue
		}

		var record model.DispatchRecord
		if err := json.Unmarshal([]byte(data), &record); err != nil {
			logger.WithError(err).WithField("dispatch_id", ids[i]).Warn("Skipping unreadable dispatch record")
			continue
		}
		records = append(records, record)
	}

	return records, nil
}

// WriteIntent persists an "accepted" snapshot just before the exchange
// call, so a crash mid-submission leaves a visible trace instead of a
// silently lost alert.
func (l *Ledger) WriteIntent(ctx context.Context, record *model.DispatchRecord) error {
	snapshot := *record
	snapshot.Status = model.DispatchStatusAccepted

	data, err := json.Marshal(&snapshot)
	if err != nil {
		return fmt.Errorf("marshal dispatch intent: %w", err)
	}

	if err := l.rdb.Set(ctx, intentKey(record.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("write dispatch intent: %w", err)
	}
	return nil
}

// ClearIntent removes the pre-submission marker once the terminal
// record has been appended.
func (l *Ledger) ClearIntent(ctx context.Context, id string) error {
	if err := l.rdb.Del(ctx, intentKey(id)).Err(); err != nil {
		return fmt.Errorf("clear dispatch intent: %w", err)
	}
	return nil
}

// ListIntents returns every orphaned pre-submission marker. Only the
// startup reconciler should see a non-empty result.
func (l *Ledger) ListIntents(ctx context.Context) ([]model.DispatchRecord, error) {
	var records []model.DispatchRecord

	iter := l.rdb.Scan(ctx, 0, intentKey("*"), 100).Iterator()
	for iter.Next(ctx) {
		data, err := l.rdb.Get(ctx, iter.Val()).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load dispatch intent %q: %w", iter.Val(), err)
		}

		var record model.DispatchRecord
		if err := json.Unmarshal([]byte(data), &record); err != nil {
			logger.WithError(err).WithField("key", iter.Val()).Warn("Skipping unreadable dispatch intent")
			continue
		}
		records = append(records, record)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan dispatch intents: %w", err)
	}

	return records, nil
}
