// Package ratelimit implements the per-chat sliding-window request limiter.
//
// The window is a JSON list of accepted-request timestamps persisted in the
// config store, pruned lazily on every check. Concurrent checks for the same
// chat perform read-modify-write without compare-and-swap, so bursts may be
// over-admitted by a bounded amount; the store contract accepts that.
package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/imgrelay/imgrelay/internal/kv"
)

const (
	storeKeyPrefix = "telegram_bot@ratelimit:"
	window         = time.Minute
)

// Result reports the outcome of one rate-limit check.
type Result struct {
	Allowed   bool
	Remaining int
	// ResetTime is when the earliest retained attempt ages out. Only set
	// on rejection.
	ResetTime time.Time
}

type storedWindow struct {
	Counts []int64 `json:"counts"` // unix milliseconds
}

type Limiter struct {
	store  kv.Store
	logger *slog.Logger
	now    func() time.Time
}

func NewLimiter(log *slog.Logger, store kv.Store) *Limiter {
	if log == nil {
		log = slog.Default()
	}
	return &Limiter{
		store:  store,
		logger: log.With(slog.String("service", "ratelimit")),
		now:    time.Now,
	}
}

// Check admits or rejects one request for chatID under perMinute. Rejected
// attempts are not recorded, so a throttled chat recovers as soon as old
// entries age out. perMinute <= 0 disables limiting.
func (l *Limiter) Check(ctx context.Context, chatID int64, perMinute int) (Result, error) {
	if perMinute <= 0 {
		return Result{Allowed: true}, nil
	}

	now := l.now()
	cutoff := now.Add(-window).UnixMilli()
	key := storeKey(chatID)

	raw, ok, err := l.store.Get(ctx, key)
	if err != nil {
		return Result{}, fmt.Errorf("load rate window: %w", err)
	}

	var stored storedWindow
	if ok {
		if err := json.Unmarshal([]byte(raw), &stored); err != nil {
			l.logger.Warn("rate window blob is not valid JSON, resetting",
				slog.Int64("chat_id", chatID), slog.Any("error", err))
			stored = storedWindow{}
		}
	}

	retained := stored.Counts[:0]
	for _, ts := range stored.Counts {
		if ts > cutoff {
			retained = append(retained, ts)
		}
	}

	if len(retained) >= perMinute {
		return Result{
			Allowed:   false,
			Remaining: 0,
			ResetTime: time.UnixMilli(retained[0]).Add(window),
		}, nil
	}

	retained = append(retained, now.UnixMilli())
	encoded, err := json.Marshal(storedWindow{Counts: retained})
	if err != nil {
		return Result{}, fmt.Errorf("encode rate window: %w", err)
	}
	if err := l.store.Put(ctx, key, string(encoded)); err != nil {
		return Result{}, fmt.Errorf("persist rate window: %w", err)
	}

	return Result{
		Allowed:   true,
		Remaining: perMinute - len(retained),
	}, nil
}

func storeKey(chatID int64) string {
	return storeKeyPrefix + strconv.FormatInt(chatID, 10)
}
