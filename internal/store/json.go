package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/kirinyoku/bpms/internal/repository"
)

// readJSON decodes key into T. Undecodable data is logged and reported as
// absent so that a corrupted entry never blocks the caller.
func readJSON[T any](
	ctx context.Context,
	kv repository.KV,
	logger *slog.Logger,
	key string,
) (T, bool, error) {
	var zero T

	raw, ok, err := kv.Get(ctx, key)
	if err != nil {
		return zero, false, fmt.Errorf("read %s: %w", key, err)
	}
	if !ok || len(raw) == 0 {
		return zero, false, nil
	}

	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		logger.WarnContext(ctx, "discarding corrupted stored value",
			slog.String("key", key),
			slog.Int("bytes", len(raw)),
			slog.String("error", err.Error()),
		)
		return zero, false, nil
	}

	return out, true, nil
}

func writeJSON(ctx context.Context, kv repository.KV, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}

	if err := kv.Set(ctx, key, b); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}

	return nil
}

func discardLogger(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.New(slog.DiscardHandler)
}
