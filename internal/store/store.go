package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/i474232898/weatherservice/internal/config"
	"github.com/i474232898/weatherservice/internal/metrics"
	"github.com/i474232898/weatherservice/internal/weather"
)

// Store is a weather.Store that can also report the catalogue size.
type Store interface {
	weather.Store
	CountLocations(ctx context.Context) (int, error)
}

var (
	_ Store = (*SQLStore)(nil)
	_ Store = (*MemoryStore)(nil)
)

// memoryRetention bounds the per-station history of the in-memory store
// (one week at a ten minute cadence).
const memoryRetention = 7 * 24 * 6

// New opens the store selected by cfg.Driver and initializes its schema.
func New(ctx context.Context, cfg config.Database, logger *slog.Logger, m *metrics.Collector) (Store, error) {
	if cfg.Driver == "memory" {
		logger.Warn("using in-memory store; data is lost on restart")
		return NewMemoryStore(memoryRetention), nil
	}

	db, err := Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s := NewSQLStore(db, logger, m)
	if err := s.Init(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init %s store: %w", cfg.Driver, err)
	}
	return s, nil
}
