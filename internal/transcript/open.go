package transcript

import (
	"context"
	"fmt"
	"time"

	"github.com/park285/eazews/internal/config"
)

// Open builds the store selected by cfg.TranscriptBackend. It returns nil for BackendNone.
func Open(ctx context.Context, cfg *config.AppConfig) (Store, error) {
	switch cfg.TranscriptBackend {
	case "", config.BackendNone:
		return nil, nil
	case config.BackendMemory:
		return NewMemoryStore(), nil
	case config.BackendRedis:
		s, err := NewRedisStoreFromURL(ctx, cfg.RedisURL, cfg.TranscriptTTL)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.BackendPostgres:
		s, err := NewPostgresStore(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		mctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := s.Migrate(mctx); err != nil {
			_ = s.Close()
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown transcript backend %q", cfg.TranscriptBackend)
	}
}
