// README: Optional archive sinks (Postgres, Redis, Kafka), opened only when configured.
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"ridesim/internal/config"
	"ridesim/internal/infra"
	"ridesim/internal/modules/archive"
)

type sinkSet struct {
	db     *pgxpool.Pool
	redis  *redis.Client
	store  *archive.Store
	cache  *archive.Cache
	stream *archive.Stream
}

func openSinks(ctx context.Context, cfg config.Config, log zerolog.Logger) (*sinkSet, error) {
	s := &sinkSet{}
	if cfg.DB.DSN != "" {
		db, err := infra.NewDB(ctx, cfg.DB.DSN)
		if err != nil {
			return nil, err
		}
		s.db = db
		s.store = archive.NewStore(db)
		if err := s.store.Migrate(ctx); err != nil {
			s.close(log)
			return nil, fmt.Errorf("migrate archive: %w", err)
		}
		log.Info().Msg("postgres archive enabled")
	}
	if cfg.Redis.Addr != "" {
		client, err := infra.NewRedis(ctx, cfg.Redis.Addr)
		if err != nil {
			s.close(log)
			return nil, err
		}
		s.redis = client
		s.cache = archive.NewCache(client, cfg.Redis.TTL)
		log.Info().Str("addr", cfg.Redis.Addr).Msg("redis snapshot cache enabled")
	}
	if len(cfg.Kafka.Brokers) > 0 {
		s.stream = archive.NewStream(archive.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic))
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("kafka tick stream enabled")
	}
	return s, nil
}

func (s *sinkSet) enabled() bool {
	return s.store != nil || s.cache != nil || s.stream != nil
}

// archiver only hands non-nil sinks to the Archiver so it never sees a typed nil.
func (s *sinkSet) archiver(timeout time.Duration) *archive.Archiver {
	var (
		store  archive.TickStore
		cache  archive.SnapshotCache
		stream archive.Publisher
	)
	if s.store != nil {
		store = s.store
	}
	if s.cache != nil {
		cache = s.cache
	}
	if s.stream != nil {
		stream = s.stream
	}
	return archive.NewArchiver(store, cache, stream, timeout)
}

func (s *sinkSet) close(log zerolog.Logger) {
	if s.stream != nil {
		if err := s.stream.Close(); err != nil {
			log.Warn().Err(err).Msg("close kafka writer")
		}
	}
	if s.redis != nil {
		_ = s.redis.Close()
	}
	if s.db != nil {
		s.db.Close()
	}
}
