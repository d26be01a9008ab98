package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/placepick/go/clients"
	"github.com/mcdev12/placepick/go/internal/auth"
	"github.com/mcdev12/placepick/go/internal/config"
	"github.com/mcdev12/placepick/go/internal/dbconfig"
	"github.com/mcdev12/placepick/go/internal/health"
	"github.com/mcdev12/placepick/go/internal/models"
	"github.com/mcdev12/placepick/go/internal/room"
	"github.com/mcdev12/placepick/go/internal/room/events"
	"github.com/mcdev12/placepick/go/internal/room/gateway"
	"github.com/mcdev12/placepick/go/internal/room/redisstore"
	"github.com/mcdev12/placepick/go/internal/suggest"
	"github.com/mcdev12/placepick/go/internal/users"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

type Services struct {
	Users     *users.Service
	Rooms     *room.Service
	Gateway   *gateway.Service
	Registry  *room.Registry
	Issuer    *auth.Issuer
	Health    *health.Checker
	Snapshots *room.SnapshotWriter
	Scheduler *room.Scheduler
	Mirror    *events.JetStreamPublisher

	pool  *pgxpool.Pool
	redis *redis.Client
}

func setupServices(ctx context.Context, cfg config.Config) (*Services, error) {
	// Wire up dependency injection chain
	// Storage → App layer → Service layer → Gateway
	s := &Services{Health: health.NewChecker(5 * time.Second)}
	clock := clockwork.NewRealClock()

	// Users
	userRepo, err := s.setupUserRepository(ctx, cfg)
	if err != nil {
		s.Close(ctx)
		return nil, err
	}
	userApp := users.NewApp(userRepo)
	s.Issuer = auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	s.Users = users.NewService(userApp, s.Issuer)

	// Room snapshots
	store, err := s.setupStore(ctx, cfg, clock)
	if err != nil {
		s.Close(ctx)
		return nil, err
	}
	writerCfg := room.DefaultWriterConfig()
	writerCfg.MaxRetries = cfg.Store.MaxRetries
	s.Snapshots = room.NewSnapshotWriter(store, writerCfg)

	// Realtime fan-out, optionally mirrored to JetStream
	cm := gateway.NewConnectionManager(connectionConfig(cfg))
	publisher := events.Fanout{cm}
	if cfg.NATS.URL != "" {
		jsCfg := events.DefaultJetStreamConfig()
		jsCfg.URL = cfg.NATS.URL
		jsCfg.StreamName = cfg.NATS.Stream
		jsCfg.SubjectPrefix = cfg.NATS.SubjectPrefix
		s.Mirror, err = events.NewJetStreamPublisher(ctx, jsCfg)
		if err != nil {
			s.Close(ctx)
			return nil, fmt.Errorf("failed to start event mirror: %w", err)
		}
		publisher = append(publisher, s.Mirror)
		s.Health.AddProbe("nats", func(context.Context) error {
			if !s.Mirror.Connected() {
				return fmt.Errorf("disconnected")
			}
			return nil
		})
	}

	// Rooms
	mode, err := models.ParseCarouselMode(cfg.Rooms.Mode)
	if err != nil {
		s.Close(ctx)
		return nil, err
	}
	s.Scheduler = room.NewScheduler(clock, cfg.Rooms.TickInterval)
	s.Registry = room.NewRegistry(userApp, room.RegistryConfig{
		TTL:       cfg.Rooms.TTL,
		Store:     store,
		Scheduler: s.Scheduler,
		Session: room.SessionConfig{
			Clock:     clock,
			Publisher: publisher,
			Snapshots: s.Snapshots,
			Voting: room.VotingOptions{
				Mode:        mode,
				AutoVote:    cfg.Rooms.AutoVote,
				AutoAdvance: cfg.Rooms.AutoAdvance,
				CardSeconds: cfg.Rooms.CardSeconds,
			},
		},
	})

	provider, err := setupProvider(cfg.Suggest)
	if err != nil {
		s.Close(ctx)
		return nil, err
	}
	roomApp := room.NewApp(ctx, s.Registry, s.Scheduler, userApp, provider, room.AppConfig{
		SuggestTimeout: cfg.Suggest.Timeout,
		MergePrefs:     suggest.MergePreferences,
	})
	s.Rooms = room.NewService(roomApp)

	// Gateway
	s.Gateway = gateway.NewService(ctx, cm, roomApp, s.Issuer, gateway.Config{
		Connection:   connectionConfig(cfg),
		FrameTimeout: cfg.Suggest.Timeout + 5*time.Second,
	})

	s.Health.AddGauge("placepick_live_rooms", "Rooms held in memory", func() float64 {
		return float64(s.Registry.Len())
	})
	s.Health.AddGauge("placepick_ws_connections", "Open websocket connections", func() float64 {
		return float64(s.Gateway.Stats().TotalConnections)
	})
	s.Health.AddGauge("placepick_snapshots_pending", "Room snapshots waiting to be saved", func() float64 {
		return float64(s.Snapshots.Pending())
	})

	return s, nil
}

func (s *Services) setupUserRepository(ctx context.Context, cfg config.Config) (users.UsersRepository, error) {
	if cfg.Users.Backend != "postgres" {
		return users.NewMemoryRepository(), nil
	}
	pool, err := dbconfig.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	s.pool = pool
	repo := users.NewRepository(pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to prepare users schema: %w", err)
	}
	s.Health.AddProbe("postgres", pool.Ping)
	return repo, nil
}

func (s *Services) setupStore(ctx context.Context, cfg config.Config, clock clockwork.Clock) (room.Store, error) {
	if cfg.Store.Backend != "redis" {
		return room.NewMemoryStore(clock.Now), nil
	}
	client, err := redisstore.NewClient(ctx, cfg.Store.RedisURL, cfg.Store.RedisPassword, cfg.Store.RedisDB)
	if err != nil {
		return nil, err
	}
	s.redis = client
	s.Health.AddProbe("redis", func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
	return redisstore.New(client, clock.Now), nil
}

func setupProvider(cfg config.SuggestConfig) (suggest.Provider, error) {
	var provider suggest.Provider
	switch cfg.Provider {
	case "http":
		provider = suggest.NewHTTPProvider(clients.NewPlacesClient(cfg.BaseURL, cfg.APIKey))
	default:
		catalog, err := suggest.LoadCatalog(cfg.CatalogFile)
		if err != nil {
			return nil, err
		}
		log.Info().Int("places", catalog.Len()).Msg("loaded place catalog")
		provider = suggest.NewCatalogProvider(catalog)
	}
	return suggest.WithTimeout(provider, cfg.Timeout), nil
}

func connectionConfig(cfg config.Config) gateway.ConnectionConfig {
	cc := gateway.DefaultConnectionConfig()
	cc.MaxMessageSize = cfg.WebSocket.MaxMessageSize
	cc.PingInterval = cfg.WebSocket.PingInterval
	cc.ReadTimeout = cfg.WebSocket.ReadTimeout
	cc.WriteTimeout = cfg.WebSocket.WriteTimeout
	cc.SendBufferSize = cfg.WebSocket.SendBuffer
	cc.CheckOrigin = originChecker(cfg.Server.AllowedOrigins)
	return cc
}

// Close releases whatever setupServices opened. The snapshot writer is
// stopped by the caller so it can flush first.
func (s *Services) Close(ctx context.Context) {
	if s.Scheduler != nil {
		s.Scheduler.Close()
	}
	if s.Mirror != nil {
		if err := s.Mirror.Close(ctx); err != nil {
			log.Warn().Err(err).Msg("failed to drain event mirror")
		}
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close redis client")
		}
	}
	if s.pool != nil {
		s.pool.Close()
	}
}
