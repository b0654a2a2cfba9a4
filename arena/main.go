package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	arenaapi "github.com/TitanForge/ARENA-SERVICES/arena/api"
	"github.com/TitanForge/ARENA-SERVICES/arena/battle"
	"github.com/TitanForge/ARENA-SERVICES/arena/events"
	"github.com/TitanForge/ARENA-SERVICES/arena/loadout"
	"github.com/TitanForge/ARENA-SERVICES/arena/match"
	"github.com/TitanForge/ARENA-SERVICES/arena/queue"
	elo "github.com/TitanForge/ARENA-SERVICES/arena/rating"
	"github.com/TitanForge/ARENA-SERVICES/arena/store"
	"github.com/TitanForge/ARENA-SERVICES/shared/api"
	"github.com/TitanForge/ARENA-SERVICES/shared/cluster"
	"github.com/TitanForge/ARENA-SERVICES/shared/config"
	sharedlog "github.com/TitanForge/ARENA-SERVICES/shared/log"
	redisu "github.com/TitanForge/ARENA-SERVICES/shared/redis"
	"github.com/TitanForge/ARENA-SERVICES/shared/registry"
	"github.com/TitanForge/ARENA-SERVICES/shared/service"
)

// matchStarter glues the queue to the match registry: it stamps the pair with
// the current season and spins up the session.
type matchStarter struct {
	registry *match.Registry
	ratings  *service.RatingServiceClient
}

func (ms *matchStarter) StartMatch(ctx context.Context, a, b queue.Ticket) error {
	season, err := ms.ratings.GetCurrentSeason(ctx)
	if err != nil {
		return fmt.Errorf("failed to resolve current season: %w", err)
	}
	_, err = ms.registry.CreateMatch(ctx, season.ID,
		match.Participant{PlayerID: a.PlayerID, TitanSetID: a.TitanSetID, Rating: a.Rating, GamesPlayed: a.GamesPlayed},
		match.Participant{PlayerID: b.PlayerID, TitanSetID: b.TitanSetID, Rating: b.Rating, GamesPlayed: b.GamesPlayed},
	)
	return err
}

func main() {
	cfg, err := config.LoadArenaServiceConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := sharedlog.New("arena-service", cfg.LogLevel)
	logger.Info().Str("listenAddr", cfg.ListenAddr).Msg("Configuration loaded")

	redisClient, err := redisu.NewRedisClusterClient(cfg.RedisAddrs, cfg.RedisPassword)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to Redis Cluster")
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("Error closing Redis client")
		}
	}()
	logger.Info().Msg("Connected to Redis Cluster")

	// Stores and outbound clients.
	presenceStore := store.NewPresenceStore(redisClient, cfg.PresenceTTL)
	matchStateStore := store.NewMatchStateStore(redisClient, cfg.SnapshotTTL)
	ratingClient := service.NewRatingClient(cfg.RatingServiceURL)
	loadouts := loadout.NewClient(cfg.LoadoutServiceURL, cfg.LoadoutCacheTTL)

	// Battle and rating engines.
	resolver := battle.NewResolver(battle.DefaultConfig())
	eloEngine := elo.NewEngine(elo.Config{
		KBase:            cfg.RatingKBase,
		KProvisional:     cfg.RatingKProvisional,
		ProvisionalGames: cfg.ProvisionalGames,
	})
	publisher := events.NewRedisPublisher(redisClient, logger)

	matchRegistry := match.NewRegistry(
		match.Config{
			SelectTimeout:     cfg.SelectTimeout,
			RoundTimeout:      cfg.RoundTimeout,
			MaxRounds:         cfg.MaxRounds,
			MissForfeitAfter:  cfg.MissForfeitAfter,
			SettlementTimeout: cfg.SettlementTimeout,
		},
		match.Deps{
			Resolver:  resolver,
			Elo:       eloEngine,
			Rating:    ratingClient,
			Events:    publisher,
			Presence:  presenceStore,
			Snapshots: matchStateStore,
			Loadouts:  loadouts,
			Logger:    logger,
		},
		cfg.TerminalSessionKeep,
		logger,
	)

	// Service discovery and matchmaker leadership.
	registrar := registry.NewServiceRegistrar(redisClient, "arena-service", &cfg.CommonConfig, logger)
	go registrar.Start()
	defer registrar.Stop()

	registryClient := registry.NewRegistryClient(redisClient, cfg.HeartbeatTTL, logger)
	assignmentManager := cluster.NewServiceAssignmentManager(registryClient, registrar, cfg.HeartbeatInterval, logger)
	go assignmentManager.Start()
	defer assignmentManager.Stop()

	starter := &matchStarter{registry: matchRegistry, ratings: ratingClient}
	queueManager := queue.NewManager(
		queue.Config{
			PassInterval:       cfg.MatchPassInterval,
			WindowBase:         cfg.WindowBase,
			WindowMax:          cfg.WindowMax,
			WindowGrowthPerSec: cfg.WindowGrowthPerSec,
		},
		starter,
		assignmentManager,
		matchRegistry,
		presenceStore,
		logger,
	)

	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()
	go queueManager.Run(runCtx)
	go matchRegistry.Run(runCtx, time.Minute)

	handlers := arenaapi.NewArenaHandler(queueManager, matchRegistry, matchStateStore, ratingClient, logger)
	baseServer := api.NewBaseServer(cfg.ListenAddr, logger)
	handlers.RegisterRoutes(baseServer.Router)

	go func() {
		logger.Info().Str("listenAddr", cfg.ListenAddr).Msg("HTTP server starting")
		if err := baseServer.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info().Msg("Shutting down arena-service")
	cancelRun()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := baseServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server graceful shutdown failed")
	}
	logger.Info().Msg("Arena service stopped")
}
