package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	ratingapi "github.com/TitanForge/ARENA-SERVICES/rating/api"
	"github.com/TitanForge/ARENA-SERVICES/rating/service"
	"github.com/TitanForge/ARENA-SERVICES/rating/store"
	"github.com/TitanForge/ARENA-SERVICES/shared/api"
	"github.com/TitanForge/ARENA-SERVICES/shared/config"
	sharedlog "github.com/TitanForge/ARENA-SERVICES/shared/log"
	"github.com/TitanForge/ARENA-SERVICES/shared/mongodb"
	redisu "github.com/TitanForge/ARENA-SERVICES/shared/redis"
	"github.com/TitanForge/ARENA-SERVICES/shared/registry"
)

const seasonRollerInterval = time.Minute

func main() {
	cfg, err := config.LoadRatingServiceConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := sharedlog.New("rating-service", cfg.LogLevel)
	logger.Info().Str("listenAddr", cfg.ListenAddr).Msg("Configuration loaded")

	mongoClient, err := mongodb.NewClient(cfg.MongoDBConnStr, cfg.MongoDBDatabase)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to MongoDB")
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			logger.Error().Err(err).Msg("Error disconnecting MongoDB client")
		}
	}()
	logger.Info().Str("database", cfg.MongoDBDatabase).Msg("Connected to MongoDB")

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

	ratingStore := store.NewRatingStore(mongoClient.Collection(cfg.MongoDBRatingsCollection))
	seasonStore := store.NewSeasonStore(mongoClient.Collection(cfg.MongoDBSeasonsCollection))
	matchStore := store.NewMatchStore(mongoClient.Collection(cfg.MongoDBMatchesCollection))

	indexCtx, indexCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := ratingStore.EnsureIndexes(indexCtx); err != nil {
		indexCancel()
		logger.Fatal().Err(err).Msg("Failed to ensure rating indexes")
	}
	indexCancel()

	ratingService := service.NewRatingService(ratingStore, seasonStore, matchStore, cfg.BaseRating, cfg.SeasonLength, logger)

	registrar := registry.NewServiceRegistrar(redisClient, "rating-service", &cfg.CommonConfig, logger)
	go registrar.Start()
	defer registrar.Stop()

	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()
	go ratingService.RunSeasonRoller(runCtx, seasonRollerInterval)

	handlers := ratingapi.NewRatingHandler(ratingService, logger)
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

	logger.Info().Msg("Shutting down rating-service")
	cancelRun()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := baseServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server graceful shutdown failed")
	}
	logger.Info().Msg("Rating service stopped")
}
