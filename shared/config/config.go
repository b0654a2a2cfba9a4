// shared/config/config.go
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// CommonConfig holds configuration fields that are shared across services.
type CommonConfig struct {
	RedisAddrs              []string      // Redis server addresses (e.g. "redis-cluster:6379")
	RedisPassword           string        // Redis password for authentication
	HeartbeatInterval       time.Duration // How often to send a heartbeat to the registry
	HeartbeatTTL            time.Duration // How long an instance is considered alive without a heartbeat
	RegistryCleanupInterval time.Duration // How often the registry actively cleans stale entries
	ServiceIP               string        // The IP address this service advertises for registration
	ServicePort             int           // The port this service listens on, used for registration
	LogLevel                string        // zerolog level: debug, info, warn, error
}

// ArenaServiceConfig holds configuration specific to the arena-service.
type ArenaServiceConfig struct {
	CommonConfig

	ListenAddr        string // Address for the HTTP server (e.g. ":8082")
	RatingServiceURL  string // Base URL of the rating-service
	LoadoutServiceURL string // Base URL of the titan loadout provider

	// Matchmaking.
	MatchPassInterval  time.Duration // How often the matching pass scans the queue
	WindowBase         float64       // Initial rating search window (± points)
	WindowMax          float64       // Hard cap on the search window
	WindowGrowthPerSec float64       // Window widening per second of queue wait

	// Match sessions.
	SelectTimeout       time.Duration // Titan selection deadline before the match is cancelled
	RoundTimeout        time.Duration // Round deadline before a Defend default is substituted
	MaxRounds           int           // Hard cap on rounds before a HP-fraction decision
	MissForfeitAfter    int           // Consecutive missed submissions before forfeit (0 disables)
	PresenceTTL         time.Duration // TTL for queued/in-match presence keys in Redis
	SnapshotTTL         time.Duration // TTL for cached match snapshots in Redis
	LoadoutCacheTTL     time.Duration // TTL for the in-process titan loadout cache
	SettlementTimeout   time.Duration // Budget for the rating settlement calls at match end
	TerminalSessionKeep time.Duration // How long a finished session stays queryable in memory

	// Rating engine.
	RatingKBase        float64 // K-factor for established players
	RatingKProvisional float64 // K-factor under the provisional games threshold
	ProvisionalGames   int     // Games played below which a player is provisional
}

// RatingServiceConfig holds configuration specific to the rating-service.
type RatingServiceConfig struct {
	CommonConfig

	ListenAddr               string
	MongoDBConnStr           string
	MongoDBDatabase          string
	MongoDBRatingsCollection string
	MongoDBSeasonsCollection string
	MongoDBMatchesCollection string
	BaseRating               float64 // Rating assigned to fresh rows each season
	SeasonLength             time.Duration
}

// LoadCommonConfig loads common configuration from environment variables.
// A .env file in the working directory is honored when present.
func LoadCommonConfig() (CommonConfig, error) {
	_ = godotenv.Load()

	cfg := CommonConfig{}
	var err error

	redisAddrsStr := os.Getenv("REDIS_ADDRS")
	if redisAddrsStr == "" {
		cfg.RedisAddrs = []string{"redis-cluster-headless.titan-arena.svc.cluster.local:6379"}
	} else {
		for _, addr := range strings.Split(redisAddrsStr, ",") {
			cfg.RedisAddrs = append(cfg.RedisAddrs, strings.TrimSpace(addr))
		}
	}

	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.LogLevel = os.Getenv("LOG_LEVEL")
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	cfg.HeartbeatInterval, err = getDuration("SERVICE_HEARTBEAT_INTERVAL", 5*time.Second)
	if err != nil {
		return cfg, err
	}
	cfg.HeartbeatTTL, err = getDuration("SERVICE_HEARTBEAT_TTL", 15*time.Second)
	if err != nil {
		return cfg, err
	}
	cfg.RegistryCleanupInterval, err = getDuration("SERVICE_REGISTRY_CLEANUP_INTERVAL", 30*time.Second)
	if err != nil {
		return cfg, err
	}

	// Service IP for registration, injected by Kubernetes.
	cfg.ServiceIP = os.Getenv("POD_IP")
	if cfg.ServiceIP == "" {
		cfg.ServiceIP = "0.0.0.0"
	}

	return cfg, nil
}

// LoadArenaServiceConfig loads configuration for the arena-service.
func LoadArenaServiceConfig() (*ArenaServiceConfig, error) {
	common, err := LoadCommonConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load common config for arena-service: %w", err)
	}

	cfg := &ArenaServiceConfig{
		CommonConfig:      common,
		ListenAddr:        os.Getenv("ARENA_SERVICE_LISTEN_ADDR"),
		RatingServiceURL:  os.Getenv("RATING_SERVICE_URL"),
		LoadoutServiceURL: os.Getenv("LOADOUT_SERVICE_URL"),
	}

	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8082"
	}
	if cfg.RatingServiceURL == "" {
		cfg.RatingServiceURL = "http://rating-service:8081"
	}
	if cfg.LoadoutServiceURL == "" {
		cfg.LoadoutServiceURL = "http://loadout-service:8083"
	}

	cfg.ServicePort, err = extractPort(cfg.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to extract port from ARENA_SERVICE_LISTEN_ADDR %q: %w", cfg.ListenAddr, err)
	}

	cfg.MatchPassInterval, err = getDuration("ARENA_MATCH_PASS_INTERVAL", 1*time.Second)
	if err != nil {
		return nil, err
	}
	cfg.WindowBase, err = getFloat("ARENA_WINDOW_BASE", 100)
	if err != nil {
		return nil, err
	}
	cfg.WindowMax, err = getFloat("ARENA_WINDOW_MAX", 500)
	if err != nil {
		return nil, err
	}
	// The default growth reaches WindowMax after roughly a minute of waiting.
	cfg.WindowGrowthPerSec, err = getFloat("ARENA_WINDOW_GROWTH_PER_SEC", 6.67)
	if err != nil {
		return nil, err
	}

	cfg.SelectTimeout, err = getDuration("ARENA_SELECT_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, err
	}
	cfg.RoundTimeout, err = getDuration("ARENA_ROUND_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	cfg.MaxRounds, err = getInt("ARENA_MAX_ROUNDS", 50)
	if err != nil {
		return nil, err
	}
	cfg.MissForfeitAfter, err = getInt("ARENA_MISS_FORFEIT_AFTER", 3)
	if err != nil {
		return nil, err
	}
	cfg.PresenceTTL, err = getDuration("ARENA_PRESENCE_TTL", 2*time.Hour)
	if err != nil {
		return nil, err
	}
	cfg.SnapshotTTL, err = getDuration("ARENA_SNAPSHOT_TTL", 24*time.Hour)
	if err != nil {
		return nil, err
	}
	cfg.LoadoutCacheTTL, err = getDuration("ARENA_LOADOUT_CACHE_TTL", 10*time.Minute)
	if err != nil {
		return nil, err
	}
	cfg.SettlementTimeout, err = getDuration("ARENA_SETTLEMENT_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	cfg.TerminalSessionKeep, err = getDuration("ARENA_TERMINAL_SESSION_KEEP", 15*time.Minute)
	if err != nil {
		return nil, err
	}

	cfg.RatingKBase, err = getFloat("ARENA_RATING_K_BASE", 32)
	if err != nil {
		return nil, err
	}
	cfg.RatingKProvisional, err = getFloat("ARENA_RATING_K_PROVISIONAL", 64)
	if err != nil {
		return nil, err
	}
	cfg.ProvisionalGames, err = getInt("ARENA_RATING_PROVISIONAL_GAMES", 10)
	if err != nil {
		return nil, err
	}

	if cfg.MaxRounds <= 0 {
		return nil, fmt.Errorf("ARENA_MAX_ROUNDS must be positive (got %d)", cfg.MaxRounds)
	}
	if cfg.WindowBase <= 0 || cfg.WindowMax < cfg.WindowBase {
		return nil, fmt.Errorf("invalid matchmaking window bounds: base=%.0f max=%.0f", cfg.WindowBase, cfg.WindowMax)
	}

	return cfg, nil
}

// LoadRatingServiceConfig loads configuration for the rating-service.
func LoadRatingServiceConfig() (*RatingServiceConfig, error) {
	common, err := LoadCommonConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load common config for rating-service: %w", err)
	}

	cfg := &RatingServiceConfig{
		CommonConfig:             common,
		ListenAddr:               os.Getenv("RATING_SERVICE_LISTEN_ADDR"),
		MongoDBConnStr:           os.Getenv("MONGODB_CONN_STR"),
		MongoDBDatabase:          os.Getenv("MONGODB_DATABASE"),
		MongoDBRatingsCollection: os.Getenv("MONGODB_RATINGS_COLLECTION"),
		MongoDBSeasonsCollection: os.Getenv("MONGODB_SEASONS_COLLECTION"),
		MongoDBMatchesCollection: os.Getenv("MONGODB_MATCHES_COLLECTION"),
	}

	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8081"
	}
	if cfg.MongoDBConnStr == "" {
		cfg.MongoDBConnStr = "mongodb://mongodb-service:27017"
	}
	if cfg.MongoDBDatabase == "" {
		cfg.MongoDBDatabase = "titanarena"
	}
	if cfg.MongoDBRatingsCollection == "" {
		cfg.MongoDBRatingsCollection = "player_ratings"
	}
	if cfg.MongoDBSeasonsCollection == "" {
		cfg.MongoDBSeasonsCollection = "seasons"
	}
	if cfg.MongoDBMatchesCollection == "" {
		cfg.MongoDBMatchesCollection = "matches"
	}

	cfg.BaseRating, err = getFloat("RATING_BASE", 1200)
	if err != nil {
		return nil, err
	}
	cfg.SeasonLength, err = getDuration("RATING_SEASON_LENGTH", 90*24*time.Hour)
	if err != nil {
		return nil, err
	}

	cfg.ServicePort, err = extractPort(cfg.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to extract port from RATING_SERVICE_LISTEN_ADDR %q: %w", cfg.ListenAddr, err)
	}

	return cfg, nil
}

// Helper function to parse duration from environment variable.
func getDuration(envKey string, defaultVal time.Duration) (time.Duration, error) {
	valStr := os.Getenv(envKey)
	if valStr == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(valStr)
	if err != nil {
		return 0, fmt.Errorf("invalid duration format for %s: %w", envKey, err)
	}
	return d, nil
}

// Helper function to parse int from environment variable.
func getInt(envKey string, defaultVal int) (int, error) {
	valStr := os.Getenv(envKey)
	if valStr == "" {
		return defaultVal, nil
	}
	i, err := strconv.Atoi(valStr)
	if err != nil {
		return 0, fmt.Errorf("invalid integer format for %s: %w", envKey, err)
	}
	return i, nil
}

// Helper function to parse float from environment variable.
func getFloat(envKey string, defaultVal float64) (float64, error) {
	valStr := os.Getenv(envKey)
	if valStr == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(valStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float format for %s: %w", envKey, err)
	}
	return f, nil
}

// extractPort extracts the numeric port from a listen address
// (e.g. ":8082" -> 8082, "0.0.0.0:8082" -> 8082).
func extractPort(listenAddr string) (int, error) {
	_, portStr, err := net.SplitHostPort(listenAddr)
	if err != nil {
		if strings.HasPrefix(listenAddr, ":") {
			portStr = strings.TrimPrefix(listenAddr, ":")
		} else {
			return 0, fmt.Errorf("invalid ListenAddr format for port extraction: %w", err)
		}
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0, fmt.Errorf("invalid port number %q: %w", portStr, err)
	}
	return port, nil
}
