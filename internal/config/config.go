package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/xxxsen/common/logger"
)

const (
	CacheTypeNone   = "none"
	CacheTypeMemory = "memory"
	CacheTypeRedis  = "redis"
)

type Config struct {
	Port        int              `json:"port" validate:"required,min=1,max=65535"`
	Database    DatabaseConfig   `json:"database"`
	LogConfig   logger.LogConfig `json:"log_config"`
	Vector      VectorConfig     `json:"vector"`
	Cache       CacheConfig      `json:"cache"`
	Recommend   RecommendConfig  `json:"recommend"`
	Retrain     RetrainConfig    `json:"retrain"`
	FileStore   FileStoreConfig  `json:"file_store"`
	Admin       AdminConfig      `json:"admin"`
	CORSOrigins []string         `json:"cors_origins"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host" validate:"required_without=DSN"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname" validate:"required_without=DSN"`
	SSLMode  string `json:"sslmode"`
}

// VectorConfig describes the pgvector index. Dimension must match the
// vector(N) columns created by the migrations.
type VectorConfig struct {
	Dimension        int    `json:"dimension" validate:"min=1,max=2000"`
	BreakerFailures  uint32 `json:"breaker_failures"`
	BreakerTimeoutMs int64  `json:"breaker_timeout_ms"`
}

type CacheConfig struct {
	Type       string `json:"type" validate:"oneof=none memory redis"`
	RedisAddr  string `json:"redis_addr" validate:"required_if=Type redis"`
	RedisPass  string `json:"redis_password"`
	RedisDB    int    `json:"redis_db"`
	TTLSeconds int64  `json:"ttl_seconds" validate:"min=0"`
	Size       int    `json:"size" validate:"min=0"`
}

type RecommendConfig struct {
	CFWeight         float64 `json:"cf_weight" validate:"min=0,max=1"`
	ContentWeight    float64 `json:"content_weight" validate:"min=0,max=1"`
	KNeighbors       int     `json:"k_neighbors" validate:"min=1"`
	MinSimilarity    float64 `json:"min_similarity" validate:"min=0,max=1"`
	CandidatePool    int     `json:"candidate_pool" validate:"min=1"`
	DefaultLimit     int     `json:"default_limit" validate:"min=1"`
	MaxLimit         int     `json:"max_limit" validate:"min=1,gtefield=DefaultLimit"`
	ProductCacheSize int     `json:"product_cache_size" validate:"min=0"`
}

type RetrainConfig struct {
	ModelName        string `json:"model_name"`
	Cron             string `json:"cron"`
	ProfileCron      string `json:"profile_refresh_cron"`
	OnStart          bool   `json:"on_start"`
	WeightByQuantity *bool  `json:"weight_by_quantity"`
	BatchSize        int    `json:"batch_size" validate:"min=1"`
}

func (r RetrainConfig) QuantityWeighted() bool {
	if r.WeightByQuantity == nil {
		return true
	}
	return *r.WeightByQuantity
}

// FileStoreConfig selects where per-version model artifacts are written.
// An empty type disables artifact storage.
type FileStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type AdminConfig struct {
	JWTSecret         string `json:"jwt_secret" validate:"required,min=8"`
	PasswordHash      string `json:"password_hash"`
	TokenTTLHours     int    `json:"token_ttl_hours" validate:"min=1"`
	RetrainRateWindow int64  `json:"retrain_rate_window_seconds" validate:"min=0"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	applyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.Vector.Dimension == 0 {
		cfg.Vector.Dimension = 128
	}
	if cfg.Vector.BreakerFailures == 0 {
		cfg.Vector.BreakerFailures = 5
	}
	if cfg.Vector.BreakerTimeoutMs == 0 {
		cfg.Vector.BreakerTimeoutMs = 10000
	}
	cfg.Cache.Type = strings.ToLower(strings.TrimSpace(cfg.Cache.Type))
	if cfg.Cache.Type == "" {
		cfg.Cache.Type = CacheTypeMemory
	}
	if cfg.Cache.TTLSeconds == 0 {
		cfg.Cache.TTLSeconds = 300
	}
	if cfg.Cache.Size == 0 {
		cfg.Cache.Size = 10000
	}
	if cfg.Recommend.CFWeight == 0 && cfg.Recommend.ContentWeight == 0 {
		cfg.Recommend.CFWeight = 0.6
		cfg.Recommend.ContentWeight = 0.4
	}
	if cfg.Recommend.KNeighbors == 0 {
		cfg.Recommend.KNeighbors = 20
	}
	if cfg.Recommend.MinSimilarity == 0 {
		cfg.Recommend.MinSimilarity = 0.1
	}
	if cfg.Recommend.CandidatePool == 0 {
		cfg.Recommend.CandidatePool = 20
	}
	if cfg.Recommend.DefaultLimit == 0 {
		cfg.Recommend.DefaultLimit = 5
	}
	if cfg.Recommend.MaxLimit == 0 {
		cfg.Recommend.MaxLimit = 20
	}
	if cfg.Recommend.ProductCacheSize == 0 {
		cfg.Recommend.ProductCacheSize = 5000
	}
	if cfg.Retrain.ModelName == "" {
		cfg.Retrain.ModelName = "hybrid_recommendation_model"
	}
	if cfg.Retrain.BatchSize == 0 {
		cfg.Retrain.BatchSize = 500
	}
	if cfg.Admin.TokenTTLHours == 0 {
		cfg.Admin.TokenTTLHours = 12
	}
	if cfg.Admin.RetrainRateWindow == 0 {
		cfg.Admin.RetrainRateWindow = 30
	}
}

func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	sum := cfg.Recommend.CFWeight + cfg.Recommend.ContentWeight
	if sum < 0.99 || sum > 1.01 {
		return fmt.Errorf("recommend.cf_weight + recommend.content_weight must be 1.0, got %.3f", sum)
	}
	return nil
}
