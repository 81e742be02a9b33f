package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewExtractionConfigHolder),
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string
	NodeID      int64 `validate:"gte=0,lte=1023"`

	OTLPEndpoint string

	Logger  LoggerConfig
	Storage StorageConfig
	Vertex  VertexConfig
	Redis   RedisConfig
	Ingest  IngestConfig
	Limits  RateLimitConfig

	DBType            string `validate:"oneof=postgres mysql sqlite"`
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int
}

type LoggerConfig struct {
	Level  string
	Format string
}

// StorageConfig selects where raw document bytes live.
type StorageConfig struct {
	Provider  string `validate:"oneof=gcs s3 local"`
	Bucket    string `validate:"required_unless=Provider local"`
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	LocalRoot string `validate:"required_if=Provider local"`
	// CredentialsJSON is an explicit GCS service-account key; ADC is used when empty.
	CredentialsJSON string
}

type VertexConfig struct {
	ProjectID string
	Region    string
	Model     string
}

func (v VertexConfig) Enabled() bool {
	return strings.TrimSpace(v.ProjectID) != ""
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	LockTTL  time.Duration
}

func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.Addr) != ""
}

// IngestConfig bounds uploaded document size.
type IngestConfig struct {
	MaxUploadBytes int64 `validate:"gt=0"`
}

// RateLimitConfig throttles ingestion endpoints; it needs Redis.
type RateLimitConfig struct {
	IngestRate  float64 `validate:"gte=0"`
	IngestBurst int     `validate:"gte=0"`
}

func (r RateLimitConfig) Enabled() bool {
	return r.IngestRate > 0 && r.IngestBurst > 0
}

// Load loads configuration from environment variables and .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		AppName:      getenv("APP_SERVICE", "docflow"),
		AppVersion:   getenv("APP_VERSION", "0.1.0"),
		Environment:  getenv("ENVIRONMENT", "development"),
		HTTPAddr:     getenv("HTTP_ADDR", ":8080"),
		NodeID:       int64(getenvInt("SNOWFLAKE_NODE_ID", 1)),
		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),
		Logger: LoggerConfig{
			Level:  strings.ToLower(getenv("LOG_LEVEL", "info")),
			Format: strings.ToLower(getenv("LOG_FORMAT", "json")),
		},
		Storage: StorageConfig{
			Provider:        strings.ToLower(getenv("STORAGE_PROVIDER", "gcs")),
			Bucket:          strings.TrimSpace(getenv("STORAGE_BUCKET", "")),
			Region:          getenv("STORAGE_REGION", "us-east-1"),
			Endpoint:        strings.TrimSpace(getenv("STORAGE_ENDPOINT", "")),
			AccessKey:       strings.TrimSpace(getenv("STORAGE_ACCESS_KEY", "")),
			SecretKey:       strings.TrimSpace(getenv("STORAGE_SECRET_KEY", "")),
			LocalRoot:       getenv("STORAGE_LOCAL_ROOT", ""),
			CredentialsJSON: getenv("GCS_CREDENTIALS_JSON", ""),
		},
		Vertex: VertexConfig{
			ProjectID: strings.TrimSpace(getenv("VERTEX_PROJECT_ID", "")),
			Region:    getenv("VERTEX_AI_REGION", "us-central1"),
			Model:     getenv("VERTEX_MODEL", "gemini-1.5-pro"),
		},
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       getenvInt("REDIS_DB", 0),
			LockTTL:  time.Duration(getenvInt("ATTEMPT_LOCK_TTL_SECONDS", 30)) * time.Second,
		},
		Ingest: IngestConfig{
			MaxUploadBytes: int64(getenvInt("MAX_UPLOAD_BYTES", 10*1024*1024)),
		},
		Limits: RateLimitConfig{
			IngestRate:  getenvFloat("INGEST_RATE_PER_SECOND", 2),
			IngestBurst: getenvInt("INGEST_RATE_BURST", 10),
		},
		DBType:            strings.ToLower(getenv("DATABASE_TYPE", "postgres")),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "docflow"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),
	}

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}
