package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig
	Marketplace MarketplaceConfig
	Geo         GeoConfig
	Persistence PersistenceConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	RateLimit   RateLimitConfig
}

type ServerConfig struct {
	Port           string
	Env            string
	AllowedOrigins []string
}

type MarketplaceConfig struct {
	BaseURL            string
	Timeout            time.Duration
	BreakerMaxFailures uint32
	BreakerOpenTimeout time.Duration
}

type GeoConfig struct {
	IPLookupURL   string
	DeviceTimeout time.Duration
	MaxFixAge     time.Duration
}

// PersistenceConfig selects where session state is kept: memory, redis or postgres
type PersistenceConfig struct {
	Backend string
	Prefix  string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	Schema   string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// Addr returns host:port
func (r RedisConfig) Addr() string {
	return r.Host + ":" + r.Port
}

type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// IsDevelopment reports whether the service runs outside production
func (c *Config) IsDevelopment() bool {
	return c.Server.Env != "production"
}

func Load() *Config {
	// .env values become process env so AutomaticEnv and child tooling agree
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Could not load .env into environment: %v", err)
	}

	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_ENV", "development")
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "")
	viper.SetDefault("MARKETPLACE_BASE_URL", "http://localhost:5000/api")
	viper.SetDefault("MARKETPLACE_TIMEOUT", "15s")
	viper.SetDefault("BREAKER_MAX_FAILURES", 5)
	viper.SetDefault("BREAKER_OPEN_TIMEOUT", "30s")
	viper.SetDefault("IPGEO_URL", "https://ipapi.co/json/")
	viper.SetDefault("GEO_DEVICE_TIMEOUT", "10s")
	viper.SetDefault("GEO_MAX_FIX_AGE", "5m")
	viper.SetDefault("PERSISTENCE_BACKEND", "memory")
	viper.SetDefault("PERSISTENCE_PREFIX", "storefront")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_SCHEMA", "public")
	viper.SetDefault("REDIS_HOST", "localhost")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("RATE_LIMIT_REQUESTS", 60)
	viper.SetDefault("RATE_LIMIT_WINDOW", "1m")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Warning: Could not read config file: %v", err)
	}

	return &Config{
		Server: ServerConfig{
			Port:           viper.GetString("SERVER_PORT"),
			Env:            viper.GetString("SERVER_ENV"),
			AllowedOrigins: splitList(viper.GetString("CORS_ALLOWED_ORIGINS")),
		},
		Marketplace: MarketplaceConfig{
			BaseURL:            viper.GetString("MARKETPLACE_BASE_URL"),
			Timeout:            viper.GetDuration("MARKETPLACE_TIMEOUT"),
			BreakerMaxFailures: viper.GetUint32("BREAKER_MAX_FAILURES"),
			BreakerOpenTimeout: viper.GetDuration("BREAKER_OPEN_TIMEOUT"),
		},
		Geo: GeoConfig{
			IPLookupURL:   viper.GetString("IPGEO_URL"),
			DeviceTimeout: viper.GetDuration("GEO_DEVICE_TIMEOUT"),
			MaxFixAge:     viper.GetDuration("GEO_MAX_FIX_AGE"),
		},
		Persistence: PersistenceConfig{
			Backend: strings.ToLower(viper.GetString("PERSISTENCE_BACKEND")),
			Prefix:  viper.GetString("PERSISTENCE_PREFIX"),
		},
		Database: DatabaseConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASSWORD"),
			Database: viper.GetString("DB_DATABASE"),
			Schema:   viper.GetString("DB_SCHEMA"),
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		RateLimit: RateLimitConfig{
			Requests: viper.GetInt("RATE_LIMIT_REQUESTS"),
			Window:   viper.GetDuration("RATE_LIMIT_WINDOW"),
		},
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
