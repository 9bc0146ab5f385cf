package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Cfg holds the configuration loaded by LoadConfig.
var Cfg *Config

// Config mirrors the layout of config.yaml.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Store     StoreConfig     `mapstructure:"store"`
	Session   SessionConfig   `mapstructure:"session"`
	Bootstrap BootstrapConfig `mapstructure:"bootstrap"`
}

// ServerConfig covers the HTTP listener.
type ServerConfig struct {
	Mode    string     `mapstructure:"mode"`
	Address string     `mapstructure:"address"`
	Cors    CorsConfig `mapstructure:"cors"`
}

// CorsConfig lists the front-end origins allowed to call the API.
type CorsConfig struct {
	AllowedOrigins []string `mapstructure:"allowedOrigins"`
}

// DatabaseConfig covers the relational database and Redis.
type DatabaseConfig struct {
	Driver string      `mapstructure:"driver"`
	DSN    string      `mapstructure:"dsn"`
	Redis  RedisConfig `mapstructure:"redis"`
}

// RedisConfig is the Redis connection used for sessions.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// StoreDriver selects where raffles and registrations live.
type StoreDriver string

const (
	// StoreLocal keeps raffles in the service's own database.
	StoreLocal StoreDriver = "local"
	// StoreRemote delegates to an external json-server style API.
	StoreRemote StoreDriver = "remote"
)

// StoreConfig selects the raffle repository implementation.
type StoreConfig struct {
	Driver StoreDriver       `mapstructure:"driver"`
	Remote RemoteStoreConfig `mapstructure:"remote"`
	// FeedSyncInterval is how often the open raffle is re-read from the
	// store for the live feed. Zero disables polling.
	FeedSyncInterval time.Duration `mapstructure:"feedSyncInterval"`
}

// RemoteStoreConfig points at the external REST resource store.
type RemoteStoreConfig struct {
	BaseURL string        `mapstructure:"baseURL"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// SessionConfig controls the login cookie and its Redis record.
type SessionConfig struct {
	TTL        time.Duration `mapstructure:"ttl"`
	CookieName string        `mapstructure:"cookieName"`
	Secure     bool          `mapstructure:"secure"`
	// Secret signs session cookies. A random key is generated when empty,
	// which invalidates all sessions on restart.
	Secret string `mapstructure:"secret"`
	// LoginMaxFailures failed logins per client IP within LoginFailureWindow
	// block further attempts. Zero disables the limit.
	LoginMaxFailures   int           `mapstructure:"loginMaxFailures"`
	LoginFailureWindow time.Duration `mapstructure:"loginFailureWindow"`
}

// BootstrapConfig describes the admin account created on first start.
type BootstrapConfig struct {
	AdminEmail    string `mapstructure:"adminEmail"`
	AdminPassword string `mapstructure:"adminPassword"`
	AdminName     string `mapstructure:"adminName"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.cors.allowedOrigins", []string{"http://localhost:4200"})
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "raffle.db")
	v.SetDefault("database.redis.address", "localhost:6379")
	v.SetDefault("database.redis.password", "")
	v.SetDefault("database.redis.db", 0)
	v.SetDefault("store.driver", string(StoreLocal))
	v.SetDefault("store.remote.baseURL", "")
	v.SetDefault("store.remote.timeout", 10*time.Second)
	v.SetDefault("store.feedSyncInterval", 30*time.Second)
	v.SetDefault("session.ttl", 24*time.Hour)
	v.SetDefault("session.cookieName", "raffle-session")
	v.SetDefault("session.secure", false)
	v.SetDefault("session.secret", "")
	v.SetDefault("session.loginMaxFailures", 10)
	v.SetDefault("session.loginFailureWindow", 15*time.Minute)
	v.SetDefault("bootstrap.adminEmail", "")
	v.SetDefault("bootstrap.adminPassword", "")
	v.SetDefault("bootstrap.adminName", "Administrator")
}

// LoadConfig reads config.yaml from ./config or the working directory.
// Environment variables override file values, e.g. DATABASE_DRIVER=postgres.
// A .env file is loaded into the environment first when present.
func LoadConfig() (*Config, error) {
	// A missing .env is the normal case outside local development.
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// Running on defaults + env alone is allowed.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	Cfg = &cfg
	return Cfg, nil
}
