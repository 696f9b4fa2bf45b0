package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	DB        DBConfig        `mapstructure:"db"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Redis     RedisConfig     `mapstructure:"redis"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	CORS      CORSConfig      `mapstructure:"cors"`
	Log       LogConfig       `mapstructure:"log"`
	AppHost   string          `mapstructure:"host"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type DBConfig struct {
	Source  string        `mapstructure:"source"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Issuer string        `mapstructure:"issuer"`
	TTL    time.Duration `mapstructure:"ttl"`
}

type StorageConfig struct {
	Driver         string      `mapstructure:"driver"`
	Path           string      `mapstructure:"path"`
	MaxUploadBytes int64       `mapstructure:"max_upload_bytes"`
	Minio          MinioConfig `mapstructure:"minio"`
}

type MinioConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Secure    bool   `mapstructure:"secure"`
}

// RedisConfig points the rate limiter at a shared Redis. An empty Addr keeps
// the limiter in process.
type RedisConfig struct {
	Addr string `mapstructure:"addr"`
}

type RateLimitConfig struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

const (
	StorageDriverLocal = "local"
	StorageDriverMinio = "minio"
)

var (
	ErrMissingDBSource     = errors.New("db.source is required")
	ErrMissingJWTSecret    = errors.New("jwt.secret is required")
	ErrUnknownStorage      = errors.New("storage.driver must be 'local' or 'minio'")
	ErrMissingMinioBucket  = errors.New("storage.minio.bucket is required for the minio driver")
	ErrInvalidUploadLimit  = errors.New("storage.max_upload_bytes must be positive")
	ErrInvalidRateLimiting = errors.New("ratelimit.requests and ratelimit.window must be positive")
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("host", "localhost")
	v.SetDefault("server.addr", ":5000")
	v.SetDefault("db.timeout", 5*time.Second)
	v.SetDefault("jwt.issuer", "modelhub")
	v.SetDefault("jwt.ttl", 30*24*time.Hour)
	v.SetDefault("storage.driver", StorageDriverLocal)
	v.SetDefault("storage.path", "./uploads")
	v.SetDefault("storage.max_upload_bytes", 100<<20)
	v.SetDefault("storage.minio.bucket", "modelhub")
	v.SetDefault("ratelimit.requests", 20)
	v.SetDefault("ratelimit.window", time.Minute)
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
}

func Load() (*Config, error) {
	return load(viper.New(), "./configs", "/configs")
}

func load(v *viper.Viper, paths ...string) (*Config, error) {
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.SetConfigName("settings")
	v.SetConfigType("yml")

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	// AutomaticEnv only covers keys viper already knows about, so bind the
	// ones that have no default.
	for _, key := range []string{"db.source", "jwt.secret", "redis.addr",
		"storage.minio.endpoint", "storage.minio.access_key", "storage.minio.secret_key", "storage.minio.secure"} {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.DB.Source == "" {
		return ErrMissingDBSource
	}
	if c.JWT.Secret == "" {
		return ErrMissingJWTSecret
	}
	switch c.Storage.Driver {
	case StorageDriverLocal:
	case StorageDriverMinio:
		if c.Storage.Minio.Bucket == "" {
			return ErrMissingMinioBucket
		}
	default:
		return ErrUnknownStorage
	}
	if c.Storage.MaxUploadBytes <= 0 {
		return ErrInvalidUploadLimit
	}
	if c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0 {
		return ErrInvalidRateLimiting
	}
	return nil
}
