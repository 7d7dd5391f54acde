package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/redis/go-redis/v9"
)

// AppConfig holds configuration values parsed from environment variables.
type AppConfig struct {
	// Env is the runtime environment, either "dev" or "prod".
	Env string `koanf:"env" validate:"required,oneof=dev prod"`

	// LogLevel controls log verbosity: "debug", "info", "warn", or "error".
	LogLevel string `koanf:"log_level" validate:"required,oneof=debug info warn error"`

	// DBPath is the bbolt file holding users, contacts and spam reports.
	DBPath string `koanf:"db_path" validate:"required"`

	// DBTimeout bounds how long opening the database waits for the file lock.
	DBTimeout time.Duration `koanf:"db_timeout" validate:"gte=0"`

	// CacheBackend selects the search result cache: "memory" or "redis".
	CacheBackend string `koanf:"cache_backend" validate:"required,oneof=memory redis"`

	// CacheSize bounds the number of entries held by the memory cache.
	CacheSize int `koanf:"cache_size" validate:"required,gte=1"`

	// RedisURL is required when CacheBackend is "redis".
	RedisURL    string `koanf:"redis_url" validate:"required_if=CacheBackend redis,redis_url"`
	RedisPrefix string `koanf:"redis_prefix" validate:"required"`

	NameSearchTTL   time.Duration `koanf:"name_search_ttl" validate:"gt=0"`
	PhoneUserTTL    time.Duration `koanf:"phone_user_ttl" validate:"gt=0"`
	PhoneContactTTL time.Duration `koanf:"phone_contact_ttl" validate:"gt=0"`

	// PhoneCacheReads lets phone search answer from the result cache.
	// When false, phone results are only ever written to the cache.
	PhoneCacheReads bool `koanf:"phone_cache_reads"`

	// BloomFPRate is the target false positive rate of the reported-number filter.
	BloomFPRate float64 `koanf:"bloom_fp_rate" validate:"gt=0,lt=1"`

	// SeedFile is an optional YAML, JSON or TOML file imported at startup.
	SeedFile string `koanf:"seed_file"`

	// MetricsFile, if set, receives a Prometheus text dump when the process exits.
	MetricsFile string `koanf:"metrics_file"`
}

// DEFAULT_APP_CONFIG defines the default application configuration.
var DEFAULT_APP_CONFIG = AppConfig{
	Env:             "prod",
	LogLevel:        "info",
	DBPath:          "/var/lib/phonebook/phonebook.db",
	DBTimeout:       time.Second,
	CacheBackend:    "memory",
	CacheSize:       10000,
	RedisPrefix:     "phonebook:",
	NameSearchTTL:   100 * time.Second,
	PhoneUserTTL:    600 * time.Second,
	PhoneContactTTL: 100 * time.Second,
	PhoneCacheReads: false,
	BloomFPRate:     0.01,
}

// validRedisURL accepts an empty value, leaving presence to required_if,
// and otherwise anything go-redis can parse.
func validRedisURL(fl validator.FieldLevel) bool {
	raw := fl.Field().String()
	if raw == "" {
		return true
	}
	_, err := redis.ParseURL(raw)
	return err == nil
}

// envLoader loads environment variables with the prefix "PHONEBOOK_".
// It can be replaced in tests.
var envLoader = func(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: "PHONEBOOK_",
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ToLower(strings.TrimPrefix(key, "PHONEBOOK_"))
			return key, strings.TrimSpace(value)
		},
	}), nil)
}

// defaultLoader loads DEFAULT_APP_CONFIG through the structs provider.
var defaultLoader = func(k *koanf.Koanf) error {
	return k.Load(structs.Provider(DEFAULT_APP_CONFIG, "koanf"), nil)
}

var registerValidation = func(v *validator.Validate) error {
	return v.RegisterValidation("redis_url", validRedisURL, true)
}

// Load reads defaults then environment variables and returns a validated AppConfig.
func Load() (*AppConfig, error) {
	k := koanf.New(".")

	if err := defaultLoader(k); err != nil {
		return nil, fmt.Errorf("error loading default config: %w", err)
	}
	if err := envLoader(k); err != nil {
		return nil, fmt.Errorf("error loading env: %w", err)
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := registerValidation(validate); err != nil {
		return nil, fmt.Errorf("error registering validation: %w", err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return &cfg, nil
}
