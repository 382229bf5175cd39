package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Database struct {
		Host     string `mapstructure:"host"`
		Port     string `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		Name     string `mapstructure:"name"`
	} `mapstructure:"database"`
	Server struct {
		Port string `mapstructure:"port"`
	} `mapstructure:"server"`
	Redis struct {
		Host     string `mapstructure:"host"`
		Port     string `mapstructure:"port"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`
	JWT struct {
		SecretKey  string        `mapstructure:"secret_key"`
		AccessTTL  time.Duration `mapstructure:"access_ttl"`
		RefreshTTL time.Duration `mapstructure:"refresh_ttl"`
	} `mapstructure:"jwt"`
	API struct {
		Key string `mapstructure:"key"`
	} `mapstructure:"api"`
	Client   ClientConfig   `mapstructure:"client"`
	DynamoDB DynamoDBConfig `mapstructure:"dynamodb"`
}

// ClientConfig configures the authenticated API client used by dinectl.
type ClientConfig struct {
	BaseURL        string           `mapstructure:"base_url"`
	AuthURL        string           `mapstructure:"auth_url"`
	Timeout        time.Duration    `mapstructure:"timeout"`
	RefreshTimeout time.Duration    `mapstructure:"refresh_timeout"`
	TokenStore     TokenStoreConfig `mapstructure:"token_store"`
}

// TokenStoreConfig selects and configures the client-side token store.
// Driver is one of memory, file, redis, postgres or dynamodb.
type TokenStoreConfig struct {
	Driver    string        `mapstructure:"driver"`
	Path      string        `mapstructure:"path"`
	Namespace string        `mapstructure:"namespace"`
	Table     string        `mapstructure:"table"`
	TTL       time.Duration `mapstructure:"ttl"`
}

type DynamoDBConfig struct {
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"`
}

var AppConfig Config

var defaults = map[string]any{
	"server.port":                  "8080",
	"database.host":                "localhost",
	"database.port":                "5432",
	"database.user":                "postgres",
	"database.password":            "",
	"database.name":                "dine",
	"redis.host":                   "localhost",
	"redis.port":                   "6379",
	"redis.password":               "",
	"redis.db":                     0,
	"jwt.secret_key":               "",
	"jwt.access_ttl":               15 * time.Minute,
	"jwt.refresh_ttl":              7 * 24 * time.Hour,
	"api.key":                      "",
	"client.base_url":              "http://localhost:8080",
	"client.auth_url":              "",
	"client.timeout":               30 * time.Second,
	"client.refresh_timeout":       15 * time.Second,
	"client.token_store.driver":    "file",
	"client.token_store.path":      ".dine/tokens.json",
	"client.token_store.namespace": "default",
	"client.token_store.table":     "client_tokens",
	"client.token_store.ttl":       time.Duration(0),
	"dynamodb.region":              "us-east-1",
	"dynamodb.endpoint":            "",
}

// Load reads config.yml from path (if present) and overlays environment
// variables, e.g. CLIENT_BASE_URL overrides client.base_url.
func Load(path string) (Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yml")

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}

	if cfg.Client.AuthURL == "" {
		cfg.Client.AuthURL = cfg.Client.BaseURL
	}

	return cfg, nil
}

func LoadConfig(path string) {
	cfg, err := Load(path)
	if err != nil {
		log.Fatalf("Error loading config, %s", err)
	}
	AppConfig = cfg
}
