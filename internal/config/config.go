package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the portal service.
type Config struct {
	AppName                string
	AppEnv                 string
	AppPort                string
	MongoURI               string
	MongoDatabase          string
	MongoConnectTimeout    time.Duration
	MongoSelectionTimeout  time.Duration
	DataDir                string
	DirectoryDatabaseURL   string
	DirectoryFile          string
	RedisURL               string
	CacheTTL               time.Duration
	NATSURL                string
	NATSSubject            string
	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
	UploadMaxSizeMB        int
	OpenAIAPIKey           string
	OpenAIModel            string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// BlobStoreConfigured reports whether Cloudinary credentials are present.
func (c Config) BlobStoreConfigured() bool {
	return c.CloudinaryCloudName != "" && c.CloudinaryAPIKey != "" && c.CloudinaryAPISecret != ""
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("PORTAL")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	return load(v)
}

func load(v *viper.Viper) (Config, error) {
	v.SetDefault("app.name", "Sponsorship Portal")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "3000")
	v.SetDefault("mongodb.database", "student_portal")
	v.SetDefault("mongodb.connect_timeout", "15s")
	v.SetDefault("mongodb.server_selection_timeout", "10s")
	v.SetDefault("data.dir", "data")
	v.SetDefault("directory.file", "students.csv")
	v.SetDefault("cache.ttl", "5m")
	v.SetDefault("nats.subject", "portal.records")
	v.SetDefault("cloudinary.folder", "")
	v.SetDefault("upload.max_size_mb", 10)
	v.SetDefault("openai.model", "gpt-4o-mini")

	connectTimeout, err := duration(v, "mongodb.connect_timeout")
	if err != nil {
		return Config{}, err
	}
	selectionTimeout, err := duration(v, "mongodb.server_selection_timeout")
	if err != nil {
		return Config{}, err
	}
	cacheTTL, err := duration(v, "cache.ttl")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		MongoURI:               strings.TrimSpace(v.GetString("mongodb.uri")),
		MongoDatabase:          v.GetString("mongodb.database"),
		MongoConnectTimeout:    connectTimeout,
		MongoSelectionTimeout:  selectionTimeout,
		DataDir:                v.GetString("data.dir"),
		DirectoryDatabaseURL:   v.GetString("directory.database_url"),
		DirectoryFile:          v.GetString("directory.file"),
		RedisURL:               v.GetString("redis.url"),
		CacheTTL:               cacheTTL,
		NATSURL:                v.GetString("nats.url"),
		NATSSubject:            v.GetString("nats.subject"),
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		UploadMaxSizeMB:        v.GetInt("upload.max_size_mb"),
		OpenAIAPIKey:           v.GetString("openai.api_key"),
		OpenAIModel:            v.GetString("openai.model"),
	}

	if cfg.DataDir == "" {
		return Config{}, fmt.Errorf("data directory must not be empty")
	}

	if cfg.UploadMaxSizeMB <= 0 {
		cfg.UploadMaxSizeMB = 10
	}

	return cfg, nil
}

func duration(v *viper.Viper, key string) (time.Duration, error) {
	value, err := time.ParseDuration(v.GetString(key))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return value, nil
}
