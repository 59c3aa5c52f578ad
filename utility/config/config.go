package config

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const (
	EnvConfigFile     = "ATTACHMENT_CONFIG"
	DefaultConfigFile = "/etc/attachment.yaml"
	envPrefix         = "ATTACHMENT"
)

type Config struct {
	HTTP      HTTP      `mapstructure:"http"`
	Storage   Storage   `mapstructure:"storage"`
	CDN       CDN       `mapstructure:"cdn"`
	Thumbnail Thumbnail `mapstructure:"thumbnail"`
	Upload    Upload    `mapstructure:"upload"`
	Record    Record    `mapstructure:"record"`
	Limiter   Limiter   `mapstructure:"limiter"`
	Secret    Secret    `mapstructure:"secret"`

	Production bool   `mapstructure:"production"`
	LogLevel   string `mapstructure:"log_level"`
}

type HTTP struct {
	Address         string        `mapstructure:"address"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	FetchTimeout    time.Duration `mapstructure:"fetch_timeout"`
}

type Storage struct {
	// Provider is one of minio, s3, gcs, inmemory
	Provider string `mapstructure:"provider"`

	Endpoint string `mapstructure:"endpoint"`
	Region   string `mapstructure:"region"`
	UseSSL   bool   `mapstructure:"use_ssl"`
	Bucket   string `mapstructure:"bucket"`

	// Prefix is the canonical URL prefix of stored objects, eg. "http://bucket.s3.amazonaws.com/"
	Prefix string `mapstructure:"prefix"`

	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`

	// SecretRef names the secret holding SecretAccessKey, "name" or "name@version"
	SecretRef string `mapstructure:"secret_ref"`

	CacheControl string `mapstructure:"cache_control"`
	ACL          string `mapstructure:"acl"`
}

type CDN struct {
	Origin     string `mapstructure:"origin"`
	ShardCount int    `mapstructure:"shard_count"`
}

type Thumbnail struct {
	Service string `mapstructure:"service"`
}

type Upload struct {
	MaxFileSize       int64         `mapstructure:"max_file_size"`
	AllowedExtensions []string      `mapstructure:"allowed_extensions"`
	ServerTypes       []string      `mapstructure:"server_types"`
	PolicyExpiry      time.Duration `mapstructure:"policy_expiry"`
	MaxFetchSize      int64         `mapstructure:"max_fetch_size"`
}

type Record struct {
	// Driver is one of inmemory, postgres, redis
	Driver  string        `mapstructure:"driver"`
	DSN     string        `mapstructure:"dsn"`
	Table   string        `mapstructure:"table"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type Limiter struct {
	// Driver is one of none, inmemory, redis
	Driver  string        `mapstructure:"driver"`
	Address string        `mapstructure:"address"`
	Max     int           `mapstructure:"max"`
	Window  time.Duration `mapstructure:"window"`
}

type Secret struct {
	// Provider is one of none, gsm
	Provider  string        `mapstructure:"provider"`
	ProjectID string        `mapstructure:"project_id"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl"`
}

var defaults = map[string]any{
	"http.address":          ":9090",
	"http.shutdown_timeout": 10 * time.Second,
	"http.fetch_timeout":    30 * time.Second,

	"storage.provider":          "inmemory",
	"storage.endpoint":          "",
	"storage.region":            "us-east-1",
	"storage.use_ssl":           true,
	"storage.bucket":            "",
	"storage.prefix":            "",
	"storage.access_key_id":     "",
	"storage.secret_access_key": "",
	"storage.secret_ref":        "",
	"storage.cache_control":     "public, max-age=2629743",
	"storage.acl":               "public-read",

	"cdn.origin":      "",
	"cdn.shard_count": 6,

	"thumbnail.service": "",

	"upload.max_file_size":      10 * 1024 * 1024,
	"upload.allowed_extensions": []string{"jpg", "png", "gif", "css", "html", "js", "pdf", "swf", "ico", "mp3"},
	"upload.server_types":       []string{".html", ".htm", ".css"},
	"upload.policy_expiry":      30000 * time.Second,
	"upload.max_fetch_size":     32 * 1024 * 1024,

	"record.driver":  "inmemory",
	"record.dsn":     "",
	"record.table":   "attachment",
	"record.timeout": 5 * time.Second,

	"limiter.driver":  "none",
	"limiter.address": "",
	"limiter.max":     0,
	"limiter.window":  time.Minute,

	"secret.provider":   "none",
	"secret.project_id": "",
	"secret.cache_ttl":  10 * time.Minute,

	"production": false,
	"log_level":  "info",
}

// Load reads the YAML file named by ATTACHMENT_CONFIG, or /etc/attachment.yaml.
// Every key can be overridden by environment, eg. ATTACHMENT_STORAGE_BUCKET.
func Load() (Config, error) {
	cfgFile := DefaultConfigFile
	if f := os.Getenv(EnvConfigFile); f != "" {
		cfgFile = f
	}

	f, err := os.Open(cfgFile)
	if err != nil {
		return Config{}, fmt.Errorf("failed to open config %v: %w", cfgFile, err)
	}
	defer f.Close()

	log.Info().Msgf("reading config: %v", cfgFile)
	return Read(f)
}

// Read parses YAML config from r, applying defaults and environment overrides.
func Read(r io.Reader) (Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigType("yaml")
	if err := v.ReadConfig(r); err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return Config{}, err
	}

	return c, nil
}

func (c Config) Validate() error {
	switch c.Storage.Provider {
	case "inmemory":
	case "minio", "s3", "gcs":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket is required for provider %v", c.Storage.Provider)
		}
	default:
		return fmt.Errorf("unknown storage.provider %q", c.Storage.Provider)
	}
	if c.Storage.Prefix == "" {
		return fmt.Errorf("storage.prefix is required")
	}

	switch c.Record.Driver {
	case "inmemory", "postgres", "redis":
	default:
		return fmt.Errorf("unknown record.driver %q", c.Record.Driver)
	}

	switch c.Limiter.Driver {
	case "none", "inmemory", "redis":
	default:
		return fmt.Errorf("unknown limiter.driver %q", c.Limiter.Driver)
	}

	if c.Storage.SecretRef != "" && c.Secret.Provider == "none" {
		return fmt.Errorf("storage.secret_ref needs a secret.provider")
	}

	return nil
}
