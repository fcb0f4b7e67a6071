package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix                 = "PASTEMATE"
	defaultHTTPAddress        = "0.0.0.0:8080"
	defaultDatabaseDriver     = DatabaseDriverSQLite
	defaultDatabaseDSN        = "pastemate.db"
	defaultLogLevel           = "info"
	defaultAuthIssuer         = "pastemate-auth"
	defaultCookieName         = "app_session"
	defaultTokenTTLMinutes    = 60
	defaultBlobDriver         = BlobDriverFilesystem
	defaultBlobRoot           = "media"
	defaultBlobPublicBaseURL  = "/media"
	defaultArchiveLength      = 50
	defaultPageSize           = 20
	defaultMaxPasteBytes      = 512 * 1024
	defaultSweepInterval      = 5 * time.Minute
	defaultRateLimitPerMinute = 30
	defaultRateLimitBurst     = 10
	defaultHighlightStyle     = "friendly"
)

const (
	DatabaseDriverSQLite   = "sqlite"
	DatabaseDriverPostgres = "postgres"

	BlobDriverFilesystem = "filesystem"
	BlobDriverS3         = "s3"
)

// AppConfig captures runtime configuration for the API server and the maintenance commands.
type AppConfig struct {
	HTTPAddress string
	TrustProxy  bool
	LogLevel    string

	DatabaseDriver string
	DatabaseDSN    string

	AuthSigningSecret string
	AuthIssuer        string
	AuthCookieName    string
	TokenTTL          time.Duration

	BlobDriver        string
	BlobRoot          string
	BlobS3Bucket      string
	BlobS3Prefix      string
	BlobPublicBaseURL string

	RedisURL string

	HighlightStyle string

	ArchiveLength int
	PageSize      int
	MaxPasteBytes int

	SweepInterval time.Duration

	RateLimitPerMinute int
	RateLimitBurst     int
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.driver", defaultDatabaseDriver)
	configViper.SetDefault("database.dsn", defaultDatabaseDSN)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("auth.issuer", defaultAuthIssuer)
	configViper.SetDefault("auth.cookie_name", defaultCookieName)
	configViper.SetDefault("auth.token_ttl_minutes", defaultTokenTTLMinutes)
	configViper.SetDefault("blob.driver", defaultBlobDriver)
	configViper.SetDefault("blob.root", defaultBlobRoot)
	configViper.SetDefault("blob.public_base_url", defaultBlobPublicBaseURL)
	configViper.SetDefault("pastes.archive_length", defaultArchiveLength)
	configViper.SetDefault("pastes.page_size", defaultPageSize)
	configViper.SetDefault("pastes.max_bytes", defaultMaxPasteBytes)
	configViper.SetDefault("sweep.interval", defaultSweepInterval)
	configViper.SetDefault("ratelimit.per_minute", defaultRateLimitPerMinute)
	configViper.SetDefault("ratelimit.burst", defaultRateLimitBurst)
	configViper.SetDefault("highlight.style", defaultHighlightStyle)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:        configViper.GetString("http.address"),
		TrustProxy:         configViper.GetBool("http.trust_proxy"),
		LogLevel:           configViper.GetString("log.level"),
		DatabaseDriver:     strings.ToLower(strings.TrimSpace(configViper.GetString("database.driver"))),
		DatabaseDSN:        configViper.GetString("database.dsn"),
		AuthSigningSecret:  configViper.GetString("auth.signing_secret"),
		AuthIssuer:         configViper.GetString("auth.issuer"),
		AuthCookieName:     configViper.GetString("auth.cookie_name"),
		TokenTTL:           time.Duration(configViper.GetInt("auth.token_ttl_minutes")) * time.Minute,
		BlobDriver:         strings.ToLower(strings.TrimSpace(configViper.GetString("blob.driver"))),
		BlobRoot:           configViper.GetString("blob.root"),
		BlobS3Bucket:       configViper.GetString("blob.s3_bucket"),
		BlobS3Prefix:       configViper.GetString("blob.s3_prefix"),
		BlobPublicBaseURL:  configViper.GetString("blob.public_base_url"),
		RedisURL:           configViper.GetString("redis.url"),
		HighlightStyle:     configViper.GetString("highlight.style"),
		ArchiveLength:      configViper.GetInt("pastes.archive_length"),
		PageSize:           configViper.GetInt("pastes.page_size"),
		MaxPasteBytes:      configViper.GetInt("pastes.max_bytes"),
		SweepInterval:      configViper.GetDuration("sweep.interval"),
		RateLimitPerMinute: configViper.GetInt("ratelimit.per_minute"),
		RateLimitBurst:     configViper.GetInt("ratelimit.burst"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.AuthSigningSecret) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	if strings.TrimSpace(c.AuthCookieName) == "" {
		return fmt.Errorf("auth.cookie_name is required")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl_minutes must be positive")
	}
	switch c.DatabaseDriver {
	case DatabaseDriverSQLite, DatabaseDriverPostgres:
	default:
		return fmt.Errorf("database.driver must be %q or %q", DatabaseDriverSQLite, DatabaseDriverPostgres)
	}
	if strings.TrimSpace(c.DatabaseDSN) == "" {
		return fmt.Errorf("database.dsn is required")
	}
	switch c.BlobDriver {
	case BlobDriverFilesystem:
		if strings.TrimSpace(c.BlobRoot) == "" {
			return fmt.Errorf("blob.root is required for the filesystem driver")
		}
	case BlobDriverS3:
		if strings.TrimSpace(c.BlobS3Bucket) == "" {
			return fmt.Errorf("blob.s3_bucket is required for the s3 driver")
		}
	default:
		return fmt.Errorf("blob.driver must be %q or %q", BlobDriverFilesystem, BlobDriverS3)
	}
	if c.PageSize <= 0 || c.ArchiveLength <= 0 || c.MaxPasteBytes <= 0 {
		return fmt.Errorf("pastes.page_size, pastes.archive_length and pastes.max_bytes must be positive")
	}
	if c.SweepInterval < 0 {
		return fmt.Errorf("sweep.interval must not be negative")
	}
	return nil
}
