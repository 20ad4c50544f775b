package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Store backend names accepted by StoreConfig.Type.
const (
	StoreTypeFile     = "file"
	StoreTypeSQLite   = "sqlite"
	StoreTypePostgres = "postgres"
	StoreTypeObject   = "object"
	StoreTypeMemory   = "memory"
)

const (
	DefaultHost            = "127.0.0.1"
	DefaultPort            = 8910
	DefaultAuthDir         = "~/.userdesk"
	DefaultExchangeTimeout = 30 * time.Second
	DefaultUnknownUserPath = "/unknown-user"
	DefaultStoreTable      = "token_store"
)

// Config is the application configuration loaded from YAML and the environment.
type Config struct {
	SDKConfig `yaml:",inline"`

	// Host is the interface the console binds to.
	Host string `yaml:"host" json:"host" env:"USERDESK_HOST"`

	// Port is the console listen port.
	Port int `yaml:"port" json:"port" env:"USERDESK_PORT"`

	// AuthDir is the directory holding the file store and local state.
	AuthDir string `yaml:"auth-dir" json:"auth-dir" env:"USERDESK_AUTH_DIR"`

	// Debug enables debug-level logging.
	Debug bool `yaml:"debug" json:"debug" env:"USERDESK_DEBUG"`

	// LoggingToFile writes logs to rotating files instead of stdout.
	LoggingToFile bool `yaml:"logging-to-file" json:"logging-to-file" env:"USERDESK_LOGGING_TO_FILE"`

	// LogsMaxTotalSizeMB limits the size of the log directory. <= 0 disables the limit.
	LogsMaxTotalSizeMB int `yaml:"logs-max-total-size-mb" json:"logs-max-total-size-mb" env:"USERDESK_LOGS_MAX_TOTAL_SIZE_MB"`

	// GitLab holds the OAuth client registration.
	GitLab GitLabConfig `yaml:"gitlab" json:"gitlab" envPrefix:"GITLAB_"`

	// Store selects the token store backend.
	Store StoreConfig `yaml:"store" json:"store"`
}

// GitLabConfig describes the OAuth application registered with the provider.
type GitLabConfig struct {
	ClientID        string        `yaml:"client-id" json:"client-id" env:"CLIENT_ID"`
	RedirectURI     string        `yaml:"redirect-uri" json:"redirect-uri" env:"REDIRECT_URI"`
	Authority       string        `yaml:"authority" json:"authority" env:"AUTHORITY"`
	ExchangeTimeout time.Duration `yaml:"exchange-timeout" json:"exchange-timeout" env:"EXCHANGE_TIMEOUT"`
	UnknownUserPath string        `yaml:"unknown-user-path" json:"unknown-user-path" env:"UNKNOWN_USER_PATH"`
	// RevokeOnLogout revokes the access token at the provider before signing out.
	RevokeOnLogout bool `yaml:"revoke-on-logout" json:"revoke-on-logout" env:"REVOKE_ON_LOGOUT"`
}

// StoreConfig selects and configures the token store backend.
type StoreConfig struct {
	// Type is one of file, sqlite, postgres, object or memory. Defaults to file.
	Type string `yaml:"type" json:"type" env:"USERDESK_STORE_TYPE"`

	// Dir is the directory of the file store. Defaults to AuthDir.
	Dir string `yaml:"dir" json:"dir" env:"USERDESK_STORE_DIR"`

	SQL    SQLStoreConfig    `yaml:"sql" json:"sql"`
	Object ObjectStoreConfig `yaml:"object" json:"object"`
}

// SQLStoreConfig configures the sqlite and postgres backends.
type SQLStoreConfig struct {
	DSN    string `yaml:"dsn" json:"dsn" env:"PGSTORE_DSN"`
	Schema string `yaml:"schema" json:"schema" env:"PGSTORE_SCHEMA"`
	Table  string `yaml:"table" json:"table" env:"PGSTORE_TABLE"`
}

// ObjectStoreConfig configures the S3-compatible backend.
type ObjectStoreConfig struct {
	Endpoint  string `yaml:"endpoint" json:"endpoint" env:"OBJECTSTORE_ENDPOINT"`
	Bucket    string `yaml:"bucket" json:"bucket" env:"OBJECTSTORE_BUCKET"`
	AccessKey string `yaml:"access-key" json:"access-key" env:"OBJECTSTORE_ACCESS_KEY"`
	SecretKey string `yaml:"secret-key" json:"secret-key" env:"OBJECTSTORE_SECRET_KEY"`
	Region    string `yaml:"region" json:"region" env:"OBJECTSTORE_REGION"`
	Prefix    string `yaml:"prefix" json:"prefix" env:"OBJECTSTORE_PREFIX"`
	UseSSL    bool   `yaml:"use-ssl" json:"use-ssl" env:"OBJECTSTORE_USE_SSL"`
	PathStyle bool   `yaml:"path-style" json:"path-style" env:"OBJECTSTORE_PATH_STYLE"`
}

// LoadConfig reads the configuration file, applies environment overrides and defaults.
func LoadConfig(configFile string) (*Config, error) {
	return LoadConfigOptional(configFile, false)
}

// LoadConfigOptional behaves like LoadConfig but tolerates a missing file when optional is true,
// so the console can run from environment variables alone.
func LoadConfigOptional(configFile string, optional bool) (*Config, error) {
	cfg := &Config{}

	if strings.TrimSpace(configFile) != "" {
		data, err := os.ReadFile(configFile)
		switch {
		case err == nil:
			if err = yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		case errors.Is(err, os.ErrNotExist) && optional:
		default:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else if !optional {
		return nil, fmt.Errorf("config file path is empty")
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (cfg *Config) applyDefaults() {
	if strings.TrimSpace(cfg.Host) == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Port <= 0 {
		cfg.Port = DefaultPort
	}
	if strings.TrimSpace(cfg.AuthDir) == "" {
		cfg.AuthDir = DefaultAuthDir
	}
	if cfg.GitLab.ExchangeTimeout <= 0 {
		cfg.GitLab.ExchangeTimeout = DefaultExchangeTimeout
	}
	if strings.TrimSpace(cfg.GitLab.UnknownUserPath) == "" {
		cfg.GitLab.UnknownUserPath = DefaultUnknownUserPath
	}
	if strings.TrimSpace(cfg.GitLab.RedirectURI) == "" {
		cfg.GitLab.RedirectURI = fmt.Sprintf("http://localhost:%d", cfg.Port)
	}

	storeType := strings.ToLower(strings.TrimSpace(cfg.Store.Type))
	if storeType == "" {
		// A DSN without an explicit type selects postgres.
		if strings.TrimSpace(cfg.Store.SQL.DSN) != "" {
			storeType = StoreTypePostgres
		} else {
			storeType = StoreTypeFile
		}
	}
	cfg.Store.Type = storeType
	if strings.TrimSpace(cfg.Store.SQL.Table) == "" {
		cfg.Store.SQL.Table = DefaultStoreTable
	}
}

// Validate reports settings the console cannot start without.
func (cfg *Config) Validate() error {
	var problems []string
	if strings.TrimSpace(cfg.GitLab.ClientID) == "" {
		problems = append(problems, "gitlab.client-id (GITLAB_CLIENT_ID) is required")
	}
	if strings.TrimSpace(cfg.GitLab.Authority) == "" {
		problems = append(problems, "gitlab.authority (GITLAB_AUTHORITY) is required")
	}
	switch cfg.Store.Type {
	case StoreTypeFile, StoreTypeMemory:
	case StoreTypeSQLite, StoreTypePostgres:
		if strings.TrimSpace(cfg.Store.SQL.DSN) == "" {
			problems = append(problems, fmt.Sprintf("store.sql.dsn is required for the %s store", cfg.Store.Type))
		}
	case StoreTypeObject:
		if strings.TrimSpace(cfg.Store.Object.Endpoint) == "" || strings.TrimSpace(cfg.Store.Object.Bucket) == "" {
			problems = append(problems, "store.object.endpoint and store.object.bucket are required for the object store")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown store type %q", cfg.Store.Type))
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// Addr returns the console listen address.
func (cfg *Config) Addr() string {
	return fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
}
