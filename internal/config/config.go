package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// ConfigError reports an input that is rejected before any network call.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrInvalidConfig }

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getenvDur(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

type MinIO struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

func (m MinIO) Enabled() bool { return m.Endpoint != "" }

type ClickHouse struct {
	Addr     string
	Database string
	Username string
	Password string
}

func (c ClickHouse) Enabled() bool { return c.Addr != "" }

// Config is the process configuration. The explorer fields are the defaults
// for a fetch cycle; the API lets a caller override them per request.
type Config struct {
	ExplorerURL     string
	ContractAddress string
	ContractShape   string
	TokenStandard   string
	AppName         string
	Strict          bool
	FetchTimeout    time.Duration

	ExportDir string
	APIAddr   string
	Serve     bool

	MinIO      MinIO
	ClickHouse ClickHouse
}

// Load reads the environment, after merging an optional .env file.
func Load() Config {
	// A missing .env is normal outside of local development.
	_ = godotenv.Load()

	return Config{
		ExplorerURL:     getenv("EXPLORER_URL", "https://camp.cloud.blockscout.com"),
		ContractAddress: getenv("CONTRACT_ADDRESS", ""),
		ContractShape:   getenv("CONTRACT_SHAPE", "token"),
		TokenStandard:   getenv("TOKEN_STANDARD", "ERC-721"),
		AppName:         getenv("APP_NAME", "contract"),
		Strict:          getenvBool("STRICT", false),
		FetchTimeout:    getenvDur("FETCH_TIMEOUT", 30*time.Second),
		ExportDir:       getenv("EXPORT_DIR", "exports"),
		APIAddr:         getenv("API_ADDR", ":8080"),
		Serve:           getenvBool("SERVE", false),
		MinIO: MinIO{
			Endpoint:  getenv("MINIO_ENDPOINT", ""),
			AccessKey: getenv("MINIO_ACCESS_KEY", "minioadmin"),
			SecretKey: getenv("MINIO_SECRET_KEY", "minioadmin"),
			Bucket:    getenv("MINIO_BUCKET", "contract-activity"),
			UseSSL:    getenvBool("MINIO_USE_SSL", false),
		},
		ClickHouse: ClickHouse{
			Addr:     getenv("CLICKHOUSE_ADDR", ""),
			Database: getenv("CLICKHOUSE_DATABASE", "default"),
			Username: getenv("CLICKHOUSE_USERNAME", "default"),
			Password: getenv("CLICKHOUSE_PASSWORD", ""),
		},
	}
}

// ValidateBaseURL requires an absolute http(s) URL.
func ValidateBaseURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return &ConfigError{Field: "base URL", Reason: "must not be empty"}
	}
	u, err := url.Parse(raw)
	if err != nil {
		return &ConfigError{Field: "base URL", Reason: err.Error()}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &ConfigError{Field: "base URL", Reason: fmt.Sprintf("unsupported scheme %q", u.Scheme)}
	}
	if u.Host == "" {
		return &ConfigError{Field: "base URL", Reason: "missing host"}
	}
	return nil
}

// ValidateContractAddress requires a 20-byte hex address.
func ValidateContractAddress(addr string) error {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return &ConfigError{Field: "contract address", Reason: "must not be empty"}
	}
	if !common.IsHexAddress(addr) {
		return &ConfigError{Field: "contract address", Reason: fmt.Sprintf("%q is not a hex address", addr)}
	}
	return nil
}
