package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Remote mirror backends.
const (
	RemoteNone  = "none"
	RemoteGraph = "graph"
	RemoteS3    = "s3"
)

// OAuth flows for the Graph backend.
const (
	FlowClientCredentials = "client_credentials"
	FlowDeviceCode        = "device_code"
)

// Ledger mirror backends.
const (
	MirrorNone       = "none"
	MirrorClickHouse = "clickhouse"
)

// Config holds the application configuration
type Config struct {
	BotToken       string
	AllowedUserIDs []int64 // empty means the bot is open to everyone

	PhotoSaveRoot string
	CSVLogPath    string

	Port string

	// Bot mode configuration
	WebhookMode bool   // If true, use webhook mode; if false, use polling mode
	WebhookURL  string // URL for webhook (required if WebhookMode is true)

	SessionTTL    time.Duration
	UploadTimeout time.Duration

	// Remote mirror configuration
	RemoteBackend string

	GraphClientID     string
	GraphClientSecret string
	GraphTenantID     string
	GraphAuthFlow     string
	GraphRemoteRoot   string
	GraphBaseURL      string
	TokenCachePath    string
	DeviceTimeout     time.Duration

	S3Bucket    string
	S3Prefix    string
	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string

	// Ledger mirror configuration
	LedgerMirror string

	ClickHouseHost     string
	ClickHousePort     int
	ClickHouseDatabase string
	ClickHouseUser     string
	ClickHousePassword string
	ClickHouseUseTLS   bool
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	config := &Config{}

	// Telegram Bot Token (required)
	config.BotToken = strings.TrimSpace(os.Getenv("BOT_TOKEN"))
	if config.BotToken == "" {
		return nil, fmt.Errorf("BOT_TOKEN is required")
	}

	// Allowed User IDs (optional; empty keeps the bot open, as the
	// original deployment was)
	if allowedIDsStr := os.Getenv("ALLOWED_USER_IDS"); allowedIDsStr != "" {
		for _, idStr := range strings.Split(allowedIDsStr, ",") {
			id, err := strconv.ParseInt(strings.TrimSpace(idStr), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid user ID in ALLOWED_USER_IDS: %s", idStr)
			}
			config.AllowedUserIDs = append(config.AllowedUserIDs, id)
		}
	}

	config.PhotoSaveRoot = getEnv("PHOTO_SAVE_ROOT", "./photos")
	config.CSVLogPath = getEnv("CSV_LOG", filepath.Join(config.PhotoSaveRoot, "registro_fotos.csv"))
	config.Port = getEnv("PORT", "10000")

	// Bot mode configuration
	config.WebhookMode = os.Getenv("WEBHOOK_MODE") == "true"
	if config.WebhookMode {
		config.WebhookURL = os.Getenv("WEBHOOK_URL")
		if config.WebhookURL == "" {
			return nil, fmt.Errorf("WEBHOOK_URL is required when WEBHOOK_MODE is true")
		}
	}

	sessionTTLMin, err := getEnvInt("SESSION_TTL_MINUTES", 30)
	if err != nil {
		return nil, err
	}
	config.SessionTTL = time.Duration(sessionTTLMin) * time.Minute

	uploadTimeoutSec, err := getEnvInt("UPLOAD_TIMEOUT_SECONDS", 60)
	if err != nil {
		return nil, err
	}
	config.UploadTimeout = time.Duration(uploadTimeoutSec) * time.Second

	if err := loadRemote(config); err != nil {
		return nil, err
	}
	if err := loadMirror(config); err != nil {
		return nil, err
	}

	return config, nil
}

// loadRemote reads the remote-mirror configuration group. Credentials
// are validated here so a misconfigured deployment fails at startup
// rather than on the first upload.
func loadRemote(config *Config) error {
	config.RemoteBackend = getEnv("REMOTE_BACKEND", RemoteNone)

	switch config.RemoteBackend {
	case RemoteNone:
		return nil

	case RemoteGraph:
		config.GraphClientID = os.Getenv("GRAPH_CLIENT_ID")
		if config.GraphClientID == "" {
			return fmt.Errorf("GRAPH_CLIENT_ID is required when REMOTE_BACKEND is graph")
		}

		config.GraphAuthFlow = getEnv("GRAPH_AUTH_FLOW", FlowClientCredentials)
		switch config.GraphAuthFlow {
		case FlowClientCredentials:
			config.GraphTenantID = os.Getenv("GRAPH_TENANT_ID")
			if config.GraphTenantID == "" {
				return fmt.Errorf("GRAPH_TENANT_ID is required for the client_credentials flow")
			}
			config.GraphClientSecret = os.Getenv("GRAPH_CLIENT_SECRET")
			if config.GraphClientSecret == "" {
				return fmt.Errorf("GRAPH_CLIENT_SECRET is required for the client_credentials flow")
			}
		case FlowDeviceCode:
			config.GraphTenantID = getEnv("GRAPH_TENANT_ID", "common")
			config.TokenCachePath = getEnv("TOKEN_CACHE_PATH", "./token_cache.json")
		default:
			return fmt.Errorf("invalid GRAPH_AUTH_FLOW: %s (expected client_credentials or device_code)", config.GraphAuthFlow)
		}

		config.GraphRemoteRoot = getEnv("GRAPH_REMOTE_ROOT", "FotosITO")
		config.GraphBaseURL = getEnv("GRAPH_BASE_URL", "https://graph.microsoft.com/v1.0/me/drive")

		deviceTimeoutMin, err := getEnvInt("OAUTH_DEVICE_TIMEOUT_MINUTES", 10)
		if err != nil {
			return err
		}
		config.DeviceTimeout = time.Duration(deviceTimeoutMin) * time.Minute
		return nil

	case RemoteS3:
		config.S3Bucket = os.Getenv("S3_BUCKET")
		if config.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when REMOTE_BACKEND is s3")
		}
		config.S3Prefix = getEnv("S3_PREFIX", "FotosITO")
		config.S3Region = getEnv("AWS_REGION", "us-east-1")
		config.S3Endpoint = os.Getenv("S3_ENDPOINT")
		config.S3AccessKey = os.Getenv("S3_ACCESS_KEY")
		config.S3SecretKey = os.Getenv("S3_SECRET_KEY")
		return nil

	default:
		return fmt.Errorf("invalid REMOTE_BACKEND: %s (expected none, graph or s3)", config.RemoteBackend)
	}
}

// loadMirror reads the optional ClickHouse ledger-mirror group.
func loadMirror(config *Config) error {
	config.LedgerMirror = getEnv("LEDGER_MIRROR", MirrorNone)

	switch config.LedgerMirror {
	case MirrorNone:
		return nil

	case MirrorClickHouse:
		config.ClickHouseHost = os.Getenv("CLICKHOUSE_HOST")
		if config.ClickHouseHost == "" {
			return fmt.Errorf("CLICKHOUSE_HOST is required when LEDGER_MIRROR is clickhouse")
		}

		port, err := getEnvInt("CLICKHOUSE_PORT", 9000)
		if err != nil {
			return err
		}
		config.ClickHousePort = port

		config.ClickHouseDatabase = getEnv("CLICKHOUSE_DATABASE", "default")
		config.ClickHouseUser = getEnv("CLICKHOUSE_USER", "default")
		config.ClickHousePassword = os.Getenv("CLICKHOUSE_PASSWORD")
		// Password is optional, can be empty

		config.ClickHouseUseTLS = os.Getenv("CLICKHOUSE_USE_TLS") == "true"
		return nil

	default:
		return fmt.Errorf("invalid LEDGER_MIRROR: %s (expected none or clickhouse)", config.LedgerMirror)
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
