package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the application configuration
type Config struct {
	Server        ServerConfig        `json:"server"`
	Database      DatabaseConfig      `json:"database"`
	Fraud         FraudConfig         `json:"fraud"`
	Marketplace   MarketplaceConfig   `json:"marketplace"`
	Tokens        TokensConfig        `json:"tokens"`
	Documents     DocumentsConfig     `json:"documents"`
	Notifications NotificationsConfig `json:"notifications"`
	Security      SecurityConfig      `json:"security"`
	Logging       LoggingConfig       `json:"logging"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Host           string        `json:"host"`
	Port           int           `json:"port"`
	User           string        `json:"user"`
	Password       string        `json:"password"`
	DBName         string        `json:"db_name"`
	SSLMode        string        `json:"ssl_mode"`
	MaxConnections int           `json:"max_connections"`
	MaxIdleConns   int           `json:"max_idle_conns"`
	MaxLifetime    time.Duration `json:"max_lifetime"`
}

// FraudConfig holds scoring thresholds and optional weight overrides
type FraudConfig struct {
	HighThreshold      float64  `json:"high_threshold"`
	MediumThreshold    float64  `json:"medium_threshold"`
	LowMediumThreshold float64  `json:"low_medium_threshold"`
	Weights            *Weights `json:"weights,omitempty"`
}

// Weights overrides the default equal indicator weighting
type Weights struct {
	DataInconsistency    float64 `json:"data_inconsistency"`
	PatternMatching      float64 `json:"pattern_matching"`
	DocumentAuthenticity float64 `json:"document_authenticity"`
}

// MarketplaceConfig holds purchase-transaction knobs
type MarketplaceConfig struct {
	PurchaseTTL   time.Duration `json:"purchase_ttl"`
	SweepInterval time.Duration `json:"sweep_interval"`
}

// TokensConfig points at the external token issuance service
type TokensConfig struct {
	IssuerURL     string        `json:"issuer_url"`
	MaxRetries    int           `json:"max_retries"`
	RetryInterval time.Duration `json:"retry_interval"`
}

// DocumentsConfig holds proof document storage settings
type DocumentsConfig struct {
	S3Bucket  string `json:"s3_bucket"`
	AWSRegion string `json:"aws_region"`
}

// NotificationsConfig holds transport settings
type NotificationsConfig struct {
	EmailSender   string `json:"email_sender"`
	EmailEnabled  bool   `json:"email_enabled"`
	DirectoryPath string `json:"directory_path"`
}

// SecurityConfig
type SecurityConfig struct {
	JWTSecret string `json:"jwt_secret"`
}

// LoggingConfig
type LoggingConfig struct {
	Level string `json:"level"`
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	// .env is optional; real env always wins
	_ = godotenv.Load()

	config := &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Database: DatabaseConfig{
			Host:           "localhost",
			Port:           5432,
			User:           os.Getenv("USER"),
			DBName:         "hydrolink",
			SSLMode:        "disable",
			MaxConnections: 25,
			MaxIdleConns:   5,
		},
		Fraud: FraudConfig{
			HighThreshold:      0.8,
			MediumThreshold:    0.6,
			LowMediumThreshold: 0.4,
		},
		Marketplace: MarketplaceConfig{
			PurchaseTTL:   14 * 24 * time.Hour,
			SweepInterval: time.Minute,
		},
		Tokens: TokensConfig{
			MaxRetries:    3,
			RetryInterval: 30 * time.Second,
		},
		Documents: DocumentsConfig{
			S3Bucket:  "hydrolink-proofs",
			AWSRegion: "eu-west-1",
		},
		Notifications: NotificationsConfig{
			EmailSender: "noreply@hydrolink.energy",
		},
	}

	// Load from file if exists
	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			if err := json.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	overrideWithEnv(config)

	return config, nil
}

func overrideWithEnv(config *Config) {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if dbHost := os.Getenv("DATABASE_HOST"); dbHost != "" {
		config.Database.Host = dbHost
	}
	if dbUser := os.Getenv("DATABASE_USER"); dbUser != "" {
		config.Database.User = dbUser
	}
	if dbPass := os.Getenv("DATABASE_PASSWORD"); dbPass != "" {
		config.Database.Password = dbPass
	}
	if dbName := os.Getenv("DATABASE_DBNAME"); dbName != "" {
		config.Database.DBName = dbName
	}
	if ttl := os.Getenv("PURCHASE_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil {
			config.Marketplace.PurchaseTTL = d
		}
	}
	if interval := os.Getenv("SWEEP_INTERVAL"); interval != "" {
		if d, err := time.ParseDuration(interval); err == nil {
			config.Marketplace.SweepInterval = d
		}
	}
	if bucket := os.Getenv("PROOFS_S3_BUCKET"); bucket != "" {
		config.Documents.S3Bucket = bucket
	}
	if region := os.Getenv("AWS_REGION"); region != "" {
		config.Documents.AWSRegion = region
	}
	if sender := os.Getenv("NOTIFY_EMAIL_SENDER"); sender != "" {
		config.Notifications.EmailSender = sender
	}
	if enabled := os.Getenv("NOTIFY_EMAIL_ENABLED"); enabled != "" {
		config.Notifications.EmailEnabled = enabled == "true" || enabled == "1"
	}
	if dir := os.Getenv("NOTIFY_EMAIL_DIRECTORY"); dir != "" {
		config.Notifications.DirectoryPath = dir
	}
	if issuer := os.Getenv("TOKEN_ISSUER_URL"); issuer != "" {
		config.Tokens.IssuerURL = issuer
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		config.Security.JWTSecret = secret
	}
}

// GetDatabaseURL returns the database connection string
func (c *DatabaseConfig) GetDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// GetServerAddr returns the server address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
