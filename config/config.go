package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	raffledomain "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/domain"
	"github.com/Black-And-White-Club/frolf-raffle/pkg/observability"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Oracle transports.
const (
	OracleTransportNATS = "nats"
	OracleTransportHTTP = "http"
)

// Config struct to hold the configuration settings
type Config struct {
	Postgres      PostgresConfig      `yaml:"postgres" toml:"postgres"`
	NATS          NATSConfig          `yaml:"nats" toml:"nats"`
	HTTP          HTTPConfig          `yaml:"http" toml:"http"`
	JWT           JWTConfig           `yaml:"jwt" toml:"jwt"`
	Raffle        RaffleConfig        `yaml:"raffle" toml:"raffle"`
	Oracle        OracleConfig        `yaml:"oracle" toml:"oracle"`
	Upkeep        UpkeepConfig        `yaml:"upkeep" toml:"upkeep"`
	Observability ObservabilityConfig `yaml:"observability" toml:"observability"`
}

// PostgresConfig holds Postgres configuration.
type PostgresConfig struct {
	DSN string `yaml:"dsn" toml:"dsn"`
}

// NATSConfig holds NATS configuration.
type NATSConfig struct {
	URL       string `yaml:"url" toml:"url"`
	CredsFile string `yaml:"creds_file" toml:"creds_file"`
}

// HTTPConfig holds the HTTP API configuration. An empty address disables the API.
type HTTPConfig struct {
	Address   string  `yaml:"address" toml:"address"`
	RateLimit float64 `yaml:"rate_limit" toml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst" toml:"rate_burst"`
}

// JWTConfig holds the secret used to verify bearer tokens on protected routes.
type JWTConfig struct {
	Secret string `yaml:"secret" toml:"secret"`
	Issuer string `yaml:"issuer" toml:"issuer"`
}

// RaffleConfig holds the immutable raffle parameters.
type RaffleConfig struct {
	EntranceFee          string        `yaml:"entrance_fee" toml:"entrance_fee"`
	Interval             time.Duration `yaml:"interval" toml:"interval"`
	KeyHash              string        `yaml:"key_hash" toml:"key_hash"`
	SubscriptionID       uint64        `yaml:"subscription_id" toml:"subscription_id"`
	RequestConfirmations uint16        `yaml:"request_confirmations" toml:"request_confirmations"`
	CallbackGasLimit     uint32        `yaml:"callback_gas_limit" toml:"callback_gas_limit"`
}

// OracleConfig holds the randomness oracle connection.
type OracleConfig struct {
	// Identity is the oracle's nkey public key (NATS) or token subject (HTTP).
	Identity     string        `yaml:"identity" toml:"identity"`
	Transport    string        `yaml:"transport" toml:"transport"`
	Endpoint     string        `yaml:"endpoint" toml:"endpoint"`
	CallbackURL  string        `yaml:"callback_url" toml:"callback_url"`
	TokenURL     string        `yaml:"token_url" toml:"token_url"`
	ClientID     string        `yaml:"client_id" toml:"client_id"`
	ClientSecret string        `yaml:"client_secret" toml:"client_secret"`
	Scopes       []string      `yaml:"scopes" toml:"scopes"`
	Timeout      time.Duration `yaml:"timeout" toml:"timeout"`
}

// UpkeepConfig holds the built-in automation trigger.
type UpkeepConfig struct {
	Enabled      bool          `yaml:"enabled" toml:"enabled"`
	PollInterval time.Duration `yaml:"poll_interval" toml:"poll_interval"`
}

// ObservabilityConfig holds configuration for observability components
type ObservabilityConfig struct {
	MetricsAddress string `yaml:"metrics_address" toml:"metrics_address"`
	Environment    string `yaml:"environment" toml:"environment"`
	OTLPEndpoint   string `yaml:"otlp_endpoint" toml:"otlp_endpoint"`
	LogLevel       string `yaml:"log_level" toml:"log_level"`
}

// LoadConfig loads the configuration from a YAML or TOML file, chosen by
// extension, and applies environment overrides.
func LoadConfig(filename string) (*Config, error) {
	// Try reading configuration from the file first
	data, err := os.ReadFile(filename)
	if err != nil {
		// If the file is not found, try loading from environment variables
		return loadConfigFromEnv()
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".toml":
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return nil, fmt.Errorf("failed to decode toml config: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	// --- OVERRIDE WITH ENV VARS IF PRESENT ---
	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// loadConfigFromEnv loads the configuration from environment variables.
func loadConfigFromEnv() (*Config, error) {
	var cfg Config
	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}

	if cfg.Postgres.DSN == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable not set")
	}
	if cfg.NATS.URL == "" {
		return nil, fmt.Errorf("NATS_URL environment variable not set")
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	setString := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}

	setString("DATABASE_URL", &cfg.Postgres.DSN)
	setString("NATS_URL", &cfg.NATS.URL)
	setString("NATS_CREDS_FILE", &cfg.NATS.CredsFile)
	setString("HTTP_ADDRESS", &cfg.HTTP.Address)
	setString("JWT_SECRET", &cfg.JWT.Secret)
	setString("JWT_ISSUER", &cfg.JWT.Issuer)
	setString("RAFFLE_ENTRANCE_FEE", &cfg.Raffle.EntranceFee)
	setString("RAFFLE_KEY_HASH", &cfg.Raffle.KeyHash)
	setString("ORACLE_IDENTITY", &cfg.Oracle.Identity)
	setString("ORACLE_TRANSPORT", &cfg.Oracle.Transport)
	setString("ORACLE_ENDPOINT", &cfg.Oracle.Endpoint)
	setString("ORACLE_CALLBACK_URL", &cfg.Oracle.CallbackURL)
	setString("ORACLE_TOKEN_URL", &cfg.Oracle.TokenURL)
	setString("ORACLE_CLIENT_ID", &cfg.Oracle.ClientID)
	setString("ORACLE_CLIENT_SECRET", &cfg.Oracle.ClientSecret)
	setString("METRICS_ADDRESS", &cfg.Observability.MetricsAddress)
	setString("OTLP_ENDPOINT", &cfg.Observability.OTLPEndpoint)
	setString("LOG_LEVEL", &cfg.Observability.LogLevel)
	setString("ENV", &cfg.Observability.Environment)

	if v := os.Getenv("RAFFLE_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid RAFFLE_INTERVAL value: %w", err)
		}
		cfg.Raffle.Interval = d
	}
	if v := os.Getenv("RAFFLE_SUBSCRIPTION_ID"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid RAFFLE_SUBSCRIPTION_ID value: %w", err)
		}
		cfg.Raffle.SubscriptionID = n
	}
	if v := os.Getenv("RAFFLE_REQUEST_CONFIRMATIONS"); v != "" {
		n, err := strconv.ParseUint(v, 10, 16)
		if err != nil {
			return fmt.Errorf("invalid RAFFLE_REQUEST_CONFIRMATIONS value: %w", err)
		}
		cfg.Raffle.RequestConfirmations = uint16(n)
	}
	if v := os.Getenv("RAFFLE_CALLBACK_GAS_LIMIT"); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return fmt.Errorf("invalid RAFFLE_CALLBACK_GAS_LIMIT value: %w", err)
		}
		cfg.Raffle.CallbackGasLimit = uint32(n)
	}
	if v := os.Getenv("UPKEEP_ENABLED"); v != "" {
		cfg.Upkeep.Enabled = v == "true"
	}
	if v := os.Getenv("UPKEEP_POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid UPKEEP_POLL_INTERVAL value: %w", err)
		}
		cfg.Upkeep.PollInterval = d
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Oracle.Transport == "" {
		c.Oracle.Transport = OracleTransportNATS
	}
	if c.Upkeep.PollInterval == 0 {
		c.Upkeep.PollInterval = 15 * time.Second
	}
	if c.HTTP.RateLimit == 0 {
		c.HTTP.RateLimit = 5
	}
	if c.HTTP.RateBurst == 0 {
		c.HTTP.RateBurst = 10
	}
	if c.JWT.Issuer == "" {
		c.JWT.Issuer = "frolf-raffle"
	}
}

// RaffleDomainConfig converts the raffle and oracle sections into the
// parameters the raffle is constructed with.
func (c *Config) RaffleDomainConfig() (raffledomain.Config, error) {
	fee, err := uint256.FromDecimal(c.Raffle.EntranceFee)
	if err != nil {
		return raffledomain.Config{}, fmt.Errorf("invalid entrance fee %q: %w", c.Raffle.EntranceFee, err)
	}

	cfg := raffledomain.Config{
		EntranceFee:          fee,
		Interval:             c.Raffle.Interval,
		Oracle:               c.Oracle.Identity,
		KeyHash:              common.HexToHash(c.Raffle.KeyHash),
		SubscriptionID:       c.Raffle.SubscriptionID,
		RequestConfirmations: c.Raffle.RequestConfirmations,
		CallbackGasLimit:     c.Raffle.CallbackGasLimit,
		NumWords:             raffledomain.NumWords,
	}
	if err := cfg.Validate(); err != nil {
		return raffledomain.Config{}, err
	}
	return cfg, nil
}

func ToObsConfig(appCfg *Config) observability.Config {
	return observability.Config{
		ServiceName:    "frolf-raffle",
		ServiceVersion: "0.1.0", // Could inject via `ldflags`
		Environment:    appCfg.Observability.Environment,
		LogLevel:       appCfg.Observability.LogLevel,
		OTLPEndpoint:   appCfg.Observability.OTLPEndpoint,
		MetricsAddress: appCfg.Observability.MetricsAddress,
	}
}
