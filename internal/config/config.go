package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/gregtusar/cashcarry/pkg/binance"
	"github.com/gregtusar/cashcarry/pkg/secrets"
	"github.com/gregtusar/cashcarry/pkg/trader"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Binance BinanceConfig `mapstructure:"binance"`
	Trading TradingConfig `mapstructure:"trading"`
	Logging LoggingConfig `mapstructure:"logging"`
	GCP     GCPConfig     `mapstructure:"gcp"`
}

type ServerConfig struct {
	Port      int    `mapstructure:"port"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

type BinanceConfig struct {
	APIKey            string        `mapstructure:"api_key"`
	APISecret         string        `mapstructure:"api_secret"`
	SpotBaseURL       string        `mapstructure:"spot_base_url"`
	FuturesBaseURL    string        `mapstructure:"futures_base_url"`
	MarginBaseURL     string        `mapstructure:"margin_base_url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
}

type TradingConfig struct {
	SpotSymbol      string  `mapstructure:"spot_symbol"`
	FutureSymbol    string  `mapstructure:"future_symbol"`
	CashAsset       string  `mapstructure:"cash_asset"`
	UnderlyingBase  string  `mapstructure:"underlying_base"`
	UnderlyingQuote string  `mapstructure:"underlying_quote"`
	SpotFeeRate     float64 `mapstructure:"spot_fee_rate"`
	FutureFeeRate   float64 `mapstructure:"future_fee_rate"`
	RiskRateAsked   float64 `mapstructure:"risk_rate_asked"`
	MaxDaysToExpiry float64 `mapstructure:"max_days_to_expiry"`
	IsolatedMargin  bool    `mapstructure:"isolated_margin"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

type GCPConfig struct {
	ProjectID       string              `mapstructure:"project_id"`
	UseSecrets      bool                `mapstructure:"use_secrets"`
	CredentialsFile string              `mapstructure:"credentials_file"`
	SecretNames     secrets.SecretNames `mapstructure:"secret_names"`
}

// Load reads defaults, an optional config file, .env and the environment.
// The result is meant to be built once at startup and passed down.
func Load(configPath string) (*Config, error) {
	// A missing .env is normal outside development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/cashcarry")
	}

	v.SetEnvPrefix("CARRY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	overrideFromEnv(&config)

	if config.GCP.UseSecrets && config.GCP.ProjectID != "" {
		ctx := context.Background()
		if err := loadSecretsFromGCP(ctx, &config, logrus.StandardLogger()); err != nil {
			return nil, fmt.Errorf("error loading secrets from GCP: %w", err)
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.jwt_secret", "")

	v.SetDefault("binance.api_key", "")
	v.SetDefault("binance.api_secret", "")
	v.SetDefault("binance.spot_base_url", binance.DefaultSpotBaseURL)
	v.SetDefault("binance.futures_base_url", binance.DefaultFuturesBaseURL)
	v.SetDefault("binance.margin_base_url", binance.DefaultMarginBaseURL)
	v.SetDefault("binance.timeout", binance.DefaultTimeout)
	v.SetDefault("binance.requests_per_second", 10)
	v.SetDefault("binance.burst", 5)

	p := trader.DefaultParams()
	v.SetDefault("trading.spot_symbol", p.SpotSymbol)
	v.SetDefault("trading.future_symbol", p.FutureSymbol)
	v.SetDefault("trading.cash_asset", p.CashAsset)
	v.SetDefault("trading.underlying_base", p.UnderlyingBase)
	v.SetDefault("trading.underlying_quote", p.UnderlyingQuote)
	v.SetDefault("trading.spot_fee_rate", p.SpotFeeRate)
	v.SetDefault("trading.future_fee_rate", p.FutureFeeRate)
	v.SetDefault("trading.risk_rate_asked", p.RiskRateAsked)
	v.SetDefault("trading.max_days_to_expiry", p.MaxDaysToExpiry)
	v.SetDefault("trading.isolated_margin", p.IsolatedMargin)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file", "")

	v.SetDefault("gcp.use_secrets", false)
	v.SetDefault("gcp.project_id", "")
	v.SetDefault("gcp.credentials_file", "")

	secretNames := secrets.DefaultSecretNames()
	v.SetDefault("gcp.secret_names.api_key", secretNames.APIKey)
	v.SetDefault("gcp.secret_names.api_secret", secretNames.APISecret)
}

func overrideFromEnv(config *Config) {
	if apiKey := os.Getenv("API_KEY"); apiKey != "" {
		config.Binance.APIKey = apiKey
	}
	if apiSecret := os.Getenv("API_SECRET"); apiSecret != "" {
		config.Binance.APISecret = apiSecret
	}

	if projectID := os.Getenv("GCP_PROJECT_ID"); projectID != "" {
		config.GCP.ProjectID = projectID
	}
	if useSecrets := os.Getenv("GCP_USE_SECRETS"); useSecrets == "true" {
		config.GCP.UseSecrets = true
	}
}

func loadSecretsFromGCP(ctx context.Context, config *Config, logger *logrus.Logger) error {
	secretManager, err := secrets.NewGCPSecretManager(ctx, config.GCP.ProjectID, config.GCP.CredentialsFile, logger)
	if err != nil {
		return fmt.Errorf("failed to create secret manager: %w", err)
	}
	defer secretManager.Close()

	// Only fill what the environment left empty
	if config.Binance.APIKey == "" {
		config.Binance.APIKey = secretManager.GetSecretWithDefault(ctx, config.GCP.SecretNames.APIKey, "")
	}
	if config.Binance.APISecret == "" {
		config.Binance.APISecret = secretManager.GetSecretWithDefault(ctx, config.GCP.SecretNames.APISecret, "")
	}

	logger.Info("Successfully loaded secrets from GCP Secret Manager")
	return nil
}

func (c *Config) Validate() error {
	t := c.Trading
	if t.SpotSymbol == "" || t.FutureSymbol == "" || t.CashAsset == "" {
		return fmt.Errorf("invalid config: trading symbols and cash asset are required")
	}
	if t.UnderlyingBase == "" || t.UnderlyingQuote == "" {
		return fmt.Errorf("invalid config: underlying base and quote are required")
	}
	if t.SpotFeeRate < 0 || t.FutureFeeRate < 0 {
		return fmt.Errorf("invalid config: fee rates must not be negative")
	}
	if t.RiskRateAsked < 0 {
		return fmt.Errorf("invalid config: risk_rate_asked must not be negative")
	}
	if t.MaxDaysToExpiry <= 0 {
		return fmt.Errorf("invalid config: max_days_to_expiry must be positive")
	}
	if c.Binance.Timeout <= 0 {
		return fmt.Errorf("invalid config: binance.timeout must be positive")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid config: server.port %d out of range", c.Server.Port)
	}
	return nil
}

func (c *Config) GatewayConfig() binance.Config {
	return binance.Config{
		APIKey:            c.Binance.APIKey,
		APISecret:         c.Binance.APISecret,
		SpotBaseURL:       c.Binance.SpotBaseURL,
		FuturesBaseURL:    c.Binance.FuturesBaseURL,
		MarginBaseURL:     c.Binance.MarginBaseURL,
		Timeout:           c.Binance.Timeout,
		RequestsPerSecond: c.Binance.RequestsPerSecond,
		Burst:             c.Binance.Burst,
	}
}

func (c *Config) TradingParams() trader.Params {
	t := c.Trading
	return trader.Params{
		SpotSymbol:      t.SpotSymbol,
		FutureSymbol:    t.FutureSymbol,
		CashAsset:       t.CashAsset,
		UnderlyingBase:  t.UnderlyingBase,
		UnderlyingQuote: t.UnderlyingQuote,
		SpotFeeRate:     t.SpotFeeRate,
		FutureFeeRate:   t.FutureFeeRate,
		RiskRateAsked:   t.RiskRateAsked,
		MaxDaysToExpiry: t.MaxDaysToExpiry,
		IsolatedMargin:  t.IsolatedMargin,
	}
}
