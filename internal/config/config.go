package config

import (
	"flag"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/shopspring/decimal"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"

	ProviderAlphaVantage = "alphavantage"
	ProviderStatic       = "static"
)

type Config struct {
	Env      string `yaml:"env" env:"ENV" env-default:"local" env-description:"Environment" env-choices:"local,dev,prod"`
	ApiPort  int    `yaml:"api_port" env:"API_PORT" env-default:"8080"`
	ApiHost  string `yaml:"api_host" env:"API_HOST" env-default:"localhost"`
	Storage  string `yaml:"storage" env:"STORAGE" env-default:"postgres"`
	Postgres `yaml:"postgres"`
	Auth     `yaml:"auth"`
	Trading  `yaml:"trading"`
	Quote    `yaml:"quote"`
	Redis    `yaml:"redis"`
	Log      `yaml:"log"`
}

type Postgres struct {
	Host string `yaml:"host" env:"POSTGRES_HOST" env-default:"localhost"`
	Port string `yaml:"port" env:"POSTGRES_PORT" env-default:"5433"`
	User string `yaml:"user" env:"POSTGRES_USER" env-default:"test"`
	Pass string `yaml:"pass" env:"POSTGRES_PASS" env-default:"12345"`
	Db   string `yaml:"db" env:"POSTGRES_DB" env-default:"test_db"`
}

type Auth struct {
	JWTSecret    string        `yaml:"jwt_secret" env:"JWT_SECRET" env-default:"secret42212"`
	TokenTTL     time.Duration `yaml:"token_ttl" env:"TOKEN_TTL" env-default:"24h"`
	CookieName   string        `yaml:"cookie_name" env:"COOKIE_NAME" env-default:"session"`
	SecureCookie bool          `yaml:"secure_cookie" env:"SECURE_COOKIE" env-default:"false"`
}

type Trading struct {
	StartingCash string `yaml:"starting_cash" env:"STARTING_CASH" env-default:"10000.00"`

	startingCash decimal.Decimal
}

type Quote struct {
	Provider         string        `yaml:"provider" env:"QUOTE_PROVIDER" env-default:"alphavantage"`
	ProviderURL      string        `yaml:"provider_url" env:"QUOTE_PROVIDER_URL" env-default:"https://www.alphavantage.co/query"`
	APIKey           string        `yaml:"api_key" env:"QUOTE_API_KEY"`
	Timeout          time.Duration `yaml:"timeout" env:"QUOTE_TIMEOUT" env-default:"5s"`
	BreakerThreshold int           `yaml:"breaker_threshold" env:"QUOTE_BREAKER_THRESHOLD" env-default:"5"`
	BreakerReset     time.Duration `yaml:"breaker_reset" env:"QUOTE_BREAKER_RESET" env-default:"30s"`

	// Static maps symbol to price for the static provider.
	Static map[string]string `yaml:"static"`

	staticPrices map[string]decimal.Decimal
}

type Redis struct {
	Addr     string        `yaml:"addr" env:"REDIS_ADDR"`
	Password string        `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int           `yaml:"db" env:"REDIS_DB" env-default:"0"`
	QuoteTTL time.Duration `yaml:"quote_ttl" env:"REDIS_QUOTE_TTL" env-default:"1m"`
}

type Log struct {
	File       string `yaml:"file" env:"LOG_FILE"`
	MaxSizeMB  int    `yaml:"max_size_mb" env:"LOG_MAX_SIZE_MB" env-default:"50"`
	MaxBackups int    `yaml:"max_backups" env:"LOG_MAX_BACKUPS" env-default:"3"`
	MaxAgeDays int    `yaml:"max_age_days" env:"LOG_MAX_AGE_DAYS" env-default:"28"`
}

// StartingCashDecimal is Trading.StartingCash as parsed by Load.
func (c *Config) StartingCashDecimal() decimal.Decimal {
	return c.Trading.startingCash
}

// StaticPrices is Quote.Static as parsed by Load, keyed by symbol.
func (c *Config) StaticPrices() map[string]decimal.Decimal {
	prices := make(map[string]decimal.Decimal, len(c.Quote.staticPrices))
	for symbol, price := range c.Quote.staticPrices {
		prices[symbol] = price
	}
	return prices
}

func MustLoad() *Config {
	path := fetchConfigPath()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		panic("config file does not exist: " + path)
	}

	cfg, err := Load(path)
	if err != nil {
		panic("Failed to read config: " + err.Error())
	}

	return cfg
}

func Load(path string) (*Config, error) {
	var cfg Config

	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	cash, err := decimal.NewFromString(c.Trading.StartingCash)
	if err != nil {
		return &Error{Field: "trading.starting_cash", Reason: err.Error()}
	}
	if cash.IsNegative() {
		return &Error{Field: "trading.starting_cash", Reason: "must not be negative"}
	}
	c.Trading.startingCash = cash

	if c.Storage != StorageMemory && c.Storage != StoragePostgres {
		return &Error{Field: "storage", Reason: "must be memory or postgres"}
	}

	switch c.Quote.Provider {
	case ProviderAlphaVantage:
	case ProviderStatic:
		if len(c.Quote.Static) == 0 {
			return &Error{Field: "quote.static", Reason: "must list at least one symbol for the static provider"}
		}
	default:
		return &Error{Field: "quote.provider", Reason: "must be alphavantage or static"}
	}

	c.Quote.staticPrices = make(map[string]decimal.Decimal, len(c.Quote.Static))
	for symbol, raw := range c.Quote.Static {
		price, err := decimal.NewFromString(raw)
		if err != nil || !price.IsPositive() {
			return &Error{Field: "quote.static." + symbol, Reason: "must be a positive decimal"}
		}
		c.Quote.staticPrices[symbol] = price
	}

	if c.Auth.JWTSecret == "" {
		return &Error{Field: "auth.jwt_secret", Reason: "must not be empty"}
	}
	return nil
}

type Error struct {
	Field  string
	Reason string
}

func (e *Error) Error() string {
	return "config: " + e.Field + ": " + e.Reason
}

func fetchConfigPath() string {
	var res string

	flag.StringVar(&res, "config", "", "path to config file")
	flag.Parse()

	if res == "" {
		res = os.Getenv("CONFIG_PATH")
	}

	return res
}
