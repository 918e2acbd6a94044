package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Facility record sources.
const (
	SourceCSV      = "csv"
	SourcePostgres = "postgres"
)

// Config holds the configuration settings for the routing service.
//
// Fields:
// - Env: The current environment (e.g., local, development, production).
// - Port: The port for the HTTP API and monitoring endpoints.
// - Provider: The routing provider settings.
// - Facilities: Where the candidate facilities are loaded from.
// - Observer: Optional GPS receiver or fixed location for the tracking session.
// - SentryDSN: Sentry project DSN, empty disables error reporting.
// - Database: Configuration settings for the PostgreSQL database.
type Config struct {
	Env        string           `yaml:"env"`        // Env is the current environment: local, development, production.
	Port       int              `yaml:"port"`       // Port is the HTTP server port.
	Provider   ProviderConfig   `yaml:"provider"`   // Provider holds the routing provider settings.
	Facilities FacilitiesConfig `yaml:"facilities"` // Facilities holds the facility source settings.
	Observer   ObserverConfig   `yaml:"observer"`   // Observer holds the tracking session settings.
	SentryDSN  string           `yaml:"sentry_dsn"` // SentryDSN enables Sentry reporting when set.
	Database   PostgresConfig   `yaml:"postgres"`   // Database holds the postgres database configuration
}

// ProviderConfig selects and configures the routing provider.
type ProviderConfig struct {
	Type      string        `yaml:"type"`       // Type is openrouteservice or google.
	APIKey    string        `yaml:"key"`        // APIKey is the provider credential. Never logged.
	BaseURL   string        `yaml:"base_url"`   // BaseURL overrides the provider endpoint.
	RateLimit int           `yaml:"rate_limit"` // RateLimit is requests per second, 0 disables pacing.
	Timeout   time.Duration `yaml:"timeout"`    // Timeout bounds each route request.
}

// FacilitiesConfig tells where facilities come from.
type FacilitiesConfig struct {
	Source string `yaml:"source"` // Source is csv or postgres.
	Path   string `yaml:"path"`   // Path is the CSV file for the csv source.
}

// ObserverConfig configures the optional tracking session.
type ObserverConfig struct {
	Device   string `yaml:"device"`   // Device is a serial GPS receiver emitting NMEA sentences.
	Baud     int    `yaml:"baud"`     // Baud is the serial line speed.
	Location string `yaml:"location"` // Location is a fixed "lat,lon" used when no device is set.
}

// PostgresConfig struct holds the configuration details for connecting to a PostgreSQL database.
type PostgresConfig struct {
	Host     string `yaml:"host"`     // Host is the database server address.
	Port     string `yaml:"port"`     // Port is the database server port.
	User     string `yaml:"user"`     // User is the database user.
	Password string `yaml:"password"` // Password is the database user's password.
	Name     string `yaml:"db_name"`  // Name is the name of the database.
}

// MustLoad reads the configuration from the environment (with a .env file if present)
// and an optional YAML file named by ASCLEPIUS_CONFIG. Environment values win over the file.
func MustLoad() *Config {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("ASCLEPIUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("env", "production")
	v.SetDefault("port", "8080")
	v.SetDefault("provider.type", "openrouteservice")
	v.SetDefault("provider.rate_limit", "0")
	v.SetDefault("provider.timeout", "15s")
	v.SetDefault("facilities.source", SourceCSV)
	v.SetDefault("facilities.path", "data/facilities.csv")
	v.SetDefault("observer.baud", "9600")

	if path, ok := os.LookupEnv("ASCLEPIUS_CONFIG"); ok && path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			panic("failed to read configuration file")
		}
	}

	port, err := toInt(v, "port")
	if err != nil {
		panic("failed to parse port for monitoring server from configuration")
	}

	rateLimit, err := toInt(v, "provider.rate_limit")
	if err != nil || rateLimit < 0 {
		panic("failed to parse rate limit from configuration, must be a non-negative integer")
	}

	timeout, err := time.ParseDuration(v.GetString("provider.timeout"))
	if err != nil {
		panic("failed to parse provider timeout from configuration")
	}

	baud, err := toInt(v, "observer.baud")
	if err != nil {
		panic("failed to parse observer baud rate from configuration")
	}

	source := v.GetString("facilities.source")
	if source != SourceCSV && source != SourcePostgres {
		panic("unsupported facilities source, must be csv or postgres")
	}

	return &Config{
		Env:  v.GetString("env"),
		Port: port,
		Provider: ProviderConfig{
			Type:      v.GetString("provider.type"),
			APIKey:    v.GetString("provider.key"),
			BaseURL:   v.GetString("provider.base_url"),
			RateLimit: rateLimit,
			Timeout:   timeout,
		},
		Facilities: FacilitiesConfig{
			Source: source,
			Path:   v.GetString("facilities.path"),
		},
		Observer: ObserverConfig{
			Device:   v.GetString("observer.device"),
			Baud:     baud,
			Location: v.GetString("observer.location"),
		},
		SentryDSN: v.GetString("sentry_dsn"),
		Database: PostgresConfig{
			Host:     os.Getenv("DB_HOST"),
			Port:     setDefaultEnv("DB_PORT", "5432"),
			User:     os.Getenv("DB_USERNAME"),
			Password: os.Getenv("DB_PASSWORD"),
			Name:     os.Getenv("DB_NAME"),
		},
	}
}

// toInt is strict: viper's GetInt turns garbage into 0.
func toInt(v *viper.Viper, key string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(v.GetString(key)))
}

func setDefaultEnv(key, override string) string {
	value, exists := os.LookupEnv(key)
	if !exists {
		value = override
	}

	return value
}
