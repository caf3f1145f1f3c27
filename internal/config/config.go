package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"
)

type Config struct {
	Server      ServerConfig
	Storage     StorageConfig
	Postgres    PostgresConfig
	Mongo       MongoConfig
	Redis       RedisConfig
	Event       EventConfig
	Reservation ReservationConfig
	Log         LogConfig
}

type ServerConfig struct {
	Host            string        `env:"SERVER_HOST" envDefault:"localhost"`
	Port            int           `env:"SERVER_PORT" envDefault:"8080"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"5s"`
}

type StorageConfig struct {
	Driver string `env:"STORAGE_DRIVER" envDefault:"postgres"`
}

type PostgresConfig struct {
	User     string `env:"POSTGRES_USER"`
	Password string `env:"POSTGRES_PASSWORD"`
	Name     string `env:"POSTGRES_DB"`
	Host     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	Port     int    `env:"POSTGRES_PORT" envDefault:"5432"`
	SSLMode  string `env:"POSTGRES_SSLMODE" envDefault:"disable"`
	MaxConns int32  `env:"POSTGRES_MAX_CONNS" envDefault:"10"`
}

func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User,
		p.Password,
		p.Host,
		p.Port,
		p.Name,
		p.SSLMode,
	)
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI" envDefault:"mongodb://localhost:27017"`
	Database string `env:"MONGO_DB" envDefault:"tixseats"`
}

type RedisConfig struct {
	Enabled  bool   `env:"REDIS_ENABLED" envDefault:"true"`
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

type EventConfig struct {
	ID         string `env:"EVENT_ID,required,notEmpty"`
	Name       string `env:"EVENT_NAME" envDefault:"Node.js Meet-up"`
	TotalSeats int    `env:"EVENT_TOTAL_SEATS" envDefault:"500"`
}

type ReservationConfig struct {
	MaxSeats              int           `env:"RESERVATION_MAX_SEATS" envDefault:"10"`
	ReleaseMaxAttempts    int           `env:"RELEASE_MAX_ATTEMPTS" envDefault:"5"`
	ReleaseBackoffInitial time.Duration `env:"RELEASE_BACKOFF_INITIAL" envDefault:"10ms"`
	ReleaseBackoffMax     time.Duration `env:"RELEASE_BACKOFF_MAX" envDefault:"200ms"`
	SummaryCacheTTL       time.Duration `env:"SUMMARY_CACHE_TTL" envDefault:"2s"`
	RateLimitPerMinute    int           `env:"RATE_LIMIT_PER_MINUTE" envDefault:"60"`
	IdempotencyTTL        time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"2h"`
}

type LogConfig struct {
	Level  slog.Level `env:"LOG_LEVEL" envDefault:"info"`
	Format string     `env:"LOG_FORMAT" envDefault:"text"`
}

// New loads .env if present and reads the configuration from the process
// environment.
func New() (*Config, error) {
	_ = godotenv.Load()

	return parse(env.Options{})
}

func parse(opts env.Options) (*Config, error) {
	const op = "config.New"

	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	var errs []error

	switch c.Storage.Driver {
	case DriverPostgres:
		if c.Postgres.User == "" {
			errs = append(errs, errors.New("missing POSTGRES_USER"))
		}
		if c.Postgres.Password == "" {
			errs = append(errs, errors.New("missing POSTGRES_PASSWORD"))
		}
		if c.Postgres.Name == "" {
			errs = append(errs, errors.New("missing POSTGRES_DB"))
		}
	case DriverMongo:
		if c.Mongo.URI == "" {
			errs = append(errs, errors.New("missing MONGO_URI"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_DRIVER %q", c.Storage.Driver))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid SERVER_PORT %d", c.Server.Port))
	}

	if c.Event.TotalSeats <= 0 {
		errs = append(errs, errors.New("EVENT_TOTAL_SEATS must be positive"))
	}

	if c.Reservation.MaxSeats <= 0 {
		errs = append(errs, errors.New("RESERVATION_MAX_SEATS must be positive"))
	}

	if c.Reservation.ReleaseMaxAttempts <= 0 {
		errs = append(errs, errors.New("RELEASE_MAX_ATTEMPTS must be positive"))
	}

	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.Log.Format))
	}

	return errors.Join(errs...)
}
