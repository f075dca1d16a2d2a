package cliparse

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DatabaseSQLite   = "sqlite"
	DatabasePostgres = "postgres"

	EnvLocal = "local"
)

type Config struct {
	Port           int
	DatabaseURL    string
	DatabaseType   string
	Env            string
	AllowedOrigins []string

	// Subscriber hardening
	SendBuffer   int
	WriteTimeout time.Duration

	// Event bus sizing
	BusWorkers int
	BusQueue   int
}

// LoadDotEnv loads variables from .env files without overriding the
// environment. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// ParseFlags validates flags and fills the rest from the environment
func ParseFlags(args []string) (Config, error) {
	var cfg Config
	var origins string

	fs := flag.NewFlagSet("livepoll", flag.ContinueOnError)

	// Network config (can be CLI args or env)
	fs.IntVar(&cfg.Port, "p", 0, "Server port")
	fs.StringVar(&cfg.DatabaseURL, "d", "", "Database URL")
	fs.StringVar(&cfg.DatabaseType, "t", "", "Database type (sqlite or postgres)")
	fs.StringVar(&cfg.Env, "env", "", "Environment (local enables debug text logs)")
	fs.StringVar(&origins, "origins", "", "Comma separated allowed origins")

	fs.IntVar(&cfg.SendBuffer, "send-buffer", 0, "Per-subscriber send buffer")
	fs.DurationVar(&cfg.WriteTimeout, "write-timeout", 0, "Per-message websocket write timeout")
	fs.IntVar(&cfg.BusWorkers, "bus-workers", 0, "Event bus worker count")
	fs.IntVar(&cfg.BusQueue, "bus-queue", 0, "Event bus queue size per worker")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	// Fall back to environment variables
	var err error
	if cfg.Port, err = intFromEnv(cfg.Port, "PORT", 8080); err != nil {
		return Config{}, err
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return Config{}, fmt.Errorf("invalid port %d", cfg.Port)
	}

	if cfg.DatabaseType == "" {
		cfg.DatabaseType = os.Getenv("DATABASE_TYPE")
		if cfg.DatabaseType == "" {
			cfg.DatabaseType = DatabaseSQLite
		}
	}
	if cfg.DatabaseType != DatabaseSQLite && cfg.DatabaseType != DatabasePostgres {
		return Config{}, fmt.Errorf("unsupported database type %q", cfg.DatabaseType)
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.DatabaseURL == "" {
		if cfg.DatabaseType == DatabasePostgres {
			return Config{}, errors.New("database URL required for postgres (use -d or DATABASE_URL env)")
		}
		cfg.DatabaseURL = "file:livepoll.db"
	}

	if cfg.Env == "" {
		cfg.Env = os.Getenv("APP_ENV")
		if cfg.Env == "" {
			cfg.Env = EnvLocal
		}
	}

	if origins == "" {
		origins = os.Getenv("ALLOWED_ORIGINS")
	}
	cfg.AllowedOrigins = splitOrigins(origins)

	if cfg.SendBuffer, err = intFromEnv(cfg.SendBuffer, "WS_SEND_BUFFER", 16); err != nil {
		return Config{}, err
	}
	if cfg.BusWorkers, err = intFromEnv(cfg.BusWorkers, "BUS_WORKERS", 8); err != nil {
		return Config{}, err
	}
	if cfg.BusQueue, err = intFromEnv(cfg.BusQueue, "BUS_QUEUE", 1024); err != nil {
		return Config{}, err
	}
	if cfg.SendBuffer < 1 || cfg.BusWorkers < 1 || cfg.BusQueue < 1 {
		return Config{}, errors.New("send buffer, bus workers and bus queue must be positive")
	}

	if cfg.WriteTimeout == 0 {
		if v := os.Getenv("WS_WRITE_TIMEOUT"); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return Config{}, errors.New("invalid WS_WRITE_TIMEOUT env variable")
			}
			cfg.WriteTimeout = d
		} else {
			cfg.WriteTimeout = 10 * time.Second
		}
	}
	if cfg.WriteTimeout <= 0 {
		return Config{}, errors.New("write timeout must be positive")
	}

	return cfg, nil
}

func intFromEnv(current int, key string, def int) (int, error) {
	if current != 0 {
		return current, nil
	}
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s env variable", key)
	}
	return n, nil
}

func splitOrigins(s string) []string {
	var out []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
