package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/simaogato/fundfolio-backend/internal/usecase/snapshot"
)

const (
	defaultAPIToken = "dev-token"
	defaultGRPCAddr = ":8080"
)

// Config holds the process settings read from the environment
type Config struct {
	DBConnStr string
	GRPCAddr  string
	APIToken  string
	Env       string
	Snapshot  snapshot.Config
}

// Load reads the configuration from environment variables, applying defaults
func Load() (*Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		DBConnStr: getenv("DB_CONN_STR"),
		GRPCAddr:  getenv("GRPC_ADDR"),
		APIToken:  getenv("API_TOKEN"),
		Env:       getenv("FUNDFOLIO_ENV"),
		Snapshot:  snapshot.DefaultConfig(),
	}

	if cfg.DBConnStr == "" {
		// If explicit string is missing, build it from individual vars (Docker friendly)
		cfg.DBConnStr = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			withDefault(getenv("DB_HOST"), "localhost"),
			withDefault(getenv("DB_PORT"), "5432"),
			withDefault(getenv("DB_USER"), "postgres"),
			withDefault(getenv("DB_PASSWORD"), "postgres"),
			withDefault(getenv("DB_NAME"), "fundfolio"),
		)
	}
	if cfg.GRPCAddr == "" {
		cfg.GRPCAddr = defaultGRPCAddr
	}
	if cfg.APIToken == "" {
		cfg.APIToken = defaultAPIToken
	}

	ints := []struct {
		name string
		dst  *int
		min  int
	}{
		{"SNAPSHOT_START_YEAR", &cfg.Snapshot.StartYear, 1900},
		{"PRICE_FALLBACK_DAYS", &cfg.Snapshot.FallbackDays, 0},
		{"REBUILD_PARALLELISM", &cfg.Snapshot.SubjectParallelism, 1},
		{"HOLDING_PARALLELISM", &cfg.Snapshot.HoldingParallelism, 1},
	}
	for _, v := range ints {
		raw := getenv(v.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", v.name, raw, err)
		}
		if n < v.min {
			return nil, fmt.Errorf("invalid %s %d: must be at least %d", v.name, n, v.min)
		}
		*v.dst = n
	}

	return cfg, nil
}

func withDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
