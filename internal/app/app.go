// Package app wires configuration into the components shared by the ambientwx binaries.
package app

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/ambientwx/ambientwx/internal/config"
	"github.com/ambientwx/ambientwx/internal/database"
	"github.com/ambientwx/ambientwx/internal/provider/resilience"
	"github.com/ambientwx/ambientwx/internal/weather"
	"github.com/ambientwx/ambientwx/internal/weather/ambient"
)

// NewLogger builds the JSON logger every binary starts with.
// An unknown level falls back to info.
func NewLogger(w io.Writer, level, service, version string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).
		Level(lvl).
		With().
		Timestamp().
		Str("service", service).
		Str("version", version).
		Logger()
}

// Options are the optional collaborators for Build.
type Options struct {
	Logger   zerolog.Logger
	Registry *resilience.Registry
	Metrics  *resilience.ProviderMetrics
}

// Stack is the vendor client, station service and optional archive built from config.
type Stack struct {
	Client  *ambient.Client
	Service *weather.Service
	Pool    *pgxpool.Pool
}

// Build creates the vendor client and station service. When the archive is
// enabled it connects to PostgreSQL and ensures the schema exists.
func Build(ctx context.Context, cfg *config.Config, opts Options) (*Stack, error) {
	httpCfg := cfg.Ambient.ClientConfig(ambient.ProviderName, opts.Logger)
	httpCfg.Registry = opts.Registry
	httpCfg.Metrics = opts.Metrics

	client := ambient.NewClient(ambient.ClientConfig{
		APIKey:         cfg.Ambient.APIKey,
		ApplicationKey: cfg.Ambient.ApplicationKey,
		BaseURL:        cfg.Ambient.BaseURL,
		Version:        cfg.Ambient.APIVersion,
		HTTPClient:     resilience.NewClient(httpCfg),
		Logger:         opts.Logger,
	})

	stack := &Stack{Client: client}

	var repo weather.Repository
	if cfg.ArchiveEnabled {
		dbConfig := database.ConfigFromEnv()
		pool, err := database.Connect(ctx, dbConfig)
		if err != nil {
			return nil, fmt.Errorf("connecting to archive: %w", err)
		}
		if err := database.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("preparing archive schema: %w", err)
		}
		opts.Logger.Info().
			Str("database", dbConfig.Redacted()).
			Msg("observation archive connected")

		stack.Pool = pool
		repo = weather.NewPostgresRepository(pool)
	}

	stack.Service = weather.NewService(weather.ServiceConfig{
		Provider:   client,
		Repository: repo,
		Logger:     opts.Logger,
	})
	return stack, nil
}

// Ping checks the archive connection. It is a no-op without an archive.
func (s *Stack) Ping(ctx context.Context) error {
	if s.Pool == nil {
		return nil
	}
	return s.Pool.Ping(ctx)
}

// Close releases the archive connection pool.
func (s *Stack) Close() {
	if s.Pool != nil {
		s.Pool.Close()
	}
}
