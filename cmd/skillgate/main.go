package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/valinor-ai/skillgate/internal/audit"
	"github.com/valinor-ai/skillgate/internal/auth"
	"github.com/valinor-ai/skillgate/internal/certfetch"
	"github.com/valinor-ai/skillgate/internal/certstore"
	"github.com/valinor-ai/skillgate/internal/platform/config"
	"github.com/valinor-ai/skillgate/internal/platform/database"
	"github.com/valinor-ai/skillgate/internal/platform/server"
	"github.com/valinor-ai/skillgate/internal/platform/telemetry"
	"github.com/valinor-ai/skillgate/internal/skill"
	"github.com/valinor-ai/skillgate/internal/skillauth"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := telemetry.NewLogger(cfg.Log.Level, cfg.Log.Format)
	telemetry.SetDefault(logger)

	slog.Info("skillgate starting",
		"version", version,
		"port", cfg.Server.Port,
		"application_id", cfg.Skill.ApplicationID,
		"cert_cache", cfg.Certs.Cache,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Database is optional: it backs the audit trail and the postgres cache.
	var pool *database.Pool
	if cfg.Database.URL != "" {
		slog.Info("connecting to database")
		p, err := database.Connect(ctx, cfg.Database.URL, cfg.Database.MaxConns)
		if err != nil {
			if cfg.Certs.Cache == "postgres" {
				return fmt.Errorf("connecting to database: %w", err)
			}
			slog.Warn("database connection failed, starting without audit trail", "error", err)
		} else {
			pool = p
			defer pool.Close()
			if err := database.EnsureSchema(ctx, pool); err != nil {
				return err
			}
			slog.Info("schema ready")
		}
	}

	deps, cleanup, err := buildDependencies(ctx, cfg, pool, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := server.New(addr, deps)

	slog.Info("server ready", "addr", addr, "upstream", cfg.Skill.UpstreamURL != "")
	return srv.Start(ctx)
}

// buildDependencies wires the verification pipeline and operator API from
// cfg. The returned cleanup flushes the audit log and closes the cache.
func buildDependencies(ctx context.Context, cfg *config.Config, pool *database.Pool, logger *slog.Logger) (server.Dependencies, func(), error) {
	var db database.Querier
	if pool != nil {
		db = pool
	}

	cache, closeCache, err := certstore.Open(ctx, certstore.Options{
		Kind:       cfg.Certs.Cache,
		MaxEntries: cfg.Certs.CacheMaxEntries,
		TTL:        time.Duration(cfg.Certs.CacheTTLSecs) * time.Second,
		Redis: certstore.RedisConfig{
			Addr:     cfg.Certs.Redis.Addr,
			Password: cfg.Certs.Redis.Password,
			DB:       cfg.Certs.Redis.DB,
			TLS:      cfg.Certs.Redis.TLS,
		},
		DB: db,
	})
	if err != nil {
		return server.Dependencies{}, func() {}, fmt.Errorf("opening certificate cache: %w", err)
	}

	fetcher := certfetch.New(certfetch.Config{
		Timeout:  time.Duration(cfg.Certs.FetchTimeoutSecs) * time.Second,
		MaxBytes: cfg.Certs.FetchMaxBytes,
	}, nil, telemetry.Component(logger, "certfetch"))

	validator, err := buildValidator(cfg.Skill, cache, fetcher)
	if err != nil {
		_ = closeCache()
		return server.Dependencies{}, func() {}, err
	}

	var auditLogger audit.Logger = audit.NopLogger{}
	var auditHandler *audit.Handler
	if db != nil {
		auditLogger = audit.NewAsyncLogger(db, audit.NewStore(), audit.LoggerConfig{
			BufferSize:    cfg.Audit.BufferSize,
			BatchSize:     cfg.Audit.BatchSize,
			FlushInterval: time.Duration(cfg.Audit.FlushInterval) * time.Millisecond,
			Logger:        telemetry.Component(logger, "audit"),
		})
		auditHandler = audit.NewHandler(db)
		slog.Info("audit logger started")
	}

	opts := []skill.HandlerOption{
		skill.WithAuditLogger(auditLogger),
		skill.WithLogger(telemetry.Component(logger, "skill")),
		skill.WithMaxBodyBytes(cfg.Skill.MaxBodyBytes),
	}
	if cfg.Skill.UpstreamURL != "" {
		proxy, err := skill.NewUpstreamProxy(cfg.Skill.UpstreamURL, 0, logger)
		if err != nil {
			_ = auditLogger.Close()
			_ = closeCache()
			return server.Dependencies{}, func() {}, err
		}
		opts = append(opts, skill.WithUpstream(proxy))
	}

	deps := server.Dependencies{
		SkillHandler:       skill.NewHandler(validator, opts...),
		AuditHandler:       auditHandler,
		CertHandler:        certstore.NewHandler(cache),
		Logger:             logger,
		CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
	}
	if pool != nil {
		deps.Pool = pool
	}
	if cfg.Auth.SigningKey != "" {
		deps.Auth = auth.NewTokenService(cfg.Auth.SigningKey, cfg.Auth.Issuer, cfg.Auth.ExpiryHours)
	} else {
		slog.Warn("auth.signingkey not set, operator API disabled")
	}

	cleanup := func() {
		if err := auditLogger.Close(); err != nil {
			slog.Error("closing audit logger", "error", err)
		}
		if err := closeCache(); err != nil {
			slog.Error("closing certificate cache", "error", err)
		}
	}
	return deps, cleanup, nil
}

func buildValidator(sc config.SkillConfig, cache skillauth.CertificateCache, fetcher skillauth.Fetcher) (*skillauth.Validator, error) {
	mode, err := skillauth.ParseSANMatchMode(sc.SANMatch)
	if err != nil {
		return nil, err
	}
	if mode == skillauth.SANMatchSubstring {
		slog.Warn("legacy substring SAN matching enabled")
	}
	return skillauth.NewValidator(skillauth.Config{
		ApplicationID:      sc.ApplicationID,
		FreshnessTolerance: sc.FreshnessTolerance(),
		SANMatch:           mode,
	}, cache, fetcher), nil
}
