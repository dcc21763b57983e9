package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/valinor-ai/skillgate/internal/certstore"
	"github.com/valinor-ai/skillgate/internal/platform/config"
	"github.com/valinor-ai/skillgate/internal/platform/database"
)

func newCacheCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Maintain the shared certificate cache",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "purge CERT_URL",
		Short: "Drop a cached signing certificate so it is fetched again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return purge(cmd, cfg, args[0])
		},
	})
	return cmd
}

func purge(cmd *cobra.Command, cfg *config.Config, rawURL string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	opts := certstore.Options{
		Kind: cfg.Certs.Cache,
		Redis: certstore.RedisConfig{
			Addr:     cfg.Certs.Redis.Addr,
			Password: cfg.Certs.Redis.Password,
			DB:       cfg.Certs.Redis.DB,
			TLS:      cfg.Certs.Redis.TLS,
		},
	}
	switch cfg.Certs.Cache {
	case "memory":
		return fmt.Errorf("the memory cache lives inside each gateway process; use DELETE /api/v1/certs/cache instead")
	case "postgres":
		pool, err := database.Connect(ctx, cfg.Database.URL, 1)
		if err != nil {
			return err
		}
		defer pool.Close()
		opts.DB = pool
	}

	backend, closeFn, err := certstore.Open(ctx, opts)
	if err != nil {
		return err
	}
	defer func() { _ = closeFn() }()

	key, err := certstore.Purge(ctx, backend, rawURL)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "purged %s\n", key)
	return err
}
