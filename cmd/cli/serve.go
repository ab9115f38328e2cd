package cli

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/vpnda/statement-relay/db"
	"github.com/vpnda/statement-relay/pkg/cache"
	"github.com/vpnda/statement-relay/pkg/config"
	"github.com/vpnda/statement-relay/pkg/coordinator"
	"github.com/vpnda/statement-relay/pkg/transport"
	"github.com/vpnda/statement-relay/pkg/utils"
)

func runServe(ctx context.Context) error {
	cfg, err := config.GetConfig()
	if err != nil {
		return err
	}
	ttl, err := cfg.CacheTTL()
	if err != nil {
		return err
	}
	timeout, err := cfg.RequestTimeout()
	if err != nil {
		return err
	}

	// the cache never touches disk
	database, err := db.NewInMemory()
	if err != nil {
		return fmt.Errorf("error opening cache store: %w", err)
	}
	defer database.Close()
	if err := database.Initialize(); err != nil {
		return fmt.Errorf("error initializing cache store: %w", err)
	}

	proxyClient := &http.Client{Timeout: timeout}
	if cfg.Log.DebugHTTP {
		proxyClient.Transport = utils.DebugRoundTripper()
	}

	hub := transport.NewHub()
	coord := coordinator.New(
		hub,
		cache.New(database, cache.WithTTL(ttl)),
		coordinator.NewFetchProxy(proxyClient, cfg.Coordinator.ProxyHosts),
		timeout,
	)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().
		Dur("cacheTtl", ttl).
		Dur("requestTimeout", timeout).
		Strs("proxyHosts", cfg.Coordinator.ProxyHosts).
		Msg("starting coordinator")

	err = transport.NewServer(coord, hub, cfg.Coordinator.AllowedOrigins).ListenAndServe(ctx, cfg.Coordinator.Listen)
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
