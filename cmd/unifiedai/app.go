package main

import (
	"fmt"

	"unifiedai/internal/catalog"
	"unifiedai/internal/config"
	"unifiedai/internal/connection"
	"unifiedai/internal/credentials"
	"unifiedai/internal/logger"
	"unifiedai/internal/metrics"
)

// app wires the catalogue, credential resolver, metrics and connection manager from config.
type app struct {
	catalog   *catalog.Catalog
	manager   *connection.Manager
	collector *metrics.Collector
}

func newApp(cfg *config.Config) (*app, error) {
	cat, err := loadCatalog(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}

	store, err := credentials.LoadSecretStore(cfg.SecretsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load secret store: %w", err)
	}
	resolver := credentials.NewResolver(cat,
		credentials.WithSecretStore(store),
		credentials.WithDotEnvFiles(cfg.EnvFiles...),
	)

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.NewCollector(metrics.Config{Namespace: cfg.Metrics.Namespace}, nil)
	}

	manager, err := connection.New(cat, resolver,
		connection.WithTimeouts(cfg.TransportTimeouts()),
		connection.WithMetrics(collector),
		connection.WithDebugTransport(cfg.DebugTransport),
	)
	if err != nil {
		return nil, err
	}

	logger.ServiceOperation("cli", "init", "providers", len(cat.Providers()), "metrics", cfg.Metrics.Enabled)
	return &app{catalog: cat, manager: manager, collector: collector}, nil
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default()
	}
	return catalog.Load(path)
}
