package main

import (
	"context"

	"calculadora-console/internal/calcapi"
	"calculadora-console/internal/config"
	"calculadora-console/internal/console"
	"calculadora-console/internal/observability"
)

// initMetrics initialises all metric providers and application-specific
// metric instruments.
func initMetrics(ctx context.Context) (func(context.Context) error, error) {
	shutdown, err := observability.InitMetrics(ctx)
	if err != nil {
		return nil, err
	}

	if err := console.InitMetrics(); err != nil {
		return nil, err
	}

	return shutdown, nil
}

// initConsole wires the backend client, the settings file and the console.
func initConsole(cfg *config.Config) (*console.Console, error) {
	store := config.NewSettingsStore(cfg.SettingsFile)

	saved, err := store.Load()
	if err != nil {
		return nil, err
	}

	client, err := calcapi.New(cfg.EffectiveBaseURL(saved), calcapi.WithTimeout(cfg.RequestTimeout))
	if err != nil {
		return nil, err
	}

	return console.New(client, console.Options{
		HistoryLimit:        cfg.HistoryLimit,
		HistoryDisplayLimit: cfg.HistoryDisplayLimit,
		HistoryOrder:        cfg.HistoryOrder,
		LegacyPairMode:      cfg.LegacyPairMode,
		ClearResultOnError:  cfg.ClearResultOnError,
		Settings:            store,
	}), nil
}
