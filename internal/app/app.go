// Package app wires configuration into a ready engine for the entry points.
package app

import (
	"context"
	"fmt"

	"github.com/tatianab/seven-sects/internal/config"
	"github.com/tatianab/seven-sects/internal/engine"
	"github.com/tatianab/seven-sects/internal/location"
	"github.com/tatianab/seven-sects/internal/narrator"
	"github.com/tatianab/seven-sects/internal/store"
	"go.uber.org/zap"
)

type App struct {
	Engine *engine.Engine
	Slots  store.Slots
	Seed   int64

	closers []func()
}

// Build loads the rulebook, picks the content provider and opens the save
// store described by cfg.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	idx, err := location.LoadFile(cfg.RulebookPath)
	if err != nil {
		return nil, err
	}

	a := &App{Seed: cfg.Seed}
	if a.Seed == 0 {
		if a.Seed, err = engine.NewSeed(); err != nil {
			return nil, err
		}
	}

	var provider engine.ContentProvider = narrator.Rulebook{}
	if cfg.Narrator == config.NarratorGemini {
		g, err := narrator.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, fmt.Errorf("create gemini client: %w", err)
		}
		a.closers = append(a.closers, g.Close)
		provider = g
	}

	slots, err := store.Open(ctx, cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Slots = slots
	a.closers = append(a.closers, func() { slots.Close() })

	a.Engine = engine.New(provider, idx,
		engine.WithLogger(logger),
		engine.WithWeatherRoller(engine.NewWeatherRoller(a.Seed, engine.Weathers)),
		engine.WithProviderTimeout(cfg.ProviderTimeout))

	logger.Info("engine ready",
		zap.String("narrator", cfg.Narrator),
		zap.String("storage", cfg.Storage),
		zap.Int64("seed", a.Seed),
		zap.Int("locations", idx.Len()))
	return a, nil
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
