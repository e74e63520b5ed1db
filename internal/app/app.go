package app

import (
	"context"
	"fmt"
	"time"

	"chatrelay/pkg/ai"
	"chatrelay/pkg/store"
)

// Generator produces one assistant reply for a conversation.
type Generator interface {
	Generate(ctx context.Context, model ai.ModelConfig, history []ai.Turn, userText string) (string, error)
}

// Config holds runtime configuration for the core application.
type Config struct {
	DatabaseURL      string
	Store            store.Store
	Sessions         store.SessionStore
	Generator        Generator
	Registry         *ai.Registry
	FreeChatLimit    int
	FreeMessageLimit int
	HistoryLimit     int
	PremiumUnitPrice float64
	FrontendOrigin   string
}

// App is the core application service wiring together storage, sessions,
// and the model proxy.
type App struct {
	store            store.Store
	sessions         store.SessionStore
	generator        Generator
	registry         *ai.Registry
	freeChatLimit    int
	freeMessageLimit int
	historyLimit     int
	premiumUnitPrice float64
	frontendOrigin   string
	now              func() time.Time
}

// New constructs the application with database-backed storage.
func New(cfg Config) (*App, error) {
	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}
	if cfg.Sessions == nil {
		return nil, fmt.Errorf("session store required")
	}
	if cfg.Generator == nil {
		return nil, fmt.Errorf("generator required")
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("model registry required")
	}
	if cfg.FreeChatLimit <= 0 {
		cfg.FreeChatLimit = 20
	}
	if cfg.FreeMessageLimit <= 0 {
		cfg.FreeMessageLimit = 20
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 20
	}
	if cfg.PremiumUnitPrice <= 0 {
		cfg.PremiumUnitPrice = 9.99
	}

	return &App{
		store:            dataStore,
		sessions:         cfg.Sessions,
		generator:        cfg.Generator,
		registry:         cfg.Registry,
		freeChatLimit:    cfg.FreeChatLimit,
		freeMessageLimit: cfg.FreeMessageLimit,
		historyLimit:     cfg.HistoryLimit,
		premiumUnitPrice: cfg.PremiumUnitPrice,
		frontendOrigin:   cfg.FrontendOrigin,
		now:              time.Now,
	}, nil
}

// Models lists the chat models offered to clients.
func (a *App) Models() []ai.ModelInfo {
	return a.registry.List()
}

// DefaultModel returns the logical id used when a request names no model.
func (a *App) DefaultModel() string {
	return a.registry.DefaultID()
}
