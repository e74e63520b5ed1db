package main

import (
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"chatrelay/internal/app"
	"chatrelay/internal/config"
	"chatrelay/internal/ratelimit"
	"chatrelay/internal/server"
	"chatrelay/internal/util"
	"chatrelay/pkg/ai"
	"chatrelay/pkg/billing"
	"chatrelay/pkg/store"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	sessionTTL, err := config.ParseSessionTTL(cfg.SessionTTL)
	if err != nil {
		log.Fatalf("failed to parse session TTL: %v", err)
	}
	jwtLeeway, err := config.ParseJWTLeeway(cfg.JWTLeeway)
	if err != nil {
		log.Fatalf("failed to parse JWT leeway: %v", err)
	}
	aiTimeout, err := config.ParseAITimeout(cfg.AITimeout)
	if err != nil {
		log.Fatalf("failed to parse AI timeout: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	var revoker store.TokenRevoker
	if cfg.RedisAddr != "" {
		revoker = store.NewRedisTokenRevoker(cfg.RedisAddr, cfg.RedisPassword)
	} else {
		revoker = store.NewMemoryTokenRevoker()
	}
	sessions, err := store.NewJWTSessionStore(cfg.JWTSecret, sessionTTL, revoker, store.JWTOptions{
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		Leeway:   jwtLeeway,
	})
	if err != nil {
		log.Fatalf("failed to init session store: %v", err)
	}

	registry, err := ai.NewRegistry(cfg.DefaultModel, modelConfigs(cfg.Models))
	if err != nil {
		log.Fatalf("failed to build model registry: %v", err)
	}

	appCore, err := app.New(app.Config{
		DatabaseURL:      cfg.DatabaseURL,
		Sessions:         sessions,
		Generator:        ai.NewClient(aiTimeout),
		Registry:         registry,
		FreeChatLimit:    cfg.FreeChatLimit,
		FreeMessageLimit: cfg.FreeMessageLimit,
		HistoryLimit:     cfg.HistoryLimit,
		PremiumUnitPrice: cfg.PremiumUnitPrice,
		FrontendOrigin:   cfg.FrontendOrigin,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	var webhook *billing.Verifier
	if cfg.StripeWebhookSecret != "" {
		webhook, err = billing.NewVerifier(cfg.StripeWebhookSecret, 0)
		if err != nil {
			log.Fatalf("failed to init webhook verifier: %v", err)
		}
	}

	httpServer := server.New(server.Config{
		App: appCore,
		Google: server.NewGoogleOAuth(server.GoogleOAuthConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
		}),
		Webhook:        webhook,
		SignupLimiter:  limiter(cfg, "signup", cfg.SignupRateLimitPerMinute),
		LoginLimiter:   limiter(cfg, "login", cfg.LoginRateLimitPerMinute),
		FrontendOrigin: cfg.FrontendOrigin,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("chatrelay server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}

func modelConfigs(entries []config.ModelEntry) []ai.ModelConfig {
	models := make([]ai.ModelConfig, 0, len(entries))
	for _, entry := range entries {
		models = append(models, ai.ModelConfig{
			ID:            entry.ID,
			DisplayName:   entry.DisplayName,
			Kind:          ai.Kind(entry.Provider),
			Endpoint:      entry.Endpoint,
			UpstreamModel: entry.Model,
			APIKey:        entry.APIKey,
		})
	}
	return models
}

func limiter(cfg config.FileConfig, name string, perMinute int) *ratelimit.FixedWindowLimiter {
	if perMinute <= 0 || cfg.RedisAddr == "" {
		return nil
	}
	l, err := ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword,
		"chatrelay:ratelimit:"+name, perMinute, time.Minute)
	if err != nil {
		log.Fatalf("failed to init %s rate limiter: %v", name, err)
	}
	return l
}
