package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"smartsite/edge-gateway/internal/chatclient"
	"smartsite/edge-gateway/internal/config"
	"smartsite/edge-gateway/internal/domain/session"
	"smartsite/edge-gateway/internal/infrastructure/auth"
	"smartsite/edge-gateway/internal/infrastructure/chatapi"
	"smartsite/edge-gateway/internal/infrastructure/crontab"
	"smartsite/edge-gateway/internal/infrastructure/sessioncache"
	"smartsite/edge-gateway/internal/infrastructure/userapi"
	"smartsite/edge-gateway/internal/interfaces/httpserver"
)

// Application holds the long-running components of the gateway.
type Application struct {
	cfg        *config.Config
	log        zerolog.Logger
	httpServer *httpserver.HttpServer
	gateway    *session.Gateway
	chat       *chatclient.Client
	crontab    *crontab.Crontab
}

// CreateApplication wires every component from configuration.
func CreateApplication(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Application, error) {
	store, err := newSessionStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("session store: %w", err)
	}

	verifier, err := auth.NewJWKSVerifier(ctx, cfg.JWKSURL, cfg.Issuer, cfg.Audience, cfg.RefreshJWKSInterval, cfg.ClockSkew, log)
	if err != nil {
		return nil, fmt.Errorf("jwks verifier: %w", err)
	}

	profiles := userapi.NewClient(cfg.UserAPIBaseURL, cfg.UserAPITimeout, log)

	opts := session.DefaultOptions()
	opts.TTL = cfg.SessionCacheTTL
	opts.VerifyInterval = cfg.SessionVerifyInterval
	opts.Retention = cfg.SessionCacheRetention
	opts.MaxEntries = cfg.SessionCacheMaxSize
	opts.MobileStoreURL = cfg.MobileStoreURL

	gateway := session.NewGateway(store, verifier, profiles, session.DefaultRoutes(), opts, log)

	chat := newChatClient(cfg, log)

	return &Application{
		cfg:        cfg,
		log:        log,
		httpServer: httpserver.New(cfg, log, gateway, chat),
		gateway:    gateway,
		chat:       chat,
		crontab:    crontab.NewCrontab(gateway, log),
	}, nil
}

func newSessionStore(cfg *config.Config) (session.Store, error) {
	if cfg.SessionCacheBackend == "redis" {
		return sessioncache.NewRedisStore(cfg.SessionCacheRedisURL, cfg.SessionCacheRetention)
	}
	return sessioncache.NewMemoryStore(cfg.SessionCacheMaxSize)
}

func newChatClient(cfg *config.Config, log zerolog.Logger) *chatclient.Client {
	var tokens chatclient.TokenSource = chatclient.StaticTokenSource("")
	if cfg.ChatCredentialFile != "" {
		tokens = &chatclient.FileTokenSource{Path: cfg.ChatCredentialFile}
	}

	rest := chatapi.NewClient(cfg.ChatAPIBaseURL, tokens.Token)

	return chatclient.NewClient(chatclient.Config{
		URL:           cfg.ChatSocketURL,
		UserID:        cfg.ChatUserID,
		Tokens:        tokens,
		REST:          rest,
		Logger:        log,
		AckTimeout:    cfg.ChatAckTimeout,
		SearchTimeout: cfg.ChatSearchTimeout,
	})
}

// Start runs every component until one fails or the context is cancelled.
func (application *Application) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := application.chat.Connect(ctx); err != nil {
		// The client reconnects on its own; startup only logs.
		application.log.Warn().Err(err).Msg("initial chat connect failed, retrying in background")
	}

	var eg errgroup.Group
	eg.Go(func() error {
		err := application.gateway.Run(ctx)
		if err != nil {
			cancel()
		}
		return err
	})
	eg.Go(func() error {
		err := application.crontab.Run(ctx)
		if err != nil {
			cancel()
		}
		return err
	})
	eg.Go(func() error {
		err := application.httpServer.Run(ctx)
		if err != nil {
			cancel()
		}
		return err
	})

	err := eg.Wait()
	application.chat.Disconnect()
	return err
}
