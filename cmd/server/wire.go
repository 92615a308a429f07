package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"cookout-auth/internal/config"
	"cookout-auth/internal/domain/oauth"
	"cookout-auth/internal/domain/support"
	"cookout-auth/internal/infrastructure/directory"
	"cookout-auth/internal/infrastructure/firebase"
	"cookout-auth/internal/infrastructure/google"
	"cookout-auth/internal/infrastructure/store"
	"cookout-auth/internal/infrastructure/tiktok"
	"cookout-auth/internal/pkg/metrics"
)

// deps is everything the server needs, plus what to release on shutdown.
type deps struct {
	uc      *oauth.UseCase
	dir     support.Directory
	metrics *metrics.Metrics
	closers []func()
}

func (d *deps) close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

func buildDeps(ctx context.Context, cfg config.Config, logger echo.Logger) (*deps, error) {
	d := &deps{metrics: metrics.New()}
	base := &http.Client{Timeout: cfg.ProviderTimeout}

	states, err := buildStateStore(ctx, cfg, d)
	if err != nil {
		d.close()
		return nil, err
	}

	sa, err := firebase.LoadServiceAccount(cfg.Firebase.ServiceAccountFile, cfg.Firebase.ServiceAccountJSON, cfg.Firebase.ServiceAccountB64)
	switch {
	case err == nil:
		logger.Infof("firebase service account loaded for %s", sa.ClientEmail)
	case errors.Is(err, firebase.ErrNoCredentials):
		sa = nil
	default:
		d.close()
		return nil, err
	}

	dir, err := buildDirectory(ctx, cfg, sa, d.metrics.InstrumentClient("identitytoolkit", base), d)
	if err != nil {
		d.close()
		return nil, err
	}
	d.dir = dir

	minter, err := buildMinter(cfg, sa)
	if err != nil {
		d.close()
		return nil, err
	}
	if sa == nil {
		logger.Warnf("no service account; custom tokens are unsigned and only the auth emulator accepts them")
	}

	d.uc = oauth.NewUseCase(oauth.Params{
		TikTok: &tiktok.Client{
			ClientKey:    cfg.TikTok.ClientKey,
			ClientSecret: cfg.TikTok.ClientSecret,
			HTTP:         d.metrics.InstrumentClient("tiktok", base),
		},
		Google:         google.NewVerifier(google.WithHTTPClient(d.metrics.InstrumentClient("google_certs", base))),
		States:         d.metrics.StateStore(states),
		Directory:      dir,
		Minter:         minter,
		Scope:          cfg.TikTok.Scope,
		RedirectURI:    cfg.TikTok.RedirectURI,
		GoogleAudience: cfg.Google.ClientID,
	})
	return d, nil
}

func buildStateStore(ctx context.Context, cfg config.Config, d *deps) (oauth.StateStore, error) {
	if cfg.State.Backend != "redis" {
		return store.NewMemory(cfg.State.TTL), nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.State.RedisAddr,
		Password: cfg.State.RedisPassword,
		DB:       cfg.State.RedisDB,
	})
	d.closers = append(d.closers, func() { _ = rdb.Close() })
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis %s: %w", cfg.State.RedisAddr, err)
	}
	return store.NewRedis(rdb, cfg.State.KeyPrefix, cfg.State.TTL), nil
}

func buildDirectory(ctx context.Context, cfg config.Config, sa *firebase.ServiceAccount, hc *http.Client, d *deps) (support.Directory, error) {
	switch cfg.DirectoryBackend {
	case "memory":
		return directory.NewMemory(), nil
	case "postgres":
		pg, err := directory.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, pg.Close)
		return pg, nil
	}

	projectID := cfg.Firebase.ProjectID
	if cfg.Firebase.UseEmulator || cfg.Firebase.EmulatorHost != "" {
		if projectID == "" && sa != nil {
			projectID = sa.ProjectID
		}
		if projectID == "" {
			projectID = "demo-cookout"
		}
		return firebase.NewEmulatorDirectory(cfg.Firebase.EmulatorHost, projectID, hc), nil
	}
	if sa == nil {
		return nil, errors.New("firebase directory needs service account credentials (FIREBASE_SERVICE_ACCOUNT_*)")
	}
	return firebase.NewDirectory(ctx, sa, projectID, hc)
}

func buildMinter(cfg config.Config, sa *firebase.ServiceAccount) (oauth.Minter, error) {
	if sa != nil {
		return firebase.NewMinter(sa)
	}
	// Unsigned tokens are only accepted by the Auth emulator.
	if cfg.Firebase.UseEmulator || cfg.Firebase.EmulatorHost != "" {
		return firebase.NewEmulatorMinter(), nil
	}
	return nil, firebase.ErrNoCredentials
}
