package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/frahmantamala/qr-document/internal"
	"github.com/frahmantamala/qr-document/internal/core/events"
	"github.com/frahmantamala/qr-document/internal/docapi"
	"github.com/frahmantamala/qr-document/internal/document"
	"github.com/frahmantamala/qr-document/internal/metrics"
	"github.com/frahmantamala/qr-document/internal/scan"
	"github.com/frahmantamala/qr-document/internal/session"
	sessionRedis "github.com/frahmantamala/qr-document/internal/session/redis"
	"github.com/frahmantamala/qr-document/internal/transport/rest"
	"github.com/frahmantamala/qr-document/internal/user"
)

// workflowDeps are the collaborators shared by the server and the CLI commands.
type workflowDeps struct {
	Bus          *events.EventBus
	Metrics      *metrics.Metrics
	Client       *docapi.Client
	Resolver     *user.Resolver
	Issuance     *document.Coordinator
	Verification *scan.Coordinator
}

func newWorkflowDeps(cfg *internal.Config, lg *slog.Logger) *workflowDeps {
	bus := events.NewEventBus(lg)
	events.RegisterAuditLog(bus, lg)

	var m *metrics.Metrics
	if cfg.Observability.Metrics.Enabled {
		m = metrics.New()
		m.Subscribe(bus)
	}

	client := docapi.NewClient(docapi.Config{
		BaseURL: cfg.DocumentAPI.BaseURL,
		Timeout: cfg.DocumentAPI.Timeout,
	}, m, lg)

	return &workflowDeps{
		Bus:          bus,
		Metrics:      m,
		Client:       client,
		Resolver:     user.NewResolver(client, lg),
		Issuance:     document.NewCoordinator(client, bus, lg),
		Verification: scan.NewCoordinator(client, bus, cfg.Scan.FrameInterval, lg),
	}
}

// storeBackend is the configured session store plus the health checks of the
// infrastructure behind it. Close releases it.
type storeBackend struct {
	Store  session.Store
	Checks map[string]rest.Checker
	Close  func()
}

func sessionStore(ctx context.Context, cfg *internal.Config, lg *slog.Logger) (*storeBackend, error) {
	switch cfg.Session.Store {
	case internal.SessionStoreRedis:
		client, err := sessionRedis.NewClient(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		if client == nil {
			return nil, fmt.Errorf("redis session store requires redis.enabled and redis.url")
		}
		lg.Info("using redis session store", "ttl", cfg.Session.TTL)
		return &storeBackend{
			Store:  sessionRedis.NewStore(client.Client, cfg.Session.TTL, lg),
			Checks: map[string]rest.Checker{"redis": client.Health},
			Close:  func() { client.Close() },
		}, nil
	default:
		store := session.NewMemoryStore(cfg.Session.TTL, lg)
		sweepCtx, cancel := context.WithCancel(ctx)
		go store.Run(sweepCtx, sweepInterval(cfg.Session.TTL))
		lg.Info("using in-memory session store", "ttl", cfg.Session.TTL)
		return &storeBackend{Store: store, Close: cancel}, nil
	}
}

func sweepInterval(ttl time.Duration) time.Duration {
	interval := ttl / 4
	if interval < time.Second {
		interval = time.Second
	}
	return interval
}
