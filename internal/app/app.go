// Package app wires configuration, stores and the HTTP surface into a
// running process.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/vaultkit/api"
	"github.com/dmitrymomot/vaultkit/pkg/billing"
	"github.com/dmitrymomot/vaultkit/pkg/httpserver"
	"github.com/dmitrymomot/vaultkit/pkg/identity"
	"github.com/dmitrymomot/vaultkit/pkg/logger"
	"github.com/dmitrymomot/vaultkit/pkg/metrics"
	mongox "github.com/dmitrymomot/vaultkit/pkg/mongo"
	"github.com/dmitrymomot/vaultkit/pkg/quota"
	redisx "github.com/dmitrymomot/vaultkit/pkg/redis"
	"github.com/dmitrymomot/vaultkit/pkg/requestid"
	"github.com/dmitrymomot/vaultkit/pkg/tags"
	"github.com/dmitrymomot/vaultkit/store/mongostore"
	"github.com/dmitrymomot/vaultkit/store/redisstore"
)

var ErrUnknownQuotaBackend = errors.New("app: unknown quota backend")

// Run loads configuration from the environment, connects the stores and
// serves HTTP until ctx is cancelled.
func Run(ctx context.Context) error {
	s, err := loadSettings()
	if err != nil {
		return err
	}

	log := logger.New(
		logger.WithEnvironment(s.app.Env, s.app.Name),
		logger.WithContextExtractors(requestid.LogExtractor),
	)
	slog.SetDefault(log)

	client, err := mongox.New(ctx, s.mongo)
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Disconnect(context.WithoutCancel(ctx)); err != nil {
			log.Error("mongo disconnect failed", logger.Error(err))
		}
	}()

	db := client.Database(s.mongo.Database)
	if err := mongostore.Migrate(ctx, db); err != nil {
		return err
	}
	tx := mongox.NewTransactor(client, s.mongo.TxTimeout)

	checks := map[string]httpserver.CheckFunc{
		"mongo": mongox.Healthcheck(client),
	}

	ledger, closeLedger, err := newLedger(ctx, s, db, tx, checks)
	if err != nil {
		return err
	}
	defer closeLedger()

	loc, err := s.quota.Location()
	if err != nil {
		return err
	}
	counter := quota.NewCounter(ledger,
		quota.WithLocation(loc),
		quota.WithDefaultLimit(s.quota.DefaultLimit),
	)

	tagSvc := tags.NewReconciler(mongostore.NewTags(db, tx), tags.WithLogger(log))

	verifier, err := identity.NewFromConfig(ctx, s.identity)
	if err != nil {
		return err
	}

	m := metrics.New()
	services := api.Services{
		Logger:          log,
		Metrics:         m,
		Verifier:        verifier,
		Quota:           counter,
		Tags:            tagSvc,
		TriggerSecret:   s.app.TriggerSecret,
		ReadinessChecks: checks,
	}

	provider, err := billing.NewProvider(s.billing, s.stripe, s.paddle)
	if err != nil {
		log.Warn("billing provider not configured, webhook and cancellation endpoints will fail",
			logger.Error(err),
			logger.Component("billing"),
		)
	} else {
		users := mongostore.NewUsers(db)
		services.Billing = provider
		services.Events = billing.NewReconciler(users, provider,
			billing.WithAnnualPriceID(s.billing.AnnualPriceID),
			billing.WithReconcilerLogger(log),
		)
		services.Canceller = billing.NewCanceller(users, provider, billing.WithCancellerLogger(log))
	}

	if s.app.TagChangeFeed {
		if err := mongostore.EnablePreAndPostImages(ctx, db); err != nil {
			return err
		}
	}

	g, ctx := errgroup.WithContext(ctx)

	srv := httpserver.NewFromConfig(s.http, httpserver.WithLogger(log))
	g.Go(func() error {
		return srv.Run(ctx, api.NewRouter(services))
	})

	if s.app.TagChangeFeed {
		feed := mongostore.NewPasswordFeed(db, tagSvc,
			mongostore.WithFeedLogger(log),
			mongostore.WithChangeObserver(func(c tags.Change) {
				m.ObserveTagChange("feed", len(c.Added), len(c.Removed))
			}),
		)
		g.Go(func() error {
			return feed.Run(ctx)
		})
	}

	return g.Wait()
}

// newLedger builds the quota ledger selected by QUOTA_BACKEND.
func newLedger(ctx context.Context, s settings, db *mongo.Database, tx *mongox.Transactor, checks map[string]httpserver.CheckFunc) (quota.Ledger, func(), error) {
	switch strings.ToLower(s.quota.Backend) {
	case "mongo", "":
		return mongostore.NewQuotaLedger(db, tx), func() {}, nil
	case "redis":
		client, err := redisx.Connect(ctx, s.redis)
		if err != nil {
			return nil, nil, err
		}
		checks["redis"] = redisx.Healthcheck(client)
		return redisstore.NewQuotaLedger(client), func() { _ = client.Close() }, nil
	case "memory":
		l := quota.NewMemoryLedger()
		return l, l.Close, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownQuotaBackend, s.quota.Backend)
	}
}
