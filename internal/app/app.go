// Package app wires configuration into stores, adapters and services.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"onsalenow/internal/config"
	"onsalenow/internal/http/handlers"
	applog "onsalenow/internal/log"
	"onsalenow/internal/mail"
	"onsalenow/internal/media"
	"onsalenow/internal/notify"
	"onsalenow/internal/push"
	"onsalenow/internal/queue"
	"onsalenow/internal/repos"
	"onsalenow/internal/services"
)

type App struct {
	Cfg       config.Config
	DB        *sqlx.DB
	Gateway   repos.Gateway
	Deps      *handlers.Deps
	Fanout    *notify.Fanout
	Publisher *queue.Publisher
	Products  *repos.ProductRepo

	closers []func() error
}

// Build opens the stores and constructs every service. Optional adapters
// (broker, redis, S3, mail, push) are used only when configured.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	a := &App{Cfg: cfg}

	db, err := repos.OpenDB(cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	a.DB = db
	a.closers = append(a.closers, db.Close)

	switch cfg.StoreDriver {
	case "mongo":
		client, err := repos.ConnectMongo(ctx, cfg.MongoURI)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.closers = append(a.closers, func() error { return client.Disconnect(context.Background()) })
		a.Gateway = repos.NewMongoGateway(client.Database(cfg.MongoDB))
	case "sqlite", "":
		a.Gateway = repos.NewSQLGateway(db)
	default:
		_ = a.Close()
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}

	accounts := repos.NewAccountRepo(db)
	profiles := repos.NewProfileRepo(a.Gateway)
	a.Products = repos.NewProductRepo(a.Gateway)
	orders := repos.NewOrderRepo(a.Gateway)
	subs := repos.NewSubscriptionRepo(a.Gateway)

	pushClient := push.New(cfg.Push)
	if !pushClient.Enabled() {
		applog.L().Warn("push.disabled", zap.String("reason", "PUSH_APP_ID not set"))
	}
	mailer := mail.NewSendGrid(cfg.SendGridKey, cfg.MailFrom)

	subSvc := services.NewSubscriptionService(subs, pushClient)
	a.Fanout = &notify.Fanout{
		Subs:      subSvc,
		Push:      pushClient,
		Dedup:     a.dedup(ctx),
		PublicURL: cfg.PublicURL,
	}

	var dispatch services.Dispatcher = notify.Inline{Fanout: a.Fanout}
	if cfg.RabbitURL != "" {
		a.Publisher = queue.NewPublisher(cfg.RabbitURL, cfg.ProductQueue)
		a.closers = append(a.closers, a.Publisher.Close)
		dispatch = a.Publisher
	}

	catalogSvc := services.NewCatalogService(a.Products, dispatch, nil)
	if cfg.S3.Bucket != "" {
		store, err := media.NewS3Store(ctx, cfg.S3)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		catalogSvc.Media = store
	}

	invites := services.NewInviteService(cfg.InviteSecret, cfg.InviteTTL, repos.NewMarkerRepo(a.Gateway, "adminInvites"))
	a.Deps = &handlers.Deps{
		Auth:      services.NewAuthService(accounts, profiles, invites, cfg.BcryptCost),
		Invites:   invites,
		Catalog:   catalogSvc,
		Subs:      subSvc,
		Orders:    services.NewOrderService(orders, a.Products, mailer),
		Sellers:   services.NewSellerService(profiles, a.Products, accounts, orders, mailer),
		PublicURL: cfg.PublicURL,
		Secure:    cfg.Production(),
	}
	return a, nil
}

// dedup prefers Redis and falls back to the record store when Redis is
// not configured or not reachable.
func (a *App) dedup(ctx context.Context) notify.Deduper {
	store := notify.StoreDedup{Markers: repos.NewMarkerRepo(a.Gateway, "notifications")}
	if a.Cfg.Redis.Addr == "" {
		return store
	}
	client := redis.NewClient(&redis.Options{
		Addr:     a.Cfg.Redis.Addr,
		Password: a.Cfg.Redis.Password,
		DB:       a.Cfg.Redis.DB,
	})
	pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pctx).Err(); err != nil {
		applog.L().Warn("redis.unavailable", zap.String("addr", a.Cfg.Redis.Addr), zap.Error(err))
		_ = client.Close()
		return store
	}
	a.closers = append(a.closers, client.Close)
	return notify.NewRedisDedup(client, a.Cfg.DedupTTL)
}

// HandleProductCreated is the queue consumer's handler: it reloads the
// product and runs the fan-out. Deleted products are skipped.
func (a *App) HandleProductCreated(ctx context.Context, ev queue.ProductCreatedEvent) error {
	p, err := a.Products.Get(ctx, ev.ProductID)
	if errors.Is(err, repos.ErrNotFound) {
		applog.L().Info("notify.product.gone", zap.String("product_id", ev.ProductID))
		return nil
	}
	if err != nil {
		return err
	}
	_, err = a.Fanout.ProductCreated(ctx, *p)
	return err
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
