// Command billingd runs the subscription billing service: the HTTP API,
// database migrations, plan catalog seeding, and the background expiry
// sweeper in a single binary.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/billingkit/pkg/config"
	"github.com/dmitrymomot/billingkit/pkg/email"
	"github.com/dmitrymomot/billingkit/pkg/httpserver"
	"github.com/dmitrymomot/billingkit/pkg/lock"
	"github.com/dmitrymomot/billingkit/pkg/logger"
	"github.com/dmitrymomot/billingkit/pkg/pg"
	"github.com/dmitrymomot/billingkit/pkg/redis"

	billingmodule "github.com/dmitrymomot/billingkit/modules/billing"
	"github.com/dmitrymomot/billingkit/svc/billing"
	"github.com/dmitrymomot/billingkit/svc/billing/pgstore"
)

type appConfig struct {
	Log    logger.Config
	PG     pg.Config
	Redis  redis.Config
	HTTP   httpserver.Config
	Email  email.Config
	Sweep  billing.SweeperConfig
	Compat compatConfig
}

type compatConfig struct {
	// PlansFile seeds the plan catalog on boot when set.
	PlansFile string `env:"BILLING_PLANS_FILE"`
	// EmailTemplate formats a user ID into a notification address, for
	// deployments routing mail through per-user aliases. Notifications
	// stay disabled when empty.
	EmailTemplate string `env:"BILLING_USER_EMAIL_TEMPLATE"`
	// DevEmailDir writes outbound mail to files instead of Postmark.
	DevEmailDir string `env:"BILLING_DEV_EMAIL_DIR"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cfg appConfig
	config.MustLoad(&cfg.Log)
	config.MustLoad(&cfg.PG)
	config.MustLoad(&cfg.Redis)
	config.MustLoad(&cfg.HTTP)
	config.MustLoad(&cfg.Sweep)
	config.MustLoad(&cfg.Compat)

	log := logger.NewFromConfig(cfg.Log)
	logger.SetAsDefault(log)

	if err := run(ctx, cfg, log); err != nil {
		log.Error("billingd exited", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg appConfig, log *slog.Logger) error {
	pool, err := pg.Connect(ctx, cfg.PG)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, pool, cfg.PG, log); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	redisClient, err := redis.Connect(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer redisClient.Close()

	store := pgstore.New(pool)

	if cfg.Compat.PlansFile != "" {
		plans, err := billing.LoadPlansFile(cfg.Compat.PlansFile)
		if err != nil {
			return fmt.Errorf("plan catalog: %w", err)
		}
		created, err := billing.SeedPlans(ctx, store, plans)
		if err != nil {
			return fmt.Errorf("plan seeding: %w", err)
		}
		log.InfoContext(ctx, "plan catalog seeded",
			slog.String("file", cfg.Compat.PlansFile), slog.Int("created", created))
	}

	svc := billing.NewService(store,
		billing.WithLogger(log),
		billing.WithNotifier(buildNotifier(ctx, cfg, log)),
	)

	sweeper := billing.NewSweeper(svc, cfg.Sweep,
		billing.WithSweeperLogger(log),
		billing.WithSweeperLocker(lock.NewMutex(redisClient, "billing:sweep", cfg.Sweep.Interval)),
	)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Get("/health", httpserver.HealthCheckHandler(ctx, log,
		pg.Healthcheck(pool),
		redis.Healthcheck(redisClient),
	))
	r.Route("/v1", func(r chi.Router) {
		r.With(billingmodule.HeaderAuth).Mount("/billing", billingmodule.Router(svc))
	})

	srv := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(ctx, r)
	})
	g.Go(func() error {
		err := sweeper.Run(ctx)
		// Context cancellation is the normal way the sweeper stops.
		if err != nil && ctx.Err() != nil {
			return nil
		}
		return err
	})

	log.InfoContext(ctx, "billingd started",
		slog.String("addr", cfg.HTTP.Addr),
		slog.Duration("sweep_interval", cfg.Sweep.Interval),
	)
	return g.Wait()
}

// buildNotifier picks the outbound mail path: Postmark in production,
// file-based delivery for development, none when the deployment has no
// way to resolve user addresses.
func buildNotifier(ctx context.Context, cfg appConfig, log *slog.Logger) billing.Notifier {
	if cfg.Compat.EmailTemplate == "" {
		log.InfoContext(ctx, "expiry notifications disabled: no user email template configured")
		return billing.NoopNotifier{}
	}

	resolver := func(_ context.Context, userID uuid.UUID) (string, error) {
		return fmt.Sprintf(cfg.Compat.EmailTemplate, userID), nil
	}

	if cfg.Compat.DevEmailDir != "" {
		return billing.NewEmailNotifier(email.NewDevSender(cfg.Compat.DevEmailDir), resolver)
	}

	// The email config carries required fields, so it is only loaded
	// once notifications are actually enabled.
	if err := config.Load(&cfg.Email); err != nil {
		log.WarnContext(ctx, "email config missing, expiry notifications disabled", logger.Error(err))
		return billing.NoopNotifier{}
	}
	sender, err := email.NewPostmarkClient(cfg.Email)
	if err != nil {
		log.WarnContext(ctx, "postmark unavailable, expiry notifications disabled", logger.Error(err))
		return billing.NoopNotifier{}
	}
	return billing.NewEmailNotifier(sender, resolver)
}
