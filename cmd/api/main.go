// Command api runs the VerseCraft backend: account management, poem
// generation, and subscription billing behind a single HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	authmodule "github.com/versecraft/api/modules/auth"
	billingmodule "github.com/versecraft/api/modules/billing"
	poemsmodule "github.com/versecraft/api/modules/poems"
	profilemodule "github.com/versecraft/api/modules/profile"
	"github.com/versecraft/api/modules/respond"
	"github.com/versecraft/api/pkg/clientip"
	"github.com/versecraft/api/pkg/config"
	"github.com/versecraft/api/pkg/email"
	"github.com/versecraft/api/pkg/file"
	"github.com/versecraft/api/pkg/httpserver"
	"github.com/versecraft/api/pkg/jwt"
	"github.com/versecraft/api/pkg/logger"
	"github.com/versecraft/api/pkg/mongo"
	"github.com/versecraft/api/pkg/ratelimiter"
	"github.com/versecraft/api/pkg/redis"
	"github.com/versecraft/api/pkg/requestid"
	"github.com/versecraft/api/svc/billing"
	"github.com/versecraft/api/svc/poem"
	"github.com/versecraft/api/svc/user"
)

type appConfig struct {
	JWTSigningKey string        `env:"JWT_SIGNING_KEY,required"`
	SweepInterval time.Duration `env:"SUBSCRIPTION_SWEEP_INTERVAL" envDefault:"1h"`

	// Free poem preview limit per client IP per refill window.
	FreePoemLimit  int           `env:"FREE_POEM_LIMIT" envDefault:"10"`
	FreePoemWindow time.Duration `env:"FREE_POEM_WINDOW" envDefault:"24h"`

	// Local fallbacks used when Postmark / S3 are not configured.
	EmailOutputDir string `env:"EMAIL_OUTPUT_DIR" envDefault:"tmp/emails"`
	UploadsDir     string `env:"UPLOADS_DIR" envDefault:"uploads"`
	UploadsBaseURL string `env:"UPLOADS_BASE_URL" envDefault:"/uploads"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "api:", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		appCfg     appConfig
		logCfg     logger.Config
		mongoCfg   mongo.Config
		redisCfg   redis.Config
		serverCfg  httpserver.Config
		emailCfg   email.Config
		s3Cfg      file.S3Config
		userCfg    user.Config
		openaiCfg  poem.OpenAIConfig
		paddleCfg  billing.PaddleConfig
		plansCfg   billing.PlansConfig
		creditsCfg billing.CreditsConfig
	)
	config.MustLoad(&appCfg)
	config.MustLoad(&logCfg)
	config.MustLoad(&mongoCfg)
	config.MustLoad(&redisCfg)
	config.MustLoad(&serverCfg)
	config.MustLoad(&emailCfg)
	config.MustLoad(&s3Cfg)
	config.MustLoad(&userCfg)
	config.MustLoad(&openaiCfg)
	config.MustLoad(&paddleCfg)
	config.MustLoad(&plansCfg)
	config.MustLoad(&creditsCfg)

	log := logger.NewFromConfig(logCfg)

	mongoClient, db, err := mongo.Connect(ctx, mongoCfg)
	if err != nil {
		return fmt.Errorf("connect mongo: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mongoClient.Disconnect(shutdownCtx)
	}()
	monitor := mongo.NewMonitor(mongoClient, mongoCfg, log)

	// Redis backs the rate limiter when configured; a single-instance
	// deployment without it falls back to the in-memory store.
	var limiterStore ratelimiter.Store
	if os.Getenv("REDIS_URL") != "" {
		redisClient, err := redis.Connect(ctx, redisCfg)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer redisClient.Close()
		limiterStore = ratelimiter.NewRedisStore(redisClient, "ratelimit:free-poem")
	} else {
		ms := ratelimiter.NewMemoryStore()
		defer ms.Close()
		limiterStore = ms
	}

	userStore := user.NewMongoStore(db)
	poemStore := poem.NewMongoStore(db)
	subStore := billing.NewMongoSubscriptionStore(db)
	if err := userStore.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("user indexes: %w", err)
	}
	if err := poemStore.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("poem indexes: %w", err)
	}
	if err := subStore.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("subscription indexes: %w", err)
	}

	mailer, err := newMailer(appCfg, emailCfg)
	if err != nil {
		return fmt.Errorf("email sender: %w", err)
	}
	storage, err := newStorage(ctx, appCfg, s3Cfg)
	if err != nil {
		return fmt.Errorf("file storage: %w", err)
	}

	plans := billing.NewPlans(plansCfg, creditsCfg)
	provider, err := billing.NewPaddleProvider(paddleCfg, plans, log)
	if err != nil {
		return fmt.Errorf("paddle provider: %w", err)
	}
	reconciler := billing.NewReconciler(subStore, userStore, plans, log)
	billingSvc := billing.NewService(provider, reconciler, subStore, plans, log)
	sweeper := billing.NewSweeper(subStore, userStore, plans, log,
		billing.WithSweepInterval(appCfg.SweepInterval))

	userSvc := user.NewService(userStore, mailer, storage, creditsCfg, userCfg, log)

	generator, err := poem.NewOpenAIClient(openaiCfg)
	if err != nil {
		return fmt.Errorf("openai client: %w", err)
	}
	poemSvc := poem.NewService(poemStore, userStore, generator, log)

	jwtSvc, err := jwt.NewFromString(appCfg.JWTSigningKey)
	if err != nil {
		return fmt.Errorf("jwt service: %w", err)
	}
	guard := jwt.MiddlewareWithConfig(jwt.MiddlewareConfig{
		Service: jwtSvc,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			respond.Error(w, http.StatusUnauthorized, "unauthorized")
		},
	})

	freeLimiter, err := ratelimiter.NewBucket(limiterStore,
		ratelimiter.Config{
			Capacity:       appCfg.FreePoemLimit,
			RefillRate:     appCfg.FreePoemLimit,
			RefillInterval: appCfg.FreePoemWindow,
		})
	if err != nil {
		return fmt.Errorf("free poem limiter: %w", err)
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(requestid.Middleware)
	r.Use(clientip.Middleware)
	r.Get("/healthz", httpserver.HealthCheckHandler(ctx, log, mongo.Healthcheck(mongoClient)))
	r.Route("/api", func(r chi.Router) {
		r.Mount("/auth", authmodule.NewModule(userSvc, jwtSvc, log).Router())
		r.Mount("/profile", profilemodule.NewModule(userSvc, guard, log).Router())
		r.Mount("/poems", poemsmodule.NewModule(poemSvc, guard, freeLimiter, log).Router())
		r.Mount("/subscriptions", billingmodule.NewModule(billingSvc, userSvc, poemSvc, guard, log).Router())
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return monitor.Run(ctx) })
	g.Go(func() error {
		sweeper.Start(ctx)
		return nil
	})
	g.Go(func() error {
		return httpserver.NewFromConfig(serverCfg, httpserver.WithLogger(log)).Run(ctx, r)
	})

	log.InfoContext(ctx, "api started", "addr", serverCfg.Addr)
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func newMailer(appCfg appConfig, cfg email.Config) (email.EmailSender, error) {
	if cfg.PostmarkServerToken != "" {
		return email.NewPostmarkClient(cfg)
	}
	return email.NewDevSender(appCfg.EmailOutputDir), nil
}

func newStorage(ctx context.Context, appCfg appConfig, cfg file.S3Config) (file.Storage, error) {
	if cfg.Bucket != "" {
		s, err := file.NewS3Storage(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	s, err := file.NewLocalStorage(appCfg.UploadsDir, appCfg.UploadsBaseURL)
	if err != nil {
		return nil, err
	}
	return s, nil
}
