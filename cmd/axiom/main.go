package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/glebarez/sqlite"
	"github.com/layer-3/axiom/adapters/events"
	"github.com/layer-3/axiom/adapters/records"
	"github.com/layer-3/axiom/adapters/store"
	"github.com/layer-3/axiom/adapters/tokenizer"
	"github.com/layer-3/axiom/adapters/verifier"
	"github.com/layer-3/axiom/internal/config"
	"github.com/layer-3/axiom/internal/logger"
	"github.com/layer-3/axiom/ports"
	"github.com/layer-3/axiom/service"
	transport "github.com/layer-3/axiom/transport/http"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func main() {
	configPath := flag.String("config", "", "path to a config file")
	flag.Parse()

	os.Exit(serve(*configPath))
}

// serve runs the server until SIGINT or SIGTERM and returns the process exit
// code. Deferred cleanup runs before main exits.
func serve(configPath string) int {
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		return 1
	}

	logr, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Printf("Failed to create logger: %v", err)
		return 1
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Error("server stopped", zap.Error(err))
		return 1
	}
	return 0
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	signKey, err := tokenizer.LoadSigningKey(cfg.ChallengeKey)
	if err != nil {
		return err
	}
	if cfg.ChallengeKey == "" {
		log.Warn("no challenge key configured, using an ephemeral one")
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	if err := records.AutoMigrate(db); err != nil {
		return fmt.Errorf("failed to migrate record tables: %w", err)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
	}

	sessions, purger, err := openStore(cfg, db, redisClient)
	if err != nil {
		return err
	}

	publisher, err := openPublisher(redisClient, log)
	if err != nil {
		return err
	}
	defer publisher.Close()

	authCfg := service.Config{
		ChallengeTTL:  cfg.ChallengeTTL,
		SessionTTL:    cfg.SessionTTL,
		MaxMessageAge: cfg.MaxMessageAge,
		ClockSkew:     cfg.ClockSkew,
		AllowedChains: cfg.AllowedChains,
	}
	authService := service.NewAuthService(
		tokenizer.NewJWTTokenizer(signKey),
		verifier.NewSIWEVerifier(),
		sessions,
		events.NewWatermillPublisher(publisher),
		log,
		authCfg,
	)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	router := transport.SetupRouter(transport.Services{
		Auth:        authService,
		Grants:      service.NewGrantService(records.NewGrantRepository(db), log),
		Enrollments: service.NewEnrollmentService(records.NewEnrollmentRepository(db), log),
	}, transport.Options{
		Logger:        log,
		SecureCookies: cfg.SecureCookies,
		RateLimit:     cfg.RateLimit,
		RateBurst:     cfg.RateBurst,
		Registry:      registry,
	})

	if purger != nil {
		go purgeLoop(ctx, purger, cfg.PurgeInterval, log)
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", cfg.HTTPAddr), zap.String("database", cfg.DatabaseDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

// openDatabase opens the relational database. The memory driver uses a
// private in-memory SQLite database so records still work in development.
func openDatabase(cfg *config.Config) (*gorm.DB, error) {
	gormCfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)}

	var dialector gorm.Dialector
	switch cfg.DatabaseDriver {
	case "postgres":
		dialector = postgres.Open(cfg.DatabaseDSN)
	case "sqlite":
		dialector = sqlite.Open(cfg.DatabaseDSN)
	default:
		dialector = sqlite.Open("file::memory:")
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", cfg.DatabaseDriver, err)
	}
	if cfg.DatabaseDriver != "postgres" {
		// SQLite in-memory databases are per connection
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

type purger interface {
	Purge(ctx context.Context, now time.Time) (int64, error)
}

// openStore picks the session store. Redis wins when configured since its
// keys expire on their own; the other stores come with a purger.
func openStore(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (ports.Store, purger, error) {
	if redisClient != nil {
		return store.NewRedisStore(redisClient), nil, nil
	}
	if cfg.DatabaseDriver == "memory" {
		s := store.NewMemoryStore().(*store.MemoryStore)
		return s, s, nil
	}

	if err := store.AutoMigrate(db); err != nil {
		return nil, nil, fmt.Errorf("failed to migrate session tables: %w", err)
	}
	s := store.NewGormStore(db)
	return s, s, nil
}

func openPublisher(redisClient *redis.Client, log *zap.Logger) (message.Publisher, error) {
	wlog := events.NewZapLogger(log)
	if redisClient == nil {
		return gochannel.NewGoChannel(gochannel.Config{}, wlog), nil
	}

	publisher, err := redisstream.NewPublisher(redisstream.PublisherConfig{Client: redisClient}, wlog)
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis publisher: %w", err)
	}
	return publisher, nil
}

func purgeLoop(ctx context.Context, p purger, every time.Duration, log *zap.Logger) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := p.Purge(ctx, now)
			if err != nil {
				log.Warn("failed to purge expired sessions", zap.Error(err))
				continue
			}
			if n > 0 {
				log.Debug("purged expired rows", zap.Int64("count", n))
			}
		}
	}
}
