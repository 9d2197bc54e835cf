package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"healthcert/internal/barcode"
	"healthcert/internal/certificate"
	"healthcert/internal/eligibility"
	eligibilitymetrics "healthcert/internal/eligibility/metrics"
	"healthcert/internal/platform/config"
	"healthcert/internal/platform/httpserver"
	"healthcert/internal/platform/logger"
	platformredis "healthcert/internal/platform/redis"
	"healthcert/internal/rules"
	"healthcert/internal/telemetry"
	httptransport "healthcert/internal/transport/http"
	"healthcert/internal/uvci"
	uvcistore "healthcert/internal/uvci/store"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	ctx := context.Background()

	// UVCI store: PostgreSQL when configured, in-memory otherwise.
	var store uvci.Store
	if cfg.Postgres.DSN != "" {
		db, err := sql.Open("pgx", cfg.Postgres.DSN)
		if err != nil {
			log.Error("open postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		pg := uvcistore.NewPostgresStore(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			log.Error("ensure uvci schema", "error", err)
			os.Exit(1)
		}
		store = pg
	} else {
		log.Warn("POSTGRES_DSN unset, using in-memory uvci store")
		store = uvcistore.NewInMemoryStore()
	}

	// Rule configuration: in-memory blob store seeded from disk, fronted by a
	// Redis TTL cache when configured.
	blobs := rules.NewInMemoryBlobStore()
	if path := os.Getenv("RULES_FILE"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			log.Error("read rules file", "path", path, "error", err)
			os.Exit(1)
		}
		blobs.Put(cfg.RuleFlags.Container, rules.FilenameForFlags(cfg.RuleFlags), raw)
	}
	var loader rules.Loader = rules.NewBlobLoader(blobs)
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("connect redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		loader = rules.NewCachedLoader(loader, redisClient.Client, config.RuleCacheTTL, log)
	}

	// Signing: key material from env, single-key ring.
	keyID := envOr("SIGNING_KEY_ID", "key-1")
	keyring := barcode.NewMemoryKeyring(map[string]string{cfg.Issuer.Country: keyID})
	signer := barcode.NewLocalSigner(map[string][]byte{
		keyID: []byte(envOr("SIGNING_SECRET", "dev-signing-secret")),
	})
	encoder := barcode.NewEncoder(keyring, signer, barcode.WithPKICountryTag(cfg.Issuer.Country))

	var publisher *telemetry.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		publisher, err = telemetry.NewPublisher(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		if err != nil {
			log.Error("connect telemetry brokers", "error", err)
			os.Exit(1)
		}
		defer publisher.Close()
	}

	metrics := eligibilitymetrics.New()
	evaluator := eligibility.NewEvaluator(eligibility.BoosterPolicy{
		MinimumPeriod: cfg.Booster.MinimumPeriodBetweenPrimaryCourseAndBooster,
		GracePeriod:   cfg.Booster.GracePeriodBetweenPrimaryCourseAndBooster,
	}, eligibility.WithMetrics(metrics), eligibility.WithLogger(log))

	service := certificate.NewService(
		loader,
		cfg.RuleFlags,
		evaluator,
		eligibility.LockoutPolicy{
			LockoutPeriodDays:      cfg.Lockout.LockoutPeriodDays,
			StackingPeriodDays:     cfg.Lockout.StackingPeriodDays,
			NegationTestPeriodDays: cfg.Lockout.NegationTestPeriodDays,
		},
		uvci.NewGenerator(store, cfg.Issuer.UvciInsertAttempts),
		encoder,
		cfg.Issuer,
		certificate.WithTelemetry(publisher),
		certificate.WithMetrics(metrics),
		certificate.WithLogger(log),
	)

	handler := httptransport.NewHandler(service, log)
	router := httptransport.NewRouter(handler, cfg.Server.JWTSigningKey)
	srv := httpserver.New(cfg.Server.Addr, router)

	log.Info("starting healthcert", "addr", cfg.Server.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
