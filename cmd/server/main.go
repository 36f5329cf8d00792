// Server runs the platform HTTP API: auth, organizations, invitations, and
// the plugin/pipeline proxy. See .env.example for configuration.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"tenant-platform/backend/internal/audit"
	auditrepo "tenant-platform/backend/internal/audit/repository"
	"tenant-platform/backend/internal/config"
	"tenant-platform/backend/internal/db"
	"tenant-platform/backend/internal/email"
	"tenant-platform/backend/internal/health"
	identityhandler "tenant-platform/backend/internal/identity/handler"
	"tenant-platform/backend/internal/identity/oauth"
	identityrepo "tenant-platform/backend/internal/identity/repository"
	identityservice "tenant-platform/backend/internal/identity/service"
	invitationhandler "tenant-platform/backend/internal/invitation/handler"
	invitationrepo "tenant-platform/backend/internal/invitation/repository"
	invitationservice "tenant-platform/backend/internal/invitation/service"
	membershiprepo "tenant-platform/backend/internal/membership/repository"
	organizationhandler "tenant-platform/backend/internal/organization/handler"
	organizationrepo "tenant-platform/backend/internal/organization/repository"
	organizationservice "tenant-platform/backend/internal/organization/service"
	principalrepo "tenant-platform/backend/internal/principal/repository"
	"tenant-platform/backend/internal/proxy"
	"tenant-platform/backend/internal/quota"
	"tenant-platform/backend/internal/security"
	"tenant-platform/backend/internal/server"
	"tenant-platform/backend/internal/server/middleware"
	"tenant-platform/backend/internal/session"
	sessionrepo "tenant-platform/backend/internal/session/repository"
	"tenant-platform/backend/internal/telemetry"
	"tenant-platform/backend/internal/telemetry/otel"
	"tenant-platform/backend/internal/telemetry/producer"
	"tenant-platform/backend/internal/validate"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()

	providers, err := otel.NewProviders(ctx, cfg.OTLPEndpoint, "platform-api", cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("otel: %v", err)
	}
	providers.SetGlobal()

	tokens, err := buildTokenProvider(cfg)
	if err != nil {
		log.Fatalf("jwt keys: %v", err)
	}

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}
	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer database.Close()

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
	}

	var store session.Store
	switch cfg.SessionStore {
	case "redis":
		store = sessionrepo.NewRedisStore(redisClient)
	default:
		store = sessionrepo.NewPostgresStore(database)
	}

	principals := principalrepo.NewPostgresRepository(database)
	identities := identityrepo.NewPostgresRepository(database)
	orgs := organizationrepo.NewPostgresRepository(database)
	memberships := membershiprepo.NewPostgresRepository(database)
	invitations := invitationrepo.NewPostgresRepository(database)
	audits := auditrepo.NewPostgresRepository(database)

	auditLogger := audit.NewLogger(audits, func(ctx context.Context) string {
		if ip := middleware.ClientIPFromContext(ctx); ip != "" {
			return ip
		}
		return "unknown"
	})

	var emitters telemetry.MultiEmitter
	var kafkaProducer *producer.KafkaProducer
	if brokers := cfg.SecurityKafkaBrokersList(); len(brokers) > 0 {
		kafkaProducer, err = producer.NewKafkaProducer(brokers, cfg.SecurityKafkaTopic)
		if err != nil {
			log.Fatalf("kafka: %v", err)
		}
		emitters = append(emitters, kafkaProducer)
	}
	emitters = append(emitters, otel.NewEventEmitter(providers.LoggerProvider))

	sink := telemetry.NewSecuritySink(emitters, auditLogger)
	resolver := identityservice.NewClaimsResolver(principals, orgs)
	sessions := session.NewManager(tokens, store, resolver, sink)

	var verifier identityservice.OAuthVerifier
	if cfg.GoogleOAuthClientID != "" {
		verifier = oauth.NewGoogleVerifier(cfg.GoogleOAuthClientID)
	}

	hasher := security.NewHasher(cfg.BcryptCost)
	authSvc := identityservice.NewAuthService(principals, identities, orgs, hasher, sessions, verifier)
	orgSvc := organizationservice.NewService(orgs, memberships, principals)

	var sender email.Sender
	if cfg.ResendAPIKey != "" {
		rs, err := email.NewResendSender(email.Config{
			APIKey:    cfg.ResendAPIKey,
			FromEmail: cfg.EmailFromAddress,
			FromName:  cfg.EmailFromName,
		})
		if err != nil {
			log.Fatalf("email: %v", err)
		}
		sender = rs
	} else {
		log.Println("RESEND_API_KEY not set; invitation email delivery disabled")
	}

	seats := quota.NewClient(cfg.QuotaServiceURL)
	inviteSvc := invitationservice.NewService(
		invitations, memberships, principals, orgs,
		sender, seats, cfg.InviteAcceptURL, cfg.InviteLifetime(),
	)

	validator := validate.New()

	app := server.New(server.Deps{
		Sessions:    sessions,
		Memberships: memberships,
		Auth:        identityhandler.NewAuthHandler(authSvc, sessions, validator, auditLogger, emitters),
		Orgs:        organizationhandler.NewOrgHandler(orgSvc, validator, auditLogger, audits),
		Invites:     invitationhandler.NewInviteHandler(inviteSvc, validator, auditLogger, emitters),
		Health:      health.NewHandler(database, redisClient),
		Proxy:       proxy.NewHandler(cfg.PluginServiceURL, cfg.PipelineServiceURL),
	})

	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := app.Listen(cfg.HTTPAddr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")
	if err := app.Shutdown(); err != nil {
		log.Printf("shutdown: %v", err)
	}

	// Let in-flight async event emits finish before tearing down exporters.
	time.Sleep(telemetry.ShutdownDrainDuration)

	if kafkaProducer != nil {
		if err := kafkaProducer.Close(); err != nil {
			log.Printf("kafka close: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Printf("otel shutdown: %v", err)
	}
	log.Println("server stopped")
}

func buildTokenProvider(cfg *config.Config) (*security.TokenProvider, error) {
	accessKey, err := security.ParsePrivateKey(cfg.JWTAccessPrivateKey)
	if err != nil {
		return nil, err
	}
	accessPub, err := security.ParsePublicKey(cfg.JWTAccessPublicKey)
	if err != nil {
		return nil, err
	}
	refreshKey, err := security.ParsePrivateKey(cfg.JWTRefreshPrivateKey)
	if err != nil {
		return nil, err
	}
	refreshPub, err := security.ParsePublicKey(cfg.JWTRefreshPublicKey)
	if err != nil {
		return nil, err
	}
	return security.NewTokenProvider(
		accessKey, accessPub, refreshKey, refreshPub,
		cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL(), cfg.RefreshTTL(),
	), nil
}
