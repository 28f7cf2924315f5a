package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/IBM/sarama"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/sitebeam/construction-platform-iam/internal/authz"
	"github.com/sitebeam/construction-platform-iam/internal/core/port"
	"github.com/sitebeam/construction-platform-iam/internal/infra/config"
	"github.com/sitebeam/construction-platform-iam/internal/infra/database"
	kafkainfra "github.com/sitebeam/construction-platform-iam/internal/infra/kafka"
	"github.com/sitebeam/construction-platform-iam/internal/infra/logger"
	redisinfra "github.com/sitebeam/construction-platform-iam/internal/infra/redis"
	"github.com/sitebeam/construction-platform-iam/internal/infra/security"
	"github.com/sitebeam/construction-platform-iam/internal/infra/telemetry"
	postgresrepo "github.com/sitebeam/construction-platform-iam/internal/repository/postgres"
	redisrepo "github.com/sitebeam/construction-platform-iam/internal/repository/redis"
	"github.com/sitebeam/construction-platform-iam/internal/transport/http/middleware"
	"github.com/sitebeam/construction-platform-iam/internal/transport/http/routes"
	"github.com/sitebeam/construction-platform-iam/internal/usecase"
)

type Application struct {
	cfg            *config.AppConfig
	engine         *gin.Engine
	logger         *zap.Logger
	pool           *pgxpool.Pool
	redis          *redisinfra.Client
	telemetry      *telemetry.Provider
	producer       *kafkainfra.Producer
	consumerGroup  sarama.ConsumerGroup
	consumerTopics []string
	invalidation   *kafkainfra.ProfileInvalidationConsumer
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	telemetryProvider, err := telemetry.Attach(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	keyProvider, err := security.NewKeyProvider(cfg.App.Env, cfg.JWT.KeyDirectory)
	if err != nil {
		return nil, fmt.Errorf("init key provider: %w", err)
	}
	jwtManager := security.NewJWTManager(keyProvider)

	var signingKID string
	if active, ok := keyProvider.(interface{ ActiveKID() string }); ok {
		signingKID = active.ActiveKID()
	}
	if signingKID == "" {
		log.Warn("no active signing key id, token issuance will be rejected")
	}

	argonCfg := security.Argon2Config{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	}
	if err := security.ConfigureArgon2(argonCfg); err != nil {
		return nil, fmt.Errorf("configure argon2: %w", err)
	}

	redisClient, err := redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		return nil, fmt.Errorf("init redis: %w", err)
	}

	repos := postgresrepo.NewRepositories(pool)

	var eventPublisher port.EventPublisher
	var producer *kafkainfra.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err = kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			producer = nil
			eventPublisher = kafkainfra.NewStubPublisher(log)
		} else {
			eventPublisher = kafkainfra.NewEventPublisher(producer, cfg.App, log)
			log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		eventPublisher = kafkainfra.NewStubPublisher(log)
	}

	profileCache := redisrepo.NewProfileCache(redisClient.Client(), cfg.Redis.ProfilePrefix)
	impersonationStore := redisrepo.NewImpersonationStore(redisClient.Client(), cfg.Redis.ImpersonatePrefix)

	rateLimitWindow := cfg.RateLimit.WindowDuration
	if rateLimitWindow <= 0 {
		rateLimitWindow = time.Minute
	}
	rateLimitPrefix := cfg.Redis.RateLimitPrefix
	if rateLimitPrefix == "" {
		rateLimitPrefix = "cpiam:rate-limit"
	}
	rateLimitStore := redisrepo.NewRateLimitRepository(redisClient.Client(), redisrepo.SlidingWindowConfig{
		KeyPrefix: rateLimitPrefix,
		TTL:       rateLimitWindow * 2,
	})
	rateLimiter := middleware.NewRateLimiter(rateLimitStore, log)

	rules := authz.DefaultRuleSet()
	if err := rules.Validate(); err != nil {
		_ = redisClient.Close()
		return nil, fmt.Errorf("validate authorization rules: %w", err)
	}
	evaluator := authz.NewEvaluator(rules)

	authService := usecase.NewAuthService(repos.Profiles, repos.Sessions, repos.Tokens, eventPublisher, jwtManager, usecase.AuthConfig{
		KID:             signingKID,
		Issuer:          cfg.JWT.Issuer,
		AccessTokenTTL:  cfg.JWT.AccessTokenTTL,
		RefreshTokenTTL: cfg.JWT.RefreshTokenTTL,
		SessionLifetime: cfg.Session.Lifetime,
	}, log)

	resolver := usecase.NewProfileResolver(repos.Profiles, profileCache, cfg.ProfileCache.TTL, log)
	adminService := usecase.NewProfileAdminService(repos.Profiles, repos.Sessions, resolver, evaluator, eventPublisher, log).
		WithPasswordValidator(security.DefaultPasswordValidator())
	impersonationService := usecase.NewImpersonationService(impersonationStore, resolver, evaluator, eventPublisher, cfg.Impersonation.MaxDuration, log)
	authorizationService := usecase.NewAuthorizationService(impersonationService, evaluator, log)

	engine := routes.Register(routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		RateLimiter: rateLimiter,
		JWTManager:  jwtManager,
		Database:    pool,
		Cache:       redisClient,
		Services: routes.ServiceSet{
			Auth:          authService,
			Resolver:      resolver,
			ProfileAdmin:  adminService,
			Impersonation: impersonationService,
			Authorization: authorizationService,
			Sessions:      repos.Sessions,
		},
	})

	application := &Application{
		cfg:       cfg,
		engine:    engine,
		logger:    log,
		pool:      pool,
		redis:     redisClient,
		telemetry: telemetryProvider,
		producer:  producer,
	}

	// Other instances invalidate their profile caches when this instance
	// publishes a role change or deactivation, so we consume the same topics.
	if len(cfg.Kafka.Brokers) > 0 && cfg.Kafka.ConsumerGroup != "" {
		group, err := newConsumerGroup(cfg.Kafka)
		if err != nil {
			log.Warn("failed to init kafka consumer group, cache invalidation is TTL-only", zap.Error(err))
		} else {
			application.consumerGroup = group
			application.invalidation = kafkainfra.NewProfileInvalidationConsumer(profileCache, log)
			application.consumerTopics = []string{
				prefixedTopic(cfg.Kafka.TopicPrefix, kafkainfra.TopicProfileRoleChanged),
				prefixedTopic(cfg.Kafka.TopicPrefix, kafkainfra.TopicProfileDeactivated),
			}
		}
	}

	return application, nil
}

func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer func() {
		if a.pool != nil {
			a.pool.Close()
		}
	}()
	defer func() {
		if a.redis != nil {
			_ = a.redis.Close()
		}
	}()
	defer func() {
		if a.producer != nil {
			_ = a.producer.Close()
		}
	}()
	defer func() {
		if a.consumerGroup != nil {
			_ = a.consumerGroup.Close()
		}
	}()
	defer func() {
		if a.telemetry != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = a.telemetry.Shutdown(shutdownCtx)
		}
	}()

	if a.consumerGroup != nil && a.invalidation != nil {
		go func() {
			for {
				if err := a.consumerGroup.Consume(ctx, a.consumerTopics, a.invalidation); err != nil {
					a.logger.Warn("profile invalidation consumer error", zap.Error(err))
				}
				if ctx.Err() != nil {
					return
				}
			}
		}()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting IAM API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	}
}

func newConsumerGroup(cfg config.KafkaSettings) (sarama.ConsumerGroup, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_5_0_0
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	saramaConfig.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.ConsumerGroup, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("init kafka consumer group: %w", err)
	}
	return group, nil
}

func prefixedTopic(prefix, eventType string) string {
	if prefix == "" {
		return eventType
	}
	return fmt.Sprintf("%s.%s", prefix, eventType)
}
