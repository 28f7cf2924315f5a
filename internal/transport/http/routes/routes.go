package routes

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sitebeam/construction-platform-iam/internal/authz"
	"github.com/sitebeam/construction-platform-iam/internal/core/port"
	"github.com/sitebeam/construction-platform-iam/internal/infra/config"
	"github.com/sitebeam/construction-platform-iam/internal/infra/security"
	"github.com/sitebeam/construction-platform-iam/internal/transport/http/handlers"
	"github.com/sitebeam/construction-platform-iam/internal/transport/http/middleware"
	"github.com/sitebeam/construction-platform-iam/internal/usecase"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Auth          *usecase.AuthService
	Resolver      *usecase.ProfileResolver
	ProfileAdmin  *usecase.ProfileAdminService
	Impersonation *usecase.ImpersonationService
	Authorization *usecase.AuthorizationService
	Sessions      port.SessionRepository
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	RateLimiter *middleware.RateLimiter
	Services    ServiceSet
	JWTManager  *security.JWTManager
	Database    DatabaseChecker
	Cache       CacheChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	if deps.Config != nil && len(deps.Config.App.AllowedOrigins) > 0 {
		r.Use(middleware.CORS(deps.Config.App.AllowedOrigins))
	}
	if metrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{}); err == nil {
		r.Use(metrics.Handler())
	} else if deps.Logger != nil {
		deps.Logger.Warn("http metrics disabled", zap.Error(err))
	}

	healthOptions := make([]handlers.HealthOption, 0, 2)
	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("database", deps.Database.Ping))
	}
	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.HealthCheck))
	}
	healthHandler := handlers.NewHealthHandler(healthOptions...)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if deps.JWTManager != nil {
		jwksHandler := handlers.NewJWKSHandler(deps.JWTManager)
		r.GET("/.well-known/jwks.json", jwksHandler.Keys)
	}

	issuer := ""
	if deps.Config != nil {
		issuer = deps.Config.JWT.Issuer
	}
	authMiddleware := middleware.RequireAuth(deps.JWTManager, issuer)

	api := r.Group("/api/v1")
	{
		authGroup := api.Group("/auth")
		authHandler := handlers.NewAuthHandler(deps.Services.Auth, deps.Services.Resolver)
		authHandler.RegisterRoutes(authGroup, buildLoginMiddlewares(deps)...)

		profileHandler := handlers.NewProfileHandler(deps.Services.Resolver, deps.Services.ProfileAdmin, deps.Services.Impersonation)

		profileGroup := api.Group("/profiles")
		profileGroup.Use(authMiddleware)
		profileHandler.RegisterSelfRoutes(profileGroup)

		adminGroup := api.Group("/admin/profiles")
		adminGroup.Use(authMiddleware)
		adminGroup.Use(middleware.RequirePermission(deps.Services.Authorization, authz.ActionUsersManage))
		profileHandler.RegisterAdminRoutes(adminGroup)

		if deps.Services.Sessions != nil {
			sessionGroup := api.Group("/sessions")
			sessionGroup.Use(authMiddleware)
			sessionHandler := handlers.NewSessionHandler(deps.Services.Sessions)
			sessionHandler.RegisterRoutes(sessionGroup)
		}

		impersonationGroup := api.Group("/impersonation")
		impersonationGroup.Use(authMiddleware)
		impersonationHandler := handlers.NewImpersonationHandler(deps.Services.Impersonation)
		impersonationHandler.RegisterRoutes(impersonationGroup)

		authzGroup := api.Group("/authz")
		authzGroup.Use(authMiddleware)
		authzHandler := handlers.NewAuthzHandler(deps.Services.Authorization)
		authzHandler.RegisterRoutes(authzGroup)
	}

	return r
}

func buildLoginMiddlewares(deps Dependencies) []gin.HandlerFunc {
	if deps.RateLimiter == nil || deps.Config == nil {
		return nil
	}

	limit := deps.Config.RateLimit.LoginMaxAttempts
	if limit <= 0 {
		return nil
	}

	window := deps.Config.RateLimit.WindowDuration
	if window <= 0 {
		window = time.Minute
	}

	rule := middleware.RateLimitRule{
		Name:       "auth_login_ip",
		Limit:      limit,
		Window:     window,
		Identifier: middleware.ClientIPIdentifier(),
	}

	return []gin.HandlerFunc{deps.RateLimiter.RateLimit(rule)}
}
