package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/apikey"
	apikeydomain "github.com/derrickmugabwa/kenya-food-database-api/internal/apikey/domain"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/audit"
	auditdomain "github.com/derrickmugabwa/kenya-food-database-api/internal/audit/domain"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/auth"
	authdomain "github.com/derrickmugabwa/kenya-food-database-api/internal/auth/domain"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/auth/oauth2provider"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/auth/principal"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/auth/scope"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/auth/session"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/authorization"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/catalog"
	catalogdomain "github.com/derrickmugabwa/kenya-food-database-api/internal/catalog/domain"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/clock"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/config"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/observability"
	obslogger "github.com/derrickmugabwa/kenya-food-database-api/internal/observability/logger"
	obsmetrics "github.com/derrickmugabwa/kenya-food-database-api/internal/observability/metrics"
	obstracing "github.com/derrickmugabwa/kenya-food-database-api/internal/observability/tracing"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/ratelimit"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/usage"
	usagedomain "github.com/derrickmugabwa/kenya-food-database-api/internal/usage/domain"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/usage/tracker"
	"github.com/derrickmugabwa/kenya-food-database-api/pkg/db/pagination"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	authorization.Module,
	auth.Module,
	oauth2provider.Module,
	apikey.Module,
	audit.Module,
	ratelimit.Module,
	usage.Module,
	catalog.Module,
	fx.Provide(NewServer),
	fx.Invoke(func(*Server) {}),
	fx.Invoke(run),
)

// SessionVerifier checks session bearer tokens.
type SessionVerifier interface {
	Verify(raw string) (principal.Session, error)
}

// OAuthService is the slice of the OAuth provider the HTTP layer calls.
type OAuthService interface {
	Validate(ctx context.Context, raw string, required []scope.Scope) (*principal.OAuthClient, error)
	RevokeToken(ctx context.Context, caller principal.Session, raw string) error
	CreateClient(ctx context.Context, userID snowflake.ID, req oauth2provider.CreateClientRequest) (*oauth2provider.CreateClientResult, error)
	ListClients(ctx context.Context, userID *snowflake.ID, page pagination.Pagination) (pagination.Page[oauth2provider.Client], error)
	GetClient(ctx context.Context, caller principal.Session, id snowflake.ID) (*oauth2provider.Client, error)
	UpdateClient(ctx context.Context, caller principal.Session, id snowflake.ID, req oauth2provider.UpdateClientRequest) (*oauth2provider.Client, error)
	DeleteClient(ctx context.Context, caller principal.Session, id snowflake.ID) error
}

// UsageTracker records a finished request without blocking it.
type UsageTracker interface {
	Track(ctx context.Context, evt usagedomain.Event)
}

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})

	return r
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine     *gin.Engine
	cfg        config.Config
	log        *zap.Logger
	clock      clock.Clock
	sessions   SessionVerifier
	authsvc    authdomain.Service
	oauthsvc   OAuthService
	apiKeySvc  apikeydomain.Service
	apiKeys    apikeydomain.Verifier
	authzSvc   authorization.Service
	usagesvc   usagedomain.Service
	tracker    UsageTracker
	catalogSvc catalogdomain.Service
	auditSvc   auditdomain.Service
	limiter    *ratelimit.PrincipalLimiter
	obsMetrics *obsmetrics.Metrics

	// oauth is the validator used by FlexibleAuth; it is oauthsvc in production.
	oauth OAuthService
}

type ServerParams struct {
	fx.In

	Gin            *gin.Engine
	Cfg            config.Config
	Log            *zap.Logger
	Clock          clock.Clock
	Sessions       *session.Manager
	Authsvc        authdomain.Service
	OAuthsvc       *oauth2provider.Service
	APIKeySvc      apikeydomain.Service
	APIKeyVerifier apikeydomain.Verifier
	AuthzSvc       authorization.Service
	Usagesvc       usagedomain.Service
	Tracker        *tracker.Tracker
	CatalogSvc     catalogdomain.Service
	AuditSvc       auditdomain.Service
	Limiter        *ratelimit.PrincipalLimiter `optional:"true"`
	ObsMetrics     *obsmetrics.Metrics         `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		log:        p.Log.Named("http.server"),
		clock:      p.Clock,
		sessions:   p.Sessions,
		authsvc:    p.Authsvc,
		oauthsvc:   p.OAuthsvc,
		oauth:      p.OAuthsvc,
		apiKeySvc:  p.APIKeySvc,
		apiKeys:    p.APIKeyVerifier,
		authzSvc:   p.AuthzSvc,
		usagesvc:   p.Usagesvc,
		tracker:    p.Tracker,
		catalogSvc: p.CatalogSvc,
		auditSvc:   p.AuditSvc,
		limiter:    p.Limiter,
		obsMetrics: p.ObsMetrics,
	}

	svc.registerAuthRoutes()
	svc.registerCredentialRoutes()
	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAuthRoutes() {
	v1 := s.engine.Group("/v1")

	authGroup := v1.Group("/auth")
	authGroup.POST("/email/register", s.Register)
	authGroup.POST("/email/login", s.Login)
	authGroup.GET("/me", s.SessionRequired(), s.Me)

	v1.PATCH("/users/:id/api-access",
		s.SessionRequired(),
		s.RequireRole(authorization.ObjectUser, authorization.ActionManage),
		s.UpdateAPIAccess,
	)

	v1.GET("/audit-logs",
		s.SessionRequired(),
		s.RequireRole(authorization.ObjectAuditLog, authorization.ActionRead),
		s.ListAuditLogs,
	)
}

func (s *Server) registerCredentialRoutes() {
	v1 := s.engine.Group("/v1")

	// -------- API Keys --------
	keys := v1.Group("/api-keys", s.SessionRequired())
	{
		keys.GET("", s.ListAPIKeys)
		keys.POST("", s.CreateAPIKey)
		keys.GET("/:id", s.GetAPIKey)
		keys.PATCH("/:id", s.UpdateAPIKey)
		keys.DELETE("/:id", s.RevokeAPIKey)
		keys.POST("/:id/rotate", s.RotateAPIKey)
	}

	// -------- OAuth Clients --------
	// POST /v1/oauth/token is registered by the oauth2provider handler.
	oauth := v1.Group("/oauth")
	oauth.POST("/revoke", s.SessionRequired(), s.RevokeOAuthToken)

	clients := oauth.Group("/clients", s.SessionRequired())
	{
		clients.POST("", s.CreateOAuthClient)
		clients.GET("", s.ListOAuthClients)
		clients.GET("/all", s.RequireRole(authorization.ObjectOAuthClient, authorization.ActionManage), s.ListAllOAuthClients)
		clients.GET("/:id", s.GetOAuthClient)
		clients.PATCH("/:id", s.UpdateOAuthClient)
		clients.DELETE("/:id", s.DeleteOAuthClient)
	}
}

func (s *Server) registerAPIRoutes() {
	v1 := s.engine.Group("/v1")

	// -------- Usage Logs --------
	usageLogs := v1.Group("/usage-logs",
		s.FlexibleAuth(scope.ReadUsage),
		s.RateLimitByPrincipal(),
		s.RequireRole(authorization.ObjectUsageLog, authorization.ActionRead),
	)
	{
		usageLogs.GET("", s.ListUsageLogs)
		usageLogs.GET("/:id", s.GetUsageLog)
	}

	// -------- Catalog --------
	v1.GET("/foods", s.FlexibleAuth(scope.ReadFoods), s.RateLimitByPrincipal(), s.ListFoods)
	v1.GET("/foods/:id", s.FlexibleAuth(scope.ReadFoods), s.RateLimitByPrincipal(), s.GetFood)

	v1.GET("/categories", s.FlexibleAuth(scope.ReadCategories), s.RateLimitByPrincipal(), s.ListCategories)
	v1.GET("/categories/:id", s.FlexibleAuth(scope.ReadCategories), s.RateLimitByPrincipal(), s.GetCategory)

	v1.GET("/nutrients", s.FlexibleAuth(scope.ReadNutrients), s.RateLimitByPrincipal(), s.ListNutrients)
	v1.GET("/nutrients/:id", s.FlexibleAuth(scope.ReadNutrients), s.RateLimitByPrincipal(), s.GetNutrient)
}
