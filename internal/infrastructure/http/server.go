package http

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	handlers "github.com/irevahq/payments/internal/adapter/handler/http"
	"github.com/irevahq/payments/internal/config"
	"github.com/irevahq/payments/internal/infrastructure/database"
	"github.com/irevahq/payments/internal/middleware/auth"
	"github.com/irevahq/payments/internal/usecase"
)

// webhookBodyLimit caps the buffered webhook body (provider payloads are small)
const webhookBodyLimit = 1 << 20

// Services are the usecases the HTTP surface is wired to
type Services struct {
	Payments    *usecase.PaymentService
	Investments *usecase.InvestmentService
}

type Server struct {
	config   *config.Config
	logger   *zap.Logger
	echo     *echo.Echo
	repos    *database.Repositories
	services *Services
}

// requestValidator adapts validator/v10 to echo's Validator interface
type requestValidator struct {
	validate *validator.Validate
}

func (v *requestValidator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}

func NewServer(cfg *config.Config, logger *zap.Logger, repos *database.Repositories, services *Services) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Validator = &requestValidator{validate: validator.New()}

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{cfg.Service.ClientURL},
		AllowMethods: []string{echo.GET, echo.POST, echo.PUT, echo.DELETE},
	}))

	return &Server{
		config:   cfg,
		logger:   logger,
		echo:     e,
		repos:    repos,
		services: services,
	}
}

func (s *Server) Start() error {
	// Setup routes
	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", s.config.Server.HTTP.Host, s.config.Server.HTTP.Port)
	s.logger.Info("Starting HTTP server", zap.String("address", addr))

	return s.echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	// Health check
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "healthy",
			"service": "payments",
		})
	})

	// Initialize handlers
	webhookHandler := handlers.NewCryptoWebhookHandler(s.logger, s.services.Payments, s.config.Crypto.SignatureHeader)
	investmentHandler := handlers.NewInvestmentHandler(s.logger, s.services.Investments)
	distributionHandler := handlers.NewDistributionHandler(s.logger, s.services.Investments, s.repos.Distribution)
	walletHandler := handlers.NewWalletHandler(s.logger, s.repos.Wallet)
	notificationHandler := handlers.NewNotificationHandler(s.logger, s.repos.Notification)

	// JWT middleware configuration
	jwtConfig := auth.JWTConfig{
		Secret: s.config.JWT.Secret,
		Logger: s.logger,
	}

	// API v1 routes (all require JWT authentication)
	v1 := s.echo.Group("/api/v1", auth.JWTMiddleware(jwtConfig))

	v1.POST("/investments", investmentHandler.CreateInvestment)
	v1.GET("/workflows/:id", investmentHandler.GetWorkflow)

	v1.GET("/wallet", walletHandler.GetBalance)
	v1.GET("/wallet/entries", walletHandler.ListEntries)
	v1.GET("/wallet/entries/:reference", walletHandler.GetEntry)
	v1.GET("/notifications", notificationHandler.List)

	// Admin routes (require admin role)
	admin := v1.Group("/admin", auth.RequireRole(auth.RoleAdmin, s.logger))
	admin.POST("/distributions", distributionHandler.CreateDistribution)
	admin.GET("/distributions/:id", distributionHandler.GetDistribution)
	admin.DELETE("/workflows/:id", investmentHandler.CancelWorkflow)

	// Webhook route (outside API versioning; authenticated by signature, not JWT)
	if s.config.Crypto.Enabled {
		s.echo.POST("/webhooks/coingate", webhookHandler.Handle,
			handlers.CaptureRawBody(webhookBodyLimit, s.logger))
	}
}
