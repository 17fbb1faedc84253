package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"marketplace-order-api/internal/apperr"
	"marketplace-order-api/internal/auth"
	"marketplace-order-api/internal/handler"
	appmw "marketplace-order-api/internal/middleware"
	"marketplace-order-api/internal/repository"
	"marketplace-order-api/internal/service"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

type Server struct {
	echo   *echo.Echo
	logger *zap.Logger

	userHandler    *handler.UserHandler
	productHandler *handler.ProductHandler
	orderHandler   *handler.OrderHandler
	paymentHandler *handler.PaymentHandler

	jwtService *auth.JWTService
}

func NewServer(
	logger *zap.Logger,
	jwtService *auth.JWTService,
	requestTimeout time.Duration,
	userService service.UserService,
	orderService service.OrderService,
	paymentService service.PaymentService,
	productRepo repository.ProductRepository,
) *Server {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Info("request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.Error(v.Error),
			)
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(requestTimeoutMiddleware(requestTimeout))

	s := &Server{
		echo:           e,
		logger:         logger,
		userHandler:    handler.NewUserHandler(userService),
		productHandler: handler.NewProductHandler(productRepo),
		orderHandler:   handler.NewOrderHandler(orderService),
		paymentHandler: handler.NewPaymentHandler(paymentService),
		jwtService:     jwtService,
	}

	e.HTTPErrorHandler = s.httpErrorHandler

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.echo.Group("/api")

	api.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})

	api.POST("/users", s.userHandler.Register)
	api.POST("/users/login", s.userHandler.Login)

	api.GET("/products", s.productHandler.List)
	api.GET("/products/:id", s.productHandler.Get)

	// -------- processor callbacks --------
	// Authenticated by the callback signature, not a bearer token.
	api.POST("/payments/callback", s.paymentHandler.Callback)

	authed := api.Group("", appmw.Authenticate(s.jwtService))

	orders := authed.Group("/orders")
	orders.POST("", s.orderHandler.Create, appmw.Require(auth.CapabilityPlaceOrder))
	orders.GET("", s.orderHandler.ListMine, appmw.Require(auth.CapabilityViewOrder))
	orders.GET("/:id", s.orderHandler.Get, appmw.Require(auth.CapabilityViewOrder))
	orders.POST("/:id/payments", s.paymentHandler.CreateIntent, appmw.Require(auth.CapabilityViewOrder))

	// -------- admin --------
	orders.POST("/:id/pay", s.orderHandler.ConfirmPayment, appmw.Require(auth.CapabilityConfirmPayment))
	orders.POST("/:id/deliver", s.orderHandler.MarkDelivered, appmw.Require(auth.CapabilityMarkDelivered))
	authed.PUT("/products/:id/stock", s.productHandler.UpdateStock, appmw.Require(auth.CapabilityManageCatalog))
}

func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		_ = c.JSON(httpErr.Code, map[string]string{"error": fmt.Sprintf("%v", httpErr.Message)})
		return
	}

	status := apperr.HTTPStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
		msg = "internal server error"
	}

	_ = c.JSON(status, map[string]string{"error": msg})
}

// requestTimeoutMiddleware bounds the work done on behalf of one request so a
// stuck database call surfaces as a retryable timeout instead of hanging.
func requestTimeoutMiddleware(d time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx, cancel := context.WithTimeout(c.Request().Context(), d)
			defer cancel()

			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
