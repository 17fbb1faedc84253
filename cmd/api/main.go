package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"marketplace-order-api/internal/auth"
	"marketplace-order-api/internal/client"
	"marketplace-order-api/internal/config"
	"marketplace-order-api/internal/logging"
	"marketplace-order-api/internal/repository"
	"marketplace-order-api/internal/server"
	"marketplace-order-api/internal/service"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// load .env into os.Environ
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found (ok in prod)")
	}

	cfg := &config.Config{}
	if err := env.Parse(cfg); err != nil {
		fmt.Printf("Failed to parse config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Printf("Failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	db := client.InitMysqlClient(cfg.DatabaseURL)
	paymentClient := client.NewPaymentClient(&cfg.Payment)

	userRepo := repository.NewUserRepository(db)
	productRepo := repository.NewProductRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	paymentEventRepo := repository.NewPaymentEventRepository(db)

	if cfg.Environment.Name == "development" {
		if err := productRepo.Seed(context.Background()); err != nil {
			logger.Warn("seed products", zap.Error(err))
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpiry)

	userService := service.NewUserService(userRepo, jwtService)
	orderService := service.NewOrderService(db, orderRepo, productRepo)
	paymentService := service.NewPaymentService(db, paymentClient, orderService, paymentEventRepo)

	serverAddr := cfg.HTTP.Host + ":" + cfg.HTTP.Port

	srv := server.NewServer(
		logger,
		jwtService,
		cfg.RequestTimeout,
		userService,
		orderService,
		paymentService,
		productRepo,
	)

	logger.Info("starting HTTP server", zap.String("addr", serverAddr))
	go func() {
		if err := srv.Start(serverAddr); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	<-sigChan
	logger.Info("signal received, starting graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("HTTP server shutdown error", zap.Error(err))
	}
}
