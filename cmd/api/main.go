package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/PR-ODINSON/HydroLink-sub000/internal/certificates"
	"github.com/PR-ODINSON/HydroLink-sub000/internal/certification"
	"github.com/PR-ODINSON/HydroLink-sub000/internal/config"
	"github.com/PR-ODINSON/HydroLink-sub000/internal/credits"
	"github.com/PR-ODINSON/HydroLink-sub000/internal/docstore"
	"github.com/PR-ODINSON/HydroLink-sub000/internal/engine"
	"github.com/PR-ODINSON/HydroLink-sub000/internal/fraud"
	"github.com/PR-ODINSON/HydroLink-sub000/internal/identity"
	"github.com/PR-ODINSON/HydroLink-sub000/internal/marketplace"
	"github.com/PR-ODINSON/HydroLink-sub000/internal/notifications"
	ws "github.com/PR-ODINSON/HydroLink-sub000/internal/notifications/websocket"
	"github.com/PR-ODINSON/HydroLink-sub000/internal/tokens"
	"github.com/PR-ODINSON/HydroLink-sub000/internal/transactions"
	"github.com/PR-ODINSON/HydroLink-sub000/pkg/pdf"
)

func main() {
	cfg, err := config.LoadConfig("config.json")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	var logger *zap.Logger
	if cfg.Logging.Level == "production" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx := context.Background()

	// Database connections. sqlx drives the credit, transaction and fraud
	// stores; gorm drives the notification store.
	dbURL := cfg.Database.GetDatabaseURL()
	db, err := sqlx.Connect("postgres", dbURL)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxConnections)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)

	gormDB, err := gorm.Open(gormpostgres.Open(dbURL), &gorm.Config{})
	if err != nil {
		logger.Fatal("failed to open gorm connection", zap.Error(err))
	}

	// Notification fan-out.
	wsManager := ws.NewManager(logger)
	defer wsManager.Close()

	transports := []notifications.Transport{
		notifications.NewWebSocketChannel(wsManager),
	}
	if cfg.Notifications.EmailEnabled {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Documents.AWSRegion))
		if err != nil {
			logger.Fatal("failed to load AWS configuration", zap.Error(err))
		}
		directory, err := notifications.LoadDirectory(cfg.Notifications.DirectoryPath)
		if err != nil {
			logger.Fatal("failed to load email directory", zap.Error(err))
		}
		transports = append(transports, notifications.NewEmailChannel(
			sesv2.NewFromConfig(awsCfg), cfg.Notifications.EmailSender, directory))
	}

	notifRepo, err := notifications.NewGormRepository(gormDB)
	if err != nil {
		logger.Fatal("failed to initialize notification store", zap.Error(err))
	}
	notifier := notifications.NewDispatcher(notifRepo, transports, logger)

	// Core services.
	registry := credits.NewRegistry(credits.NewPostgresRepository(db), logger)

	fraudThresholds := fraud.Thresholds{
		High:      cfg.Fraud.HighThreshold,
		Medium:    cfg.Fraud.MediumThreshold,
		LowMedium: cfg.Fraud.LowMediumThreshold,
	}
	var weightPolicy *fraud.WeightPolicy
	if w := cfg.Fraud.Weights; w != nil {
		weightPolicy = &fraud.WeightPolicy{
			DataInconsistency:    w.DataInconsistency,
			PatternMatching:      w.PatternMatching,
			DocumentAuthenticity: w.DocumentAuthenticity,
		}
	}
	fraudSvc := fraud.NewService(fraud.NewPostgresRepository(db), fraudThresholds, weightPolicy, logger)

	store, err := docstore.NewS3Store(ctx, cfg.Documents.S3Bucket, cfg.Documents.AWSRegion)
	if err != nil {
		logger.Fatal("failed to initialize document store", zap.Error(err))
	}
	certIssuer := certificates.NewIssuer(pdf.NewGenerator(), store, logger)

	coordinator := transactions.NewCoordinator(
		transactions.NewPostgresRepository(db), registry, notifier, certIssuer,
		cfg.Marketplace.PurchaseTTL, logger)

	tokenIssuer := tokens.NewIssuer(registry, cfg.Tokens.IssuerURL,
		cfg.Tokens.MaxRetries, cfg.Tokens.RetryInterval, logger)

	certificationSvc := certification.NewService(registry, fraudSvc, notifier, tokenIssuer, logger)
	marketplaceSvc := marketplace.NewService(registry, coordinator, logger)

	eng := engine.New(certificationSvc, marketplaceSvc, coordinator, notifier, fraudSvc, registry)

	// Background expiry sweep.
	sweeper := transactions.NewSweeper(coordinator, cfg.Marketplace.SweepInterval, logger)
	if err := sweeper.Start(); err != nil {
		logger.Fatal("failed to start expiry sweeper", zap.Error(err))
	}
	defer sweeper.Stop()

	// HTTP surface.
	parser := identity.NewParser(cfg.Security.JWTSecret)
	handler := engine.NewHandler(eng, parser, logger)

	if cfg.Logging.Level == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	api := router.Group("/api/v1")
	{
		handler.RegisterRoutes(api)
	}

	router.GET("/ws", func(c *gin.Context) {
		actor, err := parser.FromBearer(c.GetHeader("Authorization"))
		if err != nil {
			if actor, err = parser.Parse(c.Query("token")); err != nil {
				c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
				return
			}
		}
		if _, err := wsManager.HandleConnection(c.Writer, c.Request, actor.UserID.String()); err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
		}
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
	})

	srv := &http.Server{
		Addr:         cfg.Server.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced shutdown", zap.Error(err))
	}
	tokenIssuer.Wait()
}
