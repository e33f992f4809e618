package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"resourcehive/cmd"
	"resourcehive/internal/config"
	"resourcehive/internal/container"
	"resourcehive/internal/database"
	"resourcehive/internal/database/migration"
	"resourcehive/internal/logger"
	"resourcehive/internal/metrics"
	"resourcehive/pkg/roles"
	"resourcehive/pkg/security"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Load .env file, but don't overwrite system environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: No .env file found, falling back to system environment variables.")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Subcommands (migrate, check-overdue, ...) run and exit; no server.
	if len(os.Args) > 1 {
		cmd.Execute(ctx)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	zlog := logger.NewLogger()
	defer zlog.Sync()

	db, err := database.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		zlog.Fatal("database connection failed", zap.Error(err))
	}
	defer db.Close()

	if err := migration.Migrate(cfg.DatabaseURL, "file://migrations", zlog); err != nil {
		zlog.Fatal("migration failed", zap.Error(err))
	}

	app, err := container.NewAppContainer(db, cfg, zlog)
	if err != nil {
		zlog.Fatal("container bootstrap failed", zap.Error(err))
	}

	router := gin.Default()
	registerRoutes(router, app, cfg)

	server := &http.Server{
		Addr:    cfg.AppHost,
		Handler: router,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		zlog.Info("starting HTTP server", zap.String("addr", cfg.AppHost))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if cfg.SchedulerEnabled {
		group.Go(func() error {
			return app.Scheduler.Run(groupCtx)
		})
	}

	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		zlog.Fatal("server terminated", zap.Error(err))
	}
	zlog.Info("server stopped")
}

func registerRoutes(router *gin.Engine, app *container.Container, cfg *config.Config) {
	auth := app.Authenticator

	auth.RegisterRoutes(router)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if cfg.MetricsEnabled {
		router.GET("/metrics", metrics.Handler(app.Registry))
	}

	api := router.Group("/api", auth.JWTMiddleware())

	api.POST("/auth/logout", auth.LogoutEndpoint)

	app.InventoryHandler.RegisterRoutes(api)
	app.RequestHandler.RegisterRoutes(api)
	app.IncidentHandler.RegisterRoutes(api)
	app.NotificationHandler.RegisterRoutes(api)
	app.UserHandler.RegisterRoutes(api)

	admin := api.Group("", security.Authorize(roles.Admin))
	app.ReportHandler.RegisterRoutes(admin)
	app.ActivityHandler.RegisterRoutes(admin)
}
