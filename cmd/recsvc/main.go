package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/aemorabr/ecommerce-recommendation-system/internal/cache"
	"github.com/aemorabr/ecommerce-recommendation-system/internal/config"
	"github.com/aemorabr/ecommerce-recommendation-system/internal/db"
	"github.com/aemorabr/ecommerce-recommendation-system/internal/filestore"
	"github.com/aemorabr/ecommerce-recommendation-system/internal/handler"
	"github.com/aemorabr/ecommerce-recommendation-system/internal/job"
	"github.com/aemorabr/ecommerce-recommendation-system/internal/middleware"
	"github.com/aemorabr/ecommerce-recommendation-system/internal/pkg/password"
	"github.com/aemorabr/ecommerce-recommendation-system/internal/recommend"
	"github.com/aemorabr/ecommerce-recommendation-system/internal/repo"
	"github.com/aemorabr/ecommerce-recommendation-system/internal/schedule"
	"github.com/aemorabr/ecommerce-recommendation-system/internal/service"
	"github.com/aemorabr/ecommerce-recommendation-system/internal/vecstore"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "recsvc",
		Short: "hybrid product recommendation service",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run the recommendation api server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, conn, err := setup(configPath)
			if err != nil {
				return err
			}
			defer conn.Close()
			return runServer(cfg, conn)
		},
	}

	retrainCmd := &cobra.Command{
		Use:   "retrain",
		Short: "retrain every embedding once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, conn, err := setup(configPath)
			if err != nil {
				return err
			}
			defer conn.Close()
			svc, err := buildService(cfg, conn)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			res, err := svc.Retrain(ctx)
			if err != nil {
				return err
			}
			logutil.GetLogger(ctx).Info("retrain done",
				zap.Int64("model_version_id", res.ModelVersionID),
				zap.Int("customers", res.Customers),
				zap.Int("products", res.Products),
				zap.Duration("duration", res.Duration),
			)
			return nil
		},
	}

	hashCmd := &cobra.Command{
		Use:   "hash-password <password>",
		Short: "print the bcrypt hash for admin.password_hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := password.Hash(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}

	for _, c := range []*cobra.Command{runCmd, retrainCmd} {
		c.Flags().StringVar(&configPath, "config", "", "path to config.json")
	}
	rootCmd.AddCommand(runCmd, retrainCmd, hashCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func setup(configPath string) (*config.Config, *sql.DB, error) {
	if configPath == "" {
		return nil, nil, fmt.Errorf("--config is required")
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))

	conn, err := db.Open(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.ApplyMigrations(conn, cfg.Vector.Dimension); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("migrations: %w", err)
	}
	return cfg, conn, nil
}

func buildService(cfg *config.Config, conn *sql.DB) (*service.RecommendService, error) {
	products := repo.NewProductRepo(conn)
	vectors := vecstore.NewBreaker(repo.NewVectorRepo(conn), vecstore.BreakerConfig{
		Name:     "pgvector",
		Failures: cfg.Vector.BreakerFailures,
		Timeout:  time.Duration(cfg.Vector.BreakerTimeoutMs) * time.Millisecond,
	})
	recCache, err := cache.New(cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("init cache: %w", err)
	}
	artifacts, err := filestore.New(cfg.FileStore)
	if err != nil {
		return nil, fmt.Errorf("init file store: %w", err)
	}
	var catalog recommend.Catalog = products
	if cfg.Recommend.ProductCacheSize > 0 {
		catalog = cache.WrapLruCacheToCatalog(products, cfg.Recommend.ProductCacheSize, time.Duration(cfg.Cache.TTLSeconds)*time.Second)
	}
	svc, err := service.NewRecommendService(service.RecommendDeps{
		Vectors:   vectors,
		Purchases: repo.NewPurchaseRepo(conn),
		Products:  products,
		Catalog:   catalog,
		Versions:  repo.NewModelVersionRepo(conn),
		Stats:     repo.NewStatsRepo(conn),
		Cache:     recCache,
		Artifacts: artifacts,
	}, service.RecommendOptions{
		ModelName:        cfg.Retrain.ModelName,
		Dimension:        cfg.Vector.Dimension,
		Weights:          recommend.Weights{CF: cfg.Recommend.CFWeight, Content: cfg.Recommend.ContentWeight},
		KNeighbors:       cfg.Recommend.KNeighbors,
		MinSimilarity:    cfg.Recommend.MinSimilarity,
		CandidatePool:    cfg.Recommend.CandidatePool,
		DefaultLimit:     cfg.Recommend.DefaultLimit,
		MaxLimit:         cfg.Recommend.MaxLimit,
		CacheTTL:         time.Duration(cfg.Cache.TTLSeconds) * time.Second,
		BatchSize:        cfg.Retrain.BatchSize,
		WeightByQuantity: cfg.Retrain.QuantityWeighted(),
	})
	if err != nil {
		return nil, fmt.Errorf("init recommend service: %w", err)
	}
	return svc, nil
}

func runServer(cfg *config.Config, conn *sql.DB) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.Int("dimension", cfg.Vector.Dimension),
		zap.String("cache", cfg.Cache.Type),
		zap.String("file_store", cfg.FileStore.Type),
	)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := buildService(cfg, conn)
	if err != nil {
		return err
	}
	if err := svc.Bootstrap(ctx); err != nil {
		// the api still serves popular fallbacks
		logutil.GetLogger(ctx).Error("restore model snapshot failed", zap.Error(err))
	}

	scheduler := schedule.NewCronScheduler()
	if err := scheduler.AddJob(job.NewRetrainJob(svc), cfg.Retrain.Cron); err != nil {
		return fmt.Errorf("schedule retrain: %w", err)
	}
	if cfg.Retrain.ProfileCron != "" {
		if err := scheduler.AddJob(job.NewProfileRefreshJob(svc), cfg.Retrain.ProfileCron); err != nil {
			return fmt.Errorf("schedule profile refresh: %w", err)
		}
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()
	if cfg.Retrain.OnStart {
		scheduler.Trigger(job.RetrainJobName)
	}

	authService := service.NewAuthService(cfg.Admin.PasswordHash, []byte(cfg.Admin.JWTSecret), time.Hour*time.Duration(cfg.Admin.TokenTTLHours))
	deps := handler.RouterDeps{
		Recommendations: handler.NewRecommendationHandler(svc),
		Status:          handler.NewStatusHandler(svc, conn.PingContext),
		Admin:           handler.NewAdminHandler(svc),
		Auth:            handler.NewAuthHandler(authService),
		JWTSecret:       []byte(cfg.Admin.JWTSecret),
		RetrainWindow:   time.Duration(cfg.Admin.RetrainRateWindow) * time.Second,
	}

	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	engine, err := webapi.NewEngine(
		"/api/v1",
		addr,
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.CORSOrigins),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}
	logutil.GetLogger(ctx).Info("http server listening", zap.String("addr", addr))

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}
