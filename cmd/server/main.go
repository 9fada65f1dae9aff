package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/akuzmenko/blogpix/internal/conf"
	"github.com/akuzmenko/blogpix/internal/data"
	mediabiz "github.com/akuzmenko/blogpix/internal/media/biz"
	mediadata "github.com/akuzmenko/blogpix/internal/media/data"
	mediaservice "github.com/akuzmenko/blogpix/internal/media/service"
	"github.com/akuzmenko/blogpix/internal/media/transform"
	"github.com/akuzmenko/blogpix/internal/pkg/logger"
	"github.com/akuzmenko/blogpix/internal/pkg/workerpool"
	postbiz "github.com/akuzmenko/blogpix/internal/post/biz"
	postdata "github.com/akuzmenko/blogpix/internal/post/data"
	postservice "github.com/akuzmenko/blogpix/internal/post/service"
	"github.com/akuzmenko/blogpix/internal/server"
	userbiz "github.com/akuzmenko/blogpix/internal/user/biz"
	userdata "github.com/akuzmenko/blogpix/internal/user/data"
	userservice "github.com/akuzmenko/blogpix/internal/user/service"
)

var (
	configFile = flag.String("config", "config.yaml", "config file path")
)

func main() {
	flag.Parse()

	// Load configuration
	config, err := conf.LoadConfig(*configFile)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize logger with config
	log, err := logger.New(&config.Log)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer log.Sync()

	log.Info("config loaded successfully")

	// Initialize data layer
	d, cleanup, err := data.NewData(config, log)
	if err != nil {
		log.Fatal("failed to initialize data layer", zap.Error(err))
	}
	defer cleanup()

	// Initialize the transform worker pool
	pool, err := workerpool.New(&config.Media.Pool, log.Logger)
	if err != nil {
		log.Fatal("failed to initialize worker pool", zap.Error(err))
	}
	defer pool.Shutdown()

	// Initialize the media pipeline
	txManager := mediadata.NewTxManager(d.DB)
	assetRepo := mediadata.NewAssetRepo(d.DB)
	engine := transform.NewEngine(config.Media.JPEGQuality)
	cache := mediabiz.NewDerivativeCache(d.Blobs, engine, pool, log.Logger)
	validator := mediabiz.NewValidator(config.Media.MaxUploadBytes)

	eagerSizes := make([]mediabiz.Size, len(config.Media.EagerSizes))
	for i, s := range config.Media.EagerSizes {
		eagerSizes[i] = mediabiz.Size{Width: s.Width, Height: s.Height}
	}
	policies := map[mediabiz.OwnerKind]mediabiz.KindPolicy{
		mediabiz.OwnerKindPost: {Materialization: mediabiz.PolicyEager, EagerSizes: eagerSizes},
		mediabiz.OwnerKindUser: {Materialization: mediabiz.PolicyLazy},
	}

	assetUseCase := mediabiz.NewAssetUseCase(
		assetRepo,
		d.Blobs,
		cache,
		validator,
		txManager,
		policies,
		config.Media.PublicBaseURL,
		log.Logger,
	)

	// Initialize repositories and use cases
	userRepo := userdata.NewUserRepo(d.DB)
	postRepo := postdata.NewPostRepo(d.DB)
	userUseCase := userbiz.NewUserUseCase(userRepo, assetUseCase, txManager, log.Logger)
	postUseCase := postbiz.NewPostUseCase(postRepo, assetUseCase, txManager, log.Logger)

	// Initialize services
	userService := userservice.NewUserService(userUseCase, log.Logger)
	postService := postservice.NewPostService(postUseCase, log.Logger)
	mediaService := mediaservice.NewMediaService(assetUseCase, log.Logger)

	// Initialize server
	httpServer := server.NewHTTPServer(config, log.Logger, userService, postService, mediaService)

	go func() {
		if err := httpServer.Start(); err != nil {
			log.Fatal("failed to start HTTP server", zap.Error(err))
		}
	}()

	log.Info("server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Stop(ctx); err != nil {
		log.Error("HTTP server forced to shutdown", zap.Error(err))
	}

	log.Info("server exited")
}
