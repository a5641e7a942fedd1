package app

import (
	"activity_engine/internal/config"
	"activity_engine/internal/controller"
	"activity_engine/internal/engine"
	"activity_engine/internal/repository"
	"activity_engine/internal/service"
	"activity_engine/pkg/configwatcher"
	"activity_engine/pkg/database"
	"activity_engine/pkg/events"
	"activity_engine/pkg/logger"
	"activity_engine/pkg/monitoring"
	"activity_engine/pkg/security"
	"activity_engine/pkg/tracing"
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config    *config.Config
	ConfigDir string
	Router    *gin.Engine
	DB        *gorm.DB
	Redis     *redis.Client
	Publisher events.Publisher

	services        *services
	tracer          *sdktrace.TracerProvider
	configCallbacks []func(*config.Config)
}

type repositories struct {
	activity *repository.ActivityRepository
	result   *repository.AttemptResultRepository
}

type services struct {
	ticks      *engine.WallTicks
	hub        *service.SessionHub
	recorder   *service.MultiRecorder
	sessions   *service.SessionService
	storage    service.StorageProvider
	recordings *service.RecordingService
	progress   *service.ProgressService
}

type controllers struct {
	session  *controller.SessionController
	progress *controller.ProgressController
	health   *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

// applyConfig 热更新只作用于可在运行时调整的参数
func (a *App) applyConfig(cfg *config.Config) {
	if err := cfg.Validate(); err != nil {
		logger.Log.Error("Reloaded config rejected", zap.Error(err))
		return
	}
	for _, cb := range a.configCallbacks {
		cb(cfg)
	}
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		activity: repository.NewActivityRepository(db),
		result:   repository.NewAttemptResultRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config) *services {
	s := &services{}

	s.recorder = service.NewMultiRecorder(cfg.Engine.RecordTimeout, &service.StoreRecorder{Repo: repos.result})
	if a.Redis != nil {
		s.recorder.Add(service.NewStreamRecorder(a.Redis, cfg.Redis.Stream, cfg.Redis.MaxLen))
	}
	if a.Publisher != nil {
		s.recorder.Add(&service.EventRecorder{Publisher: a.Publisher})
	}

	s.ticks = engine.NewWallTicks(cfg.Engine.TickInterval)
	s.hub = service.NewSessionHub()
	s.sessions = service.NewSessionService(repos.activity, repos.result, s.ticks, s.recorder, s.hub, cfg.Engine.Retention)
	s.sessions.SetIdleTimeout(cfg.Engine.IdleTimeout)
	s.storage = service.NewStorageProvider(&cfg.Storage)
	s.recordings = service.NewRecordingService(s.sessions, s.storage, cfg.Recording)
	s.progress = service.NewProgressService(repos.activity, repos.result)

	a.RegisterConfigCallback(func(c *config.Config) {
		s.ticks.SetInterval(c.Engine.TickInterval)
		s.sessions.SetRetention(c.Engine.Retention)
		s.sessions.SetIdleTimeout(c.Engine.IdleTimeout)
		logger.SetLevel(c)
	})
	return s
}

func (a *App) initControllers(s *services) *controllers {
	return &controllers{
		session:  controller.NewSessionController(s.sessions, s.recordings, s.hub),
		progress: controller.NewProgressController(s.progress),
		health:   controller.NewHealthController(a.DB, a.Redis, s.sessions.Len),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	router.Use(security.RateLimiter(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func (a *App) startBackgroundTasks(ctx context.Context, s *services) {
	go s.sessions.RunJanitor(ctx, a.Config.Engine.JanitorInterval)

	if a.ConfigDir == "" {
		return
	}
	w := configwatcher.New(filepath.Join(a.ConfigDir, "config.yaml"), a.applyConfig)
	go func() {
		if err := w.Run(ctx); err != nil {
			logger.Log.Warn("Config watcher stopped", zap.Error(err))
		}
	}()
}

func (a *App) connectOptional(cfg *config.Config) {
	if cfg.Redis.Enabled {
		rdb, err := database.InitRedis(&cfg.Redis)
		if err != nil {
			logger.Log.Warn("Redis unavailable, result stream disabled", zap.Error(err))
		} else {
			a.Redis = rdb
		}
	}

	if cfg.AMQP.Enabled {
		pub, err := events.NewAMQPPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			logger.Log.Warn("AMQP unavailable, attempt events disabled", zap.Error(err))
		} else {
			a.Publisher = pub
		}
	}

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer(cfg.Tracing.ServiceName, cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		a.tracer = tp
	}
}

// NewApp 初始化依赖；MigrateOnly 时迁移完成即返回，Router 为空
func NewApp(cfg *config.Config, configDir string) *App {
	logger.InitLogger(cfg)
	logger.Log.Info("Logger initialized successfully")

	if err := cfg.Validate(); err != nil {
		logger.Log.Fatal("Invalid configuration", zap.Error(err))
	}

	db, err := database.InitDB(&cfg.Database, cfg.Server.Mode == "debug")
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		log.Fatalf("Failed to initialize database: %v", err)
	}
	if cfg.ForceMigrate || cfg.Server.Mode == "debug" {
		if err := database.Migrate(db); err != nil {
			logger.Log.Fatal("Failed to migrate database", zap.Error(err))
		}
	}

	app := &App{
		Config:    cfg,
		ConfigDir: configDir,
		DB:        db,
	}
	if cfg.MigrateOnly {
		return app
	}

	app.connectOptional(cfg)

	repos := app.initRepositories(db)
	services := app.initServices(repos, cfg)
	app.services = services
	controllers := app.initControllers(services)

	// 监控初始化
	monitoring.Init()

	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.Server.Mode == "debug" {
		router.Use(gin.Logger())
	}
	app.Router = router

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, controllers, cfg)

	if cfg.Storage.Type == "local" {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.startBackgroundTasks(ctx, a.services)

	// 启动服务器
	go func() {
		log.Printf("Server running on port %s", a.Config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")
	cancel()

	// 先断开 WebSocket 并停止接收请求，再暂停所有会话的计时
	a.services.hub.Stop()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}
	a.services.sessions.Close()

	// 等待进行中的结果写入
	a.services.recorder.Wait()
	if a.Publisher != nil {
		a.Publisher.Close()
	}
	if a.Redis != nil {
		a.Redis.Close()
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(shutdownCtx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	logger.Log.Sync()

	log.Println("Server exiting")
}
