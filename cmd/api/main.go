package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hearthbid/hearthbid-backend/internal/config"
	"github.com/hearthbid/hearthbid-backend/internal/handler"
	"github.com/hearthbid/hearthbid-backend/internal/migration"
	"github.com/hearthbid/hearthbid-backend/internal/repository"
	"github.com/hearthbid/hearthbid-backend/internal/routes"
	"github.com/hearthbid/hearthbid-backend/internal/service"
	"github.com/hearthbid/hearthbid-backend/internal/ws"
	pkgcache "github.com/hearthbid/hearthbid-backend/pkg/cache"
	pkgjwt "github.com/hearthbid/hearthbid-backend/pkg/jwt"
	pkglogger "github.com/hearthbid/hearthbid-backend/pkg/logger"
	pkgredis "github.com/hearthbid/hearthbid-backend/pkg/redis"
	pkgstorage "github.com/hearthbid/hearthbid-backend/pkg/storage"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// getConfigPath returns config file path based on APP_ENV environment variable
func getConfigPath() string {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf("configs/config.%s.yaml", env)
}

func main() {
	dotenvFiles := config.LoadDotEnv()

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "local"
	}
	pkglogger.InitStructured(env)
	pkglogger.Info("APP_ENV=%s, loaded env files: %v", env, dotenvFiles)

	configPath := getConfigPath()
	pkglogger.Info("Loading config from: %s", configPath)
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// MySQL. The messaging core treats a missing store as a hard error,
	// never a mock fallback, so a failed connection is fatal.
	db, err := initDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	pkglogger.Info("Connected to MySQL")
	if err := migration.Run(db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	// Redis (cache + multi-instance feed). Optional: single-instance
	// deployments work without it.
	redisClient, err := pkgredis.NewClient(
		cfg.Redis.Host,
		cfg.Redis.Port,
		cfg.Redis.Password,
		cfg.Redis.DB,
		cfg.Redis.PoolSize,
	)
	if err != nil {
		pkglogger.Info("Warning: Failed to connect to Redis: %v (continuing without Redis)", err)
		redisClient = nil
	} else {
		pkglogger.Info("Connected to Redis")
	}

	var cacheService pkgcache.Service
	if redisClient != nil {
		cacheService = pkgcache.NewService(redisClient)
		pkglogger.Info("Cache service initialized")
	}

	hub := ws.NewHub(redisClient)
	hub.Run()
	defer hub.Stop()

	objectStore, err := pkgstorage.NewS3Client(pkgstorage.S3Config{
		Endpoint:        cfg.Storage.Endpoint,
		Region:          cfg.Storage.Region,
		AccessKeyID:     cfg.Storage.AccessKeyID,
		SecretAccessKey: cfg.Storage.SecretAccessKey,
		Bucket:          cfg.Storage.Bucket,
		CDNURL:          cfg.Storage.CDNURL,
		BasePath:        cfg.Storage.BasePath,
		ForcePathStyle:  cfg.Storage.ForcePathStyle,
	})
	if err != nil {
		log.Fatalf("Failed to init object storage: %v", err)
	}

	jwtManager := pkgjwt.NewManager(cfg.JWT.Secret, time.Duration(cfg.JWT.ExpiryHours)*time.Hour)

	// Repositories
	memberRepo := repository.NewMemberRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	aliasRepo := repository.NewAliasRepository(db)
	messageRepo := repository.NewMessageRepository(db, objectStore, hub)

	// Services
	aliasService := service.NewAliasService(aliasRepo, projectRepo, messageRepo, cacheService)
	messagingService := service.NewMessagingService(messageRepo, aliasService, memberRepo, projectRepo, cacheService)

	// Handlers
	messageHandler := handler.NewMessageHandler(messagingService, aliasService)
	wsHandler := handler.NewWSHandler(messagingService, jwtManager)

	if env != "local" && env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	routes.Register(r, jwtManager, cacheService, messageHandler, wsHandler)

	addr := fmt.Sprintf(":%d", cfg.App.Port)
	pkglogger.Info("Listening on %s", addr)
	if err := r.Run(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func initDB(cfg *config.Config) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	}
	db, err := gorm.Open(mysql.Open(cfg.DSN()), gormCfg)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}
