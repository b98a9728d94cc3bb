package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"answerafter-admin/internal/config"
	httpapi "answerafter-admin/internal/http"
	"answerafter-admin/internal/identity"
	"answerafter-admin/internal/repository"
	"answerafter-admin/internal/teardown"
	"answerafter-admin/internal/telephony"
	"answerafter-admin/internal/voiceai"
	"answerafter-admin/pkg/database"
	"answerafter-admin/pkg/logger"
)

func main() {
	cfg := config.Load()

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "answerafter-admin")
	if err != nil {
		log, _ = zap.NewProduction()
	}
	defer log.Sync()

	// 数据访问：DB不可用时回落到内存store（联测/开发），生产必须有DB
	var db *sql.DB
	var tenantsRepo repository.TenantsRepo
	var purgeRepo repository.PurgeRepo
	var membersRepo repository.MembersRepo

	if d, err := database.NewPostgresDB(&cfg.Database); err == nil {
		db = d
		tenantsRepo = repository.NewPostgresTenantsRepo(db)
		purgeRepo = repository.NewPostgresPurgeRepo(db)
		membersRepo = repository.NewPostgresMembersRepo(db)
		log.Info("DB enabled for answerafter-admin")
	} else {
		log.Warn("DB connection failed, falling back to memory store", zap.Error(err))
		store := repository.NewMemoryStore()
		tenantsRepo = store
		purgeRepo = store
		membersRepo = store
	}

	// 租户级teardown互斥锁：Redis可用时跨实例互斥，否则进程内互斥
	var locker teardown.Locker
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(context.Background()).Err(); err == nil {
		locker = teardown.NewRedisLocker(redisClient, 10*time.Minute)
	} else {
		log.Warn("Redis unavailable, using in-process teardown lock", zap.Error(err))
		locker = teardown.NewMemoryLocker()
	}

	voiceClient := voiceai.NewClient(cfg.VoiceAI.BaseURL, cfg.VoiceAI.APIKey, log)
	phoneClient := telephony.NewClient(
		cfg.Telephony.BaseURL,
		telephony.Credentials{AccountSID: cfg.Telephony.AccountSID, AuthToken: cfg.Telephony.AuthToken},
		cfg.Telephony.NeutralWebhookURL,
		log,
	)
	authClient := identity.NewClient(cfg.Auth.BaseURL, cfg.Auth.ServiceKey, log)

	orchestrator := teardown.NewOrchestrator(
		tenantsRepo, purgeRepo, membersRepo,
		voiceClient, phoneClient, authClient,
		locker, log,
	)

	router := httpapi.NewRouter(log)
	router.RegisterHealthRoutes()
	router.RegisterAdminTenantRoutes(httpapi.NewTenantsHandler(tenantsRepo, orchestrator, log))

	srv := httpapi.NewServer(cfg.HTTP.Addr, router, log)

	_, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		cancel()
	case <-errCh:
		cancel()
	}

	// 退出信号已取消ctx，优雅关停的宽限期要用独立context计时
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
	_ = redisClient.Close()
	if db != nil {
		_ = db.Close()
	}
}
