package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"couplesystem/internal/config"
	"couplesystem/internal/handler"
	"couplesystem/internal/infrastructure/cache"
	"couplesystem/internal/infrastructure/database"
	"couplesystem/internal/infrastructure/idempotency"
	"couplesystem/internal/infrastructure/mq"
	"couplesystem/internal/job"
	"couplesystem/internal/logger"
	"couplesystem/internal/service"
	"couplesystem/internal/store"
	"couplesystem/internal/tracing"
	"couplesystem/pkg/idgen"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "配置文件路径")
	flag.Parse()

	// 加载配置
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("服务异常退出")
	}
	log.Info("服务已关闭")
}

func run(cfg *config.Config, log *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 初始化 ID 生成器
	if err := idgen.Init(1); err != nil {
		return err
	}

	shutdownTracing, err := tracing.Init("couplesystem", &cfg.Tracing, log)
	if err != nil {
		return err
	}
	defer func() {
		_ = shutdownTracing(context.Background())
	}()

	db, err := database.Open(&cfg.Database, log)
	if err != nil {
		return err
	}
	st := store.New(db, log, store.WithMaxAttempts(cfg.Business.MaxTxnAttempts))

	guard, closeRedis := openGuard(cfg, log)
	defer closeRedis()

	publisher, err := mq.NewPublisher(cfg, log)
	if err != nil {
		return err
	}
	defer publisher.Close()

	ledger := service.NewLedgerService(st, log)
	coupons := service.NewCouponService(st, log)
	identity := service.NewIdentityService(st, cfg, log)
	h := handler.NewHandler(&handler.Services{
		Identity: identity,
		Pairing:  service.NewPairingService(st, cfg, log),
		Ledger:   ledger,
		Coupons:  coupons,
		Boards:   service.NewGoalBoardService(st, ledger, cfg, log),
		Shop:     service.NewShopService(st, ledger, coupons, log),
		Guard:    guard,
	}, log)
	router := handler.SetupRouter(h, handler.NewStaticTokenProvider(cfg.Auth.Tokens), log)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	g, gctx := errgroup.WithContext(ctx)

	// 后台任务
	outboxSender := job.NewOutboxSender(db, publisher, cfg, log)
	g.Go(func() error {
		outboxSender.Start(gctx)
		return nil
	})
	listingExpiry := job.NewListingExpiryJob(db, log)
	g.Go(func() error {
		listingExpiry.Start(gctx)
		return nil
	})

	g.Go(func() error {
		log.WithField("port", cfg.Server.Port).Info("服务启动")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "服务启动失败")
		}
		return nil
	})

	// 收到信号或任一任务失败后关闭 HTTP 服务（等待最多5秒）
	g.Go(func() error {
		<-gctx.Done()
		log.Info("正在关闭服务...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// openGuard Redis 不可用时不做请求去重，服务照常启动
func openGuard(cfg *config.Config, log *logrus.Logger) (*idempotency.Guard, func()) {
	redisClient, err := cache.NewRedis(&cfg.Redis, log)
	if err != nil {
		log.WithError(err).Warn("Redis 不可用，请求去重已关闭")
		return nil, func() {}
	}
	guard := idempotency.NewGuard(redisClient, time.Duration(cfg.Business.IdempotencyTTLSeconds)*time.Second)
	return guard, func() { _ = redisClient.Close() }
}
