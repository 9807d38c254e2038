package app

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mkayfour/school-lending/lending/config"
	"github.com/mkayfour/school-lending/lending/internal/handler"
	"github.com/mkayfour/school-lending/lending/internal/repository"
	"github.com/mkayfour/school-lending/lending/internal/server"
	"github.com/mkayfour/school-lending/lending/internal/service"
	"github.com/mkayfour/school-lending/lending/migrations"
	"github.com/mkayfour/school-lending/pkg/auth"
	"github.com/mkayfour/school-lending/pkg/cache"
	cb "github.com/mkayfour/school-lending/pkg/circuit_breaker"
	"github.com/mkayfour/school-lending/pkg/logger"
	"github.com/mkayfour/school-lending/pkg/postgres"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func Run(cfg *config.Config) {
	log := logger.NewLogger(cfg.Log, "lending")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, closeRepo := newRepository(ctx, cfg, log)
	defer closeRepo()

	issuer := auth.NewIssuer(cfg.Auth)
	svc := service.NewService(repo, issuer, log,
		service.WithGuardDelete(cfg.Catalog.GuardDelete),
	)

	h := handler.New(svc, svc, svc, issuer, log)
	srv := server.NewServer(cfg.Server, h.NewRouter())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http server start ON: ",
			zap.String("addr", net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)))
		return srv.Run()
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Debug("Graceful shutdown")

		closeCtx, cancel := context.WithTimeout(context.Background(), time.Second*5)
		defer cancel()
		return srv.Stop(closeCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server", zap.Error(err))
	}
	log.Info("Graceful shutdown finished")
}

// newRepository picks the store from cfg.Storage and fronts equipment
// reads with redis when an address is configured.
func newRepository(ctx context.Context, cfg *config.Config, log *zap.Logger) (repository.Repository, func()) {
	var (
		repo    repository.Repository
		closers []func()
	)
	switch cfg.Storage {
	case config.StorageMemory:
		log.Warn("using in-memory storage, data is lost on restart")
		repo = repository.NewMemory()
	default:
		db, err := postgres.NewPostgresDB(ctx, &cfg.Database, migrations.MigrationFiles)
		if err != nil {
			log.Fatal("db init", zap.Error(err))
		}
		closers = append(closers, db.Close)
		pg, err := repository.NewRepository(db, log)
		if err != nil {
			log.Fatal("repo", zap.Error(err))
		}
		repo = pg
	}

	if cfg.Redis.Addr != "" {
		rdb, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			log.Warn("redis unavailable, equipment cache disabled", zap.Error(err))
		} else {
			closers = append(closers, func() { _ = rdb.Close() })
			repo = repository.NewCached(repo, cache.New(rdb), cb.New(cfg.CircuitBreaker), cfg.Redis.TTL, log)
		}
	}

	return repo, func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
}
