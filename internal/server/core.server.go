package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"banking-service/internal/config"
	hrest "banking-service/internal/handler/rest"
	publisher "banking-service/internal/pub"
	"banking-service/internal/repository"
	"banking-service/internal/repository/memstore"
	"banking-service/internal/service"
	"banking-service/internal/usecase"
	"banking-service/pkg/jwtutil"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Server bundles the HTTP server with the resources it owns so main can shut
// everything down in one place.
type Server struct {
	http   *http.Server
	events *publisher.TransactionEventPublisher
	log    *zap.Logger
}

// New wires the whole service from config: storage driver, optional redis
// cache, optional kafka publisher, usecases, seeder and router.
func New(cfg config.AppConfig, log *zap.Logger) (*Server, error) {
	accounts, ledger, err := buildStores(cfg, log)
	if err != nil {
		return nil, err
	}

	// Redis is optional; with no address configured the account cache is
	// simply absent.
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPass,
			DB:       0,
		})
	}

	events := publisher.NewTransactionEventPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, log)
	tokens := jwtutil.NewManager(cfg.JWTSecret, cfg.TokenTTL)

	accountUC := usecase.NewAccountUsecase(accounts, rdb, tokens, log)
	transferUC := usecase.NewTransferUsecase(accounts, ledger, accountUC, events, log)
	pendingUC := usecase.NewPendingUsecase(accounts, ledger, accountUC, events, log)
	statementUC := usecase.NewStatementUsecase(ledger)
	adminUC := usecase.NewAdminUsecase(accounts, ledger, accountUC, log)

	seeder := service.NewSystemSeeder(accounts, accountUC, log)
	go func() {
		if err := seeder.SeedAdmin(context.Background(), cfg.AdminEmail, cfg.AdminPassword); err != nil {
			log.Warn("admin seeding failed", zap.Error(err))
		}
	}()

	handler := hrest.NewBankingRestHandler(accountUC, transferUC, pendingUC, statementUC, adminUC, tokens, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	handler.RegisterRoutes(r)

	return &Server{
		http: &http.Server{
			Addr:    cfg.HTTPAddr,
			Handler: r,
		},
		events: events,
		log:    log,
	}, nil
}

func buildStores(cfg config.AppConfig, log *zap.Logger) (repository.AccountStore, repository.TransactionLedger, error) {
	switch cfg.StorageDriver {
	case "postgres":
		dbpool, err := config.ConnectDB(log)
		if err != nil {
			return nil, nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := repository.EnsureSchema(ctx, dbpool); err != nil {
			return nil, nil, err
		}
		return repository.NewAccountRepo(dbpool), repository.NewTransactionRepo(dbpool), nil
	case "memory", "":
		return memstore.NewAccountStoreWithLockWait(cfg.LockWait), memstore.NewLedger(), nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

// Run serves HTTP until the listener fails or Shutdown is called.
func (s *Server) Run() error {
	s.log.Info("banking REST server listening", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and closes the event publisher.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.http.Shutdown(ctx)
	if closeErr := s.events.Close(); closeErr != nil {
		s.log.Warn("event publisher close failed", zap.Error(closeErr))
	}
	return err
}
