package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/resend/resend-go/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-account-go/internal/auth"
	authrepo "github.com/ovaphlow/pitchfork/service-account-go/internal/auth/repo"
	"github.com/ovaphlow/pitchfork/service-account-go/internal/config"
	"github.com/ovaphlow/pitchfork/service-account-go/internal/memstore"
	"github.com/ovaphlow/pitchfork/service-account-go/internal/metrics"
	"github.com/ovaphlow/pitchfork/service-account-go/internal/notify"
	"github.com/ovaphlow/pitchfork/service-account-go/internal/router"
	"github.com/ovaphlow/pitchfork/service-account-go/internal/user"
	userrepo "github.com/ovaphlow/pitchfork/service-account-go/internal/user/repo"
	"github.com/ovaphlow/pitchfork/service-account-go/internal/verification"
	coderepo "github.com/ovaphlow/pitchfork/service-account-go/internal/verification/repo"
	"github.com/ovaphlow/pitchfork/service-account-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-account-go/pkg/utilities"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the account HTTP API",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	logCfg := utilities.ConfigFromEnv()
	lg, err := utilities.Init(logCfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer lg.Sync()
	sugar := lg.Sugar()

	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := build(ctx, cfg, logCfg.Dev, sugar)
	if err != nil {
		return err
	}
	defer app.close()

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           app.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()
	sugar.Infow("account service listening", "addr", cfg.HTTPAddr, "base_path", cfg.BasePath, "store", cfg.StoreDriver)

	select {
	case <-ctx.Done():
	case err := <-errc:
		return fmt.Errorf("http server failed: %w", err)
	}

	sugar.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		sugar.Warnw("http server shutdown failed", "err", err)
	}
	sugar.Info("goodbye")
	return nil
}

type app struct {
	handler http.Handler
	close   func()
}

type stores struct {
	users    user.Repository
	codes    verification.Ledger
	sessions auth.SessionStore
	close    func()
}

func openStores(ctx context.Context, cfg config.Config, clock clockwork.Clock, logger *zap.SugaredLogger) (*stores, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		logger.Warn("using in-memory store; data is lost on restart")
		s := memstore.New(clock)
		return &stores{users: s, codes: s, sessions: s, close: func() {}}, nil
	}

	dbCfg := database.ConfigFromEnv()
	sqlDB, err := database.Connect(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	if dbCfg.AutoMigrate {
		if err := database.Migrate(ctx, sqlDB); err != nil {
			sqlDB.Close()
			return nil, err
		}
		logger.Info("database migrated")
	}
	db := sqlx.NewDb(sqlDB, "postgres")
	return &stores{
		users:    userrepo.NewUserRepo(db),
		codes:    coderepo.NewCodeRepo(db, clock),
		sessions: authrepo.NewSessionRepo(db),
		close:    func() { db.Close() },
	}, nil
}

func newNotifier(cfg config.Config, dev bool, m *metrics.Metrics, logger *zap.SugaredLogger) notify.Notifier {
	var n notify.Notifier
	if cfg.ResendAPIKey != "" {
		n = notify.NewResendNotifier(resend.NewClient(cfg.ResendAPIKey), cfg.FromName, cfg.FromEmail, logger)
	} else {
		logger.Warn("RESEND_API_KEY not set; emails are logged instead of sent")
		n = notify.LogNotifier{Logger: logger, ShowBody: dev}
	}
	return notify.NewRetrying(n, cfg.MailMaxRetries, cfg.MailRetryBase, m, logger)
}

func build(ctx context.Context, cfg config.Config, dev bool, logger *zap.SugaredLogger) (*app, error) {
	clock := clockwork.NewRealClock()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg, "account")

	st, err := openStores(ctx, cfg, clock, logger)
	if err != nil {
		return nil, err
	}
	fail := func(err error) (*app, error) {
		st.close()
		return nil, err
	}

	ids, err := utilities.NewIDGenerator(cfg.SnowflakeNode)
	if err != nil {
		return fail(fmt.Errorf("snowflake node: %w", err))
	}
	hasher := user.BcryptHasher{Cost: cfg.BcryptCost}
	users := user.NewUserService(st.users, hasher, ids, logger.Named("user"))

	key, err := auth.LoadSigningKey(cfg.JWTPrivateKeyFile)
	if err != nil {
		return fail(err)
	}
	if cfg.JWTPrivateKeyFile == "" {
		logger.Warn("JWT_PRIVATE_KEY_FILE not set; tokens are signed with an ephemeral key")
	}
	tokens, err := auth.NewTokenIssuer(key, st.sessions, auth.TokenConfig{
		Issuer:     cfg.JWTIssuer,
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
		Clock:      clock,
	})
	if err != nil {
		return fail(err)
	}

	codes := verification.NewService(st.codes, users, newNotifier(cfg, dev, m, logger.Named("notify")), verification.Config{
		TTL:      cfg.VerificationCodeTTL,
		Clock:    clock,
		Metrics:  m,
		Sessions: tokens,
	}, logger.Named("verification"))

	engine, err := auth.NewEngine(users, hasher, tokens, m, logger.Named("auth"))
	if err != nil {
		return fail(err)
	}

	handler := router.RegisterRoutes(router.Deps{
		BasePath:       cfg.BasePath,
		RequestTimeout: cfg.RequestTimeout,
		Logger:         logger.Named("http"),
		Users:          user.NewHandler(users, codes, logger.Named("user")),
		Verification:   verification.NewHandler(codes, logger.Named("verification")),
		Auth:           auth.NewHandler(engine, tokens, logger.Named("auth")),
		Tokens:         tokens,
		Metrics:        m,
		Gatherer:       reg,
	})
	return &app{handler: handler, close: st.close}, nil
}
