package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/redmonkez12/otp-auth-api/docs" // Swagger docs (generated)
	"github.com/redmonkez12/otp-auth-api/internal/account"
	"github.com/redmonkez12/otp-auth-api/internal/auth"
	"github.com/redmonkez12/otp-auth-api/internal/config"
	"github.com/redmonkez12/otp-auth-api/internal/database"
	"github.com/redmonkez12/otp-auth-api/internal/email"
	httpServer "github.com/redmonkez12/otp-auth-api/internal/http"
	"github.com/redmonkez12/otp-auth-api/internal/lifecycle"
	"github.com/redmonkez12/otp-auth-api/internal/logging"
	"github.com/redmonkez12/otp-auth-api/internal/password"
	"github.com/redmonkez12/otp-auth-api/internal/token"
)

// @title           OTP Auth API
// @version         1.0
// @description     Account registration with emailed one-time passcodes, session tokens and password reset.

// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the session token.

func main() {
	if err := run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.NewLogger(cfg.Server.IsDevelopment())
	logging.SetDefault(logger)
	logger.Info("starting application",
		"env", cfg.Server.Env,
		"port", cfg.Server.Port,
		"store", cfg.Database.Backend,
		"token_format", cfg.Auth.TokenFormat,
	)

	startupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := openStore(startupCtx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize account store: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Close(ctx); err != nil {
			logger.Error("failed to close account store", "error", err)
		}
	}()

	tokens, err := token.New(cfg.Auth.TokenFormat, token.Config{
		Secret:          cfg.Auth.Secret,
		VerificationTTL: cfg.Auth.VerificationTokenTTL,
		SessionTTL:      cfg.Auth.SessionTokenTTL,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize token issuer: %w", err)
	}

	engine, err := lifecycle.New(lifecycle.Policy{
		OTPDigits: cfg.Auth.OTPDigits,
		ResetTTL:  cfg.Auth.ResetTokenTTL,
	}, password.NewHasher())
	if err != nil {
		return fmt.Errorf("failed to initialize lifecycle engine: %w", err)
	}

	emailService := email.NewService(email.Config{
		SMTPHost:     cfg.Email.SMTPHost,
		SMTPPort:     cfg.Email.SMTPPort,
		SMTPUser:     cfg.Email.SMTPUser,
		SMTPPassword: cfg.Email.SMTPPassword,
		From:         cfg.Email.From,
		FrontendURL:  cfg.Email.FrontendURL,
		CodeTTL:      cfg.Auth.VerificationTokenTTL,
		ResetTTL:     cfg.Auth.ResetTokenTTL,
	})

	authService := auth.NewService(store, engine, tokens, emailService, logger)
	authHandler := auth.NewHandler(authService, logger)
	authMiddleware := auth.NewMiddleware(tokens)

	router := httpServer.NewRouter(cfg, authHandler, authMiddleware, logger)

	server := httpServer.NewServer(
		cfg.Server.Address(),
		router,
		cfg.Server.ReadTimeout,
		cfg.Server.WriteTimeout,
		logger,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		logger.Info("received signal", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// openStore connects the account store selected by the APP_DB scheme and
// prepares its schema or indexes.
func openStore(ctx context.Context, cfg *config.Config) (account.Store, error) {
	switch cfg.Database.Backend {
	case config.BackendPostgres:
		db, err := database.Open(ctx, cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		if err := database.EnsureSchema(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
		return account.NewBunRepository(db), nil

	case config.BackendMongo:
		client, err := account.ConnectMongo(ctx, cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		repo := account.NewMongoRepository(client, cfg.Database.MongoDatabase)
		if err := repo.EnsureIndexes(ctx); err != nil {
			_ = repo.Close(ctx)
			return nil, err
		}
		return repo, nil

	case config.BackendRedis:
		client, err := account.ConnectRedis(ctx, cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		return account.NewRedisRepository(client), nil

	default:
		return nil, fmt.Errorf("unsupported store backend %q", cfg.Database.Backend)
	}
}
