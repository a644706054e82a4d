package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/iudanet/transitauth/internal/config"
	"github.com/iudanet/transitauth/internal/crypto"
	"github.com/iudanet/transitauth/internal/logging"
	"github.com/iudanet/transitauth/internal/server"
	"github.com/iudanet/transitauth/internal/server/cookies"
	"github.com/iudanet/transitauth/internal/server/jwt"
	"github.com/iudanet/transitauth/internal/server/mail"
	"github.com/iudanet/transitauth/internal/server/service"
	"github.com/iudanet/transitauth/internal/server/session"
	"github.com/iudanet/transitauth/internal/server/stores"
	"github.com/iudanet/transitauth/internal/validation"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to config file (default: ./config.yaml if present)")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	// Show version and exit if requested
	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log.Format, cfg.Log.Level, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Server stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func printVersion() {
	fmt.Printf("TransitAuth Server\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}

// run собирает зависимости и обслуживает HTTP до отмены ctx
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	users, err := stores.OpenUsers(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer users.Close()

	sessions, closeSessions, err := stores.OpenSessions(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeSessions()

	if sweeper, ok := sessions.(session.Sweeper); ok {
		go session.RunJanitor(ctx, sweeper, cfg.Auth.JanitorInterval, logger)
	}

	tokens, err := jwt.NewService(jwt.Config{
		Secret:         cfg.Auth.JWTSecret,
		AccessTokenTTL: cfg.Auth.AccessTokenTTL,
		RememberTTL:    cfg.Auth.RememberTokenTTL,
	})
	if err != nil {
		return fmt.Errorf("failed to create token service: %w", err)
	}

	cm := cookies.NewManager(cookies.Config{
		Domain:         cfg.Cookie.Domain,
		MaxAge:         cfg.Cookie.MaxAge,
		RememberMaxAge: cfg.Cookie.RememberMaxAge,
		Secure:         cfg.Cookie.Secure,
	})

	notifier := mail.NewNotifier(newMailer(cfg.Mail, logger), cfg.Mail.FrontendURL)

	svc := service.NewAuthService(logger, users, sessions, tokens,
		crypto.NewPasswordHasher(cfg.Auth.BcryptCost), notifier, service.Config{
			LoginSessionTTL:      cfg.Auth.LoginSessionTTL,
			DirectLoginEnabled:   cfg.Auth.DirectLoginEnabled,
			RequireVerifiedEmail: cfg.Auth.RequireVerifiedEmail,
		})

	handler, stopRouter := server.NewRouter(logger, server.Dependencies{
		Auth:      svc,
		Users:     svc,
		DB:        users,
		Tokens:    tokens,
		Cookies:   cm,
		Validator: validation.New(),
	}, cfg)
	defer stopRouter()

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server starting",
			slog.String("addr", srv.Addr),
			slog.String("version", Version),
			slog.String("database", cfg.Database.Driver),
			slog.String("session_store", cfg.Auth.SessionStore),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	logger.Info("Server stopped")
	return nil
}

// newMailer выбирает транспорт писем по mail.driver
func newMailer(cfg config.MailConfig, logger *slog.Logger) mail.Mailer {
	if cfg.Driver == "smtp" {
		return mail.NewSMTPMailer(mail.SMTPConfig{
			Host:     cfg.Host,
			Port:     cfg.Port,
			Username: cfg.Username,
			Password: cfg.Password,
			From:     cfg.From,
			Timeout:  cfg.Timeout,
		})
	}
	return mail.NewLogMailer(logger)
}
