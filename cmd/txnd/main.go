package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/CrestPayLabs/cardledger/internal/cardclient"
	"github.com/CrestPayLabs/cardledger/internal/dbconn"
	"github.com/CrestPayLabs/cardledger/internal/store/txnstore"
	"github.com/CrestPayLabs/cardledger/internal/svcauth"
	"github.com/CrestPayLabs/cardledger/internal/txnapi"
	"github.com/CrestPayLabs/cardledger/internal/zaplog"
	"github.com/CrestPayLabs/cardledger/pkg/txn"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	flagDatabaseURL       = "database-url"
	flagListenAddr        = "listen-addr"
	flagCardServiceURL    = "card-service-url"
	flagServiceSecret     = "svc-auth-secret"
	flagCallTimeout       = "card-call-timeout"
	flagAllowedOrigins    = "allowed-origins"
	configKeyDatabaseURL  = "database_url"
	configKeyListenAddr   = "listen_addr"
	configKeyCardURL      = "card_service_url"
	configKeySecret       = "svc_auth_secret"
	configKeyCallTimeout  = "card_call_timeout"
	configKeyOrigins      = "allowed_origins"
	defaultDatabaseURL    = "sqlite:///tmp/txnd.db"
	defaultListenAddr     = ":8080"
	defaultCardServiceURL = "http://localhost:8081"
	defaultCallTimeout    = 5 * time.Second
	serviceTokenIssuer    = "txnd"
)

type runtimeConfig struct {
	DatabaseURL    string
	ListenAddr     string
	CardServiceURL string
	ServiceSecret  string
	CallTimeout    time.Duration
	AllowedOrigins []string
}

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "txnd: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := &runtimeConfig{}
	cmd := &cobra.Command{
		Use:           "txnd",
		Short:         "Transaction settlement service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(cmd, cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg)
		},
	}

	cmd.Flags().String(flagDatabaseURL, defaultDatabaseURL, "database connection string")
	cmd.Flags().String(flagListenAddr, defaultListenAddr, "HTTP listen address")
	cmd.Flags().String(flagCardServiceURL, defaultCardServiceURL, "card service base URL")
	cmd.Flags().String(flagServiceSecret, "", "shared secret for service-to-service tokens")
	cmd.Flags().Duration(flagCallTimeout, defaultCallTimeout, "per-call timeout for card service requests")
	cmd.Flags().StringSlice(flagAllowedOrigins, nil, "allowed CORS origins")

	return cmd
}

func loadConfig(cmd *cobra.Command, cfg *runtimeConfig) error {
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	bindings := map[string]string{
		configKeyDatabaseURL: "DATABASE_URL",
		configKeyListenAddr:  "LISTEN_ADDR",
		configKeyCardURL:     "CARD_SERVICE_URL",
		configKeySecret:      "SVC_AUTH_SECRET",
		configKeyCallTimeout: "CARD_CALL_TIMEOUT",
		configKeyOrigins:     "ALLOWED_ORIGINS",
	}
	for key, envName := range bindings {
		if err := viper.BindEnv(key, envName); err != nil {
			return err
		}
	}
	flags := map[string]string{
		configKeyDatabaseURL: flagDatabaseURL,
		configKeyListenAddr:  flagListenAddr,
		configKeyCardURL:     flagCardServiceURL,
		configKeySecret:      flagServiceSecret,
		configKeyCallTimeout: flagCallTimeout,
		configKeyOrigins:     flagAllowedOrigins,
	}
	for key, flagName := range flags {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flagName)); err != nil {
			return err
		}
	}

	cfg.DatabaseURL = viper.GetString(configKeyDatabaseURL)
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = defaultDatabaseURL
	}
	cfg.ListenAddr = viper.GetString(configKeyListenAddr)
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = defaultListenAddr
	}
	cfg.CardServiceURL = viper.GetString(configKeyCardURL)
	if cfg.CardServiceURL == "" {
		cfg.CardServiceURL = defaultCardServiceURL
	}
	cfg.ServiceSecret = viper.GetString(configKeySecret)
	if cfg.ServiceSecret == "" {
		return fmt.Errorf("service secret is required")
	}
	cfg.CallTimeout = viper.GetDuration(configKeyCallTimeout)
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = defaultCallTimeout
	}
	cfg.AllowedOrigins = viper.GetStringSlice(configKeyOrigins)
	return nil
}

func runServer(ctx context.Context, cfg *runtimeConfig) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	gormDB, cleanup, driver, err := dbconn.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database open: %w", err)
	}
	defer func() { _ = cleanup() }()

	store := txnstore.New(gormDB)
	if driver == "sqlite" {
		if err := store.Migrate(); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
	}

	signer, err := svcauth.NewSigner(cfg.ServiceSecret, serviceTokenIssuer, time.Now)
	if err != nil {
		return fmt.Errorf("service signer init: %w", err)
	}
	cards, err := cardclient.New(cfg.CardServiceURL, signer, cfg.CallTimeout)
	if err != nil {
		return fmt.Errorf("card client init: %w", err)
	}

	transactionService, err := txn.NewService(
		store,
		cards,
		time.Now,
		txn.WithOperationLogger(zaplog.New(logger)),
	)
	if err != nil {
		return fmt.Errorf("transaction service init: %w", err)
	}

	router := txnapi.NewRouter(txnapi.Config{
		Transactions:   transactionService,
		Logger:         logger,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("transaction service listening", zap.String("addr", cfg.ListenAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Warn("server shutdown error", zap.Error(shutdownErr))
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
