package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/sakuuj/blogsite/internal/articles"
	"github.com/sakuuj/blogsite/internal/auth"
	"github.com/sakuuj/blogsite/internal/authz"
	"github.com/sakuuj/blogsite/internal/config"
	"github.com/sakuuj/blogsite/internal/database"
	"github.com/sakuuj/blogsite/internal/idempotency"
	"github.com/sakuuj/blogsite/internal/logging"
	"github.com/sakuuj/blogsite/internal/metrics"
	"github.com/sakuuj/blogsite/internal/persons"
	"github.com/sakuuj/blogsite/internal/server"
	"github.com/sakuuj/blogsite/internal/storage"
	"github.com/sakuuj/blogsite/internal/topics"
	"github.com/sakuuj/blogsite/internal/validation"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "blogsite-api",
		Short: "Blogsite article backend service",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("oidc-client-id", defaults.GetString("oidc.client_id"), "OIDC client ID accepted on token exchange")
	cmd.PersistentFlags().String("oidc-jwks-url", defaults.GetString("oidc.jwks_url"), "OIDC JWKS URL")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().Int("token-ttl-minutes", defaults.GetInt("token.ttl_minutes"), "Backend token TTL in minutes")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("signing-secret", "", "Backend signing secret (overrides env)")
	cmd.PersistentFlags().StringSlice("admin-emails", defaults.GetStringSlice("auth.admin_emails"), "Emails granted the admin role")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "oidc.client_id", "oidc-client-id")
	bindFlag(cmd, "oidc.jwks_url", "oidc-jwks-url")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "token.ttl_minutes", "token-ttl-minutes")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
	bindFlag(cmd, "auth.admin_emails", "admin-emails")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	verifier, err := auth.NewIdentityVerifier(auth.IdentityVerifierConfig{
		Audience: appConfig.OIDCAudience,
		JWKSURL:  appConfig.OIDCJWKSURL,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	tokenManager := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(appConfig.SigningSecret),
		Issuer:        appConfig.TokenIssuer,
		Audience:      appConfig.TokenAudience,
		TokenTTL:      appConfig.TokenTTL,
	})

	idProvider := storage.NewUUIDProvider()

	personService, err := persons.NewService(persons.ServiceConfig{
		Database:    db,
		IDProvider:  idProvider,
		AdminEmails: appConfig.AdminEmails,
	})
	if err != nil {
		return err
	}

	tokenStore, err := idempotency.NewGormStore(db)
	if err != nil {
		return err
	}

	articleStore, err := articles.NewGormStore(db)
	if err != nil {
		return err
	}
	articleGate, err := authz.NewArticleGate(articleStore)
	if err != nil {
		return err
	}

	validator := validation.New()

	articleService, err := articles.NewService(articles.ServiceConfig{
		Store:      articleStore,
		Tokens:     tokenStore,
		Authorizer: articleGate,
		Validator:  validator,
		IDProvider: idProvider,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	topicStore, err := topics.NewGormStore(db)
	if err != nil {
		return err
	}
	topicService, err := topics.NewService(topics.ServiceConfig{
		Store:      topicStore,
		Tokens:     tokenStore,
		Authorizer: authz.NewTopicGate(),
		Validator:  validator,
		IDProvider: idProvider,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Verifier: verifier,
		Tokens:   tokenManager,
		Persons:  personService,
		Articles: articleService,
		Topics:   topicService,
		Metrics:  metrics.NewRecorder(),
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
