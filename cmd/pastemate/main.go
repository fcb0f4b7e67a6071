package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MarcoPoloResearchLab/pastemate/internal/auth"
	"github.com/MarcoPoloResearchLab/pastemate/internal/blobstore"
	"github.com/MarcoPoloResearchLab/pastemate/internal/config"
	"github.com/MarcoPoloResearchLab/pastemate/internal/database"
	"github.com/MarcoPoloResearchLab/pastemate/internal/highlight"
	"github.com/MarcoPoloResearchLab/pastemate/internal/hits"
	"github.com/MarcoPoloResearchLab/pastemate/internal/logging"
	"github.com/MarcoPoloResearchLab/pastemate/internal/pastes"
	"github.com/MarcoPoloResearchLab/pastemate/internal/seed"
	"github.com/MarcoPoloResearchLab/pastemate/internal/server"
	"github.com/MarcoPoloResearchLab/pastemate/internal/users"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
)

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "pastemate",
		Short: "PasteMate paste service",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)
	rootCmd.AddCommand(
		newServeCommand(),
		newExpirePastesCommand(),
		newRegenerateEmbedsCommand(),
		newDemoPastesCommand(),
		newIssueTokenCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-driver", defaults.GetString("database.driver"), "Database driver (sqlite, postgres)")
	cmd.PersistentFlags().String("database-dsn", defaults.GetString("database.dsn"), "Database DSN or SQLite path")
	cmd.PersistentFlags().String("blob-driver", defaults.GetString("blob.driver"), "Blob store driver (filesystem, s3)")
	cmd.PersistentFlags().String("blob-root", defaults.GetString("blob.root"), "Directory for embed images")
	cmd.PersistentFlags().String("redis-url", "", "Redis URL for hit counters")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("signing-secret", "", "Session signing secret (overrides env)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.driver", "database-driver")
	bindFlag(cmd, "database.dsn", "database-dsn")
	bindFlag(cmd, "blob.driver", "blob-driver")
	bindFlag(cmd, "blob.root", "blob-root")
	bindFlag(cmd, "redis.url", "redis-url")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
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

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}
}

func newExpirePastesCommand() *cobra.Command {
	var onlyShow bool
	cmd := &cobra.Command{
		Use:   "expire-pastes",
		Short: "Delete pastes whose expiration date has passed",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.close()

			report, err := app.pastes.SweepExpired(cmd.Context(), onlyShow)
			if err != nil {
				return err
			}
			writeSweepReport(cmd.OutOrStdout(), report)
			return nil
		},
	}
	cmd.Flags().BoolVar(&onlyShow, "only-show", false, "List expired pastes without deleting them")
	return cmd
}

func newRegenerateEmbedsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "regenerate-embeds",
		Short: "Rebuild the embeddable image of every paste",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.close()

			regenerated, err := app.pastes.RegenerateEmbeds(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d pastes processed.\n", regenerated)
			return nil
		},
	}
}

func newDemoPastesCommand() *cobra.Command {
	var (
		userID   string
		username string
		count    int
		seedFlag int64
	)
	cmd := &cobra.Command{
		Use:   "demo-pastes",
		Short: "Create demo pastes for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if username == "" {
				return errors.New("--username is required")
			}
			if userID == "" {
				userID = "demo-" + username
			}
			app, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.close()

			user, err := app.users.ResolveUser(cmd.Context(), auth.SessionClaims{UserID: userID, Username: username})
			if err != nil {
				return err
			}
			seeder := seed.NewSeeder(app.pastes, seed.Options{Count: count, Seed: seedFlag}, app.logger)
			created, err := seeder.Run(cmd.Context(), pastes.Viewer{UserID: user.ID, Username: user.Username, Staff: user.Staff}, count)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d demo pastes created for %s.\n", len(created), user.Username)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "Username that owns the demo pastes")
	cmd.Flags().StringVar(&userID, "user-id", "", "User id (defaults to demo-<username>)")
	cmd.Flags().IntVar(&count, "count", 25, "Number of pastes to create")
	cmd.Flags().Int64Var(&seedFlag, "seed", 0, "Random seed (0 picks one)")
	return cmd
}

func newIssueTokenCommand() *cobra.Command {
	var (
		userID   string
		username string
		staff    bool
	)
	cmd := &cobra.Command{
		Use:   "issue-token",
		Short: "Mint a session token for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				return errors.New("--user-id is required")
			}
			appConfig, err := config.Load(viper.GetViper())
			if err != nil {
				return err
			}
			issuer := auth.NewTokenIssuer(auth.TokenIssuerConfig{
				SigningSecret: []byte(appConfig.AuthSigningSecret),
				Issuer:        appConfig.AuthIssuer,
				TokenTTL:      appConfig.TokenTTL,
			})
			claims := auth.SessionClaims{UserID: userID, Username: username}
			if staff {
				claims.UserRoles = []string{auth.RoleStaff}
			}
			token, expiresAt, err := issuer.IssueSessionToken(claims)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires at %s\n", expiresAt.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user-id", "", "Subject of the token")
	cmd.Flags().StringVar(&username, "username", "", "Preferred username claim")
	cmd.Flags().BoolVar(&staff, "staff", false, "Grant the staff role")
	return cmd
}

type application struct {
	config      config.AppConfig
	logger      *zap.Logger
	users       *users.Service
	pastes      *pastes.Service
	blobs       blobstore.Store
	highlighter *highlight.Highlighter
	closers     []func()
}

func (a *application) close() {
	for index := len(a.closers) - 1; index >= 0; index-- {
		a.closers[index]()
	}
}

func openApp(ctx context.Context) (*application, error) {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return nil, err
	}
	result := &application{config: appConfig, logger: logger}
	result.closers = append(result.closers, func() { _ = logger.Sync() })

	db, err := database.Open(appConfig.DatabaseDriver, appConfig.DatabaseDSN, logger)
	if err != nil {
		result.close()
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		result.close()
		return nil, err
	}
	result.closers = append(result.closers, func() { _ = sqlDB.Close() })

	switch appConfig.BlobDriver {
	case config.BlobDriverS3:
		store, err := blobstore.NewS3Store(ctx, appConfig.BlobS3Bucket, appConfig.BlobS3Prefix)
		if err != nil {
			result.close()
			return nil, err
		}
		result.blobs = store
	default:
		store, err := blobstore.NewFileStore(appConfig.BlobRoot)
		if err != nil {
			result.close()
			return nil, err
		}
		result.blobs = store
	}

	var counter hits.Counter = hits.Noop{}
	if appConfig.RedisURL != "" {
		redisCounter, err := hits.NewRedisCounter(appConfig.RedisURL)
		if err != nil {
			result.close()
			return nil, err
		}
		result.closers = append(result.closers, func() { _ = redisCounter.Close() })
		if err := redisCounter.Ping(ctx); err != nil {
			logger.Warn("redis unavailable, hit counters disabled", zap.Error(err))
		} else {
			counter = redisCounter
		}
	}

	result.highlighter = highlight.New(highlight.Config{Style: appConfig.HighlightStyle})

	result.users, err = users.NewService(users.ServiceConfig{
		Database: db,
		Clock:    time.Now,
		Logger:   logger,
	})
	if err != nil {
		result.close()
		return nil, err
	}

	result.pastes, err = pastes.NewService(pastes.ServiceConfig{
		Database:        db,
		Clock:           time.Now,
		IDProvider:      pastes.NewUUIDProvider(),
		Highlighter:     result.highlighter,
		Blobs:           result.blobs,
		Directory:       result.users,
		Hits:            counter,
		Logger:          logger,
		ArchiveLength:   appConfig.ArchiveLength,
		PageSize:        appConfig.PageSize,
		MaxContentBytes: appConfig.MaxPasteBytes,
	})
	if err != nil {
		result.close()
		return nil, err
	}

	return result, nil
}

func runServer(ctx context.Context) error {
	app, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer app.close()
	logger := app.logger
	appConfig := app.config

	validator, err := auth.NewSessionValidator(auth.SessionValidatorConfig{
		SigningSecret: []byte(appConfig.AuthSigningSecret),
		Issuer:        appConfig.AuthIssuer,
		CookieName:    appConfig.AuthCookieName,
	})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Sessions:           validator,
		Users:              app.users,
		PastesService:      app.pastes,
		Blobs:              app.blobs,
		Stylesheet:         app.highlighter,
		MediaBaseURL:       appConfig.BlobPublicBaseURL,
		RateLimitPerMinute: appConfig.RateLimitPerMinute,
		RateLimitBurst:     appConfig.RateLimitBurst,
		TrustProxy:         appConfig.TrustProxy,
		Logger:             logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              appConfig.HTTPAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app.pastes.StartJanitor(signalCtx, appConfig.SweepInterval)

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

// writeSweepReport prints one line per matched paste followed by a summary.
func writeSweepReport(out io.Writer, report pastes.SweepReport) {
	if report.Empty() {
		fmt.Fprintln(out, "No expired pastes to remove.")
		return
	}
	for _, paste := range report.Matched {
		fmt.Fprintf(out, "%s\t%s\t%s\n", paste.ID, paste.ExpirationDate.Format(time.RFC3339), paste.Title)
	}
	if report.DryRun {
		fmt.Fprintf(out, "%d pastes would be removed.\n", len(report.Matched))
		return
	}
	fmt.Fprintf(out, "%d pastes removed.\n", report.Removed)
}
