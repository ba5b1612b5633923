package cmd

import (
	"context"
	"database/sql"
	"io"
	"net"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/letterstack/ms-go-account/app/ai"
	"github.com/letterstack/ms-go-account/app/apperror"
	"github.com/letterstack/ms-go-account/app/controller"
	"github.com/letterstack/ms-go-account/app/middleware"
	"github.com/letterstack/ms-go-account/app/password"
	"github.com/letterstack/ms-go-account/app/ratelimit"
	"github.com/letterstack/ms-go-account/app/repository"
	"github.com/letterstack/ms-go-account/app/service"
	"github.com/letterstack/ms-go-account/app/storage"
	"github.com/letterstack/ms-go-account/app/token"
	"github.com/letterstack/ms-go-account/config"
)

const (
	dbPingAttempts = 3
	dbPingDelay    = 2 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := configureLogging(cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}

	db, err := openDatabase(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	codec, err := token.NewCodec(cfg.JWT.Secret, cfg.JWT.Algorithm)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize token codec")
	}
	hasher := password.NewHasher(cfg.Password.BcryptCost)
	mailer := service.NewSMTPMailer(cfg)

	store, err := storage.NewS3Storage(context.Background(), cfg)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize object storage")
	}

	generator, err := ai.NewClient(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize letter generator")
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
	defer redisClient.Close()
	limiter := ratelimit.NewLimiter(ratelimit.NewRedisStore(redisClient))

	userRepo := repository.NewUserRepository(db)
	cvRepo := repository.NewCVRepository(db)

	authService := service.NewAuthService(userRepo, codec, hasher, mailer, cfg)
	cvService := service.NewCVService(userRepo, cvRepo, store, cfg)
	letterService := service.NewLetterService(cvRepo, store, generator)

	startHTTPServer(cfg, codec, limiter, authService, cvService, letterService)
}

func openDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(1)

	var pingErr error
	for attempt := 1; attempt <= dbPingAttempts; attempt++ {
		if pingErr = db.Ping(); pingErr == nil {
			return db, nil
		}
		logrus.WithError(pingErr).WithField("attempt", attempt).Warn("Database ping failed")
		if attempt < dbPingAttempts {
			time.Sleep(dbPingDelay)
		}
	}
	db.Close()
	return nil, pingErr
}

func configureLogging(cfg *config.Config) error {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		logrus.SetOutput(io.MultiWriter(os.Stdout, f))
	}
	return nil
}

func startHTTPServer(
	cfg *config.Config,
	codec *token.Codec,
	limiter *ratelimit.Limiter,
	authService service.AuthService,
	cvService service.CVService,
	letterService service.LetterService,
) {
	e := echo.New()
	defer e.Close()
	e.HideBanner = true
	e.HTTPErrorHandler = apperror.Handler

	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogRemoteIP:  true,
		LogLatency:   true,
		LogUserAgent: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := logrus.Fields{
				"remote_ip":  v.RemoteIP,
				"host":       v.Host,
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"latency_ns": v.Latency.Nanoseconds(),
				"user_agent": v.UserAgent,
			}
			entry := logrus.WithFields(fields)
			if v.Error != nil {
				entry = entry.WithError(v.Error)
			}
			entry.Info("http_request")
			return nil
		},
	}))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())

	authController := controller.NewAuthController(authService, cfg.JWT.RefreshTTL)
	cvController := controller.NewCVController(cvService)
	letterController := controller.NewLetterController(letterService)
	requireAuth := middleware.RequireAuth(codec)

	limits := cfg.RateLimits
	auth := e.Group("/auth")
	auth.POST("/register", authController.Register,
		limiter.Limit(ratelimit.MustParse(limits.Register), ratelimit.ByRemoteAddr))
	auth.GET("/verify", authController.Verify,
		limiter.Limit(ratelimit.MustParse(limits.Verify), ratelimit.ByQueryParam("token")))
	auth.POST("/resend-verification-token", authController.ResendVerification,
		limiter.Limit(ratelimit.MustParse(limits.Resend), ratelimit.ByRemoteAddr))
	auth.POST("/login", authController.Login,
		limiter.Limit(ratelimit.MustParse(limits.Login), ratelimit.ByRemoteAddr))
	auth.POST("/refresh-token", authController.Refresh,
		limiter.Limit(ratelimit.MustParse(limits.Refresh), ratelimit.ByRemoteAddr))
	auth.POST("/logout", authController.Logout)
	auth.POST("/forgot_password", authController.ForgotPassword,
		limiter.Limit(ratelimit.MustParse(limits.Forgot), ratelimit.ByRemoteAddr))
	auth.POST("/reset_password", authController.ResetPassword,
		limiter.Limit(ratelimit.MustParse(limits.Reset), ratelimit.ByRemoteAddr))

	cv := e.Group("/cv", requireAuth)
	cv.POST("/upload-cv", cvController.Upload,
		limiter.Limit(ratelimit.MustParse(limits.UploadCV), ratelimit.ByRemoteAddr))
	cv.GET("", cvController.List)
	cv.DELETE("/:cv_id", cvController.Delete)

	e.POST("/letter", letterController.Generate, requireAuth,
		limiter.Limit(ratelimit.MustParse(limits.Letter), ratelimit.ByRemoteAddr))

	httpAddr := net.JoinHostPort(cfg.HTTPHost, cfg.HTTPPort)
	logrus.WithField("addr", httpAddr).Info("Starting HTTP server")
	if err := e.Start(httpAddr); err != nil {
		logrus.WithError(err).Fatal("Failed to start HTTP server")
	}
}
