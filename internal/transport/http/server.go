package http

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"inkwell/internal/config"
	"inkwell/internal/database"
	"inkwell/internal/email"
	"inkwell/internal/handler"
	"inkwell/internal/httputil"
	"inkwell/internal/logging"
	"inkwell/internal/redis"
	"inkwell/internal/repository"
	"inkwell/internal/service"
	authmw "inkwell/internal/transport/http/middleware"
)

const shutdownTimeout = 10 * time.Second

func Run() error {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logging.Setup(cfg)
	httputil.SetDevelopment(!cfg.IsProduction())

	// 2. Connect to Database and apply migrations
	db, err := database.Connect(cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	// 3. Optional infrastructure
	ctx := context.Background()

	var counter authmw.Counter
	if cfg.RedisURL != "" {
		rdb, err := redis.NewClient(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to create redis client: %w", err)
		}
		defer rdb.Close()

		if err := rdb.Ping(ctx); err != nil {
			log.WithError(err).Warn("[Server] Redis unreachable, rate limits are per process")
		} else {
			counter = rdb
		}
	}

	var media *service.MediaService
	if cfg.MediaConfigured() {
		media, err = service.NewMediaService(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to init media service: %w", err)
		}
	} else {
		log.Warn("[Server] R2 is not configured, image uploads are disabled")
	}

	mailer, err := email.NewMailer(cfg)
	if err != nil {
		return fmt.Errorf("failed to init mailer: %w", err)
	}

	// 4. Wire repositories, services and handlers
	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	notifRepo := repository.NewNotificationRepository(db)

	tokenService := service.NewTokenService(cfg)
	authService := service.NewAuthService(userRepo, tokenService, mailer, cfg)
	userService := service.NewUserService(userRepo, media)
	notifService := service.NewNotificationService(notifRepo)
	commentService := service.NewCommentService(commentRepo, postRepo, userRepo, notifService)
	postService := service.NewPostService(postRepo, userRepo, commentService, notifService, media)

	router := NewRouter(RouterConfig{
		AuthHandler:         handler.NewAuthHandler(authService, cfg),
		UserHandler:         handler.NewUserHandler(userService, authService),
		PostHandler:         handler.NewPostHandler(postService),
		CommentHandler:      handler.NewCommentHandler(commentService),
		NotificationHandler: handler.NewNotificationHandler(notifService),
		Authenticator:       authService,
		AuthLimiter:         authmw.NewRateLimiter(counter, cfg.AuthRateLimit, cfg.AuthRateWindow),
		FrontendURL:         cfg.FrontendURL,
	})

	// 5. Serve until SIGINT/SIGTERM
	srv := &stdhttp.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(log.Fields{"port": cfg.ServerPort, "env": cfg.Env}).Info("[Server] Listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sig)

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case s := <-sig:
		log.WithField("signal", s.String()).Info("[Server] Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}
