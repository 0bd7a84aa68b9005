package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-otp-stream/internal/application/auth"
	"github.com/go-otp-stream/internal/application/dispatch"
	"github.com/go-otp-stream/internal/application/eventbus"
	"github.com/go-otp-stream/internal/application/notification"
	"github.com/go-otp-stream/internal/application/verification"
	"github.com/go-otp-stream/internal/config"
	"github.com/go-otp-stream/internal/infrastructure/dynamo"
	jwtinfra "github.com/go-otp-stream/internal/infrastructure/jwt"
	"github.com/go-otp-stream/internal/infrastructure/memory"
	natsinfra "github.com/go-otp-stream/internal/infrastructure/nats"
	redisinfra "github.com/go-otp-stream/internal/infrastructure/redis"
	"github.com/go-otp-stream/internal/infrastructure/smtp"
	"github.com/go-otp-stream/internal/infrastructure/sns"
	"github.com/go-otp-stream/internal/infrastructure/voice"
	"github.com/go-otp-stream/internal/pkg/otp"
	transporthttp "github.com/go-otp-stream/internal/transport/http"
	"github.com/go-otp-stream/internal/transport/http/handler"
	appmiddleware "github.com/go-otp-stream/internal/transport/http/middleware"
	"github.com/joho/godotenv"
	"golang.org/x/time/rate"
)

func main() {
	envErr := godotenv.Load()
	cfg := config.Load()
	slog.SetDefault(newLogger(cfg.LogLevel))
	if envErr != nil {
		slog.Info("no .env file found, reading from environment")
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	if cfg.UsesDefaultPepper() {
		slog.Warn("OTP_CODE_PEPPER is the development default; set it before deploying", "env", cfg.AppEnv)
	}

	ctx := context.Background()
	checks := map[string]handler.Check{}

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient, err := dynamo.NewClient(ctx, cfg)
	if err != nil {
		slog.Error("dynamodb client", "err", err)
		os.Exit(1)
	}
	dynamo.Bootstrap(ctx, dynamoClient, cfg.DynamoTables)
	userRepo := dynamo.NewUserRepo(dynamoClient, cfg.DynamoTables.Users)
	notificationRepo := dynamo.NewNotificationRepo(dynamoClient, cfg.DynamoTables.Notifications)

	codeStore, err := newCodeStore(ctx, cfg, dynamoClient, checks)
	if err != nil {
		slog.Error("ttl store", "backend", cfg.TTLStore, "err", err)
		os.Exit(1)
	}

	codes := verification.NewManager(verification.ManagerDeps{
		Store:     codeStore,
		Generator: otp.NewGenerator(cfg.Verification.CodeLength),
		Hasher:    otp.NewHasher(cfg.Verification.CodePepper),
	})

	// JWT verifier (optional: authenticated routes reject every request without it).
	var verifier *jwtinfra.Verifier
	if v, err := jwtinfra.NewVerifier(cfg); err == nil {
		verifier = v
	} else {
		slog.Warn("jwt verifier not available", "err", err)
	}

	mailer := smtp.NewMailer(cfg)

	smsSender, err := sns.NewSender(ctx, cfg)
	if err != nil {
		slog.Error("sns sender", "err", err)
		os.Exit(1)
	}

	// Voice is optional: without an origination identity calls are skipped.
	voiceCaller, err := voice.NewCaller(ctx, cfg)
	if err != nil {
		slog.Warn("voice caller not available", "err", err)
	}

	overflow, err := eventbus.ParseOverflowPolicy(cfg.Stream.OverflowPolicy)
	if err != nil {
		slog.Error("stream overflow policy", "err", err)
		os.Exit(1)
	}
	bus := eventbus.New(eventbus.Options{BufferSize: cfg.Stream.BufferSize, Overflow: overflow})

	dispatchDeps := dispatch.Deps{
		Bus:         bus,
		Contacts:    userRepo,
		Email:       mailer,
		SMS:         smsSender,
		SendTimeout: cfg.SenderTimeout,
		OnReport: func(rep dispatch.Report) {
			if err := rep.Err(); err != nil {
				slog.Warn("out-of-band delivery incomplete", "event_id", rep.EventID, "principal_id", rep.PrincipalID, "err", err)
			}
		},
	}
	authDeps := auth.ServiceDeps{
		Codes:  codes,
		Users:  userRepo,
		Mailer: mailer,
		SMS:    smsSender,
		TTLs: auth.TTLs{
			Email:         cfg.Verification.EmailTTL,
			Phone:         cfg.Verification.PhoneTTL,
			PasswordReset: cfg.Verification.PasswordResetTTL,
		},
	}
	if voiceCaller != nil {
		dispatchDeps.Voice = voiceCaller
		authDeps.Voice = voiceCaller
	}
	dispatcher := dispatch.New(dispatchDeps)

	authSvc := auth.NewService(authDeps)
	notifSvc := notification.NewService(notification.ServiceDeps{
		Repo:       notificationRepo,
		Dispatcher: dispatcher,
	})

	var consumer *natsinfra.Consumer
	if cfg.NATSURL != "" {
		consumer, err = natsinfra.Connect(cfg.NATSURL, notifSvc, cfg.SenderTimeout)
		if err != nil {
			slog.Error("nats connect", "url", cfg.NATSURL, "err", err)
			os.Exit(1)
		}
		if err := consumer.Start(cfg.NATSSubject, cfg.NATSQueue); err != nil {
			slog.Error("nats subscribe", "subject", cfg.NATSSubject, "err", err)
			os.Exit(1)
		}
		checks["nats"] = func(context.Context) error {
			if !consumer.IsConnected() {
				return errors.New("not connected")
			}
			return nil
		}
	}

	// 5 requests/second, burst of 10
	limiter := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	router := transporthttp.NewRouter(cfg, &transporthttp.Deps{
		AuthService:         authSvc,
		NotificationService: notifSvc,
		Bus:                 bus,
		Verifier:            verifier,
		Limiter:             limiter,
		HealthChecks:        checks,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.AppPort, "env", cfg.AppEnv, "ttl_store", cfg.TTLStore)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// stop intake first so nothing new reaches the bus
	if consumer != nil {
		if err := consumer.Drain(shutdownCtx); err != nil {
			slog.Warn("nats drain", "err", err)
		}
	}
	// live streams end here, which lets Shutdown finish without waiting on them
	bus.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "err", err)
	}
	dispatcher.Close()
	limiter.Stop()
	slog.Info("server stopped")
}

// newCodeStore picks the verification code backend and registers its readiness check.
func newCodeStore(ctx context.Context, cfg *config.Config, dynamoClient dynamo.API, checks map[string]handler.Check) (verification.CodeStore, error) {
	switch cfg.TTLStore {
	case "dynamo":
		return dynamo.NewCodeStore(dynamoClient, cfg.DynamoTables.VerificationCodes), nil
	case "redis":
		store := redisinfra.NewCodeStore(redisinfra.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB))
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := store.Ping(pingCtx); err != nil {
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		checks["redis"] = store.Ping
		return store, nil
	case "memory":
		slog.Warn("using in-process code store; codes do not survive restarts or span replicas")
		return memory.NewStore(), nil
	default:
		return nil, fmt.Errorf("unknown TTL_STORE %q", cfg.TTLStore)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
