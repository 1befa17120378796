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

	"github.com/redis/go-redis/v9"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/config"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/events"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/ledger"
	ledgerrepo "github.com/ovaphlow/pitchfork/service-auth-go/internal/ledger/repo"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/router"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/token"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/user"
	userrepo "github.com/ovaphlow/pitchfork/service-auth-go/internal/user/repo"
	"github.com/ovaphlow/pitchfork/service-auth-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-auth-go/pkg/utilities"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	lg, err := utilities.Init(utilities.ConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()

	sugar := lg.Sugar()
	sugar.Info("starting service-auth-go")

	// a short secret is a misconfiguration: refuse to start
	codec, err := token.NewCodec(token.Config{
		Secret:     cfg.JWTSecret,
		Issuer:     cfg.JWTIssuer,
		AccessTTL:  cfg.AccessTTL(),
		RefreshTTL: cfg.RefreshTTL(),
		Logger:     sugar.Named("token"),
	})
	if err != nil {
		sugar.Fatalf("token codec: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(ctx, cfg.Database())
	if err != nil {
		sugar.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(ctx, db.DB); err != nil {
		sugar.Fatalf("db migrate: %v", err)
	}

	var refreshLedger ledger.Ledger
	switch cfg.LedgerBackend {
	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			sugar.Fatalf("redis ping: %v", err)
		}
		refreshLedger = ledgerrepo.NewRedisRepo(rdb, cfg.RedisPrefix, cfg.LedgerRetention())
	default:
		refreshLedger = ledgerrepo.NewRefreshRepo(db)
	}
	sugar.Infow("refresh ledger ready", "backend", cfg.LedgerBackend)

	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		sugar.Infow("security events enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}
	defer publisher.Close()

	users := userrepo.NewUserRepo(db)
	hasher := user.BcryptHasher{Cost: 12}
	userSvc := user.NewService(users, hasher, sugar.Named("user"))
	if _, err := userSvc.EnsureBootstrapAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		sugar.Fatalf("bootstrap admin: %v", err)
	}

	authSvc := auth.NewService(auth.Deps{
		Store:  users,
		Ledger: refreshLedger,
		Codec:  codec,
		Hasher: hasher,
		Cookies: auth.CookieConfig{
			Name:     cfg.RefreshCookieName,
			HTTPOnly: cfg.CookieHTTPOnly,
			Secure:   cfg.CookieSecure,
			Domain:   cfg.CookieDomain,
			SameSite: cfg.SameSite(),
		},
		Events: publisher,
		Logger: sugar.Named("auth"),
	})

	handler := router.RegisterRoutes(sugar, router.Deps{
		Auth:   auth.NewHandler(authSvc, userSvc, cfg.RefreshCookieName, sugar.Named("auth")),
		Users:  user.NewHandler(userSvc, sugar.Named("user")),
		Guard:  auth.NewGuard(codec, users, sugar.Named("guard")),
		Health: db.PingContext,
	})
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugar.Fatalf("http server failed: %v", err)
		}
	}()
	sugar.Infow("service is running; press Ctrl+C to stop", "addr", cfg.HTTPAddr)

	<-ctx.Done()

	sugar.Info("shutting down")

	// give a short grace period for in-flight requests
	doneCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}

	sugar.Info("goodbye")
}
