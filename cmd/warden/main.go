package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/layer-3/warden/adapters/events"
	"github.com/layer-3/warden/adapters/keys"
	"github.com/layer-3/warden/adapters/store"
	"github.com/layer-3/warden/adapters/tokenizer"
	"github.com/layer-3/warden/internal/config"
	"github.com/layer-3/warden/ports"
	"github.com/layer-3/warden/service"
	httptransport "github.com/layer-3/warden/transport/http"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatalf("warden: %v", err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:   "warden",
		Usage:  "issue and verify RS256 session tokens",
		Flags:  config.Flags(),
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:  "keygen",
				Usage: "generate key pairs and print them as environment variables",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "bits", Value: keys.DefaultKeyBits, Usage: "RSA modulus size"},
				},
				Action: keygen,
			},
		},
	}
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	if cfg.Development() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func serve(c *cli.Context) error {
	cfg, err := config.FromContext(c)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	// Missing or broken key material must stop the process before it serves traffic
	keySet, err := keys.FromEnv()
	if err != nil {
		return err
	}

	tok, err := tokenizer.NewJWTTokenizer(keySet, cfg.Issuer, tokenizer.WithLogger(logger.Named("tokenizer")))
	if err != nil {
		return err
	}

	users, publisher, cleanup, err := newBackends(c.Context, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	authService := service.NewAuthService(
		tok,
		users,
		events.NewWatermillPublisher(publisher, cfg.EventsTopic),
		service.Config{
			AccessTTL:         cfg.AccessTTL,
			RefreshTTL:        cfg.RefreshTTL,
			RefreshChecksUser: cfg.RefreshChecksUser,
		},
		service.WithLogger(logger.Named("auth")),
	)

	router := httptransport.SetupRouter(authService, httptransport.CookieConfig{
		Secure: cfg.CookieSecure,
		Domain: cfg.CookieDomain,
	}, logger.Named("http"))

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server started", zap.String("addr", cfg.Addr), zap.String("env", cfg.Environment))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server stopped: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

// newBackends wires user storage and the event transport. With a redis URL
// both share one client, otherwise everything stays in process memory.
func newBackends(ctx context.Context, cfg config.Config, logger *zap.Logger) (ports.UserRepository, message.Publisher, func(), error) {
	wmLogger := events.NewZapLogger(logger.Named("events"))

	if cfg.RedisURL == "" {
		logger.Warn("no redis configured, users and events are kept in memory")
		pubSub := gochannel.NewGoChannel(gochannel.Config{}, wmLogger)
		return store.NewMemoryUserRepository(), pubSub, func() { _ = pubSub.Close() }, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	publisher, err := redisstream.NewPublisher(
		redisstream.PublisherConfig{
			Client: client,
		},
		wmLogger,
	)
	if err != nil {
		_ = client.Close()
		return nil, nil, nil, fmt.Errorf("failed to create redis publisher: %w", err)
	}

	cleanup := func() {
		if err := publisher.Close(); err != nil {
			logger.Warn("failed to close publisher", zap.Error(err))
		}
		if err := client.Close(); err != nil {
			logger.Warn("failed to close redis client", zap.Error(err))
		}
	}

	return store.NewRedisUserRepository(client), publisher, cleanup, nil
}

func keygen(c *cli.Context) error {
	env, err := keys.Generate(c.Int("bits"))
	if err != nil {
		return err
	}

	names := make([]string, 0, len(env))
	for name := range env {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		fmt.Fprintf(c.App.Writer, "%s=%s\n", name, env[name])
	}
	return nil
}
