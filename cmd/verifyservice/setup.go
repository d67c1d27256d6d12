package main

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"log/slog"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/nats-io/nats.go"
	"github.com/twilio/twilio-go"

	"github.com/aelexs/phone-verify-service/internal/auth"
	"github.com/aelexs/phone-verify-service/internal/config"
	"github.com/aelexs/phone-verify-service/internal/domain"
	"github.com/aelexs/phone-verify-service/internal/dynamo"
	"github.com/aelexs/phone-verify-service/internal/ratelimit"
	"github.com/aelexs/phone-verify-service/internal/redis"
	"github.com/aelexs/phone-verify-service/internal/sender"
	"github.com/aelexs/phone-verify-service/internal/server"
	"github.com/aelexs/phone-verify-service/internal/verify/app"
	"github.com/aelexs/phone-verify-service/internal/verify/notify"
	"github.com/aelexs/phone-verify-service/internal/verify/port"
	"github.com/aelexs/phone-verify-service/internal/verify/store"
)

// handleKeyID is the static key identifier used to sign delegated-adapter
// handles. Production rotation is out of scope.
const handleKeyID = "verify-key-001"

// jwtIssuer names this service as the issuer of signed handles.
const jwtIssuer = "phone-verify-service"

// setup is the verification service composition root. It creates
// infrastructure clients, sender adapters, the rate limiter engine, the
// orchestrator, and registers the HTTP wire port.
func setup(ctx context.Context, deps server.SetupDeps) (func(context.Context) error, error) {
	cfg := deps.Config
	logger := deps.Logger
	clock := domain.RealClock{}

	dynamoClient, err := dynamo.NewClient(ctx, dynamo.Config{
		Endpoint: cfg.DynamoDB.Endpoint,
		Region:   cfg.AWS.Region,
		Timeout:  cfg.DynamoDB.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("verifyservice setup: create dynamo client: %w", err)
	}
	sessionStore := store.NewDynamoStore(dynamoClient.DB, cfg.DynamoDB.Table, clock)

	limiterEngine, closeRedis, err := createLimiterEngine(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("verifyservice setup: create rate limiter: %w", err)
	}
	limiters := ratelimit.NewLimiters(limiterEngine)

	registry, err := createSenderRegistry(ctx, cfg, clock, logger)
	if err != nil {
		return nil, fmt.Errorf("verifyservice setup: create sender registry: %w", err)
	}

	publisher, closePublisher, err := createPublisher(cfg)
	if err != nil {
		return nil, fmt.Errorf("verifyservice setup: create completion publisher: %w", err)
	}

	pool := sender.NewPool(cfg.Verify.SenderPoolSize)

	svc := app.NewService(app.ServiceConfig{
		Store:      sessionStore,
		Limiters:   limiters,
		Registry:   registry,
		Routing:    sender.RoutingTable{Default: defaultSenderName(cfg)},
		Pool:       pool,
		Clock:      clock,
		Logger:     logger,
		Publisher:  publisher,
		DefaultTTL: cfg.Verify.DefaultTTL,
	})

	handler := port.NewHandler(svc)
	handler.Register(deps.HTTPMux)

	logger.InfoContext(ctx, "verify service initialized", slog.Bool("local", cfg.IsLocal()))

	cleanup := func(_ context.Context) error {
		svc.Wait()
		if closeRedis != nil {
			closeRedis()
		}
		if closePublisher != nil {
			closePublisher()
		}
		return nil
	}

	return cleanup, nil
}

// createLimiterEngine returns the Redis-backed engine unless the
// environment is local and no Redis address is configured; that case gets
// the all-allow NoopEngine, which avoids a hard Redis dependency for quick
// iteration.
func createLimiterEngine(ctx context.Context, cfg *config.Config) (ratelimit.Engine, func(), error) {
	if cfg.IsLocal() && cfg.Redis.Addr == "" {
		return ratelimit.NewNoopEngine(), nil, nil
	}

	redisClient := redis.NewClient(redis.Config{
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		ReadTimeout:  cfg.Redis.Timeout,
		WriteTimeout: cfg.Redis.Timeout,
	})
	return ratelimit.NewRedisEngine(redisClient.RDB), func() { redisClient.Close() }, nil
}

// createSenderRegistry builds the sender adapter pool. Local development
// without a Twilio account SID gets the synthetic last-digits adapter so
// integration tests never need a real SMS or Twilio round-trip; every other
// case wires SNS (code generated and checked here) and Twilio Verify
// (delegated to Twilio) side by side, exactly as spec §4.3 names them.
func createSenderRegistry(ctx context.Context, cfg *config.Config, clock domain.Clock, logger *slog.Logger) (*sender.Registry, error) {
	if cfg.IsLocal() && cfg.Twilio.AccountSID == "" {
		logger.Info("using last-digits sender adapter for local development")
		return sender.NewRegistry(sender.NewLastDigitsAdapter(cfg.Verify.DefaultTTL)), nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	snsClient := sns.NewFromConfig(awsCfg)
	snsAdapter := sender.NewSNSAdapter(snsClient, cfg.Verify.DefaultTTL)

	keyStore := auth.NewStaticKeyStore(generateDevKey(), handleKeyID)
	minter := auth.NewHandleMinter(auth.HandleMinterConfig{KeyStore: keyStore, Issuer: jwtIssuer, Clock: clock})
	validator := auth.NewHandleValidator(auth.HandleValidatorConfig{KeyStore: keyStore, Issuer: jwtIssuer, Clock: clock})

	twilioClient := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.Twilio.AccountSID,
		Password: cfg.Twilio.AuthToken,
	})
	twilioAdapter := sender.NewTwilioVerifyAdapter(sender.TwilioVerifyAdapterConfig{
		Client:     twilioClient.VerifyV2,
		ServiceSID: cfg.Twilio.ServiceSID,
		Minter:     minter,
		Validator:  validator,
		Clock:      clock,
		SessionTTL: cfg.Verify.DefaultTTL,
	})

	return sender.NewRegistry(snsAdapter, twilioAdapter), nil
}

// generateDevKey mints an ephemeral RSA key for signing delegated-adapter
// handles. Production key management (rotation, Secrets Manager-backed
// storage) is a follow-up; StaticKeyStore accepts any *rsa.PrivateKey.
func generateDevKey() *rsa.PrivateKey {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		panic(fmt.Sprintf("generate handle signing key: %v", err))
	}
	return key
}

// defaultSenderName picks the routing table's fallback adapter to match
// whichever registry createSenderRegistry actually built.
func defaultSenderName(cfg *config.Config) string {
	if cfg.IsLocal() && cfg.Twilio.AccountSID == "" {
		return "last-digits"
	}
	return "sns"
}

// createPublisher connects the NATS completion-record publisher when a URL
// is configured; an empty URL disables the fan-out entirely (nil
// CompletionPublisher is a valid no-op per app.ServiceConfig).
func createPublisher(cfg *config.Config) (app.CompletionPublisher, func(), error) {
	if cfg.NATS.URL == "" {
		return nil, nil, nil
	}

	conn, err := nats.Connect(cfg.NATS.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect nats: %w", err)
	}
	return notify.NewPublisher(conn), conn.Close, nil
}
