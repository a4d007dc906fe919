package main

import (
	"flag"
	"os"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/handyhub/identity/adapters/directory"
	"github.com/handyhub/identity/adapters/events"
	"github.com/handyhub/identity/adapters/store"
	"github.com/handyhub/identity/adapters/tokenizer"
	"github.com/handyhub/identity/internal/config"
	"github.com/handyhub/identity/internal/secrets"
	"github.com/handyhub/identity/service"
	transport "github.com/handyhub/identity/transport/http"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	configPath := flag.String("config", "", "path to TOML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		boot := zerolog.New(os.Stderr)
		boot.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := newLogger(cfg.Logging.Level)

	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to parse redis URL")
	}
	redisClient := redis.NewClient(opts)

	publisher, err := redisstream.NewPublisher(
		redisstream.PublisherConfig{Client: redisClient},
		watermill.NewStdLogger(false, false),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}

	hasher := secrets.NewHasher(cfg.Tokens.Pepper)
	codec := tokenizer.NewJWTTokenizer(cfg.Tokens.SigningSecret)
	eventPub := events.NewWatermillPublisher(publisher)
	dir := directory.NewRedisDirectory(redisClient)

	authService := service.NewAuthService(
		codec,
		store.NewRedisCredentialStore(redisClient),
		dir,
		eventPub,
		hasher,
		service.AuthConfig{
			AccessTTL:  cfg.Tokens.GetAccessTTL(),
			RefreshTTL: cfg.Tokens.GetRefreshTTL(),
		},
		log,
	)

	otpService := service.NewOtpService(
		store.NewRedisChallengeStore(redisClient),
		eventPub,
		hasher,
		service.OtpConfig{
			TTL:         cfg.Otp.GetTTL(),
			Digits:      cfg.Otp.Digits,
			MaxAttempts: cfg.Otp.MaxAttempts,
		},
		log,
	)

	limiter := service.NewRateLimiter(
		store.NewRedisRateStore(redisClient),
		map[string]service.RatePolicy{
			service.OpOtpRequest: {
				Limit:  cfg.RateLimits.OtpRequest.Limit,
				Window: cfg.RateLimits.OtpRequest.GetWindow(0),
			},
			service.OpOtpVerify: {
				Limit:  cfg.RateLimits.OtpVerify.Limit,
				Window: cfg.RateLimits.OtpVerify.GetWindow(0),
			},
			service.OpRefresh: {
				Limit:  cfg.RateLimits.Refresh.Limit,
				Window: cfg.RateLimits.Refresh.GetWindow(0),
			},
		},
		log,
	)

	cookies := transport.CookieWriter{Secure: cfg.Environment == "production"}
	handlers := transport.NewAuthHandlers(authService, otpService, limiter, dir, cookies, cfg.Otp.DemoMode)
	router := transport.SetupRouter(handlers, authService, cookies)

	log.Info().Str("addr", cfg.Server.Addr).Str("env", cfg.Environment).Msg("identityd listening")
	if err := router.Run(cfg.Server.Addr); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
}
