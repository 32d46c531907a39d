package main

import (
	"context"
	"log"
	"net/http"
	"os"
	osignal "os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"

	"github.com/ppcadvisor/bullaware-monitor/internal/advisor"
	"github.com/ppcadvisor/bullaware-monitor/internal/bot"
	"github.com/ppcadvisor/bullaware-monitor/internal/cache"
	"github.com/ppcadvisor/bullaware-monitor/internal/config"
	"github.com/ppcadvisor/bullaware-monitor/internal/consensus"
	"github.com/ppcadvisor/bullaware-monitor/internal/db"
	"github.com/ppcadvisor/bullaware-monitor/internal/handler"
	"github.com/ppcadvisor/bullaware-monitor/internal/job"
	"github.com/ppcadvisor/bullaware-monitor/internal/ml/outcome"
	"github.com/ppcadvisor/bullaware-monitor/internal/provider"
	"github.com/ppcadvisor/bullaware-monitor/internal/repository"
	"github.com/ppcadvisor/bullaware-monitor/internal/scoring"
	"github.com/ppcadvisor/bullaware-monitor/internal/service"
	signalgen "github.com/ppcadvisor/bullaware-monitor/internal/signal"
	"github.com/ppcadvisor/bullaware-monitor/internal/sizing"
	"github.com/ppcadvisor/bullaware-monitor/pkg/tracing"

	_ "github.com/ppcadvisor/bullaware-monitor/docs"
)

var (
	loadEnvFunc             = godotenv.Load
	loadConfigFunc          = config.Load
	initPostgresFunc        = db.InitPostgres
	initRedisFunc           = cache.InitRedis
	initTracerFunc          = tracing.InitTracer
	newTraderRepoFunc       = repository.NewTraderRepository
	newSignalRepoFunc       = repository.NewSignalRepository
	newProfileRepoFunc      = repository.NewProfileRepository
	newConversationRepoFunc = repository.NewConversationRepository
	newMLRepoFunc           = repository.NewMLRepository
	newBullAwareFunc        = func(tracer trace.Tracer, cfg *config.Config) service.TraderDataProvider {
		return provider.NewBullAwareProvider(tracer, cfg.BullAwareAPIKey).
			WithBaseURL(cfg.BullAwareBaseURL).
			WithRetryBackoff(time.Duration(cfg.BullAwareBackoffSecs) * time.Second)
	}
	startRefreshJobFunc    = func(j *job.RefreshJob, ctx context.Context) { go j.Start(ctx) }
	startMLJobFunc         = func(j *job.MLJob, ctx context.Context) { go j.Start(ctx) }
	startTelegramBotFunc   = bot.StartTelegramBot
	newRouterFunc          = gin.Default
	setupSignalNotify      = osignal.Notify
	waitForSignalFunc      = func(quit <-chan os.Signal) { <-quit }
	startHTTPServerFunc    = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFunc = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
)

// @title           BullAware Monitor API
// @version         1.0
// @description     Copy-trading signal service: ranks traders, aggregates consensus signals, and sizes positions.

// @host      localhost:8080
// @BasePath  /
func main() {
	loadEnvFunc()

	cfg := loadConfigFunc()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init Postgres and Redis
	os.Setenv("DATABASE_URL", cfg.DatabaseURL)
	os.Setenv("REDIS_URL", cfg.RedisURL)
	initPostgresFunc(ctx)
	initRedisFunc(ctx)

	// Init tracing
	tp, tracer, err := initTracerFunc(ctx)
	if err != nil {
		log.Fatalf("failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("error shutting down tracer provider: %v", err)
		}
	}()

	// Create repositories and run migrations
	traderRepo := newTraderRepoFunc(db.Pool, tracer)
	signalRepo := newSignalRepoFunc(db.Pool, tracer)
	profileRepo := newProfileRepoFunc(db.Pool, tracer)
	conversationRepo := newConversationRepoFunc(db.Pool, tracer)
	mlRepo := newMLRepoFunc(db.Pool, tracer)
	if db.Pool != nil {
		for _, m := range []interface {
			RunMigrations(context.Context) error
		}{traderRepo, signalRepo, profileRepo, conversationRepo, mlRepo} {
			if err := m.RunMigrations(ctx); err != nil {
				log.Fatalf("failed to run migrations: %v", err)
			}
		}
	}

	// Scoring pipeline: upstream provider, metric derivation, anomaly screen
	bullAware := newBullAwareFunc(tracer, cfg)
	var derivation scoring.Derivation = scoring.ProxyDerivation{}
	useHistory := false
	if cfg.DerivationMode == "historical" {
		derivation = scoring.HistoricalDerivation{}
		useHistory = true
	}
	var screen service.MetricsScreen
	if cfg.AnomalyEnabled {
		screen = scoring.NewAnomalyScreen(tracer, cfg.AnomalyThreshold)
	}

	traderService := service.NewTraderService(tracer, bullAware, traderRepo, scoring.NewScorer(tracer), derivation, screen, useHistory)
	signalService := service.NewSignalService(tracer, traderRepo, consensus.NewAggregator(tracer), signalgen.NewGenerator(tracer), signalRepo)

	marketData := provider.NewMarketDataProvider(tracer)
	recommendationService := service.NewRecommendationService(
		tracer, signalRepo, traderRepo, profileRepo, marketData,
		sizing.NewSizer(tracer), consensus.NewBreakdownBuilder(tracer),
	)
	profileService := service.NewProfileService(tracer, profileRepo, marketData)

	// Background jobs
	refreshJob := job.NewRefreshJob(tracer, traderService, signalService, cfg.RefreshIntervalSecs, cfg.SignalIntervalSecs, cfg.RosterLimit)
	startRefreshJobFunc(refreshJob, ctx)

	var outcomeScorer handler.OutcomeScorer
	if cfg.MLEnabled {
		outcomeService := outcome.NewService(tracer, mlRepo, signalService, marketData, cfg.MLMinTrainSamples)
		outcomeScorer = outcomeService
		startMLJobFunc(job.NewMLJob(tracer, outcomeService, cfg.MLTrainHourUTC), ctx)
	}

	// LLM advisor, optional
	var advisorService *advisor.AdvisorService
	if cfg.OpenAIAPIKey != "" {
		llm := advisor.NewOpenAIClient(cfg.OpenAIAPIKey)
		advisorService = advisor.NewAdvisorService(tracer, llm, signalService, traderService, conversationRepo, cfg.OpenAIModel, cfg.AdvisorMaxHistory)
	}

	// Start Telegram bot
	os.Setenv("TELEGRAM_BOT_TOKEN", cfg.TelegramBotToken)
	startTelegramBotFunc(signalService, traderService, recommendationService, advisorService)

	// Create handlers and routes
	h := handler.New(tracer, traderService, signalService, recommendationService, profileService, outcomeScorer)

	r := newRouterFunc()
	r.Use(otelgin.Middleware("bullaware-monitor"))

	h.RegisterRoutes(r, cfg.APIKey)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    ":8080",
		Handler: r,
	}

	go func() {
		if err := startHTTPServerFunc(srv); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	log.Println("Shutting down server...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPServerFunc(srv, shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
