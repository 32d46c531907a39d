package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	osignal "os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/trace"

	"github.com/ppcadvisor/bullaware-monitor/internal/cache"
	"github.com/ppcadvisor/bullaware-monitor/internal/config"
	"github.com/ppcadvisor/bullaware-monitor/internal/consensus"
	"github.com/ppcadvisor/bullaware-monitor/internal/db"
	"github.com/ppcadvisor/bullaware-monitor/internal/domain"
	"github.com/ppcadvisor/bullaware-monitor/internal/provider"
	"github.com/ppcadvisor/bullaware-monitor/internal/repository"
	"github.com/ppcadvisor/bullaware-monitor/internal/scoring"
	"github.com/ppcadvisor/bullaware-monitor/internal/service"
	"github.com/ppcadvisor/bullaware-monitor/internal/sizing"
	"github.com/ppcadvisor/bullaware-monitor/pkg/tracing"
)

var (
	loadEnvFunc      = godotenv.Load
	loadConfigFunc   = config.Load
	initPostgresFunc = db.InitPostgres
	initRedisFunc    = cache.InitRedis
	initTracerFunc   = tracing.InitTracer
	runStdioFunc     = func(ctx context.Context, server *mcp.Server) error {
		return server.Run(ctx, &mcp.StdioTransport{})
	}
	startHTTPServerFunc    = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFunc = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
	setupSignalNotify      = osignal.Notify
	waitForSignalFunc      = func(quit <-chan os.Signal) { <-quit }
)

type toolDeps struct {
	traders         *service.TraderService
	signals         *service.SignalService
	recommendations *service.RecommendationService
	timeout         time.Duration
}

type signalsArgs struct {
	Strategy string `json:"strategy,omitempty" jsonschema:"day_trading, long_term, or empty for both"`
}

type topTradersArgs struct {
	Type  string `json:"type,omitempty" jsonschema:"day_trader or long_term, defaults to long_term"`
	Limit int    `json:"limit,omitempty" jsonschema:"max traders to return, defaults to 10"`
}

type traderArgs struct {
	Username string `json:"username" jsonschema:"trader username"`
}

type analysisArgs struct {
	Instrument string `json:"instrument" jsonschema:"ticker symbol, e.g. AAPL"`
}

type recommendationsArgs struct {
	UserID   int64  `json:"user_id" jsonschema:"profile id whose capital bounds the sizing"`
	Strategy string `json:"strategy,omitempty" jsonschema:"day_trading, long_term, or empty for both"`
}

func main() {
	loadEnvFunc()

	cfg := loadConfigFunc()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	os.Setenv("DATABASE_URL", cfg.DatabaseURL)
	os.Setenv("REDIS_URL", cfg.RedisURL)
	initPostgresFunc(ctx)
	initRedisFunc(ctx)

	tp, tracer, err := initTracerFunc(ctx)
	if err != nil {
		log.Fatalf("failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("error shutting down tracer provider: %v", err)
		}
	}()

	deps := buildDeps(tracer, cfg)
	server := buildServer(deps)

	if cfg.MCPTransport == "http" || cfg.MCPHTTPEnabled {
		serveHTTP(ctx, cancel, server, cfg)
		return
	}

	if err := runStdioFunc(ctx, server); err != nil {
		log.Fatalf("mcp stdio server: %v", err)
	}
}

func buildDeps(tracer trace.Tracer, cfg *config.Config) toolDeps {
	traderRepo := repository.NewTraderRepository(db.Pool, tracer)
	signalRepo := repository.NewSignalRepository(db.Pool, tracer)
	profileRepo := repository.NewProfileRepository(db.Pool, tracer)
	marketData := provider.NewMarketDataProvider(tracer)

	traderService := service.NewTraderService(tracer, nil, traderRepo, scoring.NewScorer(tracer), scoring.ProxyDerivation{}, nil, false)
	signalService := service.NewSignalService(tracer, traderRepo, nil, nil, signalRepo)
	recommendationService := service.NewRecommendationService(
		tracer, signalRepo, traderRepo, profileRepo, marketData,
		sizing.NewSizer(tracer), consensus.NewBreakdownBuilder(tracer),
	)

	timeout := time.Duration(cfg.MCPRequestTimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return toolDeps{
		traders:         traderService,
		signals:         signalService,
		recommendations: recommendationService,
		timeout:         timeout,
	}
}

func buildServer(deps toolDeps) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "bullaware-monitor", Version: "1.0.0"}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_active_signals",
		Description: "List live consensus trading signals, optionally filtered by strategy",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args signalsArgs) (*mcp.CallToolResult, any, error) {
		ctx, cancel := context.WithTimeout(ctx, deps.timeout)
		defer cancel()
		signals, err := deps.signals.GetActiveSignals(ctx, domain.StrategyType(args.Strategy))
		if err != nil {
			return nil, nil, err
		}
		return jsonResult(map[string]any{"count": len(signals), "signals": signals})
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_top_traders",
		Description: "Rank traders by risk-adjusted score within a trader type",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args topTradersArgs) (*mcp.CallToolResult, any, error) {
		ctx, cancel := context.WithTimeout(ctx, deps.timeout)
		defer cancel()
		traderType := domain.TraderTypeLongTerm
		if args.Type != "" {
			traderType = domain.TraderType(args.Type)
		}
		limit := args.Limit
		if limit <= 0 {
			limit = 10
		}
		traders, err := deps.traders.GetTopTraders(ctx, traderType, limit)
		if err != nil {
			return nil, nil, err
		}
		return jsonResult(map[string]any{"count": len(traders), "traders": traders})
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_trader",
		Description: "Fetch one trader's score, rank, and open positions",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args traderArgs) (*mcp.CallToolResult, any, error) {
		ctx, cancel := context.WithTimeout(ctx, deps.timeout)
		defer cancel()
		trader, err := deps.traders.GetTrader(ctx, args.Username)
		if err != nil {
			return nil, nil, err
		}
		if trader == nil {
			return nil, nil, fmt.Errorf("trader %q not found", args.Username)
		}
		return jsonResult(trader)
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_recommendations",
		Description: "Personalized, capital-sized recommendations for a user profile",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args recommendationsArgs) (*mcp.CallToolResult, any, error) {
		ctx, cancel := context.WithTimeout(ctx, deps.timeout)
		defer cancel()
		if args.UserID <= 0 {
			return nil, nil, fmt.Errorf("user_id must be positive")
		}
		recs, err := deps.recommendations.ForUser(ctx, args.UserID, domain.StrategyType(args.Strategy))
		if err != nil {
			return nil, nil, err
		}
		return jsonResult(map[string]any{"count": len(recs), "recommendations": recs})
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_instrument_analysis",
		Description: "Break down the long/short consensus split for one instrument",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args analysisArgs) (*mcp.CallToolResult, any, error) {
		ctx, cancel := context.WithTimeout(ctx, deps.timeout)
		defer cancel()
		instrument := strings.ToUpper(strings.TrimSpace(args.Instrument))
		breakdown, err := deps.recommendations.InstrumentBreakdown(ctx, instrument)
		if err != nil {
			return nil, nil, err
		}
		if breakdown == nil {
			return nil, nil, fmt.Errorf("not enough traders hold %s for analysis", instrument)
		}
		return jsonResult(breakdown)
	})

	return server
}

func jsonResult(v any) (*mcp.CallToolResult, any, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, nil, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(payload)}},
	}, nil, nil
}

func serveHTTP(ctx context.Context, cancel context.CancelFunc, server *mcp.Server, cfg *config.Config) {
	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return server }, nil)

	mux := http.NewServeMux()
	mux.Handle("/mcp", bearerAuth(handler, cfg.MCPAuthToken))

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.MCPHTTPBind, cfg.MCPHTTPPort),
		Handler: mux,
	}

	go func() {
		log.Printf("MCP server listening on %s", srv.Addr)
		if err := startHTTPServerFunc(srv); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	log.Println("Shutting down MCP server...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPServerFunc(srv, shutdownCtx); err != nil {
		log.Fatal("MCP server forced to shutdown:", err)
	}
}

// bearerAuth rejects requests without the configured token. An empty token
// disables the check, for local stdio-adjacent setups behind a firewall.
func bearerAuth(next http.Handler, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}
		auth := r.Header.Get("Authorization")
		if auth != "Bearer "+token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
