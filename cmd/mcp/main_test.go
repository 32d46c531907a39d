package main

import (
	"context"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/ppcadvisor/bullaware-monitor/internal/config"
)

func TestMainBootstrap(t *testing.T) {
	restore := stubMCPDeps()
	defer restore()

	done := make(chan struct{})
	go func() {
		main()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("main did not exit")
	}
}

func TestBuildServerRegistersTools(t *testing.T) {
	tracer := trace.NewNoopTracerProvider().Tracer("mcp-test")
	deps := buildDeps(tracer, &config.Config{MCPRequestTimeoutSecs: 1})

	server := buildServer(deps)
	if server == nil {
		t.Fatal("expected a server")
	}
}

func stubMCPDeps() func() {
	origLoadEnv := loadEnvFunc
	origLoadConfig := loadConfigFunc
	origInitPostgres := initPostgresFunc
	origInitRedis := initRedisFunc
	origInitTracer := initTracerFunc
	origRunStdio := runStdioFunc

	loadEnvFunc = func(...string) error { return nil }
	loadConfigFunc = func() *config.Config {
		return &config.Config{MCPTransport: "stdio", MCPRequestTimeoutSecs: 1}
	}
	initPostgresFunc = func(context.Context) {}
	initRedisFunc = func(context.Context) {}
	initTracerFunc = func(ctx context.Context) (*sdktrace.TracerProvider, trace.Tracer, error) {
		tp := sdktrace.NewTracerProvider()
		return tp, tp.Tracer("test"), nil
	}
	runStdioFunc = func(context.Context, *mcp.Server) error { return nil }

	return func() {
		loadEnvFunc = origLoadEnv
		loadConfigFunc = origLoadConfig
		initPostgresFunc = origInitPostgres
		initRedisFunc = origInitRedis
		initTracerFunc = origInitTracer
		runStdioFunc = origRunStdio
	}
}
