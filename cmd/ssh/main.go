package main

import (
	"context"
	"fmt"
	"log"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/bubbletea"
	"github.com/charmbracelet/wish/logging"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel/trace"
	gossh "golang.org/x/crypto/ssh"

	"github.com/ppcadvisor/bullaware-monitor/internal/advisor"
	"github.com/ppcadvisor/bullaware-monitor/internal/cache"
	"github.com/ppcadvisor/bullaware-monitor/internal/config"
	"github.com/ppcadvisor/bullaware-monitor/internal/db"
	"github.com/ppcadvisor/bullaware-monitor/internal/repository"
	"github.com/ppcadvisor/bullaware-monitor/internal/scoring"
	"github.com/ppcadvisor/bullaware-monitor/internal/service"
	"github.com/ppcadvisor/bullaware-monitor/internal/tui"
	"github.com/ppcadvisor/bullaware-monitor/pkg/tracing"
)

// ctxKey is a typed context key to avoid collisions.
type ctxKey string

const sshUserKey ctxKey = "ssh_user"

var (
	loadEnvFunc      = godotenv.Load
	loadConfigFunc   = config.Load
	initPostgresFunc = db.InitPostgres
	initRedisFunc    = cache.InitRedis
	initTracerFunc   = tracing.InitTracer

	newTraderRepoFunc       = repository.NewTraderRepository
	newSignalRepoFunc       = repository.NewSignalRepository
	newSSHUserRepoFunc      = repository.NewSSHUserRepository
	newConversationRepoFunc = repository.NewConversationRepository

	newTraderServiceFunc = func(tracer trace.Tracer, repo *repository.TraderRepository) *service.TraderService {
		return service.NewTraderService(tracer, nil, repo, scoring.NewScorer(tracer), scoring.ProxyDerivation{}, nil, false)
	}
	newSignalServiceFunc = func(tracer trace.Tracer, traders *repository.TraderRepository, signals *repository.SignalRepository) *service.SignalService {
		return service.NewSignalService(tracer, traders, nil, nil, signals)
	}

	newOpenAIClientFunc   = advisor.NewOpenAIClient
	newAdvisorServiceFunc = advisor.NewAdvisorService
	newWishServerFunc     = wish.NewServer
	setupSignalNotify     = ossignal.Notify
	waitForSignalFunc     = func(quit <-chan os.Signal) { <-quit }
)

func main() {
	loadEnvFunc()
	cfg := loadConfigFunc()

	if !cfg.SSHEnabled {
		log.Println("SSH_ENABLED is not true, refusing to start the SSH server")
		return
	}

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

	traderRepo := newTraderRepoFunc(db.Pool, tracer)
	signalRepo := newSignalRepoFunc(db.Pool, tracer)
	sshUserRepo := newSSHUserRepoFunc(db.Pool, tracer)
	convRepo := newConversationRepoFunc(db.Pool, tracer)

	traderService := newTraderServiceFunc(tracer, traderRepo)
	signalService := newSignalServiceFunc(tracer, traderRepo, signalRepo)

	// Advisor (optional)
	var advisorSvc *advisor.AdvisorService
	if cfg.OpenAIAPIKey != "" {
		llmClient := newOpenAIClientFunc(cfg.OpenAIAPIKey)
		advisorSvc = newAdvisorServiceFunc(tracer, llmClient, signalService, traderService,
			convRepo, cfg.OpenAIModel, cfg.AdvisorMaxHistory)
		log.Println("SSH advisor service enabled")
	}

	addr := fmt.Sprintf("%s:%d", cfg.SSHBind, cfg.SSHPort)

	srv, err := newWishServerFunc(
		wish.WithAddress(addr),
		wish.WithHostKeyPath(cfg.SSHHostKeyPath),
		wish.WithPublicKeyAuth(func(ctx ssh.Context, key ssh.PublicKey) bool {
			fingerprint := gossh.FingerprintSHA256(key)
			user, err := sshUserRepo.FindByFingerprint(context.Background(), fingerprint)
			if err != nil || user == nil {
				log.Printf("SSH auth denied: fingerprint=%s err=%v", fingerprint, err)
				return false
			}
			ctx.SetValue(sshUserKey, user)
			_ = sshUserRepo.UpdateLastLogin(context.Background(), user.ID)
			log.Printf("SSH auth accepted: user=%s fingerprint=%s", user.Username, fingerprint)
			return true
		}),
		wish.WithMiddleware(
			bubbletea.Middleware(func(s ssh.Session) (tea.Model, []tea.ProgramOption) {
				user, _ := s.Context().Value(sshUserKey).(*repository.SSHUser)

				username := "unknown"
				var userID int64
				if user != nil {
					username = user.Username
					userID = user.ID
				}

				var advisorQ tui.AdvisorQuerier
				if advisorSvc != nil {
					advisorQ = advisorSvc
				}

				svc := tui.Services{
					Traders:  traderService,
					Signals:  signalService,
					Advisor:  advisorQ,
					UserID:   userID,
					Username: username,
				}

				model := tui.NewAppModel(svc)
				pty, _, _ := s.Pty()
				model.SetSize(pty.Window.Width, pty.Window.Height)

				return model, []tea.ProgramOption{tea.WithAltScreen()}
			}),
			logging.Middleware(),
		),
	)
	if err != nil {
		log.Fatalf("failed to create SSH server: %v", err)
	}

	if srv != nil {
		go func() {
			log.Printf("SSH server listening on %s", addr)
			if err := srv.ListenAndServe(); err != nil {
				log.Printf("SSH server stopped: %v", err)
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	log.Println("Shutting down SSH server...")

	cancel()

	if srv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("SSH server shutdown error: %v", err)
		}
	}

	log.Println("SSH server exited")
}
