package bot

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	tele "gopkg.in/telebot.v3"

	"github.com/ppcadvisor/bullaware-monitor/internal/advisor"
	"github.com/ppcadvisor/bullaware-monitor/internal/domain"
	"github.com/ppcadvisor/bullaware-monitor/internal/service"
)

func StartTelegramBot(signalService *service.SignalService, traderService *service.TraderService, recommendationService *service.RecommendationService, advisorService *advisor.AdvisorService) {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		log.Println("TELEGRAM_BOT_TOKEN not set, skipping Telegram bot startup")
		return
	}
	pref := tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}
	b, err := tele.NewBot(pref)
	if err != nil {
		log.Fatalf("failed to create Telegram bot: %v", err)
	}

	b.Handle("/ping", func(c tele.Context) error {
		return c.Send("pong")
	})

	b.Handle("/signals", func(c tele.Context) error {
		strategy := domain.StrategyType("")
		if args := c.Args(); len(args) > 0 {
			strategy = domain.StrategyType(strings.ToLower(args[0]))
		}
		signals, err := signalService.GetActiveSignals(context.Background(), strategy)
		if err != nil {
			return c.Send(fmt.Sprintf("Usage: /signals [day_trading|long_term]\n%v", err))
		}
		if len(signals) == 0 {
			return c.Send("No active signals right now.")
		}
		var sb strings.Builder
		sb.WriteString("Active signals:\n")
		for _, s := range signals {
			sb.WriteString(fmt.Sprintf("%s %s (%s) confidence %.0f%%, %d traders\n",
				s.Action, s.Instrument, s.StrategyType, s.Confidence*100, len(s.SupportingTraders)))
		}
		return c.Send(sb.String())
	})

	b.Handle("/top", func(c tele.Context) error {
		traderType := domain.TraderTypeLongTerm
		if args := c.Args(); len(args) > 0 {
			traderType = domain.TraderType(strings.ToLower(args[0]))
		}
		traders, err := traderService.GetTopTraders(context.Background(), traderType, 10)
		if err != nil {
			return c.Send(fmt.Sprintf("Usage: /top [day_trader|long_term]\n%v", err))
		}
		if len(traders) == 0 {
			return c.Send("Leaderboard is empty. Try again after the next refresh.")
		}
		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("Top %s traders:\n", traderType))
		for _, t := range traders {
			sb.WriteString(fmt.Sprintf("#%d %s score %.2f\n", t.Rank, t.Username, t.Score))
		}
		return c.Send(sb.String())
	})

	b.Handle("/trader", func(c tele.Context) error {
		args := c.Args()
		if len(args) == 0 {
			return c.Send("Usage: /trader <username>")
		}
		trader, err := traderService.GetTrader(context.Background(), args[0])
		if err != nil {
			return c.Send(fmt.Sprintf("Error looking up %s: %v", args[0], err))
		}
		if trader == nil {
			return c.Send(fmt.Sprintf("Unknown trader: %s", args[0]))
		}
		msg := fmt.Sprintf(
			"%s (%s)\nRank: #%d\nScore: %.2f\nWin rate: %.0f%%\nMax drawdown: %.1f%%\nOpen positions: %d",
			trader.Username, trader.TraderType, trader.Rank, trader.Score,
			trader.Metrics.WinRate*100, trader.Metrics.MaxDrawdown*100, len(trader.Positions),
		)
		return c.Send(msg)
	})

	b.Handle("/recommend", func(c tele.Context) error {
		strategy := domain.StrategyType("")
		if args := c.Args(); len(args) > 0 {
			strategy = domain.StrategyType(strings.ToLower(args[0]))
		}
		recs, err := recommendationService.ForUser(context.Background(), c.Chat().ID, strategy)
		if err != nil {
			return c.Send(fmt.Sprintf("Usage: /recommend [day_trading|long_term]\n%v", err))
		}
		if len(recs) == 0 {
			return c.Send("No actionable recommendations right now.")
		}
		if len(recs) > 3 {
			recs = recs[:3]
		}
		var sb strings.Builder
		sb.WriteString("Recommendations:\n")
		for _, r := range recs {
			if !r.PositionDetails.CanInvest {
				sb.WriteString(fmt.Sprintf("%s %s: %s\n", r.Action, r.Symbol, r.PositionDetails.Reason))
				continue
			}
			sb.WriteString(fmt.Sprintf("%s %s: %d shares @ %.2f (confidence %.0f%%)\n",
				r.Action, r.Symbol, r.PositionDetails.RecommendedShares, r.CurrentPrice, r.Confidence*100))
		}
		return c.Send(sb.String())
	})

	b.Handle("/ask", func(c tele.Context) error {
		if advisorService == nil {
			return c.Send("Advisor is not configured.")
		}
		question := strings.TrimSpace(strings.TrimPrefix(c.Text(), "/ask"))
		if question == "" {
			return c.Send("Usage: /ask <question about the current signals>")
		}
		reply, err := advisorService.Ask(context.Background(), c.Chat().ID, question)
		if err != nil {
			return c.Send(fmt.Sprintf("Advisor error: %v", err))
		}
		return c.Send(reply)
	})

	log.Println("Telegram bot started")
	go b.Start()
}
