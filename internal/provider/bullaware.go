package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/ppcadvisor/bullaware-monitor/internal/cache"
	"github.com/ppcadvisor/bullaware-monitor/internal/domain"
	"github.com/ppcadvisor/bullaware-monitor/internal/scoring"
)

const defaultBullAwareBaseURL = "https://api.bullaware.com/v1"

// Per-endpoint cache TTLs, most specific class first: every endpoint path
// starts with "investors", so the roster entry must be matched last.
var bullawareTTLs = []struct {
	class string
	ttl   time.Duration
}{
	{"risk-score", 30 * time.Minute},
	{"copiers", time.Hour},
	{"trades", 2 * time.Hour},
	{"portfolio", 15 * time.Minute},
	{"metrics", 30 * time.Minute},
	{"investors", time.Hour},
}

const bullawareDefaultTTL = 30 * time.Minute

// BullAwareProvider fetches trader data from the BullAware API with built-in
// rate limiting (10 requests per minute) and Redis response caching.
type BullAwareProvider struct {
	client       *http.Client
	baseURL      string
	apiKey       string
	tracer       trace.Tracer
	limiter      *RateLimiter
	retryBackoff time.Duration
}

func NewBullAwareProvider(tracer trace.Tracer, apiKey string) *BullAwareProvider {
	return &BullAwareProvider{
		client:       &http.Client{Timeout: 30 * time.Second},
		baseURL:      defaultBullAwareBaseURL,
		apiKey:       apiKey,
		tracer:       tracer,
		limiter:      NewRateLimiter(10, time.Minute),
		retryBackoff: time.Minute,
	}
}

// WithBaseURL overrides the API endpoint. Empty values are ignored.
func (p *BullAwareProvider) WithBaseURL(u string) *BullAwareProvider {
	if u != "" {
		p.baseURL = u
	}
	return p
}

// WithRetryBackoff overrides the wait before retrying a rate-limited request.
func (p *BullAwareProvider) WithRetryBackoff(d time.Duration) *BullAwareProvider {
	if d > 0 {
		p.retryBackoff = d
	}
	return p
}

type investorSummary struct {
	Username string `json:"username"`
	FullName string `json:"fullname"`
}

type investorsResponse struct {
	Items []investorSummary `json:"items"`
	Total int               `json:"total"`
}

type investorDetails struct {
	Username               string  `json:"username"`
	FullName               string  `json:"fullname"`
	WinRatio               float64 `json:"winRatio"`
	Return1Year            float64 `json:"return1Year"`
	ReturnYearToDate       float64 `json:"returnYearToDate"`
	AnnualizedReturn       float64 `json:"annualizedReturn"`
	DailyDD                float64 `json:"dailyDD"`
	WeeklyDD               float64 `json:"weeklyDD"`
	Copiers                int     `json:"copiers"`
	AUM                    string  `json:"aum"`
	Trades                 int     `json:"trades"`
	WeeksSinceRegistration int     `json:"weeksSinceRegistration"`
}

type investorDetailsResponse struct {
	Investor investorDetails `json:"investor"`
}

type investorMetricsResponse struct {
	SharpeRatio  float64 `json:"sharpeRatio"`
	SortinoRatio float64 `json:"sortinoRatio"`
	CalmarRatio  float64 `json:"calmarRatio"`
	Beta         float64 `json:"beta"`
}

type portfolioPosition struct {
	Symbol      string  `json:"symbol"`
	Direction   float64 `json:"direction"`
	Value       float64 `json:"value"`
	NetProfit   float64 `json:"netProfit"`
	CurrentRate float64 `json:"currentRate"`
}

type portfolioResponse struct {
	Positions []portfolioPosition `json:"positions"`
}

type tradeEntry struct {
	Symbol    string  `json:"symbol"`
	Direction float64 `json:"direction"`
	Profit    float64 `json:"profit"`
	OpenDate  string  `json:"open_date"`
	CloseDate string  `json:"close_date"`
}

type tradesResponse struct {
	Trades []tradeEntry `json:"trades"`
}

type equityEntry struct {
	Date   string  `json:"date"`
	Equity float64 `json:"equity"`
}

type metricsHistoryResponse struct {
	History []equityEntry `json:"history"`
}

// ListInvestors returns a page of the investor roster.
func (p *BullAwareProvider) ListInvestors(ctx context.Context, limit, offset int) ([]string, error) {
	ctx, span := p.tracer.Start(ctx, "bullaware.list-investors")
	defer span.End()

	params := url.Values{}
	params.Set("limit", fmt.Sprint(limit))
	params.Set("offset", fmt.Sprint(offset))

	var resp investorsResponse
	if err := p.get(ctx, "investors", params, &resp); err != nil {
		return nil, fmt.Errorf("list investors: %w", err)
	}

	usernames := make([]string, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.Username != "" {
			usernames = append(usernames, item.Username)
		}
	}
	return usernames, nil
}

// FetchSnapshot collects the detail, metric, and portfolio endpoints for one
// trader into a single snapshot for derivation.
func (p *BullAwareProvider) FetchSnapshot(ctx context.Context, username string) (scoring.TraderSnapshot, error) {
	ctx, span := p.tracer.Start(ctx, "bullaware.fetch-snapshot")
	defer span.End()

	var details investorDetailsResponse
	if err := p.get(ctx, "investors/"+username, nil, &details); err != nil {
		return scoring.TraderSnapshot{}, fmt.Errorf("investor details for %s: %w", username, err)
	}

	var metrics investorMetricsResponse
	if err := p.get(ctx, "investors/"+username+"/metrics", nil, &metrics); err != nil {
		return scoring.TraderSnapshot{}, fmt.Errorf("investor metrics for %s: %w", username, err)
	}

	// A missing portfolio degrades diversification data but is not fatal.
	var portfolio portfolioResponse
	if err := p.get(ctx, "investors/"+username+"/portfolio", nil, &portfolio); err != nil {
		log.Printf("bullaware: portfolio unavailable for %s: %v", username, err)
	}

	inv := details.Investor
	displayName := inv.FullName
	if displayName == "" {
		displayName = username
	}

	return scoring.TraderSnapshot{
		Username:         username,
		DisplayName:      displayName,
		WinRatio:         inv.WinRatio,
		DailyDrawdown:    inv.DailyDD,
		WeeklyDrawdown:   inv.WeeklyDD,
		AnnualizedReturn: inv.AnnualizedReturn,
		SharpeRatio:      metrics.SharpeRatio,
		SortinoRatio:     metrics.SortinoRatio,
		CalmarRatio:      metrics.CalmarRatio,
		Beta:             metrics.Beta,
		CopiersCount:     inv.Copiers,
		AUMDisplay:       inv.AUM,
		TradesCount:      inv.Trades,
		WeeksActive:      inv.WeeksSinceRegistration,
		Positions:        convertPositions(username, portfolio.Positions),
	}, nil
}

// FetchTrades returns the closed-trade history used by historical derivation.
func (p *BullAwareProvider) FetchTrades(ctx context.Context, username string) ([]scoring.TradeRecord, error) {
	ctx, span := p.tracer.Start(ctx, "bullaware.fetch-trades")
	defer span.End()

	var resp tradesResponse
	if err := p.get(ctx, "investors/"+username+"/trades", nil, &resp); err != nil {
		return nil, fmt.Errorf("trades for %s: %w", username, err)
	}

	records := make([]scoring.TradeRecord, 0, len(resp.Trades))
	for _, t := range resp.Trades {
		rec := scoring.TradeRecord{
			Instrument: t.Symbol,
			Direction:  directionFromSign(t.Direction),
			ProfitPct:  t.Profit,
		}
		rec.OpenedAt, _ = time.Parse(time.RFC3339, t.OpenDate)
		rec.ClosedAt, _ = time.Parse(time.RFC3339, t.CloseDate)
		records = append(records, rec)
	}
	return records, nil
}

// FetchEquityHistory returns the trader's equity curve.
func (p *BullAwareProvider) FetchEquityHistory(ctx context.Context, username string) ([]scoring.EquityPoint, error) {
	ctx, span := p.tracer.Start(ctx, "bullaware.fetch-equity-history")
	defer span.End()

	var resp metricsHistoryResponse
	if err := p.get(ctx, "investors/"+username+"/metrics/history", nil, &resp); err != nil {
		return nil, fmt.Errorf("metrics history for %s: %w", username, err)
	}

	points := make([]scoring.EquityPoint, 0, len(resp.History))
	for _, e := range resp.History {
		date, err := time.Parse(time.RFC3339, e.Date)
		if err != nil {
			continue
		}
		points = append(points, scoring.EquityPoint{Date: date, Value: e.Equity})
	}
	return points, nil
}

func convertPositions(username string, positions []portfolioPosition) []domain.Position {
	out := make([]domain.Position, 0, len(positions))
	for _, pos := range positions {
		if pos.Symbol == "" {
			continue
		}
		out = append(out, domain.Position{
			TraderUsername: username,
			Instrument:     strings.ToUpper(pos.Symbol),
			Direction:      directionFromSign(pos.Direction),
			Size:           pos.Value,
			CurrentPrice:   pos.CurrentRate,
			PnL:            pos.NetProfit,
		})
	}
	return out
}

func directionFromSign(v float64) domain.PositionDirection {
	if v > 0 {
		return domain.DirectionLong
	}
	if v < 0 {
		return domain.DirectionShort
	}
	return domain.DirectionNeutral
}

// get performs a cached, rate-limited GET. Cache keys are the endpoint plus
// its sorted query string so identical requests share one entry. A 429
// response backs off for a minute and retries once.
func (p *BullAwareProvider) get(ctx context.Context, endpoint string, params url.Values, dest any) error {
	cacheKey := "bullaware:" + endpoint
	if len(params) > 0 {
		cacheKey += "?" + params.Encode()
	}

	hit, err := cache.GetJSON(ctx, cacheKey, dest)
	if err != nil {
		log.Printf("bullaware: cache read failed for %s: %v", cacheKey, err)
	}
	if hit {
		return nil
	}

	body, err := p.doRequest(ctx, endpoint, params, true)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("parse %s response: %w", endpoint, err)
	}

	if err := cache.SetJSON(ctx, cacheKey, json.RawMessage(body), ttlForEndpoint(endpoint)); err != nil {
		log.Printf("bullaware: cache write failed for %s: %v", cacheKey, err)
	}
	return nil
}

func (p *BullAwareProvider) doRequest(ctx context.Context, endpoint string, params url.Values, allowRetry bool) ([]byte, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	reqURL := p.baseURL + "/" + strings.TrimPrefix(endpoint, "/")
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests && allowRetry {
		log.Printf("bullaware: rate limited upstream, backing off %s", p.retryBackoff)
		if err := sleepCtx(ctx, p.retryBackoff); err != nil {
			return nil, err
		}
		return p.doRequest(ctx, endpoint, params, false)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("bullaware API error %d: %s", resp.StatusCode, string(body))
	}

	return io.ReadAll(resp.Body)
}

func ttlForEndpoint(endpoint string) time.Duration {
	for _, entry := range bullawareTTLs {
		if strings.Contains(endpoint, entry.class) {
			return entry.ttl
		}
	}
	return bullawareDefaultTTL
}
