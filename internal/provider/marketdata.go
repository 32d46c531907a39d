package provider

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/piquette/finance-go"
	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/piquette/finance-go/equity"
	"github.com/piquette/finance-go/quote"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace"

	"github.com/ppcadvisor/bullaware-monitor/internal/cache"
	"github.com/ppcadvisor/bullaware-monitor/internal/domain"
)

const (
	marketDataCacheTTL = 5 * time.Minute

	// Technical levels use the trailing 20 sessions of a 60-day window.
	historyDays      = 60
	technicalWindow  = 20
	volatilityWindow = 30
)

var (
	financeQuote  = quote.Get
	financeEquity = equity.Get
	financeChart  = func(params *chart.Params) barIter { return chart.Get(params) }
)

type barIter interface {
	Next() bool
	Bar() *finance.ChartBar
	Err() error
}

type dailyBar struct {
	Timestamp int
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
}

// MarketDataProvider fetches quotes, company info, and derived technicals
// from Yahoo Finance.
type MarketDataProvider struct {
	tracer trace.Tracer
}

func NewMarketDataProvider(tracer trace.Tracer) *MarketDataProvider {
	return &MarketDataProvider{tracer: tracer}
}

// CurrentPrice returns the latest trade price for a symbol.
func (p *MarketDataProvider) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	_, span := p.tracer.Start(ctx, "marketdata.current-price")
	defer span.End()

	q, err := financeQuote(strings.ToUpper(symbol))
	if err != nil {
		return 0, fmt.Errorf("quote for %s: %w", symbol, err)
	}
	if q == nil || q.RegularMarketPrice <= 0 {
		return 0, fmt.Errorf("no price available for %s", symbol)
	}
	return q.RegularMarketPrice, nil
}

// MarketData assembles the full market context for one instrument: price,
// volatility, technical levels, and company metadata. Results are cached for
// five minutes. Fields that cannot be fetched stay nil.
func (p *MarketDataProvider) MarketData(ctx context.Context, symbol string) (*domain.MarketData, error) {
	ctx, span := p.tracer.Start(ctx, "marketdata.market-data")
	defer span.End()

	symbol = strings.ToUpper(symbol)
	cacheKey := "marketdata:" + symbol

	var cached domain.MarketData
	if hit, err := cache.GetJSON(ctx, cacheKey, &cached); err != nil {
		log.Printf("marketdata: cache read failed for %s: %v", symbol, err)
	} else if hit {
		return &cached, nil
	}

	md := &domain.MarketData{Symbol: symbol, Timestamp: time.Now().UTC()}

	q, err := financeQuote(symbol)
	if err != nil {
		return nil, fmt.Errorf("quote for %s: %w", symbol, err)
	}
	if q != nil && q.RegularMarketPrice > 0 {
		price := q.RegularMarketPrice
		volume := int64(q.RegularMarketVolume)
		change := q.RegularMarketChangePercent
		md.CurrentPrice = &price
		md.Volume = &volume
		md.PriceChangePct = &change
	}

	if eq, err := financeEquity(symbol); err != nil {
		log.Printf("marketdata: equity info unavailable for %s: %v", symbol, err)
	} else if eq != nil {
		md.CompanyInfo = companyInfoFromEquity(eq)
	}

	if bars, err := p.dailyBars(symbol, historyDays); err != nil {
		log.Printf("marketdata: history unavailable for %s: %v", symbol, err)
	} else {
		if vol, ok := volatilityFromBars(bars, volatilityWindow); ok {
			md.Volatility = &vol
		}
		if support, resistance, ok := technicalLevels(bars, technicalWindow); ok {
			md.SupportLevel = &support
			md.ResistanceLevel = &resistance
		}
	}

	if err := cache.SetJSON(ctx, cacheKey, md, marketDataCacheTTL); err != nil {
		log.Printf("marketdata: cache write failed for %s: %v", symbol, err)
	}
	return md, nil
}

// PriceAt returns the first daily close on or after t.
func (p *MarketDataProvider) PriceAt(ctx context.Context, symbol string, t time.Time) (float64, error) {
	_, span := p.tracer.Start(ctx, "marketdata.price-at")
	defer span.End()

	symbol = strings.ToUpper(symbol)
	days := int(time.Since(t).Hours()/24) + 5
	bars, err := p.dailyBars(symbol, days)
	if err != nil {
		return 0, err
	}
	for _, b := range bars {
		if time.Unix(int64(b.Timestamp), 0).Before(t) {
			continue
		}
		if c := b.Close.InexactFloat64(); c > 0 {
			return c, nil
		}
	}
	return 0, fmt.Errorf("no close on or after %s for %s", t.Format("2006-01-02"), symbol)
}

func (p *MarketDataProvider) dailyBars(symbol string, days int) ([]dailyBar, error) {
	end := time.Now()
	start := end.AddDate(0, 0, -days)

	iter := financeChart(&chart.Params{
		Symbol:   symbol,
		Start:    datetime.New(&start),
		End:      datetime.New(&end),
		Interval: datetime.OneDay,
	})

	var bars []dailyBar
	for iter.Next() {
		b := iter.Bar()
		bars = append(bars, dailyBar{Timestamp: b.Timestamp, High: b.High, Low: b.Low, Close: b.Close})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("chart for %s: %w", symbol, err)
	}
	return bars, nil
}

func companyInfoFromEquity(eq *finance.Equity) domain.CompanyInfo {
	info := domain.CompanyInfo{
		Name:     eq.ShortName,
		Currency: eq.CurrencyID,
	}
	if eq.LongName != "" {
		info.Name = eq.LongName
	}
	if eq.MarketCap > 0 {
		mc := float64(eq.MarketCap)
		info.MarketCap = &mc
	}
	if eq.TrailingPE > 0 {
		pe := eq.TrailingPE
		info.PERatio = &pe
	}
	return info
}

// volatilityFromBars is the standard deviation of daily close-to-close
// returns over the trailing window.
func volatilityFromBars(bars []dailyBar, window int) (float64, bool) {
	if len(bars) < 2 {
		return 0, false
	}
	if len(bars) > window+1 {
		bars = bars[len(bars)-window-1:]
	}

	returns := make([]float64, 0, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		prev := bars[i-1].Close.InexactFloat64()
		curr := bars[i].Close.InexactFloat64()
		if prev <= 0 {
			continue
		}
		returns = append(returns, curr/prev-1)
	}
	if len(returns) < 2 {
		return 0, false
	}

	m := 0.0
	for _, r := range returns {
		m += r
	}
	m /= float64(len(returns))

	var sq float64
	for _, r := range returns {
		sq += (r - m) * (r - m)
	}
	return math.Sqrt(sq / float64(len(returns))), true
}

// technicalLevels are the trailing-window low and high.
func technicalLevels(bars []dailyBar, window int) (support, resistance float64, ok bool) {
	if len(bars) == 0 {
		return 0, 0, false
	}
	if len(bars) > window {
		bars = bars[len(bars)-window:]
	}

	support = bars[0].Low.InexactFloat64()
	resistance = bars[0].High.InexactFloat64()
	for _, b := range bars[1:] {
		support = math.Min(support, b.Low.InexactFloat64())
		resistance = math.Max(resistance, b.High.InexactFloat64())
	}
	if support <= 0 || resistance <= 0 {
		return 0, 0, false
	}
	return support, resistance, true
}
