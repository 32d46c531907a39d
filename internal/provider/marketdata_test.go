package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/piquette/finance-go"
	"github.com/piquette/finance-go/chart"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace"
)

type fakeIter struct {
	bars []*finance.ChartBar
	idx  int
	err  error
}

func (f *fakeIter) Next() bool {
	if f.idx >= len(f.bars) {
		return false
	}
	f.idx++
	return true
}

func (f *fakeIter) Bar() *finance.ChartBar { return f.bars[f.idx-1] }
func (f *fakeIter) Err() error             { return f.err }

func bar(high, low, last float64) *finance.ChartBar {
	return &finance.ChartBar{
		High:  decimal.NewFromFloat(high),
		Low:   decimal.NewFromFloat(low),
		Close: decimal.NewFromFloat(last),
	}
}

func TestVolatilityFromBars(t *testing.T) {
	bars := []dailyBar{
		{Close: decimal.NewFromFloat(100)},
		{Close: decimal.NewFromFloat(102)},
		{Close: decimal.NewFromFloat(99)},
		{Close: decimal.NewFromFloat(101)},
	}

	vol, ok := volatilityFromBars(bars, 30)
	if !ok {
		t.Fatal("expected volatility")
	}
	if vol <= 0 || vol > 0.1 {
		t.Fatalf("implausible volatility %.4f", vol)
	}
}

func TestVolatilityFromBarsInsufficientData(t *testing.T) {
	if _, ok := volatilityFromBars([]dailyBar{{Close: decimal.NewFromFloat(100)}}, 30); ok {
		t.Fatal("expected no volatility from a single bar")
	}
}

func TestTechnicalLevelsUseTrailingWindow(t *testing.T) {
	bars := make([]dailyBar, 0, 30)
	// Old bars with extreme prices that must fall outside the window.
	for i := 0; i < 10; i++ {
		bars = append(bars, dailyBar{High: decimal.NewFromFloat(500), Low: decimal.NewFromFloat(1)})
	}
	for i := 0; i < 20; i++ {
		bars = append(bars, dailyBar{High: decimal.NewFromFloat(110), Low: decimal.NewFromFloat(90)})
	}

	support, resistance, ok := technicalLevels(bars, 20)
	if !ok {
		t.Fatal("expected levels")
	}
	if support != 90 || resistance != 110 {
		t.Fatalf("expected trailing-window levels 90/110, got %.2f/%.2f", support, resistance)
	}
}

func TestMarketDataAssemblesContext(t *testing.T) {
	origQuote, origEquity, origChart := financeQuote, financeEquity, financeChart
	defer func() { financeQuote, financeEquity, financeChart = origQuote, origEquity, origChart }()

	financeQuote = func(symbol string) (*finance.Quote, error) {
		q := &finance.Quote{}
		q.RegularMarketPrice = 230.5
		q.RegularMarketVolume = 1000000
		q.RegularMarketChangePercent = 1.2
		return q, nil
	}
	financeEquity = func(symbol string) (*finance.Equity, error) {
		eq := &finance.Equity{}
		eq.ShortName = "Apple Inc."
		return eq, nil
	}
	financeChart = func(params *chart.Params) barIter {
		return &fakeIter{bars: []*finance.ChartBar{
			bar(232, 226, 228),
			bar(233, 227, 230),
			bar(234, 228, 231),
		}}
	}

	p := NewMarketDataProvider(trace.NewNoopTracerProvider().Tracer("test"))
	md, err := p.MarketData(context.Background(), "aapl")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if md.Symbol != "AAPL" {
		t.Fatalf("expected uppercased symbol, got %s", md.Symbol)
	}
	if md.CurrentPrice == nil || *md.CurrentPrice != 230.5 {
		t.Fatalf("unexpected price: %+v", md.CurrentPrice)
	}
	if md.SupportLevel == nil || *md.SupportLevel != 226 {
		t.Fatalf("unexpected support: %+v", md.SupportLevel)
	}
	if md.ResistanceLevel == nil || *md.ResistanceLevel != 234 {
		t.Fatalf("unexpected resistance: %+v", md.ResistanceLevel)
	}
	if md.CompanyInfo.Name != "Apple Inc." {
		t.Fatalf("unexpected company info: %+v", md.CompanyInfo)
	}
}

func TestMarketDataDegradesWithoutHistory(t *testing.T) {
	origQuote, origEquity, origChart := financeQuote, financeEquity, financeChart
	defer func() { financeQuote, financeEquity, financeChart = origQuote, origEquity, origChart }()

	financeQuote = func(symbol string) (*finance.Quote, error) {
		q := &finance.Quote{}
		q.RegularMarketPrice = 50
		return q, nil
	}
	financeEquity = func(symbol string) (*finance.Equity, error) {
		return nil, errors.New("unavailable")
	}
	financeChart = func(params *chart.Params) barIter {
		return &fakeIter{err: errors.New("unavailable")}
	}

	p := NewMarketDataProvider(trace.NewNoopTracerProvider().Tracer("test"))
	md, err := p.MarketData(context.Background(), "XYZ")
	if err != nil {
		t.Fatalf("missing history must not be fatal: %v", err)
	}
	if md.Volatility != nil || md.SupportLevel != nil {
		t.Fatal("expected nil technicals without history")
	}
	if md.CurrentPrice == nil || *md.CurrentPrice != 50 {
		t.Fatalf("price should still be set: %+v", md.CurrentPrice)
	}
}

func TestCurrentPriceRejectsMissingQuote(t *testing.T) {
	origQuote := financeQuote
	defer func() { financeQuote = origQuote }()

	financeQuote = func(symbol string) (*finance.Quote, error) {
		return &finance.Quote{}, nil
	}

	p := NewMarketDataProvider(trace.NewNoopTracerProvider().Tracer("test"))
	if _, err := p.CurrentPrice(context.Background(), "XYZ"); err == nil {
		t.Fatal("expected error for zero price")
	}
}
