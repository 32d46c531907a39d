package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/ppcadvisor/bullaware-monitor/internal/domain"
)

func testBullAware(t *testing.T, handler http.Handler) *BullAwareProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p := NewBullAwareProvider(trace.NewNoopTracerProvider().Tracer("test"), "test-key")
	p.baseURL = srv.URL
	p.retryBackoff = time.Millisecond
	return p
}

func TestListInvestors(t *testing.T) {
	var gotAuth string
	p := testBullAware(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/investors" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("limit") != "50" {
			t.Errorf("unexpected limit %s", r.URL.Query().Get("limit"))
		}
		w.Write([]byte(`{"items":[{"username":"alpha"},{"username":""},{"username":"beta"}],"total":3}`))
	}))

	usernames, err := p.ListInvestors(context.Background(), 50, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(usernames) != 2 || usernames[0] != "alpha" || usernames[1] != "beta" {
		t.Fatalf("unexpected usernames: %v", usernames)
	}
	if gotAuth != "Bearer test-key" {
		t.Fatalf("expected bearer auth, got %q", gotAuth)
	}
}

func TestFetchSnapshot(t *testing.T) {
	p := testBullAware(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/investors/alpha":
			w.Write([]byte(`{"investor":{"username":"alpha","fullname":"Alpha One","winRatio":62,"annualizedReturn":28,"dailyDD":-2,"weeklyDD":-6,"copiers":1500,"aum":"2.5M","trades":208,"weeksSinceRegistration":104}}`))
		case "/investors/alpha/metrics":
			w.Write([]byte(`{"sharpeRatio":1.4,"sortinoRatio":1.9,"calmarRatio":1.1,"beta":0.9}`))
		case "/investors/alpha/portfolio":
			w.Write([]byte(`{"positions":[{"symbol":"aapl","direction":1,"value":12.5,"netProfit":3.2,"currentRate":230.1},{"symbol":"TSLA","direction":-1,"value":5.0}]}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	snap, err := p.FetchSnapshot(context.Background(), "alpha")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if snap.DisplayName != "Alpha One" || snap.WinRatio != 62 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if snap.SharpeRatio != 1.4 || snap.CalmarRatio != 1.1 {
		t.Fatalf("metrics not merged: %+v", snap)
	}
	if len(snap.Positions) != 2 {
		t.Fatalf("expected 2 positions, got %d", len(snap.Positions))
	}
	if snap.Positions[0].Instrument != "AAPL" || snap.Positions[0].Direction != domain.DirectionLong {
		t.Fatalf("unexpected first position: %+v", snap.Positions[0])
	}
	if snap.Positions[1].Direction != domain.DirectionShort {
		t.Fatalf("expected short position, got %+v", snap.Positions[1])
	}
}

func TestFetchSnapshotToleratesMissingPortfolio(t *testing.T) {
	p := testBullAware(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/investors/alpha":
			w.Write([]byte(`{"investor":{"username":"alpha"}}`))
		case "/investors/alpha/metrics":
			w.Write([]byte(`{}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))

	snap, err := p.FetchSnapshot(context.Background(), "alpha")
	if err != nil {
		t.Fatalf("portfolio failure should not be fatal: %v", err)
	}
	if snap.DisplayName != "alpha" {
		t.Fatalf("expected username fallback for display name, got %q", snap.DisplayName)
	}
	if len(snap.Positions) != 0 {
		t.Fatalf("expected no positions, got %d", len(snap.Positions))
	}
}

func TestDoRequestRetriesOn429(t *testing.T) {
	calls := 0
	p := testBullAware(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"items":[],"total":0}`))
	}))

	if _, err := p.ListInvestors(context.Background(), 10, 0); err != nil {
		t.Fatalf("expected retry to succeed: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected exactly one retry, got %d calls", calls)
	}
}

func TestDoRequestGivesUpAfterSecond429(t *testing.T) {
	p := testBullAware(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	if _, err := p.ListInvestors(context.Background(), 10, 0); err == nil {
		t.Fatal("expected error after repeated 429s")
	}
}

func TestFetchTradesParsesDates(t *testing.T) {
	p := testBullAware(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"trades":[{"symbol":"NVDA","direction":1,"profit":4.2,"open_date":"2026-01-05T00:00:00Z","close_date":"2026-01-08T00:00:00Z"}]}`))
	}))

	trades, err := p.FetchTrades(context.Background(), "alpha")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}
	if trades[0].ClosedAt.Sub(trades[0].OpenedAt) != 72*time.Hour {
		t.Fatalf("unexpected holding time: %+v", trades[0])
	}
}

func TestTTLForEndpoint(t *testing.T) {
	if ttlForEndpoint("investors/alpha/trades") != 2*time.Hour {
		t.Fatal("expected trades TTL")
	}
	if ttlForEndpoint("something/else") != bullawareDefaultTTL {
		t.Fatal("expected default TTL")
	}
}
