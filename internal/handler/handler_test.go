package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"github.com/ppcadvisor/bullaware-monitor/internal/domain"
	"github.com/ppcadvisor/bullaware-monitor/internal/scoring"
	"github.com/ppcadvisor/bullaware-monitor/internal/service"
	"github.com/ppcadvisor/bullaware-monitor/internal/sizing"
)

var handlerTracer = trace.NewNoopTracerProvider().Tracer("handler-test")

type traderStoreStub struct {
	traders []domain.ScoredTrader
}

func (s traderStoreStub) UpsertTraders(ctx context.Context, traders []domain.ScoredTrader) error {
	return nil
}

func (s traderStoreStub) GetTopTraders(ctx context.Context, traderType domain.TraderType, limit int) ([]domain.ScoredTrader, error) {
	return s.traders, nil
}

func (s traderStoreStub) GetAllTraders(ctx context.Context) ([]domain.ScoredTrader, error) {
	return s.traders, nil
}

func (s traderStoreStub) GetTrader(ctx context.Context, username string) (*domain.ScoredTrader, error) {
	for i := range s.traders {
		if s.traders[i].Username == username {
			return &s.traders[i], nil
		}
	}
	return nil, nil
}

type signalStoreStub struct {
	signals []domain.Signal
}

func (s signalStoreStub) SaveSignals(ctx context.Context, signals []domain.Signal) error {
	return nil
}

func (s signalStoreStub) GetActiveSignals(ctx context.Context, strategy domain.StrategyType) ([]domain.Signal, error) {
	return s.signals, nil
}

func (s signalStoreStub) GetSignal(ctx context.Context, id int64) (*domain.Signal, error) {
	for i := range s.signals {
		if s.signals[i].ID == id {
			return &s.signals[i], nil
		}
	}
	return nil, nil
}

type profileStoreStub struct {
	saved *domain.UserProfile
}

func (s *profileStoreStub) GetOrCreate(ctx context.Context, userID int64) (domain.UserProfile, error) {
	return domain.UserProfile{
		UserID:           userID,
		TotalCapital:     10000,
		AvailableCapital: 10000,
		Currency:         "USD",
		RiskTolerance:    domain.RiskModerate,
	}, nil
}

func (s *profileStoreStub) GetOpenPositions(ctx context.Context, userID int64) ([]domain.UserPosition, error) {
	return nil, nil
}

func (s *profileStoreStub) Save(ctx context.Context, p domain.UserProfile) error {
	s.saved = &p
	return nil
}

func (s *profileStoreStub) OpenPosition(ctx context.Context, userID int64, symbol string, shares int, entryPrice float64) error {
	return nil
}

func (s *profileStoreStub) ClosePosition(ctx context.Context, userID, positionID int64, exitPrice float64) error {
	return nil
}

type marketStub struct{}

func (marketStub) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	return 100, nil
}

func (marketStub) MarketData(ctx context.Context, symbol string) (*domain.MarketData, error) {
	price := 100.0
	return &domain.MarketData{Symbol: symbol, CurrentPrice: &price}, nil
}

type breakdownStub struct {
	breakdown *domain.ConsensusBreakdown
}

func (s breakdownStub) Build(ctx context.Context, instrument string, traders []domain.ScoredTrader) *domain.ConsensusBreakdown {
	return s.breakdown
}

func newTestHandler(traders traderStoreStub, signals signalStoreStub, breakdown breakdownStub) *Handler {
	profiles := &profileStoreStub{}
	return &Handler{
		tracer:        handlerTracer,
		traderService: service.NewTraderService(handlerTracer, nil, traders, scoring.NewScorer(handlerTracer), nil, nil, false),
		signalService: service.NewSignalService(handlerTracer, traders, nil, nil, signals),
		recommendationService: service.NewRecommendationService(
			handlerTracer, signals, traders, profiles, marketStub{}, sizing.NewSizer(handlerTracer), breakdown,
		),
		profileService: service.NewProfileService(handlerTracer, profiles, marketStub{}),
	}
}

func serve(h *Handler, method, target string, body string) *httptest.ResponseRecorder {
	router := gin.New()
	h.RegisterRoutes(router, "")

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestGetTopTraders(t *testing.T) {
	store := traderStoreStub{traders: []domain.ScoredTrader{
		{Username: "alice", TraderType: domain.TraderTypeLongTerm, Score: 0.84, Rank: 1},
		{Username: "bob", TraderType: domain.TraderTypeLongTerm, Score: 0.71, Rank: 2},
	}}
	h := newTestHandler(store, signalStoreStub{}, breakdownStub{})

	w := serve(h, http.MethodGet, "/api/traders?type=long_term&limit=10", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var body struct {
		Count   int                   `json:"count"`
		Traders []domain.ScoredTrader `json:"traders"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if body.Count != 2 || body.Traders[0].Username != "alice" {
		t.Fatalf("unexpected payload: %+v", body)
	}
}

func TestGetTopTradersRejectsUnknownType(t *testing.T) {
	h := newTestHandler(traderStoreStub{}, signalStoreStub{}, breakdownStub{})

	w := serve(h, http.MethodGet, "/api/traders?type=margin", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestGetTraderNotFound(t *testing.T) {
	h := newTestHandler(traderStoreStub{}, signalStoreStub{}, breakdownStub{})

	w := serve(h, http.MethodGet, "/api/traders/ghost", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestGetActiveSignals(t *testing.T) {
	signals := signalStoreStub{signals: []domain.Signal{
		{ID: 1, Instrument: "AAPL", Action: domain.ActionBuy, StrategyType: domain.StrategyLongTerm, Confidence: 0.82, IsActive: true},
	}}
	h := newTestHandler(traderStoreStub{}, signals, breakdownStub{})

	w := serve(h, http.MethodGet, "/api/signals", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var body struct {
		Count   int             `json:"count"`
		Signals []domain.Signal `json:"signals"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if body.Count != 1 || body.Signals[0].Instrument != "AAPL" {
		t.Fatalf("unexpected payload: %+v", body)
	}
}

func TestGetSignalInvalidID(t *testing.T) {
	h := newTestHandler(traderStoreStub{}, signalStoreStub{}, breakdownStub{})

	w := serve(h, http.MethodGet, "/api/signals/abc", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestGetSignalNotFound(t *testing.T) {
	h := newTestHandler(traderStoreStub{}, signalStoreStub{}, breakdownStub{})

	w := serve(h, http.MethodGet, "/api/signals/42", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestGetRecommendationsRequiresUserID(t *testing.T) {
	h := newTestHandler(traderStoreStub{}, signalStoreStub{}, breakdownStub{})

	w := serve(h, http.MethodGet, "/api/recommendations", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestGetInstrumentBreakdownNotFound(t *testing.T) {
	h := newTestHandler(traderStoreStub{}, signalStoreStub{}, breakdownStub{})

	w := serve(h, http.MethodGet, "/api/analysis/TSLA", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestGetInstrumentBreakdown(t *testing.T) {
	breakdown := breakdownStub{breakdown: &domain.ConsensusBreakdown{
		Instrument:          "TSLA",
		TotalTraders:        5,
		ConsensusDirection:  domain.DirectionLong,
		ConsensusPercentage: 80,
	}}
	h := newTestHandler(traderStoreStub{}, signalStoreStub{}, breakdown)

	w := serve(h, http.MethodGet, "/api/analysis/tsla", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var body domain.ConsensusBreakdown
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if body.Instrument != "TSLA" || body.TotalTraders != 5 {
		t.Fatalf("unexpected payload: %+v", body)
	}
}

func TestGetProfileSeedsDefaults(t *testing.T) {
	h := newTestHandler(traderStoreStub{}, signalStoreStub{}, breakdownStub{})

	w := serve(h, http.MethodGet, "/api/profile/7", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var profile domain.UserProfile
	if err := json.Unmarshal(w.Body.Bytes(), &profile); err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if profile.UserID != 7 || profile.RiskTolerance != domain.RiskModerate {
		t.Fatalf("unexpected profile: %+v", profile)
	}
}

func TestUpdateProfileRejectsUnknownRisk(t *testing.T) {
	h := newTestHandler(traderStoreStub{}, signalStoreStub{}, breakdownStub{})

	body := `{"total_capital":1000,"available_capital":500,"risk_tolerance":"yolo"}`
	w := serve(h, http.MethodPut, "/api/profile/7", body)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestOpenPositionRejectsEmptyOrder(t *testing.T) {
	h := newTestHandler(traderStoreStub{}, signalStoreStub{}, breakdownStub{})

	w := serve(h, http.MethodPost, "/api/profile/7/positions", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

type outcomeScorerStub struct {
	prob float64
}

func (s outcomeScorerStub) Score(ctx context.Context, sig domain.Signal) (float64, error) {
	return s.prob, nil
}

func TestGetSignalOutcomeDisabled(t *testing.T) {
	h := newTestHandler(traderStoreStub{}, signalStoreStub{}, breakdownStub{})

	w := serve(h, http.MethodGet, "/api/signals/1/outcome", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without outcome model, got %d", w.Code)
	}
}

func TestGetSignalOutcome(t *testing.T) {
	signals := signalStoreStub{signals: []domain.Signal{
		{ID: 1, Instrument: "AAPL", Action: domain.ActionBuy, StrategyType: domain.StrategyLongTerm, Confidence: 0.8},
	}}
	h := newTestHandler(traderStoreStub{}, signals, breakdownStub{})
	h.outcomeScorer = outcomeScorerStub{prob: 0.73}

	w := serve(h, http.MethodGet, "/api/signals/1/outcome", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		SignalID    int64   `json:"signal_id"`
		Probability float64 `json:"profit_probability"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response: %v", err)
	}
	if resp.SignalID != 1 || resp.Probability != 0.73 {
		t.Fatalf("unexpected payload: %+v", resp)
	}

	w = serve(h, http.MethodGet, "/api/signals/99/outcome", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown signal, got %d", w.Code)
	}
}

func TestAPIKeyAuth(t *testing.T) {
	router := gin.New()
	router.Use(APIKeyAuth("secret"))
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without key, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-API-Key", "wrong")
	router.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 with bad key, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-API-Key", "secret")
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with valid key, got %d", w.Code)
	}
}
