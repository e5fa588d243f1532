package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gregtusar/cashcarry/pkg/binance"
	"github.com/gregtusar/cashcarry/pkg/carry"
	"github.com/gregtusar/cashcarry/pkg/models"
	"github.com/gregtusar/cashcarry/pkg/trader"
)

var (
	_ trader.Recorder = (*Metrics)(nil)
	_ binance.Observer = (*Metrics)(nil).ObserveRequest
)

func TestRecordEvaluation(t *testing.T) {
	m := New()

	m.RecordEvaluation("BTCUSDT_251226", models.ArbitrageResult{Opportunity: models.OpportunityReverseCashAndCarry, ArbitrageRate: 0.05})
	m.RecordEvaluation("BTCUSDT_251226", models.ArbitrageResult{Opportunity: models.OpportunityNone})
	m.RecordEvaluationError("BTCUSDT_260327", fmt.Errorf("evaluate BTCUSDT_260327: %w", binance.ErrTimeout))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.evaluations.WithLabelValues("REVERSE_CASH_AND_CARRY")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.evaluations.WithLabelValues("NONE")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.arbitrageRate.WithLabelValues("BTCUSDT_251226")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.evaluationErrors.WithLabelValues("timeout")))
}

func TestRecordEvaluationError_UnknownSymbolsShareOneSeries(t *testing.T) {
	m := New()

	for i := 0; i < 500; i++ {
		sym := fmt.Sprintf("junk%d", i)
		m.RecordEvaluationError(sym, fmt.Errorf("evaluate %s: %w: %s", sym, carry.ErrNotFound, sym))
	}

	assert.Equal(t, 1, testutil.CollectAndCount(m.evaluationErrors))
	assert.Equal(t, 500.0, testutil.ToFloat64(m.evaluationErrors.WithLabelValues("not_found")))
	assert.Zero(t, testutil.CollectAndCount(m.arbitrageRate))
}

type staticMarket struct{}

func (staticMarket) GetSpotPrice(_ context.Context, symbol string) (models.PriceQuote, error) {
	return models.PriceQuote{Symbol: symbol, Price: decimal.NewFromInt(100)}, nil
}

func (staticMarket) GetFuturePrice(_ context.Context, symbol string) (models.PriceQuote, error) {
	return models.PriceQuote{Symbol: symbol, Price: decimal.NewFromInt(102)}, nil
}

func (staticMarket) GetFuturePrices(context.Context) (map[string]decimal.Decimal, error) {
	return map[string]decimal.Decimal{"BTCUSDT_251226": decimal.NewFromInt(102)}, nil
}

func (staticMarket) GetExchangeInfo(context.Context) (models.ExchangeInfo, error) {
	const now int64 = 1_760_000_000_000
	return models.ExchangeInfo{
		ServerTimestamp: now,
		Contracts: []models.ContractMetadata{{
			Symbol:            "BTCUSDT_251226",
			BaseAsset:         "BTC",
			QuoteAsset:        "USDT",
			ContractType:      models.ContractTypeCurrentQuarter,
			Status:            models.ContractStatusTrading,
			DeliveryTimestamp: now + 30*86_400_000,
		}},
	}, nil
}

func (staticMarket) GetBorrowRate(context.Context, string, bool) (float64, error) {
	return 0.0001, nil
}

func TestTraderErrorsStayBounded(t *testing.T) {
	m := New()
	logger, _ := test.NewNullLogger()
	ct := trader.NewCarryTrader(staticMarket{}, trader.DefaultParams(), logger)
	ct.SetRecorder(m)

	for i := 0; i < 200; i++ {
		_, err := ct.EvaluatePair(context.Background(), "BTCUSDT", fmt.Sprintf("junk%d", i))
		require.ErrorIs(t, err, carry.ErrNotFound)
	}
	_, err := ct.EvaluatePair(context.Background(), "BTCUSDT", "BTCUSDT_251226")
	require.NoError(t, err)

	assert.Equal(t, 1, testutil.CollectAndCount(m.evaluationErrors))
	assert.Equal(t, 1, testutil.CollectAndCount(m.arbitrageRate))
}

func TestReason(t *testing.T) {
	cases := map[string]error{
		"not_found":     carry.ErrNotFound,
		"invalid_input": carry.ErrInvalidInput,
		"expired":       carry.ErrContractExpired,
		"auth":          &binance.APIError{StatusCode: 401, Code: -2015},
		"venue":         &binance.APIError{StatusCode: 500, Code: -1000},
		"timeout":       binance.ErrTimeout,
		"network":       binance.ErrNetwork,
		"canceled":      context.Canceled,
		"other":         errors.New("boom"),
	}
	for want, err := range cases {
		assert.Equal(t, want, reason(fmt.Errorf("wrapped: %w", err)), want)
	}
}

func TestObserveRequest(t *testing.T) {
	m := New()

	m.ObserveRequest("spot_price", 20*time.Millisecond, nil)
	m.ObserveRequest("spot_price", 30*time.Millisecond, errors.New("timeout"))

	assert.Equal(t, 1, testutil.CollectAndCount(m.requestDuration))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestErrors.WithLabelValues("spot_price")))
}
