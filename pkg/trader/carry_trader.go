package trader

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/gregtusar/cashcarry/pkg/binance"
	"github.com/gregtusar/cashcarry/pkg/carry"
	"github.com/gregtusar/cashcarry/pkg/models"
)

// Params are the evaluation settings. They are fixed once the trader is built.
type Params struct {
	SpotSymbol      string
	FutureSymbol    string
	CashAsset       string
	UnderlyingBase  string
	UnderlyingQuote string
	SpotFeeRate     float64
	FutureFeeRate   float64
	RiskRateAsked   float64
	MaxDaysToExpiry float64
	IsolatedMargin  bool
}

func DefaultParams() Params {
	return Params{
		SpotSymbol:      "BTCUSDT",
		FutureSymbol:    "BTCUSDT_251226",
		CashAsset:       "USDT",
		UnderlyingBase:  "BTC",
		UnderlyingQuote: "USDT",
		SpotFeeRate:     0.001,
		FutureFeeRate:   0.0004,
		RiskRateAsked:   0.02,
		MaxDaysToExpiry: 60,
		IsolatedMargin:  true,
	}
}

// Recorder receives the outcome of every evaluation.
type Recorder interface {
	RecordEvaluation(future string, result models.ArbitrageResult)
	RecordEvaluationError(future string, err error)
}

type nopRecorder struct{}

func (nopRecorder) RecordEvaluation(string, models.ArbitrageResult) {}
func (nopRecorder) RecordEvaluationError(string, error)             {}

type ScanResult struct {
	Contract models.ContractCandidate `json:"contract"`
	Result   models.ArbitrageResult   `json:"result"`
}

type CarryTrader struct {
	market   binance.MarketData
	params   Params
	recorder Recorder
	logger   *logrus.Logger
}

func NewCarryTrader(market binance.MarketData, params Params, logger *logrus.Logger) *CarryTrader {
	return &CarryTrader{
		market:   market,
		params:   params,
		recorder: nopRecorder{},
		logger:   logger,
	}
}

func (ct *CarryTrader) SetRecorder(r Recorder) {
	ct.recorder = r
}

func (ct *CarryTrader) Params() Params {
	return ct.params
}

// Evaluate runs EvaluatePair on the configured spot and future symbols.
func (ct *CarryTrader) Evaluate(ctx context.Context) (models.ArbitrageResult, error) {
	return ct.EvaluatePair(ctx, ct.params.SpotSymbol, ct.params.FutureSymbol)
}

// EvaluatePair fetches borrow rate, both prices and exchange info, then
// prices the future against spot. The four reads are independent and run
// concurrently; the first failure cancels the rest and fails the evaluation.
func (ct *CarryTrader) EvaluatePair(ctx context.Context, spotSymbol, futureSymbol string) (models.ArbitrageResult, error) {
	var (
		borrowRate float64
		spotQuote  models.PriceQuote
		futQuote   models.PriceQuote
		info       models.ExchangeInfo
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		borrowRate, err = ct.market.GetBorrowRate(gctx, ct.params.CashAsset, ct.params.IsolatedMargin)
		return err
	})
	g.Go(func() error {
		var err error
		spotQuote, err = ct.market.GetSpotPrice(gctx, spotSymbol)
		return err
	})
	g.Go(func() error {
		var err error
		futQuote, err = ct.market.GetFuturePrice(gctx, futureSymbol)
		return err
	})
	g.Go(func() error {
		var err error
		info, err = ct.market.GetExchangeInfo(gctx)
		return err
	})

	if err := g.Wait(); err != nil {
		return ct.fail(futureSymbol, err)
	}

	return ct.price(spotQuote, futureSymbol, futQuote.Price, borrowRate, info)
}

// price evaluates one future against an already fetched market snapshot.
func (ct *CarryTrader) price(spotQuote models.PriceQuote, futureSymbol string, futurePrice decimal.Decimal, borrowRate float64, info models.ExchangeInfo) (models.ArbitrageResult, error) {
	contract, err := carry.FindContract(info.Contracts, futureSymbol)
	if err != nil {
		return ct.fail(futureSymbol, err)
	}
	// perpetuals carry a far-future placeholder delivery date
	if contract.ContractType == models.ContractTypePerpetual {
		return ct.fail(futureSymbol, fmt.Errorf("%w: %s is a perpetual contract", carry.ErrInvalidInput, futureSymbol))
	}

	result, err := carry.Evaluate(carry.EvaluationInput{
		SpotPrice:         spotQuote.Price.InexactFloat64(),
		FuturePrice:       futurePrice.InexactFloat64(),
		BorrowRate:        borrowRate,
		DeliveryTimestamp: contract.DeliveryTimestamp,
		NowTimestamp:      info.ServerTimestamp,
		SpotFeeRate:       ct.params.SpotFeeRate,
		FutureFeeRate:     ct.params.FutureFeeRate,
		RiskRateAsked:     ct.params.RiskRateAsked,
	})
	if err != nil {
		return ct.fail(futureSymbol, err)
	}

	ct.recorder.RecordEvaluation(futureSymbol, result)
	ct.logger.WithFields(logrus.Fields{
		"spot_symbol":    spotQuote.Symbol,
		"future_symbol":  futureSymbol,
		"spot":           result.SpotPrice,
		"future":         result.FuturePrice,
		"theoretical":    result.TheoreticalFuture,
		"borrow_rate":    borrowRate,
		"opportunity":    result.Opportunity.String(),
		"arbitrage_rate": result.ArbitrageRate,
	}).Info("Evaluated carry")

	return result, nil
}

func (ct *CarryTrader) fail(futureSymbol string, err error) (models.ArbitrageResult, error) {
	ct.recorder.RecordEvaluationError(futureSymbol, err)
	ct.logger.WithError(err).WithField("future_symbol", futureSymbol).Error("Carry evaluation failed")
	return models.ArbitrageResult{}, fmt.Errorf("evaluate %s: %w", futureSymbol, err)
}

// ListContracts returns the dated contracts on base eligible for evaluation,
// nearest expiry first, and the venue server time they were computed at.
func (ct *CarryTrader) ListContracts(ctx context.Context, base string, withPrices bool) ([]models.ContractCandidate, time.Time, error) {
	if base == "" {
		base = ct.params.UnderlyingBase
	}

	info, err := ct.market.GetExchangeInfo(ctx)
	if err != nil {
		return nil, time.Time{}, err
	}
	serverTime := time.UnixMilli(info.ServerTimestamp).UTC()

	candidates := carry.SelectFutureContracts(info.Contracts, info.ServerTimestamp, base, ct.params.UnderlyingQuote, ct.params.MaxDaysToExpiry)
	if !withPrices || len(candidates) == 0 {
		return candidates, serverTime, nil
	}

	prices, err := ct.market.GetFuturePrices(ctx)
	if err != nil {
		return nil, time.Time{}, err
	}
	for i := range candidates {
		if p, ok := prices[candidates[i].Symbol]; ok {
			f := p.InexactFloat64()
			candidates[i].FuturePrice = &f
		}
	}
	return candidates, serverTime, nil
}

// Scan evaluates every eligible contract on the configured underlying against
// the configured spot symbol. Selection and pricing share one snapshot of
// borrow rate, spot price, futures prices and exchange info. A failed
// evaluation fails the scan.
func (ct *CarryTrader) Scan(ctx context.Context) ([]ScanResult, error) {
	var (
		borrowRate float64
		spotQuote  models.PriceQuote
		futPrices  map[string]decimal.Decimal
		info       models.ExchangeInfo
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		borrowRate, err = ct.market.GetBorrowRate(gctx, ct.params.CashAsset, ct.params.IsolatedMargin)
		return err
	})
	g.Go(func() error {
		var err error
		spotQuote, err = ct.market.GetSpotPrice(gctx, ct.params.SpotSymbol)
		return err
	})
	g.Go(func() error {
		var err error
		futPrices, err = ct.market.GetFuturePrices(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		info, err = ct.market.GetExchangeInfo(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", ct.params.UnderlyingBase, err)
	}

	candidates := carry.SelectFutureContracts(info.Contracts, info.ServerTimestamp, ct.params.UnderlyingBase, ct.params.UnderlyingQuote, ct.params.MaxDaysToExpiry)

	results := make([]ScanResult, 0, len(candidates))
	for _, c := range candidates {
		// delivering right now, nothing left to carry
		if c.DaysToExpiry <= 0 {
			continue
		}
		futPrice, ok := futPrices[c.Symbol]
		if !ok {
			_, err := ct.fail(c.Symbol, fmt.Errorf("%w: no price returned for %s", binance.ErrVenue, c.Symbol))
			return nil, err
		}
		res, err := ct.price(spotQuote, c.Symbol, futPrice, borrowRate, info)
		if err != nil {
			return nil, err
		}
		f := futPrice.InexactFloat64()
		c.FuturePrice = &f
		results = append(results, ScanResult{Contract: c, Result: res})
	}

	ct.logger.WithFields(logrus.Fields{
		"underlying": ct.params.UnderlyingBase,
		"contracts":  len(results),
	}).Info("Carry scan complete")

	return results, nil
}
