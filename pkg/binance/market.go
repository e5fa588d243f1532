package binance

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gregtusar/cashcarry/pkg/models"
)

func (g *Gateway) GetSpotPrice(ctx context.Context, symbol string) (models.PriceQuote, error) {
	start := time.Now()
	prices, err := g.spot.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		err = classify("spot price "+symbol, err)
		g.track("spot_price", start, err)
		return models.PriceQuote{}, err
	}

	quote, err := pickQuote(symbol, len(prices), func(i int) (string, string) {
		return prices[i].Symbol, prices[i].Price
	})
	g.track("spot_price", start, err)
	return quote, err
}

func (g *Gateway) GetFuturePrice(ctx context.Context, symbol string) (models.PriceQuote, error) {
	start := time.Now()
	prices, err := g.futures.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		err = classify("future price "+symbol, err)
		g.track("future_price", start, err)
		return models.PriceQuote{}, err
	}

	quote, err := pickQuote(symbol, len(prices), func(i int) (string, string) {
		return prices[i].Symbol, prices[i].Price
	})
	g.track("future_price", start, err)
	return quote, err
}

// GetFuturePrices returns the last price of every futures symbol in one call.
func (g *Gateway) GetFuturePrices(ctx context.Context) (map[string]decimal.Decimal, error) {
	start := time.Now()
	prices, err := g.futures.NewListPricesService().Do(ctx)
	if err != nil {
		err = classify("future prices", err)
		g.track("future_prices", start, err)
		return nil, err
	}

	out := make(map[string]decimal.Decimal, len(prices))
	for _, p := range prices {
		price, err := parsePrice(p.Symbol, p.Price)
		if err != nil {
			g.track("future_prices", start, err)
			return nil, err
		}
		out[p.Symbol] = price
	}
	g.track("future_prices", start, nil)
	return out, nil
}

func (g *Gateway) GetExchangeInfo(ctx context.Context) (models.ExchangeInfo, error) {
	start := time.Now()
	info, err := g.futures.NewExchangeInfoService().Do(ctx)
	if err != nil {
		err = classify("exchange info", err)
		g.track("exchange_info", start, err)
		return models.ExchangeInfo{}, err
	}
	if info.ServerTime == 0 {
		err = fmt.Errorf("exchange info: %w: missing serverTime", ErrVenue)
		g.track("exchange_info", start, err)
		return models.ExchangeInfo{}, err
	}

	contracts := make([]models.ContractMetadata, 0, len(info.Symbols))
	for _, s := range info.Symbols {
		contracts = append(contracts, models.ContractMetadata{
			Symbol:            s.Symbol,
			Pair:              s.Pair,
			BaseAsset:         s.BaseAsset,
			QuoteAsset:        s.QuoteAsset,
			MarginAsset:       s.MarginAsset,
			ContractType:      models.ContractType(s.ContractType),
			Status:            models.ContractStatus(s.Status),
			DeliveryTimestamp: s.DeliveryDate,
			OnboardTimestamp:  s.OnboardDate,
		})
	}

	g.track("exchange_info", start, nil)
	return models.ExchangeInfo{
		ServerTimestamp: info.ServerTime,
		Contracts:       contracts,
	}, nil
}

func pickQuote(symbol string, n int, at func(i int) (string, string)) (models.PriceQuote, error) {
	for i := 0; i < n; i++ {
		s, raw := at(i)
		if s != symbol {
			continue
		}
		price, err := parsePrice(symbol, raw)
		if err != nil {
			return models.PriceQuote{}, err
		}
		return models.PriceQuote{Symbol: symbol, Price: price}, nil
	}
	return models.PriceQuote{}, fmt.Errorf("%w: no price returned for %s", ErrVenue, symbol)
}

func parsePrice(symbol, raw string) (decimal.Decimal, error) {
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: price %q for %s: %v", ErrVenue, raw, symbol, err)
	}
	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: non-positive price %s for %s", ErrVenue, raw, symbol)
	}
	return price, nil
}
