package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const nextHourlyInterestRatePath = "/sapi/v1/margin/next-hourly-interest-rate"

type interestRateEntry struct {
	Asset                  string `json:"asset"`
	NextHourlyInterestRate string `json:"nextHourlyInterestRate"`
}

// GetBorrowRate returns the next hourly margin interest rate for asset.
func (g *Gateway) GetBorrowRate(ctx context.Context, asset string, isolated bool) (float64, error) {
	start := time.Now()
	rate, err := g.getBorrowRate(ctx, asset, isolated)
	g.track("borrow_rate", start, err)
	return rate, err
}

func (g *Gateway) getBorrowRate(ctx context.Context, asset string, isolated bool) (float64, error) {
	op := "borrow rate " + asset

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.cfg.MarginBaseURL+nextHourlyInterestRatePath, nil)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	params := url.Values{}
	params.Set("assets", asset)
	params.Set("isIsolated", strings.ToUpper(fmt.Sprintf("%t", isolated)))
	if err := g.auth.Sign(req, params); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	body, err := g.doRequest(req)
	if err != nil {
		return 0, classify(op, err)
	}

	var entries []interestRateEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return 0, fmt.Errorf("%s: %w: decode: %v", op, ErrVenue, err)
	}
	if len(entries) == 0 {
		return 0, fmt.Errorf("%s: %w: no rate entry", op, ErrVenue)
	}

	rate, err := decimal.NewFromString(entries[0].NextHourlyInterestRate)
	if err != nil {
		return 0, fmt.Errorf("%s: %w: rate %q: %v", op, ErrVenue, entries[0].NextHourlyInterestRate, err)
	}
	return rate.InexactFloat64(), nil
}

func (g *Gateway) doRequest(req *http.Request) ([]byte, error) {
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
		var payload struct {
			Code int64  `json:"code"`
			Msg  string `json:"msg"`
		}
		if json.Unmarshal(body, &payload) == nil && payload.Msg != "" {
			apiErr.Code = payload.Code
			apiErr.Message = payload.Msg
		}
		return nil, apiErr
	}

	return body, nil
}
