package binance

import (
	"context"
	"net/http"
	"time"

	spot "github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/gregtusar/cashcarry/pkg/models"
)

const (
	DefaultSpotBaseURL    = "https://api.binance.com"
	DefaultFuturesBaseURL = "https://fapi.binance.com"
	DefaultMarginBaseURL  = "https://api.binance.com"
	DefaultTimeout        = 10 * time.Second
)

// MarketData is the read-only venue surface the carry evaluation needs.
type MarketData interface {
	GetSpotPrice(ctx context.Context, symbol string) (models.PriceQuote, error)
	GetFuturePrice(ctx context.Context, symbol string) (models.PriceQuote, error)
	GetFuturePrices(ctx context.Context) (map[string]decimal.Decimal, error)
	GetExchangeInfo(ctx context.Context) (models.ExchangeInfo, error)
	GetBorrowRate(ctx context.Context, asset string, isolated bool) (float64, error)
}

// Config is fixed for the lifetime of a Gateway.
type Config struct {
	APIKey            string
	APISecret         string
	SpotBaseURL       string
	FuturesBaseURL    string
	MarginBaseURL     string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

// Observer is notified after every outbound request.
type Observer func(endpoint string, elapsed time.Duration, err error)

type Option func(*Gateway)

func WithLogger(logger *logrus.Logger) Option {
	return func(g *Gateway) { g.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

func WithObserver(o Observer) Option {
	return func(g *Gateway) { g.observe = o }
}

func WithHTTPClient(c *http.Client) Option {
	return func(g *Gateway) { g.httpClient = c }
}

// Gateway fetches prices, contract metadata and borrow rates from Binance.
// Every call performs exactly one request and is never retried.
type Gateway struct {
	cfg        Config
	httpClient *http.Client
	spot       *spot.Client
	futures    *futures.Client
	auth       Authenticator
	logger     *logrus.Logger
	now        func() time.Time
	observe    Observer
}

func NewGateway(cfg Config, opts ...Option) *Gateway {
	if cfg.SpotBaseURL == "" {
		cfg.SpotBaseURL = DefaultSpotBaseURL
	}
	if cfg.FuturesBaseURL == "" {
		cfg.FuturesBaseURL = DefaultFuturesBaseURL
	}
	if cfg.MarginBaseURL == "" {
		cfg.MarginBaseURL = DefaultMarginBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	g := &Gateway{
		cfg:     cfg,
		logger:  logrus.StandardLogger(),
		now:     time.Now,
		observe: func(string, time.Duration, error) {},
	}
	for _, opt := range opts {
		opt(g)
	}

	if g.httpClient == nil {
		g.httpClient = &http.Client{
			Timeout:   cfg.Timeout,
			Transport: newLimitedTransport(http.DefaultTransport, cfg.RequestsPerSecond, cfg.Burst),
		}
	}

	// Public endpoints only; signing for margin calls is done by auth.
	g.spot = spot.NewClient("", "")
	g.spot.BaseURL = cfg.SpotBaseURL
	g.spot.HTTPClient = g.httpClient

	g.futures = futures.NewClient("", "")
	g.futures.BaseURL = cfg.FuturesBaseURL
	g.futures.HTTPClient = g.httpClient

	g.auth = NewHMACAuthenticator(cfg.APIKey, cfg.APISecret, g.now)

	return g
}

func (g *Gateway) track(endpoint string, start time.Time, err error) {
	elapsed := time.Since(start)
	g.observe(endpoint, elapsed, err)

	entry := g.logger.WithFields(logrus.Fields{
		"endpoint": endpoint,
		"elapsed":  elapsed,
	})
	if err != nil {
		entry.WithError(err).Warn("Binance request failed")
		return
	}
	entry.Debug("Binance request completed")
}

// limitedTransport throttles outbound requests client side. It waits for a
// token before sending; it never resends.
type limitedTransport struct {
	limiter *rate.Limiter
	next    http.RoundTripper
}

func newLimitedTransport(next http.RoundTripper, perSecond float64, burst int) http.RoundTripper {
	if perSecond <= 0 {
		return next
	}
	if burst <= 0 {
		burst = 1
	}
	return &limitedTransport{
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
		next:    next,
	}
}

func (t *limitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.next.RoundTrip(req)
}
