package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/gregtusar/cashcarry/pkg/binance"
	"github.com/gregtusar/cashcarry/pkg/carry"
	"github.com/gregtusar/cashcarry/pkg/models"
	"github.com/gregtusar/cashcarry/pkg/trader"
)

// Evaluator is the part of trader.CarryTrader the API serves.
type Evaluator interface {
	EvaluatePair(ctx context.Context, spotSymbol, futureSymbol string) (models.ArbitrageResult, error)
	ListContracts(ctx context.Context, base string, withPrices bool) ([]models.ContractCandidate, time.Time, error)
	Scan(ctx context.Context) ([]trader.ScanResult, error)
	Params() trader.Params
}

type Server struct {
	evaluator Evaluator
	logger    *logrus.Logger
	port      string
	jwtSecret []byte
	gatherer  prometheus.Gatherer
	srv       *http.Server
}

type Option func(*Server)

// WithJWTSecret requires an HS256 bearer token on every route except health.
func WithJWTSecret(secret string) Option {
	return func(s *Server) {
		if secret != "" {
			s.jwtSecret = []byte(secret)
		}
	}
}

func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

func NewServer(evaluator Evaluator, logger *logrus.Logger, port string, opts ...Option) *Server {
	s := &Server{
		evaluator: evaluator,
		logger:    logger,
		port:      port,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.srv = &http.Server{
		Addr:              ":" + port,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/evaluate", s.handleEvaluate)
	mux.HandleFunc("/api/contracts", s.handleContracts)
	mux.HandleFunc("/api/scan", s.handleScan)
	if s.gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	return requestIDMiddleware(corsMiddleware(s.authMiddleware(mux)))
}

// Start blocks until the server stops. It returns nil after Shutdown, also
// when Shutdown ran first.
func (s *Server) Start() error {
	s.logger.Infof("Starting API server on port %s", s.port)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	if s.jwtSecret == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/health" || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || raw == "" {
			s.writeError(w, r, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		_, err := jwt.Parse(raw, func(*jwt.Token) (interface{}, error) {
			return s.jwtSecret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil {
			s.writeError(w, r, http.StatusUnauthorized, err)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	}

	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	params := s.evaluator.Params()
	spotSymbol := queryOr(r, "spot", params.SpotSymbol)
	futureSymbol := queryOr(r, "future", params.FutureSymbol)

	result, err := s.evaluator.EvaluatePair(r.Context(), spotSymbol, futureSymbol)
	if err != nil {
		s.writeError(w, r, statusFor(err), err)
		return
	}

	s.writeJSON(w, http.StatusOK, models.NewPairEvaluation(spotSymbol, futureSymbol, result))
}

func (s *Server) handleContracts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	withPrices, _ := strconv.ParseBool(r.URL.Query().Get("prices"))
	contracts, serverTime, err := s.evaluator.ListContracts(r.Context(), r.URL.Query().Get("base"), withPrices)
	if err != nil {
		s.writeError(w, r, statusFor(err), err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"server_time": serverTime,
		"contracts":   contracts,
	})
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	results, err := s.evaluator.Scan(r.Context())
	if err != nil {
		s.writeError(w, r, statusFor(err), err)
		return
	}

	s.writeJSON(w, http.StatusOK, results)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, carry.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, carry.ErrInvalidInput), errors.Is(err, carry.ErrContractExpired):
		return http.StatusUnprocessableEntity
	case errors.Is(err, binance.ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func queryOr(r *http.Request, key, fallback string) string {
	if v := r.URL.Query().Get(key); v != "" {
		return v
	}
	return fallback
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	s.logger.WithError(err).WithFields(logrus.Fields{
		"path":       r.URL.Path,
		"status":     status,
		"request_id": w.Header().Get("X-Request-ID"),
	}).Warn("API request failed")

	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.WithError(err).Error("Failed to encode JSON response")
	}
}
