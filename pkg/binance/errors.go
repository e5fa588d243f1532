package binance

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"

	"github.com/adshao/go-binance/v2/common"
)

var (
	ErrNetwork = errors.New("network error")
	ErrVenue   = errors.New("venue error")
	ErrAuth    = errors.New("authentication failed")
	ErrTimeout = errors.New("request timed out")
)

// Binance error codes that mean the key, permissions or signature were rejected.
var authErrorCodes = map[int64]bool{
	-1002: true,
	-1022: true,
	-2014: true,
	-2015: true,
}

// APIError is a rejection returned by the venue. It matches ErrAuth for
// credential problems and ErrVenue otherwise.
type APIError struct {
	StatusCode int
	Code       int64
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("binance API error: status=%d code=%d msg=%s", e.StatusCode, e.Code, e.Message)
}

func (e *APIError) isAuth() bool {
	if e.StatusCode == 401 || e.StatusCode == 403 {
		return true
	}
	return authErrorCodes[e.Code]
}

func (e *APIError) Is(target error) bool {
	switch target {
	case ErrAuth:
		return e.isAuth()
	case ErrVenue:
		return !e.isAuth()
	}
	return false
}

// classify maps a failed call onto the gateway error taxonomy. Anything that
// is not a transport failure is treated as a malformed venue reply.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s: %w", op, err)
	}

	var binanceErr *common.APIError
	if errors.As(err, &binanceErr) {
		return fmt.Errorf("%s: %w", op, &APIError{Code: binanceErr.Code, Message: binanceErr.Message})
	}

	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %v", op, ErrTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%s: %w: %v", op, ErrTimeout, err)
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) || netErr != nil {
		return fmt.Errorf("%s: %w: %v", op, ErrNetwork, err)
	}

	return fmt.Errorf("%s: %w: %v", op, ErrVenue, err)
}
