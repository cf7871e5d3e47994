package snapshot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/wonny/optionrank/internal/contracts"
	"github.com/wonny/optionrank/pkg/config"
	"github.com/wonny/optionrank/pkg/httputil"
	"github.com/wonny/optionrank/pkg/logger"
)

// HTTPSource fetches chains from the quote service: GET {base}/v1/chains/{symbol}
// ⭐ SSOT: 외부 옵션 체인 HTTP 호출은 이 소스에서만
type HTTPSource struct {
	baseURL string
	client  *httputil.Client
	breaker *gobreaker.CircuitBreaker
	logger  *logger.Logger
}

// NewHTTPSource creates an HTTP snapshot source with rate limiting and a circuit breaker
func NewHTTPSource(cfg config.SnapshotConfig, log *logger.Logger) *HTTPSource {
	client := httputil.New(log, cfg.Timeout).
		WithRetry(2, 500*time.Millisecond).
		WithRateLimit(cfg.RequestsPerSec)

	return &HTTPSource{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  client,
		breaker: newBreaker("snapshot-http", cfg.BreakerFailures, log),
		logger:  log,
	}
}

func newBreaker(name string, failures int, log *logger.Logger) *gobreaker.CircuitBreaker {
	if failures <= 0 {
		failures = 3
	}

	st := gobreaker.Settings{Name: name}
	st.Interval = 60 * time.Second
	st.Timeout = 30 * time.Second
	st.ReadyToTrip = func(counts gobreaker.Counts) bool {
		return counts.ConsecutiveFailures >= uint32(failures)
	}
	// 404 is an answer, not an outage
	st.IsSuccessful = func(err error) bool {
		return err == nil || errors.Is(err, contracts.ErrSnapshotNotFound)
	}
	st.OnStateChange = func(name string, from, to gobreaker.State) {
		log.WithFields(map[string]interface{}{
			"breaker": name,
			"from":    from.String(),
			"to":      to.String(),
		}).Warn("Snapshot circuit breaker state changed")
	}

	return gobreaker.NewCircuitBreaker(st)
}

// Fetch implements contracts.SnapshotSource
func (s *HTTPSource) Fetch(ctx context.Context, symbol string) (*contracts.ChainSnapshot, error) {
	endpoint := fmt.Sprintf("%s/v1/chains/%s", s.baseURL, url.PathEscape(symbol))

	out, err := s.breaker.Execute(func() (interface{}, error) {
		var payload chainPayload
		if err := s.client.GetJSON(ctx, endpoint, &payload); err != nil {
			var statusErr *httputil.StatusError
			if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
				return nil, fmt.Errorf("%w: %s", contracts.ErrSnapshotNotFound, symbol)
			}
			return nil, err
		}
		return &payload, nil
	})
	if err != nil {
		if errors.Is(err, contracts.ErrSnapshotNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: fetch %s: %v", contracts.ErrDataUnavailable, symbol, err)
	}

	chain, err := out.(*chainPayload).toChain(symbol)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"symbol":    symbol,
		"contracts": len(chain.Contracts),
		"as_of":     chain.AsOf,
	}).Debug("Fetched chain snapshot")

	return chain, nil
}

// BreakerState reports the circuit breaker state (closed, half-open, open)
func (s *HTTPSource) BreakerState() string {
	return s.breaker.State().String()
}
