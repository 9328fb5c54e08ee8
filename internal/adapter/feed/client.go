package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/couchcryptid/visitor-density/internal/domain"
	"github.com/couchcryptid/visitor-density/internal/observability"
	"github.com/sony/gobreaker/v2"
)

const (
	dateLayout     = "2006-01-02"
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
	maxBodyBytes   = 32 << 20
)

// errClient marks responses that retrying cannot fix.
var errClient = errors.New("client error")

// ErrBodyTooLarge is returned when a feed response exceeds the body limit.
var ErrBodyTooLarge = errors.New("feed response too large")

// Client fetches one day of the visitor table from a remote feed endpoint
// (GET <base>?date=YYYY-MM-DD).
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	backoff    time.Duration
	maxBackoff time.Duration
	maxBody    int64
	loc        *time.Location
	breaker    *gobreaker.CircuitBreaker[[]byte]
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a feed client. Days are formatted in loc. Up to
// maxRetries extra attempts are made after a failed request.
func NewClient(baseURL string, timeout time.Duration, maxRetries int, loc *time.Location, metrics *observability.Metrics, logger *slog.Logger) *Client {
	if loc == nil {
		loc = time.Local
	}
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		maxRetries: maxRetries,
		backoff:    initialBackoff,
		maxBackoff: maxBackoff,
		maxBody:    maxBodyBytes,
		loc:        loc,
		metrics:    metrics,
		logger:     logger,
	}
	c.breaker = newBreaker(logger)
	return c
}

func newBreaker(logger *slog.Logger) *gobreaker.CircuitBreaker[[]byte] {
	return gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "visitor-feed",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			// 4xx answers mean the feed is up.
			return err == nil || errors.Is(err, errClient)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("feed circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
}

// Fetch requests the table for day. A zero day asks for today.
func (c *Client) Fetch(ctx context.Context, day time.Time) ([]byte, error) {
	if day.IsZero() {
		day = domain.Today(c.loc)
	}
	date := day.In(c.loc).Format(dateLayout)

	start := domain.Clock().Now()
	defer func() {
		c.metrics.FetchDuration.Observe(domain.Clock().Since(start).Seconds())
	}()

	backoff := c.backoff
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		body, err := c.breaker.Execute(func() ([]byte, error) {
			return c.doRequest(ctx, date)
		})
		if err == nil {
			c.metrics.FetchRequests.WithLabelValues("success").Inc()
			return body, nil
		}
		lastErr = err

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.metrics.FetchRequests.WithLabelValues("rejected").Inc()
			return nil, &domain.NetworkError{Op: "fetch visitors " + date, Err: err}
		}
		c.metrics.FetchRequests.WithLabelValues("error").Inc()
		if errors.Is(err, errClient) || ctx.Err() != nil || attempt == c.maxRetries {
			break
		}

		c.logger.Warn("feed fetch failed, retrying", "date", date, "attempt", attempt+1, "backoff", backoff, "error", err)
		if !sleepWithContext(ctx, backoff) {
			break
		}
		backoff = retry.NextBackoff(backoff, c.maxBackoff)
	}
	return nil, &domain.NetworkError{Op: "fetch visitors " + date, Err: lastErr}
}

func (c *Client) doRequest(ctx context.Context, date string) ([]byte, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse feed url: %w", err)
	}
	q := u.Query()
	q.Set("date", date)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/csv")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("read feed response: %w", err)
	}
	if int64(len(body)) > c.maxBody {
		return nil, fmt.Errorf("%w: %w: limit %d bytes", errClient, ErrBodyTooLarge, c.maxBody)
	}
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return nil, fmt.Errorf("%w: feed status %d: %s", errClient, resp.StatusCode, body)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed status %d: %s", resp.StatusCode, body)
	}
	return body, nil
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := domain.Clock().NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
