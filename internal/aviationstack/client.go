// Package aviationstack is a minimal client for the aviationstack flights API.
package aviationstack

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kalambet/nonrev/internal/flight"
)

const (
	defaultBaseURL = "http://api.aviationstack.com/v1"
	defaultTimeout = 10 * time.Second

	// MaxLimit is the largest page the provider returns on standard plans.
	MaxLimit = 100
)

// ErrTimeout is returned when a single upstream call exceeds the client timeout.
var ErrTimeout = errors.New("upstream request timed out")

// APIError is a non-2xx response or an error envelope from the provider.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("upstream error (HTTP %d, %s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("upstream error (HTTP %d): %s", e.StatusCode, e.Message)
}

// Client fetches flight pages. It never retries and never caches.
type Client struct {
	accessKey  string
	baseURL    string
	timeout    time.Duration
	userAgent  string
	httpClient *http.Client
}

// NewClient creates a client with the given access key and per-call timeout.
// A zero timeout selects the default.
func NewClient(accessKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		accessKey:  accessKey,
		baseURL:    defaultBaseURL,
		timeout:    timeout,
		userAgent:  "nonrev/dev",
		httpClient: &http.Client{},
	}
}

// NewClientWithBaseURL creates a client pointing at a custom base URL (for testing).
func NewClientWithBaseURL(accessKey, baseURL string, timeout time.Duration) *Client {
	c := NewClient(accessKey, timeout)
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

// SetUserAgent overrides the User-Agent header sent upstream.
func (c *Client) SetUserAgent(ua string) {
	c.userAgent = ua
}

// Flights fetches a single page of flights matching q.
func (c *Client) Flights(ctx context.Context, q Query) (Page, error) {
	limit := q.Limit
	if limit <= 0 || limit > MaxLimit {
		limit = MaxLimit
	}

	params := url.Values{}
	params.Set("access_key", c.accessKey)
	if q.DepIATA != "" {
		params.Set("dep_iata", q.DepIATA)
	}
	if q.ArrIATA != "" {
		params.Set("arr_iata", q.ArrIATA)
	}
	if q.FlightIATA != "" {
		params.Set("flight_iata", q.FlightIATA)
	}
	if q.FlightDate != "" {
		params.Set("flight_date", q.FlightDate)
	}
	params.Set("offset", strconv.Itoa(q.Offset))
	params.Set("limit", strconv.Itoa(limit))

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.baseURL+"/flights?"+params.Encode(), nil)
	if err != nil {
		return Page{}, fmt.Errorf("creating request: %w", c.scrub(err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Page{}, c.transportError(ctx, reqCtx, "requesting flights", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Page{}, c.transportError(ctx, reqCtx, "reading response", err)
	}

	var fr flightsResponse
	decodeErr := json.Unmarshal(body, &fr)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: c.redact(truncate(string(body), 512))}
		if decodeErr == nil && fr.Error != nil {
			apiErr.Code = fr.Error.Code
			apiErr.Message = c.redact(fr.Error.Message)
		}
		return Page{}, apiErr
	}
	if decodeErr != nil {
		return Page{}, &APIError{StatusCode: resp.StatusCode, Message: "decoding response: " + decodeErr.Error()}
	}
	if fr.Error != nil {
		return Page{}, &APIError{StatusCode: resp.StatusCode, Code: fr.Error.Code, Message: c.redact(fr.Error.Message)}
	}

	page := Page{Records: make([]flight.Record, 0, len(fr.Data))}
	for _, w := range fr.Data {
		page.Records = append(page.Records, w.record())
	}
	page.Count = len(page.Records)
	if fr.Pagination != nil {
		page.Total = fr.Pagination.Total
		page.Offset = fr.Pagination.Offset
	} else {
		page.Total = page.Count
	}
	return page, nil
}

// transportError classifies a failed round trip. The *url.Error wrapper is
// discarded because its text includes the request URL and the access key.
func (c *Client) transportError(parent, reqCtx context.Context, op string, err error) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", ErrTimeout, c.timeout)
	}
	return fmt.Errorf("%s: %w", op, c.scrub(err))
}

func (c *Client) scrub(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		err = ue.Err
	}
	if c.accessKey != "" && strings.Contains(err.Error(), c.accessKey) {
		return errors.New(c.redact(err.Error()))
	}
	return err
}

func (c *Client) redact(s string) string {
	if c.accessKey == "" {
		return s
	}
	return strings.ReplaceAll(s, c.accessKey, "[redacted]")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
