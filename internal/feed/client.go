// Package feed fetches the repository summary feed for a period.
package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/reillywatson/dorastats/internal/observability"
	"github.com/reillywatson/dorastats/internal/summary"
)

const defaultTimeout = 30 * time.Second

// ErrFeedUnavailable wraps every failure to obtain a feed
var ErrFeedUnavailable = errors.New("repository summary feed unavailable")

// Periods are the lookbacks the feed is published for, in days
var Periods = []int{7, 30}

// DefaultPeriod is used when no period is requested
const DefaultPeriod = 30

// ParsePeriod parses a period selector; the empty string selects the default
func ParsePeriod(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultPeriod, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid period %q", s)
	}
	for _, p := range Periods {
		if p == n {
			return n, nil
		}
	}
	return 0, fmt.Errorf("unsupported period %q", s)
}

// Result is a parsed feed document
type Result struct {
	Period int            `json:"period"`
	Rows   []summary.Row  `json:"rows"`
	Totals summary.Totals `json:"totals"`
}

// Fetcher returns the feed for a period
type Fetcher interface {
	Fetch(ctx context.Context, period int) (*Result, error)
}

// Client reads feeds from http(s) URLs or local paths, one location per period
type Client struct {
	httpClient *http.Client
	locations  map[int]string
}

// NewClient creates a feed client for the given period locations
func NewClient(locations map[int]string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		locations: locations,
	}
}

// Location returns where the feed for period is read from
func (c *Client) Location(period int) (string, bool) {
	loc, ok := c.locations[period]
	return loc, ok && loc != ""
}

// Fetch reads and parses the feed for period. Every failure wraps ErrFeedUnavailable.
func (c *Client) Fetch(ctx context.Context, period int) (*Result, error) {
	res, err := c.fetch(ctx, period)
	observability.FeedFetched(period, err)
	return res, err
}

func (c *Client) fetch(ctx context.Context, period int) (*Result, error) {
	loc, ok := c.Location(period)
	if !ok {
		return nil, fmt.Errorf("%w: no feed configured for %d days", ErrFeedUnavailable, period)
	}

	body, err := c.open(ctx, loc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFeedUnavailable, err)
	}
	defer body.Close()

	rows, err := summary.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFeedUnavailable, loc, err)
	}
	return &Result{Period: period, Rows: rows, Totals: summary.Sum(rows)}, nil
}

func (c *Client) open(ctx context.Context, loc string) (io.ReadCloser, error) {
	if !strings.HasPrefix(loc, "http://") && !strings.HasPrefix(loc, "https://") {
		f, err := os.Open(loc)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", loc, err)
		}
		return f, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, loc, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/csv")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request to %s: %w", loc, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("feed returned status %d for URL %s: %s", resp.StatusCode, loc, resp.Status)
	}
	return resp.Body, nil
}
