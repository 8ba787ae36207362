package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
)

const maxErrorBody = 2048

// ClientConfig configures the paginated table reader.
type ClientConfig struct {
	BaseURL     string
	Token       string
	TimeZone    string
	Locale      string
	HTTPTimeout time.Duration
	PageSize    int
	HTTPClient  *http.Client
	Logger      *zap.Logger
}

// HTTPError is returned when the source API answers with a non-2xx status.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("source API error: %d - %s", e.StatusCode, e.Body)
}

// Client reads whole tables from the source API, following offset continuation.
type Client struct {
	baseURL  string
	token    string
	timeZone string
	locale   string
	pageSize int
	http     *http.Client
	logger   *zap.Logger
}

type page struct {
	Records []Record `json:"records"`
	Offset  string   `json:"offset"`
}

// NewClient constructs a Client with sane defaults.
func NewClient(cfg ClientConfig) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.HTTPTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:  cfg.BaseURL,
		token:    cfg.Token,
		timeZone: cfg.TimeZone,
		locale:   cfg.Locale,
		pageSize: cfg.PageSize,
		http:     httpClient,
		logger:   logger,
	}
}

// FetchAll returns every record of a table in source order.
func (c *Client) FetchAll(ctx context.Context, baseID, table string) ([]Record, error) {
	var (
		records []Record
		offset  string
		pages   int
	)
	for {
		p, err := c.fetchPage(ctx, baseID, table, offset)
		if err != nil {
			return nil, fmt.Errorf("fetch %s/%s page %d: %w", baseID, table, pages+1, err)
		}
		pages++
		records = append(records, p.Records...)
		if p.Offset == "" {
			break
		}
		offset = p.Offset
	}
	c.logger.Debug("source table fetched",
		zap.String("base", baseID),
		zap.String("table", table),
		zap.Int("pages", pages),
		zap.Int("records", len(records)),
	)
	return records, nil
}

func (c *Client) fetchPage(ctx context.Context, baseID, table, offset string) (*page, error) {
	endpoint := fmt.Sprintf("%s/%s/%s", c.baseURL, url.PathEscape(baseID), url.PathEscape(table))
	q := url.Values{}
	q.Set("cellFormat", "string")
	if c.timeZone != "" {
		q.Set("timeZone", c.timeZone)
	}
	if c.locale != "" {
		q.Set("userLocale", c.locale)
	}
	if c.pageSize > 0 {
		q.Set("pageSize", strconv.Itoa(c.pageSize))
	}
	if offset != "" {
		q.Set("offset", offset)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var p page
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("decode page: %w", err)
	}
	return &p, nil
}
