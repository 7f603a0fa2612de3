// Package apiclient fetches table pages from the platform's REST API. The
// API answers list requests with a {data, pagination} envelope whose field
// names follow the API's case convention.
package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/JonMunkholm/votedesk/internal/datatable"
)

// StatusError is a non-2xx upstream response.
type StatusError struct {
	Code int
	URL  string
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upstream returned status %d", e.Code)
	}
	return fmt.Sprintf("upstream returned status %d: %s", e.Code, e.Body)
}

// Client calls the upstream API.
type Client struct {
	base  string
	token string
	http  *http.Client
	log   *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithToken sends token as a bearer credential.
func WithToken(token string) Option { return func(c *Client) { c.token = token } }

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(c *Client) { c.log = l } }

// New creates a client for baseURL.
func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: timeout},
		log:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetcher binds an API path and its case convention.
func (c *Client) Fetcher(path string, cases datatable.CaseConfig) datatable.FetchFunc {
	return func(ctx context.Context, req datatable.PageRequest) (datatable.PageResult, error) {
		return c.Fetch(ctx, path, cases, req)
	}
}

type envelope struct {
	Data       []map[string]any `json:"data"`
	Pagination map[string]any   `json:"pagination"`
}

// Fetch requests one page from path.
func (c *Client) Fetch(ctx context.Context, path string, cases datatable.CaseConfig, req datatable.PageRequest) (datatable.PageResult, error) {
	url := c.base + "/" + strings.TrimLeft(path, "/") + "?" + cases.APIQuery(req).Encode()

	hreq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return datatable.PageResult{}, err
	}
	hreq.Header.Set("Accept", "application/json")
	if c.token != "" {
		hreq.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(hreq)
	if err != nil {
		return datatable.PageResult{}, fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return datatable.PageResult{}, &StatusError{
			Code: resp.StatusCode,
			URL:  url,
			Body: strings.TrimSpace(string(body)),
		}
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	var env envelope
	if err := dec.Decode(&env); err != nil {
		return datatable.PageResult{}, fmt.Errorf("decode response: %w", err)
	}

	result := datatable.PageResult{
		Data:       make([]datatable.Row, 0, len(env.Data)),
		Pagination: decodePagination(env.Pagination, req, len(env.Data)),
	}
	for _, raw := range env.Data {
		row := make(datatable.Row, len(raw))
		for k, v := range raw {
			row[cases.FromAPI(k)] = normalizeValue(v)
		}
		result.Data = append(result.Data, row)
	}

	c.log.Debug("upstream page",
		"path", path,
		"page", result.Pagination.Page,
		"rows", len(result.Data),
		"duration", time.Since(start),
	)
	return result, nil
}

// decodePagination reads the server's pagination block in any case
// convention. Page, limit and total come from the server and the
// navigation flags are re-derived from them. A block without total or
// totalPages is trusted for hasNextPage instead; its total is then the
// rows seen so far.
func decodePagination(m map[string]any, req datatable.PageRequest, rows int) datatable.PaginationInfo {
	fields := make(map[string]any, len(m))
	for k, v := range m {
		fields[datatable.ConvertCase(k, datatable.CaseCamel)] = v
	}

	page := intField(fields, "page", req.Page)
	limit := intField(fields, "limit", intField(fields, "pageSize", req.PageSize))
	_, hasTotal := fields["total"]
	_, hasPages := fields["totalPages"]
	if !hasTotal && !hasPages {
		if next, ok := fields["hasNextPage"].(bool); ok {
			p := datatable.NewPaginationInfo(page, limit, 0)
			p.Total = int64(p.Page-1)*int64(p.Limit) + int64(rows)
			p.TotalPages = p.Page
			if next {
				p.TotalPages++
			}
			return p.Normalize()
		}
	}

	total := int64(intField(fields, "total", 0))
	p := datatable.NewPaginationInfo(page, limit, total)
	if tp := intField(fields, "totalPages", -1); tp >= 0 {
		p.TotalPages = tp
		p = p.Normalize()
	}
	return p
}

func intField(m map[string]any, key string, def int) int {
	v, ok := m[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i)
		}
		if f, err := n.Float64(); err == nil {
			return int(f)
		}
	case float64:
		return int(n)
	}
	return def
}

// normalizeValue replaces json.Number with int64 or float64.
func normalizeValue(v any) any {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}
