// Package hypothesis implements marginalia.Source against the
// Hypothesis annotation service HTTP API.
package hypothesis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/mkrol/marginalia"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// DefaultTimeout is the default timeout for API requests.
const DefaultTimeout = 30 * time.Second

// DefaultPageSize is the search page size; 200 is the API maximum.
const DefaultPageSize = 200

// Ensure Client implements marginalia.Source at compile time.
var _ marginalia.Source = (*Client)(nil)

// Client talks to a Hypothesis-compatible annotation API. Requests
// are rate limited with a shared token bucket; when multiple groups
// are configured their pages are fetched concurrently.
type Client struct {
	base     string
	token    string
	groups   []string
	pageSize int
	client   *http.Client
	limiter  *rate.Limiter
	logger   zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithGroups sets the annotation group IDs to fetch from.
func WithGroups(groups []string) Option {
	return func(c *Client) {
		c.groups = groups
	}
}

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.client = hc
	}
}

// WithPageSize sets the search page size.
// Defaults to DefaultPageSize (200).
func WithPageSize(n int) Option {
	return func(c *Client) {
		c.pageSize = n
	}
}

// WithRateLimit sets the request rate limit in requests per second.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithLogger sets the logger used for request-level debug logging.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a new Client for the given API base URL
// (e.g. "https://api.hypothes.is/api") and bearer token.
func NewClient(base, token string, opts ...Option) *Client {
	c := &Client{
		base:     base,
		token:    token,
		pageSize: DefaultPageSize,
		limiter:  rate.NewLimiter(rate.Limit(10), 1),
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.client == nil {
		c.client = &http.Client{Timeout: DefaultTimeout}
	}
	return c
}

// searchResponse mirrors the API search envelope.
type searchResponse struct {
	Total int   `json:"total"`
	Rows  []row `json:"rows"`
}

// row mirrors one annotation as returned by the API.
type row struct {
	ID      string   `json:"id"`
	Created string   `json:"created"`
	Updated string   `json:"updated"`
	URI     string   `json:"uri"`
	Text    string   `json:"text"`
	Tags    []string `json:"tags"`
	Group   string   `json:"group"`
	Target  []target `json:"target"`
}

type target struct {
	Selector []selector `json:"selector"`
}

type selector struct {
	Type  string `json:"type"`
	Exact string `json:"exact"`
}

// FetchSince returns all annotations updated at or after since,
// across every configured group. Results are sorted by update time.
func (c *Client) FetchSince(ctx context.Context, since time.Time) ([]*marginalia.Annotation, error) {
	groups := c.groups
	if len(groups) == 0 {
		groups = []string{""}
	}

	results := make([][]*marginalia.Annotation, len(groups))
	g, gctx := errgroup.WithContext(ctx)
	for i, group := range groups {
		g.Go(func() error {
			anns, err := c.fetchGroup(gctx, group, since)
			if err != nil {
				return err
			}
			results[i] = anns
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []*marginalia.Annotation
	for _, anns := range results {
		all = append(all, anns...)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].UpdatedAt.Before(all[j].UpdatedAt)
	})
	return all, nil
}

// fetchGroup pages through one group's search results using the
// updated-timestamp cursor.
func (c *Client) fetchGroup(ctx context.Context, group string, since time.Time) ([]*marginalia.Annotation, error) {
	var anns []*marginalia.Annotation
	searchAfter := ""
	if !since.IsZero() {
		searchAfter = since.UTC().Format(time.RFC3339Nano)
	}

	for {
		q := url.Values{}
		q.Set("limit", strconv.Itoa(c.pageSize))
		q.Set("sort", "updated")
		q.Set("order", "asc")
		if group != "" {
			q.Set("group", group)
		}
		if searchAfter != "" {
			q.Set("search_after", searchAfter)
		}

		var page searchResponse
		if err := c.get(ctx, "/search?"+q.Encode(), &page); err != nil {
			return nil, err
		}
		c.logger.Debug().
			Str("group", group).
			Int("rows", len(page.Rows)).
			Int("total", page.Total).
			Msg("fetched annotation page")

		for _, r := range page.Rows {
			a, err := r.annotation()
			if err != nil {
				return nil, err
			}
			anns = append(anns, a)
		}

		if len(page.Rows) < c.pageSize {
			return anns, nil
		}
		searchAfter = page.Rows[len(page.Rows)-1].Updated
	}
}

// UpdateTags replaces the tag list of a remote annotation.
func (c *Client) UpdateTags(ctx context.Context, id string, tags []string) error {
	if tags == nil {
		tags = []string{}
	}
	body, err := json.Marshal(map[string]any{"tags": tags})
	if err != nil {
		return fmt.Errorf("failed to encode tags: %w", err)
	}
	return c.send(ctx, http.MethodPatch, "/annotations/"+url.PathEscape(id), body)
}

// DeleteAnnotation deletes a remote annotation.
func (c *Client) DeleteAnnotation(ctx context.Context, id string) error {
	return c.send(ctx, http.MethodDelete, "/annotations/"+url.PathEscape(id), nil)
}

// get performs a rate-limited GET and decodes the JSON response.
func (c *Client) get(ctx context.Context, path string, out any) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}

// send performs a rate-limited mutating request, discarding the body.
func (c *Client) send(ctx context.Context, method, path string, body []byte) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to annotation service failed: %w", err)
	}
	c.logger.Debug().Str("method", method).Str("path", path).Int("status", resp.StatusCode).Msg("annotation service request")

	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, marginalia.Errorf(marginalia.ENOTFOUND, "annotation service: %s %s returned 404", method, path)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, marginalia.Errorf(marginalia.EINTERNAL, "annotation service: %s %s returned status %d", method, path, resp.StatusCode)
	}
	return resp, nil
}

// annotation converts an API row into the domain record. Quotes come
// from the exact text of the row's TextQuoteSelectors.
func (r *row) annotation() (*marginalia.Annotation, error) {
	created, err := parseAPITime(r.Created)
	if err != nil {
		return nil, fmt.Errorf("annotation %q: %w", r.ID, err)
	}
	updated, err := parseAPITime(r.Updated)
	if err != nil {
		return nil, fmt.Errorf("annotation %q: %w", r.ID, err)
	}

	var quotes []string
	for _, t := range r.Target {
		for _, s := range t.Selector {
			if s.Type == "TextQuoteSelector" && s.Exact != "" {
				quotes = append(quotes, s.Exact)
			}
		}
	}

	return &marginalia.Annotation{
		ID:        r.ID,
		URI:       r.URI,
		Text:      r.Text,
		Quotes:    quotes,
		Tags:      r.Tags,
		Group:     r.Group,
		CreatedAt: created,
		UpdatedAt: updated,
	}, nil
}

func parseAPITime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", value, err)
	}
	return t, nil
}
