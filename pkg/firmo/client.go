// Package firmo provides a client for a firmographics data vendor: company
// attributes by domain, people search, and single-contact matching.
package firmo

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/crm-enrich/internal/resilience"
)

// Client defines the data-vendor operations used by the augmentation step.
// All responses are opaque records; the pipeline decides what to keep.
type Client interface {
	// CompanyByDomain returns firmographics for a domain, or nil when the
	// vendor has no match.
	CompanyByDomain(ctx context.Context, domain string) (map[string]any, error)
	// PeopleSearch returns person records matching the given filters.
	PeopleSearch(ctx context.Context, params PeopleParams) ([]map[string]any, error)
	// ContactMatch resolves a single best-match contact, or nil.
	ContactMatch(ctx context.Context, params ContactParams) (map[string]any, error)
}

// PeopleParams filters a people search.
type PeopleParams struct {
	Domain    string   `json:"domain,omitempty"`
	Titles    []string `json:"titles,omitempty"`
	Seniority string   `json:"seniority,omitempty"`
	Limit     int      `json:"limit,omitempty"`
}

// ContactParams identifies a contact for matching.
type ContactParams struct {
	Email     string `json:"email,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Domain    string `json:"domain,omitempty"`
}

// Option configures the firmo client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	retry   resilience.RetryConfig
}

// NewClient creates a firmo client. The key is injected per construction so
// callers can scope a client to a tenant's credentials.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: "https://api.firmograph.io/v1",
		http: &http.Client{
			Timeout: 20 * time.Second,
		},
		retry: resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) CompanyByDomain(ctx context.Context, domain string) (map[string]any, error) {
	if domain == "" {
		return nil, eris.New("firmo: domain is required")
	}
	query := url.Values{"domain": {domain}}
	body, status, err := c.do(ctx, http.MethodGet, "/companies/enrich?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	if status != http.StatusOK {
		return nil, eris.Errorf("firmo: company lookup status %d", status)
	}

	var record map[string]any
	if err := json.Unmarshal(body, &record); err != nil {
		return nil, eris.Wrap(err, "firmo: decode company")
	}
	return record, nil
}

func (c *httpClient) PeopleSearch(ctx context.Context, params PeopleParams) ([]map[string]any, error) {
	payload, err := json.Marshal(params)
	if err != nil {
		return nil, eris.Wrap(err, "firmo: marshal people params")
	}
	body, status, err := c.do(ctx, http.MethodPost, "/people/search", payload)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, eris.Errorf("firmo: people search status %d", status)
	}

	var parsed struct {
		People []map[string]any `json:"people"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, eris.Wrap(err, "firmo: decode people")
	}
	return parsed.People, nil
}

func (c *httpClient) ContactMatch(ctx context.Context, params ContactParams) (map[string]any, error) {
	payload, err := json.Marshal(params)
	if err != nil {
		return nil, eris.Wrap(err, "firmo: marshal contact params")
	}
	body, status, err := c.do(ctx, http.MethodPost, "/contacts/match", payload)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	if status != http.StatusOK {
		return nil, eris.Errorf("firmo: contact match status %d", status)
	}

	var record map[string]any
	if err := json.Unmarshal(body, &record); err != nil {
		return nil, eris.Wrap(err, "firmo: decode contact")
	}
	return record, nil
}

type response struct {
	body   []byte
	status int
}

// do executes one API call with retry on transient failures.
func (c *httpClient) do(ctx context.Context, method, path string, payload []byte) ([]byte, int, error) {
	resp, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) (response, error) {
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
		if err != nil {
			return response{}, eris.Wrap(err, "firmo: create request")
		}
		req.Header.Set("X-Api-Key", c.apiKey)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		httpResp, err := c.http.Do(req)
		if err != nil {
			return response{}, eris.Wrap(err, "firmo: request failed")
		}
		defer httpResp.Body.Close()

		respBody, err := io.ReadAll(httpResp.Body)
		if err != nil {
			return response{}, eris.Wrap(err, "firmo: read response body")
		}
		if resilience.RetryableStatus(httpResp.StatusCode) {
			return response{}, resilience.NewTransientError(
				eris.Errorf("firmo: status %d", httpResp.StatusCode), httpResp.StatusCode)
		}
		return response{body: respBody, status: httpResp.StatusCode}, nil
	})
	if err != nil {
		return nil, 0, err
	}
	return resp.body, resp.status, nil
}
