package mem0

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/asifkhan0410/recallchat/errors"
)

type Client interface {
	Add(ctx context.Context, text string, opts AddOptions) ([]AddedMemory, error)
	Search(ctx context.Context, query string, opts SearchOptions) ([]RawMemory, error)
	GetAll(ctx context.Context, opts GetAllOptions) ([]RawMemory, error)
	Get(ctx context.Context, memoryID string, userID string) (*RawMemory, error)
	Update(ctx context.Context, memoryID string, text string, userID string) error
	Delete(ctx context.Context, memoryID string, userID string) error
}

type HTTPClient struct {
	baseURL   string
	apiKey    string
	projectID string
	http      *http.Client
}

var _ Client = (*HTTPClient)(nil)

const defaultBaseURL = "https://api.mem0.ai"

type HTTPClientOptions struct {
	BaseURL   string
	APIKey    string
	ProjectID string
	Timeout   time.Duration
}

func NewHTTPClient(opts HTTPClientOptions) *HTTPClient {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	return &HTTPClient{
		baseURL:   opts.BaseURL,
		apiKey:    opts.APIKey,
		projectID: opts.ProjectID,
		http:      &http.Client{Timeout: opts.Timeout},
	}
}

func (c *HTTPClient) Add(ctx context.Context, text string, opts AddOptions) ([]AddedMemory, error) {
	body := map[string]any{
		"messages": []map[string]string{{"role": "user", "content": text}},
		"user_id":  opts.UserID,
	}
	if opts.Metadata != nil {
		body["metadata"] = opts.Metadata
	}

	var added []AddedMemory
	if err := c.do(ctx, http.MethodPost, "/v1/memories/", nil, body, &added); err != nil {
		return nil, err
	}

	return added, nil
}

func (c *HTTPClient) Search(ctx context.Context, query string, opts SearchOptions) ([]RawMemory, error) {
	body := map[string]any{
		"query":   query,
		"user_id": opts.UserID,
	}
	if opts.Limit > 0 {
		body["limit"] = opts.Limit
	}

	var results []RawMemory
	if err := c.do(ctx, http.MethodPost, "/v1/memories/search/", nil, body, &results); err != nil {
		return nil, err
	}

	return results, nil
}

func (c *HTTPClient) GetAll(ctx context.Context, opts GetAllOptions) ([]RawMemory, error) {
	query := url.Values{}
	query.Set("user_id", opts.UserID)
	if opts.Limit > 0 {
		query.Set("page_size", strconv.Itoa(opts.Limit))
	}

	var results []RawMemory
	if err := c.do(ctx, http.MethodGet, "/v1/memories/", query, nil, &results); err != nil {
		return nil, err
	}

	return results, nil
}

func (c *HTTPClient) Get(ctx context.Context, memoryID string, userID string) (*RawMemory, error) {
	query := url.Values{}
	if userID != "" {
		query.Set("user_id", userID)
	}

	var result RawMemory
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/v1/memories/%s/", url.PathEscape(memoryID)), query, nil, &result); err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if result.ID == "" {
		return nil, nil
	}

	return &result, nil
}

func (c *HTTPClient) Update(ctx context.Context, memoryID string, text string, userID string) error {
	body := map[string]any{"text": text}
	if userID != "" {
		body["user_id"] = userID
	}

	return c.do(ctx, http.MethodPut, fmt.Sprintf("/v1/memories/%s/", url.PathEscape(memoryID)), nil, body, nil)
}

func (c *HTTPClient) Delete(ctx context.Context, memoryID string, userID string) error {
	query := url.Values{}
	if userID != "" {
		query.Set("user_id", userID)
	}

	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/v1/memories/%s/", url.PathEscape(memoryID)), query, nil, nil)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return errors.Wrapf(err, "failed to encode request body")
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return errors.Wrapf(err, "failed to create request")
	}
	req.Header.Set("Authorization", "Token "+c.apiKey)
	if c.projectID != "" {
		req.Header.Set("Mem0-Project-Id", c.projectID)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "mem0 request failed: %s %s", method, path)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errors.Wrapf(errors.ErrNotFound, "mem0 returned 404 for %s %s", method, path)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return errors.Errorf("mem0 returned %d for %s %s: %s", resp.StatusCode, method, path, payload)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "failed to decode mem0 response")
	}

	return nil
}
