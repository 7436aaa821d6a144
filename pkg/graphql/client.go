package graphql

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/elonfeng/bountyscope/pkg/record"
)

const (
	// DefaultEndpoint is the platform's public GraphQL endpoint.
	DefaultEndpoint = "https://hackerone.com/graphql"
	// DefaultTimeout bounds every request.
	DefaultTimeout = 30 * time.Second

	defaultUserAgent = "bountyscope/1.0"
)

// Request is a GraphQL query document.
type Request struct {
	OperationName string         `json:"operationName,omitempty"`
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables,omitempty"`
}

// Error is one entry of a GraphQL "errors" array.
type Error struct {
	Message string `json:"message"`
	Path    []any  `json:"path,omitempty"`
}

// Response is a decoded GraphQL response. Numbers in Data are json.Number.
type Response struct {
	Data   record.Document `json:"data"`
	Errors []Error         `json:"errors,omitempty"`
}

// TransportError reports a request that produced no usable response.
type TransportError struct {
	Operation  string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("graphql %s: status %d: %v", e.Operation, e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("graphql %s: status %d", e.Operation, e.StatusCode)
	}
	return fmt.Sprintf("graphql %s: %v", e.Operation, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Transport posts a query document and returns the decoded response.
type Transport interface {
	Post(ctx context.Context, req *Request) (*Response, error)
}

// Options configures a Client.
type Options struct {
	Endpoint  string
	Timeout   time.Duration
	Proxy     string
	UserAgent string
}

// Client is the HTTP Transport. It does not retry.
type Client struct {
	client    *http.Client
	endpoint  string
	userAgent string
}

// NewClient creates a GraphQL client.
func NewClient(opts Options) (*Client, error) {
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}

	transport := &http.Transport{
		MaxIdleConns:        10,
		IdleConnTimeout:     30 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		DisableCompression:  true,
	}
	if opts.Proxy != "" {
		proxyURL, err := url.Parse(opts.Proxy)
		if err != nil {
			return nil, fmt.Errorf("parse proxy %q: %w", opts.Proxy, err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	return &Client{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: &gzipTransport{transport: transport},
		},
		endpoint:  opts.Endpoint,
		userAgent: opts.UserAgent,
	}, nil
}

func (c *Client) Post(ctx context.Context, r *Request) (*Response, error) {
	op := r.OperationName
	if op == "" {
		op = "query"
	}

	body, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &TransportError{Operation: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		var detail error
		if s := strings.TrimSpace(string(snippet)); s != "" {
			detail = errors.New(s)
		}
		return nil, &TransportError{Operation: op, StatusCode: resp.StatusCode, Err: detail}
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	var out Response
	if err := dec.Decode(&out); err != nil {
		return nil, &TransportError{Operation: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}

	if out.Data == nil && len(out.Errors) > 0 {
		return nil, &TransportError{Operation: op, StatusCode: resp.StatusCode, Err: errors.New(out.Errors[0].Message)}
	}
	return &out, nil
}

// gzipTransport asks for gzip and transparently decodes it.
type gzipTransport struct {
	transport http.RoundTripper
}

func (g *gzipTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Accept-Encoding", "gzip")
	resp, err := g.transport.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.Header.Get("Content-Encoding") != "gzip" {
		return resp, nil
	}

	zr, err := gzip.NewReader(resp.Body)
	if err != nil {
		resp.Body.Close()
		return nil, fmt.Errorf("open gzip body: %w", err)
	}
	resp.Body = &gzipReadCloser{Reader: zr, body: resp.Body}
	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	return resp, nil
}

type gzipReadCloser struct {
	*gzip.Reader
	body io.ReadCloser
}

func (g *gzipReadCloser) Close() error {
	if err := g.Reader.Close(); err != nil {
		g.body.Close()
		return err
	}
	return g.body.Close()
}
