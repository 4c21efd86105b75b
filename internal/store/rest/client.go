// Package rest talks to a JSON-over-HTTP transaction store exposing the
// /transactions resource collection (json-server style).
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"txview/internal/core"
	"txview/internal/log"
	"txview/internal/store"
)

const (
	collectionPath = "/transactions"
	maxDrainBytes  = 64 << 10
)

var errMissingID = errors.New("created transaction carries no id")

// Client implements store.Store against a remote JSON API.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *log.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the default instrumented client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l.WithComponent(log.ComponentStore)
		}
	}
}

// New returns a client for the store rooted at baseURL, e.g.
// "http://localhost:8001". timeout bounds each request; zero means none.
func New(baseURL string, timeout time.Duration, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("parse store base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid store base URL scheme %q: must be http or https", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid store base URL %q: missing host", baseURL)
	}

	c := &Client{
		baseURL: strings.TrimRight(u.String(), "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: log.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the normalized store root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// List implements store.TransactionLister
func (c *Client) List(ctx context.Context) ([]core.Transaction, error) {
	var out []core.Transaction
	if _, err := c.do(ctx, store.OpList, http.MethodGet, c.collectionURL(), nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []core.Transaction{}
	}
	return out, nil
}

// Create implements store.TransactionCreator
func (c *Client) Create(ctx context.Context, t core.NewTransaction) (core.Transaction, error) {
	var created core.Transaction
	status, err := c.do(ctx, store.OpCreate, http.MethodPost, c.collectionURL(), t, &created)
	if err != nil {
		return core.Transaction{}, err
	}
	if created.ID.IsZero() {
		return core.Transaction{}, &store.RequestError{
			Op:         store.OpCreate,
			Method:     http.MethodPost,
			URL:        c.collectionURL(),
			StatusCode: status,
			Err:        errMissingID,
		}
	}
	return created, nil
}

// Delete implements store.TransactionDeleter
func (c *Client) Delete(ctx context.Context, id core.ID) error {
	_, err := c.do(ctx, store.OpDelete, http.MethodDelete, c.itemURL(id), nil, nil)
	return err
}

func (c *Client) collectionURL() string {
	return c.baseURL + collectionPath
}

func (c *Client) itemURL(id core.ID) string {
	return c.collectionURL() + "/" + url.PathEscape(id.String())
}

// do performs one request. Any failure comes back as *store.RequestError.
func (c *Client) do(ctx context.Context, op store.Operation, method, target string, payload, out any) (int, error) {
	fail := func(status int, err error) (int, error) {
		return status, &store.RequestError{Op: op, Method: method, URL: target, StatusCode: status, Err: err}
	}

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fail(0, fmt.Errorf("encode request: %w", err))
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fail(0, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.DebugContext(ctx, "Store request failed",
			log.FieldOperation, string(op),
			log.FieldMethod, method,
			log.FieldPath, target,
			log.FieldError, err)
		return fail(0, err)
	}
	defer resp.Body.Close()

	c.logger.DebugContext(ctx, "Store request completed",
		log.FieldOperation, string(op),
		log.FieldMethod, method,
		log.FieldPath, target,
		log.FieldStatusCode, resp.StatusCode,
		log.FieldDuration, time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))
		return fail(resp.StatusCode, nil)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fail(resp.StatusCode, fmt.Errorf("decode response: %w", err))
	}
	return resp.StatusCode, nil
}
