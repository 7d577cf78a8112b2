// Package payroll consumes the HR payroll feed: a JSON endpoint listing
// every employee known to payroll, plus a webhook for registering access
// cards. The feed changes rarely, so responses are cached for a TTL and a
// refresh failure falls back to the last good snapshot.
package payroll

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/karlutxo/zk-tools/internal/platform/metrics"
	platformredis "github.com/karlutxo/zk-tools/internal/platform/redis"
)

// Record is one employee row as the payroll feed publishes it.
type Record struct {
	Code             string `json:"CODIGO_ZK_ATRIBUTO"`
	DNI              string `json:"DNI"`
	Name             string `json:"NOMBRE"`
	Center           string `json:"COD_CT"`
	ContractFrom     string `json:"ALTA_CONTRATO"`
	MedicalLeaveFrom string `json:"BAJA_MEDICA"`
	Vacation         string `json:"VACACIONES"`
	LastSeen         string `json:"LAST_SEEN"`
}

const snapshotKey = "zk-tools:payroll:snapshot"

// Client fetches and caches the payroll feed. The in-process cache is
// authoritative; the optional Redis snapshot only survives restarts.
type Client struct {
	http    *http.Client
	url     string
	ttl     time.Duration
	logger  *slog.Logger
	redis   *platformredis.Client
	metrics *metrics.Metrics

	mu        sync.Mutex
	cached    []Record
	fetchedAt time.Time
}

type Option func(*Client)

// WithSnapshot persists the last good feed in Redis across restarts.
func WithSnapshot(client *platformredis.Client) Option {
	return func(c *Client) { c.redis = client }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

func New(url string, timeout, ttl time.Duration, logger *slog.Logger, opts ...Option) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 2
	retryClient.RetryWaitMin = time.Second
	retryClient.RetryWaitMax = 5 * time.Second
	retryClient.HTTPClient.Timeout = timeout
	retryClient.Logger = nil

	c := &Client{
		http:   retryClient.StandardClient(),
		url:    url,
		ttl:    ttl,
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load returns the payroll records, refreshing when the cache expired or
// forceRefresh is set. A failed refresh serves the last good value when one
// exists; the very first fetch propagates the failure.
func (c *Client) Load(ctx context.Context, forceRefresh bool) ([]Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !forceRefresh && c.cached != nil && time.Since(c.fetchedAt) < c.ttl {
		return c.cached, nil
	}

	if c.cached == nil && !forceRefresh {
		if snapshot, at, ok := c.loadSnapshot(ctx); ok && time.Since(at) < c.ttl {
			c.cached, c.fetchedAt = snapshot, at
			return c.cached, nil
		}
	}

	records, err := c.fetch(ctx)
	if err != nil {
		c.observeRefresh("error")
		if c.cached != nil {
			c.logger.ErrorContext(ctx, "payroll refresh failed, serving cached data", "error", err.Error())
			return c.cached, nil
		}
		return nil, fmt.Errorf("load payroll employees: %w", err)
	}
	c.observeRefresh("ok")

	c.cached = records
	c.fetchedAt = time.Now()
	c.storeSnapshot(ctx, records)
	return c.cached, nil
}

func (c *Client) fetch(ctx context.Context) ([]Record, error) {
	if c.url == "" {
		return nil, fmt.Errorf("payroll feed URL not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch payroll feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("payroll feed returned status %d", resp.StatusCode)
	}
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read payroll response: %w", err)
	}
	var records []Record
	if err := json.Unmarshal(payload, &records); err != nil {
		return nil, fmt.Errorf("decode payroll response: %w", err)
	}
	return records, nil
}

type snapshot struct {
	Records   []Record  `json:"records"`
	FetchedAt time.Time `json:"fetched_at"`
}

func (c *Client) loadSnapshot(ctx context.Context) ([]Record, time.Time, bool) {
	if c.redis == nil {
		return nil, time.Time{}, false
	}
	payload, err := c.redis.Get(ctx, snapshotKey).Bytes()
	if err != nil {
		return nil, time.Time{}, false
	}
	var snap snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		c.logger.WarnContext(ctx, "discarding unreadable payroll snapshot", "error", err.Error())
		return nil, time.Time{}, false
	}
	return snap.Records, snap.FetchedAt, true
}

func (c *Client) storeSnapshot(ctx context.Context, records []Record) {
	if c.redis == nil {
		return
	}
	payload, err := json.Marshal(snapshot{Records: records, FetchedAt: c.fetchedAt})
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, snapshotKey, payload, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "could not persist payroll snapshot", "error", err.Error())
	}
}

func (c *Client) observeRefresh(outcome string) {
	if c.metrics != nil {
		c.metrics.LookupRefreshes.WithLabelValues("payroll", outcome).Inc()
	}
}
