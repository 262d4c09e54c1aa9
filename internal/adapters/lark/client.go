package lark

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/mikey/hr-notifier/internal/core"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the Lark open platform endpoint
	DefaultBaseURL = "https://open.feishu.cn"

	tokenPath = "/open-apis/auth/v3/tenant_access_token/internal"

	// tokenRefreshMargin renews the token this long before Lark expires it
	tokenRefreshMargin = 300 * time.Second

	maxErrorBody = 512
)

// ClientConfig holds the settings of the Lark API client
type ClientConfig struct {
	BaseURL           string
	AppID             string
	AppSecret         string
	Timeout           time.Duration
	RequestsPerSecond float64
}

// Client calls the Lark open platform with a cached tenant access token
type Client struct {
	cfg     ClientConfig
	http    *http.Client
	limiter *rate.Limiter
	clock   core.Clock
	logger  *zap.Logger

	mu           sync.Mutex
	token        string
	tokenExpires time.Time
}

type apiResponse struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type tokenResponse struct {
	Code              int    `json:"code"`
	Msg               string `json:"msg"`
	TenantAccessToken string `json:"tenant_access_token"`
	Expire            int    `json:"expire"`
}

// NewClient creates a new Lark API client
func NewClient(cfg ClientConfig, clock core.Clock, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if clock == nil {
		clock = core.SystemClock()
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, 1),
		clock:   clock,
		logger:  logger,
	}
}

// TenantAccessToken returns a valid token, requesting a new one when the cached token is near expiry
func (c *Client) TenantAccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.clock.Now().Before(c.tokenExpires) {
		return c.token, nil
	}

	payload, err := json.Marshal(map[string]string{
		"app_id":     c.cfg.AppID,
		"app_secret": c.cfg.AppSecret,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+tokenPath, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	body, err := c.do(ctx, req)
	if err != nil {
		return "", err
	}

	var resp tokenResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("%w: failed to parse token response: %v", core.ErrSourceFetch, err)
	}
	if resp.Code != 0 || resp.TenantAccessToken == "" {
		return "", fmt.Errorf("%w: failed to get access token: code=%d msg=%s", core.ErrSourceFetch, resp.Code, resp.Msg)
	}

	c.token = resp.TenantAccessToken
	c.tokenExpires = c.clock.Now().Add(time.Duration(resp.Expire)*time.Second - tokenRefreshMargin)
	c.logger.Debug("Obtained tenant access token", zap.Int("expire_seconds", resp.Expire))

	return c.token, nil
}

// ReadRange reads a single range of a spreadsheet
func (c *Client) ReadRange(ctx context.Context, spreadsheetToken, rng string) ([][]any, error) {
	path := fmt.Sprintf("/open-apis/sheets/v2/spreadsheets/%s/values/%s",
		url.PathEscape(spreadsheetToken), url.PathEscape(rng))

	var data struct {
		ValueRange struct {
			Range  string  `json:"range"`
			Values [][]any `json:"values"`
		} `json:"valueRange"`
	}
	if err := c.get(ctx, path, nil, &data); err != nil {
		return nil, err
	}
	return data.ValueRange.Values, nil
}

// BitableRecord is one row of a bitable table
type BitableRecord struct {
	RecordID string         `json:"record_id"`
	Fields   map[string]any `json:"fields"`
}

// ListRecords returns every record of a bitable table, following page tokens
func (c *Client) ListRecords(ctx context.Context, appToken, tableID string, pageSize int) ([]BitableRecord, error) {
	path := fmt.Sprintf("/open-apis/bitable/v1/apps/%s/tables/%s/records",
		url.PathEscape(appToken), url.PathEscape(tableID))
	if pageSize <= 0 {
		pageSize = 500
	}

	var records []BitableRecord
	pageToken := ""
	for {
		query := url.Values{}
		query.Set("page_size", strconv.Itoa(pageSize))
		if pageToken != "" {
			query.Set("page_token", pageToken)
		}

		var page struct {
			Items     []BitableRecord `json:"items"`
			HasMore   bool            `json:"has_more"`
			PageToken string          `json:"page_token"`
			Total     int             `json:"total"`
		}
		if err := c.get(ctx, path, query, &page); err != nil {
			return nil, err
		}

		records = append(records, page.Items...)
		if !page.HasMore || page.PageToken == "" {
			break
		}
		pageToken = page.PageToken
	}

	c.logger.Debug("Listed bitable records", zap.Int("records", len(records)))
	return records, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	token, err := c.TenantAccessToken(ctx)
	if err != nil {
		return err
	}

	u := c.cfg.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	body, err := c.do(ctx, req)
	if err != nil {
		return err
	}

	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("%w: failed to parse response: %v", core.ErrSourceFetch, err)
	}
	if resp.Code != 0 {
		return fmt.Errorf("%w: API error: code=%d msg=%s", core.ErrSourceFetch, resp.Code, resp.Msg)
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return fmt.Errorf("%w: failed to parse response data: %v", core.ErrSourceFetch, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, req *http.Request) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrSourceFetch, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request %s failed: %v", core.ErrSourceFetch, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", core.ErrSourceFetch, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		snippet := body
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		c.logger.Error("Lark API returned an error status",
			zap.String("path", req.URL.Path),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", snippet))
		return nil, fmt.Errorf("%w: %s returned HTTP %d", core.ErrSourceFetch, req.URL.Path, resp.StatusCode)
	}

	return body, nil
}
