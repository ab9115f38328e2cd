// Package client talks to a running coordinator over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vpnda/statement-relay/pkg/bank"
	"github.com/vpnda/statement-relay/pkg/models"
	"github.com/vpnda/statement-relay/pkg/protocol"
)

const (
	pathMessages = "/v1/messages"
	pathTabs     = "/v1/tabs"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 2 * time.Minute}
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
	}
}

// Send posts req and returns the response envelope. Failure envelopes are not
// errors here; transport problems are reported as bank.ErrRouting.
func (c *Client) Send(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+pathMessages, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: coordinator unreachable: %s", bank.ErrRouting, err)
	}
	defer res.Body.Close()

	var envelope protocol.Response
	if err := json.NewDecoder(res.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("%w: unexpected coordinator response (HTTP %d): %s", bank.ErrRouting, res.StatusCode, err)
	}
	return &envelope, nil
}

func (c *Client) call(ctx context.Context, req *protocol.Request, out any) error {
	res, err := c.Send(ctx, req)
	if err != nil {
		return err
	}
	return res.Decode(out)
}

func (c *Client) str(ctx context.Context, action protocol.Action) (string, error) {
	var v string
	err := c.call(ctx, protocol.NewRequest(action), &v)
	return v, err
}

func (c *Client) Ping(ctx context.Context) error {
	_, err := c.str(ctx, protocol.ActionPing)
	return err
}

func (c *Client) GetBankID(ctx context.Context) (string, error) {
	return c.str(ctx, protocol.ActionGetBankID)
}

func (c *Client) GetBankName(ctx context.Context) (string, error) {
	return c.str(ctx, protocol.ActionGetBankName)
}

func (c *Client) GetSessionID(ctx context.Context) (string, error) {
	return c.str(ctx, protocol.ActionGetSessionID)
}

func (c *Client) GetProfile(ctx context.Context, forceRefresh bool) (models.Profile, error) {
	var profile models.Profile
	req := protocol.NewRequest(protocol.ActionGetProfile)
	req.ForceRefresh = forceRefresh
	err := c.call(ctx, req, &profile)
	return profile, err
}

func (c *Client) GetAccounts(ctx context.Context, forceRefresh bool) ([]models.Account, error) {
	var accounts []models.Account
	req := protocol.NewRequest(protocol.ActionGetAccounts)
	req.ForceRefresh = forceRefresh
	err := c.call(ctx, req, &accounts)
	return accounts, err
}

func (c *Client) GetStatements(ctx context.Context, account models.Account, forceRefresh bool) ([]models.Statement, error) {
	var statements []models.Statement
	req := protocol.NewRequest(protocol.ActionGetStatements)
	req.Account = &account
	req.ForceRefresh = forceRefresh
	err := c.call(ctx, req, &statements)
	return statements, err
}

// DownloadStatement returns the decoded PDF bytes.
func (c *Client) DownloadStatement(ctx context.Context, statement models.Statement) ([]byte, error) {
	var encoded string
	req := protocol.NewRequest(protocol.ActionDownloadStatement)
	req.Statement = &statement
	if err := c.call(ctx, req, &encoded); err != nil {
		return nil, err
	}
	return protocol.DecodeBinary(encoded)
}

func (c *Client) ClearCache(ctx context.Context) error {
	return c.call(ctx, protocol.NewRequest(protocol.ActionClearCache), nil)
}

// RequestFetch asks the coordinator to perform a request on the caller's
// behalf. It implements bank.Fetcher so adapters in a tab can use it.
func (c *Client) RequestFetch(ctx context.Context, url string, options *bank.FetchOptions) (*bank.FetchResult, error) {
	req := protocol.NewRequest(protocol.ActionRequestFetch)
	req.URL = url
	req.Options = options
	var result bank.FetchResult
	if err := c.call(ctx, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) Tabs(ctx context.Context) ([]protocol.TabInfo, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+pathTabs, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	res, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: coordinator unreachable: %s", bank.ErrRouting, err)
	}
	defer res.Body.Close()

	var tabs []protocol.TabInfo
	if err := json.NewDecoder(res.Body).Decode(&tabs); err != nil {
		return nil, fmt.Errorf("failed to decode tabs: %w", err)
	}
	return tabs, nil
}

func (c *Client) Activate(ctx context.Context, tabID string) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+pathTabs+"/"+tabID+"/activate", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	res, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: coordinator unreachable: %s", bank.ErrRouting, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("failed to activate tab %s (HTTP %d): %s", tabID, res.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

var _ bank.Fetcher = (*Client)(nil)
