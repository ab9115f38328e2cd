// Package demo is the reference adapter. It talks to a JSON API served from
// the bank origin and shows the conventions every adapter follows.
package demo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"github.com/vpnda/statement-relay/pkg/bank"
	"github.com/vpnda/statement-relay/pkg/models"
	"github.com/vpnda/statement-relay/pkg/utils"
)

const (
	SessionCookie = "demo_session"

	tokenPath      = "/api/auth/token"
	profilePath    = "/api/profile"
	accountsPath   = "/api/accounts"
	statementsPath = "/api/accounts/%s/statements"
	documentPath   = "/api/statements/%s/document"

	statusClosed = "closed"
)

type Variant struct {
	ID   string
	Name string
	// Prefix is prepended to every API path.
	Prefix string
	// AccountType overrides the type reported by the API when set.
	AccountType models.AccountType
}

var (
	Retail = Variant{ID: "demo", Name: "Demo Bank"}
	Invest = Variant{ID: "demo-invest", Name: "Demo Bank Investing", Prefix: "/invest", AccountType: models.AccountTypeInvestment}
)

type DemoClient struct {
	variant Variant
	page    bank.Page
	base    *url.URL
	now     func() time.Time

	mu    sync.Mutex
	token *bank.Token
}

// NewFactory returns a bank.Factory building variant clients.
func NewFactory(variant Variant) bank.Factory {
	return func(page bank.Page) bank.Adapter {
		return New(page, variant)
	}
}

func New(page bank.Page, variant Variant) *DemoClient {
	u := page.URL()
	return &DemoClient{
		variant: variant,
		page:    page,
		base:    &url.URL{Scheme: u.Scheme, Host: u.Host, Path: variant.Prefix},
		now:     time.Now,
	}
}

func (c *DemoClient) ID() string   { return c.variant.ID }
func (c *DemoClient) Name() string { return c.variant.Name }

func (c *DemoClient) SessionID() (string, error) {
	sid, ok := c.page.Cookie(SessionCookie)
	if !ok {
		return "", fmt.Errorf("%w: %s cookie missing", bank.ErrAuthentication, SessionCookie)
	}
	return sid, nil
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// accessToken returns the cached token or exchanges the session for a new one.
func (c *DemoClient) accessToken(ctx context.Context, refresh bool) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !refresh && c.token.IsValid(c.now()) {
		return c.token.Value, nil
	}

	sid, err := c.SessionID()
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(tokenPath), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Session-Id", sid)

	res, err := c.page.HTTPClient().Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: token exchange: %s", bank.ErrUpstream, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden {
		c.token = nil
		return "", fmt.Errorf("%w: session rejected", bank.ErrAuthentication)
	}
	if res.StatusCode != http.StatusOK {
		return "", statusError(res)
	}

	var tok tokenResponse
	if err := json.NewDecoder(res.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("%w: token response: %s", bank.ErrUpstream, err)
	}
	if tok.Token == "" {
		return "", fmt.Errorf("%w: empty token", bank.ErrValidation)
	}

	c.token = &bank.Token{Value: tok.Token, Expiry: tok.ExpiresAt}
	log.Debug().Str("bank", c.variant.ID).Time("expiry", tok.ExpiresAt).Msg("refreshed access token")
	return tok.Token, nil
}

func (c *DemoClient) endpoint(path string) string {
	return c.base.JoinPath(path).String()
}

// do sends an authenticated GET. A 401 refreshes the token and retries once.
func (c *DemoClient) do(ctx context.Context, path string, accept string) ([]byte, error) {
	for attempt := 0; attempt < 2; attempt++ {
		token, err := c.accessToken(ctx, attempt > 0)
		if err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(path), nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", accept)
		req.Header.Set("Authorization", "Bearer "+token)

		res, err := c.page.HTTPClient().Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", bank.ErrUpstream, err)
		}

		if res.StatusCode == http.StatusUnauthorized {
			res.Body.Close()
			log.Debug().Str("bank", c.variant.ID).Str("path", path).Msg("token rejected, refreshing")
			continue
		}
		if res.StatusCode != http.StatusOK {
			err := statusError(res)
			res.Body.Close()
			return nil, err
		}

		body, err := io.ReadAll(res.Body)
		res.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read response body: %s", bank.ErrUpstream, err)
		}
		return body, nil
	}
	return nil, fmt.Errorf("%w: token rejected after refresh", bank.ErrAuthentication)
}

func (c *DemoClient) getJSON(ctx context.Context, path string, v any) error {
	body, err := c.do(ctx, path, "application/json")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %s: %s", bank.ErrUpstream, path, err)
	}
	return nil
}

func statusError(res *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
	return &bank.StatusError{StatusCode: res.StatusCode, Body: strings.TrimSpace(string(body))}
}

type profileResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (c *DemoClient) Profile(ctx context.Context, sessionID string) (models.Profile, error) {
	var p profileResponse
	if err := c.getJSON(ctx, profilePath, &p); err != nil {
		return models.Profile{}, err
	}
	if p.ID == "" {
		return models.Profile{}, fmt.Errorf("%w: profile without id", bank.ErrValidation)
	}
	return models.Profile{
		SessionID:   sessionID,
		ProfileID:   p.ID,
		ProfileName: p.Name,
	}, nil
}

type accountResponse struct {
	ID      string         `json:"id"`
	Name    string         `json:"name"`
	Number  string         `json:"number"`
	Type    string         `json:"type"`
	Status  string         `json:"status"`
	Balance *models.Amount `json:"balance"`
}

func (c *DemoClient) Accounts(ctx context.Context, profile models.Profile) ([]models.Account, error) {
	var raw []accountResponse
	if err := c.getJSON(ctx, accountsPath, &raw); err != nil {
		return nil, err
	}

	open := lo.Filter(raw, func(a accountResponse, _ int) bool {
		return !strings.EqualFold(a.Status, statusClosed)
	})
	accounts := lo.Map(open, func(a accountResponse, _ int) models.Account {
		accountType := bank.CoerceAccountType(a.Type)
		if c.variant.AccountType != "" {
			accountType = c.variant.AccountType
		}
		return models.Account{
			Profile:     profile,
			AccountID:   a.ID,
			AccountName: utils.Capitalize(a.Name),
			AccountMask: bank.Mask(a.Number),
			AccountType: accountType,
			Balance:     a.Balance,
		}
	})
	return accounts, bank.RequireAccounts(accounts)
}

type statementResponse struct {
	ID   string `json:"id"`
	Date string `json:"date"`
}

func (c *DemoClient) Statements(ctx context.Context, account models.Account) ([]models.Statement, error) {
	var raw []statementResponse
	if err := c.getJSON(ctx, fmt.Sprintf(statementsPath, account.AccountID), &raw); err != nil {
		return nil, err
	}

	statements := make([]models.Statement, 0, len(raw))
	for _, s := range raw {
		date, err := time.Parse(time.DateOnly, s.Date)
		if err != nil {
			return nil, fmt.Errorf("%w: statement %s date %q", bank.ErrValidation, s.ID, s.Date)
		}
		statements = append(statements, models.Statement{
			Account:       account,
			StatementID:   s.ID,
			StatementDate: date.Format(time.DateOnly),
		})
	}

	// ISO dates sort lexically
	sort.SliceStable(statements, func(i, j int) bool {
		return statements[i].StatementDate > statements[j].StatementDate
	})
	return statements, nil
}

func (c *DemoClient) DownloadStatement(ctx context.Context, statement models.Statement) ([]byte, error) {
	content, err := c.do(ctx, fmt.Sprintf(documentPath, statement.StatementID), "application/pdf")
	if err != nil {
		return nil, err
	}
	if err := bank.ValidatePDF(content); err != nil {
		return nil, err
	}
	return content, nil
}

var _ bank.Adapter = (*DemoClient)(nil)
