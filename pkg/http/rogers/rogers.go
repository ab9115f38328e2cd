// Package rogers reads Rogers Bank credit card statements through the page
// session of rbaccess.rogersbank.com.
package rogers

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
	BankID   = "rogers"
	BankName = "Rogers Bank"

	sessionCookie = "SESSION"

	userPath       = "/issuing/digital/authenticate/user"
	statementsPath = "/issuing/digital/account/%s/customer/%s/documents/statements"
	documentPath   = "/issuing/digital/account/%s/customer/%s/documents/statements/%s/pdf"
)

type RogersBankClient struct {
	page    bank.Page
	baseURL string

	mu sync.Mutex
	// customers maps account ids to the customer id the API wants next to them
	customers map[string]string
}

func New(page bank.Page) *RogersBankClient {
	u := page.URL()
	return &RogersBankClient{
		page:      page,
		baseURL:   (&url.URL{Scheme: u.Scheme, Host: u.Host}).String(),
		customers: map[string]string{},
	}
}

func (c *RogersBankClient) ID() string   { return BankID }
func (c *RogersBankClient) Name() string { return BankName }

func (c *RogersBankClient) SessionID() (string, error) {
	sid, ok := c.page.Cookie(sessionCookie)
	if !ok {
		return "", fmt.Errorf("%w: %s cookie missing", bank.ErrAuthentication, sessionCookie)
	}
	return sid, nil
}

type userAccount struct {
	AccountID   string `json:"accountId"`
	Product     string `json:"productName"`
	AccountMask string `json:"maskedAccountNumber"`
	Customer    struct {
		CustomerID string `json:"customerId"`
		FirstName  string `json:"firstName"`
		LastName   string `json:"lastName"`
	} `json:"customer"`
}

type userResponse struct {
	UserName      string        `json:"userName"`
	Accounts      []userAccount `json:"accounts"`
	Authenticated bool          `json:"authenticated"`
}

func (c *RogersBankClient) get(ctx context.Context, path, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header = getCommonHeaders(c.baseURL)
	req.Header.Set("Accept", accept)

	res, err := c.page.HTTPClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", bank.ErrUpstream, err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response body: %s", bank.ErrUpstream, err)
	}

	switch {
	case res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: rogers answered %d", bank.ErrAuthentication, res.StatusCode)
	case res.StatusCode != http.StatusOK:
		return nil, &bank.StatusError{StatusCode: res.StatusCode, Body: strings.TrimSpace(string(lo.Subset(body, 0, 512)))}
	}
	return body, nil
}

func (c *RogersBankClient) user(ctx context.Context) (*userResponse, error) {
	body, err := c.get(ctx, userPath, "application/json")
	if err != nil {
		return nil, err
	}

	var user userResponse
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("%w: failed to parse user response: %s", bank.ErrUpstream, err)
	}
	if !user.Authenticated {
		return nil, fmt.Errorf("%w: session is not authenticated", bank.ErrAuthentication)
	}
	if len(user.Accounts) == 0 {
		return nil, fmt.Errorf("%w: no accounts returned in user response", bank.ErrUpstream)
	}

	c.mu.Lock()
	for _, a := range user.Accounts {
		c.customers[a.AccountID] = a.Customer.CustomerID
	}
	c.mu.Unlock()
	return &user, nil
}

func (c *RogersBankClient) Profile(ctx context.Context, sessionID string) (models.Profile, error) {
	user, err := c.user(ctx)
	if err != nil {
		return models.Profile{}, err
	}
	customer := user.Accounts[0].Customer
	name := strings.TrimSpace(customer.FirstName + " " + customer.LastName)
	return models.Profile{
		SessionID:   sessionID,
		ProfileID:   customer.CustomerID,
		ProfileName: utils.Capitalize(lo.CoalesceOrEmpty(name, user.UserName)),
	}, nil
}

// Accounts are always credit cards.
func (c *RogersBankClient) Accounts(ctx context.Context, profile models.Profile) ([]models.Account, error) {
	user, err := c.user(ctx)
	if err != nil {
		return nil, err
	}
	return lo.Map(user.Accounts, func(a userAccount, _ int) models.Account {
		return models.Account{
			Profile:     profile,
			AccountID:   a.AccountID,
			AccountName: lo.CoalesceOrEmpty(utils.Capitalize(a.Product), BankName),
			AccountMask: bank.Mask(a.AccountMask),
			AccountType: models.AccountTypeCreditCard,
		}
	}), nil
}

func (c *RogersBankClient) customerFor(ctx context.Context, accountID string) (string, error) {
	c.mu.Lock()
	customerID, ok := c.customers[accountID]
	c.mu.Unlock()
	if ok {
		return customerID, nil
	}

	// accounts may come from the coordinator cache of an earlier tab
	if _, err := c.user(ctx); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if customerID, ok = c.customers[accountID]; !ok {
		return "", fmt.Errorf("%w: unknown account %s", bank.ErrValidation, accountID)
	}
	return customerID, nil
}

type statementsResponse struct {
	Statements []struct {
		StatementID string `json:"statementId"`
		CycleDate   string `json:"cycleDate"`
	} `json:"statements"`
}

func (c *RogersBankClient) Statements(ctx context.Context, account models.Account) ([]models.Statement, error) {
	customerID, err := c.customerFor(ctx, account.AccountID)
	if err != nil {
		return nil, err
	}

	body, err := c.get(ctx, fmt.Sprintf(statementsPath, account.AccountID, customerID), "application/json")
	if err != nil {
		return nil, err
	}

	var parsed statementsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: failed to parse statements: %s", bank.ErrUpstream, err)
	}

	statements := make([]models.Statement, 0, len(parsed.Statements))
	for _, s := range parsed.Statements {
		date, err := time.Parse(time.DateOnly, s.CycleDate)
		if err != nil {
			return nil, fmt.Errorf("%w: statement %s cycle date %q", bank.ErrValidation, s.StatementID, s.CycleDate)
		}
		statements = append(statements, models.Statement{
			Account:       account,
			StatementID:   s.StatementID,
			StatementDate: date.Format(time.DateOnly),
		})
	}
	sort.SliceStable(statements, func(i, j int) bool {
		return statements[i].StatementDate > statements[j].StatementDate
	})
	log.Debug().Int("count", len(statements)).Str("account", bank.Mask(account.AccountID)).Msg("fetched rogers statements")
	return statements, nil
}

func (c *RogersBankClient) DownloadStatement(ctx context.Context, statement models.Statement) ([]byte, error) {
	customerID, err := c.customerFor(ctx, statement.Account.AccountID)
	if err != nil {
		return nil, err
	}
	content, err := c.get(ctx, fmt.Sprintf(documentPath, statement.Account.AccountID, customerID, statement.StatementID), "application/pdf")
	if err != nil {
		return nil, err
	}
	if err := bank.ValidatePDF(content); err != nil {
		return nil, err
	}
	return content, nil
}

func getCommonHeaders(origin string) http.Header {
	headers := http.Header{}
	headers.Set("Content-Type", "application/json")
	headers.Set("Accept", "application/json")
	headers.Set("Origin", origin)
	headers.Set("Referer", origin+"/?product=ROGERSBRAND&locale=en_CA")
	headers.Set("brand_id", "ROGERSBRAND")
	headers.Set("brand_locale", "en_CA")
	headers.Set("sourceType", "web")
	headers.Set("datatype", "json")
	return headers
}

var _ bank.Adapter = (*RogersBankClient)(nil)
