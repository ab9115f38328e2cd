// Package ws reads Wealthsimple accounts using the OAuth session the web app
// keeps in a cookie.
package ws

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/vpnda/statement-relay/pkg/bank"
	"github.com/vpnda/statement-relay/pkg/models"
	"github.com/vpnda/statement-relay/pkg/utils"
	"github.com/vpnda/wsfetch/pkg/auth/types"
	"github.com/vpnda/wsfetch/pkg/base"
	"github.com/vpnda/wsfetch/pkg/client"
	"github.com/vpnda/wsfetch/pkg/client/generated"
)

const (
	BankID   = "ws"
	BankName = "Wealthsimple"

	sessionCookie = "_oauth2_access_v2"

	// statementMonths is how far back monthly statements are listed
	statementMonths = 12
)

type WealthsimpleClient struct {
	page bank.Page
	now  func() time.Time

	mu        sync.Mutex
	sessionID string
	c         client.Client
}

func New(page bank.Page) *WealthsimpleClient {
	return &WealthsimpleClient{page: page, now: time.Now}
}

func (w *WealthsimpleClient) ID() string   { return BankID }
func (w *WealthsimpleClient) Name() string { return BankName }

// session decodes the OAuth session stored in the cookie.
func (w *WealthsimpleClient) session() (*types.Session, string, error) {
	raw, ok := w.page.Cookie(sessionCookie)
	if !ok {
		return nil, "", fmt.Errorf("%w: %s cookie missing", bank.ErrAuthentication, sessionCookie)
	}
	decoded, err := url.QueryUnescape(raw)
	if err != nil {
		return nil, "", fmt.Errorf("%w: malformed session cookie", bank.ErrAuthentication)
	}

	var sess types.Session
	if err := json.Unmarshal([]byte(decoded), &sess); err != nil {
		return nil, "", fmt.Errorf("%w: failed to unmarshal session: %s", bank.ErrAuthentication, err)
	}

	// the session carries the bearer token, only a digest leaves the adapter
	sum := sha256.Sum256([]byte(decoded))
	return &sess, hex.EncodeToString(sum[:8]), nil
}

func (w *WealthsimpleClient) SessionID() (string, error) {
	_, id, err := w.session()
	return id, err
}

func (w *WealthsimpleClient) Profile(ctx context.Context, sessionID string) (models.Profile, error) {
	return models.Profile{
		SessionID:   sessionID,
		ProfileID:   sessionID,
		ProfileName: BankName,
	}, nil
}

// client returns the API client for the current session, creating it when
// the session changed.
func (w *WealthsimpleClient) client(ctx context.Context) (client.Client, error) {
	sess, id, err := w.session()
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.c != nil && w.sessionID == id {
		return w.c, nil
	}

	authClient := base.AuthClientFromSession(sess)
	if _, err := authClient.Fetcher.GetSession(ctx); err != nil {
		return nil, fmt.Errorf("%w: failed to refresh session: %s", bank.ErrAuthentication, err)
	}

	c, err := client.NewClient(ctx, authClient)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create client: %s", bank.ErrUpstream, err)
	}
	w.c, w.sessionID = c, id
	return c, nil
}

func (w *WealthsimpleClient) Accounts(ctx context.Context, profile models.Profile) ([]models.Account, error) {
	c, err := w.client(ctx)
	if err != nil {
		return nil, err
	}

	accounts, err := c.GetAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get accounts: %s", bank.ErrUpstream, err)
	}
	log.Debug().Int("count", len(accounts)).Msg("fetched wealthsimple accounts")

	var result []models.Account
	for _, account := range accounts {
		if account.ClosedAt != nil {
			log.Debug().Str("accountId", account.Id).Msg("skipping closed account")
			continue
		}
		result = append(result, models.Account{
			Profile:     profile,
			AccountID:   account.Id,
			AccountName: createHumanFriendsDescriptionForAccount(account),
			AccountMask: bank.Mask(account.Id),
			AccountType: accountType(account),
			Balance:     balance(account),
		})
	}
	return result, bank.RequireAccounts(result)
}

func accountType(account generated.AccountWithFinancials) models.AccountType {
	if account.UnifiedAccountType == nil {
		return models.AccountTypeInvestment
	}
	raw := strings.ToLower(*account.UnifiedAccountType)
	if strings.Contains(raw, "cash") {
		return models.AccountTypeChecking
	}
	if strings.Contains(raw, "credit_card") {
		return models.AccountTypeCreditCard
	}
	// everything else is a managed or self directed portfolio
	return models.AccountTypeInvestment
}

func balance(account generated.AccountWithFinancials) *models.Amount {
	value := account.GetFinancials().CurrentCombined.NetLiquidationValueV2
	if value.Amount == "" {
		return nil
	}
	return &models.Amount{
		Value:    value.Amount,
		Currency: value.Currency,
	}
}

func createHumanFriendsDescriptionForAccount(account generated.AccountWithFinancials) string {
	var accountType string
	if account.UnifiedAccountType != nil {
		accountType = strings.ReplaceAll(*account.UnifiedAccountType, "_", " ")
		accountType = utils.Capitalize(accountType)
	}

	if accountType != "" && account.Nickname != nil {
		return fmt.Sprintf("%s (%s)", *account.Nickname, accountType)
	}

	if accountType != "" && account.Currency != nil {
		return fmt.Sprintf("%s (%s)", accountType, *account.Currency)
	}

	return account.Id
}

// Statements lists one statement per closed calendar month. Wealthsimple
// publishes them on the first business days of the next month.
func (w *WealthsimpleClient) Statements(ctx context.Context, account models.Account) ([]models.Statement, error) {
	if _, _, err := w.session(); err != nil {
		return nil, err
	}
	return monthlyStatements(account, w.now(), statementMonths), nil
}

func monthlyStatements(account models.Account, now time.Time, months int) []models.Statement {
	firstOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	statements := make([]models.Statement, 0, months)
	for i := 0; i < months; i++ {
		end := firstOfMonth.AddDate(0, -i, 0).AddDate(0, 0, -1)
		statements = append(statements, models.Statement{
			Account:       account,
			StatementID:   fmt.Sprintf("%s-%s", account.AccountID, end.Format("2006-01")),
			StatementDate: end.Format(time.DateOnly),
		})
	}
	return statements
}

// DownloadStatement is not available: documents are only served to the
// mobile app.
func (w *WealthsimpleClient) DownloadStatement(ctx context.Context, statement models.Statement) ([]byte, error) {
	return nil, fmt.Errorf("%w: Wealthsimple statements can only be downloaded from the app", bank.ErrNotSupported)
}

var _ bank.Adapter = (*WealthsimpleClient)(nil)
