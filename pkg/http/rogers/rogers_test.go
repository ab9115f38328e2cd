package rogers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vpnda/statement-relay/pkg/bank"
	"github.com/vpnda/statement-relay/pkg/models"
)

const userJSON = `{
  "userName": "JDOE",
  "authenticated": true,
  "accounts": [
    {"accountId": "A100", "productName": "ROGERS WORLD ELITE MASTERCARD", "maskedAccountNumber": "************4321",
     "customer": {"customerId": "C7", "firstName": "JAMIE", "lastName": "DOE"}}
  ]
}`

type fakeRogers struct {
	userCalls int
	// userBody replaces userJSON when set
	userBody string
}

func (f *fakeRogers) server(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc(userPath, func(w http.ResponseWriter, r *http.Request) {
		f.userCalls++
		assert.Equal(t, "ROGERSBRAND", r.Header.Get("brand_id"))
		if c, err := r.Cookie("SESSION"); err != nil || c.Value != "s1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(lo.CoalesceOrEmpty(f.userBody, userJSON)))
	})
	mux.HandleFunc("/issuing/digital/account/A100/customer/C7/documents/statements", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"statements":[{"statementId":"st-1","cycleDate":"2025-03-20"},{"statementId":"st-2","cycleDate":"2025-04-20"}]}`))
	})
	mux.HandleFunc("/issuing/digital/account/A100/customer/C7/documents/statements/st-2/pdf", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/pdf", r.Header.Get("Accept"))
		w.Write([]byte("%PDF-1.3 april"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, session string) (*RogersBankClient, *fakeRogers) {
	f := &fakeRogers{}
	srv := f.server(t)
	cookies := map[string]string{}
	if session != "" {
		cookies["SESSION"] = session
	}
	page, err := bank.NewStaticPage(srv.URL+"/", cookies)
	require.NoError(t, err)
	return New(page), f
}

func TestProfileAndAccounts(t *testing.T) {
	c, _ := newTestClient(t, "s1")
	ctx := context.Background()

	sid, err := c.SessionID()
	require.NoError(t, err)

	profile, err := c.Profile(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, models.Profile{SessionID: "s1", ProfileID: "C7", ProfileName: "Jamie Doe"}, profile)

	accounts, err := c.Accounts(ctx, profile)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, models.Account{
		Profile:     profile,
		AccountID:   "A100",
		AccountName: "Rogers World Elite Mastercard",
		AccountMask: "4321",
		AccountType: models.AccountTypeCreditCard,
	}, accounts[0])
}

func TestUserResponseErrors(t *testing.T) {
	c, f := newTestClient(t, "s1")
	ctx := context.Background()

	f.userBody = `<html>maintenance</html>`
	_, err := c.Accounts(ctx, models.Profile{})
	assert.ErrorIs(t, err, bank.ErrUpstream)
	assert.NotErrorIs(t, err, bank.ErrValidation)

	f.userBody = `{"userName":"JDOE","authenticated":true,"accounts":[]}`
	_, err = c.Accounts(ctx, models.Profile{})
	assert.ErrorIs(t, err, bank.ErrUpstream)
}

func TestNotLoggedIn(t *testing.T) {
	c, _ := newTestClient(t, "")
	_, err := c.SessionID()
	assert.ErrorIs(t, err, bank.ErrAuthentication)

	c, _ = newTestClient(t, "expired")
	_, err = c.Accounts(context.Background(), models.Profile{})
	assert.ErrorIs(t, err, bank.ErrAuthentication)
}

func TestStatementsAndDownload(t *testing.T) {
	c, f := newTestClient(t, "s1")
	ctx := context.Background()
	account := models.Account{AccountID: "A100", AccountType: models.AccountTypeCreditCard}

	// no Accounts call first: the customer id is looked up on demand
	statements, err := c.Statements(ctx, account)
	require.NoError(t, err)
	require.Len(t, statements, 2)
	assert.Equal(t, "st-2", statements[0].StatementID)
	assert.Equal(t, "2025-04-20", statements[0].StatementDate)
	assert.Equal(t, 1, f.userCalls)

	content, err := c.DownloadStatement(ctx, statements[0])
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.3 april", string(content))
	assert.Equal(t, 1, f.userCalls)

	_, err = c.DownloadStatement(ctx, statements[1])
	assert.ErrorIs(t, err, bank.ErrUpstream)

	_, err = c.Statements(ctx, models.Account{AccountID: "B200"})
	assert.ErrorIs(t, err, bank.ErrValidation)
}
