package demo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vpnda/statement-relay/pkg/bank"
	"github.com/vpnda/statement-relay/pkg/models"
)

type fakeBank struct {
	mu        sync.Mutex
	exchanges int
	hits      map[string]int
	// rejectFirst makes the first token it issued invalid for API calls
	rejectFirst bool
	rejectAll   bool
	document    []byte
	// overrides for the canned profile and account list bodies
	profileBody  string
	accountsBody string
}

func (f *fakeBank) handler(t *testing.T, prefix string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(prefix+"/api/auth/token", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Session-Id") != "s1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		f.mu.Lock()
		f.exchanges++
		n := f.exchanges
		f.mu.Unlock()
		json.NewEncoder(w).Encode(tokenResponse{
			Token:     "tok-" + string(rune('0'+n)),
			ExpiresAt: time.Now().Add(time.Hour),
		})
	})

	authed := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			f.mu.Lock()
			f.hits[r.URL.Path]++
			reject := f.rejectAll || (f.rejectFirst && r.Header.Get("Authorization") == "Bearer tok-1")
			f.mu.Unlock()
			if reject || !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer tok-") {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			next(w, r)
		}
	}

	mux.HandleFunc(prefix+"/api/profile", authed(func(w http.ResponseWriter, r *http.Request) {
		if f.profileBody != "" {
			w.Write([]byte(f.profileBody))
			return
		}
		w.Write([]byte(`{"id":"p-42","name":"Jamie Doe"}`))
	}))
	mux.HandleFunc(prefix+"/api/accounts", authed(func(w http.ResponseWriter, r *http.Request) {
		if f.accountsBody != "" {
			w.Write([]byte(f.accountsBody))
			return
		}
		w.Write([]byte(`[
			{"id":"chq","name":"EVERYDAY CHEQUING","number":"0012-3456789","type":"chequing","status":"open","balance":{"value":"1520.10","currency":"CAD"}},
			{"id":"old","name":"old savings","number":"555","type":"savings","status":"CLOSED"},
			{"id":"visa","name":"visa infinite","number":"4111111111111111","type":"credit_card","status":"open"},
			{"id":"weird","name":"thing","number":"9999","type":"mystery","status":"open"}
		]`))
	}))
	mux.HandleFunc(prefix+"/api/accounts/chq/statements", authed(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":"s-jan","date":"2025-01-31"},{"id":"s-mar","date":"2025-03-31"},{"id":"s-feb","date":"2025-02-28"}]`))
	}))
	mux.HandleFunc(prefix+"/api/accounts/bad/statements", authed(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":"s-x","date":"31/01/2025"}]`))
	}))
	mux.HandleFunc(prefix+"/api/accounts/down/statements", authed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	mux.HandleFunc(prefix+"/api/statements/s-mar/document", authed(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write(f.document)
	}))
	return mux
}

func newTestClient(t *testing.T, variant Variant, cookies map[string]string) (*DemoClient, *fakeBank) {
	f := &fakeBank{hits: map[string]int{}, document: []byte("%PDF-1.6 march")}
	srv := httptest.NewServer(f.handler(t, variant.Prefix))
	t.Cleanup(srv.Close)

	page, err := bank.NewStaticPage(srv.URL+"/home", cookies)
	require.NoError(t, err)
	return New(page, variant), f
}

func loggedIn() map[string]string {
	return map[string]string{SessionCookie: "s1"}
}

func TestSessionID(t *testing.T) {
	c, _ := newTestClient(t, Retail, loggedIn())
	sid, err := c.SessionID()
	require.NoError(t, err)
	assert.Equal(t, "s1", sid)

	c, _ = newTestClient(t, Retail, nil)
	_, err = c.SessionID()
	assert.ErrorIs(t, err, bank.ErrAuthentication)
}

func TestProfile(t *testing.T) {
	c, _ := newTestClient(t, Retail, loggedIn())
	p, err := c.Profile(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, models.Profile{SessionID: "s1", ProfileID: "p-42", ProfileName: "Jamie Doe"}, p)
}

func TestAccountsNoneOpen(t *testing.T) {
	c, f := newTestClient(t, Retail, loggedIn())
	ctx := context.Background()

	for _, body := range []string{`[{"id":"old","name":"old","number":"1","type":"savings","status":"closed"}]`, `[]`} {
		f.accountsBody = body
		accounts, err := c.Accounts(ctx, models.Profile{SessionID: "s1"})
		assert.ErrorIs(t, err, bank.ErrUpstream, body)
		assert.Empty(t, accounts)
	}
}

func TestMalformedBodyIsUpstream(t *testing.T) {
	c, f := newTestClient(t, Retail, loggedIn())
	ctx := context.Background()

	f.profileBody = `<html>oops`
	_, err := c.Profile(ctx, "s1")
	assert.ErrorIs(t, err, bank.ErrUpstream)
	assert.Equal(t, bank.KindUpstream, bank.KindOf(err))

	f.accountsBody = `{"accounts":`
	_, err = c.Accounts(ctx, models.Profile{SessionID: "s1"})
	assert.ErrorIs(t, err, bank.ErrUpstream)

	// well formed but without an id is still a validation failure
	f.profileBody = `{"name":"Jamie Doe"}`
	_, err = c.Profile(ctx, "s1")
	assert.ErrorIs(t, err, bank.ErrValidation)
}

func TestAccountsNormalized(t *testing.T) {
	c, f := newTestClient(t, Retail, loggedIn())
	profile := models.Profile{SessionID: "s1", ProfileID: "p-42"}

	accounts, err := c.Accounts(context.Background(), profile)
	require.NoError(t, err)
	require.Len(t, accounts, 3)

	assert.Equal(t, "chq", accounts[0].AccountID)
	assert.Equal(t, "Everyday Chequing", accounts[0].AccountName)
	assert.Equal(t, "6789", accounts[0].AccountMask)
	assert.Equal(t, models.AccountTypeChecking, accounts[0].AccountType)
	assert.Equal(t, "$1,520.10", accounts[0].Balance.Display())
	assert.Equal(t, profile, accounts[0].Profile)

	assert.Equal(t, models.AccountTypeCreditCard, accounts[1].AccountType)
	assert.Equal(t, "1111", accounts[1].AccountMask)
	assert.Nil(t, accounts[1].Balance)

	// unknown kinds still land in the closed set
	assert.Equal(t, models.AccountTypeChecking, accounts[2].AccountType)
	for _, a := range accounts {
		assert.True(t, a.AccountType.Valid())
		assert.NotEqual(t, "old", a.AccountID)
	}
	assert.Equal(t, 1, f.exchanges)
}

func TestTokenReused(t *testing.T) {
	c, f := newTestClient(t, Retail, loggedIn())
	ctx := context.Background()

	_, err := c.Profile(ctx, "s1")
	require.NoError(t, err)
	_, err = c.Accounts(ctx, models.Profile{})
	require.NoError(t, err)
	assert.Equal(t, 1, f.exchanges)
}

func TestTokenRefreshedWhenExpired(t *testing.T) {
	c, f := newTestClient(t, Retail, loggedIn())
	ctx := context.Background()

	_, err := c.Profile(ctx, "s1")
	require.NoError(t, err)

	c.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = c.Profile(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, f.exchanges)
}

func TestRetryOnceAfter401(t *testing.T) {
	c, f := newTestClient(t, Retail, loggedIn())
	f.rejectFirst = true

	accounts, err := c.Accounts(context.Background(), models.Profile{})
	require.NoError(t, err)
	assert.Len(t, accounts, 3)
	assert.Equal(t, 2, f.exchanges)
	assert.Equal(t, 2, f.hits["/api/accounts"])
}

func TestPersistent401IsAuthentication(t *testing.T) {
	c, f := newTestClient(t, Retail, loggedIn())
	f.rejectAll = true

	_, err := c.Accounts(context.Background(), models.Profile{})
	assert.ErrorIs(t, err, bank.ErrAuthentication)
	assert.Equal(t, 2, f.hits["/api/accounts"])
}

func TestRejectedSession(t *testing.T) {
	c, _ := newTestClient(t, Retail, map[string]string{SessionCookie: "expired"})
	_, err := c.Profile(context.Background(), "expired")
	assert.ErrorIs(t, err, bank.ErrAuthentication)
}

func TestStatementsNewestFirst(t *testing.T) {
	c, _ := newTestClient(t, Retail, loggedIn())
	account := models.Account{AccountID: "chq", AccountType: models.AccountTypeChecking}

	statements, err := c.Statements(context.Background(), account)
	require.NoError(t, err)
	require.Len(t, statements, 3)
	assert.Equal(t, []string{"s-mar", "s-feb", "s-jan"}, []string{statements[0].StatementID, statements[1].StatementID, statements[2].StatementID})
	assert.Equal(t, account, statements[0].Account)
}

func TestStatementsErrors(t *testing.T) {
	c, _ := newTestClient(t, Retail, loggedIn())
	ctx := context.Background()

	_, err := c.Statements(ctx, models.Account{AccountID: "bad"})
	assert.ErrorIs(t, err, bank.ErrValidation)

	_, err = c.Statements(ctx, models.Account{AccountID: "down"})
	assert.ErrorIs(t, err, bank.ErrUpstream)
	var statusErr *bank.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
}

func TestDownloadStatement(t *testing.T) {
	c, f := newTestClient(t, Retail, loggedIn())
	ctx := context.Background()

	content, err := c.DownloadStatement(ctx, models.Statement{StatementID: "s-mar"})
	require.NoError(t, err)
	assert.Equal(t, f.document, content)

	f.document = []byte("<html>session expired</html>")
	_, err = c.DownloadStatement(ctx, models.Statement{StatementID: "s-mar"})
	assert.ErrorIs(t, err, bank.ErrValidation)
}

func TestInvestVariant(t *testing.T) {
	c, _ := newTestClient(t, Invest, loggedIn())
	assert.Equal(t, "demo-invest", c.ID())
	assert.Equal(t, "Demo Bank Investing", c.Name())

	accounts, err := c.Accounts(context.Background(), models.Profile{})
	require.NoError(t, err)
	for _, a := range accounts {
		assert.Equal(t, models.AccountTypeInvestment, a.AccountType)
	}
}
