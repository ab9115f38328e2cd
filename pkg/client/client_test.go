package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vpnda/statement-relay/pkg/bank"
	"github.com/vpnda/statement-relay/pkg/models"
	"github.com/vpnda/statement-relay/pkg/protocol"
)

// fakeCoordinator answers envelopes with handle and records what it received
func fakeCoordinator(t *testing.T, handle func(req *protocol.Request) *protocol.Response) (*httptest.Server, *[]protocol.Request) {
	var seen []protocol.Request
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/messages", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var req protocol.Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		seen = append(seen, req)
		json.NewEncoder(w).Encode(handle(&req))
	})
	mux.HandleFunc("/v1/tabs", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]protocol.TabInfo{{ID: "t1", URL: "https://online.demobank.example/", Active: true}})
	})
	mux.HandleFunc("/v1/tabs/t1/activate", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &seen
}

func TestGetAccountsSendsForceRefresh(t *testing.T) {
	srv, seen := fakeCoordinator(t, func(req *protocol.Request) *protocol.Response {
		return protocol.Succeed(req, []models.Account{{AccountID: "a1", AccountType: models.AccountTypeSavings}})
	})
	c := New(srv.URL+"/", srv.Client())

	accounts, err := c.GetAccounts(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, models.AccountTypeSavings, accounts[0].AccountType)

	require.Len(t, *seen, 1)
	assert.Equal(t, protocol.ActionGetAccounts, (*seen)[0].Action)
	assert.True(t, (*seen)[0].ForceRefresh)
	assert.NotEmpty(t, (*seen)[0].ID)
}

func TestGetStatementsSendsAccount(t *testing.T) {
	srv, seen := fakeCoordinator(t, func(req *protocol.Request) *protocol.Response {
		return protocol.Succeed(req, []models.Statement{{Account: *req.Account, StatementID: "s1"}})
	})
	c := New(srv.URL, srv.Client())

	statements, err := c.GetStatements(context.Background(), models.Account{AccountID: "a9", AccountType: models.AccountTypeLoan}, false)
	require.NoError(t, err)
	require.Len(t, statements, 1)
	assert.Equal(t, "a9", statements[0].Account.AccountID)
	assert.Equal(t, "a9", (*seen)[0].Account.AccountID)
}

func TestDownloadStatementDecodes(t *testing.T) {
	pdf := []byte("%PDF-1.7\x00\xff binary")
	srv, _ := fakeCoordinator(t, func(req *protocol.Request) *protocol.Response {
		return protocol.Succeed(req, protocol.EncodeBinary(pdf))
	})
	c := New(srv.URL, srv.Client())

	content, err := c.DownloadStatement(context.Background(), models.Statement{StatementID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, pdf, content)
}

func TestFailureEnvelopeBecomesTypedError(t *testing.T) {
	srv, _ := fakeCoordinator(t, func(req *protocol.Request) *protocol.Response {
		return protocol.Fail(req, bank.ErrAuthentication)
	})
	c := New(srv.URL, srv.Client())

	_, err := c.GetProfile(context.Background(), false)
	assert.ErrorIs(t, err, bank.ErrAuthentication)
	assert.False(t, bank.Retryable(err))
}

func TestRequestFetch(t *testing.T) {
	srv, seen := fakeCoordinator(t, func(req *protocol.Request) *protocol.Response {
		return protocol.Succeed(req, bank.FetchResult{OK: true, Status: 200, Body: protocol.EncodeBinary([]byte("%PDF-")), Encoding: bank.EncodingBase64})
	})
	c := New(srv.URL, srv.Client())

	res, err := c.RequestFetch(context.Background(), "https://docs.bank.example/x.pdf", &bank.FetchOptions{Credentials: "include"})
	require.NoError(t, err)
	body, err := res.Bytes()
	require.NoError(t, err)
	assert.Equal(t, "%PDF-", string(body))
	assert.Equal(t, "https://docs.bank.example/x.pdf", (*seen)[0].URL)
	assert.Equal(t, "include", (*seen)[0].Options.Credentials)
}

func TestTabsAndActivate(t *testing.T) {
	srv, _ := fakeCoordinator(t, func(req *protocol.Request) *protocol.Response { return protocol.Succeed(req, nil) })
	c := New(srv.URL, srv.Client())

	tabs, err := c.Tabs(context.Background())
	require.NoError(t, err)
	require.Len(t, tabs, 1)
	assert.True(t, tabs[0].Active)

	assert.NoError(t, c.Activate(context.Background(), "t1"))
	assert.Error(t, c.Activate(context.Background(), "t2"))
}

func TestCoordinatorUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	c := New(addr, nil)
	_, err := c.GetBankID(context.Background())
	assert.ErrorIs(t, err, bank.ErrRouting)
}

func TestNonEnvelopeResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>proxy error</html>"))
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client())
	_, err := c.GetBankID(context.Background())
	assert.ErrorIs(t, err, bank.ErrRouting)
}
