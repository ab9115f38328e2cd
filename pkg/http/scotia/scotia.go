// Package scotia reads accounts and statements from Scotiabank online
// banking through the page session.
package scotia

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/rs/zerolog/log"
	openapiclient "github.com/vpnda/scotiafetch"
	"github.com/vpnda/statement-relay/pkg/bank"
	"github.com/vpnda/statement-relay/pkg/models"
)

const (
	BankID   = "scotia"
	BankName = "Scotiabank"

	sessionCookie = "SESSION"
	rsidStorage   = "user_rsid"

	defaultDocumentsURL = "https://documents.scotiabank.com"
)

var (
	ErrAuthRedirect = fmt.Errorf("got redirect")
)

type ScotiaClient struct {
	page         bank.Page
	authClient   *http.Client
	apiClient    *openapiclient.APIClient
	apiURL       string
	documentsURL string
}

// New builds a client on top of the page session. The API lives on the page
// origin; statement documents are served from a separate host.
func New(page bank.Page) *ScotiaClient {
	return NewWithDocuments(page, defaultDocumentsURL)
}

func NewWithDocuments(page bank.Page, documentsURL string) *ScotiaClient {
	pageClient := page.HTTPClient()
	client := &http.Client{
		Jar:       pageClient.Jar,
		Transport: pageClient.Transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			// online banking redirects to the sign in page once the session is gone
			log.Info().Msgf("request is being redirected: %s", req.URL.String())
			return ErrAuthRedirect
		},
	}

	u := page.URL()
	apiURL := (&url.URL{Scheme: u.Scheme, Host: u.Host}).String()

	configuration := openapiclient.NewConfiguration()
	configuration.HTTPClient = client
	configuration.Servers = openapiclient.ServerConfigurations{{URL: apiURL}}

	return &ScotiaClient{
		page:         page,
		authClient:   client,
		apiClient:    openapiclient.NewAPIClient(configuration),
		apiURL:       apiURL,
		documentsURL: documentsURL,
	}
}

func (s *ScotiaClient) ID() string   { return BankID }
func (s *ScotiaClient) Name() string { return BankName }

func (s *ScotiaClient) SessionID() (string, error) {
	sid, ok := s.page.Cookie(sessionCookie)
	if !ok {
		return "", fmt.Errorf("%w: %s cookie missing", bank.ErrAuthentication, sessionCookie)
	}
	return sid, nil
}

// Profile uses the rsid the web app keeps in local storage. Older sessions do
// not carry it, those fall back to the session id.
func (s *ScotiaClient) Profile(ctx context.Context, sessionID string) (models.Profile, error) {
	profileID, ok := s.page.LocalStorage(rsidStorage)
	if !ok {
		profileID = sessionID
	}
	return models.Profile{
		SessionID:   sessionID,
		ProfileID:   profileID,
		ProfileName: BankName,
	}, nil
}

// classify maps transport failures onto the bank error taxonomy.
func classify(op string, r *http.Response, err error) error {
	if errors.Is(err, ErrAuthRedirect) {
		return fmt.Errorf("%w: %s redirected to sign in", bank.ErrAuthentication, op)
	}
	if r != nil && (r.StatusCode == http.StatusUnauthorized || r.StatusCode == http.StatusForbidden) {
		return fmt.Errorf("%w: %s answered %d", bank.ErrAuthentication, op, r.StatusCode)
	}
	if r != nil {
		return &bank.StatusError{StatusCode: r.StatusCode, Body: op}
	}
	return fmt.Errorf("%w: %s: %s", bank.ErrUpstream, op, err)
}

var _ bank.Adapter = (*ScotiaClient)(nil)
