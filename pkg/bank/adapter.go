// Package bank defines the contract every bank integration satisfies and the
// page context those integrations read their credentials from.
package bank

import (
	"context"

	"github.com/vpnda/statement-relay/pkg/models"
)

// Adapter talks to one bank's private API and normalizes its answers.
//
// Adapters keep no state between calls beyond their own token cache: everything a
// later call needs travels inside the returned Profile, Account or Statement.
type Adapter interface {
	ID() string
	Name() string

	// SessionID reads the credential from the page. It fails with ErrAuthentication
	// when the user is not logged in.
	SessionID() (string, error)

	Profile(ctx context.Context, sessionID string) (models.Profile, error)
	// Accounts returns open accounts only.
	Accounts(ctx context.Context, profile models.Profile) ([]models.Account, error)
	Statements(ctx context.Context, account models.Account) ([]models.Statement, error)
	// DownloadStatement returns the PDF bytes, or ErrNotSupported when the bank
	// has no server side retrieval path.
	DownloadStatement(ctx context.Context, statement models.Statement) ([]byte, error)
}

// Factory builds an adapter bound to a page.
type Factory func(page Page) Adapter
