// Package dispatcher binds a bank adapter to the page of one tab and exposes
// its operations as a request/response handler.
package dispatcher

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/vpnda/statement-relay/pkg/bank"
	"github.com/vpnda/statement-relay/pkg/models"
	"github.com/vpnda/statement-relay/pkg/protocol"
)

type State int

const (
	StateUnresolved State = iota
	StateResolved
)

func (s State) String() string {
	if s == StateResolved {
		return "resolved"
	}
	return "unresolved"
}

type Dispatcher struct {
	page  bank.Page
	table *Table

	once       sync.Once
	mu         sync.RWMutex
	state      State
	adapter    bank.Adapter
	resolveErr error
}

func New(page bank.Page, table *Table) *Dispatcher {
	return &Dispatcher{
		page:  page,
		table: table,
	}
}

// Adapter resolves the adapter for the page on first use and keeps it, or the
// resolution error, for the lifetime of the dispatcher.
func (d *Dispatcher) Adapter() (bank.Adapter, error) {
	d.once.Do(func() {
		factory, pattern, err := d.table.Resolve(d.page.URL())

		d.mu.Lock()
		defer d.mu.Unlock()
		d.state = StateResolved
		if err != nil {
			log.Warn().Err(err).Msg("no adapter for page")
			d.resolveErr = err
			return
		}
		d.adapter = factory(d.page)
		log.Info().Str("bank", d.adapter.ID()).Str("pattern", pattern).Msg("adapter resolved")
	})

	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.adapter, d.resolveErr
}

func (d *Dispatcher) State() State {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

// Handle runs req against the page adapter. It always returns exactly one
// envelope; adapter errors and panics become failure envelopes.
func (d *Dispatcher) Handle(ctx context.Context, req *protocol.Request) (res *protocol.Response) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("action", string(req.Action)).Msg("adapter panicked")
			res = protocol.Fail(req, fmt.Errorf("internal error while handling %s: %v", req.Action, r))
		}
	}()

	if req.Action == protocol.ActionPing {
		return protocol.Succeed(req, "pong")
	}

	adapter, err := d.Adapter()
	if err != nil {
		return protocol.Fail(req, err)
	}

	data, err := d.invoke(ctx, adapter, req)
	if err != nil {
		log.Info().Err(err).Str("bank", adapter.ID()).Str("action", string(req.Action)).Msg("request failed")
		return protocol.Fail(req, err)
	}
	return protocol.Succeed(req, data)
}

func (d *Dispatcher) invoke(ctx context.Context, adapter bank.Adapter, req *protocol.Request) (any, error) {
	switch req.Action {
	case protocol.ActionGetBankID:
		return adapter.ID(), nil
	case protocol.ActionGetBankName:
		return adapter.Name(), nil
	case protocol.ActionGetSessionID:
		return adapter.SessionID()
	case protocol.ActionGetProfile:
		return d.profile(ctx, adapter)
	case protocol.ActionGetAccounts:
		profile, err := d.profile(ctx, adapter)
		if err != nil {
			return nil, err
		}
		accounts, err := adapter.Accounts(ctx, profile)
		if err != nil {
			return nil, err
		}
		if err := bank.RequireAccounts(accounts); err != nil {
			return nil, err
		}
		return accounts, checkAccounts(accounts)
	case protocol.ActionGetStatements:
		if req.Account == nil {
			return nil, fmt.Errorf("%w: getStatements needs an account", bank.ErrValidation)
		}
		statements, err := adapter.Statements(ctx, *req.Account)
		if statements == nil && err == nil {
			statements = []models.Statement{}
		}
		return statements, err
	case protocol.ActionDownloadStatement:
		if req.Statement == nil {
			return nil, fmt.Errorf("%w: downloadStatement needs a statement", bank.ErrValidation)
		}
		content, err := adapter.DownloadStatement(ctx, *req.Statement)
		if err != nil {
			return nil, err
		}
		if err := bank.ValidatePDF(content); err != nil {
			return nil, err
		}
		return protocol.EncodeBinary(content), nil
	}
	return nil, fmt.Errorf("unknown action %q", req.Action)
}

func (d *Dispatcher) profile(ctx context.Context, adapter bank.Adapter) (models.Profile, error) {
	sessionID, err := adapter.SessionID()
	if err != nil {
		return models.Profile{}, err
	}
	return adapter.Profile(ctx, sessionID)
}

func checkAccounts(accounts []models.Account) error {
	for _, a := range accounts {
		if !a.AccountType.Valid() {
			return fmt.Errorf("%w: account %s has unknown type %q", bank.ErrValidation, a.AccountID, a.AccountType)
		}
	}
	return nil
}
