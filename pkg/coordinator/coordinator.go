// Package coordinator routes UI requests to the active tab, caches adapter
// results and proxies cross-origin fetches.
package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/vpnda/statement-relay/pkg/bank"
	"github.com/vpnda/statement-relay/pkg/cache"
	"github.com/vpnda/statement-relay/pkg/models"
	"github.com/vpnda/statement-relay/pkg/protocol"
)

// DefaultRequestTimeout bounds every call forwarded to a tab.
const DefaultRequestTimeout = 30 * time.Second

type Coordinator struct {
	router  Router
	cache   *cache.Cache
	proxy   bank.Fetcher
	timeout time.Duration
}

func New(router Router, c *cache.Cache, proxy bank.Fetcher, timeout time.Duration) *Coordinator {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	if proxy == nil {
		proxy = NewFetchProxy(nil, nil)
	}
	return &Coordinator{
		router:  router,
		cache:   c,
		proxy:   proxy,
		timeout: timeout,
	}
}

// session pins one tab for the duration of a logical operation so that key
// material and data come from the same dispatcher.
type session struct {
	tab     Tab
	timeout time.Duration
}

func (c *Coordinator) session() (*session, error) {
	tab, err := c.router.ActiveTab()
	if err != nil {
		return nil, err
	}
	return &session{tab: tab, timeout: c.timeout}, nil
}

func (s *session) call(ctx context.Context, req *protocol.Request, out any) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.tab.Send(ctx, req)
	if err != nil {
		return fmt.Errorf("%w: %s", bank.ErrRouting, err)
	}
	return res.Decode(out)
}

func (s *session) str(ctx context.Context, action protocol.Action) (string, error) {
	var v string
	err := s.call(ctx, protocol.NewRequest(action), &v)
	return v, err
}

// keyMaterial reads bank and session ids from the tab right before they are
// used, never from caller provided state.
func (s *session) keyMaterial(ctx context.Context) (string, string, error) {
	bankID, err := s.str(ctx, protocol.ActionGetBankID)
	if err != nil {
		return "", "", err
	}
	sessionID, err := s.str(ctx, protocol.ActionGetSessionID)
	if err != nil {
		return "", "", err
	}
	return bankID, sessionID, nil
}

func (c *Coordinator) passthrough(ctx context.Context, action protocol.Action) (string, error) {
	s, err := c.session()
	if err != nil {
		return "", err
	}
	return s.str(ctx, action)
}

func (c *Coordinator) GetBankID(ctx context.Context) (string, error) {
	return c.passthrough(ctx, protocol.ActionGetBankID)
}

func (c *Coordinator) GetBankName(ctx context.Context) (string, error) {
	return c.passthrough(ctx, protocol.ActionGetBankName)
}

func (c *Coordinator) GetSessionID(ctx context.Context) (string, error) {
	return c.passthrough(ctx, protocol.ActionGetSessionID)
}

// cached serves key from the cache unless forceRefresh, otherwise forwards req
// and stores the answer under key.
func (c *Coordinator) cached(ctx context.Context, s *session, key string, forceRefresh bool, req *protocol.Request, out any) error {
	if !forceRefresh {
		hit, err := c.cache.Get(key, out)
		if err != nil {
			log.Warn().Err(err).Str("action", string(req.Action)).Str("entry", cache.Fingerprint(key)).Msg("cache read failed, fetching")
		} else if hit {
			log.Debug().Str("action", string(req.Action)).Str("entry", cache.Fingerprint(key)).Msg("cache hit")
			return nil
		}
	}

	if err := s.call(ctx, req, out); err != nil {
		return err
	}

	if err := c.cache.Set(key, out); err != nil {
		log.Warn().Err(err).Str("action", string(req.Action)).Str("entry", cache.Fingerprint(key)).Msg("failed to cache result")
	}
	return nil
}

func (c *Coordinator) GetProfile(ctx context.Context, forceRefresh bool) (models.Profile, error) {
	var profile models.Profile
	s, err := c.session()
	if err != nil {
		return profile, err
	}
	bankID, sessionID, err := s.keyMaterial(ctx)
	if err != nil {
		return profile, err
	}
	key := cache.Key(string(protocol.ActionGetProfile), bankID, sessionID)
	err = c.cached(ctx, s, key, forceRefresh, protocol.NewRequest(protocol.ActionGetProfile), &profile)
	return profile, err
}

func (c *Coordinator) GetAccounts(ctx context.Context, forceRefresh bool) ([]models.Account, error) {
	var accounts []models.Account
	s, err := c.session()
	if err != nil {
		return nil, err
	}
	bankID, sessionID, err := s.keyMaterial(ctx)
	if err != nil {
		return nil, err
	}
	key := cache.Key(string(protocol.ActionGetAccounts), bankID, sessionID)
	err = c.cached(ctx, s, key, forceRefresh, protocol.NewRequest(protocol.ActionGetAccounts), &accounts)
	return accounts, err
}

func (c *Coordinator) GetStatements(ctx context.Context, account models.Account, forceRefresh bool) ([]models.Statement, error) {
	var statements []models.Statement
	s, err := c.session()
	if err != nil {
		return nil, err
	}
	bankID, sessionID, err := s.keyMaterial(ctx)
	if err != nil {
		return nil, err
	}
	req := protocol.NewRequest(protocol.ActionGetStatements)
	req.Account = &account
	key := cache.Key(string(protocol.ActionGetStatements), bankID, sessionID, account.AccountID)
	err = c.cached(ctx, s, key, forceRefresh, req, &statements)
	return statements, err
}

// DownloadStatement always goes to the tab: content links are often single use.
// The result stays transport encoded.
func (c *Coordinator) DownloadStatement(ctx context.Context, statement models.Statement) (string, error) {
	s, err := c.session()
	if err != nil {
		return "", err
	}
	req := protocol.NewRequest(protocol.ActionDownloadStatement)
	req.Statement = &statement
	var encoded string
	err = s.call(ctx, req, &encoded)
	return encoded, err
}

func (c *Coordinator) ClearCache() error {
	log.Info().Msg("clearing cache")
	return c.cache.Clear()
}

func (c *Coordinator) RequestFetch(ctx context.Context, url string, options *bank.FetchOptions) (*bank.FetchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.proxy.RequestFetch(ctx, url, options)
}

// Handle answers one UI request. Every failure becomes a failure envelope.
func (c *Coordinator) Handle(ctx context.Context, req *protocol.Request) *protocol.Response {
	data, err := c.handle(ctx, req)
	if err != nil {
		log.Info().Err(err).Str("action", string(req.Action)).Msg("request failed")
		return protocol.Fail(req, err)
	}
	return protocol.Succeed(req, data)
}

func (c *Coordinator) handle(ctx context.Context, req *protocol.Request) (any, error) {
	switch req.Action {
	case protocol.ActionGetBankID:
		return c.GetBankID(ctx)
	case protocol.ActionGetBankName:
		return c.GetBankName(ctx)
	case protocol.ActionGetSessionID:
		return c.GetSessionID(ctx)
	case protocol.ActionGetProfile:
		return c.GetProfile(ctx, req.ForceRefresh)
	case protocol.ActionGetAccounts:
		return c.GetAccounts(ctx, req.ForceRefresh)
	case protocol.ActionGetStatements:
		if req.Account == nil {
			return nil, fmt.Errorf("%w: getStatements needs an account", bank.ErrValidation)
		}
		return c.GetStatements(ctx, *req.Account, req.ForceRefresh)
	case protocol.ActionDownloadStatement:
		if req.Statement == nil {
			return nil, fmt.Errorf("%w: downloadStatement needs a statement", bank.ErrValidation)
		}
		return c.DownloadStatement(ctx, *req.Statement)
	case protocol.ActionClearCache:
		return nil, c.ClearCache()
	case protocol.ActionRequestFetch:
		if req.URL == "" {
			return nil, fmt.Errorf("%w: requestFetch needs a url", bank.ErrValidation)
		}
		return c.RequestFetch(ctx, req.URL, req.Options)
	case protocol.ActionPing:
		return "pong", nil
	}
	return nil, fmt.Errorf("unknown action %q", req.Action)
}
