// Package transport carries envelopes between the UI, the coordinator and the
// tabs: HTTP for the UI, one websocket per tab.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/olahol/melody"
	"github.com/rs/zerolog/log"
	"github.com/vpnda/statement-relay/pkg/bank"
	"github.com/vpnda/statement-relay/pkg/coordinator"
	"github.com/vpnda/statement-relay/pkg/protocol"
)

// MaxFrameSize bounds a websocket frame. Statement downloads travel base64
// encoded in a single frame.
const MaxFrameSize = 96 << 20

const (
	keyTabID = "tab_id"
	keyURL   = "url"
)

var ErrTabClosed = errors.New("tab disconnected")

// Hub tracks the connected tabs and implements coordinator.Router. The most
// recently connected or activated tab is the active one.
type Hub struct {
	m   *melody.Melody
	now func() time.Time

	mu     sync.RWMutex
	tabs   map[string]*remoteTab
	active string
}

func NewHub() *Hub {
	m := melody.New()
	m.Config.MaxMessageSize = MaxFrameSize
	m.Config.PingPeriod = 30 * time.Second
	m.Config.PongWait = 60 * time.Second

	h := &Hub{
		m:    m,
		now:  time.Now,
		tabs: map[string]*remoteTab{},
	}
	m.HandleConnect(h.connect)
	m.HandleDisconnect(h.disconnect)
	m.HandleMessage(h.message)
	m.HandleError(func(s *melody.Session, err error) {
		id, _ := s.Get(keyTabID)
		log.Warn().Err(err).Interface("tab", id).Msg("websocket error")
	})
	return h
}

// HandleRequest upgrades r into a tab connection for the page at pageURL.
func (h *Hub) HandleRequest(w http.ResponseWriter, r *http.Request, pageURL string) error {
	return h.m.HandleRequestWithKeys(w, r, map[string]any{
		keyTabID: uuid.NewString(),
		keyURL:   pageURL,
	})
}

func (h *Hub) connect(s *melody.Session) {
	id := s.MustGet(keyTabID).(string)
	pageURL, _ := s.Get(keyURL)

	tab := &remoteTab{
		id:          id,
		url:         fmt.Sprint(pageURL),
		connectedAt: h.now(),
		session:     s,
		pending:     map[string]chan *protocol.Response{},
		closed:      make(chan struct{}),
	}

	h.mu.Lock()
	h.tabs[id] = tab
	h.active = id
	h.mu.Unlock()

	log.Info().Str("tab", id).Str("url", tab.url).Msg("tab connected")
}

func (h *Hub) disconnect(s *melody.Session) {
	id := s.MustGet(keyTabID).(string)

	h.mu.Lock()
	tab, ok := h.tabs[id]
	delete(h.tabs, id)
	if h.active == id {
		h.active = h.latest()
	}
	h.mu.Unlock()

	if ok {
		tab.close()
	}
	log.Info().Str("tab", id).Msg("tab disconnected")
}

// latest returns the most recently connected tab id. Callers hold h.mu.
func (h *Hub) latest() string {
	var id string
	var at time.Time
	for _, tab := range h.tabs {
		if id == "" || tab.connectedAt.After(at) {
			id, at = tab.id, tab.connectedAt
		}
	}
	return id
}

func (h *Hub) message(s *melody.Session, msg []byte) {
	id := s.MustGet(keyTabID).(string)

	var res protocol.Response
	if err := json.Unmarshal(msg, &res); err != nil {
		log.Warn().Err(err).Str("tab", id).Msg("dropping malformed frame")
		return
	}

	h.mu.RLock()
	tab, ok := h.tabs[id]
	h.mu.RUnlock()
	if !ok {
		return
	}
	tab.deliver(&res)
}

func (h *Hub) ActiveTab() (coordinator.Tab, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	tab, ok := h.tabs[h.active]
	if !ok {
		return nil, fmt.Errorf("%w: no active tab", bank.ErrRouting)
	}
	return tab, nil
}

// Activate makes tab id the target of forwarded requests.
func (h *Hub) Activate(id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.tabs[id]; !ok {
		return fmt.Errorf("%w: unknown tab %s", bank.ErrRouting, id)
	}
	h.active = id
	log.Info().Str("tab", id).Msg("tab activated")
	return nil
}

// Tabs lists the connected tabs, oldest first.
func (h *Hub) Tabs() []protocol.TabInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()

	tabs := make([]protocol.TabInfo, 0, len(h.tabs))
	for _, tab := range h.tabs {
		tabs = append(tabs, protocol.TabInfo{
			ID:          tab.id,
			URL:         tab.url,
			ConnectedAt: tab.connectedAt,
			Active:      tab.id == h.active,
		})
	}
	sort.Slice(tabs, func(i, j int) bool {
		return tabs[i].ConnectedAt.Before(tabs[j].ConnectedAt)
	})
	return tabs
}

func (h *Hub) Close() error {
	return h.m.Close()
}

// remoteTab is a tab reached over its websocket. Responses are paired with
// requests by envelope id.
type remoteTab struct {
	id          string
	url         string
	connectedAt time.Time
	session     *melody.Session

	mu        sync.Mutex
	pending   map[string]chan *protocol.Response
	closed    chan struct{}
	closeOnce sync.Once
}

func (t *remoteTab) Send(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	frame, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	ch := make(chan *protocol.Response, 1)
	t.mu.Lock()
	t.pending[req.ID] = ch
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		delete(t.pending, req.ID)
		t.mu.Unlock()
	}()

	if err := t.session.Write(frame); err != nil {
		return nil, fmt.Errorf("failed to write to tab %s: %w", t.id, err)
	}

	select {
	case res := <-ch:
		return res, nil
	case <-t.closed:
		return nil, ErrTabClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (t *remoteTab) deliver(res *protocol.Response) {
	t.mu.Lock()
	ch, ok := t.pending[res.ID]
	t.mu.Unlock()
	if !ok {
		log.Debug().Str("tab", t.id).Str("id", res.ID).Msg("response without pending request")
		return
	}
	select {
	case ch <- res:
	default:
	}
}

func (t *remoteTab) close() {
	t.closeOnce.Do(func() { close(t.closed) })
}

var (
	_ coordinator.Router = (*Hub)(nil)
	_ coordinator.Tab    = (*remoteTab)(nil)
)
