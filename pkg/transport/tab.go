package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/vpnda/statement-relay/pkg/dispatcher"
	"github.com/vpnda/statement-relay/pkg/protocol"
)

const writeWait = 10 * time.Second

// TabConn connects a dispatcher to the coordinator and serves forwarded
// requests until the connection or ctx ends.
type TabConn struct {
	dispatcher *dispatcher.Dispatcher
	pageURL    string
	dialer     *websocket.Dialer
}

func NewTabConn(d *dispatcher.Dispatcher, pageURL string) *TabConn {
	return &TabConn{
		dispatcher: d,
		pageURL:    pageURL,
		dialer:     websocket.DefaultDialer,
	}
}

// ConnectURL turns the coordinator base URL into the tab websocket URL.
func ConnectURL(coordinatorURL, pageURL string) (string, error) {
	u, err := url.Parse(strings.TrimSuffix(coordinatorURL, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid coordinator url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported coordinator url scheme %q", u.Scheme)
	}
	u.Path += PathConnect
	u.RawQuery = url.Values{QueryParamPage: {pageURL}}.Encode()
	return u.String(), nil
}

// Run dials the coordinator and blocks while serving requests.
func (t *TabConn) Run(ctx context.Context, coordinatorURL string) error {
	target, err := ConnectURL(coordinatorURL, t.pageURL)
	if err != nil {
		return err
	}
	conn, _, err := t.dialer.DialContext(ctx, target, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to coordinator: %w", err)
	}
	defer conn.Close()
	log.Info().Str("coordinator", coordinatorURL).Str("page", t.pageURL).Msg("tab connected")

	go func() {
		<-ctx.Done()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		conn.Close()
	}()

	var writeMu sync.Mutex
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("tab connection lost: %w", err)
		}

		var req protocol.Request
		if err := json.Unmarshal(frame, &req); err != nil {
			log.Warn().Err(err).Msg("dropping malformed request frame")
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			res := t.dispatcher.Handle(ctx, &req)
			writeMu.Lock()
			defer writeMu.Unlock()
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(res); err != nil {
				log.Warn().Err(err).Str("id", req.ID).Msg("failed to send response")
			}
		}()
	}
}
