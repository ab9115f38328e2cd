package coordinator

import (
	"context"
	"fmt"

	"github.com/vpnda/statement-relay/pkg/bank"
	"github.com/vpnda/statement-relay/pkg/dispatcher"
	"github.com/vpnda/statement-relay/pkg/protocol"
)

// Tab carries requests to the dispatcher of one tab. An error means the tab
// could not be reached; adapter failures come back inside the response.
type Tab interface {
	Send(ctx context.Context, req *protocol.Request) (*protocol.Response, error)
}

// Router picks the tab requests are forwarded to.
type Router interface {
	ActiveTab() (Tab, error)
}

// DispatcherTab is a tab whose dispatcher lives in the same process.
type DispatcherTab struct {
	Dispatcher *dispatcher.Dispatcher
}

func (t DispatcherTab) Send(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return t.Dispatcher.Handle(ctx, req), nil
}

// StaticRouter always routes to the same tab, nil meaning there is no tab.
type StaticRouter struct {
	Tab Tab
}

func (r StaticRouter) ActiveTab() (Tab, error) {
	if r.Tab == nil {
		return nil, fmt.Errorf("%w: no active tab", bank.ErrRouting)
	}
	return r.Tab, nil
}

var (
	_ Tab    = DispatcherTab{}
	_ Router = StaticRouter{}
)
