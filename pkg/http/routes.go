// Package http holds the bank adapters and the table that binds them to the
// origins they run on.
package http

import (
	"github.com/vpnda/statement-relay/pkg/bank"
	"github.com/vpnda/statement-relay/pkg/dispatcher"
	"github.com/vpnda/statement-relay/pkg/http/demo"
	"github.com/vpnda/statement-relay/pkg/http/rogers"
	"github.com/vpnda/statement-relay/pkg/http/scotia"
	"github.com/vpnda/statement-relay/pkg/http/ws"
)

// Routes lists every supported origin. More specific hosts are matched before
// wildcards regardless of their position here.
func Routes() []dispatcher.Route {
	return []dispatcher.Route{
		{Pattern: "invest.demobank.example", Factory: demo.NewFactory(demo.Invest)},
		{Pattern: "*.demobank.example", Factory: demo.NewFactory(demo.Retail)},
		{Pattern: "secure.scotiabank.com", Factory: func(p bank.Page) bank.Adapter { return scotia.New(p) }},
		{Pattern: "my.wealthsimple.com", Factory: func(p bank.Page) bank.Adapter { return ws.New(p) }},
		{Pattern: "rbaccess.rogersbank.com", Factory: func(p bank.Page) bank.Adapter { return rogers.New(p) }},
	}
}

// DefaultTable returns the dispatcher table for Routes.
func DefaultTable() *dispatcher.Table {
	table, err := dispatcher.NewTable(Routes()...)
	if err != nil {
		panic(err)
	}
	return table
}
