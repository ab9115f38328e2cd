package dispatcher

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/gobwas/glob"
	"github.com/vpnda/statement-relay/pkg/bank"
)

// Route binds a hostname pattern to the adapter that serves it. Patterns use glob
// syntax with '.' as separator, so "*.bank.com" matches "www.bank.com" but not
// "bank.com".
type Route struct {
	Pattern string
	Factory bank.Factory
}

type compiledRoute struct {
	Route
	g     glob.Glob
	exact bool
}

// Table resolves a page origin to an adapter factory.
type Table struct {
	routes []compiledRoute
}

// NewTable compiles routes. Exact hostnames are always tried before wildcard
// patterns; otherwise the given order is kept.
func NewTable(routes ...Route) (*Table, error) {
	compiled := make([]compiledRoute, 0, len(routes))
	for _, r := range routes {
		if r.Factory == nil {
			return nil, fmt.Errorf("route %q has no adapter factory", r.Pattern)
		}
		pattern := strings.ToLower(r.Pattern)
		g, err := glob.Compile(pattern, '.')
		if err != nil {
			return nil, fmt.Errorf("invalid origin pattern '%s': %w", r.Pattern, err)
		}
		compiled = append(compiled, compiledRoute{
			Route: r,
			g:     g,
			exact: !strings.ContainsAny(pattern, "*?[{"),
		})
	}
	sort.SliceStable(compiled, func(i, j int) bool {
		return compiled[i].exact && !compiled[j].exact
	})
	return &Table{routes: compiled}, nil
}

// Resolve returns the factory of the first route matching the page host, or
// ErrUnsupportedBank.
func (t *Table) Resolve(u *url.URL) (bank.Factory, string, error) {
	if u == nil || u.Hostname() == "" {
		return nil, "", fmt.Errorf("%w: page has no origin", bank.ErrUnsupportedBank)
	}
	host := strings.ToLower(u.Hostname())
	for _, r := range t.routes {
		if r.g.Match(host) {
			return r.Factory, r.Pattern, nil
		}
	}
	return nil, "", fmt.Errorf("%w: no adapter for %s", bank.ErrUnsupportedBank, host)
}

// Patterns lists the route patterns in evaluation order.
func (t *Table) Patterns() []string {
	patterns := make([]string, 0, len(t.routes))
	for _, r := range t.routes {
		patterns = append(patterns, r.Pattern)
	}
	return patterns
}
