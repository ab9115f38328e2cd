package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/vpnda/statement-relay/pkg/bank"
	"github.com/vpnda/statement-relay/pkg/models"
)

func (r *replState) clearCache(ctx context.Context) {
	if err := r.ui.ClearCache(ctx); err != nil {
		r.printError("Clearing the cache", err)
		return
	}
	r.accounts = nil
	r.statements = map[string][]models.Statement{}
	fmt.Fprintln(r.out, "Cache cleared")
}

// fetchURL exercises the coordinator proxy the way an adapter would
func (r *replState) fetchURL(ctx context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(r.out, "Invalid fetch command format.")
		fmt.Fprintln(r.out, "Usage: fetch <url>")
		fmt.Fprintln(r.out, "Example: fetch https://www.scotiabank.com/robots.txt")
		return
	}

	res, err := r.ui.RequestFetch(ctx, args[0], &bank.FetchOptions{Method: "GET"})
	if err != nil {
		r.printError("Fetch", err)
		return
	}

	fmt.Fprintf(r.out, "%d %s\n", res.Status, res.StatusText)
	if res.Encoding == bank.EncodingBase64 {
		body, err := res.Bytes()
		if err != nil {
			r.printError("Fetch", err)
			return
		}
		fmt.Fprintf(r.out, "<%d bytes of binary content>\n", len(body))
		return
	}
	body := res.Body
	if len(body) > 2000 {
		body = body[:2000] + "..."
	}
	fmt.Fprintln(r.out, body)
}

func (r *replState) listTabs(ctx context.Context) {
	tabs, err := r.ui.Tabs(ctx)
	if err != nil {
		r.printError("Listing tabs", err)
		return
	}
	if len(tabs) == 0 {
		fmt.Fprintln(r.out, "No tabs connected")
		return
	}

	fmt.Fprintf(r.out, "%-2s %-38s %-20s %s\n", "", "Tab", "Connected", "Page")
	fmt.Fprintln(r.out, strings.Repeat("-", 100))
	for _, tab := range tabs {
		fmt.Fprintf(r.out, "%-2s %-38s %-20s %s\n",
			lo.Ternary(tab.Active, "*", ""),
			tab.ID,
			tab.ConnectedAt.Format("2006-01-02 15:04:05"),
			tab.URL)
	}
}

func (r *replState) activateTab(ctx context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(r.out, "Usage: activate <tab id>")
		return
	}
	if err := r.ui.Activate(ctx, args[0]); err != nil {
		r.printError("Activating tab", err)
		return
	}
	// the new tab may be a different bank or session
	r.accounts = nil
	r.statements = map[string][]models.Statement{}
	r.showBank(ctx)
}
