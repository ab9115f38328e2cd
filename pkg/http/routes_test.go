package http

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vpnda/statement-relay/pkg/bank"
)

func TestDefaultTable(t *testing.T) {
	table := DefaultTable()

	testCases := []struct {
		url    string
		bankID string
	}{
		{"https://online.demobank.example/accounts", "demo"},
		{"https://invest.demobank.example/", "demo-invest"},
		{"https://secure.scotiabank.com/accounts/summary", "scotia"},
		{"https://my.wealthsimple.com/app/home", "ws"},
		{"https://rbaccess.rogersbank.com/?product=ROGERSBRAND", "rogers"},
	}
	for _, tc := range testCases {
		t.Run(tc.url, func(t *testing.T) {
			page, err := bank.NewStaticPage(tc.url, nil)
			require.NoError(t, err)
			factory, _, err := table.Resolve(page.URL())
			require.NoError(t, err)
			assert.Equal(t, tc.bankID, factory(page).ID())
		})
	}
}

func TestDefaultTableUnsupported(t *testing.T) {
	table := DefaultTable()
	for _, raw := range []string{
		"https://www.scotiabank.com/ca/en/personal.html",
		"https://example.com/",
		"https://secure.scotiabank.com.evil.example/",
	} {
		u, err := url.Parse(raw)
		require.NoError(t, err)
		_, _, err = table.Resolve(u)
		assert.ErrorIs(t, err, bank.ErrUnsupportedBank, raw)
	}
}
