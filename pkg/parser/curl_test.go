package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCookieHeader(t *testing.T) {
	testCases := []struct {
		name            string
		cookieHeader    string
		expectedCookies map[string]string
	}{
		{
			name:            "Single cookie",
			cookieHeader:    "name=value",
			expectedCookies: map[string]string{"name": "value"},
		},
		{
			name:         "Multiple cookies",
			cookieHeader: "name1=value1; name2=value2; name3=value3",
			expectedCookies: map[string]string{
				"name1": "value1",
				"name2": "value2",
				"name3": "value3",
			},
		},
		{
			name:         "Cookies with spaces",
			cookieHeader: " name1 = value1 ; name2= value2;name3 =value3 ",
			expectedCookies: map[string]string{
				"name1": "value1",
				"name2": "value2",
				"name3": "value3",
			},
		},
		{
			name:            "Empty cookie header",
			cookieHeader:    "",
			expectedCookies: map[string]string{},
		},
		{
			name:            "Invalid cookie format",
			cookieHeader:    "invalid; format; missing=equals",
			expectedCookies: map[string]string{"missing": "equals"},
		},
		{
			name:            "Value containing equals",
			cookieHeader:    "token=abc==",
			expectedCookies: map[string]string{"token": "abc=="},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result := ParseCookieHeader(tc.cookieHeader)

			if len(result) != len(tc.expectedCookies) {
				t.Errorf("Expected %d cookies, got %d", len(tc.expectedCookies), len(result))
			}

			for key, expectedValue := range tc.expectedCookies {
				if value, ok := result[key]; !ok {
					t.Errorf("Expected cookie '%s' not found", key)
				} else if value != expectedValue {
					t.Errorf("Expected cookie '%s' to have value '%s', got '%s'", key, expectedValue, value)
				}
			}
		})
	}
}

const chromeCurl = `curl 'https://secure.scotiabank.com/api/accounts/summary' \
  -H 'accept: application/json' \
  -H 'x-requested-with: XMLHttpRequest' \
  -b 'SESSION=abc123; akavpau=xyz' \
  -H 'user-agent: Mozilla/5.0'`

func TestParseCurlCommand(t *testing.T) {
	cmd, err := ParseCurlCommand(chromeCurl)
	require.NoError(t, err)

	assert.Equal(t, "https://secure.scotiabank.com/api/accounts/summary", cmd.URL)
	assert.Equal(t, "application/json", cmd.Headers["accept"])
	assert.Equal(t, "XMLHttpRequest", cmd.Headers["x-requested-with"])
	assert.Equal(t, map[string]string{"SESSION": "abc123", "akavpau": "xyz"}, cmd.Cookies)
}

func TestParseCurlCommandCookieHeader(t *testing.T) {
	cmd, err := ParseCurlCommand(`curl 'https://rbaccess.rogersbank.com/issuing/digital/account' -H 'Cookie: SESSION=s1; XSRF-TOKEN=t'`)
	require.NoError(t, err)
	assert.Equal(t, "s1", cmd.Cookies["SESSION"])
	assert.Equal(t, "t", cmd.Cookies["XSRF-TOKEN"])
	assert.NotContains(t, cmd.Headers, "Cookie")
}

func TestParseCurlCommandWindows(t *testing.T) {
	cmd, err := ParseCurlCommand(`curl ^"https://my.wealthsimple.com/app/home^" -H ^"accept: */*^" -b ^"_oauth2_access_v2=tok^"`)
	require.NoError(t, err)
	assert.Equal(t, "https://my.wealthsimple.com/app/home", cmd.URL)
	assert.Equal(t, "*/*", cmd.Headers["accept"])
	assert.Equal(t, "tok", cmd.Cookies["_oauth2_access_v2"])
}

func TestParseCurlCommandNoURL(t *testing.T) {
	_, err := ParseCurlCommand(`wget https://example.com`)
	assert.Error(t, err)
}

func TestCurlPage(t *testing.T) {
	cmd, err := ParseCurlCommand(chromeCurl)
	require.NoError(t, err)

	page, err := cmd.Page()
	require.NoError(t, err)
	assert.Equal(t, "https://secure.scotiabank.com/", page.URL().String())
	v, ok := page.Cookie("SESSION")
	assert.True(t, ok)
	assert.Equal(t, "abc123", v)

	_, err = (&CurlCommand{URL: "/relative"}).Page()
	assert.Error(t, err)
}

func TestReadCurlCommand(t *testing.T) {
	input, err := ReadCurlCommand(strings.NewReader(chromeCurl + "\nEOF\nignored"))
	require.NoError(t, err)
	assert.NotContains(t, input, "ignored")

	cmd, err := ParseCurlCommand(input)
	require.NoError(t, err)
	assert.Equal(t, "abc123", cmd.Cookies["SESSION"])
	assert.Equal(t, "Mozilla/5.0", cmd.Headers["user-agent"])

	_, err = ReadCurlCommand(strings.NewReader("EOF\n"))
	assert.Error(t, err)
}

func TestStringHidesCookieValues(t *testing.T) {
	cmd, err := ParseCurlCommand(chromeCurl)
	require.NoError(t, err)
	s := cmd.String()
	assert.Contains(t, s, "SESSION")
	assert.NotContains(t, s, "abc123")
}
