package parser

import (
	"bufio"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strings"

	"github.com/vpnda/statement-relay/pkg/bank"
)

// CurlCommand represents a parsed curl command
type CurlCommand struct {
	URL     string
	Headers map[string]string
	Cookies map[string]string
}

var (
	urlRegex    = regexp.MustCompile(`curl\s+(?:'([^']+)'|\^"([^"]+)\^")`)
	headerRegex = regexp.MustCompile(`-H\s+(?:'([^']+)'|\^"([^"]+)\^")`)
	cookieRegex = regexp.MustCompile(`-b\s+(?:'([^']+)'|\^"([^"]+)\^")`)
)

// quoted returns whichever of the single-quoted or caret-quoted groups matched
func quoted(match []string) string {
	if len(match) > 1 && match[1] != "" {
		return match[1]
	}
	if len(match) > 2 {
		return match[2]
	}
	return ""
}

// ParseCurlCommand parses a curl-like command string, as produced by a
// browser's "copy as cURL"
func ParseCurlCommand(cmdStr string) (*CurlCommand, error) {
	cmd := &CurlCommand{
		Headers: make(map[string]string),
		Cookies: make(map[string]string),
	}

	// Clean up the command string by removing line continuations
	cmdStr = strings.ReplaceAll(cmdStr, "\\\n", " ")

	cmd.URL = quoted(urlRegex.FindStringSubmatch(cmdStr))
	if cmd.URL == "" {
		return nil, fmt.Errorf("failed to extract URL from curl command")
	}

	for _, match := range headerRegex.FindAllStringSubmatch(cmdStr, -1) {
		parts := strings.SplitN(quoted(match), ":", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// older browsers send cookies as a header
		if strings.EqualFold(key, "cookie") {
			for k, v := range ParseCookieHeader(value) {
				cmd.Cookies[k] = v
			}
			continue
		}

		cmd.Headers[key] = value
	}

	for k, v := range ParseCookieHeader(quoted(cookieRegex.FindStringSubmatch(cmdStr))) {
		cmd.Cookies[k] = v
	}

	return cmd, nil
}

// ParseCookieHeader extracts cookies from a cookie header string
func ParseCookieHeader(cookieHeader string) map[string]string {
	cookies := make(map[string]string)

	for _, part := range strings.Split(cookieHeader, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}

		cookies[strings.TrimSpace(kv[0])] = strings.TrimSpace(kv[1])
	}

	return cookies
}

// Page builds the page context the command was copied from. The page URL is
// the origin of the request.
func (c *CurlCommand) Page() (*bank.StaticPage, error) {
	u, err := url.Parse(c.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid curl url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("curl url %q is not absolute", c.URL)
	}
	origin := (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"}).String()
	return bank.NewStaticPage(origin, c.Cookies)
}

// ReadCurlCommand reads a possibly multi-line curl command from r. Reading
// stops at EOF or at a line containing only "EOF".
func ReadCurlCommand(r io.Reader) (string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 128*1024*1024)
	var multilineInput strings.Builder

	for scanner.Scan() {
		line := scanner.Text()
		trimmedLine := strings.TrimSpace(line)

		if trimmedLine == "EOF" {
			break
		}

		// Handle multiline input
		if strings.HasSuffix(trimmedLine, "\\") {
			multilineInput.WriteString(trimmedLine[:len(trimmedLine)-1])
			multilineInput.WriteString(" ")
			continue
		}
		multilineInput.WriteString(line)
		multilineInput.WriteString(" ")
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("failed to read curl command: %w", err)
	}

	input := strings.TrimSpace(multilineInput.String())
	if len(input) == 0 {
		return "", fmt.Errorf("no input provided")
	}
	return input, nil
}

// String returns a string representation of the curl command
func (c *CurlCommand) String() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("URL: %s\n", c.URL))

	sb.WriteString("Headers:\n")
	for key, value := range c.Headers {
		sb.WriteString(fmt.Sprintf("  %s: %s\n", key, value))
	}

	// cookie values are credentials
	sb.WriteString("Cookies:\n")
	for key := range c.Cookies {
		sb.WriteString(fmt.Sprintf("  %s\n", key))
	}

	return sb.String()
}
