package scotia

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/vpnda/statement-relay/pkg/bank"
	"github.com/vpnda/statement-relay/pkg/models"
)

const (
	statementsPath = "/api/documents/statements"
	documentPath   = "/statements/%s.pdf"
)

type statementsResponse struct {
	Data []struct {
		ID            string `json:"id"`
		StatementDate string `json:"statementDate"`
	} `json:"data"`
}

func (s *ScotiaClient) Statements(ctx context.Context, account models.Account) ([]models.Statement, error) {
	u, _ := url.Parse(s.apiURL + statementsPath)
	u.RawQuery = url.Values{"accountKey": {account.AccountID}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	res, err := s.authClient.Do(req)
	if err != nil {
		return nil, classify("statements", nil, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		if res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden {
			return nil, classify("statements", res, nil)
		}
		return nil, &bank.StatusError{StatusCode: res.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var parsed statementsResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: statements response: %s", bank.ErrUpstream, err)
	}

	statements := make([]models.Statement, 0, len(parsed.Data))
	for _, d := range parsed.Data {
		date, err := parseStatementDate(d.StatementDate)
		if err != nil {
			return nil, fmt.Errorf("%w: statement %s: %s", bank.ErrValidation, d.ID, err)
		}
		statements = append(statements, models.Statement{
			Account:       account,
			StatementID:   d.ID,
			StatementDate: date,
		})
	}
	sort.SliceStable(statements, func(i, j int) bool {
		return statements[i].StatementDate > statements[j].StatementDate
	})
	return statements, nil
}

// parseStatementDate accepts the date only and the timestamp formats the
// documents API mixes.
func parseStatementDate(raw string) (string, error) {
	for _, layout := range []string{time.DateOnly, "2006-01-02T15:04:05", time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format(time.DateOnly), nil
		}
	}
	return "", fmt.Errorf("unrecognized date %q", raw)
}

// DownloadStatement fetches the document host through the coordinator proxy,
// the page cannot reach it directly.
func (s *ScotiaClient) DownloadStatement(ctx context.Context, statement models.Statement) ([]byte, error) {
	proxy := s.page.Proxy()
	if proxy == nil {
		return nil, fmt.Errorf("%w: statement documents need the coordinator proxy", bank.ErrUpstream)
	}

	sid, err := s.SessionID()
	if err != nil {
		return nil, err
	}

	documentURL := s.documentsURL + fmt.Sprintf(documentPath, url.PathEscape(statement.StatementID))
	res, err := proxy.RequestFetch(ctx, documentURL, &bank.FetchOptions{
		Method:      http.MethodGet,
		Headers:     map[string]string{"Accept": "application/pdf", "Cookie": sessionCookie + "=" + sid},
		Credentials: "include",
	})
	if err != nil {
		return nil, err
	}
	if res.Status == http.StatusUnauthorized || res.Status == http.StatusForbidden {
		return nil, fmt.Errorf("%w: document host answered %d", bank.ErrAuthentication, res.Status)
	}
	if !res.OK {
		return nil, &bank.StatusError{StatusCode: res.Status, Body: res.StatusText}
	}

	content, err := res.Bytes()
	if err != nil {
		return nil, fmt.Errorf("%w: document body: %s", bank.ErrUpstream, err)
	}
	if err := bank.ValidatePDF(content); err != nil {
		return nil, err
	}
	return content, nil
}
