package bank

import "time"

// TokenRefreshMargin is how early a token is considered expired.
const TokenRefreshMargin = 30 * time.Second

// Token is a short lived credential an adapter exchanged its session for.
type Token struct {
	Value  string
	Expiry time.Time
}

// IsValid reports whether the token can still be used at now.
func (t *Token) IsValid(now time.Time) bool {
	if t == nil || t.Value == "" {
		return false
	}
	return now.Add(TokenRefreshMargin).Before(t.Expiry)
}
