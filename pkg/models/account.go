package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Profile is the authenticated user at one bank.
type Profile struct {
	// SessionID is the bearer credential the adapter extracted from the page
	SessionID string `json:"sessionId"`
	// ProfileID is stable per user, its format is chosen by the adapter
	ProfileID   string `json:"profileId"`
	ProfileName string `json:"profileName"`
}

type AccountType string

const (
	AccountTypeChecking   AccountType = "Checking"
	AccountTypeSavings    AccountType = "Savings"
	AccountTypeCreditCard AccountType = "CreditCard"
	AccountTypeLoan       AccountType = "Loan"
	AccountTypeInvestment AccountType = "Investment"
)

// AccountTypes lists every valid AccountType.
var AccountTypes = []AccountType{
	AccountTypeChecking,
	AccountTypeSavings,
	AccountTypeCreditCard,
	AccountTypeLoan,
	AccountTypeInvestment,
}

func (t AccountType) Valid() bool {
	for _, v := range AccountTypes {
		if t == v {
			return true
		}
	}
	return false
}

func (t *AccountType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if !AccountType(s).Valid() {
		return fmt.Errorf("unknown account type %q", s)
	}
	*t = AccountType(s)
	return nil
}

// Account is one open financial account owned by a single Profile.
type Account struct {
	Profile     Profile     `json:"profile"`
	AccountID   string      `json:"accountId"`
	AccountName string      `json:"accountName"`
	AccountMask string      `json:"accountMask"`
	AccountType AccountType `json:"accountType"`
	// Balance is nil when the bank does not expose one next to the account list
	Balance *Amount `json:"balance,omitempty"`
}

// Statement is one downloadable document of an Account.
type Statement struct {
	Account Account `json:"account"`
	// StatementID may be a composite of several bank identifiers needed for download
	StatementID   string `json:"statementId"`
	StatementDate string `json:"statementDate"`
}

// CacheEntry wraps a cached response with the time it was stored.
type CacheEntry struct {
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}
