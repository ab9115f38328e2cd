package bank

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/vpnda/statement-relay/pkg/models"
)

// accountTypeAliases is checked in order, the first alias contained in the
// normalized bank kind wins.
var accountTypeAliases = []struct {
	alias string
	t     models.AccountType
}{
	{"lineofcredit", models.AccountTypeLoan},
	{"creditcard", models.AccountTypeCreditCard},
	{"mortgage", models.AccountTypeLoan},
	{"loan", models.AccountTypeLoan},
	{"borrowing", models.AccountTypeLoan},
	{"credit", models.AccountTypeCreditCard},
	{"card", models.AccountTypeCreditCard},
	{"savings", models.AccountTypeSavings},
	{"saving", models.AccountTypeSavings},
	{"moneymarket", models.AccountTypeSavings},
	{"gic", models.AccountTypeSavings},
	{"investment", models.AccountTypeInvestment},
	{"investing", models.AccountTypeInvestment},
	{"brokerage", models.AccountTypeInvestment},
	{"tfsa", models.AccountTypeInvestment},
	{"rrsp", models.AccountTypeInvestment},
	{"ira", models.AccountTypeInvestment},
	{"crypto", models.AccountTypeInvestment},
	{"checking", models.AccountTypeChecking},
	{"chequing", models.AccountTypeChecking},
	{"daytoday", models.AccountTypeChecking},
}

// CoerceAccountType maps a bank specific account kind onto the closed set of
// AccountType values. Anything unrecognized becomes Checking.
func CoerceAccountType(raw string) models.AccountType {
	key := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '_', '-', '/':
			return -1
		}
		return r
	}, strings.ToLower(raw))

	if t := models.AccountType(raw); t.Valid() {
		return t
	}
	for _, a := range accountTypeAliases {
		if strings.Contains(key, a.alias) {
			return a.t
		}
	}
	return models.AccountTypeChecking
}

var pdfMagic = []byte("%PDF-")

// ValidatePDF fails with ErrValidation unless content looks like a PDF document.
func ValidatePDF(content []byte) error {
	if len(content) == 0 {
		return fmt.Errorf("%w: empty statement content", ErrValidation)
	}
	if !bytes.HasPrefix(bytes.TrimLeft(content, "\r\n\t "), pdfMagic) {
		return fmt.Errorf("%w: statement content is not a PDF", ErrValidation)
	}
	return nil
}

// RequireAccounts fails when a bank lists no open account. A logged in user
// always holds at least one, so an empty list means the answer was incomplete.
func RequireAccounts(accounts []models.Account) error {
	if len(accounts) == 0 {
		return fmt.Errorf("%w: no open accounts returned", ErrUpstream)
	}
	return nil
}

// Mask keeps the last four characters of an account number.
func Mask(number string) string {
	number = strings.TrimSpace(number)
	if len(number) <= 4 {
		return number
	}
	return number[len(number)-4:]
}
