package scotia

import (
	"context"
	"fmt"
	"strings"

	"github.com/samber/lo"
	openapiclient "github.com/vpnda/scotiafetch"
	"github.com/vpnda/statement-relay/pkg/bank"
	"github.com/vpnda/statement-relay/pkg/models"
	"github.com/vpnda/statement-relay/pkg/utils"
)

type AccountProductCategory string

const (
	AccountCategoryDayToDay    AccountProductCategory = "DAYTODAY"
	AccountCategoryCreditCards AccountProductCategory = "CREDITCARDS"
	AccountCategoryInvesting   AccountProductCategory = "INVESTING"
	AccountCategoryBorrowing   AccountProductCategory = "BORROWING"
)

type product = openapiclient.ApiAccountsSummaryGet200ResponseDataProductsInner

func (s *ScotiaClient) Accounts(ctx context.Context, profile models.Profile) ([]models.Account, error) {
	resp, r, err := s.apiClient.DefaultAPI.ApiAccountsSummaryGet(ctx).Execute()
	if r != nil {
		defer r.Body.Close()
	}
	if err != nil {
		return nil, classify("accounts summary", r, err)
	}
	if resp == nil {
		return nil, fmt.Errorf("%w: empty accounts summary", bank.ErrUpstream)
	}

	accounts := mapAccounts(profile, resp.Data.GetProducts())
	return accounts, bank.RequireAccounts(accounts)
}

func mapAccounts(profile models.Profile, products []product) []models.Account {
	return lo.FilterMap(products, func(p product, _ int) (models.Account, bool) {
		if p.GetKey() == "" || closedProduct(p) {
			return models.Account{}, false
		}
		return models.Account{
			Profile:     profile,
			AccountID:   p.GetKey(),
			AccountName: AccountName(&p),
			AccountMask: bank.Mask(p.GetKey()),
			AccountType: accountType(p),
			Balance:     primaryBalance(p),
		}, true
	})
}

// closedProduct spots products the summary still lists after they were closed.
// The summary carries no status field, closure only shows in the type or the
// description.
func closedProduct(p product) bool {
	for _, s := range []string{p.GetType(), p.GetDescription()} {
		s = strings.ToLower(s)
		if strings.Contains(s, "closed") || strings.Contains(s, "cancel") {
			return true
		}
	}
	return false
}

func AccountName(account interface{ GetDescription() string }) string {
	return utils.Capitalize(account.GetDescription())
}

func accountType(p product) models.AccountType {
	switch AccountProductCategory(p.GetProductCategory()) {
	case AccountCategoryCreditCards:
		return models.AccountTypeCreditCard
	case AccountCategoryInvesting:
		return models.AccountTypeInvestment
	case AccountCategoryBorrowing:
		return models.AccountTypeLoan
	}
	return bank.CoerceAccountType(p.GetType())
}

func primaryBalance(p product) *models.Amount {
	balances := p.GetPrimaryBalances()
	if len(balances) == 0 {
		return nil
	}
	return &models.Amount{
		Value:    fmt.Sprintf("%.2f", balances[0].GetAmount()),
		Currency: balances[0].GetCurrencyCode(),
	}
}
