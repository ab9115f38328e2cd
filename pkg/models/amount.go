package models

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Rhymond/go-money"
)

// Amount represents a monetary amount
type Amount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

func (a *Amount) ToMoney() *money.Money {
	negative := strings.HasPrefix(a.Value, "-")
	split := strings.Split(strings.TrimPrefix(a.Value, "-"), ".")
	currency := money.GetCurrency(strings.ToUpper(a.Currency))
	fraction := 2
	if currency != nil {
		fraction = currency.Fraction
	}
	if len(split) == 1 {
		split = append(split, strings.Repeat("0", fraction))
	} else if len(split) == 2 && len(split[1]) < fraction {
		split[1] += strings.Repeat("0", fraction-len(split[1]))
	} else if len(split) == 2 && len(split[1]) >= fraction {
		split[1] = split[1][:fraction]
	}
	intTranslation, err := strconv.ParseInt(strings.Join(split, ""), 10, 64)
	if err != nil {
		panic(fmt.Sprintf("failed to parse amount: original split %v: %v", split, err))
	}
	if negative {
		intTranslation = -intTranslation
	}
	return money.New(intTranslation, strings.ToUpper(a.Currency))
}

// Display formats the amount for humans, empty when the amount is unset.
func (a *Amount) Display() string {
	if a == nil || a.Value == "" {
		return ""
	}
	return a.ToMoney().Display()
}
