package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Customer mirrors `ims_customers`.  Credit columns are nullable.
type Customer struct {
	ID             uint64
	Name           string
	Email          string
	CreditLimit    decimal.NullDecimal
	CurrentBalance decimal.NullDecimal
	UpdatedAt      time.Time
}

// AvailableCredit is credit_limit − current_balance, known only when both
// values are.
func (c *Customer) AvailableCredit() decimal.NullDecimal {
	if !c.CreditLimit.Valid || !c.CurrentBalance.Valid {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(c.CreditLimit.Decimal.Sub(c.CurrentBalance.Decimal))
}

// CreditUpdate holds the optional fields of a credit change.
type CreditUpdate struct {
	CreditLimit    *decimal.Decimal
	CurrentBalance *decimal.Decimal
}

// Empty reports whether no field was supplied.
func (u CreditUpdate) Empty() bool {
	return u.CreditLimit == nil && u.CurrentBalance == nil
}

// Apply returns a copy of c with the supplied fields replaced.
func (u CreditUpdate) Apply(c Customer) Customer {
	if u.CreditLimit != nil {
		c.CreditLimit = decimal.NewNullDecimal(*u.CreditLimit)
	}
	if u.CurrentBalance != nil {
		c.CurrentBalance = decimal.NewNullDecimal(*u.CurrentBalance)
	}
	return c
}

// OverLimit reports whether the balance exceeds the limit.  Unknown values
// never violate the rule.
func (c *Customer) OverLimit() bool {
	return c.CreditLimit.Valid && c.CurrentBalance.Valid &&
		c.CurrentBalance.Decimal.GreaterThan(c.CreditLimit.Decimal)
}
