package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/ims-api/internal/apierror"
	"github.com/iliyamo/ims-api/internal/model"
	"github.com/iliyamo/ims-api/internal/queue"
	"github.com/iliyamo/ims-api/internal/repository"
)

// CustomerStore is implemented by repository.CustomerRepo.
type CustomerStore interface {
	GetByID(ctx context.Context, id uint64) (*model.Customer, error)
	UpdateCredit(ctx context.Context, id uint64, upd model.CreditUpdate) error
}

type CustomerHandler struct {
	Customers CustomerStore
	Audit     *Auditor
}

func NewCustomerHandler(customers CustomerStore, audit *Auditor) *CustomerHandler {
	if customers == nil {
		panic("nil store passed to NewCustomerHandler")
	}
	return &CustomerHandler{Customers: customers, Audit: audit}
}

type customerView struct {
	ID              uint64              `json:"id"`
	Name            string              `json:"name"`
	Email           string              `json:"email,omitempty"`
	CreditLimit     decimal.NullDecimal `json:"credit_limit"`
	CurrentBalance  decimal.NullDecimal `json:"current_balance"`
	AvailableCredit decimal.NullDecimal `json:"available_credit"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

func newCustomerView(c *model.Customer) customerView {
	return customerView{
		ID:              c.ID,
		Name:            c.Name,
		Email:           c.Email,
		CreditLimit:     c.CreditLimit,
		CurrentBalance:  c.CurrentBalance,
		AvailableCredit: c.AvailableCredit(),
		UpdatedAt:       c.UpdatedAt,
	}
}

// creditReq accepts JSON numbers as well as numeric strings.
type creditReq struct {
	CreditLimit    *decimal.Decimal `json:"credit_limit"`
	CurrentBalance *decimal.Decimal `json:"current_balance"`
}

var (
	errNoCustomer    = apierror.NotFound("no_customer", "customer not found")
	errInvalidAmount = apierror.Validation("invalid_amount", "credit values must be non-negative amounts with at most 2 decimals")
)

// Credit columns are DECIMAL(15,2).
const (
	creditIntDigits   = 13
	creditScale       = 2
	minCreditExponent = -10
)

// validAmount reports whether v fits a credit column.  The exponent and
// coefficient length must be checked before anything rescales v.
func validAmount(v decimal.Decimal) bool {
	if v.IsNegative() {
		return false
	}
	exp := int(v.Exponent())
	if exp > creditIntDigits || exp < minCreditExponent {
		return false
	}
	if v.IsZero() {
		return true
	}
	if v.NumDigits()+exp > creditIntDigits {
		return false
	}
	return v.Equal(v.Round(creditScale))
}

// Get: GET /customers/:id
func (h *CustomerHandler) Get(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	cust, err := h.Customers.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrCustomerNotFound) {
			return errNoCustomer
		}
		return apierror.Storage("db_error", err)
	}
	return respond(c, http.StatusOK, newCustomerView(cust))
}

// UpdateCredit: POST /customers/:id/credit
//
// Only supplied fields are written.  The balance may not exceed the limit
// once the change is applied; stored values stand in for absent fields and
// the rule is skipped while either value is unknown.
func (h *CustomerHandler) UpdateCredit(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req creditReq
	if err := c.Bind(&req); err != nil {
		return errInvalidAmount
	}
	upd := model.CreditUpdate{CreditLimit: req.CreditLimit, CurrentBalance: req.CurrentBalance}
	if upd.Empty() {
		return apierror.Validation("no_data", "no data provided")
	}
	for _, v := range []*decimal.Decimal{upd.CreditLimit, upd.CurrentBalance} {
		if v != nil && !validAmount(*v) {
			return errInvalidAmount
		}
	}

	ctx, cancel := withTimeout(c)
	defer cancel()

	cur, err := h.Customers.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrCustomerNotFound) {
			return errNoCustomer
		}
		return apierror.Storage("db_error", err)
	}
	next := upd.Apply(*cur)
	if next.OverLimit() {
		return apierror.Validation("invalid_balance", "current balance cannot exceed credit limit")
	}
	if err := h.Customers.UpdateCredit(ctx, id, upd); err != nil {
		return apierror.Storage("update_failed", err)
	}
	if fresh, err := h.Customers.GetByID(ctx, id); err == nil {
		next = *fresh
	} else {
		log.Warn().Err(err).Uint64("customer_id", id).Msg("reload after credit update failed")
		next.UpdatedAt = time.Now().UTC()
	}

	details := map[string]any{}
	if upd.CreditLimit != nil {
		details["credit_limit"] = upd.CreditLimit.String()
	}
	if upd.CurrentBalance != nil {
		details["current_balance"] = upd.CurrentBalance.String()
	}
	h.Audit.record(c, queue.AuditEvent{
		Action:     queue.ActionCreditUpdated,
		TargetType: "customer",
		TargetID:   id,
		Details:    details,
	})
	return respond(c, http.StatusOK, newCustomerView(&next))
}
