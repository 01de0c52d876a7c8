package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/ims-api/internal/model"
)

// CustomerRepo reads customers and updates their credit fields.
type CustomerRepo struct {
	db *sql.DB
	t  Tables
}

func NewCustomerRepo(db *sql.DB, t Tables) *CustomerRepo { return &CustomerRepo{db: db, t: t} }

// GetByID fetches a customer or returns ErrCustomerNotFound.
func (r *CustomerRepo) GetByID(ctx context.Context, id uint64) (*model.Customer, error) {
	q := fmt.Sprintf("SELECT id, name, email, credit_limit, current_balance, updated_at FROM %s WHERE id = ?", r.t.Customers)
	var (
		c     model.Customer
		email sql.NullString
	)
	err := r.db.QueryRowContext(ctx, q, id).Scan(&c.ID, &c.Name, &email, &c.CreditLimit, &c.CurrentBalance, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCustomerNotFound
		}
		return nil, err
	}
	c.Email = email.String
	return &c, nil
}

// UpdateCredit writes only the supplied credit fields in a single UPDATE.
func (r *CustomerRepo) UpdateCredit(ctx context.Context, id uint64, upd model.CreditUpdate) error {
	sets := []string{}
	args := []any{}
	if upd.CreditLimit != nil {
		sets = append(sets, "credit_limit = ?")
		args = append(args, upd.CreditLimit.String())
	}
	if upd.CurrentBalance != nil {
		sets = append(sets, "current_balance = ?")
		args = append(args, upd.CurrentBalance.String())
	}
	if len(sets) == 0 {
		return nil
	}
	q := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", r.t.Customers, strings.Join(sets, ", "))
	_, err := r.db.ExecContext(ctx, q, append(args, id)...)
	return err
}
