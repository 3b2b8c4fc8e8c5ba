package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/shelfkit/shelfkit/internal/model"
)

const accountColumns = `id, email, username, name, customer_id, payee_id, payee_details_submitted, created_at, updated_at`

// CreateAccount inserts a new account. Email must already be normalized.
func (r *Repository) CreateAccount(ctx context.Context, account *model.Account) error {
	query := `
		INSERT INTO accounts (id, email, username, name, customer_id, payee_id, payee_details_submitted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.Exec(ctx, query,
		account.ID,
		account.Email,
		account.Username,
		account.Name,
		nullable(account.CustomerID),
		nullable(account.PayeeID),
		account.PayeeDetailsSubmitted,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		if constraint, ok := isUniqueViolation(err); ok {
			switch {
			case strings.Contains(constraint, "username"):
				return ErrUsernameExists
			case strings.Contains(constraint, "customer_id"):
				return ErrCustomerIDTaken
			default:
				return ErrEmailExists
			}
		}
		return fmt.Errorf("failed to create account: %w", err)
	}

	return nil
}

// GetAccountByID retrieves an account by its ID.
func (r *Repository) GetAccountByID(ctx context.Context, id string) (*model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccount(r.db.QueryRow(ctx, query, id))
}

// GetAccountByEmail retrieves an account by normalized email.
func (r *Repository) GetAccountByEmail(ctx context.Context, email string) (*model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1`
	return scanAccount(r.db.QueryRow(ctx, query, model.NormalizeEmail(email)))
}

// GetAccountByCustomerID retrieves the account linked to a processor customer.
func (r *Repository) GetAccountByCustomerID(ctx context.Context, customerID string) (*model.Account, error) {
	if customerID == "" {
		return nil, ErrAccountNotFound
	}
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE customer_id = $1`
	return scanAccount(r.db.QueryRow(ctx, query, customerID))
}

// GetAccountByPayeeID retrieves the account owning a payout account.
func (r *Repository) GetAccountByPayeeID(ctx context.Context, payeeID string) (*model.Account, error) {
	if payeeID == "" {
		return nil, ErrAccountNotFound
	}
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE payee_id = $1`
	return scanAccount(r.db.QueryRow(ctx, query, payeeID))
}

// SetAccountCustomerID links a customer id if none is set yet.
func (r *Repository) SetAccountCustomerID(ctx context.Context, accountID, customerID string) (bool, error) {
	query := `
		UPDATE accounts
		SET customer_id = $2, updated_at = NOW()
		WHERE id = $1 AND customer_id IS NULL
	`

	result, err := r.db.Exec(ctx, query, accountID, customerID)
	if err != nil {
		if _, ok := isUniqueViolation(err); ok {
			return false, ErrCustomerIDTaken
		}
		return false, fmt.Errorf("failed to set customer id: %w", err)
	}

	return result.RowsAffected() == 1, nil
}

// SetAccountPayeeID stores the payout account id if none is set yet.
func (r *Repository) SetAccountPayeeID(ctx context.Context, accountID, payeeID string) (bool, error) {
	query := `
		UPDATE accounts
		SET payee_id = $2, updated_at = NOW()
		WHERE id = $1 AND payee_id IS NULL
	`

	result, err := r.db.Exec(ctx, query, accountID, payeeID)
	if err != nil {
		return false, fmt.Errorf("failed to set payee id: %w", err)
	}

	return result.RowsAffected() == 1, nil
}

// SetPayeeDetailsSubmitted records the onboarding status reported by the processor.
// Returns false when no account owns the payee id.
func (r *Repository) SetPayeeDetailsSubmitted(ctx context.Context, payeeID string, submitted bool) (bool, error) {
	query := `
		UPDATE accounts
		SET payee_details_submitted = $2, updated_at = NOW()
		WHERE payee_id = $1
	`

	result, err := r.db.Exec(ctx, query, payeeID, submitted)
	if err != nil {
		return false, fmt.Errorf("failed to update payee status: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

func scanAccount(row pgx.Row) (*model.Account, error) {
	var (
		account    model.Account
		customerID *string
		payeeID    *string
	)

	err := row.Scan(
		&account.ID,
		&account.Email,
		&account.Username,
		&account.Name,
		&customerID,
		&payeeID,
		&account.PayeeDetailsSubmitted,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}

	account.CustomerID = deref(customerID)
	account.PayeeID = deref(payeeID)
	return &account, nil
}
