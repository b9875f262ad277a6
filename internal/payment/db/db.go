package db

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/uptrace/bun"

	"ms-payments/internal/apperr"
	"ms-payments/internal/models"
)

// ErrDuplicateOrderCode signals an order code collision on insert so the
// caller can mint a fresh code and retry.
var ErrDuplicateOrderCode = errors.New("order code already exists")

type DB struct {
	Bun *bun.DB
}

func New(bdb *bun.DB) *DB {
	return &DB{Bun: bdb}
}

func (d *DB) RunInTx(ctx context.Context, fn func(ctx context.Context, tx bun.Tx) error) error {
	return d.Bun.RunInTx(ctx, &sql.TxOptions{}, fn)
}

func (d *DB) Create(ctx context.Context, payment *models.Payment) error {
	_, err := d.Bun.NewInsert().Model(payment).Exec(ctx)
	if err != nil && isUniqueViolation(err) {
		return ErrDuplicateOrderCode
	}
	return err
}

func (d *DB) GetByOrderCode(ctx context.Context, orderCode string) (*models.Payment, error) {
	payment := new(models.Payment)
	err := d.Bun.NewSelect().Model(payment).Where("order_code = ?", orderCode).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// Update persists the named columns of payment, always bumping updated_at.
func (d *DB) Update(ctx context.Context, payment *models.Payment, columns ...string) error {
	payment.UpdatedAt = time.Now()
	_, err := d.Bun.NewUpdate().
		Model(payment).
		Column(append(columns, "updated_at")...).
		WherePK().
		Exec(ctx)
	return err
}

// Claim is the fulfillment gate. It conditionally moves the row to PAID and
// reports whether this caller won: the condition only matches rows that have
// never minted tickets and are still in a claimable status. Run it on the
// same transaction that mints, so the row lock holds competing confirmations
// back until issue_id is committed and exactly one caller sees true.
func (d *DB) Claim(ctx context.Context, idb bun.IDB, orderCode string) (bool, error) {
	res, err := idb.NewUpdate().
		Model((*models.Payment)(nil)).
		Set("status = ?", models.PaymentPaid).
		Set("updated_at = ?", time.Now()).
		Where("order_code = ?", orderCode).
		Where("(issue_id IS NULL OR issue_id = '')").
		Where("status IN (?)", bun.In([]models.PaymentStatus{
			models.PaymentPending,
			models.PaymentFormReady,
			models.PaymentPaid,
		})).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// MarkFulfilled records the minted issue on idb, inside the same transaction
// that minted it.
func (d *DB) MarkFulfilled(ctx context.Context, idb bun.IDB, orderCode, issueID string, payment *models.Payment) error {
	_, err := idb.NewUpdate().
		Model((*models.Payment)(nil)).
		Set("status = ?", models.PaymentFulfilled).
		Set("issue_id = ?", issueID).
		Set("provider_status = ?", payment.ProviderStatus).
		Set("provider_message = ?", payment.ProviderMessage).
		Set("transaction_uuid = ?", payment.TransactionUUID).
		Set("raw_response = ?", payment.RawResponse).
		Set("last_error = NULL").
		Set("updated_at = ?", time.Now()).
		Where("order_code = ?", orderCode).
		Exec(ctx)
	return err
}

// MarkFulfillmentFailed releases a claim after fulfillment aborted. The row
// goes back to PAID, not ERROR, so a webhook redelivery can try again.
func (d *DB) MarkFulfillmentFailed(ctx context.Context, orderCode, lastError string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Payment)(nil)).
		Set("status = ?", models.PaymentPaid).
		Set("last_error = ?", lastError).
		Set("updated_at = ?", time.Now()).
		Where("order_code = ?", orderCode).
		Exec(ctx)
	return err
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(strings.ToUpper(err.Error()), "UNIQUE")
}
