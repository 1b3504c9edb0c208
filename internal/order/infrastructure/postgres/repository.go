package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/dmehra2102/walkup-orders/internal/order/domain"
	"github.com/dmehra2102/walkup-orders/pkg/apperr"
	"github.com/dmehra2102/walkup-orders/pkg/outbox"
)

//go:embed schema.sql
var schema string

// Migrate creates the tables this package needs if they are missing.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schema)
	return err
}

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func (r *Repository) Insert(ctx context.Context, o domain.Order, rec outbox.Record) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return storeErr(err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	_, err = tx.Exec(ctx, `INSERT INTO orders (id, order_number, owner_id, total_amount, status, payment_method,
				payment_status, manual_order, claim_status, contact_name, contact_email, contact_phone,
				version, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		o.ID, o.OrderNumber, o.OwnerID, o.TotalAmount.String(), string(o.Status), string(o.PaymentMethod),
		string(o.PaymentStatus), o.ManualOrder, string(o.ClaimStatus), o.Contact.Name, o.Contact.Email, o.Contact.Phone,
		o.Version, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return storeErr(err)
	}

	batch := &pgx.Batch{}
	for i, item := range o.Items {
		batch.Queue(`INSERT INTO order_items (order_id, line_no, item_id, name, unit_price, quantity)
            VALUES ($1,$2,$3,$4,$5,$6)`,
			o.ID, i+1, item.ItemID, item.Name, item.UnitPrice.String(), item.Quantity)
	}
	if err = tx.SendBatch(ctx, batch).Close(); err != nil {
		return storeErr(err)
	}

	if err = insertOutbox(ctx, tx, rec); err != nil {
		return storeErr(err)
	}
	return storeErr(tx.Commit(ctx))
}

// Update writes o only if the stored version still equals expectedVersion.
func (r *Repository) Update(ctx context.Context, o domain.Order, expectedVersion int64, rec outbox.Record) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return storeErr(err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	ct, err := tx.Exec(ctx, `UPDATE orders
			SET owner_id=$2, status=$3, payment_status=$4, claim_status=$5, version=$6, updated_at=$7
			WHERE id=$1 AND version=$8`,
		o.ID, o.OwnerID, string(o.Status), string(o.PaymentStatus), string(o.ClaimStatus),
		expectedVersion+1, o.UpdatedAt, expectedVersion)
	if err != nil {
		return storeErr(err)
	}
	if ct.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id=$1)`, o.ID).Scan(&exists); err != nil {
			return storeErr(err)
		}
		if !exists {
			return fmt.Errorf("order %s: %w", o.ID, domain.ErrOrderNotFound)
		}
		return domain.ErrVersionConflict
	}

	if err = insertOutbox(ctx, tx, rec); err != nil {
		return storeErr(err)
	}
	return storeErr(tx.Commit(ctx))
}

func (r *Repository) Get(ctx context.Context, id string) (domain.Order, error) {
	var (
		o                                         domain.Order
		total, status, method, payStatus, claimSt string
	)
	err := r.pool.QueryRow(ctx, `SELECT id, order_number, owner_id, total_amount::text, status, payment_method,
			payment_status, manual_order, claim_status, contact_name, contact_email, contact_phone,
			version, created_at, updated_at
		FROM orders WHERE id=$1`, id).
		Scan(&o.ID, &o.OrderNumber, &o.OwnerID, &total, &status, &method,
			&payStatus, &o.ManualOrder, &claimSt, &o.Contact.Name, &o.Contact.Email, &o.Contact.Phone,
			&o.Version, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, fmt.Errorf("order %s: %w", id, domain.ErrOrderNotFound)
	}
	if err != nil {
		return domain.Order{}, storeErr(err)
	}
	if o.TotalAmount, err = decimal.NewFromString(total); err != nil {
		return domain.Order{}, fmt.Errorf("order %s total: %w", id, err)
	}
	o.Status = domain.OrderStatus(status)
	o.PaymentMethod = domain.PaymentMethod(method)
	o.PaymentStatus = domain.PaymentStatus(payStatus)
	o.ClaimStatus = domain.ClaimStatus(claimSt)
	o.CreatedAt = o.CreatedAt.UTC()
	o.UpdatedAt = o.UpdatedAt.UTC()

	rows, err := r.pool.Query(ctx, `SELECT item_id, name, unit_price::text, quantity
		FROM order_items WHERE order_id=$1 ORDER BY line_no`, id)
	if err != nil {
		return domain.Order{}, storeErr(err)
	}
	defer rows.Close()
	for rows.Next() {
		var item domain.OrderItem
		var unit string
		if err := rows.Scan(&item.ItemID, &item.Name, &unit, &item.Quantity); err != nil {
			return domain.Order{}, storeErr(err)
		}
		if item.UnitPrice, err = decimal.NewFromString(unit); err != nil {
			return domain.Order{}, fmt.Errorf("order %s item %s price: %w", id, item.ItemID, err)
		}
		o.Items = append(o.Items, item)
	}
	if err := rows.Err(); err != nil {
		return domain.Order{}, storeErr(err)
	}
	return o, nil
}

func insertOutbox(ctx context.Context, tx pgx.Tx, rec outbox.Record) error {
	headers := rec.Headers
	if headers == nil {
		headers = map[string]string{}
	}
	_, err := tx.Exec(ctx, `INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, headers, traceparent, status)
		VALUES ($1,$2,$3,$4,$5,$6,'pending')`,
		rec.AggregateType, rec.AggregateID, rec.Type, rec.Payload, headers, rec.Traceparent)
	return err
}

func storeErr(err error) error {
	return apperr.Transient("store_unavailable", "order store is temporarily unavailable, retry", err)
}
