package store

import (
	"context"
	"database/sql"
	"errors"
	"math"

	"github.com/jmoiron/sqlx"

	"apotekpos/m/domain"
)

// GetStock returns the current stock-on-hand for a medicine.
func (s *Store) GetStock(ctx context.Context, medicineID int64) (int64, error) {
	var stock int64
	err := s.db.GetContext(ctx, &stock, `SELECT stock FROM medicines WHERE id = ?`, medicineID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrMedicineNotFound
	}
	if err != nil {
		return 0, err
	}
	return stock, nil
}

// decrementStock reduces a medicine's stock by ceil(amount), clamping at
// zero. The clamp and subtraction happen in one UPDATE so concurrent
// sales of the same medicine cannot lose a decrement. Fractional
// compound-ingredient amounts are rounded up before decrementing so
// partial-unit consumption is never under-reported.
func decrementStock(ctx context.Context, tx *sqlx.Tx, medicineID int64, amount float64) error {
	if amount <= 0 {
		return &domain.ValidationError{Err: domain.ErrInvalidQuantity, Details: "decrement amount"}
	}
	units := int64(math.Ceil(amount))
	res, err := tx.ExecContext(ctx, `UPDATE medicines SET stock = MAX(0, stock - ?) WHERE id = ?`, units, medicineID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrMedicineNotFound
	}
	return nil
}

// setStock overwrites a medicine's stock-on-hand. Used only by stock
// opname confirmation; the new value replaces whatever is recorded,
// deliberately ignoring sales that happened since the count started.
func setStock(ctx context.Context, tx *sqlx.Tx, medicineID, newValue int64) error {
	if newValue < 0 {
		return &domain.ValidationError{Err: domain.ErrInvalidStockValue, Details: "stock overwrite"}
	}
	res, err := tx.ExecContext(ctx, `UPDATE medicines SET stock = ? WHERE id = ?`, newValue, medicineID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrMedicineNotFound
	}
	return nil
}

// DecrementStock applies a standalone decrement outside any larger unit
// of work (manual stock corrections from inventory management).
func (s *Store) DecrementStock(ctx context.Context, medicineID int64, amount float64) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := decrementStock(ctx, tx, medicineID, amount); err != nil {
		return err
	}
	return tx.Commit()
}

// SetStock overwrites stock outside a session (administrative use).
func (s *Store) SetStock(ctx context.Context, medicineID, newValue int64) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := setStock(ctx, tx, medicineID, newValue); err != nil {
		return err
	}
	return tx.Commit()
}
