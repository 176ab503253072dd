package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"apotekpos/m/domain"
	"apotekpos/m/internal/pricing"
)

// RegularItemInput is one line of a regular prescription as submitted.
type RegularItemInput struct {
	MedicineID   int64  `json:"medicine_id"`
	Quantity     int64  `json:"quantity"`
	Dosage       string `json:"dosage"`
	Instructions string `json:"instructions"`
}

// CompoundIngredientInput is one ingredient of a compound prescription.
// Quantity is per 100 units produced and may be fractional.
type CompoundIngredientInput struct {
	MedicineID int64   `json:"medicine_id"`
	Quantity   float64 `json:"quantity"`
	Unit       string  `json:"unit"`
}

// CompoundPrescriptionInput is one compounding job within a transaction.
type CompoundPrescriptionInput struct {
	Form         string                    `json:"form"`
	TotalUnits   int64                     `json:"total_units"`
	Dosage       string                    `json:"dosage"`
	Instructions string                    `json:"instructions"`
	Items        []CompoundIngredientInput `json:"items"`
}

// TransactionInput carries the fields shared by both prescription types.
type TransactionInput struct {
	PatientID      int64
	DoctorID       int64
	PaymentStatus  string
	Notes          string
	IdempotencyKey string
}

// Read model: the nested shape the UI lists and receipts render from.

type PrescriptionItemDetail struct {
	domain.PrescriptionItem
	MedicineName string `db:"medicine_name" json:"medicine_name"`
	MedicineUnit string `db:"medicine_unit" json:"medicine_unit"`
}

type CompoundItemDetail struct {
	domain.CompoundItem
	MedicineName string `db:"medicine_name" json:"medicine_name"`
}

type CompoundPrescriptionDetail struct {
	domain.CompoundPrescription
	Items []CompoundItemDetail `json:"items"`
}

type TransactionDetail struct {
	domain.Transaction
	PatientName string                       `db:"patient_name" json:"patient_name"`
	DoctorName  string                       `db:"doctor_name" json:"doctor_name"`
	Items       []PrescriptionItemDetail     `json:"items"`
	Compounds   []CompoundPrescriptionDetail `json:"compound_prescriptions"`
}

// TransactionFilter narrows ListTransactions.
type TransactionFilter struct {
	Type      string
	Status    string
	StartDate string // YYYY-MM-DD inclusive
	EndDate   string // YYYY-MM-DD inclusive
	Search    string // transaction number or patient name
}

func (in *TransactionInput) normalize() error {
	if in.PaymentStatus == "" {
		in.PaymentStatus = domain.StatusPending
	}
	switch in.PaymentStatus {
	case domain.StatusPending, domain.StatusPaid:
	default:
		return &domain.ValidationError{Err: domain.ErrInvalidStatusTransition, Details: "new transactions must be pending or paid"}
	}
	if in.IdempotencyKey == "" {
		in.IdempotencyKey = uuid.NewString()
	}
	return nil
}

// checkReferences makes sure patient and doctor ids resolve before any
// write happens.
func (s *Store) checkReferences(ctx context.Context, in TransactionInput) error {
	if _, err := s.GetPatient(ctx, in.PatientID); err != nil {
		return err
	}
	if _, err := s.GetDoctor(ctx, in.DoctorID); err != nil {
		return err
	}
	return nil
}

// findByIdempotencyKey returns an earlier transaction created with the
// same key, so a retried create never produces two transactions for one
// user intent.
func (s *Store) findByIdempotencyKey(ctx context.Context, key string) (*TransactionDetail, error) {
	var tx domain.Transaction
	err := s.db.GetContext(ctx, &tx,
		`SELECT id FROM transactions WHERE idempotency_key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	detail, err := s.GetTransaction(ctx, tx.ID)
	if err != nil {
		return nil, err
	}
	return &detail, nil
}

// CreateRegularTransaction prices and persists a regular-medicine sale.
// The header, its line items and every stock decrement are committed as
// one unit; on any failure the whole write rolls back and stock is
// untouched.
func (s *Store) CreateRegularTransaction(ctx context.Context, in TransactionInput, items []RegularItemInput) (TransactionDetail, error) {
	if err := in.normalize(); err != nil {
		return TransactionDetail{}, err
	}
	if len(items) == 0 {
		return TransactionDetail{}, &domain.ValidationError{Err: domain.ErrInvalidQuantity, Details: "at least one line item is required"}
	}
	for _, item := range items {
		if strings.TrimSpace(item.Dosage) == "" {
			return TransactionDetail{}, &domain.ValidationError{Err: domain.ErrDosageRequired, Details: fmt.Sprintf("medicine %d", item.MedicineID)}
		}
	}
	if err := s.checkReferences(ctx, in); err != nil {
		return TransactionDetail{}, err
	}

	if existing, err := s.findByIdempotencyKey(ctx, in.IdempotencyKey); err != nil {
		return TransactionDetail{}, err
	} else if existing != nil {
		return *existing, nil
	}

	// Price every line before opening the write transaction.
	type pricedItem struct {
		RegularItemInput
		subtotal float64
	}
	priced := make([]pricedItem, 0, len(items))
	var subtotal float64
	for _, item := range items {
		med, err := s.GetMedicine(ctx, item.MedicineID)
		if err != nil {
			return TransactionDetail{}, err
		}
		lineTotal, err := pricing.RegularLine(med.Price, item.Quantity)
		if err != nil {
			return TransactionDetail{}, err
		}
		priced = append(priced, pricedItem{RegularItemInput: item, subtotal: lineTotal})
		subtotal += lineTotal
	}

	tx, err := s.db.Beginx()
	if err != nil {
		return TransactionDetail{}, fmt.Errorf("transaction creation failed: begin: %w", err)
	}
	defer tx.Rollback()

	number, err := nextTransactionNumber(tx)
	if err != nil {
		return TransactionDetail{}, fmt.Errorf("transaction creation failed: number: %w", err)
	}

	var txID int64
	err = tx.QueryRowxContext(ctx,
		`INSERT INTO transactions (transaction_number, patient_id, doctor_id, prescription_type, subtotal, service_fee, total, payment_status, notes, idempotency_key)
         VALUES (?, ?, ?, ?, ?, 0, ?, ?, ?, ?) RETURNING id`,
		number, in.PatientID, in.DoctorID, domain.PrescriptionRegular, subtotal, subtotal, in.PaymentStatus, in.Notes, in.IdempotencyKey).Scan(&txID)
	if err != nil {
		return TransactionDetail{}, fmt.Errorf("transaction creation failed: insert header: %w", err)
	}

	for _, item := range priced {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO prescription_items (transaction_id, medicine_id, quantity, dosage, instructions, subtotal) VALUES (?, ?, ?, ?, ?, ?)`,
			txID, item.MedicineID, item.Quantity, item.Dosage, item.Instructions, item.subtotal); err != nil {
			return TransactionDetail{}, fmt.Errorf("transaction creation failed: insert line item: %w", err)
		}
		if err := decrementStock(ctx, tx, item.MedicineID, float64(item.Quantity)); err != nil {
			return TransactionDetail{}, fmt.Errorf("transaction creation failed: stock decrement: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return TransactionDetail{}, fmt.Errorf("transaction creation failed: commit: %w", err)
	}

	return s.GetTransaction(ctx, txID)
}

// CreateCompoundTransaction prices and persists a compounding job. The
// header, every prescription with its ingredient rows and every stock
// decrement commit as one unit. Each ingredient decrements ceil(qty)
// units once per prescription, regardless of units produced; that is
// how the composition convention consumes stock.
func (s *Store) CreateCompoundTransaction(ctx context.Context, in TransactionInput, prescriptions []CompoundPrescriptionInput) (TransactionDetail, error) {
	if err := in.normalize(); err != nil {
		return TransactionDetail{}, err
	}
	if len(prescriptions) == 0 {
		return TransactionDetail{}, &domain.ValidationError{Err: domain.ErrEmptyComposition, Details: "at least one compound prescription is required"}
	}
	for _, p := range prescriptions {
		if !domain.ValidForm(p.Form) {
			return TransactionDetail{}, &domain.ValidationError{Err: domain.ErrInvalidForm, Details: p.Form}
		}
		if strings.TrimSpace(p.Dosage) == "" {
			return TransactionDetail{}, &domain.ValidationError{Err: domain.ErrDosageRequired}
		}
		if len(p.Items) == 0 {
			return TransactionDetail{}, &domain.ValidationError{Err: domain.ErrEmptyComposition}
		}
	}
	if err := s.checkReferences(ctx, in); err != nil {
		return TransactionDetail{}, err
	}

	if existing, err := s.findByIdempotencyKey(ctx, in.IdempotencyKey); err != nil {
		return TransactionDetail{}, err
	} else if existing != nil {
		return *existing, nil
	}

	type pricedPrescription struct {
		CompoundPrescriptionInput
		serviceFee float64
		subtotal   float64
	}
	priced := make([]pricedPrescription, 0, len(prescriptions))
	var subtotal, serviceFees float64
	for _, p := range prescriptions {
		ingredients := make([]pricing.Ingredient, 0, len(p.Items))
		for _, item := range p.Items {
			med, err := s.GetMedicine(ctx, item.MedicineID)
			if err != nil {
				return TransactionDetail{}, err
			}
			ingredients = append(ingredients, pricing.Ingredient{UnitPrice: med.Price, Quantity: item.Quantity})
		}
		price, err := pricing.Compound(ingredients, p.TotalUnits, pricing.CompoundServiceFee)
		if err != nil {
			return TransactionDetail{}, err
		}
		priced = append(priced, pricedPrescription{CompoundPrescriptionInput: p, serviceFee: pricing.CompoundServiceFee, subtotal: price})
		subtotal += price
		serviceFees += pricing.CompoundServiceFee
	}

	tx, err := s.db.Beginx()
	if err != nil {
		return TransactionDetail{}, fmt.Errorf("transaction creation failed: begin: %w", err)
	}
	defer tx.Rollback()

	number, err := nextTransactionNumber(tx)
	if err != nil {
		return TransactionDetail{}, fmt.Errorf("transaction creation failed: number: %w", err)
	}

	// total = subtotal: the service fee is already inside each
	// prescription's subtotal, service_fee is recorded for reporting.
	var txID int64
	err = tx.QueryRowxContext(ctx,
		`INSERT INTO transactions (transaction_number, patient_id, doctor_id, prescription_type, subtotal, service_fee, total, payment_status, notes, idempotency_key)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		number, in.PatientID, in.DoctorID, domain.PrescriptionCompound, subtotal, serviceFees, subtotal, in.PaymentStatus, in.Notes, in.IdempotencyKey).Scan(&txID)
	if err != nil {
		return TransactionDetail{}, fmt.Errorf("transaction creation failed: insert header: %w", err)
	}

	for _, p := range priced {
		var cpID int64
		err = tx.QueryRowxContext(ctx,
			`INSERT INTO compound_prescriptions (transaction_id, form, total_units, dosage, instructions, service_fee, subtotal)
             VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`,
			txID, p.Form, p.TotalUnits, p.Dosage, p.Instructions, p.serviceFee, p.subtotal).Scan(&cpID)
		if err != nil {
			return TransactionDetail{}, fmt.Errorf("transaction creation failed: insert prescription: %w", err)
		}
		for _, item := range p.Items {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO compound_items (compound_prescription_id, medicine_id, quantity, unit) VALUES (?, ?, ?, ?)`,
				cpID, item.MedicineID, item.Quantity, item.Unit); err != nil {
				return TransactionDetail{}, fmt.Errorf("transaction creation failed: insert ingredient: %w", err)
			}
			if err := decrementStock(ctx, tx, item.MedicineID, item.Quantity); err != nil {
				return TransactionDetail{}, fmt.Errorf("transaction creation failed: stock decrement: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return TransactionDetail{}, fmt.Errorf("transaction creation failed: commit: %w", err)
	}

	return s.GetTransaction(ctx, txID)
}

// UpdatePaymentStatus moves a transaction through the allowed status
// transitions. Stock is never touched: it was decremented at creation
// and cancelling does not restore it.
func (s *Store) UpdatePaymentStatus(ctx context.Context, id int64, newStatus string) (domain.Transaction, error) {
	switch newStatus {
	case domain.StatusPending, domain.StatusPaid, domain.StatusCancelled:
	default:
		return domain.Transaction{}, &domain.ValidationError{Err: domain.ErrInvalidStatusTransition, Details: "unknown status " + newStatus}
	}

	tx, err := s.db.Beginx()
	if err != nil {
		return domain.Transaction{}, err
	}
	defer tx.Rollback()

	var current string
	err = tx.GetContext(ctx, &current, `SELECT payment_status FROM transactions WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Transaction{}, domain.ErrTransactionNotFound
	}
	if err != nil {
		return domain.Transaction{}, err
	}
	if !domain.CanTransition(current, newStatus) {
		return domain.Transaction{}, &domain.ValidationError{
			Err:     domain.ErrInvalidStatusTransition,
			Details: fmt.Sprintf("%s -> %s", current, newStatus),
		}
	}
	if _, err := tx.ExecContext(ctx, `UPDATE transactions SET payment_status = ? WHERE id = ?`, newStatus, id); err != nil {
		return domain.Transaction{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Transaction{}, err
	}

	var updated domain.Transaction
	err = s.db.GetContext(ctx, &updated,
		`SELECT id, transaction_number, date, patient_id, doctor_id, prescription_type, subtotal, service_fee, total, payment_status, notes, idempotency_key, created_at
         FROM transactions WHERE id = ?`, id)
	return updated, err
}

// GetTransaction loads one transaction with joined names and nested
// items.
func (s *Store) GetTransaction(ctx context.Context, id int64) (TransactionDetail, error) {
	details, err := s.listDetails(ctx, `WHERE t.id = ?`, []any{id})
	if err != nil {
		return TransactionDetail{}, err
	}
	if len(details) == 0 {
		return TransactionDetail{}, domain.ErrTransactionNotFound
	}
	return details[0], nil
}

// ListTransactions returns the filtered history, most recent first.
func (s *Store) ListTransactions(ctx context.Context, filter TransactionFilter) ([]TransactionDetail, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.Type != "" && filter.Type != "all" {
		clauses = append(clauses, "t.prescription_type = ?")
		args = append(args, filter.Type)
	}
	if filter.Status != "" && filter.Status != "all" {
		clauses = append(clauses, "t.payment_status = ?")
		args = append(args, filter.Status)
	}
	if filter.StartDate != "" {
		if _, err := time.Parse("2006-01-02", filter.StartDate); err != nil {
			return nil, &domain.ValidationError{Err: domain.ErrInvalidDate, Details: "start_date"}
		}
		clauses = append(clauses, "DATE(t.date) >= ?")
		args = append(args, filter.StartDate)
	}
	if filter.EndDate != "" {
		if _, err := time.Parse("2006-01-02", filter.EndDate); err != nil {
			return nil, &domain.ValidationError{Err: domain.ErrInvalidDate, Details: "end_date"}
		}
		clauses = append(clauses, "DATE(t.date) <= ?")
		args = append(args, filter.EndDate)
	}
	if q := strings.TrimSpace(filter.Search); q != "" {
		like := "%" + q + "%"
		clauses = append(clauses, "(t.transaction_number LIKE ? OR p.name LIKE ?)")
		args = append(args, like, like)
	}

	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	return s.listDetails(ctx, where, args)
}

func (s *Store) listDetails(ctx context.Context, where string, args []any) ([]TransactionDetail, error) {
	query := `SELECT t.id, t.transaction_number, t.date, t.patient_id, t.doctor_id, t.prescription_type,
                     t.subtotal, t.service_fee, t.total, t.payment_status, t.notes, t.idempotency_key, t.created_at,
                     p.name AS patient_name, d.name AS doctor_name
              FROM transactions t
              JOIN patients p ON p.id = t.patient_id
              JOIN doctors d ON d.id = t.doctor_id ` + where + `
              ORDER BY t.date DESC, t.id DESC`

	details := []TransactionDetail{}
	if err := s.db.SelectContext(ctx, &details, query, args...); err != nil {
		return nil, err
	}
	if len(details) == 0 {
		return details, nil
	}

	ids := make([]int64, len(details))
	index := make(map[int64]*TransactionDetail, len(details))
	for i := range details {
		details[i].Items = []PrescriptionItemDetail{}
		details[i].Compounds = []CompoundPrescriptionDetail{}
		ids[i] = details[i].ID
		index[details[i].ID] = &details[i]
	}

	itemsQuery, itemsArgs, err := sqlx.In(
		`SELECT pi.id, pi.transaction_id, pi.medicine_id, pi.quantity, pi.dosage, pi.instructions, pi.subtotal,
                m.name AS medicine_name, m.unit AS medicine_unit
         FROM prescription_items pi
         JOIN medicines m ON m.id = pi.medicine_id
         WHERE pi.transaction_id IN (?)
         ORDER BY pi.id`, ids)
	if err != nil {
		return nil, err
	}
	var items []PrescriptionItemDetail
	if err := s.db.SelectContext(ctx, &items, s.db.Rebind(itemsQuery), itemsArgs...); err != nil {
		return nil, err
	}
	for _, item := range items {
		if d, ok := index[item.TransactionID]; ok {
			d.Items = append(d.Items, item)
		}
	}

	cpQuery, cpArgs, err := sqlx.In(
		`SELECT id, transaction_id, form, total_units, dosage, instructions, service_fee, subtotal
         FROM compound_prescriptions WHERE transaction_id IN (?) ORDER BY id`, ids)
	if err != nil {
		return nil, err
	}
	var compounds []domain.CompoundPrescription
	if err := s.db.SelectContext(ctx, &compounds, s.db.Rebind(cpQuery), cpArgs...); err != nil {
		return nil, err
	}
	if len(compounds) == 0 {
		return details, nil
	}

	cpIDs := make([]int64, len(compounds))
	for i, cp := range compounds {
		cpIDs[i] = cp.ID
		if d, ok := index[cp.TransactionID]; ok {
			d.Compounds = append(d.Compounds, CompoundPrescriptionDetail{CompoundPrescription: cp, Items: []CompoundItemDetail{}})
		}
	}
	// Index prescriptions only after all appends, pointers into a still
	// growing slice would go stale.
	cpIndex := make(map[int64]*CompoundPrescriptionDetail, len(compounds))
	for _, d := range index {
		for i := range d.Compounds {
			cpIndex[d.Compounds[i].ID] = &d.Compounds[i]
		}
	}

	ciQuery, ciArgs, err := sqlx.In(
		`SELECT ci.id, ci.compound_prescription_id, ci.medicine_id, ci.quantity, ci.unit, m.name AS medicine_name
         FROM compound_items ci
         JOIN medicines m ON m.id = ci.medicine_id
         WHERE ci.compound_prescription_id IN (?)
         ORDER BY ci.id`, cpIDs)
	if err != nil {
		return nil, err
	}
	var compoundItems []CompoundItemDetail
	if err := s.db.SelectContext(ctx, &compoundItems, s.db.Rebind(ciQuery), ciArgs...); err != nil {
		return nil, err
	}
	for _, item := range compoundItems {
		if cp, ok := cpIndex[item.CompoundPrescriptionID]; ok {
			cp.Items = append(cp.Items, item)
		}
	}

	return details, nil
}

// nextTransactionNumber issues TRX-<year>-<NNNN> from a per-year
// counter, bumped inside the same transaction as the header insert so
// numbers cannot collide.
func nextTransactionNumber(tx *sqlx.Tx) (string, error) {
	year := time.Now().Format("2006")
	return nextSequence(tx, "TRX-"+year, fmt.Sprintf("TRX-%s-", year), 4)
}
