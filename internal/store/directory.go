package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"apotekpos/m/domain"
)

// Medicine directory

func (s *Store) GetMedicine(ctx context.Context, id int64) (domain.Medicine, error) {
	var m domain.Medicine
	err := s.db.GetContext(ctx, &m, `SELECT id, name, generic_name, unit, price, stock, category, created_at FROM medicines WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Medicine{}, domain.ErrMedicineNotFound
	}
	return m, err
}

// SearchMedicines matches the display or generic name; an empty query
// returns the first page of the catalog.
func (s *Store) SearchMedicines(ctx context.Context, query string, limit int) ([]domain.Medicine, error) {
	if limit <= 0 {
		limit = 25
	}
	medicines := []domain.Medicine{}
	query = strings.TrimSpace(query)
	if query == "" {
		err := s.db.SelectContext(ctx, &medicines, `SELECT id, name, generic_name, unit, price, stock, category, created_at FROM medicines ORDER BY name LIMIT ?`, limit)
		return medicines, err
	}
	like := "%" + query + "%"
	err := s.db.SelectContext(ctx, &medicines, `SELECT id, name, generic_name, unit, price, stock, category, created_at FROM medicines WHERE name LIKE ? OR generic_name LIKE ? ORDER BY name LIMIT ?`, like, like, limit)
	return medicines, err
}

func (s *Store) CreateMedicine(ctx context.Context, m domain.Medicine) (domain.Medicine, error) {
	if strings.TrimSpace(m.Name) == "" || strings.TrimSpace(m.Unit) == "" {
		return domain.Medicine{}, &domain.ValidationError{Err: domain.ErrNameRequired, Details: "medicine name and unit"}
	}
	if m.Price < 0 {
		return domain.Medicine{}, &domain.ValidationError{Err: domain.ErrInvalidStockValue, Details: "price must not be negative"}
	}
	if m.Stock < 0 {
		return domain.Medicine{}, &domain.ValidationError{Err: domain.ErrInvalidStockValue, Details: "initial stock"}
	}
	if !domain.ValidCategory(m.Category) {
		return domain.Medicine{}, &domain.ValidationError{Err: domain.ErrInvalidCategory, Details: m.Category}
	}
	err := s.db.QueryRowxContext(ctx,
		`INSERT INTO medicines (name, generic_name, unit, price, stock, category) VALUES (?, ?, ?, ?, ?, ?) RETURNING id`,
		m.Name, m.GenericName, m.Unit, m.Price, m.Stock, m.Category).Scan(&m.ID)
	if err != nil {
		return domain.Medicine{}, err
	}
	return m, nil
}

// UpdateMedicine edits catalog fields. Stock is owned by the ledger and
// is not touched here.
func (s *Store) UpdateMedicine(ctx context.Context, m domain.Medicine) error {
	if m.Price < 0 {
		return &domain.ValidationError{Err: domain.ErrInvalidStockValue, Details: "price must not be negative"}
	}
	if !domain.ValidCategory(m.Category) {
		return &domain.ValidationError{Err: domain.ErrInvalidCategory, Details: m.Category}
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE medicines SET name = ?, generic_name = ?, unit = ?, price = ?, category = ? WHERE id = ?`,
		m.Name, m.GenericName, m.Unit, m.Price, m.Category, m.ID)
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

// Patient directory

func (s *Store) GetPatient(ctx context.Context, id int64) (domain.Patient, error) {
	var p domain.Patient
	err := s.db.GetContext(ctx, &p, `SELECT id, name, address, phone, birth_date, created_at FROM patients WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Patient{}, domain.ErrPatientNotFound
	}
	return p, err
}

func (s *Store) SearchPatients(ctx context.Context, query string, limit int) ([]domain.Patient, error) {
	if limit <= 0 {
		limit = 25
	}
	patients := []domain.Patient{}
	query = strings.TrimSpace(query)
	if query == "" {
		err := s.db.SelectContext(ctx, &patients, `SELECT id, name, address, phone, birth_date, created_at FROM patients ORDER BY name LIMIT ?`, limit)
		return patients, err
	}
	like := "%" + query + "%"
	err := s.db.SelectContext(ctx, &patients, `SELECT id, name, address, phone, birth_date, created_at FROM patients WHERE name LIKE ? OR phone LIKE ? ORDER BY name LIMIT ?`, like, like, limit)
	return patients, err
}

func (s *Store) CreatePatient(ctx context.Context, p domain.Patient) (domain.Patient, error) {
	if strings.TrimSpace(p.Name) == "" {
		return domain.Patient{}, &domain.ValidationError{Err: domain.ErrNameRequired, Details: "patient"}
	}
	err := s.db.QueryRowxContext(ctx,
		`INSERT INTO patients (name, address, phone, birth_date) VALUES (?, ?, ?, ?) RETURNING id`,
		p.Name, p.Address, p.Phone, p.BirthDate).Scan(&p.ID)
	if err != nil {
		return domain.Patient{}, err
	}
	return p, nil
}

// Doctor directory

func (s *Store) GetDoctor(ctx context.Context, id int64) (domain.Doctor, error) {
	var d domain.Doctor
	err := s.db.GetContext(ctx, &d, `SELECT id, name, sip_number, specialization, hospital, created_at FROM doctors WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Doctor{}, domain.ErrDoctorNotFound
	}
	return d, err
}

func (s *Store) SearchDoctors(ctx context.Context, query string, limit int) ([]domain.Doctor, error) {
	if limit <= 0 {
		limit = 25
	}
	doctors := []domain.Doctor{}
	query = strings.TrimSpace(query)
	if query == "" {
		err := s.db.SelectContext(ctx, &doctors, `SELECT id, name, sip_number, specialization, hospital, created_at FROM doctors ORDER BY name LIMIT ?`, limit)
		return doctors, err
	}
	like := "%" + query + "%"
	err := s.db.SelectContext(ctx, &doctors, `SELECT id, name, sip_number, specialization, hospital, created_at FROM doctors WHERE name LIKE ? OR hospital LIKE ? ORDER BY name LIMIT ?`, like, like, limit)
	return doctors, err
}

func (s *Store) CreateDoctor(ctx context.Context, d domain.Doctor) (domain.Doctor, error) {
	if strings.TrimSpace(d.Name) == "" {
		return domain.Doctor{}, &domain.ValidationError{Err: domain.ErrNameRequired, Details: "doctor"}
	}
	err := s.db.QueryRowxContext(ctx,
		`INSERT INTO doctors (name, sip_number, specialization, hospital) VALUES (?, ?, ?, ?) RETURNING id`,
		d.Name, d.SIPNumber, d.Specialization, d.Hospital).Scan(&d.ID)
	if err != nil {
		return domain.Doctor{}, err
	}
	return d, nil
}
