package store

import (
	"context"
	"testing"

	"apotekpos/m/domain"
	"apotekpos/m/internal/database"
	"apotekpos/m/internal/migrations"
)

// newTestStore opens a fresh in-memory database with the real schema.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	db := database.Connect(":memory:")
	t.Cleanup(func() { db.Close() })
	migrations.Run(db)
	return New(db)
}

func seedMedicine(t *testing.T, s *Store, name string, price float64, stock int64) domain.Medicine {
	t.Helper()
	m, err := s.CreateMedicine(context.Background(), domain.Medicine{
		Name:        name,
		GenericName: name,
		Unit:        "tablet",
		Price:       price,
		Stock:       stock,
		Category:    domain.CategoryFreeSale,
	})
	if err != nil {
		t.Fatalf("seed medicine %s: %v", name, err)
	}
	return m
}

func seedPatient(t *testing.T, s *Store) domain.Patient {
	t.Helper()
	p, err := s.CreatePatient(context.Background(), domain.Patient{Name: "Budi Santoso", Phone: "0812000111"})
	if err != nil {
		t.Fatalf("seed patient: %v", err)
	}
	return p
}

func seedDoctor(t *testing.T, s *Store) domain.Doctor {
	t.Helper()
	d, err := s.CreateDoctor(context.Background(), domain.Doctor{Name: "dr. Sari Wijaya", SIPNumber: "SIP-001"})
	if err != nil {
		t.Fatalf("seed doctor: %v", err)
	}
	return d
}
