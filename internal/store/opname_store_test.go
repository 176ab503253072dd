package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"apotekpos/m/domain"
	"apotekpos/m/internal/opname"
)

func TestConfirmOpnameOverwritesStock(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	m1 := seedMedicine(t, s, "Paracetamol", 5000, 50)
	m2 := seedMedicine(t, s, "Amoxicillin", 3000, 30)

	var session opname.Session
	if _, err := session.AddLine(m1); err != nil {
		t.Fatalf("AddLine(m1): %v", err)
	}
	line2, err := session.AddLine(m2)
	if err != nil {
		t.Fatalf("AddLine(m2): %v", err)
	}
	if err := session.SetPhysicalStock(line2.ID, 25); err != nil {
		t.Fatalf("SetPhysicalStock: %v", err)
	}
	if err := session.SetReason(line2.ID, domain.ReasonExpired); err != nil {
		t.Fatalf("SetReason: %v", err)
	}

	detail, err := s.ConfirmOpname(ctx, &session, "monthly count")
	if err != nil {
		t.Fatalf("ConfirmOpname() error: %v", err)
	}

	if detail.Status != domain.OpnameConfirmed {
		t.Errorf("status = %q, want %q", detail.Status, domain.OpnameConfirmed)
	}
	wantNumber := fmt.Sprintf("SO-%s-001", time.Now().Format("20060102"))
	if detail.SessionNumber != wantNumber {
		t.Errorf("SessionNumber = %q, want %q", detail.SessionNumber, wantNumber)
	}
	if len(detail.Lines) != 2 {
		t.Fatalf("len(Lines) = %d, want 2", len(detail.Lines))
	}

	stock1, _ := s.GetStock(ctx, m1.ID)
	if stock1 != 50 {
		t.Errorf("m1 stock = %d, want 50 (matched count)", stock1)
	}
	stock2, _ := s.GetStock(ctx, m2.ID)
	if stock2 != 25 {
		t.Errorf("m2 stock = %d, want 25 (overwritten)", stock2)
	}

	if !session.Confirmed() {
		t.Error("session not marked confirmed")
	}
}

func TestConfirmOpnameRequiresReasons(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	m := seedMedicine(t, s, "Paracetamol", 5000, 50)

	var session opname.Session
	line, err := session.AddLine(m)
	if err != nil {
		t.Fatalf("AddLine: %v", err)
	}
	if err := session.SetPhysicalStock(line.ID, 45); err != nil {
		t.Fatalf("SetPhysicalStock: %v", err)
	}

	_, err = s.ConfirmOpname(ctx, &session, "")
	var missing *domain.MissingReasonError
	if !errors.As(err, &missing) {
		t.Fatalf("error = %v, want MissingReasonError", err)
	}
	if len(missing.MedicineIDs) != 1 || missing.MedicineIDs[0] != m.ID {
		t.Errorf("MedicineIDs = %v, want [%d]", missing.MedicineIDs, m.ID)
	}

	// Nothing was written.
	stock, _ := s.GetStock(ctx, m.ID)
	if stock != 50 {
		t.Errorf("stock = %d, want 50 (unchanged)", stock)
	}
	sessions, err := s.ListOpnameSessions(ctx)
	if err != nil {
		t.Fatalf("ListOpnameSessions() error: %v", err)
	}
	if len(sessions) != 0 {
		t.Errorf("len(sessions) = %d, want 0", len(sessions))
	}

	// After attaching the reason the same session confirms.
	if err := session.SetReason(line.ID, domain.ReasonLost); err != nil {
		t.Fatalf("SetReason: %v", err)
	}
	if _, err := s.ConfirmOpname(ctx, &session, ""); err != nil {
		t.Fatalf("ConfirmOpname() after fixing reason: %v", err)
	}
	stock, _ = s.GetStock(ctx, m.ID)
	if stock != 45 {
		t.Errorf("stock = %d, want 45", stock)
	}
}

func TestConfirmOpnameRejectsEmptyAndDouble(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	m := seedMedicine(t, s, "Paracetamol", 5000, 50)

	var empty opname.Session
	if _, err := s.ConfirmOpname(ctx, &empty, ""); !errors.Is(err, domain.ErrEmptySession) {
		t.Errorf("empty session error = %v, want %v", err, domain.ErrEmptySession)
	}

	var session opname.Session
	if _, err := session.AddLine(m); err != nil {
		t.Fatalf("AddLine: %v", err)
	}
	if _, err := s.ConfirmOpname(ctx, &session, ""); err != nil {
		t.Fatalf("first confirm: %v", err)
	}
	if _, err := s.ConfirmOpname(ctx, &session, ""); !errors.Is(err, domain.ErrSessionConfirmed) {
		t.Errorf("second confirm error = %v, want %v", err, domain.ErrSessionConfirmed)
	}
}

func TestGetOpnameSessionNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.GetOpnameSession(context.Background(), 7); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("error = %v, want %v", err, domain.ErrSessionNotFound)
	}
}

func TestOpnameHistoryKeepsSnapshots(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	m := seedMedicine(t, s, "Paracetamol", 5000, 50)

	var first opname.Session
	line, _ := first.AddLine(m)
	_ = first.SetPhysicalStock(line.ID, 40)
	_ = first.SetReason(line.ID, domain.ReasonDamaged)
	if _, err := s.ConfirmOpname(ctx, &first, "first"); err != nil {
		t.Fatalf("first confirm: %v", err)
	}

	// Second count sees the overwritten stock as the new system value.
	current, err := s.GetMedicine(ctx, m.ID)
	if err != nil {
		t.Fatalf("GetMedicine: %v", err)
	}
	var second opname.Session
	line2, _ := second.AddLine(current)
	_ = second.SetPhysicalStock(line2.ID, 38)
	_ = second.SetReason(line2.ID, domain.ReasonOther)
	if _, err := s.ConfirmOpname(ctx, &second, "second"); err != nil {
		t.Fatalf("second confirm: %v", err)
	}

	sessions, err := s.ListOpnameSessions(ctx)
	if err != nil {
		t.Fatalf("ListOpnameSessions() error: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("len(sessions) = %d, want 2", len(sessions))
	}

	// Newest first; line snapshots keep the system stock seen at count
	// time.
	newest := sessions[0]
	if newest.Notes != "second" {
		t.Errorf("newest.Notes = %q, want second", newest.Notes)
	}
	if newest.Lines[0].SystemStock != 40 || newest.Lines[0].PhysicalStock != 38 {
		t.Errorf("snapshot = %d/%d, want 40/38", newest.Lines[0].SystemStock, newest.Lines[0].PhysicalStock)
	}
}
