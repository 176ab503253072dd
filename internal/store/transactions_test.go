package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"apotekpos/m/domain"
)

func regularInput(patient domain.Patient, doctor domain.Doctor) TransactionInput {
	return TransactionInput{PatientID: patient.ID, DoctorID: doctor.ID, PaymentStatus: domain.StatusPaid}
}

func TestCreateRegularTransaction(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	patient := seedPatient(t, s)
	doctor := seedDoctor(t, s)
	m := seedMedicine(t, s, "Paracetamol", 5000, 100)

	detail, err := s.CreateRegularTransaction(ctx, regularInput(patient, doctor), []RegularItemInput{
		{MedicineID: m.ID, Quantity: 10, Dosage: "3x1"},
	})
	if err != nil {
		t.Fatalf("CreateRegularTransaction() error: %v", err)
	}

	if detail.Total != 50000 {
		t.Errorf("Total = %v, want 50000", detail.Total)
	}
	if detail.PatientName != patient.Name || detail.DoctorName != doctor.Name {
		t.Errorf("joined names = %q/%q, want %q/%q", detail.PatientName, detail.DoctorName, patient.Name, doctor.Name)
	}
	if len(detail.Items) != 1 || detail.Items[0].Subtotal != 50000 {
		t.Fatalf("items = %+v, want one line with subtotal 50000", detail.Items)
	}

	stock, _ := s.GetStock(ctx, m.ID)
	if stock != 90 {
		t.Errorf("stock after sale = %d, want 90", stock)
	}

	wantNumber := fmt.Sprintf("TRX-%d-0001", time.Now().Year())
	if detail.TransactionNumber != wantNumber {
		t.Errorf("TransactionNumber = %q, want %q", detail.TransactionNumber, wantNumber)
	}
}

func TestTransactionNumbersAreSequential(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	patient := seedPatient(t, s)
	doctor := seedDoctor(t, s)
	m := seedMedicine(t, s, "Paracetamol", 5000, 100)

	var numbers []string
	for i := 0; i < 3; i++ {
		detail, err := s.CreateRegularTransaction(ctx, regularInput(patient, doctor), []RegularItemInput{
			{MedicineID: m.ID, Quantity: 1, Dosage: "1x1"},
		})
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		numbers = append(numbers, detail.TransactionNumber)
	}

	year := time.Now().Year()
	for i, got := range numbers {
		want := fmt.Sprintf("TRX-%d-%04d", year, i+1)
		if got != want {
			t.Errorf("number[%d] = %q, want %q", i, got, want)
		}
	}
}

func TestCreateRegularTransactionMultiLine(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	patient := seedPatient(t, s)
	doctor := seedDoctor(t, s)
	m1 := seedMedicine(t, s, "Paracetamol", 5000, 100)
	m2 := seedMedicine(t, s, "Amoxicillin", 3000, 60)
	m3 := seedMedicine(t, s, "Cetirizine", 2500, 30)

	detail, err := s.CreateRegularTransaction(ctx, regularInput(patient, doctor), []RegularItemInput{
		{MedicineID: m1.ID, Quantity: 10, Dosage: "3x1"},
		{MedicineID: m2.ID, Quantity: 15, Dosage: "3x1"},
		{MedicineID: m3.ID, Quantity: 5, Dosage: "1x1"},
	})
	if err != nil {
		t.Fatalf("CreateRegularTransaction() error: %v", err)
	}

	if len(detail.Items) != 3 {
		t.Fatalf("len(Items) = %d, want 3", len(detail.Items))
	}
	// 10*5000 + 15*3000 + 5*2500
	if detail.Total != 107500 {
		t.Errorf("Total = %v, want 107500", detail.Total)
	}

	wantStock := map[int64]int64{m1.ID: 90, m2.ID: 45, m3.ID: 25}
	for id, want := range wantStock {
		stock, _ := s.GetStock(ctx, id)
		if stock != want {
			t.Errorf("stock[%d] = %d, want %d", id, stock, want)
		}
	}
}

func TestCreateRegularTransactionRollsBackOnUnknownMedicine(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	patient := seedPatient(t, s)
	doctor := seedDoctor(t, s)
	m := seedMedicine(t, s, "Paracetamol", 5000, 100)

	_, err := s.CreateRegularTransaction(ctx, regularInput(patient, doctor), []RegularItemInput{
		{MedicineID: m.ID, Quantity: 10, Dosage: "3x1"},
		{MedicineID: 9999, Quantity: 1, Dosage: "1x1"},
	})
	if !errors.Is(err, domain.ErrMedicineNotFound) {
		t.Fatalf("error = %v, want %v", err, domain.ErrMedicineNotFound)
	}

	stock, _ := s.GetStock(ctx, m.ID)
	if stock != 100 {
		t.Errorf("stock after failed create = %d, want 100 (untouched)", stock)
	}
	transactions, err := s.ListTransactions(ctx, TransactionFilter{})
	if err != nil {
		t.Fatalf("ListTransactions() error: %v", err)
	}
	if len(transactions) != 0 {
		t.Errorf("len(transactions) = %d, want 0 (no header persisted)", len(transactions))
	}
}

func TestCreateRegularTransactionRequiresDosage(t *testing.T) {
	s := newTestStore(t)
	patient := seedPatient(t, s)
	doctor := seedDoctor(t, s)
	m := seedMedicine(t, s, "Paracetamol", 5000, 100)

	_, err := s.CreateRegularTransaction(context.Background(), regularInput(patient, doctor), []RegularItemInput{
		{MedicineID: m.ID, Quantity: 10},
	})
	if !errors.Is(err, domain.ErrDosageRequired) {
		t.Errorf("error = %v, want %v", err, domain.ErrDosageRequired)
	}
}

func TestCreateTransactionIdempotency(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	patient := seedPatient(t, s)
	doctor := seedDoctor(t, s)
	m := seedMedicine(t, s, "Paracetamol", 5000, 100)

	input := regularInput(patient, doctor)
	input.IdempotencyKey = "retry-key-1"
	items := []RegularItemInput{{MedicineID: m.ID, Quantity: 10, Dosage: "3x1"}}

	first, err := s.CreateRegularTransaction(ctx, input, items)
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	second, err := s.CreateRegularTransaction(ctx, input, items)
	if err != nil {
		t.Fatalf("retried create: %v", err)
	}

	if first.ID != second.ID {
		t.Errorf("retry created a second transaction: %d vs %d", first.ID, second.ID)
	}
	stock, _ := s.GetStock(ctx, m.ID)
	if stock != 90 {
		t.Errorf("stock = %d, want 90 (decremented once)", stock)
	}
}

func TestCreateCompoundTransaction(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	patient := seedPatient(t, s)
	doctor := seedDoctor(t, s)
	base := seedMedicine(t, s, "Salbutamol", 1000, 300)
	extra := seedMedicine(t, s, "Lactose", 200, 50)

	detail, err := s.CreateCompoundTransaction(ctx, regularInput(patient, doctor), []CompoundPrescriptionInput{
		{
			Form:       domain.FormPowder,
			TotalUnits: 10,
			Dosage:     "3x1",
			Items: []CompoundIngredientInput{
				{MedicineID: base.ID, Quantity: 250, Unit: "mg"},
				{MedicineID: extra.ID, Quantity: 2.5, Unit: "mg"},
			},
		},
	})
	if err != nil {
		t.Fatalf("CreateCompoundTransaction() error: %v", err)
	}

	// 1000*(250/100)*10 + 200*(2.5/100)*10 + 15000
	if detail.Total != 40050 {
		t.Errorf("Total = %v, want 40050", detail.Total)
	}
	if detail.ServiceFee != 15000 {
		t.Errorf("ServiceFee = %v, want 15000", detail.ServiceFee)
	}
	if len(detail.Compounds) != 1 || len(detail.Compounds[0].Items) != 2 {
		t.Fatalf("compounds = %+v, want one prescription with two ingredients", detail.Compounds)
	}

	// Composition amounts decrement once, rounded up, independent of
	// units produced.
	baseStock, _ := s.GetStock(ctx, base.ID)
	if baseStock != 50 {
		t.Errorf("base stock = %d, want 50 (300 - 250)", baseStock)
	}
	extraStock, _ := s.GetStock(ctx, extra.ID)
	if extraStock != 47 {
		t.Errorf("extra stock = %d, want 47 (2.5 rounds up to 3)", extraStock)
	}
}

func TestCreateCompoundTransactionValidation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	patient := seedPatient(t, s)
	doctor := seedDoctor(t, s)
	m := seedMedicine(t, s, "Salbutamol", 1000, 300)

	tests := []struct {
		name    string
		input   CompoundPrescriptionInput
		wantErr error
	}{
		{
			name:    "unknown form",
			input:   CompoundPrescriptionInput{Form: "tablet", TotalUnits: 10, Dosage: "3x1", Items: []CompoundIngredientInput{{MedicineID: m.ID, Quantity: 100}}},
			wantErr: domain.ErrInvalidForm,
		},
		{
			name:    "missing dosage",
			input:   CompoundPrescriptionInput{Form: domain.FormCapsule, TotalUnits: 10, Items: []CompoundIngredientInput{{MedicineID: m.ID, Quantity: 100}}},
			wantErr: domain.ErrDosageRequired,
		},
		{
			name:    "empty composition",
			input:   CompoundPrescriptionInput{Form: domain.FormCapsule, TotalUnits: 10, Dosage: "3x1"},
			wantErr: domain.ErrEmptyComposition,
		},
		{
			name:    "zero units",
			input:   CompoundPrescriptionInput{Form: domain.FormCapsule, TotalUnits: 0, Dosage: "3x1", Items: []CompoundIngredientInput{{MedicineID: m.ID, Quantity: 100}}},
			wantErr: domain.ErrInvalidQuantity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.CreateCompoundTransaction(ctx, regularInput(patient, doctor), []CompoundPrescriptionInput{tt.input})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestUpdatePaymentStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	patient := seedPatient(t, s)
	doctor := seedDoctor(t, s)
	m := seedMedicine(t, s, "Paracetamol", 5000, 100)

	input := regularInput(patient, doctor)
	input.PaymentStatus = domain.StatusPending
	detail, err := s.CreateRegularTransaction(ctx, input, []RegularItemInput{
		{MedicineID: m.ID, Quantity: 2, Dosage: "3x1"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := s.UpdatePaymentStatus(ctx, detail.ID, domain.StatusPaid)
	if err != nil {
		t.Fatalf("pending -> paid: %v", err)
	}
	if updated.PaymentStatus != domain.StatusPaid {
		t.Errorf("status = %q, want paid", updated.PaymentStatus)
	}

	if _, err := s.UpdatePaymentStatus(ctx, detail.ID, domain.StatusCancelled); err != nil {
		t.Fatalf("paid -> cancelled: %v", err)
	}

	// Cancelled is terminal.
	if _, err := s.UpdatePaymentStatus(ctx, detail.ID, domain.StatusPaid); !errors.Is(err, domain.ErrInvalidStatusTransition) {
		t.Errorf("cancelled -> paid error = %v, want %v", err, domain.ErrInvalidStatusTransition)
	}

	// Cancelling never restores stock.
	stock, _ := s.GetStock(ctx, m.ID)
	if stock != 98 {
		t.Errorf("stock = %d, want 98", stock)
	}
}

func TestUpdatePaymentStatusNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.UpdatePaymentStatus(context.Background(), 42, domain.StatusPaid); !errors.Is(err, domain.ErrTransactionNotFound) {
		t.Errorf("error = %v, want %v", err, domain.ErrTransactionNotFound)
	}
}

func TestListTransactionsFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	patient := seedPatient(t, s)
	doctor := seedDoctor(t, s)
	m := seedMedicine(t, s, "Paracetamol", 5000, 100)

	paid := regularInput(patient, doctor)
	if _, err := s.CreateRegularTransaction(ctx, paid, []RegularItemInput{{MedicineID: m.ID, Quantity: 1, Dosage: "1x1"}}); err != nil {
		t.Fatalf("create paid: %v", err)
	}
	pending := regularInput(patient, doctor)
	pending.PaymentStatus = domain.StatusPending
	if _, err := s.CreateRegularTransaction(ctx, pending, []RegularItemInput{{MedicineID: m.ID, Quantity: 1, Dosage: "1x1"}}); err != nil {
		t.Fatalf("create pending: %v", err)
	}

	all, err := s.ListTransactions(ctx, TransactionFilter{})
	if err != nil {
		t.Fatalf("ListTransactions() error: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("len(all) = %d, want 2", len(all))
	}

	onlyPaid, err := s.ListTransactions(ctx, TransactionFilter{Status: domain.StatusPaid})
	if err != nil {
		t.Fatalf("filter by status: %v", err)
	}
	if len(onlyPaid) != 1 || onlyPaid[0].PaymentStatus != domain.StatusPaid {
		t.Errorf("paid filter returned %+v", onlyPaid)
	}

	byName, err := s.ListTransactions(ctx, TransactionFilter{Search: "Budi"})
	if err != nil {
		t.Fatalf("filter by patient name: %v", err)
	}
	if len(byName) != 2 {
		t.Errorf("len(byName) = %d, want 2", len(byName))
	}

	if _, err := s.ListTransactions(ctx, TransactionFilter{StartDate: "not-a-date"}); !errors.Is(err, domain.ErrInvalidDate) {
		t.Errorf("bad start_date error = %v, want %v", err, domain.ErrInvalidDate)
	}
}

func TestCreateTransactionUnknownReferences(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	patient := seedPatient(t, s)
	doctor := seedDoctor(t, s)
	m := seedMedicine(t, s, "Paracetamol", 5000, 100)
	items := []RegularItemInput{{MedicineID: m.ID, Quantity: 1, Dosage: "1x1"}}

	input := regularInput(patient, doctor)
	input.PatientID = 9999
	if _, err := s.CreateRegularTransaction(ctx, input, items); !errors.Is(err, domain.ErrPatientNotFound) {
		t.Errorf("unknown patient error = %v, want %v", err, domain.ErrPatientNotFound)
	}

	input = regularInput(patient, doctor)
	input.DoctorID = 9999
	if _, err := s.CreateRegularTransaction(ctx, input, items); !errors.Is(err, domain.ErrDoctorNotFound) {
		t.Errorf("unknown doctor error = %v, want %v", err, domain.ErrDoctorNotFound)
	}
}
