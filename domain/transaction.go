package domain

// Prescription types.
const (
	PrescriptionRegular  = "regular"
	PrescriptionCompound = "compound"
)

// Payment statuses.
const (
	StatusPending   = "pending"
	StatusPaid      = "paid"
	StatusCancelled = "cancelled"
)

// Dispensed forms for compound prescriptions.
const (
	FormCapsule  = "kapsul"
	FormPowder   = "puyer"
	FormOintment = "salep"
	FormSyrup    = "sirup"
)

type Transaction struct {
	ID                int64   `db:"id" json:"id"`
	TransactionNumber string  `db:"transaction_number" json:"transaction_number"`
	Date              string  `db:"date" json:"date"`
	PatientID         int64   `db:"patient_id" json:"patient_id"`
	DoctorID          int64   `db:"doctor_id" json:"doctor_id"`
	PrescriptionType  string  `db:"prescription_type" json:"prescription_type"`
	Subtotal          float64 `db:"subtotal" json:"subtotal"`
	ServiceFee        float64 `db:"service_fee" json:"service_fee"`
	Total             float64 `db:"total" json:"total"`
	PaymentStatus     string  `db:"payment_status" json:"payment_status"`
	Notes             string  `db:"notes" json:"notes"`
	IdempotencyKey    string  `db:"idempotency_key" json:"-"`
	CreatedAt         string  `db:"created_at" json:"created_at,omitempty"`
}

type PrescriptionItem struct {
	ID            int64   `db:"id" json:"id"`
	TransactionID int64   `db:"transaction_id" json:"transaction_id"`
	MedicineID    int64   `db:"medicine_id" json:"medicine_id"`
	Quantity      int64   `db:"quantity" json:"quantity"`
	Dosage        string  `db:"dosage" json:"dosage"`
	Instructions  string  `db:"instructions" json:"instructions"`
	Subtotal      float64 `db:"subtotal" json:"subtotal"`
}

type CompoundPrescription struct {
	ID            int64   `db:"id" json:"id"`
	TransactionID int64   `db:"transaction_id" json:"transaction_id"`
	Form          string  `db:"form" json:"form"`
	TotalUnits    int64   `db:"total_units" json:"total_units"`
	Dosage        string  `db:"dosage" json:"dosage"`
	Instructions  string  `db:"instructions" json:"instructions"`
	ServiceFee    float64 `db:"service_fee" json:"service_fee"`
	Subtotal      float64 `db:"subtotal" json:"subtotal"`
}

// CompoundItem is one ingredient of a compound prescription. Quantity is
// expressed per 100 units produced and may be fractional; the unit may
// differ from the medicine's own sale unit.
type CompoundItem struct {
	ID                     int64   `db:"id" json:"id"`
	CompoundPrescriptionID int64   `db:"compound_prescription_id" json:"compound_prescription_id"`
	MedicineID             int64   `db:"medicine_id" json:"medicine_id"`
	Quantity               float64 `db:"quantity" json:"quantity"`
	Unit                   string  `db:"unit" json:"unit"`
}

// ValidForm reports whether f is a known dispensed form.
func ValidForm(f string) bool {
	switch f {
	case FormCapsule, FormPowder, FormOintment, FormSyrup:
		return true
	}
	return false
}

// CanTransition reports whether a payment status change is allowed.
// Cancelled is terminal; paid can still be cancelled (refund out of scope).
func CanTransition(from, to string) bool {
	switch {
	case from == StatusPending && to == StatusPaid:
		return true
	case from == StatusPending && to == StatusCancelled:
		return true
	case from == StatusPaid && to == StatusCancelled:
		return true
	}
	return false
}
