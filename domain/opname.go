package domain

// Opname session statuses.
const (
	OpnameDraft     = "draft"
	OpnameConfirmed = "confirmed"
)

// Accepted discrepancy reasons for a stock opname line.
const (
	ReasonExpired        = "expired"
	ReasonDamaged        = "damaged"
	ReasonDataEntryError = "data-entry-error"
	ReasonLost           = "lost"
	ReasonBonusSample    = "bonus-sample"
	ReasonSupplierReturn = "supplier-return"
	ReasonOther          = "other"
)

type StockOpnameSession struct {
	ID            int64  `db:"id" json:"id"`
	SessionNumber string `db:"session_number" json:"session_number"`
	OpnameDate    string `db:"opname_date" json:"opname_date"`
	Notes         string `db:"notes" json:"notes"`
	Status        string `db:"status" json:"status"`
	CreatedAt     string `db:"created_at" json:"created_at,omitempty"`
}

type StockOpnameLine struct {
	ID            int64  `db:"id" json:"id"`
	SessionID     int64  `db:"session_id" json:"session_id"`
	MedicineID    int64  `db:"medicine_id" json:"medicine_id"`
	SystemStock   int64  `db:"system_stock" json:"system_stock"`
	PhysicalStock int64  `db:"physical_stock" json:"physical_stock"`
	Difference    int64  `db:"difference" json:"difference"`
	Reason        string `db:"reason" json:"reason"`
}

// ValidReason reports whether r is an accepted discrepancy reason.
func ValidReason(r string) bool {
	switch r {
	case ReasonExpired, ReasonDamaged, ReasonDataEntryError, ReasonLost,
		ReasonBonusSample, ReasonSupplierReturn, ReasonOther:
		return true
	}
	return false
}
