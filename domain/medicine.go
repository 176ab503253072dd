package domain

// Medicine categories follow Indonesian drug classification.
const (
	CategoryFreeSale         = "obat-bebas"
	CategoryLimitedFreeSale  = "obat-bebas-terbatas"
	CategoryPrescriptionOnly = "obat-keras"
	CategoryNarcotic         = "narkotika"
	CategoryPsychotropic     = "psikotropika"
)

type Medicine struct {
	ID          int64   `db:"id" json:"id"`
	Name        string  `db:"name" json:"name"`
	GenericName string  `db:"generic_name" json:"generic_name"`
	Unit        string  `db:"unit" json:"unit"`
	Price       float64 `db:"price" json:"price"`
	Stock       int64   `db:"stock" json:"stock"`
	Category    string  `db:"category" json:"category"`
	CreatedAt   string  `db:"created_at" json:"created_at,omitempty"`
}

// ValidCategory reports whether c is one of the known drug categories.
func ValidCategory(c string) bool {
	switch c {
	case CategoryFreeSale, CategoryLimitedFreeSale, CategoryPrescriptionOnly,
		CategoryNarcotic, CategoryPsychotropic:
		return true
	}
	return false
}
