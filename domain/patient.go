package domain

type Patient struct {
	ID        int64  `db:"id" json:"id"`
	Name      string `db:"name" json:"name"`
	Address   string `db:"address" json:"address"`
	Phone     string `db:"phone" json:"phone"`
	BirthDate string `db:"birth_date" json:"birth_date"`
	CreatedAt string `db:"created_at" json:"created_at,omitempty"`
}

type Doctor struct {
	ID             int64  `db:"id" json:"id"`
	Name           string `db:"name" json:"name"`
	SIPNumber      string `db:"sip_number" json:"sip_number"`
	Specialization string `db:"specialization" json:"specialization"`
	Hospital       string `db:"hospital" json:"hospital"`
	CreatedAt      string `db:"created_at" json:"created_at,omitempty"`
}
