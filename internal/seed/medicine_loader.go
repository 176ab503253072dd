package seed

import (
	"encoding/csv"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"

	"apotekpos/m/domain"
)

// LoadMedicines ingests the medicine catalog CSV into the medicines
// table, ignoring rows already present. Expected columns:
// name, generic_name, unit, price, stock, category.
func LoadMedicines(db *sqlx.DB, csvPath string) {
	file, err := os.Open(csvPath)
	if err != nil {
		log.Printf("unable to load medicine catalog %s: %v", csvPath, err)
		return
	}
	defer file.Close()

	reader := csv.NewReader(file)
	// Skip header
	if _, err := reader.Read(); err != nil {
		log.Printf("unable to read medicine header: %v", err)
		return
	}

	tx, err := db.Beginx()
	if err != nil {
		log.Printf("unable to start medicine transaction: %v", err)
		return
	}
	stmt, err := tx.Preparex(`INSERT OR IGNORE INTO medicines (name, generic_name, unit, price, stock, category) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		log.Printf("unable to prepare medicine insert: %v", err)
		_ = tx.Rollback()
		return
	}
	defer stmt.Close()

	rows := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Printf("unable to read medicine row: %v", err)
			continue
		}
		if len(record) < 6 {
			continue
		}
		name := strings.TrimSpace(record[0])
		generic := strings.TrimSpace(record[1])
		unit := strings.TrimSpace(record[2])
		price, priceErr := strconv.ParseFloat(strings.TrimSpace(record[3]), 64)
		stock, stockErr := strconv.ParseInt(strings.TrimSpace(record[4]), 10, 64)
		category := strings.TrimSpace(record[5])

		if name == "" || unit == "" || priceErr != nil || price < 0 || stockErr != nil || stock < 0 {
			continue
		}
		if !domain.ValidCategory(category) {
			category = domain.CategoryFreeSale
		}

		if _, err := stmt.Exec(name, generic, unit, price, stock, category); err != nil {
			log.Printf("unable to insert medicine %s: %v", name, err)
		} else {
			rows++
		}
	}

	if err := tx.Commit(); err != nil {
		log.Printf("unable to commit medicine seed: %v", err)
	} else {
		log.Printf("seeded medicine catalog with %d rows", rows)
	}
}
