package migrations

import (
	"log"

	"github.com/jmoiron/sqlx"
)

// Run creates the database schema required for the pharmacy POS backend.
func Run(db *sqlx.DB) {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS users (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            username TEXT NOT NULL,
            email TEXT NOT NULL UNIQUE,
            password TEXT NOT NULL,
            role TEXT NOT NULL,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP
        );`,
		`CREATE TABLE IF NOT EXISTS patients (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            name TEXT NOT NULL,
            address TEXT DEFAULT '',
            phone TEXT DEFAULT '',
            birth_date TEXT DEFAULT '',
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP
        );`,
		`CREATE TABLE IF NOT EXISTS doctors (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            name TEXT NOT NULL,
            sip_number TEXT DEFAULT '',
            specialization TEXT DEFAULT '',
            hospital TEXT DEFAULT '',
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP
        );`,
		`CREATE TABLE IF NOT EXISTS medicines (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            name TEXT NOT NULL,
            generic_name TEXT DEFAULT '',
            unit TEXT NOT NULL,
            price REAL NOT NULL CHECK (price >= 0),
            stock INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0),
            category TEXT NOT NULL,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            UNIQUE(name, unit)
        );`,
		`CREATE TABLE IF NOT EXISTS transactions (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            transaction_number TEXT NOT NULL UNIQUE,
            date DATETIME DEFAULT CURRENT_TIMESTAMP,
            patient_id INTEGER NOT NULL,
            doctor_id INTEGER NOT NULL,
            prescription_type TEXT NOT NULL,
            subtotal REAL NOT NULL,
            service_fee REAL NOT NULL DEFAULT 0,
            total REAL NOT NULL,
            payment_status TEXT NOT NULL DEFAULT 'pending',
            notes TEXT DEFAULT '',
            idempotency_key TEXT NOT NULL UNIQUE,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            FOREIGN KEY(patient_id) REFERENCES patients(id),
            FOREIGN KEY(doctor_id) REFERENCES doctors(id)
        );`,
		`CREATE TABLE IF NOT EXISTS prescription_items (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            transaction_id INTEGER NOT NULL,
            medicine_id INTEGER NOT NULL,
            quantity INTEGER NOT NULL,
            dosage TEXT NOT NULL,
            instructions TEXT DEFAULT '',
            subtotal REAL NOT NULL,
            FOREIGN KEY(transaction_id) REFERENCES transactions(id),
            FOREIGN KEY(medicine_id) REFERENCES medicines(id)
        );`,
		`CREATE TABLE IF NOT EXISTS compound_prescriptions (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            transaction_id INTEGER NOT NULL,
            form TEXT NOT NULL,
            total_units INTEGER NOT NULL,
            dosage TEXT NOT NULL,
            instructions TEXT DEFAULT '',
            service_fee REAL NOT NULL,
            subtotal REAL NOT NULL,
            FOREIGN KEY(transaction_id) REFERENCES transactions(id)
        );`,
		`CREATE TABLE IF NOT EXISTS compound_items (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            compound_prescription_id INTEGER NOT NULL,
            medicine_id INTEGER NOT NULL,
            quantity REAL NOT NULL,
            unit TEXT NOT NULL,
            FOREIGN KEY(compound_prescription_id) REFERENCES compound_prescriptions(id),
            FOREIGN KEY(medicine_id) REFERENCES medicines(id)
        );`,
		`CREATE TABLE IF NOT EXISTS stock_opname_sessions (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            session_number TEXT NOT NULL UNIQUE,
            opname_date DATETIME DEFAULT CURRENT_TIMESTAMP,
            notes TEXT DEFAULT '',
            status TEXT NOT NULL DEFAULT 'confirmed',
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP
        );`,
		`CREATE TABLE IF NOT EXISTS stock_opname_lines (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            session_id INTEGER NOT NULL,
            medicine_id INTEGER NOT NULL,
            system_stock INTEGER NOT NULL,
            physical_stock INTEGER NOT NULL,
            difference INTEGER NOT NULL,
            reason TEXT DEFAULT '',
            FOREIGN KEY(session_id) REFERENCES stock_opname_sessions(id),
            FOREIGN KEY(medicine_id) REFERENCES medicines(id)
        );`,
		`CREATE TABLE IF NOT EXISTS code_sequences (
            name TEXT PRIMARY KEY,
            last_no INTEGER NOT NULL DEFAULT 0
        );`,
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			log.Fatalf("migration failed: %v", err)
		}
	}
}
