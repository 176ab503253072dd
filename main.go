package main

import (
	"log"
	"net/http"

	"github.com/joho/godotenv"

	"apotekpos/m/internal/api"
	"apotekpos/m/internal/config"
	"apotekpos/m/internal/database"
	"apotekpos/m/internal/migrations"
	"apotekpos/m/internal/seed"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	db := database.Connect(cfg.DatabaseDSN)
	defer db.Close()

	migrations.Run(db)
	seed.LoadMedicines(db, cfg.MedicineCSV)

	handler := api.New(db, cfg.Secret)

	log.Printf("Apotek POS server starting on :%s", cfg.HTTPPort)
	if err := http.ListenAndServe(":"+cfg.HTTPPort, handler.Router()); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
