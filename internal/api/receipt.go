package api

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"apotekpos/m/domain"
	"apotekpos/m/internal/store"
)

var receiptPrinter = message.NewPrinter(language.Indonesian)

// rupiah formats an amount with Indonesian digit grouping ("Rp 40.000").
func rupiah(amount float64) string {
	return receiptPrinter.Sprintf("Rp %v", number.Decimal(amount, number.MaxFractionDigits(0)))
}

// renderReceipt produces the plain-text receipt handed to the customer.
func renderReceipt(t store.TransactionDetail) string {
	var b strings.Builder
	line := strings.Repeat("=", 40)

	b.WriteString(line + "\n")
	b.WriteString("           APOTEK SEHAT\n")
	b.WriteString(line + "\n")
	fmt.Fprintf(&b, "No. Transaksi : %s\n", t.TransactionNumber)
	fmt.Fprintf(&b, "Tanggal       : %s\n", t.Date)
	fmt.Fprintf(&b, "Pasien        : %s\n", t.PatientName)
	fmt.Fprintf(&b, "Dokter        : %s\n", t.DoctorName)
	b.WriteString(strings.Repeat("-", 40) + "\n")

	for _, item := range t.Items {
		fmt.Fprintf(&b, "%s\n", item.MedicineName)
		fmt.Fprintf(&b, "  %d %s x %s\n", item.Quantity, item.MedicineUnit, rupiah(item.Subtotal/float64(item.Quantity)))
		fmt.Fprintf(&b, "  %s\n", rupiah(item.Subtotal))
	}

	for _, cp := range t.Compounds {
		fmt.Fprintf(&b, "Racikan (%s, %d unit)\n", cp.Form, cp.TotalUnits)
		for _, ing := range cp.Items {
			fmt.Fprintf(&b, "  - %s %.2f %s\n", ing.MedicineName, ing.Quantity, ing.Unit)
		}
		fmt.Fprintf(&b, "  Jasa racik: %s\n", rupiah(cp.ServiceFee))
		fmt.Fprintf(&b, "  %s\n", rupiah(cp.Subtotal))
	}

	b.WriteString(strings.Repeat("-", 40) + "\n")
	fmt.Fprintf(&b, "Subtotal      : %s\n", rupiah(t.Subtotal))
	if t.ServiceFee > 0 {
		fmt.Fprintf(&b, "Jasa racik    : %s\n", rupiah(t.ServiceFee))
	}
	fmt.Fprintf(&b, "TOTAL         : %s\n", rupiah(t.Total))
	fmt.Fprintf(&b, "Status        : %s\n", statusLabel(t.PaymentStatus))
	b.WriteString(line + "\n")
	b.WriteString("   Terima kasih, semoga lekas sembuh\n")
	b.WriteString(line + "\n")
	return b.String()
}

func statusLabel(status string) string {
	switch status {
	case domain.StatusPaid:
		return "LUNAS"
	case domain.StatusPending:
		return "BELUM DIBAYAR"
	case domain.StatusCancelled:
		return "DIBATALKAN"
	}
	return status
}
