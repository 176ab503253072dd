package store

import (
	"context"
	"sort"
	"time"

	"apotekpos/m/domain"
)

// The profit/loss and balance-sheet figures below are deliberate
// heuristics, not accounting-grade ledgers. The ratios and fixed values
// mirror how the pharmacy has always estimated them.
const (
	cogsRatio          = 0.70 // cost of goods as share of revenue
	opexServiceRatio   = 0.50 // overhead as share of compounding fees
	cashSalesRatio     = 0.30 // cash on hand as share of paid sales
	payablesStockRatio = 0.20 // supplier payables as share of inventory value
	fixedAssetsValue   = 50_000_000
	longTermDebtValue  = 10_000_000
	initialCapital     = 50_000_000
)

type ProductSales struct {
	Name     string  `db:"name" json:"name"`
	Quantity int64   `db:"quantity" json:"quantity"`
	Revenue  float64 `db:"revenue" json:"revenue"`
}

type DailySales struct {
	Date         string  `json:"date"`
	Total        float64 `json:"total"`
	Transactions int64   `json:"transactions"`
}

type SalesReport struct {
	TotalSales            float64        `json:"total_sales"`
	TotalTransactions     int64          `json:"total_transactions"`
	AverageTransaction    float64        `json:"average_transaction"`
	RegularPrescriptions  int64          `json:"regular_prescriptions"`
	CompoundPrescriptions int64          `json:"compound_prescriptions"`
	TopProducts           []ProductSales `json:"top_products"`
	DailySales            []DailySales   `json:"daily_sales"`
}

type ProfitLossReport struct {
	Revenue           float64 `json:"revenue"`
	COGS              float64 `json:"cogs"`
	GrossProfit       float64 `json:"gross_profit"`
	OperatingExpenses float64 `json:"operating_expenses"`
	NetProfit         float64 `json:"net_profit"`
	GrossMargin       float64 `json:"gross_margin"`
	NetMargin         float64 `json:"net_margin"`
}

type BalanceSheetAssets struct {
	Cash         float64 `json:"cash"`
	Inventory    float64 `json:"inventory"`
	Receivables  float64 `json:"receivables"`
	TotalCurrent float64 `json:"total_current"`
	FixedAssets  float64 `json:"fixed_assets"`
	TotalAssets  float64 `json:"total_assets"`
}

type BalanceSheetLiabilities struct {
	Payables         float64 `json:"payables"`
	TotalCurrent     float64 `json:"total_current"`
	LongTerm         float64 `json:"long_term"`
	TotalLiabilities float64 `json:"total_liabilities"`
}

type BalanceSheetEquity struct {
	Capital          float64 `json:"capital"`
	RetainedEarnings float64 `json:"retained_earnings"`
	TotalEquity      float64 `json:"total_equity"`
}

type BalanceSheet struct {
	Assets      BalanceSheetAssets      `json:"assets"`
	Liabilities BalanceSheetLiabilities `json:"liabilities"`
	Equity      BalanceSheetEquity      `json:"equity"`
	IsBalanced  bool                    `json:"is_balanced"`
}

// GetSalesReport aggregates paid transactions since the start of the
// requested period ("week", "month" or "year").
func (s *Store) GetSalesReport(ctx context.Context, period string, now time.Time) (SalesReport, error) {
	var start time.Time
	switch period {
	case "week":
		start = now.AddDate(0, 0, -7)
	case "year":
		start = time.Date(now.Year(), 1, 1, 0, 0, 0, 0, now.Location())
	default:
		start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	}
	startDate := start.Format("2006-01-02")

	type txRow struct {
		Date             string  `db:"date"`
		PrescriptionType string  `db:"prescription_type"`
		Total            float64 `db:"total"`
	}
	var rows []txRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT date, prescription_type, total FROM transactions
         WHERE payment_status = ? AND DATE(date) >= ?`, domain.StatusPaid, startDate)
	if err != nil {
		return SalesReport{}, err
	}

	report := SalesReport{TopProducts: []ProductSales{}, DailySales: []DailySales{}}
	daily := map[string]*DailySales{}
	for _, row := range rows {
		report.TotalSales += row.Total
		report.TotalTransactions++
		if row.PrescriptionType == domain.PrescriptionCompound {
			report.CompoundPrescriptions++
		} else {
			report.RegularPrescriptions++
		}
		day := row.Date
		if len(day) >= 10 {
			day = day[:10]
		}
		bucket, ok := daily[day]
		if !ok {
			bucket = &DailySales{Date: day}
			daily[day] = bucket
		}
		bucket.Total += row.Total
		bucket.Transactions++
	}
	if report.TotalTransactions > 0 {
		report.AverageTransaction = report.TotalSales / float64(report.TotalTransactions)
	}
	for _, bucket := range daily {
		report.DailySales = append(report.DailySales, *bucket)
	}
	sort.Slice(report.DailySales, func(i, j int) bool {
		return report.DailySales[i].Date < report.DailySales[j].Date
	})

	err = s.db.SelectContext(ctx, &report.TopProducts,
		`SELECT m.name AS name, SUM(pi.quantity) AS quantity, SUM(pi.subtotal) AS revenue
         FROM prescription_items pi
         JOIN transactions t ON t.id = pi.transaction_id
         JOIN medicines m ON m.id = pi.medicine_id
         WHERE t.payment_status = ? AND DATE(t.date) >= ?
         GROUP BY m.name
         ORDER BY revenue DESC
         LIMIT 10`, domain.StatusPaid, startDate)
	if err != nil {
		return SalesReport{}, err
	}

	return report, nil
}

// GetProfitLossReport estimates a month's profit and loss from paid
// transactions.
func (s *Store) GetProfitLossReport(ctx context.Context, month time.Time) (ProfitLossReport, error) {
	start := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, month.Location())
	end := start.AddDate(0, 1, -1)

	var totals struct {
		Revenue     float64 `db:"revenue"`
		ServiceFees float64 `db:"service_fees"`
	}
	err := s.db.GetContext(ctx, &totals,
		`SELECT COALESCE(SUM(total), 0) AS revenue, COALESCE(SUM(service_fee), 0) AS service_fees
         FROM transactions
         WHERE payment_status = ? AND DATE(date) >= ? AND DATE(date) <= ?`,
		domain.StatusPaid, start.Format("2006-01-02"), end.Format("2006-01-02"))
	if err != nil {
		return ProfitLossReport{}, err
	}

	report := ProfitLossReport{Revenue: totals.Revenue}
	report.COGS = totals.Revenue * cogsRatio
	report.GrossProfit = totals.Revenue - report.COGS
	report.OperatingExpenses = totals.ServiceFees * opexServiceRatio
	report.NetProfit = report.GrossProfit - report.OperatingExpenses
	if totals.Revenue > 0 {
		report.GrossMargin = report.GrossProfit / totals.Revenue * 100
		report.NetMargin = report.NetProfit / totals.Revenue * 100
	}
	return report, nil
}

// GetBalanceSheet estimates the balance sheet from current stock
// valuation and transaction history. Retained earnings are the plug
// that makes the statement balance.
func (s *Store) GetBalanceSheet(ctx context.Context, asOf time.Time) (BalanceSheet, error) {
	asOfDate := asOf.Format("2006-01-02")

	var inventory float64
	if err := s.db.GetContext(ctx, &inventory,
		`SELECT COALESCE(SUM(stock * price), 0) FROM medicines`); err != nil {
		return BalanceSheet{}, err
	}

	var paidSales float64
	if err := s.db.GetContext(ctx, &paidSales,
		`SELECT COALESCE(SUM(total), 0) FROM transactions WHERE payment_status = ? AND DATE(date) <= ?`,
		domain.StatusPaid, asOfDate); err != nil {
		return BalanceSheet{}, err
	}

	var receivables float64
	if err := s.db.GetContext(ctx, &receivables,
		`SELECT COALESCE(SUM(total), 0) FROM transactions WHERE payment_status = ? AND DATE(date) <= ?`,
		domain.StatusPending, asOfDate); err != nil {
		return BalanceSheet{}, err
	}

	sheet := BalanceSheet{}
	sheet.Assets.Cash = paidSales * cashSalesRatio
	sheet.Assets.Inventory = inventory
	sheet.Assets.Receivables = receivables
	sheet.Assets.TotalCurrent = sheet.Assets.Cash + inventory + receivables
	sheet.Assets.FixedAssets = fixedAssetsValue
	sheet.Assets.TotalAssets = sheet.Assets.TotalCurrent + fixedAssetsValue

	sheet.Liabilities.Payables = inventory * payablesStockRatio
	sheet.Liabilities.TotalCurrent = sheet.Liabilities.Payables
	sheet.Liabilities.LongTerm = longTermDebtValue
	sheet.Liabilities.TotalLiabilities = sheet.Liabilities.TotalCurrent + longTermDebtValue

	sheet.Equity.Capital = initialCapital
	sheet.Equity.RetainedEarnings = sheet.Assets.TotalAssets - sheet.Liabilities.TotalLiabilities - initialCapital
	sheet.Equity.TotalEquity = sheet.Equity.Capital + sheet.Equity.RetainedEarnings

	diff := sheet.Assets.TotalAssets - (sheet.Liabilities.TotalLiabilities + sheet.Equity.TotalEquity)
	sheet.IsBalanced = diff < 1 && diff > -1
	return sheet, nil
}
