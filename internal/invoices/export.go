package invoices

import (
	"encoding/csv"
	"io"
	"strconv"
)

var csvHeader = []string{
	"id", "number", "title", "status", "currency", "issue_date", "due_date", "company",
	"subtotal", "tax_amount", "discount_amount", "total_amount", "paid_amount", "balance",
}

func writeCSV(w io.Writer, invoices []Invoice) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, inv := range invoices {
		due := ""
		if inv.DueDate != nil {
			due = inv.DueDate.Format("2006-01-02")
		}
		record := []string{
			strconv.FormatInt(inv.ID, 10),
			inv.Number,
			inv.Title,
			string(inv.Status),
			inv.Currency,
			inv.IssueDate.Format("2006-01-02"),
			due,
			inv.CompanyName,
			inv.Subtotal.StringFixed(2),
			inv.TaxAmount.StringFixed(2),
			inv.DiscountAmount.StringFixed(2),
			inv.TotalAmount.StringFixed(2),
			inv.PaidAmount.StringFixed(2),
			inv.Balance().StringFixed(2),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
