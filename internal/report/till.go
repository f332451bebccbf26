package report

import (
	"fmt"
	"io"

	"cafeteria/internal/models"
	"cafeteria/internal/service"
)

// FileName returns the download name of a till export.
func FileName(report service.AccountingReport) string {
	return fmt.Sprintf("caisse_%s.xlsx", models.DateKey(report.Date))
}

// WriteTill writes the ledger lines of one day and a summary sheet.
func WriteTill(wr io.Writer, entries []models.TillEntry, report service.AccountingReport) error {
	w, err := NewWriter()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.AddSheet("Caisse " + models.DateKey(report.Date)); err != nil {
		return err
	}
	if err := w.WriteHeader("Date", "Nom", "Type", "Base", "Boisson", "Chocolat", "Total", "Horodatage"); err != nil {
		return err
	}
	for _, e := range entries {
		ts := ""
		if !e.CreatedAt.IsZero() {
			ts = e.CreatedAt.Format(models.TimestampLayout)
		}
		if err := w.WriteRow(
			models.DisplayDate(e.Date),
			e.Name,
			string(e.Kind),
			e.Base.InexactFloat64(),
			e.Beverage.InexactFloat64(),
			e.Chocolate.InexactFloat64(),
			e.LineTotal.InexactFloat64(),
			ts,
		); err != nil {
			return err
		}
	}
	if err := w.MoneyColumns(4, 7); err != nil {
		return err
	}

	t := report.Totals
	if err := w.AddSheet("Résumé"); err != nil {
		return err
	}
	if err := w.WriteHeader("Poste", "Valeur"); err != nil {
		return err
	}
	summary := [][]interface{}{
		{"Date", models.PrettyHeader(report.Date)},
		{"Menus", t.Menus},
		{"Menus élèves", t.Students},
		{"Menus profs", t.Staff},
		{"Sandwiches", t.Sandwiches},
		{"Boissons", t.Beverages},
		{"Chocolats", t.Chocolates},
		{"Fond de caisse initial", report.CashFloat.InexactFloat64()},
		{"Encaissements cash", report.CashIn.InexactFloat64()},
		{"Total en caisse attendu", report.ExpectedTill.InexactFloat64()},
	}
	for _, row := range summary {
		if err := w.WriteRow(row...); err != nil {
			return err
		}
	}

	return w.Save(wr)
}
