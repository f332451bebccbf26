package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"cafeteria/internal/models"
	"cafeteria/internal/report"
	"cafeteria/internal/service"
)

// dateFlag parses value in the configured zone; empty means today.
func dateFlag(app *App, value string) (time.Time, error) {
	if value == "" {
		return app.Rules.Today(), nil
	}
	return models.ParseDate(value, app.Rules.Location)
}

func newSendListCmd(opts *rootOptions) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "send-list",
		Short: "Mail the reservation list of a day and close it for reservations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			app, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			day, err := dateFlag(app, date)
			if err != nil {
				return err
			}
			res, err := app.DailyClose.SendListAndCloseFor(ctx, day)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "%s: %d inscrits\n", models.PrettyHeader(res.Date), len(res.Names))
			for i, n := range res.Names {
				_, _ = fmt.Fprintf(out, "%2d. %s\n", i+1, n)
			}
			if !res.DayFound {
				_, _ = fmt.Fprintln(out, "jour absent des paramètres")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "day to close (dd.MM.yyyy or yyyy-MM-dd, default today)")
	return cmd
}

func newCloseTillCmd(opts *rootOptions) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "close-till",
		Short: "Close the till of a day and send the accounting report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			app, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			day, err := dateFlag(app, date)
			if err != nil {
				return err
			}
			res, err := app.Till.CloseTill(ctx, day)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if res.AlreadyClosed {
				_, _ = fmt.Fprintf(out, "caisse déjà clôturée pour %s\n", models.DateKey(day))
				return nil
			}
			writeReport(out, *res.Report)
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "day to close (dd.MM.yyyy or yyyy-MM-dd, default today)")
	return cmd
}

func writeReport(out io.Writer, r service.AccountingReport) {
	t := r.Totals
	_, _ = fmt.Fprintf(out, "Clôture %s\n", models.PrettyHeader(r.Date))
	_, _ = fmt.Fprintf(out, "Menus: %d (élèves %d, profs %d)\n", t.Menus, t.Students, t.Staff)
	_, _ = fmt.Fprintf(out, "Sandwichs: %d  Boissons: %d  Chocolats: %d\n", t.Sandwiches, t.Beverages, t.Chocolates)
	_, _ = fmt.Fprintf(out, "Fond de caisse: %s\n", r.CashFloat.StringFixed(2))
	_, _ = fmt.Fprintf(out, "Encaissé: %s\n", r.CashIn.StringFixed(2))
	_, _ = fmt.Fprintf(out, "Attendu en caisse: %s\n", r.ExpectedTill.StringFixed(2))
}

func newImportCmd(opts *rootOptions) *cobra.Command {
	var daysPath, reservationsPath string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Append days and reservations from semicolon-separated CSV files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if daysPath == "" && reservationsPath == "" {
				return fmt.Errorf("nothing to import: set --days and/or --reservations")
			}
			ctx := cmd.Context()
			app, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			days, closeDays, err := openOptional(daysPath)
			if err != nil {
				return err
			}
			defer closeDays()
			resas, closeResas, err := openOptional(reservationsPath)
			if err != nil {
				return err
			}
			defer closeResas()

			res, err := app.Importer.Import(ctx, days, resas)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%d jours, %d réservations importés\n", res.Days, res.Reservations)
			return nil
		},
	}
	cmd.Flags().StringVar(&daysPath, "days", "", "Paramètres CSV (date_iso;jour;menu;open;disabled)")
	cmd.Flags().StringVar(&reservationsPath, "reservations", "", "Réservations CSV (date_iso;name)")
	return cmd
}

func openOptional(path string) (io.Reader, func(), error) {
	if path == "" {
		return nil, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, func() {}, err
	}
	return f, func() { _ = f.Close() }, nil
}

func newExportCmd(opts *rootOptions) *cobra.Command {
	var date, outPath string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the till ledger of a day to an Excel file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			app, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			day, err := dateFlag(app, date)
			if err != nil {
				return err
			}
			path, err := exportTill(ctx, app, day, outPath)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "day to export (default today)")
	cmd.Flags().StringVar(&outPath, "out", "", "output file (default caisse_<date>.xlsx)")
	return cmd
}

func exportTill(ctx context.Context, app *App, day time.Time, path string) (string, error) {
	entries, err := app.Till.Entries(ctx, day)
	if err != nil {
		return "", err
	}
	rep := app.Till.BuildReport(day, service.BuildTillStats(entries).Totals)
	if path == "" {
		path = report.FileName(rep)
	}
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := report.WriteTill(f, entries, rep); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, f.Close()
}
