// Package importer loads day and reservation rows from semicolon-separated CSV files.
//
// Day files carry the columns date_iso;jour;menu;open;disabled and reservation
// files date_iso;name. Rows are appended to the store as they are.
package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"cafeteria/internal/models"
	"cafeteria/internal/repository"
)

// Result counts the imported rows.
type Result struct {
	Days         int `json:"days"`
	Reservations int `json:"reservations"`
}

// Importer appends CSV rows to a store.
type Importer struct {
	days         repository.DayRepository
	reservations repository.ReservationRepository
	loc          *time.Location
	now          func() time.Time
}

func New(days repository.DayRepository, reservations repository.ReservationRepository, loc *time.Location) *Importer {
	if loc == nil {
		loc = time.UTC
	}
	return &Importer{days: days, reservations: reservations, loc: loc, now: time.Now}
}

// Import reads either file when it is non-nil. Nothing is written unless both parse.
func (im *Importer) Import(ctx context.Context, daysCSV, reservationsCSV io.Reader) (Result, error) {
	var (
		days []models.Day
		rs   []models.Reservation
		err  error
	)
	if daysCSV != nil {
		if days, err = im.ParseDays(daysCSV); err != nil {
			return Result{}, fmt.Errorf("days: %w", err)
		}
	}
	if reservationsCSV != nil {
		if rs, err = im.ParseReservations(reservationsCSV); err != nil {
			return Result{}, fmt.Errorf("reservations: %w", err)
		}
	}

	if len(days) > 0 {
		if err := im.days.AppendDays(ctx, days...); err != nil {
			return Result{}, fmt.Errorf("append days: %w", err)
		}
	}
	if len(rs) > 0 {
		if err := im.reservations.AppendReservations(ctx, rs...); err != nil {
			return Result{Days: len(days)}, fmt.Errorf("append reservations: %w", err)
		}
	}
	return Result{Days: len(days), Reservations: len(rs)}, nil
}

// ParseDays decodes a day file.
func (im *Importer) ParseDays(r io.Reader) ([]models.Day, error) {
	records, err := readRecords(r, "date_iso", "jour")
	if err != nil {
		return nil, err
	}
	out := make([]models.Day, 0, len(records))
	for i, rec := range records {
		date, err := models.ParseDate(rec["date_iso"], im.loc)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+2, err)
		}
		label := strings.TrimSpace(rec["jour"])
		if label == "" {
			label = models.WeekdayLabel(date)
		}
		out = append(out, models.Day{
			Date:         date,
			WeekdayLabel: label,
			Menu:         rec["menu"],
			IsOpen:       models.ParseFlag(rec["open"]),
			IsDisabled:   models.ParseFlag(rec["disabled"]),
		})
	}
	return out, nil
}

// ParseReservations decodes a reservation file. Rows without a name are skipped.
func (im *Importer) ParseReservations(r io.Reader) ([]models.Reservation, error) {
	records, err := readRecords(r, "date_iso", "name")
	if err != nil {
		return nil, err
	}
	now := im.now().UTC()
	out := make([]models.Reservation, 0, len(records))
	for i, rec := range records {
		name := strings.TrimSpace(rec["name"])
		if name == "" {
			continue
		}
		date, err := models.ParseDate(rec["date_iso"], im.loc)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+2, err)
		}
		out = append(out, models.Reservation{Date: date, Name: name, CreatedAt: now})
	}
	return out, nil
}

// readRecords maps every data line to its header names.
func readRecords(r io.Reader, required ...string) ([]map[string]string, error) {
	cr := csv.NewReader(r)
	cr.Comma = ';'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	for i, h := range header {
		header[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	}
	for _, col := range required {
		if !contains(header, col) {
			return nil, fmt.Errorf("missing column %q", col)
		}
	}

	var out []map[string]string
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		rec := make(map[string]string, len(header))
		for i, h := range header {
			if i < len(row) {
				rec[h] = row[i]
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
