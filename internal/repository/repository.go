// Package repository declares the storage contracts shared by every backend.
//
// The stores behave like append-only tabular logs: rows are appended, listed by
// date in storage order, and only ever removed one at a time or have a single
// field flipped.
package repository

import (
	"context"
	"time"

	"cafeteria/internal/models"
)

// DayRepository reads the configured days (the Paramètres sheet).
type DayRepository interface {
	ListDays(ctx context.Context) ([]models.Day, error)
	// SetDayOpen updates the open flag of every row dated date and reports
	// whether such a row exists.
	SetDayOpen(ctx context.Context, date time.Time, open bool) (bool, error)
	AppendDays(ctx context.Context, days ...models.Day) error
}

// ReservationRepository stores reservation rows (the Réservations sheet).
type ReservationRepository interface {
	AppendReservations(ctx context.Context, rs ...models.Reservation) error
	// ListReservations returns the rows for date in storage order.
	ListReservations(ctx context.Context, date time.Time) ([]models.Reservation, error)
	// ListAllReservations returns every row in storage order.
	ListAllReservations(ctx context.Context) ([]models.Reservation, error)
	// DeleteFirstReservation removes the first row dated date whose trimmed name
	// equals name exactly, and reports whether one was found.
	DeleteFirstReservation(ctx context.Context, date time.Time, name string) (bool, error)
}

// TillRepository stores till ledger rows (the Caisse sheet).
type TillRepository interface {
	AppendTillEntries(ctx context.Context, entries ...models.TillEntry) error
	// ListTillEntries returns the rows for date in storage order.
	ListTillEntries(ctx context.Context, date time.Time) ([]models.TillEntry, error)
}

// Store bundles the three tabular stores of one backend.
type Store interface {
	DayRepository
	ReservationRepository
	TillRepository
	Ping(ctx context.Context) error
	Close() error
}
