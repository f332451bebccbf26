// Package memstore is an in-process Store used for development and tests.
package memstore

import (
	"context"
	"strings"
	"sync"
	"time"

	"cafeteria/internal/models"
	"cafeteria/internal/repository"
)

var _ repository.Store = (*Store)(nil)

// Store keeps rows in slices, in append order.
type Store struct {
	mu           sync.RWMutex
	days         []models.Day
	reservations []models.Reservation
	till         []models.TillEntry
}

// New returns an empty store.
func New() *Store {
	return &Store{}
}

func (s *Store) ListDays(_ context.Context) ([]models.Day, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Day(nil), s.days...), nil
}

func (s *Store) SetDayOpen(_ context.Context, date time.Time, open bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := models.DateKey(date)
	found := false
	for i := range s.days {
		if s.days[i].Key() == key {
			s.days[i].IsOpen = open
			found = true
		}
	}
	return found, nil
}

func (s *Store) AppendDays(_ context.Context, days ...models.Day) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.days = append(s.days, days...)
	return nil
}

func (s *Store) AppendReservations(_ context.Context, rs ...models.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reservations = append(s.reservations, rs...)
	return nil
}

func (s *Store) ListReservations(_ context.Context, date time.Time) ([]models.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key := models.DateKey(date)
	var out []models.Reservation
	for _, r := range s.reservations {
		if r.Key() == key {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Store) ListAllReservations(_ context.Context) ([]models.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Reservation(nil), s.reservations...), nil
}

func (s *Store) DeleteFirstReservation(_ context.Context, date time.Time, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := models.DateKey(date)
	for i, r := range s.reservations {
		if r.Key() == key && strings.TrimSpace(r.Name) == name {
			s.reservations = append(s.reservations[:i], s.reservations[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) AppendTillEntries(_ context.Context, entries ...models.TillEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.till = append(s.till, entries...)
	return nil
}

func (s *Store) ListTillEntries(_ context.Context, date time.Time) ([]models.TillEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key := models.DateKey(date)
	var out []models.TillEntry
	for _, e := range s.till {
		if e.Key() == key {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }
