package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"cafeteria/internal/events"
	"cafeteria/internal/models"
	"cafeteria/internal/repository"
)

// ReservationService manages the reservation ledger.
type ReservationService struct {
	days         repository.DayRepository
	reservations repository.ReservationRepository
	rules        Rules
	events       EventPublisher
	logger       *zerolog.Logger
}

func NewReservationService(
	days repository.DayRepository,
	reservations repository.ReservationRepository,
	rules Rules,
	publisher EventPublisher,
	logger *zerolog.Logger,
) *ReservationService {
	return &ReservationService{
		days:         days,
		reservations: reservations,
		rules:        rules,
		events:       publisher,
		logger:       orNop(logger),
	}
}

// Reserve appends a reservation for name on date.
// The day must be configured and open, and hold fewer than MaxReservations rows.
// The same name may reserve several times.
func (s *ReservationService) Reserve(ctx context.Context, name string, date time.Time) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return newError(CodeInvalidArgument, "Merci d'indiquer un nom.")
	}
	display := models.DisplayDate(date)

	open, err := s.isDayOpen(ctx, date)
	if err != nil {
		return err
	}
	if !open {
		return newError(CodeDayClosed, "Le %s est fermé, impossible de réserver.", display)
	}

	existing, err := s.reservations.ListReservations(ctx, date)
	if err != nil {
		return fmt.Errorf("list reservations: %w", err)
	}
	if len(existing) >= s.rules.MaxReservations {
		return newError(CodeCapacityReached, "Quota de %d atteint pour le %s.", s.rules.MaxReservations, display)
	}

	r := models.Reservation{Date: date, Name: name, CreatedAt: s.rules.timestamp()}
	if err := s.reservations.AppendReservations(ctx, r); err != nil {
		return fmt.Errorf("append reservation: %w", err)
	}

	s.logger.Info().Str("date", models.DateKey(date)).Str("name", name).Int("position", len(existing)+1).Msg("reservation created")
	publish(s.events, events.ReservationCreated, date, nil)
	return nil
}

// Unreserve removes the first reservation on date whose trimmed name equals name.
func (s *ReservationService) Unreserve(ctx context.Context, name string, date time.Time) error {
	name = strings.TrimSpace(name)
	found, err := s.reservations.DeleteFirstReservation(ctx, date, name)
	if err != nil {
		return fmt.Errorf("delete reservation: %w", err)
	}
	if !found {
		return newError(CodeNotFound, "Pas de réservation trouvée pour %q le %s.", name, models.DisplayDate(date))
	}

	s.logger.Info().Str("date", models.DateKey(date)).Str("name", name).Msg("reservation cancelled")
	publish(s.events, events.ReservationCancelled, date, nil)
	return nil
}

// ListReservations returns the names reserved on date in queue order.
func (s *ReservationService) ListReservations(ctx context.Context, date time.Time) ([]string, error) {
	rows, err := s.reservations.ListReservations(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	return reservationNames(rows), nil
}

// ReservationsByDay groups every reservation by its dd.MM.yyyy date.
func (s *ReservationService) ReservationsByDay(ctx context.Context) (map[string][]string, error) {
	rows, err := s.reservations.ListAllReservations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	out := make(map[string][]string)
	for _, r := range rows {
		name := strings.TrimSpace(r.Name)
		if name == "" || r.Date.IsZero() {
			continue
		}
		key := models.DisplayDate(r.Date)
		out[key] = append(out[key], name)
	}
	return out, nil
}

func (s *ReservationService) isDayOpen(ctx context.Context, date time.Time) (bool, error) {
	days, err := s.days.ListDays(ctx)
	if err != nil {
		return false, fmt.Errorf("list days: %w", err)
	}
	key := models.DateKey(date)
	for _, d := range days {
		if d.Key() == key && d.IsOpen {
			return true, nil
		}
	}
	return false, nil
}

func reservationNames(rows []models.Reservation) []string {
	names := make([]string, 0, len(rows))
	for _, r := range rows {
		if name := strings.TrimSpace(r.Name); name != "" {
			names = append(names, name)
		}
	}
	return names
}
