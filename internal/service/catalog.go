package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/teambition/rrule-go"

	"cafeteria/internal/models"
	"cafeteria/internal/repository"
)

// Catalog answers which days are offered on the reservation page.
type Catalog struct {
	days   repository.DayRepository
	rules  Rules
	logger *zerolog.Logger
}

func NewCatalog(days repository.DayRepository, rules Rules, logger *zerolog.Logger) *Catalog {
	return &Catalog{days: days, rules: rules, logger: orNop(logger)}
}

// UpcomingDays returns one entry per configured weekday, in configuration order.
func (c *Catalog) UpcomingDays(ctx context.Context) ([]models.Day, error) {
	days, err := c.days.ListDays(ctx)
	if err != nil {
		return nil, fmt.Errorf("list days: %w", err)
	}
	return SelectUpcoming(days, c.rules.Weekdays, c.rules.Today()), nil
}

// SelectUpcoming picks, for each weekday label, the earliest open day on or after
// today. A weekday without one gets a closed placeholder on its next occurrence
// strictly after today.
func SelectUpcoming(days []models.Day, weekdays []string, today time.Time) []models.Day {
	out := make([]models.Day, 0, len(weekdays))
	for _, label := range weekdays {
		var candidates []models.Day
		for _, d := range days {
			if d.WeekdayLabel == label && d.IsOpen && !d.Date.Before(today) {
				candidates = append(candidates, d)
			}
		}
		if len(candidates) > 0 {
			sort.SliceStable(candidates, func(i, j int) bool {
				return candidates[i].Date.Before(candidates[j].Date)
			})
			out = append(out, candidates[0])
			continue
		}

		placeholder := models.Day{WeekdayLabel: label}
		if wd, ok := models.WeekdayLabels[label]; ok {
			placeholder.Date = NextWeekday(today, wd)
		} else {
			placeholder.Date = today.AddDate(0, 0, 7)
		}
		out = append(out, placeholder)
	}
	return out
}

var rruleWeekdays = map[time.Weekday]rrule.Weekday{
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
	time.Sunday:    rrule.SU,
}

// NextWeekday returns the first date strictly after today falling on wd.
func NextWeekday(today time.Time, wd time.Weekday) time.Time {
	start := today.AddDate(0, 0, 1)
	r, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Byweekday: []rrule.Weekday{rruleWeekdays[wd]},
		Dtstart:   start,
		Count:     1,
	})
	if err == nil {
		if occ := r.All(); len(occ) > 0 {
			return models.StartOfDay(occ[0].In(today.Location()))
		}
	}
	delta := (int(wd) - int(today.Weekday()) + 7) % 7
	if delta == 0 {
		delta = 7
	}
	return today.AddDate(0, 0, delta)
}

func orNop(logger *zerolog.Logger) *zerolog.Logger {
	if logger != nil {
		return logger
	}
	nop := zerolog.Nop()
	return &nop
}
